/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package errors_test

import (
	stderrors "errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"streamfront/errors"
)

const testMin errors.CodeError = 50000

const (
	errTestFirst errors.CodeError = iota + testMin
	errTestSecond
)

func init() {
	errors.RegisterIdFctMessage(errTestFirst, func(code errors.CodeError) string {
		switch code {
		case errTestFirst:
			return "first test error"
		case errTestSecond:
			return "second test error"
		default:
			return errors.NullMessage
		}
	})
}

var _ = Describe("CodeError", func() {
	It("resolves the message registered for its package range", func() {
		Expect(errTestFirst.Message()).To(Equal("first test error"))
		Expect(errTestSecond.Message()).To(Equal("second test error"))
	})

	It("falls back to UnknownMessage for an unregistered code", func() {
		Expect(errors.UnknownError.Message()).To(Equal(errors.UnknownMessage))

		var neverRegistered errors.CodeError = 64000
		Expect(neverRegistered.Message()).To(Equal(errors.UnknownMessage))
	})

	It("reports ExistInMapMessage only for codes with a non-empty message", func() {
		Expect(errors.ExistInMapMessage(errTestFirst)).To(BeTrue())

		var neverRegistered errors.CodeError = 64000
		Expect(errors.ExistInMapMessage(neverRegistered)).To(BeFalse())
	})

	It("builds an error carrying its registered message", func() {
		err := errTestFirst.Error()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(Equal("first test error"))
	})

	It("appends parent errors to the message, in order", func() {
		parent := stderrors.New("root cause")
		err := errTestSecond.ErrorParent(parent)
		Expect(err.Error()).To(Equal("second test error: root cause"))
	})

	It("drops nil parents instead of rendering them", func() {
		err := errTestFirst.ErrorParent(nil, stderrors.New("real cause"), nil)
		Expect(err.Error()).To(Equal("first test error: real cause"))
	})

	It("exposes the parent chain through errors.Unwrap for errors.Is/As", func() {
		sentinel := stderrors.New("sentinel")
		err := errTestFirst.ErrorParent(sentinel)
		Expect(stderrors.Is(err, sentinel)).To(BeTrue())
	})
})

var _ = Describe("package code ranges", func() {
	It("never collide across this module's registered packages", func() {
		ranges := []errors.CodeError{
			errors.MinPkgConnIO,
			errors.MinPkgTLSFront,
			errors.MinPkgFilterStore,
			errors.MinPkgListener,
			errors.MinPkgAcceptLoop,
			errors.MinPkgControl,
			errors.MinPkgReqState,
			errors.MinPkgShoutcast,
			errors.MinPkgDispatch,
			errors.MinPkgCoreConfig,
		}
		seen := map[errors.CodeError]bool{}
		for _, r := range ranges {
			Expect(seen[r]).To(BeFalse(), "duplicate package range %d", r)
			seen[r] = true
		}
	})
})
