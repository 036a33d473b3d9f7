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

// Package errors is a coded-error package in the teacher's own style
// (numeric codes per package, a registered per-package message function,
// parent-error chaining) trimmed to exactly the surface this module's
// call sites exercise: CodeError plus a message registry and two
// constructors. See modules.go for the per-package code-range convention.
package errors

import "sort"

// Message is a function type that generates error messages based on error
// codes. Each package registers exactly one of these, covering the whole
// range of CodeError constants it declares starting at its Min constant.
type Message func(code CodeError) (message string)

// idMsgFct maps a package's Min code to the message function it registered.
var idMsgFct = make(map[CodeError]Message)

// CodeError is a numeric error code, one per package range declared in
// modules.go (e.g. ErrorListenFailed = iota + MinPkgListener).
type CodeError uint16

const (
	// UnknownError is the code used when no package-specific code applies.
	UnknownError CodeError = 0

	// UnknownMessage is the message returned for an unregistered code.
	UnknownMessage = "unknown error"

	// NullMessage is returned by a message function to signal "no message
	// for this code", distinguishing it from a deliberately empty string.
	NullMessage = ""

	// UNK_ERROR is an alias for UnknownError kept for parity with the
	// teacher library's own deprecated-but-still-used constant name.
	UNK_ERROR = UnknownError
)

// RegisterIdFctMessage registers fct as the message function covering every
// CodeError from minCode up to (but not including) the next registered
// package's minCode. Each package's init() calls this once.
func RegisterIdFctMessage(minCode CodeError, fct Message) {
	if idMsgFct == nil {
		idMsgFct = make(map[CodeError]Message)
	}
	idMsgFct[minCode] = fct
}

// ExistInMapMessage reports whether code resolves to a registered message
// function that returns a non-empty message for it. Packages call this in
// init() purely to detect accidental code-range collisions during review.
func ExistInMapMessage(code CodeError) bool {
	f, ok := idMsgFct[findCodeErrorInMapMessage(code)]
	if !ok {
		return false
	}
	return f(code) != NullMessage
}

// Message resolves code to its package's registered message, or
// UnknownMessage if code is UnknownError or no package claims its range.
func (c CodeError) Message() string {
	if c == UnknownError {
		return UnknownMessage
	}
	if f, ok := idMsgFct[findCodeErrorInMapMessage(c)]; ok {
		if m := f(c); m != NullMessage {
			return m
		}
	}
	return UnknownMessage
}

// Error builds an error for this code, optionally wrapping parent errors.
func (c CodeError) Error(parents ...error) error {
	return newErs(c, c.Message(), parents)
}

// ErrorParent is an alias for Error, named to match call sites of the form
// SomeErrorCode.ErrorParent(err) where a parent error is always present.
func (c CodeError) ErrorParent(parents ...error) error {
	return c.Error(parents...)
}

// findCodeErrorInMapMessage returns the largest registered Min code that is
// <= code, i.e. the package range code falls into.
func findCodeErrorInMapMessage(code CodeError) CodeError {
	keys := make([]CodeError, 0, len(idMsgFct))
	for k := range idMsgFct {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var res CodeError
	for _, k := range keys {
		if k <= code && k > res {
			res = k
		}
	}
	return res
}
