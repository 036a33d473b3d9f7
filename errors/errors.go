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

package errors

// ers is the concrete value behind every error CodeError.Error/ErrorParent
// constructs: a coded message plus zero or more wrapped parent errors. It
// implements the standard multi-error Unwrap() []error hook so errors.Is
// and errors.As see through to any parent.
type ers struct {
	code    CodeError
	message string
	parents []error
}

func newErs(code CodeError, message string, parents []error) *ers {
	var p []error
	for _, e := range parents {
		if e != nil {
			p = append(p, e)
		}
	}
	return &ers{code: code, message: message, parents: p}
}

// Code returns the CodeError this error was constructed from.
func (e *ers) Code() CodeError { return e.code }

// Error implements the standard error interface. A parent, if present, is
// appended after the code's own message the way fmt.Errorf's "%w" does.
func (e *ers) Error() string {
	if len(e.parents) == 0 {
		return e.message
	}
	s := e.message
	for _, p := range e.parents {
		s += ": " + p.Error()
	}
	return s
}

// Unwrap exposes the parent chain to errors.Is/errors.As.
func (e *ers) Unwrap() []error { return e.parents }
