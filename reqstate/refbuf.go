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

package reqstate

import "sync/atomic"

// Refbuf is a reference-counted byte buffer with an optional follow-on
// buffer (spec.md §9 "linked-buffer associated chain"). Reimplemented here
// as a single explicit owned optional field rather than a general linked
// list, per the design note: a refbuf only ever chains one buffer behind
// another, to preserve stream bytes that arrived alongside a header block
// across the transition from request-read to a terminal handler.
type Refbuf struct {
	data       []byte
	associated *Refbuf
	refs       int32
}

// NewRefbuf wraps data in a fresh Refbuf with a single reference.
func NewRefbuf(data []byte) *Refbuf {
	return &Refbuf{data: data, refs: 1}
}

// Bytes returns the buffer's contents.
func (r *Refbuf) Bytes() []byte {
	if r == nil {
		return nil
	}
	return r.data
}

// Len returns the number of bytes held.
func (r *Refbuf) Len() int {
	if r == nil {
		return 0
	}
	return len(r.data)
}

// Associated returns the follow-on buffer, or nil if none is attached.
func (r *Refbuf) Associated() *Refbuf {
	if r == nil {
		return nil
	}
	return r.associated
}

// SetAssociated attaches next as r's follow-on buffer, taking a reference
// on it. Replacing an existing associated buffer releases the old one.
func (r *Refbuf) SetAssociated(next *Refbuf) {
	if r.associated != nil {
		r.associated.Release()
	}
	r.associated = next
	if next != nil {
		next.Acquire()
	}
}

// Acquire adds a reference.
func (r *Refbuf) Acquire() {
	if r == nil {
		return
	}
	atomic.AddInt32(&r.refs, 1)
}

// Release drops a reference; at zero it releases the associated chain too
// (the associated buffer was only being kept alive by r's ownership of it).
// The underlying slice is left for the garbage collector — there is no
// pool to return it to, matching connio.Bufs's scope-local, GC-backed
// buffer model elsewhere in this module.
func (r *Refbuf) Release() {
	if r == nil {
		return
	}
	if atomic.AddInt32(&r.refs, -1) == 0 {
		if r.associated != nil {
			r.associated.Release()
			r.associated = nil
		}
		r.data = nil
	}
}
