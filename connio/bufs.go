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

package connio

import (
	"fmt"
	"strconv"
)

// maxChunkSize is the sanity bound on a single chunked-transfer chunk.
// Anything at or above it is a caller bug, not malformed input: chunk sizes
// this large can only come from miscomputed internal lengths.
const maxChunkSize = 1 << 24

// entry is one (base, len) vector slot, mirroring a single iovec.
type entry struct {
	base []byte
	len  int
}

// Bufs is a growable scatter-gather vector, the Go analogue of an iovec
// array: a flat list of byte slices to be written as one logical send.
// It is always scope-local to a single send operation and is never shared
// across goroutines.
type Bufs struct {
	entries []entry
	total   int
}

// NewBufs returns an empty vector with room for 16 entries; Append grows
// it in further steps of 16.
func NewBufs() *Bufs {
	return &Bufs{entries: make([]entry, 0, 16)}
}

// Append adds b to the end of the vector. Empty slices are still recorded:
// a zero-length entry is legal and simply contributes nothing to total.
func (v *Bufs) Append(b []byte) {
	if len(v.entries) == cap(v.entries) {
		grown := make([]entry, len(v.entries), cap(v.entries)+16)
		copy(grown, v.entries)
		v.entries = grown
	}
	v.entries = append(v.entries, entry{base: b, len: len(b)})
	v.total += len(b)
}

// Total returns the sum of all entry lengths currently held.
func (v *Bufs) Total() int {
	return v.total
}

// Count returns the number of entries currently held.
func (v *Bufs) Count() int {
	return len(v.entries)
}

// AppendChunkHeader formats "<hexlen>\r\n" for n bytes of upcoming payload
// and appends it as its own vector entry. It rejects chunk sizes at or
// above the 2^24 sanity bound and negative sizes, both of which indicate a
// caller bug rather than bad input.
func (v *Bufs) AppendChunkHeader(n int) error {
	if n < 0 || n >= maxChunkSize {
		return fmt.Errorf("connio: invalid chunk size %d", n)
	}
	header := strconv.FormatInt(int64(n), 16) + "\r\n"
	v.Append([]byte(header))
	return nil
}

// AppendChunkEnd appends the trailing "\r\n" that closes a chunk.
func (v *Bufs) AppendChunkEnd() {
	v.Append([]byte("\r\n"))
}

// netBufs renders the vector into the net.Buffers slice the send path
// hands to net.Buffers.WriteTo (a single writev where the platform supports
// it) or writes sequentially over TLS. skip bytes are consumed from the front
// first; the returned restore func puts the mutated first entry back
// exactly as it was, satisfying the partial-send contract: any in-place
// mutation performed to apply a skip is reverted before the caller sees
// the vector again.
func (v *Bufs) netBufs(skip int) (bufs [][]byte, restore func()) {
	if skip < 0 || skip > v.total {
		panic(fmt.Sprintf("connio: skip %d exceeds vector total %d", skip, v.total))
	}

	if skip == 0 {
		out := make([][]byte, len(v.entries))
		for i, e := range v.entries {
			out[i] = e.base
		}
		return out, func() {}
	}

	remaining := skip
	start := 0
	for start < len(v.entries) && remaining >= v.entries[start].len {
		remaining -= v.entries[start].len
		start++
	}

	if start >= len(v.entries) {
		return nil, func() {}
	}

	original := v.entries[start].base
	v.entries[start].base = original[remaining:]

	out := make([][]byte, len(v.entries)-start)
	for i := start; i < len(v.entries); i++ {
		out[i-start] = v.entries[i].base
	}

	return out, func() {
		v.entries[start].base = original
	}
}
