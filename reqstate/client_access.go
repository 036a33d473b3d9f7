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

import "time"

// This file exposes the narrow set of accessors the shoutcast package
// needs to drive a Client through ShoutcastIntro and hand it back into
// RequestRead, without reaching into reqstate's unexported fields directly.

// SharedBytes returns the bytes currently held in the shared read buffer.
func (c *Client) SharedBytes() []byte {
	return c.shared[:c.sharedLen]
}

// GrowShared returns the writable tail of the shared buffer (capacity
// minus 1, per spec.md §4.6) for a Read call to fill.
func (c *Client) GrowShared() []byte {
	return c.shared[c.sharedLen : len(c.shared)-1]
}

// AdvanceShared records that n more bytes were read into the slice
// returned by the most recent GrowShared call.
func (c *Client) AdvanceShared(n int) {
	c.sharedLen += n
}

// ResetShared replaces the shared buffer's contents with data, used by the
// shoutcast translator to install its synthesized HTTP request as the
// client's new read buffer (spec.md §4.7: "the synthesized HTTP request
// becomes the client's new read buffer").
func (c *Client) ResetShared(data []byte) {
	buf := make([]byte, sharedBufCap)
	n := copy(buf, data)
	c.shared = buf
	c.sharedLen = n
}

// SetActive installs r as the client's active response/body buffer.
func (c *Client) SetActive(r *Refbuf) {
	c.active = r
}

// SetFlag sets bit b on the client's flag bitset; used by the dispatch
// layer to record decisions (WANTS_FLV, SKIP_ACCESSLOG) made after the
// request has already left the state machine.
func (c *Client) SetFlag(b Flags) { c.setFlag(b) }

// ClearFlag clears bit b.
func (c *Client) ClearFlag(b Flags) { c.clearFlag(b) }

// TransitionTo moves the client to a new state, used by the shoutcast
// translator once it has rewritten the request buffer; the OK2 response is
// returned to the caller to write after the transition.
func (c *Client) TransitionTo(s State) {
	c.State = s
}

// ConnectedAt returns the time the connection was accepted.
func (c *Client) ConnectedAt() time.Time {
	return c.connTime
}

// ExtendDeadline replaces the disconnect deadline with d, giving a stage its
// own bounded window distinct from the header-read deadline set at accept.
// The shoutcast translator does not call it; its password read runs under
// the accept-time deadline.
func (c *Client) ExtendDeadline(d time.Time) {
	c.deadline = d
}
