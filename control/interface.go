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

// Package control abstracts the accept loop's shutdown/reload signaling as a
// typed event channel (spec design note: "Abstract as a control channel
// delivering typed events {Terminate, Reload}; backed by signalfd where
// available, by a self-pipe or condition variable otherwise.").
//
// Go's os/signal package already implements the self-pipe trick internally
// and hands the accept loop a buffered channel, so that is the backing
// mechanism here on every platform: it is the portable equivalent spec.md
// §4.1 allows ("signals are then delivered through whatever mechanism the
// target environment offers, provided they set the same running/reload
// flags"). There is no signalfd-specific fast path: the accept loop's
// readiness poll (package acceptloop) already wakes at worst every 333ms
// with nothing to accept, which is the bound spec.md gives for a listener
// set with no signal descriptor.
package control

// Event is a typed control-channel notification.
type Event uint8

const (
	// Terminate requests the accept loop stop and the process wind down.
	Terminate Event = iota
	// Reload requests the listener manager and filter store re-read their
	// backing configuration/files.
	Reload
)

func (e Event) String() string {
	switch e {
	case Terminate:
		return "terminate"
	case Reload:
		return "reload"
	default:
		return "unknown"
	}
}

// Channel delivers control events to anything selecting on Events().
// Close releases the underlying OS signal registration; Channel is not
// usable afterwards.
type Channel interface {
	Events() <-chan Event
	Close()
}
