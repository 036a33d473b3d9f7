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

package control

import "sync"

// manual is a Channel a test or an embedding program can drive directly,
// without touching process-wide signal state.
type manual struct {
	events chan Event
	once   sync.Once
}

// NewManual returns a Channel with no OS signal registration. Emit pushes
// events into it; tests use this to exercise reload/terminate handling
// without sending real signals to the test process.
func NewManual() (Channel, func(Event)) {
	m := &manual{events: make(chan Event, 8)}
	return m, m.emit
}

func (m *manual) emit(e Event) {
	select {
	case m.events <- e:
	default:
	}
}

func (m *manual) Events() <-chan Event {
	return m.events
}

func (m *manual) Close() {
	m.once.Do(func() {
		close(m.events)
	})
}
