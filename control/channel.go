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

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// osChannel maps SIGINT/SIGTERM to Terminate and SIGHUP to Reload.
type osChannel struct {
	raw    chan os.Signal
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// New registers the process-wide signal handlers and starts translating
// them into Events. Only one Channel should be live per process: signal.Notify
// registrations are additive, so constructing a second Channel without
// closing the first doubles the deliveries.
func New() Channel {
	c := &osChannel{
		raw:    make(chan os.Signal, 4),
		events: make(chan Event, 4),
		done:   make(chan struct{}),
	}

	signal.Notify(c.raw, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go c.pump()

	return c
}

func (c *osChannel) pump() {
	for {
		select {
		case sig := <-c.raw:
			switch sig {
			case syscall.SIGHUP:
				c.emit(Reload)
			default:
				c.emit(Terminate)
			}
		case <-c.done:
			return
		}
	}
}

func (c *osChannel) emit(e Event) {
	select {
	case c.events <- e:
	default:
		// The buffer already holds four undelivered events, of any kind;
		// this one is dropped rather than blocking the signal pump.
	}
}

func (c *osChannel) Events() <-chan Event {
	return c.events
}

func (c *osChannel) Close() {
	c.once.Do(func() {
		signal.Stop(c.raw)
		close(c.done)
	})
}
