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

package main

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"streamfront/dispatch"
	"streamfront/logging"
	"streamfront/reqstate"
	"streamfront/shoutcast"
)

// stubWorker is the simplest possible acceptloop.Worker: one goroutine per
// client, driving the request-assembly state machine to a terminal state
// and then routing it through the Dispatcher. A production worker pool
// (spec.md §1 names it an external collaborator) would instead run a
// bounded set of goroutines servicing many clients each via the same
// Step/Outcome contract, reporting Backpressure() when it is saturated.
type stubWorker struct {
	dispatcher *dispatch.Dispatcher
	machine    *reqstate.Machine
	log        logging.Logger

	active int64
}

func newStubWorker(d *dispatch.Dispatcher, log logging.Logger) *stubWorker {
	return &stubWorker{
		dispatcher: d,
		machine:    reqstate.NewMachine(lineParser{}, nil),
		log:        log,
	}
}

// Enqueue implements acceptloop.Worker.
func (w *stubWorker) Enqueue(c *reqstate.Client) {
	atomic.AddInt64(&w.active, 1)
	go w.drive(c)
}

// ClientCount implements dispatch.ClientCounter so this stub can also back
// the global client-limit gate.
func (w *stubWorker) ClientCount() int {
	return int(atomic.LoadInt64(&w.active))
}

func (w *stubWorker) drive(c *reqstate.Client) {
	defer func() {
		atomic.AddInt64(&w.active, -1)
		c.Conn.Close()
		if c.ReleaseListener != nil {
			c.ReleaseListener()
		}
	}()

	for {
		var outcome reqstate.Outcome
		if c.State == reqstate.ShoutcastIntro {
			outcome = shoutcast.Step(c, time.Now())
		} else {
			outcome = w.machine.Step(c, time.Now())
		}

		if outcome.Response != nil {
			if _, err := c.Conn.Send(outcome.Response, 0); err != nil {
				w.log.Debugf("worker: send failed for connection %d: %v", c.Conn.ID(), err)
				return
			}
		}
		if outcome.Drop {
			return
		}
		if outcome.Terminal {
			w.dispatchTerminal(c)
			return
		}
		if outcome.Wait > 0 {
			time.Sleep(outcome.Wait)
		}
	}
}

func (w *stubWorker) dispatchTerminal(c *reqstate.Client) {
	peerIP := c.Conn.PeerIP()
	cls := c.Classified()

	var res dispatch.Result
	switch c.State {
	case reqstate.GetHandler:
		res = w.dispatcher.DispatchGet(c, cls.Parsed, peerIP, 0, "")
	case reqstate.SourceHandler:
		res = w.dispatcher.DispatchSource(c, cls.Parsed, peerIP)
	case reqstate.StatsHandler:
		res = w.dispatcher.DispatchStats(c, cls.Parsed, peerIP)
	case reqstate.FlashPolicy:
		res = w.dispatcher.DispatchFlashPolicy(c)
	default:
		// ResponseOnly/Closed: the state machine already wrote (or
		// deliberately skipped) the canned reply; nothing left to do.
	}
	if res.Response != nil {
		if _, err := c.Conn.Send(res.Response, 0); err != nil {
			w.log.Debugf("worker: send failed for connection %d: %v", c.Conn.ID(), err)
		}
	}
}

// lineParser is a minimal, synchronous stand-in for the HTTP/ICE header
// parser spec.md §1 treats as an external collaborator: "consumed as an
// opaque parser returning header/query/request-type fields". It handles
// just enough of RFC 7230's request-line and header-field grammar to drive
// the state machine and dispatch layer in this example; it is not a
// conformant parser (no folding, no multi-value headers, no URI decoding).
type lineParser struct{}

func (lineParser) Parse(raw []byte) (reqstate.ParsedRequest, error) {
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, len(raw)+1), len(raw)+1)

	if !scanner.Scan() {
		return nil, fmt.Errorf("lineParser: empty request")
	}
	parts := strings.Fields(scanner.Text())
	if len(parts) < 2 {
		return nil, fmt.Errorf("lineParser: malformed request line %q", scanner.Text())
	}

	p := &parsedLine{method: strings.ToUpper(parts[0]), uri: parts[1], headers: map[string]string{}}
	p.protocol, p.version = splitProtocolVersion(parts)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		p.headers[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}
	return p, nil
}

func splitProtocolVersion(parts []string) (protocol, version string) {
	if len(parts) < 3 {
		return "ICE", "1.0"
	}
	proto := parts[2]
	if i := strings.IndexByte(proto, '/'); i >= 0 {
		name, ver := proto[:i], proto[i+1:]
		if strings.EqualFold(name, "ICY") {
			return "ICE", ver
		}
		return strings.ToUpper(name), ver
	}
	return strings.ToUpper(proto), ""
}

type parsedLine struct {
	method   string
	uri      string
	protocol string
	version  string
	headers  map[string]string
}

func (p *parsedLine) Method() string   { return p.method }
func (p *parsedLine) Protocol() string { return p.protocol }
func (p *parsedLine) Version() string  { return p.version }
func (p *parsedLine) URI() string      { return p.uri }

func (p *parsedLine) Header(name string) (string, bool) {
	v, ok := p.headers[strings.ToLower(name)]
	return v, ok
}

func (p *parsedLine) Query(name string) (string, bool) {
	i := strings.IndexByte(p.uri, '?')
	if i < 0 {
		return "", false
	}
	for _, pair := range strings.Split(p.uri[i+1:], "&") {
		k, v, _ := strings.Cut(pair, "=")
		if k == name {
			return v, true
		}
	}
	return "", false
}
