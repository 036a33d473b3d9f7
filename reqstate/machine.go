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

import (
	"bytes"
	"io"
	"net"
	"strings"
	"time"

	"streamfront/connio"
)

// flashPolicyPrefix is the exact Flash cross-domain policy probe spec.md
// §4.6 short-circuits on, before any header parsing is attempted.
const flashPolicyPrefix = "<policy-file-request/>"

// terminators are the three header-block terminator variants spec.md §4.6
// tolerates, tried in priority order, each paired with the byte count to
// add to the match offset to land just past the terminator.
var terminators = []struct {
	seq  []byte
	skip int
}{
	{[]byte("\r\n\r\n"), 4},
	{[]byte("\n\n"), 2},
	{[]byte("\r\r\n\r\r\n"), 6},
}

// findTerminator searches buf for the first (in priority order, not byte
// position) of the three terminator variants and returns the offset just
// past it plus true, or (0, false) if none is present yet.
func findTerminator(buf []byte) (int, bool) {
	for _, t := range terminators {
		if i := bytes.Index(buf, t.seq); i >= 0 {
			return i + t.skip, true
		}
	}
	return 0, false
}

// Outcome is what a single Step call decided: whether to reschedule, hand
// off to a terminal state, or drop the client, plus any bytes the caller
// must write back before doing so.
type Outcome struct {
	// Wait, when non-zero and Terminal/Drop are false, is how long the
	// worker should wait before calling Step again.
	Wait time.Duration
	// Terminal reports that c.State has settled on one the dispatch layer
	// should now act on (GetHandler, SourceHandler, StatsHandler,
	// FlashPolicy, ResponseOnly).
	Terminal bool
	// Drop reports the client should be torn down without further action.
	Drop bool
	// Response, if non-nil, is a canned reply the caller must write (via
	// Client.Conn.Send) before proceeding — the OPTIONS/Not-Implemented
	// canned responses and the 100-continue interim response.
	Response *connio.Bufs
}

// Machine runs the request-assembly state machine (spec.md §4.6) over
// Clients. A single Machine is shared across every client a worker pool
// drives; it holds no per-client state itself.
type Machine struct {
	Parser  Parser
	Filters UserAgentFilter
}

// NewMachine constructs a Machine. filters may be nil, meaning no UA
// filtering is applied (equivalent to an empty agent-deny file).
func NewMachine(parser Parser, filters UserAgentFilter) *Machine {
	return &Machine{Parser: parser, Filters: filters}
}

// Step advances c by exactly one unit of work: one read, one parse
// attempt, or one state transition, returning before blocking further
// (spec.md §5: "runs to a natural pause ... and returns a next-wake
// timestamp"). Callers loop: if Outcome.Response is set, send it; if
// Drop, tear down; if Terminal, hand off to the dispatch layer; otherwise
// reschedule Step for now+Outcome.Wait.
func (m *Machine) Step(c *Client, now time.Time) Outcome {
	switch c.State {
	case RequestRead:
		return m.stepRequestRead(c, now)
	case AwaitingContinue:
		c.State = SourceHandler
		c.active = c.classified.BodyStart
		return Outcome{Terminal: true}
	default:
		return Outcome{Terminal: true}
	}
}

func (m *Machine) stepRequestRead(c *Client, now time.Time) Outcome {
	if !now.Before(c.deadline) {
		return Outcome{Drop: true}
	}
	if c.sharedLen >= len(c.shared)-1 {
		// Header block exceeded the buffer with no terminator found: not
		// a recoverable wait, spec.md §4.6 only reschedules "if buffer
		// not full".
		return Outcome{Drop: true}
	}

	readDeadline := now.Add(100 * time.Millisecond)
	if readDeadline.After(c.deadline) {
		readDeadline = c.deadline
	}
	_ = c.Conn.SetDeadline(readDeadline)

	n, err := c.Conn.Read(c.shared[c.sharedLen : len(c.shared)-1])
	if n > 0 {
		c.sharedLen += n
	}
	if err != nil {
		if isTimeout(err) {
			if n > 0 {
				return m.tryTerminate(c)
			}
			return Outcome{Wait: 100 * time.Millisecond}
		}
		return Outcome{Drop: true}
	}
	if n == 0 {
		if err == io.EOF {
			return Outcome{Drop: true}
		}
		// Backoff: spec.md §4.6 "when a read returns zero bytes but the
		// connection is still healthy, reschedule after
		// min(200, elapsed_ms/2) + 6 ms."
		elapsedMs := now.Sub(c.connTime).Milliseconds() / 2
		if elapsedMs > 200 {
			elapsedMs = 200
		}
		return Outcome{Wait: time.Duration(elapsedMs+6) * time.Millisecond}
	}

	return m.tryTerminate(c)
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

func (m *Machine) tryTerminate(c *Client) Outcome {
	buf := c.shared[:c.sharedLen]

	if bytes.HasPrefix(buf, []byte(flashPolicyPrefix)) {
		c.classified = Classified{Method: "GET", URI: "/flashpolicy"}
		c.State = FlashPolicy
		return Outcome{Terminal: true}
	}

	consumed, ok := findTerminator(buf)
	if !ok {
		return Outcome{Wait: 100 * time.Millisecond}
	}

	header := append([]byte(nil), buf[:consumed]...)
	rest := buf[consumed:]

	parsed, err := m.Parser.Parse(header)
	if err != nil {
		return Outcome{Drop: true}
	}

	if ua, ok := parsed.Header("User-Agent"); ok && m.Filters != nil && m.Filters.IsAgentDenied(ua) {
		return Outcome{Drop: true}
	}

	proto := parsed.Protocol()
	if proto != "ICE" && proto != "HTTP" {
		return Outcome{Drop: true}
	}

	if parsed.Version() == "1.1" {
		c.setFlag(FlagKeepAlive)
	}
	if v, ok := parsed.Header("Connection"); ok {
		if strings.EqualFold(v, "close") {
			c.clearFlag(FlagKeepAlive)
		} else if strings.EqualFold(v, "keep-alive") {
			c.setFlag(FlagKeepAlive)
		}
	}

	return m.classify(c, parsed, rest)
}

func (m *Machine) classify(c *Client, parsed ParsedRequest, rest []byte) Outcome {
	method := strings.ToUpper(parsed.Method())

	switch method {
	case "HEAD", "GET":
		c.classified = Classified{Method: method, URI: parsed.URI(), Parsed: parsed}
		c.State = GetHandler
		return Outcome{Terminal: true}

	case "SOURCE", "PUT":
		var body *Refbuf
		if len(rest) > 0 {
			b := make([]byte, len(rest))
			copy(b, rest)
			body = NewRefbuf(b)
		}
		c.classified = Classified{Method: method, URI: parsed.URI(), Parsed: parsed, BodyStart: body}

		if v, ok := parsed.Header("Expect"); ok && strings.EqualFold(v, "100-continue") {
			c.State = AwaitingContinue
			return Outcome{Response: continueResponse()}
		}

		c.State = SourceHandler
		c.active = body
		return Outcome{Terminal: true}

	case "STATS":
		c.classified = Classified{Method: method, URI: parsed.URI(), Parsed: parsed}
		c.State = StatsHandler
		return Outcome{Terminal: true}

	case "OPTIONS":
		c.classified = Classified{Method: method, URI: parsed.URI(), Parsed: parsed}
		c.State = ResponseOnly
		c.SetResponseCode(200)
		return Outcome{Terminal: true, Response: optionsResponse()}

	default:
		c.classified = Classified{Method: method, URI: parsed.URI(), Parsed: parsed}
		c.State = ResponseOnly
		c.SetResponseCode(501)
		return Outcome{Terminal: true, Response: notImplementedResponse()}
	}
}

func continueResponse() *connio.Bufs {
	b := connio.NewBufs()
	b.Append([]byte("HTTP/1.1 100 Continue\r\n\r\n"))
	return b
}

func optionsResponse() *connio.Bufs {
	b := connio.NewBufs()
	b.Append([]byte("HTTP/1.0 200 OK\r\nAllow: GET, HEAD, SOURCE, PUT, STATS, OPTIONS\r\nContent-Length: 0\r\n\r\n"))
	return b
}

func notImplementedResponse() *connio.Bufs {
	b := connio.NewBufs()
	b.Append([]byte("HTTP/1.0 501 Not Implemented\r\nContent-Length: 0\r\n\r\n"))
	return b
}
