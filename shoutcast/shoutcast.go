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

// Package shoutcast implements the legacy Shoutcast ingest handshake: the
// alternate entry state for listeners marked shoutcast-compatible (spec.md
// §4.7). It reads a bare password line, acknowledges it, and rewrites
// whatever has already arrived behind that line into a synthetic HTTP
// SOURCE request before handing the client back to the ordinary
// request-assembly state machine in package reqstate.
package shoutcast

import (
	"bytes"
	"encoding/base64"
	"io"
	"net"
	"time"

	"streamfront/connio"
	"streamfront/reqstate"
)

// ackResponse is the fixed acknowledgement spec.md §4.7 names: an OK2
// status line plus an ICY capability header, written before the source
// handshake is rewritten into HTTP.
const ackResponse = "OK2\r\nicy-caps:11\r\n\r\n"

// Step advances c by one unit of work while c.State is reqstate.ShoutcastIntro,
// mirroring reqstate.Machine.Step's contract exactly: it never blocks past a
// single read, and returns an Outcome the caller must act on before calling
// Step again. Once the password line is found, the transition happens
// synchronously within this call — c.State becomes reqstate.RequestRead and
// the synthesized request is already installed as the shared buffer — and
// the returned Outcome carries the OK2/icy-caps Response the caller must
// write. A caller that observes c.State leave ShoutcastIntro after a Step
// call should resume driving the client through reqstate.Machine instead.
func Step(c *reqstate.Client, now time.Time) reqstate.Outcome {
	if !now.Before(c.Deadline()) {
		return reqstate.Outcome{Drop: true}
	}

	tail := c.GrowShared()
	if len(tail) == 0 {
		return reqstate.Outcome{Drop: true}
	}

	readDeadline := now.Add(100 * time.Millisecond)
	if readDeadline.After(c.Deadline()) {
		readDeadline = c.Deadline()
	}
	_ = c.Conn.SetDeadline(readDeadline)

	n, err := c.Conn.Read(tail)
	if n > 0 {
		c.AdvanceShared(n)
	}
	if err != nil {
		if isTimeout(err) {
			if n > 0 {
				return tryExtract(c)
			}
			return reqstate.Outcome{Wait: 100 * time.Millisecond}
		}
		return reqstate.Outcome{Drop: true}
	}
	if n == 0 {
		if err == io.EOF {
			return reqstate.Outcome{Drop: true}
		}
		elapsedMs := now.Sub(c.ConnectedAt()).Milliseconds() / 2
		if elapsedMs > 200 {
			elapsedMs = 200
		}
		return reqstate.Outcome{Wait: time.Duration(elapsedMs+6) * time.Millisecond}
	}

	return tryExtract(c)
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// tryExtract looks for the password line's terminator and, once found,
// performs the handshake rewrite described at spec.md §4.7.
func tryExtract(c *reqstate.Client) reqstate.Outcome {
	buf := c.SharedBytes()

	idx := bytes.IndexAny(buf, "\r\n")
	if idx < 0 {
		return reqstate.Outcome{Wait: 100 * time.Millisecond}
	}

	password := string(buf[:idx])
	rest := trimLineTerminator(buf[idx:])

	mount := c.Attrs.ShoutcastMount
	if mount == "" {
		mount = "/"
	}

	auth := base64.StdEncoding.EncodeToString([]byte("source:" + password))
	synth := "SOURCE " + mount + " HTTP/1.0\r\nAuthorization: Basic " + auth + "\r\n"
	synthesized := append([]byte(synth), rest...)

	c.ResetShared(synthesized)
	c.TransitionTo(reqstate.RequestRead)

	resp := connio.NewBufs()
	resp.Append([]byte(ackResponse))
	return reqstate.Outcome{Response: resp}
}

// trimLineTerminator consumes one line terminator (\r\n, bare \r, or bare
// \n) from the front of b, tolerating whichever the client actually sent —
// the Shoutcast handshake predates any of the three HTTP terminator
// variants spec.md §4.6 accepts for the header block proper.
func trimLineTerminator(b []byte) []byte {
	if len(b) == 0 {
		return b
	}
	if b[0] == '\r' {
		if len(b) > 1 && b[1] == '\n' {
			return b[2:]
		}
		return b[1:]
	}
	return b[1:]
}
