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
	"streamfront/connio"
	"streamfront/logging"
	"streamfront/reqstate"
)

// logHandlers implements dispatch.GetHandler, AdminHandler, SourceHandler
// and StatsHandler by writing a short canned reply and closing the
// connection. A real deployment replaces every method here with the
// listener-attach, admin, source-ingest and stats-feed logic spec.md names
// as out-of-scope external collaborators; this stub exists only so
// Dispatcher has something non-nil to route to in this example.
type logHandlers struct {
	log logging.Logger
}

func textReply(status, body string) *connio.Bufs {
	b := connio.NewBufs()
	b.Append([]byte("HTTP/1.0 " + status + "\r\nContent-Type: text/plain\r\nConnection: close\r\n\r\n" + body))
	return b
}

func (h logHandlers) ServeGet(c *reqstate.Client, uri, peerIP string) {
	h.log.Infof("coreserver: GET %s from %s (no listener-attach collaborator configured)", uri, peerIP)
	c.SetResponseCode(503)
	c.Conn.Send(textReply("503 Service Unavailable", "no stream attached to this mount\n"), 0)
}

func (h logHandlers) ServeAdmin(c *reqstate.Client, uri, peerIP string) {
	h.log.Infof("coreserver: ADMIN %s from %s (no admin collaborator configured)", uri, peerIP)
	c.SetResponseCode(501)
	c.Conn.Send(textReply("501 Not Implemented", "admin UI not wired in this build\n"), 0)
}

func (h logHandlers) ServeSource(c *reqstate.Client, uri, peerIP string) {
	h.log.Infof("coreserver: SOURCE %s from %s accepted (discarding ingest, no relay configured)", uri, peerIP)
	c.SetResponseCode(200)
	c.Conn.Send(textReply("200 OK", ""), 0)
}

// flashPolicyDoc is the permissive cross-domain policy the Flash probe
// short-circuit answers with in this example; a real deployment serves its
// own /flashpolicy document from disk through the fileserve collaborator.
const flashPolicyDoc = `<?xml version="1.0"?><cross-domain-policy><allow-access-from domain="*" to-ports="*" /></cross-domain-policy>` + "\x00"

func (h logHandlers) ServeFile(c *reqstate.Client, uri string) {
	h.log.Infof("coreserver: file-serve %s", uri)
	c.SetResponseCode(200)
	b := connio.NewBufs()
	b.Append([]byte(flashPolicyDoc))
	c.Conn.Send(b, 0)
}

func (h logHandlers) ServeStats(c *reqstate.Client, uri string, slave bool) {
	h.log.Infof("coreserver: STATS %s (slave=%v, no stats collaborator configured)", uri, slave)
	c.SetResponseCode(200)
	c.Conn.Send(textReply("200 OK", "{}\n"), 0)
}
