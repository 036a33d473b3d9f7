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
	"crypto/tls"
	"net"
	"strings"
	"sync"
	"time"
)

// Connection wraps one accepted socket with the bookkeeping the request and
// send paths need: a stable id, the resolved peer IP, an error latch, and
// whichever of net.Conn / *tls.Conn is actually in use.
type Connection struct {
	mu sync.Mutex

	id        uint64
	raw       net.Conn
	tlsConn   *tls.Conn
	peerIP    string
	listener  string
	connected time.Time
	errored   bool
}

// New attaches an accepted socket to a Connection, resolving and
// normalizing the peer IP and assigning the next monotonic id. c may
// already be a *tls.Conn when the listener wraps connections eagerly;
// PromoteTLS below handles wrapping one that started out plaintext.
func New(c net.Conn, listenerName string) *Connection {
	conn := &Connection{
		id:        NextID(),
		raw:       c,
		listener:  listenerName,
		connected: time.Now(),
	}
	conn.peerIP = stripV4InV6(hostOf(c.RemoteAddr()))
	if t, ok := c.(*tls.Conn); ok {
		conn.tlsConn = t
	}
	return conn
}

func hostOf(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

// PeerAddr returns the normalized host portion of addr: the port stripped
// and a single "::ffff:" IPv4-mapped prefix removed. Every peer-IP
// comparison in this module (filter store, X-Forwarded-For trust check)
// must go through this one normalization, whether or not a Connection has
// been allocated yet.
func PeerAddr(addr net.Addr) string {
	return stripV4InV6(hostOf(addr))
}

// stripV4InV6 removes a single "::ffff:" IPv4-mapped-IPv6 prefix, matching
// the normalization every peer-IP comparison (filter store, X-Forwarded-For
// trust check) in this module relies on.
func stripV4InV6(host string) string {
	const prefix = "::ffff:"
	if strings.HasPrefix(host, prefix) {
		return strings.TrimPrefix(host, prefix)
	}
	return host
}

// ID returns the connection's monotonic identifier.
func (c *Connection) ID() uint64 { return c.id }

// PeerIP returns the normalized peer address.
func (c *Connection) PeerIP() string { return c.peerIP }

// ListenerName returns the name of the listener this connection arrived on.
func (c *Connection) ListenerName() string { return c.listener }

// IsTLS reports whether this connection is wrapped in TLS.
func (c *Connection) IsTLS() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tlsConn != nil
}

// PromoteTLS replaces the raw connection with its TLS-wrapped form once the
// handshake has completed, for TLS wrapping that happens after accept
// rather than at the socket layer. Nothing in this module calls it: the
// accept loop wraps with tls.Server before calling New.
func (c *Connection) PromoteTLS(t *tls.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tlsConn = t
	c.raw = t
}

// Errored reports whether a non-recoverable socket error has been latched.
func (c *Connection) Errored() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errored
}

func (c *Connection) setErrored() {
	c.mu.Lock()
	c.errored = true
	c.mu.Unlock()
}

// Close closes the underlying socket.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.raw.Close()
}

// SetDeadline forwards to the underlying connection, used by the
// request-read and Shoutcast password-read steps to bound per-operation
// blocking time.
func (c *Connection) SetDeadline(t time.Time) error {
	return c.raw.SetDeadline(t)
}

// Read forwards to the underlying connection.
func (c *Connection) Read(p []byte) (int, error) {
	return c.raw.Read(p)
}

// Send writes v starting at byte offset skip. Over plaintext it issues a
// single writev-equivalent call (net.Buffers.WriteTo, which the runtime
// implements with writev on platforms that support it); over TLS there is
// no vectored write, so it writes each entry in turn and stops at the
// first short write, consistent with the spec's "over TLS, writes vectors
// sequentially, stopping on any short write" contract. Both paths return
// the number of bytes sent, or -1 with the error flag latched on a
// non-recoverable socket error.
func (c *Connection) Send(v *Bufs, skip int) (int, error) {
	bufs, restore := v.netBufs(skip)
	defer restore()

	if len(bufs) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	isTLS := c.tlsConn != nil
	c.mu.Unlock()

	if isTLS {
		return c.sendSequential(bufs)
	}
	return c.sendVectored(bufs)
}

func (c *Connection) sendVectored(bufs [][]byte) (int, error) {
	nb := net.Buffers(bufs)
	n, err := nb.WriteTo(c.raw)
	if err != nil {
		if isRecoverable(err) {
			return int(n), err
		}
		c.setErrored()
		return -1, err
	}
	return int(n), nil
}

func (c *Connection) sendSequential(bufs [][]byte) (int, error) {
	total := 0
	for _, b := range bufs {
		if len(b) == 0 {
			continue
		}
		n, err := c.raw.Write(b)
		total += n
		if err != nil {
			if isRecoverable(err) {
				return total, err
			}
			c.setErrored()
			return -1, err
		}
		if n < len(b) {
			// Short write over TLS: stop here, caller resumes with an
			// updated skip on the next call.
			return total, nil
		}
	}
	return total, nil
}

func isRecoverable(err error) bool {
	var ne net.Error
	if ok := asNetError(err, &ne); ok {
		return ne.Timeout()
	}
	return false
}

func asNetError(err error, target *net.Error) bool {
	if ne, ok := err.(net.Error); ok {
		*target = ne
		return true
	}
	return false
}
