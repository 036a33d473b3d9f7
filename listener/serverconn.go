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

package listener

import (
	"crypto/tls"
	"net"
	"sync/atomic"
	"time"
)

// ServerConn is one open listener: its socket, its resolved TLS config (if
// any), and a refcount of connections currently attached to it. Listener
// teardown waits for the refcount to reach zero (bounded — see drain).
type ServerConn struct {
	cfg      Config
	ln       *net.TCPListener
	tlsCfg   *tls.Config
	refcount int64
}

// Config returns the listener's configuration.
func (s *ServerConn) Config() Config { return s.cfg }

// TLSConfig returns the resolved TLS config, or nil if this listener is
// plaintext (either by configuration or because TLS setup was unavailable).
func (s *ServerConn) TLSConfig() *tls.Config { return s.tlsCfg }

// Listener returns the underlying TCP listener for Accept/readiness use.
func (s *ServerConn) Listener() *net.TCPListener { return s.ln }

// Fd returns the listening socket's raw file descriptor, used by the accept
// loop to build the pollfd set for its readiness poll (spec.md §4.1). The
// descriptor remains owned by the listener; SyscallConn's Control callback
// only inspects it, so polling it externally is safe while the listener
// stays open.
func (s *ServerConn) Fd() (int, error) {
	raw, err := s.ln.SyscallConn()
	if err != nil {
		return -1, err
	}
	var fd int
	cerr := raw.Control(func(f uintptr) { fd = int(f) })
	if cerr != nil {
		return -1, cerr
	}
	return fd, nil
}

// Acquire increments the refcount; the accept loop calls this once per
// accepted connection attached to this listener.
func (s *ServerConn) Acquire() { atomic.AddInt64(&s.refcount, 1) }

// Release decrements the refcount; called on client teardown.
func (s *ServerConn) Release() { atomic.AddInt64(&s.refcount, -1) }

// RefCount returns the current count of connections attached to this
// listener.
func (s *ServerConn) RefCount() int64 { return atomic.LoadInt64(&s.refcount) }

func open(cfg Config) (*ServerConn, error) {
	addr := net.JoinHostPort(cfg.BindAddress, itoaPort(cfg.Port))
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, ErrorListenFailed.ErrorParent(err)
	}

	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, ErrorListenFailed.ErrorParent(err)
	}

	if err := applySocketOptions(ln, cfg); err != nil {
		_ = ln.Close()
		return nil, ErrorListenFailed.ErrorParent(err)
	}

	var tlsCfg *tls.Config
	if cfg.TLS.Enabled() {
		tlsCfg, err = buildTLS(cfg)
		if err != nil {
			// TLS is optional and degrades gracefully: the listener stays
			// open and plaintext rather than failing the whole open pass.
			tlsCfg = nil
		}
	}

	return &ServerConn{cfg: cfg, ln: ln, tlsCfg: tlsCfg}, nil
}

// drainTimeout bounds how long drain (run by CloseAll and
// ReloadRetainPrivileged for each listener they close) waits on a listener
// with still-attached connections before giving up and closing the socket
// anyway; the caller logs a warning rather than hanging the reconfiguration
// path forever on a single stuck worker.
const drainTimeout = 5 * time.Second

func (s *ServerConn) close() error {
	return s.ln.Close()
}

// drain waits for RefCount to reach zero, up to drainTimeout, then closes
// regardless. Returns ErrorDrainTimeout (non-fatal: the socket is still
// closed) if the deadline was hit with connections still attached.
func (s *ServerConn) drain() error {
	deadline := time.Now().Add(drainTimeout)
	for s.RefCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	timedOut := s.RefCount() > 0
	if err := s.close(); err != nil {
		return err
	}
	if timedOut {
		return ErrorDrainTimeout.Error()
	}
	return nil
}
