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

// Package acceptloop implements the single dedicated accept thread spec.md
// §4.1 and §4.5 describe: one readiness poll over every open listener,
// 333ms at a time, accepting whatever is ready, running it through the IP
// filter and per-connection socket options, allocating a reqstate.Client,
// and handing it to a worker pool collaborator. It never does client I/O
// itself; that happens in the worker once a Client is enqueued.
package acceptloop

import (
	"crypto/tls"
	"net"
	"time"

	"streamfront/connio"
	"streamfront/control"
	"streamfront/coreconfig"
	"streamfront/filterstore"
	"streamfront/listener"
	"streamfront/logging"
	"streamfront/reqstate"

	"golang.org/x/sys/unix"
)

// pollTimeout is the readiness poll's per-iteration bound (spec.md §4.1:
// "a 333 ms timeout"). This port's control.Channel has no pollable signal
// descriptor (see that package's doc comment), so the spec's alternate 4s
// timeout for "a signal descriptor present" never applies here: control
// events are instead picked up by a non-blocking channel check once per
// iteration, which this fixed 333ms bound already keeps responsive.
const pollTimeout = 333 * time.Millisecond

// Worker is the external collaborator that owns a Client once the accept
// loop has finished admission and handoff; spec.md §5's "separate worker
// pool" and "no client-side I/O runs inside the accept thread".
type Worker interface {
	Enqueue(c *reqstate.Client)
}

// Backpressure is an optional collaborator a Worker may also implement to
// signal that the configured "new connections slowdown" sleep should be
// applied (spec.md §4.5). Left unimplemented, no slowdown is ever applied
// regardless of NewConnSlowdown.
type Backpressure interface {
	Backpressure() bool
}

// Loop owns the accept thread's state: the listener set, the filter store,
// the live configuration snapshot, the control channel, and the worker
// handoff.
type Loop struct {
	Manager *listener.Manager
	Filters *filterstore.Store
	Config  *coreconfig.Store
	Control control.Channel
	Worker  Worker
	Log     logging.Logger

	// Reload, if set, is invoked whenever a control.Reload event arrives;
	// wired by cmd/coreserver to re-read listener/filter configuration.
	Reload func()
}

func (l *Loop) log() logging.Logger {
	if l.Log == nil {
		return logging.NewNop()
	}
	return l.Log
}

// Run drives the accept loop until a control.Terminate event arrives or the
// control channel is closed. It is meant to run on its own goroutine for
// the lifetime of the process (spec.md §5: "one dedicated accept thread").
func (l *Loop) Run() {
	l.log().Infof("accept loop starting")
	for {
		if stop := l.drainControl(); stop {
			l.log().Infof("accept loop terminating")
			return
		}
		l.pollOnce()
	}
}

// drainControl non-blockingly processes any pending control events and
// reports whether the loop should stop.
func (l *Loop) drainControl() bool {
	if l.Control == nil {
		return false
	}
	for {
		select {
		case ev, ok := <-l.Control.Events():
			if !ok {
				return true
			}
			switch ev {
			case control.Terminate:
				return true
			case control.Reload:
				if l.Reload != nil {
					l.Reload()
				}
			}
		default:
			return false
		}
	}
}

// pollOnce runs exactly one readiness poll over the current listener set
// and services whichever listeners came back ready or errored, per the
// sequence spec.md §4.1/§4.5 give for each iteration.
func (l *Loop) pollOnce() {
	conns := l.Manager.Listeners()
	if len(conns) == 0 {
		time.Sleep(pollTimeout)
		return
	}

	fds := make([]unix.PollFd, 0, len(conns))
	live := make([]*listener.ServerConn, 0, len(conns))
	for _, sc := range conns {
		fd, err := sc.Fd()
		if err != nil {
			l.log().WithFields(logging.Fields{"listener": sc.Config().Name}).Warnf("accept loop: %v", err)
			continue
		}
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
		live = append(live, sc)
	}
	if len(fds) == 0 {
		time.Sleep(pollTimeout)
		return
	}

	n, err := unix.Poll(fds, int(pollTimeout/time.Millisecond))
	if err != nil {
		if err == unix.EINTR {
			return
		}
		l.log().Warnf("accept loop: poll: %v", err)
		return
	}
	if n == 0 {
		return
	}

	for i, pfd := range fds {
		sc := live[i]
		if pfd.Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			l.log().WithFields(logging.Fields{"listener": sc.Config().Name}).Warnf("accept loop: listener poll error, dropping")
			l.Manager.Drop(sc)
			continue
		}
		if pfd.Revents&unix.POLLIN != 0 {
			l.accept(sc)
		}
	}
}

// accept implements spec.md §4.5's per-connection admission sequence: IP
// filter, socket options, Client allocation, registration, initial-state
// selection (handled by reqstate.NewClient itself), and worker handoff,
// followed by the configurable slowdown sleep.
func (l *Loop) accept(sc *listener.ServerConn) {
	tcpConn, err := sc.Listener().AcceptTCP()
	if err != nil {
		return
	}

	peerIP := connio.PeerAddr(tcpConn.RemoteAddr())
	if l.Filters.IsBanned(peerIP) || !l.Filters.IsAllowed(peerIP) {
		_ = tcpConn.Close()
		return
	}

	_ = tcpConn.SetNoDelay(true)

	var conn net.Conn = tcpConn
	tlsCfg := sc.TLSConfig()
	if tlsCfg != nil {
		conn = tls.Server(tcpConn, tlsCfg)
	}

	cfg := sc.Config()
	cio := connio.New(conn, cfg.Name)
	attrs := reqstate.ListenerAttrs{
		Name:            cfg.Name,
		TLSEnabled:      tlsCfg != nil,
		ShoutcastCompat: cfg.ShoutcastCompat,
		ShoutcastMount:  cfg.ShoutcastMount,
	}

	now := time.Now()
	headerTimeout := l.Config.Get().HeaderTimeout
	client := reqstate.NewClient(cio, attrs, now, headerTimeout)

	l.log().WithFields(logging.Fields{
		"trace_id": client.TraceID.String(),
		"peer_ip":  peerIP,
		"listener": cfg.Name,
	}).Debugf("accept loop: accepted connection %d", cio.ID())

	sc.Acquire()
	client.ReleaseListener = sc.Release
	if l.Worker != nil {
		l.Worker.Enqueue(client)
	}

	l.applySlowdown()
}

// applySlowdown implements spec.md §4.5's "configurable new connections
// slowdown multiplier inserts a sleep when back-pressure is requested":
// the multiplier is only ever applied when the worker opts in by
// implementing Backpressure and currently reports true.
func (l *Loop) applySlowdown() {
	cfg := l.Config.Get()
	if cfg.NewConnSlowdown <= 0 {
		return
	}
	bp, ok := l.Worker.(Backpressure)
	if !ok || !bp.Backpressure() {
		return
	}
	time.Sleep(time.Duration(cfg.NewConnSlowdown * float64(time.Millisecond)))
}
