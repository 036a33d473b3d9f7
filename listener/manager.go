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
	"sync"

	"streamfront/logging"
)

// Manager owns the set of open listening sockets (serversock[]/server_conn[]
// in spec.md §4.4 terms) and the two reconfiguration modes: unconditional
// close and retain-privileged close. All methods are safe for concurrent
// use; the accept loop only ever reads Listeners() from its own goroutine
// but Reload may be invoked from a different one (e.g. in response to a
// control.Reload event).
type Manager struct {
	mu   sync.RWMutex
	open []*ServerConn
	log  logging.Logger
}

// NewManager returns an empty Manager. Call Open to bring up the initial
// listener set from configuration.
func NewManager(log logging.Logger) *Manager {
	if log == nil {
		log = logging.NewNop()
	}
	return &Manager{log: log}
}

// Open opens one listening socket per entry in cfgs. A listener that fails
// to open (spec.md §7 ConfigFailure) is logged and skipped rather than
// aborting the whole pass: "never abort if at least one listener
// succeeds." Opened listeners are appended to the live set.
func (m *Manager) Open(cfgs []Config) []error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, cfg := range cfgs {
		sc, err := open(cfg)
		if err != nil {
			m.log.WithFields(logging.Fields{"listener": cfg.Name}).Warnf("listener: %v", err)
			errs = append(errs, err)
			continue
		}
		m.open = append(m.open, sc)
	}
	return errs
}

// Listeners returns a snapshot slice of the currently open listeners, safe
// to range over from the accept loop's readiness poll.
func (m *Manager) Listeners() []*ServerConn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ServerConn, len(m.open))
	copy(out, m.open)
	return out
}

// CloseAll closes every open listening socket unconditionally, the first of
// the two closing modes in spec.md §4.4.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sc := range m.open {
		if err := sc.drain(); err != nil {
			m.log.WithFields(logging.Fields{"listener": sc.cfg.Name}).Warnf("listener: %v", err)
		}
	}
	m.open = nil
}

// Drop removes sc from the live set and closes it immediately, without
// waiting for its refcount to drain. The accept loop calls this when a poll
// error (POLLERR/POLLHUP) is reported against sc's descriptor, compacting
// the listener array in place the way spec.md §4.5 describes for a
// listener that has gone bad.
func (m *Manager) Drop(sc *ServerConn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, o := range m.open {
		if o == sc {
			m.open = append(m.open[:i], m.open[i+1:]...)
			break
		}
	}
	_ = sc.close()
}

// ReloadRetainPrivileged applies the second closing mode: listeners bound
// to a privileged port (<1024) whose (port, bind-address) still appears in
// newCfgs are kept open and carried forward into the new set untouched
// (same file descriptor, per spec.md scenario S5); every other listener is
// closed. The non-retained entries of newCfgs are then opened fresh. The
// in-place compaction spec.md describes for the listener array is modeled
// here by simply rebuilding m.open from the retained-and-newly-opened set.
func (m *Manager) ReloadRetainPrivileged(newCfgs []Config) []error {
	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := make(map[string]bool, len(newCfgs))
	for _, c := range newCfgs {
		wanted[c.key()] = true
	}

	retained := make(map[string]*ServerConn, len(m.open))
	var kept []*ServerConn
	for _, sc := range m.open {
		if sc.cfg.privileged() && wanted[sc.cfg.key()] {
			retained[sc.cfg.key()] = sc
			kept = append(kept, sc)
			continue
		}
		if err := sc.drain(); err != nil {
			m.log.WithFields(logging.Fields{"listener": sc.cfg.Name}).Warnf("listener: %v", err)
		}
	}

	var errs []error
	for _, cfg := range newCfgs {
		if _, ok := retained[cfg.key()]; ok {
			continue
		}
		sc, err := open(cfg)
		if err != nil {
			m.log.WithFields(logging.Fields{"listener": cfg.Name}).Warnf("listener: %v", err)
			errs = append(errs, err)
			continue
		}
		kept = append(kept, sc)
	}

	m.open = kept
	return errs
}
