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

package coreconfig

import "sync/atomic"

// Store is the "locked snapshot interface" spec.md §1 names as an external
// collaborator: a holder of the current Config that readers across the
// accept loop, dispatch layer, and filter store can consult without racing
// a concurrent Reload. Swapping the pointer atomically gives readers a
// consistent snapshot without blocking on a mutex for the common read path.
type Store struct {
	cur atomic.Pointer[Config]
}

// NewStore returns a Store seeded with an already-validated cfg.
func NewStore(cfg *Config) *Store {
	s := &Store{}
	s.cur.Store(cfg)
	return s
}

// Get returns the current snapshot. Callers must not mutate it: Replace
// installs a new value rather than editing in place.
func (s *Store) Get() *Config {
	return s.cur.Load()
}

// Replace validates cfg and, if valid, installs it as the new snapshot.
// Used by the control.Reload path; the filter store's own file reload is
// independent of this (spec.md §4.3 reloads are mtime-driven, not tied to
// snapshot replacement).
func (s *Store) Replace(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.cur.Store(cfg)
	return nil
}
