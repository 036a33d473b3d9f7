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

// Package filterstore holds the three reloadable admission caches the
// accept loop consults on every accepted connection: a ban list, an allow
// list, and a user-agent deny list. Each is a set of literal keys plus a
// list of glob patterns, reloaded whenever its backing file's mtime
// advances.
package filterstore

import (
	"time"

	"streamfront/logging"

	"github.com/fsnotify/fsnotify"
)

// Config names the three backing files. Any of them may be empty, meaning
// that cache stays empty (ban: nothing is ever banned from file; allow:
// an empty allow list means "allow everyone", per spec semantics; agent:
// nothing is ever UA-denied).
type Config struct {
	BanFile   string `mapstructure:"ban-file" json:"ban_file" yaml:"ban_file"`
	AllowFile string `mapstructure:"allow-file" json:"allow_file" yaml:"allow_file"`
	AgentFile string `mapstructure:"agent-file" json:"agent_file" yaml:"agent_file"`
}

// Store is the live filter-store instance the accept loop and dispatch
// layer query. All methods are safe for concurrent use.
type Store struct {
	ban   *cacheFile
	allow *cacheFile
	agent *cacheFile

	watcher *fsnotify.Watcher
	log     logging.Logger
}

// New constructs a Store from cfg. It does not fail if the files do not
// yet exist: a missing file simply means that cache starts (and stays)
// empty until it appears.
func New(cfg Config, log logging.Logger) *Store {
	if log == nil {
		log = logging.NewNop()
	}
	return &Store{
		ban:   newCacheFile(cfg.BanFile, true),
		allow: newCacheFile(cfg.AllowFile, false),
		agent: newCacheFile(cfg.AgentFile, false),
		log:   log,
	}
}

// WatchFS installs an fsnotify watcher over the configured files as an
// additive, non-authoritative speedup: on a write event it proactively
// runs the same mtime-driven reload lookups would trigger anyway, so a
// change is picked up before the next lookup rather than only at it. It
// never replaces the mtime check in cacheFile.lookup, which remains the
// source of truth; if fsnotify is unavailable or fails to start, filtering
// keeps working exactly as before, just without the early nudge.
func (s *Store) WatchFS() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	for _, f := range []*cacheFile{s.ban, s.allow, s.agent} {
		if f.path == "" {
			continue
		}
		if err := w.Add(f.path); err != nil {
			s.log.WithFields(logging.Fields{"file": f.path}).Warnf("filterstore: watch failed: %v", err)
		}
	}

	s.watcher = w
	go s.watchLoop()
	return nil
}

func (s *Store) watchLoop() {
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			for _, f := range []*cacheFile{s.ban, s.allow, s.agent} {
				if f.path == ev.Name {
					f.mu.Lock()
					_ = f.reloadLocked()
					f.mu.Unlock()
				}
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warnf("filterstore: watch error: %v", err)
		}
	}
}

// Close stops the fsnotify watcher, if one was started.
func (s *Store) Close() {
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
}

// IsBanned reports whether ip matches the ban list. A match within 300s of
// expiry has its expiry extended; an expired entry is removed in place.
func (s *Store) IsBanned(ip string) bool {
	return s.ban.lookup(ip, time.Now()).matched
}

// IsAllowed reports whether ip is admissible under the allow list. Per
// spec semantics, an empty allow list admits everyone; a non-empty list
// admits only listed entries.
func (s *Store) IsAllowed(ip string) bool {
	now := time.Now()
	s.allow.mu.Lock()
	_ = s.allow.reloadLocked()
	empty := len(s.allow.literals) == 0 && len(s.allow.globs) == 0
	s.allow.mu.Unlock()
	if empty {
		return true
	}
	return s.allow.lookup(ip, now).matched
}

// IsAgentDenied reports whether the User-Agent string ua matches the
// agent-deny list.
func (s *Store) IsAgentDenied(ua string) bool {
	return s.agent.lookup(ua, time.Now()).matched
}

// Ban adds (or replaces) a runtime ban entry, e.g. from an admin action,
// independent of the backing file. ttl == 0 bans permanently.
func (s *Store) Ban(ip string, ttl time.Duration) {
	var expiry time.Time
	if ttl > 0 {
		expiry = time.Now().Add(ttl)
	}
	s.ban.insert(ip, expiry)
}

// Sweep runs the batch eviction pass over the ban list: every entry expired
// by more than 60s is removed, independent of matching traffic. Returns the
// number of entries removed.
func (s *Store) Sweep() int {
	return s.ban.sweep(time.Now())
}
