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

package filterstore

import (
	"bufio"
	"os"
	"strings"
	"sync"
	"time"
)

// banExtendWindow is how close to expiry a match must be before it gets
// extended; banExtendTo is what it is extended to. Preserved as the
// open-ended "prevent flapping or extend unboundedly" behavior the source
// exhibits: every match within the window pushes expiry to now+300 again,
// so a steadily-retrying abuser stays banned indefinitely. See DESIGN.md.
const (
	banExtendWindow = 300 * time.Second
	banExtendTo     = 300 * time.Second
	staleAge        = 60 * time.Second
)

// cacheFile is one reloadable filter file: a literal-key set plus a glob
// list, refreshed when the backing file's mtime advances. path == "" means
// there is no backing file (e.g. a ban list populated purely at runtime);
// Lookup still works, it just never reloads.
type cacheFile struct {
	mu       sync.Mutex
	path     string
	hasExpiry bool // true only for the ban file: entries carry a TTL
	mtime    time.Time
	literals map[string]*entry
	globs    []*entry
}

func newCacheFile(path string, hasExpiry bool) *cacheFile {
	return &cacheFile{
		path:      path,
		hasExpiry: hasExpiry,
		literals:  make(map[string]*entry),
	}
}

// reloadLocked checks the backing file's mtime and reparses it if changed.
// Callers must hold mu. A missing path or missing file is not an error:
// the cache simply stays as last loaded (or empty).
func (c *cacheFile) reloadLocked() error {
	if c.path == "" {
		return nil
	}

	info, err := os.Stat(c.path)
	if err != nil {
		return nil
	}
	if !info.ModTime().After(c.mtime) {
		return nil
	}

	f, err := os.Open(c.path)
	if err != nil {
		return err
	}
	defer f.Close()

	literals := make(map[string]*entry)
	var globs []*entry

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		e := &entry{isGlob: isGlobPattern(line), pattern: line}
		if e.isGlob {
			globs = append(globs, e)
		} else {
			literals[line] = e
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}

	c.literals = literals
	c.globs = globs
	c.mtime = info.ModTime()
	return nil
}

// lookupResult is the structured outcome of a single lookup pass: whether
// key matched, and (for ban files) whether a stale sibling was noticed
// along the way and should be evicted. Replaces the source's file-scoped
// eviction-target global with a plain return value.
type lookupResult struct {
	matched    bool
	staleKey   string
	staleFound bool
}

// lookup searches globs first (linear scan, matching file order), then the
// literal set, reloading the backing file first if its mtime advanced.
// For ban files it also extends a near-expiry match and flags at most one
// stale sibling for opportunistic eviction.
func (c *cacheFile) lookup(key string, now time.Time) lookupResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.reloadLocked()

	var res lookupResult

	for _, g := range c.globs {
		if g.matches(key) {
			res.matched = true
		}
	}

	for lit, e := range c.literals {
		if c.hasExpiry && !res.staleFound && e.stale(now) && lit != key {
			res.staleKey = lit
			res.staleFound = true
		}
	}

	if e, ok := c.literals[key]; ok {
		if c.hasExpiry && e.expired(now) {
			delete(c.literals, key)
		} else {
			res.matched = true
			if c.hasExpiry && e.expiry > 0 && time.Unix(e.expiry, 0).Sub(now) < banExtendWindow {
				e.expiry = now.Add(banExtendTo).Unix()
			}
		}
	}

	if res.staleFound {
		delete(c.literals, res.staleKey)
	}

	return res
}

// insert adds or replaces a literal entry, used for runtime-added bans
// (e.g. an admin action) rather than ones that came from the file.
func (c *cacheFile) insert(key string, expiry time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var exp int64
	if !expiry.IsZero() {
		exp = expiry.Unix()
	}
	c.literals[key] = &entry{pattern: key, expiry: exp}
}

// sweep removes every literal entry expired by more than staleAge,
// independent of any lookup. Exposed as the batch counterpart to
// lookup's opportunistic single-entry eviction, for callers (e.g. a
// periodic maintenance tick) that want to bound memory without waiting
// for matching traffic.
func (c *cacheFile) sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	cutoff := now.Add(-staleAge)
	for k, e := range c.literals {
		if e.expiry > 0 && e.expiry <= cutoff.Unix() {
			delete(c.literals, k)
			removed++
		}
	}
	return removed
}
