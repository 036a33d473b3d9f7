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
	"path/filepath"
	"strings"
	"time"
)

// entry is the tagged variant a cache-file line becomes: either a literal
// key held in an exact-match set, or a glob pattern held in a scanned list.
// A single struct with a kind flag, rather than two parallel entry types,
// keeps the match-or-sibling comparison in one place.
type entry struct {
	isGlob  bool
	pattern string
	expiry  int64 // unix seconds; 0 means permanent, only meaningful for ban entries
}

// isGlobPattern mirrors the file-format rule: a line containing '*', '?' or
// '[' is a glob, everything else is a literal.
func isGlobPattern(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

func (e entry) matches(key string) bool {
	if !e.isGlob {
		return e.pattern == key
	}
	ok, err := filepath.Match(e.pattern, key)
	return err == nil && ok
}

// expired reports whether e's expiry has passed as of now. Permanent
// entries (expiry == 0) are never expired.
func (e entry) expired(now time.Time) bool {
	return e.expiry > 0 && e.expiry <= now.Unix()
}

// stale reports whether e is a candidate for opportunistic eviction: it
// expired more than 60s ago. This is the "sibling observed during tree
// compare" rule from the design note, reframed as a predicate evaluated by
// the lookup walk rather than stashed in file-scoped state.
func (e entry) stale(now time.Time) bool {
	return e.expiry > 0 && e.expiry < now.Unix()-60
}
