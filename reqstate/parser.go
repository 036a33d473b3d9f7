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

package reqstate

// ParsedRequest is the opaque result spec.md §1 names as an external
// collaborator's output: "the HTTP header parser (consumed as an opaque
// parser returning header/query/request-type fields)". This core never
// looks inside a parsed request beyond these accessors.
type ParsedRequest interface {
	// Method returns the request verb, upper-cased (GET, SOURCE, ...).
	Method() string
	// Protocol returns the declared protocol token: "HTTP" or "ICE".
	Protocol() string
	// Version returns the protocol version string (e.g. "1.1", "1.0").
	Version() string
	// URI returns the request-target as given on the request line.
	URI() string
	// Header looks up a header field case-insensitively.
	Header(name string) (string, bool)
	// Query looks up a query-string parameter from the request-target.
	Query(name string) (string, bool)
}

// Parser turns a raw header block (already terminated, per spec.md §4.6)
// into a ParsedRequest. A parse failure is spec.md §7's ParseFailure kind.
type Parser interface {
	Parse(raw []byte) (ParsedRequest, error)
}

// UserAgentFilter is the subset of filterstore.Store the state machine
// needs; declared locally so reqstate only depends on the method it
// actually calls, matching the rest of this module's "consume the opaque
// collaborator contract, not the concrete type" style where the spec calls
// for it.
type UserAgentFilter interface {
	IsAgentDenied(ua string) bool
}
