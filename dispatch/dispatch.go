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

// Package dispatch implements the terminal-dispatcher layer spec.md §4.8
// describes: thin routing functions that take a client already classified
// by reqstate.Machine and route it to whichever external handler
// collaborator owns the request from here, after URI normalization,
// FLV-hint detection, access-log exclusion tagging, X-Forwarded-For
// substitution, alias rewriting, and the global client-limit gate.
package dispatch

import (
	"path"
	"strings"

	"streamfront/connio"
	"streamfront/coreconfig"
	"streamfront/reqstate"
)

// GetHandler is the external "listener-attach" collaborator that serves a
// GET/HEAD request once routing has decided it is not an admin path.
type GetHandler interface {
	ServeGet(c *reqstate.Client, uri, peerIP string)
}

// AdminHandler serves requests under /admin.cgi or /admin/*.
type AdminHandler interface {
	ServeAdmin(c *reqstate.Client, uri, peerIP string)
}

// SourceHandler serves an accepted SOURCE/PUT ingest.
type SourceHandler interface {
	ServeSource(c *reqstate.Client, uri, peerIP string)
}

// FileServeHandler is the fileserve collaborator the Flash policy
// short-circuit routes to: it serves a canned on-disk document without any
// header parsing having happened.
type FileServeHandler interface {
	ServeFile(c *reqstate.Client, uri string)
}

// StatsHandler serves a STATS feed; slave is true when the request matched
// the relay credential on /admin/streams rather than the admin credential.
type StatsHandler interface {
	ServeStats(c *reqstate.Client, uri string, slave bool)
}

// ClientCounter reports the current count of attached clients for the
// global client-limit gate (spec.md §4.8); the worker pool collaborator
// that owns client lifetime is the natural implementer.
type ClientCounter interface {
	ClientCount() int
}

// Result is what a terminal dispatch function decided: either a handler
// was invoked and now owns the client's further I/O (Handled), or a canned
// reply must be written by the caller and the client torn down (Response
// non-nil, Handled false).
type Result struct {
	Handled  bool
	Response *connio.Bufs
}

// Dispatcher holds the collaborators and configuration snapshot the
// terminal-dispatch functions route through.
type Dispatcher struct {
	Config    *coreconfig.Store
	Get       GetHandler
	Admin     AdminHandler
	Source    SourceHandler
	Stats     StatsHandler
	FileServe FileServeHandler
	Counter   ClientCounter
	Auth      SourceAuthenticator
}

// NewDispatcher builds a Dispatcher. Any collaborator left nil is treated
// as "no handler wired yet": routing decisions still happen (flags get
// set, limits still apply) but the terminal call is simply skipped.
func NewDispatcher(cfg *coreconfig.Store) *Dispatcher {
	return &Dispatcher{Config: cfg}
}

// DispatchGet implements spec.md §4.8's GET/HEAD routing: normalize the
// URI, apply the FLV hint and access-log exclusion flags, substitute
// X-Forwarded-For when the peer is a trusted forwarder, rewrite through the
// alias table, then gate on the global client limit (admin paths are never
// rejected by the limit) before routing to admin or the listener-attach
// collaborator.
func (d *Dispatcher) DispatchGet(c *reqstate.Client, parsed reqstate.ParsedRequest, peerIP string, listenerPort int, bindAddress string) Result {
	cfg := d.Config.Get()
	uri := NormalizeURI(parsed.URI())

	if hasFLVHint(uri, parsed) {
		c.SetFlag(reqstate.FlagWantsFLV)
	}
	if isAccessLogExcluded(uri, cfg.AccessLogExcludeExt) {
		c.SetFlag(reqstate.FlagSkipAccessLog)
	}

	effectiveIP := d.effectivePeerIP(parsed, peerIP)

	if rewritten, ok := rewriteAlias(uri, cfg.Aliases, listenerPort, bindAddress); ok {
		uri = rewritten
	}

	admin := isAdminPath(uri)
	if !admin && cfg.ClientLimit > 0 && d.Counter != nil && d.Counter.ClientCount() > cfg.ClientLimit {
		c.SetResponseCode(403)
		return Result{Response: forbiddenResponse()}
	}

	if admin {
		if d.Admin != nil {
			d.Admin.ServeAdmin(c, uri, effectiveIP)
		}
		return Result{Handled: true}
	}
	if d.Get != nil {
		d.Get.ServeGet(c, uri, effectiveIP)
	}
	return Result{Handled: true}
}

// DispatchSource implements spec.md §4.8's SOURCE/PUT routing: the URI
// must start with "/", X-Forwarded-For is substituted under the same trust
// rule as GET, and the outcome of SourceAuthenticator selects attach,
// defer, or 401.
func (d *Dispatcher) DispatchSource(c *reqstate.Client, parsed reqstate.ParsedRequest, peerIP string) Result {
	uri := parsed.URI()
	if !strings.HasPrefix(uri, "/") {
		c.SetResponseCode(401)
		return Result{Response: unauthorizedResponse()}
	}

	effectiveIP := d.effectivePeerIP(parsed, peerIP)

	if d.Auth == nil {
		c.SetResponseCode(401)
		return Result{Response: unauthorizedResponse()}
	}

	switch d.Auth.Authenticate(parsed) {
	case AuthGranted:
		if d.Source != nil {
			d.Source.ServeSource(c, uri, effectiveIP)
		}
		return Result{Handled: true}
	case AuthPending:
		// The authenticator has taken ownership of the client itself and
		// will resume it once its own round trip completes.
		return Result{Handled: true}
	default:
		c.SetResponseCode(401)
		return Result{Response: unauthorizedResponse()}
	}
}

// DispatchStats implements spec.md §4.8's STATS routing: the admin
// credential attaches a full stats listener; failing that, the relay
// credential on exactly /admin/streams attaches a slave stats listener;
// failing that, the request falls through to a normal listener attach.
func (d *Dispatcher) DispatchStats(c *reqstate.Client, parsed reqstate.ParsedRequest, peerIP string) Result {
	cfg := d.Config.Get()
	uri := NormalizeURI(parsed.URI())

	auth, hasAuth := parsed.Header("Authorization")

	if hasAuth && VerifyHTTPBasic(auth, cfg.AdminUser, cfg.AdminPassword) {
		if d.Stats != nil {
			d.Stats.ServeStats(c, uri, false)
		}
		return Result{Handled: true}
	}
	if hasAuth && uri == "/admin/streams" && VerifyHTTPBasic(auth, cfg.RelayUser, cfg.RelayPassword) {
		if d.Stats != nil {
			d.Stats.ServeStats(c, uri, true)
		}
		return Result{Handled: true}
	}

	effectiveIP := d.effectivePeerIP(parsed, peerIP)
	if d.Get != nil {
		d.Get.ServeGet(c, uri, effectiveIP)
	}
	return Result{Handled: true}
}

// flashPolicyURI is the fixed document the Flash policy probe is served.
const flashPolicyURI = "/flashpolicy"

// DispatchFlashPolicy routes the Flash policy short-circuit to the
// fileserve collaborator. The request never passed through the parser, so
// there is no ParsedRequest here: the probe always resolves to the same
// canned document.
func (d *Dispatcher) DispatchFlashPolicy(c *reqstate.Client) Result {
	if d.FileServe != nil {
		d.FileServe.ServeFile(c, flashPolicyURI)
	}
	return Result{Handled: true}
}

func (d *Dispatcher) effectivePeerIP(parsed reqstate.ParsedRequest, peerIP string) string {
	cfg := d.Config.Get()
	if !cfg.IsTrustedForwarder(peerIP) {
		return peerIP
	}
	if xff, ok := parsed.Header("X-Forwarded-For"); ok {
		if hop := firstForwardedHop(xff); hop != "" {
			return hop
		}
	}
	return peerIP
}

// NormalizeURI collapses repeated slashes and guarantees a leading "/",
// matching the "normalize URI" step spec.md §4.8 calls for before any
// further routing decision is made.
func NormalizeURI(uri string) string {
	if uri == "" {
		return "/"
	}
	if !strings.HasPrefix(uri, "/") {
		uri = "/" + uri
	}
	for strings.Contains(uri, "//") {
		uri = strings.ReplaceAll(uri, "//", "/")
	}
	return uri
}

// hasFLVHint implements spec.md §4.8's "extension .flv or query
// type=.flv|.fla sets WANTS_FLV" rule.
func hasFLVHint(uri string, parsed reqstate.ParsedRequest) bool {
	if strings.HasSuffix(strings.ToLower(uri), ".flv") {
		return true
	}
	if v, ok := parsed.Query("type"); ok {
		v = strings.ToLower(v)
		return v == ".flv" || v == ".fla"
	}
	return false
}

// isAccessLogExcluded matches the request's extension against the
// configured space-separated access-log.exclude-ext list (spec.md §6).
func isAccessLogExcluded(uri string, excludeExt []string) bool {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(uri), "."))
	if ext == "" {
		return false
	}
	for _, e := range excludeExt {
		if strings.EqualFold(strings.TrimPrefix(e, "."), ext) {
			return true
		}
	}
	return false
}

// firstForwardedHop returns the first comma-separated entry of an
// X-Forwarded-For header value, trimmed of surrounding whitespace.
func firstForwardedHop(xff string) string {
	parts := strings.SplitN(xff, ",", 2)
	return strings.TrimSpace(parts[0])
}

// rewriteAlias implements spec.md §4.8's "first match of (uri, optional
// port, optional bind address)" alias rule: an alias's Port/BindAddress of
// zero/empty matches any listener.
func rewriteAlias(uri string, aliases []coreconfig.AliasConfig, port int, bindAddress string) (string, bool) {
	for _, a := range aliases {
		if a.SourceURI != uri {
			continue
		}
		if a.Port != 0 && a.Port != port {
			continue
		}
		if a.BindAddress != "" && a.BindAddress != bindAddress {
			continue
		}
		return a.DestURI, true
	}
	return uri, false
}

func isAdminPath(uri string) bool {
	return uri == "/admin.cgi" || strings.HasPrefix(uri, "/admin/")
}

func forbiddenResponse() *connio.Bufs {
	b := connio.NewBufs()
	b.Append([]byte("HTTP/1.0 403 Forbidden\r\nContent-Length: 0\r\n\r\n"))
	return b
}

func unauthorizedResponse() *connio.Bufs {
	b := connio.NewBufs()
	b.Append([]byte("HTTP/1.0 401 Unauthorized\r\nContent-Length: 0\r\n\r\n"))
	return b
}
