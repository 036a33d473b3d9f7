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

package dispatch

import (
	"encoding/base64"
	"strings"

	"streamfront/logging"
	"streamfront/reqstate"
)

// sourceAuthUser is the fixed username HTTP Basic auth expects on the
// SOURCE/PUT path; the Shoutcast translator (package shoutcast) encodes the
// same literal user when it synthesizes its Basic auth header, so the two
// packages must agree on it.
const sourceAuthUser = "source"

// VerifyHTTPBasic implements the first of the three spec.md §4.9 verifiers:
// it tolerates an optional "Basic " prefix, base64-decodes the remainder,
// splits on the first colon, and compares both fields. A missing colon
// fails closed rather than panicking.
func VerifyHTTPBasic(header, user, password string) bool {
	raw := strings.TrimSpace(header)
	raw = strings.TrimPrefix(raw, "Basic ")
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return false
	}
	idx := strings.IndexByte(string(decoded), ':')
	if idx < 0 {
		return false
	}
	gotUser, gotPass := string(decoded[:idx]), string(decoded[idx+1:])
	return gotUser == user && gotPass == password
}

// VerifyICY compares the icy-password header field directly; the ICY
// protocol carries no username, only a shared source password.
func VerifyICY(headerValue, password string) bool {
	return headerValue != "" && headerValue == password
}

// VerifyIcePassword implements the deprecated legacy ice-password header
// check. Spec.md §4.9 calls for a warning log on success since this path
// predates both HTTP Basic and ICY and exists only for old encoders.
func VerifyIcePassword(headerValue, password string, log logging.Logger) bool {
	if headerValue == "" || headerValue != password {
		return false
	}
	if log != nil {
		log.Warnf("accepted legacy ice-password header on source auth")
	}
	return true
}

// AuthResult is the tri-state result spec.md §4.8 names for the SOURCE/PUT
// auth path: granted (attach immediately), pending (the collaborator has
// taken ownership of the client and will resume it itself once its own
// check completes), or denied (reply 401).
type AuthResult int

const (
	AuthGranted AuthResult = iota
	AuthPending
	AuthDenied
)

// SourceAuthenticator is the external collaborator spec.md §1 calls "the
// authentication ... module[s] (consumed as terminal handlers taking a
// client)": given the classified SOURCE/PUT request, it decides whether to
// grant, defer, or deny the attach. DefaultAuthenticator implements it
// using the three synchronous §4.9 helpers above; a caller needing
// asynchronous auth (an external credential database) supplies its own and
// returns AuthPending while it works.
type SourceAuthenticator interface {
	Authenticate(parsed reqstate.ParsedRequest) AuthResult
}

// DefaultAuthenticator implements SourceAuthenticator using the
// configured source password, selecting ICY vs. HTTP Basic (with optional
// legacy ice-password fallback) per request from the parsed protocol
// token: "if protocol is ICY, use ICY; otherwise HTTP Basic with optional
// fallback to legacy ice-password when configured."
type DefaultAuthenticator struct {
	SourcePassword string
	IceLogin       bool
	Log            logging.Logger
}

// Authenticate never returns AuthPending: every check here is a
// synchronous comparison against the configured password.
func (d DefaultAuthenticator) Authenticate(parsed reqstate.ParsedRequest) AuthResult {
	if parsed.Protocol() == "ICY" {
		v, _ := parsed.Header("icy-password")
		if VerifyICY(v, d.SourcePassword) {
			return AuthGranted
		}
		return AuthDenied
	}

	if v, ok := parsed.Header("Authorization"); ok && VerifyHTTPBasic(v, sourceAuthUser, d.SourcePassword) {
		return AuthGranted
	}
	if d.IceLogin {
		if v, ok := parsed.Header("ice-password"); ok && VerifyIcePassword(v, d.SourcePassword, d.Log) {
			return AuthGranted
		}
	}
	return AuthDenied
}
