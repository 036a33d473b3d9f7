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

package tlsfront

import (
	"crypto/tls"
	"fmt"
)

// resolveCiphers maps the configured cipher suite names onto the runtime's
// table of known suites (crypto/tls.CipherSuites, which already excludes
// the suites Go considers insecure). An empty list means "let crypto/tls
// pick its own default preference order".
func resolveCiphers(names []string) ([]uint16, error) {
	if len(names) == 0 {
		return nil, nil
	}

	byName := make(map[string]uint16, len(tls.CipherSuites()))
	for _, s := range tls.CipherSuites() {
		byName[s.Name] = s.ID
	}

	out := make([]uint16, 0, len(names))
	for _, n := range names {
		id, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("tlsfront: unknown or insecure cipher suite %q", n)
		}
		out = append(out, id)
	}
	return out, nil
}
