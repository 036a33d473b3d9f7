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

// Package tlsfront builds a *tls.Config from a listener's cert-file and
// cipher-list configuration. A listener marked TLS-enabled but missing a
// usable certificate degrades gracefully: it is reported as plaintext-only
// rather than failing the whole server, matching the front-end's "optional;
// absence degrades gracefully" treatment of TLS.
package tlsfront

import "crypto/tls"

// Config is the subset of a listener's TLS settings the front-end needs:
// a certificate/key pair on disk and an optional ordered cipher-suite list.
// mapstructure/json/yaml tags mirror the snapshot struct in coreconfig so
// this type can be embedded directly in a listener entry.
type Config struct {
	CertFile   string   `mapstructure:"cert-file" json:"cert_file" yaml:"cert_file"`
	KeyFile    string   `mapstructure:"key-file" json:"key_file" yaml:"key_file"`
	CipherList []string `mapstructure:"cipher-list" json:"cipher_list,omitempty" yaml:"cipher_list,omitempty"`
}

// Enabled reports whether enough has been configured to attempt a TLS load.
func (c Config) Enabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

// Build loads the certificate pair and resolves the cipher list into a
// *tls.Config ready to wrap a net.Listener. Returns (nil, nil) when c is
// not Enabled: callers treat that as "this listener stays plaintext", not
// as an error.
func Build(c Config) (*tls.Config, error) {
	if !c.Enabled() {
		return nil, nil
	}

	suites, err := resolveCiphers(c.CipherList)
	if err != nil {
		return nil, err
	}

	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		CipherSuites: suites,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
