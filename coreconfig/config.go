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

// Package coreconfig defines the configuration snapshot the connection
// front-end consumes (spec.md §1 treats the config store itself as an
// external collaborator; this is the shape of the snapshot it hands over).
// Population of the snapshot — file loading, env binding, hot-reloading the
// snapshot itself — is out of scope: only the filter-store files are
// reloaded by this core (spec.md §4.3). Struct tags mirror the teacher's
// httpserver.Config: mapstructure/json/yaml field names plus go-playground
// validator rules.
package coreconfig

import (
	"time"

	"streamfront/filterstore"
	"streamfront/listener"

	"github.com/go-playground/validator/v10"
)

// AliasConfig is one entry of the alias table spec.md §4.8 consults: the
// first alias whose SourceURI matches the request URI wins, optionally
// overriding the destination port/bind-address used to pick a listener
// attachment.
type AliasConfig struct {
	SourceURI   string `mapstructure:"source-uri" json:"source_uri" yaml:"source_uri" validate:"required"`
	DestURI     string `mapstructure:"dest-uri" json:"dest_uri" yaml:"dest_uri" validate:"required"`
	Port        int    `mapstructure:"port" json:"port,omitempty" yaml:"port,omitempty"`
	BindAddress string `mapstructure:"bind-address" json:"bind_address,omitempty" yaml:"bind_address,omitempty"`
}

// Config is the full configuration snapshot: every recognized key from
// spec.md §6 in one struct.
type Config struct {
	Listeners []listener.Config `mapstructure:"listeners" json:"listeners" yaml:"listeners" validate:"required,min=1,dive"`

	Filters filterstore.Config `mapstructure:"filters" json:"filters" yaml:"filters"`

	HeaderTimeout time.Duration `mapstructure:"header-timeout" json:"header_timeout" yaml:"header_timeout" validate:"required"`
	ClientLimit   int           `mapstructure:"client-limit" json:"client_limit" yaml:"client_limit" validate:"gte=0"`

	// NewConnSlowdown, when > 0, is a multiplier applied to a short sleep
	// the accept loop inserts per accepted connection when the worker pool
	// signals back-pressure (spec.md §4.5 "configurable new connections
	// slowdown multiplier").
	NewConnSlowdown float64 `mapstructure:"new-conn-slowdown" json:"new_conn_slowdown,omitempty" yaml:"new_conn_slowdown,omitempty"`

	AdminUser     string `mapstructure:"admin-user" json:"admin_user" yaml:"admin_user"`
	AdminPassword string `mapstructure:"admin-password" json:"admin_password" yaml:"admin_password"`

	RelayUser     string `mapstructure:"relay-user" json:"relay_user,omitempty" yaml:"relay_user,omitempty"`
	RelayPassword string `mapstructure:"relay-password" json:"relay_password,omitempty" yaml:"relay_password,omitempty"`

	SourcePassword string `mapstructure:"source-password" json:"source_password" yaml:"source_password"`
	IceLogin       bool   `mapstructure:"ice-login" json:"ice_login,omitempty" yaml:"ice_login,omitempty"`

	XForward []string `mapstructure:"xforward" json:"xforward,omitempty" yaml:"xforward,omitempty"`

	Aliases []AliasConfig `mapstructure:"aliases" json:"aliases,omitempty" yaml:"aliases,omitempty" validate:"dive"`

	// AccessLogExcludeExt is the parsed form of access-log.exclude-ext: a
	// space-separated list in the file, split once at load time.
	AccessLogExcludeExt []string `mapstructure:"access-log-exclude-ext" json:"access_log_exclude_ext,omitempty" yaml:"access_log_exclude_ext,omitempty"`
}

var validate = validator.New()

// Validate runs struct-tag validation over the snapshot, the same
// go-playground/validator entry point the teacher's httpserver.Config uses
// before accepting a configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return ErrorValidate.ErrorParent(err)
	}
	return nil
}

// IsTrustedForwarder reports whether peerIP is listed in XForward, the gate
// spec.md §4.8 / §8 property 9 requires before honoring X-Forwarded-For.
func (c *Config) IsTrustedForwarder(peerIP string) bool {
	for _, ip := range c.XForward {
		if ip == peerIP {
			return true
		}
	}
	return false
}
