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

// Package listener manages the set of listening sockets the accept loop
// polls: opening them from configuration, applying per-socket options, and
// closing them either unconditionally or while retaining privileged ports
// that still appear in a new configuration.
package listener

import (
	"strconv"

	"streamfront/tlsfront"
)

// Config describes one configured listener endpoint.
type Config struct {
	Name            string        `mapstructure:"name" json:"name" yaml:"name" validate:"required"`
	BindAddress     string        `mapstructure:"bind-address" json:"bind_address" yaml:"bind_address"`
	Port            int           `mapstructure:"port" json:"port" yaml:"port" validate:"required,min=1,max=65535"`
	Backlog         int           `mapstructure:"backlog" json:"backlog" yaml:"backlog"`
	SndBuf          int           `mapstructure:"snd-buf" json:"snd_buf,omitempty" yaml:"snd_buf,omitempty"`
	MSS             int           `mapstructure:"mss" json:"mss,omitempty" yaml:"mss,omitempty"`
	TLS             tlsfront.Config `mapstructure:"tls" json:"tls,omitempty" yaml:"tls,omitempty"`
	ShoutcastCompat bool          `mapstructure:"shoutcast-compat" json:"shoutcast_compat,omitempty" yaml:"shoutcast_compat,omitempty"`
	ShoutcastMount  string        `mapstructure:"shoutcast-mount" json:"shoutcast_mount,omitempty" yaml:"shoutcast_mount,omitempty"`
}

// privileged reports whether this listener binds a port below 1024, the
// threshold the retain-on-reconfigure close mode preserves.
func (c Config) privileged() bool {
	return c.Port > 0 && c.Port < 1024
}

func (c Config) key() string {
	return c.BindAddress + ":" + strconv.Itoa(c.Port)
}
