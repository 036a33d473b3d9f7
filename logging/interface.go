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

// Package logging provides the structured logger used across the connection
// front-end. It is a thin wrapper over logrus: the front-end only needs
// leveled messages with a handful of well-known fields (connection id, peer
// IP, listener name) attached, not the full sink-fan-out framework a
// general-purpose service library would carry.
package logging

import "github.com/sirupsen/logrus"

// Level mirrors the handful of severities the front-end actually emits.
// Kept distinct from logrus.Level so callers depend on our contract, not
// logrus's, even though the concrete implementation below is a thin shim.
type Level uint8

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) logrus() logrus.Level {
	switch l {
	case DebugLevel:
		return logrus.DebugLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Fields is a set of structured key/value pairs attached to a log line.
type Fields map[string]interface{}

// Logger is the logging contract consumed by every package in this module.
// A nil Logger is never passed around; callers that have none use NewNop.
type Logger interface {
	SetLevel(lvl Level)
	WithFields(f Fields) Logger
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// New returns a Logger backed by a fresh logrus.Logger writing text output.
func New() Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &shim{entry: logrus.NewEntry(l)}
}

// NewNop returns a Logger that discards everything. Useful as a default
// collaborator in tests and in cmd/coreserver when no sink is configured.
func NewNop() Logger {
	l := logrus.New()
	l.SetOutput(discard{})
	return &shim{entry: logrus.NewEntry(l)}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
