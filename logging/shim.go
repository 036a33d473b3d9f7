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

package logging

import "github.com/sirupsen/logrus"

type shim struct {
	entry *logrus.Entry
}

func (s *shim) SetLevel(lvl Level) {
	s.entry.Logger.SetLevel(lvl.logrus())
}

func (s *shim) WithFields(f Fields) Logger {
	return &shim{entry: s.entry.WithFields(logrus.Fields(f))}
}

func (s *shim) Debugf(format string, args ...interface{}) { s.entry.Debugf(format, args...) }
func (s *shim) Infof(format string, args ...interface{})  { s.entry.Infof(format, args...) }
func (s *shim) Warnf(format string, args ...interface{})  { s.entry.Warnf(format, args...) }
func (s *shim) Errorf(format string, args ...interface{}) { s.entry.Errorf(format, args...) }
