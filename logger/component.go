// Copyright (c) 2024, The lbtlora Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// inherit marks a component that follows the global level.
const inherit = OffLevel - 1

// Component is a logger that tags every line with the name of a component
// (e.g. "radio", "mac") and may run at its own level.
type Component struct {
	name  string
	level Level
	zl    *zap.Logger
}

// Named returns a component logger that follows the global level.
func Named(name string) *Component {
	return &Component{name: name, level: inherit, zl: root().Named(name)}
}

// SetLevel overrides the global level for this component only.
func (c *Component) SetLevel(lv Level) {
	c.level = lv
}

func (c *Component) enabled(level Level) bool {
	if c.level == inherit {
		return Enabled(level)
	}
	return level <= c.level
}

// A nil component logs through the global logger.
func (c *Component) logf(level Level, template string, args []interface{}) {
	if c == nil {
		logf(level, template, args)
	} else if c.enabled(level) {
		emit(c.zl, level, format(template, args))
	}
}

func (c *Component) Tracef(format string, args ...interface{}) { c.logf(TraceLevel, format, args) }
func (c *Component) Debugf(format string, args ...interface{}) { c.logf(DebugLevel, format, args) }
func (c *Component) Infof(format string, args ...interface{})  { c.logf(InfoLevel, format, args) }
func (c *Component) Warnf(format string, args ...interface{})  { c.logf(WarnLevel, format, args) }
func (c *Component) Errorf(format string, args ...interface{}) { c.logf(ErrorLevel, format, args) }

func (c *Component) String() string {
	return fmt.Sprintf("logger(%s)", c.name)
}
