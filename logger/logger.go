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
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the log-level of the driver, the MAC layer and the tools.
type Level int8

const (
	TraceLevel   Level = 5
	DebugLevel   Level = 4
	InfoLevel    Level = 3
	WarnLevel    Level = 2
	ErrorLevel   Level = 1
	PanicLevel   Level = 0
	FatalLevel   Level = -1
	OffLevel     Level = -2
	MinLevel           = OffLevel
	DefaultLevel       = InfoLevel
)

// StdoutCallback is notified after the logger wrote to the terminal, so an interactive
// console can redraw its prompt.
type StdoutCallback interface {
	OnStdout()
}

// clearLine erases the console prompt before a log line is printed over it.
const clearLine = "\033[2K\r"

type sink struct {
	mu       sync.Mutex
	level    Level
	outputs  []string
	zl       *zap.Logger
	terminal bool
	onStdout StdoutCallback
}

var std = &sink{level: DefaultLevel, outputs: []string{"stderr"}}

func init() {
	if fi, err := os.Stdout.Stat(); err == nil {
		std.terminal = fi.Mode()&os.ModeCharDevice != 0
	}
	zl, err := buildZap(std.outputs)
	if err != nil {
		panic(err)
	}
	std.zl = zl
}

func buildZap(outputs []string) (*zap.Logger, error) {
	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapcore.DebugLevel),
		Encoding:         "console",
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:  "message",
			LevelKey:    "level",
			NameKey:     "logger",
			EncodeLevel: zapcore.LowercaseLevelEncoder,
			EncodeName:  zapcore.FullNameEncoder,
		},
	}
	return cfg.Build()
}

func zapLevel(lv Level) zapcore.Level {
	switch {
	case lv >= DebugLevel:
		return zapcore.DebugLevel
	case lv == InfoLevel:
		return zapcore.InfoLevel
	case lv == WarnLevel:
		return zapcore.WarnLevel
	case lv == ErrorLevel:
		return zapcore.ErrorLevel
	case lv == PanicLevel:
		return zapcore.PanicLevel
	default:
		return zapcore.FatalLevel
	}
}

// SetLevel sets the global log level.
func SetLevel(lv Level) {
	std.mu.Lock()
	std.level = lv
	std.mu.Unlock()
}

func GetLevel() Level {
	std.mu.Lock()
	defer std.mu.Unlock()
	return std.level
}

// Enabled reports whether messages at level pass the global level.
func Enabled(level Level) bool {
	return level <= GetLevel()
}

// SetStdoutCallback registers cb to be called after each line that reached the terminal.
func SetStdoutCallback(cb StdoutCallback) {
	std.mu.Lock()
	std.onStdout = cb
	std.mu.Unlock()
}

// SetOutput redirects the log to the given zap sinks, e.g. []string{"stderr", "gateway.log"}.
// Component loggers created before the call keep writing to the old sinks.
func SetOutput(outputs []string) {
	zl, err := buildZap(outputs)
	if err != nil {
		Errorf("log output %v: %v", outputs, err)
		return
	}
	std.mu.Lock()
	old := std.zl
	std.zl, std.outputs = zl, outputs
	std.mu.Unlock()
	_ = old.Sync()
}

// Sync flushes buffered log output.
func Sync() {
	std.mu.Lock()
	zl := std.zl
	std.mu.Unlock()
	_ = zl.Sync()
}

func root() *zap.Logger {
	std.mu.Lock()
	defer std.mu.Unlock()
	return std.zl
}

func format(template string, args []interface{}) string {
	switch {
	case len(args) == 0:
		return template
	case template != "":
		return fmt.Sprintf(template, args...)
	default:
		return fmt.Sprint(args...)
	}
}

func emit(zl *zap.Logger, level Level, msg string) {
	std.mu.Lock()
	cb, terminal := std.onStdout, std.terminal
	std.mu.Unlock()

	if terminal {
		_, _ = os.Stdout.WriteString(clearLine)
	}
	stamp := time.Now().Format("2006-01-02 15:04:05.000")
	if ce := zl.Check(zapLevel(level), stamp+" - "+msg); ce != nil {
		ce.Write()
	}
	if terminal && cb != nil {
		cb.OnStdout()
	}
}

func logf(level Level, template string, args []interface{}) {
	if Enabled(level) {
		emit(root(), level, format(template, args))
	}
}

func Tracef(format string, args ...interface{}) { logf(TraceLevel, format, args) }
func Debugf(format string, args ...interface{}) { logf(DebugLevel, format, args) }
func Infof(format string, args ...interface{})  { logf(InfoLevel, format, args) }
func Warnf(format string, args ...interface{})  { logf(WarnLevel, format, args) }
func Errorf(format string, args ...interface{}) { logf(ErrorLevel, format, args) }

// Panicf logs the message and panics, unless logging is switched off.
func Panicf(format string, args ...interface{}) { logf(PanicLevel, format, args) }

// PanicIfError panics with err when it is not nil.
func PanicIfError(err error) {
	if err != nil {
		Panicf("%v", err)
	}
}
