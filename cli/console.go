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


package cli

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/lbtlora/sx127x/logger"
)

// Handler executes one console line.
type Handler interface {
	HandleCommand(cmd string, output io.Writer) error
	GetPrompt() string
}

type ConsoleOptions struct {
	EchoInput bool
	Stdin     *os.File
	Stdout    *os.File
}

func DefaultConsoleOptions() *ConsoleOptions {
	return &ConsoleOptions{}
}

// Console is a readline loop feeding a Handler.
type Console struct {
	Started  chan struct{}
	Options  *ConsoleOptions
	instance *readline.Instance
	closed   chan struct{}
}

func NewConsole() *Console {
	return &Console{
		Started: make(chan struct{}),
		closed:  make(chan struct{}),
	}
}

// OnStdout redraws the prompt after log output; it satisfies logger.StdoutCallback.
func (c *Console) OnStdout() {
	if c.instance != nil {
		c.instance.Refresh()
	}
}

// Stop ends a running Run and waits for it to return.
func (c *Console) Stop() {
	<-c.Started
	// readline blocks on its rune reader until input arrives; an interrupt and
	// closing stdin unblock it.
	_, _ = c.Options.Stdin.WriteString("\003\n")
	_ = c.Options.Stdin.Close()
	logger.Tracef("waiting for console to stop")
	<-c.closed
}

func withDefaults(options *ConsoleOptions) *ConsoleOptions {
	if options == nil {
		options = DefaultConsoleOptions()
	}
	if options.Stdin == nil {
		options.Stdin = os.Stdin
	}
	if options.Stdout == nil {
		options.Stdout = os.Stdout
	}
	return options
}

// keepTerminal saves the terminal state of f, if it is a terminal, and returns the restore func.
func keepTerminal(f *os.File) (func(), error) {
	fd := int(f.Fd())
	if !readline.IsTerminal(fd) {
		return func() {}, nil
	}
	state, err := readline.GetState(fd)
	if err != nil {
		return nil, err
	}
	return func() { _ = readline.Restore(fd, state) }, nil
}

// Run reads lines until EOF, an interrupt on an empty line, or a handler error.
func (c *Console) Run(handler Handler, options *ConsoleOptions) error {
	defer logger.Debugf("console exit")
	defer close(c.closed)

	started := false
	defer func() {
		if !started {
			close(c.Started)
		}
	}()

	options = withDefaults(options)
	c.Options = options

	restoreIn, err := keepTerminal(options.Stdin)
	if err != nil {
		return err
	}
	defer restoreIn()
	restoreOut, err := keepTerminal(options.Stdout)
	if err != nil {
		return err
	}
	defer restoreOut()

	l, err := readline.NewEx(&readline.Config{
		Prompt:            handler.GetPrompt(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdin:             options.Stdin,
		Stdout:            options.Stdout,
		FuncFilterInputRune: func(r rune) (rune, bool) {
			// no job control
			if r == readline.CharCtrlZ {
				return r, false
			}
			return r, true
		},
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = l.Close()
	}()
	c.instance = l
	started = true
	close(c.Started)

	stdout := options.Stdout
	for {
		l.SetPrompt(handler.GetPrompt())
		line, err := l.Readline()

		if len(line) > 0 && line[0] == readline.CharInterrupt {
			return nil
		} else if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				return nil
			}
			continue // Ctrl-C while editing drops the line only
		} else if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}

		if options.EchoInput {
			if _, err := stdout.WriteString(line + "\n"); err != nil {
				return err
			}
		}

		cmd := strings.TrimSpace(line)
		if len(cmd) == 0 {
			continue
		}

		if err = handler.HandleCommand(cmd, l.Stdout()); err != nil {
			_ = stdout.Sync()
			return err
		}
		_ = stdout.Sync()
	}
}
