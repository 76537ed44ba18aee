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
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mitchellh/go-wordwrap"
	"golang.org/x/term"
)

//go:embed README.md
var commandReference string

const (
	helpIndent       = "  "
	helpDefaultWidth = 80
	helpMinWidth     = 40
)

// helpTopic is one "### <command>" section of the command reference.
type helpTopic struct {
	summary string
	usage   []string
	text    []string
	example []string
}

// Help renders the embedded command reference for the 'help' command.
type Help struct {
	topics map[string]*helpTopic
	names  []string
}

func newHelp() Help {
	h := Help{topics: parseReference(commandReference)}
	for name := range h.topics {
		h.names = append(h.names, name)
	}
	sort.Strings(h.names)
	return h
}

func parseReference(md string) map[string]*helpTopic {
	topics := map[string]*helpTopic{}
	var cur *helpTopic
	var fence *[]string
	for _, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "```"):
			if fence != nil || cur == nil {
				fence = nil
			} else if trimmed == "```shell" {
				fence = &cur.usage
			} else {
				fence = &cur.example
			}
		case fence != nil:
			*fence = append(*fence, line)
		case strings.HasPrefix(trimmed, "### "):
			cur = &helpTopic{}
			topics[strings.TrimSpace(trimmed[4:])] = cur
		case strings.HasPrefix(trimmed, "#"):
			cur = nil
		case cur != nil && trimmed != "":
			if cur.summary == "" {
				cur.summary = trimmed
			} else {
				cur.text = append(cur.text, trimmed)
			}
		}
	}
	return topics
}

func terminalWidth() uint {
	fd := int(os.Stdout.Fd())
	if term.IsTerminal(fd) {
		if w, _, err := term.GetSize(fd); err == nil && w >= helpMinWidth {
			return uint(w)
		}
	}
	return helpDefaultWidth
}

// outputGeneralHelp lists every command with the first line of its description.
func (help *Help) outputGeneralHelp() string {
	var sb strings.Builder
	for _, name := range help.names {
		fmt.Fprintf(&sb, "%-10s %s\n", name, help.topics[name].summary)
	}
	sb.WriteString("\nUse 'help <command>' for usage and examples.\n")
	return sb.String()
}

func (help *Help) outputCommandHelp(name string) string {
	t, ok := help.topics[name]
	if !ok {
		return fmt.Sprintf("no help for %q\n", name)
	}
	width := terminalWidth() - uint(len(helpIndent))

	var sb strings.Builder
	sb.WriteString(name + "\n")
	for _, p := range append([]string{t.summary}, t.text...) {
		for _, l := range strings.Split(wordwrap.WrapString(p, width), "\n") {
			sb.WriteString(helpIndent + l + "\n")
		}
	}
	block := func(title string, lines []string) {
		if len(lines) == 0 {
			return
		}
		sb.WriteString("\n" + title + ":\n")
		for _, l := range lines {
			sb.WriteString(helpIndent + helpIndent + l + "\n")
		}
	}
	block("Usage", t.usage)
	block("Example", t.example)
	return sb.String()
}
