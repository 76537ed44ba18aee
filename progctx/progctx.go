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

// Package progctx tracks the long-running routines of a tool (receive loop, sinks,
// console) and tears them down together.
package progctx

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/simonlingoogle/go-simplelogger"
)

// ErrSignal is the exit error of a context cancelled by CancelOnSignal.
var ErrSignal = errors.New("signal")

// ProgCtx is a cancellable context that knows which routines still run and what to
// clean up on exit.
type ProgCtx struct {
	context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running map[string]int
	cleanup []func()
	exitErr error
	done    bool
}

// New creates a ProgCtx below parent, or below context.Background when parent is nil.
func New(parent context.Context) *ProgCtx {
	if parent == nil {
		parent = context.Background()
	}
	inner, cancel := context.WithCancel(parent)
	return &ProgCtx{Context: inner, cancel: cancel, running: map[string]int{}}
}

// WaitCount returns the number of routines still running.
func (ctx *ProgCtx) WaitCount() (n int) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	for _, c := range ctx.running {
		n += c
	}
	return n
}

// Running lists the names of the routines still running, sorted.
func (ctx *ProgCtx) Running() []string {
	ctx.mu.Lock()
	names := make([]string, 0, len(ctx.running))
	for name, c := range ctx.running {
		if c > 0 {
			names = append(names, name)
		}
	}
	ctx.mu.Unlock()
	sort.Strings(names)
	return names
}

// Cancel ends the program context. Only the first call counts: an error reason becomes
// the exit error and the functions registered with Defer run, last registered first.
func (ctx *ProgCtx) Cancel(reason interface{}) {
	ctx.mu.Lock()
	if ctx.done {
		ctx.mu.Unlock()
		return
	}
	ctx.done = true
	ctx.cancel()
	cleanup := ctx.cleanup
	ctx.cleanup = nil
	err, isErr := reason.(error)
	if isErr {
		ctx.exitErr = err
	}
	ctx.mu.Unlock()

	if isErr {
		simplelogger.Warnf("program exit: %+v", err)
	} else {
		simplelogger.Infof("program exit: %v", reason)
	}
	for i := len(cleanup) - 1; i >= 0; i-- {
		cleanup[i]()
	}
}

// ExitError returns the error Cancel was first called with, if any.
func (ctx *ProgCtx) ExitError() error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.exitErr
}

// WaitAdd registers delta more running routines under name.
func (ctx *ProgCtx) WaitAdd(name string, delta int) {
	ctx.mu.Lock()
	ctx.running[name] += delta
	ctx.mu.Unlock()
	ctx.wg.Add(delta)
}

// WaitDone marks one routine registered under name as finished.
func (ctx *ProgCtx) WaitDone(name string) {
	ctx.mu.Lock()
	if ctx.running[name] <= 0 {
		ctx.mu.Unlock()
		simplelogger.Panicf("WaitDone(%q) without a running routine", name)
		return
	}
	ctx.running[name]--
	ctx.mu.Unlock()
	ctx.wg.Done()
}

// Go runs fn as a named routine. A returned error or a panic cancels the whole
// program context.
func (ctx *ProgCtx) Go(name string, fn func(ctx context.Context) error) {
	ctx.WaitAdd(name, 1)
	go func() {
		defer ctx.WaitDone(name)
		defer func() {
			if r := recover(); r != nil {
				ctx.Cancel(errors.Errorf("routine %s panic: %v", name, r))
			}
		}()
		err := fn(ctx)
		if err != nil && ctx.Err() == nil {
			ctx.Cancel(errors.Wrapf(err, "routine %s", name))
		}
	}()
}

// Wait blocks until every routine has finished.
func (ctx *ProgCtx) Wait() {
	simplelogger.Debugf("waiting for %v", ctx.Running())
	ctx.wg.Wait()
}

// Defer registers f to run on Cancel. It panics once the context is done.
func (ctx *ProgCtx) Defer(f func()) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if ctx.done || ctx.Err() != nil {
		panic(errors.New("progctx: Defer after cancel"))
	}
	ctx.cleanup = append(ctx.cleanup, f)
}

// CancelOnSignal cancels the context with ErrSignal when one of sigs arrives.
func (ctx *ProgCtx) CancelOnSignal(sigs ...os.Signal) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	ctx.Go("signal", func(c context.Context) error {
		defer signal.Stop(ch)
		select {
		case s := <-ch:
			ctx.Cancel(errors.Wrapf(ErrSignal, "%v", s))
		case <-c.Done():
		}
		return nil
	})
}
