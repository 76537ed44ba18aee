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


// Package gateway runs the receive side of a LoRa network: frames are received and
// acknowledged through the channel access layer, checked against the application
// key and handed to the configured sinks.
package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/lbtlora/sx127x/logger"
	"github.com/lbtlora/sx127x/mac"
	"github.com/lbtlora/sx127x/radio"
	"github.com/lbtlora/sx127x/types"
)

const defaultReceiveWindow = time.Second

// Options configure a Gateway.
type Options struct {
	AppKey        mac.AppKey
	CheckAppKey   bool          // drop frames without a matching app key
	ReceiveWindow time.Duration // length of one receive call
	NoAck         bool
	Log           *logger.Component
}

// Stats counts what the gateway did with received frames.
type Stats struct {
	Frames     int
	Rejected   int
	SinkErrors int
}

// Gateway receives frames and dispatches them to sinks.
type Gateway struct {
	radio    mac.Radio
	receiver *mac.Receiver
	opts     Options
	log      *logger.Component

	mu    sync.Mutex
	sinks []Sink
	stats Stats
}

func New(r mac.Radio, opts Options) *Gateway {
	if opts.ReceiveWindow <= 0 {
		opts.ReceiveWindow = defaultReceiveWindow
	}
	if opts.Log == nil {
		opts.Log = logger.Named("gateway")
	}
	return &Gateway{
		radio:    r,
		receiver: mac.NewReceiver(r, mac.ReceiverOptions{NoAck: opts.NoAck, Log: opts.Log}),
		opts:     opts,
		log:      opts.Log,
	}
}

// AddSink registers s. Sinks are closed by Close.
func (g *Gateway) AddSink(s Sink) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sinks = append(g.sinks, s)
	g.log.Infof("sink %s added", s.Name())
}

// Stats returns a copy of the gateway counters.
func (g *Gateway) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}

// ReceiverStats returns the counters of the channel access layer.
func (g *Gateway) ReceiverStats() mac.Stats {
	return g.receiver.Stats()
}

// Step waits one receive window for a frame and dispatches it. It returns nil and
// ErrTimeout when the window passes without a frame, and a nil report when the
// frame was rejected.
func (g *Gateway) Step(ctx context.Context) (*Report, error) {
	f, err := g.receiver.Receive(g.opts.ReceiveWindow)
	if err != nil {
		return nil, err
	}

	payload, ok := g.opts.AppKey.Open(f)
	if !ok || (g.opts.CheckAppKey && !f.Type.Has(types.PacketFlagAppKey)) {
		g.mu.Lock()
		g.stats.Rejected++
		g.mu.Unlock()
		g.log.Infof("rejected %s: app key mismatch", f)
		return nil, nil
	}

	p := g.radio.Params()
	rep := &Report{
		At:        g.radio.Clock().Now(),
		Frame:     f,
		Payload:   payload,
		Params:    p,
		Frequency: radio.ChannelToFrequency(p.Channel),
	}
	g.log.Debugf("%s", rep)
	g.dispatch(ctx, rep)
	return rep, nil
}

func (g *Gateway) dispatch(ctx context.Context, rep *Report) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stats.Frames++
	for _, s := range g.sinks {
		if err := s.Write(ctx, rep); err != nil {
			g.stats.SinkErrors++
			g.log.Errorf("sink %s: %v", s.Name(), err)
		}
	}
}

// Run receives until ctx is done or the radio fails. Corrupt frames and empty
// receive windows are not errors.
func (g *Gateway) Run(ctx context.Context) error {
	g.log.Infof("gateway node %d listening, %s", g.radio.NodeAddress(), g.radio.Params())
	for ctx.Err() == nil {
		_, err := g.Step(ctx)
		switch {
		case err == nil:
		case errors.Is(err, types.ErrTimeout), errors.Is(err, types.ErrCorruptFrame):
		default:
			return errors.Wrap(err, "gateway receive")
		}
	}
	return nil
}

// Close closes every sink and returns the first error.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var first error
	for _, s := range g.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = errors.Wrapf(err, "close sink %s", s.Name())
		}
	}
	g.sinks = nil
	return first
}
