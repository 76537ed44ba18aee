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


package gateway

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbtlora/sx127x/mac"
	"github.com/lbtlora/sx127x/pcap"
	"github.com/lbtlora/sx127x/radio"
	"github.com/lbtlora/sx127x/simchip"
	"github.com/lbtlora/sx127x/types"
)

var testKey = mac.AppKey{5, 6, 7, 8}

func newTestGateway(t *testing.T, opts Options) (*Gateway, *simchip.Chip) {
	clock := simchip.NewVirtualClock()
	chip := simchip.NewSX1276(clock, nil)
	ro := radio.DefaultOptions()
	ro.NodeAddress = 1
	r, err := simchip.PowerOn(chip, ro)
	require.Nil(t, err)
	return New(r, opts), chip
}

func keyedFrame(key mac.AppKey, seq byte, payload string) []byte {
	f := &radio.Frame{Dst: 1, Type: types.PacketTypeData, Src: 6, Seq: seq, Payload: []byte(payload)}
	if key != nil {
		f.Type |= types.PacketFlagAppKey
		f.Payload = key.Seal(f.Payload)
	}
	return f.Encode()
}

func TestReportFormat(t *testing.T) {
	g, chip := newTestGateway(t, Options{AppKey: testKey})
	var out bytes.Buffer
	g.AddSink(NewLineSink("stdout", &out))

	chip.Send(keyedFrame(testKey, 3, "\\!#3#21"), 50*time.Millisecond)
	rep, err := g.Step(context.Background())
	require.Nil(t, err)
	require.NotNil(t, rep)
	assert.Equal(t, []byte("\\!#3#21"), rep.Payload)
	assert.Equal(t, uint64(915000000), rep.Frequency)

	assert.Equal(t, "^p1,18,6,3,7,10,-67\n^r125,5,7\n\xFF\xFE\\!#3#21\n", out.String())
	assert.Equal(t, 1, g.Stats().Frames)
	require.Nil(t, g.Close())
}

func TestAppKeyCheck(t *testing.T) {
	g, chip := newTestGateway(t, Options{AppKey: testKey, CheckAppKey: true})
	var out bytes.Buffer
	g.AddSink(NewLineSink("stdout", &out))

	chip.Send(keyedFrame(mac.AppKey{1, 2, 3, 4}, 1, "foreign"), 50*time.Millisecond)
	chip.Send(keyedFrame(nil, 2, "nokey"), 400*time.Millisecond)
	chip.Send(keyedFrame(testKey, 3, "ours"), 800*time.Millisecond)

	for i := 0; i < 2; i++ {
		rep, err := g.Step(context.Background())
		require.Nil(t, err)
		assert.Nil(t, rep)
	}
	rep, err := g.Step(context.Background())
	require.Nil(t, err)
	require.NotNil(t, rep)
	assert.Equal(t, []byte("ours"), rep.Payload)

	st := g.Stats()
	assert.Equal(t, 2, st.Rejected)
	assert.Equal(t, 1, st.Frames)
	assert.Contains(t, out.String(), "^p1,18,6,3,4,")
}

func TestStepTimeout(t *testing.T) {
	g, _ := newTestGateway(t, Options{ReceiveWindow: 200 * time.Millisecond})
	_, err := g.Step(context.Background())
	assert.True(t, errors.Is(err, types.ErrTimeout))
}

func TestRunStopsWithContext(t *testing.T) {
	g, chip := newTestGateway(t, Options{ReceiveWindow: 100 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	var reps int
	g.AddSink(sinkFunc(func(*Report) error {
		reps++
		cancel()
		return nil
	}))
	chip.Send(keyedFrame(nil, 1, "a"), 250*time.Millisecond)
	require.Nil(t, g.Run(ctx))
	assert.Equal(t, 1, reps)
}

func TestFileSinks(t *testing.T) {
	dir := t.TempDir()
	g, chip := newTestGateway(t, Options{})
	ps, err := NewPcapSink(filepath.Join(dir, "frames.pcap"), pcap.FrameTypeLoRaTap)
	require.Nil(t, err)
	g.AddSink(ps)
	ds, err := OpenDBSink(context.Background(), filepath.Join(dir, "frames.db"))
	require.Nil(t, err)
	g.AddSink(ds)

	chip.Send(keyedFrame(nil, 9, "hello"), 50*time.Millisecond)
	_, err = g.Step(context.Background())
	require.Nil(t, err)

	recs, err := ds.Log().Recent(context.Background(), 10)
	require.Nil(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, byte(9), recs[0].Frame.Seq)
	assert.Equal(t, []byte("hello"), recs[0].Frame.Payload)
	assert.Equal(t, 0, g.Stats().SinkErrors)
	require.Nil(t, g.Close())
}

type sinkFunc func(*Report) error

func (f sinkFunc) Name() string                             { return "func" }
func (f sinkFunc) Write(_ context.Context, r *Report) error { return f(r) }
func (f sinkFunc) Close() error                             { return nil }
