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


package mac_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbtlora/sx127x/mac"
	"github.com/lbtlora/sx127x/radio"
	"github.com/lbtlora/sx127x/simchip"
	"github.com/lbtlora/sx127x/types"
)

func newSender(r mac.Radio, edit func(*mac.Options)) *mac.Sender {
	opts := mac.DefaultOptions()
	opts.Rand = rand.New(rand.NewSource(1))
	if edit != nil {
		edit(&opts)
	}
	return mac.NewSender(r, opts)
}

func TestTimingFor(t *testing.T) {
	tm := mac.TimingFor(types.SF7, types.BW125)
	assert.Equal(t, 1024*time.Microsecond, tm.Symbol)
	assert.Equal(t, 16*time.Millisecond, tm.SIFS)
	assert.Equal(t, 4*time.Millisecond, tm.CAD)
	assert.Equal(t, 6, tm.CADCycles)
	assert.Equal(t, 1536*time.Microsecond, tm.BackoffMin)
	assert.Equal(t, 6144*time.Microsecond, tm.BackoffMax)
	assert.Equal(t, 22*time.Millisecond, tm.CADTimeout())

	tm = mac.TimingFor(types.SF12, types.BW125)
	assert.Equal(t, 183*time.Millisecond, tm.SIFS)
	assert.Equal(t, 3, tm.CADCycles)

	tm = mac.TimingFor(types.SF10, types.BW250)
	assert.Equal(t, 22*time.Millisecond, tm.SIFS)
	assert.Equal(t, 8*time.Millisecond, tm.CAD)
	assert.Equal(t, 3, tm.CADCycles)

	// spacing grows with the spreading factor
	for sf := types.SF7; sf <= types.SF12; sf++ {
		assert.True(t, mac.TimingFor(sf, types.BW125).SIFS >= mac.TimingFor(sf-1, types.BW125).SIFS, "%s", sf)
	}

	r := rand.New(rand.NewSource(7))
	tm = mac.TimingFor(types.SF9, types.BW125)
	for i := 0; i < 200; i++ {
		d := tm.Backoff(r)
		assert.True(t, d >= tm.BackoffMin && d < tm.BackoffMax, "%s", d)
	}
}

func TestSendWithoutAck(t *testing.T) {
	clock := simchip.NewVirtualClock()
	n := newNode(t, clock, nil, 6)
	s := newSender(n, nil)

	res, err := s.Send(1, []byte("hello"), false)
	require.Nil(t, err)
	assert.Equal(t, 1, res.Transmissions)
	assert.Equal(t, 1, res.ListenAttempts)
	assert.False(t, res.Acked)
	assert.Equal(t, mac.Idle, s.State())

	frames := decodeAll(t, n.chip.Transmitted())
	require.Len(t, frames, 1)
	assert.Equal(t, types.PacketTypeData, frames[0].Type)
	assert.Equal(t, []byte("hello"), frames[0].Payload)
	assert.Equal(t, 6, n.chip.Stats().CADCycles)

	// the frame went out after the CAD cycles and SIFS
	tm := mac.TimingFor(types.SF7, types.BW125)
	assert.True(t, res.Elapsed >= tm.SIFS+n.TimeOnAir(5))
}

func TestSendChannelBusyTimeout(t *testing.T) {
	clock := simchip.NewVirtualClock()
	n := newNode(t, clock, nil, 6)
	n.chip.SetChannelBusy(true)
	s := newSender(n, func(o *mac.Options) { o.MaxListenAttempts = 4 })
	require.Equal(t, byte(0), n.SequenceNumber())

	res, err := s.Send(1, []byte("x"), true)
	assert.True(t, errors.Is(err, types.ErrChannelBusyTimeout))
	require.NotNil(t, res)
	assert.Nil(t, res.Frame)
	assert.Equal(t, byte(0), n.SequenceNumber())
	assert.Equal(t, 0, res.Transmissions)
	assert.Equal(t, 4, res.ListenAttempts)
	assert.Empty(t, n.chip.Transmitted())
	assert.Equal(t, 0, n.chip.Stats().Transmissions)
	assert.Equal(t, 4, n.chip.Stats().CADCycles)

	st := s.Stats()
	assert.Equal(t, 4, st.ListenAttempts)
	assert.Equal(t, 4, st.CADBusy)
	assert.Equal(t, 3, st.Backoffs)
	assert.Equal(t, 1, st.BusyTimeouts)
	assert.Equal(t, 0, st.Transmissions)

	// the first frame that goes out still carries sequence number 0
	n.chip.SetChannelBusy(false)
	res, err = s.Send(1, []byte("x"), false)
	require.Nil(t, err)
	assert.Equal(t, byte(0), res.Frame.Seq)
	assert.Equal(t, byte(1), n.SequenceNumber())
	frames := decodeAll(t, n.chip.Transmitted())
	require.Len(t, frames, 1)
	assert.Equal(t, byte(0), frames[0].Seq)
}

func TestSendUnacknowledged(t *testing.T) {
	clock := simchip.NewVirtualClock()
	n := newNode(t, clock, nil, 6)
	s := newSender(n, func(o *mac.Options) { o.MaxRetries = 2 })

	res, err := s.Send(1, []byte("report"), true)
	assert.True(t, errors.Is(err, types.ErrUnacknowledged))
	assert.Equal(t, 3, res.Transmissions)

	txs := n.chip.Transmitted()
	require.Len(t, txs, 3)
	for _, tx := range txs[1:] {
		assert.Equal(t, txs[0].Frame, tx.Frame)
	}
	frames := decodeAll(t, txs)
	assert.Equal(t, types.PacketTypeData|types.PacketFlagAckReq, frames[0].Type)
	assert.Equal(t, byte(1), n.SequenceNumber())

	st := s.Stats()
	assert.Equal(t, 3, st.Transmissions)
	assert.Equal(t, 2, st.Retransmissions)
	assert.Equal(t, 1, st.Unacknowledged)
	assert.Equal(t, 0, st.AcksReceived)
}

func TestSendAcknowledged(t *testing.T) {
	clock := simchip.NewVirtualClock()
	medium := simchip.NewMedium()
	n := newNode(t, clock, medium, 6)
	ackResponder(medium, n.chip, 30*time.Millisecond, 28, func(*radio.Frame) bool { return true })
	s := newSender(n, nil)

	res, err := s.Send(1, []byte("report"), true)
	require.Nil(t, err)
	assert.True(t, res.Acked)
	assert.Equal(t, 1, res.Transmissions)
	assert.Equal(t, 28, res.AckSNR)
	assert.Equal(t, 1, s.Stats().AcksReceived)
}

func TestSendAckOnRetransmission(t *testing.T) {
	clock := simchip.NewVirtualClock()
	medium := simchip.NewMedium()
	n := newNode(t, clock, medium, 6)
	seen := 0
	ackResponder(medium, n.chip, 30*time.Millisecond, 4, func(*radio.Frame) bool {
		seen++
		return seen > 1
	})
	s := newSender(n, nil)

	res, err := s.Send(1, []byte("report"), true)
	require.Nil(t, err)
	assert.True(t, res.Acked)
	assert.Equal(t, 2, res.Transmissions)

	frames := decodeAll(t, n.chip.Transmitted())
	require.Len(t, frames, 2)
	assert.Equal(t, frames[0].Seq, frames[1].Seq)
	assert.Equal(t, 1, s.Stats().Retransmissions)
}

func TestSendIgnoresForeignAck(t *testing.T) {
	clock := simchip.NewVirtualClock()
	medium := simchip.NewMedium()
	n := newNode(t, clock, medium, 6)
	medium.OnTransmit(func(a simchip.Air) {
		f, err := radio.DecodeFrame(a.Frame)
		if err != nil || a.From != n.chip {
			return
		}
		// right sequence number, wrong source
		ack := &radio.Frame{Dst: f.Src, Type: types.PacketTypeAck, Src: 9, Seq: f.Seq, Payload: []byte{0}}
		start := a.End.Add(30 * time.Millisecond)
		n.chip.Inject(ack.Encode(), start, start.Add(30*time.Millisecond))
	})
	s := newSender(n, func(o *mac.Options) { o.MaxRetries = 0 })

	_, err := s.Send(1, []byte("report"), true)
	assert.True(t, errors.Is(err, types.ErrUnacknowledged))
	assert.Len(t, n.chip.Transmitted(), 1)
}

func TestSendAppKey(t *testing.T) {
	clock := simchip.NewVirtualClock()
	n := newNode(t, clock, nil, 6)
	key := mac.AppKey{5, 6, 7, 8}
	s := newSender(n, func(o *mac.Options) { o.AppKey = key })

	_, err := s.Send(1, []byte("\\!#3#21"), false)
	require.Nil(t, err)
	frames := decodeAll(t, n.chip.Transmitted())
	require.Len(t, frames, 1)
	assert.True(t, frames[0].Type.Has(types.PacketFlagAppKey))
	assert.Equal(t, []byte{5, 6, 7, 8}, frames[0].Payload[:4])

	payload, ok := key.Open(frames[0])
	assert.True(t, ok)
	assert.Equal(t, []byte("\\!#3#21"), payload)

	_, ok = mac.AppKey{1, 2, 3, 4}.Open(frames[0])
	assert.False(t, ok)
}

func TestSendValidation(t *testing.T) {
	clock := simchip.NewVirtualClock()
	n := newNode(t, clock, nil, 6)
	s := newSender(n, nil)

	_, err := s.Send(types.BroadcastAddr, []byte("x"), true)
	assert.True(t, errors.Is(err, types.ErrValidation))
	_, err = s.Send(1, make([]byte, radio.MaxPayloadLength+1), false)
	assert.True(t, errors.Is(err, types.ErrValidation))
	assert.Empty(t, n.chip.Transmitted())
	assert.Equal(t, 0, n.chip.Stats().CADCycles)
}

func TestParseAppKey(t *testing.T) {
	k, err := mac.ParseAppKey("05060708")
	require.Nil(t, err)
	assert.Equal(t, mac.AppKey{5, 6, 7, 8}, k)

	k, err = mac.ParseAppKey("")
	require.Nil(t, err)
	assert.Nil(t, k)

	_, err = mac.ParseAppKey("0506")
	assert.True(t, errors.Is(err, types.ErrValidation))
	_, err = mac.ParseAppKey("zz")
	assert.True(t, errors.Is(err, types.ErrValidation))
}
