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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lbtlora/sx127x/radio"
	"github.com/lbtlora/sx127x/simchip"
	"github.com/lbtlora/sx127x/types"
)

type node struct {
	*radio.Radio
	chip *simchip.Chip
}

func newNode(t *testing.T, clock *simchip.VirtualClock, medium *simchip.Medium, addr types.NodeAddr) *node {
	chip := simchip.NewSX1276(clock, medium)
	opts := radio.DefaultOptions()
	opts.NodeAddress = addr
	r, err := simchip.PowerOn(chip, opts)
	require.Nil(t, err)
	return &node{Radio: r, chip: chip}
}

// ackResponder answers frames sent by from with an ack after delay, while answer
// returns true. The ack payload is snr.
func ackResponder(medium *simchip.Medium, from *simchip.Chip, delay time.Duration, snr int8, answer func(f *radio.Frame) bool) {
	medium.OnTransmit(func(a simchip.Air) {
		if a.From != from {
			return
		}
		f, err := radio.DecodeFrame(a.Frame)
		if err != nil || !f.Type.Has(types.PacketFlagAckReq) || !answer(f) {
			return
		}
		ack := &radio.Frame{Dst: f.Src, Type: types.PacketTypeAck, Src: f.Dst, Seq: f.Seq, Payload: []byte{byte(snr)}}
		start := a.End.Add(delay)
		from.Inject(ack.Encode(), start, start.Add(30*time.Millisecond))
	})
}

func decodeAll(t *testing.T, txs []simchip.Transmission) []*radio.Frame {
	var frames []*radio.Frame
	for _, tx := range txs {
		f, err := radio.DecodeFrame(tx.Frame)
		require.Nil(t, err)
		frames = append(frames, f)
	}
	return frames
}
