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


package radio_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lbtlora/sx127x/radio"
	"github.com/lbtlora/sx127x/simchip"
	"github.com/lbtlora/sx127x/types"
)

type countingTransport struct {
	chip  *simchip.Chip
	count int
}

func (t *countingTransport) Transfer(addr, data byte) (byte, error) {
	t.count++
	return t.chip.Transfer(addr, data)
}

type testRadio struct {
	*radio.Radio
	chip  *simchip.Chip
	clock *simchip.VirtualClock
	bus   *countingTransport
}

func newChip(version byte, clock *simchip.VirtualClock, medium *simchip.Medium) *simchip.Chip {
	return simchip.New(clock, medium, version)
}

func newTestRadioOn(t *testing.T, chip *simchip.Chip, clock *simchip.VirtualClock, node types.NodeAddr, edit func(*radio.Options)) *testRadio {
	opts := radio.DefaultOptions()
	opts.Clock = clock
	opts.NodeAddress = node
	if edit != nil {
		edit(&opts)
	}
	tr := &countingTransport{chip: chip}
	r := radio.New(tr, opts)
	require.Nil(t, r.PowerOn())
	return &testRadio{Radio: r, chip: chip, clock: clock, bus: tr}
}

func newTestRadio(t *testing.T, version byte) *testRadio {
	clock := simchip.NewVirtualClock()
	return newTestRadioOn(t, newChip(version, clock, nil), clock, 6, nil)
}

var bothVariants = []byte{radio.VersionSX1272, radio.VersionSX1276}
