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
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"

	"github.com/lbtlora/sx127x/radio"
	"github.com/lbtlora/sx127x/simchip"
	"github.com/lbtlora/sx127x/types"
)

func TestPowerOn(t *testing.T) {
	for _, version := range bothVariants {
		clock := simchip.NewVirtualClock()
		chip := newChip(version, clock, nil)
		cs := &simchip.Pin{}
		start := clock.Now()
		r := newTestRadioOn(t, chip, clock, 6, func(o *radio.Options) {
			o.CS = cs
			o.Reset = chip.ResetLine(false)
		})

		v := r.Variant()
		require.NotNil(t, v)
		assert.Equal(t, version, v.Version)
		assert.Equal(t, radio.StateStandby, r.State())
		assert.Equal(t, byte(radio.OpModeLoRaStandby), chip.Peek(radio.RegOpMode))
		assert.Equal(t, byte(0x12), chip.Peek(radio.RegSyncWord))
		assert.Equal(t, byte(0x3B), chip.Peek(radio.RegOcp))
		assert.Equal(t, byte(0x80), chip.Peek(radio.RegFifoTxBaseAddr))
		assert.Equal(t, []gpio.Level{gpio.High}, cs.Levels())
		assert.Equal(t, 1, chip.Stats().Resets)
		// two reset delays, one mode entry wait and at least one settle delay
		assert.True(t, clock.Now().Sub(start) >= 500*time.Millisecond)

		p := r.Params()
		assert.Equal(t, types.SF7, p.SpreadingFactor)
		assert.Equal(t, types.BW125, p.Bandwidth)
		sf, err := r.SpreadingFactor()
		assert.Nil(t, err)
		assert.Equal(t, types.SF7, sf)
		ch, err := r.Channel()
		assert.Nil(t, err)
		assert.Equal(t, radio.CH_12_900, ch)
	}
}

func TestPowerOnUnsupportedDevice(t *testing.T) {
	clock := simchip.NewVirtualClock()
	chip := newChip(0x00, clock, nil)
	opts := radio.DefaultOptions()
	opts.Clock = clock
	r := radio.New(chip, opts)

	err := r.PowerOn()
	assert.True(t, errors.Is(err, types.ErrUnsupportedDevice))
	assert.Nil(t, r.Variant())
	assert.Equal(t, radio.ErrNotPoweredOn, r.SetSyncWord(0x34))
}

func TestPowerOnModeEntryTimeout(t *testing.T) {
	clock := simchip.NewVirtualClock()
	chip := newChip(radio.VersionSX1276, clock, nil)
	chip.SetStuck(true)
	opts := radio.DefaultOptions()
	opts.Clock = clock
	r := radio.New(chip, opts)

	start := clock.Now()
	err := r.PowerOn()
	assert.True(t, errors.Is(err, types.ErrModeEntryTimeout))
	assert.Equal(t, 10*200*time.Millisecond, clock.Now().Sub(start))
}

func TestSpreadingFactorBitFieldIsolation(t *testing.T) {
	for _, version := range bothVariants {
		r := newTestRadio(t, version)
		for _, bw := range r.Variant().Bandwidths() {
			require.Nil(t, r.SetBandwidth(bw))
			for sf := types.MinSpreadingFactor; sf <= types.MaxSpreadingFactor; sf++ {
				// unrelated bits: TxContinuousMode and the symbol timeout MSBs
				r.chip.Poke(radio.RegModemConfig2, r.chip.Peek(radio.RegModemConfig2)|0x0B)
				before1 := r.chip.Peek(radio.RegModemConfig1)

				require.Nil(t, r.SetSpreadingFactor(sf))

				got, err := r.SpreadingFactor()
				require.Nil(t, err)
				assert.Equal(t, sf, got)
				assert.Equal(t, byte(0x0B), r.chip.Peek(radio.RegModemConfig2)&0x0B, "%s %s", sf, bw)

				gotBw, err := r.Bandwidth()
				require.Nil(t, err)
				assert.Equal(t, bw, gotBw)

				after1 := r.chip.Peek(radio.RegModemConfig1)
				var owned byte
				if version == radio.VersionSX1272 {
					owned = 0x04 | 0x01 // implicit header, LDRO
				} else {
					owned = 0x01 // implicit header
				}
				assert.Equal(t, before1&^owned, after1&^owned, "%s %s", sf, bw)
				r.chip.Poke(radio.RegModemConfig2, r.chip.Peek(radio.RegModemConfig2)&^0x0B)
			}
		}
	}
}

func TestLowDataRateOptimize(t *testing.T) {
	for _, version := range bothVariants {
		r := newTestRadio(t, version)
		for _, bw := range []types.Bandwidth{types.BW125, types.BW250, types.BW500} {
			for sf := types.MinSpreadingFactor; sf <= types.MaxSpreadingFactor; sf++ {
				want := bw == types.BW125 && (sf == types.SF11 || sf == types.SF12)

				// bandwidth first
				require.Nil(t, r.SetBandwidth(bw))
				require.Nil(t, r.SetSpreadingFactor(sf))
				on, err := r.LowDataRateOptimize()
				require.Nil(t, err)
				assert.Equal(t, want, on, "%s %s", sf, bw)

				// spreading factor first, from the opposite bandwidth
				require.Nil(t, r.SetBandwidth(types.BW500))
				require.Nil(t, r.SetSpreadingFactor(types.SF12))
				require.Nil(t, r.SetSpreadingFactor(sf))
				require.Nil(t, r.SetBandwidth(bw))
				on, err = r.LowDataRateOptimize()
				require.Nil(t, err)
				assert.Equal(t, want, on, "%s %s", sf, bw)
				assert.Equal(t, want, r.Params().LowDataRateOptimize)
			}
		}
	}
}

func TestLowDataRateOptimizeRegister(t *testing.T) {
	r := newTestRadio(t, radio.VersionSX1276)
	require.Nil(t, r.SetMode(1))
	assert.Equal(t, byte(0x08), r.chip.Peek(radio.RegModemConfig3)&0x08)
	assert.Equal(t, byte(0x04), r.chip.Peek(radio.RegModemConfig3)&0x04)

	r = newTestRadio(t, radio.VersionSX1272)
	require.Nil(t, r.SetMode(1))
	assert.Equal(t, byte(0x01), r.chip.Peek(radio.RegModemConfig1)&0x01)
	assert.Equal(t, byte(0x04), r.chip.Peek(radio.RegModemConfig2)&0x04)
}

func TestSpreadingFactor6(t *testing.T) {
	for _, version := range bothVariants {
		r := newTestRadio(t, version)
		require.Nil(t, r.SetSpreadingFactor(types.SF6))

		implicit, err := r.ImplicitHeader()
		assert.Nil(t, err)
		assert.True(t, implicit)
		assert.Equal(t, byte(0xC5), r.chip.Peek(radio.RegDetectOptimize))
		assert.Equal(t, byte(0x0C), r.chip.Peek(radio.RegDetectionThreshold))
		assert.True(t, r.Params().ImplicitHeader)

		require.Nil(t, r.SetSpreadingFactor(types.SF9))
		implicit, err = r.ImplicitHeader()
		assert.Nil(t, err)
		assert.False(t, implicit)
		assert.Equal(t, byte(0xC3), r.chip.Peek(radio.RegDetectOptimize))
		assert.Equal(t, byte(0x0A), r.chip.Peek(radio.RegDetectionThreshold))
	}
}

func TestCodingRate(t *testing.T) {
	for _, version := range bothVariants {
		r := newTestRadio(t, version)
		for cr := types.CR4_5; cr <= types.CR4_8; cr++ {
			require.Nil(t, r.SetCodingRate(cr))
			got, err := r.CodingRate()
			assert.Nil(t, err)
			assert.Equal(t, cr, got)
			bw, err := r.Bandwidth()
			assert.Nil(t, err)
			assert.Equal(t, types.BW125, bw)
		}
	}
}

func TestNarrowBandwidthsSX1276Only(t *testing.T) {
	r := newTestRadio(t, radio.VersionSX1276)
	require.Nil(t, r.SetBandwidth(types.BW62_5))
	bw, err := r.Bandwidth()
	assert.Nil(t, err)
	assert.Equal(t, types.BW62_5, bw)

	r = newTestRadio(t, radio.VersionSX1272)
	err = r.SetBandwidth(types.BW62_5)
	assert.True(t, errors.Is(err, types.ErrValidation))
}

func TestSetterRestoresMode(t *testing.T) {
	r := newTestRadio(t, radio.VersionSX1276)
	require.Nil(t, r.StartReceive())
	require.Nil(t, r.SetCodingRate(types.CR4_7))
	assert.Equal(t, byte(radio.OpModeLoRaRXContinuous), r.chip.Peek(radio.RegOpMode))
	assert.Equal(t, radio.StateRX, r.State())

	require.Nil(t, r.SetNodeAddress(9))
	assert.Equal(t, byte(radio.OpModeLoRaRXContinuous), r.chip.Peek(radio.RegOpMode))
}

func TestVerificationFailureRestoresMode(t *testing.T) {
	r := newTestRadio(t, radio.VersionSX1276)
	require.Nil(t, r.StartReceive())
	r.chip.Freeze(radio.RegSyncWord)

	err := r.SetSyncWord(0x34)
	require.NotNil(t, err)
	assert.True(t, errors.Is(err, types.ErrHardwareVerification))
	assert.False(t, errors.Is(err, types.ErrValidation))
	var verr *types.VerifyError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, byte(radio.RegSyncWord), verr.Reg)
	assert.Equal(t, byte(0x34), verr.Want)
	assert.Equal(t, byte(0x12), verr.Got)
	assert.Equal(t, byte(radio.OpModeLoRaRXContinuous), r.chip.Peek(radio.RegOpMode))
}

func TestValidationBeforeBusAccess(t *testing.T) {
	r := newTestRadio(t, radio.VersionSX1272)
	before := r.bus.count

	checks := []error{
		r.SetSpreadingFactor(13),
		r.SetSpreadingFactor(5),
		r.SetCodingRate(9),
		r.SetCodingRate(4),
		r.SetBandwidth(types.BW41_7),
		r.SetBandwidth(100000),
		r.SetPower(21),
		r.SetPower(1),
		r.SetPreambleLength(2),
		r.SetChannel(0x1000000),
		r.SetFrequency(50000000),
		r.SetMode(0),
		r.SetMode(11),
		r.SetNodeAddress(types.BroadcastAddr),
	}
	_, err := r.Transmit(1, make([]byte, radio.MaxPayloadLength+1))
	checks = append(checks, err)
	_, err = r.NewFrame(1, types.PacketTypeData, make([]byte, 300))
	checks = append(checks, err)

	for i, err := range checks {
		assert.True(t, errors.Is(err, types.ErrValidation), "check %d: %v", i, err)
	}
	assert.Equal(t, before, r.bus.count)
	assert.Equal(t, byte(0), r.SequenceNumber())
}

func TestSetModePresets(t *testing.T) {
	r := newTestRadio(t, radio.VersionSX1276)
	cases := map[int][2]interface{}{
		1:  {types.SF12, types.BW125},
		3:  {types.SF10, types.BW125},
		6:  {types.SF11, types.BW500},
		10: {types.SF7, types.BW500},
	}
	for mode, want := range cases {
		require.Nil(t, r.SetCodingRate(types.CR4_8))
		require.Nil(t, r.SetMode(mode))
		sf, err := r.SpreadingFactor()
		assert.Nil(t, err)
		bw, err := r.Bandwidth()
		assert.Nil(t, err)
		cr, err := r.CodingRate()
		assert.Nil(t, err)
		assert.Equal(t, want[0], sf)
		assert.Equal(t, want[1], bw)
		assert.Equal(t, types.CR4_5, cr)
	}
}

func TestChannelAndFrequency(t *testing.T) {
	r := newTestRadio(t, radio.VersionSX1276)
	require.Nil(t, r.SetFrequency(868100000))
	ch, err := r.Channel()
	assert.Nil(t, err)
	assert.Equal(t, radio.CH_18_868, ch)
	assert.True(t, radio.IsKnownChannel(ch))

	frf, ok := radio.ChannelByName("CH_10_868")
	assert.True(t, ok)
	require.Nil(t, r.SetChannel(frf))
	assert.Equal(t, byte(0xD8), r.chip.Peek(radio.RegFrfMsb))
	assert.Equal(t, byte(0x4C), r.chip.Peek(radio.RegFrfMid))
	assert.Equal(t, byte(0xCC), r.chip.Peek(radio.RegFrfLsb))
}

func TestSetPower(t *testing.T) {
	r := newTestRadio(t, radio.VersionSX1276)
	require.Nil(t, r.SetPower(20))
	assert.Equal(t, byte(0x87), r.chip.Peek(radio.RegPaDacSX1276))
	assert.Equal(t, byte(0xFF), r.chip.Peek(radio.RegPaConfig))
	require.Nil(t, r.SetPower(14))
	assert.Equal(t, byte(0x84), r.chip.Peek(radio.RegPaDacSX1276))
	assert.Equal(t, byte(0xFC), r.chip.Peek(radio.RegPaConfig))

	r = newTestRadio(t, radio.VersionSX1272)
	require.Nil(t, r.SetPower(14))
	assert.Equal(t, byte(0x84), r.chip.Peek(radio.RegPaDacSX1272))
	assert.Equal(t, byte(0x8C), r.chip.Peek(radio.RegPaConfig))
	assert.Equal(t, 14, r.Params().PowerDbm)
}

func TestPreambleAndSyncWord(t *testing.T) {
	r := newTestRadio(t, radio.VersionSX1272)
	require.Nil(t, r.SetPreambleLength(0x0123))
	n, err := r.PreambleLength()
	assert.Nil(t, err)
	assert.Equal(t, uint16(0x0123), n)

	require.Nil(t, r.SetSyncWord(0x34))
	w, err := r.SyncWord()
	assert.Nil(t, err)
	assert.Equal(t, byte(0x34), w)
}

func TestNodeAddress(t *testing.T) {
	r := newTestRadio(t, radio.VersionSX1276)
	require.Nil(t, r.SetNodeAddress(8))
	assert.Equal(t, types.NodeAddr(8), r.NodeAddress())
	assert.Equal(t, byte(8), r.chip.PeekFSK(radio.RegNodeAdrs))
	assert.Equal(t, byte(0), r.chip.PeekFSK(radio.RegBroadcastAdrs))
	assert.Equal(t, byte(radio.OpModeLoRaStandby), r.chip.Peek(radio.RegOpMode))
	// the LoRa page register at the same address is untouched
	assert.Equal(t, byte(0), r.chip.Peek(radio.RegNodeAdrs))
}

func TestSleep(t *testing.T) {
	r := newTestRadio(t, radio.VersionSX1276)
	require.Nil(t, r.Sleep())
	assert.Equal(t, radio.StateSleep, r.State())
	assert.Equal(t, byte(radio.OpModeLoRaSleep), r.chip.Peek(radio.RegOpMode))
}

func TestBusErrorPropagates(t *testing.T) {
	r := newTestRadio(t, radio.VersionSX1276)
	r.chip.FailBus(simchip.ErrBus)
	err := r.SetSyncWord(0x34)
	assert.True(t, errors.Is(err, simchip.ErrBus))
	assert.False(t, errors.Is(err, types.ErrValidation))
	assert.False(t, errors.Is(err, types.ErrHardwareVerification))
}
