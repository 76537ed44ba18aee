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


package radio

import (
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/lbtlora/sx127x/types"
)

const (
	// HeaderLength is the number of bytes before the payload: dst, type, src, seq.
	HeaderLength     = 4
	MaxFrameLength   = 255
	MaxPayloadLength = MaxFrameLength - HeaderLength

	MinPowerDbm       = 2
	MaxPowerDbm       = 20
	MinPreambleLength = 6

	// fxOsc is the crystal frequency; one FRF step is fxOsc/2^19 = 61.035 Hz.
	fxOsc        = 32000000
	frfStepShift = 19
	MaxChannel   = 0xFFFFFF

	ldroSymbolTime = 16 * time.Millisecond
)

// Channel FRF words of the 868 MHz and 900 MHz bands.
const (
	CH_10_868 uint32 = 0xD84CCC // 865.20 MHz
	CH_11_868 uint32 = 0xD86000 // 865.50 MHz
	CH_12_868 uint32 = 0xD87333 // 865.80 MHz
	CH_13_868 uint32 = 0xD88666 // 866.10 MHz
	CH_14_868 uint32 = 0xD89999 // 866.40 MHz
	CH_15_868 uint32 = 0xD8ACCC // 866.70 MHz
	CH_16_868 uint32 = 0xD8C000 // 867.00 MHz
	CH_17_868 uint32 = 0xD90000 // 868.00 MHz
	CH_18_868 uint32 = 0xD90666 // 868.10 MHz

	CH_00_900 uint32 = 0xE1C51E // 903.08 MHz
	CH_01_900 uint32 = 0xE24F5C // 905.24 MHz
	CH_02_900 uint32 = 0xE2D999 // 907.40 MHz
	CH_03_900 uint32 = 0xE363D7 // 909.56 MHz
	CH_04_900 uint32 = 0xE3EE14 // 911.72 MHz
	CH_05_900 uint32 = 0xE47851 // 913.88 MHz
	CH_06_900 uint32 = 0xE5028F // 916.04 MHz
	CH_07_900 uint32 = 0xE58CCC // 918.20 MHz
	CH_08_900 uint32 = 0xE6170A // 920.36 MHz
	CH_09_900 uint32 = 0xE6A147 // 922.52 MHz
	CH_10_900 uint32 = 0xE72B85 // 924.68 MHz
	CH_11_900 uint32 = 0xE7B5C2 // 926.84 MHz
	CH_12_900 uint32 = 0xE4C000 // 915.00 MHz
)

var knownChannels = map[string]uint32{
	"CH_10_868": CH_10_868, "CH_11_868": CH_11_868, "CH_12_868": CH_12_868,
	"CH_13_868": CH_13_868, "CH_14_868": CH_14_868, "CH_15_868": CH_15_868,
	"CH_16_868": CH_16_868, "CH_17_868": CH_17_868, "CH_18_868": CH_18_868,
	"CH_00_900": CH_00_900, "CH_01_900": CH_01_900, "CH_02_900": CH_02_900,
	"CH_03_900": CH_03_900, "CH_04_900": CH_04_900, "CH_05_900": CH_05_900,
	"CH_06_900": CH_06_900, "CH_07_900": CH_07_900, "CH_08_900": CH_08_900,
	"CH_09_900": CH_09_900, "CH_10_900": CH_10_900, "CH_11_900": CH_11_900,
	"CH_12_900": CH_12_900,
}

// ChannelByName looks up a channel of the band tables, e.g. "CH_18_868".
func ChannelByName(name string) (uint32, bool) {
	frf, ok := knownChannels[name]
	return frf, ok
}

// IsKnownChannel reports whether frf is one of the band table channels.
func IsKnownChannel(frf uint32) bool {
	for _, ch := range knownChannels {
		if ch == frf {
			return true
		}
	}
	return false
}

// FrequencyToChannel converts a carrier frequency in Hz to an FRF word.
func FrequencyToChannel(hz uint64) uint32 {
	return uint32((hz<<frfStepShift + fxOsc/2) / fxOsc)
}

// ChannelToFrequency converts an FRF word to Hz.
func ChannelToFrequency(frf uint32) uint64 {
	return (uint64(frf)*fxOsc + 1<<(frfStepShift-1)) >> frfStepShift
}

// ModemParams is the in-memory mirror of the modem configuration.
type ModemParams struct {
	SpreadingFactor types.SpreadingFactor
	Bandwidth       types.Bandwidth
	CodingRate      types.CodingRate
	Channel         uint32
	SyncWord        byte
	PreambleLength  uint16
	PowerDbm        int
	CRC             bool

	// Derived from SpreadingFactor and Bandwidth.
	ImplicitHeader      bool
	LowDataRateOptimize bool
}

func DefaultModemParams() ModemParams {
	p := ModemParams{
		SpreadingFactor: types.SF7,
		Bandwidth:       types.BW125,
		CodingRate:      types.CR4_5,
		Channel:         CH_12_900,
		SyncWord:        0x12,
		PreambleLength:  8,
		PowerDbm:        14,
		CRC:             true,
	}
	return p.Normalized()
}

// Normalized returns p with the derived fields recomputed.
func (p ModemParams) Normalized() ModemParams {
	p.ImplicitHeader = p.SpreadingFactor == types.SF6
	p.LowDataRateOptimize = LowDataRateOptimize(p.SpreadingFactor, p.Bandwidth)
	return p
}

// Validate checks every field against the ranges of chip variant v. A nil v accepts
// any bandwidth known to the family.
func (p ModemParams) Validate(v *Variant) error {
	if !p.SpreadingFactor.Valid() {
		return errors.Wrapf(types.ErrValidation, "spreading factor %d", p.SpreadingFactor)
	}
	if err := validateBandwidth(v, p.Bandwidth); err != nil {
		return err
	}
	if !p.CodingRate.Valid() {
		return errors.Wrapf(types.ErrValidation, "coding rate %d", p.CodingRate)
	}
	if p.Channel == 0 || p.Channel > MaxChannel {
		return errors.Wrapf(types.ErrValidation, "channel 0x%x", p.Channel)
	}
	if p.PreambleLength < MinPreambleLength {
		return errors.Wrapf(types.ErrValidation, "preamble length %d", p.PreambleLength)
	}
	if p.PowerDbm < MinPowerDbm || p.PowerDbm > MaxPowerDbm {
		return errors.Wrapf(types.ErrValidation, "power %d dBm", p.PowerDbm)
	}
	return nil
}

func validateBandwidth(v *Variant, bw types.Bandwidth) error {
	if v == nil {
		if !bw.Valid() {
			return errors.Wrapf(types.ErrValidation, "bandwidth %d Hz", bw)
		}
		return nil
	}
	if !v.SupportsBandwidth(bw) {
		return errors.Wrapf(types.ErrValidation, "bandwidth %s not supported by %s", bw, v)
	}
	return nil
}

// SymbolTime is the duration of one symbol.
func (p ModemParams) SymbolTime() time.Duration {
	return types.SymbolTime(p.SpreadingFactor, p.Bandwidth)
}

// TimeOnAir is the duration of a frame of frameLen bytes (header included), following
// the formula of the SX127x datasheet.
func (p ModemParams) TimeOnAir(frameLen int) time.Duration {
	if p.Bandwidth == 0 || !p.SpreadingFactor.Valid() {
		return 0
	}
	tsym := float64(p.SymbolTime())
	sf := float64(p.SpreadingFactor)
	tPreamble := (float64(p.PreambleLength) + 4.25) * tsym

	crc, ih, de := 0.0, 0.0, 0.0
	if p.CRC {
		crc = 1
	}
	if p.ImplicitHeader {
		ih = 1
	}
	if p.LowDataRateOptimize {
		de = 1
	}
	num := 8*float64(frameLen) - 4*sf + 28 + 16*crc - 20*ih
	den := 4 * (sf - 2*de)
	nPayload := 8 + math.Max(math.Ceil(num/den)*float64(p.CodingRate), 0)
	return time.Duration(tPreamble + nPayload*tsym)
}

func (p ModemParams) String() string {
	return fmt.Sprintf("%s/%s/CR%s ch=0x%06x (%.2fMHz) sync=0x%02x preamble=%d power=%ddBm",
		p.SpreadingFactor, p.Bandwidth, p.CodingRate, p.Channel, float64(ChannelToFrequency(p.Channel))/1e6,
		p.SyncWord, p.PreambleLength, p.PowerDbm)
}

// LowDataRateOptimize reports whether the chip must run with the low data rate
// optimization for this combination: bandwidth of at most 125 kHz and a symbol
// time of 16 ms or more.
func LowDataRateOptimize(sf types.SpreadingFactor, bw types.Bandwidth) bool {
	return bw <= types.BW125 && types.SymbolTime(sf, bw) >= ldroSymbolTime
}

type preset struct {
	sf types.SpreadingFactor
	bw types.Bandwidth
}

// presets are the SetMode shortcuts 1..10.
var presets = [...]preset{
	1:  {types.SF12, types.BW125},
	2:  {types.SF12, types.BW250},
	3:  {types.SF10, types.BW125},
	4:  {types.SF12, types.BW500},
	5:  {types.SF10, types.BW250},
	6:  {types.SF11, types.BW500},
	7:  {types.SF9, types.BW250},
	8:  {types.SF9, types.BW500},
	9:  {types.SF8, types.BW500},
	10: {types.SF7, types.BW500},
}

const (
	MinPreset = 1
	MaxPreset = len(presets) - 1
)

// Preset returns the spreading factor and bandwidth of SetMode preset n.
func Preset(n int) (types.SpreadingFactor, types.Bandwidth, error) {
	if n < MinPreset || n > MaxPreset {
		return 0, 0, errors.Wrapf(types.ErrValidation, "mode %d", n)
	}
	return presets[n].sf, presets[n].bw, nil
}
