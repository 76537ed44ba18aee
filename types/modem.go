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


package types

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// SpreadingFactor is the LoRa spreading factor, 6..12.
type SpreadingFactor uint8

const (
	SF6  SpreadingFactor = 6
	SF7  SpreadingFactor = 7
	SF8  SpreadingFactor = 8
	SF9  SpreadingFactor = 9
	SF10 SpreadingFactor = 10
	SF11 SpreadingFactor = 11
	SF12 SpreadingFactor = 12

	MinSpreadingFactor = SF6
	MaxSpreadingFactor = SF12
)

func (sf SpreadingFactor) Valid() bool {
	return sf >= MinSpreadingFactor && sf <= MaxSpreadingFactor
}

func (sf SpreadingFactor) String() string {
	return fmt.Sprintf("SF%d", uint8(sf))
}

// Bandwidth is the LoRa signal bandwidth in Hz.
type Bandwidth uint32

const (
	BW7_8   Bandwidth = 7800
	BW10_4  Bandwidth = 10400
	BW15_6  Bandwidth = 15600
	BW20_8  Bandwidth = 20800
	BW31_25 Bandwidth = 31250
	BW41_7  Bandwidth = 41700
	BW62_5  Bandwidth = 62500
	BW125   Bandwidth = 125000
	BW250   Bandwidth = 250000
	BW500   Bandwidth = 500000
)

// AllBandwidths lists every bandwidth known to the SX127x family, narrowest first.
var AllBandwidths = []Bandwidth{BW7_8, BW10_4, BW15_6, BW20_8, BW31_25, BW41_7, BW62_5, BW125, BW250, BW500}

func (bw Bandwidth) Valid() bool {
	for _, b := range AllBandwidths {
		if b == bw {
			return true
		}
	}
	return false
}

// KHz returns the bandwidth in kHz.
func (bw Bandwidth) KHz() float64 {
	return float64(bw) / 1000.0
}

func (bw Bandwidth) String() string {
	if bw%1000 == 0 {
		return fmt.Sprintf("%dkHz", uint32(bw)/1000)
	}
	return fmt.Sprintf("%gkHz", bw.KHz())
}

// ParseBandwidthKHz maps a value given in kHz (e.g. 125 or 62.5) to a Bandwidth.
func ParseBandwidthKHz(khz float64) (Bandwidth, error) {
	for _, b := range AllBandwidths {
		d := b.KHz() - khz
		if d < 0.05 && d > -0.05 {
			return b, nil
		}
	}
	return 0, errors.Wrapf(ErrValidation, "bandwidth %gkHz", khz)
}

// CodingRate is the denominator of the LoRa coding rate 4/5..4/8.
type CodingRate uint8

const (
	CR4_5 CodingRate = 5
	CR4_6 CodingRate = 6
	CR4_7 CodingRate = 7
	CR4_8 CodingRate = 8
)

func (cr CodingRate) Valid() bool {
	return cr >= CR4_5 && cr <= CR4_8
}

func (cr CodingRate) String() string {
	return fmt.Sprintf("4/%d", uint8(cr))
}

// SymbolTime is the duration of one LoRa symbol, 2^SF / BW.
func SymbolTime(sf SpreadingFactor, bw Bandwidth) time.Duration {
	if bw == 0 {
		return 0
	}
	return time.Duration(uint64(1)<<uint(sf)) * time.Second / time.Duration(bw)
}

// NodeAddr is the one byte node address carried in every frame header.
type NodeAddr uint8

const (
	BroadcastAddr NodeAddr = 0
	MaxNodeAddr   NodeAddr = 255
)

// PacketType is the frame type byte: a type in the high nibble and flags in the low nibble.
type PacketType uint8

const (
	PacketTypeMask PacketType = 0xF0
	PacketFlagMask PacketType = 0x0F

	PacketTypeData PacketType = 0x10
	PacketTypeAck  PacketType = 0x20

	PacketFlagAckReq    PacketType = 0x08
	PacketFlagEncrypted PacketType = 0x04
	PacketFlagAppKey    PacketType = 0x02
	PacketFlagBinary    PacketType = 0x01
)

// Kind returns the type nibble without flags.
func (t PacketType) Kind() PacketType {
	return t & PacketTypeMask
}

// Has reports whether all bits of flag are set.
func (t PacketType) Has(flag PacketType) bool {
	return t&flag == flag
}

func (t PacketType) String() string {
	var kind string
	switch t.Kind() {
	case PacketTypeData:
		kind = "data"
	case PacketTypeAck:
		kind = "ack"
	default:
		kind = fmt.Sprintf("0x%02x", uint8(t.Kind()))
	}
	if t&PacketFlagMask == 0 {
		return kind
	}
	return fmt.Sprintf("%s|0x%x", kind, uint8(t&PacketFlagMask))
}
