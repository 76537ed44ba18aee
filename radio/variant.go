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
	"github.com/pkg/errors"

	"github.com/lbtlora/sx127x/types"
)

// bitField is a bit field inside one configuration register.
type bitField struct {
	reg   byte
	mask  byte
	shift uint
}

func (f bitField) get(v byte) byte {
	return (v & f.mask) >> f.shift
}

func (f bitField) set(v byte, field byte) byte {
	return v&^f.mask | (field<<f.shift)&f.mask
}

// Variant is the register layout of one supported chip revision. The two profiles
// below are the only values; a Radio selects one from RegVersion at power on.
type Variant struct {
	Name    string
	Version byte

	bandwidth      bitField
	bandwidthCodes map[types.Bandwidth]byte
	codingRate     bitField
	implicitHeader bitField
	crc            bitField
	ldro           bitField
	agcAuto        bitField
	paDac          byte
	maxPower       bool
	rssiOffset     int
}

var (
	SX1272 = &Variant{
		Name:      "SX1272",
		Version:   VersionSX1272,
		bandwidth: bitField{RegModemConfig1, 0xC0, 6},
		bandwidthCodes: map[types.Bandwidth]byte{
			types.BW125: 0,
			types.BW250: 1,
			types.BW500: 2,
		},
		codingRate:     bitField{RegModemConfig1, 0x38, 3},
		implicitHeader: bitField{RegModemConfig1, 0x04, 2},
		crc:            bitField{RegModemConfig1, 0x02, 1},
		ldro:           bitField{RegModemConfig1, 0x01, 0},
		agcAuto:        bitField{RegModemConfig2, 0x04, 2},
		paDac:          RegPaDacSX1272,
		rssiOffset:     137,
	}

	SX1276 = &Variant{
		Name:      "SX1276",
		Version:   VersionSX1276,
		bandwidth: bitField{RegModemConfig1, 0xF0, 4},
		bandwidthCodes: map[types.Bandwidth]byte{
			types.BW7_8:   0,
			types.BW10_4:  1,
			types.BW15_6:  2,
			types.BW20_8:  3,
			types.BW31_25: 4,
			types.BW41_7:  5,
			types.BW62_5:  6,
			types.BW125:   7,
			types.BW250:   8,
			types.BW500:   9,
		},
		codingRate:     bitField{RegModemConfig1, 0x0E, 1},
		implicitHeader: bitField{RegModemConfig1, 0x01, 0},
		crc:            bitField{RegModemConfig2, 0x04, 2},
		ldro:           bitField{RegModemConfig3, 0x08, 3},
		agcAuto:        bitField{RegModemConfig3, 0x04, 2},
		paDac:          RegPaDacSX1276,
		maxPower:       true,
		rssiOffset:     157,
	}

	variants = []*Variant{SX1272, SX1276}
)

// VariantByVersion returns the profile matching a RegVersion value.
func VariantByVersion(version byte) (*Variant, error) {
	for _, v := range variants {
		if v.Version == version {
			return v, nil
		}
	}
	return nil, errors.Wrapf(types.ErrUnsupportedDevice, "version 0x%02x", version)
}

func (v *Variant) String() string {
	return v.Name
}

// SupportsBandwidth reports whether bw can be programmed on this chip.
func (v *Variant) SupportsBandwidth(bw types.Bandwidth) bool {
	_, ok := v.bandwidthCodes[bw]
	return ok
}

// Bandwidths lists the supported bandwidths, narrowest first.
func (v *Variant) Bandwidths() []types.Bandwidth {
	var res []types.Bandwidth
	for _, bw := range types.AllBandwidths {
		if v.SupportsBandwidth(bw) {
			res = append(res, bw)
		}
	}
	return res
}

// RSSIOffset is subtracted from the raw RSSI registers to get dBm.
func (v *Variant) RSSIOffset() int {
	return v.rssiOffset
}

// PaDacRegister is the address of RegPaDac on this chip.
func (v *Variant) PaDacRegister() byte {
	return v.paDac
}

func (v *Variant) bandwidthOf(config1 byte) (types.Bandwidth, bool) {
	code := v.bandwidth.get(config1)
	for bw, c := range v.bandwidthCodes {
		if c == code {
			return bw, true
		}
	}
	return 0, false
}

// ModemConfig holds the raw values of RegModemConfig1..3.
type ModemConfig struct {
	Config1 byte
	Config2 byte
	Config3 byte
}

func (c ModemConfig) reg(addr byte) byte {
	switch addr {
	case RegModemConfig1:
		return c.Config1
	case RegModemConfig2:
		return c.Config2
	default:
		return c.Config3
	}
}

// Decode interprets raw modem configuration registers. ok is false when a field holds
// a value this chip does not define.
func (v *Variant) Decode(c ModemConfig) (p ModemParams, ok bool) {
	bw, bwOk := v.bandwidthOf(c.reg(v.bandwidth.reg))
	p.Bandwidth = bw
	p.SpreadingFactor = types.SpreadingFactor(c.Config2 >> sfShift)
	p.CodingRate = types.CodingRate(v.codingRate.get(c.reg(v.codingRate.reg)) + 4)
	p.CRC = v.crc.get(c.reg(v.crc.reg)) != 0
	p.ImplicitHeader = v.implicitHeader.get(c.reg(v.implicitHeader.reg)) != 0
	p.LowDataRateOptimize = v.ldro.get(c.reg(v.ldro.reg)) != 0
	ok = bwOk && p.SpreadingFactor.Valid() && p.CodingRate.Valid()
	return
}
