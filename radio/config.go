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

var sfField = bitField{RegModemConfig2, sfMask, sfShift}

// configure runs one setter: validation has already happened, the radio lock is held.
func (r *Radio) configure(name string, apply func() error) error {
	if err := r.ready(); err != nil {
		return err
	}
	if err := apply(); err != nil {
		return errors.Wrapf(err, "set %s", name)
	}
	r.settle()
	return nil
}

func (r *Radio) SetSpreadingFactor(sf types.SpreadingFactor) error {
	if !sf.Valid() {
		return errors.Wrapf(types.ErrValidation, "spreading factor %d", sf)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configure("spreading factor", func() error {
		return r.applySpreadingFactor(sf)
	})
}

func (r *Radio) applySpreadingFactor(sf types.SpreadingFactor) error {
	err := r.withMode(StateStandby, func() error {
		if err := r.update(sfField, byte(sf)); err != nil {
			return err
		}
		if err := r.update(r.variant.agcAuto, 1); err != nil {
			return err
		}
		sf6 := sf == types.SF6
		if err := r.update(r.variant.implicitHeader, boolField(sf6)); err != nil {
			return err
		}
		optimize, threshold := byte(detectOptimizeOther), byte(detectThresholdOther)
		if sf6 {
			optimize, threshold = detectOptimizeSF6, detectThresholdSF6
		}
		if err := r.update(bitField{RegDetectOptimize, detectOptimizeMask, 0}, optimize); err != nil {
			return err
		}
		if err := r.writeVerify(RegDetectionThreshold, threshold); err != nil {
			return err
		}
		return r.applyLDRO(sf, 0)
	})
	if err != nil {
		return err
	}
	r.params.SpreadingFactor = sf
	r.params.ImplicitHeader = sf == types.SF6
	r.log.Debugf("spreading factor %s", sf)
	return nil
}

// applyLDRO sets the low data rate optimize bit for the combination of sf and bw.
// A zero argument is read from the chip.
func (r *Radio) applyLDRO(sf types.SpreadingFactor, bw types.Bandwidth) error {
	var err error
	if sf == 0 {
		if sf, err = r.readSpreadingFactor(); err != nil {
			return err
		}
	}
	if bw == 0 {
		if bw, err = r.readBandwidth(); err != nil {
			return err
		}
	}
	on := LowDataRateOptimize(sf, bw)
	if err = r.update(r.variant.ldro, boolField(on)); err != nil {
		return err
	}
	r.params.LowDataRateOptimize = on
	return nil
}

func (r *Radio) SetBandwidth(bw types.Bandwidth) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return err
	}
	if err := validateBandwidth(r.variant, bw); err != nil {
		return err
	}
	return r.configure("bandwidth", func() error {
		return r.applyBandwidth(bw)
	})
}

func (r *Radio) applyBandwidth(bw types.Bandwidth) error {
	err := r.withMode(StateStandby, func() error {
		if err := r.update(r.variant.bandwidth, r.variant.bandwidthCodes[bw]); err != nil {
			return err
		}
		return r.applyLDRO(0, bw)
	})
	if err != nil {
		return err
	}
	r.params.Bandwidth = bw
	r.log.Debugf("bandwidth %s", bw)
	return nil
}

func (r *Radio) SetCodingRate(cr types.CodingRate) error {
	if !cr.Valid() {
		return errors.Wrapf(types.ErrValidation, "coding rate %d", cr)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configure("coding rate", func() error {
		return r.applyCodingRate(cr)
	})
}

func (r *Radio) applyCodingRate(cr types.CodingRate) error {
	err := r.withMode(StateStandby, func() error {
		return r.update(r.variant.codingRate, byte(cr)-4)
	})
	if err != nil {
		return err
	}
	r.params.CodingRate = cr
	r.log.Debugf("coding rate %s", cr)
	return nil
}

// SetChannel programs the 24-bit FRF word.
func (r *Radio) SetChannel(frf uint32) error {
	if frf == 0 || frf > MaxChannel {
		return errors.Wrapf(types.ErrValidation, "channel 0x%x", frf)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configure("channel", func() error {
		return r.applyChannel(frf)
	})
}

// SetFrequency programs the carrier frequency given in Hz.
func (r *Radio) SetFrequency(hz uint64) error {
	if hz < 137000000 || hz > 1020000000 {
		return errors.Wrapf(types.ErrValidation, "frequency %d Hz", hz)
	}
	return r.SetChannel(FrequencyToChannel(hz))
}

func (r *Radio) applyChannel(frf uint32) error {
	err := r.withMode(StateStandby, func() error {
		for i, reg := range []byte{RegFrfMsb, RegFrfMid, RegFrfLsb} {
			if err := r.writeVerify(reg, byte(frf>>(16-8*uint(i)))); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.params.Channel = frf
	r.log.Debugf("channel 0x%06x", frf)
	return nil
}

// SetPower sets the output power on the PA_BOOST pin, 2..20 dBm. Above 17 dBm the
// high power DAC setting is enabled.
func (r *Radio) SetPower(dbm int) error {
	if dbm < MinPowerDbm || dbm > MaxPowerDbm {
		return errors.Wrapf(types.ErrValidation, "power %d dBm", dbm)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configure("power", func() error {
		return r.applyPower(dbm)
	})
}

func (r *Radio) applyPower(dbm int) error {
	dac, out := byte(paDacDefault), dbm-2
	if dbm > 17 {
		dac, out = paDacHighPower, dbm-5
	}
	pa := paSelectBoost | byte(out)&0x0F
	if r.variant.maxPower {
		pa |= paMaxPower
	}
	err := r.withMode(StateStandby, func() error {
		if err := r.writeVerify(r.variant.paDac, dac); err != nil {
			return err
		}
		return r.writeVerify(RegPaConfig, pa)
	})
	if err != nil {
		return err
	}
	r.params.PowerDbm = dbm
	r.log.Debugf("power %d dBm (pa 0x%02x dac 0x%02x)", dbm, pa, dac)
	return nil
}

func (r *Radio) SetSyncWord(w byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configure("sync word", func() error {
		return r.applySyncWord(w)
	})
}

func (r *Radio) applySyncWord(w byte) error {
	err := r.withMode(StateStandby, func() error {
		return r.writeVerify(RegSyncWord, w)
	})
	if err != nil {
		return err
	}
	r.params.SyncWord = w
	return nil
}

func (r *Radio) SetPreambleLength(n uint16) error {
	if n < MinPreambleLength {
		return errors.Wrapf(types.ErrValidation, "preamble length %d", n)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configure("preamble length", func() error {
		return r.applyPreambleLength(n)
	})
}

func (r *Radio) applyPreambleLength(n uint16) error {
	err := r.withMode(StateStandby, func() error {
		if err := r.writeVerify(RegPreambleMsb, byte(n>>8)); err != nil {
			return err
		}
		return r.writeVerify(RegPreambleLsb, byte(n))
	})
	if err != nil {
		return err
	}
	r.params.PreambleLength = n
	return nil
}

// SetCRC enables or disables the payload CRC.
func (r *Radio) SetCRC(on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configure("crc", func() error {
		return r.applyCRC(on)
	})
}

func (r *Radio) applyCRC(on bool) error {
	err := r.withMode(StateStandby, func() error {
		return r.update(r.variant.crc, boolField(on))
	})
	if err != nil {
		return err
	}
	r.params.CRC = on
	return nil
}

// SetNodeAddress stores the node address in the driver and in the chip's address
// filter registers, which are reached from LoRa standby with shared register access.
func (r *Radio) SetNodeAddress(a types.NodeAddr) error {
	if a == types.BroadcastAddr {
		return errors.Wrapf(types.ErrValidation, "node address %d is the broadcast address", a)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configure("node address", func() error {
		return r.applyNodeAddress(a)
	})
}

func (r *Radio) applyNodeAddress(a types.NodeAddr) error {
	err := r.withMode(StateStandbyFSKRegisters, func() error {
		if err := r.write(RegNodeAdrs, byte(a)); err != nil {
			return err
		}
		if err := r.write(RegBroadcastAdrs, byte(types.BroadcastAddr)); err != nil {
			return err
		}
		return r.verify(RegNodeAdrs, byte(a))
	})
	if err != nil {
		return err
	}
	r.node = a
	r.log.Debugf("node address %d", a)
	return nil
}

// SetMaxCurrent enables over current protection with trim rate, capped at 0x1B (240 mA).
func (r *Radio) SetMaxCurrent(rate byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configure("max current", func() error {
		return r.applyMaxCurrent(rate)
	})
}

func (r *Radio) applyMaxCurrent(rate byte) error {
	if rate > ocpMaxTrim {
		rate = ocpMaxTrim
	}
	return r.withMode(StateStandby, func() error {
		return r.writeVerify(RegOcp, rate|ocpOn)
	})
}

// SetMode applies preset n (1..10): a spreading factor and bandwidth pair, always
// followed by coding rate 4/5.
func (r *Radio) SetMode(n int) error {
	sf, bw, err := Preset(n)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err = r.ready(); err != nil {
		return err
	}
	if err = validateBandwidth(r.variant, bw); err != nil {
		return err
	}
	return r.configure("mode", func() error {
		return r.withMode(StateStandby, func() error {
			if err := r.applyCodingRate(types.CR4_5); err != nil {
				return err
			}
			if err := r.applySpreadingFactor(sf); err != nil {
				return err
			}
			return r.applyBandwidth(bw)
		})
	})
}

// Configure programs every field of p.
func (r *Radio) Configure(p ModemParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return err
	}
	if err := p.Validate(r.variant); err != nil {
		return err
	}
	return r.configure("modem", func() error {
		return r.withMode(StateStandby, func() error {
			return r.applyParams(p)
		})
	})
}

func (r *Radio) applyParams(p ModemParams) error {
	steps := []func() error{
		func() error { return r.applyCodingRate(p.CodingRate) },
		func() error { return r.applySpreadingFactor(p.SpreadingFactor) },
		func() error { return r.applyBandwidth(p.Bandwidth) },
		func() error { return r.applyCRC(p.CRC) },
		func() error { return r.applyChannel(p.Channel) },
		func() error { return r.applyPower(p.PowerDbm) },
		func() error { return r.applyPreambleLength(p.PreambleLength) },
		func() error { return r.applySyncWord(p.SyncWord) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
