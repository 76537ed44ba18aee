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
	"github.com/lbtlora/sx127x/types"
)

func (r *Radio) readSpreadingFactor() (types.SpreadingFactor, error) {
	v, err := r.readField(sfField)
	if err != nil {
		return 0, err
	}
	sf := types.SpreadingFactor(v)
	if !sf.Valid() {
		return 0, &types.VerifyError{Reg: RegModemConfig2, Want: byte(r.params.SpreadingFactor) << sfShift, Got: v << sfShift}
	}
	return sf, nil
}

func (r *Radio) readBandwidth() (types.Bandwidth, error) {
	v, err := r.read(r.variant.bandwidth.reg)
	if err != nil {
		return 0, err
	}
	bw, ok := r.variant.bandwidthOf(v)
	if !ok {
		return 0, &types.VerifyError{Reg: r.variant.bandwidth.reg, Want: r.variant.bandwidth.set(v, r.variant.bandwidthCodes[r.params.Bandwidth]), Got: v}
	}
	return bw, nil
}

// SpreadingFactor reads the spreading factor from the chip.
func (r *Radio) SpreadingFactor() (types.SpreadingFactor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readSpreadingFactor()
}

// Bandwidth reads the bandwidth from the chip.
func (r *Radio) Bandwidth() (types.Bandwidth, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return 0, err
	}
	return r.readBandwidth()
}

// CodingRate reads the coding rate from the chip.
func (r *Radio) CodingRate() (types.CodingRate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return 0, err
	}
	v, err := r.readField(r.variant.codingRate)
	if err != nil {
		return 0, err
	}
	cr := types.CodingRate(v + 4)
	if !cr.Valid() {
		return 0, &types.VerifyError{Reg: r.variant.codingRate.reg, Want: byte(r.params.CodingRate) - 4, Got: v}
	}
	return cr, nil
}

// Channel reads the FRF word from the chip.
func (r *Radio) Channel() (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var frf uint32
	for _, reg := range []byte{RegFrfMsb, RegFrfMid, RegFrfLsb} {
		v, err := r.read(reg)
		if err != nil {
			return 0, err
		}
		frf = frf<<8 | uint32(v)
	}
	return frf, nil
}

func (r *Radio) PreambleLength() (uint16, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msb, err := r.read(RegPreambleMsb)
	if err != nil {
		return 0, err
	}
	lsb, err := r.read(RegPreambleLsb)
	if err != nil {
		return 0, err
	}
	return uint16(msb)<<8 | uint16(lsb), nil
}

func (r *Radio) SyncWord() (byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read(RegSyncWord)
}

// PowerConfig returns the raw RegPaConfig value.
func (r *Radio) PowerConfig() (byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read(RegPaConfig)
}

// LowDataRateOptimize reads the low data rate optimize bit.
func (r *Radio) LowDataRateOptimize() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return false, err
	}
	v, err := r.readField(r.variant.ldro)
	return v != 0, err
}

// ImplicitHeader reads the implicit header mode bit.
func (r *Radio) ImplicitHeader() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return false, err
	}
	v, err := r.readField(r.variant.implicitHeader)
	return v != 0, err
}

// ReadModemConfig returns RegModemConfig1..3.
func (r *Radio) ReadModemConfig() (ModemConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var c ModemConfig
	var err error
	if c.Config1, err = r.read(RegModemConfig1); err != nil {
		return c, err
	}
	if c.Config2, err = r.read(RegModemConfig2); err != nil {
		return c, err
	}
	c.Config3, err = r.read(RegModemConfig3)
	return c, err
}

// ReadRegister reads any register. Meant for diagnostics.
func (r *Radio) ReadRegister(reg byte) (byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read(reg)
}
