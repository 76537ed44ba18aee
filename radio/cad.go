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
	"time"

	"github.com/pkg/errors"

	"github.com/lbtlora/sx127x/types"
)

// DetectActivity runs one channel activity detection cycle and reports whether a
// LoRa preamble was seen. The chip returns to standby when the cycle ends.
func (r *Radio) DetectActivity(timeout time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return false, err
	}

	cur, err := r.read(RegOpMode)
	if err != nil {
		return false, err
	}
	if err = r.apply(plan(cur, StateStandby)); err != nil {
		return false, err
	}
	if err = r.write(RegIrqFlags, IrqAll); err != nil {
		return false, err
	}
	if err = r.apply(plan(OpModeLoRaStandby, StateCAD)); err != nil {
		return false, err
	}

	deadline := r.clock.Now().Add(timeout)
	for {
		flags, err := r.read(RegIrqFlags)
		if err != nil {
			return false, err
		}
		if flags&IrqCadDone != 0 {
			r.state = StateStandby
			detected := flags&IrqCadDetected != 0
			if err = r.write(RegIrqFlags, IrqAll); err != nil {
				return detected, err
			}
			r.log.Tracef("cad detected=%v", detected)
			return detected, nil
		}
		if !r.clock.Now().Before(deadline) {
			return false, r.recoverStandby(OpModeLoRaCAD, errors.Wrapf(types.ErrTimeout, "no CadDone within %s", timeout))
		}
		r.clock.Sleep(r.opts.PollPeriod)
	}
}
