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


package mac

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/lbtlora/sx127x/prng"
	"github.com/lbtlora/sx127x/types"
)

const (
	// cadCyclesLowSF and cadCyclesHighSF are the CAD cycles per listen for SF6..SF9
	// and SF10..SF12.
	cadCyclesLowSF  = 6
	cadCyclesHighSF = 3

	backoffMinSymbols = 1.5
	backoffMaxSymbols = 6.0
)

// sifsAt125kHz and cadAt125kHz hold the inter-frame spacing and the CAD cycle length
// in milliseconds per spreading factor at 125 kHz, indexed by SF-6.
var (
	sifsAt125kHz = [...]int{8, 16, 28, 36, 44, 96, 183}
	cadAt125kHz  = [...]int{2, 4, 6, 11, 16, 36, 62}
)

// Timing is the channel access timing of one modem configuration.
type Timing struct {
	Symbol     time.Duration
	SIFS       time.Duration
	CAD        time.Duration
	CADCycles  int
	BackoffMin time.Duration
	BackoffMax time.Duration
}

// TimingFor returns the timing for sf at bandwidth bw. Table values scale with
// 125 kHz / bw, so narrow bandwidths listen and wait longer.
func TimingFor(sf types.SpreadingFactor, bw types.Bandwidth) Timing {
	if !sf.Valid() {
		sf = types.SF7
	}
	if !bw.Valid() {
		bw = types.BW125
	}
	scale := func(ms int) time.Duration {
		d := time.Duration(ms) * time.Millisecond * time.Duration(types.BW125) / time.Duration(bw)
		if d < time.Millisecond {
			d = time.Millisecond
		}
		return d
	}

	sym := types.SymbolTime(sf, bw)
	t := Timing{
		Symbol:     sym,
		SIFS:       scale(sifsAt125kHz[sf-types.SF6]),
		CAD:        scale(cadAt125kHz[sf-types.SF6]),
		CADCycles:  cadCyclesLowSF,
		BackoffMin: time.Duration(backoffMinSymbols * float64(sym)),
		BackoffMax: time.Duration(backoffMaxSymbols * float64(sym)),
	}
	if sf >= types.SF10 {
		t.CADCycles = cadCyclesHighSF
	}
	return t
}

// Backoff draws a backoff interval uniformly from [BackoffMin, BackoffMax).
func (t Timing) Backoff(r *rand.Rand) time.Duration {
	return time.Duration(prng.Uniform(r, float64(t.BackoffMin), float64(t.BackoffMax)))
}

// CADTimeout bounds the wait for one CAD cycle to report CadDone.
func (t Timing) CADTimeout() time.Duration {
	d := 3 * t.CAD
	if floor := 5 * t.Symbol; d < floor {
		d = floor
	}
	return d + 10*time.Millisecond
}

func (t Timing) String() string {
	return fmt.Sprintf("sym=%s sifs=%s cad=%sx%d backoff=[%s,%s)", t.Symbol, t.SIFS, t.CAD, t.CADCycles, t.BackoffMin, t.BackoffMax)
}
