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
	"github.com/simonlingoogle/go-simplelogger"
)

// RadioState is the operating mode of the chip as seen through RegOpMode.
type RadioState int

const (
	StateUnknown RadioState = iota
	StateSleep
	StateStandby
	StateStandbyFSKRegisters
	StateRX
	StateTX
	StateCAD
)

func (s RadioState) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateSleep:
		return "sleep"
	case StateStandby:
		return "standby"
	case StateStandbyFSKRegisters:
		return "standby-fsk-regs"
	case StateRX:
		return "rx"
	case StateTX:
		return "tx"
	case StateCAD:
		return "cad"
	default:
		simplelogger.Panicf("invalid RadioState: %d", int(s))
		return ""
	}
}

// OpMode is the RegOpMode value that enters s.
func (s RadioState) OpMode() byte {
	switch s {
	case StateSleep:
		return OpModeLoRaSleep
	case StateStandby:
		return OpModeLoRaStandby
	case StateStandbyFSKRegisters:
		return OpModeLoRaStandbyFSKAccess
	case StateRX:
		return OpModeLoRaRXContinuous
	case StateTX:
		return OpModeLoRaTX
	case StateCAD:
		return OpModeLoRaCAD
	default:
		simplelogger.Panicf("no op mode for state %s", s)
		return 0
	}
}

// StateOf maps a RegOpMode value back to a RadioState.
func StateOf(opMode byte) RadioState {
	switch opMode {
	case OpModeLoRaSleep:
		return StateSleep
	case OpModeLoRaStandby:
		return StateStandby
	case OpModeLoRaStandbyFSKAccess:
		return StateStandbyFSKRegisters
	case OpModeLoRaRXContinuous:
		return StateRX
	case OpModeLoRaTX:
		return StateTX
	case OpModeLoRaCAD:
		return StateCAD
	default:
		return StateUnknown
	}
}

// transition is a planned mode change. write is false when the chip already is in
// the target mode.
type transition struct {
	from  byte
	to    RadioState
	write bool
	value byte
}

// plan computes the transition from the raw op mode cur to next.
func plan(cur byte, next RadioState) transition {
	v := next.OpMode()
	return transition{
		from:  cur,
		to:    next,
		write: cur != v,
		value: v,
	}
}

// restorePlan computes the transition that returns to the saved raw op mode.
func restorePlan(cur byte, saved byte) transition {
	return transition{
		from:  cur,
		to:    StateOf(saved),
		write: cur != saved,
		value: saved,
	}
}

// modeScope is an acquired mode. release restores the op mode that was active when
// the scope was entered.
type modeScope struct {
	r       *Radio
	saved   byte
	current byte
	done    bool
}

// enterMode saves the current op mode and switches to next.
func (r *Radio) enterMode(next RadioState) (*modeScope, error) {
	saved, err := r.read(RegOpMode)
	if err != nil {
		return nil, err
	}
	t := plan(saved, next)
	if err = r.apply(t); err != nil {
		return nil, err
	}
	return &modeScope{r: r, saved: saved, current: t.value}, nil
}

func (s *modeScope) release() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.r.apply(restorePlan(s.current, s.saved))
}

func (r *Radio) apply(t transition) error {
	if t.write {
		if err := r.write(RegOpMode, t.value); err != nil {
			return err
		}
		r.log.Tracef("mode %s -> %s", StateOf(t.from), t.to)
	}
	r.state = t.to
	return nil
}

// withMode runs fn with the chip in mode next and restores the previous mode on every
// path out, including errors returned by fn.
func (r *Radio) withMode(next RadioState, fn func() error) (err error) {
	scope, err := r.enterMode(next)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := scope.release(); err == nil {
			err = rerr
		}
	}()
	return fn()
}
