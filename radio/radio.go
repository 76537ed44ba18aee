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


// Package radio drives a Semtech SX1272 or SX1276 in LoRa mode: configuration with
// save-modify-restore of the operating mode, frame transmit and receive through the
// FIFO, channel activity detection and link quality readings.
package radio

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"

	"github.com/lbtlora/sx127x/bus"
	"github.com/lbtlora/sx127x/logger"
	"github.com/lbtlora/sx127x/types"
)

const (
	resetSettleDelay   = 100 * time.Millisecond
	modeEntryDelay     = 200 * time.Millisecond
	modeEntryAttempts  = 10
	defaultSettleDelay = 100 * time.Millisecond
	defaultPollPeriod  = time.Millisecond
)

// ErrNotPoweredOn is returned by operations that need the chip variant before PowerOn succeeded.
var ErrNotPoweredOn = errors.New("radio not powered on")

// Options configure a Radio.
type Options struct {
	Reset          bus.Line // optional reset line
	CS             bus.Line // optional chip select, held high while idle
	ResetActiveLow bool     // pulse low then high instead of high then low
	Clock          bus.Clock
	SettleDelay    time.Duration // wait after each configuration change
	PollPeriod     time.Duration // interval between status flag polls
	Params         ModemParams   // applied by PowerOn
	NodeAddress    types.NodeAddr
	Promiscuous    bool // deliver frames addressed to other nodes
	Log            *logger.Component
}

func DefaultOptions() Options {
	return Options{
		Clock:       bus.SystemClock{},
		SettleDelay: defaultSettleDelay,
		PollPeriod:  defaultPollPeriod,
		Params:      DefaultModemParams(),
		NodeAddress: 1,
	}
}

// Radio is one SX127x chip. All methods are safe for concurrent use; every multi
// register sequence runs under one mutex.
type Radio struct {
	mu sync.Mutex

	bus     bus.Transport
	reset   bus.Line
	cs      bus.Line
	clock   bus.Clock
	log     *logger.Component
	opts    Options
	variant *Variant

	state  RadioState
	params ModemParams
	node   types.NodeAddr
	seq    byte

	lastSNR  int
	lastRSSI int
}

// New returns a Radio on transport t. The chip is not touched before PowerOn.
func New(t bus.Transport, opts Options) *Radio {
	if opts.Clock == nil {
		opts.Clock = bus.SystemClock{}
	}
	if opts.PollPeriod <= 0 {
		opts.PollPeriod = defaultPollPeriod
	}
	if opts.Log == nil {
		opts.Log = logger.Named("radio")
	}
	return &Radio{
		bus:    t,
		reset:  opts.Reset,
		cs:     opts.CS,
		clock:  opts.Clock,
		log:    opts.Log,
		opts:   opts,
		params: opts.Params.Normalized(),
		node:   opts.NodeAddress,
	}
}

// PowerOn resets the chip, identifies the variant, switches to LoRa standby and
// programs the configured modem parameters.
func (r *Radio) PowerOn() error {
	if err := r.opts.Params.Validate(nil); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cs != nil {
		if err := r.cs.Out(gpio.High); err != nil {
			return errors.Wrap(err, "cs idle")
		}
	}
	if err := r.pulseReset(); err != nil {
		return err
	}

	version, err := r.read(RegVersion)
	if err != nil {
		return err
	}
	if r.variant, err = VariantByVersion(version); err != nil {
		return err
	}
	r.log.Infof("found %s (version 0x%02x)", r.variant, version)

	if err = r.enterLoRa(); err != nil {
		return err
	}

	if err = r.initChip(r.opts.Params); err != nil {
		return err
	}
	r.settle()
	r.log.Infof("configured %s", r.params)
	return nil
}

func (r *Radio) pulseReset() error {
	if r.reset == nil {
		return nil
	}
	first, second := gpio.High, gpio.Low
	if r.opts.ResetActiveLow {
		first, second = gpio.Low, gpio.High
	}
	for _, l := range []gpio.Level{first, second} {
		if err := r.reset.Out(l); err != nil {
			return errors.Wrap(err, "reset")
		}
		r.clock.Sleep(resetSettleDelay)
	}
	return nil
}

// enterLoRa switches the chip from FSK to LoRa. The long range bit only changes in
// sleep, so each attempt goes through FSK sleep and LoRa sleep to LoRa standby.
func (r *Radio) enterLoRa() error {
	for attempt := 1; ; attempt++ {
		for _, m := range []byte{OpModeFSKSleep, OpModeLoRaSleep, OpModeLoRaStandby} {
			if err := r.write(RegOpMode, m); err != nil {
				return err
			}
		}
		r.clock.Sleep(modeEntryDelay)

		v, err := r.read(RegOpMode)
		if err != nil {
			return err
		}
		if v == OpModeLoRaStandby {
			r.state = StateStandby
			r.log.Debugf("LoRa standby after %d attempt(s)", attempt)
			return nil
		}
		if attempt >= modeEntryAttempts {
			r.state = StateOf(v)
			return errors.Wrapf(types.ErrModeEntryTimeout, "op mode 0x%02x after %d attempts", v, attempt)
		}
	}
}

func (r *Radio) initChip(p ModemParams) error {
	if err := p.Validate(r.variant); err != nil {
		return err
	}
	if err := r.write(RegFifoTxBaseAddr, fifoTxBase); err != nil {
		return err
	}
	if err := r.write(RegFifoRxBaseAddr, fifoRxBase); err != nil {
		return err
	}
	if err := r.applyMaxCurrent(ocpMaxTrim); err != nil {
		return err
	}
	if err := r.applyParams(p); err != nil {
		return err
	}
	if r.node != types.BroadcastAddr {
		return r.applyNodeAddress(r.node)
	}
	return nil
}

// PowerOff puts the chip to sleep and releases chip select.
func (r *Radio) PowerOff() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.variant != nil {
		err = r.sleep()
	}
	if r.cs != nil {
		if csErr := r.cs.Out(gpio.Low); err == nil {
			err = csErr
		}
	}
	return err
}

// Sleep puts the chip into LoRa sleep.
func (r *Radio) Sleep() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return err
	}
	return r.sleep()
}

func (r *Radio) sleep() error {
	if err := r.write(RegOpMode, OpModeLoRaStandby); err != nil {
		return err
	}
	if err := r.writeVerify(RegOpMode, OpModeLoRaSleep); err != nil {
		return err
	}
	r.state = StateSleep
	return nil
}

// Variant returns the detected chip profile, nil before PowerOn.
func (r *Radio) Variant() *Variant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.variant
}

// State returns the last mode the driver put the chip in. The chip leaves TX and
// CAD on its own; ReadState asks the chip.
func (r *Radio) State() RadioState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// ReadState reads RegOpMode.
func (r *Radio) ReadState() (RadioState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, err := r.read(RegOpMode)
	if err != nil {
		return StateUnknown, err
	}
	r.state = StateOf(v)
	return r.state, nil
}

// Params returns the mirror of the programmed modem parameters.
func (r *Radio) Params() ModemParams {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.params
}

func (r *Radio) NodeAddress() types.NodeAddr {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.node
}

// SequenceNumber is the sequence number the next frame will carry.
func (r *Radio) SequenceNumber() byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}

// SetPromiscuous controls whether PollReceived returns frames addressed to other nodes.
func (r *Radio) SetPromiscuous(on bool) {
	r.mu.Lock()
	r.opts.Promiscuous = on
	r.mu.Unlock()
}

// Clock returns the clock the radio waits on.
func (r *Radio) Clock() bus.Clock {
	return r.clock
}

func (r *Radio) ready() error {
	if r.variant == nil {
		return ErrNotPoweredOn
	}
	return nil
}

func (r *Radio) settle() {
	if r.opts.SettleDelay > 0 {
		r.clock.Sleep(r.opts.SettleDelay)
	}
}

func (r *Radio) read(reg byte) (byte, error) {
	v, err := r.bus.Transfer(reg&^writeFlag, 0)
	if err != nil {
		return 0, errors.Wrapf(err, "read reg 0x%02x", reg)
	}
	return v, nil
}

func (r *Radio) write(reg, v byte) error {
	if _, err := r.bus.Transfer(reg|writeFlag, v); err != nil {
		return errors.Wrapf(err, "write reg 0x%02x", reg)
	}
	return nil
}

func (r *Radio) verify(reg, want byte) error {
	got, err := r.read(reg)
	if err != nil {
		return err
	}
	if got != want {
		return &types.VerifyError{Reg: reg, Want: want, Got: got}
	}
	return nil
}

func (r *Radio) writeVerify(reg, v byte) error {
	if err := r.write(reg, v); err != nil {
		return err
	}
	return r.verify(reg, v)
}

// update rewrites only the bits of f in its register and verifies the result.
func (r *Radio) update(f bitField, field byte) error {
	cur, err := r.read(f.reg)
	if err != nil {
		return err
	}
	return r.writeVerify(f.reg, f.set(cur, field))
}

func (r *Radio) readField(f bitField) (byte, error) {
	v, err := r.read(f.reg)
	if err != nil {
		return 0, err
	}
	return f.get(v), nil
}

func boolField(on bool) byte {
	if on {
		return 1
	}
	return 0
}
