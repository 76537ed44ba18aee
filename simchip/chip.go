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


// Package simchip is an in-memory model of the SX127x LoRa register file. It
// implements bus.Transport, so a radio.Radio drives it exactly like real hardware:
// transmissions take their time on air, CAD cycles end with CadDone, received frames
// land in the FIFO with RxDone. Time only moves when the clock does.
package simchip

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"

	"github.com/lbtlora/sx127x/bus"
	"github.com/lbtlora/sx127x/radio"
)

const (
	modeSleep   = 0x00
	modeStandby = 0x01
	modeTX      = 0x03
	modeRXCont  = 0x05
	modeCAD     = 0x07

	// DefaultSNR is 10 dB in quarter dB steps.
	DefaultSNR int8 = 40
	// DefaultRSSI is the raw RegPktRssiValue of injected frames.
	DefaultRSSI byte = 90

	noiseRSSI = 20
)

// Transmission is a frame the chip put on air.
type Transmission struct {
	Frame []byte
	Start time.Time
	End   time.Time
}

// Injection is a frame arriving at the antenna.
type Injection struct {
	Frame    []byte
	Start    time.Time
	End      time.Time
	CRCError bool
	SNR      int8
	RSSI     byte
}

// Stats counts what the chip did.
type Stats struct {
	Transmissions int
	CADCycles     int
	CADDetections int
	Received      int
	Missed        int
	Resets        int
}

// Chip is one simulated SX1272 or SX1276.
type Chip struct {
	mu      sync.Mutex
	clock   bus.Clock
	medium  *Medium
	version byte
	variant *radio.Variant

	regs  [0x80]byte
	fsk   [0x80]byte
	fifo  [256]byte
	flags byte

	txEnd   time.Time
	cadEnd  time.Time
	cadBusy bool
	rxSince time.Time
	rxLeft  time.Time

	channelBusy bool
	corruptNext int
	stuck       bool
	frozen      map[byte]bool
	busErr      error

	transmitted []Transmission
	stats       Stats

	inboxMu sync.Mutex
	inbox   []Injection
}

// New returns a chip answering RegVersion with version. A nil medium gives the chip
// a channel of its own.
func New(clock bus.Clock, medium *Medium, version byte) *Chip {
	if medium == nil {
		medium = NewMedium()
	}
	c := &Chip{
		clock:   clock,
		medium:  medium,
		version: version,
		frozen:  map[byte]bool{},
	}
	c.variant, _ = radio.VariantByVersion(version)
	c.reset()
	medium.attach(c)
	return c
}

// NewSX1276 is New with the SX1276 version code.
func NewSX1276(clock bus.Clock, medium *Medium) *Chip {
	return New(clock, medium, radio.VersionSX1276)
}

// NewSX1272 is New with the SX1272 version code.
func NewSX1272(clock bus.Clock, medium *Medium) *Chip {
	return New(clock, medium, radio.VersionSX1272)
}

// reset loads the power-on register values.
func (c *Chip) reset() {
	c.regs = [0x80]byte{}
	c.fsk = [0x80]byte{}
	c.flags = 0
	c.txEnd, c.cadEnd = time.Time{}, time.Time{}

	sx1272 := c.variant == radio.SX1272
	r := &c.regs
	r[radio.RegOpMode] = 0x09
	r[radio.RegPaConfig] = 0x4F
	r[radio.RegModemConfig1] = 0x72
	r[radio.RegModemConfig3] = 0x04
	r[radio.RegPaDacSX1276] = 0x84
	if sx1272 {
		r[radio.RegOpMode] = 0x01
		r[radio.RegPaConfig] = 0x0F
		r[radio.RegModemConfig1] = 0x08
		r[radio.RegModemConfig3] = 0x00
		r[radio.RegPaDacSX1276] = 0x00
		r[radio.RegPaDacSX1272] = 0x84
	}
	r[radio.RegFrfMsb], r[radio.RegFrfMid], r[radio.RegFrfLsb] = 0x6C, 0x80, 0x00
	r[radio.RegPaRamp] = 0x09
	r[radio.RegOcp] = 0x2B
	r[radio.RegLna] = 0x20
	r[radio.RegFifoTxBaseAddr] = 0x80
	r[radio.RegModemConfig2] = 0x70
	r[radio.RegSymbTimeoutLsb] = 0x64
	r[radio.RegPreambleLsb] = 0x08
	r[radio.RegPayloadLength] = 0x01
	r[radio.RegMaxPayloadLength] = 0xFF
	r[radio.RegRssiValue] = noiseRSSI
	r[radio.RegDetectOptimize] = 0xC3
	r[radio.RegDetectionThreshold] = 0x0A
	r[radio.RegSyncWord] = 0x12
	r[radio.RegVersion] = c.version
}

// Transfer implements bus.Transport.
func (c *Chip) Transfer(addr, data byte) (byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busErr != nil {
		return 0, c.busErr
	}

	now := c.clock.Now()
	c.advance(now)
	reg := addr &^ 0x80
	if addr&0x80 != 0 {
		c.writeReg(reg, data, now)
		return 0, nil
	}
	return c.readReg(reg), nil
}

func (c *Chip) loRa() bool {
	return c.regs[radio.RegOpMode]&radio.OpModeLongRange != 0
}

// sharedPage reports whether reg is currently mapped to the FSK register page.
func (c *Chip) sharedPage(reg byte) bool {
	return c.loRa() && c.regs[radio.RegOpMode]&radio.OpModeAccessShared != 0 && reg >= 0x0D && reg <= 0x3F
}

func (c *Chip) writeReg(reg, v byte, now time.Time) {
	if c.frozen[reg] {
		return
	}
	switch reg {
	case radio.RegFifo:
		ptr := c.regs[radio.RegFifoAddrPtr]
		c.fifo[ptr] = v
		c.regs[radio.RegFifoAddrPtr] = ptr + 1
	case radio.RegOpMode:
		c.setOpMode(v, now)
	case radio.RegIrqFlags:
		c.flags &^= v
	case radio.RegVersion, radio.RegRxNbBytes, radio.RegFifoRxCurrentAddr, radio.RegPktSnrValue,
		radio.RegPktRssiValue, radio.RegRssiValue, radio.RegFifoRxByteAddr:
		// read only
	default:
		if c.sharedPage(reg) {
			c.fsk[reg] = v
		} else {
			c.regs[reg] = v
		}
	}
}

func (c *Chip) readReg(reg byte) byte {
	switch reg {
	case radio.RegFifo:
		ptr := c.regs[radio.RegFifoAddrPtr]
		c.regs[radio.RegFifoAddrPtr] = ptr + 1
		return c.fifo[ptr]
	case radio.RegIrqFlags:
		return c.flags
	default:
		if c.sharedPage(reg) {
			return c.fsk[reg]
		}
		return c.regs[reg]
	}
}

func (c *Chip) setOpMode(v byte, now time.Time) {
	if c.stuck {
		return
	}
	old := c.regs[radio.RegOpMode]
	oldMode := old & radio.OpModeMask
	if (v^old)&radio.OpModeLongRange != 0 && oldMode != modeSleep {
		// LongRangeMode only changes in sleep
		v = v&^radio.OpModeLongRange | old&radio.OpModeLongRange
	}
	newMode := v & radio.OpModeMask

	if oldMode == modeTX && newMode != modeTX && !c.txEnd.IsZero() {
		c.medium.abort(c, now)
		c.txEnd = time.Time{}
	}
	if oldMode == modeCAD && newMode != modeCAD {
		c.cadEnd = time.Time{}
	}
	if oldMode == modeRXCont && newMode != modeRXCont {
		c.rxLeft = now
	}
	c.regs[radio.RegOpMode] = v
	if v&radio.OpModeLongRange == 0 || newMode == oldMode {
		return
	}

	switch newMode {
	case modeTX:
		c.startTX(now)
	case modeCAD:
		c.startCAD(now)
	case modeRXCont:
		if !c.rxLeft.Equal(now) || c.rxSince.IsZero() {
			c.rxSince = now
		}
	}
}

// modem decodes the modem configuration registers.
func (c *Chip) modem() radio.ModemParams {
	p, _ := c.variant.Decode(radio.ModemConfig{
		Config1: c.regs[radio.RegModemConfig1],
		Config2: c.regs[radio.RegModemConfig2],
		Config3: c.regs[radio.RegModemConfig3],
	})
	p.PreambleLength = uint16(c.regs[radio.RegPreambleMsb])<<8 | uint16(c.regs[radio.RegPreambleLsb])
	return p
}

func (c *Chip) startTX(now time.Time) {
	n := int(c.regs[radio.RegPayloadLength])
	base := c.regs[radio.RegFifoTxBaseAddr]
	frame := make([]byte, n)
	for i := range frame {
		frame[i] = c.fifo[base+byte(i)]
	}
	end := now.Add(c.modem().TimeOnAir(n))
	c.txEnd = end
	c.transmitted = append(c.transmitted, Transmission{Frame: frame, Start: now, End: end})
	c.stats.Transmissions++
	c.medium.transmit(Air{From: c, Frame: frame, Start: now, End: end})
}

func (c *Chip) startCAD(now time.Time) {
	c.cadEnd = now.Add(2 * c.modem().SymbolTime())
	c.cadBusy = c.channelBusy || c.medium.busy(c, now) || c.inboxBusy(now)
	c.stats.CADCycles++
}

// advance applies everything that happened on the chip up to now.
func (c *Chip) advance(now time.Time) {
	if !c.loRa() {
		return
	}
	switch c.regs[radio.RegOpMode] & radio.OpModeMask {
	case modeTX:
		if !c.txEnd.IsZero() && !now.Before(c.txEnd) {
			c.flags |= radio.IrqTxDone
			c.txEnd = time.Time{}
			c.toStandby()
		}
	case modeCAD:
		if !c.cadEnd.IsZero() && !now.Before(c.cadEnd) {
			c.flags |= radio.IrqCadDone
			if c.cadBusy {
				c.flags |= radio.IrqCadDetected
				c.stats.CADDetections++
			}
			c.cadEnd = time.Time{}
			c.toStandby()
		}
	case modeRXCont:
		c.deliver(now)
	}
}

func (c *Chip) toStandby() {
	c.regs[radio.RegOpMode] = c.regs[radio.RegOpMode]&^radio.OpModeMask | modeStandby
}

// deliver moves the next completely received frame into the FIFO. Frames whose
// preamble started before the receiver was on are lost.
func (c *Chip) deliver(now time.Time) {
	if c.flags&radio.IrqRxDone != 0 {
		return
	}
	c.inboxMu.Lock()
	var next *Injection
	kept := c.inbox[:0]
	for i := range c.inbox {
		in := c.inbox[i]
		switch {
		case in.End.After(now):
			kept = append(kept, in)
		case in.Start.Before(c.rxSince):
			c.stats.Missed++
		case next == nil:
			next = &in
		default:
			kept = append(kept, in)
		}
	}
	c.inbox = kept
	c.inboxMu.Unlock()
	if next == nil {
		return
	}

	base := c.regs[radio.RegFifoRxBaseAddr]
	for i, b := range next.Frame {
		c.fifo[base+byte(i)] = b
	}
	c.regs[radio.RegRxNbBytes] = byte(len(next.Frame))
	c.regs[radio.RegFifoRxCurrentAddr] = base
	c.regs[radio.RegPktSnrValue] = byte(next.SNR)
	c.regs[radio.RegPktRssiValue] = next.RSSI
	c.flags |= radio.IrqRxDone | radio.IrqValidHeader
	if next.CRCError || c.corruptNext > 0 {
		c.flags |= radio.IrqPayloadCrcError
		if c.corruptNext > 0 {
			c.corruptNext--
		}
	}
	c.stats.Received++
}

func (c *Chip) inboxBusy(now time.Time) bool {
	c.inboxMu.Lock()
	defer c.inboxMu.Unlock()
	for _, in := range c.inbox {
		if !now.Before(in.Start) && now.Before(in.End) {
			return true
		}
	}
	return false
}

// Deliver queues a frame arriving at the antenna. Zero SNR and RSSI take the defaults.
func (c *Chip) Deliver(in Injection) {
	if in.SNR == 0 {
		in.SNR = DefaultSNR
	}
	if in.RSSI == 0 {
		in.RSSI = DefaultRSSI
	}
	in.Frame = append([]byte(nil), in.Frame...)
	c.inboxMu.Lock()
	c.inbox = append(c.inbox, in)
	c.inboxMu.Unlock()
}

// Inject queues frame as received between start and end.
func (c *Chip) Inject(frame []byte, start, end time.Time) {
	c.Deliver(Injection{Frame: frame, Start: start, End: end})
}

// Send queues frame as sent by a remote node after delay, with the time on air of the
// current modem configuration.
func (c *Chip) Send(frame []byte, delay time.Duration) {
	c.mu.Lock()
	start := c.clock.Now().Add(delay)
	end := start.Add(c.modem().TimeOnAir(len(frame)))
	c.mu.Unlock()
	c.Inject(frame, start, end)
}

// TimeOnAir is the duration of an n byte frame with the current register configuration.
func (c *Chip) TimeOnAir(n int) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modem().TimeOnAir(n)
}

// SetChannelBusy makes every CAD cycle detect activity.
func (c *Chip) SetChannelBusy(busy bool) {
	c.mu.Lock()
	c.channelBusy = busy
	c.mu.Unlock()
}

// CorruptNext flags the next n received frames with a payload CRC error.
func (c *Chip) CorruptNext(n int) {
	c.mu.Lock()
	c.corruptNext = n
	c.mu.Unlock()
}

// SetStuck makes the chip ignore every op mode write.
func (c *Chip) SetStuck(stuck bool) {
	c.mu.Lock()
	c.stuck = stuck
	c.mu.Unlock()
}

// Freeze makes the chip ignore writes to reg.
func (c *Chip) Freeze(reg byte) {
	c.mu.Lock()
	c.frozen[reg] = true
	c.mu.Unlock()
}

// FailBus makes every transfer fail with err; nil restores the bus.
func (c *Chip) FailBus(err error) {
	c.mu.Lock()
	c.busErr = err
	c.mu.Unlock()
}

// Peek reads a LoRa page register without side effects on the FIFO pointer.
func (c *Chip) Peek(reg byte) byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance(c.clock.Now())
	if reg == radio.RegIrqFlags {
		return c.flags
	}
	return c.regs[reg]
}

// PeekFSK reads an FSK page register.
func (c *Chip) PeekFSK(reg byte) byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fsk[reg]
}

// Poke writes a register directly. Writes to RegIrqFlags set flags.
func (c *Chip) Poke(reg, v byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if reg == radio.RegIrqFlags {
		c.flags |= v
		return
	}
	c.regs[reg] = v
}

// Transmitted returns every frame the chip sent.
func (c *Chip) Transmitted() []Transmission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Transmission(nil), c.transmitted...)
}

func (c *Chip) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Chip) Medium() *Medium {
	return c.medium
}

func (c *Chip) Clock() bus.Clock {
	return c.clock
}

// ResetLine returns a line that resets the chip while driven to its active level.
func (c *Chip) ResetLine(activeLow bool) bus.Line {
	active := gpio.High
	if activeLow {
		active = gpio.Low
	}
	return lineFunc(func(l gpio.Level) error {
		if l != active {
			return nil
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		c.reset()
		c.stats.Resets++
		return nil
	})
}

type lineFunc func(l gpio.Level) error

func (f lineFunc) Out(l gpio.Level) error {
	return f(l)
}

// Pin records the levels driven on it.
type Pin struct {
	mu     sync.Mutex
	levels []gpio.Level
}

func (p *Pin) Out(l gpio.Level) error {
	p.mu.Lock()
	p.levels = append(p.levels, l)
	p.mu.Unlock()
	return nil
}

// Levels returns the levels driven so far.
func (p *Pin) Levels() []gpio.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]gpio.Level(nil), p.levels...)
}

// ErrBus is a convenience error for FailBus.
var ErrBus = errors.New("simulated bus fault")
