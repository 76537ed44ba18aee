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

// NewFrame builds a frame from this node to dst and reserves the next sequence
// number. The payload is copied.
func (r *Radio) NewFrame(dst types.NodeAddr, typ types.PacketType, payload []byte) (*Frame, error) {
	if err := validatePayload(len(payload)); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	f := &Frame{
		Dst:     dst,
		Type:    typ,
		Src:     r.node,
		Seq:     r.seq,
		Payload: append([]byte(nil), payload...),
	}
	r.seq++
	return f, nil
}

// Transmit sends payload as a data frame to dst and returns the frame that went out.
// The sequence number advances once per call. Completion is reported by
// CheckTransmissionStatus or WaitTransmitDone.
func (r *Radio) Transmit(dst types.NodeAddr, payload []byte) (*Frame, error) {
	f, err := r.NewFrame(dst, types.PacketTypeData, payload)
	if err != nil {
		return nil, err
	}
	return f, r.TransmitFrame(f)
}

// TransmitFrame writes f into the FIFO and starts the transmission. It does not touch
// the sequence number, so a frame can be sent again unchanged.
func (r *Radio) TransmitFrame(f *Frame) error {
	if err := validatePayload(len(f.Payload)); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return err
	}

	if err := r.transmit(f); err != nil {
		return errors.Wrapf(r.recoverStandby(0, err), "transmit %s", f)
	}
	r.log.Debugf("tx %s", f)
	return nil
}

func (r *Radio) transmit(f *Frame) error {
	cur, err := r.read(RegOpMode)
	if err != nil {
		return err
	}
	if err = r.apply(plan(cur, StateStandby)); err != nil {
		return err
	}
	if err = r.write(RegIrqFlags, IrqAll); err != nil {
		return err
	}
	if err = r.write(RegPayloadLength, byte(f.Len())); err != nil {
		return err
	}
	if err = r.write(RegFifoAddrPtr, fifoTxBase); err != nil {
		return err
	}
	for _, b := range f.Encode() {
		if err = r.write(RegFifo, b); err != nil {
			return err
		}
	}
	return r.apply(plan(OpModeLoRaStandby, StateTX))
}

// recoverStandby leaves the chip in standby after cause ended an operation that
// started in mode from. A failing mode write is added to cause.
func (r *Radio) recoverStandby(from byte, cause error) error {
	if err := r.apply(plan(from, StateStandby)); err != nil {
		r.log.Warnf("standby after %v: %v", cause, err)
		return errors.Wrapf(cause, "standby failed (%v)", err)
	}
	return cause
}

// clearFlags clears all IRQ flags from standby and returns to the previous mode.
func (r *Radio) clearFlags() error {
	return r.withMode(StateStandby, func() error {
		return r.write(RegIrqFlags, IrqAll)
	})
}

// CheckTransmissionStatus reports whether the last transmission completed. On
// completion the status flags are cleared.
func (r *Radio) CheckTransmissionStatus() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	flags, err := r.read(RegIrqFlags)
	if err != nil {
		return false, err
	}
	if flags&IrqTxDone == 0 {
		return false, nil
	}
	// the chip is back in standby once TxDone is raised
	r.state = StateStandby
	if err = r.clearFlags(); err != nil {
		return true, err
	}
	return true, nil
}

// WaitTransmitDone polls for the end of the current transmission.
func (r *Radio) WaitTransmitDone(timeout time.Duration) error {
	deadline := r.clock.Now().Add(timeout)
	for {
		done, err := r.CheckTransmissionStatus()
		if err != nil || done {
			return err
		}
		if !r.clock.Now().Before(deadline) {
			return errors.Wrapf(types.ErrTimeout, "no TxDone within %s", timeout)
		}
		r.clock.Sleep(r.opts.PollPeriod)
	}
}

// StartReceive puts the chip into continuous receive.
func (r *Radio) StartReceive() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return err
	}

	cur, err := r.read(RegOpMode)
	if err != nil {
		return err
	}
	if err = r.apply(plan(cur, StateStandby)); err != nil {
		return err
	}
	r.lastSNR, r.lastRSSI = 0, 0

	timeout := byte(symbTimeoutLowSF)
	if r.params.SpreadingFactor >= types.SF10 {
		timeout = symbTimeoutHighSF
	}
	regs := []struct{ reg, v byte }{
		{RegPaRamp, paRampDefault},
		{RegLna, lnaMaxGain},
		{RegFifoRxBaseAddr, fifoRxBase},
		{RegFifoAddrPtr, fifoRxBase},
		{RegSymbTimeoutLsb, timeout},
		{RegPayloadLength, MaxFrameLength},
		{RegMaxPayloadLength, MaxFrameLength},
		{RegIrqFlags, IrqAll},
	}
	for _, w := range regs {
		if err = r.write(w.reg, w.v); err != nil {
			return errors.Wrap(err, "start receive")
		}
	}
	if err = r.apply(plan(OpModeLoRaStandby, StateRX)); err != nil {
		return err
	}
	r.log.Tracef("rx on")
	return nil
}

// PollReceived waits up to timeout for a frame addressed to this node or to the
// broadcast address. A frame with a CRC error is dropped and reported as
// ErrCorruptFrame; no frame before the deadline is ErrTimeout.
func (r *Radio) PollReceived(timeout time.Duration) (*Frame, error) {
	deadline := r.clock.Now().Add(timeout)
	for {
		f, err := r.pollOnce()
		if err != nil || f != nil {
			return f, err
		}
		if !r.clock.Now().Before(deadline) {
			return nil, errors.Wrapf(types.ErrTimeout, "no frame within %s", timeout)
		}
		r.clock.Sleep(r.opts.PollPeriod)
	}
}

func (r *Radio) pollOnce() (*Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return nil, err
	}

	flags, err := r.read(RegIrqFlags)
	if err != nil {
		return nil, err
	}
	if flags&IrqRxDone == 0 {
		return nil, nil
	}
	if flags&IrqPayloadCrcError != 0 {
		if err = r.clearFlags(); err != nil {
			return nil, err
		}
		r.log.Debugf("rx dropped frame with CRC error")
		return nil, errors.Wrap(types.ErrCorruptFrame, "payload CRC error")
	}

	raw, err := r.readFifo()
	if err != nil {
		return nil, err
	}
	if err = r.clearFlags(); err != nil {
		return nil, err
	}
	f, err := DecodeFrame(raw)
	if err != nil {
		return nil, err
	}
	if f.SNR, err = r.readSNR(); err != nil {
		return nil, err
	}
	if f.RSSI, err = r.readPacketRSSI(f.SNR); err != nil {
		return nil, err
	}
	r.lastSNR, r.lastRSSI = f.SNR, f.RSSI

	if f.Dst != r.node && f.Dst != types.BroadcastAddr && !r.opts.Promiscuous {
		r.log.Tracef("rx ignored %s", f)
		return nil, nil
	}
	r.log.Debugf("rx %s snr=%d rssi=%d", f, f.SNR, f.RSSI)
	return f, nil
}

// readFifo reads the last received frame, RegRxNbBytes long, from RegFifoRxCurrentAddr.
func (r *Radio) readFifo() ([]byte, error) {
	n, err := r.read(RegRxNbBytes)
	if err != nil {
		return nil, err
	}
	start, err := r.read(RegFifoRxCurrentAddr)
	if err != nil {
		return nil, err
	}
	if err = r.write(RegFifoAddrPtr, start); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	for i := range buf {
		if buf[i], err = r.read(RegFifo); err != nil {
			return nil, err
		}
	}
	return buf, nil
}
