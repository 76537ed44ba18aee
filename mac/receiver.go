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
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/lbtlora/sx127x/bus"
	"github.com/lbtlora/sx127x/logger"
	"github.com/lbtlora/sx127x/radio"
	"github.com/lbtlora/sx127x/types"
)

// ackPayloadLength is the payload of an ack: the SNR of the acknowledged frame.
const ackPayloadLength = 1

// ReceiverOptions configure a Receiver.
type ReceiverOptions struct {
	DedupSize int  // (source, sequence) pairs remembered
	NoAck     bool // never acknowledge
	Log       *logger.Component
}

// Receiver delivers frames from the radio, acknowledges those that ask for it and
// drops retransmissions it has already delivered.
type Receiver struct {
	mu    sync.Mutex
	radio Radio
	clock bus.Clock
	opts  ReceiverOptions
	log   *logger.Component
	dedup *dedupCache
	stats Stats
}

func NewReceiver(r Radio, opts ReceiverOptions) *Receiver {
	if opts.Log == nil {
		opts.Log = logger.Named("mac")
	}
	return &Receiver{
		radio: r,
		clock: r.Clock(),
		opts:  opts,
		log:   opts.Log,
		dedup: newDedupCache(opts.DedupSize),
	}
}

// Stats returns a copy of the counters.
func (rc *Receiver) Stats() Stats {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.stats
}

// Receive waits up to timeout for the next new frame. Corrupt frames are counted
// and skipped; ErrTimeout is returned when nothing arrives.
func (rc *Receiver) Receive(timeout time.Duration) (*radio.Frame, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	deadline := rc.clock.Now().Add(timeout)
	for {
		if rc.radio.State() != radio.StateRX {
			if err := rc.radio.StartReceive(); err != nil {
				return nil, err
			}
		}
		left := deadline.Sub(rc.clock.Now())
		if left < 0 {
			left = 0
		}

		f, err := rc.radio.PollReceived(left)
		switch {
		case errors.Is(err, types.ErrCorruptFrame):
			rc.stats.Corrupt++
			if rc.clock.Now().Before(deadline) {
				continue
			}
			return nil, err
		case err != nil:
			return nil, err
		}

		if f.Type.Kind() == types.PacketTypeAck {
			rc.log.Tracef("stray ack %s", f)
			if err = rc.expired(deadline, timeout); err != nil {
				return nil, err
			}
			continue
		}
		if f.Type.Has(types.PacketFlagAckReq) && f.Dst == rc.radio.NodeAddress() && !rc.opts.NoAck {
			if err = rc.acknowledge(f); err != nil {
				return nil, err
			}
		}
		if rc.dedup.check(f.Src, f.Seq) {
			rc.stats.Duplicates++
			rc.log.Debugf("duplicate %s", f)
			if err = rc.expired(deadline, timeout); err != nil {
				return nil, err
			}
			continue
		}
		rc.stats.Received++
		return f, nil
	}
}

// expired returns ErrTimeout once deadline has passed.
func (rc *Receiver) expired(deadline time.Time, timeout time.Duration) error {
	if rc.clock.Now().Before(deadline) {
		return nil
	}
	return errors.Wrapf(types.ErrTimeout, "no new frame within %s", timeout)
}

// acknowledge answers f after SIFS without listening first. The ack carries the
// sequence number of f and the SNR it was received with.
func (rc *Receiver) acknowledge(f *radio.Frame) error {
	p := rc.radio.Params()
	t := TimingFor(p.SpreadingFactor, p.Bandwidth)
	rc.clock.Sleep(t.SIFS)

	ack := &radio.Frame{
		Dst:     f.Src,
		Type:    types.PacketTypeAck,
		Src:     rc.radio.NodeAddress(),
		Seq:     f.Seq,
		Payload: []byte{byte(int8(f.SNR))},
	}
	if err := rc.radio.TransmitFrame(ack); err != nil {
		return err
	}
	if err := rc.radio.WaitTransmitDone(2*rc.radio.TimeOnAir(ackPayloadLength) + txMargin); err != nil {
		return err
	}
	rc.stats.AcksSent++
	rc.log.Debugf("ack seq %d to %d", f.Seq, f.Src)
	return nil
}
