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


// Package mac is the channel access layer on top of a radio: listen-before-talk with
// channel activity detection, inter-frame spacing, random backoff and acknowledged
// retransmission, plus a receiver that acknowledges and drops duplicates.
package mac

import (
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/lbtlora/sx127x/bus"
	"github.com/lbtlora/sx127x/logger"
	"github.com/lbtlora/sx127x/prng"
	"github.com/lbtlora/sx127x/radio"
	"github.com/lbtlora/sx127x/types"
)

const (
	DefaultMaxListenAttempts = 10
	DefaultMaxRetries        = 3

	ackMargin = 100 * time.Millisecond
	txMargin  = time.Second
)

// Radio is the transceiver the channel access layer drives. *radio.Radio implements it.
type Radio interface {
	Params() radio.ModemParams
	NodeAddress() types.NodeAddr
	State() radio.RadioState
	Clock() bus.Clock
	NewFrame(dst types.NodeAddr, typ types.PacketType, payload []byte) (*radio.Frame, error)
	TransmitFrame(f *radio.Frame) error
	WaitTransmitDone(timeout time.Duration) error
	StartReceive() error
	PollReceived(timeout time.Duration) (*radio.Frame, error)
	DetectActivity(timeout time.Duration) (bool, error)
	TimeOnAir(payloadLen int) time.Duration
}

// State is the state of a Sender.
type State int

const (
	Idle State = iota
	Listening
	Clear
	Busy
	Transmitting
	Confirming
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Clear:
		return "clear"
	case Busy:
		return "busy"
	case Transmitting:
		return "transmitting"
	case Confirming:
		return "confirming"
	default:
		return "unknown"
	}
}

// Options configure a Sender.
type Options struct {
	MaxListenAttempts int           // listen rounds per transmission before giving up
	MaxRetries        int           // retransmissions after the first transmission
	AckTimeout        time.Duration // confirming window, derived from the airtime when zero
	AppKey            AppKey
	Rand              *rand.Rand
	Log               *logger.Component
}

func DefaultOptions() Options {
	return Options{
		MaxListenAttempts: DefaultMaxListenAttempts,
		MaxRetries:        DefaultMaxRetries,
	}
}

// Result describes a completed or failed Send.
type Result struct {
	Frame          *radio.Frame
	Transmissions  int
	ListenAttempts int
	Acked          bool
	AckSNR         int // SNR the receiver reported in its ack
	Elapsed        time.Duration
}

// Sender sends frames with listen-before-talk and, on request, waits for
// acknowledgments. One Send runs at a time.
type Sender struct {
	mu    sync.Mutex
	radio Radio
	clock bus.Clock
	opts  Options
	log   *logger.Component
	rand  *rand.Rand
	state State
	stats Stats
}

func NewSender(r Radio, opts Options) *Sender {
	if opts.MaxListenAttempts <= 0 {
		opts.MaxListenAttempts = DefaultMaxListenAttempts
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Rand == nil {
		opts.Rand = prng.NewBackoffSource()
	}
	if opts.Log == nil {
		opts.Log = logger.Named("mac")
	}
	return &Sender{
		radio: r,
		clock: r.Clock(),
		opts:  opts,
		log:   opts.Log,
		rand:  opts.Rand,
	}
}

// State returns the current state.
func (s *Sender) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a copy of the counters.
func (s *Sender) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Sender) setState(st State) {
	if s.state != st {
		s.log.Tracef("%s -> %s", s.state, st)
		s.state = st
	}
}

// Send transmits payload to dst once the channel is clear. With ack set the frame
// asks for an acknowledgment and is sent again, with the same sequence number, until
// one arrives or MaxRetries retransmissions have gone unanswered.
//
// A channel that stays busy for MaxListenAttempts listen rounds fails with
// ErrChannelBusyTimeout without transmitting and without using a sequence number,
// leaving Result.Frame nil. An unanswered frame fails with
// ErrUnacknowledged. The Result is returned in both cases.
func (s *Sender) Send(dst types.NodeAddr, payload []byte, ack bool) (*Result, error) {
	typ := types.PacketTypeData
	if ack {
		if dst == types.BroadcastAddr {
			return nil, errors.Wrap(types.ErrValidation, "broadcast frames can not be acknowledged")
		}
		typ |= types.PacketFlagAckReq
	}
	if len(s.opts.AppKey) > 0 {
		typ |= types.PacketFlagAppKey
		payload = s.opts.AppKey.Seal(payload)
	}

	if len(payload) > radio.MaxPayloadLength {
		return nil, errors.Wrapf(types.ErrValidation, "payload of %d bytes exceeds %d", len(payload), radio.MaxPayloadLength)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.setState(Idle)
	s.stats.Sends++

	p := s.radio.Params()
	timing := TimingFor(p.SpreadingFactor, p.Bandwidth)
	res := &Result{}
	start := s.clock.Now()
	defer func() { res.Elapsed = s.clock.Now().Sub(start) }()

	s.log.Debugf("send to %d ack=%v %s", dst, ack, timing)
	var f *radio.Frame
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			s.stats.Retransmissions++
			s.log.Debugf("retransmit %s (%d/%d)", f, attempt, s.opts.MaxRetries)
		}
		err := s.listenBeforeTalk(timing, res)
		if err != nil {
			return res, err
		}
		// the sequence number is taken once the channel is first found clear
		if f == nil {
			if f, err = s.radio.NewFrame(dst, typ, payload); err != nil {
				return res, err
			}
			res.Frame = f
		}
		if err = s.transmit(f, timing); err != nil {
			return res, err
		}
		res.Transmissions++
		if !ack {
			return res, nil
		}

		var acked bool
		if acked, err = s.confirm(f, timing, res); err != nil {
			return res, err
		}
		if acked {
			return res, nil
		}
		if attempt >= s.opts.MaxRetries {
			s.stats.Unacknowledged++
			return res, errors.Wrapf(types.ErrUnacknowledged, "%s after %d transmissions", f, res.Transmissions)
		}
	}
}

// listenBeforeTalk runs listen rounds until one finds the channel clear, backing
// off after each busy round, then waits SIFS.
func (s *Sender) listenBeforeTalk(t Timing, res *Result) error {
	for i := 0; i < s.opts.MaxListenAttempts; i++ {
		s.setState(Listening)
		s.stats.ListenAttempts++
		res.ListenAttempts++

		busy, err := s.listen(t)
		if err != nil {
			return err
		}
		if !busy {
			s.setState(Clear)
			s.clock.Sleep(t.SIFS)
			return nil
		}

		s.setState(Busy)
		s.stats.CADBusy++
		if i+1 < s.opts.MaxListenAttempts {
			s.stats.Backoffs++
			d := t.Backoff(s.rand)
			s.log.Tracef("channel busy, backoff %s", d)
			s.clock.Sleep(d)
		}
	}
	s.stats.BusyTimeouts++
	return errors.Wrapf(types.ErrChannelBusyTimeout, "channel busy on %d listen attempts", s.opts.MaxListenAttempts)
}

// listen runs the CAD cycles of one listen round. Any detection makes the round busy.
func (s *Sender) listen(t Timing) (bool, error) {
	for c := 0; c < t.CADCycles; c++ {
		s.stats.CADCycles++
		detected, err := s.radio.DetectActivity(t.CADTimeout())
		if err != nil {
			return false, err
		}
		if detected {
			return true, nil
		}
	}
	return false, nil
}

func (s *Sender) transmit(f *radio.Frame, t Timing) error {
	s.setState(Transmitting)
	if err := s.radio.TransmitFrame(f); err != nil {
		return err
	}
	s.stats.Transmissions++
	timeout := 2*s.radio.TimeOnAir(len(f.Payload)) + txMargin
	return s.radio.WaitTransmitDone(timeout)
}

// ackTimeout is the confirming window: two ack airtimes plus SIFS plus a margin,
// unless configured.
func (s *Sender) ackTimeout(t Timing) time.Duration {
	if s.opts.AckTimeout > 0 {
		return s.opts.AckTimeout
	}
	return 2*s.radio.TimeOnAir(ackPayloadLength) + t.SIFS + ackMargin
}

// confirm listens for the ack of f until the confirming window closes.
func (s *Sender) confirm(f *radio.Frame, t Timing, res *Result) (bool, error) {
	s.setState(Confirming)
	if err := s.radio.StartReceive(); err != nil {
		return false, err
	}

	deadline := s.clock.Now().Add(s.ackTimeout(t))
	for {
		left := deadline.Sub(s.clock.Now())
		if left <= 0 {
			return false, nil
		}
		in, err := s.radio.PollReceived(left)
		switch {
		case errors.Is(err, types.ErrTimeout):
			return false, nil
		case errors.Is(err, types.ErrCorruptFrame):
			s.stats.Corrupt++
			continue
		case err != nil:
			return false, err
		}

		if isAckFor(in, f) {
			s.stats.AcksReceived++
			res.Acked = true
			if len(in.Payload) > 0 {
				res.AckSNR = int(int8(in.Payload[0]))
			}
			s.log.Debugf("ack for seq %d from %d, remote snr=%d", f.Seq, in.Src, res.AckSNR)
			return true, nil
		}
		s.log.Tracef("confirming: ignored %s", in)
	}
}

func isAckFor(in, f *radio.Frame) bool {
	return in.Type.Kind() == types.PacketTypeAck && in.Seq == f.Seq && in.Src == f.Dst && in.Dst == f.Src
}
