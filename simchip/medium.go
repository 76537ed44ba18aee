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


package simchip

import (
	"sync"
	"time"
)

// Air is one frame on the medium.
type Air struct {
	From  *Chip
	Frame []byte
	Start time.Time
	End   time.Time
}

// Medium connects chips on one channel. A frame transmitted by one chip is delivered
// to the inbox of every other chip and keeps the channel busy until it ends.
type Medium struct {
	mu     sync.Mutex
	chips  []*Chip
	onAir  []Air
	events []func(Air)
}

func NewMedium() *Medium {
	return &Medium{}
}

func (m *Medium) attach(c *Chip) {
	m.mu.Lock()
	m.chips = append(m.chips, c)
	m.mu.Unlock()
}

// OnTransmit registers fn to be called for every frame put on the medium. fn runs
// while the transmitting chip is locked and must not access that chip's registers;
// Inject is safe.
func (m *Medium) OnTransmit(fn func(Air)) {
	m.mu.Lock()
	m.events = append(m.events, fn)
	m.mu.Unlock()
}

func (m *Medium) transmit(a Air) {
	m.mu.Lock()
	m.prune(a.Start)
	m.onAir = append(m.onAir, a)
	chips := append([]*Chip(nil), m.chips...)
	events := append([]func(Air){}, m.events...)
	m.mu.Unlock()

	for _, c := range chips {
		if c != a.From {
			c.Inject(a.Frame, a.Start, a.End)
		}
	}
	for _, fn := range events {
		fn(a)
	}
}

// abort ends a transmission early when its chip leaves TX.
func (m *Medium) abort(from *Chip, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.onAir {
		if m.onAir[i].From == from && m.onAir[i].End.After(at) {
			m.onAir[i].End = at
		}
	}
}

// busy reports whether any chip other than c is transmitting at t.
func (m *Medium) busy(c *Chip, t time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.onAir {
		if a.From != c && !t.Before(a.Start) && t.Before(a.End) {
			return true
		}
	}
	return false
}

func (m *Medium) prune(now time.Time) {
	kept := m.onAir[:0]
	for _, a := range m.onAir {
		if a.End.After(now) {
			kept = append(kept, a)
		}
	}
	m.onAir = kept
}
