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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVirtualClock(t *testing.T) {
	clk := NewVirtualClock()
	start := clk.Now()

	clk.Sleep(-time.Second)
	assert.Equal(t, start, clk.Now())

	clk.Advance(1500 * time.Millisecond)
	assert.Equal(t, 1500*time.Millisecond, clk.Now().Sub(start))
}

func TestMediumBusy(t *testing.T) {
	clk := NewVirtualClock()
	m := NewMedium()
	a := NewSX1276(clk, m)
	b := NewSX1276(clk, m)

	var seen []Air
	m.OnTransmit(func(air Air) { seen = append(seen, air) })

	start := clk.Now()
	m.transmit(Air{From: a, Frame: []byte{1, 2, 3}, Start: start, End: start.Add(10 * time.Millisecond)})
	assert.Len(t, seen, 1)

	assert.True(t, m.busy(b, start.Add(5*time.Millisecond)))
	assert.False(t, m.busy(a, start.Add(5*time.Millisecond)))
	assert.False(t, m.busy(b, start.Add(10*time.Millisecond)))

	m.abort(a, start.Add(2*time.Millisecond))
	assert.False(t, m.busy(b, start.Add(3*time.Millisecond)))
	assert.True(t, m.busy(b, start.Add(time.Millisecond)))
}
