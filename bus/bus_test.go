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


package bus

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"periph.io/x/conn/v3/gpio"
)

type recordConn struct {
	written [][]byte
	reply   byte
	err     error
}

func (c *recordConn) Tx(w, r []byte) error {
	c.written = append(c.written, append([]byte(nil), w...))
	r[1] = c.reply
	return c.err
}

type recordLine struct {
	levels []gpio.Level
}

func (l *recordLine) Out(level gpio.Level) error {
	l.levels = append(l.levels, level)
	return nil
}

func TestSPITransport(t *testing.T) {
	conn := &recordConn{reply: 0x12}
	cs := &recordLine{}
	tr := NewSPITransport(conn, cs)

	v, err := tr.Transfer(0x42, 0)
	assert.Nil(t, err)
	assert.Equal(t, byte(0x12), v)
	assert.Equal(t, [][]byte{{0x42, 0}}, conn.written)
	assert.Equal(t, []gpio.Level{gpio.Low, gpio.High}, cs.levels)
}

func TestSPITransportErrorReleasesCS(t *testing.T) {
	conn := &recordConn{err: errors.New("bus fault")}
	cs := &recordLine{}
	tr := NewSPITransport(conn, cs)

	_, err := tr.Transfer(0x81, 0x80)
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "0x81")
	assert.Equal(t, []gpio.Level{gpio.Low, gpio.High}, cs.levels)
}

func TestSPITransportNoCS(t *testing.T) {
	conn := &recordConn{reply: 7}
	tr := NewSPITransport(conn, nil)
	v, err := tr.Transfer(0x01, 0)
	assert.Nil(t, err)
	assert.Equal(t, byte(7), v)
}
