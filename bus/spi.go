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
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
)

// Conn is a full duplex serial connection, satisfied by periph's spi.Conn.
type Conn interface {
	Tx(w, r []byte) error
}

// SPITransport runs register transactions over an SPI connection. When cs is not nil
// the transport drives chip select itself, otherwise the SPI controller does.
type SPITransport struct {
	conn Conn
	cs   Line
}

func NewSPITransport(conn Conn, cs Line) *SPITransport {
	return &SPITransport{conn: conn, cs: cs}
}

func (t *SPITransport) Transfer(addr, data byte) (byte, error) {
	w := [2]byte{addr, data}
	var r [2]byte

	if t.cs != nil {
		if err := t.cs.Out(gpio.Low); err != nil {
			return 0, errors.Wrapf(err, "assert cs for 0x%02x", addr)
		}
	}
	err := t.conn.Tx(w[:], r[:])
	if t.cs != nil {
		if csErr := t.cs.Out(gpio.High); csErr != nil && err == nil {
			err = csErr
		}
	}
	if err != nil {
		return 0, errors.Wrapf(err, "spi transfer 0x%02x", addr)
	}
	return r[1], nil
}
