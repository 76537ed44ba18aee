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
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// PeriphConfig names the host SPI port and GPIO lines the radio is wired to.
type PeriphConfig struct {
	Port     string // SPI port name as known to spireg, e.g. "/dev/spidev0.0"; empty selects the first port
	SpeedHz  int64
	ResetPin string // e.g. "GPIO17"
	CSPin    string // optional; empty when the SPI controller drives chip select
}

// PeriphBus is a radio attached to the host through periph.io.
type PeriphBus struct {
	Transport *SPITransport
	Reset     gpio.PinOut
	CS        gpio.PinOut // nil when chip select belongs to the SPI controller

	port spi.PortCloser
}

func OpenPeriph(cfg PeriphConfig) (*PeriphBus, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph host init")
	}

	port, err := spireg.Open(cfg.Port)
	if err != nil {
		return nil, errors.Wrapf(err, "open spi port %q", cfg.Port)
	}

	speed := cfg.SpeedHz
	if speed <= 0 {
		speed = 1000000
	}
	conn, err := port.Connect(physic.Frequency(speed)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, errors.Wrapf(err, "connect spi port %q", cfg.Port)
	}

	b := &PeriphBus{port: port}
	if b.Reset = gpioreg.ByName(cfg.ResetPin); b.Reset == nil {
		_ = port.Close()
		return nil, errors.Errorf("reset pin %q not found", cfg.ResetPin)
	}
	var cs Line
	if cfg.CSPin != "" {
		if b.CS = gpioreg.ByName(cfg.CSPin); b.CS == nil {
			_ = port.Close()
			return nil, errors.Errorf("cs pin %q not found", cfg.CSPin)
		}
		cs = b.CS
	}
	b.Transport = NewSPITransport(conn, cs)
	return b, nil
}

func (b *PeriphBus) Close() error {
	return b.port.Close()
}
