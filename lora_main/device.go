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


package lora_main

import (
	"github.com/pkg/errors"

	"github.com/lbtlora/sx127x/bus"
	"github.com/lbtlora/sx127x/config"
	"github.com/lbtlora/sx127x/logger"
	"github.com/lbtlora/sx127x/radio"
	"github.com/lbtlora/sx127x/simchip"
	"github.com/lbtlora/sx127x/types"
)

// Device is a powered-on radio and what it is attached through.
type Device struct {
	Radio *radio.Radio
	Chip  *simchip.Chip // nil for a chip on the SPI bus
	close func() error
}

// OpenDevice powers on the configured radio. With a medium the chip is simulated
// and attached to it, otherwise it is opened on the SPI bus.
func OpenDevice(cfg *config.Config, medium *simchip.Medium, log *logger.Component) (*Device, error) {
	opts, err := cfg.RadioOptions(log)
	if err != nil {
		return nil, err
	}
	if medium != nil {
		chip := simchip.New(bus.SystemClock{}, medium, cfg.ChipVersion())
		r, err := simchip.PowerOn(chip, opts)
		if err != nil {
			return nil, errors.Wrap(err, "power on simulated chip")
		}
		return &Device{Radio: r, Chip: chip}, nil
	}

	pb, err := bus.OpenPeriph(cfg.PeriphConfig())
	if err != nil {
		return nil, err
	}
	opts.Reset = pb.Reset
	if pb.CS != nil {
		opts.CS = pb.CS
	}
	r := radio.New(pb.Transport, opts)
	if err := r.PowerOn(); err != nil {
		_ = pb.Close()
		return nil, errors.Wrap(err, "power on")
	}
	return &Device{Radio: r, close: pb.Close}, nil
}

// openPeer powers on a simulated peer on medium with the modem settings of cfg.
func openPeer(cfg *config.Config, medium *simchip.Medium, addr types.NodeAddr, name string) (*Device, error) {
	peerCfg := *cfg
	peerCfg.Radio.Node = int(addr)
	peerCfg.Radio.Promiscuous = false
	return OpenDevice(&peerCfg, medium, logger.Named(name))
}

// Close powers the radio off and releases the bus.
func (d *Device) Close() error {
	err := d.Radio.PowerOff()
	if d.close != nil {
		if cerr := d.close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (d *Device) String() string {
	if d.Chip != nil {
		return "simulated " + d.Radio.Variant().String()
	}
	return d.Radio.Variant().String()
}
