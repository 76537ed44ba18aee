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
	"github.com/lbtlora/sx127x/logger"
)

type tracedTransport struct {
	Transport
	log *logger.Component
}

// Traced wraps t so that every register transaction is logged at trace level.
func Traced(t Transport, log *logger.Component) Transport {
	return &tracedTransport{Transport: t, log: log}
}

func (t *tracedTransport) Transfer(addr, data byte) (byte, error) {
	v, err := t.Transport.Transfer(addr, data)
	if err != nil {
		t.log.Tracef("reg 0x%02x: %v", addr&0x7F, err)
	} else if addr&0x80 != 0 {
		t.log.Tracef("reg 0x%02x <- 0x%02x", addr&0x7F, data)
	} else {
		t.log.Tracef("reg 0x%02x -> 0x%02x", addr, v)
	}
	return v, err
}
