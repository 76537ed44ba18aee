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
)

// readSNR converts RegPktSnrValue, a two's complement value in quarter dB.
func (r *Radio) readSNR() (int, error) {
	v, err := r.read(RegPktSnrValue)
	if err != nil {
		return 0, err
	}
	return int(int8(v)) / 4, nil
}

// readPacketRSSI converts RegPktRssiValue to dBm. Below the noise floor the SNR is
// added as well.
func (r *Radio) readPacketRSSI(snr int) (int, error) {
	v, err := r.read(RegPktRssiValue)
	if err != nil {
		return 0, err
	}
	rssi := -r.variant.rssiOffset + int(v)
	if snr < 0 {
		rssi += snr
	}
	return rssi, nil
}

// SNR returns the signal to noise ratio of the last received frame in dB.
func (r *Radio) SNR() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readSNR()
}

// PacketRSSI returns the signal strength of the last received frame in dBm.
func (r *Radio) PacketRSSI() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return 0, err
	}
	snr, err := r.readSNR()
	if err != nil {
		return 0, err
	}
	return r.readPacketRSSI(snr)
}

// RSSI returns the current channel signal strength in dBm.
func (r *Radio) RSSI() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return 0, err
	}
	v, err := r.read(RegRssiValue)
	if err != nil {
		return 0, err
	}
	return -r.variant.rssiOffset + int(v), nil
}

// LastLinkQuality returns SNR and RSSI of the last frame PollReceived returned.
func (r *Radio) LastLinkQuality() (snr, rssi int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSNR, r.lastRSSI
}

// TimeOnAir is the duration of a frame carrying payloadLen bytes with the current
// modem parameters.
func (r *Radio) TimeOnAir(payloadLen int) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.params.TimeOnAir(HeaderLength + payloadLen)
}
