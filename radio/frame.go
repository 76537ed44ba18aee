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
	"fmt"

	"github.com/pkg/errors"

	"github.com/lbtlora/sx127x/types"
)

// Frame is one over-the-air frame: a four byte header followed by the payload.
type Frame struct {
	Dst     types.NodeAddr
	Type    types.PacketType
	Src     types.NodeAddr
	Seq     byte
	Payload []byte

	// Link quality of a received frame.
	SNR  int
	RSSI int
}

// Len is the number of bytes on air.
func (f *Frame) Len() int {
	return HeaderLength + len(f.Payload)
}

// Encode returns the header and payload as written into the FIFO.
func (f *Frame) Encode() []byte {
	b := make([]byte, 0, f.Len())
	b = append(b, byte(f.Dst), byte(f.Type), byte(f.Src), f.Seq)
	return append(b, f.Payload...)
}

// DecodeFrame parses the bytes of a received frame.
func DecodeFrame(b []byte) (*Frame, error) {
	if len(b) < HeaderLength {
		return nil, errors.Wrapf(types.ErrCorruptFrame, "%d byte frame is shorter than the header", len(b))
	}
	return &Frame{
		Dst:     types.NodeAddr(b[0]),
		Type:    types.PacketType(b[1]),
		Src:     types.NodeAddr(b[2]),
		Seq:     b[3],
		Payload: append([]byte(nil), b[HeaderLength:]...),
	}, nil
}

func (f *Frame) String() string {
	return fmt.Sprintf("dst=%d type=%s src=%d seq=%d len=%d", f.Dst, f.Type, f.Src, f.Seq, len(f.Payload))
}

func validatePayload(n int) error {
	if n > MaxPayloadLength {
		return errors.Wrapf(types.ErrValidation, "payload of %d bytes exceeds %d", n, MaxPayloadLength)
	}
	return nil
}
