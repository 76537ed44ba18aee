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


package gateway

import (
	"bytes"
	"fmt"
	"time"

	"github.com/lbtlora/sx127x/radio"
)

// dataPrefix precedes the payload on the report output so that a reader can find
// where binary data starts.
var dataPrefix = []byte{0xFF, 0xFE}

// Report is a received frame as handed to the sinks.
type Report struct {
	At        time.Time
	Frame     *radio.Frame
	Payload   []byte // frame payload with the app key removed
	Params    radio.ModemParams
	Frequency uint64
}

// Format renders r in the line format consumed by post-processing scripts:
//
//	^pdst,type,src,seq,len,SNR,RSSI
//	^rbw,cr,sf
//	\xFF\xFE<payload>
func (r *Report) Format() []byte {
	var b bytes.Buffer
	f := r.Frame
	fmt.Fprintf(&b, "^p%d,%d,%d,%d,%d,%d,%d\n", f.Dst, uint8(f.Type), f.Src, f.Seq, len(r.Payload), f.SNR, f.RSSI)
	fmt.Fprintf(&b, "^r%d,%d,%d\n", int(r.Params.Bandwidth.KHz()), int(r.Params.CodingRate), int(r.Params.SpreadingFactor))
	b.Write(dataPrefix)
	b.Write(r.Payload)
	b.WriteByte('\n')
	return b.Bytes()
}

func (r *Report) String() string {
	f := r.Frame
	return fmt.Sprintf("rxlora dst=%d type=%s src=%d seq=%d len=%d SNR=%d RSSIpkt=%d BW=%s CR=%s %s",
		f.Dst, f.Type, f.Src, f.Seq, len(r.Payload), f.SNR, f.RSSI, r.Params.Bandwidth, r.Params.CodingRate, r.Params.SpreadingFactor)
}
