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


package pcap

import (
	"encoding/binary"
	"os"
)

// LoRaTap version 0 is described at https://github.com/eriknl/LoRaTap. All fields
// are big endian.
const (
	dltLoRaTap           = 270
	loraTapHeaderSize    = 15
	loraTapVersion       = 0
	loraTapRSSIOffset    = 139
	loraTapBandwidthStep = 125000
)

type loraTapFile struct {
	fd *os.File
}

func newLoRaTapFile(filename string) (File, error) {
	fd, err := createFile(filename, dltLoRaTap)
	if err != nil {
		return nil, err
	}
	return &loraTapFile{fd: fd}, nil
}

// encodeRSSI maps dBm to the LoRaTap scale, -139 dBm + value.
func encodeRSSI(dbm int) byte {
	v := dbm + loraTapRSSIOffset
	if v < 0 {
		return 0
	}
	if v > 0xFF {
		return 0xFF
	}
	return byte(v)
}

// loraTapHeader encodes the header written in front of each frame.
func loraTapHeader(frame Frame) [loraTapHeaderSize]byte {
	var h [loraTapHeaderSize]byte
	h[0] = loraTapVersion
	binary.BigEndian.PutUint16(h[2:4], loraTapHeaderSize)
	binary.BigEndian.PutUint32(h[4:8], uint32(frame.Frequency))
	// narrow bandwidths round down to step 0, which LoRaTap has no code for
	h[8] = byte(frame.Bandwidth / loraTapBandwidthStep)
	h[9] = byte(frame.SpreadingFactor)
	rssi := encodeRSSI(frame.RSSI)
	h[10] = rssi // packet RSSI
	h[11] = rssi // max RSSI
	h[12] = rssi // current RSSI
	h[13] = byte(int8(frame.SNR * 4))
	h[14] = frame.SyncWord
	return h
}

func (pf *loraTapFile) AppendFrame(frame Frame) error {
	tap := loraTapHeader(frame)
	header := recordHeader(frame.Timestamp, loraTapHeaderSize+len(frame.Data))
	if _, err := pf.fd.Write(header[:]); err != nil {
		return err
	}
	if _, err := pf.fd.Write(tap[:]); err != nil {
		return err
	}
	_, err := pf.fd.Write(frame.Data)
	return err
}

func (pf *loraTapFile) Sync() error {
	return pf.fd.Sync()
}

func (pf *loraTapFile) Close() error {
	return pf.fd.Close()
}
