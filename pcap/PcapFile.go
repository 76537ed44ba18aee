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


// Package pcap writes received LoRa frames to PCAP files, either bare or behind a
// LoRaTap header that Wireshark decodes.
package pcap

import (
	"encoding/binary"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/lbtlora/sx127x/types"
)

type FrameType int

const (
	FrameTypeOff FrameType = iota
	FrameTypeRaw
	FrameTypeLoRaTap
	FrameTypeUnknown
)

const (
	FrameTypeOffStr     string = "off"
	FrameTypeRawStr     string = "raw"
	FrameTypeLoRaTapStr string = "loratap"
)

const (
	dltUser0            = 147
	pcapMagicNumber     = 0xA1B2C3D4
	pcapVersionMajor    = 2
	pcapVersionMinor    = 4
	pcapFileHeaderSize  = 24
	pcapFrameHeaderSize = 16
	pcapSnapLen         = 256
)

// File is an open PCAP file.
type File interface {
	AppendFrame(frame Frame) error
	Sync() error
	Close() error
}

// Frame is one received frame with the modem settings and link quality it was
// received with.
type Frame struct {
	Timestamp       time.Time
	Data            []byte
	Frequency       uint64 // Hz
	Bandwidth       types.Bandwidth
	SpreadingFactor types.SpreadingFactor
	SyncWord        byte
	RSSI            int // dBm
	SNR             int // dB
}

type rawFile struct {
	fd *os.File
}

// NewFile creates filename, truncating it, for frames of frameType.
func NewFile(filename string, frameType FrameType) (File, error) {
	switch frameType {
	case FrameTypeRaw:
		return newRawFile(filename)
	case FrameTypeLoRaTap:
		return newLoRaTapFile(filename)
	default:
		return nil, errors.Errorf("invalid PCAP frame type: %d", frameType)
	}
}

func ParseFrameTypeStr(tp string) FrameType {
	switch tp {
	case FrameTypeOffStr, "":
		return FrameTypeOff
	case FrameTypeRawStr:
		return FrameTypeRaw
	case FrameTypeLoRaTapStr:
		return FrameTypeLoRaTap
	default:
		return FrameTypeUnknown
	}
}

func createFile(filename string, linkType uint32) (*os.File, error) {
	fd, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	if err = writeFileHeader(fd, linkType); err != nil {
		_ = fd.Close()
		return nil, err
	}
	return fd, nil
}

func writeFileHeader(fd *os.File, linkType uint32) error {
	var header [pcapFileHeaderSize]byte
	binary.LittleEndian.PutUint32(header[:4], pcapMagicNumber)
	binary.LittleEndian.PutUint16(header[4:6], pcapVersionMajor)
	binary.LittleEndian.PutUint16(header[6:8], pcapVersionMinor)
	binary.LittleEndian.PutUint32(header[8:12], 0)
	binary.LittleEndian.PutUint32(header[12:16], 0)
	binary.LittleEndian.PutUint32(header[16:20], pcapSnapLen)
	binary.LittleEndian.PutUint32(header[20:24], linkType)
	if _, err := fd.Write(header[:]); err != nil {
		return err
	}
	return fd.Sync()
}

func recordHeader(ts time.Time, n int) [pcapFrameHeaderSize]byte {
	var header [pcapFrameHeaderSize]byte
	binary.LittleEndian.PutUint32(header[:4], uint32(ts.Unix()))
	binary.LittleEndian.PutUint32(header[4:8], uint32(ts.Nanosecond()/1000))
	binary.LittleEndian.PutUint32(header[8:12], uint32(n))
	binary.LittleEndian.PutUint32(header[12:16], uint32(n))
	return header
}

func newRawFile(filename string) (File, error) {
	fd, err := createFile(filename, dltUser0)
	if err != nil {
		return nil, err
	}
	return &rawFile{fd: fd}, nil
}

func (pf *rawFile) AppendFrame(frame Frame) error {
	header := recordHeader(frame.Timestamp, len(frame.Data))
	if _, err := pf.fd.Write(header[:]); err != nil {
		return err
	}
	_, err := pf.fd.Write(frame.Data)
	return err
}

func (pf *rawFile) Sync() error {
	return pf.fd.Sync()
}

func (pf *rawFile) Close() error {
	return pf.fd.Close()
}
