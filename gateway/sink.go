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
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"go.bug.st/serial"

	"github.com/lbtlora/sx127x/framelog"
	"github.com/lbtlora/sx127x/pcap"
)

// Sink consumes reports.
type Sink interface {
	Name() string
	Write(ctx context.Context, r *Report) error
	Close() error
}

// LineSink writes the line format of each report to a writer.
type LineSink struct {
	mu   sync.Mutex
	name string
	w    io.Writer
	c    io.Closer
}

// NewLineSink writes to w. It does not close w.
func NewLineSink(name string, w io.Writer) *LineSink {
	return &LineSink{name: name, w: w}
}

// OpenSerialSink writes reports to a serial port, the way the gateway bridges
// received frames to a host.
func OpenSerialSink(portName string, baud int) (*LineSink, error) {
	if baud <= 0 {
		return nil, errors.Errorf("invalid serial baud rate: %d", baud)
	}
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %q", portName)
	}
	return &LineSink{name: "serial:" + portName, w: port, c: port}, nil
}

// SerialPorts lists the serial ports of the host.
func SerialPorts() ([]string, error) {
	return serial.GetPortsList()
}

func (s *LineSink) Name() string {
	return s.name
}

func (s *LineSink) Write(_ context.Context, r *Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(r.Format())
	return err
}

func (s *LineSink) Close() error {
	if s.c == nil {
		return nil
	}
	return s.c.Close()
}

// PcapSink captures the raw frames.
type PcapSink struct {
	mu   sync.Mutex
	file pcap.File
}

func NewPcapSink(filename string, frameType pcap.FrameType) (*PcapSink, error) {
	f, err := pcap.NewFile(filename, frameType)
	if err != nil {
		return nil, errors.Wrapf(err, "create pcap %s", filename)
	}
	return &PcapSink{file: f}, nil
}

func (s *PcapSink) Name() string {
	return "pcap"
}

func (s *PcapSink) Write(_ context.Context, r *Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.file.AppendFrame(pcap.Frame{
		Timestamp:       r.At,
		Data:            r.Frame.Encode(),
		Frequency:       r.Frequency,
		Bandwidth:       r.Params.Bandwidth,
		SpreadingFactor: r.Params.SpreadingFactor,
		SyncWord:        r.Params.SyncWord,
		RSSI:            r.Frame.RSSI,
		SNR:             r.Frame.SNR,
	})
	if err != nil {
		return err
	}
	return s.file.Sync()
}

func (s *PcapSink) Close() error {
	return s.file.Close()
}

// DBSink stores every report in a frame log.
type DBSink struct {
	log *framelog.Log
}

func OpenDBSink(ctx context.Context, path string) (*DBSink, error) {
	l, err := framelog.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return &DBSink{log: l}, nil
}

func (s *DBSink) Name() string {
	return "db"
}

// Log exposes the underlying frame log for queries.
func (s *DBSink) Log() *framelog.Log {
	return s.log
}

func (s *DBSink) Write(ctx context.Context, r *Report) error {
	_, err := s.log.Insert(ctx, framelog.Record{
		At:        r.At,
		Frame:     r.Frame,
		Params:    r.Params,
		Frequency: r.Frequency,
	})
	return err
}

func (s *DBSink) Close() error {
	return s.log.Close()
}
