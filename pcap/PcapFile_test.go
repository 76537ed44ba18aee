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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbtlora/sx127x/types"
)

var testFrameData = []byte{0x01, 0x12, 0x06, 0x00, '\\', '!', '#', '3'}

func TestPcapFile(t *testing.T) {
	pcapFilename := filepath.Join(t.TempDir(), "test.pcap")
	pcap, err := NewFile(pcapFilename, FrameTypeRaw)
	require.Nil(t, err)
	defer func() {
		_ = pcap.Close()
	}()

	require.Nil(t, pcap.Sync())
	assert.Equal(t, pcapFileHeaderSize, getFileSize(t, pcapFilename))

	for i := 0; i < 10; i++ {
		frame := Frame{
			Timestamp: time.Unix(1700000000, int64(i)*1000000),
			Data:      testFrameData,
		}
		require.Nil(t, pcap.AppendFrame(frame))
		require.Nil(t, pcap.Sync())
		assert.Equal(t, pcapFileHeaderSize+(pcapFrameHeaderSize+len(testFrameData))*(i+1), getFileSize(t, pcapFilename))
	}

	data, err := os.ReadFile(pcapFilename)
	require.Nil(t, err)
	assert.Equal(t, uint32(dltUser0), binary.LittleEndian.Uint32(data[20:24]))
	assert.Equal(t, uint32(1700000000), binary.LittleEndian.Uint32(data[24:28]))
}

func TestPcapLoRaTapFile(t *testing.T) {
	pcapFilename := filepath.Join(t.TempDir(), "test_tap.pcap")
	pcap, err := NewFile(pcapFilename, FrameTypeLoRaTap)
	require.Nil(t, err)
	defer func() {
		_ = pcap.Close()
	}()

	for i := 0; i < 10; i++ {
		frame := Frame{
			Timestamp:       time.Unix(1700000000+int64(i), 0),
			Data:            testFrameData,
			Frequency:       868100000,
			Bandwidth:       types.BW125,
			SpreadingFactor: types.SF7,
			SyncWord:        0x12,
			RSSI:            -60 + i,
			SNR:             9,
		}
		require.Nil(t, pcap.AppendFrame(frame))
		require.Nil(t, pcap.Sync())
		assert.Equal(t, pcapFileHeaderSize+(pcapFrameHeaderSize+loraTapHeaderSize+len(testFrameData))*(i+1), getFileSize(t, pcapFilename))
	}

	data, err := os.ReadFile(pcapFilename)
	require.Nil(t, err)
	assert.Equal(t, uint32(dltLoRaTap), binary.LittleEndian.Uint32(data[20:24]))
	tap := data[pcapFileHeaderSize+pcapFrameHeaderSize:]
	assert.Equal(t, uint16(loraTapHeaderSize), binary.BigEndian.Uint16(tap[2:4]))
	assert.Equal(t, uint32(868100000), binary.BigEndian.Uint32(tap[4:8]))
	assert.Equal(t, byte(1), tap[8])
	assert.Equal(t, byte(7), tap[9])
	assert.Equal(t, byte(79), tap[10])
	assert.Equal(t, byte(36), tap[13])
	assert.Equal(t, byte(0x12), tap[14])
	assert.Equal(t, testFrameData, tap[loraTapHeaderSize:loraTapHeaderSize+len(testFrameData)])
}

func TestParseFrameTypeStr(t *testing.T) {
	assert.Equal(t, FrameTypeOff, ParseFrameTypeStr("off"))
	assert.Equal(t, FrameTypeRaw, ParseFrameTypeStr("raw"))
	assert.Equal(t, FrameTypeLoRaTap, ParseFrameTypeStr("loratap"))
	assert.Equal(t, FrameTypeUnknown, ParseFrameTypeStr("wpan"))

	_, err := NewFile(filepath.Join(t.TempDir(), "x.pcap"), FrameTypeUnknown)
	assert.NotNil(t, err)
}

func TestEncodeRSSI(t *testing.T) {
	assert.Equal(t, byte(0), encodeRSSI(-150))
	assert.Equal(t, byte(39), encodeRSSI(-100))
	assert.Equal(t, byte(0xFF), encodeRSSI(200))
}

func getFileSize(t *testing.T, fp string) int {
	info, err := os.Stat(fp)
	if err != nil {
		t.Fatal(err)
	}

	return int(info.Size())
}
