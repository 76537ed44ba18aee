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
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbtlora/sx127x/config"
	"github.com/lbtlora/sx127x/framelog"
	"github.com/lbtlora/sx127x/logger"
	"github.com/lbtlora/sx127x/simchip"
	"github.com/lbtlora/sx127x/types"
)

func TestParseArgs(t *testing.T) {
	args, err := parseArgs("loractl", []string{"-sim", "-node", "7", "-seed", "42", "-log", "debug"}, io.Discard)
	require.Nil(t, err)
	assert.True(t, args.Sim)
	assert.Equal(t, 7, args.Node)
	assert.Equal(t, int64(42), args.Seed)
	assert.Equal(t, "debug", args.LogLevel)

	_, err = parseArgs("loractl", []string{"-bogus"}, io.Discard)
	assert.NotNil(t, err)
	_, err = parseArgs("loractl", []string{"extra"}, io.Discard)
	assert.NotNil(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lora.yaml")
	require.Nil(t, os.WriteFile(path, []byte("radio:\n    node: 3\n    chip: sx1272\nseed: 5\n"), 0644))

	cfg, err := loadConfig(&MainArgs{ConfigFile: path})
	require.Nil(t, err)
	assert.Equal(t, 3, cfg.Radio.Node)
	assert.Equal(t, int64(5), cfg.Seed)

	cfg, err = loadConfig(&MainArgs{ConfigFile: path, Node: 9, Seed: 11, LogLevel: "error"})
	require.Nil(t, err)
	assert.Equal(t, 9, cfg.Radio.Node)
	assert.Equal(t, int64(11), cfg.Seed)
	assert.Equal(t, logger.ErrorLevel, cfg.LogLevel())

	_, err = loadConfig(&MainArgs{LogLevel: "loud"})
	assert.ErrorIs(t, err, types.ErrValidation)
	_, err = loadConfig(&MainArgs{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.NotNil(t, err)
}

func TestPeerAddress(t *testing.T) {
	assert.Equal(t, types.NodeAddr(1), peerAddress(6, 1))
	assert.Equal(t, types.NodeAddr(2), peerAddress(1, 1))
}

func TestReportPayload(t *testing.T) {
	assert.Equal(t, []byte("\\!#3#21.5"), reportPayload(3, 21.46))
}

func TestOpenSimulatedDevice(t *testing.T) {
	cfg := config.Default()
	cfg.Radio.Chip = "sx1272"
	cfg.Radio.SettleDelay = time.Millisecond

	dev, err := OpenDevice(cfg, simchip.NewMedium(), nil)
	require.Nil(t, err)
	require.NotNil(t, dev.Chip)
	assert.Equal(t, "simulated SX1272", dev.String())
	assert.Equal(t, types.NodeAddr(1), dev.Radio.NodeAddress())
	assert.Nil(t, dev.Close())
}

// A simulated sensor reports to a gateway over a shared medium in real time.
func TestSimulatedReportReachesGateway(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Radio.SettleDelay = time.Millisecond
	cfg.MAC.AppKey = "05060708"
	cfg.Gateway.CheckAppKey = true
	cfg.Gateway.ReceiveWindow = 200 * time.Millisecond
	cfg.Gateway.Pcap = filepath.Join(dir, "frames.pcap")
	cfg.Gateway.Database = filepath.Join(dir, "frames.db")

	medium := simchip.NewMedium()
	dev, err := OpenDevice(cfg, medium, nil)
	require.Nil(t, err)
	defer dev.Close()

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	gw, err := newGateway(ctx, cfg, dev, &out)
	require.Nil(t, err)

	sensor, err := openPeer(cfg, medium, simSensorAddr, "sim-sensor")
	require.Nil(t, err)
	defer sensor.Close()
	sensorOpts, err := cfg.MACOptions(nil)
	require.Nil(t, err)

	done := make(chan error, 1)
	go func() {
		done <- runReporter(ctx, sensor, dev.Radio.NodeAddress(), sensorOpts)
	}()

	for ctx.Err() == nil {
		rep, err := gw.Step(ctx)
		if err != nil && !errors.Is(err, types.ErrTimeout) && !errors.Is(err, types.ErrCorruptFrame) {
			require.Nil(t, err)
		}
		if rep != nil {
			assert.Equal(t, simSensorAddr, rep.Frame.Src)
			assert.True(t, bytes.HasPrefix(rep.Payload, []byte("\\!#3#")), string(rep.Payload))
			break
		}
	}
	require.Nil(t, ctx.Err(), "no report before the deadline")
	cancel()
	assert.Nil(t, <-done)

	assert.Contains(t, out.String(), "\xFF\xFE\\!#3#")
	assert.Equal(t, 1, gw.Stats().Frames)
	require.Nil(t, gw.Close())

	log, err := framelog.Open(context.Background(), cfg.Gateway.Database)
	require.Nil(t, err)
	defer log.Close()
	recs, err := log.Recent(context.Background(), 10)
	require.Nil(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, simSensorAddr, recs[0].Frame.Src)
}
