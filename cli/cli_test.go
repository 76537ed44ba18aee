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


package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbtlora/sx127x/logger"
	"github.com/lbtlora/sx127x/mac"
	"github.com/lbtlora/sx127x/progctx"
	"github.com/lbtlora/sx127x/radio"
	"github.com/lbtlora/sx127x/simchip"
	"github.com/lbtlora/sx127x/types"
)

func TestParseBytes(t *testing.T) {
	var cmd Command
	assert.NotNil(t, ParseBytes([]byte("wrongcmd"), &cmd))
	assert.NotNil(t, ParseBytes([]byte("mode"), &cmd))
	assert.NotNil(t, ParseBytes([]byte("send 1"), &cmd))
	assert.NotNil(t, ParseBytes([]byte("crc maybe"), &cmd))

	cmd = Command{}
	assert.Nil(t, ParseBytes([]byte(`send 1 "hello" ack`), &cmd))
	require.NotNil(t, cmd.Send)
	assert.Equal(t, 1, cmd.Send.Dst)
	assert.Equal(t, "hello", unquote(cmd.Send.Payload))
	assert.NotNil(t, cmd.Send.Ack)

	cmd = Command{}
	assert.Nil(t, ParseBytes([]byte(`send 0 "hi"`), &cmd))
	require.NotNil(t, cmd.Send)
	assert.Nil(t, cmd.Send.Ack)

	cmd = Command{}
	assert.Nil(t, ParseBytes([]byte("rx 500ms"), &cmd))
	require.NotNil(t, cmd.Rx)
	assert.Equal(t, "500ms", cmd.Rx.Timeout)

	cmd = Command{}
	assert.Nil(t, ParseBytes([]byte("rx"), &cmd))
	require.NotNil(t, cmd.Rx)
	assert.Equal(t, "", cmd.Rx.Timeout)

	cmd = Command{}
	assert.Nil(t, ParseBytes([]byte("channel CH_18_868"), &cmd))
	require.NotNil(t, cmd.Channel)
	assert.Equal(t, "CH_18_868", *cmd.Channel.Channel)

	cmd = Command{}
	assert.Nil(t, ParseBytes([]byte("channel 0xD90666"), &cmd))
	assert.Equal(t, "0xD90666", *cmd.Channel.Channel)

	cmd = Command{}
	assert.Nil(t, ParseBytes([]byte("bw 62.5"), &cmd))
	require.NotNil(t, cmd.Bw)
	assert.Equal(t, 62.5, *cmd.Bw.KHz)

	cmd = Command{}
	assert.Nil(t, ParseBytes([]byte("bw"), &cmd))
	require.NotNil(t, cmd.Bw)
	assert.Nil(t, cmd.Bw.KHz)

	cmd = Command{}
	assert.Nil(t, ParseBytes([]byte("crc off"), &cmd))
	require.NotNil(t, cmd.Crc)
	assert.NotNil(t, cmd.Crc.OnOff.Off)

	cmd = Command{}
	assert.Nil(t, ParseBytes([]byte("reg 0x42"), &cmd))
	require.NotNil(t, cmd.Reg)
	assert.Equal(t, "0x42", cmd.Reg.Addr)

	cmd = Command{}
	assert.Nil(t, ParseBytes([]byte(`report 1 3 "t" ack`), &cmd))
	require.NotNil(t, cmd.Report)
	assert.Equal(t, 3, cmd.Report.Count)

	assert.True(t, ParseBytes([]byte("stats"), &cmd) == nil && cmd.Stats != nil)
	assert.True(t, ParseBytes([]byte("status"), &cmd) == nil && cmd.Status != nil)
	assert.True(t, ParseBytes([]byte("log debug"), &cmd) == nil && cmd.LogLevel.Level == "debug")
	assert.True(t, ParseBytes([]byte("help send"), &cmd) == nil && cmd.Help.HelpTopic == "send")
	assert.True(t, ParseBytes([]byte("mode 10"), &cmd) == nil && cmd.Mode.Mode == 10)
}

func TestParseValues(t *testing.T) {
	d, err := parseDuration("", time.Second)
	assert.Nil(t, err)
	assert.Equal(t, time.Second, d)
	d, err = parseDuration("250ms", time.Second)
	assert.Nil(t, err)
	assert.Equal(t, 250*time.Millisecond, d)
	d, err = parseDuration("2", time.Second)
	assert.Nil(t, err)
	assert.Equal(t, 2*time.Second, d)
	_, err = parseDuration("0", time.Second)
	assert.ErrorIs(t, err, types.ErrValidation)

	b, err := parseByte("0x34")
	assert.Nil(t, err)
	assert.Equal(t, byte(0x34), b)
	_, err = parseByte("0x134")
	assert.ErrorIs(t, err, types.ErrValidation)

	assert.Equal(t, "hi", unquote(`"hi"`))
	assert.Equal(t, "hi", unquote("hi"))
}

type testRunner struct {
	*CmdRunner
	chip *simchip.Chip
}

func newTestRunner(t *testing.T) *testRunner {
	clock := simchip.NewVirtualClock()
	chip := simchip.NewSX1276(clock, simchip.NewMedium())
	opts := radio.DefaultOptions()
	opts.NodeAddress = 6
	r, err := simchip.PowerOn(chip, opts)
	require.Nil(t, err)

	ctx := progctx.New(context.Background())
	t.Cleanup(func() { ctx.Cancel(nil) })
	rt := NewCmdRunner(ctx, r, mac.NewSender(r, mac.DefaultOptions()), mac.NewReceiver(r, mac.ReceiverOptions{}))
	return &testRunner{CmdRunner: rt, chip: chip}
}

func (rt *testRunner) run(t *testing.T, cmdline string) string {
	var out bytes.Buffer
	require.Nil(t, rt.RunCommand(cmdline, &out))
	return out.String()
}

func TestRunSetters(t *testing.T) {
	rt := newTestRunner(t)

	assert.Equal(t, "Done\n", rt.run(t, "sf 9"))
	assert.Equal(t, "9\nDone\n", rt.run(t, "sf"))
	assert.Equal(t, "Done\n", rt.run(t, "bw 250"))
	assert.Equal(t, "250kHz\nDone\n", rt.run(t, "bw"))
	assert.Equal(t, "Done\n", rt.run(t, "cr 8"))
	assert.Equal(t, "4/8\nDone\n", rt.run(t, "cr"))
	assert.Equal(t, "Done\n", rt.run(t, "channel CH_18_868"))
	assert.Equal(t, "0xd90666 868.100 MHz\nDone\n", rt.run(t, "channel"))
	assert.Equal(t, "868.100\nDone\n", rt.run(t, "freq"))
	assert.Equal(t, "Done\n", rt.run(t, "sync 0x34"))
	assert.Equal(t, "0x34\nDone\n", rt.run(t, "sync"))
	assert.Equal(t, "Done\n", rt.run(t, "preamble 12"))
	assert.Equal(t, "12\nDone\n", rt.run(t, "preamble"))
	assert.Equal(t, "Done\n", rt.run(t, "crc off"))
	assert.Equal(t, "off\nDone\n", rt.run(t, "crc"))
	assert.Equal(t, "Done\n", rt.run(t, "mode 10"))
	assert.Equal(t, "7\nDone\n", rt.run(t, "sf"))
	assert.Equal(t, "500kHz\nDone\n", rt.run(t, "bw"))

	assert.Equal(t, "lora 6> ", rt.GetPrompt())
	assert.Equal(t, "Done\n", rt.run(t, "addr 9"))
	assert.Equal(t, "lora 9> ", rt.GetPrompt())
}

func TestRunRejectsInvalidValues(t *testing.T) {
	rt := newTestRunner(t)

	for _, cmd := range []string{"sf 13", "bw 100", "cr 9", "mode 11", "power 30", "preamble 3", "addr 0", "toa 300", "channel nowhere"} {
		out := rt.run(t, cmd)
		assert.Contains(t, out, "Error: ", cmd)
		assert.NotContains(t, out, "Done", cmd)
	}
	assert.Equal(t, "7\nDone\n", rt.run(t, "sf"))
	assert.Contains(t, rt.run(t, "wrongcmd"), "Error: ")
}

func TestRunReadouts(t *testing.T) {
	rt := newTestRunner(t)

	assert.Equal(t, "46.336ms\nDone\n", rt.run(t, "toa 10"))
	assert.Equal(t, "0x42: 0x12\nDone\n", rt.run(t, "reg 0x42"))

	status := rt.run(t, "status")
	assert.Contains(t, status, "chip: SX1276")
	assert.Contains(t, status, "node: 6")
	assert.Contains(t, status, "mac: idle")
	assert.Contains(t, status, "modem: {sf: 7, bw: 125")

	config := rt.run(t, "config")
	assert.Contains(t, config, "- {sf: 7, bw: 125, cr: 5")
	assert.Contains(t, config, "channel: \"0xe4c000\"")

	assert.Contains(t, rt.run(t, "stats"), "tx: sends=0")
}

func TestRunCad(t *testing.T) {
	rt := newTestRunner(t)

	assert.Equal(t, "clear\nDone\n", rt.run(t, "cad"))
	rt.chip.SetChannelBusy(true)
	assert.Equal(t, "busy\nDone\n", rt.run(t, "cad"))
}

func TestRunSendAndReceive(t *testing.T) {
	rt := newTestRunner(t)

	out := rt.run(t, `send 0 "hello"`)
	assert.Contains(t, out, "seq ")
	assert.Contains(t, out, "1 transmission(s)")
	require.Len(t, rt.chip.Transmitted(), 1)
	f, err := radio.DecodeFrame(rt.chip.Transmitted()[0].Frame)
	require.Nil(t, err)
	assert.Equal(t, []byte("hello"), f.Payload)

	assert.Contains(t, rt.run(t, `send 0 "hello" ack`), "Error: ")

	in := &radio.Frame{Dst: 6, Type: types.PacketTypeData, Src: 1, Seq: 4, Payload: []byte("hi there")}
	rt.chip.Send(in.Encode(), 50*time.Millisecond)
	out = rt.run(t, "rx 2s")
	assert.Contains(t, out, "src=1 seq=4")
	assert.Contains(t, out, `payload="hi there"`)

	out = rt.run(t, "rx 200ms")
	assert.Contains(t, out, "Error: ")
	assert.Contains(t, out, "timeout")
}

func TestRunReport(t *testing.T) {
	rt := newTestRunner(t)

	out := rt.run(t, `report 0 3 "t"`)
	assert.Contains(t, out, "1: seq ")
	assert.Contains(t, out, "3: seq ")
	assert.Len(t, rt.chip.Transmitted(), 3)
	assert.Contains(t, rt.run(t, `report 0 0 "t"`), "Error: ")
}

func TestRunLogLevel(t *testing.T) {
	prev := logger.GetLevel()
	defer logger.SetLevel(prev)

	rt := newTestRunner(t)
	assert.Equal(t, "Done\n", rt.run(t, "log warn"))
	assert.Equal(t, "warn\nDone\n", rt.run(t, "log"))
}

func TestRunHelp(t *testing.T) {
	rt := newTestRunner(t)

	general := rt.run(t, "help")
	assert.Contains(t, general, "send")
	assert.Contains(t, general, "Send a frame with listen-before-talk.")
	assert.Contains(t, rt.run(t, "help rx"), "retransmission")
	assert.Contains(t, rt.run(t, "help nothing"), "no help for \"nothing\"")
}

func TestRunExit(t *testing.T) {
	rt := newTestRunner(t)

	var out bytes.Buffer
	err := rt.RunCommand("exit", &out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "Done\n", out.String())

	// commands after exit are not executed
	out.Reset()
	assert.NotNil(t, rt.RunCommand("sf", &out))
	assert.Equal(t, "", out.String())
}
