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
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/lbtlora/sx127x/config"
	"github.com/lbtlora/sx127x/gateway"
	"github.com/lbtlora/sx127x/logger"
	"github.com/lbtlora/sx127x/mac"
	"github.com/lbtlora/sx127x/prng"
	"github.com/lbtlora/sx127x/progctx"
	"github.com/lbtlora/sx127x/radio"
	"github.com/lbtlora/sx127x/types"
)

const (
	Prompt = "> "

	// Spacing of 'report' frames: 1 s plus 1.5 to 6 s of jitter.
	reportIntervalMin = 2500 * time.Millisecond
	reportIntervalMax = 7000 * time.Millisecond
)

type CommandContext struct {
	context.Context
	*Command
	rt     *CmdRunner
	err    error
	output io.Writer
}

func (cc *CommandContext) outputStr(msg string) {
	_, _ = fmt.Fprint(cc.output, msg)
}

func (cc *CommandContext) outputf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cc.output, format, args...)
}

func (cc *CommandContext) errorf(format string, args ...interface{}) {
	cc.error(errors.Errorf(format, args...))
}

func (cc *CommandContext) error(err error) {
	if err != nil {
		if cc.err != nil { // if previous error, print it now and keep the last.
			cc.outputf("Error: %s\n", cc.err)
		}
		cc.err = err
	}
}

// Err returns the last error that occurred during command execution.
func (cc *CommandContext) Err() error {
	return cc.err
}

func (cc *CommandContext) outputItemsAsYaml(items interface{}) {
	var itemsYaml yaml.Node

	err := itemsYaml.Encode(items)
	logger.PanicIfError(err)

	for _, content := range itemsYaml.Content {
		content.Style = yaml.FlowStyle
	}

	data, err := yaml.Marshal(&itemsYaml)
	logger.PanicIfError(err)

	_, err = cc.output.Write(data)
	logger.PanicIfError(err)
}

// CmdRunner executes console commands against one radio.
type CmdRunner struct {
	ctx      *progctx.ProgCtx
	radio    *radio.Radio
	sender   *mac.Sender
	receiver *mac.Receiver
	help     Help
}

func NewCmdRunner(ctx *progctx.ProgCtx, r *radio.Radio, sender *mac.Sender, receiver *mac.Receiver) *CmdRunner {
	return &CmdRunner{
		ctx:      ctx,
		radio:    r,
		sender:   sender,
		receiver: receiver,
		help:     newHelp(),
	}
}

func (rt *CmdRunner) RunCommand(cmdline string, output io.Writer) error {
	if rt.ctx.Err() == nil {
		cmd := Command{}

		if err := ParseBytes([]byte(cmdline), &cmd); err != nil {
			if _, err := fmt.Fprintf(output, "Error: %v\n", err); err != nil {
				return err
			}
		} else {
			rt.execute(&cmd, output)
		}
	}
	return rt.ctx.Err()
}

func (rt *CmdRunner) HandleCommand(cmdline string, output io.Writer) error {
	return rt.RunCommand(cmdline, output)
}

func (rt *CmdRunner) GetPrompt() string {
	return fmt.Sprintf("lora %d%s", rt.radio.NodeAddress(), Prompt)
}

func (rt *CmdRunner) execute(cmd *Command, output io.Writer) {
	cc := &CommandContext{
		Context: rt.ctx,
		Command: cmd,
		rt:      rt,
		output:  output,
	}

	defer func() {
		if cc.Err() != nil {
			cc.outputf("Error: %v\n", cc.Err())
		} else {
			cc.outputf("Done\n")
		}
	}()

	defer func() {
		rerr := recover()

		if rerr != nil {
			if err, ok := rerr.(error); ok {
				cc.err = errors.Wrapf(err, "panic: %v", err)
			} else {
				cc.err = errors.Errorf("panic: %v", rerr)
			}
		}
	}()

	if cmd.Send != nil {
		rt.executeSend(cc, cmd.Send)
	} else if cmd.Rx != nil {
		rt.executeRx(cc, cmd.Rx)
	} else if cmd.Report != nil {
		rt.executeReport(cc, cmd.Report)
	} else if cmd.Cad != nil {
		rt.executeCad(cc)
	} else if cmd.Rssi != nil {
		rt.executeRssi(cc)
	} else if cmd.Sf != nil {
		rt.executeSf(cc, cmd.Sf)
	} else if cmd.Bw != nil {
		rt.executeBw(cc, cmd.Bw)
	} else if cmd.Cr != nil {
		rt.executeCr(cc, cmd.Cr)
	} else if cmd.Channel != nil {
		rt.executeChannel(cc, cmd.Channel)
	} else if cmd.Freq != nil {
		rt.executeFreq(cc, cmd.Freq)
	} else if cmd.Power != nil {
		rt.executePower(cc, cmd.Power)
	} else if cmd.Mode != nil {
		cc.error(rt.radio.SetMode(cmd.Mode.Mode))
	} else if cmd.Sync != nil {
		rt.executeSync(cc, cmd.Sync)
	} else if cmd.Preamble != nil {
		rt.executePreamble(cc, cmd.Preamble)
	} else if cmd.Crc != nil {
		rt.executeCrc(cc, cmd.Crc)
	} else if cmd.Addr != nil {
		rt.executeAddr(cc, cmd.Addr)
	} else if cmd.Status != nil {
		rt.executeStatus(cc)
	} else if cmd.Config != nil {
		rt.executeConfig(cc)
	} else if cmd.Stats != nil {
		rt.executeStats(cc)
	} else if cmd.Reg != nil {
		rt.executeReg(cc, cmd.Reg)
	} else if cmd.Toa != nil {
		rt.executeToa(cc, cmd.Toa)
	} else if cmd.Sleep != nil {
		cc.error(rt.radio.Sleep())
	} else if cmd.Ports != nil {
		rt.executePorts(cc)
	} else if cmd.LogLevel != nil {
		rt.executeLogLevel(cc, cmd.LogLevel)
	} else if cmd.Exit != nil {
		rt.executeExit(cc)
	} else if cmd.Help != nil {
		rt.executeHelp(cc, cmd.Help)
	} else {
		logger.Panicf("unimplemented command: %#v", cmd)
	}
}

func (rt *CmdRunner) executeSend(cc *CommandContext, cmd *SendCmd) {
	res, err := rt.sender.Send(types.NodeAddr(cmd.Dst), []byte(unquote(cmd.Payload)), cmd.Ack != nil)
	if err != nil {
		cc.error(err)
		return
	}
	cc.outputStr(formatResult(res))
}

func formatResult(res *mac.Result) string {
	s := fmt.Sprintf("seq %d to %d: %d transmission(s), %d listen attempt(s), %v",
		res.Frame.Seq, res.Frame.Dst, res.Transmissions, res.ListenAttempts, res.Elapsed)
	if res.Acked {
		s += fmt.Sprintf(", acked snr=%d", res.AckSNR)
	}
	return s + "\n"
}

func (rt *CmdRunner) executeRx(cc *CommandContext, cmd *RxCmd) {
	timeout, err := parseDuration(cmd.Timeout, defaultRxTimeout)
	if err != nil {
		cc.error(err)
		return
	}
	f, err := rt.receiver.Receive(timeout)
	if err != nil {
		cc.error(err)
		return
	}
	cc.outputf("%s snr=%d rssi=%d payload=%q\n", f, f.SNR, f.RSSI, f.Payload)
}

func (rt *CmdRunner) executeReport(cc *CommandContext, cmd *ReportCmd) {
	if cmd.Count <= 0 {
		cc.errorf("count must be positive: %d", cmd.Count)
		return
	}
	payload := []byte(unquote(cmd.Payload))
	clock := rt.radio.Clock()
	for i := 0; i < cmd.Count; i++ {
		if cc.Err() != nil || rt.ctx.Err() != nil {
			return
		}
		if i > 0 {
			clock.Sleep(prng.NewSendInterval(reportIntervalMin, reportIntervalMax))
		}
		res, err := rt.sender.Send(types.NodeAddr(cmd.Dst), payload, cmd.Ack != nil)
		if err != nil {
			// a lost frame does not end the series
			if errors.Is(err, types.ErrChannelBusyTimeout) || errors.Is(err, types.ErrUnacknowledged) {
				cc.outputf("%d: %v\n", i+1, err)
				continue
			}
			cc.error(err)
			return
		}
		cc.outputf("%d: %s", i+1, formatResult(res))
	}
}

func (rt *CmdRunner) executeCad(cc *CommandContext) {
	t := mac.TimingFor(rt.radio.Params().SpreadingFactor, rt.radio.Params().Bandwidth)
	busy, err := rt.radio.DetectActivity(t.CADTimeout())
	if err != nil {
		cc.error(err)
		return
	}
	if busy {
		cc.outputStr("busy\n")
	} else {
		cc.outputStr("clear\n")
	}
}

func (rt *CmdRunner) executeRssi(cc *CommandContext) {
	rssi, err := rt.radio.RSSI()
	if err != nil {
		cc.error(err)
		return
	}
	snr, pktRSSI := rt.radio.LastLinkQuality()
	cc.outputf("channel %d dBm, last packet %d dBm snr %d dB\n", rssi, pktRSSI, snr)
}

func (rt *CmdRunner) executeSf(cc *CommandContext, cmd *SfCmd) {
	if cmd.SF != nil {
		cc.error(rt.radio.SetSpreadingFactor(types.SpreadingFactor(*cmd.SF)))
		return
	}
	sf, err := rt.radio.SpreadingFactor()
	if err != nil {
		cc.error(err)
		return
	}
	cc.outputf("%d\n", int(sf))
}

func (rt *CmdRunner) executeBw(cc *CommandContext, cmd *BwCmd) {
	if cmd.KHz != nil {
		bw, err := types.ParseBandwidthKHz(*cmd.KHz)
		if err != nil {
			cc.error(err)
			return
		}
		cc.error(rt.radio.SetBandwidth(bw))
		return
	}
	bw, err := rt.radio.Bandwidth()
	if err != nil {
		cc.error(err)
		return
	}
	cc.outputf("%v\n", bw)
}

func (rt *CmdRunner) executeCr(cc *CommandContext, cmd *CrCmd) {
	if cmd.Rate != nil {
		cc.error(rt.radio.SetCodingRate(types.CodingRate(*cmd.Rate)))
		return
	}
	cr, err := rt.radio.CodingRate()
	if err != nil {
		cc.error(err)
		return
	}
	cc.outputf("%v\n", cr)
}

func (rt *CmdRunner) executeChannel(cc *CommandContext, cmd *ChannelCmd) {
	if cmd.Channel != nil {
		frf, err := config.ParseChannel(*cmd.Channel)
		if err != nil {
			cc.error(err)
			return
		}
		cc.error(rt.radio.SetChannel(frf))
		return
	}
	frf, err := rt.radio.Channel()
	if err != nil {
		cc.error(err)
		return
	}
	cc.outputf("0x%06x %.3f MHz\n", frf, float64(radio.ChannelToFrequency(frf))/1e6)
}

func (rt *CmdRunner) executeFreq(cc *CommandContext, cmd *FreqCmd) {
	if cmd.MHz != nil {
		cc.error(rt.radio.SetFrequency(uint64(*cmd.MHz * 1e6)))
		return
	}
	frf, err := rt.radio.Channel()
	if err != nil {
		cc.error(err)
		return
	}
	cc.outputf("%.3f\n", float64(radio.ChannelToFrequency(frf))/1e6)
}

func (rt *CmdRunner) executePower(cc *CommandContext, cmd *PowerCmd) {
	if cmd.Dbm != nil {
		cc.error(rt.radio.SetPower(*cmd.Dbm))
		return
	}
	pa, err := rt.radio.PowerConfig()
	if err != nil {
		cc.error(err)
		return
	}
	cc.outputf("%d dBm (PaConfig 0x%02x)\n", rt.radio.Params().PowerDbm, pa)
}

func (rt *CmdRunner) executeSync(cc *CommandContext, cmd *SyncCmd) {
	if cmd.Word != nil {
		w, err := parseByte(*cmd.Word)
		if err != nil {
			cc.error(err)
			return
		}
		cc.error(rt.radio.SetSyncWord(w))
		return
	}
	w, err := rt.radio.SyncWord()
	if err != nil {
		cc.error(err)
		return
	}
	cc.outputf("0x%02x\n", w)
}

func (rt *CmdRunner) executePreamble(cc *CommandContext, cmd *PreambleCmd) {
	if cmd.Symbols != nil {
		if *cmd.Symbols < 0 || *cmd.Symbols > 0xFFFF {
			cc.error(errors.Wrapf(types.ErrValidation, "preamble length %d", *cmd.Symbols))
			return
		}
		cc.error(rt.radio.SetPreambleLength(uint16(*cmd.Symbols)))
		return
	}
	n, err := rt.radio.PreambleLength()
	if err != nil {
		cc.error(err)
		return
	}
	cc.outputf("%d\n", n)
}

func (rt *CmdRunner) executeCrc(cc *CommandContext, cmd *CrcCmd) {
	if cmd.OnOff != nil {
		cc.error(rt.radio.SetCRC(cmd.OnOff.On != nil))
		return
	}
	cc.outputf("%s\n", onOff(rt.radio.Params().CRC))
}

func (rt *CmdRunner) executeAddr(cc *CommandContext, cmd *AddrCmd) {
	if cmd.Addr != nil {
		if *cmd.Addr < 0 || *cmd.Addr > int(types.MaxNodeAddr) {
			cc.error(errors.Wrapf(types.ErrValidation, "node address %d", *cmd.Addr))
			return
		}
		cc.error(rt.radio.SetNodeAddress(types.NodeAddr(*cmd.Addr)))
		return
	}
	cc.outputf("%d\n", rt.radio.NodeAddress())
}

type modemInfo struct {
	SF       int     `yaml:"sf"`
	BW       float64 `yaml:"bw"`
	CR       int     `yaml:"cr"`
	Channel  string  `yaml:"channel"`
	Freq     float64 `yaml:"freq"`
	Power    int     `yaml:"power"`
	Sync     string  `yaml:"sync"`
	Preamble int     `yaml:"preamble"`
	CRC      bool    `yaml:"crc"`
	LDRO     bool    `yaml:"ldro"`
}

func newModemInfo(p radio.ModemParams) modemInfo {
	return modemInfo{
		SF:       int(p.SpreadingFactor),
		BW:       p.Bandwidth.KHz(),
		CR:       int(p.CodingRate),
		Channel:  fmt.Sprintf("0x%06x", p.Channel),
		Freq:     float64(radio.ChannelToFrequency(p.Channel)) / 1e6,
		Power:    p.PowerDbm,
		Sync:     fmt.Sprintf("0x%02x", p.SyncWord),
		Preamble: int(p.PreambleLength),
		CRC:      p.CRC,
		LDRO:     p.LowDataRateOptimize,
	}
}

type statusInfo struct {
	Chip   string    `yaml:"chip"`
	Node   int       `yaml:"node"`
	State  string    `yaml:"state"`
	MAC    string    `yaml:"mac"`
	Seq    int       `yaml:"seq"`
	Timing string    `yaml:"timing"`
	Modem  modemInfo `yaml:"modem"`
}

func (rt *CmdRunner) executeStatus(cc *CommandContext) {
	p := rt.radio.Params()
	st, err := rt.radio.ReadState()
	if err != nil {
		cc.error(err)
		return
	}
	cc.outputItemsAsYaml(statusInfo{
		Chip:   rt.radio.Variant().String(),
		Node:   int(rt.radio.NodeAddress()),
		State:  st.String(),
		MAC:    rt.sender.State().String(),
		Seq:    int(rt.radio.SequenceNumber()),
		Timing: mac.TimingFor(p.SpreadingFactor, p.Bandwidth).String(),
		Modem:  newModemInfo(p),
	})
}

// executeConfig reports the modem configuration read back from the chip.
func (rt *CmdRunner) executeConfig(cc *CommandContext) {
	mc, err := rt.radio.ReadModemConfig()
	if err != nil {
		cc.error(err)
		return
	}
	p, ok := rt.radio.Variant().Decode(mc)
	if !ok {
		cc.errorf("modem config 0x%02x 0x%02x 0x%02x does not decode", mc.Config1, mc.Config2, mc.Config3)
		return
	}
	if p.Channel, err = rt.radio.Channel(); err != nil {
		cc.error(err)
		return
	}
	if p.SyncWord, err = rt.radio.SyncWord(); err != nil {
		cc.error(err)
		return
	}
	if p.PreambleLength, err = rt.radio.PreambleLength(); err != nil {
		cc.error(err)
		return
	}
	p.PowerDbm = rt.radio.Params().PowerDbm
	cc.outputItemsAsYaml([]modemInfo{newModemInfo(p)})
}

func (rt *CmdRunner) executeStats(cc *CommandContext) {
	cc.outputf("tx: %s\n", rt.sender.Stats())
	cc.outputf("rx: %s\n", rt.receiver.Stats())
}

func (rt *CmdRunner) executeReg(cc *CommandContext, cmd *RegCmd) {
	addr, err := parseByte(cmd.Addr)
	if err != nil {
		cc.error(err)
		return
	}
	v, err := rt.radio.ReadRegister(addr)
	if err != nil {
		cc.error(err)
		return
	}
	cc.outputf("0x%02x: 0x%02x\n", addr, v)
}

func (rt *CmdRunner) executeToa(cc *CommandContext, cmd *ToaCmd) {
	if cmd.Length < 0 || cmd.Length > radio.MaxPayloadLength {
		cc.error(errors.Wrapf(types.ErrValidation, "payload length %d", cmd.Length))
		return
	}
	cc.outputf("%v\n", rt.radio.TimeOnAir(cmd.Length))
}

func (rt *CmdRunner) executePorts(cc *CommandContext) {
	ports, err := gateway.SerialPorts()
	if err != nil {
		cc.error(err)
		return
	}
	for _, p := range ports {
		cc.outputf("%s\n", p)
	}
}

func (rt *CmdRunner) executeLogLevel(cc *CommandContext, cmd *LogLevelCmd) {
	if cmd.Level == "" {
		cc.outputf("%v\n", logger.GetLevelString(logger.GetLevel()))
		return
	}
	lv, err := logger.ParseLevelString(cmd.Level)
	if err != nil {
		cc.error(err)
		return
	}
	logger.SetLevel(lv)
}

func (rt *CmdRunner) executeExit(cc *CommandContext) {
	rt.ctx.Cancel("exit")
}

func (rt *CmdRunner) executeHelp(cc *CommandContext, cmd *HelpCmd) {
	if len(cmd.HelpTopic) > 0 {
		cc.outputStr(rt.help.outputCommandHelp(cmd.HelpTopic))
	} else {
		cc.outputStr(rt.help.outputGeneralHelp())
	}
}
