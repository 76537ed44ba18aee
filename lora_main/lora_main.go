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
	"context"
	"io"
	"os"
	"syscall"

	"github.com/pkg/errors"
	"github.com/simonlingoogle/go-simplelogger"

	"github.com/lbtlora/sx127x/cli"
	"github.com/lbtlora/sx127x/config"
	"github.com/lbtlora/sx127x/gateway"
	"github.com/lbtlora/sx127x/logger"
	"github.com/lbtlora/sx127x/mac"
	"github.com/lbtlora/sx127x/pcap"
	"github.com/lbtlora/sx127x/progctx"
	"github.com/lbtlora/sx127x/simchip"
)

var exitSignals = []os.Signal{syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP}

// Main runs the loractl console until it exits or a signal arrives.
func Main(ctx *progctx.ProgCtx, argv []string, consoleOptions *cli.ConsoleOptions) error {
	args, err := parseArgs("loractl", argv, nil)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	setup(cfg)
	ctx.CancelOnSignal(exitSignals...)

	var medium *simchip.Medium
	if args.Sim {
		medium = simchip.NewMedium()
	}
	dev, err := OpenDevice(cfg, medium, logger.Named("radio"))
	if err != nil {
		return err
	}
	simplelogger.Infof("%s node %d: %s", dev, dev.Radio.NodeAddress(), dev.Radio.Params())

	var peer *Device
	if medium != nil {
		peerLog := logger.Named("sim-peer")
		if peer, err = openPeer(cfg, medium, peerAddress(dev.Radio.NodeAddress(), simGatewayAddr), "sim-peer"); err != nil {
			_ = dev.Close()
			return err
		}
		ctx.Go("sim-peer", func(c context.Context) error {
			return runAcker(c, peer, peerLog)
		})
	}

	macOpts, err := cfg.MACOptions(logger.Named("mac"))
	if err != nil {
		_ = dev.Close()
		return err
	}
	sender := mac.NewSender(dev.Radio, macOpts)
	receiver := mac.NewReceiver(dev.Radio, mac.ReceiverOptions{Log: macOpts.Log})
	rt := cli.NewCmdRunner(ctx, dev.Radio, sender, receiver)

	console := cli.NewConsole()
	logger.SetStdoutCallback(console)
	ctx.Go("console", func(context.Context) error {
		err := console.Run(rt, consoleOptions)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		ctx.Cancel(errors.Wrap(err, "console exit"))
		return nil
	})

	<-ctx.Done()
	console.Stop()
	ctx.Wait()

	if peer != nil {
		_ = peer.Close()
	}
	if err := dev.Close(); err != nil {
		logger.Warnf("power off: %v", err)
	}
	logger.Sync()
	return exitError(ctx)
}

// GatewayMain runs the gateway receive loop until a signal arrives. Reports go to
// stdout unless the configuration disables it.
func GatewayMain(ctx *progctx.ProgCtx, argv []string, stdout io.Writer) error {
	args, err := parseArgs("lora-gateway", argv, nil)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	setup(cfg)
	ctx.CancelOnSignal(exitSignals...)

	var medium *simchip.Medium
	if args.Sim {
		medium = simchip.NewMedium()
	}
	dev, err := OpenDevice(cfg, medium, logger.Named("radio"))
	if err != nil {
		return err
	}

	gw, err := newGateway(ctx, cfg, dev, stdout)
	if err != nil {
		_ = dev.Close()
		return err
	}

	var sensor *Device
	if medium != nil {
		if sensor, err = openPeer(cfg, medium, peerAddress(dev.Radio.NodeAddress(), simSensorAddr), "sim-sensor"); err != nil {
			_ = gw.Close()
			_ = dev.Close()
			return err
		}
		sensorOpts, err := cfg.MACOptions(logger.Named("sim-sensor"))
		if err != nil {
			_ = gw.Close()
			_ = dev.Close()
			return err
		}
		dst := dev.Radio.NodeAddress()
		ctx.Go("sim-sensor", func(c context.Context) error {
			return runReporter(c, sensor, dst, sensorOpts)
		})
	}

	ctx.Go("gateway-rx", gw.Run)

	<-ctx.Done()
	ctx.Wait()

	st := gw.Stats()
	simplelogger.Infof("gateway stopped: frames=%d rejected=%d sink_errors=%d, %s", st.Frames, st.Rejected, st.SinkErrors, gw.ReceiverStats())
	if err := gw.Close(); err != nil {
		logger.Warnf("%v", err)
	}
	if sensor != nil {
		_ = sensor.Close()
	}
	if err := dev.Close(); err != nil {
		logger.Warnf("power off: %v", err)
	}
	logger.Sync()
	return exitError(ctx)
}

// exitError is the reason the program stopped, unless that was a signal.
func exitError(ctx *progctx.ProgCtx) error {
	if err := ctx.ExitError(); err != nil && !errors.Is(err, progctx.ErrSignal) {
		return err
	}
	return nil
}

// newGateway builds the gateway and its configured sinks.
func newGateway(ctx context.Context, cfg *config.Config, dev *Device, stdout io.Writer) (*gateway.Gateway, error) {
	key, err := mac.ParseAppKey(cfg.MAC.AppKey)
	if err != nil {
		return nil, err
	}
	gw := gateway.New(dev.Radio, gateway.Options{
		AppKey:        key,
		CheckAppKey:   cfg.Gateway.CheckAppKey,
		ReceiveWindow: cfg.Gateway.ReceiveWindow,
		Log:           logger.Named("gateway"),
	})

	gc := cfg.Gateway
	if gc.Stdout && stdout != nil {
		gw.AddSink(gateway.NewLineSink("stdout", stdout))
	}
	if gc.Serial != "" {
		s, err := gateway.OpenSerialSink(gc.Serial, gc.Baud)
		if err != nil {
			_ = gw.Close()
			return nil, err
		}
		gw.AddSink(s)
	}
	if gc.Pcap != "" {
		s, err := gateway.NewPcapSink(gc.Pcap, pcap.FrameTypeLoRaTap)
		if err != nil {
			_ = gw.Close()
			return nil, err
		}
		gw.AddSink(s)
	}
	if gc.Database != "" {
		s, err := gateway.OpenDBSink(ctx, gc.Database)
		if err != nil {
			_ = gw.Close()
			return nil, err
		}
		gw.AddSink(s)
	}
	return gw, nil
}
