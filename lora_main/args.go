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


// Package lora_main holds the entry points of loractl and lora-gateway.
package lora_main

import (
	"flag"
	"io"

	"github.com/pkg/errors"
	"github.com/simonlingoogle/go-simplelogger"

	"github.com/lbtlora/sx127x/config"
	"github.com/lbtlora/sx127x/logger"
	"github.com/lbtlora/sx127x/prng"
	"github.com/lbtlora/sx127x/types"
)

type MainArgs struct {
	ConfigFile string
	Sim        bool
	LogLevel   string
	Node       int
	Seed       int64
}

func parseArgs(name string, argv []string, output io.Writer) (*MainArgs, error) {
	args := &MainArgs{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	if output != nil {
		fs.SetOutput(output)
	}
	fs.StringVar(&args.ConfigFile, "config", "", "YAML configuration file; built-in defaults apply to keys it leaves out")
	fs.BoolVar(&args.Sim, "sim", false, "use a simulated chip and a simulated peer node instead of the SPI bus")
	fs.StringVar(&args.LogLevel, "log", "", "override the log level: trace, debug, info, warn, error, off")
	fs.IntVar(&args.Node, "node", 0, "override the node address")
	fs.Int64Var(&args.Seed, "seed", 0, "seed of backoff and report intervals, 0 picks one from the clock")

	if err := fs.Parse(argv); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, errors.Errorf("unexpected argument %q", fs.Arg(0))
	}
	return args, nil
}

// loadConfig reads the configuration file, if any, and applies the flag overrides.
func loadConfig(args *MainArgs) (*config.Config, error) {
	cfg := config.Default()
	if args.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(args.ConfigFile); err != nil {
			return nil, err
		}
	}
	if args.LogLevel != "" {
		cfg.Log.Level = args.LogLevel
	}
	if args.Node != 0 {
		cfg.Radio.Node = args.Node
	}
	if args.Seed != 0 {
		cfg.Seed = args.Seed
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup applies the logging and random seed configuration.
func setup(cfg *config.Config) {
	level := cfg.LogLevel()
	logger.SetLevel(level)
	logger.SetOutput(cfg.Log.Outputs)
	simplelogger.SetLevel(simpleloggerLevel(level))
	prng.Init(cfg.Seed)
}

// simpleloggerLevel maps a log level to the level of the routine tracker's logger.
func simpleloggerLevel(level logger.Level) simplelogger.Level {
	switch level {
	case logger.TraceLevel, logger.DebugLevel:
		return simplelogger.DebugLevel
	case logger.InfoLevel:
		return simplelogger.InfoLevel
	case logger.WarnLevel:
		return simplelogger.WarnLevel
	case logger.ErrorLevel:
		return simplelogger.ErrorLevel
	default:
		return simplelogger.PanicLevel
	}
}

// peerAddress picks the address of the simulated peer, preferred unless it is taken by own.
func peerAddress(own types.NodeAddr, preferred types.NodeAddr) types.NodeAddr {
	if own == preferred {
		return preferred + 1
	}
	return preferred
}
