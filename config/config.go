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


// Package config loads the YAML configuration shared by loractl and lora-gateway.
package config

import (
	"bytes"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/lbtlora/sx127x/bus"
	"github.com/lbtlora/sx127x/logger"
	"github.com/lbtlora/sx127x/mac"
	"github.com/lbtlora/sx127x/radio"
	"github.com/lbtlora/sx127x/types"
)

type BusConfig struct {
	SPI            string `yaml:"spi"`
	SpeedHz        int64  `yaml:"speed-hz"`
	ResetPin       string `yaml:"reset-pin"`
	CSPin          string `yaml:"cs-pin"`
	ResetActiveLow bool   `yaml:"reset-active-low"`
}

type RadioConfig struct {
	Chip            string        `yaml:"chip"` // simulated chip: sx1272 or sx1276
	Mode            int           `yaml:"mode"` // preset 1..10, overrides sf and bw
	SpreadingFactor int           `yaml:"sf"`
	BandwidthKHz    float64       `yaml:"bw"`
	CodingRate      int           `yaml:"cr"`
	Channel         string        `yaml:"channel"` // table name or FRF word, e.g. CH_18_868 or 0xD90666
	FrequencyMHz    float64       `yaml:"frequency"`
	PowerDbm        int           `yaml:"power"`
	SyncWord        int           `yaml:"sync-word"`
	Preamble        int           `yaml:"preamble"`
	CRC             bool          `yaml:"crc"`
	Node            int           `yaml:"node"`
	Promiscuous     bool          `yaml:"promiscuous"`
	SettleDelay     time.Duration `yaml:"settle-delay"`
}

type MACConfig struct {
	Ack               bool          `yaml:"ack"`
	MaxListenAttempts int           `yaml:"max-listen-attempts"`
	MaxRetries        int           `yaml:"max-retries"`
	AckTimeout        time.Duration `yaml:"ack-timeout"`
	AppKey            string        `yaml:"app-key"`
}

type GatewayConfig struct {
	Stdout        bool          `yaml:"stdout"`
	Serial        string        `yaml:"serial"`
	Baud          int           `yaml:"baud"`
	Pcap          string        `yaml:"pcap"`
	Database      string        `yaml:"database"`
	CheckAppKey   bool          `yaml:"check-app-key"`
	ReceiveWindow time.Duration `yaml:"receive-window"`
}

type LogConfig struct {
	Level   string   `yaml:"level"`
	Outputs []string `yaml:"outputs"`
}

// Config is the whole configuration file.
type Config struct {
	Bus     BusConfig     `yaml:"bus"`
	Radio   RadioConfig   `yaml:"radio"`
	MAC     MACConfig     `yaml:"mac"`
	Gateway GatewayConfig `yaml:"gateway"`
	Log     LogConfig     `yaml:"log"`
	Seed    int64         `yaml:"seed"`
}

// Default returns the configuration used for keys a file leaves out.
func Default() *Config {
	p := radio.DefaultModemParams()
	return &Config{
		Bus: BusConfig{
			SpeedHz:  1000000,
			ResetPin: "GPIO17",
		},
		Radio: RadioConfig{
			Chip:            "sx1276",
			SpreadingFactor: int(p.SpreadingFactor),
			BandwidthKHz:    p.Bandwidth.KHz(),
			CodingRate:      int(p.CodingRate),
			Channel:         "CH_12_900",
			PowerDbm:        p.PowerDbm,
			SyncWord:        int(p.SyncWord),
			Preamble:        int(p.PreambleLength),
			CRC:             p.CRC,
			Node:            1,
			SettleDelay:     100 * time.Millisecond,
		},
		MAC: MACConfig{
			MaxListenAttempts: mac.DefaultMaxListenAttempts,
			MaxRetries:        mac.DefaultMaxRetries,
		},
		Gateway: GatewayConfig{
			Stdout:        true,
			Baud:          38400,
			ReceiveWindow: time.Second,
		},
		Log: LogConfig{
			Level:   "warn",
			Outputs: []string{"stderr"},
		},
	}
}

// Load reads the file at path over the defaults. Unknown keys are errors.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config")
	}
	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes a configuration over the defaults and validates it.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Wrapf(types.ErrValidation, "%v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if _, err := c.ModemParams(); err != nil {
		return err
	}
	if c.Radio.Node <= int(types.BroadcastAddr) || c.Radio.Node > int(types.MaxNodeAddr) {
		return errors.Wrapf(types.ErrValidation, "node address %d", c.Radio.Node)
	}
	switch strings.ToLower(c.Radio.Chip) {
	case "sx1272", "sx1276":
	default:
		return errors.Wrapf(types.ErrValidation, "chip %q", c.Radio.Chip)
	}
	if _, err := mac.ParseAppKey(c.MAC.AppKey); err != nil {
		return err
	}
	if c.MAC.MaxListenAttempts <= 0 || c.MAC.MaxRetries < 0 {
		return errors.Wrapf(types.ErrValidation, "mac attempts %d retries %d", c.MAC.MaxListenAttempts, c.MAC.MaxRetries)
	}
	if c.Gateway.Serial != "" && c.Gateway.Baud <= 0 {
		return errors.Wrapf(types.ErrValidation, "baud rate %d", c.Gateway.Baud)
	}
	if _, err := logger.ParseLevelString(c.Log.Level); err != nil {
		return errors.Wrapf(types.ErrValidation, "%v", err)
	}
	return nil
}

// ParseChannel accepts a channel table name, a hex FRF word or a frequency in MHz
// ("868.1").
func ParseChannel(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if frf, ok := radio.ChannelByName(strings.ToUpper(s)); ok {
		return frf, nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 32)
		if err != nil || v > radio.MaxChannel {
			return 0, errors.Wrapf(types.ErrValidation, "channel %q", s)
		}
		return uint32(v), nil
	}
	mhz, err := strconv.ParseFloat(s, 64)
	if err != nil || mhz <= 0 {
		return 0, errors.Wrapf(types.ErrValidation, "channel %q", s)
	}
	return radio.FrequencyToChannel(uint64(mhz*1e6 + 0.5)), nil
}

// ModemParams converts the radio section.
func (c *Config) ModemParams() (radio.ModemParams, error) {
	rc := c.Radio
	p := radio.DefaultModemParams()
	p.SpreadingFactor = types.SpreadingFactor(rc.SpreadingFactor)
	bw, err := types.ParseBandwidthKHz(rc.BandwidthKHz)
	if err != nil {
		return p, err
	}
	p.Bandwidth = bw
	if rc.Mode != 0 {
		if p.SpreadingFactor, p.Bandwidth, err = radio.Preset(rc.Mode); err != nil {
			return p, err
		}
		p.CodingRate = types.CR4_5
	} else {
		p.CodingRate = types.CodingRate(rc.CodingRate)
	}

	switch {
	case rc.FrequencyMHz > 0:
		p.Channel = radio.FrequencyToChannel(uint64(rc.FrequencyMHz*1e6 + 0.5))
	case rc.Channel != "":
		if p.Channel, err = ParseChannel(rc.Channel); err != nil {
			return p, err
		}
	}
	if rc.SyncWord < 0 || rc.SyncWord > 0xFF || rc.Preamble < 0 || rc.Preamble > 0xFFFF {
		return p, errors.Wrapf(types.ErrValidation, "sync word 0x%x preamble %d", rc.SyncWord, rc.Preamble)
	}
	p.SyncWord = byte(rc.SyncWord)
	p.PreambleLength = uint16(rc.Preamble)
	p.PowerDbm = rc.PowerDbm
	p.CRC = rc.CRC
	p = p.Normalized()
	return p, p.Validate(c.Variant())
}

// Variant is the chip profile named by radio.chip.
func (c *Config) Variant() *radio.Variant {
	if strings.ToLower(c.Radio.Chip) == "sx1272" {
		return radio.SX1272
	}
	return radio.SX1276
}

// ChipVersion is the RegVersion value of the configured chip.
func (c *Config) ChipVersion() byte {
	return c.Variant().Version
}

// RadioOptions builds the radio options; the clock and lines are left to the caller.
func (c *Config) RadioOptions(log *logger.Component) (radio.Options, error) {
	p, err := c.ModemParams()
	if err != nil {
		return radio.Options{}, err
	}
	opts := radio.DefaultOptions()
	opts.Params = p
	opts.NodeAddress = types.NodeAddr(c.Radio.Node)
	opts.Promiscuous = c.Radio.Promiscuous
	opts.ResetActiveLow = c.Bus.ResetActiveLow
	if c.Radio.SettleDelay > 0 {
		opts.SettleDelay = c.Radio.SettleDelay
	}
	opts.Log = log
	return opts, nil
}

func (c *Config) PeriphConfig() bus.PeriphConfig {
	return bus.PeriphConfig{
		Port:     c.Bus.SPI,
		SpeedHz:  c.Bus.SpeedHz,
		ResetPin: c.Bus.ResetPin,
		CSPin:    c.Bus.CSPin,
	}
}

// MACOptions builds the sender options.
func (c *Config) MACOptions(log *logger.Component) (mac.Options, error) {
	key, err := mac.ParseAppKey(c.MAC.AppKey)
	if err != nil {
		return mac.Options{}, err
	}
	opts := mac.DefaultOptions()
	opts.MaxListenAttempts = c.MAC.MaxListenAttempts
	opts.MaxRetries = c.MAC.MaxRetries
	opts.AckTimeout = c.MAC.AckTimeout
	opts.AppKey = key
	opts.Log = log
	return opts, nil
}

// LogLevel is the parsed log.level.
func (c *Config) LogLevel() logger.Level {
	lv, _ := logger.ParseLevelString(c.Log.Level)
	return lv
}
