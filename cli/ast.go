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
	"github.com/alecthomas/participle"
)

// noinspection GoStructTag
type Command struct {
	Addr     *AddrCmd     `  @@` //nolint
	Bw       *BwCmd       `| @@` //nolint
	Cad      *CadCmd      `| @@` //nolint
	Channel  *ChannelCmd  `| @@` //nolint
	Config   *ConfigCmd   `| @@` //nolint
	Cr       *CrCmd       `| @@` //nolint
	Crc      *CrcCmd      `| @@` //nolint
	Exit     *ExitCmd     `| @@` //nolint
	Freq     *FreqCmd     `| @@` //nolint
	Help     *HelpCmd     `| @@` //nolint
	LogLevel *LogLevelCmd `| @@` //nolint
	Mode     *ModeCmd     `| @@` //nolint
	Ports    *PortsCmd    `| @@` //nolint
	Power    *PowerCmd    `| @@` //nolint
	Preamble *PreambleCmd `| @@` //nolint
	Reg      *RegCmd      `| @@` //nolint
	Report   *ReportCmd   `| @@` //nolint
	Rssi     *RssiCmd     `| @@` //nolint
	Rx       *RxCmd       `| @@` //nolint
	Send     *SendCmd     `| @@` //nolint
	Sf       *SfCmd       `| @@` //nolint
	Sleep    *SleepCmd    `| @@` //nolint
	Stats    *StatsCmd    `| @@` //nolint
	Status   *StatusCmd   `| @@` //nolint
	Sync     *SyncCmd     `| @@` //nolint
	Toa      *ToaCmd      `| @@` //nolint
}

// noinspection GoStructTag
type OnFlag struct {
	Dummy struct{} `"on"` //nolint
}

// noinspection GoStructTag
type OffFlag struct {
	Dummy struct{} `"off"` //nolint
}

// noinspection GoStructTag
type OnOrOffFlag struct {
	On  *OnFlag  `( @@`   //nolint
	Off *OffFlag `| @@ )` //nolint
}

// noinspection GoStructTag
type AckFlag struct {
	Dummy struct{} `"ack"` //nolint
}

// noinspection GoStructTag
type AddrCmd struct {
	Cmd  struct{} `"addr"`   //nolint
	Addr *int     `[ @Int ]` //nolint
}

// noinspection GoStructTag
type BwCmd struct {
	Cmd struct{} `"bw"`              //nolint
	KHz *float64 `[ (@Int|@Float) ]` //nolint
}

// noinspection GoStructTag
type CadCmd struct {
	Cmd struct{} `"cad"` //nolint
}

// noinspection GoStructTag
type ChannelCmd struct {
	Cmd     struct{} `"channel"`              //nolint
	Channel *string  `[ @(Ident|Int|Float) ]` //nolint
}

// noinspection GoStructTag
type ConfigCmd struct {
	Cmd struct{} `"config"` //nolint
}

// noinspection GoStructTag
type CrCmd struct {
	Cmd  struct{} `"cr"`     //nolint
	Rate *int     `[ @Int ]` //nolint
}

// noinspection GoStructTag
type CrcCmd struct {
	Cmd   struct{}     `"crc"`  //nolint
	OnOff *OnOrOffFlag `[ @@ ]` //nolint
}

// noinspection GoStructTag
type ExitCmd struct {
	Cmd struct{} `"exit"` //nolint
}

// noinspection GoStructTag
type FreqCmd struct {
	Cmd struct{} `"freq"`            //nolint
	MHz *float64 `[ (@Int|@Float) ]` //nolint
}

// noinspection GoStructTag
type HelpCmd struct {
	Cmd       struct{} `"help"`       //nolint
	HelpTopic string   `[ (@Ident) ]` //nolint
}

// noinspection GoStructTag
type LogLevelCmd struct {
	Cmd   struct{} `"log"`                                                                  //nolint
	Level string   `[@( "trace"|"debug"|"info"|"warn"|"error"|"off"|"T"|"D"|"I"|"W"|"E" )]` //nolint
}

// noinspection GoStructTag
type ModeCmd struct {
	Cmd  struct{} `"mode"` //nolint
	Mode int      `@Int`   //nolint
}

// noinspection GoStructTag
type PortsCmd struct {
	Cmd struct{} `"ports"` //nolint
}

// noinspection GoStructTag
type PowerCmd struct {
	Cmd struct{} `"power"`  //nolint
	Dbm *int     `[ @Int ]` //nolint
}

// noinspection GoStructTag
type PreambleCmd struct {
	Cmd     struct{} `"preamble"` //nolint
	Symbols *int     `[ @Int ]`   //nolint
}

// noinspection GoStructTag
type RegCmd struct {
	Cmd  struct{} `"reg"` //nolint
	Addr string   `@Int`  //nolint
}

// noinspection GoStructTag
type ReportCmd struct {
	Cmd     struct{} `"report"` //nolint
	Dst     int      `@Int`     //nolint
	Count   int      `@Int`     //nolint
	Payload string   `@String`  //nolint
	Ack     *AckFlag `[ @@ ]`   //nolint
}

// noinspection GoStructTag
type RssiCmd struct {
	Cmd struct{} `"rssi"` //nolint
}

// noinspection GoStructTag
type RxCmd struct {
	Cmd     struct{} `"rx"`                                      //nolint
	Timeout string   `[ @((Int|Float)["us"|"ms"|"s"|"m"|"h"]) ]` //nolint
}

// noinspection GoStructTag
type SendCmd struct {
	Cmd     struct{} `"send"`  //nolint
	Dst     int      `@Int`    //nolint
	Payload string   `@String` //nolint
	Ack     *AckFlag `[ @@ ]`  //nolint
}

// noinspection GoStructTag
type SfCmd struct {
	Cmd struct{} `"sf"`     //nolint
	SF  *int     `[ @Int ]` //nolint
}

// noinspection GoStructTag
type SleepCmd struct {
	Cmd struct{} `"sleep"` //nolint
}

// noinspection GoStructTag
type StatsCmd struct {
	Cmd struct{} `"stats"` //nolint
}

// noinspection GoStructTag
type StatusCmd struct {
	Cmd struct{} `"status"` //nolint
}

// noinspection GoStructTag
type SyncCmd struct {
	Cmd  struct{} `"sync"`   //nolint
	Word *string  `[ @Int ]` //nolint
}

// noinspection GoStructTag
type ToaCmd struct {
	Cmd    struct{} `"toa"` //nolint
	Length int      `@Int`  //nolint
}

var (
	commandParser = participle.MustBuild(&Command{})
)

func ParseBytes(b []byte, cmd *Command) error {
	return commandParser.ParseBytes(b, cmd)
}
