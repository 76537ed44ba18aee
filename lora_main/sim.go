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
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/lbtlora/sx127x/logger"
	"github.com/lbtlora/sx127x/mac"
	"github.com/lbtlora/sx127x/prng"
	"github.com/lbtlora/sx127x/types"
)

const (
	// Simulated reports come every 1 s plus 1.5 to 6 s.
	reportIntervalMin = 2500 * time.Millisecond
	reportIntervalMax = 7000 * time.Millisecond

	reportField    = 3
	peerRxWindow   = time.Second
	simGatewayAddr = types.NodeAddr(1)
	simSensorAddr  = types.NodeAddr(6)
)

// runAcker receives on the peer, acknowledging what asks for it, until ctx is done.
func runAcker(ctx context.Context, peer *Device, log *logger.Component) error {
	rc := mac.NewReceiver(peer.Radio, mac.ReceiverOptions{Log: log})
	for ctx.Err() == nil {
		f, err := rc.Receive(peerRxWindow)
		switch {
		case err == nil:
			log.Infof("peer %d received %s payload=%q", peer.Radio.NodeAddress(), f, f.Payload)
		case errors.Is(err, types.ErrTimeout), errors.Is(err, types.ErrCorruptFrame):
		default:
			return errors.Wrap(err, "peer receive")
		}
	}
	return nil
}

// reportPayload is a field report in the "\!#<field>#<value>" form gateways expect.
func reportPayload(field int, value float64) []byte {
	return []byte(fmt.Sprintf("\\!#%d#%.1f", field, value))
}

// runReporter sends acknowledged temperature reports to dst until ctx is done.
func runReporter(ctx context.Context, node *Device, dst types.NodeAddr, opts mac.Options) error {
	if opts.Log == nil {
		opts.Log = logger.Named("sensor")
	}
	s := mac.NewSender(node.Radio, opts)
	log := opts.Log
	for ctx.Err() == nil {
		temp := 18 + 8*prng.NewUnitRandom()
		res, err := s.Send(dst, reportPayload(reportField, temp), true)
		switch {
		case err == nil:
			log.Infof("sensor %d: seq %d acked after %d transmission(s)", node.Radio.NodeAddress(), res.Frame.Seq, res.Transmissions)
		case errors.Is(err, types.ErrChannelBusyTimeout), errors.Is(err, types.ErrUnacknowledged):
			log.Warnf("sensor %d: %v", node.Radio.NodeAddress(), err)
		default:
			return errors.Wrap(err, "sensor send")
		}

		select {
		case <-ctx.Done():
		case <-time.After(prng.NewSendInterval(reportIntervalMin, reportIntervalMax)):
		}
	}
	return nil
}
