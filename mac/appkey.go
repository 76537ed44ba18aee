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


package mac

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"

	"github.com/lbtlora/sx127x/radio"
	"github.com/lbtlora/sx127x/types"
)

// AppKeyLength is the length of the shared application key.
const AppKeyLength = 4

// AppKey is the key a node puts in front of its payload so that a gateway can tell
// its frames from those of foreign networks. It is not a cryptographic key.
type AppKey []byte

// ParseAppKey parses a key given as hex, e.g. "05060708".
func ParseAppKey(s string) (AppKey, error) {
	if s == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrapf(types.ErrValidation, "app key %q: %v", s, err)
	}
	k := AppKey(b)
	return k, k.Validate()
}

func (k AppKey) Validate() error {
	if len(k) != 0 && len(k) != AppKeyLength {
		return errors.Wrapf(types.ErrValidation, "app key must be %d bytes, got %d", AppKeyLength, len(k))
	}
	return nil
}

// Seal prefixes payload with the key.
func (k AppKey) Seal(payload []byte) []byte {
	out := make([]byte, 0, len(k)+len(payload))
	return append(append(out, k...), payload...)
}

// Open checks the key of a frame carrying PacketFlagAppKey and returns the payload
// behind it. Frames without the flag are returned as they are.
func (k AppKey) Open(f *radio.Frame) ([]byte, bool) {
	if !f.Type.Has(types.PacketFlagAppKey) {
		return f.Payload, true
	}
	if len(f.Payload) < AppKeyLength {
		return nil, false
	}
	if len(k) > 0 && !bytes.Equal(f.Payload[:AppKeyLength], k) {
		return nil, false
	}
	return f.Payload[AppKeyLength:], true
}

func (k AppKey) String() string {
	if len(k) == 0 {
		return "none"
	}
	return fmt.Sprintf("%x", []byte(k))
}
