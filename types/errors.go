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


package types

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrValidation is returned when a caller supplied parameter is outside its supported range.
	// No register is touched when it is returned.
	ErrValidation = errors.New("invalid parameter")
	// ErrHardwareVerification is returned when a register does not read back as written.
	ErrHardwareVerification = errors.New("register verification failed")
	// ErrModeEntryTimeout is returned when the chip does not reach LoRa standby within the retry ceiling.
	ErrModeEntryTimeout = errors.New("mode entry timeout")
	// ErrChannelBusyTimeout is returned when listen-before-talk exhausted its attempts.
	ErrChannelBusyTimeout = errors.New("channel busy")
	// ErrCorruptFrame is returned for frames received with a CRC error or a truncated header.
	ErrCorruptFrame = errors.New("corrupt frame")
	// ErrUnacknowledged is returned when no acknowledgment arrived after the last retry.
	ErrUnacknowledged = errors.New("unacknowledged")
	// ErrUnsupportedDevice is returned when the version register matches no known chip.
	ErrUnsupportedDevice = errors.New("unsupported device")
	// ErrTimeout is returned when a status flag did not show up before the caller's deadline.
	ErrTimeout = errors.New("timeout")
)

// VerifyError records a register whose read-back value differs from the written one.
type VerifyError struct {
	Reg  byte
	Want byte
	Got  byte
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("%s: reg 0x%02x wrote 0x%02x read 0x%02x", ErrHardwareVerification, e.Reg, e.Want, e.Got)
}

func (e *VerifyError) Is(target error) bool {
	return target == ErrHardwareVerification
}
