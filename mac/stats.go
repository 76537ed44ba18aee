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

import "fmt"

// Stats counts channel access events.
type Stats struct {
	Sends           int // Send calls
	ListenAttempts  int
	CADCycles       int
	CADBusy         int // listen attempts that found the channel busy
	Backoffs        int
	Transmissions   int // frames put on air, retransmissions included
	Retransmissions int
	AcksReceived    int
	AcksSent        int
	BusyTimeouts    int
	Unacknowledged  int
	Received        int
	Duplicates      int
	Corrupt         int
}

func (s Stats) String() string {
	return fmt.Sprintf("sends=%d listen=%d cad=%d busy=%d backoff=%d tx=%d retx=%d ack_rx=%d ack_tx=%d busy_timeout=%d unacked=%d rx=%d dup=%d corrupt=%d",
		s.Sends, s.ListenAttempts, s.CADCycles, s.CADBusy, s.Backoffs, s.Transmissions, s.Retransmissions,
		s.AcksReceived, s.AcksSent, s.BusyTimeouts, s.Unacknowledged, s.Received, s.Duplicates, s.Corrupt)
}
