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


package radio

// LoRa register map shared by the SX1272 and SX1276.
const (
	RegFifo               = 0x00
	RegOpMode             = 0x01
	RegFrfMsb             = 0x06
	RegFrfMid             = 0x07
	RegFrfLsb             = 0x08
	RegPaConfig           = 0x09
	RegPaRamp             = 0x0A
	RegOcp                = 0x0B
	RegLna                = 0x0C
	RegFifoAddrPtr        = 0x0D
	RegFifoTxBaseAddr     = 0x0E
	RegFifoRxBaseAddr     = 0x0F
	RegFifoRxCurrentAddr  = 0x10
	RegIrqFlagsMask       = 0x11
	RegIrqFlags           = 0x12
	RegRxNbBytes          = 0x13
	RegPktSnrValue        = 0x19
	RegPktRssiValue       = 0x1A
	RegRssiValue          = 0x1B
	RegModemConfig1       = 0x1D
	RegModemConfig2       = 0x1E
	RegSymbTimeoutLsb     = 0x1F
	RegPreambleMsb        = 0x20
	RegPreambleLsb        = 0x21
	RegPayloadLength      = 0x22
	RegMaxPayloadLength   = 0x23
	RegFifoRxByteAddr     = 0x25
	RegModemConfig3       = 0x26
	RegDetectOptimize     = 0x31
	RegDetectionThreshold = 0x37
	RegSyncWord           = 0x39
	RegDioMapping1        = 0x40
	RegVersion            = 0x42
	RegPaDacSX1272        = 0x5A
	RegPaDacSX1276        = 0x4D

	// FSK page, reachable from LoRa standby with shared register access.
	RegNodeAdrs      = 0x33
	RegBroadcastAdrs = 0x34
)

const (
	// writeFlag is bit 7 of the address byte; the chip reads when it is clear.
	writeFlag = 0x80
)

// RegOpMode values.
const (
	OpModeFSKSleep             = 0x00
	OpModeFSKStandby           = 0x01
	OpModeLoRaSleep            = 0x80
	OpModeLoRaStandby          = 0x81
	OpModeLoRaTX               = 0x83
	OpModeLoRaRXContinuous     = 0x85
	OpModeLoRaCAD              = 0x87
	OpModeLoRaStandbyFSKAccess = 0xC1

	OpModeLongRange    = 0x80
	OpModeAccessShared = 0x40
	OpModeMask         = 0x07
)

// RegIrqFlags bits, cleared by writing 1.
const (
	IrqRxTimeout       = 0x80
	IrqRxDone          = 0x40
	IrqPayloadCrcError = 0x20
	IrqValidHeader     = 0x10
	IrqTxDone          = 0x08
	IrqCadDone         = 0x04
	IrqFhssChangeChan  = 0x02
	IrqCadDetected     = 0x01
	IrqAll             = 0xFF
)

const (
	VersionSX1272 = 0x22
	VersionSX1276 = 0x12
)

const (
	lnaMaxGain           = 0x23
	paRampDefault        = 0x08
	paSelectBoost        = 0x80
	paMaxPower           = 0x70
	paDacHighPower       = 0x87
	paDacDefault         = 0x84
	ocpOn                = 0x20
	ocpMaxTrim           = 0x1B
	fifoTxBase           = 0x80
	fifoRxBase           = 0x00
	symbTimeoutHighSF    = 0x05
	symbTimeoutLowSF     = 0x08
	detectOptimizeMask   = 0x07
	detectOptimizeSF6    = 0x05
	detectOptimizeOther  = 0x03
	detectThresholdSF6   = 0x0C
	detectThresholdOther = 0x0A
	sfShift              = 4
	sfMask               = 0xF0
)
