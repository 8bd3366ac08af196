// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uss

import (
	"github.com/pulp-bio/wulpus/internal/regs"
)

// MaxTxRxConfigs is the maximum number of TX/RX configurations
// the acquisition loop rotates through.
const MaxTxRxConfigs = 16

// PLLOutput is the high-speed PLL output frequency, in MHz.
type PLLOutput uint16

const (
	PLLOut68MHz PLLOutput = 68 + iota
	PLLOut69MHz
	PLLOut70MHz
	PLLOut71MHz
	PLLOut72MHz
	PLLOut73MHz
	PLLOut74MHz
	PLLOut75MHz
	PLLOut76MHz
	PLLOut77MHz
	PLLOut78MHz
	PLLOut79MHz
	PLLOut80MHz
)

// XtalFreq is the frequency of the crystal driving the PLL.
type XtalFreq uint8

const (
	Xtal4MHz XtalFreq = 4
	Xtal8MHz XtalFreq = 8
)

// XtalType selects the kind of resonator connected to the USS oscillator.
type XtalType uint16

const (
	XtalCrystal XtalType = 0
	XtalCeramic XtalType = regs.XTALTYPE
)

// BiasImpedance is the input bias impedance of the receive path.
type BiasImpedance uint16

const (
	BiasImp500Ohm  BiasImpedance = 500
	BiasImp900Ohm  BiasImpedance = 900
	BiasImp1500Ohm BiasImpedance = 1500
	BiasImp2950Ohm BiasImpedance = 2950
)

// ChargePump selects the charge-pump mode of the front-end.
type ChargePump uint8

const (
	ChargePumpNormal ChargePump = iota
	ChargePumpAlwaysOn
)

// BiasDelay is the delay applied by the ultra-low-power bias generator.
type BiasDelay uint8

const (
	BiasNoDelay BiasDelay = iota
	BiasDelay100us
	BiasDelay200us
	BiasDelay300us
)

// DriveStrength is the output drive strength of the pulse generator.
type DriveStrength uint16

const (
	DriveNormal  DriveStrength = 0
	DriveMaximum DriveStrength = 0x0100
)

// Polarity selects the level of the first pulse.
type Polarity uint16

const (
	PolarityStartHigh Polarity = 0x0000
	PolarityStartLow  Polarity = 0x000F
)

// PauseState is the state of the pulser outputs between pulse trains.
type PauseState uint8

const (
	PauseLow PauseState = iota
	PauseHigh
	PauseHighZ
)

// TimeMarks are the six acquisition sequencer time marks, in sequencer
// clock ticks, written verbatim to SAPH_AATM_A..F.
type TimeMarks struct {
	StartPPG     uint16 // A: start pulse generator
	TurnOnADC    uint16 // B: turn on ADC
	StartPGABias uint16 // C: start PGA input biasing
	StartADC     uint16 // D: start ADC sampling
	RestartCapt  uint16 // E: restart capture
	CaptTimeout  uint16 // F: capture timeout
}

// Config is the full ultrasound acquisition configuration.
type Config struct {
	PLLOut      PLLOutput
	XtalFreq    XtalFreq
	XtalType    XtalType
	PLLOutputOn bool // buffered crystal output enabled

	BiasImp    BiasImpedance
	ChargePump ChargePump
	BiasDelay  BiasDelay

	Marks TimeMarks

	StartHvMuxRx uint16 // fast-timer ticks until the HV mux is switched to RX
	DcDcTurnOn   uint16 // slow-timer ticks until the HV DC-DC is enabled

	OverSampling uint16 // SDHS oversampling register value (0..4)
	SampleSize   uint16 // number of samples per acquisition
	RxGain       uint16 // PGA gain register value

	MeasPeriod uint16 // slow-timer ticks between acquisitions

	TxRxLen  uint16
	TxConfig [MaxTxRxConfigs]uint16
	RxConfig [MaxTxRxConfigs]uint16

	Drive         DriveStrength
	TransFreq     uint32 // Hz, not used by the pulse generator
	PulseFreq     uint32 // Hz
	DutyCycle     uint16 // percent
	NumPulses     uint16
	NumStopPulses uint16
	Polarity      Polarity
	Pause         PauseState
}

// DefaultConfig returns the configuration applied at power-up.
func DefaultConfig() Config {
	return Config{
		PLLOut:      PLLOut80MHz,
		XtalFreq:    Xtal8MHz,
		XtalType:    XtalCeramic,
		PLLOutputOn: false,

		BiasImp:    BiasImp2950Ohm,
		ChargePump: ChargePumpNormal,
		BiasDelay:  BiasNoDelay,

		Marks: TimeMarks{
			StartPPG:     2500,
			TurnOnADC:    25,
			StartPGABias: 25,
			StartADC:     2514,
			RestartCapt:  937,
			CaptTimeout:  3750,
		},

		StartHvMuxRx: 4000,
		DcDcTurnOn:   1000,

		OverSampling: 0,
		SampleSize:   400,
		RxGain:       36, // 9.0 dB

		MeasPeriod: 32768,

		TxRxLen: 0,

		Drive:         DriveNormal,
		TransFreq:     2250000,
		PulseFreq:     2250000,
		DutyCycle:     50,
		NumPulses:     2,
		NumStopPulses: 0,
		Polarity:      PolarityStartHigh,
		Pause:         PauseLow,
	}
}
