// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
)

// Host-side limits of a configuration.
const (
	MinMeasPeriod = 655
	MaxMeasPeriod = 65535
	MaxFreq       = 5000000 // Hz
	MaxPulses     = 30
	MaxSamples    = 800
)

// OverSamplingRates are the supported ADC oversampling rates.
// The register value is the index in the table.
var OverSamplingRates = []int{10, 20, 40, 80, 160}

// Gains are the supported PGA gains, in dB.
// The register value is the index in the table plus gainRegOffset.
var Gains = []float64{
	-6.5, -5.5, -4.6, -4.1, -3.3, -2.3, -1.4, -0.8,
	0.1, 1.0, 1.9, 2.6, 3.5, 4.4, 5.2, 6.0, 6.8, 7.7,
	8.7, 9.0, 9.8, 10.7, 11.7, 12.2, 13, 13.9, 14.9,
	15.5, 16.3, 17.2, 18.2, 18.8, 19.6, 20.5, 21.5,
	22, 22.8, 23.6, 24.6, 25.0, 25.8, 26.7, 27.7,
	28.1, 28.9, 29.8, 30.8,
}

const gainRegOffset = 17

// Config describes an acquisition from the host point of view.
type Config struct {
	DcDcTurnOn   int     `json:"dcdc_turnon"`     // slow-timer ticks
	MeasPeriod   int     `json:"meas_period"`     // slow-timer ticks
	TransFreq    int     `json:"trans_freq"`      // Hz
	PulseFreq    int     `json:"pulse_freq"`      // Hz
	NumPulses    int     `json:"num_pulses"`      //
	OverSampling int     `json:"over_sampl_rate"` // 10, 20, 40, 80 or 160
	Samples      int     `json:"samples_size"`    //
	RxGain       float64 `json:"rx_gain"`         // dB

	TxConfigs []uint16 `json:"tx_configs"`
	RxConfigs []uint16 `json:"rx_configs"`

	StartHvMuxRx uint16 `json:"start_hvmuxrx"`
	StartPPG     uint16 `json:"start_ppg"`
	TurnOnADC    uint16 `json:"turnon_adc"`
	StartPGABias uint16 `json:"start_pgainbias"`
	StartADC     uint16 `json:"start_adcsampl"`
	RestartCapt  uint16 `json:"restart_capt"`
	CaptTimeout  uint16 `json:"capt_timeout"`

	NumAcqs int `json:"num_acqs"` // number of frames to record
}

// DefaultConfig returns the default host configuration.
func DefaultConfig() Config {
	return Config{
		DcDcTurnOn:   1000,
		MeasPeriod:   2 * MinMeasPeriod,
		TransFreq:    2250000,
		PulseFreq:    2250000,
		NumPulses:    2,
		OverSampling: OverSamplingRates[0],
		Samples:      800,
		RxGain:       Gains[26],
		TxConfigs:    []uint16{0},
		RxConfigs:    []uint16{0},
		StartHvMuxRx: 4000,
		StartPPG:     2500,
		TurnOnADC:    25,
		StartPGABias: 25,
		StartADC:     2514,
		RestartCapt:  937,
		CaptTimeout:  3750,
		NumAcqs:      1000,
	}
}

// OverSamplingReg returns the register value of the oversampling rate osr.
func OverSamplingReg(osr int) (uint16, error) {
	for i, v := range OverSamplingRates {
		if v == osr {
			return uint16(i), nil
		}
	}
	return 0, fmt.Errorf("wire: invalid oversampling rate %d (allowed: %v)", osr, OverSamplingRates)
}

// GainReg returns the PGA register value of the gain db.
func GainReg(db float64) (uint8, error) {
	for i, v := range Gains {
		if v == db {
			return uint8(i + gainRegOffset), nil
		}
	}
	return 0, fmt.Errorf("wire: invalid RX gain %v dB", db)
}

// GainDB returns the gain, in dB, of the PGA register value reg.
func GainDB(reg uint16) (float64, error) {
	i := int(reg) - gainRegOffset
	if i < 0 || i >= len(Gains) {
		return 0, fmt.Errorf("wire: invalid RX gain register %d", reg)
	}
	return Gains[i], nil
}

// Validate checks cfg against the limits of the probe.
func (cfg Config) Validate() error {
	check := func(name string, v, min, max int) error {
		if v < min || v > max {
			return fmt.Errorf("wire: %s equal to %d exceeds the allowed range [%d, %d]", name, v, min, max)
		}
		return nil
	}
	for _, v := range []struct {
		name     string
		v        int
		min, max int
	}{
		{"dcdc_turnon", cfg.DcDcTurnOn, 1, 65535},
		{"meas_period", cfg.MeasPeriod, MinMeasPeriod, MaxMeasPeriod},
		{"trans_freq", cfg.TransFreq, 0, MaxFreq},
		{"pulse_freq", cfg.PulseFreq, 0, MaxFreq},
		{"num_pulses", cfg.NumPulses, 0, MaxPulses},
		{"samples_size", cfg.Samples, 1, MaxSamples},
		{"tx_rx_conf_len", len(cfg.TxConfigs), 1, MaxTxRxConfigs},
	} {
		if err := check(v.name, v.v, v.min, v.max); err != nil {
			return err
		}
	}
	if len(cfg.RxConfigs) != len(cfg.TxConfigs) {
		return fmt.Errorf(
			"wire: length of rx_configs (%d) does not match length of tx_configs (%d)",
			len(cfg.RxConfigs), len(cfg.TxConfigs),
		)
	}
	if _, err := OverSamplingReg(cfg.OverSampling); err != nil {
		return err
	}
	if _, err := GainReg(cfg.RxGain); err != nil {
		return err
	}
	return nil
}
