// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package uss drives the ultrasound subsystem of the WULPUS probe:
// the slow and fast timers, the event flags raised by the interrupt
// handlers, the front-end configuration and the acquisition trigger.
//
// All Device operations, except Interrupt, must run from the control
// flow started by Device.Exec or from a bound callback.
package uss // import "github.com/pulp-bio/wulpus/uss"

import (
	"errors"
)

// Event is a bit set of hardware events recorded by the interrupt handlers.
type Event uint32

const (
	SlowCCR0 Event = 1 << 0
	SlowCCR1 Event = 1 << 1
	SlowCCR2 Event = 1 << 2

	FastCCR0 Event = 1 << 6
	FastCCR1 Event = 1 << 7
	FastCCR2 Event = 1 << 8

	PLLUnlock           Event = 1 << 10
	UUPSPowerUpTimeout  Event = 1 << 11
	UUPSDebug           Event = 1 << 12
	SAPHDataError       Event = 1 << 13
	SAPHTimeMarkTimeout Event = 1 << 14
	SeqAcqDone          Event = 1 << 15
	PulsesDone          Event = 1 << 16
	SPIRxDone           Event = 1 << 17

	// AllEvents is the mask cleared before each acquisition.
	AllEvents Event = 0xFFFF
)

var evtNames = []struct {
	e    Event
	name string
}{
	{SlowCCR0, "slow-ccr0"},
	{SlowCCR1, "slow-ccr1"},
	{SlowCCR2, "slow-ccr2"},
	{FastCCR0, "fast-ccr0"},
	{FastCCR1, "fast-ccr1"},
	{FastCCR2, "fast-ccr2"},
	{PLLUnlock, "pll-unlock"},
	{UUPSPowerUpTimeout, "uups-pwrup-timeout"},
	{UUPSDebug, "uups-debug"},
	{SAPHDataError, "saph-data-error"},
	{SAPHTimeMarkTimeout, "saph-tmf-timeout"},
	{SeqAcqDone, "seq-acq-done"},
	{PulsesDone, "pulses-done"},
	{SPIRxDone, "spi-rx-done"},
}

func (e Event) String() string {
	if e == 0 {
		return "none"
	}
	str := ""
	for _, v := range evtNames {
		if e&v.e == 0 {
			continue
		}
		if str != "" {
			str += "|"
		}
		str += v.name
	}
	return str
}

// PowerMode is the low-power mode entered while waiting for an event.
type PowerMode uint8

const (
	LPM0 PowerMode = 0 // CPU off, SMCLK running
	LPM3 PowerMode = 3 // only ACLK running
)

const (
	// AcqStartDelay is the number of fast-timer ticks between the
	// software trigger and the acquisition sequencer trigger.
	AcqStartDelay = 72

	delaySettle = 4    // slow ticks before polling the oscillator
	delayPoll   = 1    // slow ticks between two polls
	delayLFXT   = 3277 // ~100 ms

	maxPollRetries = 5

	// SDHS data transfer destination: 0x4005-0x4000 bytes, in words.
	dtcda = (0x4005 - 0x4000) >> 1
)

var (
	ErrNotUpdated     = errors.New("uss: configuration not updated")
	ErrBusy           = errors.New("uss: ultrasound subsystem busy")
	ErrXtalFreq       = errors.New("uss: invalid crystal frequency")
	ErrPulseFreq      = errors.New("uss: pulse period out of range")
	ErrXtalTimeout    = errors.New("uss: crystal oscillator start-up timeout")
	ErrPowerUpTimeout = errors.New("uss: power-up timeout")
	ErrPLLUnlock      = errors.New("uss: PLL unlocked during acquisition")
	ErrDebugAbort     = errors.New("uss: acquisition aborted by debug interrupt")
)
