// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uss

import (
	"github.com/pulp-bio/wulpus/internal/regs"
)

// ConfTimerSlowSwEvents arms the periodic measurement event (CCR0) and the
// DC-DC turn-on event (CCR2) relative to the current counter.
func (dev *Device) ConfTimerSlowSwEvents() {
	var (
		t   = &dev.slow
		cfg = &dev.us.cur
	)
	t.Stop()
	t.SetCompare(0, cfg.MeasPeriod, true, false)
	t.SetCompare(2, cfg.DcDcTurnOn, true, false)
	t.ClearIntFlag(0)
	t.ClearIntFlag(2)
	t.EnableInt(0)
	t.EnableInt(2)
	t.StartContinuous()
}

// ReloadTimerSlowSwEvents re-arms the periodic events for the next period.
func (dev *Device) ReloadTimerSlowSwEvents() {
	var (
		t   = &dev.slow
		cfg = &dev.us.cur
		cnt = t.Counter()
	)
	dev.bus.W16(t.base+regs.OFS_TAxCCR0, cnt+cfg.MeasPeriod)
	dev.bus.W16(t.base+regs.OFS_TAxCCR2, cnt+cfg.DcDcTurnOn)
}

// PauseTimerSlowSwEvents disables the periodic events, leaving only the
// delay channel available.
func (dev *Device) PauseTimerSlowSwEvents() {
	t := &dev.slow
	t.Stop()
	t.ClearIntFlag(0)
	t.ClearIntFlag(2)
	t.DisableInt(0)
	t.DisableInt(2)
	t.StartContinuous()
}

// ConfTimerFastSwEvents programs the acquisition start delay (CCR1) and the
// HV mux RX switching time (CCR0) of the fast timer.
func (dev *Device) ConfTimerFastSwEvents() {
	t := &dev.fast
	t.Stop()
	t.SetCompare(1, AcqStartDelay, false, false)
	t.SetCompare(0, dev.us.cur.StartHvMuxRx, false, false)
	t.ClearIntFlag(0)
	t.ClearIntFlag(1)
	t.EnableInt(1)
}

// StartTimerFast starts the fast timer from zero with only the acquisition
// start event enabled.
func (dev *Device) StartTimerFast() {
	t := &dev.fast
	t.ClearIntFlag(0)
	t.ClearIntFlag(1)
	t.EnableInt(1)
	t.DisableInt(0)
	t.SetCounter(0)
	t.StartContinuous()
}

// TriggerAcqTimerFastEvent restarts the fast timer with only the HV mux
// event enabled and triggers the acquisition sequencer.
func (dev *Device) TriggerAcqTimerFastEvent() {
	t := &dev.fast
	t.Stop()
	t.DisableInt(1)
	t.ClearIntFlag(1)
	t.ClearIntFlag(0)
	t.EnableInt(0)
	t.SetCounter(0)
	t.StartContinuous()

	dev.bus.W16(regs.SAPH_AASQTRIG, regs.ASQTRIG)
}

// WaitTimerSlowElapse waits for the end of the current measurement period.
func (dev *Device) WaitTimerSlowElapse() {
	dev.WaitEvent(SlowCCR0, true, LPM3)
}
