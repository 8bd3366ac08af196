// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uss

import (
	"fmt"

	"github.com/pulp-bio/wulpus/internal/bus"
	"github.com/pulp-bio/wulpus/internal/regs"
)

// Timer is a 16-bit Timer_A instance.
type Timer struct {
	name string
	bus  *bus.Bus
	base int64
}

func newTimer(name string, b *bus.Bus, base int64) Timer {
	return Timer{name: name, bus: b, base: base}
}

func (t *Timer) setReg(ofs int64, val uint16, relative, halt bool) {
	if halt {
		t.Stop()
	}
	if relative {
		val += t.Counter()
	}
	t.bus.W16(t.base+ofs, val)
	if halt {
		t.StartContinuous()
	}
}

// SetCompare writes val, or counter+val if relative, to the compare
// register ch. The timer is halted during the update if halt is true.
func (t *Timer) SetCompare(ch int, val uint16, relative, halt bool) {
	t.setReg(regs.OFS_TAxCCR(ch), val, relative, halt)
}

// SetCounter writes the counter register.
func (t *Timer) SetCounter(v uint16) {
	t.setReg(regs.OFS_TAxR, v, false, false)
}

// Counter returns the current counter value.
func (t *Timer) Counter() uint16 {
	return t.bus.R16(t.base + regs.OFS_TAxR)
}

// Compare returns the value of the compare register ch.
func (t *Timer) Compare(ch int) uint16 {
	return t.bus.R16(t.base + regs.OFS_TAxCCR(ch))
}

func (t *Timer) Stop() {
	t.bus.Clear16(t.base+regs.OFS_TAxCTL, regs.MC_3)
}

func (t *Timer) StartContinuous() {
	t.bus.Set16(t.base+regs.OFS_TAxCTL, regs.MC__CONTINUOUS)
}

// Running reports whether the timer counts.
func (t *Timer) Running() bool {
	return t.bus.R16(t.base+regs.OFS_TAxCTL)&regs.MC_3 != 0
}

func (t *Timer) ClearIntFlag(ch int) {
	t.bus.Clear16(t.base+regs.OFS_TAxCCTL(ch), regs.CCIFG)
}

func (t *Timer) EnableInt(ch int) {
	t.bus.Set16(t.base+regs.OFS_TAxCCTL(ch), regs.CCIE)
}

func (t *Timer) DisableInt(ch int) {
	t.bus.Clear16(t.base+regs.OFS_TAxCCTL(ch), regs.CCIE)
}

// IntEnabled reports whether the compare interrupt ch is enabled.
func (t *Timer) IntEnabled(ch int) bool {
	return t.bus.R16(t.base+regs.OFS_TAxCCTL(ch))&regs.CCIE != 0
}

func (t *Timer) iv() uint16 {
	return t.bus.R16(t.base + regs.OFS_TAxIV)
}

// TimerSlowInit configures the slow timer in continuous mode on ACLK and
// waits until the low-frequency crystal runs without fault.
func (dev *Device) TimerSlowInit() error {
	var (
		b = dev.bus
		t = &dev.slow
	)
	b.Set16(t.base+regs.OFS_TAxCTL, regs.TACLR)
	b.W16(t.base+regs.OFS_TAxCTL, regs.TASSEL__ACLK|regs.ID__1|regs.MC__CONTINUOUS)
	b.W16(t.base+regs.OFS_TAxEX0, regs.TAIDEX_0)
	b.W16(t.base+regs.OFS_TAxCCTL1, regs.CCIE)

	b.W8(regs.CSCTL0_H, regs.CSKEY>>8)
	b.Clear16(regs.CSCTL5, regs.LFXTOFFG)
	b.Clear16(regs.SFRIFG1, regs.OFIFG)
	for b.R16(regs.SFRIFG1)&regs.OFIFG != 0 {
		b.Clear16(regs.CSCTL5, regs.LFXTOFFG)
		b.Clear16(regs.SFRIFG1, regs.OFIFG)
		err := dev.TimerSlowDelay(delayLFXT, LPM3)
		if err != nil {
			return fmt.Errorf("uss: could not wait for LFXT: %w", err)
		}
	}
	b.W8(regs.CSCTL0_H, 0)

	if err := b.Err(); err != nil {
		return fmt.Errorf("uss: could not initialize slow timer: %w", err)
	}
	return nil
}

// TimerFastInit configures the fast timer on SMCLK, halted.
func (dev *Device) TimerFastInit() error {
	var (
		b = dev.bus
		t = &dev.fast
	)
	b.Set16(t.base+regs.OFS_TAxCTL, regs.TACLR)
	b.W16(t.base+regs.OFS_TAxCTL, regs.TASSEL__SMCLK|regs.ID__1|regs.MC__STOP)
	b.W16(t.base+regs.OFS_TAxEX0, regs.TAIDEX_0)

	if err := b.Err(); err != nil {
		return fmt.Errorf("uss: could not initialize fast timer: %w", err)
	}
	return nil
}

// TimerSlowDelay blocks, in the given low-power mode, for delay slow-timer
// ticks using compare channel 1.
func (dev *Device) TimerSlowDelay(delay uint16, mode PowerMode) error {
	t := &dev.slow
	t.SetCompare(1, delay, true, true)
	t.ClearIntFlag(1)
	t.EnableInt(1)
	if err := dev.bus.Err(); err != nil {
		return fmt.Errorf("uss: could not arm slow delay: %w", err)
	}

	dev.WaitEvent(SlowCCR1, false, mode)

	t.DisableInt(1)
	t.ClearIntFlag(1)
	dev.evts.clear(SlowCCR1)

	if err := dev.bus.Err(); err != nil {
		return fmt.Errorf("uss: could not disarm slow delay: %w", err)
	}
	return nil
}

// TimerSlowStop halts the slow timer.
func (dev *Device) TimerSlowStop() { dev.slow.Stop() }

// TimerFastStop halts the fast timer.
func (dev *Device) TimerFastStop() { dev.fast.Stop() }
