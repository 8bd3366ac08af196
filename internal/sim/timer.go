// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sim

import (
	"time"

	"github.com/pulp-bio/wulpus/internal/regs"
)

// timer models a 16-bit Timer_A in continuous mode.
type timer struct {
	base  int64
	tick  time.Duration
	phase time.Duration // time elapsed since the last counter increment
}

func (t *timer) running(m *MCU) bool {
	return m.r16(t.base+regs.OFS_TAxCTL)&regs.MC_3 != 0
}

func (t *timer) counter(m *MCU) uint16 {
	return m.r16(t.base + regs.OFS_TAxR)
}

func (t *timer) cctl(m *MCU, ch int) int64 {
	return t.base + regs.OFS_TAxCCTL(ch)
}

// ctl handles a write to the control register.
func (t *timer) ctl(m *MCU) {
	off := t.base + regs.OFS_TAxCTL
	if m.r16(off)&regs.TACLR == 0 {
		return
	}
	m.clear16(off, regs.TACLR)
	m.w16(t.base+regs.OFS_TAxR, 0)
	t.phase = 0
}

// distance returns the number of ticks until the counter reaches the
// compare register ch.
func (t *timer) distance(m *MCU, ch int) int {
	ccr := m.r16(t.base + regs.OFS_TAxCCR(ch))
	d := int(ccr - t.counter(m))
	if d == 0 {
		d = 1 << 16
	}
	return d
}

// match returns the time until the next match of the enabled channel ch.
func (t *timer) match(m *MCU, ch int) (time.Duration, bool) {
	if !t.running(m) {
		return 0, false
	}
	if m.r16(t.cctl(m, ch))&regs.CCIE == 0 {
		return 0, false
	}
	return time.Duration(t.distance(m, ch))*t.tick - t.phase, true
}

func (t *timer) advance(m *MCU, dt time.Duration) {
	if !t.running(m) {
		return
	}
	t.phase += dt
	n := int(t.phase / t.tick)
	t.phase %= t.tick
	if n == 0 {
		return
	}
	for ch := 0; ch < 3; ch++ {
		if n >= t.distance(m, ch) {
			m.set16(t.cctl(m, ch), regs.CCIFG)
		}
	}
	m.w16(t.base+regs.OFS_TAxR, t.counter(m)+uint16(n))
}

func (t *timer) flagged(m *MCU, ch int) bool {
	const mask = regs.CCIE | regs.CCIFG
	return m.r16(t.cctl(m, ch))&mask == mask
}

// iv returns and acknowledges the highest priority pending interrupt of
// the channels 1 and 2.
func (t *timer) iv(m *MCU) uint16 {
	switch {
	case t.flagged(m, 1):
		m.clear16(t.cctl(m, 1), regs.CCIFG)
		return regs.TAIV__TACCR1
	case t.flagged(m, 2):
		m.clear16(t.cctl(m, 2), regs.CCIFG)
		return regs.TAIV__TACCR2
	}
	return regs.TAIV__NONE
}
