// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uss

import (
	"errors"
	"fmt"
	"io"

	"github.com/pulp-bio/wulpus/internal/regs"
)

// Vector is an interrupt vector number.
type Vector uint8

const (
	VecTimerSlowCC0 Vector = regs.VEC_TIMER_SLOW_CC0
	VecTimerSlowCC1 Vector = regs.VEC_TIMER_SLOW_CC1
	VecTimerFastCC0 Vector = regs.VEC_TIMER_FAST_CC0
	VecTimerFastCC1 Vector = regs.VEC_TIMER_FAST_CC1
	VecHSPLL        Vector = regs.VEC_HSPLL
	VecUUPS         Vector = regs.VEC_UUPS
	VecSAPH         Vector = regs.VEC_SAPH
	VecDMA          Vector = regs.VEC_DMA
)

// Interrupt services the interrupt vector vec and wakes up the control
// flow if it is waiting for an event.
func (dev *Device) Interrupt(vec Vector) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	dev.isr(vec)
	dev.wake.Broadcast()
}

func (dev *Device) isr(vec Vector) {
	switch vec {
	case VecTimerSlowCC0:
		dev.timerEvent(&dev.slow, 0, SlowCCR0)

	case VecTimerSlowCC1:
		switch dev.slow.iv() {
		case regs.TAIV__TACCR1:
			dev.timerEvent(&dev.slow, 1, SlowCCR1)
		case regs.TAIV__TACCR2:
			dev.timerEvent(&dev.slow, 2, SlowCCR2)
		}

	case VecTimerFastCC0:
		dev.timerEvent(&dev.fast, 0, FastCCR0)

	case VecTimerFastCC1:
		switch dev.fast.iv() {
		case regs.TAIV__TACCR1:
			dev.timerEvent(&dev.fast, 1, FastCCR1)
		case regs.TAIV__TACCR2:
			dev.timerEvent(&dev.fast, 2, FastCCR2)
		}

	case VecHSPLL:
		switch dev.bus.R16(regs.HSPLLIIDX) {
		case regs.IIDX_1:
			dev.raise(PLLUnlock)
		}

	case VecUUPS:
		switch dev.bus.R16(regs.UUPSIIDX) {
		case regs.IIDX_1:
			dev.raise(UUPSPowerUpTimeout)
		case regs.IIDX_3:
			dev.raise(UUPSDebug)
		}

	case VecSAPH:
		switch dev.bus.R16(regs.SAPH_AIIDX) {
		case regs.IIDX_1:
			dev.raise(SAPHDataError)
		case regs.IIDX_2:
			dev.raise(SAPHTimeMarkTimeout)
		case regs.IIDX_3:
			dev.raise(SeqAcqDone)
		case regs.IIDX_4:
			dev.raise(PulsesDone)
		}

	case VecDMA:
		switch dev.bus.R16(regs.DMAIV) {
		case regs.DMAIV__DMA1IFG:
			dev.bus.Clear16(regs.DMA1CTL, regs.DMAIFG)
			dev.evts.set(SPIRxDone)
		}

	default:
		dev.msg.Printf("spurious interrupt vector %d", vec)
	}
}

func (dev *Device) timerEvent(t *Timer, ch int, e Event) {
	dev.evts.set(e)
	t.ClearIntFlag(ch)
	if cb := dev.callback(e); cb != nil {
		cb()
	}
}

func (dev *Device) raise(e Event) {
	dev.evts.set(e)
	if cb := dev.callback(e); cb != nil {
		cb()
	}
}

// ServeIRQ reads interrupt vector numbers, one byte each, from r and
// services them until r is exhausted.
func (dev *Device) ServeIRQ(r io.Reader) error {
	var buf [1]byte
	for {
		_, err := io.ReadFull(r, buf[:])
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("uss: could not read interrupt vector: %w", err)
		}
		dev.Interrupt(Vector(buf[0]))
	}
}
