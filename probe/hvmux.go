// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package probe

import (
	"github.com/pulp-bio/wulpus/internal/regs"
)

// initHvMux configures eUSCI_B1 as the SPI master of the HV multiplexer,
// clocked at 8 MHz from SMCLK.
func (p *Probe) initHvMux() {
	b := p.bus
	b.Set8(regs.P5SEL1, regs.BIT4|regs.BIT5)
	b.Set8(regs.P5DIR, pinHvLE)

	b.W16(regs.UCB1CTLW0, regs.UCSWRST)
	b.Set16(regs.UCB1CTLW0, regs.UCSSEL|regs.UCCKPH|regs.UCMSB|regs.UCMST|regs.UCMODE_2|regs.UCSYNC|regs.UCSTEM)
	b.W16(regs.UCB1BRW, 1)
	b.Clear16(regs.UCB1CTLW0, regs.UCSWRST)
}

func (p *Probe) hvMuxShift(w uint16) {
	b := p.bus
	b.Set8(regs.P5OUT, pinHvLE)
	for _, v := range []byte{byte(w >> 8), byte(w)} {
		b.W8(regs.UCB1TXBUF, v)
		for b.R16(regs.UCB1STATW)&regs.UCBUSY != 0 {
			if b.Err() != nil {
				return
			}
		}
	}
}

// HvMuxConfTx shifts the TX switch configuration w into the HV
// multiplexer and applies it.
func (p *Probe) HvMuxConfTx(w uint16) {
	p.hvMuxShift(w)
	p.HvMuxLatch()
}

// HvMuxConfRx shifts the RX switch configuration w into the HV
// multiplexer. It is applied by the next call to HvMuxLatch.
func (p *Probe) HvMuxConfRx(w uint16) {
	p.hvMuxShift(w)
}

// HvMuxLatch pulses the latch enable line low, transferring the shift
// register to the switches.
func (p *Probe) HvMuxLatch() {
	p.bus.Clear8(regs.P5OUT, pinHvLE)
	p.bus.Set8(regs.P5OUT, pinHvLE)
}
