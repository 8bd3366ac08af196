// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package probe

import (
	"github.com/pulp-bio/wulpus/internal/regs"
)

// GPIO assignments of the probe board.
const (
	pinLED       = regs.BIT5 // P1.5
	pinRxPwr     = regs.BIT6 // P1.6, op-amp supply
	pinHvPwr     = regs.BIT2 // P2.2, HV PCB supply
	pinDataReady = regs.BIT0 // P4.0, output towards the companion
	pinLinkReady = regs.BIT4 // P4.4, input from the companion
	pinHvLE      = regs.BIT7 // P5.7, HV mux latch enable
	pinRxEn      = regs.BIT0 // P6.0, op-amp enable
	pinSwEn      = regs.BIT4 // P6.4, HV PCB DC-DC switch
	pinHvEn      = regs.BIT5 // P6.5, HV DC-DC
)

func (p *Probe) initGPIOs() {
	b := p.bus
	b.Clear8(regs.P4DIR, pinLinkReady)

	b.Set8(regs.P1DIR, pinLED)
	b.Clear8(regs.P1OUT, pinLED)
}

func (p *Probe) initPowerSwitches() {
	b := p.bus
	b.Set8(regs.P1DIR, pinRxPwr)
	b.Set8(regs.P2DIR, pinHvPwr)
	b.Set8(regs.P6DIR, pinRxEn|pinSwEn|pinHvEn)

	p.DisableOpAmpSupply()
	p.DisableOpAmp()
	p.DisableHvPcbSupply()
	p.DisableHvPcbDcDc()
}

func (p *Probe) EnableOpAmpSupply()  { p.bus.Set8(regs.P1OUT, pinRxPwr) }
func (p *Probe) DisableOpAmpSupply() { p.bus.Clear8(regs.P1OUT, pinRxPwr) }

func (p *Probe) EnableOpAmp()  { p.bus.Set8(regs.P6OUT, pinRxEn) }
func (p *Probe) DisableOpAmp() { p.bus.Clear8(regs.P6OUT, pinRxEn) }

func (p *Probe) EnableHvPcbSupply()  { p.bus.Set8(regs.P2OUT, pinHvPwr) }
func (p *Probe) DisableHvPcbSupply() { p.bus.Clear8(regs.P2OUT, pinHvPwr) }

// EnableHvPcbDcDc enables both DC-DC converters of the HV PCB.
func (p *Probe) EnableHvPcbDcDc() { p.bus.Set8(regs.P6OUT, pinSwEn|pinHvEn) }

// DisableHvPcbDcDc disables both DC-DC converters of the HV PCB.
func (p *Probe) DisableHvPcbDcDc() { p.bus.Clear8(regs.P6OUT, pinSwEn|pinHvEn) }

// DisableHvDcDc disables only the high-voltage DC-DC converter.
func (p *Probe) DisableHvDcDc() { p.bus.Clear8(regs.P6OUT, pinHvEn) }

// LinkReady reports whether the companion is ready to exchange data.
func (p *Probe) LinkReady() bool {
	return p.bus.R8(regs.P4IN)&pinLinkReady != 0
}

// SetLED switches the status LED.
func (p *Probe) SetLED(on bool) {
	if on {
		p.bus.Set8(regs.P1OUT, pinLED)
		return
	}
	p.bus.Clear8(regs.P1OUT, pinLED)
}
