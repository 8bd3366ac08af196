// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sim

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/pulp-bio/wulpus/internal/regs"
)

func u16(p []byte) uint16 {
	var buf [2]byte
	copy(buf[:], p)
	return binary.LittleEndian.Uint16(buf[:])
}

// xtalCtl handles a write to the crystal oscillator control register.
func (m *MCU) xtalCtl(old []byte) {
	const off = regs.HSPLLUSSXTLCTL
	var (
		prev = u16(old)
		cur  = m.r16(off)
	)
	switch {
	case cur&regs.USSXTEN == 0:
		m.xtal.ready = false
		m.xtal.at = never
	case prev&regs.USSXTEN == 0 && !m.xtal.ready:
		if m.fault != FaultXtal {
			m.xtal.at = m.now + XtalStartup
		}
	}

	// the oscillator state is read-only.
	cur &^= regs.OSCSTATE_1
	if m.xtal.ready {
		cur |= regs.OSCSTATE_1
	}
	m.w16(off, cur)
}

// uupsCtl handles a write to the power supervisor control register.
func (m *MCU) uupsCtl(old []byte) {
	const (
		off    = regs.UUPSCTL
		status = regs.UPSTATE | regs.USS_BUSY
	)
	cur := m.r16(off)&^status | u16(old)&status

	switch {
	case cur&regs.USSSWRST != 0:
		m.powerDown()
		cur &^= status

	case cur&regs.USSPWRDN != 0:
		m.powerDown()
		cur &^= status

	case cur&regs.USSPWRUP != 0:
		if m.uups.ready || m.uups.at != never {
			break
		}
		switch {
		case m.fault == FaultPowerUp:
			m.ris.uups |= regs.PTMOUT
		case m.xtal.ready:
			m.uups.at = m.now + PowerUpTime
		}
	}

	// power-up and power-down requests are self-clearing.
	cur &^= regs.USSPWRUP | regs.USSPWRDN
	m.w16(off, cur)
}

func (m *MCU) powerDown() {
	m.uups.ready = false
	m.uups.at = never
	m.seq.busy = false
	m.seq.pulse = never
	m.seq.done = never
	m.seq.fault = never
}

// asqTrig handles a software trigger of the acquisition sequencer.
func (m *MCU) asqTrig() {
	const off = regs.SAPH_AASQTRIG
	trig := m.r16(off)&regs.ASQTRIG != 0
	m.w16(off, 0)
	if !trig || !m.uups.ready || m.seq.busy {
		return
	}

	m.seq.busy = true
	m.seq.count++
	m.set16(regs.UUPSCTL, regs.USS_BUSY)
	m.seq.pulse = m.now + PulseTime

	m.seq.kind = m.fault
	switch m.fault {
	case FaultPLLUnlock, FaultDebug:
		m.seq.fault = m.now + FaultDelay
	default:
		capt := time.Duration(m.r16(regs.SAPH_AATM_F))
		if capt == 0 {
			capt = 1
		}
		m.seq.done = m.now + capt*CaptTick
	}
}

func (m *MCU) injectFault() {
	m.seq.busy = false
	m.clear16(regs.UUPSCTL, regs.USS_BUSY)
	switch m.seq.kind {
	case FaultPLLUnlock:
		m.ris.hspll |= regs.PLLUNLOCK
	case FaultDebug:
		m.ris.uups |= regs.STPBYDB
	}
}

func (m *MCU) seqDone() {
	m.seq.busy = false
	m.clear16(regs.UUPSCTL, regs.USS_BUSY)

	var (
		n   = int(m.r16(regs.SDHSCTL2)) + 1
		beg = int64(regs.USS_RAM) + 2*int64(m.r16(regs.SDHSDTCDA))
		end = int64(regs.USS_RAM + regs.USS_RAM_LEN)
	)
	if max := int(end-beg) / 2; n > max {
		n = max
	}
	echo(m.mem[beg:beg+2*int64(n)], m.hv.latched, m.seq.count)

	m.ris.saph |= regs.SEQDN
}

// echo fills buf with n little-endian int16 samples of a synthetic
// ultrasound echo. The echo position depends on the selected receive
// elements.
func echo(buf []byte, rx uint16, seq int) {
	var (
		n     = len(buf) / 2
		pos   = float64(n) * (0.25 + 0.05*float64(rx%8))
		width = float64(n) / 40
		jit   = float64(seq%5) - 2
	)
	for i := 0; i < n; i++ {
		var (
			x   = (float64(i) - pos - jit) / width
			env = math.Exp(-0.5 * x * x)
			v   = 1500*env*math.Sin(2*math.Pi*float64(i)/6) + 8*math.Sin(float64(i+seq))
		)
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(int16(v)))
	}
}

func (m *MCU) saphIIDX() uint16 {
	v := m.ris.saph & m.r16(regs.SAPH_AIMSC)
	for i, bit := range []uint16{regs.DATAERR, regs.TMFTO, regs.SEQDN, regs.PNGDN} {
		if v&bit != 0 {
			m.ris.saph &^= bit
			return uint16(i + 1)
		}
	}
	return regs.IIDX_0
}

func (m *MCU) uupsIIDX() uint16 {
	v := m.ris.uups & m.r16(regs.UUPSIMSC)
	switch {
	case v&regs.PTMOUT != 0:
		m.ris.uups &^= regs.PTMOUT
		return regs.IIDX_1
	case v&regs.STPBYDB != 0:
		m.ris.uups &^= regs.STPBYDB
		return regs.IIDX_3
	}
	return regs.IIDX_0
}

func (m *MCU) hspllIIDX() uint16 {
	v := m.ris.hspll & m.r16(regs.HSPLLIMSC)
	if v&regs.PLLUNLOCK != 0 {
		m.ris.hspll &^= regs.PLLUNLOCK
		return regs.IIDX_1
	}
	return regs.IIDX_0
}

func (m *MCU) dmaFlagged() bool {
	const mask = regs.DMAIE | regs.DMAIFG
	return m.r16(regs.DMA1CTL)&mask == mask
}

func (m *MCU) dmaIV() uint16 {
	if !m.dmaFlagged() {
		return regs.DMAIV__NONE
	}
	return regs.DMAIV__DMA1IFG
}
