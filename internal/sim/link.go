// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sim

import (
	"time"

	"github.com/pulp-bio/wulpus/internal/regs"
)

const maxLatches = 64

// hvmux models the HV multiplexer: two shift registers chained behind a
// single latch enable.
type hvmux struct {
	shreg   uint16
	latched uint16
	history []uint16
}

func (hv *hvmux) shift(b byte) {
	hv.shreg = hv.shreg<<8 | uint16(b)
}

// latch transfers the shift register to the switches.
func (hv *hvmux) latch() {
	hv.latched = hv.shreg
	hv.history = append(hv.history, hv.latched)
	if len(hv.history) > maxLatches {
		hv.history = hv.history[len(hv.history)-maxLatches:]
	}
}

// HvMux returns the current switch configuration of the HV multiplexer.
func (m *MCU) HvMux() uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hv.latched
}

// HvMuxHistory returns the most recent switch configurations latched in
// the HV multiplexer, oldest first.
func (m *MCU) HvMuxHistory() []uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint16(nil), m.hv.history...)
}

// link models the companion BLE microcontroller, master of the SPI link.
type link struct {
	ready     bool
	requested bool
	at        time.Duration
	inbox     [][]byte
	frames    []func(p []byte)
	transfers int
}

// SetLinkReady sets the state of the link-ready line driven by the
// companion.
func (m *MCU) SetLinkReady(ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.link.ready = ready
	switch {
	case !ready:
		m.link.at = never
	case m.link.requested && m.link.at == never:
		m.link.at = m.now + TransferTime
	}
}

// Send queues a packet for the next SPI transfer.
func (m *MCU) Send(p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.link.inbox = append(m.link.inbox, append([]byte(nil), p...))
}

// OnFrame registers f to receive every acquisition frame sent by the
// probe. f runs from the firmware control flow and must not block.
func (m *MCU) OnFrame(f func(p []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.link.frames = append(m.link.frames, f)
}

// Transfers returns the number of completed SPI transfers.
func (m *MCU) Transfers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.link.transfers
}

// dataReady handles an edge of the data-ready line.
func (m *MCU) dataReady(up bool) {
	m.link.requested = up
	switch {
	case !up:
		m.link.at = never
	case m.link.ready && m.link.at == never:
		m.link.at = m.now + TransferTime
	}
}

// transfer runs one full-duplex SPI transfer clocked by the companion.
func (m *MCU) transfer() {
	m.link.requested = false
	m.link.transfers++

	var (
		sa  = int64(m.r32(regs.DMA0SA))
		sz  = int64(m.r16(regs.DMA0SZ))
		out = make([]byte, 1+sz)
	)
	out[0] = m.mem[regs.UCA1TXBUF]
	copy(out[1:], m.mem[sa:])

	var in []byte
	if len(m.link.inbox) > 0 {
		in = m.link.inbox[0]
		m.link.inbox = m.link.inbox[1:]
	}

	if m.r16(regs.DMA1CTL)&regs.DMAEN != 0 {
		var (
			da = int64(m.r32(regs.DMA1DA))
			n  = int64(m.r16(regs.DMA1SZ))
			rx = m.mem[da : da+n]
		)
		for i := range rx {
			rx[i] = 0
		}
		copy(rx, in)
		m.clear16(regs.DMA1CTL, regs.DMAEN)
		m.set16(regs.DMA1CTL, regs.DMAIFG)
	}

	if out[0] != 0xFF {
		return
	}
	for _, f := range m.link.frames {
		f := f
		m.deferred = append(m.deferred, func() { f(out) })
	}
}
