// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package probe

import (
	"github.com/pulp-bio/wulpus/internal/regs"
	"github.com/pulp-bio/wulpus/uss"
	"github.com/pulp-bio/wulpus/wire"
)

// initDMA configures DMA channel 0 to feed the SPI transmitter from the
// acquisition memory and DMA channel 1 to drain the SPI receiver.
func (p *Probe) initDMA() {
	b := p.bus
	b.W16(regs.DMACTL0, regs.DMA0TSEL__UCA1TXIFG|regs.DMA1TSEL__UCA1RXIFG)

	// the first byte is written to the transmitter by hand.
	b.W16(regs.DMA0CTL, regs.DMADT_4|regs.DMASRCINCR_3|regs.DMADSTINCR_0|regs.DMASRCBYTE|regs.DMADSTBYTE)
	b.W16(regs.DMA0SZ, wire.FrameLen-1)
	b.W32(regs.DMA0DA, regs.UCA1TXBUF)

	b.W16(regs.DMA1CTL, regs.DMADT_4|regs.DMASRCINCR_0|regs.DMADSTINCR_3|regs.DMASRCBYTE|regs.DMADSTBYTE)
	b.W16(regs.DMA1SZ, wire.FrameLen)
	b.W32(regs.DMA1SA, regs.UCA1RXBUF)
}

// initSPI configures eUSCI_A1 as a 4-wire SPI slave of the companion.
func (p *Probe) initSPI() {
	b := p.bus
	b.Set8(regs.P1SEL0, regs.BIT2|regs.BIT3)
	b.Set8(regs.P2SEL0, regs.BIT0|regs.BIT1)

	b.Set8(regs.P4DIR, pinDataReady)
	b.Clear8(regs.P4OUT, pinDataReady)

	b.W16(regs.UCA1CTLW0, regs.UCSWRST)
	b.Set16(regs.UCA1CTLW0, regs.UCMSB|regs.UCMODE_2|regs.UCSYNC|regs.UCSTEM)
	b.Clear16(regs.UCA1CTLW0, regs.UCSWRST)
}

// StartSPI arms both DMA channels for the next transfer.
func (p *Probe) StartSPI() {
	b := p.bus
	b.W8(regs.UCA1TXBUF, b.R8(regs.USS_RAM))

	b.Clear16(regs.DMA0CTL, regs.DMAEN)
	b.W32(regs.DMA0SA, regs.USS_RAM+1)
	b.Set16(regs.DMA0CTL, regs.DMAEN)

	b.Clear16(regs.DMA1CTL, regs.DMAEN)
	b.W32(regs.DMA1DA, regs.SPI_RX_BUF)
	b.Set16(regs.DMA1CTL, regs.DMAEN)
}

// EnableDMARxIRQ enables the end-of-transfer interrupt.
func (p *Probe) EnableDMARxIRQ() {
	p.bus.Set16(regs.DMA1CTL, regs.DMAIE)
}

func (p *Probe) disableDMARxIRQ() {
	p.bus.Clear16(regs.DMA1CTL, regs.DMAIE)
}

// WaitSPIDMARx raises the data-ready line and waits until the companion
// completed the transfer.
func (p *Probe) WaitSPIDMARx() {
	p.bus.Set8(regs.P4OUT, pinDataReady)
	p.dev.WaitEvent(uss.SPIRxDone, false, uss.LPM0)
	p.disableDMARxIRQ()
	p.dev.ClearEvent(uss.SPIRxDone)
	p.bus.Clear8(regs.P4OUT, pinDataReady)
}

// rx returns the content of the receive buffer.
func (p *Probe) rx() []byte {
	p.bus.Read(regs.SPI_RX_BUF, p.rxbuf)
	return p.rxbuf
}

// receiveConfigPacket clears the transmit buffer and runs one transfer.
func (p *Probe) receiveConfigPacket() []byte {
	p.bus.Fill(regs.USS_RAM, 0, wire.FrameLen)
	p.StartSPI()
	p.EnableDMARxIRQ()
	p.WaitSPIDMARx()
	return p.rx()
}
