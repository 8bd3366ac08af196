// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package regs holds the register map of the MSP430FR5043 peripherals
// driven by the WULPUS acquisition firmware.
//
// Offsets are byte addresses inside the peripheral window.
package regs // import "github.com/pulp-bio/wulpus/internal/regs"

// Size is the size of the peripheral window.
const Size = 0x10000

// Timer_A.
const (
	TA0_BASE = 0x0340 // slow timer, ACLK (32768 Hz)
	TA1_BASE = 0x0380 // fast timer, SMCLK (8 MHz)

	OFS_TAxCTL   = 0x00
	OFS_TAxCCTL0 = 0x02
	OFS_TAxCCTL1 = 0x04
	OFS_TAxCCTL2 = 0x06
	OFS_TAxR     = 0x10
	OFS_TAxCCR0  = 0x12
	OFS_TAxCCR1  = 0x14
	OFS_TAxCCR2  = 0x16
	OFS_TAxEX0   = 0x20
	OFS_TAxIV    = 0x2E

	TASSEL__ACLK   = 0x0100
	TASSEL__SMCLK  = 0x0200
	ID__1          = 0x0000
	MC__STOP       = 0x0000
	MC__CONTINUOUS = 0x0020
	MC_3           = 0x0030
	TACLR          = 0x0004
	TAIDEX_0       = 0x0000

	CCIE  = 0x0010
	CCIFG = 0x0001

	TAIV__NONE   = 0x00
	TAIV__TACCR1 = 0x02
	TAIV__TACCR2 = 0x04
)

// OFS_TAxCCTL returns the offset of the capture/compare control register n.
func OFS_TAxCCTL(n int) int64 { return OFS_TAxCCTL0 + 2*int64(n) }

// OFS_TAxCCR returns the offset of the capture/compare register n.
func OFS_TAxCCR(n int) int64 { return OFS_TAxCCR0 + 2*int64(n) }

// Clock system and special function registers.
const (
	SFRIFG1  = 0x0102
	CSCTL0_H = 0x0161
	CSCTL5   = 0x016A

	CSKEY    = 0xA500
	OFIFG    = 0x0002
	LFXTOFFG = 0x0001
)

// Digital I/O.
const (
	P1IN   = 0x0200
	P2IN   = 0x0201
	P1OUT  = 0x0202
	P2OUT  = 0x0203
	P1DIR  = 0x0204
	P2DIR  = 0x0205
	P1SEL0 = 0x020A
	P2SEL0 = 0x020B
	P1SEL1 = 0x020C
	P2SEL1 = 0x020D

	P3IN  = 0x0220
	P4IN  = 0x0221
	P3OUT = 0x0222
	P4OUT = 0x0223
	P3DIR = 0x0224
	P4DIR = 0x0225

	P5IN   = 0x0240
	P6IN   = 0x0241
	P5OUT  = 0x0242
	P6OUT  = 0x0243
	P5DIR  = 0x0244
	P6DIR  = 0x0245
	P5SEL0 = 0x024A
	P6SEL0 = 0x024B
	P5SEL1 = 0x024C
	P6SEL1 = 0x024D

	BIT0 = 0x01
	BIT1 = 0x02
	BIT2 = 0x04
	BIT3 = 0x08
	BIT4 = 0x10
	BIT5 = 0x20
	BIT6 = 0x40
	BIT7 = 0x80
)

// DMA controller.
const (
	DMACTL0 = 0x0500
	DMAIV   = 0x050E

	DMA0CTL = 0x0510
	DMA0SA  = 0x0512
	DMA0DA  = 0x0516
	DMA0SZ  = 0x051A

	DMA1CTL = 0x0520
	DMA1SA  = 0x0522
	DMA1DA  = 0x0526
	DMA1SZ  = 0x052A

	DMA0TSEL__UCA1TXIFG = 17
	DMA1TSEL__UCA1RXIFG = 16 << 8

	DMADT_4      = 0x4000 // repeated single transfer
	DMADSTINCR_0 = 0x0000
	DMADSTINCR_3 = 0x0C00
	DMASRCINCR_0 = 0x0000
	DMASRCINCR_3 = 0x0300
	DMADSTBYTE   = 0x0080
	DMASRCBYTE   = 0x0040

	DMAREQ = 0x0001
	DMAIE  = 0x0004
	DMAIFG = 0x0008
	DMAEN  = 0x0010

	DMAIV__NONE    = 0x00
	DMAIV__DMA0IFG = 0x02
	DMAIV__DMA1IFG = 0x04
)

// eUSCI_A1: SPI slave towards the BLE companion.
// eUSCI_B1: SPI master towards the HV multiplexer.
const (
	UCA1CTLW0 = 0x05E0
	UCA1BRW   = 0x05E6
	UCA1STATW = 0x05EA
	UCA1RXBUF = 0x05EC
	UCA1TXBUF = 0x05EE

	UCB1CTLW0 = 0x0680
	UCB1BRW   = 0x0686
	UCB1STATW = 0x0688
	UCB1RXBUF = 0x068C
	UCB1TXBUF = 0x068E

	UCSWRST  = 0x0001
	UCSTEM   = 0x0002
	UCSSEL   = 0x0080 // SMCLK
	UCSYNC   = 0x0100
	UCMODE_2 = 0x0400 // 4-pin, STE active low
	UCMST    = 0x0800
	UCMSB    = 0x2000
	UCCKPH   = 0x8000

	UCBUSY = 0x0001
)

// SAPH: programmable pulse generator and acquisition sequencer.
const (
	SAPH_BASE = 0x0E00

	SAPH_AIIDX    = SAPH_BASE + 0x00
	SAPH_AIMSC    = SAPH_BASE + 0x04
	SAPH_AICR     = SAPH_BASE + 0x06
	SAPH_AKEY     = SAPH_BASE + 0x0E
	SAPH_AMCNF    = SAPH_BASE + 0x10
	SAPH_AOCTL1   = SAPH_BASE + 0x22
	SAPH_AOSEL    = SAPH_BASE + 0x24
	SAPH_AICTL0   = SAPH_BASE + 0x30
	SAPH_ABCTL    = SAPH_BASE + 0x34
	SAPH_APGC     = SAPH_BASE + 0x40
	SAPH_APGLPER  = SAPH_BASE + 0x42
	SAPH_APGHPER  = SAPH_BASE + 0x44
	SAPH_APGCTL   = SAPH_BASE + 0x46
	SAPH_AXPGCTL  = SAPH_BASE + 0x4A
	SAPH_AASCTL0  = SAPH_BASE + 0x50
	SAPH_AASCTL1  = SAPH_BASE + 0x52
	SAPH_AASQTRIG = SAPH_BASE + 0x54
	SAPH_AAPOL    = SAPH_BASE + 0x56
	SAPH_AAPLEV   = SAPH_BASE + 0x58
	SAPH_AAPHIZ   = SAPH_BASE + 0x5A
	SAPH_AATM_A   = SAPH_BASE + 0x5C
	SAPH_AATM_B   = SAPH_BASE + 0x5E
	SAPH_AATM_C   = SAPH_BASE + 0x60
	SAPH_AATM_D   = SAPH_BASE + 0x62
	SAPH_AATM_E   = SAPH_BASE + 0x64
	SAPH_AATM_F   = SAPH_BASE + 0x66
	SAPH_ATACTL   = SAPH_BASE + 0x68

	SAPH_KEY = 0xA55A
	UNLOCK   = 0x0001

	// AMCNF
	CPEO   = 0x0001
	LPBE   = 0x0002
	BIMP_0 = 0x0000
	BIMP_1 = 0x0100
	BIMP_2 = 0x0200
	BIMP_3 = 0x0300

	// AOSEL
	PCH0SEL_1 = 0x0001
	PCH1SEL_1 = 0x0004

	// APGCTL
	PPGEN   = 0x0001
	TRSEL_1 = 0x0010
	PGSEL_1 = 0x0100

	// AXPGCTL
	ETY_0  = 0x0000
	XMOD_0 = 0x0000

	// AASCTL0
	ASQCHSEL_0 = 0x0000
	ASQCHSEL_1 = 0x0001
	TRIGSEL_0  = 0x0000
	TRIGSEL_1  = 0x0100
	ASQTEN     = 0x8000

	// AASCTL1
	STDBY = 0x0001
	ESOFF = 0x0002
	CHOWN = 0x0004

	// AASQTRIG
	ASQTRIG = 0x0001

	// ABCTL
	ASQBSC    = 0x0001
	ASQBSC_1  = ASQBSC
	EXCBIAS_2 = 0x0008
	CH0EBSW   = 0x0100
	CH1EBSW   = 0x0200
	PGABSW    = 0x0400

	// AICTL0
	MUXSEL_0  = 0x0000
	MUXSEL_15 = 0x000F
	MUXCTL    = 0x0080
	DUMEN     = 0x0100

	// SAPH interrupt bits.
	DATAERR = 0x0001
	TMFTO   = 0x0002
	SEQDN   = 0x0004
	PNGDN   = 0x0008
)

// SDHS: high-speed sigma-delta ADC.
const (
	SDHS_BASE = 0x0E80

	SDHSCTL0  = SDHS_BASE + 0x00
	SDHSCTL1  = SDHS_BASE + 0x02
	SDHSCTL2  = SDHS_BASE + 0x04
	SDHSCTL3  = SDHS_BASE + 0x06
	SDHSCTL4  = SDHS_BASE + 0x08
	SDHSCTL5  = SDHS_BASE + 0x0A
	SDHSCTL6  = SDHS_BASE + 0x0C
	SDHSCTL7  = SDHS_BASE + 0x0E
	SDHSDTCDA = SDHS_BASE + 0x16
	SDHSIIDX  = SDHS_BASE + 0x20
	SDHSIMSC  = SDHS_BASE + 0x24
	SDHSICR   = SDHS_BASE + 0x26

	// SDHSCTL0
	TRGSRC    = 0x0001
	AUTOSSDIS = 0x0040
	DFMSEL_0  = 0x0000
	DALGN_0   = 0x0000
	DTCOFF_0  = 0x0000

	// SDHSCTL3
	TRIGEN = 0x0001

	// SDHSCTL4
	SDHSON = 0x0001

	// SDHS interrupt bits.
	OVF     = 0x0001
	ACQDONE = 0x0002
	SSTRG   = 0x0004
	DTRDY   = 0x0008
	WINHI   = 0x0010
	WINLO   = 0x0020
	ISTOP   = 0x0040
)

// UUPS: ultrasonic power supervisor.
const (
	UUPS_BASE = 0x0EC0

	UUPSCTL  = UUPS_BASE + 0x00
	UUPSIIDX = UUPS_BASE + 0x02
	UUPSIMSC = UUPS_BASE + 0x08
	UUPSICR  = UUPS_BASE + 0x0A

	USSPWRUP  = 0x0001
	USSPWRDN  = 0x0002
	USSSWRST  = 0x0004
	ASQEN     = 0x0008
	LBHDEL_0  = 0x0000
	LBHDEL_1  = 0x0100
	LBHDEL_2  = 0x0200
	LBHDEL_3  = 0x0300
	USS_BUSY  = 0x0400
	UPSTATE_0 = 0x0000 // off
	UPSTATE_3 = 0x3000 // ready
	UPSTATE   = 0x3000

	PTMOUT  = 0x0001
	STPBYDB = 0x0002
)

// HSPLL: high-speed PLL and crystal oscillator.
const (
	HSPLL_BASE = 0x0EE0

	HSPLLCTL       = HSPLL_BASE + 0x00
	HSPLLUSSXTLCTL = HSPLL_BASE + 0x02
	HSPLLIIDX      = HSPLL_BASE + 0x0E
	HSPLLIMSC      = HSPLL_BASE + 0x12
	HSPLLICR       = HSPLL_BASE + 0x14

	PLLINFREQ = 0x0200
	PLLM_OFS  = 10

	USSXTEN    = 0x0001
	XTOUTOFF   = 0x0002
	OSCSTATE_1 = 0x0080
	XTALTYPE   = 0x0200

	PLLUNLOCK = 0x0001
)

// Interrupt index values shared by the front-end IIDX registers.
const (
	IIDX_0 = 0x00
	IIDX_1 = 0x01
	IIDX_2 = 0x02
	IIDX_3 = 0x03
	IIDX_4 = 0x04
)

// Memory.
const (
	USS_RAM     = 0x4000 // acquisition result memory
	USS_RAM_LEN = 0x0800
	SPI_RX_BUF  = 0x2400 // receive buffer of the companion link
)

// Interrupt vectors.
const (
	VEC_TIMER_SLOW_CC0 = 1 + iota
	VEC_TIMER_SLOW_CC1
	VEC_TIMER_FAST_CC0
	VEC_TIMER_FAST_CC1
	VEC_HSPLL
	VEC_UUPS
	VEC_SAPH
	VEC_DMA
)
