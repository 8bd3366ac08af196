// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sim is a discrete-event model of the MSP430 peripherals
// used by the WULPUS firmware.
//
// Virtual time only advances while the firmware sleeps: each call to
// Sleep jumps to the next hardware event and services the interrupts
// it raised.
package sim // import "github.com/pulp-bio/wulpus/internal/sim"

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pulp-bio/wulpus/internal/regs"
	"github.com/pulp-bio/wulpus/uss"
)

// Timings of the modelled hardware.
const (
	SlowTick     = 30518 * time.Nanosecond // 32768 Hz
	FastTick     = 125 * time.Nanosecond   // 8 MHz
	XtalStartup  = 80 * time.Microsecond
	PowerUpTime  = 20 * time.Microsecond
	CaptTick     = 800 * time.Nanosecond
	PulseTime    = 2 * time.Microsecond
	FaultDelay   = 10 * time.Microsecond
	TransferTime = 1200 * time.Microsecond
)

// ErrDeadlock is the panic value raised when the firmware sleeps while no
// hardware event can ever wake it up.
var ErrDeadlock = errors.New("sim: no pending hardware event")

// Fault is a hardware failure injected in the model.
type Fault uint8

const (
	FaultNone      Fault = iota
	FaultXtal            // crystal oscillator never starts
	FaultPowerUp         // power supervisor never reaches the ready state
	FaultPLLUnlock       // PLL unlocks during the acquisition
	FaultDebug           // debug interrupt aborts the acquisition
)

func (f Fault) String() string {
	switch f {
	case FaultNone:
		return "none"
	case FaultXtal:
		return "xtal"
	case FaultPowerUp:
		return "power-up"
	case FaultPLLUnlock:
		return "pll-unlock"
	case FaultDebug:
		return "debug"
	}
	return fmt.Sprintf("Fault(%d)", uint8(f))
}

const never = time.Duration(-1)

// MCU models the peripheral window of the probe microcontroller.
type MCU struct {
	mu  sync.Mutex
	mem []byte
	now time.Duration
	irq func(vec uss.Vector)

	pace  float64
	fault Fault
	lfxt  int // remaining LFXT oscillator faults

	timers [2]timer

	xtal struct {
		ready bool
		at    time.Duration
	}
	uups struct {
		ready bool
		at    time.Duration
	}
	seq struct {
		busy  bool
		pulse time.Duration
		done  time.Duration
		fault time.Duration
		kind  Fault // fault injected in the running acquisition
		count int
	}
	ris struct {
		saph  uint16
		uups  uint16
		hspll uint16
	}

	hv   hvmux
	link link

	deferred []func()
}

// Option configures an MCU.
type Option func(*MCU)

// WithPace paces virtual time against wall-clock time: 1 runs in real
// time, 10 runs ten times faster. Zero, the default, runs as fast as
// possible.
func WithPace(factor float64) Option {
	return func(m *MCU) {
		m.pace = factor
	}
}

// WithFault injects a persistent hardware fault.
func WithFault(f Fault) Option {
	return func(m *MCU) {
		m.fault = f
	}
}

// WithLFXTFaults makes the low-frequency crystal report n oscillator
// faults before running.
func WithLFXTFaults(n int) Option {
	return func(m *MCU) {
		m.lfxt = n
	}
}

// New returns a powered-up microcontroller model.
func New(opts ...Option) *MCU {
	m := &MCU{
		mem: make([]byte, regs.Size),
	}
	m.timers[0] = timer{base: regs.TA0_BASE, tick: SlowTick}
	m.timers[1] = timer{base: regs.TA1_BASE, tick: FastTick}
	m.xtal.at = never
	m.uups.at = never
	m.seq.pulse = never
	m.seq.done = never
	m.seq.fault = never
	m.link.at = never
	for _, opt := range opts {
		opt(m)
	}
	if m.lfxt > 0 {
		m.w16(regs.SFRIFG1, regs.OFIFG)
	}
	return m
}

// Connect sets the interrupt controller of the model.
func (m *MCU) Connect(irq func(vec uss.Vector)) {
	m.mu.Lock()
	m.irq = irq
	m.mu.Unlock()
}

// Now returns the current virtual time.
func (m *MCU) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// SetFault changes the injected hardware fault.
func (m *MCU) SetFault(f Fault) {
	m.mu.Lock()
	m.fault = f
	m.mu.Unlock()
}

// Acquisitions returns the number of sequencer triggers.
func (m *MCU) Acquisitions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq.count
}

// Pin reports the output level of a GPIO pin.
func (m *MCU) Pin(port int64, bit uint8) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mem[port]&bit != 0
}

// Peek returns a copy of n bytes of the window at off.
func (m *MCU) Peek(off int64, n int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, n)
	copy(out, m.mem[off:])
	return out
}

func (m *MCU) r16(off int64) uint16 {
	return binary.LittleEndian.Uint16(m.mem[off:])
}

func (m *MCU) w16(off int64, v uint16) {
	binary.LittleEndian.PutUint16(m.mem[off:], v)
}

func (m *MCU) r32(off int64) uint32 {
	return binary.LittleEndian.Uint32(m.mem[off:])
}

func (m *MCU) set16(off int64, mask uint16)   { m.w16(off, m.r16(off)|mask) }
func (m *MCU) clear16(off int64, mask uint16) { m.w16(off, m.r16(off)&^mask) }

// ReadAt implements io.ReaderAt.
func (m *MCU) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if off < 0 || off+int64(len(p)) > int64(len(m.mem)) {
		return 0, fmt.Errorf("sim: invalid read at 0x%x (len=%d)", off, len(p))
	}
	m.onRead(off)
	return copy(p, m.mem[off:]), nil
}

// WriteAt implements io.WriterAt.
func (m *MCU) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if off < 0 || off+int64(len(p)) > int64(len(m.mem)) {
		return 0, fmt.Errorf("sim: invalid write at 0x%x (len=%d)", off, len(p))
	}
	old := make([]byte, len(p))
	copy(old, m.mem[off:])
	n := copy(m.mem[off:], p)
	m.onWrite(off, old)
	return n, nil
}

func (m *MCU) onRead(off int64) {
	switch off {
	case regs.TA0_BASE + regs.OFS_TAxIV:
		m.w16(off, m.timers[0].iv(m))
	case regs.TA1_BASE + regs.OFS_TAxIV:
		m.w16(off, m.timers[1].iv(m))
	case regs.HSPLLIIDX:
		m.w16(off, m.hspllIIDX())
	case regs.UUPSIIDX:
		m.w16(off, m.uupsIIDX())
	case regs.SAPH_AIIDX:
		m.w16(off, m.saphIIDX())
	case regs.DMAIV:
		m.w16(off, m.dmaIV())
	case regs.P4IN:
		m.mem[off] &^= regs.BIT4
		if m.link.ready {
			m.mem[off] |= regs.BIT4
		}
	case regs.UCB1STATW, regs.UCA1STATW:
		m.clear16(off, regs.UCBUSY)
	}
}

func (m *MCU) onWrite(off int64, old []byte) {
	switch off {
	case regs.TA0_BASE + regs.OFS_TAxCTL:
		m.timers[0].ctl(m)
	case regs.TA1_BASE + regs.OFS_TAxCTL:
		m.timers[1].ctl(m)
	case regs.TA0_BASE + regs.OFS_TAxR:
		m.timers[0].phase = 0
	case regs.TA1_BASE + regs.OFS_TAxR:
		m.timers[1].phase = 0
	case regs.SFRIFG1:
		if m.r16(off)&regs.OFIFG == 0 && m.lfxt > 0 {
			m.lfxt--
			m.set16(off, regs.OFIFG)
		}
	case regs.HSPLLUSSXTLCTL:
		m.xtalCtl(old)
	case regs.UUPSCTL:
		m.uupsCtl(old)
	case regs.SAPH_AASQTRIG:
		m.asqTrig()
	case regs.SAPH_AICR:
		m.ris.saph &^= m.r16(off)
		m.w16(off, 0)
	case regs.UUPSICR:
		m.ris.uups &^= m.r16(off)
		m.w16(off, 0)
	case regs.HSPLLICR:
		m.ris.hspll &^= m.r16(off)
		m.w16(off, 0)
	case regs.P4OUT:
		if up := m.mem[off]&regs.BIT0 != 0; up != (old[0]&regs.BIT0 != 0) {
			m.dataReady(up)
		}
	case regs.P5OUT:
		if old[0]&regs.BIT7 != 0 && m.mem[off]&regs.BIT7 == 0 {
			m.hv.latch()
		}
	case regs.UCB1TXBUF:
		m.hv.shift(m.mem[off])
	}
}

// Sleep implements uss.Sleeper: it advances virtual time to the next
// hardware event and services the raised interrupts.
func (m *MCU) Sleep(mode uss.PowerMode) {
	m.mu.Lock()
	if _, ok := m.pending(); !ok {
		dt := m.next()
		if dt == never {
			m.mu.Unlock()
			panic(ErrDeadlock)
		}
		m.advance(dt)
		if m.pace > 0 {
			m.mu.Unlock()
			time.Sleep(time.Duration(float64(dt) / m.pace))
			m.mu.Lock()
		}
	}
	m.mu.Unlock()
	m.service()
}

const maxIRQs = 64

func (m *MCU) service() {
	for i := 0; i < maxIRQs; i++ {
		m.mu.Lock()
		vec, ok := m.pending()
		fns := m.deferred
		m.deferred = nil
		irq := m.irq
		m.mu.Unlock()

		for _, f := range fns {
			f()
		}
		if !ok {
			return
		}
		if irq == nil {
			panic(fmt.Errorf("sim: interrupt %d raised without interrupt controller", vec))
		}
		irq(vec)
	}
	panic(fmt.Errorf("sim: interrupt storm (more than %d interrupts)", maxIRQs))
}

// pending returns the highest priority pending interrupt vector.
func (m *MCU) pending() (uss.Vector, bool) {
	switch {
	case m.ris.hspll&m.r16(regs.HSPLLIMSC) != 0:
		return uss.VecHSPLL, true
	case m.ris.uups&m.r16(regs.UUPSIMSC) != 0:
		return uss.VecUUPS, true
	case m.ris.saph&m.r16(regs.SAPH_AIMSC) != 0:
		return uss.VecSAPH, true
	case m.timers[1].flagged(m, 0):
		return uss.VecTimerFastCC0, true
	case m.timers[1].flagged(m, 1) || m.timers[1].flagged(m, 2):
		return uss.VecTimerFastCC1, true
	case m.timers[0].flagged(m, 0):
		return uss.VecTimerSlowCC0, true
	case m.timers[0].flagged(m, 1) || m.timers[0].flagged(m, 2):
		return uss.VecTimerSlowCC1, true
	case m.dmaFlagged():
		return uss.VecDMA, true
	}
	return 0, false
}

// next returns the delay until the next hardware event.
func (m *MCU) next() time.Duration {
	dt := never
	min := func(at time.Duration) {
		if at == never {
			return
		}
		d := at - m.now
		if d < 0 {
			d = 0
		}
		if dt == never || d < dt {
			dt = d
		}
	}
	for i := range m.timers {
		t := &m.timers[i]
		for ch := 0; ch < 3; ch++ {
			if d, ok := t.match(m, ch); ok {
				min(m.now + d)
			}
		}
	}
	min(m.xtal.at)
	min(m.uups.at)
	min(m.seq.pulse)
	min(m.seq.done)
	min(m.seq.fault)
	min(m.link.at)
	return dt
}

func (m *MCU) advance(dt time.Duration) {
	for i := range m.timers {
		m.timers[i].advance(m, dt)
	}
	m.now += dt

	if m.xtal.at != never && m.xtal.at <= m.now {
		m.xtal.at = never
		m.xtal.ready = true
		m.set16(regs.HSPLLUSSXTLCTL, regs.OSCSTATE_1)
	}
	if m.uups.at != never && m.uups.at <= m.now {
		m.uups.at = never
		m.uups.ready = true
		m.set16(regs.UUPSCTL, regs.UPSTATE_3)
	}
	if m.seq.pulse != never && m.seq.pulse <= m.now {
		m.seq.pulse = never
		m.ris.saph |= regs.PNGDN
	}
	if m.seq.fault != never && m.seq.fault <= m.now {
		m.seq.fault = never
		m.injectFault()
	}
	if m.seq.done != never && m.seq.done <= m.now {
		m.seq.done = never
		m.seqDone()
	}
	if m.link.at != never && m.link.at <= m.now {
		m.link.at = never
		m.transfer()
	}
}

var (
	_ io.ReaderAt = (*MCU)(nil)
	_ io.WriterAt = (*MCU)(nil)
	_ uss.Sleeper = (*MCU)(nil)
)
