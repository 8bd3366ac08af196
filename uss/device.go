// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uss

import (
	"fmt"
	"io"
	"log"
	"math/bits"
	"os"
	"sync"

	"github.com/pulp-bio/wulpus/internal/bus"
	"github.com/pulp-bio/wulpus/internal/mmap"
	"github.com/pulp-bio/wulpus/internal/regs"
)

// Sleeper puts the processor in a low-power mode until the next interrupt
// has been serviced.
type Sleeper interface {
	Sleep(mode PowerMode)
}

// SleeperFunc adapts a function to the Sleeper interface.
type SleeperFunc func(mode PowerMode)

func (f SleeperFunc) Sleep(mode PowerMode) { f(mode) }

type config struct {
	msg     *log.Logger
	sleeper Sleeper
}

func newConfig() config {
	return config{
		msg: log.New(os.Stdout, "uss: ", 0),
	}
}

// Option configures a Device.
type Option func(*config)

// WithLogger sets the logger used by the device.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithSleeper sets the low-power-mode hook.
// Without a sleeper, waiting blocks until Interrupt is called from
// another goroutine.
func WithSleeper(s Sleeper) Option {
	return func(cfg *config) {
		cfg.sleeper = s
	}
}

// Device is the ultrasound subsystem of the MSP430.
type Device struct {
	msg *log.Logger
	cfg config

	mu   sync.Mutex // interrupts are disabled while held
	wake *sync.Cond
	mem  io.Closer

	bus  *bus.Bus
	slow Timer
	fast Timer

	evts flags
	cbs  [32]func()

	us struct {
		cur     Config
		updated bool
	}

	sleeps uint64
}

// New returns a device driving the peripheral window rw.
func New(rw bus.RW, opts ...Option) *Device {
	dev := &Device{
		cfg: newConfig(),
		bus: bus.New(rw),
	}
	for _, opt := range opts {
		opt(&dev.cfg)
	}
	dev.msg = dev.cfg.msg
	dev.wake = sync.NewCond(&dev.mu)
	dev.slow = newTimer("slow", dev.bus, regs.TA0_BASE)
	dev.fast = newTimer("fast", dev.bus, regs.TA1_BASE)
	dev.us.cur = DefaultConfig()
	return dev
}

// NewDevice memory-maps the peripheral window from the named
// device-memory file.
func NewDevice(devmem string, opts ...Option) (*Device, error) {
	mem, err := mmap.Open(devmem, 0, regs.Size)
	if err != nil {
		return nil, fmt.Errorf("uss: could not map peripherals from %q: %w", devmem, err)
	}

	dev := New(mem, opts...)
	dev.mem = mem
	return dev, nil
}

// Close releases the memory-mapped peripheral window, if any.
func (dev *Device) Close() error {
	if dev.mem == nil {
		return nil
	}
	err := dev.mem.Close()
	dev.mem = nil
	if err != nil {
		return fmt.Errorf("uss: could not unmap peripherals: %w", err)
	}
	return nil
}

// Exec runs f with interrupts disabled.
// Interrupts are serviced only while f waits for an event.
func (dev *Device) Exec(f func() error) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return f()
}

// Err returns the first peripheral access error.
func (dev *Device) Err() error {
	return dev.bus.Err()
}

// SlowTimer returns the ACLK timer.
func (dev *Device) SlowTimer() *Timer { return &dev.slow }

// FastTimer returns the SMCLK timer.
func (dev *Device) FastTimer() *Timer { return &dev.fast }

// Sleeps returns the number of times the control flow entered a low-power mode.
func (dev *Device) Sleeps() uint64 { return dev.sleeps }

// SetConfig stores cfg as the pending configuration.
func (dev *Device) SetConfig(cfg Config) {
	dev.us.cur = cfg
	dev.us.updated = true
}

// Config returns the current configuration.
func (dev *Device) Config() Config {
	return dev.us.cur
}

// Updated reports whether a configuration is pending.
func (dev *Device) Updated() bool {
	return dev.us.updated
}

// Bind registers fn as the callback run by the interrupt handler of the
// single event e. A nil fn unbinds the callback.
func (dev *Device) Bind(e Event, fn func()) {
	if bits.OnesCount32(uint32(e)) != 1 {
		panic(fmt.Errorf("uss: invalid callback event %v (0x%x)", e, uint32(e)))
	}
	dev.cbs[bits.TrailingZeros32(uint32(e))] = fn
}

func (dev *Device) callback(e Event) func() {
	return dev.cbs[bits.TrailingZeros32(uint32(e))]
}

// SetEvent marks the events of mask as occurred.
func (dev *Device) SetEvent(mask Event) { dev.evts.set(mask) }

// ClearEvent clears the events of mask.
func (dev *Device) ClearEvent(mask Event) { dev.evts.clear(mask) }

// IsSet reports whether any event of mask occurred.
func (dev *Device) IsSet(mask Event) bool { return dev.evts.isSet(mask) }

// Events returns the current event flags.
func (dev *Device) Events() Event { return dev.evts.load() }

// WaitEvent sleeps in the given low-power mode until any event of mask
// occurred. The events of mask are cleared afterwards if clear is true.
// There is no timeout.
func (dev *Device) WaitEvent(mask Event, clear bool, mode PowerMode) {
	for !dev.evts.isSet(mask) {
		dev.sleep(mode)
	}
	if clear {
		dev.evts.clear(mask)
	}
}

func (dev *Device) sleep(mode PowerMode) {
	dev.sleeps++
	if dev.cfg.sleeper == nil {
		dev.wake.Wait()
		return
	}
	dev.mu.Unlock()
	defer dev.mu.Lock()
	dev.cfg.sleeper.Sleep(mode)
}

// DumpRegisters writes the timer and front-end registers to w.
func (dev *Device) DumpRegisters(w io.Writer) error {
	b := dev.bus
	for _, t := range []*Timer{&dev.slow, &dev.fast} {
		fmt.Fprintf(w, "timer-%s:\n", t.name)
		fmt.Fprintf(w, "  ctl:    0x%04x\n", b.R16(t.base+regs.OFS_TAxCTL))
		fmt.Fprintf(w, "  r:      0x%04x\n", b.R16(t.base+regs.OFS_TAxR))
		for i := 0; i < 3; i++ {
			fmt.Fprintf(w, "  cctl%d:  0x%04x\n", i, b.R16(t.base+regs.OFS_TAxCCTL(i)))
			fmt.Fprintf(w, "  ccr%d:   0x%04x\n", i, b.R16(t.base+regs.OFS_TAxCCR(i)))
		}
	}

	for _, v := range []struct {
		name string
		off  int64
	}{
		{"uupsctl", regs.UUPSCTL},
		{"hspllctl", regs.HSPLLCTL},
		{"hspllxtlctl", regs.HSPLLUSSXTLCTL},
		{"saph-amcnf", regs.SAPH_AMCNF},
		{"saph-aoctl1", regs.SAPH_AOCTL1},
		{"saph-apgc", regs.SAPH_APGC},
		{"saph-apglper", regs.SAPH_APGLPER},
		{"saph-apghper", regs.SAPH_APGHPER},
		{"saph-apgctl", regs.SAPH_APGCTL},
		{"saph-aasctl0", regs.SAPH_AASCTL0},
		{"saph-aasctl1", regs.SAPH_AASCTL1},
		{"saph-aapol", regs.SAPH_AAPOL},
		{"saph-aatm-a", regs.SAPH_AATM_A},
		{"saph-aatm-f", regs.SAPH_AATM_F},
		{"sdhsctl1", regs.SDHSCTL1},
		{"sdhsctl2", regs.SDHSCTL2},
		{"sdhsctl3", regs.SDHSCTL3},
		{"sdhsctl6", regs.SDHSCTL6},
		{"sdhsctl7", regs.SDHSCTL7},
		{"sdhsdtcda", regs.SDHSDTCDA},
	} {
		fmt.Fprintf(w, "%-13s 0x%04x\n", v.name+":", b.R16(v.off))
	}

	if err := b.Err(); err != nil {
		return fmt.Errorf("uss: could not dump registers: %w", err)
	}
	return nil
}
