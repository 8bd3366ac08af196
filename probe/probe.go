// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package probe implements the acquisition firmware of the WULPUS probe:
// power-up sequence, configuration sessions with the companion radio and
// the triggered acquisition loop.
package probe // import "github.com/pulp-bio/wulpus/probe"

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/pulp-bio/wulpus/internal/bus"
	"github.com/pulp-bio/wulpus/internal/mmap"
	"github.com/pulp-bio/wulpus/internal/regs"
	"github.com/pulp-bio/wulpus/uss"
	"github.com/pulp-bio/wulpus/wire"
)

const (
	delayLinkPoll = 327 // ~10 ms
)

type config struct {
	msg  *log.Logger
	opts []uss.Option
}

// Option configures a Probe.
type Option func(*config)

// WithLogger sets the logger of the probe and of its ultrasound subsystem.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithSleeper sets the low-power-mode hook of the ultrasound subsystem.
func WithSleeper(s uss.Sleeper) Option {
	return func(cfg *config) {
		cfg.opts = append(cfg.opts, uss.WithSleeper(s))
	}
}

// Stats holds the counters of the acquisition loop.
type Stats struct {
	Sessions int // configuration sessions
	Frames   int // acquired and transferred frames
	Failures int // failed acquisition triggers
	Restarts int // restart requests
	Rejected int // rejected configuration packets
}

// Probe is the acquisition firmware of the probe.
type Probe struct {
	msg *log.Logger
	dev *uss.Device
	bus *bus.Bus
	mem io.Closer

	rxbuf []byte

	frame uint16 // frame number
	txrx  int    // TX/RX configuration cursor

	stats Stats
}

// New returns the firmware driving the peripheral window rw.
func New(rw bus.RW, opts ...Option) *Probe {
	cfg := config{
		msg: log.New(os.Stdout, "probe: ", 0),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	devopts := append([]uss.Option{uss.WithLogger(cfg.msg)}, cfg.opts...)
	return &Probe{
		msg:   cfg.msg,
		dev:   uss.New(rw, devopts...),
		bus:   bus.New(rw),
		rxbuf: make([]byte, wire.FrameLen),
	}
}

// Open memory-maps the peripheral window from the named device-memory
// file and returns the firmware driving it.
func Open(devmem string, opts ...Option) (*Probe, error) {
	mem, err := mmap.Open(devmem, 0, regs.Size)
	if err != nil {
		return nil, fmt.Errorf("probe: could not map peripherals from %q: %w", devmem, err)
	}
	p := New(mem, opts...)
	p.mem = mem
	return p, nil
}

// Close releases the peripheral window.
func (p *Probe) Close() error {
	if p.mem == nil {
		return nil
	}
	err := p.mem.Close()
	p.mem = nil
	if err != nil {
		return fmt.Errorf("probe: could not unmap peripherals: %w", err)
	}
	return nil
}

// Device returns the ultrasound subsystem of the probe.
func (p *Probe) Device() *uss.Device { return p.dev }

// Stats returns the counters of the acquisition loop.
// It must be called from a frame callback or after Run returned.
func (p *Probe) Stats() Stats { return p.stats }

// Run powers up the probe and runs configuration sessions until ctx is
// done. The context is checked at session and frame boundaries.
func (p *Probe) Run(ctx context.Context) error {
	return p.dev.Exec(func() error {
		err := p.powerUp()
		if err != nil {
			return err
		}
		for {
			err = p.session(ctx)
			if err != nil {
				return err
			}
		}
	})
}

func (p *Probe) powerUp() error {
	dev := p.dev

	p.initDMA()
	p.initSPI()
	p.initHvMux()
	p.initGPIOs()
	p.initPowerSwitches()

	dev.SetConfig(uss.DefaultConfig())

	err := dev.TimerSlowInit()
	if err != nil {
		return fmt.Errorf("probe: could not initialize slow timer: %w", err)
	}
	err = dev.TimerFastInit()
	if err != nil {
		return fmt.Errorf("probe: could not initialize fast timer: %w", err)
	}

	p.bind()

	err = dev.Configure()
	if err != nil {
		p.msg.Printf("could not configure ultrasound subsystem: %+v", err)
	}
	dev.ConfTimerSlowSwEvents()
	dev.ConfTimerFastSwEvents()

	if err := p.bus.Err(); err != nil {
		return fmt.Errorf("probe: could not power up: %w", err)
	}
	return nil
}

func (p *Probe) bind() {
	dev := p.dev

	dev.Bind(uss.SlowCCR2, func() {
		p.EnableHvPcbDcDc()
		p.EnableOpAmp()
	})
	dev.Bind(uss.SlowCCR0, dev.ReloadTimerSlowSwEvents)
	dev.Bind(uss.FastCCR1, dev.TriggerAcqTimerFastEvent)
	dev.Bind(uss.FastCCR0, func() {
		p.HvMuxLatch()
		p.DisableHvDcDc()
		dev.TimerFastStop()
	})
	dev.Bind(uss.PLLUnlock, func() {
		err := dev.RecoverPLL()
		if err != nil {
			p.msg.Printf("could not recover from PLL unlock: %+v", err)
		}
	})
	dev.Bind(uss.SeqAcqDone, func() {
		p.bus.Set16(regs.UUPSCTL, regs.USSPWRDN)
		p.DisableHvPcbDcDc()
		p.DisableOpAmp()
		if !dev.IsSet(uss.PLLUnlock) {
			p.EnableDMARxIRQ()
			p.StartSPI()
		}
	})
}

// session waits for a configuration packet and runs the acquisition loop
// until a restart request or a link-down.
func (p *Probe) session(ctx context.Context) error {
	dev := p.dev
	p.frame = 0
	p.txrx = 0

	err := p.receiveConfig(ctx)
	if err != nil {
		return err
	}
	p.stats.Sessions++

	err = dev.Configure()
	if err != nil {
		p.msg.Printf("could not configure ultrasound subsystem: %+v", err)
		return nil
	}
	dev.ConfTimerSlowSwEvents()
	dev.ConfTimerFastSwEvents()

	p.EnableHvPcbSupply()
	p.EnableOpAmpSupply()
	p.SetLED(true)
	defer p.SetLED(false)

	return p.acquire(ctx)
}

// receiveConfig polls the link-ready line until a valid configuration
// packet is received.
func (p *Probe) receiveConfig(ctx context.Context) error {
	dev := p.dev
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := dev.TimerSlowDelay(delayLinkPoll, uss.LPM3)
		if err != nil {
			return fmt.Errorf("probe: could not wait for link: %w", err)
		}
		if !p.LinkReady() {
			continue
		}

		pkt := p.receiveConfigPacket()
		cfg := dev.Config()
		err = wire.Decode(pkt, &cfg)
		if err != nil {
			p.stats.Rejected++
			p.msg.Printf("could not decode configuration packet: %+v", err)
			continue
		}
		dev.SetConfig(cfg)
		return nil
	}
}

// acquire runs triggered acquisitions over the TX/RX rotation.
func (p *Probe) acquire(ctx context.Context) error {
	var (
		dev = p.dev
		cfg = dev.Config()
		n   = int(cfg.TxRxLen)
	)
	for {
		if err := ctx.Err(); err != nil {
			dev.PauseTimerSlowSwEvents()
			return err
		}
		if !p.LinkReady() {
			p.msg.Printf("link down after %d frames", p.frame)
			dev.PauseTimerSlowSwEvents()
			return nil
		}

		var hdr [wire.HeaderLen]byte
		wire.Header{Index: uint8(p.txrx), Frame: p.frame}.Put(hdr[:])
		p.bus.Write(regs.USS_RAM, hdr[:])

		if n > 0 {
			p.HvMuxConfTx(cfg.TxConfig[p.txrx])
			p.HvMuxConfRx(cfg.RxConfig[p.txrx])
		}
		if err := p.bus.Err(); err != nil {
			return fmt.Errorf("probe: could not prepare frame %d: %w", p.frame, err)
		}

		err := dev.Trigger()
		if err := dev.Err(); err != nil {
			return fmt.Errorf("probe: could not trigger frame %d: %w", p.frame, err)
		}
		if err != nil {
			p.stats.Failures++
			p.msg.Printf("could not acquire frame %d: %+v", p.frame, err)
			dev.WaitTimerSlowElapse()
			continue
		}

		p.WaitSPIDMARx()
		p.stats.Frames++
		if wire.IsRestart(p.rx()) {
			p.stats.Restarts++
			dev.PauseTimerSlowSwEvents()
			return nil
		}

		dev.WaitTimerSlowElapse()

		p.frame++
		p.txrx++
		if p.txrx >= n {
			p.txrx = 0
		}
	}
}

// Frame returns the current frame number and TX/RX configuration index.
func (p *Probe) Frame() (frame uint16, txrx int) {
	return p.frame, p.txrx
}
