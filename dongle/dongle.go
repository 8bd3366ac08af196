// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dongle implements the host side of the WULPUS link: the USB
// dongle relaying configuration packets to the probe and acquisition
// frames back to the host.
package dongle // import "github.com/pulp-bio/wulpus/dongle"

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pulp-bio/wulpus/wire"
	"github.com/tarm/serial"
)

const (
	Baud = 4000000

	defaultTimeout = 3 * time.Second
)

// Dongle is a connection to the USB dongle.
type Dongle struct {
	rw io.ReadWriter
	c  io.Closer

	mu  sync.Mutex // serializes packet writes
	enc *wire.Encoder
	r   *Reader
}

// Open opens the serial port name of the dongle (8N1, 4 Mbaud).
// A zero timeout selects the default read timeout.
func Open(name string, timeout time.Duration) (*Dongle, error) {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        Baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("dongle: could not open serial port %q: %w", name, err)
	}

	dev := New(port)
	dev.c = port
	return dev, nil
}

// New returns a dongle exchanging data over rw.
func New(rw io.ReadWriter) *Dongle {
	return &Dongle{
		rw:  rw,
		enc: wire.NewEncoder(rw),
		r:   NewReader(rw),
	}
}

// Close closes the serial port.
func (dev *Dongle) Close() error {
	if dev.c == nil {
		return nil
	}
	err := dev.c.Close()
	dev.c = nil
	if err != nil {
		return fmt.Errorf("dongle: could not close serial port: %w", err)
	}
	return nil
}

// SendConfig validates and sends the configuration packet cfg.
func (dev *Dongle) SendConfig(cfg wire.Config) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	err := dev.enc.Encode(cfg)
	if err != nil {
		return fmt.Errorf("dongle: could not send configuration: %w", err)
	}
	return nil
}

// SendRestart sends a restart packet: the probe stops acquiring and
// waits for a new configuration.
func (dev *Dongle) SendRestart() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	err := dev.enc.Restart()
	if err != nil {
		return fmt.Errorf("dongle: could not send restart: %w", err)
	}
	return nil
}

// ReadFrame reads the next acquisition frame.
func (dev *Dongle) ReadFrame(f *Frame) error {
	return dev.r.Read(f)
}
