// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bus provides sticky-error accessors to the memory-mapped
// peripheral registers of the MSP430.
package bus // import "github.com/pulp-bio/wulpus/internal/bus"

import (
	"encoding/binary"
	"fmt"
	"io"
)

// RW is a peripheral register window.
type RW interface {
	io.ReaderAt
	io.WriterAt
}

// Bus reads and writes little-endian registers from a peripheral window.
// The first failed access is recorded and makes all subsequent accesses
// no-ops, until Reset is called.
type Bus struct {
	rw   RW
	err  error
	xbuf [4]byte
}

func New(rw RW) *Bus {
	return &Bus{rw: rw}
}

// Err returns the first error encountered while accessing the window.
func (b *Bus) Err() error { return b.err }

// Reset clears the sticky error.
func (b *Bus) Reset() { b.err = nil }

func (b *Bus) read(p []byte, off int64) {
	if b.err != nil {
		return
	}
	_, b.err = b.rw.ReadAt(p, off)
	if b.err != nil {
		b.err = fmt.Errorf("bus: could not read register 0x%04x: %w", off, b.err)
	}
}

func (b *Bus) write(p []byte, off int64) {
	if b.err != nil {
		return
	}
	_, b.err = b.rw.WriteAt(p, off)
	if b.err != nil {
		b.err = fmt.Errorf("bus: could not write register 0x%04x: %w", off, b.err)
	}
}

func (b *Bus) R8(off int64) uint8 {
	b.xbuf[0] = 0
	b.read(b.xbuf[:1], off)
	if b.err != nil {
		return 0
	}
	return b.xbuf[0]
}

func (b *Bus) W8(off int64, v uint8) {
	b.xbuf[0] = v
	b.write(b.xbuf[:1], off)
}

func (b *Bus) R16(off int64) uint16 {
	b.read(b.xbuf[:2], off)
	if b.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b.xbuf[:2])
}

func (b *Bus) W16(off int64, v uint16) {
	binary.LittleEndian.PutUint16(b.xbuf[:2], v)
	b.write(b.xbuf[:2], off)
}

// W32 writes a 20-bit DMA address register.
func (b *Bus) W32(off int64, v uint32) {
	binary.LittleEndian.PutUint32(b.xbuf[:4], v)
	b.write(b.xbuf[:4], off)
}

func (b *Bus) R32(off int64) uint32 {
	b.read(b.xbuf[:4], off)
	if b.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b.xbuf[:4])
}

// Set16 performs reg |= mask.
func (b *Bus) Set16(off int64, mask uint16) {
	v := b.R16(off)
	b.W16(off, v|mask)
}

// Clear16 performs reg &= ^mask.
func (b *Bus) Clear16(off int64, mask uint16) {
	v := b.R16(off)
	b.W16(off, v&^mask)
}

// Set8 performs reg |= mask.
func (b *Bus) Set8(off int64, mask uint8) {
	v := b.R8(off)
	b.W8(off, v|mask)
}

// Clear8 performs reg &= ^mask.
func (b *Bus) Clear8(off int64, mask uint8) {
	v := b.R8(off)
	b.W8(off, v&^mask)
}

// Fill writes n copies of v starting at off.
func (b *Bus) Fill(off int64, v byte, n int) {
	if b.err != nil {
		return
	}
	buf := make([]byte, n)
	if v != 0 {
		for i := range buf {
			buf[i] = v
		}
	}
	b.write(buf, off)
}

// Write copies p to the window at off.
func (b *Bus) Write(off int64, p []byte) {
	b.write(p, off)
}

// Read copies len(p) bytes from the window at off.
func (b *Bus) Read(off int64, p []byte) {
	b.read(p, off)
}

// Reg16 is a named 16-bit register.
type Reg16 struct {
	bus *Bus
	off int64
}

func (b *Bus) Reg16(off int64) Reg16 {
	return Reg16{bus: b, off: off}
}

func (r Reg16) Addr() int64       { return r.off }
func (r Reg16) R() uint16         { return r.bus.R16(r.off) }
func (r Reg16) W(v uint16)        { r.bus.W16(r.off, v) }
func (r Reg16) Set(mask uint16)   { r.bus.Set16(r.off, mask) }
func (r Reg16) Clear(mask uint16) { r.bus.Clear16(r.off, mask) }
