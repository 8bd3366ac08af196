// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bus

import (
	"errors"
	"io"
	"testing"
)

type window []byte

func (w window) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(w)) {
		return 0, io.EOF
	}
	return copy(p, w[off:]), nil
}

func (w window) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(w)) {
		return 0, io.ErrShortWrite
	}
	return copy(w[off:], p), nil
}

func TestBus(t *testing.T) {
	w := make(window, 16)
	b := New(w)

	b.W16(0, 0x1234)
	if got, want := w[0], byte(0x34); got != want {
		t.Fatalf("invalid low byte: got=0x%x, want=0x%x", got, want)
	}
	if got, want := b.R16(0), uint16(0x1234); got != want {
		t.Fatalf("invalid r16: got=0x%x, want=0x%x", got, want)
	}

	b.Set16(0, 0x8000)
	b.Clear16(0, 0x0004)
	if got, want := b.R16(0), uint16(0x9230); got != want {
		t.Fatalf("invalid set/clear: got=0x%x, want=0x%x", got, want)
	}

	b.W8(4, 0xf0)
	b.Set8(4, 0x01)
	b.Clear8(4, 0x80)
	if got, want := b.R8(4), uint8(0x71); got != want {
		t.Fatalf("invalid r8: got=0x%x, want=0x%x", got, want)
	}

	b.W32(8, 0x4001)
	if got, want := b.R32(8), uint32(0x4001); got != want {
		t.Fatalf("invalid r32: got=0x%x, want=0x%x", got, want)
	}

	r := b.Reg16(2)
	r.W(0x00ff)
	r.Set(0x0100)
	r.Clear(0x0001)
	if got, want := r.R(), uint16(0x01fe); got != want {
		t.Fatalf("invalid reg16: got=0x%x, want=0x%x", got, want)
	}

	if err := b.Err(); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
}

func TestBusStickyError(t *testing.T) {
	w := make(window, 4)
	b := New(w)

	_ = b.R16(6)
	if err := b.Err(); !errors.Is(err, io.EOF) {
		t.Fatalf("invalid error: %+v", err)
	}

	b.W16(0, 0xffff)
	if got, want := w[0], byte(0); got != want {
		t.Fatalf("write went through a sticky error: got=0x%x", got)
	}

	if got, want := b.Err().Error(), "bus: could not read register 0x0006: EOF"; got != want {
		t.Fatalf("invalid error message:\ngot= %q\nwant=%q", got, want)
	}

	b.Reset()
	b.W16(0, 0xffff)
	if got, want := w[0], byte(0xff); got != want {
		t.Fatalf("invalid value after reset: got=0x%x, want=0x%x", got, want)
	}
}
