// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mmap // import "github.com/pulp-bio/wulpus/internal/mmap"

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestHandle(t *testing.T) {
	t.Run("nil-handle", func(t *testing.T) {
		var h *Handle

		_, err := h.ReadAt(nil, 0)
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid read-at error: %+v", err)
		}

		_, err = h.WriteAt(nil, 0)
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid write-at error: %+v", err)
		}

		err = h.Close()
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid close error: %+v", err)
		}
	})
	t.Run("nil-data", func(t *testing.T) {
		var h Handle

		_, err := h.ReadAt(nil, 0)
		if !errors.Is(err, errClosed) {
			t.Fatalf("invalid read-at error: %+v", err)
		}

		_, err = h.WriteAt(nil, 0)
		if !errors.Is(err, errClosed) {
			t.Fatalf("invalid write-at error: %+v", err)
		}

		err = h.Close()
		if err != nil {
			t.Fatalf("error closing nil-data handle: %+v", err)
		}
	})
}

func TestHandleFrom(t *testing.T) {
	h := HandleFrom([]byte{0, 1, 2, 3})

	if got, want := h.Len(), 4; got != want {
		t.Fatalf("invalid len: got=%d, want=%d", got, want)
	}

	buf := make([]byte, 2)
	_, err := h.ReadAt(buf, 1)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if got, want := buf[1], byte(2); got != want {
		t.Fatalf("invalid value: got=%d, want=%d", got, want)
	}

	_, err = h.ReadAt(buf, 3)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("invalid short-read error: %+v", err)
	}

	_, err = h.WriteAt(nil, -1)
	if got, want := err.Error(), "mmap: invalid WriteAt offset -1"; got != want {
		t.Fatalf("invalid error: %+v", err)
	}

	_, err = h.ReadAt(nil, -1)
	if got, want := err.Error(), "mmap: invalid ReadAt offset -1"; got != want {
		t.Fatalf("invalid error: %+v", err)
	}
}

func TestOpen(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "devmem")
	err := os.WriteFile(fname, make([]byte, 4096), 0644)
	if err != nil {
		t.Fatalf("could not create device file: %+v", err)
	}

	h, err := Open(fname, 0, 4096)
	if err != nil {
		t.Fatalf("could not mmap device file: %+v", err)
	}

	_, err = h.WriteAt([]byte{0x5a, 0xa5}, 0x340)
	if err != nil {
		t.Fatalf("could not write register: %+v", err)
	}

	buf := make([]byte, 2)
	_, err = h.ReadAt(buf, 0x340)
	if err != nil {
		t.Fatalf("could not read register: %+v", err)
	}
	if got, want := buf[0], byte(0x5a); got != want {
		t.Fatalf("invalid register value: got=0x%x, want=0x%x", got, want)
	}

	err = h.Close()
	if err != nil {
		t.Fatalf("could not close handle: %+v", err)
	}

	raw, err := os.ReadFile(fname)
	if err != nil {
		t.Fatalf("could not read back device file: %+v", err)
	}
	if got, want := raw[0x341], byte(0xa5); got != want {
		t.Fatalf("invalid file content: got=0x%x, want=0x%x", got, want)
	}

	_, err = Open(filepath.Join(t.TempDir(), "missing"), 0, 4096)
	if err == nil {
		t.Fatalf("expected an error opening a missing device file")
	}
}
