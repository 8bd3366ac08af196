// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mmap provides a memory-mapped view of a peripheral register window.
package mmap // import "github.com/pulp-bio/wulpus/internal/mmap"

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

var (
	errClosed = errors.New("mmap: closed")
)

// Handle is a memory-mapped region.
// Accesses are not synchronized.
type Handle struct {
	data []byte
	f    *os.File
}

// Open maps size bytes of the named device-memory file, starting at offset.
func Open(fname string, offset int64, size int) (*Handle, error) {
	f, err := os.OpenFile(fname, os.O_RDWR|os.O_SYNC, 0666)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not open %q: %w", fname, err)
	}

	data, err := unix.Mmap(
		int(f.Fd()), offset, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED,
	)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmap: could not mmap %q: %w", fname, err)
	}
	if len(data) != size {
		_ = unix.Munmap(data)
		_ = f.Close()
		return nil, fmt.Errorf("mmap: invalid mmap'd data: %d", len(data))
	}

	h := HandleFrom(data)
	h.f = f
	return h, nil
}

// HandleFrom wraps an already mapped region.
func HandleFrom(data []byte) *Handle {
	h := &Handle{data: data}
	runtime.SetFinalizer(h, (*Handle).Close)
	return h
}

// Close unmaps the region and closes the underlying file, if any.
func (h *Handle) Close() error {
	if h == nil {
		return os.ErrInvalid
	}

	if h.data == nil {
		return nil
	}
	data := h.data
	h.data = nil
	runtime.SetFinalizer(h, nil)

	err := unix.Munmap(data)
	if h.f != nil {
		errF := h.f.Close()
		h.f = nil
		if err == nil && errF != nil {
			err = fmt.Errorf("mmap: could not close device file: %w", errF)
		}
	}
	return err
}

// Len returns the length of the mapped region.
func (h *Handle) Len() int {
	return len(h.data)
}

// ReadAt implements the io.ReaderAt interface.
func (h *Handle) ReadAt(p []byte, off int64) (int, error) {
	if h == nil {
		return 0, os.ErrInvalid
	}

	if h.data == nil {
		return 0, errClosed
	}
	if off < 0 || int64(len(h.data)) < off {
		return 0, fmt.Errorf("mmap: invalid ReadAt offset %d", off)
	}
	n := copy(p, h.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements the io.WriterAt interface.
func (h *Handle) WriteAt(p []byte, off int64) (int, error) {
	if h == nil {
		return 0, os.ErrInvalid
	}

	if h.data == nil {
		return 0, errClosed
	}
	if off < 0 || int64(len(h.data)) < off {
		return 0, fmt.Errorf("mmap: invalid WriteAt offset %d", off)
	}
	n := copy(h.data[off:], p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

var (
	_ io.ReaderAt = (*Handle)(nil)
	_ io.WriterAt = (*Handle)(nil)
	_ io.Closer   = (*Handle)(nil)
)
