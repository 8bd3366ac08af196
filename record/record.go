// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package record stores acquisition frames received from the dongle.
//
// Frames are recorded in one of three formats, selected by the extension
// of the output file:
//   - ".root": a ROOT file holding a "frames" tree,
//   - ".slcio": an LCIO file holding one event per frame,
//   - anything else: a raw stream of CRC-protected records.
package record // import "github.com/pulp-bio/wulpus/record"

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/pulp-bio/wulpus/dongle"
)

// Format identifies a file format of recorded frames.
type Format int

const (
	Raw Format = iota
	ROOT
	LCIO
)

func (f Format) String() string {
	switch f {
	case Raw:
		return "raw"
	case ROOT:
		return "root"
	case LCIO:
		return "lcio"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// FormatOf returns the format associated with the file name fname.
func FormatOf(fname string) Format {
	switch strings.ToLower(filepath.Ext(fname)) {
	case ".root":
		return ROOT
	case ".slcio":
		return LCIO
	default:
		return Raw
	}
}

// Sink records frames.
type Sink interface {
	Write(f dongle.Frame) error
	Close() error
}

// Source reads back recorded frames.
// Read returns io.EOF when no more frames are available.
type Source interface {
	Read(f *dongle.Frame) error
	Close() error
}

// Create creates the file fname and returns a sink recording frames into it.
// The run number is stored when the format supports it.
func Create(fname string, run int32) (Sink, error) {
	switch FormatOf(fname) {
	case ROOT:
		return createROOT(fname)
	case LCIO:
		return createLCIO(fname, run)
	default:
		return createRaw(fname)
	}
}

// Open opens the recorded file fname.
func Open(fname string) (Source, error) {
	switch FormatOf(fname) {
	case ROOT:
		return openROOT(fname)
	case LCIO:
		return openLCIO(fname)
	default:
		return openRaw(fname)
	}
}

// Copy copies all frames from src to dst and returns the number of
// copied frames.
func Copy(dst Sink, src Source) (int, error) {
	var (
		n   int
		frm dongle.Frame
	)
	for {
		err := src.Read(&frm)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, fmt.Errorf("record: could not read frame %d: %w", n, err)
		}
		err = dst.Write(frm)
		if err != nil {
			return n, fmt.Errorf("record: could not write frame %d: %w", n, err)
		}
		n++
	}
}
