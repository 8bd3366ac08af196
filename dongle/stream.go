// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dongle

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pulp-bio/wulpus/wire"
	"golang.org/x/xerrors"
)

const (
	// Marker starts each frame of the serial stream.
	Marker = "START\n"

	// FrameSamples is the number of RF samples carried by a frame.
	FrameSamples = (wire.FrameLen - wire.HeaderLen) / 2

	markerLen = 9 // marker, NUL padded
	frameOfs  = 3 // offset of the frame header after the marker
	dataOfs   = 7 // offset of the samples after the marker
)

// Frame is an acquisition frame received by the dongle.
type Frame struct {
	Index   uint8   // TX/RX configuration index
	Acq     uint16  // acquisition number
	Samples []int16 // RF samples
}

// Writer writes frames in the serial stream format of the dongle.
type Writer struct {
	w   io.Writer
	buf []byte
	err error
}

// NewWriter returns a Writer writing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:   w,
		buf: make([]byte, markerLen+wire.FrameLen),
	}
}

// WriteChunks writes the frame carried by the BLE packets chunks.
func (w *Writer) WriteChunks(chunks [][]byte) error {
	frame, err := Join(chunks)
	if err != nil {
		return err
	}
	return w.WriteFrame(frame)
}

// WriteFrame writes the marker then the raw SPI frame.
func (w *Writer) WriteFrame(frame []byte) error {
	if w.err != nil {
		return w.err
	}
	if len(frame) != wire.FrameLen {
		return xerrors.Errorf(
			"dongle: invalid frame length (got=%d, want=%d)",
			len(frame), wire.FrameLen,
		)
	}
	for i := range w.buf[:markerLen] {
		w.buf[i] = 0
	}
	copy(w.buf, Marker)
	copy(w.buf[markerLen:], frame)

	_, w.err = w.w.Write(w.buf)
	if w.err != nil {
		return xerrors.Errorf("dongle: could not write frame: %w", w.err)
	}
	return nil
}

// Reader reads frames from the serial stream of the dongle.
type Reader struct {
	r   *bufio.Reader
	buf []byte
	err error
}

// NewReader returns a Reader reading from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		r:   bufio.NewReaderSize(r, 2*(markerLen+wire.FrameLen)),
		buf: make([]byte, 2*FrameSamples+dataOfs),
	}
}

// Read reads the next frame. Bytes before the marker are skipped.
func (r *Reader) Read(f *Frame) error {
	if r.err != nil {
		return r.err
	}
	r.sync()
	if r.err != nil {
		return xerrors.Errorf("dongle: could not find start of frame: %w", r.err)
	}

	_, r.err = io.ReadFull(r.r, r.buf)
	if r.err != nil {
		return xerrors.Errorf("dongle: could not read frame: %w", r.err)
	}

	hdr, err := wire.ParseHeader(r.buf[frameOfs:])
	if err != nil {
		return xerrors.Errorf("dongle: could not decode frame header: %w", err)
	}

	f.Index = hdr.Index
	f.Acq = hdr.Frame
	if cap(f.Samples) < FrameSamples {
		f.Samples = make([]int16, FrameSamples)
	}
	f.Samples = f.Samples[:FrameSamples]
	raw := r.buf[dataOfs:]
	for i := range f.Samples {
		f.Samples[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return nil
}

func (r *Reader) sync() {
	for {
		line, err := r.r.ReadSlice('\n')
		switch err {
		case nil:
			if bytes.HasSuffix(line, []byte(Marker)) {
				return
			}
		case bufio.ErrBufferFull:
			// binary content without line feed.
		default:
			r.err = err
			return
		}
	}
}
