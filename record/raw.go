// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pulp-bio/wulpus/dongle"
	"github.com/pulp-bio/wulpus/internal/crc16"
	"github.com/pulp-bio/wulpus/wire"
)

const rawHdrLen = 6 // sentinel, index, acquisition number, number of samples

var ErrChecksum = errors.New("record: invalid checksum")

// Encoder writes frames as raw records to an output stream.
//
// A record is laid out as (little-endian):
//   - 0xff,
//   - the TX/RX configuration index (u8),
//   - the acquisition number (u16),
//   - the number of samples n (u16),
//   - n samples (i16),
//   - the CRC-16 checksum of all the previous bytes (u16).
type Encoder struct {
	w   io.Writer
	buf []byte
	err error
	crc crc16.Hash16
}

// NewEncoder returns a new Encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		w:   w,
		buf: make([]byte, 0, rawHdrLen+2*dongle.FrameSamples+crc16.Size),
		crc: crc16.New(nil),
	}
}

// Encode writes the frame f to the stream.
func (enc *Encoder) Encode(f *dongle.Frame) error {
	if enc.err != nil {
		return enc.err
	}
	if len(f.Samples) > 0xffff {
		return fmt.Errorf("record: too many samples (n=%d)", len(f.Samples))
	}

	enc.buf = enc.buf[:0]
	enc.buf = append(enc.buf, wire.SentinelFrame, f.Index)
	enc.buf = binary.LittleEndian.AppendUint16(enc.buf, f.Acq)
	enc.buf = binary.LittleEndian.AppendUint16(enc.buf, uint16(len(f.Samples)))
	for _, v := range f.Samples {
		enc.buf = binary.LittleEndian.AppendUint16(enc.buf, uint16(v))
	}

	enc.crc.Reset()
	_, _ = enc.crc.Write(enc.buf) // can not fail.
	enc.buf = binary.LittleEndian.AppendUint16(enc.buf, enc.crc.Sum16())

	_, enc.err = enc.w.Write(enc.buf)
	if enc.err != nil {
		return fmt.Errorf("record: could not write frame: %w", enc.err)
	}
	return nil
}

// Decoder reads raw records from an input stream.
type Decoder struct {
	r   io.Reader
	buf []byte
	err error
	crc crc16.Hash16
}

// NewDecoder returns a new Decoder that reads from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:   r,
		buf: make([]byte, rawHdrLen+2*dongle.FrameSamples+crc16.Size),
		crc: crc16.New(nil),
	}
}

// Decode reads the next frame from the stream.
// Decode returns io.EOF at the end of the stream.
func (dec *Decoder) Decode(f *dongle.Frame) error {
	if dec.err != nil {
		return dec.err
	}

	hdr := dec.buf[:rawHdrLen]
	_, dec.err = io.ReadFull(dec.r, hdr)
	if dec.err != nil {
		if errors.Is(dec.err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("record: could not read record header: %w", dec.err)
	}
	if hdr[0] != wire.SentinelFrame {
		dec.err = fmt.Errorf(
			"%w: record (got=0x%02x, want=0x%02x)",
			wire.ErrSentinel, hdr[0], wire.SentinelFrame,
		)
		return dec.err
	}
	n := int(binary.LittleEndian.Uint16(hdr[4:]))

	size := rawHdrLen + 2*n + crc16.Size
	if cap(dec.buf) < size {
		buf := make([]byte, size)
		copy(buf, hdr)
		dec.buf = buf
	}
	dec.buf = dec.buf[:size]

	_, dec.err = io.ReadFull(dec.r, dec.buf[rawHdrLen:])
	if dec.err != nil {
		if errors.Is(dec.err, io.EOF) {
			dec.err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("record: could not read record payload: %w", dec.err)
	}

	dec.crc.Reset()
	_, _ = dec.crc.Write(dec.buf[:size-crc16.Size]) // can not fail.
	if got, want := dec.crc.Sum16(), binary.LittleEndian.Uint16(dec.buf[size-crc16.Size:]); got != want {
		dec.err = fmt.Errorf("%w (got=0x%04x, want=0x%04x)", ErrChecksum, got, want)
		return dec.err
	}

	f.Index = dec.buf[1]
	f.Acq = binary.LittleEndian.Uint16(dec.buf[2:])
	if cap(f.Samples) < n {
		f.Samples = make([]int16, n)
	}
	f.Samples = f.Samples[:n]
	raw := dec.buf[rawHdrLen:]
	for i := range f.Samples {
		f.Samples[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return nil
}

type rawSink struct {
	f   *os.File
	w   *bufio.Writer
	enc *Encoder
}

func createRaw(fname string) (*rawSink, error) {
	f, err := os.Create(fname)
	if err != nil {
		return nil, fmt.Errorf("record: could not create raw file: %w", err)
	}
	w := bufio.NewWriter(f)
	return &rawSink{f: f, w: w, enc: NewEncoder(w)}, nil
}

func (sink *rawSink) Write(f dongle.Frame) error {
	return sink.enc.Encode(&f)
}

func (sink *rawSink) Close() error {
	if sink.f == nil {
		return nil
	}
	defer func() { sink.f = nil }()

	err := sink.w.Flush()
	if err != nil {
		_ = sink.f.Close()
		return fmt.Errorf("record: could not flush raw file: %w", err)
	}
	err = sink.f.Close()
	if err != nil {
		return fmt.Errorf("record: could not close raw file: %w", err)
	}
	return nil
}

type rawSource struct {
	f   *os.File
	dec *Decoder
}

func openRaw(fname string) (*rawSource, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("record: could not open raw file: %w", err)
	}
	return &rawSource{f: f, dec: NewDecoder(bufio.NewReader(f))}, nil
}

func (src *rawSource) Read(f *dongle.Frame) error {
	return src.dec.Decode(f)
}

func (src *rawSource) Close() error {
	return src.f.Close()
}
