// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"io"

	"github.com/pulp-bio/wulpus/uss"
	"golang.org/x/xerrors"
)

// decoder reads little-endian fields from a packet.
type decoder struct {
	p   []byte
	pos int
	err error
}

func (dec *decoder) read(n int) []byte {
	if dec.err != nil {
		return nil
	}
	if dec.pos+n > len(dec.p) {
		dec.err = io.ErrUnexpectedEOF
		return nil
	}
	v := dec.p[dec.pos : dec.pos+n]
	dec.pos += n
	return v
}

func (dec *decoder) readU8() uint8 {
	p := dec.read(1)
	if p == nil {
		return 0
	}
	return p[0]
}

func (dec *decoder) readU16() uint16 {
	p := dec.read(2)
	if p == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(p)
}

func (dec *decoder) readU32() uint32 {
	p := dec.read(4)
	if p == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(p)
}

// Decode decodes the configuration packet p into cfg.
//
// Fields not carried by the packet keep their value in cfg.
// cfg is left untouched when the packet is rejected.
func Decode(p []byte, cfg *uss.Config) error {
	if len(p) == 0 {
		return xerrors.Errorf("wire: could not read sentinel: %w", ErrShort)
	}
	if p[0] != SentinelConfig {
		return xerrors.Errorf(
			"wire: could not decode configuration (got=0x%02x, want=0x%02x): %w",
			p[0], SentinelConfig, ErrSentinel,
		)
	}

	var (
		dec = decoder{p: p, pos: 1}
		out = *cfg
	)

	out.DcDcTurnOn = dec.readU16()
	out.MeasPeriod = dec.readU16()
	out.TransFreq = dec.readU32()
	out.PulseFreq = dec.readU32()
	out.NumPulses = uint16(dec.readU8())
	out.OverSampling = dec.readU16()
	out.SampleSize = dec.readU16()
	out.RxGain = uint16(dec.readU8())
	n := dec.readU8()
	if dec.err != nil {
		return xerrors.Errorf("wire: could not decode configuration header: %w", ErrShort)
	}
	if int(n) > MaxTxRxConfigs {
		return xerrors.Errorf(
			"wire: could not decode configuration (len=%d, max=%d): %w",
			n, MaxTxRxConfigs, ErrTxRxLen,
		)
	}

	if want := confHdrLen + 4*int(n) + 2*nTimings; len(p) < want {
		return xerrors.Errorf(
			"wire: could not decode configuration (len=%d, want=%d): %w",
			len(p), want, ErrShort,
		)
	}

	out.TxRxLen = uint16(n)
	for i := 0; i < int(n); i++ {
		out.TxConfig[i] = dec.readU16()
		out.RxConfig[i] = dec.readU16()
	}

	out.StartHvMuxRx = dec.readU16()
	out.Marks.StartPPG = dec.readU16()
	out.Marks.TurnOnADC = dec.readU16()
	out.Marks.StartPGABias = dec.readU16()
	out.Marks.StartADC = dec.readU16()
	out.Marks.RestartCapt = dec.readU16()
	out.Marks.CaptTimeout = dec.readU16()
	if dec.err != nil {
		return xerrors.Errorf("wire: could not decode advanced timings: %w", ErrShort)
	}

	*cfg = out
	return nil
}
