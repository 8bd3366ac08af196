// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Encoder writes configuration packets to an output stream.
type Encoder struct {
	w   io.Writer
	buf []byte
	err error
}

// NewEncoder returns a new Encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		w:   w,
		buf: make([]byte, 0, PackageLen),
	}
}

// Encode validates cfg and writes the corresponding configuration packet,
// zero-padded to PackageLen.
func (enc *Encoder) Encode(cfg Config) error {
	err := cfg.Validate()
	if err != nil {
		return err
	}

	osr, _ := OverSamplingReg(cfg.OverSampling)
	gain, _ := GainReg(cfg.RxGain)

	enc.buf = enc.buf[:0]
	enc.writeU8(SentinelConfig)
	enc.writeU16(uint16(cfg.DcDcTurnOn))
	enc.writeU16(uint16(cfg.MeasPeriod))
	enc.writeU32(uint32(cfg.TransFreq))
	enc.writeU32(uint32(cfg.PulseFreq))
	enc.writeU8(uint8(cfg.NumPulses))
	enc.writeU16(osr)
	enc.writeU16(uint16(cfg.Samples))
	enc.writeU8(gain)
	enc.writeU8(uint8(len(cfg.TxConfigs)))
	for i := range cfg.TxConfigs {
		enc.writeU16(cfg.TxConfigs[i])
		enc.writeU16(cfg.RxConfigs[i])
	}
	for _, v := range []uint16{
		cfg.StartHvMuxRx,
		cfg.StartPPG,
		cfg.TurnOnADC,
		cfg.StartPGABias,
		cfg.StartADC,
		cfg.RestartCapt,
		cfg.CaptTimeout,
	} {
		enc.writeU16(v)
	}
	if n := len(enc.buf); n < PackageLen {
		enc.buf = append(enc.buf, make([]byte, PackageLen-n)...)
	}

	return enc.flush()
}

// Restart writes a restart packet.
func (enc *Encoder) Restart() error {
	enc.buf = append(enc.buf[:0], RestartPacket()...)
	return enc.flush()
}

func (enc *Encoder) flush() error {
	if enc.err != nil {
		return enc.err
	}
	_, enc.err = enc.w.Write(enc.buf)
	if enc.err != nil {
		return fmt.Errorf("wire: could not write packet: %w", enc.err)
	}
	return nil
}

func (enc *Encoder) writeU8(v uint8) {
	enc.buf = append(enc.buf, v)
}

func (enc *Encoder) writeU16(v uint16) {
	enc.buf = binary.LittleEndian.AppendUint16(enc.buf, v)
}

func (enc *Encoder) writeU32(v uint32) {
	enc.buf = binary.LittleEndian.AppendUint32(enc.buf, v)
}

// Marshal returns the configuration packet of cfg.
func Marshal(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	err := NewEncoder(&buf).Encode(cfg)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
