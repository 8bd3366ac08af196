// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wire implements the packets exchanged between the host, the
// companion radio and the probe: configuration packets, restart packets
// and measurement frames.
package wire // import "github.com/pulp-bio/wulpus/wire"

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pulp-bio/wulpus/uss"
)

const (
	SentinelConfig  = 0xFA // first byte of a configuration packet
	SentinelRestart = 0xFB // first byte of a restart packet
	SentinelFrame   = 0xFF // first byte of a measurement frame

	PackageLen = 68  // length of a host packet
	FrameLen   = 804 // length of an SPI transfer
	HeaderLen  = 4   // length of a measurement header

	MaxTxRxConfigs = uss.MaxTxRxConfigs

	// fixed part of a configuration packet, before the TX/RX pairs.
	confHdrLen = 20
	// number of advanced timing fields after the TX/RX pairs.
	nTimings = 7
)

var (
	ErrSentinel = errors.New("wire: invalid sentinel byte")
	ErrTxRxLen  = errors.New("wire: invalid TX/RX configuration length")
	ErrShort    = errors.New("wire: packet too short")
)

// Header is the measurement header prefixed to each frame.
type Header struct {
	Index uint8  // TX/RX configuration index
	Frame uint16 // frame number
}

// Put writes the header in the first HeaderLen bytes of p.
func (hdr Header) Put(p []byte) {
	_ = p[HeaderLen-1]
	p[0] = SentinelFrame
	p[1] = hdr.Index
	binary.LittleEndian.PutUint16(p[2:], hdr.Frame)
}

// ParseHeader decodes the measurement header of the frame p.
func ParseHeader(p []byte) (Header, error) {
	if len(p) < HeaderLen {
		return Header{}, fmt.Errorf("%w: header (got=%d, want=%d)", ErrShort, len(p), HeaderLen)
	}
	if p[0] != SentinelFrame {
		return Header{}, fmt.Errorf("%w: frame (got=0x%02x, want=0x%02x)", ErrSentinel, p[0], SentinelFrame)
	}
	return Header{
		Index: p[1],
		Frame: binary.LittleEndian.Uint16(p[2:]),
	}, nil
}

// IsRestart reports whether p is a restart packet.
func IsRestart(p []byte) bool {
	return len(p) > 0 && p[0] == SentinelRestart
}

// RestartPacket returns a restart packet, zero-padded to PackageLen.
func RestartPacket() []byte {
	p := make([]byte, PackageLen)
	p[0] = SentinelRestart
	return p
}
