// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dongle

import (
	"fmt"

	"github.com/pulp-bio/wulpus/wire"
)

const (
	NumChunks     = 4   // BLE packets per frame
	ChunkLen      = 201 // length of a BLE packet
	FirstChunkLen = 202 // length of the first BLE packet of a frame
)

// Split cuts a frame into the BLE packets sent by the companion radio.
// The first packet carries one extra byte, repeated at the start of the
// second packet.
func Split(frame []byte) ([][]byte, error) {
	if len(frame) != wire.FrameLen {
		return nil, fmt.Errorf(
			"dongle: invalid frame length (got=%d, want=%d)",
			len(frame), wire.FrameLen,
		)
	}
	chunks := make([][]byte, NumChunks)
	chunks[0] = frame[:FirstChunkLen]
	for i := 1; i < NumChunks; i++ {
		chunks[i] = frame[i*ChunkLen : (i+1)*ChunkLen]
	}
	return chunks, nil
}

// Join reassembles a frame from its BLE packets.
func Join(chunks [][]byte) ([]byte, error) {
	if len(chunks) != NumChunks {
		return nil, fmt.Errorf(
			"dongle: invalid number of chunks (got=%d, want=%d)",
			len(chunks), NumChunks,
		)
	}
	if len(chunks[0]) != FirstChunkLen || chunks[0][0] != wire.SentinelFrame {
		return nil, fmt.Errorf("dongle: invalid start of frame (len=%d)", len(chunks[0]))
	}

	frame := make([]byte, wire.FrameLen)
	for i, chunk := range chunks {
		if i > 0 && len(chunk) != ChunkLen {
			return nil, fmt.Errorf(
				"dongle: invalid length of chunk %d (got=%d, want=%d)",
				i, len(chunk), ChunkLen,
			)
		}
		copy(frame[i*ChunkLen:], chunk)
	}
	return frame, nil
}
