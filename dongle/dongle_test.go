// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dongle

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/pulp-bio/wulpus/wire"
)

func newFrame(idx uint8, acq uint16) []byte {
	frame := make([]byte, wire.FrameLen)
	wire.Header{Index: idx, Frame: acq}.Put(frame)
	for i := 0; i < (wire.FrameLen-wire.HeaderLen)/2; i++ {
		v := int16(i*7 - 1000)
		binary.LittleEndian.PutUint16(frame[wire.HeaderLen+2*i:], uint16(v))
	}
	return frame
}

func TestSplitJoin(t *testing.T) {
	frame := newFrame(3, 0x1234)
	chunks, err := Split(frame)
	if err != nil {
		t.Fatalf("could not split frame: %+v", err)
	}
	if got, want := len(chunks), NumChunks; got != want {
		t.Fatalf("invalid number of chunks: got=%d, want=%d", got, want)
	}
	for i, chunk := range chunks {
		want := ChunkLen
		if i == 0 {
			want = FirstChunkLen
		}
		if len(chunk) != want {
			t.Fatalf("invalid length of chunk %d: got=%d, want=%d", i, len(chunk), want)
		}
	}
	if chunks[0][FirstChunkLen-1] != chunks[1][0] {
		t.Fatalf("first chunk does not overlap the second one")
	}

	got, err := Join(chunks)
	if err != nil {
		t.Fatalf("could not join chunks: %+v", err)
	}
	if !bytes.Equal(got, frame) {
		t.Fatalf("round-trip failed")
	}
}

func TestSplitJoinErrors(t *testing.T) {
	if _, err := Split(make([]byte, 10)); err == nil {
		t.Fatalf("expected an error")
	}

	frame := newFrame(0, 0)
	chunks, err := Split(frame)
	if err != nil {
		t.Fatalf("could not split frame: %+v", err)
	}

	for _, tc := range []struct {
		name   string
		chunks [][]byte
	}{
		{"missing", chunks[:3]},
		{"short-first", [][]byte{chunks[0][:ChunkLen], chunks[1], chunks[2], chunks[3]}},
		{"no-sentinel", [][]byte{make([]byte, FirstChunkLen), chunks[1], chunks[2], chunks[3]}},
		{"short", [][]byte{chunks[0], chunks[1], chunks[2][:10], chunks[3]}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Join(tc.chunks)
			if err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestStream(t *testing.T) {
	var (
		buf = new(bytes.Buffer)
		w   = NewWriter(buf)
	)

	// garbage before the first marker.
	buf.WriteString("boot\nST")
	buf.Write(bytes.Repeat([]byte{0xAA}, 50))

	var want []Frame
	for i := 0; i < 3; i++ {
		frame := newFrame(uint8(i), uint16(100+i))
		chunks, err := Split(frame)
		if err != nil {
			t.Fatalf("could not split frame: %+v", err)
		}
		err = w.WriteChunks(chunks)
		if err != nil {
			t.Fatalf("could not write frame %d: %+v", i, err)
		}

		f := Frame{Index: uint8(i), Acq: uint16(100 + i), Samples: make([]int16, FrameSamples)}
		for j := range f.Samples {
			f.Samples[j] = int16(j*7 - 1000)
		}
		want = append(want, f)
	}

	if got, want := buf.Len(), 7+50+3*(markerLen+wire.FrameLen); got != want {
		t.Fatalf("invalid stream length: got=%d, want=%d", got, want)
	}

	r := NewReader(buf)
	for i := range want {
		var f Frame
		err := r.Read(&f)
		if err != nil {
			t.Fatalf("could not read frame %d: %+v", i, err)
		}
		if !reflect.DeepEqual(f, want[i]) {
			t.Fatalf("invalid frame %d:\ngot= %v %v %v\nwant=%v %v %v",
				i, f.Index, f.Acq, f.Samples[:1], want[i].Index, want[i].Acq, want[i].Samples[:1],
			)
		}
	}

	var f Frame
	err := r.Read(&f)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("invalid error at end of stream: %+v", err)
	}
}

func TestStreamErrors(t *testing.T) {
	w := NewWriter(io.Discard)
	if err := w.WriteFrame(make([]byte, 10)); err == nil {
		t.Fatalf("expected an error")
	}

	// marker followed by a truncated frame.
	r := NewReader(bytes.NewReader([]byte(Marker + "\x00\x00\x00\xff\x01")))
	var f Frame
	if err := r.Read(&f); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("invalid error: %+v", err)
	}

	// marker followed by something else than a frame.
	buf := make([]byte, markerLen+wire.FrameLen)
	copy(buf, Marker)
	r = NewReader(bytes.NewReader(buf))
	if err := r.Read(&f); !errors.Is(err, wire.ErrSentinel) {
		t.Fatalf("invalid error: %+v", err)
	}
}

type pipe struct {
	r io.Reader
	w bytes.Buffer
}

func (p *pipe) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipe) Write(b []byte) (int, error) { return p.w.Write(b) }

func TestDongle(t *testing.T) {
	cfg := wire.DefaultConfig()
	cfg.Samples = 16

	var stream bytes.Buffer
	sw := NewWriter(&stream)
	for i := 0; i < 2; i++ {
		err := sw.WriteFrame(newFrame(0, uint16(i)))
		if err != nil {
			t.Fatalf("could not write frame: %+v", err)
		}
	}

	rw := &pipe{r: &stream}
	dev := New(rw)
	defer dev.Close()

	err := dev.SendConfig(cfg)
	if err != nil {
		t.Fatalf("could not send config: %+v", err)
	}
	err = dev.SendRestart()
	if err != nil {
		t.Fatalf("could not send restart: %+v", err)
	}

	sent := rw.w.Bytes()
	if got, want := len(sent), 2*wire.PackageLen; got != want {
		t.Fatalf("invalid number of bytes sent: got=%d, want=%d", got, want)
	}
	pkt, err := wire.Marshal(cfg)
	if err != nil {
		t.Fatalf("could not marshal config: %+v", err)
	}
	if !bytes.Equal(sent[:wire.PackageLen], pkt) {
		t.Fatalf("invalid configuration packet")
	}
	if !wire.IsRestart(sent[wire.PackageLen:]) {
		t.Fatalf("invalid restart packet")
	}

	for i := 0; i < 2; i++ {
		var f Frame
		err = dev.ReadFrame(&f)
		if err != nil {
			t.Fatalf("could not read frame %d: %+v", i, err)
		}
		if got, want := len(f.Samples), FrameSamples; got != want {
			t.Fatalf("invalid number of samples: got=%d, want=%d", got, want)
		}
		if got, want := f.Acq, uint16(i); got != want {
			t.Fatalf("invalid acquisition number: got=%d, want=%d", got, want)
		}
	}

	bad := cfg
	bad.Samples = 0
	if err := dev.SendConfig(bad); err == nil {
		t.Fatalf("expected an error")
	}
}

func TestOpen(t *testing.T) {
	_, err := Open("/dev/does-not-exist", 0)
	if err == nil {
		t.Fatalf("expected an error")
	}
}
