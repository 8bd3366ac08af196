// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/pulp-bio/wulpus/dongle"
	"github.com/pulp-bio/wulpus/record"
)

func genFile(t *testing.T, fname string, n int) []dongle.Frame {
	t.Helper()

	sink, err := record.Create(fname, 42)
	if err != nil {
		t.Fatalf("could not create %q: %+v", fname, err)
	}
	defer sink.Close()

	frames := make([]dongle.Frame, n)
	for i := range frames {
		f := dongle.Frame{
			Index:   uint8(i % 3),
			Acq:     uint16(i),
			Samples: make([]int16, dongle.FrameSamples),
		}
		for j := range f.Samples {
			f.Samples[j] = int16(j - 10*i)
		}
		frames[i] = f
		err := sink.Write(f)
		if err != nil {
			t.Fatalf("could not write frame %d: %+v", i, err)
		}
	}

	err = sink.Close()
	if err != nil {
		t.Fatalf("could not close %q: %+v", fname, err)
	}
	return frames
}

func TestProcess(t *testing.T) {
	tmp, err := os.MkdirTemp("", "wulpus-dump-")
	if err != nil {
		t.Fatalf("could not create tmp dir: %+v", err)
	}
	defer os.RemoveAll(tmp)

	fname := filepath.Join(tmp, "run.raw")
	genFile(t, fname, 2)

	out := new(bytes.Buffer)
	err = process(out, fname, 3)
	if err != nil {
		t.Fatalf("could not dump file: %+v", err)
	}

	want := `=== frame 0 ===
TX/RX index:      0
Acquisition:      0
Samples:        400 (min=    0 max=  399)
     0     1     2
=== frame 1 ===
TX/RX index:      1
Acquisition:      1
Samples:        400 (min=  -10 max=  389)
   -10    -9    -8
`
	if got := out.String(); got != want {
		t.Fatalf("invalid dump:\ngot:\n%s\nwant:\n%s", got, want)
	}

	err = process(new(bytes.Buffer), filepath.Join(tmp, "missing.raw"), 3)
	if err == nil {
		t.Fatalf("expected an error")
	}
}

func TestConvert(t *testing.T) {
	tmp, err := os.MkdirTemp("", "wulpus-dump-")
	if err != nil {
		t.Fatalf("could not create tmp dir: %+v", err)
	}
	defer os.RemoveAll(tmp)

	var (
		in1  = filepath.Join(tmp, "run-1.raw")
		in2  = filepath.Join(tmp, "run-2.raw")
		want = append(genFile(t, in1, 3), genFile(t, in2, 4)...)
	)

	for _, ext := range []string{".raw", ".root", ".slcio"} {
		t.Run(ext, func(t *testing.T) {
			oname := filepath.Join(tmp, "out"+ext)
			n, err := convert(oname, 42, in1, in2)
			if err != nil {
				t.Fatalf("could not convert: %+v", err)
			}
			if n != len(want) {
				t.Fatalf("invalid number of frames: got=%d, want=%d", n, len(want))
			}

			src, err := record.Open(oname)
			if err != nil {
				t.Fatalf("could not open %q: %+v", oname, err)
			}
			defer src.Close()

			for i := range want {
				var f dongle.Frame
				err := src.Read(&f)
				if err != nil {
					t.Fatalf("could not read frame %d: %+v", i, err)
				}
				if !reflect.DeepEqual(f, want[i]) {
					t.Fatalf("invalid frame %d", i)
				}
			}
		})
	}

	_, err = convert(filepath.Join(tmp, "out.raw"), 0, filepath.Join(tmp, "missing.raw"))
	if err == nil || !strings.Contains(err.Error(), "missing.raw") {
		t.Fatalf("invalid error: %+v", err)
	}
}
