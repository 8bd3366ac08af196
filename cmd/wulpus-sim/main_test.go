// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pulp-bio/wulpus/dongle"
	"github.com/pulp-bio/wulpus/internal/sim"
	"github.com/pulp-bio/wulpus/wire"
)

func TestRun(t *testing.T) {
	cfg := wire.DefaultConfig()
	cfg.TxConfigs = []uint16{0x0001, 0x0002}
	cfg.RxConfigs = []uint16{0x0100, 0x0200}

	const n = 5
	var (
		buf = new(bytes.Buffer)
		msg = log.New(io.Discard, "", 0)
	)
	got, err := run(context.Background(), buf, cfg, n, msg)
	if err != nil {
		t.Fatalf("could not run simulation: %+v", err)
	}
	if got != n {
		t.Fatalf("invalid number of relayed frames: got=%d, want=%d", got, n)
	}

	r := dongle.NewReader(buf)
	for i := 0; i < n; i++ {
		var f dongle.Frame
		err := r.Read(&f)
		if err != nil {
			t.Fatalf("could not read frame %d: %+v", i, err)
		}
		if got, want := f.Acq, uint16(i); got != want {
			t.Fatalf("invalid acquisition number: got=%d, want=%d", got, want)
		}
		if got, want := f.Index, uint8(i%2); got != want {
			t.Fatalf("invalid TX/RX index: got=%d, want=%d", got, want)
		}
	}
	var f dongle.Frame
	if err := r.Read(&f); !errors.Is(err, io.EOF) {
		t.Fatalf("invalid error at end of stream: %+v", err)
	}
}

func TestRunNoFrames(t *testing.T) {
	buf := new(bytes.Buffer)
	n, err := run(context.Background(), buf, wire.DefaultConfig(), 0, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("could not run simulation: %+v", err)
	}
	if n != 0 || buf.Len() != 0 {
		t.Fatalf("unexpected output: n=%d, len=%d", n, buf.Len())
	}
}

func TestRunFault(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	buf := new(bytes.Buffer)
	n, err := run(ctx, buf, wire.DefaultConfig(), 2, log.New(io.Discard, "", 0), sim.WithFault(sim.FaultDebug))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, context.DeadlineExceeded)
	}
	if n != 0 {
		t.Fatalf("unexpected frames: %d", n)
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("could not load default configuration: %+v", err)
	}
	if got, want := cfg.MeasPeriod, wire.DefaultConfig().MeasPeriod; got != want {
		t.Fatalf("invalid default configuration: got=%d, want=%d", got, want)
	}

	tmp := t.TempDir()
	fname := filepath.Join(tmp, "cfg.json")
	err = os.WriteFile(fname, []byte(`{"samples_size": 400, "tx_configs": [1, 2], "rx_configs": [3, 4]}`), 0644)
	if err != nil {
		t.Fatalf("could not write configuration: %+v", err)
	}
	cfg, err = loadConfig(fname)
	if err != nil {
		t.Fatalf("could not load configuration: %+v", err)
	}
	if cfg.Samples != 400 || len(cfg.TxConfigs) != 2 || cfg.RxConfigs[1] != 4 {
		t.Fatalf("invalid configuration: %+v", cfg)
	}

	bad, err := json.Marshal(map[string]int{"samples_size": 0})
	if err != nil {
		t.Fatalf("could not marshal configuration: %+v", err)
	}
	err = os.WriteFile(fname, bad, 0644)
	if err != nil {
		t.Fatalf("could not write configuration: %+v", err)
	}
	_, err = loadConfig(fname)
	if err == nil {
		t.Fatalf("expected an error")
	}
}

func TestParseFault(t *testing.T) {
	for _, tc := range []struct {
		name string
		want sim.Fault
		err  bool
	}{
		{"", sim.FaultNone, false},
		{"none", sim.FaultNone, false},
		{"xtal", sim.FaultXtal, false},
		{"pll-unlock", sim.FaultPLLUnlock, false},
		{"boom", sim.FaultNone, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseFault(tc.name)
			if (err != nil) != tc.err {
				t.Fatalf("invalid error: %+v", err)
			}
			if got != tc.want {
				t.Fatalf("invalid fault: got=%v, want=%v", got, tc.want)
			}
		})
	}
}
