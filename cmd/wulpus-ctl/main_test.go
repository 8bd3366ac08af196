// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/pulp-bio/wulpus/confdb"
	"github.com/pulp-bio/wulpus/dongle"
	"github.com/pulp-bio/wulpus/record"
	"github.com/pulp-bio/wulpus/wire"
)

type fakeLink struct {
	cfgs     []wire.Config
	restarts int
	frames   int
	max      int
}

func (l *fakeLink) SendConfig(cfg wire.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	l.cfgs = append(l.cfgs, cfg)
	return nil
}

func (l *fakeLink) SendRestart() error {
	l.restarts++
	return nil
}

func (l *fakeLink) ReadFrame(f *dongle.Frame) error {
	if l.frames >= l.max {
		return io.EOF
	}
	f.Index = 0
	f.Acq = uint16(l.frames)
	f.Samples = append(f.Samples[:0], make([]int16, dongle.FrameSamples)...)
	f.Samples[0] = int16(l.frames)
	l.frames++
	return nil
}

type fakeCatalog struct {
	cfgs map[string]wire.Config
	last string
}

func (db *fakeCatalog) Configs(ctx context.Context) ([]string, error) {
	var names []string
	for name := range db.cfgs {
		names = append(names, name)
	}
	return names, nil
}

func (db *fakeCatalog) LastConfig(ctx context.Context) (string, error) {
	return db.last, nil
}

func (db *fakeCatalog) Config(ctx context.Context, name string) (wire.Config, error) {
	cfg, ok := db.cfgs[name]
	if !ok {
		return cfg, confdb.ErrNoConfig
	}
	return cfg, nil
}

func newTestShell() (*shell, *fakeLink, *bytes.Buffer) {
	var (
		dev = &fakeLink{max: 1000}
		out = new(bytes.Buffer)
		sh  = newShell(dev, out, 0)
	)
	sh.alert = nil
	return sh, dev, out
}

func TestShellConfig(t *testing.T) {
	sh, dev, out := newTestShell()
	tmp := t.TempDir()
	fname := filepath.Join(tmp, "cfg.json")

	for _, line := range []string{
		"help",
		"set samples_size 400",
		"set rx_gain 20.5",
		"txrx clear",
		"txrx add 0 1",
		"txrx add 2,3 4,5",
		"show",
		"save " + fname,
		"load default",
		"load json " + fname,
		"send",
		"restart",
	} {
		err := sh.exec(line)
		if err != nil {
			t.Fatalf("could not run %q: %+v", line, err)
		}
	}

	if got, want := len(dev.cfgs), 1; got != want {
		t.Fatalf("invalid number of sent configurations: got=%d, want=%d", got, want)
	}
	if got, want := dev.restarts, 1; got != want {
		t.Fatalf("invalid number of restarts: got=%d, want=%d", got, want)
	}

	cfg := dev.cfgs[0]
	if got, want := cfg.Samples, 400; got != want {
		t.Fatalf("invalid samples: got=%d, want=%d", got, want)
	}
	if got, want := cfg.RxGain, 20.5; got != want {
		t.Fatalf("invalid gain: got=%v, want=%v", got, want)
	}
	if got, want := cfg.TxConfigs, []uint16{0x0002, 0x00a0}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid TX configs: got=%#v, want=%#v", got, want)
	}
	if got, want := cfg.RxConfigs, []uint16{0x0004, 0x0500}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid RX configs: got=%#v, want=%#v", got, want)
	}

	if !strings.Contains(out.String(), "txrx[01]:        tx=[2 3] rx=[4 5]") {
		t.Fatalf("invalid show output:\n%s", out.String())
	}
}

func TestShellErrors(t *testing.T) {
	sh, _, _ := newTestShell()
	for _, line := range []string{
		"boom",
		"load",
		"load xml cfg.xml",
		"load json",
		"load db last",
		"list",
		"set samples_size 0",
		"set samples_size many",
		"set unknown 1",
		"txrx add 8 0",
		"txrx add x 0",
		"txrx",
		"record",
	} {
		t.Run(line, func(t *testing.T) {
			err := sh.exec(line)
			if err == nil {
				t.Fatalf("expected an error")
			}
		})
	}

	if err := sh.exec("quit"); !errors.Is(err, errQuit) {
		t.Fatalf("invalid quit error: %+v", err)
	}
	if got, want := sh.cfg, wire.DefaultConfig(); !reflect.DeepEqual(got, want) {
		t.Fatalf("configuration modified by failed commands:\ngot= %+v\nwant=%+v", got, want)
	}
}

func TestShellCatalog(t *testing.T) {
	sh, _, out := newTestShell()

	bmode := wire.DefaultConfig()
	bmode.Samples = 200
	sh.db = &fakeCatalog{
		cfgs: map[string]wire.Config{"bmode": bmode},
		last: "bmode",
	}

	for _, line := range []string{"list", "load db last"} {
		err := sh.exec(line)
		if err != nil {
			t.Fatalf("could not run %q: %+v", line, err)
		}
	}
	if got, want := sh.cfg.Samples, 200; got != want {
		t.Fatalf("invalid samples: got=%d, want=%d", got, want)
	}
	if !strings.Contains(out.String(), "bmode") {
		t.Fatalf("invalid output:\n%s", out.String())
	}

	err := sh.exec("load db missing")
	if !errors.Is(err, confdb.ErrNoConfig) {
		t.Fatalf("invalid error: %+v", err)
	}
}

func TestShellRecord(t *testing.T) {
	tmp := t.TempDir()
	for _, name := range []string{"run.raw", "run.root", "run.slcio"} {
		t.Run(name, func(t *testing.T) {
			sh, dev, _ := newTestShell()
			fname := filepath.Join(tmp, name)

			err := sh.exec("record " + fname + " 10")
			if err != nil {
				t.Fatalf("could not record: %+v", err)
			}
			if got, want := dev.frames, 10; got != want {
				t.Fatalf("invalid number of read frames: got=%d, want=%d", got, want)
			}

			src, err := record.Open(fname)
			if err != nil {
				t.Fatalf("could not open recorded file: %+v", err)
			}
			defer src.Close()

			for i := 0; i < 10; i++ {
				var f dongle.Frame
				err = src.Read(&f)
				if err != nil {
					t.Fatalf("could not read frame %d: %+v", i, err)
				}
				if f.Acq != uint16(i) || f.Samples[0] != int16(i) {
					t.Fatalf("invalid frame %d: acq=%d, sample=%d", i, f.Acq, f.Samples[0])
				}
			}
		})
	}

	sh, dev, _ := newTestShell()
	dev.max = 3
	err := sh.exec("record " + filepath.Join(tmp, "short.raw") + " 5")
	if !errors.Is(err, io.EOF) {
		t.Fatalf("invalid error: %+v", err)
	}
}

func TestMonitor(t *testing.T) {
	var alerts []string
	mon := newMonitor("run.raw", 1, func(subject, body string) {
		alerts = append(alerts, subject)
	})

	mon.compare(0, 10)
	if len(alerts) != 0 {
		t.Fatalf("unexpected alert")
	}

	for i := 0; i < 2*maxAlerts; i++ {
		mon.compare(10, 10)
	}
	if got, want := len(alerts), maxAlerts-1; got != want {
		t.Fatalf("invalid number of alerts: got=%d, want=%d", got, want)
	}
	if got, want := mon.alerts, 2*maxAlerts; got != want {
		t.Fatalf("invalid number of stalls: got=%d, want=%d", got, want)
	}
}

func TestSplitTargets(t *testing.T) {
	if got := splitTargets(""); len(got) != 0 {
		t.Fatalf("invalid targets: %q", got)
	}
	got := splitTargets("a@example.com, b@example.com,")
	if want := []string{"a@example.com", "b@example.com"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid targets: got=%q, want=%q", got, want)
	}
}
