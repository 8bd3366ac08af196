// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pulp-bio/wulpus/dongle"
	"github.com/pulp-bio/wulpus/record"
	"github.com/pulp-bio/wulpus/wire"
)

type testMsg struct{ t *testing.T }

func (msg testMsg) Debugf(format string, args ...interface{}) { msg.t.Logf(format, args...) }
func (msg testMsg) Infof(format string, args ...interface{})  { msg.t.Logf(format, args...) }
func (msg testMsg) Errorf(format string, args ...interface{}) { msg.t.Logf(format, args...) }

type fakeLink struct {
	mu       sync.Mutex
	frames   int
	cfgs     []wire.Config
	restarts int
	closed   bool
}

func (dev *fakeLink) SendConfig(cfg wire.Config) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.cfgs = append(dev.cfgs, cfg)
	return nil
}

func (dev *fakeLink) SendRestart() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.restarts++
	return nil
}

func (dev *fakeLink) ReadFrame(f *dongle.Frame) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.frames == 0 {
		return io.EOF
	}
	dev.frames--
	f.Index = uint8(dev.frames % 2)
	f.Acq = uint16(dev.frames)
	f.Samples = make([]int16, dongle.FrameSamples)
	for i := range f.Samples {
		f.Samples[i] = int16(i - dev.frames)
	}
	return nil
}

func (dev *fakeLink) Close() error {
	dev.closed = true
	return nil
}

type fakeCatalog struct {
	cfgs map[string]wire.Config
	last string
}

func (db fakeCatalog) LastConfig(ctx context.Context) (string, error) {
	return db.last, nil
}

func (db fakeCatalog) Config(ctx context.Context, name string) (wire.Config, error) {
	cfg, ok := db.cfgs[name]
	if !ok {
		return cfg, fmt.Errorf("no such config %q", name)
	}
	return cfg, nil
}

func TestConfigure(t *testing.T) {
	var (
		ctx = context.Background()
		msg = testMsg{t}
		dev = newDAQ(nil)
	)

	alt := wire.DefaultConfig()
	alt.Samples = 200
	dev.db = fakeCatalog{
		cfgs: map[string]wire.Config{"run-42": alt},
		last: "run-42",
	}

	for _, tc := range []struct {
		src     string
		samples int
		err     bool
	}{
		{src: "", samples: wire.DefaultConfig().Samples},
		{src: "default", samples: wire.DefaultConfig().Samples},
		{src: `{"samples_size": 300}`, samples: 300},
		{src: "run-42", samples: 200},
		{src: " last\n", samples: 200},
		{src: "run-0", err: true},
		{src: `{"samples_size": 0}`, err: true},
		{src: `{"samples_size": `, err: true},
	} {
		t.Run(tc.src, func(t *testing.T) {
			dev.cfg = wire.DefaultConfig()
			dev.cfg.Samples = 1
			err := dev.configure(ctx, msg, tc.src)
			switch {
			case tc.err && err == nil:
				t.Fatalf("expected an error")
			case tc.err:
				if dev.cfg.Samples != 1 {
					t.Fatalf("configuration modified after error")
				}
				return
			case err != nil:
				t.Fatalf("could not configure: %+v", err)
			}
			if got, want := dev.cfg.Samples, tc.samples; got != want {
				t.Fatalf("invalid samples: got=%d, want=%d", got, want)
			}
		})
	}

	dev.db = nil
	if err := dev.configure(ctx, msg, "run-42"); err == nil {
		t.Fatalf("expected an error without catalog")
	}
}

func TestRunControl(t *testing.T) {
	var (
		msg = testMsg{t}
		lnk = &fakeLink{frames: 3}
		dev = newDAQ(func() (link, error) { return lnk, nil })
	)

	if err := dev.start(); err == nil {
		t.Fatalf("expected an error before /init")
	}

	err := dev.init(msg)
	if err != nil {
		t.Fatalf("could not init: %+v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error)
	go func() {
		done <- dev.loop(ctx, msg)
	}()

	err = dev.start()
	if err != nil {
		t.Fatalf("could not start: %+v", err)
	}

	for i := 0; i < 3; i++ {
		var raw []byte
		select {
		case raw = <-dev.data:
		case <-time.After(5 * time.Second):
			t.Fatalf("timeout waiting for frame %d", i)
		}
		var f dongle.Frame
		err := record.NewDecoder(bytes.NewReader(raw)).Decode(&f)
		if err != nil {
			t.Fatalf("could not decode frame %d: %+v", i, err)
		}
		if got, want := f.Acq, uint16(2-i); got != want {
			t.Fatalf("invalid frame %d: got=%d, want=%d", i, got, want)
		}
		if got, want := len(f.Samples), dongle.FrameSamples; got != want {
			t.Fatalf("invalid number of samples: got=%d, want=%d", got, want)
		}
	}

	// the end of the frame stream stops the acquisition.
	for deadline := time.Now().Add(5 * time.Second); ; {
		dev.mu.Lock()
		started := dev.started
		dev.mu.Unlock()
		if !started {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("acquisition still running at end of stream")
		}
		time.Sleep(time.Millisecond)
	}

	n, dropped, err := dev.stop()
	if err != nil {
		t.Fatalf("could not stop: %+v", err)
	}
	if n != 3 || dropped != 0 {
		t.Fatalf("invalid counters: n=%d, dropped=%d", n, dropped)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("could not run: %+v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout waiting for run loop")
	}

	err = dev.reset()
	if err != nil {
		t.Fatalf("could not reset: %+v", err)
	}
	err = dev.quit()
	if err != nil {
		t.Fatalf("could not quit: %+v", err)
	}

	if got, want := len(lnk.cfgs), 1; got != want {
		t.Fatalf("invalid number of configurations: got=%d, want=%d", got, want)
	}
	if got, want := lnk.restarts, 1; got != want {
		t.Fatalf("invalid number of restarts: got=%d, want=%d", got, want)
	}
	if !lnk.closed {
		t.Fatalf("dongle not closed")
	}
}

func TestInitError(t *testing.T) {
	dev := newDAQ(func() (link, error) { return nil, io.ErrClosedPipe })
	if err := dev.init(testMsg{t}); err == nil {
		t.Fatalf("expected an error")
	}
}
