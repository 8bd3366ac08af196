// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package probe_test

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/pulp-bio/wulpus/internal/regs"
	"github.com/pulp-bio/wulpus/internal/sim"
	"github.com/pulp-bio/wulpus/probe"
	"github.com/pulp-bio/wulpus/uss"
	"github.com/pulp-bio/wulpus/wire"
)

type harness struct {
	t *testing.T
	m *sim.MCU
	p *probe.Probe

	ctx    context.Context
	cancel context.CancelFunc

	hdrs  []wire.Header
	leds  []bool
	onFrm func(i int, hdr wire.Header)
	onSlp func()
}

func newHarness(t *testing.T, opts ...sim.Option) *harness {
	t.Helper()

	h := &harness{t: t, m: sim.New(opts...)}
	h.ctx, h.cancel = context.WithCancel(context.Background())
	h.p = probe.New(h.m,
		probe.WithLogger(log.New(io.Discard, "", 0)),
		probe.WithSleeper(uss.SleeperFunc(func(mode uss.PowerMode) {
			h.m.Sleep(mode)
			if h.onSlp != nil {
				h.onSlp()
			}
		})),
	)
	h.m.Connect(h.p.Device().Interrupt)
	h.m.OnFrame(func(p []byte) {
		if len(p) != wire.FrameLen {
			t.Errorf("invalid frame length: got=%d, want=%d", len(p), wire.FrameLen)
		}
		hdr, err := wire.ParseHeader(p)
		if err != nil {
			t.Errorf("could not parse frame header: %+v", err)
			h.cancel()
			return
		}
		h.hdrs = append(h.hdrs, hdr)
		h.leds = append(h.leds, h.m.Pin(regs.P1OUT, regs.BIT5))
		if h.onFrm != nil {
			h.onFrm(len(h.hdrs)-1, hdr)
		}
	})
	return h
}

// stopAfter cancels the run once n frames have been received.
func (h *harness) stopAfter(n int) {
	h.onFrm = func(i int, hdr wire.Header) {
		if i+1 >= n {
			h.cancel()
		}
	}
}

func (h *harness) send(cfg wire.Config) {
	h.t.Helper()
	pkt, err := wire.Marshal(cfg)
	if err != nil {
		h.t.Fatalf("could not marshal configuration: %+v", err)
	}
	h.m.Send(pkt)
}

func (h *harness) run() {
	h.t.Helper()
	err := h.p.Run(h.ctx)
	if !errors.Is(err, context.Canceled) {
		h.t.Fatalf("invalid run error: got=%+v, want=%+v", err, context.Canceled)
	}
}

func (h *harness) checkHeaders(want []wire.Header) {
	h.t.Helper()
	if len(h.hdrs) != len(want) {
		h.t.Fatalf("invalid number of frames: got=%d, want=%d\ngot: %v", len(h.hdrs), len(want), h.hdrs)
	}
	for i := range want {
		if h.hdrs[i] != want[i] {
			h.t.Fatalf("invalid frame header %d: got=%+v, want=%+v", i, h.hdrs[i], want[i])
		}
	}
}

func testConfig(t *testing.T) wire.Config {
	t.Helper()
	cfg := wire.DefaultConfig()
	cfg.DcDcTurnOn = 100
	cfg.Samples = 400

	var txrx wire.TxRxConfig
	for _, v := range []struct{ tx, rx []int }{
		{[]int{0}, []int{1}},
		{[]int{2}, []int{3}},
		{[]int{4, 5}, []int{6, 7}},
	} {
		err := txrx.Add(v.tx, v.rx)
		if err != nil {
			t.Fatalf("could not add TX/RX configuration: %+v", err)
		}
	}
	cfg.TxConfigs = txrx.Tx()
	cfg.RxConfigs = txrx.Rx()
	return cfg
}

func TestRun(t *testing.T) {
	h := newHarness(t)
	cfg := testConfig(t)
	h.send(cfg)
	h.m.SetLinkReady(true)

	const n = 7
	h.stopAfter(n)
	h.run()

	want := make([]wire.Header, n)
	for i := range want {
		want[i] = wire.Header{Index: uint8(i % 3), Frame: uint16(i)}
	}
	h.checkHeaders(want)

	if got, want := h.p.Stats(), (probe.Stats{Sessions: 1, Frames: n}); got != want {
		t.Fatalf("invalid stats: got=%+v, want=%+v", got, want)
	}
	if got := h.m.Acquisitions(); got != n {
		t.Fatalf("invalid number of acquisitions: got=%d, want=%d", got, n)
	}

	// each acquisition latches its TX then its RX configuration.
	hist := h.m.HvMuxHistory()
	if len(hist) != 2*n {
		t.Fatalf("invalid number of HV mux latches: got=%d, want=%d", len(hist), 2*n)
	}
	for i := 0; i < n; i++ {
		var (
			j  = i % 3
			tx = hist[2*i]
			rx = hist[2*i+1]
		)
		if tx != cfg.TxConfigs[j] || rx != cfg.RxConfigs[j] {
			t.Fatalf(
				"invalid HV mux configuration for frame %d: got=(0x%04x, 0x%04x), want=(0x%04x, 0x%04x)",
				i, tx, rx, cfg.TxConfigs[j], cfg.RxConfigs[j],
			)
		}
	}

	for i, on := range h.leds {
		if !on {
			t.Fatalf("status LED off during frame %d", i)
		}
	}
	if h.m.Pin(regs.P1OUT, regs.BIT5) {
		t.Fatalf("status LED still on after run")
	}

	dev := h.p.Device()
	if got, want := dev.Config().SampleSize, uint16(cfg.Samples); got != want {
		t.Fatalf("invalid sample size: got=%d, want=%d", got, want)
	}
	if dev.Updated() {
		t.Fatalf("configuration still pending")
	}
	if dev.SlowTimer().IntEnabled(0) {
		t.Fatalf("measurement events still enabled")
	}

	// frames are paced by the measurement period.
	if got, want := h.m.Now(), (n-1)*time.Duration(cfg.MeasPeriod)*sim.SlowTick; got < want {
		t.Fatalf("frames too fast: elapsed=%v, want>=%v", got, want)
	}
}

func TestRestart(t *testing.T) {
	h := newHarness(t)
	h.send(testConfig(t))
	h.m.SetLinkReady(true)

	cfg := wire.DefaultConfig()
	cfg.TxConfigs = []uint16{0x0002}
	cfg.RxConfigs = []uint16{0x0001}

	var (
		restarted bool
		paused    int
	)
	h.onFrm = func(i int, hdr wire.Header) {
		switch i {
		case 2:
			// answered by the companion during the next transfer.
			h.m.Send(wire.RestartPacket())
			h.send(cfg)
		case 3:
			restarted = true
		case 5:
			h.cancel()
		}
	}
	h.onSlp = func() {
		if !restarted {
			return
		}
		// waiting for the next configuration.
		if frame, _ := h.p.Frame(); frame != 0 {
			return
		}
		restarted = false
		slow := h.p.Device().SlowTimer()
		if slow.IntEnabled(0) || slow.IntEnabled(2) {
			t.Errorf("measurement events still enabled after restart")
		}
		paused++
	}
	h.run()

	if paused != 1 {
		t.Fatalf("no wait for configuration after restart")
	}

	h.checkHeaders([]wire.Header{
		{Index: 0, Frame: 0},
		{Index: 1, Frame: 1},
		{Index: 2, Frame: 2},
		{Index: 0, Frame: 3},
		{Index: 0, Frame: 0},
		{Index: 0, Frame: 1},
	})

	want := probe.Stats{Sessions: 2, Frames: 6, Restarts: 1}
	if got := h.p.Stats(); got != want {
		t.Fatalf("invalid stats: got=%+v, want=%+v", got, want)
	}
	if got := h.p.Device().Config().TxRxLen; got != 1 {
		t.Fatalf("invalid TX/RX length: got=%d, want=1", got)
	}
}

func TestLinkDown(t *testing.T) {
	h := newHarness(t)
	h.send(testConfig(t))
	h.m.SetLinkReady(true)

	var (
		down  bool
		polls int
	)
	h.onFrm = func(i int, hdr wire.Header) {
		if i == 1 {
			h.m.SetLinkReady(false)
			down = true
		}
	}
	h.onSlp = func() {
		if !down {
			return
		}
		polls++
		if polls == 10 {
			h.cancel()
		}
	}
	h.run()

	h.checkHeaders([]wire.Header{
		{Index: 0, Frame: 0},
		{Index: 1, Frame: 1},
	})
	if got, want := h.p.Stats(), (probe.Stats{Sessions: 1, Frames: 2}); got != want {
		t.Fatalf("invalid stats: got=%+v, want=%+v", got, want)
	}
	if got := h.m.Acquisitions(); got != 2 {
		t.Fatalf("acquisitions after link-down: got=%d, want=2", got)
	}
	if slow := h.p.Device().SlowTimer(); slow.IntEnabled(0) || slow.IntEnabled(2) {
		t.Fatalf("measurement events still enabled after link-down")
	}
	if h.p.LinkReady() {
		t.Fatalf("link still ready")
	}
}

func TestRejectedPacket(t *testing.T) {
	h := newHarness(t)

	bad := make([]byte, wire.PackageLen)
	bad[0] = 0x42
	h.m.Send(bad)
	h.send(testConfig(t))
	h.m.SetLinkReady(true)

	h.stopAfter(2)
	h.run()

	h.checkHeaders([]wire.Header{
		{Index: 0, Frame: 0},
		{Index: 1, Frame: 1},
	})
	if got, want := h.p.Stats(), (probe.Stats{Sessions: 1, Frames: 2, Rejected: 1}); got != want {
		t.Fatalf("invalid stats: got=%+v, want=%+v", got, want)
	}
}

func TestRejectedConfig(t *testing.T) {
	h := newHarness(t)

	// valid on the wire, out of range for the pulse generator.
	bad := testConfig(t)
	bad.PulseFreq = 100000
	h.send(bad)
	h.send(testConfig(t))
	h.m.SetLinkReady(true)

	h.stopAfter(1)
	h.run()

	h.checkHeaders([]wire.Header{{Index: 0, Frame: 0}})
	if got, want := h.p.Stats(), (probe.Stats{Sessions: 2, Frames: 1}); got != want {
		t.Fatalf("invalid stats: got=%+v, want=%+v", got, want)
	}
	if got := h.p.Device().Config().PulseFreq; got != 2250000 {
		t.Fatalf("invalid pulse frequency: %d", got)
	}
}

func TestNoTxRxConfig(t *testing.T) {
	h := newHarness(t)

	pkt, err := wire.Marshal(testConfig(t))
	if err != nil {
		t.Fatalf("could not marshal configuration: %+v", err)
	}
	// drop the three TX/RX pairs.
	const (
		lenOfs  = 19
		pairOfs = 20
	)
	pkt[lenOfs] = 0
	pkt = append(pkt[:pairOfs], pkt[pairOfs+3*4:]...)
	h.m.Send(pkt)
	h.m.SetLinkReady(true)

	const n = 3
	h.stopAfter(n)
	h.run()

	h.checkHeaders([]wire.Header{
		{Index: 0, Frame: 0},
		{Index: 0, Frame: 1},
		{Index: 0, Frame: 2},
	})
	if got := h.p.Device().Config().TxRxLen; got != 0 {
		t.Fatalf("invalid TX/RX length: %d", got)
	}
	for i, w := range h.m.HvMuxHistory() {
		if w != 0 {
			t.Fatalf("HV mux configuration %d shifted without TX/RX configuration: 0x%04x", i, w)
		}
	}
}

func TestAcquisitionFailure(t *testing.T) {
	h := newHarness(t, sim.WithFault(sim.FaultDebug))
	h.send(testConfig(t))
	h.m.SetLinkReady(true)

	const n = 2
	h.onSlp = func() {
		if h.m.Acquisitions() == n {
			h.m.SetFault(sim.FaultNone)
		}
	}
	h.stopAfter(1)
	h.run()

	// the frame number only advances with transferred frames.
	h.checkHeaders([]wire.Header{{Index: 0, Frame: 0}})
	if got, want := h.p.Stats(), (probe.Stats{Sessions: 1, Frames: 1, Failures: n}); got != want {
		t.Fatalf("invalid stats: got=%+v, want=%+v", got, want)
	}
}

func TestCancelBeforeConfig(t *testing.T) {
	h := newHarness(t)
	h.cancel()
	h.run()

	if got := h.p.Stats(); got != (probe.Stats{}) {
		t.Fatalf("invalid stats: %+v", got)
	}
	if got := h.m.Transfers(); got != 0 {
		t.Fatalf("invalid number of transfers: %d", got)
	}
}

func TestPowerUpLFXT(t *testing.T) {
	h := newHarness(t, sim.WithLFXTFaults(1))
	h.send(testConfig(t))
	h.m.SetLinkReady(true)

	var at time.Duration
	h.onFrm = func(i int, hdr wire.Header) {
		at = h.m.Now()
		h.cancel()
	}
	h.run()

	if min := 3277 * sim.SlowTick; at < min {
		t.Fatalf("first frame before the LFXT settled: got=%v, want>=%v", at, min)
	}
}

func TestOpen(t *testing.T) {
	_, err := probe.Open("/dev/does-not-exist")
	if err == nil {
		t.Fatalf("expected an error")
	}
}
