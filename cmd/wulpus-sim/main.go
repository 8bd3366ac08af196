// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command wulpus-sim runs the probe firmware against a simulated
// microcontroller and relays the acquired frames as the dongle would.
//
// Usage: wulpus-sim [OPTIONS]
//
// Example:
//
//	$> wulpus-sim -n 100 -o frames.bin
//	$> wulpus-sim -cfg bmode.json -pace 1 | wulpus-dump -
package main // import "github.com/pulp-bio/wulpus/cmd/wulpus-sim"

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/pulp-bio/wulpus/dongle"
	"github.com/pulp-bio/wulpus/internal/sim"
	"github.com/pulp-bio/wulpus/probe"
	"github.com/pulp-bio/wulpus/wire"
	"golang.org/x/sync/errgroup"
)

func main() {
	log.SetPrefix("wulpus-sim: ")
	log.SetFlags(0)

	var (
		cfgName = flag.String("cfg", "", "path to a JSON acquisition configuration (default: built-in)")
		oname   = flag.String("o", "", "path to output stream file (default: stdout)")
		nframes = flag.Int("n", -1, "number of frames to acquire (default: configuration num_acqs)")
		pace    = flag.Float64("pace", 0, "pace factor against wall-clock (1: real time, 0: as fast as possible)")
		fault   = flag.String("fault", "", "hardware fault to inject (xtal, power-up, pll-unlock, debug)")
		verbose = flag.Bool("v", false, "enable firmware logs")
	)

	flag.Parse()

	cfg, err := loadConfig(*cfgName)
	if err != nil {
		log.Fatalf("could not load configuration: %+v", err)
	}
	if *nframes < 0 {
		*nframes = cfg.NumAcqs
	}

	f, err := parseFault(*fault)
	if err != nil {
		log.Fatalf("%+v", err)
	}

	var w io.Writer = os.Stdout
	if *oname != "" {
		o, err := os.Create(*oname)
		if err != nil {
			log.Fatalf("could not create output file: %+v", err)
		}
		defer o.Close()
		w = o
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	msg := log.New(io.Discard, "", 0)
	if *verbose {
		msg = log.New(os.Stderr, "probe: ", 0)
	}

	n, err := run(ctx, w, cfg, *nframes, msg, sim.WithPace(*pace), sim.WithFault(f))
	if err != nil {
		log.Fatalf("could not run simulation: %+v", err)
	}
	log.Printf("relayed %d frames", n)
}

func loadConfig(fname string) (wire.Config, error) {
	cfg := wire.DefaultConfig()
	if fname == "" {
		return cfg, nil
	}

	f, err := os.Open(fname)
	if err != nil {
		return cfg, fmt.Errorf("could not open configuration file: %w", err)
	}
	defer f.Close()

	err = json.NewDecoder(f).Decode(&cfg)
	if err != nil {
		return cfg, fmt.Errorf("could not decode configuration file %q: %w", fname, err)
	}
	return cfg, cfg.Validate()
}

func parseFault(name string) (sim.Fault, error) {
	if name == "" {
		return sim.FaultNone, nil
	}
	for _, f := range []sim.Fault{
		sim.FaultNone,
		sim.FaultXtal,
		sim.FaultPowerUp,
		sim.FaultPLLUnlock,
		sim.FaultDebug,
	} {
		if name == f.String() {
			return f, nil
		}
	}
	return sim.FaultNone, fmt.Errorf("unknown hardware fault %q", name)
}

// run simulates the probe configured with cfg until n frames have been
// relayed to w or ctx is done. It returns the number of relayed frames.
func run(ctx context.Context, w io.Writer, cfg wire.Config, n int, msg *log.Logger, opts ...sim.Option) (int, error) {
	pkt, err := wire.Marshal(cfg)
	if err != nil {
		return 0, fmt.Errorf("could not marshal configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		m      = sim.New(opts...)
		frames = make(chan []byte, 64)
		grp    errgroup.Group
		sent   int
		nout   int
	)

	p := probe.New(m, probe.WithLogger(msg), probe.WithSleeper(m))
	m.Connect(p.Device().Interrupt)
	m.OnFrame(func(frame []byte) {
		if sent >= n {
			return
		}
		select {
		case frames <- append([]byte(nil), frame...):
			sent++
		case <-ctx.Done():
			return
		}
		if sent >= n {
			cancel()
		}
	})
	m.Send(pkt)
	m.SetLinkReady(true)

	grp.Go(func() error {
		defer close(frames)
		if n == 0 {
			return nil
		}
		err := runProbe(ctx, p)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	grp.Go(func() error {
		out := dongle.NewWriter(w)
		for frame := range frames {
			chunks, err := dongle.Split(frame)
			if err != nil {
				cancel()
				return fmt.Errorf("could not split frame %d: %w", nout, err)
			}
			err = out.WriteChunks(chunks)
			if err != nil {
				cancel()
				return fmt.Errorf("could not relay frame %d: %w", nout, err)
			}
			nout++
		}
		return nil
	})

	err = grp.Wait()
	return nout, err
}

// runProbe runs the firmware, turning a simulation deadlock into an error.
func runProbe(ctx context.Context, p *probe.Probe) (err error) {
	defer func() {
		e := recover()
		if e == nil {
			return
		}
		if e, ok := e.(error); ok && errors.Is(e, sim.ErrDeadlock) {
			err = fmt.Errorf("probe stalled (stats=%+v): %w", p.Stats(), e)
			return
		}
		panic(e)
	}()
	return p.Run(ctx)
}
