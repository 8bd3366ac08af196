// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command wulpus-probe runs the probe acquisition firmware on a
// memory-mapped peripheral window.
//
// Interrupts are delivered as a stream of vector numbers, one byte each,
// read from the -irq file.
package main // import "github.com/pulp-bio/wulpus/cmd/wulpus-probe"

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/pulp-bio/wulpus/probe"
	"golang.org/x/sync/errgroup"
)

func main() {
	log.SetPrefix("wulpus-probe: ")
	log.SetFlags(0)

	var (
		devmem = flag.String("mem", "/dev/mem", "path to the peripheral window")
		irq    = flag.String("irq", "/dev/uio0", "path to the interrupt stream")
		dump   = flag.Bool("dump", false, "dump the peripheral registers at exit")
	)

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, *devmem, *irq, *dump)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(ctx context.Context, devmem, irq string, dump bool) error {
	src, err := os.Open(irq)
	if err != nil {
		return fmt.Errorf("could not open interrupt stream: %w", err)
	}
	defer src.Close()

	p, err := probe.Open(devmem, probe.WithLogger(log.New(os.Stdout, "probe: ", 0)))
	if err != nil {
		return fmt.Errorf("could not open probe: %w", err)
	}
	defer p.Close()

	return serve(ctx, p, src, dump)
}

func serve(ctx context.Context, p *probe.Probe, irq io.ReadCloser, dump bool) error {
	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		err := p.Device().ServeIRQ(irq)
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("could not serve interrupts: %w", err)
		}
		return nil
	})
	grp.Go(func() error {
		defer irq.Close()
		err := p.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	err := grp.Wait()

	st := p.Stats()
	log.Printf("sessions=%d frames=%d failures=%d restarts=%d rejected=%d",
		st.Sessions, st.Frames, st.Failures, st.Restarts, st.Rejected,
	)
	if dump {
		if err := p.Device().DumpRegisters(os.Stdout); err != nil {
			log.Printf("could not dump registers: %+v", err)
		}
	}

	if err != nil {
		return fmt.Errorf("could not run probe: %w", err)
	}
	return nil
}
