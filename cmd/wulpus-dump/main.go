// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// wulpus-dump displays or converts recorded WULPUS acquisition files.
//
// Usage: wulpus-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> wulpus-dump ./run-42.raw
//	=== frame 0 ===
//	TX/RX index:      0
//	Acquisition:      0
//	Samples:        400 (min=-1012 max=  987)
//	  -12    34   102   ...
//	[...]
//
//	$> wulpus-dump -o run-42.root ./run-42.raw
//	wulpus-dump: converted 2000 frames from "./run-42.raw"
package main // import "github.com/pulp-bio/wulpus/cmd/wulpus-dump"

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/pulp-bio/wulpus/dongle"
	"github.com/pulp-bio/wulpus/record"
)

func main() {
	log.SetPrefix("wulpus-dump: ")
	log.SetFlags(0)

	var (
		oname = flag.String("o", "", "path to output file (.raw, .root or .slcio) to convert into")
		run   = flag.Int("run", 0, "run number of the converted file")
		nsmp  = flag.Int("n", 8, "number of samples to display per frame")
	)

	flag.Usage = func() {
		fmt.Printf(`wulpus-dump displays or converts recorded WULPUS acquisition files.

Usage: wulpus-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Example:

 $> wulpus-dump ./run-42.raw
 $> wulpus-dump -o run-42.root ./run-42.raw

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing path to input file")
	}

	if *oname != "" {
		n, err := convert(*oname, int32(*run), flag.Args()...)
		if err != nil {
			log.Fatalf("could not convert files: %+v", err)
		}
		log.Printf("converted %d frames into %q", n, *oname)
		return
	}

	for _, fname := range flag.Args() {
		err := process(os.Stdout, fname, *nsmp)
		if err != nil {
			log.Fatalf("could not dump file %q: %+v", fname, err)
		}
	}
}

func process(w io.Writer, fname string, nsmp int) error {
	wbuf := bufio.NewWriter(w)
	defer wbuf.Flush()

	src, err := record.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer src.Close()

	for i := 0; ; i++ {
		var f dongle.Frame
		err := src.Read(&f)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("could not read frame %d: %w", i, err)
		}
		lo, hi := minmax(f.Samples)
		fmt.Fprintf(wbuf, "=== frame %d ===\n", i)
		fmt.Fprintf(wbuf, "TX/RX index: % 6d\n", f.Index)
		fmt.Fprintf(wbuf, "Acquisition: % 6d\n", f.Acq)
		fmt.Fprintf(wbuf, "Samples:     % 6d (min=%5d max=%5d)\n", len(f.Samples), lo, hi)
		n := nsmp
		if n > len(f.Samples) {
			n = len(f.Samples)
		}
		if n <= 0 {
			continue
		}
		for _, v := range f.Samples[:n] {
			fmt.Fprintf(wbuf, " %5d", v)
		}
		fmt.Fprintf(wbuf, "\n")
	}

	return nil
}

func minmax(vs []int16) (lo, hi int16) {
	for i, v := range vs {
		if i == 0 || v < lo {
			lo = v
		}
		if i == 0 || v > hi {
			hi = v
		}
	}
	return lo, hi
}

func convert(oname string, run int32, fnames ...string) (int, error) {
	dst, err := record.Create(oname, run)
	if err != nil {
		return 0, fmt.Errorf("could not create output file: %w", err)
	}
	defer dst.Close()

	tot := 0
	for _, fname := range fnames {
		src, err := record.Open(fname)
		if err != nil {
			return tot, fmt.Errorf("could not open %q: %w", fname, err)
		}
		n, err := record.Copy(dst, src)
		_ = src.Close()
		tot += n
		if err != nil {
			return tot, fmt.Errorf("could not convert %q: %w", fname, err)
		}
	}

	err = dst.Close()
	if err != nil {
		return tot, fmt.Errorf("could not close output file: %w", err)
	}
	return tot, nil
}
