// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"errors"
	"fmt"
	"io"

	"github.com/pulp-bio/wulpus/dongle"
	"go-hep.org/x/hep/lcio"
)

const (
	detector = "WULPUS"
	collName = "RF_FRAME"
)

type lcioSink struct {
	w   *lcio.Writer
	run int32
	n   int32
	raw *lcio.GenericObject
}

func createLCIO(fname string, run int32) (*lcioSink, error) {
	w, err := lcio.Create(fname)
	if err != nil {
		return nil, fmt.Errorf("record: could not create LCIO file: %w", err)
	}

	err = w.WriteRunHeader(&lcio.RunHeader{
		RunNumber: run,
		Detector:  detector,
		Descr:     "ultrasound RF frames",
		Params: lcio.Params{
			Ints: map[string][]int32{
				"FrameSamples": {dongle.FrameSamples},
			},
		},
	})
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("record: could not write LCIO run header: %w", err)
	}

	return &lcioSink{
		w:   w,
		run: run,
		raw: &lcio.GenericObject{
			Data: []lcio.GenericObjectData{{I32s: nil}},
		},
	}, nil
}

// Write stores the frame f as an LCIO event holding a generic object:
// the TX/RX index, the acquisition number, then the samples.
func (sink *lcioSink) Write(f dongle.Frame) error {
	i32s := sink.raw.Data[0].I32s[:0]
	i32s = append(i32s, int32(f.Index), int32(f.Acq))
	for _, v := range f.Samples {
		i32s = append(i32s, int32(v))
	}
	sink.raw.Data[0].I32s = i32s

	evt := lcio.Event{
		RunNumber:   sink.run,
		EventNumber: sink.n,
		Detector:    detector,
	}
	evt.Add(collName, sink.raw)

	err := sink.w.WriteEvent(&evt)
	if err != nil {
		return fmt.Errorf("record: could not write LCIO event %d: %w", sink.n, err)
	}
	sink.n++
	return nil
}

func (sink *lcioSink) Close() error {
	if sink.w == nil {
		return nil
	}
	defer func() { sink.w = nil }()

	err := sink.w.Close()
	if err != nil {
		return fmt.Errorf("record: could not close LCIO file: %w", err)
	}
	return nil
}

type lcioSource struct {
	r *lcio.Reader
}

func openLCIO(fname string) (*lcioSource, error) {
	r, err := lcio.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("record: could not open LCIO file: %w", err)
	}
	return &lcioSource{r: r}, nil
}

func (src *lcioSource) Read(f *dongle.Frame) error {
	if !src.r.Next() {
		err := src.r.Err()
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("record: could not read LCIO event: %w", err)
		}
		return io.EOF
	}

	evt := src.r.Event()
	if !evt.Has(collName) {
		return fmt.Errorf("record: LCIO event %d has no %q collection", evt.EventNumber, collName)
	}
	raw, ok := evt.Get(collName).(*lcio.GenericObject)
	if !ok || len(raw.Data) == 0 || len(raw.Data[0].I32s) < 2 {
		return fmt.Errorf("record: invalid %q collection in LCIO event %d", collName, evt.EventNumber)
	}

	i32s := raw.Data[0].I32s
	f.Index = uint8(i32s[0])
	f.Acq = uint16(i32s[1])
	f.Samples = f.Samples[:0]
	for _, v := range i32s[2:] {
		f.Samples = append(f.Samples, int16(v))
	}
	return nil
}

func (src *lcioSource) Close() error {
	return src.r.Close()
}
