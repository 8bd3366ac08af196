// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"fmt"
	"io"

	"github.com/pulp-bio/wulpus/dongle"
	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/rtree"
)

const treeName = "frames"

// rootEvent is the layout of an entry of the "frames" tree.
type rootEvent struct {
	Index   uint8   `groot:"index"`
	Acq     uint16  `groot:"acq"`
	N       int32   `groot:"n"`
	Samples []int16 `groot:"samples[n]"`
}

type rootSink struct {
	f   *riofs.File
	w   rtree.Writer
	evt rootEvent
}

func createROOT(fname string) (*rootSink, error) {
	f, err := groot.Create(fname)
	if err != nil {
		return nil, fmt.Errorf("record: could not create ROOT file: %w", err)
	}

	sink := &rootSink{f: f}
	sink.w, err = rtree.NewWriter(
		f, treeName, rtree.WriteVarsFromStruct(&sink.evt),
		rtree.WithTitle("WULPUS acquisition frames"),
	)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("record: could not create ROOT tree: %w", err)
	}
	return sink, nil
}

func (sink *rootSink) Write(f dongle.Frame) error {
	sink.evt.Index = f.Index
	sink.evt.Acq = f.Acq
	sink.evt.N = int32(len(f.Samples))
	sink.evt.Samples = f.Samples

	_, err := sink.w.Write()
	if err != nil {
		return fmt.Errorf("record: could not write ROOT entry: %w", err)
	}
	return nil
}

func (sink *rootSink) Close() error {
	if sink.f == nil {
		return nil
	}
	defer func() { sink.f = nil }()

	err := sink.w.Close()
	if err != nil {
		_ = sink.f.Close()
		return fmt.Errorf("record: could not close ROOT tree: %w", err)
	}
	err = sink.f.Close()
	if err != nil {
		return fmt.Errorf("record: could not close ROOT file: %w", err)
	}
	return nil
}

type rootSource struct {
	frames []dongle.Frame
	cur    int
}

func openROOT(fname string) (*rootSource, error) {
	f, err := groot.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("record: could not open ROOT file: %w", err)
	}
	defer f.Close()

	obj, err := f.Get(treeName)
	if err != nil {
		return nil, fmt.Errorf("record: could not find ROOT tree %q: %w", treeName, err)
	}
	tree, ok := obj.(rtree.Tree)
	if !ok {
		return nil, fmt.Errorf("record: object %q is not a tree (%T)", treeName, obj)
	}

	var evt rootEvent
	r, err := rtree.NewReader(tree, []rtree.ReadVar{
		{Name: "index", Value: &evt.Index},
		{Name: "acq", Value: &evt.Acq},
		{Name: "n", Value: &evt.N},
		{Name: "samples", Value: &evt.Samples},
	})
	if err != nil {
		return nil, fmt.Errorf("record: could not create ROOT reader: %w", err)
	}
	defer r.Close()

	src := &rootSource{frames: make([]dongle.Frame, 0, tree.Entries())}
	err = r.Read(func(ctx rtree.RCtx) error {
		src.frames = append(src.frames, dongle.Frame{
			Index:   evt.Index,
			Acq:     evt.Acq,
			Samples: append([]int16(nil), evt.Samples...),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record: could not read ROOT tree: %w", err)
	}
	return src, nil
}

func (src *rootSource) Read(f *dongle.Frame) error {
	if src.cur >= len(src.frames) {
		return io.EOF
	}
	frm := src.frames[src.cur]
	src.cur++

	f.Index = frm.Index
	f.Acq = frm.Acq
	f.Samples = append(f.Samples[:0], frm.Samples...)
	return nil
}

func (src *rootSource) Close() error { return nil }
