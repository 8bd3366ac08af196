// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uss

import (
	"sync/atomic"
)

// flags is a lock-free event bit set.
type flags struct {
	v atomic.Uint32
}

func (f *flags) set(mask Event) {
	for {
		old := f.v.Load()
		if f.v.CompareAndSwap(old, old|uint32(mask)) {
			return
		}
	}
}

func (f *flags) clear(mask Event) {
	for {
		old := f.v.Load()
		if f.v.CompareAndSwap(old, old&^uint32(mask)) {
			return
		}
	}
}

func (f *flags) isSet(mask Event) bool {
	return f.v.Load()&uint32(mask) != 0
}

func (f *flags) load() Event {
	return Event(f.v.Load())
}
