// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestRunErrors(t *testing.T) {
	tmp := t.TempDir()
	irq := filepath.Join(tmp, "irq")
	err := os.WriteFile(irq, nil, 0644)
	if err != nil {
		t.Fatalf("could not create interrupt stream: %+v", err)
	}

	for _, tc := range []struct {
		name   string
		devmem string
		irq    string
	}{
		{"no-irq", filepath.Join(tmp, "mem"), filepath.Join(tmp, "no-such-irq")},
		{"no-mem", filepath.Join(tmp, "no-such-mem"), irq},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := run(context.Background(), tc.devmem, tc.irq, false)
			if err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}
