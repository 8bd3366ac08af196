// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wulpus holds code for the WULPUS wearable ultrasound probe:
// the acquisition core running on the probe MCU and the host tools
// driving it through the USB dongle.
//
// The probe side lives in packages uss (ultrasound subsystem driver)
// and probe (acquisition state machine); the host side in packages wire
// (configuration packets and frame headers), dongle (serial link),
// record (frame storage) and confdb (configuration catalog).
package wulpus // import "github.com/pulp-bio/wulpus"

import (
	"fmt"
	"runtime/debug"
)

const modPath = "github.com/pulp-bio/wulpus"

// Version returns the version of wulpus and its checksum.
// The returned values are only valid in binaries built with module support.
func Version() (version, sum string) {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	return versionOf(b)
}

func versionOf(b *debug.BuildInfo) (version, sum string) {
	if b == nil {
		return "", ""
	}

	if b.Main.Path == modPath {
		return b.Main.Version, b.Main.Sum
	}

	for _, m := range b.Deps {
		if m.Path != modPath {
			continue
		}
		if m.Replace != nil {
			switch {
			case m.Replace.Version != "" && m.Replace.Path != "":
				return fmt.Sprintf("%s %s", m.Replace.Path, m.Replace.Version), m.Replace.Sum
			case m.Replace.Version != "":
				return m.Replace.Version, m.Replace.Sum
			case m.Replace.Path != "":
				return m.Replace.Path, m.Replace.Sum
			default:
				return m.Version + "*", ""
			}
		}
		return m.Version, m.Sum
	}
	return "", ""
}
