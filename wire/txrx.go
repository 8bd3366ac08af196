// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
)

// MaxChannel is the highest transducer channel of the HV multiplexer.
const MaxChannel = 7

// TxRxConfig builds the HV multiplexer switch words of an acquisition
// rotation. Channel n receives through switch 2n and transmits through
// switch 2n+1.
type TxRxConfig struct {
	tx []uint16
	rx []uint16
}

// Add appends a configuration transmitting on the tx channels and
// receiving on the rx channels.
func (conf *TxRxConfig) Add(tx, rx []int) error {
	if len(conf.tx) >= MaxTxRxConfigs {
		return fmt.Errorf("wire: maximum number of TX/RX configurations is %d", MaxTxRxConfigs)
	}
	txw, err := switchWord(tx, 1)
	if err != nil {
		return fmt.Errorf("wire: invalid TX channels: %w", err)
	}
	rxw, err := switchWord(rx, 0)
	if err != nil {
		return fmt.Errorf("wire: invalid RX channels: %w", err)
	}
	conf.tx = append(conf.tx, txw)
	conf.rx = append(conf.rx, rxw)
	return nil
}

func switchWord(chans []int, ofs int) (uint16, error) {
	var w uint16
	for _, ch := range chans {
		if ch < 0 || ch > MaxChannel {
			return 0, fmt.Errorf("channel %d out of range [0, %d]", ch, MaxChannel)
		}
		w |= 1 << (2*ch + ofs)
	}
	return w, nil
}

// Len returns the number of configurations.
func (conf *TxRxConfig) Len() int { return len(conf.tx) }

// Tx returns the TX switch words.
func (conf *TxRxConfig) Tx() []uint16 { return append([]uint16(nil), conf.tx...) }

// Rx returns the RX switch words.
func (conf *TxRxConfig) Rx() []uint16 { return append([]uint16(nil), conf.rx...) }

// Channels returns the TX and RX channels selected by the switch words.
func Channels(tx, rx uint16) (txs, rxs []int) {
	for ch := 0; ch <= MaxChannel; ch++ {
		if tx&(1<<(2*ch+1)) != 0 {
			txs = append(txs, ch)
		}
		if rx&(1<<(2*ch)) != 0 {
			rxs = append(rxs, ch)
		}
	}
	return txs, rxs
}
