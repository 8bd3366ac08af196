// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uss

import (
	"fmt"

	"github.com/pulp-bio/wulpus/internal/regs"
)

// Trigger powers up the front-end and runs one acquisition.
// On success, the samples are in the result memory, after the
// measurement header.
//
// After ErrDebugAbort, the front-end is left powered and the crystal
// enabled.
func (dev *Device) Trigger() error {
	b := dev.bus

	b.W16(regs.SAPH_AKEY, regs.SAPH_KEY)
	b.Clear16(regs.SAPH_AASCTL1, regs.STDBY)
	b.Set16(regs.SAPH_AASCTL1, regs.ESOFF)

	b.Set16(regs.HSPLLUSSXTLCTL, regs.USSXTEN)

	b.W16(regs.SAPH_AICR, regs.DATAERR|regs.TMFTO|regs.SEQDN|regs.PNGDN)
	b.W16(regs.SDHSICR, regs.WINLO|regs.WINHI|regs.DTRDY|regs.SSTRG|regs.ACQDONE|regs.OVF)
	b.W16(regs.UUPSICR, regs.PTMOUT|regs.STPBYDB)
	b.W16(regs.HSPLLICR, regs.PLLUNLOCK)
	dev.evts.clear(AllEvents)

	b.Set16(regs.UUPSIMSC, regs.PTMOUT|regs.STPBYDB)
	b.Set16(regs.HSPLLIMSC, regs.PLLUNLOCK)
	b.Set16(regs.SAPH_AIMSC, regs.DATAERR|regs.TMFTO|regs.SEQDN)
	b.Set16(regs.SDHSICR, regs.ISTOP)

	// physical channel 0 for both excitation and reception.
	// the HV multiplexer selects the transducer elements.
	b.Clear16(regs.SAPH_ABCTL, regs.CH1EBSW|regs.CH0EBSW)
	b.Clear16(regs.SAPH_AICTL0, regs.MUXSEL_15)
	b.W16(regs.SAPH_AASCTL0, regs.TRIGSEL_0|regs.ASQTEN)
	b.Clear16(regs.SAPH_ABCTL, regs.ASQBSC)
	b.Set16(regs.SAPH_ABCTL, regs.PGABSW)
	b.Set16(regs.SAPH_AASCTL1, regs.CHOWN)
	b.Set16(regs.SAPH_AICTL0, regs.MUXSEL_0)

	err := dev.TimerSlowDelay(delaySettle, LPM3)
	if err != nil {
		return fmt.Errorf("uss: could not trigger acquisition: %w", err)
	}

	for n := 0; b.R16(regs.HSPLLUSSXTLCTL)&regs.OSCSTATE_1 != regs.OSCSTATE_1; n++ {
		if n > maxPollRetries {
			b.Clear16(regs.HSPLLUSSXTLCTL, regs.USSXTEN)
			return ErrXtalTimeout
		}
		err = dev.TimerSlowDelay(delayPoll, LPM3)
		if err != nil {
			return fmt.Errorf("uss: could not poll crystal oscillator: %w", err)
		}
	}

	b.Set16(regs.UUPSCTL, regs.USSPWRUP)
	for n := 0; b.R16(regs.UUPSCTL)&regs.UPSTATE_3 != regs.UPSTATE_3; n++ {
		if n > maxPollRetries {
			b.Set16(regs.UUPSCTL, regs.USSPWRDN)
			return ErrPowerUpTimeout
		}
		err = dev.TimerSlowDelay(delayPoll, LPM3)
		if err != nil {
			return fmt.Errorf("uss: could not poll power supervisor: %w", err)
		}
	}

	dev.StartTimerFast()
	if err := b.Err(); err != nil {
		return fmt.Errorf("uss: could not start fast timer: %w", err)
	}

	dev.WaitEvent(SeqAcqDone|UUPSDebug|PLLUnlock, false, LPM0)

	switch {
	case dev.evts.isSet(PLLUnlock):
		b.Set16(regs.UUPSCTL, regs.USSPWRDN)
		return ErrPLLUnlock
	case dev.evts.isSet(UUPSDebug):
		return ErrDebugAbort
	}

	b.Set16(regs.UUPSCTL, regs.USSPWRDN)
	b.Clear16(regs.HSPLLUSSXTLCTL, regs.USSXTEN)
	b.Clear16(regs.SDHSCTL4, regs.SDHSON)
	dev.rearmSDHS()

	if err := b.Err(); err != nil {
		return fmt.Errorf("uss: could not power down after acquisition: %w", err)
	}
	return nil
}
