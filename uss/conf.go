// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uss

import (
	"fmt"

	"github.com/pulp-bio/wulpus/internal/regs"
)

// Configure applies the pending configuration to the front-end.
// The pending configuration is consumed on success.
func (dev *Device) Configure() error {
	if !dev.us.updated {
		return ErrNotUpdated
	}
	err := dev.configure()
	if err != nil {
		return err
	}
	dev.us.updated = false
	return nil
}

// RecoverPLL resets the front-end after a PLL unlock and re-applies the
// current configuration.
func (dev *Device) RecoverPLL() error {
	b := dev.bus
	b.Clear16(regs.HSPLLIMSC, regs.PLLUNLOCK)
	b.Set16(regs.UUPSCTL, regs.USSSWRST)
	b.Clear16(regs.UUPSCTL, regs.USSSWRST)

	err := dev.configure()
	if err != nil {
		return fmt.Errorf("uss: could not recover from PLL unlock: %w", err)
	}
	return nil
}

func (dev *Device) configure() error {
	var (
		b   = dev.bus
		cfg = &dev.us.cur
	)

	busy := b.R16(regs.UUPSCTL)&regs.USS_BUSY != 0
	if err := b.Err(); err != nil {
		return fmt.Errorf("uss: could not read power supervisor state: %w", err)
	}
	if busy {
		return ErrBusy
	}

	pll, err := pllCtl(cfg.PLLOut, cfg.XtalFreq)
	if err != nil {
		return err
	}
	lper, hper, err := ppgPeriods(cfg.PLLOut, cfg.PulseFreq, cfg.DutyCycle)
	if err != nil {
		return err
	}

	b.W16(regs.UUPSCTL, regs.ASQEN)
	b.W16(regs.HSPLLCTL, pll)

	xtl := uint16(cfg.XtalType)
	if !cfg.PLLOutputOn {
		xtl |= regs.XTOUTOFF
	}
	b.W16(regs.HSPLLUSSXTLCTL, xtl)

	b.W16(regs.SAPH_AKEY, regs.SAPH_KEY)
	b.Set16(regs.SAPH_ATACTL, regs.UNLOCK)

	b.Clear16(regs.SAPH_AMCNF, regs.BIMP_3)
	switch cfg.BiasImp {
	case BiasImp500Ohm:
		b.Set16(regs.SAPH_AMCNF, regs.BIMP_0)
	case BiasImp900Ohm:
		b.Set16(regs.SAPH_AMCNF, regs.BIMP_1)
	case BiasImp1500Ohm:
		b.Set16(regs.SAPH_AMCNF, regs.BIMP_2)
	case BiasImp2950Ohm:
		b.Set16(regs.SAPH_AMCNF, regs.BIMP_3)
	}

	switch cfg.ChargePump {
	case ChargePumpAlwaysOn:
		b.Set16(regs.SAPH_AMCNF, regs.CPEO)
	case ChargePumpNormal:
		b.Clear16(regs.SAPH_AMCNF, regs.CPEO)
	}

	b.Clear16(regs.SAPH_ATACTL, regs.UNLOCK)

	b.Clear16(regs.SAPH_AASCTL0, regs.ASQTEN)
	b.Clear16(regs.SAPH_APGCTL, regs.PPGEN)

	dev.confPPG(lper, hper)

	// channel 1 excitation, channel 0 reception.
	b.W16(regs.SAPH_ABCTL, regs.ASQBSC_1|regs.EXCBIAS_2|regs.CH1EBSW|regs.PGABSW)
	b.W16(regs.SAPH_AICTL0, regs.DUMEN|regs.MUXCTL|regs.MUXSEL_0)
	b.W16(regs.SAPH_AASCTL0, regs.TRIGSEL_1|regs.ASQCHSEL_1)
	b.W16(regs.SAPH_AASCTL1, 0)

	b.W16(regs.SAPH_AAPOL, uint16(cfg.Polarity))
	switch cfg.Pause {
	case PauseLow:
		b.W16(regs.SAPH_AAPHIZ, 0)
		b.W16(regs.SAPH_AAPLEV, 0)
	case PauseHigh:
		b.W16(regs.SAPH_AAPHIZ, 0)
		b.W16(regs.SAPH_AAPLEV, 0x000F)
	default:
		b.W16(regs.SAPH_AAPHIZ, 0x000F)
		b.W16(regs.SAPH_AAPLEV, 0)
	}

	b.W16(regs.SAPH_AATM_A, cfg.Marks.StartPPG)
	b.W16(regs.SAPH_AATM_B, cfg.Marks.TurnOnADC)
	b.W16(regs.SAPH_AATM_C, cfg.Marks.StartPGABias)
	b.W16(regs.SAPH_AATM_D, cfg.Marks.StartADC)
	b.W16(regs.SAPH_AATM_E, cfg.Marks.RestartCapt)
	b.W16(regs.SAPH_AATM_F, cfg.Marks.CaptTimeout)

	b.Set16(regs.SAPH_AASCTL0, regs.ASQTEN)

	b.W16(regs.SAPH_AKEY, 0)
	b.W16(regs.SAPH_AKEY, regs.SAPH_KEY)
	b.Set16(regs.SAPH_ATACTL, regs.UNLOCK)

	b.Clear16(regs.UUPSCTL, regs.LBHDEL_3)
	switch cfg.BiasDelay {
	case BiasDelay100us:
		b.Set16(regs.SAPH_AMCNF, regs.LPBE)
		b.Set16(regs.UUPSCTL, regs.LBHDEL_1)
	case BiasDelay200us:
		b.Set16(regs.SAPH_AMCNF, regs.LPBE)
		b.Set16(regs.UUPSCTL, regs.LBHDEL_2)
	case BiasDelay300us:
		b.Set16(regs.SAPH_AMCNF, regs.LPBE)
		b.Set16(regs.UUPSCTL, regs.LBHDEL_3)
	default:
		b.Clear16(regs.SAPH_AMCNF, regs.LPBE)
		b.Set16(regs.UUPSCTL, regs.LBHDEL_0)
	}

	b.Clear16(regs.SAPH_ATACTL, regs.UNLOCK)
	b.W16(regs.SAPH_AKEY, 0)

	b.Clear16(regs.SDHSCTL3, regs.TRIGEN)
	b.W16(regs.SDHSCTL0, regs.TRGSRC|regs.DFMSEL_0|regs.DALGN_0|regs.AUTOSSDIS)
	b.W16(regs.SDHSCTL1, cfg.OverSampling)
	b.W16(regs.SDHSCTL2, regs.DTCOFF_0|(cfg.SampleSize-1))
	b.W16(regs.SDHSCTL6, cfg.RxGain)
	b.W16(regs.SDHSCTL7, modOpt(cfg.PLLOut))
	b.W16(regs.SDHSCTL4, 0)
	b.W16(regs.SDHSCTL5, 0)
	b.Clear16(regs.SDHSCTL4, regs.SDHSON)

	dev.rearmSDHS()

	if err := b.Err(); err != nil {
		return fmt.Errorf("uss: could not configure ultrasound subsystem: %w", err)
	}
	return nil
}

// rearmSDHS disables the ADC trigger, points the data transfer controller
// past the measurement header and re-enables the trigger.
func (dev *Device) rearmSDHS() {
	b := dev.bus
	b.Clear16(regs.SDHSCTL3, regs.TRIGEN)
	b.W16(regs.SDHSDTCDA, dtcda)
	b.Set16(regs.SDHSCTL3, regs.TRIGEN)
}

func (dev *Device) confPPG(lper, hper uint16) {
	var (
		b   = dev.bus
		cfg = &dev.us.cur
	)

	b.W16(regs.SAPH_AOCTL1, uint16(cfg.Drive)<<1+uint16(cfg.Drive))
	b.W16(regs.SAPH_APGC, cfg.NumPulses|cfg.NumStopPulses<<8)
	b.W16(regs.SAPH_AXPGCTL, regs.ETY_0|regs.XMOD_0)
	b.W16(regs.SAPH_APGLPER, lper)
	b.W16(regs.SAPH_APGHPER, hper)

	b.Set16(regs.SAPH_APGCTL, regs.TRSEL_1|regs.PGSEL_1)
	b.Set16(regs.SAPH_AOSEL, regs.PCH0SEL_1|regs.PCH1SEL_1)
	b.Set16(regs.SAPH_APGCTL, regs.PPGEN)
}

// pllCtl returns the HSPLLCTL value producing out from the crystal xtal.
func pllCtl(out PLLOutput, xtal XtalFreq) (uint16, error) {
	m := uint16(out)
	switch xtal {
	case Xtal4MHz:
		m >>= 1
	case Xtal8MHz:
		m >>= 2
	default:
		return 0, fmt.Errorf("%w: %d MHz", ErrXtalFreq, xtal)
	}
	m--
	v := m << regs.PLLM_OFS
	if xtal == Xtal8MHz {
		v |= regs.PLLINFREQ
	}
	return v, nil
}

// ppgPeriods returns the low and high phase durations, in PLL cycles,
// of a pulse at freq Hz with the given duty cycle (percent).
func ppgPeriods(out PLLOutput, freq uint32, duty uint16) (lper, hper uint16, err error) {
	if freq == 0 {
		return 0, 0, fmt.Errorf("%w: null pulse frequency", ErrPulseFreq)
	}
	var (
		hspll = uint64(out) * 1000000
		pf    = uint64(freq)
	)

	num := hspll * uint64(duty)
	if num < pf>>1 {
		return 0, 0, fmt.Errorf("%w: freq=%d Hz, duty=%d%%", ErrPulseFreq, freq, duty)
	}

	per := (hspll + pf>>1) / pf
	tmp := (num - pf>>1) / pf
	hp := (tmp + 99) / 100

	if hp > 255 || hp > per || per-hp > 255 {
		return 0, 0, fmt.Errorf(
			"%w: freq=%d Hz, duty=%d%% (period=%d, high=%d)",
			ErrPulseFreq, freq, duty, per, hp,
		)
	}
	return uint16(per - hp), uint16(hp), nil
}

// modOpt returns the SDHS modulator optimization for the PLL output.
func modOpt(out PLLOutput) uint16 {
	switch {
	case out >= PLLOut77MHz && out <= PLLOut80MHz:
		return 0xC
	case out >= PLLOut74MHz && out <= PLLOut76MHz:
		return 0xD
	case out >= PLLOut71MHz && out <= PLLOut73MHz:
		return 0xE
	default:
		return 0xF
	}
}
