// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pulp-bio/wulpus/dongle"
	"github.com/pulp-bio/wulpus/record"
	"github.com/pulp-bio/wulpus/wire"
)

var errQuit = errors.New("quit")

type link interface {
	SendConfig(cfg wire.Config) error
	SendRestart() error
	ReadFrame(f *dongle.Frame) error
}

type catalog interface {
	Configs(ctx context.Context) ([]string, error)
	LastConfig(ctx context.Context) (string, error)
	Config(ctx context.Context, name string) (wire.Config, error)
}

type shell struct {
	dev link
	db  catalog
	w   io.Writer

	cfg  wire.Config
	run  int32 // run number of the next recording
	freq time.Duration

	alert func(subject, body string)
}

func newShell(dev link, w io.Writer, freq time.Duration) *shell {
	return &shell{
		dev:   dev,
		w:     w,
		cfg:   wire.DefaultConfig(),
		freq:  freq,
		alert: alertMail,
	}
}

type command struct {
	help string
	run  func(sh *shell, args []string) error
}

var cmds map[string]command

func init() {
	cmds = map[string]command{
		"help":    {"help: list commands", (*shell).cmdHelp},
		"load":    {"load default|json FILE|db NAME|db last: load a configuration", (*shell).cmdLoad},
		"save":    {"save FILE: save the configuration as JSON", (*shell).cmdSave},
		"show":    {"show: display the configuration", (*shell).cmdShow},
		"list":    {"list: list the configurations of the catalog", (*shell).cmdList},
		"set":     {"set FIELD VALUE: modify a configuration field", (*shell).cmdSet},
		"txrx":    {"txrx clear|add TX RX: edit the TX/RX channel rotation (ex: txrx add 0,1 2,3)", (*shell).cmdTxRx},
		"send":    {"send: send the configuration to the probe", (*shell).cmdSend},
		"restart": {"restart: stop the acquisition", (*shell).cmdRestart},
		"record":  {"record FILE [N]: record N frames (.root, .slcio or raw)", (*shell).cmdRecord},
		"quit":    {"quit: exit the shell", (*shell).cmdQuit},
		"exit":    {"exit: exit the shell", (*shell).cmdQuit},
	}
}

func (sh *shell) exec(line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	cmd, ok := cmds[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}
	return cmd.run(sh, args[1:])
}

func (sh *shell) complete(line string) []string {
	var out []string
	for name := range cmds {
		if strings.HasPrefix(name, line) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (sh *shell) cmdHelp(args []string) error {
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(sh.w, "  %s\n", cmds[name].help)
	}
	return nil
}

func (sh *shell) cmdQuit(args []string) error {
	return errQuit
}

func (sh *shell) cmdLoad(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing configuration source")
	}
	switch args[0] {
	case "default":
		sh.cfg = wire.DefaultConfig()
		return nil

	case "json":
		if len(args) != 2 {
			return fmt.Errorf("missing JSON file name")
		}
		f, err := os.Open(args[1])
		if err != nil {
			return fmt.Errorf("could not open configuration file: %w", err)
		}
		defer f.Close()

		cfg := wire.DefaultConfig()
		err = json.NewDecoder(f).Decode(&cfg)
		if err != nil {
			return fmt.Errorf("could not decode configuration file %q: %w", args[1], err)
		}
		err = cfg.Validate()
		if err != nil {
			return fmt.Errorf("invalid configuration file %q: %w", args[1], err)
		}
		sh.cfg = cfg
		return nil

	case "db":
		if sh.db == nil {
			return fmt.Errorf("no configuration catalog")
		}
		if len(args) != 2 {
			return fmt.Errorf("missing configuration name")
		}
		ctx := context.Background()
		name := args[1]
		if name == "last" {
			v, err := sh.db.LastConfig(ctx)
			if err != nil {
				return fmt.Errorf("could not get last configuration: %w", err)
			}
			name = v
		}
		cfg, err := sh.db.Config(ctx, name)
		if err != nil {
			return fmt.Errorf("could not load configuration %q: %w", name, err)
		}
		sh.cfg = cfg
		fmt.Fprintf(sh.w, "loaded configuration %q\n", name)
		return nil
	}
	return fmt.Errorf("unknown configuration source %q", args[0])
}

func (sh *shell) cmdSave(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("missing JSON file name")
	}
	raw, err := json.MarshalIndent(sh.cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode configuration: %w", err)
	}
	err = os.WriteFile(args[0], append(raw, '\n'), 0644)
	if err != nil {
		return fmt.Errorf("could not save configuration: %w", err)
	}
	return nil
}

func (sh *shell) cmdShow(args []string) error {
	cfg := sh.cfg
	fmt.Fprintf(sh.w, "dcdc_turnon:     %d\n", cfg.DcDcTurnOn)
	fmt.Fprintf(sh.w, "meas_period:     %d\n", cfg.MeasPeriod)
	fmt.Fprintf(sh.w, "trans_freq:      %d Hz\n", cfg.TransFreq)
	fmt.Fprintf(sh.w, "pulse_freq:      %d Hz\n", cfg.PulseFreq)
	fmt.Fprintf(sh.w, "num_pulses:      %d\n", cfg.NumPulses)
	fmt.Fprintf(sh.w, "over_sampl_rate: %d\n", cfg.OverSampling)
	fmt.Fprintf(sh.w, "samples_size:    %d\n", cfg.Samples)
	fmt.Fprintf(sh.w, "rx_gain:         %.1f dB\n", cfg.RxGain)
	fmt.Fprintf(sh.w, "num_acqs:        %d\n", cfg.NumAcqs)
	for i := range cfg.TxConfigs {
		txs, rxs := wire.Channels(cfg.TxConfigs[i], cfg.RxConfigs[i])
		fmt.Fprintf(sh.w, "txrx[%02d]:        tx=%v rx=%v\n", i, txs, rxs)
	}
	return nil
}

func (sh *shell) cmdList(args []string) error {
	if sh.db == nil {
		return fmt.Errorf("no configuration catalog")
	}
	names, err := sh.db.Configs(context.Background())
	if err != nil {
		return fmt.Errorf("could not list configurations: %w", err)
	}
	for _, name := range names {
		fmt.Fprintf(sh.w, "  %s\n", name)
	}
	return nil
}

func (sh *shell) cmdSet(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: set FIELD VALUE")
	}
	cfg := sh.cfg
	switch args[0] {
	case "rx_gain":
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", args[1], err)
		}
		cfg.RxGain = v
	default:
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", args[1], err)
		}
		dst := map[string]*int{
			"dcdc_turnon":     &cfg.DcDcTurnOn,
			"meas_period":     &cfg.MeasPeriod,
			"trans_freq":      &cfg.TransFreq,
			"pulse_freq":      &cfg.PulseFreq,
			"num_pulses":      &cfg.NumPulses,
			"over_sampl_rate": &cfg.OverSampling,
			"samples_size":    &cfg.Samples,
			"num_acqs":        &cfg.NumAcqs,
		}[args[0]]
		if dst == nil {
			return fmt.Errorf("unknown configuration field %q", args[0])
		}
		*dst = v
	}
	err := cfg.Validate()
	if err != nil {
		return err
	}
	sh.cfg = cfg
	return nil
}

func (sh *shell) cmdTxRx(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: txrx clear|add TX RX")
	}
	switch args[0] {
	case "clear":
		sh.cfg.TxConfigs = nil
		sh.cfg.RxConfigs = nil
		return nil
	case "add":
		if len(args) != 3 {
			return fmt.Errorf("usage: txrx add TX RX")
		}
		tx, err := parseChannels(args[1])
		if err != nil {
			return fmt.Errorf("invalid TX channels: %w", err)
		}
		rx, err := parseChannels(args[2])
		if err != nil {
			return fmt.Errorf("invalid RX channels: %w", err)
		}
		var txrx wire.TxRxConfig
		err = txrx.Add(tx, rx)
		if err != nil {
			return err
		}
		if len(sh.cfg.TxConfigs) >= wire.MaxTxRxConfigs {
			return fmt.Errorf("too many TX/RX configurations (max=%d)", wire.MaxTxRxConfigs)
		}
		sh.cfg.TxConfigs = append(sh.cfg.TxConfigs, txrx.Tx()...)
		sh.cfg.RxConfigs = append(sh.cfg.RxConfigs, txrx.Rx()...)
		return nil
	}
	return fmt.Errorf("unknown txrx command %q", args[0])
}

func parseChannels(s string) ([]int, error) {
	var chans []int
	for _, v := range strings.Split(s, ",") {
		if v == "" {
			continue
		}
		ch, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		chans = append(chans, ch)
	}
	return chans, nil
}

func (sh *shell) cmdSend(args []string) error {
	err := sh.dev.SendConfig(sh.cfg)
	if err != nil {
		return fmt.Errorf("could not send configuration: %w", err)
	}
	return nil
}

func (sh *shell) cmdRestart(args []string) error {
	err := sh.dev.SendRestart()
	if err != nil {
		return fmt.Errorf("could not send restart: %w", err)
	}
	return nil
}

func (sh *shell) cmdRecord(args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return fmt.Errorf("usage: record FILE [N]")
	}
	fname := args[0]
	n := sh.cfg.NumAcqs
	if len(args) == 2 {
		v, err := strconv.Atoi(args[1])
		if err != nil || v <= 0 {
			return fmt.Errorf("invalid number of frames %q", args[1])
		}
		n = v
	}

	sink, err := record.Create(fname, sh.run)
	if err != nil {
		return fmt.Errorf("could not create output file: %w", err)
	}
	defer sink.Close()
	sh.run++

	var (
		count atomic.Int64
		done  = make(chan struct{})
		mon   = newMonitor(fname, sh.freq, sh.alert)
	)
	go mon.run(&count, done)
	defer close(done)

	var frm dongle.Frame
	for i := 0; i < n; i++ {
		err = sh.dev.ReadFrame(&frm)
		if err != nil {
			return fmt.Errorf("could not read frame %d: %w", i, err)
		}
		err = sink.Write(frm)
		if err != nil {
			return fmt.Errorf("could not record frame %d: %w", i, err)
		}
		count.Add(1)
	}

	err = sink.Close()
	if err != nil {
		return fmt.Errorf("could not close output file: %w", err)
	}
	fmt.Fprintf(sh.w, "recorded %d frames into %q (%v)\n", n, fname, record.FormatOf(fname))
	return nil
}
