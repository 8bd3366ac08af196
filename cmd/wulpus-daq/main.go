// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command wulpus-daq starts a TDAQ server driving a WULPUS probe through
// its USB dongle.
//
// The /config command takes the configuration to send as a string:
// empty or "default" for the built-in configuration, a JSON document,
// or the name of a configuration of the -db catalog ("last" for the most
// recent one).
// Acquired frames are published on the /frames output, encoded as raw
// records.
package main // import "github.com/pulp-bio/wulpus/cmd/wulpus-daq"

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/pulp-bio/wulpus/confdb"
	"github.com/pulp-bio/wulpus/dongle"
	"github.com/pulp-bio/wulpus/record"
	"github.com/pulp-bio/wulpus/wire"
	"github.com/sbinet/pmon"
)

func main() {
	var (
		port   = flag.String("port", "/dev/ttyACM0", "serial port of the USB dongle")
		dbname = flag.String("db", "", "name of the configuration catalog (default: none)")
		doMon  = flag.Bool("pmon", false, "enable pmon monitoring")
		doFreq = flag.Duration("freq", 1*time.Second, "pmon frequency")
	)

	cmd := flags.New()

	dev := newDAQ(func() (link, error) {
		return dongle.Open(*port, 0)
	})

	if *dbname != "" {
		db, err := confdb.Open(*dbname)
		if err != nil {
			log.Fatalf("could not open configuration catalog: %+v", err)
		}
		defer db.Close()
		dev.db = db
	}

	if *doMon {
		stop, err := monitor(cmd.Name, *doFreq)
		if err != nil {
			log.Fatalf("could not start pmon: %+v", err)
		}
		defer stop()
	}

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.OutputHandle("/frames", dev.frames)

	srv.RunHandle(dev.run)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

func monitor(name string, freq time.Duration) (func(), error) {
	if name == "" {
		name = "wulpus-daq"
	}
	p, err := pmon.Monitor(os.Getpid())
	if err != nil {
		return nil, fmt.Errorf("could not monitor process: %w", err)
	}
	f, err := os.Create(name + "-pmon.log")
	if err != nil {
		return nil, fmt.Errorf("could not create pmon log file: %w", err)
	}
	p.W = f
	p.Freq = freq

	go func() {
		err := p.Run()
		if err != nil {
			log.Printf("could not run pmon: %+v", err)
		}
	}()

	return func() {
		err := p.Kill()
		if err != nil {
			log.Printf("could not stop pmon: %+v", err)
		}
		_ = f.Close()
	}, nil
}

type link interface {
	SendConfig(cfg wire.Config) error
	SendRestart() error
	ReadFrame(f *dongle.Frame) error
	Close() error
}

type catalog interface {
	LastConfig(ctx context.Context) (string, error)
	Config(ctx context.Context, name string) (wire.Config, error)
}

type msgStream interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type daq struct {
	open func() (link, error)
	db   catalog

	mu      sync.Mutex
	dev     link
	cfg     wire.Config
	started bool
	n       int // published frames
	dropped int // frames dropped because /frames was not drained

	data chan []byte
}

func newDAQ(open func() (link, error)) *daq {
	return &daq{
		open: open,
		cfg:  wire.DefaultConfig(),
		data: make(chan []byte, 1024),
	}
}

func (dev *daq) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	src := ""
	if len(req.Body) > 0 {
		src = tdaq.NewDecoder(bytes.NewReader(req.Body)).ReadStr()
	}
	return dev.configure(ctx.Ctx, ctx.Msg, src)
}

func (dev *daq) configure(ctx context.Context, msg msgStream, src string) error {
	src = strings.TrimSpace(src)

	var cfg wire.Config
	switch {
	case src == "" || src == "default":
		cfg = wire.DefaultConfig()
	case strings.HasPrefix(src, "{"):
		cfg = wire.DefaultConfig()
		err := json.NewDecoder(strings.NewReader(src)).Decode(&cfg)
		if err != nil {
			return fmt.Errorf("could not decode JSON configuration: %w", err)
		}
	default:
		if dev.db == nil {
			return fmt.Errorf("no configuration catalog to look up %q", src)
		}
		name := src
		if name == "last" {
			v, err := dev.db.LastConfig(ctx)
			if err != nil {
				return fmt.Errorf("could not get last configuration: %w", err)
			}
			name = v
		}
		v, err := dev.db.Config(ctx, name)
		if err != nil {
			return fmt.Errorf("could not load configuration %q: %w", name, err)
		}
		cfg = v
	}

	err := cfg.Validate()
	if err != nil {
		msg.Errorf("invalid configuration: %+v", err)
		return err
	}

	dev.mu.Lock()
	dev.cfg = cfg
	dev.mu.Unlock()
	msg.Infof("configuration: %d TX/RX pairs, %d samples", len(cfg.TxConfigs), cfg.Samples)
	return nil
}

func (dev *daq) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	return dev.init(ctx.Msg)
}

func (dev *daq) init(msg msgStream) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.dev != nil {
		return nil
	}
	d, err := dev.open()
	if err != nil {
		msg.Errorf("could not open dongle: %+v", err)
		return fmt.Errorf("could not open dongle: %w", err)
	}
	dev.dev = d
	dev.n = 0
	dev.dropped = 0
	return nil
}

func (dev *daq) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	return dev.reset()
}

func (dev *daq) reset() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	dev.started = false
	dev.n = 0
	dev.dropped = 0
	dev.data = make(chan []byte, 1024)
	if dev.dev == nil {
		return nil
	}
	err := dev.dev.SendRestart()
	if err != nil {
		return fmt.Errorf("could not reset probe: %w", err)
	}
	return nil
}

func (dev *daq) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	return dev.start()
}

func (dev *daq) start() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.dev == nil {
		return fmt.Errorf("dongle not initialized")
	}
	err := dev.dev.SendConfig(dev.cfg)
	if err != nil {
		return fmt.Errorf("could not start acquisition: %w", err)
	}
	dev.started = true
	return nil
}

func (dev *daq) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	n, dropped, err := dev.stop()
	ctx.Msg.Debugf("received /stop command... -> n=%d (dropped=%d)", n, dropped)
	return err
}

func (dev *daq) stop() (n, dropped int, err error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	n, dropped = dev.n, dev.dropped
	if !dev.started {
		return n, dropped, nil
	}
	dev.started = false
	err = dev.dev.SendRestart()
	if err != nil {
		return n, dropped, fmt.Errorf("could not stop acquisition: %w", err)
	}
	return n, dropped, nil
}

func (dev *daq) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	return dev.quit()
}

func (dev *daq) quit() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	dev.started = false
	if dev.dev == nil {
		return nil
	}
	err := dev.dev.Close()
	dev.dev = nil
	if err != nil {
		return fmt.Errorf("could not close dongle: %w", err)
	}
	return nil
}

func (dev *daq) frames(ctx tdaq.Context, dst *tdaq.Frame) error {
	dev.mu.Lock()
	data := dev.data
	dev.mu.Unlock()

	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case raw := <-data:
		dst.Body = raw
	}
	return nil
}

func (dev *daq) run(ctx tdaq.Context) error {
	return dev.loop(ctx.Ctx, ctx.Msg)
}

// loop reads frames from the dongle while the acquisition is started and
// queues them, encoded as raw records, for the /frames output.
func (dev *daq) loop(ctx context.Context, msg msgStream) error {
	var (
		frm dongle.Frame
		buf = new(bytes.Buffer)
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		dev.mu.Lock()
		d, started, data := dev.dev, dev.started, dev.data
		dev.mu.Unlock()

		if !started {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		err := d.ReadFrame(&frm)
		if err != nil {
			if errors.Is(err, io.EOF) {
				msg.Infof("end of frame stream")
				dev.mu.Lock()
				dev.started = false
				dev.mu.Unlock()
				continue
			}
			msg.Errorf("could not read frame: %+v", err)
			continue
		}

		buf.Reset()
		err = record.NewEncoder(buf).Encode(&frm)
		if err != nil {
			return fmt.Errorf("could not encode frame: %w", err)
		}

		raw := append([]byte(nil), buf.Bytes()...)
		select {
		case data <- raw:
			dev.mu.Lock()
			dev.n++
			dev.mu.Unlock()
		default:
			dev.mu.Lock()
			dev.dropped++
			dev.mu.Unlock()
		}
	}
}
