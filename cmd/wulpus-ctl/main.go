// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command wulpus-ctl is an interactive shell to configure a WULPUS probe
// through its USB dongle and record the acquired frames.
//
// Usage: wulpus-ctl [OPTIONS]
//
// Example:
//
//	$> wulpus-ctl -port /dev/ttyACM0 -db wulpus
//	wulpus> load db last
//	wulpus> send
//	wulpus> record run-042.root 1000
//	wulpus> quit
//
// E-mail alerts are sent when a recording stalls. The SMTP server and
// credentials are read from the MAIL_USERNAME, MAIL_PASSWORD, MAIL_SERVER,
// MAIL_PORT and MAIL_TGTS environment variables.
package main // import "github.com/pulp-bio/wulpus/cmd/wulpus-ctl"

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/pulp-bio/wulpus"
	"github.com/pulp-bio/wulpus/confdb"
	"github.com/pulp-bio/wulpus/dongle"
)

func main() {
	log.SetPrefix("wulpus-ctl: ")
	log.SetFlags(0)

	var (
		port    = flag.String("port", "/dev/ttyACM0", "serial port of the USB dongle")
		timeout = flag.Duration("timeout", 3*time.Second, "serial read timeout")
		dbname  = flag.String("db", "", "name of the configuration catalog (default: none)")
		freq    = flag.Duration("freq", 30*time.Second, "stall monitoring interval")
		hist    = flag.String("hist", filepath.Join(os.TempDir(), ".wulpus-ctl.history"), "path to shell history")
		vers    = flag.Bool("version", false, "print version and exit")
	)

	flag.Parse()

	if *vers {
		v, sum := wulpus.Version()
		fmt.Printf("wulpus-ctl %s %s\n", v, sum)
		return
	}

	err := run(*port, *timeout, *dbname, *freq, *hist)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(port string, timeout time.Duration, dbname string, freq time.Duration, hist string) error {
	dev, err := dongle.Open(port, timeout)
	if err != nil {
		return fmt.Errorf("could not open dongle: %w", err)
	}
	defer dev.Close()

	sh := newShell(dev, os.Stdout, freq)
	if dbname != "" {
		db, err := confdb.Open(dbname)
		if err != nil {
			return fmt.Errorf("could not open configuration catalog: %w", err)
		}
		defer db.Close()
		sh.db = db
	}

	term := liner.NewLiner()
	defer term.Close()

	term.SetCtrlCAborts(true)
	term.SetCompleter(sh.complete)

	if f, err := os.Open(hist); err == nil {
		_, _ = term.ReadHistory(f)
		f.Close()
	}
	defer func() {
		f, err := os.Create(hist)
		if err != nil {
			log.Printf("could not save history: %+v", err)
			return
		}
		defer f.Close()
		_, _ = term.WriteHistory(f)
	}()

	for {
		line, err := term.Prompt("wulpus> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(sh.w)
				return nil
			}
			return fmt.Errorf("could not read command: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		term.AppendHistory(line)

		err = sh.exec(line)
		switch {
		case errors.Is(err, errQuit):
			return nil
		case err != nil:
			log.Printf("%+v", err)
		}
	}
}
