// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"crypto/tls"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	mail "gopkg.in/gomail.v2"
)

const maxAlerts = 5

// monitor checks that a recording keeps receiving frames.
type monitor struct {
	fname  string
	freq   time.Duration
	alerts int // number of alerts sent so far
	send   func(subject, body string)
}

func newMonitor(fname string, freq time.Duration, send func(subject, body string)) *monitor {
	return &monitor{fname: fname, freq: freq, send: send}
}

func (mon *monitor) run(count *atomic.Int64, quit chan struct{}) {
	if mon.freq <= 0 {
		return
	}

	tick := time.NewTicker(mon.freq)
	defer tick.Stop()

	ref := count.Load()
	for {
		select {
		case <-quit:
			return
		case <-tick.C:
			cur := count.Load()
			mon.compare(ref, cur)
			ref = cur
		}
	}
}

func (mon *monitor) compare(ref, cur int64) {
	if ref != cur {
		return
	}
	log.Printf("file %q didn't receive frames in the last %v (frames=%d)",
		mon.fname, mon.freq, cur,
	)
	mon.alerts++
	if mon.alerts < maxAlerts && mon.send != nil {
		mon.send(
			fmt.Sprintf("[wulpus-ctl] recording alert: %q", mon.fname),
			fmt.Sprintf("file: %q\nframes: %d\nfreq: %v", mon.fname, cur, mon.freq),
		)
	}
}

var (
	alertMailUsr  = os.Getenv("MAIL_USERNAME")
	alertMailPwd  = os.Getenv("MAIL_PASSWORD")
	alertMailSrv  = os.Getenv("MAIL_SERVER")
	alertMailPort = atoi(os.Getenv("MAIL_PORT"))
	alertMailTgts = splitTargets(os.Getenv("MAIL_TGTS"))
)

func alertMail(subject, body string) {
	if alertMailUsr == "" || alertMailPwd == "" ||
		alertMailSrv == "" || alertMailPort == 0 ||
		len(alertMailTgts) == 0 {
		log.Printf("could not send mail alert: missing credentials")
		return
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", alertMailUsr)
	msg.SetHeader("Bcc", alertMailTgts...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	dial := mail.NewDialer(alertMailSrv, alertMailPort, alertMailUsr, alertMailPwd)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	err := dial.DialAndSend(msg)
	if err != nil {
		log.Printf("could not send mail alert: %+v", err)
	}
}

func splitTargets(s string) []string {
	var tgts []string
	for _, v := range strings.Split(s, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			tgts = append(tgts, v)
		}
	}
	return tgts
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
