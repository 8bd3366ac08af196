// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package confdb provides access to the catalog of named acquisition
// configurations of WULPUS probes.
package confdb // import "github.com/pulp-bio/wulpus/confdb"

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pulp-bio/wulpus/wire"
)

const (
	host    = "localhost"
	timeout = 5 * time.Second
)

var (
	usr = "username"
	pwd = "s3cr3t"

	drvName = "mysql"
)

// ErrNoConfig is returned when a configuration could not be found.
var ErrNoConfig = errors.New("confdb: no such configuration")

// DB exposes convenience methods to retrieve acquisition configurations
// from the catalog.
type DB struct {
	db   *sql.DB
	name string // name of the catalog database
}

// Open opens a connection to the catalog database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("confdb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("confdb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// Configs returns the names of all the configurations in the catalog.
func (db *DB) Configs(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var names []string
	rows, err := db.db.QueryContext(ctx, "SELECT name FROM configs ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("confdb: could not query configs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		err = rows.Scan(&name)
		if err != nil {
			return nil, fmt.Errorf("confdb: could not scan config name: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("confdb: could not scan db for configs: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("confdb: context error while retrieving configs: %w", err)
	}

	return names, nil
}

// LastConfig returns the name of the most recent configuration.
func (db *DB) LastConfig(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	name := ""
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT name FROM configs ORDER BY datetime DESC LIMIT 1",
	)
	if err != nil {
		return name, fmt.Errorf("confdb: could not query last config: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&name)
		if err != nil {
			return name, fmt.Errorf("confdb: could not get last config value: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return name, fmt.Errorf("confdb: could not scan db for last config: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return name, fmt.Errorf("confdb: context error while retrieving last config: %w", err)
	}

	if name == "" {
		return name, ErrNoConfig
	}

	return name, nil
}

// Config returns the validated configuration named name.
func (db *DB) Config(ctx context.Context, name string) (wire.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cfg wire.Config
	rows, err := db.db.QueryContext(
		ctx,
		`
SELECT
	configs.dcdc_turnon, configs.meas_period,
	configs.trans_freq, configs.pulse_freq, configs.num_pulses,
	configs.over_sampl_rate, configs.samples_size, configs.rx_gain,
	configs.start_hvmuxrx, configs.start_ppg, configs.turnon_adc,
	configs.start_pgainbias, configs.start_adcsampl,
	configs.restart_capt, configs.capt_timeout,
	configs.num_acqs,
	txrx.tx, txrx.rx
FROM configs
JOIN txrx ON txrx.config=configs.identifier
WHERE configs.name=?
ORDER BY txrx.idx
`,
		name,
	)
	if err != nil {
		return cfg, fmt.Errorf("confdb: could not run config query: %w", err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		var tx, rx uint16
		err = rows.Scan(
			&cfg.DcDcTurnOn, &cfg.MeasPeriod,
			&cfg.TransFreq, &cfg.PulseFreq, &cfg.NumPulses,
			&cfg.OverSampling, &cfg.Samples, &cfg.RxGain,
			&cfg.StartHvMuxRx, &cfg.StartPPG, &cfg.TurnOnADC,
			&cfg.StartPGABias, &cfg.StartADC,
			&cfg.RestartCapt, &cfg.CaptTimeout,
			&cfg.NumAcqs,
			&tx, &rx,
		)
		if err != nil {
			return cfg, fmt.Errorf("confdb: could not scan row %d for config %q: %w", i, name, err)
		}
		i++

		cfg.TxConfigs = append(cfg.TxConfigs, tx)
		cfg.RxConfigs = append(cfg.RxConfigs, rx)
	}

	if err := rows.Err(); err != nil {
		return cfg, fmt.Errorf("confdb: could not scan db for config %q: %w", name, err)
	}

	if err := ctx.Err(); err != nil {
		return cfg, fmt.Errorf("confdb: context error while retrieving config %q: %w", name, err)
	}

	if i == 0 {
		return cfg, fmt.Errorf("%w %q", ErrNoConfig, name)
	}

	err = cfg.Validate()
	if err != nil {
		return cfg, fmt.Errorf("confdb: invalid config %q: %w", name, err)
	}

	return cfg, nil
}

// TxRx returns the TX/RX channel-selector words of the configuration name.
func (db *DB) TxRx(ctx context.Context, name string) (tx, rx []uint16, err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := db.db.QueryContext(
		ctx,
		`
SELECT txrx.tx, txrx.rx FROM txrx
JOIN configs ON txrx.config=configs.identifier
WHERE configs.name=?
ORDER BY txrx.idx
`,
		name,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("confdb: could not run TX/RX query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t, r uint16
		err = rows.Scan(&t, &r)
		if err != nil {
			return nil, nil, fmt.Errorf("confdb: could not scan TX/RX of %q: %w", name, err)
		}
		tx = append(tx, t)
		rx = append(rx, r)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("confdb: could not scan db for TX/RX of %q: %w", name, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("confdb: context error while retrieving TX/RX of %q: %w", name, err)
	}

	return tx, rx, nil
}
