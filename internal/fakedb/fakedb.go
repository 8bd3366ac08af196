// Copyright 2023 The wulpus Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fakedb holds types to fake an in-memory DB.
package fakedb // import "github.com/pulp-bio/wulpus/internal/fakedb"

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"sync"
)

var state struct {
	mu      sync.Mutex
	results []Rows
	queries []Query
}

// Query is a query received by the fake database.
type Query struct {
	SQL  string
	Args []driver.Value
}

// Run runs f while the fake database answers successive queries with the
// successive results. Queries past the last result get no rows.
// Run returns the queries received during f.
func Run(ctx context.Context, results []Rows, f func(ctx context.Context) error) ([]Query, error) {
	state.mu.Lock()
	defer state.mu.Unlock()

	state.results = results
	state.queries = nil
	defer func() {
		state.results = nil
		state.queries = nil
	}()

	err := f(ctx)
	return append([]Query(nil), state.queries...), err
}

func init() {
	sql.Register("fakedb", &Driver{})
}

type Driver struct{}

// Open returns a new connection to the database.
func (drv *Driver) Open(name string) (driver.Conn, error) {
	return &Conn{}, nil
}

type Conn struct{}

// Prepare returns a prepared statement, bound to this connection.
func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return &Stmt{query: query}, nil
}

func (c *Conn) Close() error {
	return nil
}

func (c *Conn) Begin() (driver.Tx, error) {
	panic("not implemented")
}

type Stmt struct {
	query string
}

func (stmt *Stmt) Close() error {
	return nil
}

// NumInput returns -1: placeholders are not checked.
func (stmt *Stmt) NumInput() int {
	return -1
}

func (stmt *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	panic("not implemented")
}

// Query records the query and returns the next result.
func (stmt *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	state.queries = append(state.queries, Query{
		SQL:  stmt.query,
		Args: append([]driver.Value(nil), args...),
	})
	if len(state.results) == 0 {
		return &Rows{}, nil
	}
	rows := state.results[0]
	state.results = state.results[1:]
	return &Rows{
		Names:  rows.Names,
		Values: append([][]driver.Value(nil), rows.Values...),
	}, nil
}

type Rows struct {
	Names  []string
	Values [][]driver.Value
}

func (rows *Rows) Columns() []string {
	return rows.Names
}

func (rows *Rows) Close() error {
	return nil
}

// Next populates dest with the next row or returns io.EOF.
func (rows *Rows) Next(dest []driver.Value) error {
	if len(rows.Values) == 0 {
		return io.EOF
	}
	copy(dest, rows.Values[0])
	rows.Values = rows.Values[1:]
	return nil
}

var (
	_ driver.Driver = (*Driver)(nil)
	_ driver.Conn   = (*Conn)(nil)
	_ driver.Stmt   = (*Stmt)(nil)
	_ driver.Rows   = (*Rows)(nil)
)
