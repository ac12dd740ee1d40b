// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package tagsql implements a tagged wrapper for databases.
//
// This package also handles hides context cancellation from database drivers
// that don't support it.
package tagsql

import (
	"context"
	"database/sql"
	"time"
)

// Rows implements minimal interface for *sql.Rows.
type Rows = *sql.Rows

// Open opens *sql.DB and wraps the implementation with tagging.
func Open(ctx context.Context, driverName, dataSourceName string) (DB, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	err = db.PingContext(ctx)
	if err != nil {
		return nil, err
	}
	return Wrap(db), nil
}

// Wrap turns a *sql.DB into a DB-matching interface.
func Wrap(db *sql.DB) DB {
	return &sqlDB{
		db: db,
		// context methods are safe for all drivers this module registers.
		useContext:   true,
		useTxContext: true,
	}
}

// DB implements a wrapper for *sql.DB-like database.
//
// The wrapper adds tracing to all calls and allows avoiding context on
// drivers that do not support it.
type DB interface {
	// Exec and other methods take a context for tracing purposes,
	// but do not pass the context to the underlying database query.
	Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row

	// ExecContext and other Context methods take a context for tracing
	// and also pass the context to the underlying database, if this
	// tagsql instance is configured to do so.
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row

	BeginTx(ctx context.Context, txOptions *sql.TxOptions) (Tx, error)

	PingContext(ctx context.Context) error

	SetConnMaxLifetime(d time.Duration)
	SetMaxIdleConns(n int)
	SetMaxOpenConns(n int)
	Stats() sql.DBStats

	Close() error

	// Internal returns the *sql.DB for tooling that needs direct access.
	Internal() *sql.DB
}

// sqlDB implements DB, which optionally disables contexts.
type sqlDB struct {
	db           *sql.DB
	useContext   bool
	useTxContext bool
}

func (s *sqlDB) Internal() *sql.DB { return s.db }

func (s *sqlDB) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.Exec(query, args...)
}

func (s *sqlDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if !s.useContext {
		return s.db.Exec(query, args...)
	}
	return s.db.ExecContext(ctx, query, args...)
}

func (s *sqlDB) Query(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	return s.db.Query(query, args...)
}

func (s *sqlDB) QueryContext(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	if !s.useContext {
		return s.db.Query(query, args...)
	}
	return s.db.QueryContext(ctx, query, args...)
}

func (s *sqlDB) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRow(query, args...)
}

func (s *sqlDB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	if !s.useContext {
		return s.db.QueryRow(query, args...)
	}
	return s.db.QueryRowContext(ctx, query, args...)
}

func (s *sqlDB) BeginTx(ctx context.Context, txOptions *sql.TxOptions) (Tx, error) {
	var tx *sql.Tx
	var err error
	if !s.useContext {
		tx, err = s.db.BeginTx(context.Background(), txOptions)
	} else {
		tx, err = s.db.BeginTx(ctx, txOptions)
	}
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx, useContext: s.useContext && s.useTxContext}, nil
}

func (s *sqlDB) PingContext(ctx context.Context) error {
	if !s.useContext {
		return s.db.Ping()
	}
	return s.db.PingContext(ctx)
}

func (s *sqlDB) SetConnMaxLifetime(d time.Duration) { s.db.SetConnMaxLifetime(d) }
func (s *sqlDB) SetMaxIdleConns(n int)              { s.db.SetMaxIdleConns(n) }
func (s *sqlDB) SetMaxOpenConns(n int)              { s.db.SetMaxOpenConns(n) }
func (s *sqlDB) Stats() sql.DBStats                 { return s.db.Stats() }

func (s *sqlDB) Close() error { return s.db.Close() }
