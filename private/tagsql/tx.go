// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package tagsql

import (
	"context"
	"database/sql"
)

// Tx is an interface for *sql.Tx-like transactions.
type Tx interface {
	// Exec and other methods take a context for tracing
	// purposes, but do not pass the context to the underlying database query.
	Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row

	// ExecContext and other Context methods take a context for tracing and also
	// pass the context to the underlying database, if this tagsql instance is
	// configured to do so.
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row

	Commit() error
	Rollback() error
}

// sqlTx implements Tx, which optionally disables contexts.
type sqlTx struct {
	tx         *sql.Tx
	useContext bool
}

func (s *sqlTx) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.tx.Exec(query, args...)
}

func (s *sqlTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if !s.useContext {
		return s.tx.Exec(query, args...)
	}
	return s.tx.ExecContext(ctx, query, args...)
}

func (s *sqlTx) Query(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	return s.tx.Query(query, args...)
}

func (s *sqlTx) QueryContext(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	if !s.useContext {
		return s.tx.Query(query, args...)
	}
	return s.tx.QueryContext(ctx, query, args...)
}

func (s *sqlTx) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.tx.QueryRow(query, args...)
}

func (s *sqlTx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	if !s.useContext {
		return s.tx.QueryRow(query, args...)
	}
	return s.tx.QueryRowContext(ctx, query, args...)
}

func (s *sqlTx) Commit() error {
	return s.tx.Commit()
}

func (s *sqlTx) Rollback() error {
	return s.tx.Rollback()
}
