// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package dbutil contains generic helpers for databases and their connection
// strings.
package dbutil

import (
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"

	"storj.io/webpods/private/tagsql"
)

const (
	// DefaultMaxOpenConns is the default value for the maximum amount of open
	// database connections.
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default value for the maximum amount of idle
	// database connections.
	DefaultMaxIdleConns = 5
)

// Configure sets connection boundaries and adds db_stats monitoring to monkit.
func Configure(db tagsql.DB, dbName string, mon *monkit.Scope) {
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(-1)

	mon.Chain(monkit.StatSourceFunc(
		func(cb func(key monkit.SeriesKey, field string, val float64)) {
			monitorKey := monkit.NewSeriesKey("db_stats").WithTag("db_name", dbName)
			stats := db.Stats()

			cb(monitorKey, "open", float64(stats.OpenConnections))
			cb(monitorKey, "idle", float64(stats.Idle))
			cb(monitorKey, "in_use", float64(stats.InUse))
			cb(monitorKey, "wait_count", float64(stats.WaitCount))
			cb(monitorKey, "wait_duration", stats.WaitDuration.Seconds())
		}))
}

// TempDatabase is a database (or something that works like an isolated database,
// such as a PostgreSQL schema) with a semi-unique name which will be cleaned up
// when closed. Mainly useful for testing purposes.
type TempDatabase struct {
	tagsql.DB
	ConnStr        string
	Schema         string
	Driver         string
	Implementation Implementation
	Cleanup        func(tagsql.DB) error
}

// Close closes the database and deletes the schema.
func (db *TempDatabase) Close() error {
	return errs.Combine(
		db.Cleanup(db.DB),
		db.DB.Close(),
	)
}
