// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package podbase implements storing pods, streams and hash-chained records.
package podbase

import (
	"context"

	_ "github.com/jackc/pgx/v4"        // registers pgx as a tagsql driver.
	_ "github.com/jackc/pgx/v4/stdlib" // registers pgx as a tagsql driver.
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/webpods/private/dbutil"
	"storj.io/webpods/private/dbutil/pgutil"
	"storj.io/webpods/private/memory"
	"storj.io/webpods/private/tagsql"
)

var mon = monkit.Package()

// Config is a configuration struct for the pod database.
type Config struct {
	ApplicationName string

	// MinExternalSize is the decoded content size at or above which record
	// content is handed to external storage. Zero disables offloading.
	MinExternalSize memory.Size
}

// DB implements a database for storing pods, streams and records.
type DB struct {
	log     *zap.Logger
	db      tagsql.DB
	connstr string
	impl    dbutil.Implementation

	testCleanup func() error

	config Config
}

// Open opens a connection to the pod database.
func Open(ctx context.Context, log *zap.Logger, connstr string, config Config) (*DB, error) {
	driverName, source, impl, err := dbutil.SplitConnStr(connstr)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	switch impl {
	case dbutil.Postgres, dbutil.Cockroach:
	default:
		return nil, Error.New("unsupported implementation: %s", connstr)
	}

	source, err = pgutil.CheckApplicationName(source, config.ApplicationName)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	db, err := tagsql.Open(ctx, driverName, source)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	dbutil.Configure(db, "podbase", mon)

	log.Debug("Connected", zap.String("db source", connstr))

	return &DB{
		log:         log,
		db:          db,
		connstr:     source,
		impl:        impl,
		testCleanup: func() error { return nil },
		config:      config,
	}, nil
}

// Implementation returns the database implementation.
func (db *DB) Implementation() dbutil.Implementation { return db.impl }

// UnderlyingTagSQL returns the database handle, for tests.
func (db *DB) UnderlyingTagSQL() tagsql.DB { return db.db }

// Ping checks whether connection has been established.
func (db *DB) Ping(ctx context.Context) error {
	return Error.Wrap(db.db.PingContext(ctx))
}

// TestingSetCleanup is used to set the callback for cleaning up test database.
func (db *DB) TestingSetCleanup(cleanup func() error) {
	db.testCleanup = cleanup
}

// Close closes the connection to database.
func (db *DB) Close() error {
	return errs.Combine(Error.Wrap(db.db.Close()), db.testCleanup())
}

// MigrateToLatest migrates database to the latest version.
func (db *DB) MigrateToLatest(ctx context.Context) error {
	if db.impl == dbutil.Postgres {
		schema, err := pgutil.ParseSchemaFromConnstr(db.connstr)
		if err != nil {
			return errs.New("error parsing schema: %+v", err)
		}
		if schema != "" {
			err = pgutil.CreateSchema(ctx, db.db, schema)
			if err != nil {
				return errs.New("error creating schema: %+v", err)
			}
		}
	}

	migration := db.PostgresMigration()
	return migration.Run(ctx, db.log.Named("migrate"))
}

// CheckVersion checks the database is the correct version.
func (db *DB) CheckVersion(ctx context.Context) error {
	migration := db.PostgresMigration()
	return migration.ValidateVersions(ctx, db.log)
}
