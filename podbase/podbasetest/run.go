// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package podbasetest runs pod database tests against all configured
// database backends.
package podbasetest

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"storj.io/webpods/podbase"
	"storj.io/webpods/private/dbutil/pgutil/pgtest"
	"storj.io/webpods/private/dbutil/tempdb"
	"storj.io/webpods/private/memory"
	"storj.io/webpods/private/testcontext"
)

// Database describes a test database backend.
type Database struct {
	Name string
	URL  string
	// Message explains how to configure the backend when URL is unset.
	Message string
}

// Databases returns the databases to test against. Backends without a
// configured connection string are skipped, not failed, so the suite runs
// everywhere.
func Databases() []Database {
	return []Database{
		{
			Name:    "Postgres",
			URL:     *pgtest.ConnStr,
			Message: "Postgres flag missing, example: -postgres-test-db=" + pgtest.DefaultConnStr + " or use WEBPODS_POSTGRES_TEST environment variable.",
		},
		{
			Name:    "Cockroach",
			URL:     *pgtest.CrdbConnStr,
			Message: "Cockroach flag missing, example: -cockroach-test-db=" + pgtest.DefaultCrdbConnStr + " or use WEBPODS_COCKROACH_TEST environment variable.",
		},
	}
}

// DefaultConfig returns the podbase configuration used by tests.
func DefaultConfig() podbase.Config {
	return podbase.Config{
		ApplicationName: "webpods-test",
		MinExternalSize: 256 * memory.KiB,
	}
}

// Run runs the test against all configured databases.
func Run(t *testing.T, fn func(ctx *testcontext.Context, t *testing.T, db *podbase.DB)) {
	RunWithConfig(t, DefaultConfig(), fn)
}

// RunWithConfig runs the test with a specific podbase configuration.
func RunWithConfig(t *testing.T, config podbase.Config, fn func(ctx *testcontext.Context, t *testing.T, db *podbase.DB)) {
	for _, dbinfo := range Databases() {
		dbinfo := dbinfo
		t.Run(dbinfo.Name, func(t *testing.T) {
			t.Parallel()

			if dbinfo.URL == "" || dbinfo.URL == "omit" {
				t.Skip(dbinfo.Message)
			}

			ctx := testcontext.New(t)
			defer ctx.Cleanup()

			tempDB, err := tempdb.OpenUnique(ctx, dbinfo.URL, "podbase")
			if err != nil {
				t.Fatal(err)
			}
			defer ctx.Check(tempDB.Close)

			db, err := podbase.Open(ctx, zaptest.NewLogger(t), tempDB.ConnStr, config)
			if err != nil {
				t.Fatal(err)
			}
			defer ctx.Check(db.Close)

			if err := db.MigrateToLatest(ctx); err != nil {
				t.Fatal(err)
			}

			fn(ctx, t, db)
		})
	}
}
