// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package tempdb provides a way to create unique temporary databases for
// tests.
package tempdb

import (
	"context"
	"net/url"
	"strings"

	"github.com/zeebo/errs"

	"storj.io/webpods/private/dbutil"
	"storj.io/webpods/private/dbutil/pgutil"
)

// OpenUnique opens a temporary, uniquely named database (or isolated schema)
// for the given connection URL. The database is cleaned up on Close.
func OpenUnique(ctx context.Context, connURL string, namePrefix string) (*dbutil.TempDatabase, error) {
	u, err := url.Parse(connURL)
	if err != nil {
		return nil, errs.New("could not parse connection string %q: %v", connURL, err)
	}

	switch dbutil.ImplementationForScheme(u.Scheme) {
	case dbutil.Postgres:
		return pgutil.OpenUnique(ctx, connURL, namePrefix)

	case dbutil.Cockroach:
		// cockroach supports schemas with the same statements as postgres,
		// so a scheme rewrite is all the special handling it needs. The
		// returned ConnStr keeps the cockroach scheme so later opens still
		// detect the right implementation.
		u.Scheme = "postgres"
		db, err := pgutil.OpenUnique(ctx, u.String(), namePrefix)
		if err != nil {
			return nil, err
		}
		db.Implementation = dbutil.Cockroach
		db.ConnStr = strings.Replace(db.ConnStr, "postgres://", "cockroach://", 1)
		return db, nil

	default:
		return nil, errs.New("OpenUnique does not yet support scheme %q", u.Scheme)
	}
}
