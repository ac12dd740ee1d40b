// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package dbutil

import (
	"net/url"
	"strings"

	"github.com/zeebo/errs"
)

// Implementation type of valid DBs.
type Implementation int

const (
	// Unknown is an unknown db type.
	Unknown Implementation = iota
	// Postgres is a Postgres db type.
	Postgres
	// Cockroach is a Cockroach db type.
	Cockroach
)

// ImplementationForScheme returns the Implementation that is used for
// the url with the provided scheme.
func ImplementationForScheme(scheme string) Implementation {
	switch strings.ToLower(scheme) {
	case "postgres", "postgresql", "pgx":
		return Postgres
	case "cockroach":
		return Cockroach
	default:
		return Unknown
	}
}

// String returns the default name for a given implementation.
func (impl Implementation) String() string {
	switch impl {
	case Postgres:
		return "postgres"
	case Cockroach:
		return "cockroach"
	default:
		return "unknown"
	}
}

// SplitConnStr returns the driver and implementation behind the connection
// string, rewriting cockroach URLs to the postgres scheme the driver expects.
func SplitConnStr(s string) (driver string, source string, impl Implementation, err error) {
	u, err := url.Parse(s)
	if err != nil {
		return "", "", Unknown, errs.New("could not parse connection string: %v", err)
	}

	impl = ImplementationForScheme(u.Scheme)
	switch impl {
	case Postgres:
		return "pgx", s, impl, nil
	case Cockroach:
		u.Scheme = "postgres"
		return "pgx", u.String(), impl, nil
	default:
		return "", "", Unknown, errs.New("unsupported database scheme: %q", u.Scheme)
	}
}
