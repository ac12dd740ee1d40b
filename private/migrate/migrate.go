// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package migrate implements a simple forward-only database migration
// framework with a version bookkeeping table.
package migrate

import (
	"strconv"
	"strings"

	"github.com/zeebo/errs"

	"storj.io/webpods/private/tagsql"
)

// Error is the default migrate errs class.
var Error = errs.Class("migrate")

// rebind converts ? placeholders into the numbered placeholders the postgres
// wire protocol expects. Question marks inside single-quoted literals are
// left alone.
func rebind(db tagsql.DB, s string) string {
	_ = db // all supported databases speak the postgres placeholder dialect

	var out strings.Builder
	out.Grow(len(s) + 8)

	instr := false
	n := 0
	for _, r := range s {
		switch {
		case r == '\'':
			instr = !instr
			out.WriteRune(r)
		case r == '?' && !instr:
			n++
			out.WriteByte('$')
			out.WriteString(strconv.Itoa(n))
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}
