// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package pgutil contains postgres-specific helpers: identifier quoting,
// schema juggling for tests and typed error detection.
package pgutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"

	"github.com/jackc/pgconn"
	"github.com/zeebo/errs"

	"storj.io/webpods/private/tagsql"
)

// CreateRandomTestingSchemaName creates a random schema name string.
func CreateRandomTestingSchemaName(n int) string {
	data := make([]byte, n)

	// math/rand.Read() never returns an error, but misleadingly has an error
	// in the signature. crypto/rand does not have that problem.
	_, err := rand.Read(data)
	if err != nil {
		panic(err)
	}
	return hex.EncodeToString(data)
}

// ConnstrWithSchema adds schema to a  connection string.
func ConnstrWithSchema(connstr, schema string) string {
	if strings.Contains(connstr, "?") {
		connstr += "&options="
	} else {
		connstr += "?options="
	}
	return connstr + url.QueryEscape("--search_path="+QuoteIdentifier(schema))
}

// ParseSchemaFromConnstr returns the name of the schema parsed from the
// connection string if one is provided.
func ParseSchemaFromConnstr(connstr string) (string, error) {
	url, err := url.Parse(connstr)
	if err != nil {
		return "", err
	}
	queryValues := url.Query()
	options := queryValues["options"]
	for _, option := range options {
		if strings.HasPrefix(option, "--search_path=") {
			return UnquoteIdentifier(strings.TrimPrefix(option, "--search_path=")), nil
		}
	}
	return "", nil
}

// QuoteSchema quotes schema name for use in an SQL statement.
func QuoteSchema(schema string) string {
	return QuoteIdentifier(schema)
}

// QuoteIdentifier quotes an identifier for use in an SQL statement.
func QuoteIdentifier(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// UnquoteIdentifier is the analog of QuoteIdentifier.
func UnquoteIdentifier(quotedIdent string) string {
	if len(quotedIdent) >= 2 && quotedIdent[0] == '"' && quotedIdent[len(quotedIdent)-1] == '"' {
		quotedIdent = strings.ReplaceAll(quotedIdent[1:len(quotedIdent)-1], `""`, `"`)
	}
	return quotedIdent
}

// CreateSchema creates a schema if it doesn't exist.
func CreateSchema(ctx context.Context, db tagsql.DB, schema string) (err error) {
	for try := 0; try < 5; try++ {
		_, err = db.ExecContext(ctx, `CREATE SCHEMA IF NOT EXISTS `+QuoteSchema(schema)+`;`)

		// Postgres `CREATE SCHEMA IF NOT EXISTS` may return "duplicate key value
		// violates unique constraint" when multiple connections try to create the
		// same schema concurrently. Retry in that case.
		if IsConstraintError(err) {
			continue
		}
		return err
	}
	return err
}

// DropSchema drops the named schema.
func DropSchema(ctx context.Context, db tagsql.DB, schema string) error {
	_, err := db.ExecContext(ctx, `DROP SCHEMA `+QuoteSchema(schema)+` CASCADE;`)
	return err
}

// CheckApplicationName ensures that the connection string contains an
// application name.
func CheckApplicationName(s string, app string) (string, error) {
	if !strings.Contains(s, "application_name") {
		if strings.TrimSpace(app) == "" {
			return s, errs.New("application name cannot be empty")
		}

		if !strings.Contains(s, "?") {
			return s + "?application_name=" + url.QueryEscape(app), nil
		}
		return s + "&application_name=" + url.QueryEscape(app), nil
	}
	// return source as is if application_name is set
	return s, nil
}

// ErrUniqueViolation is the postgres error code for unique constraint
// violations.
const ErrUniqueViolation = "23505"

// IsConstraintError checks if given error is about constraint violation.
func IsConstraintError(err error) bool {
	return errCodeClass(err) == "23"
}

// ErrCode returns the error code associated with any postgres error in the
// chain of errors walked by unwrapping.
func ErrCode(err error) (code string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func errCodeClass(err error) string {
	code := ErrCode(err)
	if len(code) < 2 {
		return ""
	}
	return code[:2]
}
