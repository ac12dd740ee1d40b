// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package pgutil

import (
	"context"
	"strings"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"

	"storj.io/webpods/private/dbutil"
	"storj.io/webpods/private/tagsql"
)

var mon = monkit.Package()

// OpenUnique opens a postgres database with a temporary unique schema, which
// will be cleaned up when closed. It is expected that this should normally be
// used by way of "storj.io/webpods/private/dbutil/tempdb".OpenUnique() instead
// of calling it directly.
func OpenUnique(ctx context.Context, connstr string, schemaPrefix string) (*dbutil.TempDatabase, error) {
	// sanity check, because you get an unhelpful error message when this happens
	if strings.HasPrefix(connstr, "cockroach://") {
		return nil, errs.New("can't connect to cockroach using pgutil.OpenUnique()! connstr=%q. try tempdb.OpenUnique() instead?", connstr)
	}

	schemaName := schemaPrefix + "-" + CreateRandomTestingSchemaName(8)
	connStrWithSchema := ConnstrWithSchema(connstr, schemaName)

	db, err := tagsql.Open(ctx, "pgx", connStrWithSchema)
	if err != nil {
		return nil, errs.New("failed to connect to %q with driver pgx: %v", connStrWithSchema, err)
	}

	err = CreateSchema(ctx, db, schemaName)
	if err != nil {
		return nil, errs.Combine(err, db.Close())
	}

	cleanup := func(cleanupDB tagsql.DB) error {
		childCtx, cancel := context.WithCancel(context.Background())
		defer cancel()
		return DropSchema(childCtx, cleanupDB, schemaName)
	}

	dbutil.Configure(db, "tmp_postgres", mon)
	return &dbutil.TempDatabase{
		DB:             db,
		ConnStr:        connStrWithSchema,
		Schema:         schemaName,
		Driver:         "pgx",
		Implementation: dbutil.Postgres,
		Cleanup:        cleanup,
	}, nil
}
