// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package podbase

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"storj.io/webpods/private/dbutil/txutil"
	"storj.io/webpods/private/tagsql"
)

// DeleteRecord contains arguments necessary for deleting a record by name.
// Deletion appends a tombstone; it never removes the record row, so the
// hash chain stays intact.
type DeleteRecord struct {
	Stream Stream
	Name   string
	UserID string

	// Purge additionally erases the record's content. Hash and content
	// hash stay on the row so chain verification still passes.
	Purge bool
}

// Verify verifies delete request fields.
func (opts *DeleteRecord) Verify() error {
	if err := ValidateRecordName(opts.Name); err != nil {
		return err
	}
	if opts.UserID == "" {
		return ErrInvalidRequest.New("UserID missing")
	}
	return nil
}

// DeleteRecordResult describes the outcome of a record deletion.
type DeleteRecordResult struct {
	Tombstone Record

	// PurgedStorage is the external locator the purged record pointed at,
	// if any; the caller removes the blob after commit.
	PurgedStorage string
}

// DeleteRecord marks the latest record with the given name as deleted by
// appending a tombstone named `<name>.deleted.<unix-millis>`. With Purge it
// also empties the stored content.
func (db *DB) DeleteRecord(ctx context.Context, opts DeleteRecord) (result DeleteRecordResult, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := opts.Verify(); err != nil {
		return DeleteRecordResult{}, err
	}

	err = txutil.WithTx(ctx, db.db, nil, func(ctx context.Context, tx tagsql.Tx) error {
		result = DeleteRecordResult{}

		if err := db.lockStream(ctx, tx, opts.Stream.ID); err != nil {
			return err
		}

		state, err := db.resolveRecordState(ctx, tx, opts.Stream.ID, opts.Name)
		if err != nil {
			return err
		}
		if !state.Found {
			return ErrRecordNotFound.New("record %q not found", opts.Name)
		}
		if state.Deleted {
			return ErrRecordDeleted.New("record %q is already deleted", opts.Name)
		}

		if opts.Purge {
			var storage sql.NullString
			err := tx.QueryRowContext(ctx, `
				SELECT storage FROM records
				WHERE stream_id = $1 AND record_index = $2`,
				opts.Stream.ID, state.Index).Scan(&storage)
			if err != nil {
				return Error.New("unable to query record storage: %w", err)
			}
			result.PurgedStorage = storage.String

			_, err = tx.ExecContext(ctx, `
				UPDATE records SET content = '', storage = NULL
				WHERE stream_id = $1 AND record_index = $2`,
				opts.Stream.ID, state.Index)
			if err != nil {
				return Error.New("unable to purge record: %w", err)
			}
		}

		now := time.Now()
		marker := DeletionMarker{
			Deleted:      true,
			Purged:       opts.Purge,
			OriginalName: opts.Name,
			DeletedAt:    FormatRecordTime(now),
			DeletedBy:    opts.UserID,
		}
		if opts.Purge {
			marker.PurgedAt = marker.DeletedAt
			marker.PurgedBy = opts.UserID
		}
		encoded, err := json.Marshal(marker)
		if err != nil {
			return Error.Wrap(err)
		}

		result.Tombstone, err = db.insertRecord(ctx, tx, insertRecord{
			Stream:      opts.Stream,
			Name:        TombstoneName(opts.Name, now),
			Content:     string(encoded),
			ContentType: "application/json",
			UserID:      opts.UserID,
		})
		return err
	})
	if err != nil {
		return DeleteRecordResult{}, err
	}
	return result, nil
}
