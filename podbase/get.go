// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package podbase

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/zeebo/errs"
)

const recordColumns = `id, stream_id, record_index, name, path, content, content_type, size, headers, content_hash, hash, previous_hash, user_id, storage, created_at`

func scanRecord(row interface{ Scan(dest ...interface{}) error }) (Record, error) {
	var record Record
	var headers []byte
	var previousHash, storage sql.NullString
	err := row.Scan(
		&record.ID, &record.StreamID, &record.Index, &record.Name, &record.Path,
		&record.Content, &record.ContentType, &record.Size, &headers,
		&record.ContentHash, &record.Hash, &previousHash,
		&record.UserID, &storage, &record.CreatedAt,
	)
	if err != nil {
		return Record{}, err
	}
	record.PreviousHash = previousHash.String
	record.Storage = storage.String
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &record.Headers); err != nil {
			return Record{}, Error.New("malformed headers: %w", err)
		}
	}
	return record, nil
}

// recordState summarizes whether a name resolves to a live record.
type recordState struct {
	// Found is true when a record with the name exists at all.
	Found bool
	// Deleted is true when the latest state of the name is a tombstone.
	Deleted bool
	// Index is the index of the latest record with the name, valid only
	// when Found and not Deleted.
	Index int64
}

// resolveRecordState walks the name's version history from the newest entry
// down and reports whether the name currently resolves to a live record. A
// tombstone named `<name>.deleted.<ts>` at a higher index than the newest
// record of the name marks it deleted.
func (db *DB) resolveRecordState(ctx context.Context, q adapter, streamID int64, name string) (_ recordState, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := q.QueryContext(ctx, `
		SELECT name, record_index
		FROM records
		WHERE stream_id = $1 AND (name = $2 OR name LIKE $3 ESCAPE '\')
		ORDER BY record_index DESC`,
		streamID, name, escapeLike(name)+tombstoneInfix+`%`)
	if err != nil {
		return recordState{}, Error.New("unable to query record state: %w", err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	for rows.Next() {
		var rowName string
		var index int64
		if err := rows.Scan(&rowName, &index); err != nil {
			return recordState{}, Error.Wrap(err)
		}
		if rowName == name {
			return recordState{Found: true, Index: index}, nil
		}
		if original, ok := ParseTombstoneName(rowName); ok && original == name {
			return recordState{Found: true, Deleted: true}, nil
		}
	}
	return recordState{}, Error.Wrap(rows.Err())
}

// GetRecordByName contains arguments necessary for fetching the latest
// record with a name.
type GetRecordByName struct {
	StreamID int64
	Name     string

	// IncludeDeleted returns the record content even when a later tombstone
	// marks the name deleted.
	IncludeDeleted bool
}

// GetRecordByName returns the highest-index record with the given name.
// When a later tombstone exists for the name it fails with ErrRecordDeleted
// unless IncludeDeleted is set.
func (db *DB) GetRecordByName(ctx context.Context, opts GetRecordByName) (_ Record, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := ValidateRecordName(opts.Name); err != nil {
		return Record{}, err
	}

	rows, err := db.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE stream_id = $1 AND (name = $2 OR name LIKE $3 ESCAPE '\')
		ORDER BY record_index DESC`,
		opts.StreamID, opts.Name, escapeLike(opts.Name)+tombstoneInfix+`%`)
	if err != nil {
		return Record{}, Error.New("unable to query record: %w", err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	deleted := false
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return Record{}, Error.Wrap(err)
		}
		if record.Name == opts.Name {
			if deleted && !opts.IncludeDeleted {
				return Record{}, ErrRecordDeleted.New("record %q has a later tombstone", opts.Name)
			}
			return record, nil
		}
		if original, ok := ParseTombstoneName(record.Name); ok && original == opts.Name {
			if !opts.IncludeDeleted {
				return Record{}, ErrRecordDeleted.New("record %q has a later tombstone", opts.Name)
			}
			deleted = true
		}
	}
	if err := rows.Err(); err != nil {
		return Record{}, Error.Wrap(err)
	}
	return Record{}, ErrRecordNotFound.New("record %q not found", opts.Name)
}

// GetRecordByIndex contains arguments necessary for fetching a record by
// its position in the stream. Negative indexes count from the end.
type GetRecordByIndex struct {
	StreamID int64
	Index    int64

	// IncludeDeleted returns the record even when a later tombstone marks
	// its name deleted.
	IncludeDeleted bool
}

// GetRecordByIndex returns the record at the given index. Since indexes are
// dense, a missing row inside a stream means the index is out of range. A
// record whose name a later tombstone marks deleted fails with
// ErrRecordDeleted unless IncludeDeleted is set; tombstones themselves are
// always returned.
func (db *DB) GetRecordByIndex(ctx context.Context, opts GetRecordByIndex) (_ Record, err error) {
	defer mon.Task()(&ctx)(&err)

	record, err := scanRecord(db.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE stream_id = $1 AND record_index = CASE
			WHEN $2 >= 0 THEN $2
			ELSE (SELECT COALESCE(MAX(record_index) + 1, 0) FROM records WHERE stream_id = $1) + $2
		END`,
		opts.StreamID, opts.Index))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrInvalidIndex.New("index %d out of range", opts.Index)
		}
		return Record{}, Error.New("unable to query record: %w", err)
	}
	if opts.IncludeDeleted {
		return record, nil
	}
	if _, isTombstone := ParseTombstoneName(record.Name); isTombstone {
		return record, nil
	}

	deleted, err := db.hasLaterTombstone(ctx, opts.StreamID, record.Name, record.Index)
	if err != nil {
		return Record{}, err
	}
	if deleted {
		return Record{}, ErrRecordDeleted.New("record %q has a later tombstone", record.Name)
	}
	return record, nil
}

// hasLaterTombstone reports whether any tombstone for the given name exists
// past the given index. Candidate rows are matched by the tombstone name
// shape and confirmed by parsing, since the LIKE pattern alone also matches
// ordinary names that merely resemble deletion markers.
func (db *DB) hasLaterTombstone(ctx context.Context, streamID int64, name string, index int64) (_ bool, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := db.db.QueryContext(ctx, `
		SELECT name
		FROM records
		WHERE stream_id = $1 AND record_index > $2 AND name LIKE $3 ESCAPE '\'`,
		streamID, index, escapeLike(name)+tombstoneInfix+`%`)
	if err != nil {
		return false, Error.New("unable to query tombstones: %w", err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	for rows.Next() {
		var candidate string
		if err := rows.Scan(&candidate); err != nil {
			return false, Error.Wrap(err)
		}
		if original, ok := ParseTombstoneName(candidate); ok && original == name {
			return true, nil
		}
	}
	return false, Error.Wrap(rows.Err())
}

// CountRecords returns the number of records in a stream. Indexes are dense,
// so this equals the next index to assign.
func (db *DB) CountRecords(ctx context.Context, streamID int64) (total int64, err error) {
	defer mon.Task()(&ctx)(&err)

	err = db.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(record_index) + 1, 0)
		FROM records
		WHERE stream_id = $1`,
		streamID).Scan(&total)
	if err != nil {
		return 0, Error.New("unable to count records: %w", err)
	}
	return total, nil
}
