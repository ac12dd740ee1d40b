// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package podbase

import (
	"context"
	"database/sql"
	"time"

	"github.com/zeebo/errs"
)

const verifyBatchSize = 1000

// VerifyStream contains arguments necessary for verifying a stream's hash
// chain.
type VerifyStream struct {
	StreamID int64
}

// VerifyStreamResult reports the outcome of a chain verification.
type VerifyStreamResult struct {
	Valid bool
	// FirstBreakIndex is the index of the first record that fails
	// verification, -1 when the chain is intact.
	FirstBreakIndex int64
	// Records is the number of records checked.
	Records int64
}

// VerifyStream walks the stream in ascending index order, recomputing each
// record's hash and checking linkage to its predecessor. Content hashes are
// recomputed only for records whose content is stored inline; purged and
// externally stored records are verified from the stored content hash.
func (db *DB) VerifyStream(ctx context.Context, opts VerifyStream) (_ VerifyStreamResult, err error) {
	defer mon.Task()(&ctx)(&err)

	result := VerifyStreamResult{Valid: true, FirstBreakIndex: -1}

	var expected int64
	var previousHash string
	for {
		batch, err := db.verifyBatch(ctx, opts.StreamID, expected, &previousHash, &result)
		if err != nil {
			return VerifyStreamResult{}, err
		}
		if !result.Valid || batch < verifyBatchSize {
			return result, nil
		}
		expected += int64(batch)
	}
}

func (db *DB) verifyBatch(ctx context.Context, streamID, from int64, previousHash *string, result *VerifyStreamResult) (count int, err error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT record_index, content, content_type, content_hash, hash, previous_hash, user_id, storage, created_at
		FROM records
		WHERE stream_id = $1 AND record_index >= $2
		ORDER BY record_index
		LIMIT $3`,
		streamID, from, verifyBatchSize)
	if err != nil {
		return 0, Error.New("unable to read records: %w", err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	expected := from
	for rows.Next() {
		var index int64
		var content, contentType, contentHash, hash, userID string
		var prev, storage sql.NullString
		var createdAt time.Time
		err := rows.Scan(&index, &content, &contentType, &contentHash, &hash, &prev, &userID, &storage, &createdAt)
		if err != nil {
			return 0, Error.Wrap(err)
		}
		count++
		result.Records++

		broken := index != expected ||
			prev.String != *previousHash ||
			RecordHash(prev.String, contentHash, userID, createdAt) != hash
		if !broken && !storage.Valid && content != "" {
			broken = ContentHash(content, contentType) != contentHash
		}
		if broken {
			result.Valid = false
			result.FirstBreakIndex = index
			return count, nil
		}

		*previousHash = hash
		expected++
	}
	return count, Error.Wrap(rows.Err())
}
