// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package podbase

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"storj.io/webpods/private/dbutil"
	"storj.io/webpods/private/dbutil/txutil"
	"storj.io/webpods/private/tagsql"
)

// AppendRecord contains arguments necessary for appending a record to a
// stream. Missing streams along the path are created inside the same
// transaction; the pod itself is created on its first authenticated write.
type AppendRecord struct {
	Pod    PodName
	Path   string
	Name   string
	UserID string

	Content     string
	ContentType string
	Headers     map[string]string

	// Access applies to the terminal stream if this append creates it.
	// Intermediate streams are always created public.
	Access string

	// Externalize, when set, is called inside the transaction for content
	// whose decoded size reaches the configured threshold. It should move
	// the content into external storage and set record.Storage; the caller
	// then persists content as empty. An error falls back to inline storage.
	Externalize func(ctx context.Context, record *Record) error
}

// Verify verifies append request fields.
func (opts *AppendRecord) Verify() error {
	if err := opts.Pod.Verify(); err != nil {
		return err
	}
	if err := ValidateRecordName(opts.Name); err != nil {
		return err
	}
	if _, ok := ParseTombstoneName(opts.Name); ok {
		return ErrInvalidName.New("record name %q is reserved for deletion markers", opts.Name)
	}
	if opts.UserID == "" {
		return ErrInvalidRequest.New("UserID missing")
	}
	if opts.ContentType == "" {
		opts.ContentType = "text/plain"
	}
	if opts.Access == "" {
		opts.Access = AccessPublic
	}
	return ValidateAccess(opts.Access)
}

// AppendResult describes everything an append changed, so callers can issue
// cache invalidations and count stream creations.
type AppendResult struct {
	Record Record
	Stream Stream

	// CreatedStreams lists streams created by this append, in path order.
	CreatedStreams []Stream
	// PodCreated is true when this was the pod's first write.
	PodCreated bool
}

// AppendRecord appends a record to the stream at the given path, assigning
// the next dense index and extending the hash chain. Appends to the same
// stream are serialized by a stream-scoped lock; appends to different
// streams proceed in parallel.
func (db *DB) AppendRecord(ctx context.Context, opts AppendRecord) (result AppendResult, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := opts.Verify(); err != nil {
		return AppendResult{}, err
	}
	segments, err := SplitPath(opts.Path)
	if err != nil {
		return AppendResult{}, err
	}

	err = txutil.WithTx(ctx, db.db, nil, func(ctx context.Context, tx tagsql.Tx) error {
		result = AppendResult{}

		podCreated, err := db.ensurePod(ctx, tx, opts.Pod, opts.UserID)
		if err != nil {
			return err
		}
		result.PodCreated = podCreated

		var parent *Stream
		for i, segment := range segments {
			access := AccessPublic
			if i == len(segments)-1 {
				access = opts.Access
			}
			stream, created, err := db.getOrCreateStream(ctx, tx, createStream{
				Pod:    opts.Pod,
				Name:   segment,
				Parent: parent,
				Access: access,
				UserID: opts.UserID,
			})
			if err != nil {
				return err
			}
			if created {
				result.CreatedStreams = append(result.CreatedStreams, stream)
			}
			result.Stream = stream
			parent = &result.Stream
		}

		if err := db.lockStream(ctx, tx, result.Stream.ID); err != nil {
			return err
		}

		// A record may share its name with a child stream; path resolution
		// prefers the stream, and the record becomes reachable once the
		// stream is deleted. Only the reverse direction conflicts: a stream
		// cannot be created over a live record name.
		result.Record, err = db.insertRecord(ctx, tx, insertRecord{
			Stream:      result.Stream,
			Name:        opts.Name,
			Content:     opts.Content,
			ContentType: opts.ContentType,
			Headers:     opts.Headers,
			UserID:      opts.UserID,
			Externalize: opts.Externalize,
		})
		return err
	})
	if err != nil {
		return AppendResult{}, err
	}
	return result, nil
}

// lockStream serializes appends to a stream for the rest of the transaction.
// Postgres offers transaction-scoped advisory locks keyed by the stream id;
// CockroachDB has none, so there the stream row itself is locked.
func (db *DB) lockStream(ctx context.Context, tx tagsql.Tx, streamID int64) (err error) {
	defer mon.Task()(&ctx)(&err)

	if db.impl == dbutil.Cockroach {
		var id int64
		err = tx.QueryRowContext(ctx, `SELECT id FROM streams WHERE id = $1 FOR UPDATE`, streamID).Scan(&id)
		if err != nil {
			return Error.New("unable to lock stream: %w", err)
		}
		return nil
	}

	_, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, streamID)
	if err != nil {
		return Error.New("unable to lock stream: %w", err)
	}
	return nil
}

// insertRecord describes one record row to append. The caller must hold the
// stream lock, or be inserting into a stream created in this transaction.
type insertRecord struct {
	Stream      Stream
	Name        string
	Content     string
	ContentType string
	Headers     map[string]string
	UserID      string
	Externalize func(ctx context.Context, record *Record) error
}

func (db *DB) insertRecord(ctx context.Context, tx tagsql.Tx, opts insertRecord) (_ Record, err error) {
	defer mon.Task()(&ctx)(&err)

	var tailIndex int64 = -1
	var tailHash string
	err = tx.QueryRowContext(ctx, `
		SELECT record_index, hash
		FROM records
		WHERE stream_id = $1
		ORDER BY record_index DESC
		LIMIT 1`,
		opts.Stream.ID).Scan(&tailIndex, &tailHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Record{}, Error.New("unable to read stream tail: %w", err)
	}

	canonical := CanonicalBytes(opts.Content, opts.ContentType)

	record := Record{
		StreamID:     opts.Stream.ID,
		Index:        tailIndex + 1,
		Name:         opts.Name,
		Path:         opts.Stream.Path + "/" + opts.Name,
		Content:      opts.Content,
		ContentType:  opts.ContentType,
		Size:         int64(len(canonical)),
		Headers:      opts.Headers,
		ContentHash:  ContentHash(opts.Content, opts.ContentType),
		PreviousHash: tailHash,
		UserID:       opts.UserID,
		CreatedAt:    TruncateRecordTime(time.Now()),
	}
	record.Hash = RecordHash(record.PreviousHash, record.ContentHash, record.UserID, record.CreatedAt)

	threshold := db.config.MinExternalSize.Int64()
	if opts.Externalize != nil && threshold > 0 && record.Size >= threshold {
		if err := opts.Externalize(ctx, &record); err != nil {
			db.log.Warn("external storage failed, storing inline",
				zap.String("pod", string(opts.Stream.PodName)),
				zap.String("path", record.Path),
				zap.Error(err))
			record.Storage = ""
		} else if record.Storage != "" {
			record.Content = ""
		}
	}

	var headers interface{}
	if len(record.Headers) > 0 {
		encoded, err := json.Marshal(record.Headers)
		if err != nil {
			return Record{}, Error.Wrap(err)
		}
		headers = string(encoded)
	}
	var previousHash interface{}
	if record.PreviousHash != "" {
		previousHash = record.PreviousHash
	}
	var storage interface{}
	if record.Storage != "" {
		storage = record.Storage
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO records (
			stream_id, record_index, name, path,
			content, content_type, size, headers,
			content_hash, hash, previous_hash,
			user_id, storage, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
		record.StreamID, record.Index, record.Name, record.Path,
		record.Content, record.ContentType, record.Size, headers,
		record.ContentHash, record.Hash, previousHash,
		record.UserID, storage, record.CreatedAt).
		Scan(&record.ID)
	if err != nil {
		return Record{}, Error.New("unable to insert record: %w", err)
	}
	return record, nil
}
