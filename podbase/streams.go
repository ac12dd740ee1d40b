// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package podbase

import (
	"context"
	"database/sql"
	"errors"

	"github.com/zeebo/errs"

	"storj.io/webpods/private/dbutil/pgutil"
	"storj.io/webpods/private/dbutil/txutil"
	"storj.io/webpods/private/tagsql"
)

// adapter is the intersection of tagsql.DB and tagsql.Tx used by helpers
// that run both inside and outside explicit transactions.
type adapter interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (tagsql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const streamColumns = `id, pod_name, name, parent_id, path, user_id, access_permission, has_schema, metadata, created_at`

func scanStream(row interface{ Scan(dest ...interface{}) error }) (Stream, error) {
	var stream Stream
	var parentID sql.NullInt64
	err := row.Scan(
		&stream.ID, &stream.PodName, &stream.Name, &parentID, &stream.Path,
		&stream.UserID, &stream.Access, &stream.HasSchema, &stream.Metadata, &stream.CreatedAt,
	)
	if err != nil {
		return Stream{}, err
	}
	if parentID.Valid {
		stream.ParentID = &parentID.Int64
	}
	return stream, nil
}

// GetStreamByPath contains arguments necessary for fetching a stream by its
// materialized path.
type GetStreamByPath struct {
	Pod  PodName
	Path string
}

// GetStreamByPath returns the stream at the given path.
func (db *DB) GetStreamByPath(ctx context.Context, opts GetStreamByPath) (_ Stream, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := opts.Pod.Verify(); err != nil {
		return Stream{}, err
	}
	segments, err := SplitPath(opts.Path)
	if err != nil {
		return Stream{}, err
	}

	stream, err := scanStream(db.db.QueryRowContext(ctx, `
		SELECT `+streamColumns+`
		FROM streams
		WHERE pod_name = $1 AND path = $2`,
		opts.Pod, JoinPath(segments...)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Stream{}, ErrStreamNotFound.Wrap(Error.Wrap(err))
		}
		return Stream{}, Error.New("unable to query stream: %w", err)
	}
	return stream, nil
}

// GetStreamByID contains arguments necessary for fetching a stream by id.
type GetStreamByID struct {
	ID int64
}

// GetStreamByID returns the stream with the given id.
func (db *DB) GetStreamByID(ctx context.Context, opts GetStreamByID) (_ Stream, err error) {
	defer mon.Task()(&ctx)(&err)

	stream, err := scanStream(db.db.QueryRowContext(ctx, `
		SELECT `+streamColumns+`
		FROM streams
		WHERE id = $1`,
		opts.ID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Stream{}, ErrStreamNotFound.Wrap(Error.Wrap(err))
		}
		return Stream{}, Error.New("unable to query stream: %w", err)
	}
	return stream, nil
}

// ResolvePath contains arguments necessary for resolving the deepest
// existing stream along a path.
type ResolvePath struct {
	Pod  PodName
	Path string
}

// ResolvedPath is the result of resolving a path against the stream tree.
type ResolvedPath struct {
	// Stream is the deepest existing stream along the path, nil when not
	// even the first segment exists.
	Stream *Stream
	// Depth is the number of leading segments that exist as streams.
	Depth int
	// Segments is the validated segmentation of the requested path.
	Segments []string
}

// Missing returns the trailing segments that do not exist as streams yet.
func (r ResolvedPath) Missing() []string { return r.Segments[r.Depth:] }

// ResolvePath finds the deepest existing stream along the given path. It
// probes longest prefix first, so a full match costs a single query.
func (db *DB) ResolvePath(ctx context.Context, opts ResolvePath) (_ ResolvedPath, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := opts.Pod.Verify(); err != nil {
		return ResolvedPath{}, err
	}
	segments, err := SplitPath(opts.Path)
	if err != nil {
		return ResolvedPath{}, err
	}

	for depth := len(segments); depth > 0; depth-- {
		stream, err := scanStream(db.db.QueryRowContext(ctx, `
			SELECT `+streamColumns+`
			FROM streams
			WHERE pod_name = $1 AND path = $2`,
			opts.Pod, JoinPath(segments[:depth]...)))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return ResolvedPath{}, Error.New("unable to resolve path: %w", err)
		}
		return ResolvedPath{Stream: &stream, Depth: depth, Segments: segments}, nil
	}

	return ResolvedPath{Segments: segments}, nil
}

// ListChildStreams contains arguments necessary for listing the direct
// children of a stream, or the root streams of a pod when Parent is nil.
type ListChildStreams struct {
	Pod    PodName
	Parent *int64
}

// ListChildStreams returns the direct child streams ordered by name.
func (db *DB) ListChildStreams(ctx context.Context, opts ListChildStreams) (_ []Stream, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := opts.Pod.Verify(); err != nil {
		return nil, err
	}

	var rows tagsql.Rows
	if opts.Parent == nil {
		rows, err = db.db.QueryContext(ctx, `
			SELECT `+streamColumns+`
			FROM streams
			WHERE pod_name = $1 AND parent_id IS NULL
			ORDER BY name`,
			opts.Pod)
	} else {
		rows, err = db.db.QueryContext(ctx, `
			SELECT `+streamColumns+`
			FROM streams
			WHERE pod_name = $1 AND parent_id = $2
			ORDER BY name`,
			opts.Pod, *opts.Parent)
	}
	if err != nil {
		return nil, Error.New("unable to list streams: %w", err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	var streams []Stream
	for rows.Next() {
		stream, err := scanStream(rows)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		streams = append(streams, stream)
	}
	return streams, Error.Wrap(rows.Err())
}

// ListStreamsByPrefix contains arguments necessary for listing a stream
// subtree: the stream at PathPrefix and everything below it.
type ListStreamsByPrefix struct {
	Pod        PodName
	PathPrefix string
}

// ListStreamsByPrefix returns the subtree streams ordered by path.
func (db *DB) ListStreamsByPrefix(ctx context.Context, opts ListStreamsByPrefix) (_ []Stream, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := opts.Pod.Verify(); err != nil {
		return nil, err
	}
	segments, err := SplitPath(opts.PathPrefix)
	if err != nil {
		return nil, err
	}
	prefix := JoinPath(segments...)

	rows, err := db.db.QueryContext(ctx, `
		SELECT `+streamColumns+`
		FROM streams
		WHERE pod_name = $1 AND (path = $2 OR path LIKE $3 ESCAPE '\')
		ORDER BY path`,
		opts.Pod, prefix, escapeLike(prefix)+`/%`)
	if err != nil {
		return nil, Error.New("unable to list streams: %w", err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	var streams []Stream
	for rows.Next() {
		stream, err := scanStream(rows)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		streams = append(streams, stream)
	}
	return streams, Error.Wrap(rows.Err())
}

// CreateStream contains arguments necessary for creating a stream path.
// Missing intermediate segments are created with public access; the terminal
// segment uses Access. The pod is created implicitly on first write, with
// UserID becoming its owner.
type CreateStream struct {
	Pod    PodName
	Path   string
	Access string
	UserID string
}

// Verify verifies create stream request fields.
func (opts *CreateStream) Verify() error {
	if err := opts.Pod.Verify(); err != nil {
		return err
	}
	if opts.UserID == "" {
		return ErrInvalidRequest.New("UserID missing")
	}
	if opts.Access == "" {
		opts.Access = AccessPublic
	}
	return ValidateAccess(opts.Access)
}

// CreateStreamResult describes what a CreateStream call changed.
type CreateStreamResult struct {
	// Stream is the terminal stream of the path, whether found or created.
	Stream Stream
	// Created lists the streams created by this call, in path order.
	Created []Stream
	// PodCreated is true when the pod row was inserted by this call.
	PodCreated bool
}

// CreateStream resolves the full path segment by segment inside a single
// transaction, creating any missing streams.
func (db *DB) CreateStream(ctx context.Context, opts CreateStream) (result CreateStreamResult, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := opts.Verify(); err != nil {
		return CreateStreamResult{}, err
	}
	segments, err := SplitPath(opts.Path)
	if err != nil {
		return CreateStreamResult{}, err
	}

	err = txutil.WithTx(ctx, db.db, nil, func(ctx context.Context, tx tagsql.Tx) error {
		result = CreateStreamResult{}

		result.PodCreated, err = db.ensurePod(ctx, tx, opts.Pod, opts.UserID)
		if err != nil {
			return err
		}

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
				result.Created = append(result.Created, stream)
			}
			result.Stream = stream
			parent = &result.Stream
		}
		return nil
	})
	if err != nil {
		return CreateStreamResult{}, err
	}
	return result, nil
}

// createStream describes one stream row to insert.
type createStream struct {
	Pod    PodName
	Name   string
	Parent *Stream
	Access string
	UserID string
}

func (c createStream) path() string {
	if c.Parent == nil {
		return c.Name
	}
	return c.Parent.Path + "/" + c.Name
}

// createStream inserts a stream row, failing with ErrNameConflict when a
// live record in the parent stream already uses the name.
func (db *DB) createStream(ctx context.Context, tx adapter, opts createStream) (_ Stream, err error) {
	defer mon.Task()(&ctx)(&err)

	if opts.Parent != nil {
		state, err := db.resolveRecordState(ctx, tx, opts.Parent.ID, opts.Name)
		if err != nil {
			return Stream{}, err
		}
		if state.Found && !state.Deleted {
			return Stream{}, ErrNameConflict.New("record %q exists in stream %q", opts.Name, opts.Parent.Path)
		}
	}

	stream := Stream{
		PodName: opts.Pod,
		Name:    opts.Name,
		Path:    opts.path(),
		UserID:  opts.UserID,
		Access:  opts.Access,
	}
	var parentID interface{}
	if opts.Parent != nil {
		stream.ParentID = &opts.Parent.ID
		parentID = opts.Parent.ID
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO streams (pod_name, name, parent_id, path, user_id, access_permission)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		opts.Pod, opts.Name, parentID, stream.Path, opts.UserID, opts.Access).
		Scan(&stream.ID, &stream.CreatedAt)
	if err != nil {
		if pgutil.ErrCode(err) == pgutil.ErrUniqueViolation {
			return Stream{}, ErrNameExists.New("stream %q already exists", stream.Path)
		}
		return Stream{}, Error.New("unable to create stream: %w", err)
	}
	return stream, nil
}

// getOrCreateStream fetches the stream under parent with the given name,
// inserting it when missing.
func (db *DB) getOrCreateStream(ctx context.Context, tx adapter, opts createStream) (_ Stream, created bool, err error) {
	defer mon.Task()(&ctx)(&err)

	stream, err := scanStream(tx.QueryRowContext(ctx, `
		SELECT `+streamColumns+`
		FROM streams
		WHERE pod_name = $1 AND path = $2`,
		opts.Pod, opts.path()))
	if err == nil {
		return stream, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Stream{}, false, Error.New("unable to query stream: %w", err)
	}

	stream, err = db.createStream(ctx, tx, opts)
	if err != nil {
		// A concurrent writer may have inserted the same path between the
		// lookup and the insert; take theirs.
		if pgutil.ErrCode(err) == pgutil.ErrUniqueViolation {
			stream, err := scanStream(tx.QueryRowContext(ctx, `
				SELECT `+streamColumns+`
				FROM streams
				WHERE pod_name = $1 AND path = $2`,
				opts.Pod, opts.path()))
			if err != nil {
				return Stream{}, false, Error.New("unable to query stream: %w", err)
			}
			return stream, false, nil
		}
		return Stream{}, false, err
	}
	return stream, true, nil
}

// DeleteStream contains arguments necessary for deleting a stream subtree.
type DeleteStream struct {
	Pod      PodName
	StreamID int64
}

// DeleteStreamResult reports the paths removed by a stream deletion, for
// cache invalidation.
type DeleteStreamResult struct {
	// Paths holds the materialized paths of every deleted stream, subtree
	// included, in path order.
	Paths []string
	// StreamIDs holds the ids of every deleted stream.
	StreamIDs []int64
}

// DeleteStream removes a stream, its subtree and all contained records.
func (db *DB) DeleteStream(ctx context.Context, opts DeleteStream) (result DeleteStreamResult, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := opts.Pod.Verify(); err != nil {
		return DeleteStreamResult{}, err
	}

	err = txutil.WithTx(ctx, db.db, nil, func(ctx context.Context, tx tagsql.Tx) error {
		result = DeleteStreamResult{}

		var path string
		err := tx.QueryRowContext(ctx, `
			SELECT path FROM streams
			WHERE id = $1 AND pod_name = $2`,
			opts.StreamID, opts.Pod).Scan(&path)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrStreamNotFound.Wrap(Error.Wrap(err))
			}
			return Error.New("unable to query stream: %w", err)
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT id, path FROM streams
			WHERE pod_name = $1 AND (path = $2 OR path LIKE $3 ESCAPE '\')
			ORDER BY path`,
			opts.Pod, path, escapeLike(path)+`/%`)
		if err != nil {
			return Error.New("unable to list subtree: %w", err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var id int64
			var streamPath string
			if err := rows.Scan(&id, &streamPath); err != nil {
				return Error.Wrap(err)
			}
			result.StreamIDs = append(result.StreamIDs, id)
			result.Paths = append(result.Paths, streamPath)
		}
		if err := rows.Err(); err != nil {
			return Error.Wrap(err)
		}

		// Child streams and records go with it through ON DELETE CASCADE.
		_, err = tx.ExecContext(ctx, `DELETE FROM streams WHERE id = $1`, opts.StreamID)
		if err != nil {
			return Error.New("unable to delete stream: %w", err)
		}
		return nil
	})
	if err != nil {
		return DeleteStreamResult{}, err
	}
	return result, nil
}

// SetStreamSchema contains arguments necessary for toggling schema
// enforcement on a stream.
type SetStreamSchema struct {
	StreamID  int64
	HasSchema bool
}

// SetStreamSchema flips the stream's schema enforcement flag. The flag
// mirrors the state of the pod's schema records so appends check it without
// a schema stream lookup.
func (db *DB) SetStreamSchema(ctx context.Context, opts SetStreamSchema) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := db.db.ExecContext(ctx, `
		UPDATE streams SET has_schema = $2 WHERE id = $1`,
		opts.StreamID, opts.HasSchema)
	if err != nil {
		return Error.New("unable to update schema flag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Error.Wrap(err)
	}
	if affected == 0 {
		return ErrStreamNotFound.New("stream %d not found", opts.StreamID)
	}
	return nil
}
