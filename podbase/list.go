// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package podbase

import (
	"context"
	"sort"

	"github.com/zeebo/errs"

	"storj.io/webpods/private/dbutil/pgutil"
)

// DefaultListLimit is the number of records returned when the client does
// not ask for a specific limit.
const DefaultListLimit = 100

// MaxListLimit is the maximum number of records a single listing returns.
const MaxListLimit = 1000

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// resolveCursor turns an optional, possibly negative, after-index cursor
// into an exclusive lower bound. Negative values count from the end.
func resolveCursor(after *int64, total int64) int64 {
	if after == nil {
		return -1
	}
	cursor := *after
	if cursor < 0 {
		cursor += total
	}
	if cursor < -1 {
		cursor = -1
	}
	return cursor
}

// RecordPage is one window of a record listing.
type RecordPage struct {
	Records []Record
	Total   int64
	HasMore bool
}

// ListRecords contains arguments necessary for listing a contiguous window
// of a stream's records.
type ListRecords struct {
	StreamID int64
	Limit    int
	// After is an exclusive index cursor; negative values count from the
	// end of the stream. Nil lists from the start.
	After *int64
}

// ListRecords returns records ordered by index.
func (db *DB) ListRecords(ctx context.Context, opts ListRecords) (_ RecordPage, err error) {
	defer mon.Task()(&ctx)(&err)

	limit := clampLimit(opts.Limit)
	total, err := db.CountRecords(ctx, opts.StreamID)
	if err != nil {
		return RecordPage{}, err
	}
	cursor := resolveCursor(opts.After, total)

	rows, err := db.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE stream_id = $1 AND record_index > $2
		ORDER BY record_index
		LIMIT $3`,
		opts.StreamID, cursor, limit)
	if err != nil {
		return RecordPage{}, Error.New("unable to list records: %w", err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	page := RecordPage{Total: total}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return RecordPage{}, Error.Wrap(err)
		}
		page.Records = append(page.Records, record)
	}
	if err := rows.Err(); err != nil {
		return RecordPage{}, Error.Wrap(err)
	}

	if n := len(page.Records); n > 0 {
		page.HasMore = page.Records[n-1].Index+1 < total
	}
	return page, nil
}

// GetRecordRange contains arguments necessary for fetching the half-open
// index range [Start, End). Negative bounds count from the end.
type GetRecordRange struct {
	StreamID int64
	Start    int64
	End      int64
}

// GetRecordRange returns the records in [Start, End) ordered by index.
func (db *DB) GetRecordRange(ctx context.Context, opts GetRecordRange) (_ RecordPage, err error) {
	defer mon.Task()(&ctx)(&err)

	total, err := db.CountRecords(ctx, opts.StreamID)
	if err != nil {
		return RecordPage{}, err
	}

	start, end := opts.Start, opts.End
	if start < 0 {
		start += total
	}
	if end < 0 {
		end += total
	}
	if start > end {
		return RecordPage{}, ErrInvalidRange.New("start %d exceeds end %d", opts.Start, opts.End)
	}
	if start < 0 {
		start = 0
	}
	if end > total {
		end = total
	}

	page := RecordPage{Total: total, HasMore: end < total}
	if start >= end {
		return page, nil
	}

	rows, err := db.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE stream_id = $1 AND record_index >= $2 AND record_index < $3
		ORDER BY record_index`,
		opts.StreamID, start, end)
	if err != nil {
		return RecordPage{}, Error.New("unable to list records: %w", err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return RecordPage{}, Error.Wrap(err)
		}
		page.Records = append(page.Records, record)
	}
	return page, Error.Wrap(rows.Err())
}

// ListUniqueRecords contains arguments necessary for listing the latest
// record of each distinct name in a stream.
type ListUniqueRecords struct {
	StreamID int64
	Limit    int
	After    *int64

	// IncludeDeleted keeps names whose latest state is a tombstone.
	IncludeDeleted bool
}

// ListUniqueRecords returns, for each distinct name, its highest-index
// record. Tombstone bookkeeping records never appear; names they mark as
// deleted are skipped unless IncludeDeleted is set.
func (db *DB) ListUniqueRecords(ctx context.Context, opts ListUniqueRecords) (_ RecordPage, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := db.db.QueryContext(ctx, `
		SELECT DISTINCT ON (name) `+recordColumns+`
		FROM records
		WHERE stream_id = $1
		ORDER BY name, record_index DESC`,
		opts.StreamID)
	if err != nil {
		return RecordPage{}, Error.New("unable to list records: %w", err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	var latest []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return RecordPage{}, Error.Wrap(err)
		}
		latest = append(latest, record)
	}
	if err := rows.Err(); err != nil {
		return RecordPage{}, Error.Wrap(err)
	}

	return foldUnique(latest, opts.Limit, opts.After, opts.IncludeDeleted), nil
}

// foldUnique filters a latest-per-name listing down to visible records and
// applies cursor and limit. Records sharing a stream fold against tombstones
// within that stream only.
func foldUnique(latest []Record, limit int, after *int64, includeDeleted bool) RecordPage {
	type nameKey struct {
		streamID int64
		name     string
	}

	// Highest tombstone index per original name.
	deletedAt := make(map[nameKey]int64)
	for _, record := range latest {
		if original, ok := ParseTombstoneName(record.Name); ok {
			key := nameKey{record.StreamID, original}
			if current, ok := deletedAt[key]; !ok || record.Index > current {
				deletedAt[key] = record.Index
			}
		}
	}

	visible := make([]Record, 0, len(latest))
	for _, record := range latest {
		if _, ok := ParseTombstoneName(record.Name); ok {
			continue
		}
		tombstone, found := deletedAt[nameKey{record.StreamID, record.Name}]
		if found && tombstone > record.Index && !includeDeleted {
			continue
		}
		visible = append(visible, record)
	}
	sort.Slice(visible, func(i, k int) bool {
		if visible[i].Path != visible[k].Path {
			return visible[i].Path < visible[k].Path
		}
		return visible[i].Index < visible[k].Index
	})

	page := RecordPage{Total: int64(len(visible))}
	cursor := resolveCursor(after, page.Total)
	start := 0
	if after != nil {
		for start < len(visible) && visible[start].Index <= cursor {
			start++
		}
	}
	end := start + clampLimit(limit)
	if end > len(visible) {
		end = len(visible)
	}
	page.Records = visible[start:end]
	page.HasMore = end < len(visible)
	return page
}

// ListRecordsRecursive contains arguments necessary for listing records
// across a stream subtree. StreamIDs is the permission-filtered set of
// streams to read; the caller resolves it from the subtree.
type ListRecordsRecursive struct {
	StreamIDs []int64
	Limit     int
}

// ListRecordsRecursive returns records from the given streams ordered by
// record path, then index.
func (db *DB) ListRecordsRecursive(ctx context.Context, opts ListRecordsRecursive) (_ RecordPage, err error) {
	defer mon.Task()(&ctx)(&err)

	if len(opts.StreamIDs) == 0 {
		return RecordPage{}, nil
	}
	limit := clampLimit(opts.Limit)

	var total int64
	err = db.db.QueryRowContext(ctx, `
		SELECT count(*) FROM records WHERE stream_id = ANY($1)`,
		pgutil.Int8Array(opts.StreamIDs)).Scan(&total)
	if err != nil {
		return RecordPage{}, Error.New("unable to count records: %w", err)
	}

	rows, err := db.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE stream_id = ANY($1)
		ORDER BY path, record_index
		LIMIT $2`,
		pgutil.Int8Array(opts.StreamIDs), limit)
	if err != nil {
		return RecordPage{}, Error.New("unable to list records: %w", err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	page := RecordPage{Total: total}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return RecordPage{}, Error.Wrap(err)
		}
		page.Records = append(page.Records, record)
	}
	if err := rows.Err(); err != nil {
		return RecordPage{}, Error.Wrap(err)
	}
	page.HasMore = int64(len(page.Records)) < total
	return page, nil
}

// ListUniqueRecordsRecursive contains arguments necessary for a
// latest-per-name listing across a stream subtree.
type ListUniqueRecordsRecursive struct {
	StreamIDs      []int64
	Limit          int
	IncludeDeleted bool
}

// ListUniqueRecordsRecursive returns, for each distinct name in each given
// stream, its highest-index record.
func (db *DB) ListUniqueRecordsRecursive(ctx context.Context, opts ListUniqueRecordsRecursive) (_ RecordPage, err error) {
	defer mon.Task()(&ctx)(&err)

	if len(opts.StreamIDs) == 0 {
		return RecordPage{}, nil
	}

	rows, err := db.db.QueryContext(ctx, `
		SELECT DISTINCT ON (stream_id, name) `+recordColumns+`
		FROM records
		WHERE stream_id = ANY($1)
		ORDER BY stream_id, name, record_index DESC`,
		pgutil.Int8Array(opts.StreamIDs))
	if err != nil {
		return RecordPage{}, Error.New("unable to list records: %w", err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	var latest []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return RecordPage{}, Error.Wrap(err)
		}
		latest = append(latest, record)
	}
	if err := rows.Err(); err != nil {
		return RecordPage{}, Error.Wrap(err)
	}

	return foldUnique(latest, opts.Limit, nil, opts.IncludeDeleted), nil
}
