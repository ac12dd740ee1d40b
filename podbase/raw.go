// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package podbase

import (
	"context"

	"github.com/zeebo/errs"
)

// RawState contains the full content of the pod tables. It should be rarely
// used directly, outside of tests.
type RawState struct {
	Pods    []Pod
	Streams []Stream
	Records []Record
}

// TestingGetState returns the state of the database.
func (db *DB) TestingGetState(ctx context.Context) (_ *RawState, err error) {
	state := &RawState{}

	state.Pods, err = db.testingGetAllPods(ctx)
	if err != nil {
		return nil, Error.New("GetState: %w", err)
	}
	state.Streams, err = db.testingGetAllStreams(ctx)
	if err != nil {
		return nil, Error.New("GetState: %w", err)
	}
	state.Records, err = db.testingGetAllRecords(ctx)
	if err != nil {
		return nil, Error.New("GetState: %w", err)
	}
	return state, nil
}

// TestingDeleteAll deletes everything from the pod tables.
func (db *DB) TestingDeleteAll(ctx context.Context) (err error) {
	// One statement per exec; the pgx extended protocol does not allow
	// multi-statement commands.
	for _, table := range []string{
		"custom_domains", "rate_limits", "records", "streams", "pods",
		"sessions", "identities", "oauth_states", "oauth_clients", "users",
	} {
		if _, err := db.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return Error.Wrap(err)
		}
	}
	return nil
}

func (db *DB) testingGetAllPods(ctx context.Context) (_ []Pod, err error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT name, metadata, created_at
		FROM pods
		ORDER BY name`)
	if err != nil {
		return nil, Error.New("testingGetAllPods query: %w", err)
	}
	defer func() { err = errs.Combine(err, rows.Close()) }()

	var pods []Pod
	for rows.Next() {
		var pod Pod
		if err := rows.Scan(&pod.Name, &pod.Metadata, &pod.CreatedAt); err != nil {
			return nil, Error.New("testingGetAllPods scan failed: %w", err)
		}
		pods = append(pods, pod)
	}
	return pods, Error.Wrap(rows.Err())
}

func (db *DB) testingGetAllStreams(ctx context.Context) (_ []Stream, err error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT `+streamColumns+`
		FROM streams
		ORDER BY pod_name, path`)
	if err != nil {
		return nil, Error.New("testingGetAllStreams query: %w", err)
	}
	defer func() { err = errs.Combine(err, rows.Close()) }()

	var streams []Stream
	for rows.Next() {
		stream, err := scanStream(rows)
		if err != nil {
			return nil, Error.New("testingGetAllStreams scan failed: %w", err)
		}
		streams = append(streams, stream)
	}
	return streams, Error.Wrap(rows.Err())
}

func (db *DB) testingGetAllRecords(ctx context.Context) (_ []Record, err error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM records
		ORDER BY stream_id, record_index`)
	if err != nil {
		return nil, Error.New("testingGetAllRecords query: %w", err)
	}
	defer func() { err = errs.Combine(err, rows.Close()) }()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, Error.New("testingGetAllRecords scan failed: %w", err)
		}
		records = append(records, record)
	}
	return records, Error.Wrap(rows.Err())
}
