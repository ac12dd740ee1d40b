// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package podbase

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"storj.io/webpods/private/tagsql"
)

// GetPod contains arguments necessary for fetching a pod.
type GetPod struct {
	Name PodName
}

// GetPod returns pod metadata.
func (db *DB) GetPod(ctx context.Context, opts GetPod) (_ Pod, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := opts.Name.Verify(); err != nil {
		return Pod{}, err
	}

	pod := Pod{Name: opts.Name}
	err = db.db.QueryRowContext(ctx, `
		SELECT metadata, created_at
		FROM pods
		WHERE name = $1`,
		opts.Name).
		Scan(&pod.Metadata, &pod.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Pod{}, ErrPodNotFound.Wrap(Error.Wrap(err))
		}
		return Pod{}, Error.New("unable to query pod: %w", err)
	}

	return pod, nil
}

// ensurePod inserts the pod row if it does not exist yet. When the pod is
// created it also creates the config stream and chains the initial owner
// record into it, so a pod is never observable without an owner.
func (db *DB) ensurePod(ctx context.Context, tx tagsql.Tx, name PodName, ownerID string) (created bool, err error) {
	defer mon.Task()(&ctx)(&err)

	var inserted bool
	err = tx.QueryRowContext(ctx, `
		INSERT INTO pods (name)
		VALUES ($1)
		ON CONFLICT (name) DO NOTHING
		RETURNING true`,
		name).Scan(&inserted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, Error.New("unable to create pod: %w", err)
	}

	configStream, err := db.createStream(ctx, tx, createStream{
		Pod:    name,
		Name:   ConfigStreamName,
		Access: AccessPrivate,
		UserID: ownerID,
	})
	if err != nil {
		return false, err
	}

	content, err := json.Marshal(map[string]string{"owner": ownerID})
	if err != nil {
		return false, Error.Wrap(err)
	}
	_, err = db.insertRecord(ctx, tx, insertRecord{
		Stream:      configStream,
		Name:        OwnerRecordName,
		Content:     string(content),
		ContentType: "application/json",
		UserID:      ownerID,
	})
	if err != nil {
		return false, err
	}

	return true, nil
}
