// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package podbase

import (
	"context"
	"time"
)

// BumpRateLimit contains arguments necessary for incrementing a rate limit
// counter for the window starting at WindowStart.
type BumpRateLimit struct {
	Identifier  string
	Action      string
	WindowStart time.Time
}

// Verify verifies rate limit fields.
func (opts *BumpRateLimit) Verify() error {
	switch {
	case opts.Identifier == "":
		return ErrInvalidRequest.New("Identifier missing")
	case opts.Action == "":
		return ErrInvalidRequest.New("Action missing")
	case opts.WindowStart.IsZero():
		return ErrInvalidRequest.New("WindowStart missing")
	}
	return nil
}

// BumpRateLimit atomically increments the counter for (identifier, action)
// in the given window and returns the new count. Expired windows for the
// same pair are reaped opportunistically.
func (db *DB) BumpRateLimit(ctx context.Context, opts BumpRateLimit) (count int64, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := opts.Verify(); err != nil {
		return 0, err
	}

	err = db.db.QueryRowContext(ctx, `
		INSERT INTO rate_limits (identifier, action, count, window_start)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (identifier, action, window_start)
		DO UPDATE SET count = rate_limits.count + 1
		RETURNING count`,
		opts.Identifier, opts.Action, opts.WindowStart).Scan(&count)
	if err != nil {
		return 0, Error.New("unable to bump rate limit: %w", err)
	}

	_, err = db.db.ExecContext(ctx, `
		DELETE FROM rate_limits
		WHERE identifier = $1 AND action = $2 AND window_start < $3`,
		opts.Identifier, opts.Action, opts.WindowStart)
	if err != nil {
		return 0, Error.New("unable to reap rate limit windows: %w", err)
	}

	return count, nil
}
