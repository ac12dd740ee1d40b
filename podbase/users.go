// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package podbase

import (
	"context"
)

// EnsureUser contains arguments necessary for upserting a user row.
type EnsureUser struct {
	ID    string
	Name  string
	Email string
}

// Verify verifies user fields.
func (opts *EnsureUser) Verify() error {
	if opts.ID == "" {
		return ErrInvalidRequest.New("user ID missing")
	}
	return nil
}

// EnsureUser upserts the user row, refreshing name and email when provided.
// It is called on every authenticated write so the users table tracks every
// author the record tables reference.
func (db *DB) EnsureUser(ctx context.Context, opts EnsureUser) (err error) {
	defer mon.Task()(&ctx)(&err)

	if err := opts.Verify(); err != nil {
		return err
	}

	_, err = db.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name       = CASE WHEN EXCLUDED.name  = '' THEN users.name  ELSE EXCLUDED.name  END,
			email      = CASE WHEN EXCLUDED.email = '' THEN users.email ELSE EXCLUDED.email END,
			updated_at = now()`,
		opts.ID, opts.Name, opts.Email)
	if err != nil {
		return Error.New("unable to upsert user: %w", err)
	}
	return nil
}
