// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package podbase

import (
	"storj.io/webpods/private/migrate"
)

// PostgresMigration returns steps needed for migrating the pod database.
func (db *DB) PostgresMigration() *migrate.Migration {
	return &migrate.Migration{
		Table: "podbase_versions",
		Steps: []*migrate.Step{
			{
				DB:          db.db,
				Description: "initial setup",
				Version:     1,
				Action: migrate.SQL{
					`CREATE TABLE pods (
						name       TEXT NOT NULL,
						metadata   TEXT NOT NULL DEFAULT '',
						created_at TIMESTAMPTZ NOT NULL DEFAULT now(),

						PRIMARY KEY (name)
					)`,
					`CREATE TABLE streams (
						id        BIGSERIAL NOT NULL,
						pod_name  TEXT NOT NULL REFERENCES pods (name) ON DELETE CASCADE,
						name      TEXT NOT NULL,
						parent_id BIGINT REFERENCES streams (id) ON DELETE CASCADE,
						path      TEXT NOT NULL,

						user_id           TEXT NOT NULL,
						access_permission TEXT NOT NULL DEFAULT 'public',
						has_schema        BOOLEAN NOT NULL DEFAULT false,
						metadata          TEXT NOT NULL DEFAULT '',
						created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),

						PRIMARY KEY (id),
						UNIQUE (pod_name, path)
					)`,
					// Sibling names must be unique under a parent; NULL parents
					// compare unequal so root streams need their own index.
					`CREATE UNIQUE INDEX streams_parent_name_index ON streams (pod_name, parent_id, name) WHERE parent_id IS NOT NULL`,
					`CREATE UNIQUE INDEX streams_root_name_index ON streams (pod_name, name) WHERE parent_id IS NULL`,
					`CREATE TABLE records (
						id           BIGSERIAL NOT NULL,
						stream_id    BIGINT NOT NULL REFERENCES streams (id) ON DELETE CASCADE,
						record_index BIGINT NOT NULL, -- using 'record_index' instead of 'index' to avoid reserved word
						name         TEXT NOT NULL,
						path         TEXT NOT NULL,

						content      TEXT NOT NULL DEFAULT '',
						content_type TEXT NOT NULL DEFAULT 'text/plain',
						size         BIGINT NOT NULL DEFAULT 0,
						headers      JSONB,

						content_hash  TEXT NOT NULL,
						hash          TEXT NOT NULL,
						previous_hash TEXT,

						user_id    TEXT NOT NULL,
						storage    TEXT,
						created_at TIMESTAMPTZ NOT NULL DEFAULT now(),

						PRIMARY KEY (id),
						UNIQUE (stream_id, record_index)
					)`,
					`CREATE INDEX records_stream_name_index ON records (stream_id, name, record_index DESC)`,
				},
			},
			{
				DB:          db.db,
				Description: "identity tables",
				Version:     2,
				Action: migrate.SQL{
					`CREATE TABLE users (
						id         TEXT NOT NULL,
						name       TEXT NOT NULL DEFAULT '',
						email      TEXT NOT NULL DEFAULT '',
						created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
						updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),

						PRIMARY KEY (id)
					)`,
					`CREATE TABLE identities (
						id          TEXT NOT NULL,
						user_id     TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
						provider    TEXT NOT NULL,
						provider_id TEXT NOT NULL,
						email       TEXT,
						name        TEXT,
						metadata    TEXT NOT NULL DEFAULT '',
						created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),

						PRIMARY KEY (id),
						UNIQUE (provider, provider_id)
					)`,
					`CREATE TABLE sessions (
						id         TEXT NOT NULL,
						user_id    TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
						expires_at TIMESTAMPTZ NOT NULL,
						created_at TIMESTAMPTZ NOT NULL DEFAULT now(),

						PRIMARY KEY (id)
					)`,
					`CREATE TABLE oauth_states (
						state      TEXT NOT NULL,
						pod        TEXT,
						redirect   TEXT NOT NULL DEFAULT '',
						expires_at TIMESTAMPTZ NOT NULL,
						created_at TIMESTAMPTZ NOT NULL DEFAULT now(),

						PRIMARY KEY (state)
					)`,
					`CREATE TABLE oauth_clients (
						client_id     TEXT NOT NULL,
						client_secret TEXT NOT NULL,
						name          TEXT NOT NULL,
						redirect_uris TEXT NOT NULL DEFAULT '',
						user_id       TEXT REFERENCES users (id) ON DELETE CASCADE,
						created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),

						PRIMARY KEY (client_id)
					)`,
				},
			},
			{
				DB:          db.db,
				Description: "rate limits and custom domains",
				Version:     3,
				Action: migrate.SQL{
					`CREATE TABLE rate_limits (
						identifier   TEXT NOT NULL,
						action       TEXT NOT NULL,
						count        BIGINT NOT NULL DEFAULT 0,
						window_start TIMESTAMPTZ NOT NULL,

						PRIMARY KEY (identifier, action, window_start)
					)`,
					`CREATE TABLE custom_domains (
						domain      TEXT NOT NULL,
						pod_name    TEXT NOT NULL REFERENCES pods (name) ON DELETE CASCADE,
						verified    BOOLEAN NOT NULL DEFAULT false,
						ssl_enabled BOOLEAN NOT NULL DEFAULT false,
						created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),

						PRIMARY KEY (domain)
					)`,
					`CREATE INDEX custom_domains_pod_index ON custom_domains (pod_name)`,
				},
			},
		},
	}
}
