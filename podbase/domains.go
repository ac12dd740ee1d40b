// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package podbase

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/zeebo/errs"

	"storj.io/webpods/private/dbutil/txutil"
	"storj.io/webpods/private/tagsql"
)

// CustomDomain maps an external hostname onto a pod.
type CustomDomain struct {
	Domain     string
	PodName    PodName
	Verified   bool
	SSLEnabled bool
	CreatedAt  time.Time
}

// GetPodByDomain returns the pod a custom domain routes to.
func (db *DB) GetPodByDomain(ctx context.Context, domain string) (_ PodName, err error) {
	defer mon.Task()(&ctx)(&err)

	var pod PodName
	err = db.db.QueryRowContext(ctx, `
		SELECT pod_name FROM custom_domains WHERE domain = $1`,
		domain).Scan(&pod)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrPodNotFound.Wrap(Error.Wrap(err))
		}
		return "", Error.New("unable to query custom domain: %w", err)
	}
	return pod, nil
}

// ListCustomDomains returns all custom domains registered for a pod.
func (db *DB) ListCustomDomains(ctx context.Context, pod PodName) (_ []CustomDomain, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := db.db.QueryContext(ctx, `
		SELECT domain, pod_name, verified, ssl_enabled, created_at
		FROM custom_domains
		WHERE pod_name = $1
		ORDER BY domain`,
		pod)
	if err != nil {
		return nil, Error.New("unable to list custom domains: %w", err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	var domains []CustomDomain
	for rows.Next() {
		var d CustomDomain
		if err := rows.Scan(&d.Domain, &d.PodName, &d.Verified, &d.SSLEnabled, &d.CreatedAt); err != nil {
			return nil, Error.Wrap(err)
		}
		domains = append(domains, d)
	}
	return domains, Error.Wrap(rows.Err())
}

// SetCustomDomains contains arguments necessary for replacing a pod's
// custom domain set, mirroring the pod's domain configuration records.
type SetCustomDomains struct {
	Pod     PodName
	Domains []string
}

// SetCustomDomains replaces the pod's registered custom domains. A domain
// claimed by another pod moves to this one.
func (db *DB) SetCustomDomains(ctx context.Context, opts SetCustomDomains) (err error) {
	defer mon.Task()(&ctx)(&err)

	if err := opts.Pod.Verify(); err != nil {
		return err
	}

	return txutil.WithTx(ctx, db.db, nil, func(ctx context.Context, tx tagsql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM custom_domains WHERE pod_name = $1`,
			opts.Pod)
		if err != nil {
			return Error.New("unable to clear custom domains: %w", err)
		}

		for _, domain := range opts.Domains {
			if domain == "" {
				continue
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO custom_domains (domain, pod_name)
				VALUES ($1, $2)
				ON CONFLICT (domain) DO UPDATE SET pod_name = EXCLUDED.pod_name`,
				domain, opts.Pod)
			if err != nil {
				return Error.New("unable to upsert custom domain: %w", err)
			}
		}
		return nil
	})
}
