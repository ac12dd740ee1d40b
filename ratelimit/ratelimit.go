// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package ratelimit enforces per-identifier hourly request quotas backed by
// the rate_limits table, so limits hold across processes.
package ratelimit

import (
	"context"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/webpods/podbase"
)

var (
	// Error is the default error class for the package.
	Error = errs.Class("ratelimit")

	mon = monkit.Package()
)

// Action classifies a request for quota purposes.
type Action string

// The counted actions.
const (
	ActionRead         Action = "read"
	ActionWrite        Action = "write"
	ActionPodCreate    Action = "pod_create"
	ActionStreamCreate Action = "stream_create"
)

// Config holds the hourly limits. A non-positive limit disables counting
// for that action.
type Config struct {
	Enabled           bool  `help:"enable request rate limiting" default:"true"`
	ReadLimit         int64 `help:"reads allowed per identifier per hour" default:"10000"`
	WriteLimit        int64 `help:"writes allowed per identifier per hour" default:"1000"`
	PodCreateLimit    int64 `help:"pod creations allowed per identifier per hour" default:"10"`
	StreamCreateLimit int64 `help:"stream creations allowed per identifier per hour" default:"100"`
}

// Decision is the outcome of a rate-limit check, carrying everything the
// HTTP layer needs for the X-RateLimit headers.
type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// ExceededError is returned when a quota check fails, carrying the decision
// so the HTTP layer can emit the X-RateLimit headers and Retry-After.
type ExceededError struct {
	Decision Decision
}

// Error implements error.
func (e *ExceededError) Error() string {
	return "rate limit exceeded, resets at " + e.Decision.ResetAt.UTC().Format(time.RFC3339)
}

// Exceeded wraps a denying decision into an ExceededError.
func Exceeded(decision Decision) error {
	return &ExceededError{Decision: decision}
}

// Limiter counts requests per (identifier, action) in hourly windows.
type Limiter struct {
	log    *zap.Logger
	db     *podbase.DB
	config Config

	now func() time.Time
}

// New constructs a Limiter.
func New(log *zap.Logger, db *podbase.DB, config Config) *Limiter {
	return &Limiter{
		log:    log,
		db:     db,
		config: config,
		now:    time.Now,
	}
}

// Allow counts the request against the identifier's hourly window and
// decides whether it may proceed. A database failure lets the request
// through: availability over strict enforcement.
func (limiter *Limiter) Allow(ctx context.Context, identifier string, action Action) (_ Decision, err error) {
	defer mon.Task()(&ctx)(&err)

	limit := limiter.limitFor(action)
	window := limiter.now().UTC().Truncate(time.Hour)
	resetAt := window.Add(time.Hour)

	if !limiter.config.Enabled || limit <= 0 {
		return Decision{Allowed: true, Limit: limit, Remaining: limit, ResetAt: resetAt}, nil
	}

	count, err := limiter.db.BumpRateLimit(ctx, podbase.BumpRateLimit{
		Identifier:  identifier,
		Action:      string(action),
		WindowStart: window,
	})
	if err != nil {
		limiter.log.Warn("rate limit counter unavailable, allowing request",
			zap.String("identifier", identifier),
			zap.String("action", string(action)),
			zap.Error(err))
		mon.Event("ratelimit_fail_open")
		return Decision{Allowed: true, Limit: limit, Remaining: limit, ResetAt: resetAt}, nil
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	if count > limit {
		mon.Event("ratelimit_exceeded", monkit.NewSeriesTag("action", string(action)))
	}
	return Decision{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

func (limiter *Limiter) limitFor(action Action) int64 {
	switch action {
	case ActionRead:
		return limiter.config.ReadLimit
	case ActionWrite:
		return limiter.config.WriteLimit
	case ActionPodCreate:
		return limiter.config.PodCreateLimit
	case ActionStreamCreate:
		return limiter.config.StreamCreateLimit
	}
	return 0
}

// UserIdentifier keys the quota of an authenticated user.
func UserIdentifier(userID string) string { return "user:" + userID }

// IPIdentifier keys the quota of an anonymous caller by address.
func IPIdentifier(host string) string { return "ip:" + host }
