// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package treecache implements the in-process read cache: four independent
// LRU pools whose keys form a `:`-separated hierarchy, so a writer can
// invalidate everything under a prefix in one call.
package treecache

import (
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"

	"storj.io/webpods/private/memory"
)

var (
	// Error is the default error class for the package.
	Error = errs.Class("treecache")

	// ErrInvalidPattern is returned for malformed invalidation patterns.
	ErrInvalidPattern = errs.Class("invalid pattern")

	mon = monkit.Package()
)

// Config holds the tuning knobs for all four pools.
type Config struct {
	PodTTL         time.Duration `help:"how long pod metadata stays cached" default:"5m"`
	PodCapacity    int           `help:"maximum number of entries in the pod pool" default:"1000"`
	StreamTTL      time.Duration `help:"how long stream metadata stays cached" default:"5m"`
	StreamCapacity int           `help:"maximum number of entries in the stream pool" default:"5000"`
	RecordTTL      time.Duration `help:"how long single records stay cached" default:"1m"`
	RecordCapacity int           `help:"maximum number of entries in the single-record pool" default:"10000"`
	MaxRecordSize  memory.Size   `help:"largest record admitted to the single-record pool" default:"10KiB"`
	ListTTL        time.Duration `help:"how long record listings stay cached" default:"30s"`
	ListCapacity   int           `help:"maximum number of cached listings" default:"500"`
	MaxListSize    memory.Size   `help:"largest listing admitted to the list pool" default:"100KiB"`
	MaxListRecords int           `help:"largest record count admitted to the list pool" default:"1000"`
}

// Cache aggregates the four pools. Keys are scoped to their pool, but all
// pools share the key grammar, so invalidation patterns apply across them.
type Cache struct {
	Pods          *Pool
	Streams       *Pool
	SingleRecords *Pool
	RecordLists   *Pool

	maxListRecords int
}

// New constructs a Cache with the given configuration.
func New(config Config) *Cache {
	return &Cache{
		Pods: NewPool(Options{
			Name:     "pods",
			Capacity: config.PodCapacity,
			TTL:      config.PodTTL,
		}),
		Streams: NewPool(Options{
			Name:     "streams",
			Capacity: config.StreamCapacity,
			TTL:      config.StreamTTL,
		}),
		SingleRecords: NewPool(Options{
			Name:         "singleRecords",
			Capacity:     config.RecordCapacity,
			TTL:          config.RecordTTL,
			MaxValueSize: config.MaxRecordSize.Int64(),
		}),
		RecordLists: NewPool(Options{
			Name:         "recordLists",
			Capacity:     config.ListCapacity,
			TTL:          config.ListTTL,
			MaxValueSize: config.MaxListSize.Int64(),
		}),
		maxListRecords: config.MaxListRecords,
	}
}

// MaxListRecords returns the record-count admission bound for listings.
// Counting is the caller's job: the pools only see opaque values.
func (cache *Cache) MaxListRecords() int { return cache.maxListRecords }

// pools returns the pools in reporting order.
func (cache *Cache) pools() []*Pool {
	return []*Pool{cache.Pods, cache.Streams, cache.SingleRecords, cache.RecordLists}
}

// Invalidate removes every entry matching the pattern from all pools and
// returns the total number of removed entries.
func (cache *Cache) Invalidate(pattern string) (removed int, err error) {
	for _, pool := range cache.pools() {
		n, err := pool.InvalidatePattern(pattern)
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

// ResetAll clears every pool. It exists for the test-utilities surface.
func (cache *Cache) ResetAll() {
	for _, pool := range cache.pools() {
		pool.Reset()
	}
}

// Stats returns per-pool counters keyed by pool name.
func (cache *Cache) Stats() map[string]Stats {
	stats := make(map[string]Stats, 4)
	for _, pool := range cache.pools() {
		stats[pool.Name()] = pool.Stats()
	}
	return stats
}
