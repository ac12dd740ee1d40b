// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package pods combines the record store, the permission engine, the
// hierarchical cache, the blob store and the rate limiter into the write,
// read and delete operations the HTTP surface exposes.
package pods

import (
	"context"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/webpods/access"
	"storj.io/webpods/blobstore"
	"storj.io/webpods/podbase"
	"storj.io/webpods/private/lrucache"
	"storj.io/webpods/ratelimit"
	"storj.io/webpods/treecache"
)

var (
	// Error is the default error class for the package.
	Error = errs.Class("pods")
	// ErrForbidden is returned when the caller lacks permission for the
	// operation.
	ErrForbidden = errs.Class("forbidden")
	// ErrSchemaViolation is returned when record content fails the stream's
	// schema in strict mode, and when meta records are malformed.
	ErrSchemaViolation = errs.Class("schema violation")

	mon = monkit.Package()
)

// Config contains configurable values for the service.
type Config struct {
	SchemaCacheCapacity int           `help:"how many compiled JSON schemas stay in memory" default:"100"`
	SchemaCacheTTL      time.Duration `help:"how long a compiled JSON schema may be reused" default:"1h"`
}

// Service implements the pod operations on top of the storage, permission,
// cache, blob and rate limiting subsystems.
type Service struct {
	log     *zap.Logger
	db      *podbase.DB
	cache   *treecache.Cache
	access  *access.Engine
	blobs   blobstore.Store
	limiter *ratelimit.Limiter

	schemas *lrucache.ExpiringLRUOf[*jsonschema.Schema]
}

// New constructs a Service. The blob store may be nil, which disables
// external content offload.
func New(log *zap.Logger, db *podbase.DB, cache *treecache.Cache, accessEngine *access.Engine, blobs blobstore.Store, limiter *ratelimit.Limiter, config Config) *Service {
	return &Service{
		log:     log,
		db:      db,
		cache:   cache,
		access:  accessEngine,
		blobs:   blobs,
		limiter: limiter,
		schemas: lrucache.NewOf[*jsonschema.Schema](lrucache.Options{
			Expiration: config.SchemaCacheTTL,
			Capacity:   config.SchemaCacheCapacity,
			Name:       "schemas",
		}),
	}
}

// lookupStream returns the stream at the given path, serving repeated
// lookups from the streams pool. Misses are not cached.
func (service *Service) lookupStream(ctx context.Context, pod podbase.PodName, path string) (_ podbase.Stream, err error) {
	defer mon.Task()(&ctx)(&err)

	key := treecache.StreamMetaKey(string(pod), path)
	if cached, ok := service.cache.Streams.Get(key); ok {
		if stream, ok := cached.(podbase.Stream); ok {
			return stream, nil
		}
	}

	stream, err := service.db.GetStreamByPath(ctx, podbase.GetStreamByPath{Pod: pod, Path: path})
	if err != nil {
		return podbase.Stream{}, err
	}
	service.cache.Streams.Set(key, stream)
	return stream, nil
}

// invalidateStream drops every cached entry under the stream after a write
// commits. Writes under system paths wipe the whole pod: config records
// change ownership and permission decisions everywhere under it.
func (service *Service) invalidateStream(pod podbase.PodName, streamPath string, createdStreams bool) {
	if podbase.IsSystemPath(streamPath) {
		service.invalidate(treecache.PodPattern(string(pod)))
		return
	}
	service.invalidate(treecache.StreamPattern(string(pod), streamPath))
	if createdStreams {
		service.invalidate(treecache.StreamsPattern(string(pod)))
	}
}

// invalidate applies one pattern. Failures are logged: an invalidation
// error must not turn a committed write into a client error.
func (service *Service) invalidate(pattern string) {
	if _, err := service.cache.Invalidate(pattern); err != nil {
		service.log.Error("cache invalidation failed",
			zap.String("pattern", pattern),
			zap.Error(err))
	}
}

// requireRead folds the read permission check into the typed forbidden
// error.
func (service *Service) requireRead(ctx context.Context, caller *access.User, stream podbase.Stream) error {
	allowed, err := service.access.CanRead(ctx, caller, stream)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrForbidden.New("read of %q denied", stream.Path)
	}
	return nil
}

// requireOwner folds the ownership check into the typed forbidden error.
func (service *Service) requireOwner(ctx context.Context, caller *access.User, pod podbase.PodName) error {
	isOwner, err := service.access.IsOwner(ctx, caller, pod)
	if err != nil {
		return err
	}
	if !isOwner {
		return ErrForbidden.New("pod %q is owned by someone else", pod)
	}
	return nil
}
