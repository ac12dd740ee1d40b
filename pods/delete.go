// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package pods

import (
	"context"

	"go.uber.org/zap"

	"storj.io/webpods/access"
	"storj.io/webpods/podbase"
	"storj.io/webpods/treecache"
)

// DeleteRecord contains arguments necessary for tombstoning a record.
type DeleteRecord struct {
	Caller *access.User

	Pod        podbase.PodName
	StreamPath string
	Name       string

	// Purge additionally erases the stored content and the external blob.
	Purge bool
}

// DeleteRecord appends a deletion marker for the record. Only the pod owner
// may delete; the owner record itself cannot be deleted, since that would
// lock everyone out of the pod.
func (service *Service) DeleteRecord(ctx context.Context, opts DeleteRecord) (err error) {
	defer mon.Task()(&ctx)(&err)

	if opts.Caller == nil || opts.Caller.ID == "" {
		return ErrForbidden.New("writes require authentication")
	}
	stream, err := service.lookupStream(ctx, opts.Pod, opts.StreamPath)
	if err != nil {
		return err
	}
	if err := service.requireOwner(ctx, opts.Caller, opts.Pod); err != nil {
		return err
	}
	if stream.Path+"/"+opts.Name == podbase.OwnerRecordPath {
		return ErrForbidden.New("the owner record cannot be deleted")
	}

	result, err := service.db.DeleteRecord(ctx, podbase.DeleteRecord{
		Stream: stream,
		Name:   opts.Name,
		UserID: opts.Caller.ID,
		Purge:  opts.Purge,
	})
	if err != nil {
		return err
	}

	if result.PurgedStorage != "" && service.blobs != nil {
		if err := service.blobs.Delete(ctx, result.PurgedStorage); err != nil {
			service.log.Warn("purged blob removal failed",
				zap.String("locator", result.PurgedStorage),
				zap.Error(err))
		}
	}

	service.syncMetaRecord(ctx, opts.Pod, stream.Path, opts.Name)
	service.invalidateStream(opts.Pod, stream.Path, false)
	return nil
}

// DeleteStream contains arguments necessary for deleting a stream and its
// subtree.
type DeleteStream struct {
	Caller *access.User

	Pod        podbase.PodName
	StreamPath string
}

// DeleteStream removes the stream, its subtree and all contained records.
// Only the pod owner may delete, and system streams stay.
func (service *Service) DeleteStream(ctx context.Context, opts DeleteStream) (_ podbase.DeleteStreamResult, err error) {
	defer mon.Task()(&ctx)(&err)

	if opts.Caller == nil || opts.Caller.ID == "" {
		return podbase.DeleteStreamResult{}, ErrForbidden.New("writes require authentication")
	}
	stream, err := service.lookupStream(ctx, opts.Pod, opts.StreamPath)
	if err != nil {
		return podbase.DeleteStreamResult{}, err
	}
	if stream.IsSystem() {
		return podbase.DeleteStreamResult{}, ErrForbidden.New("system streams cannot be deleted")
	}
	if err := service.requireOwner(ctx, opts.Caller, opts.Pod); err != nil {
		return podbase.DeleteStreamResult{}, err
	}

	result, err := service.db.DeleteStream(ctx, podbase.DeleteStream{
		Pod:      opts.Pod,
		StreamID: stream.ID,
	})
	if err != nil {
		return podbase.DeleteStreamResult{}, err
	}

	if service.blobs != nil {
		if err := service.blobs.DeleteAll(ctx, string(opts.Pod), stream.Path); err != nil {
			service.log.Warn("stream blob cleanup failed",
				zap.String("pod", string(opts.Pod)),
				zap.String("path", stream.Path),
				zap.Error(err))
		}
	}

	// Cache keys embed the full stream path as a single segment, so every
	// deleted path needs its own invalidation.
	for _, path := range result.Paths {
		service.invalidate(treecache.StreamPattern(string(opts.Pod), path))
	}
	for _, id := range result.StreamIDs {
		service.cache.Streams.Delete(treecache.StreamIDKey(id))
	}
	service.invalidate(treecache.StreamsPattern(string(opts.Pod)))
	return result, nil
}
