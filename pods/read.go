// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package pods

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"storj.io/webpods/access"
	"storj.io/webpods/podbase"
	"storj.io/webpods/treecache"
)

// GetRecord contains arguments necessary for reading the latest version of
// a named record.
type GetRecord struct {
	Caller *access.User

	Pod        podbase.PodName
	StreamPath string
	Name       string

	// IncludeDeleted returns content hidden by a later deletion marker.
	IncludeDeleted bool
}

// GetRecord returns the record and its stream. Repeat reads are served from
// the cache until the stream's next write.
func (service *Service) GetRecord(ctx context.Context, opts GetRecord) (_ podbase.Record, _ podbase.Stream, err error) {
	defer mon.Task()(&ctx)(&err)

	stream, err := service.lookupStream(ctx, opts.Pod, opts.StreamPath)
	if err != nil {
		return podbase.Record{}, podbase.Stream{}, err
	}
	if err := service.requireRead(ctx, opts.Caller, stream); err != nil {
		return podbase.Record{}, podbase.Stream{}, err
	}

	key := treecache.RecordKey(string(opts.Pod), stream.Path, opts.Name)
	if !opts.IncludeDeleted {
		if cached, ok := service.cache.SingleRecords.Get(key); ok {
			if record, ok := cached.(podbase.Record); ok {
				return record, stream, nil
			}
		}
	}

	record, err := service.db.GetRecordByName(ctx, podbase.GetRecordByName{
		StreamID:       stream.ID,
		Name:           opts.Name,
		IncludeDeleted: opts.IncludeDeleted,
	})
	if err != nil {
		return podbase.Record{}, podbase.Stream{}, err
	}
	if !opts.IncludeDeleted {
		service.cache.SingleRecords.Set(key, record)
	}
	return record, stream, nil
}

// GetRecordAt contains arguments necessary for reading a record by index.
// Negative indexes count from the end of the stream.
type GetRecordAt struct {
	Caller *access.User

	Pod        podbase.PodName
	StreamPath string
	Index      int64

	IncludeDeleted bool
}

// GetRecordAt returns the record at the given stream index.
func (service *Service) GetRecordAt(ctx context.Context, opts GetRecordAt) (_ podbase.Record, _ podbase.Stream, err error) {
	defer mon.Task()(&ctx)(&err)

	stream, err := service.lookupStream(ctx, opts.Pod, opts.StreamPath)
	if err != nil {
		return podbase.Record{}, podbase.Stream{}, err
	}
	if err := service.requireRead(ctx, opts.Caller, stream); err != nil {
		return podbase.Record{}, podbase.Stream{}, err
	}

	// Negative indexes shift on every append, so only absolute positions
	// are worth a cache probe.
	if !opts.IncludeDeleted && opts.Index >= 0 {
		key := treecache.RecordIndexKey(string(opts.Pod), stream.Path, opts.Index)
		if cached, ok := service.cache.SingleRecords.Get(key); ok {
			if record, ok := cached.(podbase.Record); ok {
				return record, stream, nil
			}
		}
	}

	record, err := service.db.GetRecordByIndex(ctx, podbase.GetRecordByIndex{
		StreamID:       stream.ID,
		Index:          opts.Index,
		IncludeDeleted: opts.IncludeDeleted,
	})
	if err != nil {
		return podbase.Record{}, podbase.Stream{}, err
	}
	if !opts.IncludeDeleted {
		key := treecache.RecordIndexKey(string(opts.Pod), stream.Path, record.Index)
		service.cache.SingleRecords.Set(key, record)
	}
	return record, stream, nil
}

// GetRecordRange contains arguments necessary for reading the half-open
// index range [Start, End). Negative bounds count from the end.
type GetRecordRange struct {
	Caller *access.User

	Pod        podbase.PodName
	StreamPath string
	Start      int64
	End        int64
}

// GetRecordRange returns the records in [Start, End) ordered by index.
func (service *Service) GetRecordRange(ctx context.Context, opts GetRecordRange) (_ podbase.RecordPage, err error) {
	defer mon.Task()(&ctx)(&err)

	stream, err := service.lookupStream(ctx, opts.Pod, opts.StreamPath)
	if err != nil {
		return podbase.RecordPage{}, err
	}
	if err := service.requireRead(ctx, opts.Caller, stream); err != nil {
		return podbase.RecordPage{}, err
	}

	key := treecache.ListKey(string(opts.Pod), stream.Path,
		fmt.Sprintf("i=%d:%d", opts.Start, opts.End))
	if cached, ok := service.cache.RecordLists.Get(key); ok {
		if page, ok := cached.(podbase.RecordPage); ok {
			return page, nil
		}
	}

	page, err := service.db.GetRecordRange(ctx, podbase.GetRecordRange{
		StreamID: stream.ID,
		Start:    opts.Start,
		End:      opts.End,
	})
	if err != nil {
		return podbase.RecordPage{}, err
	}
	if len(page.Records) <= service.cache.MaxListRecords() {
		service.cache.RecordLists.Set(key, page)
	}
	return page, nil
}

// ListRecords contains arguments necessary for the stream listing variants.
type ListRecords struct {
	Caller *access.User

	Pod        podbase.PodName
	StreamPath string

	Limit int
	// After is an exclusive index cursor; nil lists from the start.
	After *int64
	// Unique keeps only the latest record per name.
	Unique bool
	// Recursive includes records from the whole subtree, skipping subtrees
	// the caller may not read.
	Recursive bool
	// IncludeDeleted keeps names whose latest state is a deletion marker.
	IncludeDeleted bool
}

// ListRecords returns a page of the stream's records.
func (service *Service) ListRecords(ctx context.Context, opts ListRecords) (_ podbase.RecordPage, err error) {
	defer mon.Task()(&ctx)(&err)

	if opts.Recursive {
		return service.listRecursive(ctx, opts)
	}

	stream, err := service.lookupStream(ctx, opts.Pod, opts.StreamPath)
	if err != nil {
		return podbase.RecordPage{}, err
	}
	if err := service.requireRead(ctx, opts.Caller, stream); err != nil {
		return podbase.RecordPage{}, err
	}

	key := treecache.ListKey(string(opts.Pod), stream.Path, listQueryKey(opts))
	if cached, ok := service.cache.RecordLists.Get(key); ok {
		if page, ok := cached.(podbase.RecordPage); ok {
			return page, nil
		}
	}

	var page podbase.RecordPage
	if opts.Unique {
		page, err = service.db.ListUniqueRecords(ctx, podbase.ListUniqueRecords{
			StreamID:       stream.ID,
			Limit:          opts.Limit,
			After:          opts.After,
			IncludeDeleted: opts.IncludeDeleted,
		})
	} else {
		page, err = service.db.ListRecords(ctx, podbase.ListRecords{
			StreamID: stream.ID,
			Limit:    opts.Limit,
			After:    opts.After,
		})
	}
	if err != nil {
		return podbase.RecordPage{}, err
	}
	if len(page.Records) <= service.cache.MaxListRecords() {
		service.cache.RecordLists.Set(key, page)
	}
	return page, nil
}

// listQueryKey canonicalizes the listing parameters for the cache key.
func listQueryKey(opts ListRecords) string {
	after := ""
	if opts.After != nil {
		after = strconv.FormatInt(*opts.After, 10)
	}
	return fmt.Sprintf("limit=%d&after=%s&unique=%t&deleted=%t",
		opts.Limit, after, opts.Unique, opts.IncludeDeleted)
}

// listRecursive walks the stream subtree. Results depend on which subtrees
// the caller may read, so they are never cached.
func (service *Service) listRecursive(ctx context.Context, opts ListRecords) (_ podbase.RecordPage, err error) {
	defer mon.Task()(&ctx)(&err)

	streams, err := service.db.ListStreamsByPrefix(ctx, podbase.ListStreamsByPrefix{
		Pod:        opts.Pod,
		PathPrefix: opts.StreamPath,
	})
	if err != nil {
		return podbase.RecordPage{}, err
	}
	if len(streams) == 0 {
		return podbase.RecordPage{}, podbase.ErrStreamNotFound.New("stream %q not found in pod %q", opts.StreamPath, opts.Pod)
	}

	readable, err := service.readableSubtrees(ctx, opts.Caller, streams)
	if err != nil {
		return podbase.RecordPage{}, err
	}
	ids := make([]int64, 0, len(readable))
	for _, stream := range readable {
		ids = append(ids, stream.ID)
	}

	if opts.Unique {
		return service.db.ListUniqueRecordsRecursive(ctx, podbase.ListUniqueRecordsRecursive{
			StreamIDs:      ids,
			Limit:          opts.Limit,
			IncludeDeleted: opts.IncludeDeleted,
		})
	}
	return service.db.ListRecordsRecursive(ctx, podbase.ListRecordsRecursive{
		StreamIDs: ids,
		Limit:     opts.Limit,
	})
}

// readableSubtrees keeps the streams the caller may read, dropping whole
// subtrees below a denied stream. The input must be ordered by path so
// ancestors are seen before descendants.
func (service *Service) readableSubtrees(ctx context.Context, caller *access.User, streams []podbase.Stream) (_ []podbase.Stream, err error) {
	defer mon.Task()(&ctx)(&err)

	kept := make([]podbase.Stream, 0, len(streams))
	var denied []string
next:
	for _, stream := range streams {
		for _, prefix := range denied {
			if strings.HasPrefix(stream.Path, prefix) {
				continue next
			}
		}
		allowed, err := service.access.CanRead(ctx, caller, stream)
		if err != nil {
			return nil, err
		}
		if !allowed {
			denied = append(denied, stream.Path+"/")
			continue
		}
		kept = append(kept, stream)
	}
	return kept, nil
}

// HeadStream contains arguments necessary for reading stream metadata.
type HeadStream struct {
	Caller *access.User

	Pod        podbase.PodName
	StreamPath string
}

// StreamStats summarizes a stream for metadata responses.
type StreamStats struct {
	Stream podbase.Stream
	Total  int64

	// LastHash and LastModified describe the tail record, zero on an empty
	// stream.
	LastHash     string
	LastModified time.Time
}

// HeadStream returns the stream's record count and tail chain position.
func (service *Service) HeadStream(ctx context.Context, opts HeadStream) (_ StreamStats, err error) {
	defer mon.Task()(&ctx)(&err)

	stream, err := service.lookupStream(ctx, opts.Pod, opts.StreamPath)
	if err != nil {
		return StreamStats{}, err
	}
	if err := service.requireRead(ctx, opts.Caller, stream); err != nil {
		return StreamStats{}, err
	}

	total, err := service.db.CountRecords(ctx, stream.ID)
	if err != nil {
		return StreamStats{}, err
	}
	stats := StreamStats{Stream: stream, Total: total}
	if total > 0 {
		tail, err := service.db.GetRecordByIndex(ctx, podbase.GetRecordByIndex{
			StreamID:       stream.ID,
			Index:          total - 1,
			IncludeDeleted: true,
		})
		if err != nil {
			return StreamStats{}, err
		}
		stats.LastHash = tail.Hash
		stats.LastModified = tail.CreatedAt
	}
	return stats, nil
}

// VerifyStream contains arguments necessary for verifying a stream's hash
// chain.
type VerifyStream struct {
	Caller *access.User

	Pod        podbase.PodName
	StreamPath string
}

// VerifyStream recomputes the stream's hash chain and reports the first
// break, if any.
func (service *Service) VerifyStream(ctx context.Context, opts VerifyStream) (_ podbase.VerifyStreamResult, err error) {
	defer mon.Task()(&ctx)(&err)

	stream, err := service.lookupStream(ctx, opts.Pod, opts.StreamPath)
	if err != nil {
		return podbase.VerifyStreamResult{}, err
	}
	if err := service.requireRead(ctx, opts.Caller, stream); err != nil {
		return podbase.VerifyStreamResult{}, err
	}
	return service.db.VerifyStream(ctx, podbase.VerifyStream{StreamID: stream.ID})
}
