// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package pods

import (
	"context"
	"strings"

	"storj.io/webpods/access"
	"storj.io/webpods/blobstore"
	"storj.io/webpods/podbase"
	"storj.io/webpods/ratelimit"
)

// Append contains arguments necessary for appending a record on behalf of a
// caller. RateKey identifies the caller for the creation allowances; empty
// skips those checks.
type Append struct {
	Caller  *access.User
	RateKey string

	Pod        podbase.PodName
	StreamPath string
	Name       string

	Content     string
	ContentType string
	Headers     map[string]string

	// Access applies to the terminal stream if this append creates it.
	Access string
}

// Append authorizes and appends one record, then runs the meta record side
// effects and cache invalidation.
func (service *Service) Append(ctx context.Context, opts Append) (_ podbase.Record, err error) {
	defer mon.Task()(&ctx)(&err)

	if opts.Caller == nil || opts.Caller.ID == "" {
		return podbase.Record{}, ErrForbidden.New("writes require authentication")
	}
	if !opts.Caller.InScope(opts.Pod) {
		return podbase.Record{}, ErrForbidden.New("token is not scoped to pod %q", opts.Pod)
	}

	appendOpts := podbase.AppendRecord{
		Pod:         opts.Pod,
		Path:        opts.StreamPath,
		Name:        opts.Name,
		UserID:      opts.Caller.ID,
		Content:     opts.Content,
		ContentType: opts.ContentType,
		Headers:     opts.Headers,
		Access:      opts.Access,
	}
	if err := appendOpts.Verify(); err != nil {
		return podbase.Record{}, err
	}

	resolved, podExists, err := service.resolveWrite(ctx, opts.Pod, opts.StreamPath)
	if err != nil {
		return podbase.Record{}, err
	}
	if err := service.authorizeWrite(ctx, opts.Caller, opts.Pod, resolved, podExists); err != nil {
		return podbase.Record{}, err
	}
	if err := service.allowCreations(ctx, opts.RateKey, podExists, len(resolved.Missing())); err != nil {
		return podbase.Record{}, err
	}

	streamPath := podbase.JoinPath(resolved.Segments...)
	if err := checkMetaAppend(streamPath, appendOpts.Name, appendOpts.Content); err != nil {
		return podbase.Record{}, err
	}
	if resolved.Stream != nil && resolved.Stream.Path == streamPath && resolved.Stream.HasSchema {
		err := service.enforceSchema(ctx, opts.Pod, streamPath, appendOpts.Content, appendOpts.ContentType)
		if err != nil {
			return podbase.Record{}, err
		}
	}

	err = service.db.EnsureUser(ctx, podbase.EnsureUser{
		ID:    opts.Caller.ID,
		Name:  opts.Caller.Name,
		Email: opts.Caller.Email,
	})
	if err != nil {
		return podbase.Record{}, err
	}

	if service.blobs != nil {
		appendOpts.Externalize = func(ctx context.Context, record *podbase.Record) error {
			locator, err := service.blobs.Put(ctx, blobstore.Ref{
				Pod:         string(opts.Pod),
				StreamPath:  streamPath,
				Name:        record.Name,
				ContentHash: record.ContentHash,
				Ext:         blobstore.ExtensionFor(record.ContentType),
			}, podbase.CanonicalBytes(record.Content, record.ContentType))
			if err != nil {
				return err
			}
			record.Storage = locator
			return nil
		}
	}

	result, err := service.db.AppendRecord(ctx, appendOpts)
	if err != nil {
		return podbase.Record{}, err
	}

	service.syncMetaRecord(ctx, opts.Pod, result.Stream.Path, result.Record.Name)
	service.invalidateStream(opts.Pod, result.Stream.Path, len(result.CreatedStreams) > 0)
	return result.Record, nil
}

// CreateStream contains arguments necessary for explicitly creating a
// stream path, missing intermediates included.
type CreateStream struct {
	Caller  *access.User
	RateKey string

	Pod    podbase.PodName
	Path   string
	Access string
}

// CreateStream authorizes and creates the stream path. The result reports
// whether this call created anything, so the transport can distinguish a
// fresh stream from an existing one.
func (service *Service) CreateStream(ctx context.Context, opts CreateStream) (_ podbase.CreateStreamResult, err error) {
	defer mon.Task()(&ctx)(&err)

	if opts.Caller == nil || opts.Caller.ID == "" {
		return podbase.CreateStreamResult{}, ErrForbidden.New("writes require authentication")
	}
	if !opts.Caller.InScope(opts.Pod) {
		return podbase.CreateStreamResult{}, ErrForbidden.New("token is not scoped to pod %q", opts.Pod)
	}

	createOpts := podbase.CreateStream{
		Pod:    opts.Pod,
		Path:   opts.Path,
		Access: opts.Access,
		UserID: opts.Caller.ID,
	}
	if err := createOpts.Verify(); err != nil {
		return podbase.CreateStreamResult{}, err
	}

	resolved, podExists, err := service.resolveWrite(ctx, opts.Pod, opts.Path)
	if err != nil {
		return podbase.CreateStreamResult{}, err
	}
	if err := service.authorizeWrite(ctx, opts.Caller, opts.Pod, resolved, podExists); err != nil {
		return podbase.CreateStreamResult{}, err
	}
	if err := service.allowCreations(ctx, opts.RateKey, podExists, len(resolved.Missing())); err != nil {
		return podbase.CreateStreamResult{}, err
	}

	err = service.db.EnsureUser(ctx, podbase.EnsureUser{
		ID:    opts.Caller.ID,
		Name:  opts.Caller.Name,
		Email: opts.Caller.Email,
	})
	if err != nil {
		return podbase.CreateStreamResult{}, err
	}

	result, err := service.db.CreateStream(ctx, createOpts)
	if err != nil {
		return podbase.CreateStreamResult{}, err
	}
	if len(result.Created) > 0 || result.PodCreated {
		service.invalidateStream(opts.Pod, result.Stream.Path, true)
	}
	return result, nil
}

// resolveWrite locates the deepest existing stream along the path and
// reports whether the pod exists at all, which decides who may write.
func (service *Service) resolveWrite(ctx context.Context, pod podbase.PodName, path string) (_ podbase.ResolvedPath, podExists bool, err error) {
	defer mon.Task()(&ctx)(&err)

	resolved, err := service.db.ResolvePath(ctx, podbase.ResolvePath{Pod: pod, Path: path})
	if err != nil {
		return podbase.ResolvedPath{}, false, err
	}
	if resolved.Stream != nil {
		return resolved, true, nil
	}

	_, err = service.db.GetPod(ctx, podbase.GetPod{Name: pod})
	switch {
	case err == nil:
		return resolved, true, nil
	case podbase.ErrPodNotFound.Has(err):
		return resolved, false, nil
	default:
		return podbase.ResolvedPath{}, false, err
	}
}

// authorizeWrite decides whether the caller may land a write at the
// resolved location. The deepest existing stream governs; the first write
// to a missing pod is open to any authenticated in-scope caller, who
// becomes its owner; new system streams require ownership.
func (service *Service) authorizeWrite(ctx context.Context, caller *access.User, pod podbase.PodName, resolved podbase.ResolvedPath, podExists bool) (err error) {
	defer mon.Task()(&ctx)(&err)

	if resolved.Stream != nil {
		allowed, err := service.access.CanWrite(ctx, caller, *resolved.Stream)
		if err != nil {
			return err
		}
		if !allowed {
			return ErrForbidden.New("write to %q denied", resolved.Stream.Path)
		}
	}
	if !podExists {
		return nil
	}
	for _, segment := range resolved.Missing() {
		if strings.HasPrefix(segment, podbase.SystemStreamPrefix) {
			isOwner, err := service.access.IsOwner(ctx, caller, pod)
			if err != nil {
				return err
			}
			if !isOwner {
				return ErrForbidden.New("only the pod owner may create system streams")
			}
			break
		}
	}
	return nil
}

// allowCreations consumes the pod and stream creation allowances the write
// needs. Runs before the transaction, so a write that later fails still
// counts.
func (service *Service) allowCreations(ctx context.Context, rateKey string, podExists bool, missing int) (err error) {
	defer mon.Task()(&ctx)(&err)

	if service.limiter == nil || rateKey == "" {
		return nil
	}
	if !podExists {
		decision, err := service.limiter.Allow(ctx, rateKey, ratelimit.ActionPodCreate)
		if err != nil {
			return Error.Wrap(err)
		}
		if !decision.Allowed {
			return ratelimit.Exceeded(decision)
		}
	}
	for i := 0; i < missing; i++ {
		decision, err := service.limiter.Allow(ctx, rateKey, ratelimit.ActionStreamCreate)
		if err != nil {
			return Error.Wrap(err)
		}
		if !decision.Allowed {
			return ratelimit.Exceeded(decision)
		}
	}
	return nil
}
