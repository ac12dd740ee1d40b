// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package access

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"storj.io/webpods/podbase"
	"storj.io/webpods/treecache"
)

// Engine answers permission questions against the database, caching
// resolved owners in the pods pool.
type Engine struct {
	log   *zap.Logger
	db    *podbase.DB
	cache *treecache.Cache
}

// NewEngine constructs an Engine.
func NewEngine(log *zap.Logger, db *podbase.DB, cache *treecache.Cache) *Engine {
	return &Engine{
		log:   log,
		db:    db,
		cache: cache,
	}
}

// Owner returns the pod's current owner: the owner field of the latest
// record in the owner config stream. A pod whose owner record is missing or
// malformed is ownerless, so every ownership check fails.
func (engine *Engine) Owner(ctx context.Context, pod podbase.PodName) (_ string, err error) {
	defer mon.Task()(&ctx)(&err)

	key := treecache.PodOwnerKey(string(pod))
	if cached, ok := engine.cache.Pods.Get(key); ok {
		if owner, ok := cached.(string); ok {
			return owner, nil
		}
	}

	owner, err := engine.resolveOwner(ctx, pod)
	if err != nil {
		return "", err
	}
	engine.cache.Pods.Set(key, owner)
	return owner, nil
}

func (engine *Engine) resolveOwner(ctx context.Context, pod podbase.PodName) (string, error) {
	stream, err := engine.db.GetStreamByPath(ctx, podbase.GetStreamByPath{
		Pod:  pod,
		Path: podbase.ConfigStreamName,
	})
	if err != nil {
		if podbase.ErrStreamNotFound.Has(err) {
			return "", nil
		}
		return "", Error.Wrap(err)
	}

	record, err := engine.db.GetRecordByName(ctx, podbase.GetRecordByName{
		StreamID: stream.ID,
		Name:     podbase.OwnerRecordName,
	})
	if err != nil {
		if podbase.ErrRecordNotFound.Has(err) || podbase.ErrRecordDeleted.Has(err) {
			return "", nil
		}
		return "", Error.Wrap(err)
	}

	var payload struct {
		Owner string `json:"owner"`
	}
	if err := json.Unmarshal([]byte(record.Content), &payload); err != nil {
		engine.log.Warn("malformed owner record",
			zap.String("pod", string(pod)),
			zap.Error(err))
		return "", nil
	}
	return payload.Owner, nil
}

// IsOwner reports whether the user owns the pod.
func (engine *Engine) IsOwner(ctx context.Context, user *User, pod podbase.PodName) (_ bool, err error) {
	defer mon.Task()(&ctx)(&err)

	user = user.forPod(pod)
	if user == nil {
		return false, nil
	}
	owner, err := engine.Owner(ctx, pod)
	if err != nil {
		return false, err
	}
	return owner != "" && owner == user.ID, nil
}

// CanRead reports whether the user may read the stream. Anonymous users
// read public streams only.
func (engine *Engine) CanRead(ctx context.Context, user *User, stream podbase.Stream) (_ bool, err error) {
	defer mon.Task()(&ctx)(&err)

	user = user.forPod(stream.PodName)
	if user != nil && user.ID == stream.UserID {
		return true, nil
	}
	if stream.Access == podbase.AccessPublic {
		return true, nil
	}
	if user == nil {
		return false, nil
	}

	isOwner, err := engine.IsOwner(ctx, user, stream.PodName)
	if err != nil {
		return false, err
	}
	if isOwner {
		return true, nil
	}

	if IsPermissionMode(stream.Access) {
		grant, err := engine.permissionGrant(ctx, stream.PodName, stream.Access, user.ID)
		if err != nil {
			return false, err
		}
		return grant.Read, nil
	}
	return false, nil
}

// CanWrite reports whether the user may write to the stream. Writes always
// require authentication; writes under the system streams require pod
// ownership.
func (engine *Engine) CanWrite(ctx context.Context, user *User, stream podbase.Stream) (_ bool, err error) {
	defer mon.Task()(&ctx)(&err)

	user = user.forPod(stream.PodName)
	if user == nil {
		return false, nil
	}

	if podbase.IsSystemPath(stream.Path) {
		return engine.IsOwner(ctx, user, stream.PodName)
	}

	if user.ID == stream.UserID {
		return true, nil
	}
	isOwner, err := engine.IsOwner(ctx, user, stream.PodName)
	if err != nil {
		return false, err
	}
	if isOwner {
		return true, nil
	}

	switch {
	case stream.Access == podbase.AccessPublic:
		return true, nil
	case IsPermissionMode(stream.Access):
		grant, err := engine.permissionGrant(ctx, stream.PodName, stream.Access, user.ID)
		if err != nil {
			return false, err
		}
		return grant.Write, nil
	}
	return false, nil
}

// FilterReadable returns the subset of streams the user may read, resolving
// each distinct permission stream only once. It backs the recursive listing
// operations.
func (engine *Engine) FilterReadable(ctx context.Context, user *User, streams []podbase.Stream) (_ []podbase.Stream, err error) {
	defer mon.Task()(&ctx)(&err)

	readable := make([]podbase.Stream, 0, len(streams))
	decisions := make(map[string]bool)

	for _, stream := range streams {
		scoped := user.forPod(stream.PodName)
		if scoped != nil && scoped.ID == stream.UserID {
			readable = append(readable, stream)
			continue
		}
		if stream.Access == podbase.AccessPublic {
			readable = append(readable, stream)
			continue
		}
		if scoped == nil {
			continue
		}

		isOwner, err := engine.IsOwner(ctx, scoped, stream.PodName)
		if err != nil {
			return nil, err
		}
		if isOwner {
			readable = append(readable, stream)
			continue
		}

		if IsPermissionMode(stream.Access) {
			key := string(stream.PodName) + "\x00" + stream.Access
			allowed, ok := decisions[key]
			if !ok {
				grant, err := engine.permissionGrant(ctx, stream.PodName, stream.Access, scoped.ID)
				if err != nil {
					return nil, err
				}
				allowed = grant.Read
				decisions[key] = allowed
			}
			if allowed {
				readable = append(readable, stream)
			}
		}
	}
	return readable, nil
}

// IsPermissionMode reports whether the access value delegates to a
// permission stream.
func IsPermissionMode(access string) bool {
	return strings.HasPrefix(access, "/")
}

// permissionGrant folds the referenced permission stream and returns the
// user's effective grant. A missing permission stream grants nothing.
func (engine *Engine) permissionGrant(ctx context.Context, pod podbase.PodName, accessPath, userID string) (_ Grant, err error) {
	defer mon.Task()(&ctx)(&err)

	stream, err := engine.db.GetStreamByPath(ctx, podbase.GetStreamByPath{
		Pod:  pod,
		Path: strings.TrimPrefix(accessPath, "/"),
	})
	if err != nil {
		if podbase.ErrStreamNotFound.Has(err) {
			return Grant{}, nil
		}
		return Grant{}, Error.Wrap(err)
	}

	var records []podbase.Record
	var after *int64
	for {
		page, err := engine.db.ListRecords(ctx, podbase.ListRecords{
			StreamID: stream.ID,
			Limit:    podbase.MaxListLimit,
			After:    after,
		})
		if err != nil {
			return Grant{}, Error.Wrap(err)
		}
		records = append(records, page.Records...)
		if !page.HasMore || len(page.Records) == 0 {
			break
		}
		last := page.Records[len(page.Records)-1].Index
		after = &last
	}

	return FoldGrants(records)[userID], nil
}
