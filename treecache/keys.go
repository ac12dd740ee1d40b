// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package treecache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Cache keys are built here and nowhere else, so the key grammar and the
// invalidation patterns cannot drift apart. Pod names, stream paths and
// record names never contain `:`, which keeps every dynamic part a single
// segment.

// PodMetaKey caches pod metadata. Pods pool.
func PodMetaKey(pod string) string {
	return "pod:" + pod + ":meta"
}

// PodOwnerKey caches the resolved owner of a pod. Pods pool.
func PodOwnerKey(pod string) string {
	return "pod:" + pod + ":owner"
}

// StreamMetaKey caches stream metadata by path. Streams pool.
func StreamMetaKey(pod, path string) string {
	return "pod:" + pod + ":stream:" + path + ":meta"
}

// StreamIDKey caches stream metadata by id. Streams pool.
func StreamIDKey(id int64) string {
	return "stream:id:" + strconv.FormatInt(id, 10)
}

// StreamChildrenKey caches the child-stream listing of a parent path; the
// empty path addresses the pod's root streams. Streams pool.
func StreamChildrenKey(pod, parentPath string) string {
	if parentPath == "" {
		return "pod:" + pod + ":streams"
	}
	return "pod:" + pod + ":streams:" + parentPath
}

// RecordKey caches a single record by name. SingleRecords pool.
func RecordKey(pod, streamPath, name string) string {
	return "pod:" + pod + ":stream:" + streamPath + ":record:" + name + ":data"
}

// RecordIndexKey caches a single record by resolved index. Negative indexes
// must be resolved before caching, otherwise a record would stay addressable
// under a moving alias. SingleRecords pool.
func RecordIndexKey(pod, streamPath string, index int64) string {
	return "pod:" + pod + ":stream:" + streamPath + ":record:idx:" + strconv.FormatInt(index, 10) + ":data"
}

// ListKey caches a record listing under the hash of its query string.
// RecordLists pool.
func ListKey(pod, streamPath, query string) string {
	return "pod:" + pod + ":stream:" + streamPath + ":list:" + QueryHash(query)
}

// QueryHash condenses an arbitrary query string into a fixed-width key
// segment.
func QueryHash(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])[:16]
}

// StreamPattern invalidates everything cached for one stream: its metadata,
// its records and its listings.
func StreamPattern(pod, streamPath string) string {
	return "pod:" + pod + ":stream:" + streamPath + ":*"
}

// StreamsPattern invalidates the pod's child-stream listings.
func StreamsPattern(pod string) string {
	return "pod:" + pod + ":streams:*"
}

// PodPattern invalidates everything cached for the pod.
func PodPattern(pod string) string {
	return "pod:" + pod + ":*"
}
