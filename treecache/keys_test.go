// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package treecache_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"storj.io/webpods/treecache"
)

func TestKeys(t *testing.T) {
	require.Equal(t, "pod:alice:meta", treecache.PodMetaKey("alice"))
	require.Equal(t, "pod:alice:owner", treecache.PodOwnerKey("alice"))
	require.Equal(t, "pod:alice:stream:blog/posts:meta", treecache.StreamMetaKey("alice", "blog/posts"))
	require.Equal(t, "stream:id:42", treecache.StreamIDKey(42))
	require.Equal(t, "pod:alice:streams", treecache.StreamChildrenKey("alice", ""))
	require.Equal(t, "pod:alice:streams:blog", treecache.StreamChildrenKey("alice", "blog"))
	require.Equal(t, "pod:alice:stream:blog:record:first:data", treecache.RecordKey("alice", "blog", "first"))
	require.Equal(t, "pod:alice:stream:blog:record:idx:7:data", treecache.RecordIndexKey("alice", "blog", 7))

	require.Equal(t, "pod:alice:stream:blog:*", treecache.StreamPattern("alice", "blog"))
	require.Equal(t, "pod:alice:streams:*", treecache.StreamsPattern("alice"))
	require.Equal(t, "pod:alice:*", treecache.PodPattern("alice"))
}

func TestQueryHash(t *testing.T) {
	hash := treecache.QueryHash("limit=10&after=5")
	require.Len(t, hash, 16)
	require.Equal(t, hash, treecache.QueryHash("limit=10&after=5"))
	require.NotEqual(t, hash, treecache.QueryHash("limit=10&after=6"))

	require.Contains(t, treecache.ListKey("alice", "blog", "limit=10&after=5"), hash)
}

func TestInvalidationCoversKeys(t *testing.T) {
	// Every stream-scoped key must fall under the stream pattern, and every
	// pod-scoped key under the pod pattern; otherwise writers would leave
	// stale entries behind.
	pool := treecache.NewPool(treecache.Options{Name: "test", Capacity: 100})

	streamScoped := []string{
		treecache.StreamMetaKey("alice", "blog"),
		treecache.RecordKey("alice", "blog", "first"),
		treecache.RecordIndexKey("alice", "blog", 0),
		treecache.ListKey("alice", "blog", "limit=10"),
	}
	for _, key := range streamScoped {
		pool.Set(key, "v")
	}
	removed, err := pool.InvalidatePattern(treecache.StreamPattern("alice", "blog"))
	require.NoError(t, err)
	require.Equal(t, len(streamScoped), removed)

	podScoped := append(streamScoped,
		treecache.PodMetaKey("alice"),
		treecache.PodOwnerKey("alice"),
		treecache.StreamChildrenKey("alice", ""),
		treecache.StreamChildrenKey("alice", "blog"),
	)
	for _, key := range podScoped {
		pool.Set(key, "v")
	}
	removed, err = pool.InvalidatePattern(treecache.PodPattern("alice"))
	require.NoError(t, err)
	require.Equal(t, len(podScoped), removed)
}
