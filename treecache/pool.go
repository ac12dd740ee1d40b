// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package treecache

import (
	"container/list"
	"strings"
	"sync"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
)

// Options controls a single pool.
type Options struct {
	// Name is used to differentiate pools in counters and monkit stats.
	Name string

	// Capacity is how many entries to keep. A non-positive capacity
	// disables the pool: sets are dropped and gets always miss.
	Capacity int

	// TTL is how long an entry stays valid. Expiry is checked lazily on
	// read. A non-positive TTL means no expiration.
	TTL time.Duration

	// MaxValueSize rejects values larger than this many bytes, as computed
	// by ValueSize. Zero means no bound.
	MaxValueSize int64
}

// Stats are the pool counters reported on the test-utilities surface.
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Evictions   int64 `json:"evictions"`
	CurrentSize int64 `json:"currentSize"`
	EntryCount  int64 `json:"entryCount"`
}

// entry is one cached value. It lives in the flat map, in the LRU list and
// on its tree leaf at the same time.
type entry struct {
	key   string
	value interface{}
	size  int64
	when  time.Time
	order *list.Element
	leaf  *node
}

// node is one segment of the key tree. A node can hold an entry and have
// children at the same time: "a:b" and "a:b:c" are both valid keys.
type node struct {
	parent   *node
	segment  string
	children map[string]*node
	entry    *entry
}

// Pool is one LRU cache with hierarchical pattern invalidation. The flat
// entries map backs O(1) point operations; the segment tree makes pattern
// invalidation proportional to the number of removed keys.
type Pool struct {
	mu   sync.Mutex
	opts Options

	root    *node
	entries map[string]*entry
	order   *list.List

	hits      int64
	misses    int64
	evictions int64
	size      int64

	now func() time.Time
}

// NewPool constructs a pool with the given options.
func NewPool(opts Options) *Pool {
	return &Pool{
		opts:    opts,
		root:    &node{children: make(map[string]*node)},
		entries: make(map[string]*entry),
		order:   list.New(),
		now:     time.Now,
	}
}

// Name returns the pool name.
func (pool *Pool) Name() string { return pool.opts.Name }

// Set stores a value under the key, evicting least-recently-used entries to
// stay within capacity. It reports whether the value was admitted.
func (pool *Pool) Set(key string, value interface{}) bool {
	size := ValueSize(value)

	pool.mu.Lock()
	defer pool.mu.Unlock()

	if pool.opts.Capacity <= 0 {
		return false
	}
	if pool.opts.MaxValueSize > 0 && size > pool.opts.MaxValueSize {
		// The value is too large to cache, but it is still newer than
		// whatever is stored under the key.
		if old, ok := pool.entries[key]; ok {
			pool.remove(old)
		}
		return false
	}

	if old, ok := pool.entries[key]; ok {
		pool.size += size - old.size
		old.size = size
		old.value = value
		old.when = pool.now()
		pool.order.MoveToFront(old.order)
		return true
	}

	for len(pool.entries) >= pool.opts.Capacity {
		back := pool.order.Back()
		if back == nil {
			break
		}
		pool.remove(back.Value.(*entry))
		pool.evictions++
	}

	leaf := pool.ensure(strings.Split(key, ":"))
	ent := &entry{key: key, value: value, size: size, when: pool.now(), leaf: leaf}
	ent.order = pool.order.PushFront(ent)
	leaf.entry = ent
	pool.entries[key] = ent
	pool.size += size
	return true
}

// Get returns the value stored under the key, if present and unexpired.
func (pool *Pool) Get(key string) (interface{}, bool) {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	ent, ok := pool.entries[key]
	if !ok {
		pool.miss()
		return nil, false
	}
	if pool.opts.TTL > 0 && pool.now().Sub(ent.when) > pool.opts.TTL {
		pool.remove(ent)
		pool.miss()
		return nil, false
	}

	pool.order.MoveToFront(ent.order)
	pool.hit()
	return ent.value, true
}

// Delete removes the key if present.
func (pool *Pool) Delete(key string) bool {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	ent, ok := pool.entries[key]
	if !ok {
		return false
	}
	pool.remove(ent)
	return true
}

// InvalidatePattern removes the entry at the pattern's prefix and every
// entry below it, returning how many were removed. The only accepted shape
// is `segment(:segment)*:*`, a single trailing wildcard.
func (pool *Pool) InvalidatePattern(pattern string) (removed int, err error) {
	segments, err := splitPattern(pattern)
	if err != nil {
		return 0, err
	}

	pool.mu.Lock()
	defer pool.mu.Unlock()

	n := pool.root
	for _, segment := range segments {
		n = n.children[segment]
		if n == nil {
			return 0, nil
		}
	}

	removed = pool.removeSubtree(n)
	delete(n.parent.children, n.segment)
	pool.prune(n.parent)
	return removed, nil
}

// Reset drops all entries and zeroes the counters.
func (pool *Pool) Reset() {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	pool.root = &node{children: make(map[string]*node)}
	pool.entries = make(map[string]*entry)
	pool.order.Init()
	pool.hits, pool.misses, pool.evictions, pool.size = 0, 0, 0, 0
}

// Stats returns a snapshot of the pool counters.
func (pool *Pool) Stats() Stats {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	return Stats{
		Hits:        pool.hits,
		Misses:      pool.misses,
		Evictions:   pool.evictions,
		CurrentSize: pool.size,
		EntryCount:  int64(len(pool.entries)),
	}
}

// ensure walks the segments from the root, creating missing nodes.
func (pool *Pool) ensure(segments []string) *node {
	n := pool.root
	for _, segment := range segments {
		child, ok := n.children[segment]
		if !ok {
			child = &node{parent: n, segment: segment, children: make(map[string]*node)}
			n.children[segment] = child
		}
		n = child
	}
	return n
}

// remove unlinks the entry from the map, the LRU list and the tree, pruning
// branch nodes left empty.
func (pool *Pool) remove(ent *entry) {
	delete(pool.entries, ent.key)
	pool.order.Remove(ent.order)
	pool.size -= ent.size
	ent.leaf.entry = nil
	pool.prune(ent.leaf)
}

// removeSubtree unlinks every entry under n from the map and the LRU list.
// The caller detaches n itself, so no per-entry pruning is needed.
func (pool *Pool) removeSubtree(n *node) (removed int) {
	if ent := n.entry; ent != nil {
		n.entry = nil
		delete(pool.entries, ent.key)
		pool.order.Remove(ent.order)
		pool.size -= ent.size
		removed++
	}
	for _, child := range n.children {
		removed += pool.removeSubtree(child)
	}
	return removed
}

// prune walks up from n deleting nodes that hold no entry and no children.
func (pool *Pool) prune(n *node) {
	for n != nil && n != pool.root && n.entry == nil && len(n.children) == 0 {
		parent := n.parent
		delete(parent.children, n.segment)
		n = parent
	}
}

func (pool *Pool) hit() {
	pool.hits++
	mon.Event("cache_hit", monkit.NewSeriesTag("name", pool.opts.Name))
}

func (pool *Pool) miss() {
	pool.misses++
	mon.Event("cache_miss", monkit.NewSeriesTag("name", pool.opts.Name))
}

// splitPattern validates the `<prefix>:*` shape and returns the prefix
// segments.
func splitPattern(pattern string) ([]string, error) {
	if !strings.HasSuffix(pattern, ":*") {
		return nil, ErrInvalidPattern.New("%q: expected segment(:segment)*:*", pattern)
	}
	prefix := strings.TrimSuffix(pattern, ":*")
	if prefix == "" {
		return nil, ErrInvalidPattern.New("%q: expected segment(:segment)*:*", pattern)
	}
	if strings.Contains(prefix, "*") {
		return nil, ErrInvalidPattern.New("%q: only a single trailing wildcard is allowed", pattern)
	}
	segments := strings.Split(prefix, ":")
	for _, segment := range segments {
		if segment == "" {
			return nil, ErrInvalidPattern.New("%q: empty segment", pattern)
		}
	}
	return segments, nil
}
