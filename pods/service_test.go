// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package pods_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/webpods/access"
	"storj.io/webpods/podbase"
	"storj.io/webpods/podbase/podbasetest"
	"storj.io/webpods/pods"
	"storj.io/webpods/private/memory"
	"storj.io/webpods/private/testcontext"
	"storj.io/webpods/ratelimit"
	"storj.io/webpods/treecache"
)

func testCache() *treecache.Cache {
	return treecache.New(treecache.Config{
		PodTTL: time.Minute, PodCapacity: 100,
		StreamTTL: time.Minute, StreamCapacity: 100,
		RecordTTL: time.Minute, RecordCapacity: 100,
		MaxRecordSize: 64 * memory.KiB,
		ListTTL:       time.Minute, ListCapacity: 100,
		MaxListSize: 1 * memory.MiB, MaxListRecords: 1000,
	})
}

func newService(t *testing.T, db *podbase.DB, rate ratelimit.Config) (*pods.Service, *treecache.Cache) {
	log := zaptest.NewLogger(t)
	cache := testCache()
	engine := access.NewEngine(log, db, cache)
	limiter := ratelimit.New(log, db, rate)
	service := pods.New(log, db, cache, engine, nil, limiter, pods.Config{
		SchemaCacheCapacity: 10,
		SchemaCacheTTL:      time.Minute,
	})
	return service, cache
}

func defaultRate() ratelimit.Config {
	return ratelimit.Config{
		Enabled:   true,
		ReadLimit: 10000, WriteLimit: 1000,
		PodCreateLimit: 100, StreamCreateLimit: 1000,
	}
}

var (
	alice = &access.User{ID: "alice"}
	bob   = &access.User{ID: "bob"}
	carol = &access.User{ID: "carol"}
)

func appendAs(ctx *testcontext.Context, t *testing.T, service *pods.Service, user *access.User, pod, path, name, content string) podbase.Record {
	record, err := service.Append(ctx, pods.Append{
		Caller: user, Pod: podbase.PodName(pod),
		StreamPath: path, Name: name, Content: content,
	})
	require.NoError(t, err)
	return record
}

func TestAppendAuthorization(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		service, _ := newService(t, db, defaultRate())

		_, err := service.Append(ctx, pods.Append{
			Pod: "alice", StreamPath: "docs", Name: "a", Content: "x",
		})
		require.True(t, pods.ErrForbidden.Has(err))

		scoped := &access.User{ID: "mallory", Pods: []string{"mallory"}}
		_, err = service.Append(ctx, pods.Append{
			Caller: scoped, Pod: "alice", StreamPath: "docs", Name: "a", Content: "x",
		})
		require.True(t, pods.ErrForbidden.Has(err))

		// First write creates the pod, a private diary included.
		_, err = service.Append(ctx, pods.Append{
			Caller: alice, Pod: "alice",
			StreamPath: "diary", Name: "d1", Content: "dear",
			Access:     podbase.AccessPrivate,
		})
		require.NoError(t, err)

		_, err = service.Append(ctx, pods.Append{
			Caller: bob, Pod: "alice", StreamPath: "diary", Name: "d2", Content: "hi",
		})
		require.True(t, pods.ErrForbidden.Has(err))

		// The deepest existing stream governs writes below it.
		_, err = service.Append(ctx, pods.Append{
			Caller: bob, Pod: "alice", StreamPath: "diary/sub", Name: "d3", Content: "hi",
		})
		require.True(t, pods.ErrForbidden.Has(err))

		// A path with no stream at all is open to any authenticated caller.
		appendAs(ctx, t, service, bob, "alice", "notes", "n1", "from bob")
		appendAs(ctx, t, service, carol, "alice", "notes", "n2", "from carol")

		// New system streams stay owner-only.
		_, err = service.Append(ctx, pods.Append{
			Caller: bob, Pod: "alice", StreamPath: ".hidden", Name: "h", Content: "x",
		})
		require.True(t, pods.ErrForbidden.Has(err))
		appendAs(ctx, t, service, alice, "alice", ".hidden", "h", "x")
	})
}

func TestWriteRateLimits(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		rate := defaultRate()
		rate.PodCreateLimit = 2
		rate.StreamCreateLimit = 3
		service, _ := newService(t, db, rate)

		key := ratelimit.UserIdentifier("alice")
		for _, pod := range []string{"pod1", "pod2"} {
			_, err := service.Append(ctx, pods.Append{
				Caller: alice, RateKey: key,
				Pod: podbase.PodName(pod), StreamPath: "docs", Name: "a", Content: "x",
			})
			require.NoError(t, err)
		}

		_, err := service.Append(ctx, pods.Append{
			Caller: alice, RateKey: key,
			Pod: "pod3", StreamPath: "docs", Name: "a", Content: "x",
		})
		var exceeded *ratelimit.ExceededError
		require.ErrorAs(t, err, &exceeded)
		require.False(t, exceeded.Decision.Allowed)
		require.Equal(t, int64(0), exceeded.Decision.Remaining)

		// Stream creations count separately per caller.
		bobKey := ratelimit.UserIdentifier("bob")
		_, err = service.Append(ctx, pods.Append{
			Caller: bob, RateKey: bobKey,
			Pod: "pod1", StreamPath: "a/b/c", Name: "x", Content: "x",
		})
		require.NoError(t, err)
		_, err = service.Append(ctx, pods.Append{
			Caller: bob, RateKey: bobKey,
			Pod: "pod1", StreamPath: "d", Name: "x", Content: "x",
		})
		require.ErrorAs(t, err, &exceeded)

		// Without a rate key the allowances are not consumed.
		appendAs(ctx, t, service, carol, "pod9", "docs", "a", "x")
	})
}

func TestOwnershipTransfer(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		service, _ := newService(t, db, defaultRate())
		appendAs(ctx, t, service, alice, "alice", "docs", "a", "x")

		// Deletion is owner-only, which also warms the cached owner.
		err := service.DeleteRecord(ctx, pods.DeleteRecord{
			Caller: bob, Pod: "alice", StreamPath: "docs", Name: "a",
		})
		require.True(t, pods.ErrForbidden.Has(err))

		// Only the owner may rewrite the config stream.
		_, err = service.Append(ctx, pods.Append{
			Caller: carol, Pod: "alice",
			StreamPath: podbase.ConfigStreamName, Name: podbase.OwnerRecordName,
			Content:    `{"owner":"carol"}`,
		})
		require.True(t, pods.ErrForbidden.Has(err))

		// Malformed transfers never reach storage.
		_, err = service.Append(ctx, pods.Append{
			Caller: alice, Pod: "alice",
			StreamPath: podbase.ConfigStreamName, Name: podbase.OwnerRecordName,
			Content:    `{"owner":""}`,
		})
		require.True(t, pods.ErrSchemaViolation.Has(err))

		appendAs(ctx, t, service, alice, "alice",
			podbase.ConfigStreamName, podbase.OwnerRecordName, `{"owner":"bob"}`)

		// The transfer invalidates the cached owner immediately.
		err = service.DeleteRecord(ctx, pods.DeleteRecord{
			Caller: alice, Pod: "alice", StreamPath: "docs", Name: "a",
		})
		require.True(t, pods.ErrForbidden.Has(err))
		err = service.DeleteRecord(ctx, pods.DeleteRecord{
			Caller: bob, Pod: "alice", StreamPath: "docs", Name: "a",
		})
		require.NoError(t, err)

		// The owner record itself cannot be deleted.
		err = service.DeleteRecord(ctx, pods.DeleteRecord{
			Caller: bob, Pod: "alice",
			StreamPath: podbase.ConfigStreamName, Name: podbase.OwnerRecordName,
		})
		require.True(t, pods.ErrForbidden.Has(err))
	})
}

func TestPermissionStreamAccess(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		service, _ := newService(t, db, defaultRate())

		_, err := service.Append(ctx, pods.Append{
			Caller: alice, Pod: "alice",
			StreamPath: "shared", Name: "doc", Content: "s3cret",
			Access:     "/" + podbase.PermissionsStreamName + "/friends",
		})
		require.NoError(t, err)
		appendAs(ctx, t, service, alice, "alice",
			podbase.PermissionsStreamName+"/friends", "g1", `{"userId":"bob","read":true}`)

		_, _, err = service.GetRecord(ctx, pods.GetRecord{
			Caller: bob, Pod: "alice", StreamPath: "shared", Name: "doc",
		})
		require.NoError(t, err)
		_, _, err = service.GetRecord(ctx, pods.GetRecord{
			Caller: carol, Pod: "alice", StreamPath: "shared", Name: "doc",
		})
		require.True(t, pods.ErrForbidden.Has(err))
		_, _, err = service.GetRecord(ctx, pods.GetRecord{
			Pod: "alice", StreamPath: "shared", Name: "doc",
		})
		require.True(t, pods.ErrForbidden.Has(err))

		// Read-only grants do not allow writes.
		_, err = service.Append(ctx, pods.Append{
			Caller: bob, Pod: "alice", StreamPath: "shared", Name: "doc2", Content: "x",
		})
		require.True(t, pods.ErrForbidden.Has(err))

		// A new grant takes effect right away: permission streams are
		// system paths, so their writes flush the pod's cached decisions.
		appendAs(ctx, t, service, alice, "alice",
			podbase.PermissionsStreamName+"/friends", "g2", `{"userId":"carol","read":true,"write":true}`)
		appendAs(ctx, t, service, carol, "alice", "shared", "doc2", "from carol")

		// Revocation cuts access again.
		appendAs(ctx, t, service, alice, "alice",
			podbase.PermissionsStreamName+"/friends", "g3", `{"userId":"carol","revoke":true}`)
		_, _, err = service.GetRecord(ctx, pods.GetRecord{
			Caller: carol, Pod: "alice", StreamPath: "shared", Name: "doc",
		})
		require.True(t, pods.ErrForbidden.Has(err))
	})
}

func TestCacheCoherence(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		service, cache := newService(t, db, defaultRate())
		appendAs(ctx, t, service, alice, "alice", "docs", "a", "v1")
		appendAs(ctx, t, service, alice, "alice", "docs/inner", "i", "x")

		read := func(path, name string) podbase.Record {
			record, _, err := service.GetRecord(ctx, pods.GetRecord{
				Caller: alice, Pod: "alice", StreamPath: path, Name: name,
			})
			require.NoError(t, err)
			return record
		}

		require.Equal(t, "v1", read("docs", "a").Content)
		read("docs", "a")
		require.Equal(t, int64(1), cache.SingleRecords.Stats().Hits)

		// A new version of the record flushes the stale cache entry.
		appendAs(ctx, t, service, alice, "alice", "docs", "a", "v2")
		require.Equal(t, "v2", read("docs", "a").Content)

		// Listings go stale the same way.
		list := func() podbase.RecordPage {
			page, err := service.ListRecords(ctx, pods.ListRecords{
				Caller: alice, Pod: "alice", StreamPath: "docs", Limit: 10,
			})
			require.NoError(t, err)
			return page
		}
		require.Equal(t, int64(2), list().Total)
		list()
		require.Equal(t, int64(1), cache.RecordLists.Stats().Hits)
		appendAs(ctx, t, service, alice, "alice", "docs", "b", "y")
		require.Equal(t, int64(3), list().Total)

		// Writes to a stream leave its sibling and child caches alone.
		read("docs/inner", "i")
		read("docs/inner", "i")
		hits := cache.SingleRecords.Stats().Hits
		appendAs(ctx, t, service, alice, "alice", "docs", "c", "z")
		read("docs/inner", "i")
		require.Equal(t, hits+1, cache.SingleRecords.Stats().Hits)
	})
}

func TestRecordDeletion(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		service, _ := newService(t, db, defaultRate())
		appendAs(ctx, t, service, alice, "alice", "docs", "a", "x")
		appendAs(ctx, t, service, alice, "alice", "docs", "b", "y")

		err := service.DeleteRecord(ctx, pods.DeleteRecord{
			Caller: alice, Pod: "alice", StreamPath: "docs", Name: "a",
		})
		require.NoError(t, err)

		_, _, err = service.GetRecord(ctx, pods.GetRecord{
			Caller: alice, Pod: "alice", StreamPath: "docs", Name: "a",
		})
		require.True(t, podbase.ErrRecordDeleted.Has(err))
		record, _, err := service.GetRecord(ctx, pods.GetRecord{
			Caller: alice, Pod: "alice", StreamPath: "docs", Name: "a", IncludeDeleted: true,
		})
		require.NoError(t, err)
		require.Equal(t, "x", record.Content)

		// The index view honors the deletion too.
		_, _, err = service.GetRecordAt(ctx, pods.GetRecordAt{
			Caller: alice, Pod: "alice", StreamPath: "docs", Index: 0,
		})
		require.True(t, podbase.ErrRecordDeleted.Has(err))

		// Unique listings skip the deleted name.
		page, err := service.ListRecords(ctx, pods.ListRecords{
			Caller: alice, Pod: "alice", StreamPath: "docs", Limit: 10, Unique: true,
		})
		require.NoError(t, err)
		require.Len(t, page.Records, 1)
		require.Equal(t, "b", page.Records[0].Name)

		// Purge erases content but keeps the chain verifiable.
		err = service.DeleteRecord(ctx, pods.DeleteRecord{
			Caller: alice, Pod: "alice", StreamPath: "docs", Name: "b", Purge: true,
		})
		require.NoError(t, err)
		record, _, err = service.GetRecord(ctx, pods.GetRecord{
			Caller: alice, Pod: "alice", StreamPath: "docs", Name: "b", IncludeDeleted: true,
		})
		require.NoError(t, err)
		require.Empty(t, record.Content)
		require.NotEmpty(t, record.ContentHash)

		result, err := service.VerifyStream(ctx, pods.VerifyStream{
			Caller: alice, Pod: "alice", StreamPath: "docs",
		})
		require.NoError(t, err)
		require.True(t, result.Valid)
		require.Equal(t, int64(4), result.Records)
	})
}

func TestStreamDeletion(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		service, _ := newService(t, db, defaultRate())
		appendAs(ctx, t, service, alice, "alice", "docs", "a", "x")
		appendAs(ctx, t, service, alice, "alice", "docs/drafts", "d", "y")

		_, err := service.DeleteStream(ctx, pods.DeleteStream{
			Caller: bob, Pod: "alice", StreamPath: "docs",
		})
		require.True(t, pods.ErrForbidden.Has(err))
		_, err = service.DeleteStream(ctx, pods.DeleteStream{
			Caller: alice, Pod: "alice", StreamPath: podbase.ConfigStreamName,
		})
		require.True(t, pods.ErrForbidden.Has(err))

		// Warm the caches so the delete has something to invalidate.
		for _, probe := range []struct{ path, name string }{{"docs", "a"}, {"docs/drafts", "d"}} {
			_, _, err := service.GetRecord(ctx, pods.GetRecord{
				Caller: alice, Pod: "alice", StreamPath: probe.path, Name: probe.name,
			})
			require.NoError(t, err)
		}

		result, err := service.DeleteStream(ctx, pods.DeleteStream{
			Caller: alice, Pod: "alice", StreamPath: "docs",
		})
		require.NoError(t, err)
		require.Equal(t, []string{"docs", "docs/drafts"}, result.Paths)

		_, _, err = service.GetRecord(ctx, pods.GetRecord{
			Caller: alice, Pod: "alice", StreamPath: "docs", Name: "a",
		})
		require.True(t, podbase.ErrStreamNotFound.Has(err))
		_, _, err = service.GetRecord(ctx, pods.GetRecord{
			Caller: alice, Pod: "alice", StreamPath: "docs/drafts", Name: "d",
		})
		require.True(t, podbase.ErrStreamNotFound.Has(err))

		// The pod survives its streams.
		appendAs(ctx, t, service, alice, "alice", "docs", "a2", "fresh")
	})
}

func TestSchemaEnforcement(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		service, _ := newService(t, db, defaultRate())
		appendAs(ctx, t, service, alice, "alice", "notes", "n0", "free text")

		strict := `{"mode":"strict","schema":{"type":"object","required":["title"]}}`
		appendAs(ctx, t, service, alice, "alice", podbase.SchemaStreamName, "notes", strict)

		// Non-JSON content fails a strict schema.
		_, err := service.Append(ctx, pods.Append{
			Caller: alice, Pod: "alice", StreamPath: "notes", Name: "n1", Content: "free text",
		})
		require.True(t, pods.ErrSchemaViolation.Has(err))

		_, err = service.Append(ctx, pods.Append{
			Caller: alice, Pod: "alice", StreamPath: "notes", Name: "n1",
			Content: `{"title":"hello"}`, ContentType: "application/json",
		})
		require.NoError(t, err)
		_, err = service.Append(ctx, pods.Append{
			Caller: alice, Pod: "alice", StreamPath: "notes", Name: "n2",
			Content: `{"nope":1}`, ContentType: "application/json",
		})
		require.True(t, pods.ErrSchemaViolation.Has(err))

		// Permissive mode logs failures and accepts.
		permissive := `{"mode":"permissive","schema":{"type":"object","required":["title"]}}`
		appendAs(ctx, t, service, alice, "alice", podbase.SchemaStreamName, "notes", permissive)
		appendAs(ctx, t, service, alice, "alice", "notes", "n3", "free text again")

		// Deleting the schema record switches enforcement off.
		appendAs(ctx, t, service, alice, "alice", podbase.SchemaStreamName, "notes", strict)
		err = service.DeleteRecord(ctx, pods.DeleteRecord{
			Caller: alice, Pod: "alice", StreamPath: podbase.SchemaStreamName, Name: "notes",
		})
		require.NoError(t, err)
		appendAs(ctx, t, service, alice, "alice", "notes", "n4", "free text")

		// A schema written before its target exists attaches once the
		// record is rewritten after creation.
		appendAs(ctx, t, service, alice, "alice", podbase.SchemaStreamName+"/blog", "posts", strict)
		appendAs(ctx, t, service, alice, "alice", "blog/posts", "p0", "anything goes")
		appendAs(ctx, t, service, alice, "alice", podbase.SchemaStreamName+"/blog", "posts", strict)
		_, err = service.Append(ctx, pods.Append{
			Caller: alice, Pod: "alice", StreamPath: "blog/posts", Name: "p1", Content: "junk",
		})
		require.True(t, pods.ErrSchemaViolation.Has(err))

		// Invalid schema documents are rejected at write time.
		_, err = service.Append(ctx, pods.Append{
			Caller: alice, Pod: "alice",
			StreamPath: podbase.SchemaStreamName, Name: "notes",
			Content:    `{"mode":"sometimes","schema":{"type":"object"}}`,
		})
		require.True(t, pods.ErrSchemaViolation.Has(err))
	})
}

func TestCustomDomains(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		service, _ := newService(t, db, defaultRate())
		appendAs(ctx, t, service, alice, "alice", "docs", "a", "x")

		domains, err := db.ListCustomDomains(ctx, "alice")
		require.NoError(t, err)
		require.Empty(t, domains)

		appendAs(ctx, t, service, alice, "alice",
			podbase.ConfigStreamName, podbase.DomainsRecordName, `{"domain":"Blog.Example.com"}`)
		pod, err := db.GetPodByDomain(ctx, "blog.example.com")
		require.NoError(t, err)
		require.Equal(t, podbase.PodName("alice"), pod)

		appendAs(ctx, t, service, alice, "alice",
			podbase.ConfigStreamName, podbase.DomainsRecordName, `{"domain":"www.example.org"}`)
		domains, err = db.ListCustomDomains(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, domains, 2)

		appendAs(ctx, t, service, alice, "alice",
			podbase.ConfigStreamName, podbase.DomainsRecordName,
			`{"domain":"blog.example.com","remove":true}`)
		_, err = db.GetPodByDomain(ctx, "blog.example.com")
		require.True(t, podbase.ErrPodNotFound.Has(err))
		_, err = db.GetPodByDomain(ctx, "www.example.org")
		require.NoError(t, err)

		// Deleting the record unregisters everything.
		err = service.DeleteRecord(ctx, pods.DeleteRecord{
			Caller: alice, Pod: "alice",
			StreamPath: podbase.ConfigStreamName, Name: podbase.DomainsRecordName,
		})
		require.NoError(t, err)
		domains, err = db.ListCustomDomains(ctx, "alice")
		require.NoError(t, err)
		require.Empty(t, domains)

		_, err = service.Append(ctx, pods.Append{
			Caller: alice, Pod: "alice",
			StreamPath: podbase.ConfigStreamName, Name: podbase.DomainsRecordName,
			Content:    `{"domain":""}`,
		})
		require.True(t, pods.ErrSchemaViolation.Has(err))
	})
}

func TestResolveRoute(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		service, _ := newService(t, db, defaultRate())
		appendAs(ctx, t, service, alice, "alice", "pages", "home", "welcome")

		target, err := service.ResolveRoute(ctx, "alice", "/")
		require.NoError(t, err)
		require.Empty(t, target)

		appendAs(ctx, t, service, alice, "alice",
			podbase.ConfigStreamName, podbase.RoutingRecordName,
			`{"/": "pages/home", "/about": "pages/about"}`)

		target, err = service.ResolveRoute(ctx, "alice", "/")
		require.NoError(t, err)
		require.Equal(t, "pages/home", target)
		target, err = service.ResolveRoute(ctx, "alice", "/missing")
		require.NoError(t, err)
		require.Empty(t, target)

		// Routing table updates take effect immediately.
		appendAs(ctx, t, service, alice, "alice",
			podbase.ConfigStreamName, podbase.RoutingRecordName, `{"/": "pages/start"}`)
		target, err = service.ResolveRoute(ctx, "alice", "/")
		require.NoError(t, err)
		require.Equal(t, "pages/start", target)
	})
}

func TestRecursiveListing(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		service, _ := newService(t, db, defaultRate())
		appendAs(ctx, t, service, alice, "alice", "docs", "r1", "a")
		appendAs(ctx, t, service, alice, "alice", "docs/pub", "r2", "b")
		_, err := service.Append(ctx, pods.Append{
			Caller: alice, Pod: "alice",
			StreamPath: "docs/secret", Name: "r3", Content: "c",
			Access:     podbase.AccessPrivate,
		})
		require.NoError(t, err)
		// Public, but underneath a private parent.
		appendAs(ctx, t, service, alice, "alice", "docs/secret/inner", "r4", "d")

		names := func(page podbase.RecordPage) []string {
			var out []string
			for _, record := range page.Records {
				out = append(out, record.Name)
			}
			return out
		}

		page, err := service.ListRecords(ctx, pods.ListRecords{
			Caller: alice, Pod: "alice", StreamPath: "docs",
			Limit: 100, Unique: true, Recursive: true,
		})
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"r1", "r2", "r3", "r4"}, names(page))

		// Denied subtrees vanish entirely, nested public streams included.
		page, err = service.ListRecords(ctx, pods.ListRecords{
			Pod: "alice", StreamPath: "docs",
			Limit: 100, Unique: true, Recursive: true,
		})
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"r1", "r2"}, names(page))

		page, err = service.ListRecords(ctx, pods.ListRecords{
			Caller: bob, Pod: "alice", StreamPath: "docs",
			Limit: 100, Unique: true, Recursive: true,
		})
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"r1", "r2"}, names(page))

		_, err = service.ListRecords(ctx, pods.ListRecords{
			Caller: alice, Pod: "alice", StreamPath: "nosuch", Limit: 10, Recursive: true,
		})
		require.True(t, podbase.ErrStreamNotFound.Has(err))
	})
}

func TestCreateStreamExplicit(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		service, _ := newService(t, db, defaultRate())

		result, err := service.CreateStream(ctx, pods.CreateStream{
			Caller: alice, Pod: "alice", Path: "blog/posts", Access: podbase.AccessPrivate,
		})
		require.NoError(t, err)
		require.True(t, result.PodCreated)
		require.Len(t, result.Created, 2)
		require.Equal(t, podbase.AccessPrivate, result.Stream.Access)

		// Creating it again changes nothing and ignores the new access.
		result, err = service.CreateStream(ctx, pods.CreateStream{
			Caller: alice, Pod: "alice", Path: "blog/posts", Access: podbase.AccessPublic,
		})
		require.NoError(t, err)
		require.False(t, result.PodCreated)
		require.Empty(t, result.Created)
		require.Equal(t, podbase.AccessPrivate, result.Stream.Access)

		_, err = service.CreateStream(ctx, pods.CreateStream{
			Caller: bob, Pod: "alice", Path: ".vault",
		})
		require.True(t, pods.ErrForbidden.Has(err))

		_, err = service.CreateStream(ctx, pods.CreateStream{
			Pod: "alice", Path: "anything",
		})
		require.True(t, pods.ErrForbidden.Has(err))
	})
}
