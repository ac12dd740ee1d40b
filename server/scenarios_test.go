// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package server_test

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
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
	"storj.io/webpods/server"
	"storj.io/webpods/treecache"
)

const testHost = "podtest.local"

type fixture struct {
	t       *testing.T
	handler http.Handler
}

func newFixture(ctx *testcontext.Context, t *testing.T, db *podbase.DB) *fixture {
	return newFixtureWith(ctx, t, db, server.Config{
		PublicHost:    testHost,
		TestUtils:     true,
		MaxRecordSize: memory.MiB,
	}, nil)
}

func newFixtureWith(ctx *testcontext.Context, t *testing.T, db *podbase.DB, config server.Config, rate *ratelimit.Config) *fixture {
	log := zaptest.NewLogger(t)

	cache := treecache.New(treecache.Config{
		PodTTL: time.Minute, PodCapacity: 100,
		StreamTTL: time.Minute, StreamCapacity: 100,
		RecordTTL: time.Minute, RecordCapacity: 100,
		MaxRecordSize: 64 * memory.KiB,
		ListTTL:       time.Minute, ListCapacity: 100,
		MaxListSize: 256 * memory.KiB, MaxListRecords: 100,
	})

	var limiter *ratelimit.Limiter
	if rate != nil {
		limiter = ratelimit.New(log.Named("ratelimit"), db, *rate)
	}

	engine := access.NewEngine(log.Named("access"), db, cache)
	service := pods.New(log.Named("pods"), db, cache, engine, nil, limiter, pods.Config{
		SchemaCacheCapacity: 10,
		SchemaCacheTTL:      time.Minute,
	})

	srv := server.New(log.Named("server"), nil, db, service, cache, limiter, nil, nil, nil, config)
	return &fixture{t: t, handler: srv.Handler()}
}

// do sends one request through the full host-routing handler. An empty user
// leaves the request anonymous.
func (f *fixture) do(method, target, user, body string, hdrs map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	r := httptest.NewRequest(method, target, reader)
	if user != "" {
		r.Header.Set("X-Webpods-User", user)
	}
	for key, value := range hdrs {
		r.Header.Set(key, value)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	return w
}

func (f *fixture) json(w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	require.NoError(f.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (f *fixture) errorCode(w *httptest.ResponseRecorder) string {
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(f.t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Error.Code
}

func podURL(pod, path string) string {
	return "http://" + pod + "." + testHost + path
}

func TestScenarioAppendAndChain(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		f := newFixture(ctx, t, db)

		w := f.do(http.MethodPost, podURL("alice", "/notes/greet"), "u-alice", "hi", nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		first := f.json(w)
		require.Equal(t, float64(0), first["index"])
		require.Nil(t, first["previous_hash"])
		require.NotEmpty(t, first["hash"])

		w = f.do(http.MethodPost, podURL("alice", "/notes/farewell"), "u-alice", "bye", nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		second := f.json(w)
		require.Equal(t, float64(1), second["index"])
		require.Equal(t, first["hash"], second["previous_hash"])

		w = f.do(http.MethodGet, podURL("alice", "/notes"), "", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		page := f.json(w)
		records, ok := page["records"].([]interface{})
		require.True(t, ok)
		require.Len(t, records, 2)
		require.Equal(t, "greet", records[0].(map[string]interface{})["name"])
		require.Equal(t, "farewell", records[1].(map[string]interface{})["name"])
		require.Equal(t, float64(2), page["total"])
		require.Equal(t, false, page["hasMore"])
	})
}

func TestScenarioNamedLatestWins(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		f := newFixture(ctx, t, db)
		asJSON := map[string]string{"Content-Type": "application/json"}

		w := f.do(http.MethodPost, podURL("alice", "/config/theme"), "u-alice", `{"mode":"dark"}`, asJSON)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.Equal(t, float64(0), f.json(w)["index"])

		w = f.do(http.MethodPost, podURL("alice", "/config/theme"), "u-alice", `{"mode":"light"}`, asJSON)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.Equal(t, float64(1), f.json(w)["index"])

		// Reading the name returns the latest version, as raw content.
		w = f.do(http.MethodGet, podURL("alice", "/config/theme"), "", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.JSONEq(t, `{"mode":"light"}`, w.Body.String())
		require.Equal(t, "application/json", w.Header().Get("Content-Type"))

		w = f.do(http.MethodGet, podURL("alice", "/config?unique=true"), "", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		records := f.json(w)["records"].([]interface{})
		require.Len(t, records, 1)
		latest := records[0].(map[string]interface{})
		require.Equal(t, "theme", latest["name"])
		require.Equal(t, map[string]interface{}{"mode": "light"}, latest["content"])

		// Earlier versions stay addressable by index.
		w = f.do(http.MethodGet, podURL("alice", "/config?i=0"), "", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.JSONEq(t, `{"mode":"dark"}`, w.Body.String())
	})
}

func TestScenarioSoftDelete(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		f := newFixture(ctx, t, db)

		w := f.do(http.MethodPost, podURL("alice", "/docs/a"), "u-alice", "x", nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = f.do(http.MethodDelete, podURL("alice", "/docs/a"), "u-alice", "", nil)
		require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

		w = f.do(http.MethodGet, podURL("alice", "/docs/a"), "", "", nil)
		require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
		require.Equal(t, "RECORD_DELETED", f.errorCode(w))

		w = f.do(http.MethodGet, podURL("alice", "/docs?i=0"), "", "", nil)
		require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
		require.Equal(t, "RECORD_DELETED", f.errorCode(w))

		// The deleted version stays readable on request.
		w = f.do(http.MethodGet, podURL("alice", "/docs/a?include_deleted=true"), "", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.Equal(t, "x", w.Body.String())

		// Re-creating the name succeeds and later reads see the new record.
		w = f.do(http.MethodPost, podURL("alice", "/docs/a"), "u-alice", "y", nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = f.do(http.MethodGet, podURL("alice", "/docs/a"), "", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.Equal(t, "y", w.Body.String())
	})
}

func TestScenarioNameStreamConflict(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		f := newFixture(ctx, t, db)

		w := f.do(http.MethodPost, podURL("alice", "/app/config/main"), "u-alice", "v", nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		// A record may share its name with the child stream.
		w = f.do(http.MethodPost, podURL("alice", "/app/config"), "u-alice", "top", nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.Equal(t, "app/config", f.json(w)["path"])

		// While both exist, reads prefer the stream.
		w = f.do(http.MethodGet, podURL("alice", "/app/config"), "", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		records := f.json(w)["records"].([]interface{})
		require.Len(t, records, 1)
		require.Equal(t, "main", records[0].(map[string]interface{})["name"])

		// Deleting prefers the stream too, which uncovers the record.
		w = f.do(http.MethodDelete, podURL("alice", "/app/config"), "u-alice", "", nil)
		require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

		w = f.do(http.MethodGet, podURL("alice", "/app/config"), "", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.Equal(t, "top", w.Body.String())

		// The reverse direction conflicts: a stream cannot take the name of
		// a live record.
		w = f.do(http.MethodPost, podURL("alice", "/app/config"), "u-alice", "", nil)
		require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
		require.Equal(t, "NAME_CONFLICT", f.errorCode(w))
	})
}

func TestScenarioVerifyAfterPurge(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		f := newFixture(ctx, t, db)

		hashes := make([]string, 0, 3)
		for _, name := range []string{"r1", "r2", "r3"} {
			w := f.do(http.MethodPost, podURL("alice", "/logs/"+name), "u-alice", "entry "+name, nil)
			require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
			hashes = append(hashes, f.json(w)["hash"].(string))
		}

		w := f.do(http.MethodDelete, podURL("alice", "/logs/r2?purge=true"), "u-alice", "", nil)
		require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

		// The chain stays intact: three records plus the purge marker.
		w = f.do(http.MethodGet, podURL("alice", "/logs?verify=true"), "", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		verdict := f.json(w)
		require.Equal(t, true, verdict["valid"])
		require.Equal(t, float64(4), verdict["records"])
		require.NotContains(t, verdict, "first_break_index")

		w = f.do(http.MethodGet, podURL("alice", "/logs/r2"), "", "", nil)
		require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
		require.Equal(t, "RECORD_DELETED", f.errorCode(w))

		// r3 still links to the purged record.
		w = f.do(http.MethodGet, podURL("alice", "/logs/r3"), "", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.Equal(t, hashes[1], w.Header().Get("X-Previous-Hash"))
	})
}

func TestScenarioPermissionGrant(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		f := newFixture(ctx, t, db)
		asJSON := map[string]string{"Content-Type": "application/json"}

		w := f.do(http.MethodPost, podURL("alice", "/diary?access=/.permissions/friends"), "u-alice", "", nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.Equal(t, "/.permissions/friends", f.json(w)["access"])

		w = f.do(http.MethodPost, podURL("alice", "/diary/today"), "u-alice", "dear diary", nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = f.do(http.MethodPost, podURL("alice", "/.permissions/friends/grant"), "u-alice",
			`{"userId":"u-bob","read":true}`, asJSON)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = f.do(http.MethodGet, podURL("alice", "/diary"), "u-bob", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.Len(t, f.json(w)["records"].([]interface{}), 1)

		w = f.do(http.MethodGet, podURL("alice", "/diary"), "u-carol", "", nil)
		require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
		require.Equal(t, "FORBIDDEN", f.errorCode(w))

		w = f.do(http.MethodGet, podURL("alice", "/diary"), "", "", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())
		require.Equal(t, "MISSING_TOKEN", f.errorCode(w))
	})
}

func TestCacheEndpoints(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		f := newFixture(ctx, t, db)

		w := f.do(http.MethodPost, podURL("alice", "/notes/greet"), "u-alice", "hi", nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		for i := 0; i < 2; i++ {
			w = f.do(http.MethodGet, podURL("alice", "/notes/greet"), "", "", nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		}

		w = f.do(http.MethodGet, "http://"+testHost+"/test-utils/cache-stats", "", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var stats map[string]treecache.Stats
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
		require.Greater(t, stats["singleRecords"].Hits, int64(0))

		w = f.do(http.MethodPost, "http://"+testHost+"/test-utils/cache-reset", "", "", nil)
		require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

		w = f.do(http.MethodGet, "http://"+testHost+"/test-utils/cache-stats", "", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		stats = nil
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
		require.Zero(t, stats["singleRecords"].Hits)
		require.Zero(t, stats["singleRecords"].EntryCount)
	})
}

func TestCustomDomainRouting(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		f := newFixture(ctx, t, db)
		asJSON := map[string]string{"Content-Type": "application/json"}

		w := f.do(http.MethodPost, podURL("alice", "/notes/hello"), "u-alice", "hi", nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = f.do(http.MethodPost, podURL("alice", "/.config/domains"), "u-alice",
			`{"domain":"blog.example.com"}`, asJSON)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = f.do(http.MethodGet, "http://blog.example.com/notes/hello", "", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.Equal(t, "hi", w.Body.String())

		w = f.do(http.MethodGet, "http://unknown.example.com/notes/hello", "", "", nil)
		require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
		require.Equal(t, "POD_NOT_FOUND", f.errorCode(w))
	})
}

func TestRoutingMap(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		f := newFixture(ctx, t, db)
		asJSON := map[string]string{"Content-Type": "application/json"}

		w := f.do(http.MethodPost, podURL("alice", "/pages/home"), "u-alice", "welcome", nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = f.do(http.MethodPost, podURL("alice", "/.config/routing"), "u-alice",
			`{"/":"pages/home","/start":"pages/home"}`, asJSON)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = f.do(http.MethodGet, podURL("alice", "/"), "", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.Equal(t, "welcome", w.Body.String())

		w = f.do(http.MethodGet, podURL("alice", "/start"), "", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.Equal(t, "welcome", w.Body.String())

		w = f.do(http.MethodGet, podURL("alice", "/nope"), "", "", nil)
		require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
		require.Equal(t, "NOT_FOUND", f.errorCode(w))
	})
}

func TestRootPod(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		f := newFixtureWith(ctx, t, db, server.Config{
			PublicHost:    testHost,
			RootPod:       "alice",
			MaxRecordSize: memory.MiB,
		}, nil)

		w := f.do(http.MethodPost, podURL("alice", "/notes/hello"), "u-alice", "hi", nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		// The bare host falls back to the root pod.
		w = f.do(http.MethodGet, "http://"+testHost+"/notes/hello", "", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.Equal(t, "hi", w.Body.String())

		// Infrastructure routes still win over the root pod.
		w = f.do(http.MethodGet, "http://"+testHost+"/health", "", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.Equal(t, "ok", f.json(w)["status"])
	})
}

func TestRateLimitHeaders(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		f := newFixtureWith(ctx, t, db, server.Config{
			PublicHost:    testHost,
			MaxRecordSize: memory.MiB,
		}, &ratelimit.Config{
			Enabled:           true,
			ReadLimit:         100,
			WriteLimit:        2,
			PodCreateLimit:    10,
			StreamCreateLimit: 100,
		})

		w := f.do(http.MethodPost, podURL("alice", "/notes/one"), "u-alice", "1", nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		require.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
		require.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))

		w = f.do(http.MethodPost, podURL("alice", "/notes/two"), "u-alice", "2", nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

		w = f.do(http.MethodPost, podURL("alice", "/notes/three"), "u-alice", "3", nil)
		require.Equal(t, http.StatusTooManyRequests, w.Code, w.Body.String())
		require.Equal(t, "RATE_LIMIT_EXCEEDED", f.errorCode(w))
		require.NotEmpty(t, w.Header().Get("Retry-After"))

		// A different identity has its own window.
		w = f.do(http.MethodPost, podURL("alice", "/notes/four"), "u-bob", "4", nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	})
}

func TestRecordTooLarge(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		f := newFixtureWith(ctx, t, db, server.Config{
			PublicHost:    testHost,
			MaxRecordSize: memory.KiB,
		}, nil)

		w := f.do(http.MethodPost, podURL("alice", "/notes/big"), "u-alice", strings.Repeat("x", 2048), nil)
		require.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
		require.Equal(t, "RECORD_TOO_LARGE", f.errorCode(w))

		w = f.do(http.MethodPost, podURL("alice", "/notes/small"), "u-alice", strings.Repeat("x", 512), nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	})
}

func TestFieldsAndMaxContentSize(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		f := newFixture(ctx, t, db)

		w := f.do(http.MethodPost, podURL("alice", "/notes/a"), "u-alice", "0123456789ABCDEF", nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = f.do(http.MethodGet, podURL("alice", "/notes?fields=index,name"), "", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		record := f.json(w)["records"].([]interface{})[0].(map[string]interface{})
		require.Len(t, record, 2)
		require.Equal(t, float64(0), record["index"])
		require.Equal(t, "a", record["name"])

		w = f.do(http.MethodGet, podURL("alice", "/notes?maxContentSize=10"), "", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		record = f.json(w)["records"].([]interface{})[0].(map[string]interface{})
		require.NotContains(t, record, "content")
		require.Equal(t, true, record["contentOmitted"])

		w = f.do(http.MethodGet, podURL("alice", "/notes?maxContentSize=16"), "", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		record = f.json(w)["records"].([]interface{})[0].(map[string]interface{})
		require.Equal(t, "0123456789ABCDEF", record["content"])
	})
}

func TestHeadStream(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		f := newFixture(ctx, t, db)

		w := f.do(http.MethodPost, podURL("alice", "/notes/a"), "u-alice", "x", nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		hash := f.json(w)["hash"].(string)

		w = f.do(http.MethodHead, podURL("alice", "/notes"), "", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "1", w.Header().Get("X-Total-Records"))
		require.Equal(t, hash, w.Header().Get("X-Hash"))
		require.NotEmpty(t, w.Header().Get("X-Last-Modified"))

		w = f.do(http.MethodHead, podURL("alice", "/missing"), "", "", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestBinaryRecord(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		f := newFixture(ctx, t, db)

		raw := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00}
		encoded := base64.StdEncoding.EncodeToString(raw)

		w := f.do(http.MethodPost, podURL("alice", "/images/logo"), "u-alice", encoded,
			map[string]string{"Content-Type": "image/png"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		// Binary records come back as their decoded bytes.
		w = f.do(http.MethodGet, podURL("alice", "/images/logo"), "", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, raw, w.Body.Bytes())
		require.Equal(t, "image/png", w.Header().Get("Content-Type"))
	})
}

func TestStoredRecordHeaders(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		f := newFixture(ctx, t, db)

		w := f.do(http.MethodPost, podURL("alice", "/notes/tagged"), "u-alice", "hello",
			map[string]string{"X-Topic": "news", "X-Forwarded-For": "10.0.0.1"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		headers, ok := f.json(w)["headers"].(map[string]interface{})
		require.True(t, ok)
		require.Equal(t, map[string]interface{}{"X-Topic": "news"}, headers)

		// Stored headers replay on raw reads, next to the chain headers.
		w = f.do(http.MethodGet, podURL("alice", "/notes/tagged"), "", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "news", w.Header().Get("X-Topic"))
		require.NotEmpty(t, w.Header().Get("X-Hash"))
		require.NotEmpty(t, w.Header().Get("ETag"))
		require.Equal(t, "u-alice", w.Header().Get("X-Author"))
	})
}

func TestInvalidQueryErrors(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		f := newFixture(ctx, t, db)

		w := f.do(http.MethodPost, podURL("alice", "/docs/a"), "u-alice", "x", nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = f.do(http.MethodGet, podURL("alice", "/docs?i=abc"), "", "", nil)
		require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		require.Equal(t, "INVALID_INDEX", f.errorCode(w))

		w = f.do(http.MethodGet, podURL("alice", "/docs?i=1:x"), "", "", nil)
		require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		require.Equal(t, "INVALID_RANGE", f.errorCode(w))

		w = f.do(http.MethodGet, podURL("alice", "/docs?limit=x"), "", "", nil)
		require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		require.Equal(t, "INVALID_REQUEST", f.errorCode(w))

		// With an index parameter the whole path must name a stream.
		w = f.do(http.MethodGet, podURL("alice", "/docs/a?i=0"), "", "", nil)
		require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
		require.Equal(t, "STREAM_NOT_FOUND", f.errorCode(w))

		w = f.do(http.MethodGet, podURL("alice", "/docs?i=99"), "", "", nil)
		require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		require.Equal(t, "INVALID_INDEX", f.errorCode(w))
	})
}

func TestRecordRangeReads(t *testing.T) {
	podbasetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *podbase.DB) {
		f := newFixture(ctx, t, db)

		for _, name := range []string{"r0", "r1", "r2", "r3"} {
			w := f.do(http.MethodPost, podURL("alice", "/logs/"+name), "u-alice", name, nil)
			require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		}

		w := f.do(http.MethodGet, podURL("alice", "/logs?i=1:3"), "", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		records := f.json(w)["records"].([]interface{})
		require.Len(t, records, 2)
		require.Equal(t, float64(1), records[0].(map[string]interface{})["index"])
		require.Equal(t, float64(2), records[1].(map[string]interface{})["index"])

		// Negative indexes count from the end.
		w = f.do(http.MethodGet, podURL("alice", "/logs?i=-1"), "", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.Equal(t, "r3", w.Body.String())
	})
}
