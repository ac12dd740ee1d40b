// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package podbase_test

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"storj.io/webpods/podbase"
)

func TestIsBinaryContentType(t *testing.T) {
	binary := []string{
		"image/png",
		"image/jpeg; quality=80",
		"video/mp4",
		"audio/ogg",
		"application/pdf",
		"application/zip",
		"application/octet-stream",
		"Application/PDF",
	}
	for _, ct := range binary {
		require.True(t, podbase.IsBinaryContentType(ct), ct)
	}

	text := []string{
		"text/plain",
		"text/plain; charset=utf-8",
		"application/json",
		"text/html",
		"",
	}
	for _, ct := range text {
		require.False(t, podbase.IsBinaryContentType(ct), ct)
	}
}

func TestContentHashCanonicalization(t *testing.T) {
	payload := []byte("attachment payload")
	encoded := base64.StdEncoding.EncodeToString(payload)

	// Binary content is hashed over the decoded bytes, so the digest matches
	// the digest of the raw payload hashed as text.
	require.Equal(t,
		podbase.ContentHash(string(payload), "text/plain"),
		podbase.ContentHash(encoded, "application/octet-stream"))

	// Text content is hashed as-is, even when it happens to be valid base64.
	require.NotEqual(t,
		podbase.ContentHash(encoded, "text/plain"),
		podbase.ContentHash(encoded, "application/octet-stream"))

	// Invalid base64 under a binary type falls back to hashing the raw bytes.
	require.Equal(t,
		podbase.ContentHash("not base64!", "text/plain"),
		podbase.ContentHash("not base64!", "image/png"))
}

func TestRecordHash(t *testing.T) {
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	contentHash := podbase.ContentHash(`{"n":1}`, "application/json")

	first := podbase.RecordHash("", contentHash, "auth0|alice", at)
	require.Len(t, first, 64)

	second := podbase.RecordHash(first, contentHash, "auth0|alice", at.Add(time.Second))
	require.NotEqual(t, first, second)

	// The hash is deterministic over its four inputs.
	require.Equal(t, first, podbase.RecordHash("", contentHash, "auth0|alice", at))
	require.NotEqual(t, first, podbase.RecordHash("", contentHash, "auth0|bob", at))
	require.NotEqual(t, first, podbase.RecordHash("", contentHash, "auth0|alice", at.Add(time.Microsecond)))
}

func TestFormatRecordTime(t *testing.T) {
	// Nanoseconds are truncated to microseconds so the rendered timestamp
	// round-trips through TIMESTAMPTZ columns.
	at := time.Date(2026, 5, 1, 12, 0, 0, 123456789, time.UTC)
	require.Equal(t, "2026-05-01T12:00:00.123456Z", podbase.FormatRecordTime(at))
	require.Equal(t, podbase.FormatRecordTime(at), podbase.FormatRecordTime(podbase.TruncateRecordTime(at)))

	// Zone conversion happens before rendering.
	est := time.FixedZone("EST", -5*3600)
	require.Equal(t, "2026-05-01T12:00:00Z", podbase.FormatRecordTime(at.Add(-123456789).In(est)))
}
