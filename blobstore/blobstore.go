// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package blobstore moves large record content out of the database. The
// record row keeps a locator; the bytes live behind a Store.
package blobstore

import (
	"context"
	"strings"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
)

var (
	// Error is the default blobstore error class.
	Error = errs.Class("blobstore")

	mon = monkit.Package()
)

// Config holds the external storage settings.
type Config struct {
	Path    string `help:"directory for externally stored record content" default:"$CONFDIR/blobs"`
	BaseURL string `help:"public base URL serving externally stored content" default:""`
}

// Ref addresses one record's content. The default store only uses the pod,
// the stream path and the content hash, but alternative stores may key on
// the record name as well.
type Ref struct {
	Pod         string
	StreamPath  string
	Name        string
	ContentHash string
	Ext         string
}

// Store is the external storage surface consumed by the record store. The
// locator returned by Put is opaque to callers; only the Store that issued
// it can interpret it.
type Store interface {
	// Put stores the content and returns its locator. Put is idempotent
	// for the same ref: content is addressed by hash.
	Put(ctx context.Context, ref Ref, data []byte) (locator string, err error)

	// URL returns the public URL serving the locator's content.
	URL(locator string) (string, error)

	// Delete removes the content behind the locator. Deleting an unknown
	// locator is not an error.
	Delete(ctx context.Context, locator string) error

	// DeleteAll removes all content stored under a stream path, subtree
	// included.
	DeleteAll(ctx context.Context, pod, streamPath string) error
}

var contentTypeExtensions = map[string]string{
	"image/jpeg":               ".jpg",
	"image/png":                ".png",
	"image/gif":                ".gif",
	"image/webp":               ".webp",
	"image/svg+xml":            ".svg",
	"video/mp4":                ".mp4",
	"video/webm":               ".webm",
	"audio/mpeg":               ".mp3",
	"audio/ogg":                ".ogg",
	"audio/wav":                ".wav",
	"application/pdf":          ".pdf",
	"application/zip":          ".zip",
	"application/json":         ".json",
	"application/javascript":   ".js",
	"application/octet-stream": ".bin",
	"text/plain":               ".txt",
	"text/html":                ".html",
	"text/css":                 ".css",
	"text/markdown":            ".md",
	"text/csv":                 ".csv",
}

// ExtensionFor returns the filename extension used when storing content of
// the given type, ".bin" for unrecognized types.
func ExtensionFor(contentType string) string {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	if ext, ok := contentTypeExtensions[mediaType]; ok {
		return ext
	}
	return ".bin"
}
