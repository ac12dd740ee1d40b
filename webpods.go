// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package webpods assembles the pod storage, permission, cache, rate
// limiting and HTTP serving subsystems into a single runnable peer.
package webpods

import (
	"github.com/spacemonkeygo/monkit/v3"

	"storj.io/webpods/blobstore"
	"storj.io/webpods/pods"
	"storj.io/webpods/private/memory"
	"storj.io/webpods/ratelimit"
	"storj.io/webpods/server"
	"storj.io/webpods/treecache"
)

var mon = monkit.Package()

// BlobsConfig controls external storage for large record content.
type BlobsConfig struct {
	Enabled         bool        `help:"store large record content outside the database" default:"false"`
	MinExternalSize memory.Size `help:"decoded content size at or above which content is stored externally" default:"1MiB"`

	Store blobstore.Config
}

// Config is the webpods process configuration.
type Config struct {
	Database string `help:"pod database connection string" releaseDefault:"postgres://" devDefault:"postgres://postgres@localhost/webpods?sslmode=disable"`

	Cache     treecache.Config
	RateLimit ratelimit.Config
	Blobs     BlobsConfig
	Pods      pods.Config
	Server    server.Config
}
