// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package webpods

import (
	"context"
	"net"
	"runtime/pprof"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storj.io/webpods/access"
	"storj.io/webpods/blobstore"
	"storj.io/webpods/podbase"
	"storj.io/webpods/pods"
	"storj.io/webpods/private/lifecycle"
	"storj.io/webpods/ratelimit"
	"storj.io/webpods/server"
	"storj.io/webpods/treecache"
)

// Peer is the webpods process.
//
// architecture: Peer
type Peer struct {
	// core dependencies
	Log *zap.Logger
	DB  *podbase.DB

	Servers  *lifecycle.Group
	Services *lifecycle.Group

	Cache struct {
		Tree *treecache.Cache
	}

	RateLimit struct {
		Limiter *ratelimit.Limiter
	}

	Access struct {
		Engine *access.Engine
	}

	Blobs struct {
		Store blobstore.Store
	}

	Pods struct {
		Service *pods.Service
	}

	API struct {
		Listener net.Listener
		Server   *server.Server
	}
}

// New creates a new webpods peer on top of an opened pod database.
func New(log *zap.Logger, db *podbase.DB, config Config) (*Peer, error) {
	peer := &Peer{
		Log: log,
		DB:  db,

		Servers:  lifecycle.NewGroup(log.Named("servers")),
		Services: lifecycle.NewGroup(log.Named("services")),
	}

	{ // setup cache
		peer.Cache.Tree = treecache.New(config.Cache)
	}

	{ // setup rate limiting
		peer.RateLimit.Limiter = ratelimit.New(log.Named("ratelimit"), db, config.RateLimit)
	}

	{ // setup access control
		peer.Access.Engine = access.NewEngine(log.Named("access"), db, peer.Cache.Tree)
	}

	{ // setup blob storage
		if config.Blobs.Enabled {
			store, err := blobstore.NewLocal(log.Named("blobs"), config.Blobs.Store)
			if err != nil {
				return nil, errs.Combine(err, peer.Close())
			}
			peer.Blobs.Store = store
		}
	}

	{ // setup pods service
		peer.Pods.Service = pods.New(
			log.Named("pods"),
			db,
			peer.Cache.Tree,
			peer.Access.Engine,
			peer.Blobs.Store,
			peer.RateLimit.Limiter,
			config.Pods,
		)
	}

	{ // setup public server
		var err error
		peer.API.Listener, err = net.Listen("tcp", config.Server.Address)
		if err != nil {
			return nil, errs.Combine(err, peer.Close())
		}

		peer.API.Server = server.New(
			log.Named("server"),
			peer.API.Listener,
			db,
			peer.Pods.Service,
			peer.Cache.Tree,
			peer.RateLimit.Limiter,
			peer.Blobs.Store,
			nil, // header authentication by default
			nil, // identity endpoints are served by an external collaborator
			config.Server,
		)

		peer.Servers.Add(lifecycle.Item{
			Name:  "server",
			Run:   peer.API.Server.Run,
			Close: peer.API.Server.Close,
		})
	}

	return peer, nil
}

// Run runs webpods until it's either closed or it errors.
func (peer *Peer) Run(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	group, ctx := errgroup.WithContext(ctx)

	pprof.Do(ctx, pprof.Labels("subsystem", "webpods"), func(ctx context.Context) {
		peer.Servers.Run(ctx, group)
		peer.Services.Run(ctx, group)

		pprof.Do(ctx, pprof.Labels("name", "subsystem-wait"), func(ctx context.Context) {
			err = group.Wait()
		})
	})
	return err
}

// Close closes all the resources.
func (peer *Peer) Close() error {
	return errs.Combine(
		peer.Servers.Close(),
		peer.Services.Close(),
	)
}
