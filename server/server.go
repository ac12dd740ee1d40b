// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package server implements the HTTP surface of webpods. Requests are
// routed by host: subdomains of the public host address pods, registered
// custom domains resolve to their pod, and the bare public host serves the
// infrastructure endpoints plus, optionally, a root pod.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storj.io/webpods/blobstore"
	"storj.io/webpods/podbase"
	"storj.io/webpods/pods"
	"storj.io/webpods/private/memory"
	"storj.io/webpods/ratelimit"
	"storj.io/webpods/treecache"
)

// Error is the default error class for the package.
var Error = errs.Class("server")

// Config defines configuration for the HTTP server.
type Config struct {
	Address       string      `help:"address the http server listens on" default:":8080"`
	PublicHost    string      `help:"public hostname whose subdomains address pods" default:"localhost"`
	RootPod       string      `help:"pod served on the bare public host, none when empty" default:""`
	TestUtils     bool        `help:"expose the /test-utils cache inspection endpoints" default:"false"`
	MaxRecordSize memory.Size `help:"largest accepted record body" default:"10MiB"`
}

// Server routes pod traffic to the pods service.
type Server struct {
	log *zap.Logger

	listener net.Listener
	server   http.Server

	db      *podbase.DB
	service *pods.Service
	cache   *treecache.Cache
	limiter *ratelimit.Limiter
	blobs   blobstore.Store

	auth Authenticator
	// identity serves /auth/* and /api/* on the bare host when an identity
	// provider is mounted; both prefixes 404 otherwise.
	identity http.Handler

	bare http.Handler
	pod  http.Handler

	config Config
}

// New returns a new webpods Server. The limiter, blob store and identity
// handler are optional; auth defaults to header authentication when nil.
func New(
	log *zap.Logger,
	listener net.Listener,
	db *podbase.DB,
	service *pods.Service,
	cache *treecache.Cache,
	limiter *ratelimit.Limiter,
	blobs blobstore.Store,
	auth Authenticator,
	identity http.Handler,
	config Config,
) *Server {
	if auth == nil {
		auth = HeaderAuth{}
	}

	server := &Server{
		log:      log,
		listener: listener,
		db:       db,
		service:  service,
		cache:    cache,
		limiter:  limiter,
		blobs:    blobs,
		auth:     auth,
		identity: identity,
		config:   config,
	}

	bare := mux.NewRouter()
	bare.HandleFunc("/health", server.handleHealth).Methods(http.MethodGet)
	bare.PathPrefix("/auth/").HandlerFunc(server.handleIdentity)
	bare.PathPrefix("/api/").HandlerFunc(server.handleIdentity)
	if config.TestUtils {
		bare.HandleFunc("/test-utils/cache-stats", server.handleCacheStats).Methods(http.MethodGet)
		bare.HandleFunc("/test-utils/cache-reset", server.handleCacheReset).Methods(http.MethodPost)
	}
	bare.NotFoundHandler = http.HandlerFunc(server.handleRootPod)
	server.bare = bare

	// The pod surface accepts arbitrary-depth paths, so it dispatches on
	// method rather than on routes.
	server.pod = server.withUser(server.withRateLimit(http.HandlerFunc(server.dispatchPod)))

	server.server = http.Server{
		Handler: http.HandlerFunc(server.serveHost),
	}

	return server
}

// serveHost picks the pod or infrastructure surface from the request host.
func (server *Server) serveHost(w http.ResponseWriter, r *http.Request) {
	host := stripPort(r.Host)

	if host == server.config.PublicHost {
		server.bare.ServeHTTP(w, r)
		return
	}

	if strings.HasSuffix(host, "."+server.config.PublicHost) {
		label := strings.TrimSuffix(host, "."+server.config.PublicHost)
		if strings.Contains(label, ".") {
			server.serveError(w, r, podbase.ErrInvalidPodName.New("host %q nests below the public host", host))
			return
		}
		pod := podbase.PodName(label)
		if err := pod.Verify(); err != nil {
			server.serveError(w, r, err)
			return
		}
		server.servePod(w, r, pod)
		return
	}

	pod, err := server.db.GetPodByDomain(r.Context(), host)
	if err != nil {
		if podbase.ErrPodNotFound.Has(err) {
			err = podbase.ErrPodNotFound.New("no pod serves host %q", host)
		}
		server.serveError(w, r, err)
		return
	}
	server.servePod(w, r, pod)
}

// handleRootPod serves bare-host paths that no infrastructure route
// claimed. With a root pod configured they get the full pod surface.
func (server *Server) handleRootPod(w http.ResponseWriter, r *http.Request) {
	if server.config.RootPod == "" {
		writeError(w, http.StatusNotFound, codeNotFound, "nothing is served at the bare host")
		return
	}
	server.servePod(w, r, podbase.PodName(server.config.RootPod))
}

func (server *Server) servePod(w http.ResponseWriter, r *http.Request, pod podbase.PodName) {
	server.pod.ServeHTTP(w, r.WithContext(withPod(r.Context(), pod)))
}

func (server *Server) dispatchPod(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		server.handleRead(w, r)
	case http.MethodHead:
		server.handleHead(w, r)
	case http.MethodPost:
		server.handleWrite(w, r)
	case http.MethodDelete:
		server.handleDelete(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method "+r.Method+" is not supported")
	}
}

// Run starts the server and blocks until the context is canceled.
func (server *Server) Run(ctx context.Context) error {
	if server.listener == nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	var group errgroup.Group
	group.Go(func() error {
		<-ctx.Done()
		return Error.Wrap(server.server.Shutdown(context.Background()))
	})
	group.Go(func() error {
		defer cancel()
		err := server.server.Serve(server.listener)
		if errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return Error.Wrap(err)
	})
	return group.Wait()
}

// Close closes server and underlying listener.
func (server *Server) Close() error {
	return Error.Wrap(server.server.Close())
}

// Handler exposes the host-routing entry point, so tests can drive the
// server without a listener.
func (server *Server) Handler() http.Handler {
	return http.HandlerFunc(server.serveHost)
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
