// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"storj.io/webpods/access"
	"storj.io/webpods/podbase"
	"storj.io/webpods/ratelimit"
)

// Authenticator resolves the caller of a request. A nil user with a nil
// error means the request is anonymous.
type Authenticator interface {
	Authenticate(r *http.Request) (*access.User, error)
}

// HeaderAuth reads the identity the auth proxy forwards in X-Webpods-*
// headers. Raw bearer tokens are the proxy's job: a request carrying an
// Authorization header without a resolved identity is rejected rather than
// silently treated as anonymous.
type HeaderAuth struct{}

// Authenticate implements Authenticator.
func (HeaderAuth) Authenticate(r *http.Request) (*access.User, error) {
	id := r.Header.Get("X-Webpods-User")
	if id == "" {
		if r.Header.Get("Authorization") != "" {
			return nil, Error.New("bearer tokens must be resolved by the auth proxy")
		}
		return nil, nil
	}

	user := &access.User{
		ID:    id,
		Name:  r.Header.Get("X-Webpods-Name"),
		Email: r.Header.Get("X-Webpods-Email"),
	}
	if scopes := r.Header.Get("X-Webpods-Scopes"); scopes != "" {
		for _, pod := range strings.Split(scopes, ",") {
			if pod = strings.TrimSpace(pod); pod != "" {
				user.Pods = append(user.Pods, pod)
			}
		}
	}
	return user, nil
}

type contextKey int

const (
	contextKeyPod contextKey = iota
	contextKeyUser
	contextKeyRateKey
)

func withPod(ctx context.Context, pod podbase.PodName) context.Context {
	return context.WithValue(ctx, contextKeyPod, pod)
}

func podFrom(ctx context.Context) podbase.PodName {
	pod, _ := ctx.Value(contextKeyPod).(podbase.PodName)
	return pod
}

func withUser(ctx context.Context, user *access.User) context.Context {
	return context.WithValue(ctx, contextKeyUser, user)
}

func userFrom(ctx context.Context) *access.User {
	user, _ := ctx.Value(contextKeyUser).(*access.User)
	return user
}

func withRateKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, contextKeyRateKey, key)
}

func rateKeyFrom(ctx context.Context) string {
	key, _ := ctx.Value(contextKeyRateKey).(string)
	return key
}

// withUser resolves the caller and stores it in the request context.
func (server *Server) withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := server.auth.Authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, codeInvalidToken, err.Error())
			return
		}
		if user != nil {
			r = r.WithContext(withUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit counts the request against the caller's hourly quota and
// rejects it once the quota is spent. Every response carries the
// X-RateLimit headers.
func (server *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if server.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := rateIdentifier(userFrom(r.Context()), r)
		action := ratelimit.ActionWrite
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			action = ratelimit.ActionRead
		}

		decision, err := server.limiter.Allow(r.Context(), key, action)
		if err != nil {
			server.log.Warn("rate limit check failed, allowing request",
				zap.String("identifier", key),
				zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		setRateHeaders(w, decision)
		if !decision.Allowed {
			server.serveError(w, r, ratelimit.Exceeded(decision))
			return
		}

		next.ServeHTTP(w, r.WithContext(withRateKey(r.Context(), key)))
	})
}

// rateIdentifier keys the quota by user when authenticated, by client
// address otherwise.
func rateIdentifier(user *access.User, r *http.Request) string {
	if user != nil && user.ID != "" {
		return ratelimit.UserIdentifier(user.ID)
	}
	host := r.Header.Get("X-Forwarded-For")
	if i := strings.IndexByte(host, ','); i >= 0 {
		host = host[:i]
	}
	host = strings.TrimSpace(host)
	if host == "" {
		host = stripPort(r.RemoteAddr)
	}
	return ratelimit.IPIdentifier(host)
}

func setRateHeaders(w http.ResponseWriter, decision ratelimit.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
}
