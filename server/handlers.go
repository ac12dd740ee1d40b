// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"storj.io/webpods/podbase"
	"storj.io/webpods/pods"
)

// handleRead resolves a GET path. With an index parameter the whole path
// must name a stream; otherwise the path is tried as a stream first and as
// a record second, and finally against the pod's routing map.
func (server *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pod, caller := podFrom(ctx), userFrom(ctx)
	path := strings.Trim(r.URL.Path, "/")
	q := r.URL.Query()

	query, err := parseListQuery(q)
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	if raw := q.Get("i"); raw != "" {
		server.handleIndexedRead(w, r, path, raw, query)
		return
	}

	if path == "" {
		server.serveRouted(w, r, "/")
		return
	}

	if q.Get("verify") == "true" {
		result, err := server.service.VerifyStream(ctx, pods.VerifyStream{
			Caller:     caller,
			Pod:        pod,
			StreamPath: path,
		})
		if err != nil {
			server.serveError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, verifyObject(result))
		return
	}

	page, err := server.service.ListRecords(ctx, pods.ListRecords{
		Caller:         caller,
		Pod:            pod,
		StreamPath:     path,
		Limit:          query.limit,
		After:          query.after,
		Unique:         query.unique,
		Recursive:      query.recursive,
		IncludeDeleted: query.includeDeleted,
	})
	if err == nil {
		writePage(w, page, query.proj)
		return
	}
	if !podbase.ErrStreamNotFound.Has(err) {
		server.serveError(w, r, err)
		return
	}

	if streamPath, name, ok := splitRecordPath(path); ok {
		record, _, rerr := server.service.GetRecord(ctx, pods.GetRecord{
			Caller:         caller,
			Pod:            pod,
			StreamPath:     streamPath,
			Name:           name,
			IncludeDeleted: query.includeDeleted,
		})
		if rerr == nil {
			server.serveRecordContent(w, r, record)
			return
		}
		if !podbase.ErrStreamNotFound.Has(rerr) && !podbase.ErrRecordNotFound.Has(rerr) {
			server.serveError(w, r, rerr)
			return
		}
	}

	server.serveRouted(w, r, "/"+path)
}

func (server *Server) handleIndexedRead(w http.ResponseWriter, r *http.Request, path, raw string, query listQuery) {
	ctx := r.Context()
	pod, caller := podFrom(ctx), userFrom(ctx)

	if path == "" {
		server.serveError(w, r, podbase.ErrStreamNotFound.New("indexed reads need a stream path"))
		return
	}

	if i := strings.IndexByte(raw, ':'); i >= 0 {
		start, err1 := strconv.ParseInt(raw[:i], 10, 64)
		end, err2 := strconv.ParseInt(raw[i+1:], 10, 64)
		if err1 != nil || err2 != nil {
			server.serveError(w, r, podbase.ErrInvalidRange.New("range %q must be <start>:<end>", raw))
			return
		}
		page, err := server.service.GetRecordRange(ctx, pods.GetRecordRange{
			Caller:     caller,
			Pod:        pod,
			StreamPath: path,
			Start:      start,
			End:        end,
		})
		if err != nil {
			server.serveError(w, r, err)
			return
		}
		writePage(w, page, query.proj)
		return
	}

	index, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		server.serveError(w, r, podbase.ErrInvalidIndex.New("index %q must be an integer", raw))
		return
	}
	record, _, err := server.service.GetRecordAt(ctx, pods.GetRecordAt{
		Caller:         caller,
		Pod:            pod,
		StreamPath:     path,
		Index:          index,
		IncludeDeleted: query.includeDeleted,
	})
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.serveRecordContent(w, r, record)
}

// serveRouted serves the record the pod's routing map assigns to the
// request path, or 404 when no route matches.
func (server *Server) serveRouted(w http.ResponseWriter, r *http.Request, requestPath string) {
	ctx := r.Context()
	pod, caller := podFrom(ctx), userFrom(ctx)

	target, err := server.service.ResolveRoute(ctx, pod, requestPath)
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	streamPath, name, ok := splitRecordPath(target)
	if target == "" || !ok {
		writeError(w, http.StatusNotFound, codeNotFound, "nothing is served at "+requestPath)
		return
	}
	record, _, err := server.service.GetRecord(ctx, pods.GetRecord{
		Caller:     caller,
		Pod:        pod,
		StreamPath: streamPath,
		Name:       name,
	})
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	server.serveRecordContent(w, r, record)
}

// handleHead reports stream metadata in headers, without a body.
func (server *Server) handleHead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	path := strings.Trim(r.URL.Path, "/")
	if path == "" {
		writeError(w, http.StatusNotFound, codeNotFound, "nothing is served at /")
		return
	}

	stats, err := server.service.HeadStream(ctx, pods.HeadStream{
		Caller:     userFrom(ctx),
		Pod:        podFrom(ctx),
		StreamPath: path,
	})
	if err != nil {
		server.serveError(w, r, err)
		return
	}

	h := w.Header()
	h.Set("X-Total-Records", strconv.FormatInt(stats.Total, 10))
	if stats.LastHash != "" {
		h.Set("X-Hash", stats.LastHash)
		h.Set("X-Last-Modified", podbase.FormatRecordTime(stats.LastModified))
	}
	w.WriteHeader(http.StatusOK)
}

// handleWrite appends a record, or creates a stream when the body is empty.
// For appends the last path segment is always the record name.
func (server *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pod, caller, rateKey := podFrom(ctx), userFrom(ctx), rateKeyFrom(ctx)
	path := strings.Trim(r.URL.Path, "/")
	if path == "" {
		server.serveError(w, r, podbase.ErrInvalidName.New("the request path names no stream"))
		return
	}

	body := io.Reader(r.Body)
	if limit := server.config.MaxRecordSize.Int64(); limit > 0 {
		body = http.MaxBytesReader(w, r.Body, limit)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeRecordTooLarge,
				fmt.Sprintf("record bodies are limited to %d bytes", tooLarge.Limit))
			return
		}
		server.serveError(w, r, Error.Wrap(err))
		return
	}

	access := r.URL.Query().Get("access")

	if len(data) == 0 {
		result, err := server.service.CreateStream(ctx, pods.CreateStream{
			Caller:  caller,
			RateKey: rateKey,
			Pod:     pod,
			Path:    path,
			Access:  access,
		})
		if err != nil {
			server.serveError(w, r, err)
			return
		}
		status := http.StatusOK
		if len(result.Created) > 0 {
			status = http.StatusCreated
		}
		writeJSON(w, status, streamObject(result.Stream))
		return
	}

	streamPath, name, ok := splitRecordPath(path)
	if !ok {
		server.serveError(w, r, podbase.ErrInvalidName.New("record %q needs an enclosing stream", path))
		return
	}
	record, err := server.service.Append(ctx, pods.Append{
		Caller:      caller,
		RateKey:     rateKey,
		Pod:         pod,
		StreamPath:  streamPath,
		Name:        name,
		Content:     string(data),
		ContentType: r.Header.Get("Content-Type"),
		Headers:     recordHeaders(r.Header),
		Access:      access,
	})
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, recordObject(record))
}

// handleDelete removes the stream at the path, or tombstones the record
// when no such stream exists.
func (server *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pod, caller := podFrom(ctx), userFrom(ctx)
	path := strings.Trim(r.URL.Path, "/")
	if path == "" {
		server.serveError(w, r, podbase.ErrInvalidName.New("the request path names no stream"))
		return
	}

	_, err := server.service.DeleteStream(ctx, pods.DeleteStream{
		Caller:     caller,
		Pod:        pod,
		StreamPath: path,
	})
	if err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if !podbase.ErrStreamNotFound.Has(err) {
		server.serveError(w, r, err)
		return
	}

	streamPath, name, ok := splitRecordPath(path)
	if !ok {
		server.serveError(w, r, err)
		return
	}
	err = server.service.DeleteRecord(ctx, pods.DeleteRecord{
		Caller:     caller,
		Pod:        pod,
		StreamPath: streamPath,
		Name:       name,
		Purge:      r.URL.Query().Get("purge") == "true",
	})
	if err != nil {
		server.serveError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (server *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := server.db.Ping(r.Context()); err != nil {
		server.log.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (server *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	if server.identity == nil {
		writeError(w, http.StatusNotFound, codeNotFound, "no identity provider is mounted")
		return
	}
	server.identity.ServeHTTP(w, r)
}

func (server *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, server.cache.Stats())
}

func (server *Server) handleCacheReset(w http.ResponseWriter, r *http.Request) {
	server.cache.ResetAll()
	w.WriteHeader(http.StatusNoContent)
}

// listQuery carries the parsed read parameters.
type listQuery struct {
	limit          int
	after          *int64
	unique         bool
	recursive      bool
	includeDeleted bool
	proj           projection
}

func parseListQuery(q url.Values) (listQuery, error) {
	out := listQuery{proj: projection{maxContentSize: -1}}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return listQuery{}, podbase.ErrInvalidRequest.New("limit %q must be a non-negative integer", raw)
		}
		out.limit = n
	}
	if raw := q.Get("after"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return listQuery{}, podbase.ErrInvalidRequest.New("after %q must be an integer", raw)
		}
		out.after = &n
	}
	out.unique = q.Get("unique") == "true"
	out.recursive = q.Get("recursive") == "true"
	out.includeDeleted = q.Get("include_deleted") == "true"

	if raw := q.Get("fields"); raw != "" {
		out.proj.fields = make(map[string]bool)
		for _, field := range strings.Split(raw, ",") {
			if field = strings.TrimSpace(field); field != "" {
				out.proj.fields[field] = true
			}
		}
	}
	if raw := q.Get("maxContentSize"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			return listQuery{}, podbase.ErrInvalidRequest.New("maxContentSize %q must be a non-negative integer", raw)
		}
		out.proj.maxContentSize = n
	}
	return out, nil
}

// splitRecordPath splits a full record path into its stream path and record
// name. A single segment cannot be a record path: records live in streams.
func splitRecordPath(path string) (streamPath, name string, ok bool) {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "", "", false
	}
	return path[:i], path[i+1:], true
}

// recordHeaders keeps the client's X- headers for storage, minus the ones
// the transport itself owns.
func recordHeaders(h http.Header) map[string]string {
	var out map[string]string
	for name, values := range h {
		if !strings.HasPrefix(name, "X-") || len(values) == 0 {
			continue
		}
		switch {
		case strings.HasPrefix(name, "X-Webpods-"),
			strings.HasPrefix(name, "X-Forwarded-"),
			strings.HasPrefix(name, "X-Ratelimit-"),
			name == "X-Real-Ip",
			name == "X-Request-Id":
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[name] = values[0]
	}
	return out
}
