// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"storj.io/webpods/podbase"
	"storj.io/webpods/pods"
	"storj.io/webpods/ratelimit"
)

// Machine-readable error codes of the API. Every error response is
// {"error": {"code": ..., "message": ...}}.
const (
	codeInvalidName       = "INVALID_NAME"
	codeInvalidPodName    = "INVALID_POD_NAME"
	codeInvalidIndex      = "INVALID_INDEX"
	codeInvalidRange      = "INVALID_RANGE"
	codeInvalidRequest    = "INVALID_REQUEST"
	codeInvalidSchema     = "INVALID_SCHEMA"
	codeMissingToken      = "MISSING_TOKEN"
	codeInvalidToken      = "INVALID_TOKEN"
	codeForbidden         = "FORBIDDEN"
	codeNotFound          = "NOT_FOUND"
	codePodNotFound       = "POD_NOT_FOUND"
	codeStreamNotFound    = "STREAM_NOT_FOUND"
	codeRecordNotFound    = "RECORD_NOT_FOUND"
	codeRecordDeleted     = "RECORD_DELETED"
	codeNameConflict      = "NAME_CONFLICT"
	codeNameExists        = "NAME_EXISTS"
	codeRecordTooLarge    = "RECORD_TOO_LARGE"
	codeMethodNotAllowed  = "METHOD_NOT_ALLOWED"
	codeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	codeWriteError        = "WRITE_ERROR"
	codeDatabaseError     = "DATABASE_ERROR"
	codeInternalError     = "INTERNAL_ERROR"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Code: code, Message: message}})
}

// serveError maps a service error onto its status code and error envelope.
// Denials without an identity become 401 rather than 403, and server-side
// failures are logged but reported generically.
func (server *Server) serveError(w http.ResponseWriter, r *http.Request, err error) {
	var exceeded *ratelimit.ExceededError
	if errors.As(err, &exceeded) {
		setRateHeaders(w, exceeded.Decision)
		retry := time.Until(exceeded.Decision.ResetAt) / time.Second
		if retry < 1 {
			retry = 1
		}
		w.Header().Set("Retry-After", strconv.FormatInt(int64(retry), 10))
		writeError(w, http.StatusTooManyRequests, codeRateLimitExceeded, err.Error())
		return
	}

	status, code := classify(err, userFrom(r.Context()) != nil, r.Method)
	if status >= http.StatusInternalServerError {
		server.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("host", r.Host),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, status, code, "internal server error")
		return
	}
	writeError(w, status, code, err.Error())
}

func classify(err error, authenticated bool, method string) (status int, code string) {
	switch {
	case pods.ErrSchemaViolation.Has(err):
		return http.StatusBadRequest, codeInvalidSchema
	case pods.ErrForbidden.Has(err):
		if !authenticated {
			return http.StatusUnauthorized, codeMissingToken
		}
		return http.StatusForbidden, codeForbidden
	case podbase.ErrInvalidPodName.Has(err):
		return http.StatusBadRequest, codeInvalidPodName
	case podbase.ErrInvalidIndex.Has(err):
		return http.StatusBadRequest, codeInvalidIndex
	case podbase.ErrInvalidRange.Has(err):
		return http.StatusBadRequest, codeInvalidRange
	case podbase.ErrInvalidName.Has(err):
		return http.StatusBadRequest, codeInvalidName
	case podbase.ErrInvalidRequest.Has(err):
		return http.StatusBadRequest, codeInvalidRequest
	case podbase.ErrRecordDeleted.Has(err):
		return http.StatusNotFound, codeRecordDeleted
	case podbase.ErrRecordNotFound.Has(err):
		return http.StatusNotFound, codeRecordNotFound
	case podbase.ErrStreamNotFound.Has(err):
		return http.StatusNotFound, codeStreamNotFound
	case podbase.ErrPodNotFound.Has(err):
		return http.StatusNotFound, codePodNotFound
	case podbase.ErrNameConflict.Has(err):
		return http.StatusConflict, codeNameConflict
	case podbase.ErrNameExists.Has(err):
		return http.StatusConflict, codeNameExists
	case podbase.Error.Has(err):
		if method == http.MethodPost || method == http.MethodDelete {
			return http.StatusInternalServerError, codeWriteError
		}
		return http.StatusInternalServerError, codeDatabaseError
	}
	return http.StatusInternalServerError, codeInternalError
}
