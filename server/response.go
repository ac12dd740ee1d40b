// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"storj.io/webpods/podbase"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// recordObject renders a record for JSON responses. JSON content is
// embedded as-is instead of re-encoded as a string; binary content stays in
// its base64 transport form.
func recordObject(record podbase.Record) map[string]interface{} {
	obj := map[string]interface{}{
		"index":        record.Index,
		"name":         record.Name,
		"path":         record.Path,
		"content":      contentValue(record),
		"content_type": record.ContentType,
		"size":         record.Size,
		"content_hash": record.ContentHash,
		"hash":         record.Hash,
		"author":       record.UserID,
		"created_at":   podbase.FormatRecordTime(record.CreatedAt),
	}
	if record.PreviousHash != "" {
		obj["previous_hash"] = record.PreviousHash
	} else {
		obj["previous_hash"] = nil
	}
	if len(record.Headers) > 0 {
		obj["headers"] = record.Headers
	}
	return obj
}

func contentValue(record podbase.Record) interface{} {
	contentType := record.ContentType
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	if strings.TrimSpace(strings.ToLower(contentType)) == "application/json" &&
		json.Valid([]byte(record.Content)) {
		return json.RawMessage(record.Content)
	}
	return record.Content
}

func streamObject(stream podbase.Stream) map[string]interface{} {
	return map[string]interface{}{
		"name":       stream.Name,
		"path":       stream.Path,
		"access":     stream.Access,
		"creator":    stream.UserID,
		"has_schema": stream.HasSchema,
		"created_at": podbase.FormatRecordTime(stream.CreatedAt),
	}
}

func verifyObject(result podbase.VerifyStreamResult) map[string]interface{} {
	obj := map[string]interface{}{
		"valid":   result.Valid,
		"records": result.Records,
	}
	if !result.Valid {
		obj["first_break_index"] = result.FirstBreakIndex
	}
	return obj
}

// projection narrows record objects per the fields and maxContentSize query
// parameters. A negative maxContentSize means no bound.
type projection struct {
	fields         map[string]bool
	maxContentSize int64
}

func (p projection) apply(record podbase.Record) map[string]interface{} {
	obj := recordObject(record)
	if p.maxContentSize >= 0 && record.Size > p.maxContentSize {
		delete(obj, "content")
		obj["contentOmitted"] = true
	}
	if p.fields != nil {
		for key := range obj {
			if !p.fields[key] && key != "contentOmitted" {
				delete(obj, key)
			}
		}
	}
	return obj
}

func writePage(w http.ResponseWriter, page podbase.RecordPage, proj projection) {
	records := make([]map[string]interface{}, 0, len(page.Records))
	for _, record := range page.Records {
		records = append(records, proj.apply(record))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"total":   page.Total,
		"hasMore": page.HasMore,
	})
}

func setRecordHeaders(w http.ResponseWriter, record podbase.Record) {
	h := w.Header()
	for name, value := range record.Headers {
		h.Set(name, value)
	}
	h.Set("ETag", `"`+record.ContentHash+`"`)
	h.Set("X-Content-Hash", record.ContentHash)
	h.Set("X-Hash", record.Hash)
	if record.PreviousHash != "" {
		h.Set("X-Previous-Hash", record.PreviousHash)
	}
	h.Set("X-Author", record.UserID)
	h.Set("X-Timestamp", podbase.FormatRecordTime(record.CreatedAt))
}

// serveRecordContent writes a record's raw content: the decoded bytes for
// binary content types, a redirect for externally stored content.
func (server *Server) serveRecordContent(w http.ResponseWriter, r *http.Request, record podbase.Record) {
	if record.External() {
		server.serveExternalRecord(w, r, record)
		return
	}

	setRecordHeaders(w, record)
	contentType := record.ContentType
	if contentType == "" {
		contentType = "text/plain"
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(podbase.CanonicalBytes(record.Content, record.ContentType))
}

func (server *Server) serveExternalRecord(w http.ResponseWriter, r *http.Request, record podbase.Record) {
	if server.blobs == nil {
		server.log.Error("external record without a blob store",
			zap.String("path", record.Path),
			zap.String("locator", record.Storage))
		writeError(w, http.StatusInternalServerError, codeInternalError, "external content unavailable")
		return
	}
	url, err := server.blobs.URL(record.Storage)
	if err != nil {
		server.log.Error("external record locator failed",
			zap.String("path", record.Path),
			zap.String("locator", record.Storage),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternalError, "external content unavailable")
		return
	}

	setRecordHeaders(w, record)
	w.Header().Set("Location", url)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Header().Set("X-Record-Type", "file")
	w.WriteHeader(http.StatusFound)
}
