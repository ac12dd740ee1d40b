// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package podbase

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"time"
)

// Binary content types whose payload travels base64-encoded. Hashing, size
// accounting and external storage all operate on the decoded bytes.
var binaryContentTypes = map[string]bool{
	"application/pdf":          true,
	"application/zip":          true,
	"application/octet-stream": true,
}

var binaryContentPrefixes = []string{"image/", "video/", "audio/"}

// IsBinaryContentType reports whether content of the given type is stored
// base64-encoded.
func IsBinaryContentType(contentType string) bool {
	mediatype := contentType
	if i := strings.IndexByte(mediatype, ';'); i >= 0 {
		mediatype = mediatype[:i]
	}
	mediatype = strings.ToLower(strings.TrimSpace(mediatype))

	if binaryContentTypes[mediatype] {
		return true
	}
	for _, prefix := range binaryContentPrefixes {
		if strings.HasPrefix(mediatype, prefix) {
			return true
		}
	}
	return false
}

// CanonicalBytes returns the bytes a record's content hash covers: the
// base64-decoded payload for binary content types, the raw bytes otherwise.
// Content that claims a binary type but does not decode is hashed as-is.
func CanonicalBytes(content, contentType string) []byte {
	if IsBinaryContentType(contentType) {
		if decoded, err := base64.StdEncoding.DecodeString(content); err == nil {
			return decoded
		}
	}
	return []byte(content)
}

// ContentHash computes the lowercase hex SHA-256 digest of a record's
// canonical content bytes.
func ContentHash(content, contentType string) string {
	sum := sha256.Sum256(CanonicalBytes(content, contentType))
	return hex.EncodeToString(sum[:])
}

// RecordHash computes the chain hash of a record from its predecessor's
// hash, its own content hash, author and creation time. All inputs are
// concatenated as UTF-8 strings; previousHash is empty for the first record
// in a stream.
func RecordHash(previousHash, contentHash, userID string, createdAt time.Time) string {
	h := sha256.New()
	h.Write([]byte(previousHash))
	h.Write([]byte(contentHash))
	h.Write([]byte(userID))
	h.Write([]byte(FormatRecordTime(createdAt)))
	return hex.EncodeToString(h.Sum(nil))
}

// FormatRecordTime renders a record timestamp in the canonical form used
// for hashing and API responses. Times are truncated to microseconds so the
// rendered form round-trips through TIMESTAMPTZ columns byte-identically.
func FormatRecordTime(t time.Time) string {
	return t.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano)
}

// TruncateRecordTime normalizes a timestamp to the resolution FormatRecordTime
// renders, so hashes computed before insert match hashes recomputed from the
// stored row.
func TruncateRecordTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
