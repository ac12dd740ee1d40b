// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package podbase

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/errs"
)

var (
	// Error is the default error for podbase.
	Error = errs.Class("podbase")
	// ErrInvalidRequest is used to indicate invalid requests.
	ErrInvalidRequest = errs.Class("invalid request")
	// ErrPodNotFound is used to indicate that the pod does not exist.
	ErrPodNotFound = errs.Class("pod not found")
	// ErrStreamNotFound is used to indicate that the stream does not exist.
	ErrStreamNotFound = errs.Class("stream not found")
	// ErrRecordNotFound is used to indicate that the record does not exist.
	ErrRecordNotFound = errs.Class("record not found")
	// ErrRecordDeleted is used to indicate that a record exists but has a
	// later tombstone.
	ErrRecordDeleted = errs.Class("record deleted")
	// ErrNameConflict is used to indicate that a stream would take the name
	// of a live record under the same parent.
	ErrNameConflict = errs.Class("name conflict")
	// ErrNameExists is used to indicate that a concurrent writer already
	// inserted the row a unique index protects.
	ErrNameExists = errs.Class("name exists")
	// ErrInvalidName is used to indicate that a record or stream name is
	// malformed.
	ErrInvalidName = errs.Class("invalid name")
	// ErrInvalidPodName is used to indicate that a pod name is malformed.
	ErrInvalidPodName = errs.Class("invalid pod name")
	// ErrInvalidIndex is used to indicate an out of range record index.
	ErrInvalidIndex = errs.Class("invalid index")
	// ErrInvalidRange is used to indicate a malformed index range.
	ErrInvalidRange = errs.Class("invalid range")
)

// Access modes for streams. A mode that is neither AccessPublic nor
// AccessPrivate is a pod-relative path to a permission stream.
const (
	AccessPublic  = "public"
	AccessPrivate = "private"
)

// SystemStreamPrefix marks stream names reserved for pod configuration.
const SystemStreamPrefix = "."

// Well-known system streams and the meta records they hold. The meta values
// live as named records inside the config stream: writing `/.config/owner`
// appends a new version of the record "owner" to the stream ".config", per
// the usual last-segment-is-the-record-name rule.
const (
	ConfigStreamName      = ".config"
	PermissionsStreamName = ".permissions"
	SchemaStreamName      = ".schema"

	OwnerRecordName   = "owner"
	RoutingRecordName = "routing"
	DomainsRecordName = "domains"

	OwnerRecordPath   = ConfigStreamName + "/" + OwnerRecordName
	RoutingRecordPath = ConfigStreamName + "/" + RoutingRecordName
	DomainsRecordPath = ConfigStreamName + "/" + DomainsRecordName
)

// MaxNameLength is the maximum length of a stream segment or record name.
const MaxNameLength = 255

// MaxPodNameLength is the maximum length of a pod name (a DNS label).
const MaxPodNameLength = 63

var (
	podNameRx = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
	nameRx    = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

// PodName is the subdomain label identifying a pod.
type PodName string

// Verify checks that the pod name is a valid DNS label per the pod naming
// rules: lowercase alphanumeric plus hyphen, 1-63 chars, starting with a
// letter.
func (p PodName) Verify() error {
	switch {
	case len(p) == 0:
		return ErrInvalidPodName.New("pod name missing")
	case len(p) > MaxPodNameLength:
		return ErrInvalidPodName.New("pod name %q exceeds %d characters", p, MaxPodNameLength)
	case !podNameRx.MatchString(string(p)):
		return ErrInvalidPodName.New("pod name %q must be lowercase alphanumeric starting with a letter", p)
	}
	return nil
}

// ValidateStreamName checks a single stream path segment. Unlike record
// names, stream segments may begin with a period; those are system streams.
func ValidateStreamName(name string) error {
	switch {
	case name == "":
		return ErrInvalidName.New("stream name missing")
	case len(name) > MaxNameLength:
		return ErrInvalidName.New("stream name exceeds %d characters", MaxNameLength)
	case name == "." || name == "..":
		return ErrInvalidName.New("stream name %q is reserved", name)
	case !nameRx.MatchString(name):
		return ErrInvalidName.New("stream name %q contains invalid characters", name)
	}
	return nil
}

// ValidateRecordName checks a record name: non-empty, at most 255 chars,
// limited to [A-Za-z0-9._-], and not starting or ending with a period.
func ValidateRecordName(name string) error {
	switch {
	case name == "":
		return ErrInvalidName.New("record name missing")
	case len(name) > MaxNameLength:
		return ErrInvalidName.New("record name exceeds %d characters", MaxNameLength)
	case !nameRx.MatchString(name):
		return ErrInvalidName.New("record name %q contains invalid characters", name)
	case strings.HasPrefix(name, "."), strings.HasSuffix(name, "."):
		return ErrInvalidName.New("record name %q cannot start or end with a period", name)
	}
	return nil
}

// ValidateAccess checks an access permission value: "public", "private" or
// a pod-relative permission stream path beginning with '/'.
func ValidateAccess(access string) error {
	switch {
	case access == AccessPublic, access == AccessPrivate:
		return nil
	case strings.HasPrefix(access, "/"):
		if _, err := SplitPath(strings.TrimPrefix(access, "/")); err != nil {
			return ErrInvalidRequest.New("access permission %q: %v", access, err)
		}
		return nil
	}
	return ErrInvalidRequest.New("access permission %q must be public, private or a /path", access)
}

// SplitPath splits a slash-joined stream path into validated segments.
// Leading and trailing slashes are ignored; empty segments are rejected.
func SplitPath(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, ErrInvalidName.New("stream path missing")
	}
	segments := strings.Split(trimmed, "/")
	for _, segment := range segments {
		if err := ValidateStreamName(segment); err != nil {
			return nil, err
		}
	}
	return segments, nil
}

// JoinPath joins path segments into the materialized stream path form.
func JoinPath(segments ...string) string {
	return strings.Join(segments, "/")
}

// IsSystemPath reports whether any segment of an already validated stream
// path begins with a period.
func IsSystemPath(path string) bool {
	for _, segment := range strings.Split(path, "/") {
		if strings.HasPrefix(segment, SystemStreamPrefix) {
			return true
		}
	}
	return false
}

// Pod is a tenant root, addressed by subdomain.
type Pod struct {
	Name      PodName
	Metadata  string
	CreatedAt time.Time
}

// Stream is a node in a pod's stream tree.
type Stream struct {
	ID       int64
	PodName  PodName
	Name     string
	ParentID *int64
	Path     string

	UserID    string
	Access    string
	HasSchema bool
	Metadata  string
	CreatedAt time.Time
}

// IsSystem reports whether the stream is a system stream, either by its own
// name or by an ancestor's.
func (s *Stream) IsSystem() bool { return IsSystemPath(s.Path) }

// Record is one immutable entry in a stream's hash chain.
type Record struct {
	ID       int64
	StreamID int64
	Index    int64

	Name string
	Path string

	Content     string
	ContentType string
	Size        int64
	Headers     map[string]string

	ContentHash  string
	Hash         string
	PreviousHash string

	UserID    string
	Storage   string
	CreatedAt time.Time
}

// External reports whether the record's content lives in external storage.
func (r *Record) External() bool { return r.Storage != "" }

const tombstoneInfix = ".deleted."

// TombstoneName derives the reserved name for a deletion marker of a record.
// The suffix is a unix-millisecond timestamp so the name stays within the
// record name charset while remaining sortable.
func TombstoneName(name string, at time.Time) string {
	return name + tombstoneInfix + strconv.FormatInt(at.UnixMilli(), 10)
}

// ParseTombstoneName extracts the original record name from a tombstone
// name. Returns false when the name is not a tombstone.
func ParseTombstoneName(name string) (original string, ok bool) {
	i := strings.LastIndex(name, tombstoneInfix)
	if i <= 0 {
		return "", false
	}
	suffix := name[i+len(tombstoneInfix):]
	if suffix == "" {
		return "", false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return name[:i], true
}

// DeletionMarker is the JSON body of a tombstone record.
type DeletionMarker struct {
	Deleted      bool   `json:"deleted"`
	Purged       bool   `json:"purged,omitempty"`
	OriginalName string `json:"originalName"`
	DeletedAt    string `json:"deletedAt"`
	DeletedBy    string `json:"deletedBy"`
	PurgedAt     string `json:"purgedAt,omitempty"`
	PurgedBy     string `json:"purgedBy,omitempty"`
}

// escapeLike escapes LIKE wildcards in a literal so record names containing
// underscores match exactly.
func escapeLike(literal string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(literal)
}
