// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package access

import (
	"encoding/json"

	"storj.io/webpods/podbase"
)

// Grant is one permission record in a permission stream.
type Grant struct {
	UserID string `json:"userId"`
	Read   bool   `json:"read"`
	Write  bool   `json:"write"`
	Revoke bool   `json:"revoke,omitempty"`
}

// FoldGrants applies permission records in index order and returns the
// effective grant per user: the latest grant wins, a revoke erases every
// earlier grant for that user. Records that do not parse as grants, such as
// tombstones, are ignored.
func FoldGrants(records []podbase.Record) map[string]Grant {
	grants := make(map[string]Grant)
	for _, record := range records {
		var grant Grant
		if err := json.Unmarshal([]byte(record.Content), &grant); err != nil {
			continue
		}
		if grant.UserID == "" {
			continue
		}
		if grant.Revoke {
			delete(grants, grant.UserID)
			continue
		}
		grants[grant.UserID] = grant
	}
	return grants
}
