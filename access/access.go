// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package access decides who may read and write streams. Decisions combine
// the stream's access mode, the pod owner resolved from the owner config
// stream, and grant records folded from permission streams.
package access

import (
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"

	"storj.io/webpods/podbase"
)

var (
	// Error is the default error class for the package.
	Error = errs.Class("access")

	mon = monkit.Package()
)

// User identifies an authenticated caller. A nil *User is anonymous.
type User struct {
	ID    string
	Name  string
	Email string

	// Pods restricts the user to the named pods. Empty means unrestricted.
	Pods []string
}

// forPod returns the user as seen by the given pod: outside a scoped
// token's pods the caller is anonymous.
func (user *User) forPod(pod podbase.PodName) *User {
	if user == nil || len(user.Pods) == 0 {
		return user
	}
	for _, name := range user.Pods {
		if name == string(pod) {
			return user
		}
	}
	return nil
}

// InScope reports whether the token may act inside the pod. Unrestricted
// tokens are in scope everywhere; anonymous callers nowhere.
func (user *User) InScope(pod podbase.PodName) bool {
	return user.forPod(pod) != nil
}
