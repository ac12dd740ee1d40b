// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package blobstore

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

var _ Store = (*Local)(nil)

// Local stores blobs as files under a base directory, laid out as
// <base>/<pod>/<streamPath>/<contentHash><ext>. Files are written to a
// temporary name and renamed into place, so readers never observe partial
// content.
type Local struct {
	log     *zap.Logger
	base    string
	baseURL string
}

// NewLocal constructs a Local store rooted at config.Path, creating the
// directory when missing.
func NewLocal(log *zap.Logger, config Config) (*Local, error) {
	if config.Path == "" {
		return nil, Error.New("storage path missing")
	}
	if err := os.MkdirAll(config.Path, 0o755); err != nil {
		return nil, Error.Wrap(err)
	}
	return &Local{
		log:     log,
		base:    config.Path,
		baseURL: strings.TrimSuffix(config.BaseURL, "/"),
	}, nil
}

// Put stores the content under its hash-derived locator.
func (store *Local) Put(ctx context.Context, ref Ref, data []byte) (_ string, err error) {
	defer mon.Task()(&ctx)(&err)

	locator := path.Join(ref.Pod, ref.StreamPath, ref.ContentHash+ref.Ext)
	target, err := store.locatorPath(locator)
	if err != nil {
		return "", err
	}

	// Content is addressed by hash: an existing file already holds these
	// exact bytes.
	if _, err := os.Stat(target); err == nil {
		return locator, nil
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", Error.Wrap(err)
	}

	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return "", Error.Wrap(err)
	}
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if err := errs.Combine(writeErr, closeErr); err != nil {
		return "", Error.Wrap(errs.Combine(err, os.Remove(tmp.Name())))
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", Error.Wrap(errs.Combine(err, os.Remove(tmp.Name())))
	}

	return locator, nil
}

// URL returns the public URL for the locator.
func (store *Local) URL(locator string) (string, error) {
	if store.baseURL == "" {
		return "", Error.New("no base url configured")
	}
	if _, err := store.locatorPath(locator); err != nil {
		return "", err
	}
	return store.baseURL + "/" + locator, nil
}

// Delete removes the content behind the locator.
func (store *Local) Delete(ctx context.Context, locator string) (err error) {
	defer mon.Task()(&ctx)(&err)

	target, err := store.locatorPath(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return Error.Wrap(err)
	}
	return nil
}

// DeleteAll removes everything stored under the stream path, subtree
// included. It backs stream deletion, which is best effort for blobs.
func (store *Local) DeleteAll(ctx context.Context, pod, streamPath string) (err error) {
	defer mon.Task()(&ctx)(&err)

	target, err := store.locatorPath(path.Join(pod, streamPath))
	if err != nil {
		return err
	}
	return Error.Wrap(os.RemoveAll(target))
}

// locatorPath maps a locator to its path under the base directory,
// rejecting anything that would escape it.
func (store *Local) locatorPath(locator string) (string, error) {
	if locator == "" || path.Clean("/"+locator) != "/"+locator {
		return "", Error.New("malformed locator %q", locator)
	}
	return filepath.Join(store.base, filepath.FromSlash(locator)), nil
}
