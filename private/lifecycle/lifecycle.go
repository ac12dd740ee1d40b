// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package lifecycle allows controlling group of items.
package lifecycle

import (
	"context"
	"runtime"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var mon = monkit.Package()

// Group implements a collection of items that have a
// concurrent start and are closed in reverse order.
type Group struct {
	log   *zap.Logger
	items []Item

	shutdownStack ShutdownStack
}

// ShutdownStack enables 'on slow shutdown' goroutine dump.
type ShutdownStack struct {
	Enabled bool
	Timeout time.Duration
}

// Item is the lifecycle item that group runs and closes.
type Item struct {
	Name  string
	Run   func(ctx context.Context) error
	Close func() error
}

// NewGroup creates a new group.
func NewGroup(log *zap.Logger) *Group {
	return &Group{
		log: log,
		shutdownStack: ShutdownStack{
			Enabled: true,
			Timeout: 15 * time.Second,
		},
	}
}

// Add adds item to the group.
func (group *Group) Add(item Item) {
	group.items = append(group.items, item)
}

// Run starts all items concurrently under group g.
func (group *Group) Run(ctx context.Context, g *errgroup.Group) {
	defer mon.Task()(&ctx)(nil)

	var started []string
	for _, item := range group.items {
		item := item
		started = append(started, item.Name)
		if item.Run == nil {
			continue
		}

		shutdownDone := make(chan struct{})
		g.Go(func() error {
			defer close(shutdownDone)

			var err error
			defer mon.TaskNamed(item.Name)(&ctx)(&err)

			err = item.Run(ctx)
			if err != nil {
				group.log.Error("unexpected shutdown of a runner",
					zap.String("name", item.Name),
					zap.Error(err))
			}
			return err
		})

		if group.shutdownStack.Enabled {
			g.Go(func() error {
				select {
				case <-ctx.Done():
				case <-shutdownDone:
					return nil
				}

				t := time.NewTimer(group.shutdownStack.Timeout)
				defer t.Stop()

				select {
				case <-t.C:
					group.logStackTrace(item.Name)
				case <-shutdownDone:
				}
				return nil
			})
		}
	}

	group.log.Debug("started", zap.Strings("items", started))
}

func (group *Group) logStackTrace(name string) {
	buf := make([]byte, 1024*1024)
	n := runtime.Stack(buf, true)

	group.log.Warn("slow shutdown",
		zap.String("name", name),
		zap.String("stack", string(condenseStack(buf[:n]))))
}

// Close closes all items in reverse order.
func (group *Group) Close() error {
	var errlist errs.Group

	for i := len(group.items) - 1; i >= 0; i-- {
		item := group.items[i]
		if item.Close == nil {
			continue
		}
		err := item.Close()
		if err != nil {
			group.log.Error("failed to close",
				zap.String("name", item.Name),
				zap.Error(err))
		}
		errlist.Add(err)
	}

	return errlist.Err()
}
