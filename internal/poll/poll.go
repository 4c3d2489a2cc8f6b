// Package poll periodically pulls snapshots of open reviewable items from
// the remote source and reconciles the working set.
package poll

import (
	"context"
	"sync"
	"time"

	"github.com/reva-dev/reva/internal/items"
	"github.com/reva-dev/reva/internal/log"
	"github.com/reva-dev/reva/internal/model"
)

// Source fetches the currently-open items and the subset needing the
// reviewer's attention. Implemented by the hosting-platform client.
type Source interface {
	FetchOpenItems(ctx context.Context) ([]model.Item, map[string]bool, error)
}

// Driver runs the poll loop on a fixed interval.
type Driver struct {
	source Source
	store  *items.Store

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewDriver creates a driver feeding store from source.
func NewDriver(source Source, store *items.Store) *Driver {
	return &Driver{source: source, store: store}
}

// PollNow fetches one snapshot and syncs it, returning the delta.
func (d *Driver) PollNow(ctx context.Context) (items.Delta, error) {
	snapshot, attention, err := d.source.FetchOpenItems(ctx)
	if err != nil {
		return items.Delta{}, err
	}

	delta := d.store.Sync(snapshot, attention)
	log.Debug("poll complete",
		"items", len(snapshot),
		"added", len(delta.Added),
		"removed", len(delta.Removed))
	return delta, nil
}

// Start launches the poll loop. onNew, if non-nil, is invoked with the
// states of newly observed items after each poll that added any. Polling
// errors are logged and the loop keeps going; the loop must stay available
// regardless of individual fetch failures.
func (d *Driver) Start(interval time.Duration, onNew func([]model.ItemState)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return // already polling
	}
	d.stop = make(chan struct{})
	d.done = make(chan struct{})

	go d.loop(interval, onNew, d.stop, d.done)
}

// Stop halts the poll loop and waits for it to exit. Safe to call when not
// polling.
func (d *Driver) Stop() {
	d.mu.Lock()
	stop, done := d.stop, d.done
	d.stop, d.done = nil, nil
	d.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (d *Driver) loop(interval time.Duration, onNew func([]model.ItemState), stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			delta, err := d.PollNow(ctx)
			cancel()
			if err != nil {
				log.Warn("poll failed", "error", err)
				continue
			}
			if onNew == nil || len(delta.Added) == 0 {
				continue
			}
			var fresh []model.ItemState
			for _, id := range delta.Added {
				if st, ok := d.store.Get(id); ok {
					fresh = append(fresh, st)
				}
			}
			if len(fresh) > 0 {
				onNew(fresh)
			}
		}
	}
}
