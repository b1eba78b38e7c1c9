// Package liveview keeps an in-memory mirror of one collection.
//
// A View subscribes once to a feed and replaces its whole mapping with every
// snapshot it receives. Readers never block writers and always observe one
// complete snapshot. Local writes are not applied to a View directly; they
// show up when the feed publishes the next snapshot.
package liveview

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/tbourn/vendor-ledger/internal/feed"
)

// ErrClosed is returned by WaitFor once the view has stopped.
var ErrClosed = errors.New("live view closed")

// Source is the subset of feed.Feed a View consumes.
type Source[T any] interface {
	Subscribe() *feed.Subscription[T]
}

type state[T any] struct {
	version uint64
	items   []T
	byID    map[string]int
}

// View is a read-only mirror of a collection. The zero value is not usable;
// build one with Watch.
type View[T any] struct {
	key   func(T) string
	cur   atomic.Pointer[state[T]]
	ready chan struct{}
	done  chan struct{}

	mu      sync.Mutex
	changed chan struct{}
}

// Watch subscribes to src and keeps the returned View current until ctx is
// done. The subscription is released whichever way the view stops.
func Watch[T any](ctx context.Context, src Source[T], key func(T) string) *View[T] {
	v := &View[T]{
		key:     key,
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
		changed: make(chan struct{}),
	}
	v.cur.Store(&state[T]{byID: map[string]int{}})

	sub := src.Subscribe()
	go func() {
		defer close(v.done)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-sub.C:
				if !ok {
					return
				}
				v.apply(snap)
			}
		}
	}()
	return v
}

func (v *View[T]) apply(snap feed.Snapshot[T]) {
	st := &state[T]{
		version: snap.Version,
		items:   snap.Items,
		byID:    make(map[string]int, len(snap.Items)),
	}
	for i, it := range snap.Items {
		st.byID[v.key(it)] = i
	}
	first := v.cur.Swap(st).version == 0

	v.mu.Lock()
	close(v.changed)
	v.changed = make(chan struct{})
	v.mu.Unlock()

	if first {
		close(v.ready)
	}
}

// Items returns a copy of the current documents in feed order.
func (v *View[T]) Items() []T {
	return slices.Clone(v.cur.Load().items)
}

// Get returns the document with the given id.
func (v *View[T]) Get(id string) (T, bool) {
	st := v.cur.Load()
	if i, ok := st.byID[id]; ok {
		return st.items[i], true
	}
	var zero T
	return zero, false
}

// Has reports whether a document with the given id is in the view.
func (v *View[T]) Has(id string) bool {
	_, ok := v.cur.Load().byID[id]
	return ok
}

// Len returns the number of documents in the view.
func (v *View[T]) Len() int { return len(v.cur.Load().items) }

// Version is the feed version of the current snapshot; 0 before the first.
func (v *View[T]) Version() uint64 { return v.cur.Load().version }

// Ready is closed once the first snapshot has been applied.
func (v *View[T]) Ready() <-chan struct{} { return v.ready }

// Done is closed when the view stops receiving snapshots.
func (v *View[T]) Done() <-chan struct{} { return v.done }

// Changed returns a channel closed by the next snapshot.
func (v *View[T]) Changed() <-chan struct{} {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.changed
}

// WaitFor blocks until pred holds for the current items, ctx is done, or the
// view stops.
func (v *View[T]) WaitFor(ctx context.Context, pred func([]T) bool) error {
	for {
		ch := v.Changed()
		if pred(v.cur.Load().items) {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		case <-v.done:
			return ErrClosed
		}
	}
}
