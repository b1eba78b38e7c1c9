package feed

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/vendor-ledger/internal/domain"
)

// Loader reads the complete current document set of one collection.
type Loader[T any] func(ctx context.Context) ([]T, error)

// Snapshot is the full document set of a collection at one point in time.
// Items is shared between subscribers and must not be modified.
type Snapshot[T any] struct {
	Collection domain.Collection
	Version    uint64
	Items      []T
	LoadedAt   time.Time
}

// Feed publishes full snapshots of one collection. Run drives it; any number
// of subscribers may come and go while it runs.
type Feed[T any] struct {
	coll     domain.Collection
	load     Loader[T]
	notifier Notifier
	log      zerolog.Logger

	mu      sync.Mutex
	subs    map[uint64]chan Snapshot[T]
	nextID  uint64
	last    *Snapshot[T]
	version uint64
	closed  bool
}

// New builds a feed for collection c.
func New[T any](c domain.Collection, n Notifier, load Loader[T], log zerolog.Logger) *Feed[T] {
	return &Feed[T]{
		coll:     c,
		load:     load,
		notifier: n,
		log:      log.With().Str("collection", string(c)).Logger(),
		subs:     make(map[uint64]chan Snapshot[T]),
	}
}

// Collection returns the collection this feed publishes.
func (f *Feed[T]) Collection() domain.Collection { return f.coll }

// Run publishes an initial snapshot and then a fresh one after every change
// signal, until ctx is done. A failed reload is logged and the previous
// snapshot stays current. All subscriptions are closed when Run returns.
func (f *Feed[T]) Run(ctx context.Context) error {
	changes, err := f.notifier.Changes(ctx, f.coll)
	if err != nil {
		f.shutdown()
		return err
	}
	defer f.shutdown()

	f.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			f.refresh(ctx)
		}
	}
}

// Current returns the latest snapshot, if one has been loaded.
func (f *Feed[T]) Current() (Snapshot[T], bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil {
		return Snapshot[T]{}, false
	}
	return *f.last, true
}

func (f *Feed[T]) refresh(ctx context.Context) {
	items, err := f.load(ctx)
	if err != nil {
		if ctx.Err() == nil {
			f.log.Warn().Err(err).Msg("feed reload failed; keeping last snapshot")
		}
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.version++
	snap := Snapshot[T]{Collection: f.coll, Version: f.version, Items: items, LoadedAt: time.Now().UTC()}
	f.last = &snap
	for _, ch := range f.subs {
		offer(ch, snap)
	}
	f.log.Debug().Uint64("version", snap.Version).Int("items", len(items)).Msg("snapshot published")
}

// offer delivers snap, replacing a snapshot the subscriber has not consumed
// yet. Only the producer sends, and it holds f.mu, so the retry cannot race.
func offer[T any](ch chan Snapshot[T], snap Snapshot[T]) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

func (f *Feed[T]) shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}

// Subscription receives snapshots on C until Close is called or the feed
// stops, at which point C is closed.
type Subscription[T any] struct {
	C     <-chan Snapshot[T]
	close func()
	once  sync.Once
}

// Close stops delivery. It is safe to call more than once.
func (s *Subscription[T]) Close() {
	s.once.Do(s.close)
}

// Subscribe registers a new subscriber. If a snapshot is already loaded it is
// delivered immediately.
func (f *Feed[T]) Subscribe() *Subscription[T] {
	ch := make(chan Snapshot[T], 1)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(ch)
		return &Subscription[T]{C: ch, close: func() {}}
	}
	f.nextID++
	id := f.nextID
	f.subs[id] = ch
	if f.last != nil {
		ch <- *f.last
	}
	return &Subscription[T]{C: ch, close: func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if c, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(c)
		}
	}}
}

// Subscribers reports the number of active subscriptions.
func (f *Feed[T]) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
