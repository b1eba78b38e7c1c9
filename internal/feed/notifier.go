// Package feed turns writes into full-collection snapshots for live views.
//
// Writers call Notifier.Notify after every committed mutation. Each Feed
// listens for its own collection, reloads the complete document set, and
// pushes it to its subscribers. Two notifiers are provided: LocalNotifier for
// a single process, and RedisNotifier which fans signals out over Redis
// pub/sub so that every server instance observes writes made by the others.
package feed

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/tbourn/vendor-ledger/internal/domain"
)

// Notifier carries "collection changed" signals from writers to feeds.
//
// A signal carries no payload: receivers reload the collection, so pending
// signals for the same collection may be coalesced into one.
type Notifier interface {
	// Notify announces that c was modified.
	Notify(ctx context.Context, c domain.Collection) error
	// Changes returns a channel that receives a value after modifications to
	// c. The channel is closed once ctx is done.
	Changes(ctx context.Context, c domain.Collection) (<-chan struct{}, error)
}

// LocalNotifier is an in-process Notifier. It is safe for concurrent use.
type LocalNotifier struct {
	mu   sync.Mutex
	subs map[domain.Collection]map[chan struct{}]struct{}
}

// NewLocalNotifier returns an empty in-process notifier.
func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{subs: make(map[domain.Collection]map[chan struct{}]struct{})}
}

// Notify never blocks; a listener that already has a pending signal for c is
// left as is.
func (n *LocalNotifier) Notify(_ context.Context, c domain.Collection) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs[c] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// Changes registers a listener for c until ctx is done.
func (n *LocalNotifier) Changes(ctx context.Context, c domain.Collection) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	set, ok := n.subs[c]
	if !ok {
		set = make(map[chan struct{}]struct{})
		n.subs[c] = set
	}
	set[ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.subs[c], ch)
		close(ch)
		n.mu.Unlock()
	}()
	return ch, nil
}

// listeners reports how many listeners are registered for c.
func (n *LocalNotifier) listeners(c domain.Collection) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs[c])
}

// RedisNotifier publishes change signals on a Redis channel. The payload is
// the collection name.
type RedisNotifier struct {
	rdb     redis.UniversalClient
	channel string
}

// NewRedisNotifier returns a notifier publishing on channel.
func NewRedisNotifier(rdb redis.UniversalClient, channel string) *RedisNotifier {
	if channel == "" {
		channel = "vendor-ledger:changes"
	}
	return &RedisNotifier{rdb: rdb, channel: channel}
}

// Notify publishes c on the configured channel.
func (n *RedisNotifier) Notify(ctx context.Context, c domain.Collection) error {
	return n.rdb.Publish(ctx, n.channel, string(c)).Err()
}

// Changes subscribes to the configured channel and forwards messages naming c.
// It returns once the subscription is confirmed by the server.
func (n *RedisNotifier) Changes(ctx context.Context, c domain.Collection) (<-chan struct{}, error) {
	ps := n.rdb.Subscribe(ctx, n.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				if m.Payload != string(c) {
					continue
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}
