package auth

import (
	"context"
	"sync"

	"github.com/tbourn/vendor-ledger/internal/domain"
)

// Session is the auth state of one client connection. Build one per client
// with NewSession; Init subscribes to the provider exactly once and later
// calls return the first call's result.
type Session struct {
	provider Provider
	token    string

	once    sync.Once
	initErr error

	mu   sync.RWMutex
	user *domain.User
	done chan struct{}
}

// NewSession returns an uninitialized session for token.
func NewSession(p Provider, token string) *Session {
	return &Session{provider: p, token: token, done: make(chan struct{})}
}

// Init subscribes to the provider's change stream and records the current
// user. The subscription lives until ctx is done or the user signs out.
func (s *Session) Init(ctx context.Context) error {
	s.once.Do(func() {
		ch, err := s.provider.Subscribe(ctx, s.token)
		if err != nil {
			s.initErr = err
			close(s.done)
			return
		}
		select {
		case u, ok := <-ch:
			if !ok || u == nil {
				close(s.done)
				return
			}
			s.set(u)
		case <-ctx.Done():
			s.initErr = ctx.Err()
			close(s.done)
			return
		}
		go s.follow(ch)
	})
	return s.initErr
}

func (s *Session) follow(ch <-chan *domain.User) {
	defer close(s.done)
	for u := range ch {
		s.set(u)
		if u == nil {
			return
		}
	}
	s.set(nil)
}

func (s *Session) set(u *domain.User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

// Current returns the signed-in user, or nil.
func (s *Session) Current() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Done is closed when the session ends for any reason.
func (s *Session) Done() <-chan struct{} { return s.done }
