package testutil

import (
	"context"
	"sync"

	"github.com/roach88/eventroom/internal/backend"
	"github.com/roach88/eventroom/internal/event"
)

// Sessions is a backend.SessionSource whose state tests change directly.
type Sessions struct {
	mu       sync.Mutex
	current  *event.Session
	watchers map[*sessionStream]struct{}
	watchErr error
}

// NewSessions creates a source with the given initial viewer (nil for
// anonymous).
func NewSessions(initial *event.Session) *Sessions {
	return &Sessions{current: initial, watchers: make(map[*sessionStream]struct{})}
}

// SignIn switches to s and notifies watchers.
func (src *Sessions) SignIn(s *event.Session) {
	src.set(s)
}

// SignOut switches to anonymous and notifies watchers.
func (src *Sessions) SignOut() {
	src.set(nil)
}

// FailWatch makes WatchSession fail with err.
func (src *Sessions) FailWatch(err error) {
	src.mu.Lock()
	defer src.mu.Unlock()
	src.watchErr = err
}

// Watchers returns the number of open streams.
func (src *Sessions) Watchers() int {
	src.mu.Lock()
	defer src.mu.Unlock()
	return len(src.watchers)
}

// Current implements backend.SessionSource.
func (src *Sessions) Current() *event.Session {
	src.mu.Lock()
	defer src.mu.Unlock()
	return src.current
}

// WatchSession implements backend.SessionSource.
func (src *Sessions) WatchSession(ctx context.Context) (backend.SessionStream, error) {
	src.mu.Lock()
	if src.watchErr != nil {
		err := src.watchErr
		src.mu.Unlock()
		return nil, err
	}
	s := &sessionStream{out: make(chan *event.Session, 16), done: make(chan struct{})}
	s.out <- src.current
	src.watchers[s] = struct{}{}
	src.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		src.mu.Lock()
		delete(src.watchers, s)
		close(s.out)
		src.mu.Unlock()
	}()
	return s, nil
}

func (src *Sessions) set(s *event.Session) {
	src.mu.Lock()
	defer src.mu.Unlock()
	src.current = s
	for w := range src.watchers {
		select {
		case w.out <- s:
		default:
		}
	}
}

type sessionStream struct {
	out       chan *event.Session
	done      chan struct{}
	closeOnce sync.Once
}

func (s *sessionStream) Sessions() <-chan *event.Session { return s.out }

func (s *sessionStream) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}
