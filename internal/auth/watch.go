package auth

import (
	"context"
	"sync"

	"github.com/roach88/eventroom/internal/backend"
	"github.com/roach88/eventroom/internal/event"
)

// WatchSession streams the current session followed by every change.
// Changes a slow watcher has not received are replaced by the latest one.
func (p *Provider) WatchSession(ctx context.Context) (backend.SessionStream, error) {
	s := &sessionStream{
		out:  make(chan *event.Session, 1),
		done: make(chan struct{}),
	}

	p.mu.Lock()
	s.out <- p.current
	p.watchers[s] = struct{}{}
	p.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		p.mu.Lock()
		delete(p.watchers, s)
		close(s.out)
		p.mu.Unlock()
	}()
	return s, nil
}

func (p *Provider) publish(s *event.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = s
	for w := range p.watchers {
		w.offer(s)
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

// offer delivers v, dropping an undelivered older value. Called with the
// provider lock held, which also guards against the channel closing.
func (s *sessionStream) offer(v *event.Session) {
	select {
	case s.out <- v:
		return
	default:
	}
	select {
	case <-s.out:
	default:
	}
	select {
	case s.out <- v:
	default:
	}
}
