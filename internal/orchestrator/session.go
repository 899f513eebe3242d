package orchestrator

import (
	"context"
	"sync"

	"github.com/roach88/eventroom/internal/backend"
	"github.com/roach88/eventroom/internal/event"
)

// SessionSubscription follows the viewer's authentication state.
type SessionSubscription struct {
	source backend.SessionSource

	life      lifecycle
	out       chan *event.Session
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// WatchSession creates an idle subscription to sign-in and sign-out.
func (o *Orchestrator) WatchSession() *SessionSubscription {
	return &SessionSubscription{
		source: o.sessions,
		out:    make(chan *event.Session, 1),
	}
}

// Start subscribes. The first delivery is the current viewer.
func (s *SessionSubscription) Start(ctx context.Context) error {
	return s.life.start("watch session", func() (func(), error) {
		ctx, cancel := context.WithCancel(ctx)
		stream, err := s.source.WatchSession(ctx)
		if err != nil {
			cancel()
			s.closeOut()
			return nil, event.FetchFailed("watch session", err)
		}
		s.wg.Add(1)
		go s.pump(stream)
		return func() {
			stream.Close()
			cancel()
			s.wg.Wait()
		}, nil
	})
}

// Sessions returns the delivery channel. A nil value means signed out.
func (s *SessionSubscription) Sessions() <-chan *event.Session {
	return s.out
}

// State returns the lifecycle state.
func (s *SessionSubscription) State() SubState {
	return s.life.current()
}

// Close releases the subscription. Safe to call in any state.
func (s *SessionSubscription) Close() {
	s.life.stop()
	s.closeOut()
}

func (s *SessionSubscription) pump(stream backend.SessionStream) {
	defer s.wg.Done()
	for v := range stream.Sessions() {
		select {
		case s.out <- v:
			continue
		default:
		}
		// Replace the undelivered state with the newer one.
		select {
		case <-s.out:
		default:
		}
		s.out <- v
	}
	s.life.ended()
	s.closeOut()
}

func (s *SessionSubscription) closeOut() {
	s.closeOnce.Do(func() { close(s.out) })
}
