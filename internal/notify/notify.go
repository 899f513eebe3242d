// Package notify carries change signals between document writers and live
// queries. A signal names a topic (a collection path) and carries no data;
// watchers re-read the collection after waking.
package notify

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Notify after Close.
var ErrClosed = errors.New("notifier closed")

// Notifier fans change signals out to watchers.
type Notifier interface {
	// Notify wakes every watcher of topic.
	Notify(ctx context.Context, topic string) error
	// Watch returns a channel that receives a value after each change to
	// topic. Signals coalesce: a watcher that has not drained its channel
	// receives one value for any number of changes. The channel is closed
	// by cancel or Close.
	Watch(topic string) (<-chan struct{}, func())
	Close() error
}

type watcher struct {
	signal chan struct{}
	once   sync.Once
}

func (w *watcher) wake() {
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *watcher) stop() {
	w.once.Do(func() { close(w.signal) })
}

// Local is an in-process Notifier.
//
// Safe for concurrent use.
type Local struct {
	mu       sync.Mutex
	closed   bool
	watchers map[string]map[*watcher]struct{}
}

// NewLocal creates an in-process notifier.
func NewLocal() *Local {
	return &Local{watchers: make(map[string]map[*watcher]struct{})}
}

// Notify implements Notifier. It never blocks.
func (l *Local) Notify(_ context.Context, topic string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	for w := range l.watchers[topic] {
		w.wake()
	}
	return nil
}

// Watch implements Notifier. Watching a closed notifier returns an already
// closed channel.
func (l *Local) Watch(topic string) (<-chan struct{}, func()) {
	w := &watcher{signal: make(chan struct{}, 1)}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		w.stop()
		return w.signal, func() {}
	}
	if l.watchers[topic] == nil {
		l.watchers[topic] = make(map[*watcher]struct{})
	}
	l.watchers[topic][w] = struct{}{}

	return w.signal, func() {
		l.mu.Lock()
		delete(l.watchers[topic], w)
		if len(l.watchers[topic]) == 0 {
			delete(l.watchers, topic)
		}
		l.mu.Unlock()
		w.stop()
	}
}

// Watching returns the number of open watchers of topic.
func (l *Local) Watching(topic string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.watchers[topic])
}

// Close implements Notifier and closes every watcher channel.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	for topic, ws := range l.watchers {
		for w := range ws {
			w.stop()
		}
		delete(l.watchers, topic)
	}
	return nil
}
