package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/eventroom/internal/backend"
)

// Subscribe starts a live query. The first snapshot is the current result;
// each later one follows a change signal on the collection. Signals that
// arrive while a snapshot is undelivered coalesce into one re-read. A
// failed read is delivered as a snapshot with Err and ends the stream.
//
// With the private notifier, the stream also re-reads when another
// connection has committed to the database file, checked every poll
// interval.
func (s *Store) Subscribe(ctx context.Context, q backend.Query) (backend.Stream, error) {
	signal, cancel := s.notifier.Watch(q.Collection)
	ls := &liveStream{
		out:  make(chan backend.Snapshot),
		done: make(chan struct{}),
		read: func() ([]backend.Document, error) {
			return s.query(ctx, q)
		},
		external: func() bool { return false },
	}

	unwatch := cancel
	var poll <-chan time.Time
	if s.ownsNote && s.poll > 0 {
		version, err := s.dataVersion(ctx)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("subscribe %s: %w", q.Collection, err)
		}
		ticker := time.NewTicker(s.poll)
		poll = ticker.C
		unwatch = func() {
			ticker.Stop()
			cancel()
		}
		ls.external = func() bool {
			v, err := s.dataVersion(ctx)
			if err != nil {
				s.logger.Warn("poll for external changes failed", "collection", q.Collection, "error", err)
				return false
			}
			if v == version {
				return false
			}
			version = v
			return true
		}
	}

	go ls.run(ctx, signal, poll, unwatch)
	return ls, nil
}

// dataVersion changes whenever a connection other than this Store's
// commits to the database.
func (s *Store) dataVersion(ctx context.Context) (int64, error) {
	var v int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read data_version: %w", err)
	}
	return v, nil
}

type liveStream struct {
	out       chan backend.Snapshot
	done      chan struct{}
	closeOnce sync.Once

	read     func() ([]backend.Document, error)
	external func() bool
}

func (ls *liveStream) Snapshots() <-chan backend.Snapshot { return ls.out }

func (ls *liveStream) Close() {
	ls.closeOnce.Do(func() { close(ls.done) })
}

func (ls *liveStream) run(ctx context.Context, signal <-chan struct{}, poll <-chan time.Time, unwatch func()) {
	defer close(ls.out)
	defer unwatch()

	for {
		docs, err := ls.read()
		select {
		case ls.out <- backend.Snapshot{Docs: docs, Err: err}:
		case <-ctx.Done():
			return
		case <-ls.done:
			return
		}
		if err != nil {
			return
		}
		if !ls.wait(ctx, signal, poll) {
			return
		}
	}
}

// wait blocks until the collection may have changed. It reports false
// when the stream should end.
func (ls *liveStream) wait(ctx context.Context, signal <-chan struct{}, poll <-chan time.Time) bool {
	for {
		select {
		case _, ok := <-signal:
			return ok
		case <-poll:
			if ls.external() {
				return true
			}
		case <-ctx.Done():
			return false
		case <-ls.done:
			return false
		}
	}
}
