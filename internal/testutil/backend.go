package testutil

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/eventroom/internal/backend"
	"github.com/roach88/eventroom/internal/event"
)

// Backend is an in-memory backend.Store for tests. Writes replace
// backend.ServerTimestamp with readings from its clock, live queries see
// every committed write, and failures can be injected per capability.
type Backend struct {
	clock *DeterministicClock
	ids   event.IDGenerator

	mu          sync.Mutex
	seq         int64
	collections map[string][]*memDoc
	streams     map[string]map[*memStream]struct{}
	fetchErr    error
	writeErr    error
	subErr      error
	writes      int
	beforeWrite func()
}

type memDoc struct {
	id     string
	fields map[string]any
	seq    int64
}

// NewBackend creates an empty backend with sequential IDs "doc-N".
func NewBackend() *Backend {
	return &Backend{
		clock:       NewDeterministicClock(),
		ids:         event.NewSequentialGenerator("doc"),
		collections: make(map[string][]*memDoc),
		streams:     make(map[string]map[*memStream]struct{}),
	}
}

// FailFetch makes reads fail with err (nil restores them).
func (b *Backend) FailFetch(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetchErr = err
}

// FailWrite makes writes fail with err (nil restores them).
func (b *Backend) FailWrite(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeErr = err
}

// FailSubscribe makes Subscribe fail with err.
func (b *Backend) FailSubscribe(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subErr = err
}

// BeforeWrite installs a hook run before every write, outside the lock.
func (b *Backend) BeforeWrite(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.beforeWrite = fn
}

// Writes returns the number of successful writes.
func (b *Backend) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

// Put stores a document directly, bypassing failure injection.
func (b *Backend) Put(collection, id string, fields map[string]any) {
	b.mu.Lock()
	b.upsertLocked(collection, id, fields, false)
	b.mu.Unlock()
	b.notify(collection)
}

// PutEvent stores ev under its ID.
func (b *Backend) PutEvent(ev event.Event) {
	b.Put(event.CollectionEvents, ev.ID, ev.Fields())
}

// Docs returns the documents of a collection in insertion order.
func (b *Backend) Docs(collection string) []backend.Document {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queryLocked(backend.Query{Collection: collection})
}

// FetchAll implements backend.Reader.
func (b *Backend) FetchAll(ctx context.Context, collection string) ([]backend.Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fetchErr != nil {
		return nil, b.fetchErr
	}
	return b.queryLocked(backend.Query{Collection: collection}), nil
}

// Get implements backend.Reader.
func (b *Backend) Get(ctx context.Context, ref backend.DocumentRef) (backend.Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fetchErr != nil {
		return backend.Document{}, b.fetchErr
	}
	d := b.findLocked(ref.Collection, ref.ID)
	if d == nil {
		return backend.Document{}, fmt.Errorf("get %s: %w", ref.Path(), backend.ErrNotFound)
	}
	return backend.Document{ID: d.id, Fields: maps.Clone(d.fields)}, nil
}

// Create implements backend.Writer.
func (b *Backend) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	var id string
	err := b.write(collection, func() error {
		id = b.ids.Generate()
		b.upsertLocked(collection, id, fields, false)
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Append implements backend.Writer.
func (b *Backend) Append(ctx context.Context, collection string, fields map[string]any) error {
	_, err := b.Create(ctx, collection, fields)
	return err
}

// Set implements backend.Writer.
func (b *Backend) Set(ctx context.Context, ref backend.DocumentRef, fields map[string]any, merge bool) error {
	return b.write(ref.Collection, func() error {
		b.upsertLocked(ref.Collection, ref.ID, fields, merge)
		return nil
	})
}

// AppendToSet implements backend.Writer.
func (b *Backend) AppendToSet(ctx context.Context, ref backend.DocumentRef, field string, value any) error {
	return b.write(ref.Collection, func() error {
		d := b.findLocked(ref.Collection, ref.ID)
		if d == nil {
			return fmt.Errorf("append to set %s: %w", ref.Path(), backend.ErrNotFound)
		}
		current, _ := d.fields[field].([]any)
		if slices.Contains(current, value) {
			return nil
		}
		d.fields[field] = append(slices.Clone(current), value)
		return nil
	})
}

// Subscribe implements backend.Reader.
func (b *Backend) Subscribe(ctx context.Context, q backend.Query) (backend.Stream, error) {
	b.mu.Lock()
	if b.subErr != nil {
		err := b.subErr
		b.mu.Unlock()
		return nil, err
	}
	s := &memStream{
		out:  make(chan backend.Snapshot),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	if b.streams[q.Collection] == nil {
		b.streams[q.Collection] = make(map[*memStream]struct{})
	}
	b.streams[q.Collection][s] = struct{}{}
	b.mu.Unlock()

	s.wake <- struct{}{}
	go s.run(ctx, func() []backend.Document {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.queryLocked(q)
	}, func() {
		b.mu.Lock()
		delete(b.streams[q.Collection], s)
		b.mu.Unlock()
	})
	return s, nil
}

// Streams returns the number of open live queries on a collection.
func (b *Backend) Streams(collection string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.streams[collection])
}

func (b *Backend) write(collection string, apply func() error) error {
	b.mu.Lock()
	hook := b.beforeWrite
	b.mu.Unlock()
	if hook != nil {
		hook()
	}

	b.mu.Lock()
	if b.writeErr != nil {
		err := b.writeErr
		b.mu.Unlock()
		return err
	}
	if err := apply(); err != nil {
		b.mu.Unlock()
		return err
	}
	b.writes++
	b.mu.Unlock()
	b.notify(collection)
	return nil
}

func (b *Backend) upsertLocked(collection, id string, fields map[string]any, merge bool) {
	resolved := make(map[string]any, len(fields))
	for k, v := range fields {
		if v == backend.ServerTimestamp {
			v = b.clock.Now().Format(backend.TimestampLayout)
		}
		resolved[k] = v
	}
	if d := b.findLocked(collection, id); d != nil {
		if merge {
			maps.Copy(d.fields, resolved)
		} else {
			d.fields = resolved
		}
		return
	}
	b.seq++
	b.collections[collection] = append(b.collections[collection], &memDoc{id: id, fields: resolved, seq: b.seq})
}

func (b *Backend) findLocked(collection, id string) *memDoc {
	for _, d := range b.collections[collection] {
		if d.id == id {
			return d
		}
	}
	return nil
}

func (b *Backend) queryLocked(q backend.Query) []backend.Document {
	docs := slices.Clone(b.collections[q.Collection])
	if q.OrderBy != "" {
		slices.SortStableFunc(docs, func(x, y *memDoc) int {
			a, _ := x.fields[q.OrderBy].(string)
			c, _ := y.fields[q.OrderBy].(string)
			switch {
			case a < c:
				return -1
			case a > c:
				return 1
			}
			return 0
		})
	}
	out := make([]backend.Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, backend.Document{ID: d.id, Fields: maps.Clone(d.fields)})
	}
	return out
}

func (b *Backend) notify(collection string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.streams[collection] {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

// memStream delivers the latest query result after each wake-up. Wake-ups
// coalesce, so a slow reader sees fewer but always current snapshots.
type memStream struct {
	out       chan backend.Snapshot
	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func (s *memStream) Snapshots() <-chan backend.Snapshot { return s.out }

func (s *memStream) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *memStream) run(ctx context.Context, query func() []backend.Document, unregister func()) {
	defer close(s.out)
	defer unregister()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-s.wake:
		}
		snap := backend.Snapshot{Docs: query()}
		select {
		case s.out <- snap:
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}
