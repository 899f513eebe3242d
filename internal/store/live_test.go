package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/eventroom/internal/backend"
	"github.com/roach88/eventroom/internal/notify"
)

func nextSnapshot(t *testing.T, stream backend.Stream) backend.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-stream.Snapshots():
		if !ok {
			t.Fatal("stream closed")
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return backend.Snapshot{}
}

func texts(docs []backend.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Fields["text"].(string))
	}
	return out
}

func TestSubscribe_InitialThenUpdates(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	coll := "events/e1/messages"

	if err := s.Append(ctx, coll, map[string]any{"text": "one", "createdAt": backend.ServerTimestamp}); err != nil {
		t.Fatal(err)
	}

	stream, err := s.Subscribe(ctx, backend.Query{Collection: coll, OrderBy: "createdAt"})
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	defer stream.Close()

	if got := texts(nextSnapshot(t, stream).Docs); len(got) != 1 || got[0] != "one" {
		t.Fatalf("initial snapshot = %v", got)
	}

	if err := s.Append(ctx, coll, map[string]any{"text": "two", "createdAt": backend.ServerTimestamp}); err != nil {
		t.Fatal(err)
	}
	got := texts(nextSnapshot(t, stream).Docs)
	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Errorf("update snapshot = %v", got)
	}
}

func TestSubscribe_OrdersByField(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	s.Append(ctx, "m", map[string]any{"text": "late", "createdAt": "2025-07-01T10:00:00.000000000Z"})
	s.Append(ctx, "m", map[string]any{"text": "early", "createdAt": "2025-07-01T09:00:00.000000000Z"})
	s.Append(ctx, "m", map[string]any{"text": "pending"})

	stream, err := s.Subscribe(ctx, backend.Query{Collection: "m", OrderBy: "createdAt"})
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	got := texts(nextSnapshot(t, stream).Docs)
	want := []string{"pending", "early", "late"}
	for i := range want {
		if i >= len(got) || got[i] != want[i] {
			t.Fatalf("ordered snapshot = %v, want %v", got, want)
		}
	}
}

func TestSubscribe_OtherCollectionsDoNotWake(t *testing.T) {
	n := notify.NewLocal()
	s := createTestStore(t, WithNotifier(n))
	ctx := context.Background()

	stream, err := s.Subscribe(ctx, backend.Query{Collection: "a"})
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()
	nextSnapshot(t, stream)

	s.Append(ctx, "b", map[string]any{"text": "elsewhere"})
	select {
	case snap := <-stream.Snapshots():
		t.Errorf("unexpected snapshot %v", snap.Docs)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribe_CloseEndsStream(t *testing.T) {
	n := notify.NewLocal()
	s := createTestStore(t, WithNotifier(n))

	stream, err := s.Subscribe(context.Background(), backend.Query{Collection: "m"})
	if err != nil {
		t.Fatal(err)
	}
	nextSnapshot(t, stream)
	stream.Close()
	stream.Close()

	for range stream.Snapshots() {
	}
	deadline := time.Now().Add(time.Second)
	for n.Watching("m") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("watcher not released after Close")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSubscribe_ContextCancelEndsStream(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	stream, err := s.Subscribe(ctx, backend.Query{Collection: "m"})
	if err != nil {
		t.Fatal(err)
	}
	nextSnapshot(t, stream)
	cancel()

	select {
	case _, ok := <-stream.Snapshots():
		if ok {
			// A snapshot racing the cancel is fine; the next receive must end.
			if _, ok := <-stream.Snapshots(); ok {
				t.Error("stream still open after cancel")
			}
		}
	case <-time.After(time.Second):
		t.Error("stream did not end after cancel")
	}
}

func TestSubscribe_SeesOtherConnectionsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()
	coll := "events/e1/messages"

	open := func() *Store {
		s, err := Open(path, WithPollInterval(5*time.Millisecond))
		if err != nil {
			t.Fatalf("Open() failed: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	}
	reader, writer := open(), open()

	stream, err := reader.Subscribe(ctx, backend.Query{Collection: coll, OrderBy: "createdAt"})
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()
	if got := nextSnapshot(t, stream).Docs; len(got) != 0 {
		t.Fatalf("initial snapshot = %v", got)
	}

	for _, text := range []string{"one", "two"} {
		if err := writer.Append(ctx, coll, map[string]any{"text": text, "createdAt": backend.ServerTimestamp}); err != nil {
			t.Fatal(err)
		}
		got := texts(nextSnapshot(t, stream).Docs)
		if got[len(got)-1] != text {
			t.Fatalf("snapshot after writing %q = %v", text, got)
		}
	}
}

func TestSubscribe_SharedNotifierDoesNotPoll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	reader, err := Open(path, WithNotifier(notify.NewLocal()), WithPollInterval(time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()
	writer, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer writer.Close()

	stream, err := reader.Subscribe(ctx, backend.Query{Collection: "m"})
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()
	nextSnapshot(t, stream)

	writer.Append(ctx, "m", map[string]any{"text": "unsignalled"})
	select {
	case snap := <-stream.Snapshots():
		t.Errorf("unexpected snapshot %v", snap.Docs)
	case <-time.After(50 * time.Millisecond):
	}
}
