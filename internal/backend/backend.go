// Package backend declares the capabilities the client needs from its
// managed backend: document reads with live queries, document writes with
// idempotent set-union, and the viewer's authentication state.
//
// The client never assumes more than these interfaces promise. Atomicity of
// AppendToSet per document and the ordering of live query snapshots are the
// backend's responsibility.
package backend

import (
	"context"
	"errors"
	"strings"

	"github.com/roach88/eventroom/internal/event"
)

// ErrNotFound is returned when a document or account does not exist.
var ErrNotFound = errors.New("not found")

// TimestampLayout is the fixed-width UTC layout server timestamps are
// stored in, so that lexical and chronological order agree.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

type serverTimestamp struct{}

// ServerTimestamp is a field value replaced by the backend's own clock when
// the document is written. Successive server timestamps strictly increase.
var ServerTimestamp = serverTimestamp{}

// Document is a stored record: its identifier and its field map.
type Document struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// DocumentRef addresses one document inside a collection path such as
// "events" or "events/<id>/messages".
type DocumentRef struct {
	Collection string
	ID         string
}

// Doc builds a reference.
func Doc(collection, id string) DocumentRef {
	return DocumentRef{Collection: collection, ID: id}
}

// Path returns the slash-joined document path.
func (r DocumentRef) Path() string {
	return r.Collection + "/" + r.ID
}

// Sub returns the path of a subcollection owned by the document.
func (r DocumentRef) Sub(name string) string {
	return r.Path() + "/" + name
}

// Query selects a collection and the field its snapshots are ordered by,
// ascending. An empty OrderBy orders by insertion.
type Query struct {
	Collection string
	OrderBy    string
}

// Snapshot is one delivery of a live query: the full ordered result, or
// the error that ended the stream.
type Snapshot struct {
	Docs []Document
	Err  error
}

// Stream is a live query. Snapshots is closed once the stream ends, after
// Close or when the subscribing context is cancelled.
type Stream interface {
	Snapshots() <-chan Snapshot
	Close()
}

// Reader is the one-shot and live read capability.
type Reader interface {
	FetchAll(ctx context.Context, collection string) ([]Document, error)
	Get(ctx context.Context, ref DocumentRef) (Document, error)
	Subscribe(ctx context.Context, q Query) (Stream, error)
}

// Writer is the write capability.
type Writer interface {
	// Create inserts a document with a backend-assigned ID.
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)
	// Set writes a document with a caller-chosen ID. With merge, existing
	// fields not named in fields are kept.
	Set(ctx context.Context, ref DocumentRef, fields map[string]any, merge bool) error
	// AppendToSet adds value to the array field unless already present.
	AppendToSet(ctx context.Context, ref DocumentRef, field string, value any) error
	// Append adds a document to a collection.
	Append(ctx context.Context, collection string, fields map[string]any) error
}

// Store combines both document capabilities.
type Store interface {
	Reader
	Writer
}

// SessionStream delivers the viewer session, nil when signed out. The
// current state is delivered first, then one value per sign-in or sign-out.
type SessionStream interface {
	Sessions() <-chan *event.Session
	Close()
}

// SessionSource is the authentication capability.
type SessionSource interface {
	Current() *event.Session
	WatchSession(ctx context.Context) (SessionStream, error)
}

// JoinPath joins collection path segments.
func JoinPath(segments ...string) string {
	return strings.Join(segments, "/")
}
