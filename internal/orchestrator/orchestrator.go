package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roach88/eventroom/internal/backend"
	"github.com/roach88/eventroom/internal/event"
	"github.com/roach88/eventroom/internal/gate"
)

// LoadState is the outcome of a one-shot load.
type LoadState int

const (
	// LoadPending: no load has completed yet.
	LoadPending LoadState = iota
	// Loaded: the snapshot was fetched.
	Loaded
	// LoadFailed: the fetch failed; Err says why.
	LoadFailed
)

func (s LoadState) String() string {
	switch s {
	case LoadPending:
		return "pending"
	case Loaded:
		return "loaded"
	case LoadFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s LoadState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// LoadResult is one full-collection snapshot.
type LoadResult struct {
	Events []event.Event
	State  LoadState
	Err    error
	// Degenerate counts events missing a title or location, or whose date
	// does not parse. They are kept and sort by the documented fallbacks.
	Degenerate int
	// FetchedAt is when the fetch was issued.
	FetchedAt time.Time
}

// Orchestrator is the client core's entry point to the backend.
//
// Safe for concurrent use.
type Orchestrator struct {
	reader   backend.Reader
	writer   backend.Writer
	sessions backend.SessionSource
	gate     *gate.Gate
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the clock for creation timestamps and fetch times.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithGate supplies the registration gate. By default one is built on the
// orchestrator's writer, clock and logger.
func WithGate(g *gate.Gate) Option {
	return func(o *Orchestrator) { o.gate = g }
}

// New creates an orchestrator.
func New(r backend.Reader, w backend.Writer, sessions backend.SessionSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		reader:   r,
		writer:   w,
		sessions: sessions,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.gate == nil {
		o.gate = gate.New(w, gate.WithClock(o.now), gate.WithLogger(o.logger))
	}
	return o
}

// Gate returns the registration gate.
func (o *Orchestrator) Gate() *gate.Gate {
	return o.gate
}

// Viewer returns the current session, nil when anonymous.
func (o *Orchestrator) Viewer() *event.Session {
	return o.sessions.Current()
}

// LoadAll fetches every event. Failure is reported in the result.
func (o *Orchestrator) LoadAll(ctx context.Context) LoadResult {
	res := LoadResult{FetchedAt: o.now()}
	docs, err := o.reader.FetchAll(ctx, event.CollectionEvents)
	if err != nil {
		o.logger.Warn("load events failed", "error", err)
		res.State = LoadFailed
		res.Err = event.FetchFailed("load events", err)
		return res
	}
	res.State = Loaded
	res.Events = make([]event.Event, 0, len(docs))
	for _, d := range docs {
		ev := event.FromFields(d.ID, d.Fields)
		if ev.Degenerate() {
			res.Degenerate++
			o.logger.Debug("degenerate event", "event", ev.ID, "title", ev.Title, "date", ev.Date)
		}
		res.Events = append(res.Events, ev)
	}
	return res
}

// LoadEvent fetches one event. A missing event is ErrCodeNotFound; other
// failures are ErrCodeFetchFailed.
func (o *Orchestrator) LoadEvent(ctx context.Context, id string) (event.Event, error) {
	doc, err := o.reader.Get(ctx, backend.Doc(event.CollectionEvents, id))
	if errors.Is(err, backend.ErrNotFound) {
		return event.Event{}, &event.Error{Code: event.ErrCodeNotFound, Op: "load event", Message: "no event " + id, Err: err}
	}
	if err != nil {
		o.logger.Warn("load event failed", "event", id, "error", err)
		return event.Event{}, event.FetchFailed("load event", err)
	}
	return event.FromFields(doc.ID, doc.Fields), nil
}

// CreateEvent stores a new event created by the current viewer, who
// becomes its first registered viewer.
func (o *Orchestrator) CreateEvent(ctx context.Context, d event.Draft) (event.Event, error) {
	viewer := o.sessions.Current()
	if !viewer.SignedIn() {
		return event.Event{}, event.Unauthenticated("create event")
	}
	if err := d.Validate(); err != nil {
		return event.Event{}, err
	}
	ev := event.NewEvent(d, viewer.ID, o.now())
	id, err := o.writer.Create(ctx, event.CollectionEvents, ev.Fields())
	if err != nil {
		o.logger.Warn("create event failed", "user", viewer.ID, "error", err)
		return event.Event{}, event.WriteFailed("create event", err)
	}
	ev.ID = id
	o.logger.Info("event created", "event", id, "user", viewer.ID)
	return ev, nil
}

// Register registers the current viewer for ev.
func (o *Orchestrator) Register(ctx context.Context, ev event.Event) (gate.Result, error) {
	return o.gate.Register(ctx, ev, o.sessions.Current())
}

// SendMessage appends a message to ev's room as the current viewer. The
// viewer must be registered according to ev.
func (o *Orchestrator) SendMessage(ctx context.Context, ev event.Event, text string) error {
	viewer := o.sessions.Current()
	switch gate.CanChat(ev, viewer) {
	case gate.Unauthenticated:
		return event.Unauthenticated("send message")
	case gate.NotRegistered:
		return event.NotRegistered("send message", ev.ID)
	}
	text, err := event.NormalizeMessageText(text)
	if err != nil {
		return err
	}
	ref := backend.Doc(event.CollectionEvents, ev.ID)
	err = o.writer.Append(ctx, ref.Sub(event.SubcollectionMessages), map[string]any{
		event.FieldText:      text,
		event.FieldUserID:    viewer.ID,
		event.FieldUserName:  viewer.Name(),
		event.FieldCreatedAt: backend.ServerTimestamp,
	})
	if err != nil {
		o.logger.Warn("send message failed", "event", ev.ID, "user", viewer.ID, "error", err)
		return event.WriteFailed("send message", err)
	}
	return nil
}
