// Package gate decides what a viewer may do in an event and performs
// registration.
//
// Access is always derived from the event's authoritative registered set.
// Gate additionally remembers registrations it has completed itself so a
// screen can show "registered" before its snapshot refreshes; that memory
// never grants access and is checked against the next fresh snapshot.
package gate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/eventroom/internal/backend"
	"github.com/roach88/eventroom/internal/event"
)

// Decision is the viewer's access to an event's room.
type Decision int

const (
	// Unauthenticated: no signed-in viewer.
	Unauthenticated Decision = iota
	// NotRegistered: signed in, but not in the registered set.
	NotRegistered
	// Granted: signed in and registered.
	Granted
)

func (d Decision) String() string {
	switch d {
	case Unauthenticated:
		return "unauthenticated"
	case NotRegistered:
		return "not_registered"
	case Granted:
		return "granted"
	default:
		return "unknown"
	}
}

// MarshalText encodes the decision by name.
func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// CanChat derives the viewer's access from the event's registered set.
func CanChat(ev event.Event, viewer *event.Session) Decision {
	if !viewer.SignedIn() {
		return Unauthenticated
	}
	if !ev.IsRegistered(viewer.ID) {
		return NotRegistered
	}
	return Granted
}

// Result describes a completed registration.
type Result struct {
	EventID      string             `json:"eventId"`
	UserID       string             `json:"userId"`
	Registration event.Registration `json:"registration"`
	// AlreadyRegistered is set when the viewer was in the set and no write
	// was issued.
	AlreadyRegistered bool `json:"alreadyRegistered"`
}

type key struct {
	eventID string
	userID  string
}

// Gate performs registrations, allowing at most one outstanding
// registration per event and viewer.
//
// Safe for concurrent use.
type Gate struct {
	writer backend.Writer
	now    func() time.Time
	logger *slog.Logger

	mu        sync.Mutex
	inFlight  map[key]struct{}
	confirmed map[key]time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the clock used for registration timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// New creates a gate that writes through w.
func New(w backend.Writer, opts ...Option) *Gate {
	g := &Gate{
		writer:    w,
		now:       time.Now,
		logger:    slog.Default(),
		inFlight:  make(map[key]struct{}),
		confirmed: make(map[key]time.Time),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Register adds the viewer to the event's registered set and then records
// a registration entry. The set update fails for a missing event, so no
// entry is written for it. When the entry write fails the viewer is
// already in the set; calling Register again with the same snapshot
// writes the entry.
//
// A second call for the same event and viewer while one is outstanding
// fails with ErrCodeInFlight. Write failures are ErrCodeWriteFailed and
// leave no local trace.
func (g *Gate) Register(ctx context.Context, ev event.Event, viewer *event.Session) (Result, error) {
	if !viewer.SignedIn() {
		return Result{}, event.Unauthenticated("register")
	}
	res := Result{EventID: ev.ID, UserID: viewer.ID}
	if ev.IsRegistered(viewer.ID) {
		res.AlreadyRegistered = true
		return res, nil
	}

	k := key{eventID: ev.ID, userID: viewer.ID}
	if !g.begin(k) {
		return Result{}, &event.Error{Code: event.ErrCodeInFlight, Op: "register", Message: "registration already in progress"}
	}
	defer g.end(k)

	res.Registration = event.Registration{
		UserID:       viewer.ID,
		Name:         viewer.Name(),
		Email:        viewer.Email,
		RegisteredAt: g.now(),
	}
	ref := backend.Doc(event.CollectionEvents, ev.ID)
	entry := backend.Doc(ref.Sub(event.SubcollectionRegistered), viewer.ID)
	if err := g.writer.AppendToSet(ctx, ref, event.FieldRegisteredUsers, viewer.ID); err != nil {
		g.logger.Warn("registered set update failed", "event", ev.ID, "user", viewer.ID, "error", err)
		return Result{}, event.WriteFailed("register", err)
	}
	if err := g.writer.Set(ctx, entry, res.Registration.Fields(), true); err != nil {
		g.logger.Error("registration entry write failed after set update", "event", ev.ID, "user", viewer.ID, "error", err)
		return Result{}, event.WriteFailed("register", err)
	}

	g.mu.Lock()
	g.confirmed[k] = g.now()
	g.mu.Unlock()
	g.logger.Info("registered", "event", ev.ID, "user", viewer.ID)
	return res, nil
}

// InFlight reports whether a registration is outstanding.
func (g *Gate) InFlight(eventID, userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.inFlight[key{eventID: eventID, userID: userID}]
	return ok
}

// Registered reports whether the viewer is registered according to the
// snapshot, or to a registration this gate completed that the snapshot may
// not reflect yet. Use it for labels only; access comes from CanChat.
func (g *Gate) Registered(ev event.Event, viewer *event.Session) bool {
	if !viewer.SignedIn() {
		return false
	}
	if ev.IsRegistered(viewer.ID) {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.confirmed[key{eventID: ev.ID, userID: viewer.ID}]
	return ok
}

// Reconcile checks locally confirmed registrations for ev against a
// snapshot fetched at fetchedAt. Confirmations older than the snapshot are
// settled: dropped when the snapshot agrees, dropped and reported when it
// does not. It returns the user IDs that diverged.
func (g *Gate) Reconcile(ev event.Event, fetchedAt time.Time) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var diverged []string
	for k, at := range g.confirmed {
		if k.eventID != ev.ID || at.After(fetchedAt) {
			continue
		}
		delete(g.confirmed, k)
		if !ev.IsRegistered(k.userID) {
			diverged = append(diverged, k.userID)
			g.logger.Error("registration missing from refreshed event", "event", ev.ID, "user", k.userID)
		}
	}
	return diverged
}

func (g *Gate) begin(k key) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inFlight[k]; busy {
		return false
	}
	g.inFlight[k] = struct{}{}
	return true
}

func (g *Gate) end(k key) {
	g.mu.Lock()
	delete(g.inFlight, k)
	g.mu.Unlock()
}
