package orchestrator

import (
	"context"
	"slices"
	"sync"

	"github.com/roach88/eventroom/internal/event"
	"github.com/roach88/eventroom/internal/gate"
)

// Line is a message as the current viewer sees it.
type Line struct {
	ID     string        `json:"id"`
	Author string        `json:"author"`
	Text   string        `json:"text"`
	Msg    event.Message `json:"-"`
}

// RoomState is what the event room renders.
type RoomState struct {
	Event       event.Event   `json:"event"`
	Loaded      bool          `json:"loaded"`
	Err         error         `json:"-"`
	Access      gate.Decision `json:"access"`
	Registered  bool          `json:"registered"`
	Registering bool          `json:"registering"`
	// Synced is set once the message subscription has delivered.
	Synced bool `json:"synced"`
	// Lines is empty unless Access is Granted.
	Lines []Line `json:"lines"`
}

// Room is one event's page: details, registration and, for registered
// viewers, the live chat.
//
// Safe for concurrent use. After Close, results of operations still in
// progress are dropped.
type Room struct {
	o       *Orchestrator
	eventID string

	mu       sync.Mutex
	closed   bool
	loaded   bool
	ev       event.Event
	err      error
	sub      *MessageSubscription
	messages []event.Message
	synced   bool
	changes  chan struct{}
	wg       sync.WaitGroup
}

// Room creates the screen for eventID. Call Open to load it.
func (o *Orchestrator) Room(eventID string) *Room {
	return &Room{o: o, eventID: eventID, changes: make(chan struct{}, 1)}
}

// Open loads the event and, when the viewer may chat, subscribes to its
// messages.
func (r *Room) Open(ctx context.Context) error {
	return r.refresh(ctx)
}

// Register registers the viewer, then reloads the event so access is
// derived from the stored registered set.
func (r *Room) Register(ctx context.Context) (gate.Result, error) {
	r.mu.Lock()
	ev, loaded := r.ev, r.loaded
	r.mu.Unlock()
	if !loaded {
		return gate.Result{}, &event.Error{Code: event.ErrCodeNotFound, Op: "register", Message: "event not loaded"}
	}
	res, err := r.o.Register(ctx, ev)
	if err != nil {
		return res, err
	}
	if err := r.refresh(ctx); err != nil {
		// The write landed; only the reload failed.
		r.o.logger.Warn("reload after registration failed", "event", r.eventID, "error", err)
	}
	return res, nil
}

// Send posts a message as the current viewer.
func (r *Room) Send(ctx context.Context, text string) error {
	r.mu.Lock()
	ev := r.ev
	r.mu.Unlock()
	return r.o.SendMessage(ctx, ev, text)
}

// Changes signals after each state change. Signals coalesce.
func (r *Room) Changes() <-chan struct{} {
	return r.changes
}

// State returns the current rendering. Access is re-derived from the
// event on every call.
func (r *Room) State() RoomState {
	viewer := r.o.sessions.Current()

	r.mu.Lock()
	defer r.mu.Unlock()
	st := RoomState{
		Event:      r.ev,
		Loaded:     r.loaded,
		Err:        r.err,
		Access:     gate.CanChat(r.ev, viewer),
		Registered: r.o.gate.Registered(r.ev, viewer),
		Lines:      []Line{},
	}
	if viewer.SignedIn() {
		st.Registering = r.o.gate.InFlight(r.eventID, viewer.ID)
	}
	if st.Access == gate.Granted {
		st.Synced = r.synced
		for _, m := range r.messages {
			st.Lines = append(st.Lines, Line{ID: m.ID, Author: m.Author(viewer), Text: m.Text, Msg: m})
		}
	}
	return st
}

// Close releases the message subscription. Idempotent.
func (r *Room) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	sub := r.sub
	r.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
	r.wg.Wait()
}

func (r *Room) refresh(ctx context.Context) error {
	fetchedAt := r.o.now()
	ev, err := r.o.LoadEvent(ctx, r.eventID)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	if err != nil {
		r.err = err
		r.mu.Unlock()
		r.signal()
		return err
	}
	r.ev, r.loaded, r.err = ev, true, nil
	r.mu.Unlock()

	r.o.gate.Reconcile(ev, fetchedAt)
	r.signal()

	if gate.CanChat(ev, r.o.sessions.Current()) == gate.Granted {
		return r.subscribe(ctx)
	}
	return nil
}

func (r *Room) subscribe(ctx context.Context) error {
	r.mu.Lock()
	if r.closed || r.sub != nil {
		r.mu.Unlock()
		return nil
	}
	sub := r.o.Messages(r.eventID)
	r.sub = sub
	r.wg.Add(1)
	r.mu.Unlock()

	if err := sub.Start(ctx); err != nil {
		r.wg.Done()
		r.mu.Lock()
		r.sub = nil
		closed := r.closed
		if !closed {
			r.err = err
		}
		r.mu.Unlock()
		if closed {
			return nil
		}
		r.signal()
		return err
	}
	go r.follow(sub)
	return nil
}

func (r *Room) follow(sub *MessageSubscription) {
	defer r.wg.Done()
	for batch := range sub.Batches() {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return
		}
		if batch.Err != nil {
			r.err = batch.Err
		} else {
			r.messages = slices.Clone(batch.Messages)
			r.synced = true
		}
		r.mu.Unlock()
		r.signal()
	}
}

func (r *Room) signal() {
	select {
	case r.changes <- struct{}{}:
	default:
	}
}
