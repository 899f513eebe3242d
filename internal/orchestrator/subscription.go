package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/eventroom/internal/backend"
	"github.com/roach88/eventroom/internal/event"
)

// SubState is a subscription's lifecycle position.
type SubState int

const (
	// Idle: created, not started.
	Idle SubState = iota
	// Subscribed: receiving deliveries.
	Subscribed
	// Unsubscribed: released. Terminal.
	Unsubscribed
)

func (s SubState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Subscribed:
		return "subscribed"
	case Unsubscribed:
		return "unsubscribed"
	default:
		return "unknown"
	}
}

// lifecycle guards the Idle -> Subscribed -> Unsubscribed transitions and
// owns the release function of the running subscription.
type lifecycle struct {
	mu      sync.Mutex
	state   SubState
	release func()
}

// start runs open when Idle and moves to Subscribed. Starting a running
// subscription is a no-op; starting a released one fails.
func (l *lifecycle) start(op string, open func() (release func(), err error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case Subscribed:
		return nil
	case Unsubscribed:
		return &event.Error{Code: event.ErrCodeSubscriptionClosed, Op: op, Message: "subscription was closed; create a new one"}
	}
	release, err := open()
	if err != nil {
		l.state = Unsubscribed
		return err
	}
	l.release = release
	l.state = Subscribed
	return nil
}

// stop moves to Unsubscribed and releases. Idempotent.
func (l *lifecycle) stop() {
	l.mu.Lock()
	release := l.release
	l.release = nil
	l.state = Unsubscribed
	l.mu.Unlock()
	if release != nil {
		release()
	}
}

// ended records that the subscription's source finished on its own. The
// release function is kept for Close.
func (l *lifecycle) ended() {
	l.mu.Lock()
	l.state = Unsubscribed
	l.mu.Unlock()
}

func (l *lifecycle) current() SubState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// MessageBatch is the full ordered message list of a room after a change,
// or the error that ended the subscription.
type MessageBatch struct {
	Messages []event.Message
	Err      error
}

// MessageSubscription is a live view of one event's messages, ordered by
// server timestamp. Each batch extends the previous one. When a delivery
// reorders or drops already delivered messages, those keep their place and
// only the messages not yet delivered are appended.
type MessageSubscription struct {
	reader  backend.Reader
	eventID string
	logger  *slog.Logger

	life      lifecycle
	out       chan MessageBatch
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Messages creates an idle subscription to the room of eventID.
func (o *Orchestrator) Messages(eventID string) *MessageSubscription {
	return &MessageSubscription{
		reader:  o.reader,
		eventID: eventID,
		logger:  o.logger.With("event", eventID),
		out:     make(chan MessageBatch, 1),
	}
}

// Start subscribes. The batch channel is closed once the subscription is
// released or its stream ends.
func (s *MessageSubscription) Start(ctx context.Context) error {
	return s.life.start("subscribe messages", func() (func(), error) {
		ref := backend.Doc(event.CollectionEvents, s.eventID)
		ctx, cancel := context.WithCancel(ctx)
		stream, err := s.reader.Subscribe(ctx, backend.Query{
			Collection: ref.Sub(event.SubcollectionMessages),
			OrderBy:    event.FieldCreatedAt,
		})
		if err != nil {
			cancel()
			s.closeOut()
			s.logger.Warn("subscribe messages failed", "error", err)
			return nil, event.FetchFailed("subscribe messages", err)
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

// Batches returns the delivery channel. Only the newest undelivered batch
// is kept, since each batch carries the whole room.
func (s *MessageSubscription) Batches() <-chan MessageBatch {
	return s.out
}

// State returns the lifecycle state.
func (s *MessageSubscription) State() SubState {
	return s.life.current()
}

// Close releases the subscription. Safe to call in any state.
func (s *MessageSubscription) Close() {
	s.life.stop()
	s.closeOut()
}

func (s *MessageSubscription) pump(stream backend.Stream) {
	defer s.wg.Done()
	var delivered []event.Message
	first := true
	for snap := range stream.Snapshots() {
		if snap.Err != nil {
			s.logger.Warn("message stream failed", "error", snap.Err)
			s.offer(MessageBatch{Err: event.FetchFailed("subscribe messages", snap.Err)})
			break
		}
		msgs := make([]event.Message, 0, len(snap.Docs))
		for _, d := range snap.Docs {
			msgs = append(msgs, event.MessageFromFields(d.ID, d.Fields))
		}
		merged, added, err := appendNew(delivered, msgs)
		if err != nil {
			s.logger.Warn("message delivery out of order, appending new messages", "error", err, "added", added)
		}
		if first || added > 0 {
			first = false
			delivered = merged
			s.offer(MessageBatch{Messages: slices.Clone(merged)})
		}
	}
	s.life.ended()
	s.closeOut()
}

// closeOut closes the batch channel. Only the pump sends on it, and
// releasing waits for the pump, so closing after either is safe.
func (s *MessageSubscription) closeOut() {
	s.closeOnce.Do(func() { close(s.out) })
}

func (s *MessageSubscription) offer(b MessageBatch) {
	select {
	case s.out <- b:
		return
	default:
	}
	select {
	case <-s.out:
	default:
	}
	select {
	case s.out <- b:
	default:
	}
}

// appendNew returns prev followed by the messages of next whose IDs prev
// lacks, in next's order, and how many were added. prev is never reordered
// or shortened. err describes how next disagreed with prev, if it did; the
// merge is still valid then.
func appendNew(prev, next []event.Message) (merged []event.Message, added int, err error) {
	seen := make(map[string]bool, len(prev))
	for _, m := range prev {
		seen[m.ID] = true
	}
	merged = slices.Clone(prev)
	for i, m := range next {
		if seen[m.ID] {
			if i >= len(prev) || prev[i].ID != m.ID {
				err = fmt.Errorf("message %s moved to position %d", m.ID, i)
			}
			continue
		}
		if i < len(prev) && err == nil {
			err = fmt.Errorf("message %s inserted before delivered message %s", m.ID, prev[i].ID)
		}
		merged = append(merged, m)
		added++
	}
	if err == nil && len(next) < len(prev) {
		err = fmt.Errorf("delivery has %d messages, %d already delivered", len(next), len(prev))
	}
	return merged, added, err
}
