package orchestrator

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/roach88/eventroom/internal/event"
	"github.com/roach88/eventroom/internal/listing"
	"github.com/roach88/eventroom/internal/testutil"
)

var (
	alice = &event.Session{ID: "u1", Email: "alice@example.com", DisplayName: "Alice"}
	bob   = &event.Session{ID: "u2", Email: "bob@example.com"}
)

type fixture struct {
	backend  *testutil.Backend
	sessions *testutil.Sessions
	clock    *testutil.DeterministicClock
	o        *Orchestrator
}

func newFixture(t *testing.T, viewer *event.Session) *fixture {
	t.Helper()
	f := &fixture{
		backend:  testutil.NewBackend(),
		sessions: testutil.NewSessions(viewer),
		clock:    testutil.NewDeterministicClock(),
	}
	f.o = New(f.backend, f.backend, f.sessions,
		WithClock(f.clock.Now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return f
}

func (f *fixture) put(events ...event.Event) {
	for _, ev := range events {
		f.backend.PutEvent(ev)
	}
}

func ev(id, title, category, date string, registered ...string) event.Event {
	return event.Event{
		ID:              id,
		Title:           title,
		Location:        "Lagos",
		Date:            date,
		Category:        event.Category(category),
		RegisteredUsers: registered,
	}
}

func pager() *listing.Paginator {
	return listing.NewPaginator(listing.DefaultPageSize, rand.NewPCG(1, 2))
}
