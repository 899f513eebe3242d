package orchestrator

import (
	"context"

	"github.com/roach88/eventroom/internal/event"
	"github.com/roach88/eventroom/internal/gate"
	"github.com/roach88/eventroom/internal/listing"
)

// Card is one event as a screen shows it to the current viewer.
type Card struct {
	Event event.Event `json:"event"`
	// Access is derived from the event's registered set.
	Access gate.Decision `json:"access"`
	// Registered also reflects registrations this client completed that the
	// snapshot does not show yet. It labels the card; it grants nothing.
	Registered bool `json:"registered"`
	// Registering is set while a registration is outstanding.
	Registering bool `json:"registering"`
}

// Cards annotates events for the current viewer.
func (o *Orchestrator) Cards(events []event.Event) []Card {
	viewer := o.sessions.Current()
	cards := make([]Card, 0, len(events))
	for _, ev := range events {
		c := Card{
			Event:      ev,
			Access:     gate.CanChat(ev, viewer),
			Registered: o.gate.Registered(ev, viewer),
		}
		if viewer.SignedIn() {
			c.Registering = o.gate.InFlight(ev.ID, viewer.ID)
		}
		cards = append(cards, c)
	}
	return cards
}

// ListingPage is what the listing screen renders.
type ListingPage struct {
	State LoadState           `json:"state"`
	Err   error               `json:"-"`
	Query listing.Query       `json:"query"`
	Page  listing.DisplayPage `json:"page"`
	Cards []Card              `json:"cards"`
}

// Listing is the full event listing screen: one snapshot, a query and
// page navigation.
//
// Not safe for concurrent use.
type Listing struct {
	o    *Orchestrator
	view *listing.View
	last LoadResult
}

// Listing creates a listing screen.
func (o *Orchestrator) Listing(engine *listing.Engine, pager *listing.Paginator) *Listing {
	return &Listing{o: o, view: listing.NewView(engine, pager)}
}

// Load fetches the snapshot and resets to page 1. A failed load keeps the
// previous snapshot and reports the failure.
func (l *Listing) Load(ctx context.Context) LoadResult {
	res := l.o.LoadAll(ctx)
	l.last = res
	if res.State == Loaded {
		l.view.SetEvents(res.Events)
		for _, ev := range res.Events {
			l.o.gate.Reconcile(ev, res.FetchedAt)
		}
	}
	return res
}

// View exposes query and navigation controls.
func (l *Listing) View() *listing.View {
	return l.view
}

// Page returns the current rendering.
func (l *Listing) Page() ListingPage {
	page := l.view.Page()
	return ListingPage{
		State: l.last.State,
		Err:   l.last.Err,
		Query: l.view.Query(),
		Page:  page,
		Cards: l.o.Cards(page.Visible),
	}
}

// HomePage is what the home screen renders.
type HomePage struct {
	State    LoadState `json:"state"`
	Err      error     `json:"-"`
	Featured []Card    `json:"featured"`
	Total    int       `json:"total"`
	HasMore  bool      `json:"hasMore"`
}

// Home is the home screen: a filtered random sample of events.
//
// Not safe for concurrent use.
type Home struct {
	o    *Orchestrator
	view *listing.HomeView
	last LoadResult
}

// Home creates a home screen featuring up to count events.
func (o *Orchestrator) Home(engine *listing.Engine, pager *listing.Paginator, count int) *Home {
	return &Home{o: o, view: listing.NewHomeView(engine, pager, count)}
}

// Load fetches the snapshot and draws a new sample.
func (h *Home) Load(ctx context.Context) LoadResult {
	res := h.o.LoadAll(ctx)
	h.last = res
	if res.State == Loaded {
		h.view.SetEvents(res.Events)
	}
	return res
}

// Filter changes the category and search and draws a new sample.
func (h *Home) Filter(category, search string) {
	h.view.Filter(category, search)
}

// Page returns the current rendering.
func (h *Home) Page() HomePage {
	return HomePage{
		State:    h.last.State,
		Err:      h.last.Err,
		Featured: h.o.Cards(h.view.Featured()),
		Total:    h.view.Total(),
		HasMore:  h.view.HasMore(),
	}
}
