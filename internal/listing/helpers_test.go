package listing

import (
	"fmt"
	"math/rand/v2"

	"github.com/roach88/eventroom/internal/event"
)

func ev(id, title, location string, category event.Category, date string) event.Event {
	return event.Event{ID: id, Title: title, Location: location, Category: category, Date: date}
}

func ids(events []event.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}

// randomEvents builds n events with a small pool of titles, locations and
// dates so that ties are common.
func randomEvents(r *rand.Rand, n int) []event.Event {
	titles := []string{"Jazz Night", "Tech Talk", "Run Club", "Board Games", "Ábaco", "zine fair"}
	locations := []string{"Lagos", "Abuja", "Kano", "Ibadan"}
	cats := event.Categories()
	out := make([]event.Event, n)
	for i := range out {
		out[i] = event.Event{
			ID:       fmt.Sprintf("e%03d", i),
			Title:    titles[r.IntN(len(titles))],
			Location: locations[r.IntN(len(locations))],
			Category: cats[r.IntN(len(cats))],
			Date:     fmt.Sprintf("2025-0%d-1%d", 1+r.IntN(9), r.IntN(10)),
		}
	}
	return out
}

func seeded(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}
