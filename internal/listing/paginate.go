package listing

import (
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/roach88/eventroom/internal/event"
)

// DefaultPageSize is the number of events per listing page.
const DefaultPageSize = 6

// DisplayPage is one bounded slice of a filtered set.
type DisplayPage struct {
	Number     int           `json:"page"`
	Size       int           `json:"pageSize"`
	TotalPages int           `json:"totalPages"`
	Total      int           `json:"total"`
	Visible    []event.Event `json:"events"`
}

// HasNext reports whether a following page exists.
func (p DisplayPage) HasNext() bool {
	return p.Number < p.TotalPages
}

// HasPrev reports whether a preceding page exists.
func (p DisplayPage) HasPrev() bool {
	return p.Number > 1
}

// Range returns the 1-based positions of the first and last events on the
// page within the filtered set, clamped to Total.
func (p DisplayPage) Range() (first, last int) {
	first = min((p.Number-1)*p.Size+1, p.Total)
	last = min(p.Number*p.Size, p.Total)
	return first, last
}

// TotalPages returns ceil(n/size), or 0 for an empty set.
func TotalPages(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// Slice returns page number page of arranged. Pages beyond the end, and
// page numbers below 1, are empty.
func Slice(arranged []event.Event, page, size int) []event.Event {
	if page < 1 || size <= 0 {
		return []event.Event{}
	}
	start := (page - 1) * size
	if start >= len(arranged) {
		return []event.Event{}
	}
	end := min(start+size, len(arranged))
	return slices.Clone(arranged[start:end])
}

// Paginator arranges filtered sets and cuts them into pages.
//
// Safe for concurrent use; the random source is guarded by a mutex.
type Paginator struct {
	size int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPaginator creates a paginator with the given page size (DefaultPageSize
// if size < 1). A nil src seeds a PCG source from the runtime's random state.
func NewPaginator(size int, src rand.Source) *Paginator {
	if size < 1 {
		size = DefaultPageSize
	}
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Paginator{size: size, rng: rand.New(src)}
}

// PageSize returns the configured page size.
func (p *Paginator) PageSize() int {
	return p.size
}

// Arrange returns a uniformly shuffled copy of filtered, re-sorted by
// ascending date. Only events sharing a date keep a random relative order.
func (p *Paginator) Arrange(filtered []event.Event) []event.Event {
	out := p.shuffled(filtered)
	slices.SortStableFunc(out, CompareDates)
	return out
}

// Paginate arranges filtered afresh and returns the requested page.
func (p *Paginator) Paginate(filtered []event.Event, page int) DisplayPage {
	return p.PageOf(p.Arrange(filtered), page)
}

// PageOf slices an existing arrangement without reshuffling.
func (p *Paginator) PageOf(arranged []event.Event, page int) DisplayPage {
	return DisplayPage{
		Number:     page,
		Size:       p.size,
		TotalPages: TotalPages(len(arranged), p.size),
		Total:      len(arranged),
		Visible:    Slice(arranged, page, p.size),
	}
}

// Featured samples up to count events for the home screen. Sets no larger
// than count are returned whole; larger sets are shuffled and the first
// count taken. Either way the result is sorted by ascending date.
func (p *Paginator) Featured(filtered []event.Event, count int) []event.Event {
	if count < 0 {
		count = 0
	}
	var out []event.Event
	if len(filtered) <= count {
		out = append([]event.Event{}, filtered...)
	} else {
		out = p.shuffled(filtered)[:count]
	}
	slices.SortStableFunc(out, CompareDates)
	return out
}

// shuffled returns a Fisher-Yates shuffled copy of in.
func (p *Paginator) shuffled(in []event.Event) []event.Event {
	out := slices.Clone(in)
	if out == nil {
		out = []event.Event{}
	}
	p.mu.Lock()
	p.rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	p.mu.Unlock()
	return out
}
