package listing

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/eventroom/internal/event"
)

// SortKey selects the ordering applied by Reduce.
type SortKey string

const (
	SortDate     SortKey = "date"
	SortTitle    SortKey = "title"
	SortLocation SortKey = "location"
)

// SortKeys lists the keys offered to users.
var SortKeys = []SortKey{SortDate, SortTitle, SortLocation}

// ParseSortKey returns the sort key named s.
func ParseSortKey(s string) (SortKey, error) {
	k := SortKey(s)
	if !slices.Contains(SortKeys, k) {
		return "", event.InvalidInput("parse sort key", fmt.Sprintf("unknown sort key %q, want one of %v", s, SortKeys))
	}
	return k, nil
}

// Query is the category, search text and sort key of a listing.
type Query struct {
	Category string  `json:"category" yaml:"category"`
	Search   string  `json:"search" yaml:"search"`
	Sort     SortKey `json:"sort" yaml:"sort"`
}

// DefaultQuery matches every event, ordered by date.
func DefaultQuery() Query {
	return Query{Category: event.CategoryAll, Sort: SortDate}
}

// Engine filters, searches and sorts event snapshots. Text ordering follows
// the collation rules of the configured language.
type Engine struct {
	tag language.Tag
}

// NewEngine creates an engine collating with the given language.
func NewEngine(tag language.Tag) *Engine {
	return &Engine{tag: tag}
}

// Reduce returns the events matching q's category and search text, sorted
// by q's key. The input slice is not modified.
//
// Title and location sorts fall back to date order for equal keys; an
// unknown sort key sorts by date. Ties that remain keep their input order.
func (e *Engine) Reduce(all []event.Event, q Query) []event.Event {
	out := make([]event.Event, 0, len(all))
	needle, searching := searchNeedle(q.Search)
	for _, ev := range all {
		if q.Category != "" && q.Category != event.CategoryAll && string(ev.Category) != q.Category {
			continue
		}
		if searching && !matches(ev, needle) {
			continue
		}
		out = append(out, ev)
	}

	// collate.Collator keeps scratch buffers and is not safe to share.
	col := collate.New(e.tag)
	switch q.Sort {
	case SortTitle:
		slices.SortStableFunc(out, func(a, b event.Event) int {
			if c := col.CompareString(a.Title, b.Title); c != 0 {
				return c
			}
			return CompareDates(a, b)
		})
	case SortLocation:
		slices.SortStableFunc(out, func(a, b event.Event) int {
			if c := col.CompareString(a.Location, b.Location); c != 0 {
				return c
			}
			return CompareDates(a, b)
		})
	default:
		slices.SortStableFunc(out, CompareDates)
	}
	return out
}

// CompareDates orders events by ascending calendar date. Events whose date
// is missing or malformed compare equal to each other and before any event
// with a valid date.
func CompareDates(a, b event.Event) int {
	da, okA := a.ParsedDate()
	db, okB := b.ParsedDate()
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return -1
	case !okB:
		return 1
	}
	return da.Compare(db)
}

// searchNeedle lowercases the search text. Blank input (after trimming)
// disables the search predicate; otherwise the untrimmed text is matched.
func searchNeedle(search string) (string, bool) {
	if strings.TrimSpace(search) == "" {
		return "", false
	}
	return fold(search), true
}

func matches(ev event.Event, needle string) bool {
	return strings.Contains(fold(ev.Title), needle) || strings.Contains(fold(ev.Location), needle)
}

// fold normalizes to NFC before lowercasing so composed and decomposed
// accents compare equal.
func fold(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

var rootEngine = NewEngine(language.Und)

// Reduce applies q to all using root collation.
func Reduce(all []event.Event, q Query) []event.Event {
	return rootEngine.Reduce(all, q)
}
