package listing

import (
	"fmt"

	"github.com/roach88/eventroom/internal/event"
)

// View is the state of the full event listing: the snapshot, the active
// query, the current page and the arrangement that pages are cut from.
//
// Any change to the snapshot or the query re-filters, re-arranges and resets
// the page to 1. Moving between pages re-slices the current arrangement.
// View is not safe for concurrent use.
type View struct {
	engine *Engine
	pager  *Paginator

	all      []event.Event
	query    Query
	page     int
	filtered []event.Event
	arranged []event.Event
}

// NewView creates an empty view with the default query.
func NewView(engine *Engine, pager *Paginator) *View {
	v := &View{
		engine: engine,
		pager:  pager,
		query:  DefaultQuery(),
	}
	v.recompute()
	return v
}

// SetEvents replaces the snapshot.
func (v *View) SetEvents(all []event.Event) {
	v.all = all
	v.recompute()
}

// SetQuery replaces the whole query.
func (v *View) SetQuery(q Query) {
	if q.Category == "" {
		q.Category = event.CategoryAll
	}
	if q.Sort == "" {
		q.Sort = SortDate
	}
	v.query = q
	v.recompute()
}

// SetCategory changes the category filter.
func (v *View) SetCategory(category string) {
	q := v.query
	q.Category = category
	v.SetQuery(q)
}

// SetSearch changes the search text.
func (v *View) SetSearch(search string) {
	q := v.query
	q.Search = search
	v.SetQuery(q)
}

// SetSort changes the sort key.
func (v *View) SetSort(key SortKey) {
	q := v.query
	q.Sort = key
	v.SetQuery(q)
}

// ClearFilters resets category and search, keeping the sort key.
func (v *View) ClearFilters() {
	v.SetQuery(Query{Category: event.CategoryAll, Sort: v.query.Sort})
}

// Filtering reports whether a category or search filter is active.
func (v *View) Filtering() bool {
	return v.query.Search != "" || v.query.Category != event.CategoryAll
}

// Query returns the active query.
func (v *View) Query() Query {
	return v.query
}

// Filtered returns the filtered, sorted set.
func (v *View) Filtered() []event.Event {
	return v.filtered
}

// TotalPages returns the page count of the filtered set.
func (v *View) TotalPages() int {
	return TotalPages(len(v.filtered), v.pager.PageSize())
}

// GoTo moves to page n. Pages outside [1, TotalPages] are rejected, except
// page 1 of an empty set.
func (v *View) GoTo(n int) error {
	total := v.TotalPages()
	if n == 1 || (n >= 1 && n <= total) {
		v.page = n
		return nil
	}
	return event.InvalidInput("go to page", fmt.Sprintf("page %d outside 1..%d", n, total))
}

// Next advances one page. It returns false at the last page.
func (v *View) Next() bool {
	if v.page >= v.TotalPages() {
		return false
	}
	v.page++
	return true
}

// Prev goes back one page. It returns false at the first page.
func (v *View) Prev() bool {
	if v.page <= 1 {
		return false
	}
	v.page--
	return true
}

// Page returns the current page.
func (v *View) Page() DisplayPage {
	return v.pager.PageOf(v.arranged, v.page)
}

func (v *View) recompute() {
	v.filtered = v.engine.Reduce(v.all, v.query)
	v.arranged = v.pager.Arrange(v.filtered)
	v.page = 1
}

// HomeView is the home screen: a category and search filter over the
// snapshot and a small date-sorted random sample of the matches.
type HomeView struct {
	engine *Engine
	pager  *Paginator
	count  int

	all      []event.Event
	category string
	search   string
	filtered []event.Event
	featured []event.Event
}

// NewHomeView creates a home view that features up to count events.
func NewHomeView(engine *Engine, pager *Paginator, count int) *HomeView {
	h := &HomeView{engine: engine, pager: pager, count: count, category: event.CategoryAll}
	h.resample()
	return h
}

// SetEvents replaces the snapshot and draws a new sample.
func (h *HomeView) SetEvents(all []event.Event) {
	h.all = all
	h.resample()
}

// Filter changes category and search and draws a new sample.
func (h *HomeView) Filter(category, search string) {
	if category == "" {
		category = event.CategoryAll
	}
	h.category = category
	h.search = search
	h.resample()
}

// Featured returns the current sample.
func (h *HomeView) Featured() []event.Event {
	return h.featured
}

// Total returns the number of events matching the filter.
func (h *HomeView) Total() int {
	return len(h.filtered)
}

// HasMore reports whether matches exist beyond the sample.
func (h *HomeView) HasMore() bool {
	return len(h.filtered) > len(h.featured)
}

func (h *HomeView) resample() {
	// The home screen does not sort; the sample is date-ordered anyway.
	h.filtered = h.engine.Reduce(h.all, Query{Category: h.category, Search: h.search, Sort: SortDate})
	h.featured = h.pager.Featured(h.filtered, h.count)
}
