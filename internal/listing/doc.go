// Package listing reduces a snapshot of events to what a screen shows.
//
// Reduction happens in two stages. Engine.Reduce applies the category and
// free-text predicates and sorts deterministically. Paginator then arranges
// the filtered set (a uniform shuffle followed by a stable ascending date
// sort, so only same-date ties end up in random relative order) and slices
// bounded pages out of the arrangement.
//
// View and HomeView hold the per-screen state: the current query, page
// number and arrangement. A View keeps one arrangement per filtered set so
// that walking pages 1..TotalPages visits every filtered event exactly once.
package listing
