// Package orchestrator coordinates reads, live subscriptions and writes
// against the backend capabilities, and composes the listing engine,
// paginator and registration gate into the state each screen renders.
//
// Every I/O failure is converted into screen state or a categorized
// *event.Error at the call site; nothing is retried automatically.
//
// Live subscriptions follow one lifecycle: Idle until Start, Subscribed
// until Close (or until the underlying stream ends), then Unsubscribed for
// good. A new subscription is a new value.
package orchestrator
