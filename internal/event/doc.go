// Package event defines the records the client works with: events, their
// chat messages, registration entries and the viewer session.
//
// Records arrive from the document store as loosely typed field maps and may
// be missing fields. Decoding never fails on a missing or malformed field.
// Instead the affected record reports Degenerate() and the listing code
// places it at a fixed position:
//   - missing text (title, location) sorts as the empty string
//   - a missing or unparseable date sorts before every valid date
//
// The error taxonomy shared by the gate and the orchestrator lives in
// errors.go.
package event
