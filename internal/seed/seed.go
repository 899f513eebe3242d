// Package seed imports events in bulk from a CUE or YAML file. Every
// event is checked against an embedded CUE schema before anything is
// written.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"

	"github.com/roach88/eventroom/internal/event"
)

//go:embed schema.cue
var schemaCUE string

// Problem is one schema violation.
type Problem struct {
	Path     string `json:"path"`
	Position string `json:"position,omitempty"`
	Message  string `json:"message"`
}

func (p Problem) String() string {
	var b strings.Builder
	if p.Position != "" {
		b.WriteString(p.Position)
		b.WriteString(": ")
	}
	if p.Path != "" {
		b.WriteString(p.Path)
		b.WriteString(": ")
	}
	b.WriteString(p.Message)
	return b.String()
}

// ValidationError lists every violation found in a seed file.
type ValidationError struct {
	File     string
	Problems []Problem
}

func (e *ValidationError) Error() string {
	lines := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		lines = append(lines, p.String())
	}
	return fmt.Sprintf("%s: %d problem(s): %s", e.File, len(e.Problems), strings.Join(lines, "; "))
}

// Load reads and validates a seed file (.cue, .yaml or .yml). Schema
// violations are returned as a *ValidationError wrapped in an
// ErrCodeInvalidInput error.
func Load(path string) ([]event.Draft, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &event.Error{Code: event.ErrCodeInvalidInput, Op: "read seed file", Err: err}
	}
	return Parse(path, data)
}

// Parse validates seed data. The file extension of name selects the
// format.
func Parse(name string, data []byte) ([]event.Draft, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile seed schema: %w", err)
	}

	var input cue.Value
	switch strings.ToLower(filepath.Ext(name)) {
	case ".cue":
		input = ctx.CompileBytes(data, cue.Filename(name))
	case ".yaml", ".yml":
		f, err := cueyaml.Extract(name, data)
		if err != nil {
			return nil, invalid(name, err)
		}
		input = ctx.BuildFile(f, cue.Filename(name))
	default:
		return nil, event.InvalidInput("seed", "unsupported seed format "+filepath.Ext(name)+" (want .cue, .yaml or .yml)")
	}
	if err := input.Err(); err != nil {
		return nil, invalid(name, err)
	}

	v := schema.Unify(input)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, invalid(name, err)
	}

	var drafts []event.Draft
	if err := v.LookupPath(cue.ParsePath("events")).Decode(&drafts); err != nil {
		return nil, invalid(name, err)
	}
	for i := range drafts {
		if err := drafts[i].Validate(); err != nil {
			return nil, invalid(name, fmt.Errorf("events.%d: %w", i, err))
		}
	}
	return drafts, nil
}

// Creator creates one event as the current viewer.
type Creator interface {
	CreateEvent(ctx context.Context, d event.Draft) (event.Event, error)
}

// Import creates drafts in order. On failure it returns the events
// created so far along with the error.
func Import(ctx context.Context, c Creator, drafts []event.Draft) ([]event.Event, error) {
	created := make([]event.Event, 0, len(drafts))
	for i, d := range drafts {
		ev, err := c.CreateEvent(ctx, d)
		if err != nil {
			return created, fmt.Errorf("seed event %d (%s): %w", i, d.Title, err)
		}
		created = append(created, ev)
	}
	return created, nil
}

func invalid(name string, err error) error {
	verr := &ValidationError{File: name}
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		p := Problem{
			Path:    strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
		}
		if pos := e.Position(); pos.IsValid() {
			p.Position = fmt.Sprintf("%s:%d:%d", pos.Filename(), pos.Line(), pos.Column())
		}
		verr.Problems = append(verr.Problems, p)
	}
	if len(verr.Problems) == 0 {
		verr.Problems = []Problem{{Message: err.Error()}}
	}
	return &event.Error{Code: event.ErrCodeInvalidInput, Op: "seed", Message: "seed file is invalid", Err: verr}
}
