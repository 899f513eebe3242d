// Package profile loads and saves the viewer's profile document.
package profile

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/eventroom/internal/backend"
	"github.com/roach88/eventroom/internal/event"
)

// Stored field names of a profile document.
const (
	FieldEmail       = "email"
	FieldBio         = "bio"
	FieldInterests   = "interests"
	FieldLastUpdated = "lastUpdated"
	FieldUID         = "uid"
)

// Profile is a viewer's self-description.
type Profile struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	Bio         string    `json:"bio"`
	Interests   []string  `json:"interests"`
	LastUpdated time.Time `json:"lastUpdated,omitzero"`
	// Exists is false when nothing has been saved yet.
	Exists bool `json:"exists"`
}

// Update is an edit. Nil fields are left unchanged.
type Update struct {
	Bio       *string
	Interests *string
}

// Service reads and writes profiles.
type Service struct {
	reader backend.Reader
	writer backend.Writer
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock for lastUpdated.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a profile service.
func New(r backend.Reader, w backend.Writer, opts ...Option) *Service {
	s := &Service{reader: r, writer: w, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the viewer's profile. A profile never saved comes back
// empty with Exists false and the session's email.
func (s *Service) Load(ctx context.Context, viewer *event.Session) (Profile, error) {
	if !viewer.SignedIn() {
		return Profile{}, event.Unauthenticated("load profile")
	}
	doc, err := s.reader.Get(ctx, backend.Doc(event.CollectionProfiles, viewer.ID))
	if errors.Is(err, backend.ErrNotFound) {
		return Profile{UID: viewer.ID, Email: viewer.Email, Interests: []string{}}, nil
	}
	if err != nil {
		s.logger.Warn("load profile failed", "user", viewer.ID, "error", err)
		return Profile{}, event.FetchFailed("load profile", err)
	}
	return fromFields(viewer, doc.Fields), nil
}

// Save merges u into the stored profile and returns the result.
func (s *Service) Save(ctx context.Context, viewer *event.Session, u Update) (Profile, error) {
	if !viewer.SignedIn() {
		return Profile{}, event.Unauthenticated("save profile")
	}
	at := s.now().UTC()
	fields := map[string]any{
		FieldUID:         viewer.ID,
		FieldEmail:       viewer.Email,
		FieldLastUpdated: at.Format(time.RFC3339Nano),
	}
	if u.Bio != nil {
		fields[FieldBio] = strings.TrimSpace(*u.Bio)
	}
	if u.Interests != nil {
		list := ParseInterests(*u.Interests)
		items := make([]any, 0, len(list))
		for _, i := range list {
			items = append(items, i)
		}
		fields[FieldInterests] = items
	}
	ref := backend.Doc(event.CollectionProfiles, viewer.ID)
	if err := s.writer.Set(ctx, ref, fields, true); err != nil {
		s.logger.Warn("save profile failed", "user", viewer.ID, "error", err)
		return Profile{}, event.WriteFailed("save profile", err)
	}
	return s.Load(ctx, viewer)
}

// ParseInterests splits comma-separated input, trimming entries and
// dropping blanks.
func ParseInterests(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func fromFields(viewer *event.Session, fields map[string]any) Profile {
	p := Profile{UID: viewer.ID, Exists: true, Interests: []string{}}
	p.Email, _ = fields[FieldEmail].(string)
	if p.Email == "" {
		p.Email = viewer.Email
	}
	p.Bio, _ = fields[FieldBio].(string)
	if items, ok := fields[FieldInterests].([]any); ok {
		for _, item := range items {
			if s, ok := item.(string); ok {
				p.Interests = append(p.Interests, s)
			}
		}
	}
	if ts, ok := fields[FieldLastUpdated].(string); ok {
		p.LastUpdated, _ = time.Parse(time.RFC3339Nano, ts)
	}
	return p
}
