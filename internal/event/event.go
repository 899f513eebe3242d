package event

import (
	"slices"
	"strings"
	"time"
)

// Stored field names of an event document.
const (
	FieldTitle           = "title"
	FieldLocation        = "location"
	FieldDate            = "date"
	FieldTime            = "time"
	FieldCategory        = "category"
	FieldDescription     = "description"
	FieldCreatedAt       = "createdAt"
	FieldCreatedBy       = "createdBy"
	FieldRegisteredUsers = "registeredUsers"
)

// Collection names used by the client.
const (
	CollectionEvents        = "events"
	SubcollectionMessages   = "messages"
	SubcollectionRegistered = "registrations"
	CollectionProfiles      = "profiles"
)

// Event is one occasion users can discover and join.
//
// ID is assigned by the store and never changes. RegisteredUsers only grows.
type Event struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Location        string   `json:"location"`
	Date            string   `json:"date"`
	Time            string   `json:"time,omitempty"`
	Category        Category `json:"category"`
	Description     string   `json:"description,omitempty"`
	CreatedAt       string   `json:"createdAt,omitempty"`
	CreatedBy       string   `json:"createdBy,omitempty"`
	RegisteredUsers []string `json:"registeredUsers"`
}

// ParsedDate returns the event's calendar date. ok is false when the stored
// date is missing or malformed.
func (e Event) ParsedDate() (time.Time, bool) {
	return ParseDate(e.Date)
}

// Degenerate reports whether the record is missing a field the listing
// relies on, or carries a date that does not parse.
func (e Event) Degenerate() bool {
	if e.Title == "" || e.Location == "" {
		return true
	}
	_, ok := e.ParsedDate()
	return !ok
}

// IsRegistered reports whether userID is in the registered set.
func (e Event) IsRegistered(userID string) bool {
	if userID == "" {
		return false
	}
	return slices.Contains(e.RegisteredUsers, userID)
}

// FromFields decodes a stored event document. Fields of the wrong type are
// treated as missing, and duplicate registrations collapse to one.
func FromFields(id string, fields map[string]any) Event {
	ev := Event{
		ID:          id,
		Title:       stringField(fields, FieldTitle),
		Location:    stringField(fields, FieldLocation),
		Date:        stringField(fields, FieldDate),
		Time:        stringField(fields, FieldTime),
		Category:    Category(stringField(fields, FieldCategory)),
		Description: stringField(fields, FieldDescription),
		CreatedAt:   stringField(fields, FieldCreatedAt),
		CreatedBy:   stringField(fields, FieldCreatedBy),
	}
	ev.RegisteredUsers = uniqueStrings(stringsField(fields, FieldRegisteredUsers))
	return ev
}

// Fields encodes the event into its stored shape. The ID is not part of the
// document body.
func (e Event) Fields() map[string]any {
	users := make([]any, 0, len(e.RegisteredUsers))
	for _, u := range e.RegisteredUsers {
		users = append(users, u)
	}
	fields := map[string]any{
		FieldTitle:           e.Title,
		FieldLocation:        e.Location,
		FieldDate:            e.Date,
		FieldCategory:        string(e.Category),
		FieldCreatedAt:       e.CreatedAt,
		FieldCreatedBy:       e.CreatedBy,
		FieldRegisteredUsers: users,
	}
	if e.Time != "" {
		fields[FieldTime] = e.Time
	}
	if e.Description != "" {
		fields[FieldDescription] = e.Description
	}
	return fields
}

// Draft holds the user-supplied fields of a new event.
type Draft struct {
	Title       string   `json:"title" yaml:"title"`
	Location    string   `json:"location" yaml:"location"`
	Date        string   `json:"date" yaml:"date"`
	Time        string   `json:"time,omitempty" yaml:"time,omitempty"`
	Category    Category `json:"category" yaml:"category"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// Validate checks the draft and fills the default category.
func (d *Draft) Validate() error {
	d.Title = strings.TrimSpace(d.Title)
	d.Location = strings.TrimSpace(d.Location)
	d.Date = strings.TrimSpace(d.Date)
	switch {
	case d.Title == "":
		return InvalidInput("create event", "title is required")
	case d.Location == "":
		return InvalidInput("create event", "location is required")
	case d.Date == "":
		return InvalidInput("create event", "date is required")
	}
	if d.Category == "" {
		d.Category = CategoryMusic
	}
	if !d.Category.Valid() {
		return InvalidInput("create event", "unknown category "+string(d.Category))
	}
	return nil
}

// NewEvent builds the record for a validated draft created by creatorID at
// the given instant. The creator is the first registered viewer.
func NewEvent(d Draft, creatorID string, at time.Time) Event {
	return Event{
		Title:           d.Title,
		Location:        d.Location,
		Date:            d.Date,
		Time:            d.Time,
		Category:        d.Category,
		Description:     d.Description,
		CreatedAt:       at.UTC().Format(time.RFC3339Nano),
		CreatedBy:       creatorID,
		RegisteredUsers: []string{creatorID},
	}
}

func stringField(fields map[string]any, name string) string {
	s, _ := fields[name].(string)
	return s
}

func stringsField(fields map[string]any, name string) []string {
	switch v := fields[name].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func uniqueStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
