package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFields_Complete(t *testing.T) {
	ev := FromFields("ev-1", map[string]any{
		"title":           "Jazz Night",
		"location":        "Lagos",
		"date":            "2025-08-01",
		"time":            "19:00",
		"category":        "Music",
		"description":     "Live band",
		"createdAt":       "2025-07-01T10:00:00Z",
		"createdBy":       "u1",
		"registeredUsers": []any{"u1", "u2", "u1"},
	})

	assert.Equal(t, "ev-1", ev.ID)
	assert.Equal(t, "Jazz Night", ev.Title)
	assert.Equal(t, CategoryMusic, ev.Category)
	assert.Equal(t, []string{"u1", "u2"}, ev.RegisteredUsers, "duplicates collapse")
	assert.False(t, ev.Degenerate())
}

func TestFromFields_MissingAndWrongTypes(t *testing.T) {
	ev := FromFields("ev-2", map[string]any{
		"title":           42,
		"registeredUsers": "u1",
	})

	assert.Equal(t, "", ev.Title)
	assert.Equal(t, "", ev.Location)
	assert.Empty(t, ev.RegisteredUsers)
	assert.True(t, ev.Degenerate())
}

func TestEvent_DegenerateOnBadDate(t *testing.T) {
	ev := Event{Title: "a", Location: "b", Date: "someday"}
	assert.True(t, ev.Degenerate())

	_, ok := ev.ParsedDate()
	assert.False(t, ok)
}

func TestParseDate_Layouts(t *testing.T) {
	want := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2025-08-01", " 2025-08-01 ", "08/01/2025", "August 1, 2025", "Aug 1, 2025"} {
		got, ok := ParseDate(in)
		require.True(t, ok, in)
		assert.True(t, want.Equal(got), in)
	}

	_, ok := ParseDate("")
	assert.False(t, ok)
}

func TestEvent_IsRegistered(t *testing.T) {
	ev := Event{RegisteredUsers: []string{"u1"}}
	assert.True(t, ev.IsRegistered("u1"))
	assert.False(t, ev.IsRegistered("u2"))
	assert.False(t, ev.IsRegistered(""))
}

func TestEvent_FieldsRoundTrip(t *testing.T) {
	ev := Event{
		ID:              "ignored",
		Title:           "Tech Talk",
		Location:        "Abuja",
		Date:            "2025-07-01",
		Category:        CategoryTech,
		CreatedAt:       "2025-06-01T00:00:00Z",
		CreatedBy:       "u9",
		RegisteredUsers: []string{"u9"},
	}

	fields := ev.Fields()
	assert.NotContains(t, fields, "description", "empty optional fields are omitted")

	back := FromFields("ev-3", fields)
	ev.ID = "ev-3"
	assert.Equal(t, ev, back)
}

func TestDraft_Validate(t *testing.T) {
	tests := []struct {
		name    string
		draft   Draft
		wantErr string
	}{
		{"ok", Draft{Title: "t", Location: "l", Date: "2025-01-01", Category: CategorySocial}, ""},
		{"default category", Draft{Title: "t", Location: "l", Date: "2025-01-01"}, ""},
		{"blank title", Draft{Title: "  ", Location: "l", Date: "2025-01-01"}, "title is required"},
		{"no location", Draft{Title: "t", Date: "2025-01-01"}, "location is required"},
		{"no date", Draft{Title: "t", Location: "l"}, "date is required"},
		{"bad category", Draft{Title: "t", Location: "l", Date: "d", Category: "music"}, "unknown category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.draft
			err := d.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.True(t, d.Category.Valid())
				return
			}
			require.Error(t, err)
			assert.True(t, IsCode(err, ErrCodeInvalidInput))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewEvent_AutoRegistersCreator(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ev := NewEvent(Draft{Title: "t", Location: "l", Date: "2025-01-01", Category: CategoryTech}, "u1", at)

	assert.Equal(t, "u1", ev.CreatedBy)
	assert.Equal(t, []string{"u1"}, ev.RegisteredUsers)
	assert.Equal(t, "2025-06-01T12:00:00Z", ev.CreatedAt)
}

func TestMessage_Author(t *testing.T) {
	me := &Session{ID: "u1", Email: "me@example.com"}
	assert.Equal(t, "You", Message{UserID: "u1", UserName: "Me"}.Author(me))
	assert.Equal(t, "Ada", Message{UserID: "u2", UserName: "Ada"}.Author(me))
	assert.Equal(t, "Anonymous", Message{}.Author(nil))
}

func TestMessageFromFields_Timestamp(t *testing.T) {
	msg := MessageFromFields("m1", map[string]any{
		"text":      "hi",
		"userId":    "u1",
		"userName":  "Ada",
		"createdAt": "2025-07-01T10:00:00.000000001Z",
	})
	assert.Equal(t, 1, msg.CreatedAt.Nanosecond())

	pending := MessageFromFields("m2", map[string]any{"text": "hi"})
	assert.True(t, pending.CreatedAt.IsZero())
}

func TestNormalizeMessageText(t *testing.T) {
	text, err := NormalizeMessageText("  hello ")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	_, err = NormalizeMessageText("   ")
	assert.True(t, IsCode(err, ErrCodeInvalidInput))
}

func TestSession_NameAndSignedIn(t *testing.T) {
	var anon *Session
	assert.False(t, anon.SignedIn())
	assert.Equal(t, "", anon.Name())

	s := &Session{ID: "u1", Email: "a@b.c"}
	assert.True(t, s.SignedIn())
	assert.Equal(t, "a@b.c", s.Name())
	s.DisplayName = "Ada"
	assert.Equal(t, "Ada", s.Name())
}
