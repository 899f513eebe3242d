package event

import (
	"strings"
	"time"
)

// Stored field names of a message document.
const (
	FieldText     = "text"
	FieldUserID   = "userId"
	FieldUserName = "userName"
)

// Message is one chat line in an event's room. CreatedAt is assigned by the
// store and is the only ordering key.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	CreatedAt time.Time `json:"createdAt"`
}

// MessageFromFields decodes a stored message document. A timestamp the store
// has not resolved yet decodes as the zero time.
func MessageFromFields(id string, fields map[string]any) Message {
	msg := Message{
		ID:       id,
		Text:     stringField(fields, FieldText),
		UserID:   stringField(fields, FieldUserID),
		UserName: stringField(fields, FieldUserName),
	}
	switch v := fields[FieldCreatedAt].(type) {
	case time.Time:
		msg.CreatedAt = v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			msg.CreatedAt = t
		}
	}
	return msg
}

// Author returns the label shown next to the message for the given viewer.
func (m Message) Author(viewer *Session) string {
	if viewer != nil && m.UserID != "" && m.UserID == viewer.ID {
		return "You"
	}
	if m.UserName != "" {
		return m.UserName
	}
	return "Anonymous"
}

// NormalizeMessageText trims the text and rejects blank input.
func NormalizeMessageText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", InvalidInput("send message", "message text is empty")
	}
	return text, nil
}
