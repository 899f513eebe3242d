package event

import "time"

// Session is the signed-in viewer. A nil *Session is an anonymous viewer.
//
// The core only reads sessions; they are produced by the auth collaborator.
type Session struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// SignedIn reports whether s represents an authenticated viewer.
func (s *Session) SignedIn() bool {
	return s != nil && s.ID != ""
}

// Name returns the display name, falling back to the email.
func (s *Session) Name() string {
	if s == nil {
		return ""
	}
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Email
}

// Registration is the entry recorded when a viewer registers for an event.
type Registration struct {
	UserID       string    `json:"userId"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// Fields encodes the registration entry into its stored shape.
func (r Registration) Fields() map[string]any {
	return map[string]any{
		FieldUserID:    r.UserID,
		"name":         r.Name,
		"email":        r.Email,
		"registeredAt": r.RegisteredAt.UTC().Format(time.RFC3339Nano),
	}
}
