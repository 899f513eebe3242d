package cli

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/roach88/eventroom/internal/event"
	"github.com/roach88/eventroom/internal/gate"
	"github.com/roach88/eventroom/internal/orchestrator"
	"github.com/roach88/eventroom/internal/profile"
)

func writeListing(w io.Writer, p orchestrator.ListingPage) error {
	q := p.Query
	header := "Events (category: " + q.Category
	if q.Search != "" {
		header += fmt.Sprintf(", search: %q", q.Search)
	}
	header += ", sort: " + string(q.Sort) + ")"
	fmt.Fprintln(w, header)

	if p.Page.Total == 0 {
		_, err := fmt.Fprintln(w, "No events match.")
		return err
	}
	first, last := p.Page.Range()
	fmt.Fprintf(w, "Showing %d-%d of %d (page %d of %d)\n\n", first, last, p.Page.Total, p.Page.Number, p.Page.TotalPages)
	return writeCards(w, p.Cards)
}

func writeHome(w io.Writer, p orchestrator.HomePage) error {
	fmt.Fprintf(w, "Featured events (%d of %d)\n", len(p.Featured), p.Total)
	if len(p.Featured) == 0 {
		_, err := fmt.Fprintln(w, "No events match.")
		return err
	}
	fmt.Fprintln(w)
	if err := writeCards(w, p.Featured); err != nil {
		return err
	}
	if p.HasMore {
		fmt.Fprintln(w, "\nMore events: eventroom events")
	}
	return nil
}

// writeCards prints an aligned table. Trailing padding is trimmed so empty
// status cells leave no whitespace.
func writeCards(w io.Writer, cards []orchestrator.Card) error {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTITLE\tLOCATION\tCATEGORY\tSTATUS")
	for _, c := range cards {
		ev := c.Event
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", ev.ID, ev.Date, ev.Title, ev.Location, ev.Category, cardStatus(c))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for line := range strings.Lines(buf.String()) {
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " \n")); err != nil {
			return err
		}
	}
	return nil
}

func cardStatus(c orchestrator.Card) string {
	switch {
	case c.Registering:
		return "registering"
	case c.Registered:
		return "registered"
	default:
		return ""
	}
}

func writeEvent(w io.Writer, ev event.Event) {
	fmt.Fprintln(w, ev.Title)
	when := ev.Date
	if ev.Time != "" {
		when += " " + ev.Time
	}
	fmt.Fprintf(w, "  id:         %s\n", ev.ID)
	fmt.Fprintf(w, "  when:       %s\n", when)
	fmt.Fprintf(w, "  where:      %s\n", ev.Location)
	fmt.Fprintf(w, "  category:   %s\n", ev.Category)
	fmt.Fprintf(w, "  registered: %d\n", len(ev.RegisteredUsers))
	if ev.Description != "" {
		fmt.Fprintf(w, "\n%s\n", ev.Description)
	}
}

func writeRoom(w io.Writer, st orchestrator.RoomState) error {
	writeEvent(w, st.Event)
	fmt.Fprintln(w)
	switch {
	case st.Registering:
		fmt.Fprintln(w, "Registration in progress.")
	case st.Access == gate.Unauthenticated:
		fmt.Fprintln(w, "Sign in to register and chat: eventroom login")
	case st.Access == gate.NotRegistered:
		fmt.Fprintf(w, "Register to join the chat: eventroom register %s\n", st.Event.ID)
	default:
		fmt.Fprintln(w, "You are registered.")
		return writeLines(w, st.Lines)
	}
	return nil
}

func writeLines(w io.Writer, lines []orchestrator.Line) error {
	if len(lines) == 0 {
		_, err := fmt.Fprintln(w, "No messages yet.")
		return err
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "%s: %s\n", l.Author, l.Text); err != nil {
			return err
		}
	}
	return nil
}

func writeSession(w io.Writer, s *event.Session) error {
	if !s.SignedIn() {
		_, err := fmt.Fprintln(w, "Not signed in.")
		return err
	}
	_, err := fmt.Fprintf(w, "%s <%s>\n", s.Name(), s.Email)
	return err
}

func writeProfile(w io.Writer, p profile.Profile) error {
	fmt.Fprintln(w, p.Email)
	if !p.Exists {
		_, err := fmt.Fprintln(w, "No profile yet. Set one with --bio and --interests.")
		return err
	}
	fmt.Fprintf(w, "  bio:       %s\n", p.Bio)
	fmt.Fprintf(w, "  interests: %s\n", strings.Join(p.Interests, ", "))
	_, err := fmt.Fprintf(w, "  updated:   %s\n", p.LastUpdated.UTC().Format("2006-01-02 15:04"))
	return err
}
