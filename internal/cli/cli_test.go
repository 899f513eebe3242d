package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eventroom/internal/backend"
	"github.com/roach88/eventroom/internal/config"
	"github.com/roach88/eventroom/internal/event"
	"github.com/roach88/eventroom/internal/store"
)

// cliEnv is a config directory with its own database and session file.
type cliEnv struct {
	t      *testing.T
	dir    string
	config string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.JWTSecret = "test-secret"
	cfg.BcryptCost = 4
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, config.Save(path, cfg))
	return &cliEnv{t: t, dir: dir, config: path}
}

type result struct {
	stdout string
	stderr string
	code   int
}

func (e *cliEnv) run(args ...string) result {
	e.t.Helper()
	var out, errOut bytes.Buffer
	code := Execute(context.Background(), append([]string{"--config", e.config}, args...), &out, &errOut)
	return result{stdout: out.String(), stderr: errOut.String(), code: code}
}

// put writes events straight into the database under their own IDs.
func (e *cliEnv) put(events ...event.Event) {
	e.t.Helper()
	st, err := store.Open(filepath.Join(e.dir, config.DefaultDatabase))
	require.NoError(e.t, err)
	defer st.Close()
	for _, ev := range events {
		require.NoError(e.t, st.Set(context.Background(), backend.Doc(event.CollectionEvents, ev.ID), ev.Fields(), false))
	}
}

func sampleEvents() []event.Event {
	mk := func(id, title, location string, c event.Category, date string) event.Event {
		return event.Event{ID: id, Title: title, Location: location, Category: c, Date: date, RegisteredUsers: []string{}}
	}
	return []event.Event{
		mk("e1", "Jazz Night", "Lagos", event.CategoryMusic, "2025-08-01"),
		mk("e2", "Tech Talk", "Abuja", event.CategoryTech, "2025-07-01"),
		mk("e3", "Morning Run", "Ikoyi", event.CategorySports, "2025-07-05"),
		mk("e4", "Board Games", "Yaba", event.CategorySocial, "2025-09-20"),
		mk("e5", "Afrobeat Live", "Lekki", event.CategoryMusic, "2025-07-12"),
		mk("e6", "Go Meetup", "Abuja", event.CategoryTech, "2025-08-15"),
		mk("e7", "Derby Screening", "Surulere", event.CategorySports, "2025-09-14"),
		mk("e8", "Open Mic", "Lagos", event.CategoryMusic, "2025-07-20"),
	}
}

func TestEvents_Golden(t *testing.T) {
	env := newCLIEnv(t)
	env.put(sampleEvents()...)

	tests := []struct {
		name string
		args []string
	}{
		{"events_page1", []string{"events"}},
		{"events_page2", []string{"events", "--page", "2"}},
		{"events_music_by_title", []string{"events", "--category", "Music", "--sort", "title"}},
		{"events_search_lagos", []string{"events", "--search", "LAGOS"}},
		{"events_empty", []string{"events", "--category", "Social", "--search", "jazz"}},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := env.run(tt.args...)
			require.Equal(t, ExitSuccess, res.code, res.stdout+res.stderr)
			g.Assert(t, tt.name, []byte(res.stdout))
		})
	}
}

func TestEvents_PageOutOfRange(t *testing.T) {
	env := newCLIEnv(t)
	env.put(sampleEvents()...)

	res := env.run("events", "--page", "3")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stdout, "Error [INVALID_INPUT]")
}

func TestEvents_JSON(t *testing.T) {
	env := newCLIEnv(t)
	env.put(sampleEvents()...)

	res := env.run("--format", "json", "events", "--category", "Tech")
	require.Equal(t, ExitSuccess, res.code)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			State string `json:"state"`
			Page  struct {
				Total      int `json:"total"`
				TotalPages int `json:"totalPages"`
			} `json:"page"`
			Cards []struct {
				Event  event.Event `json:"event"`
				Access string      `json:"access"`
			} `json:"cards"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "loaded", resp.Data.State)
	assert.Equal(t, 2, resp.Data.Page.Total)
	require.Len(t, resp.Data.Cards, 2)
	assert.Equal(t, "e2", resp.Data.Cards[0].Event.ID)
	assert.Equal(t, "unauthenticated", resp.Data.Cards[0].Access)
}

func TestHome(t *testing.T) {
	env := newCLIEnv(t)
	env.put(sampleEvents()...)

	res := env.run("home")
	require.Equal(t, ExitSuccess, res.code)
	assert.Contains(t, res.stdout, "Featured events (6 of 8)")
	assert.Contains(t, res.stdout, "More events: eventroom events")

	res = env.run("home", "--category", "Music")
	require.Equal(t, ExitSuccess, res.code)
	assert.Contains(t, res.stdout, "Featured events (3 of 3)")
	assert.NotContains(t, res.stdout, "More events")
}

func TestAccountAndRoomFlow(t *testing.T) {
	env := newCLIEnv(t)

	res := env.run("whoami")
	require.Equal(t, ExitSuccess, res.code)
	assert.Equal(t, "Not signed in.\n", res.stdout)

	res = env.run("create", "--title", "Jazz Night", "--location", "Lagos", "--date", "2025-08-01")
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stdout, "Error [UNAUTHENTICATED]")

	res = env.run("signup", "--email", "alice@example.com", "--password", "secret1", "--name", "Alice")
	require.Equal(t, ExitSuccess, res.code, res.stdout)
	assert.Equal(t, "Signed up as Alice <alice@example.com>\n", res.stdout)

	res = env.run("whoami")
	assert.Equal(t, "Alice <alice@example.com>\n", res.stdout)

	res = env.run("create", "--location", "Lagos", "--date", "2025-08-01")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stdout, "title is required")

	res = env.run("--format", "json", "create", "--title", "Jazz Night", "--location", "Lagos", "--date", "2025-08-01")
	require.Equal(t, ExitSuccess, res.code, res.stdout)
	var created struct {
		Data event.Event `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &created))
	id := created.Data.ID
	require.NotEmpty(t, id)
	assert.Equal(t, event.CategoryMusic, created.Data.Category)
	assert.Len(t, created.Data.RegisteredUsers, 1, "creator is registered")

	res = env.run("chat", id, "--send", "hello")
	require.Equal(t, ExitSuccess, res.code, res.stdout)
	assert.Equal(t, "You: hello\n", res.stdout)

	res = env.run("logout")
	require.Equal(t, ExitSuccess, res.code)

	res = env.run("chat", id)
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stdout, "Error [UNAUTHENTICATED]")

	res = env.run("signup", "--email", "bob@example.com", "--password", "secret2", "--name", "Bob")
	require.Equal(t, ExitSuccess, res.code)

	res = env.run("chat", id)
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stdout, "Error [NOT_REGISTERED]")

	res = env.run("show", id)
	require.Equal(t, ExitSuccess, res.code)
	assert.Contains(t, res.stdout, "Register to join the chat: eventroom register "+id)
	assert.NotContains(t, res.stdout, "hello")

	res = env.run("register", id)
	require.Equal(t, ExitSuccess, res.code, res.stdout)
	assert.Contains(t, res.stdout, "Registered for Jazz Night.")

	res = env.run("register", id)
	require.Equal(t, ExitSuccess, res.code)
	assert.Equal(t, "Already registered for Jazz Night.\n", res.stdout)

	res = env.run("show", id)
	require.Equal(t, ExitSuccess, res.code)
	assert.Contains(t, res.stdout, "registered: 2")
	assert.Contains(t, res.stdout, "You are registered.")
	assert.Contains(t, res.stdout, "Alice: hello")

	res = env.run("events")
	require.Equal(t, ExitSuccess, res.code)
	assert.Contains(t, res.stdout, "registered")
}

func TestShow_NotFound(t *testing.T) {
	env := newCLIEnv(t)

	res := env.run("show", "missing")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stdout, "Error [NOT_FOUND]")
}

func TestLogin(t *testing.T) {
	env := newCLIEnv(t)
	require.Equal(t, ExitSuccess, env.run("signup", "--email", "alice@example.com", "--password", "secret1").code)
	require.Equal(t, ExitSuccess, env.run("logout").code)

	res := env.run("login", "--email", "alice@example.com", "--password", "wrong-one")
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stdout, "Error [UNAUTHENTICATED]")

	res = env.run("login", "--email", "ALICE@example.com", "--password", "secret1")
	require.Equal(t, ExitSuccess, res.code, res.stdout)
	assert.Equal(t, "Signed in as alice@example.com <alice@example.com>\n", res.stdout)
}

func TestProfile(t *testing.T) {
	env := newCLIEnv(t)

	res := env.run("profile")
	assert.Equal(t, ExitFailure, res.code)

	require.Equal(t, ExitSuccess, env.run("signup", "--email", "alice@example.com", "--password", "secret1").code)

	res = env.run("profile")
	require.Equal(t, ExitSuccess, res.code)
	assert.Contains(t, res.stdout, "No profile yet.")

	res = env.run("profile", "--bio", "Drummer", "--interests", "jazz, go,")
	require.Equal(t, ExitSuccess, res.code, res.stdout)
	assert.Contains(t, res.stdout, "bio:       Drummer")
	assert.Contains(t, res.stdout, "interests: jazz, go")

	res = env.run("profile", "--interests", "chess")
	require.Equal(t, ExitSuccess, res.code)
	assert.Contains(t, res.stdout, "bio:       Drummer", "unchanged fields survive")
	assert.Contains(t, res.stdout, "interests: chess")
}

func TestSeed(t *testing.T) {
	env := newCLIEnv(t)
	file := filepath.Join("..", "seed", "testdata", "events.yaml")

	res := env.run("seed", file)
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stdout, "Error [UNAUTHENTICATED]")

	require.Equal(t, ExitSuccess, env.run("signup", "--email", "alice@example.com", "--password", "secret1").code)

	res = env.run("seed", filepath.Join("..", "seed", "testdata", "invalid.yaml"))
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stdout, "Error [INVALID_INPUT]")

	res = env.run("seed", file)
	require.Equal(t, ExitSuccess, res.code, res.stdout)
	assert.Contains(t, res.stdout, "Imported 3 events")

	res = env.run("events")
	require.Equal(t, ExitSuccess, res.code)
	assert.Contains(t, res.stdout, "of 3 (page 1 of 1)")
	assert.Contains(t, res.stdout, "Jazz Night")
}

func TestEvents_UnknownSortKey(t *testing.T) {
	env := newCLIEnv(t)
	env.put(sampleEvents()...)

	res := env.run("events", "--sort", "popularity")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stdout, "Error [INVALID_INPUT]")
	assert.Contains(t, res.stdout, `unknown sort key "popularity"`)
}

func TestVerbose_ReportsConfigAndDatabase(t *testing.T) {
	env := newCLIEnv(t)

	res := env.run("-v", "whoami")
	require.Equal(t, ExitSuccess, res.code, res.stdout+res.stderr)
	assert.Contains(t, res.stderr, "using config "+env.config)
	assert.Contains(t, res.stderr, "database "+filepath.Join(env.dir, config.DefaultDatabase))
	assert.Contains(t, res.stderr, "polling for other writers")
	assert.NotContains(t, res.stdout, "using config")

	res = env.run("whoami")
	require.Equal(t, ExitSuccess, res.code)
	assert.NotContains(t, res.stderr, "using config")
}

func TestInvalidFormat(t *testing.T) {
	env := newCLIEnv(t)

	res := env.run("--format", "xml", "whoami")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "invalid format")
}

func TestBadConfig(t *testing.T) {
	var out, errOut bytes.Buffer
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, config.Save(path, &config.Config{JWTSecret: "s", Locale: "not a locale!"}))

	code := Execute(context.Background(), []string{"--config", path, "whoami"}, &out, &errOut)
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, out.String(), "Error [INVALID_INPUT]")
}
