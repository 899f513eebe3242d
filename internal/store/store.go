package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/eventroom/internal/event"
	"github.com/roach88/eventroom/internal/notify"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on documents(collection, seq)
const currentSchemaVersion = 1

// Store is a SQLite-backed document store.
type Store struct {
	db       *sql.DB
	notifier notify.Notifier
	ownsNote bool
	ids      event.IDGenerator
	logger   *slog.Logger
	seq      *seqClock
	stamps   *stampClock
	poll     time.Duration
}

// DefaultPollInterval is how often live queries look for commits made by
// other connections when no shared notifier is configured.
const DefaultPollInterval = 250 * time.Millisecond

// Option configures a Store.
type Option func(*Store)

// WithNotifier shares change signals through n instead of a private
// in-process notifier. The Store does not close n.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Store) {
		s.notifier = n
		s.ownsNote = false
	}
}

// WithPollInterval sets how often live queries check for commits by other
// connections to the same database file. Zero disables polling. Polling
// only runs with the private notifier; a shared one already carries other
// writers' signals.
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) { s.poll = d }
}

// WithIDGenerator overrides document ID generation (UUIDv7 by default).
func WithIDGenerator(g event.IDGenerator) Option {
	return func(s *Store) { s.ids = g }
}

// WithClock overrides the wall clock used for server timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.stamps.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	var maxSeq int64
	if err := db.QueryRow("SELECT COALESCE(MAX(seq), 0) FROM documents").Scan(&maxSeq); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read sequence: %w", err)
	}

	s := &Store{
		db:       db,
		notifier: notify.NewLocal(),
		ownsNote: true,
		ids:      event.UUIDv7Generator{},
		logger:   slog.Default(),
		seq:      newSeqClockAt(maxSeq),
		stamps:   &stampClock{now: time.Now},
		poll:     DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection and, unless it was supplied by
// WithNotifier, the notifier. Open live queries end.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if s.ownsNote {
		s.notifier.Close()
	}
	return s.db.Close()
}

// dsn makes every transaction take the write lock when it begins, so
// sequence numbers and server timestamps are read in commit order even
// when several processes share the file.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_txlock=immediate"
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 indexes documents by insertion order within a collection.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_documents_collection_seq
		ON documents(collection, seq)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

func (s *Store) changed(ctx context.Context, collection string) {
	if err := s.notifier.Notify(ctx, collection); err != nil {
		s.logger.Warn("change signal failed", "collection", collection, "error", err)
	}
}
