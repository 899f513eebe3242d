package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/eventroom/internal/backend"
)

// ErrAccountExists is returned when an email is already registered.
var ErrAccountExists = errors.New("account already exists")

// Account is a stored login. Emails compare case-insensitively.
type Account struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}

// CreateAccount stores a new account and assigns its ID.
func (s *Store) CreateAccount(ctx context.Context, a Account) (Account, error) {
	a.ID = s.ids.Generate()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.stamps.Next()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, email, display_name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, a.ID, a.Email, a.DisplayName, a.PasswordHash, a.CreatedAt.UTC().Format(backend.TimestampLayout))
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
			return Account{}, fmt.Errorf("create account %s: %w", a.Email, ErrAccountExists)
		}
		return Account{}, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

// AccountByEmail looks an account up by email, ignoring case.
func (s *Store) AccountByEmail(ctx context.Context, email string) (Account, error) {
	return s.account(ctx, "email", email)
}

// AccountByID looks an account up by ID.
func (s *Store) AccountByID(ctx context.Context, id string) (Account, error) {
	return s.account(ctx, "id", id)
}

func (s *Store) account(ctx context.Context, column, value string) (Account, error) {
	var (
		a       Account
		created string
	)
	// column is one of two constants above.
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash, created_at
		FROM accounts WHERE `+column+` = ?
	`, value).Scan(&a.ID, &a.Email, &a.DisplayName, &a.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, fmt.Errorf("account %s: %w", value, backend.ErrNotFound)
	}
	if err != nil {
		return Account{}, fmt.Errorf("read account: %w", err)
	}
	if a.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Account{}, fmt.Errorf("account %s created_at: %w", a.ID, err)
	}
	return a, nil
}
