// Package auth is the account and session collaborator: it signs viewers
// up and in against the store's account table and keeps the current
// session as a signed token in a local session file.
//
// Provider implements backend.SessionSource.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/eventroom/internal/backend"
	"github.com/roach88/eventroom/internal/event"
	"github.com/roach88/eventroom/internal/store"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// DefaultTokenTTL is how long a sign-in lasts.
const DefaultTokenTTL = 30 * 24 * time.Hour

// Accounts is the account storage the provider needs.
type Accounts interface {
	CreateAccount(ctx context.Context, a store.Account) (store.Account, error)
	AccountByEmail(ctx context.Context, email string) (store.Account, error)
}

// Claims is the signed session token body.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type sessionFile struct {
	Token string `json:"token"`
}

// Provider manages accounts and the current session.
//
// Safe for concurrent use.
type Provider struct {
	accounts    Accounts
	secret      []byte
	ttl         time.Duration
	cost        int
	sessionPath string
	now         func() time.Time
	logger      *slog.Logger

	mu       sync.Mutex
	current  *event.Session
	watchers map[*sessionStream]struct{}
}

var _ backend.SessionSource = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithTokenTTL sets how long issued tokens stay valid.
func WithTokenTTL(d time.Duration) Option {
	return func(p *Provider) { p.ttl = d }
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(p *Provider) { p.cost = cost }
}

// WithSessionFile persists the session token at path. Without it sessions
// last for the life of the Provider.
func WithSessionFile(path string) Option {
	return func(p *Provider) { p.sessionPath = path }
}

// WithClock overrides the clock used for token issue and expiry.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// New creates a provider signing tokens with secret and restores the
// session from the session file when it holds a valid token.
func New(accounts Accounts, secret []byte, opts ...Option) (*Provider, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: empty signing secret")
	}
	p := &Provider{
		accounts: accounts,
		secret:   secret,
		ttl:      DefaultTokenTTL,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
		logger:   slog.Default(),
		watchers: make(map[*sessionStream]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.restore(); err != nil {
		return nil, err
	}
	return p, nil
}

// SignUp creates an account and signs it in.
func (p *Provider) SignUp(ctx context.Context, email, password, displayName string) (*event.Session, error) {
	email, err := normalizeEmail("sign up", email)
	if err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, event.InvalidInput("sign up", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	acct, err := p.accounts.CreateAccount(ctx, store.Account{
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: string(hash),
		CreatedAt:    p.now(),
	})
	if errors.Is(err, store.ErrAccountExists) {
		return nil, event.InvalidInput("sign up", "an account with this email already exists")
	}
	if err != nil {
		return nil, event.WriteFailed("sign up", err)
	}
	p.logger.Info("account created", "user", acct.ID)
	return p.establish(acct)
}

// SignIn checks the credentials and makes the account the current session.
// Unknown emails and wrong passwords fail alike with ErrCodeUnauthenticated.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*event.Session, error) {
	email, err := normalizeEmail("sign in", email)
	if err != nil {
		return nil, err
	}
	acct, err := p.accounts.AccountByEmail(ctx, email)
	if errors.Is(err, backend.ErrNotFound) {
		return nil, badCredentials()
	}
	if err != nil {
		return nil, event.FetchFailed("sign in", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		p.logger.Debug("password mismatch", "user", acct.ID)
		return nil, badCredentials()
	}
	return p.establish(acct)
}

// SignOut clears the current session and removes the session file.
func (p *Provider) SignOut() error {
	if p.sessionPath != "" {
		if err := os.Remove(p.sessionPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove session file: %w", err)
		}
	}
	p.publish(nil)
	return nil
}

// Current returns the signed-in viewer, or nil.
func (p *Provider) Current() *event.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// IssueToken signs a token for s.
func (p *Provider) IssueToken(s *event.Session) (string, error) {
	now := p.now()
	claims := Claims{
		Email: s.Email,
		Name:  s.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// ParseToken validates a token and returns its session. Expired, forged
// and malformed tokens fail with ErrCodeUnauthenticated.
func (p *Provider) ParseToken(token string) (*event.Session, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(p.now), jwt.WithExpirationRequired())
	if err != nil {
		msg := "invalid session token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			msg = "session expired"
		}
		return nil, &event.Error{Code: event.ErrCodeUnauthenticated, Op: "session", Message: msg, Err: err}
	}
	if claims.Subject == "" {
		return nil, &event.Error{Code: event.ErrCodeUnauthenticated, Op: "session", Message: "session token has no subject"}
	}
	return &event.Session{ID: claims.Subject, Email: claims.Email, DisplayName: claims.Name}, nil
}

func (p *Provider) establish(acct store.Account) (*event.Session, error) {
	s := &event.Session{ID: acct.ID, Email: acct.Email, DisplayName: acct.DisplayName}
	if p.sessionPath != "" {
		token, err := p.IssueToken(s)
		if err != nil {
			return nil, err
		}
		if err := p.writeSessionFile(token); err != nil {
			return nil, err
		}
	}
	p.publish(s)
	p.logger.Info("signed in", "user", s.ID)
	return s, nil
}

func (p *Provider) restore() error {
	if p.sessionPath == "" {
		return nil
	}
	data, err := os.ReadFile(p.sessionPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read session file: %w", err)
	}
	var f sessionFile
	if err := json.Unmarshal(data, &f); err != nil {
		p.logger.Warn("discarding unreadable session file", "path", p.sessionPath, "error", err)
		return nil
	}
	s, err := p.ParseToken(f.Token)
	if err != nil {
		p.logger.Info("stored session not restored", "error", err)
		return nil
	}
	p.current = s
	return nil
}

func (p *Provider) writeSessionFile(token string) error {
	if err := os.MkdirAll(filepath.Dir(p.sessionPath), 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	data, err := json.Marshal(sessionFile{Token: token})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.WriteFile(p.sessionPath, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

func normalizeEmail(op, email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", event.InvalidInput(op, "invalid email address")
	}
	return email, nil
}

func badCredentials() error {
	return &event.Error{Code: event.ErrCodeUnauthenticated, Op: "sign in", Message: "invalid email or password"}
}
