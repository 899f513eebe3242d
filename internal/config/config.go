// Package config loads and saves the eventroom YAML configuration.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDatabase      = "eventroom.db"
	DefaultSessionFile   = "session.json"
	DefaultPageSize      = 6
	DefaultFeaturedCount = 6
	DefaultLocale        = "en"
	DefaultTokenTTL      = "720h"
	DefaultBcryptCost    = 10
)

// Config is the top-level application configuration.
type Config struct {
	// Database is the SQLite file. Relative paths resolve against the
	// directory holding the config file.
	Database string `yaml:"database" json:"database"`

	// SessionFile holds the signed-in viewer's token. Relative like Database.
	SessionFile string `yaml:"session_file" json:"session_file"`

	PageSize      int `yaml:"page_size" json:"page_size"`
	FeaturedCount int `yaml:"featured_count" json:"featured_count"`

	// Locale is the BCP 47 tag used to order titles and locations.
	Locale string `yaml:"locale" json:"locale"`

	// JWTSecret signs session tokens. Generated on first run.
	JWTSecret string `yaml:"jwt_secret" json:"-"`

	// TokenTTL is how long a sign-in lasts, as a Go duration.
	TokenTTL string `yaml:"token_ttl" json:"token_ttl"`

	BcryptCost int `yaml:"bcrypt_cost" json:"bcrypt_cost"`

	// RedisURL, if set, shares change signals with other eventroom
	// processes using the same database so their live views update.
	RedisURL string `yaml:"redis_url,omitempty" json:"redis_url,omitempty"`
}

// DefaultConfig returns an in-memory default configuration without a
// signing secret.
func DefaultConfig() *Config {
	return &Config{
		Database:      DefaultDatabase,
		SessionFile:   DefaultSessionFile,
		PageSize:      DefaultPageSize,
		FeaturedCount: DefaultFeaturedCount,
		Locale:        DefaultLocale,
		TokenTTL:      DefaultTokenTTL,
		BcryptCost:    DefaultBcryptCost,
	}
}

// Normalize fills in missing/zero values with defaults.
func (c *Config) Normalize() {
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.SessionFile == "" {
		c.SessionFile = DefaultSessionFile
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.FeaturedCount <= 0 {
		c.FeaturedCount = DefaultFeaturedCount
	}
	if c.Locale == "" {
		c.Locale = DefaultLocale
	}
	if c.TokenTTL == "" {
		c.TokenTTL = DefaultTokenTTL
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = DefaultBcryptCost
	}
}

// Validate checks values Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := c.Language(); err != nil {
		return err
	}
	if _, err := c.TTL(); err != nil {
		return err
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("bcrypt_cost %d outside 4..31", c.BcryptCost)
	}
	if c.JWTSecret == "" {
		return errors.New("jwt_secret is empty")
	}
	return nil
}

// Language parses Locale.
func (c *Config) Language() (language.Tag, error) {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.Und, fmt.Errorf("locale %q: %w", c.Locale, err)
	}
	return tag, nil
}

// TTL parses TokenTTL.
func (c *Config) TTL() (time.Duration, error) {
	d, err := time.ParseDuration(c.TokenTTL)
	if err != nil {
		return 0, fmt.Errorf("token_ttl %q: %w", c.TokenTTL, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("token_ttl %q must be positive", c.TokenTTL)
	}
	return d, nil
}

// Resolve returns p, or p joined to dir when p is relative.
func Resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist it is created with defaults and a fresh
// signing secret (mode 0600). A file without a secret gets one and is
// saved back.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		cfg := DefaultConfig()
		if cfg.JWTSecret, err = newSecret(); err != nil {
			return nil, err
		}
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()
	if cfg.JWTSecret == "" {
		if cfg.JWTSecret, err = newSecret(); err != nil {
			return nil, err
		}
		if err := Save(path, &cfg); err != nil {
			return &cfg, err
		}
	}
	return &cfg, nil
}

// Save writes cfg to path atomically with mode 0600, creating the parent
// directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".eventroom-config-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close config: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

func newSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
