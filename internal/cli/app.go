package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/eventroom/internal/auth"
	"github.com/roach88/eventroom/internal/config"
	"github.com/roach88/eventroom/internal/event"
	"github.com/roach88/eventroom/internal/listing"
	"github.com/roach88/eventroom/internal/notify"
	"github.com/roach88/eventroom/internal/orchestrator"
	"github.com/roach88/eventroom/internal/profile"
	"github.com/roach88/eventroom/internal/store"
)

// App is the client wired from the config file: the SQLite store, the
// auth provider and the orchestrator on top of them.
type App struct {
	Config   *config.Config
	Store    *store.Store
	Auth     *auth.Provider
	Core     *orchestrator.Orchestrator
	Profiles *profile.Service
	Engine   *listing.Engine
	Logger   *slog.Logger
	Out      *OutputFormatter

	notifier notify.Notifier
}

// Pager returns a paginator sized from the config.
func (a *App) Pager() *listing.Paginator {
	return listing.NewPaginator(a.Config.PageSize, nil)
}

// Close releases the store and the notifier.
func (a *App) Close() error {
	err := a.Store.Close()
	if a.notifier != nil {
		err = errors.Join(err, a.notifier.Close())
	}
	return err
}

func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

func newLogger(cmd *cobra.Command, opts *RootOptions) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func openApp(ctx context.Context, cmd *cobra.Command, opts *RootOptions) (*App, error) {
	logger := newLogger(cmd, opts)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, &event.Error{Code: event.ErrCodeInvalidInput, Op: "load config", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &event.Error{Code: event.ErrCodeInvalidInput, Op: "load config", Err: err}
	}
	tag, _ := cfg.Language()
	ttl, _ := cfg.TTL()
	dir := filepath.Dir(opts.Config)
	out := newFormatter(cmd, opts)
	out.VerboseLog("using config %s", opts.Config)

	app := &App{
		Config: cfg,
		Engine: listing.NewEngine(tag),
		Logger: logger,
		Out:    out,
	}

	storeOpts := []store.Option{store.WithLogger(logger)}
	if cfg.RedisURL != "" {
		r, err := notify.NewRedis(ctx, cfg.RedisURL, notify.WithLogger(logger))
		if err != nil {
			return nil, event.FetchFailed("connect redis", err)
		}
		app.notifier = r
		storeOpts = append(storeOpts, store.WithNotifier(r))
	}

	dbPath := config.Resolve(dir, cfg.Database)
	if app.notifier != nil {
		out.VerboseLog("database %s, change signals via redis", dbPath)
	} else {
		out.VerboseLog("database %s, polling for other writers every %s", dbPath, store.DefaultPollInterval)
	}
	st, err := store.Open(dbPath, storeOpts...)
	if err != nil {
		if app.notifier != nil {
			app.notifier.Close()
		}
		return nil, event.FetchFailed("open store", err)
	}
	app.Store = st

	app.Auth, err = auth.New(st, []byte(cfg.JWTSecret),
		auth.WithTokenTTL(ttl),
		auth.WithBcryptCost(cfg.BcryptCost),
		auth.WithSessionFile(config.Resolve(dir, cfg.SessionFile)),
		auth.WithLogger(logger),
	)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("start auth: %w", err)
	}

	app.Core = orchestrator.New(st, st, app.Auth, orchestrator.WithLogger(logger))
	app.Profiles = profile.New(st, st, profile.WithLogger(logger))
	return app, nil
}

// withApp opens the app, runs fn and reports its error in the configured
// format. Errors already reported as *ExitError pass through.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, app *App) error) error {
	ctx := cmd.Context()
	app, err := openApp(ctx, cmd, opts)
	if err != nil {
		return newFormatter(cmd, opts).Fail(err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			app.Logger.Warn("close failed", "error", err)
		}
	}()

	if err := fn(ctx, app); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return err
		}
		return app.Out.Fail(err)
	}
	return nil
}
