package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/eventroom/internal/listing"
	"github.com/roach88/eventroom/internal/orchestrator"
)

// EventsOptions holds the events command's flags.
type EventsOptions struct {
	*RootOptions
	Category string
	Search   string
	Sort     string
	Page     int
}

// NewEventsCommand creates the listing command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List events a page at a time",
		Long: `List events filtered by category and search text, sorted by date,
title or location. Events sharing a date appear in random order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, app *App) error {
				return runEvents(ctx, app, opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Category, "category", "All", "category to show, or All")
	cmd.Flags().StringVar(&opts.Search, "search", "", "match title or location")
	cmd.Flags().StringVar(&opts.Sort, "sort", string(listing.SortDate), "sort key (date|title|location)")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number")

	return cmd
}

func runEvents(ctx context.Context, app *App, opts *EventsOptions) error {
	sort, err := listing.ParseSortKey(opts.Sort)
	if err != nil {
		return err
	}
	l := app.Core.Listing(app.Engine, app.Pager())
	if res := l.Load(ctx); res.State == orchestrator.LoadFailed {
		return res.Err
	}
	view := l.View()
	view.SetQuery(listing.Query{Category: opts.Category, Search: opts.Search, Sort: sort})
	if err := view.GoTo(opts.Page); err != nil {
		return err
	}
	page := l.Page()
	return app.Out.Render(page, func(w io.Writer) error {
		return writeListing(w, page)
	})
}

// HomeOptions holds the home command's flags.
type HomeOptions struct {
	*RootOptions
	Category string
	Search   string
}

// NewHomeCommand creates the featured-events command.
func NewHomeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HomeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "home",
		Short: "Show a random sample of upcoming events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, app *App) error {
				h := app.Core.Home(app.Engine, app.Pager(), app.Config.FeaturedCount)
				if res := h.Load(ctx); res.State == orchestrator.LoadFailed {
					return res.Err
				}
				h.Filter(opts.Category, opts.Search)
				page := h.Page()
				return app.Out.Render(page, func(w io.Writer) error {
					return writeHome(w, page)
				})
			})
		},
	}

	cmd.Flags().StringVar(&opts.Category, "category", "All", "category to show, or All")
	cmd.Flags().StringVar(&opts.Search, "search", "", "match title or location")

	return cmd
}
