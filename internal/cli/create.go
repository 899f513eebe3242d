package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/eventroom/internal/event"
	"github.com/roach88/eventroom/internal/seed"
)

// NewCreateCommand creates the command that adds one event.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var draft event.Draft
	var category string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an event as the signed-in viewer",
		Long: `Create an event. Title, location and date are required; the category
defaults to Music. The creator is registered automatically.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				draft.Category = event.Category(category)
				ev, err := app.Core.CreateEvent(ctx, draft)
				if err != nil {
					return err
				}
				return app.Out.Render(ev, func(w io.Writer) error {
					fmt.Fprintln(w, "Created event:")
					writeEvent(w, ev)
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVar(&draft.Title, "title", "", "event title")
	cmd.Flags().StringVar(&draft.Location, "location", "", "where it happens")
	cmd.Flags().StringVar(&draft.Date, "date", "", "date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&draft.Time, "time", "", "start time, free form")
	cmd.Flags().StringVar(&category, "category", string(event.CategoryMusic), "category")
	cmd.Flags().StringVar(&draft.Description, "description", "", "longer description")

	return cmd
}

// NewSeedCommand creates the bulk import command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Import events from a .yaml or .cue file",
		Long: `Validate every event in the file and create them as the signed-in
viewer. Nothing is written if any event is invalid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				if !app.Core.Viewer().SignedIn() {
					return event.Unauthenticated("seed")
				}
				drafts, err := seed.Load(args[0])
				if err != nil {
					return err
				}
				app.Logger.Debug("seed file validated", "file", args[0], "events", len(drafts))
				created, err := seed.Import(ctx, app.Core, drafts)
				if err != nil {
					return err
				}
				return app.Out.Render(created, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Imported %d events from %s\n", len(created), args[0])
					return err
				})
			})
		},
	}
	return cmd
}
