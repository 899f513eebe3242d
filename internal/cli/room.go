package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/eventroom/internal/event"
	"github.com/roach88/eventroom/internal/gate"
	"github.com/roach88/eventroom/internal/orchestrator"
)

// syncTimeout bounds the wait for a room's first message delivery.
const syncTimeout = 5 * time.Second

// NewShowCommand creates the command that shows one event.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an event and, if you are registered, its chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				room := app.Core.Room(args[0])
				defer room.Close()
				if err := room.Open(ctx); err != nil {
					return err
				}
				st := room.State()
				if st.Access == gate.Granted {
					var err error
					if st, err = waitSynced(ctx, room); err != nil {
						return err
					}
				}
				return app.Out.Render(st, func(w io.Writer) error {
					return writeRoom(w, st)
				})
			})
		},
	}
}

// NewRegisterCommand creates the registration command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "register <id>",
		Short: "Register for an event",
		Long:  "Register the signed-in viewer for an event. Registering twice is harmless.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				room := app.Core.Room(args[0])
				defer room.Close()
				if err := room.Open(ctx); err != nil {
					return err
				}
				res, err := room.Register(ctx)
				if err != nil {
					return err
				}
				title := room.State().Event.Title
				return app.Out.Render(res, func(w io.Writer) error {
					if res.AlreadyRegistered {
						_, err := fmt.Fprintf(w, "Already registered for %s.\n", title)
						return err
					}
					_, err := fmt.Fprintf(w, "Registered for %s. Chat with: eventroom chat %s\n", title, res.EventID)
					return err
				})
			})
		},
	}
}

// ChatOptions holds the chat command's flags.
type ChatOptions struct {
	*RootOptions
	Send   string
	Follow bool
}

// NewChatCommand creates the chat command.
func NewChatCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChatOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "chat <id>",
		Short: "Read or post messages in an event's room",
		Long: `Print the room's messages, optionally after posting one. With --follow,
keep printing new messages until interrupted or signed out.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, app *App) error {
				return runChat(ctx, app, args[0], opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Send, "send", "", "post a message first")
	cmd.Flags().BoolVar(&opts.Follow, "follow", false, "keep printing new messages")

	return cmd
}

func runChat(ctx context.Context, app *App, id string, opts *ChatOptions) error {
	room := app.Core.Room(id)
	defer room.Close()
	if err := room.Open(ctx); err != nil {
		return err
	}
	switch room.State().Access {
	case gate.Unauthenticated:
		return event.Unauthenticated("chat")
	case gate.NotRegistered:
		return event.NotRegistered("chat", id)
	}

	st, err := waitSynced(ctx, room)
	if err != nil {
		return err
	}
	if opts.Send != "" {
		before := len(st.Lines)
		if err := room.Send(ctx, opts.Send); err != nil {
			return err
		}
		st, err = waitFor(ctx, room, func(st orchestrator.RoomState) bool { return len(st.Lines) > before })
		if err != nil {
			return err
		}
	}
	if opts.Follow {
		return followRoom(ctx, app, room)
	}
	return app.Out.Render(st.Lines, func(w io.Writer) error {
		return writeLines(w, st.Lines)
	})
}

// followRoom prints lines as they arrive until the context ends, a signal
// arrives or the viewer signs out.
func followRoom(ctx context.Context, app *App, room *orchestrator.Room) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	sessions := app.Core.WatchSession()
	if err := sessions.Start(ctx); err != nil {
		return err
	}
	defer sessions.Close()

	printed := 0
	for {
		st := room.State()
		if st.Err != nil {
			return st.Err
		}
		if st.Access != gate.Granted {
			app.Logger.Info("chat access lost", "event", st.Event.ID, "access", st.Access)
			return nil
		}
		printed = min(printed, len(st.Lines))
		for _, line := range st.Lines[printed:] {
			if err := app.Out.Render(line, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s: %s\n", line.Author, line.Text)
				return err
			}); err != nil {
				return err
			}
		}
		printed = len(st.Lines)

		select {
		case <-room.Changes():
		case s, ok := <-sessions.Sessions():
			if !ok || !s.SignedIn() {
				app.Logger.Info("signed out, leaving chat")
				return nil
			}
		case sig := <-sigChan:
			app.Logger.Info("received signal, leaving chat", "signal", sig)
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func waitSynced(ctx context.Context, room *orchestrator.Room) (orchestrator.RoomState, error) {
	return waitFor(ctx, room, func(st orchestrator.RoomState) bool { return st.Synced })
}

// waitFor blocks until done reports true for the room's state, the room
// reports an error or syncTimeout passes.
func waitFor(ctx context.Context, room *orchestrator.Room, done func(orchestrator.RoomState) bool) (orchestrator.RoomState, error) {
	timeout := time.NewTimer(syncTimeout)
	defer timeout.Stop()
	for {
		st := room.State()
		if st.Err != nil {
			return st, st.Err
		}
		if done(st) {
			return st, nil
		}
		select {
		case <-room.Changes():
		case <-timeout.C:
			return st, event.FetchFailed("chat", errors.New("timed out waiting for messages"))
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}
