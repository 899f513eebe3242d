package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/eventroom/internal/event"
	"github.com/roach88/eventroom/internal/profile"
)

// CredentialOptions holds the flags shared by signup and login.
type CredentialOptions struct {
	*RootOptions
	Email    string
	Password string
	Name     string
}

func (o *CredentialOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Email, "email", "", "account email")
	cmd.Flags().StringVar(&o.Password, "password", "", "password (read from stdin when omitted)")
}

// password returns the flag value or the first line of stdin.
func (o *CredentialOptions) password(cmd *cobra.Command) (string, error) {
	if o.Password != "" {
		return o.Password, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// NewSignupCommand creates the account creation command.
func NewSignupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CredentialOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, app *App) error {
				password, err := opts.password(cmd)
				if err != nil {
					return err
				}
				s, err := app.Auth.SignUp(ctx, opts.Email, password, opts.Name)
				if err != nil {
					return err
				}
				return app.Out.Render(s, func(w io.Writer) error {
					fmt.Fprint(w, "Signed up as ")
					return writeSession(w, s)
				})
			})
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	return cmd
}

// NewLoginCommand creates the sign-in command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CredentialOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, app *App) error {
				password, err := opts.password(cmd)
				if err != nil {
					return err
				}
				s, err := app.Auth.SignIn(ctx, opts.Email, password)
				if err != nil {
					return err
				}
				return app.Out.Render(s, func(w io.Writer) error {
					fmt.Fprint(w, "Signed in as ")
					return writeSession(w, s)
				})
			})
		},
	}

	opts.bind(cmd)
	return cmd
}

// NewLogoutCommand creates the sign-out command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				if err := app.Auth.SignOut(); err != nil {
					return err
				}
				return app.Out.Render(map[string]bool{"signedIn": false}, func(w io.Writer) error {
					_, err := fmt.Fprintln(w, "Signed out.")
					return err
				})
			})
		},
	}
}

// NewWhoamiCommand creates the command that prints the current viewer.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in viewer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				s := app.Core.Viewer()
				return app.Out.Render(s, func(w io.Writer) error {
					return writeSession(w, s)
				})
			})
		},
	}
}

// ProfileOptions holds the profile command's flags.
type ProfileOptions struct {
	*RootOptions
	Bio       string
	Interests string
}

// NewProfileCommand creates the command that shows or edits the viewer's
// profile.
func NewProfileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProfileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit your profile",
		Long: `Show your profile. With --bio or --interests, save the given fields and
leave the others unchanged. Interests are comma-separated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, app *App) error {
				viewer := app.Core.Viewer()
				if !viewer.SignedIn() {
					return event.Unauthenticated("profile")
				}

				var u profile.Update
				if cmd.Flags().Changed("bio") {
					u.Bio = &opts.Bio
				}
				if cmd.Flags().Changed("interests") {
					u.Interests = &opts.Interests
				}

				var p profile.Profile
				var err error
				if u.Bio != nil || u.Interests != nil {
					p, err = app.Profiles.Save(ctx, viewer, u)
				} else {
					p, err = app.Profiles.Load(ctx, viewer)
				}
				if err != nil {
					return err
				}
				return app.Out.Render(p, func(w io.Writer) error {
					return writeProfile(w, p)
				})
			})
		},
	}

	cmd.Flags().StringVar(&opts.Bio, "bio", "", "about you")
	cmd.Flags().StringVar(&opts.Interests, "interests", "", "comma-separated interests")
	return cmd
}
