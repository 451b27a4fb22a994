package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-drivalyze/pkg/session"
)

var errNotSignedIn = errors.New("not signed in (run drivalyze login)")

type credentialFlags struct {
	email, password, confirm string
}

func newLoginCmd(a *app) *cobra.Command {
	var (
		creds credentialFlags
		next  string
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			gate, closeGate, err := a.openGate(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer func() { err = joinClose(err, closeGate) }()

			identity, err := gate.SignIn(cmd.Context(), creds.email, creds.password)
			if err != nil {
				return err
			}
			a.printf("Signed in as %s\n", identity.Email)
			a.printf("Continue to %s\n", session.SafeNext(next))
			return nil
		},
	}
	cmd.Flags().StringVar(&creds.email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.password, "password", "", "account password")
	cmd.Flags().StringVar(&next, "next", "/", "view to continue to after signing in")
	return cmd
}

func newSignupCmd(a *app) *cobra.Command {
	var creds credentialFlags
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			gate, closeGate, err := a.openGate(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer func() { err = joinClose(err, closeGate) }()

			identity, err := gate.SignUp(cmd.Context(), creds.email, creds.password, creds.confirm)
			if err != nil {
				return err
			}
			a.printf("Account created for %s\n", identity.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&creds.email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.password, "password", "", "password")
	cmd.Flags().StringVar(&creds.confirm, "confirm", "", "password again")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			gate, closeGate, err := a.openGate(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer func() { err = joinClose(err, closeGate) }()

			if err := gate.SignOut(cmd.Context()); err != nil {
				return err
			}
			a.printf("Signed out\n")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			gate, closeGate, err := a.openGate(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer func() { err = joinClose(err, closeGate) }()

			current := gate.Current()
			if !current.IsAuthenticated {
				a.printf("Not signed in\n")
				return nil
			}
			a.printf("%s <%s>\n", current.DisplayName, current.UserEmail)
			return nil
		},
	}
}

type profileFlags struct {
	password    string
	displayName string
	email       string
	newPassword string
	confirm     string
}

// newProfileCmd updates the signed-in account. Provider sessions do not
// outlive a process, so the command signs in again with --password first.
func newProfileCmd(a *app) *cobra.Command {
	var flags profileFlags
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update your display name, email or password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()
			changed := cmd.Flags().Changed
			if !changed("display-name") && !changed("email") && !changed("new-password") {
				return errors.New("nothing to update: pass --display-name, --email or --new-password")
			}

			gate, closeGate, err := a.openGate(ctx, true)
			if err != nil {
				return err
			}
			defer func() { err = joinClose(err, closeGate) }()

			current := gate.Current()
			if !current.IsAuthenticated {
				return errNotSignedIn
			}
			if _, err := gate.SignIn(ctx, current.UserEmail, flags.password); err != nil {
				return err
			}

			if changed("display-name") {
				identity, err := gate.UpdateProfile(ctx, flags.displayName)
				if err != nil {
					return err
				}
				a.printf("Display name set to %s\n", identity.DisplayName)
			}
			if changed("email") {
				identity, err := gate.UpdateEmail(ctx, flags.email, flags.password)
				if err != nil {
					return err
				}
				a.printf("Email changed to %s\n", identity.Email)
			}
			if changed("new-password") {
				if err := gate.UpdatePassword(ctx, flags.password, flags.newPassword, flags.confirm); err != nil {
					return err
				}
				a.printf("Password updated\n")
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.password, "password", "", "current password")
	f.StringVar(&flags.displayName, "display-name", "", "new display name")
	f.StringVar(&flags.email, "email", "", "new email")
	f.StringVar(&flags.newPassword, "new-password", "", "new password")
	f.StringVar(&flags.confirm, "confirm", "", "new password again")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
