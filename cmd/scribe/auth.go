package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scribeflow/internal/domain"
	"scribeflow/internal/jobsvc"
)

func newLoginCmd(rt *runtime) *cobra.Command {
	var email, code string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with a one-time code sent by email",
		Long: `Log in with a one-time code. Without --code the code is requested
for --email and then read from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if strings.TrimSpace(email) == "" {
				return fmt.Errorf("--email is required")
			}
			if code == "" {
				if err := rt.api.SendOTP(ctx, email); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "A login code was sent to %s. Enter it: ", email)
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read code: %w", err)
				}
				code = strings.TrimSpace(line)
			}
			token, err := rt.api.VerifyOTP(ctx, email, code)
			if err != nil {
				return err
			}
			if err := rt.tokens.Save(ctx, token); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
			rt.session.Login(token)

			acct, err := rt.api.Account(ctx)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Logged in.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s).\n", acct.Email, creditsLabel(acct))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&code, "code", "", "one-time code, if already received")
	return cmd
}

func newLogoutCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt.session.Logout()
			if err := rt.tokens.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in account and its credits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.requireLogin(); err != nil {
				return err
			}
			acct, err := rt.api.Account(cmd.Context())
			if err != nil {
				return err
			}
			printAccount(cmd, acct)
			return nil
		},
	}
}

func newProfileCmd(rt *runtime) *cobra.Command {
	var name, devtoKey string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update the account name or Dev.to API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.requireLogin(); err != nil {
				return err
			}
			var upd jobsvc.ProfileUpdate
			if cmd.Flags().Changed("name") {
				upd.FullName = &name
			}
			if cmd.Flags().Changed("devto-key") {
				upd.DevtoAPIKey = &devtoKey
			}
			acct, err := rt.api.UpdateProfile(cmd.Context(), upd)
			if err != nil {
				return err
			}
			printAccount(cmd, acct)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&devtoKey, "devto-key", "", "Dev.to API key used by `scribe publish devto`")
	return cmd
}

func printAccount(cmd *cobra.Command, acct domain.Account) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Email:   %s\n", acct.Email)
	if acct.FullName != "" {
		fmt.Fprintf(out, "Name:    %s\n", acct.FullName)
	}
	fmt.Fprintf(out, "Plan:    %s\n", creditsLabel(acct))
	devto := "not connected"
	if acct.DevtoConnected {
		devto = "connected"
	}
	fmt.Fprintf(out, "Dev.to:  %s\n", devto)
}

func creditsLabel(acct domain.Account) string {
	if acct.IsPremium {
		return "premium"
	}
	return fmt.Sprintf("%d credits left", acct.CreditsLeft)
}
