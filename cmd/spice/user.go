package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/auth"
	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/config"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage ledger users and sessions",
	}
	cmd.AddCommand(
		userCreateCmd(),
		userLoginCmd(),
		userLogoutCmd(),
		userWhoamiCmd(),
		userListCmd(),
		userPasswdCmd(),
	)
	return cmd
}

func userCreateCmd() *cobra.Command {
	var password, email, displayName string

	cmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create a user",
		Long: `Create a ledger user. Users without a password can act through --user
or SPICE_USER; users with one must log in.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.auth.CreateUser(cmd.Context(), auth.NewUser{
				Username:    args[0],
				Password:    password,
				Email:       email,
				DisplayName: displayName,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Created user %s (id %d)", user.Username, user.ID)))
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password (optional)")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&displayName, "name", "", "display name")
	return cmd
}

func userLoginCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and remember the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			session, err := a.auth.Login(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}

			path := config.SessionFile()
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return fmt.Errorf("failed to create session directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(session.Token+"\n"), 0o600); err != nil {
				return fmt.Errorf("failed to save session: %w", err)
			}

			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Logged in as %s until %s",
				session.Username, session.ExpiresAt.Local().Format("2006-01-02 15:04"))))
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password, for users that have one")
	return cmd
}

func userLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			path := config.SessionFile()
			data, err := os.ReadFile(path)
			if os.IsNotExist(err) {
				fmt.Fprintln(a.out, cli.FormatInfo("Not logged in."))
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read session: %w", err)
			}

			if err := a.auth.Logout(cmd.Context(), strings.TrimSpace(string(data))); err != nil {
				return err
			}
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to remove session file: %w", err)
			}
			fmt.Fprintln(a.out, cli.FormatSuccess("Logged out."))
			return nil
		},
	}
}

func userWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the acting user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.auth.CurrentUser(cmd.Context(), a.session)
			if err != nil {
				return err
			}

			via := "session"
			if viper.GetString("user") != "" {
				via = "--user"
			}
			lines := fmt.Sprintf("%s\nEmail: %s\nPassword required: %t\nAuthenticated via: %s",
				displayName(*user), orDash(user.Email), user.RequirePassword, via)
			fmt.Fprintln(a.out, cli.RenderBox(user.Username, lines))
			return nil
		},
	}
}

func userListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			users, err := a.auth.ListUsers(cmd.Context(), all)
			if err != nil {
				return err
			}
			if len(users) == 0 {
				fmt.Fprintln(a.out, cli.FormatInfo("No users yet. Create one with 'spice user create <name>'."))
				return nil
			}

			rows := make([][]string, 0, len(users))
			for _, u := range users {
				lastLogin := "never"
				if u.LastLogin != nil {
					lastLogin = model.FormatDate(*u.LastLogin)
				}
				rows = append(rows, []string{
					strconv.FormatInt(u.ID, 10),
					u.Username,
					displayName(u),
					orDash(u.Email),
					yesNo(u.IsActive),
					lastLogin,
				})
			}
			fmt.Fprintln(a.out, cli.Table([]string{"ID", "Username", "Name", "Email", "Active", "Last login"}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include inactive users")
	return cmd
}

func userPasswdCmd() *cobra.Command {
	var password string
	var remove bool

	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Set or remove the acting user's password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if remove {
				if err := a.auth.RemovePassword(cmd.Context(), a.session); err != nil {
					return err
				}
				fmt.Fprintln(a.out, cli.FormatSuccess("Password removed."))
				return nil
			}

			if password == "" {
				password, err = a.prompter.Ask(cmd.Context(), "New password", "")
				if err != nil {
					return err
				}
			}
			if err := a.auth.ChangePassword(cmd.Context(), a.session, password); err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess("Password updated."))
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "new password (prompted when omitted)")
	cmd.Flags().BoolVar(&remove, "remove", false, "remove the password instead")
	return cmd
}

func displayName(u model.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
