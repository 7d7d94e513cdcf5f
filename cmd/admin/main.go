// Command admin manages Launchpad administrator and ban flags from the shell.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"launchpad/internal/config"
	"launchpad/internal/database"
	"launchpad/internal/middleware"
	"launchpad/internal/models"
	"launchpad/internal/repository"
	"launchpad/internal/validation"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var users repository.UserRepository

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "Launchpad account administration",
	Long: `Manage administrator and ban flags without going through the API.

Examples:
  admin list-admins
  admin promote 42
  admin ban 17
  admin create --username ops --email ops@example.com --password 'Str0ng#Passw0rd'`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		middleware.InitLogger(cfg.Env, cfg.LogLevel)
		db, err := database.Connect(cfg)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		users = repository.NewUserRepository(db)
		return nil
	},
}

func flagCommand(use, short, field string, value bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <user_id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			ctx := cmd.Context()
			if err := users.SetFlags(ctx, uint(id), map[string]any{field: value}); err != nil {
				return err
			}
			user, err := users.GetByID(ctx, uint(id))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (ID %d) %s=%t\n", use, user.Username, user.ID, field, value)
			return nil
		},
	}
}

var listAdminsCmd = &cobra.Command{
	Use:   "list-admins",
	Short: "List administrators",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, err := users.List(cmd.Context(), "", 100, 0)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tBANNED")
		n := 0
		for _, u := range all {
			if !u.IsAdmin {
				continue
			}
			n++
			fmt.Fprintf(w, "%d\t%s\t%s\t%t\n", u.ID, u.Username, u.Email, u.IsBanned)
		}
		if n == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no admins found")
			return nil
		}
		return w.Flush()
	},
}

var (
	createUsername string
	createEmail    string
	createPassword string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an administrator account",
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.ToLower(strings.TrimSpace(createEmail))
		if err := validation.ValidateUsername(createUsername); err != nil {
			return err
		}
		if err := validation.ValidateEmail(email); err != nil {
			return err
		}
		if err := validation.ValidatePassword(createPassword); err != nil {
			return err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(createPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		user := &models.User{
			Username: createUsername,
			Email:    email,
			Password: string(hash),
			IsAdmin:  true,
		}
		if err := users.Create(cmd.Context(), user); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (ID %d)\n", user.Username, user.ID)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createUsername, "username", "", "username (required)")
	createCmd.Flags().StringVar(&createEmail, "email", "", "email (required)")
	createCmd.Flags().StringVar(&createPassword, "password", "", "password (required)")
	for _, name := range []string{"username", "email", "password"} {
		_ = createCmd.MarkFlagRequired(name)
	}

	rootCmd.AddCommand(
		flagCommand("promote", "Grant administrator rights", "is_admin", true),
		flagCommand("demote", "Revoke administrator rights", "is_admin", false),
		flagCommand("ban", "Ban a user", "is_banned", true),
		flagCommand("unban", "Lift a ban", "is_banned", false),
		listAdminsCmd,
		createCmd,
	)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
