package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/hookrelay/pkg/accounts"
	"github.com/platinummonkey/hookrelay/pkg/auth"
	"github.com/platinummonkey/hookrelay/pkg/users"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		if err := accounts.NewStore(db).SeedRoles(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date")
		return nil
	},
}

var (
	superuserEmail    string
	superuserPassword string
)

var createSuperuserCmd = &cobra.Command{
	Use:   "createsuperuser",
	Short: "Create a superuser account",
	Long: `Creates a superuser. The password is read from --password, then from
HOOKRELAY_SUPERUSER_PASSWORD, and finally from stdin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.TrimSpace(superuserEmail)
		if email == "" {
			return fmt.Errorf("--email is required")
		}
		password := superuserPassword
		if password == "" {
			password = os.Getenv("HOOKRELAY_SUPERUSER_PASSWORD")
		}
		if password == "" {
			var err error
			password, err = promptPassword(cmd)
			if err != nil {
				return err
			}
		}

		db, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		svc := users.NewService(users.NewStore(db), users.NewTokenStore(db), auth.NewPasswordHasher(cfg.Auth.BcryptCost), nil, logger)
		user, err := svc.CreateSuperuser(cmd.Context(), email, password)
		if err != nil {
			return fmt.Errorf("failed to create superuser: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Superuser %s created (id %d)\n", user.Email, user.ID)
		return nil
	},
}

func init() {
	createSuperuserCmd.Flags().StringVar(&superuserEmail, "email", "", "Email address of the superuser")
	createSuperuserCmd.Flags().StringVar(&superuserPassword, "password", "", "Password of the superuser")
}

// promptPassword reads one line from stdin
func promptPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
