package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/clickstudio/click/internal/auth"
	"github.com/clickstudio/click/internal/db"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Account maintenance commands",
	}

	cmd.AddCommand(newUserCreateCmd())
	cmd.AddCommand(newUserResetPasswordCmd())
	cmd.AddCommand(newUserListCmd())
	cmd.AddCommand(newUserDisableCmd(true))
	cmd.AddCommand(newUserDisableCmd(false))
	return cmd
}

func newUserCreateCmd() *cobra.Command {
	var (
		configPath string
		in         auth.RegisterInput
		admin      bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Long: `Creates a user and its personal workspace. The password is prompted for
on a terminal, or read from the first line of stdin when piped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			role := auth.RoleUser
			if admin {
				role = auth.RoleAdmin
			}
			return runUserCreate(cmd, configPath, in, role)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&in.Email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.WorkspaceName, "workspace", "", "workspace name")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant the admin role")
	cmd.MarkFlagRequired("email")
	return cmd
}

func runUserCreate(cmd *cobra.Command, configPath string, in auth.RegisterInput, role string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	in.Password, err = readNewPassword(cmd)
	if err != nil {
		return err
	}
	svc, err := authService(gormDB, cfg)
	if err != nil {
		return err
	}
	user, err := svc.CreateUser(cmd.Context(), in, role)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s (id %s, workspace %s)\n", user.Role, user.Email, user.ID, user.WorkspaceID)
	return nil
}

func newUserResetPasswordCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "reset-password <email>",
		Short: "Set a new password for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserResetPassword(cmd, configPath, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runUserResetPassword(cmd *cobra.Command, configPath, email string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	svc, err := authService(gormDB, cfg)
	if err != nil {
		return err
	}
	if _, err := svc.GetByEmail(cmd.Context(), email); err != nil {
		return err
	}
	password, err := readNewPassword(cmd)
	if err != nil {
		return err
	}
	if err := svc.ResetPassword(cmd.Context(), email, password); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %s\n", auth.NormalizeEmail(email))
	return nil
}

func newUserListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserList(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runUserList(cmd *cobra.Command, configPath string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	svc, err := authService(gormDB, cfg)
	if err != nil {
		return err
	}
	users, err := svc.List(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(users) == 0 {
		fmt.Fprintln(out, "No users found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tROLE\tWORKSPACE\tSTATUS\tLAST LOGIN")
	for _, u := range users {
		status := "active"
		if u.Disabled {
			status = "disabled"
		}
		last := "-"
		if u.LastLoginAt != nil {
			last = u.LastLoginAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Role, u.WorkspaceID, status, last)
	}
	w.Flush()
	return nil
}

func newUserDisableCmd(disable bool) *cobra.Command {
	var configPath string
	use, short := "disable <email>", "Block sign-in for an account"
	if !disable {
		use, short = "enable <email>", "Allow sign-in for a disabled account"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			defer db.Close(gormDB)
			svc, err := authService(gormDB, cfg)
			if err != nil {
				return err
			}
			if err := svc.SetDisabled(cmd.Context(), args[0], disable); err != nil {
				return err
			}
			state := "enabled"
			if disable {
				state = "disabled"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", auth.NormalizeEmail(args[0]), state)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

// readNewPassword prompts twice without echo on a terminal. Piped input is
// read once, from the first line.
func readNewPassword(cmd *cobra.Command) (string, error) {
	out := cmd.OutOrStdout()
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(out, "Password: ")
		first, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		fmt.Fprint(out, "Confirm password: ")
		second, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		if string(first) != string(second) {
			return "", errors.New("passwords do not match")
		}
		return string(first), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("read password from stdin: %w", err)
		}
		return "", errors.New("empty password")
	}
	return line, nil
}
