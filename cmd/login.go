package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trkhq/trk/internal/output"
)

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Log in as the given email",
	Long: `Log in as the given email address.

No password and no verification: any non-empty email is accepted. The
display name is the part of the email before the '@', and the session
persists across runs until 'trk logout'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return loginRun(args[0])
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return logoutRun()
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return whoamiRun()
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}

func loginRun(email string) error {
	m, err := getSession()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would log in as %s", email)
		return nil
	}

	user, err := m.Login(email)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	ui.Success("Logged in as %s <%s>", user.Name, user.Email)
	return nil
}

func logoutRun() error {
	m, err := getSession()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would log out")
		return nil
	}

	m.Logout()
	ui.Success("Logged out")
	return nil
}

func whoamiRun() error {
	m, err := getSession()
	if err != nil {
		return err
	}

	user, ok := m.Current()
	if !ok {
		ui.Info("Not logged in. Use 'trk login <email>'.")
		return nil
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(user.Name), user.Email)
	return nil
}
