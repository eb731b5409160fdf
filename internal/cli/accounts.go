package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/onefeed/internal/config"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List configured accounts",
	RunE:  accountsAction,
}

func init() {
	rootCmd.AddCommand(accountsCmd)
}

func accountsAction(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	for _, acct := range cfg.ListAccounts() {
		state := "selected"
		if !acct.Selected {
			state = "not selected"
		}
		token := "token set"
		if os.Getenv(acct.TokenRef) == "" {
			token = fmt.Sprintf("token missing (%s)", acct.TokenRef)
		}
		fmt.Printf("%-20s %-9s %-25s %s, %s\n", acct.ID, acct.Platform, acct.Server, state, token)
	}
	return nil
}
