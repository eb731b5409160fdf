package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/onefeed/internal/config"
	"github.com/ppiankov/onefeed/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, credentials, and the local database",
	RunE:  doctorAction,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func doctorAction(_ *cobra.Command, _ []string) error {
	ok := true

	// Config dir
	if info, err := os.Stat(configDir); err != nil || !info.IsDir() {
		printCheck(false, "config directory %s", configDir)
		ok = false
	} else {
		printCheck(true, "config directory %s", configDir)
	}

	// Config file
	cfg, err := config.Load(configDir)
	if err != nil {
		printCheck(false, "config.yaml: %v", err)
		ok = false
	} else {
		printCheck(true, "config.yaml (%d accounts, %d muted keywords)",
			len(cfg.Accounts), len(cfg.Filters.MutedKeywords))
	}

	// Tokens
	if cfg != nil {
		for _, acct := range cfg.ListAccounts() {
			if os.Getenv(acct.TokenRef) == "" {
				printCheck(false, "account %s: env var %s is not set", acct.ID, acct.TokenRef)
				ok = false
			} else {
				printCheck(true, "account %s (%s)", acct.ID, acct.Platform)
			}
		}
	}

	// Database
	if cfg != nil {
		db, err := store.Open(cfg.Storage.Path)
		if err != nil {
			printCheck(false, "database: %v", err)
			ok = false
		} else {
			defer func() { _ = db.Close() }()
			printCheck(true, "database %s", cfg.Storage.Path)
		}
	}

	if !ok {
		return fmt.Errorf("some checks failed")
	}
	fmt.Println("All checks passed.")
	return nil
}

func printCheck(pass bool, format string, args ...any) {
	mark := "ok"
	if !pass {
		mark = "FAIL"
	}
	fmt.Printf("  [%4s] %s\n", mark, fmt.Sprintf(format, args...))
}
