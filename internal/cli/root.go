// Package cli provides the command-line interface for onefeed.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "onefeed",
	Short: "One timeline across all your accounts",
	Long:  "onefeed merges the home timelines of your Mastodon and Bluesky accounts into a single chronological feed, tracking what you have already read.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// Tokens may live in a .env next to the config; absence is fine.
		_ = godotenv.Load(filepath.Join(configDir, ".env"))
		_ = godotenv.Load()
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("onefeed %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", defaultConfigDir(), "config directory")
	rootCmd.AddCommand(versionCmd)
}

func defaultConfigDir() string {
	if dir := os.Getenv("ONEFEED_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".onefeed"
	}
	return filepath.Join(home, ".config", "onefeed")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
