package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/onefeed/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the config directory with an example config",
	RunE:  initAction,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func initAction(_ *cobra.Command, _ []string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	configPath := filepath.Join(configDir, config.DefaultConfigFile)
	wrote, err := writeIfNotExists(configPath, []byte(exampleConfig))
	if err != nil {
		return err
	}

	if !wrote {
		fmt.Printf("Config directory %s already initialized.\n", configDir)
		return nil
	}
	fmt.Printf("Initialized %s. Edit config.yaml and export your tokens.\n", configDir)
	return nil
}

// writeIfNotExists writes data to path if the file does not exist.
// Returns true if the file was created.
func writeIfNotExists(path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  exists: %s\n", path)
		return false, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("  created: %s\n", path)
	return true, nil
}

const exampleConfig = `# onefeed configuration

accounts:
  - id: mastodon-main
    platform: mastodon
    server: mastodon.social
    username: your_handle
    token_env: ONEFEED_MASTODON_TOKEN
  - id: bluesky-main
    platform: bluesky
    server: bsky.social
    username: your_handle.bsky.social
    token_env: ONEFEED_BLUESKY_TOKEN

filters:
  muted_keywords: []
  # - "crypto"
  # - "sportsball"
  reply_filtering: false
  followed: []
  # - "friend@mastodon.social"
  # - "pal.bsky.social"

engine:
  page_size: 40
  fetch_timeout: 20s
  min_dwell: 2s

storage:
  path: .onefeed/onefeed.db
  retain_days: 90
`
