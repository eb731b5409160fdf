// Package config loads and validates the onefeed configuration file. The
// loaded Config doubles as the engine's account registry and settings
// collaborator: it hands out account identities and the filter policy, and
// resolves credential references to env vars without ever storing tokens.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/onefeed/internal/platform"
)

const (
	DefaultConfigFile   = "config.yaml"
	DefaultStoragePath  = ".onefeed/onefeed.db"
	DefaultRetainDays   = 90
	DefaultPageSize     = 40
	DefaultFetchTimeout = 20 * time.Second
	DefaultMinDwell     = 2 * time.Second
)

// Duration wraps time.Duration for YAML unmarshaling from strings like "20s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

type Config struct {
	Accounts []AccountConfig `yaml:"accounts"`
	Filters  FiltersConfig   `yaml:"filters"`
	Engine   EngineConfig    `yaml:"engine"`
	Storage  StorageConfig   `yaml:"storage"`
}

type AccountConfig struct {
	ID       string `yaml:"id"`
	Platform string `yaml:"platform"`
	Server   string `yaml:"server"`
	Username string `yaml:"username"`
	TokenEnv string `yaml:"token_env"`
	Selected *bool  `yaml:"selected"` // defaults to true
}

type FiltersConfig struct {
	MutedKeywords  []string `yaml:"muted_keywords"`
	ReplyFiltering bool     `yaml:"reply_filtering"`
	Followed       []string `yaml:"followed"`
}

type EngineConfig struct {
	PageSize     int      `yaml:"page_size"`
	FetchTimeout Duration `yaml:"fetch_timeout"`
	MinDwell     Duration `yaml:"min_dwell"`
}

type StorageConfig struct {
	Path       string `yaml:"path"`
	RetainDays int    `yaml:"retain_days"`
}

// Load reads config.yaml from dir, applies defaults, and validates.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is required")
	}

	path := filepath.Join(dir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Storage.RetainDays == 0 {
		cfg.Storage.RetainDays = DefaultRetainDays
	}
	if cfg.Engine.PageSize == 0 {
		cfg.Engine.PageSize = DefaultPageSize
	}
	if cfg.Engine.FetchTimeout.Duration == 0 {
		cfg.Engine.FetchTimeout.Duration = DefaultFetchTimeout
	}
	if cfg.Engine.MinDwell.Duration == 0 {
		cfg.Engine.MinDwell.Duration = DefaultMinDwell
	}

	for i := range cfg.Accounts {
		acct := &cfg.Accounts[i]
		if acct.Selected == nil {
			selected := true
			acct.Selected = &selected
		}
		if acct.ID == "" && acct.Username != "" {
			acct.ID = fmt.Sprintf("%s-%s", acct.Platform, acct.Username)
		}
	}
}

func validate(cfg *Config) error {
	if len(cfg.Accounts) == 0 {
		return errors.New("accounts: at least one account must be configured")
	}

	ids := make(map[string]bool, len(cfg.Accounts))
	for i, acct := range cfg.Accounts {
		if acct.ID == "" {
			return fmt.Errorf("accounts[%d]: id is required", i)
		}
		if ids[acct.ID] {
			return fmt.Errorf("accounts[%d]: duplicate id %q", i, acct.ID)
		}
		ids[acct.ID] = true

		if !platform.Platform(acct.Platform).Known() {
			return fmt.Errorf("accounts[%d]: unknown platform %q (want mastodon or bluesky)", i, acct.Platform)
		}
		if acct.Server == "" {
			return fmt.Errorf("accounts[%d]: server is required", i)
		}
		if acct.TokenEnv == "" {
			return fmt.Errorf("accounts[%d]: token_env is required", i)
		}
	}

	if cfg.Engine.PageSize < 0 {
		return errors.New("engine.page_size: must be positive")
	}

	return nil
}

// ListAccounts implements the aggregator's account registry.
func (c *Config) ListAccounts() []platform.Account {
	accounts := make([]platform.Account, 0, len(c.Accounts))
	for _, acct := range c.Accounts {
		accounts = append(accounts, platform.Account{
			ID:       acct.ID,
			Platform: platform.Platform(acct.Platform),
			Username: acct.Username,
			Server:   acct.Server,
			TokenRef: acct.TokenEnv,
			Selected: acct.Selected == nil || *acct.Selected,
		})
	}
	return accounts
}

// MutedKeywords implements the aggregator's settings collaborator.
func (c *Config) MutedKeywords() []string {
	return c.Filters.MutedKeywords
}

// ReplyFilteringEnabled implements the aggregator's settings collaborator.
func (c *Config) ReplyFilteringEnabled() bool {
	return c.Filters.ReplyFiltering
}

// FollowedHandles implements the aggregator's settings collaborator.
func (c *Config) FollowedHandles() []string {
	return c.Filters.Followed
}

// EnvTokenSource resolves an account's credential reference through the
// environment.
func EnvTokenSource() platform.TokenSource {
	return func(acct platform.Account) (string, error) {
		token := os.Getenv(acct.TokenRef)
		if token == "" {
			return "", fmt.Errorf("env var %s is not set", acct.TokenRef)
		}
		return token, nil
	}
}
