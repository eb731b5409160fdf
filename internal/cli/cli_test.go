package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/onefeed/internal/config"
)

func TestExampleConfigIsValid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.DefaultConfigFile)
	if err := os.WriteFile(path, []byte(exampleConfig), 0o644); err != nil {
		t.Fatalf("write example config: %v", err)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("example config should load cleanly: %v", err)
	}
	if len(cfg.Accounts) != 2 {
		t.Errorf("example accounts = %d, want one per platform", len(cfg.Accounts))
	}
}

func TestWriteIfNotExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	wrote, err := writeIfNotExists(path, []byte("first"))
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	if !wrote {
		t.Fatal("first write should create the file")
	}

	wrote, err = writeIfNotExists(path, []byte("second"))
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if wrote {
		t.Fatal("existing file must not be overwritten")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "first" {
		t.Errorf("content = %q, want original preserved", data)
	}
}

func TestDefaultConfigDir_EnvOverride(t *testing.T) {
	t.Setenv("ONEFEED_CONFIG_DIR", "/tmp/custom-onefeed")
	if got := defaultConfigDir(); got != "/tmp/custom-onefeed" {
		t.Errorf("config dir = %q", got)
	}
}
