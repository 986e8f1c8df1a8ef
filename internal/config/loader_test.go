package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// setupTestHome points HOME at a temporary directory and returns the
// configuration directory inside it.
func setupTestHome(t *testing.T) string {
	t.Helper()
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".config", "pm")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	return dir
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := filepath.Join(dir, "config.yaml")
	yamlContent := `server:
  port: 9300
tracker:
  base_url: https://acme.atlassian.net
  email: pm@acme.com
  api_token: from-file
  project_key: PAY
store:
  backend: memory
logging:
  format: console
`
	if err := os.WriteFile(path, []byte(yamlContent), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("PM_TRACKER_PROJECT_KEY", "OPS")

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v", err)
	}
	if cfg.Server.Port != 9300 {
		t.Errorf("Server.Port = %d, want 9300", cfg.Server.Port)
	}
	if cfg.Tracker.APIToken.Value() != "from-file" {
		t.Errorf("APIToken = %q, want from-file", cfg.Tracker.APIToken.Value())
	}
	if cfg.Tracker.ProjectKey != "OPS" {
		t.Errorf("ProjectKey = %q, want env override OPS", cfg.Tracker.ProjectKey)
	}
	if cfg.Store.Backend != "memory" || cfg.Logging.Format != "console" {
		t.Errorf("Store.Backend = %q, Logging.Format = %q", cfg.Store.Backend, cfg.Logging.Format)
	}
	// Unset keys keep their defaults.
	if cfg.AI.MaxTokens != 2000 {
		t.Errorf("AI.MaxTokens = %d, want default 2000", cfg.AI.MaxTokens)
	}
}

func TestLoadWithFile_DefaultPathMissing(t *testing.T) {
	setupTestHome(t)

	cfg, err := LoadWithFile("")
	if err != nil {
		t.Fatalf("LoadWithFile(\"\") error = %v", err)
	}
	if cfg.Server.Port != 8085 {
		t.Errorf("Server.Port = %d, want default", cfg.Server.Port)
	}
}

func TestLoadWithFile_Rejects(t *testing.T) {
	dir := setupTestHome(t)

	t.Run("outside allowed directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("server:\n  port: 1\n"), 0600); err != nil {
			t.Fatal(err)
		}
		_, err := LoadWithFile(path)
		if err == nil || !strings.Contains(err.Error(), "must be in") {
			t.Errorf("error = %v, want path rejection", err)
		}
	})

	t.Run("traversal", func(t *testing.T) {
		_, err := LoadWithFile(filepath.Join(dir, "..", "..", "config.yaml"))
		if err == nil {
			t.Error("expected traversal to be rejected")
		}
	})

	t.Run("sibling prefix", func(t *testing.T) {
		_, err := LoadWithFile(dir + "-evil/config.yaml")
		if err == nil {
			t.Error("expected sibling directory to be rejected")
		}
	})

	t.Run("world readable", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("permission model differs")
		}
		path := filepath.Join(dir, "open.yaml")
		if err := os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chmod(path, 0644); err != nil {
			t.Fatal(err)
		}
		_, err := LoadWithFile(path)
		if err == nil || !strings.Contains(err.Error(), "insecure config file permissions") {
			t.Errorf("error = %v, want permission rejection", err)
		}
	})

	t.Run("too large", func(t *testing.T) {
		path := filepath.Join(dir, "big.yaml")
		big := "# " + strings.Repeat("x", maxConfigFileSize) + "\n"
		if err := os.WriteFile(path, []byte(big), 0600); err != nil {
			t.Fatal(err)
		}
		_, err := LoadWithFile(path)
		if err == nil || !strings.Contains(err.Error(), "too large") {
			t.Errorf("error = %v, want size rejection", err)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		if err := os.WriteFile(path, []byte("server: [\n"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadWithFile(path); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestEnsureConfigDir(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	if err := EnsureConfigDir(); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	info, err := os.Stat(filepath.Join(home, ".config", "pm"))
	if err != nil {
		t.Fatalf("config dir not created: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0700 {
		t.Errorf("config dir mode = %v, want 0700", info.Mode().Perm())
	}
}
