// internal/config/loader.go
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix         = "PM_"
	appDir            = "pm"
	maxConfigFileSize = 1024 * 1024 // 1MB
)

// defaults is loaded first so that booleans defaulting to true survive an
// unmarshal into zero values.
const defaults = `
server:
  host: 127.0.0.1
  port: 8085
  shutdown_timeout: 10s
tracker:
  epic_name_field: customfield_10014
  epic_link_field: customfield_10014
  timeout: 30s
ai:
  enabled: true
  model: gpt-4o
  max_tokens: 2000
  temperature: 0.7
  retry_attempts: 3
  retry_delay: 2s
  retry_jitter: 0
  timeout: 30s
  rate_per_minute: 50
  burst: 5
  enrich: false
store:
  backend: fs
  root_dir: ~/.config/pm/store
  prefix: contexts/
  bucket: pm-cli-memory
nats:
  enabled: false
  url: nats://127.0.0.1:4222
secrets:
  enabled: true
  engine: regex
logging:
  level: info
  format: json
  sampling: false
observability:
  metrics_enabled: true
  enable_telemetry: false
  service_name: pm
  otlp_endpoint: localhost:4317
  otlp_protocol: grpc
  otlp_insecure: true
  sample_rate: 1.0
  export_interval: 15s
pipeline:
  default_user: default_user
`

// legacyEnv maps variables of earlier deployments to config keys.
var legacyEnv = map[string]string{
	"JIRA_BASE_URL":        "tracker.base_url",
	"JIRA_EMAIL":           "tracker.email",
	"JIRA_API_TOKEN":       "tracker.api_token",
	"JIRA_PROJECT_KEY":     "tracker.project_key",
	"JIRA_EPIC_LINK_FIELD": "tracker.epic_link_field",
	"GPT_ENABLED":          "ai.enabled",
	"GPT_API_KEY":          "ai.api_key",
	"GPT_MODEL":            "ai.model",
	"GPT_MAX_TOKENS":       "ai.max_tokens",
	"GPT_TEMPERATURE":      "ai.temperature",
	"GPT_RETRY_ATTEMPTS":   "ai.retry_attempts",
	"GPT_RETRY_DELAY":      "ai.retry_delay",
	"GPT_TIMEOUT":          "ai.timeout",
	"AWS_S3_BUCKET":        "store.bucket",
	"AWS_S3_PREFIX":        "store.prefix",
	"LOG_LEVEL":            "logging.level",
}

// listKeys are the list-valued settings. Their environment values are
// comma-separated.
var listKeys = map[string]bool{
	"secrets.allowlist_files": true,
}

func splitList(v string) []string {
	out := []string{}
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Load reads the defaults and the environment only.
func Load() (*Config, error) {
	return load(nil)
}

// LoadWithFile loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. PM_ environment variables (PM_SERVER_PORT, PM_AI_API_KEY, ...)
//  2. Legacy environment variables (JIRA_API_TOKEN, GPT_MODEL, ...)
//  3. YAML config file (~/.config/pm/config.yaml)
//  4. Built-in defaults
//
// An empty configPath selects the default path. A missing file is not an
// error.
//
// # Security Considerations
//
// The file must live under ~/.config/pm/ or /etc/pm/, be at most 1MB and
// have 0600 or 0400 permissions since it usually holds API tokens.
func LoadWithFile(configPath string) (*Config, error) {
	if configPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}
	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	f, err := os.Open(configPath)
	if os.IsNotExist(err) {
		return load(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	// Validate through the open descriptor to avoid a TOCTOU race.
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return load(content)
}

func load(file []byte) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaults)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if len(file) > 0 {
		if err := k.Load(rawbytes.Provider(file), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return legacyEnv[s]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load legacy environment variables: %w", err)
	}

	// PM_TRACKER_API_TOKEN -> tracker.api_token: split on the first
	// underscore only, field names keep theirs.
	if err := k.Load(env.ProviderWithValue(envPrefix, ".", func(s, v string) (string, interface{}) {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		if section, field, ok := strings.Cut(key, "_"); ok {
			key = section + "." + field
		}
		if listKeys[key] {
			return key, splitList(v)
		}
		return key, v
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", appDir), nil
}

// DefaultPath returns ~/.config/pm/config.yaml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// EnsureConfigDir creates the configuration directory with 0700
// permissions.
func EnsureConfigDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	return nil
}

// validateConfigPath checks that path is inside an allowed directory. It
// runs before the file is known to exist.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	// Symlinks may point out of the allowed directories.
	resolved, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolved = absPath
	}

	userDir, err := Dir()
	if err != nil {
		return err
	}
	for _, dir := range []string{userDir, filepath.Join("/etc", appDir)} {
		if resolved == dir || strings.HasPrefix(resolved, dir+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/%s/ or /etc/%s/", appDir, appDir)
}

func validateConfigFileProperties(info os.FileInfo) error {
	// Windows has a different permission model.
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
