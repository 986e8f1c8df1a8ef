package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Gabriell-Belmont/sam--product-management/internal/ai"
)

// clearEnv unsets every variable the loader reads for the duration of t.
func clearEnv(t *testing.T) {
	t.Helper()
	for name := range legacyEnv {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, envPrefix) {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8085 {
		t.Errorf("Server.Port = %d, want 8085", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout.Duration() != 10*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 10s", cfg.Server.ShutdownTimeout.Duration())
	}
	if cfg.Tracker.EpicLinkField != "customfield_10014" {
		t.Errorf("Tracker.EpicLinkField = %q, want customfield_10014", cfg.Tracker.EpicLinkField)
	}
	if !cfg.AI.Enabled || cfg.AI.Model != "gpt-4o" || cfg.AI.MaxTokens != 2000 || cfg.AI.Temperature != 0.7 {
		t.Errorf("AI = %+v, want enabled gpt-4o/2000/0.7", cfg.AI)
	}
	if cfg.AI.RetryAttempts != 3 || cfg.AI.RetryDelay.Duration() != 2*time.Second || cfg.AI.Timeout.Duration() != 30*time.Second {
		t.Errorf("AI retry = %d/%v/%v, want 3/2s/30s", cfg.AI.RetryAttempts, cfg.AI.RetryDelay.Duration(), cfg.AI.Timeout.Duration())
	}
	if cfg.Store.Backend != "fs" || cfg.Store.Prefix != "contexts/" || cfg.Store.Bucket != "pm-cli-memory" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if !cfg.Secrets.Enabled || cfg.Secrets.Engine != "regex" {
		t.Errorf("Secrets = %+v, want enabled regex", cfg.Secrets)
	}
	if cfg.Pipeline.DefaultUser != "default_user" {
		t.Errorf("Pipeline.DefaultUser = %q", cfg.Pipeline.DefaultUser)
	}
	if !strings.HasSuffix(cfg.Store.BlobConfig().RootDir, filepath.Join(".config", "pm", "store")) {
		t.Errorf("RootDir = %q, want ~ expanded", cfg.Store.BlobConfig().RootDir)
	}
}

func TestLoad_Environment(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		validate func(*testing.T, *Config)
	}{
		{
			name: "prefixed variables",
			env: map[string]string{
				"PM_SERVER_PORT":         "9191",
				"PM_TRACKER_API_TOKEN":   "tok",
				"PM_TRACKER_PROJECT_KEY": "PAY",
				"PM_AI_PROVIDER":         "anthropic",
				"PM_AI_RETRY_JITTER":     "0.25",
				"PM_NATS_ENABLED":        "true",
				"PM_STORE_BACKEND":       "nats",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Server.Port != 9191 {
					t.Errorf("Server.Port = %d, want 9191", cfg.Server.Port)
				}
				if cfg.Tracker.APIToken.Value() != "tok" || cfg.Tracker.ProjectKey != "PAY" {
					t.Errorf("Tracker = %#v", cfg.Tracker)
				}
				if cfg.AI.Provider != "anthropic" || cfg.AI.RetryJitter != 0.25 {
					t.Errorf("AI = %+v", cfg.AI)
				}
				if cfg.Store.Backend != "nats" {
					t.Errorf("Store.Backend = %q, want nats", cfg.Store.Backend)
				}
			},
		},
		{
			name: "legacy variables",
			env: map[string]string{
				"JIRA_BASE_URL":    "https://acme.atlassian.net/",
				"JIRA_EMAIL":       "pm@acme.com",
				"JIRA_API_TOKEN":   "legacy",
				"GPT_API_KEY":      "sk-test",
				"GPT_RETRY_DELAY":  "5",
				"GPT_TIMEOUT":      "45",
				"LOG_LEVEL":        "DEBUG",
				"JIRA_PROJECT_KEY": "OPS",
			},
			validate: func(t *testing.T, cfg *Config) {
				tc := cfg.Tracker.ClientConfig()
				if tc.BaseURL != "https://acme.atlassian.net" || tc.Email != "pm@acme.com" || tc.APIToken != "legacy" || tc.ProjectKey != "OPS" {
					t.Errorf("tracker config = %+v", tc)
				}
				if cfg.AI.RetryDelay.Duration() != 5*time.Second || cfg.AI.Timeout.Duration() != 45*time.Second {
					t.Errorf("AI durations = %v/%v, want 5s/45s", cfg.AI.RetryDelay.Duration(), cfg.AI.Timeout.Duration())
				}
				if got := cfg.AI.ClientConfig().Provider; got != ai.ProviderOpenAI {
					t.Errorf("provider = %q, want openai when a key is set", got)
				}
				if cfg.Logging.Level != "DEBUG" {
					t.Errorf("Logging.Level = %q, want DEBUG", cfg.Logging.Level)
				}
			},
		},
		{
			name: "prefixed wins over legacy",
			env: map[string]string{
				"JIRA_API_TOKEN":       "legacy",
				"PM_TRACKER_API_TOKEN": "current",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Tracker.APIToken.Value() != "current" {
					t.Errorf("APIToken = %q, want current", cfg.Tracker.APIToken.Value())
				}
			},
		},
		{
			name: "disabled ai",
			env: map[string]string{
				"GPT_ENABLED": "false",
				"GPT_API_KEY": "sk-test",
			},
			validate: func(t *testing.T, cfg *Config) {
				if got := cfg.AI.ClientConfig().Provider; got != ai.ProviderNone {
					t.Errorf("provider = %q, want none", got)
				}
			},
		},
		{
			name: "allowlist list",
			env:  map[string]string{"PM_SECRETS_ALLOWLIST_FILES": "/a.toml,/b.toml"},
			validate: func(t *testing.T, cfg *Config) {
				got := cfg.Secrets.ScrubberConfig().AllowlistFiles
				if len(got) != 2 || got[0] != "/a.toml" || got[1] != "/b.toml" {
					t.Errorf("AllowlistFiles = %v", got)
				}
			},
		},
		{
			name: "allowlist list with blanks",
			env:  map[string]string{"PM_SECRETS_ALLOWLIST_FILES": " /a.toml , ,/b.toml,"},
			validate: func(t *testing.T, cfg *Config) {
				got := cfg.Secrets.ScrubberConfig().AllowlistFiles
				if len(got) != 2 || got[0] != "/a.toml" || got[1] != "/b.toml" {
					t.Errorf("AllowlistFiles = %v", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.validate(t, cfg)
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"port", map[string]string{"PM_SERVER_PORT": "70000"}, "invalid server port"},
		{"provider", map[string]string{"PM_AI_PROVIDER": "gemini"}, "invalid ai provider"},
		{"backend", map[string]string{"PM_STORE_BACKEND": "s3"}, "invalid store backend"},
		{"nats store without nats", map[string]string{"PM_STORE_BACKEND": "nats"}, "requires nats.enabled"},
		{"engine", map[string]string{"PM_SECRETS_ENGINE": "trufflehog"}, "invalid secrets engine"},
		{"format", map[string]string{"PM_LOGGING_FORMAT": "xml"}, "logging format"},
		{"jitter", map[string]string{"PM_AI_RETRY_JITTER": "2"}, "jitter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestAIConfig_ClientConfig(t *testing.T) {
	tests := []struct {
		cfg  AIConfig
		want string
	}{
		{AIConfig{Enabled: true}, ai.ProviderNone},
		{AIConfig{Enabled: true, APIKey: "k"}, ai.ProviderOpenAI},
		{AIConfig{Enabled: true, Provider: ai.ProviderLangchain}, ai.ProviderLangchain},
		{AIConfig{Enabled: false, Provider: ai.ProviderAnthropic, APIKey: "k"}, ai.ProviderNone},
	}
	for i, tt := range tests {
		if got := tt.cfg.ClientConfig().Provider; got != tt.want {
			t.Errorf("case %d: provider = %q, want %q", i, got, tt.want)
		}
	}
}

func TestSecret_Redacts(t *testing.T) {
	s := Secret("ATATT3xFfGF0")
	for _, got := range []string{fmt.Sprint(s), fmt.Sprintf("%v", s), fmt.Sprintf("%#v", s)} {
		if strings.Contains(got, "ATATT3") {
			t.Errorf("formatted secret leaked: %q", got)
		}
	}
	data, err := json.Marshal(struct{ Token Secret }{s})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"Token":"[REDACTED]"}` {
		t.Errorf("json = %s", data)
	}
	if Secret("").String() != "" || Secret("").IsSet() {
		t.Error("empty secret should print empty and be unset")
	}
}

func TestDuration_UnmarshalText(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"2s", 2 * time.Second, false},
		{"1m30s", 90 * time.Second, false},
		{"2", 2 * time.Second, false},
		{"0.5", 500 * time.Millisecond, false},
		{"-1s", 0, true},
		{"-3", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		var d Duration
		err := d.UnmarshalText([]byte(tt.in))
		if (err != nil) != tt.wantErr {
			t.Errorf("UnmarshalText(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && d.Duration() != tt.want {
			t.Errorf("UnmarshalText(%q) = %v, want %v", tt.in, d.Duration(), tt.want)
		}
	}
}
