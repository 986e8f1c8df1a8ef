// Package config provides configuration loading for pm and pmd.
//
// Values come from built-in defaults, an optional YAML file and the
// environment, in increasing order of precedence. Environment variables use
// the PM_ prefix and a SECTION_FIELD layout (PM_TRACKER_API_TOKEN sets
// tracker.api_token). The JIRA_*, GPT_*, AWS_S3_* and LOG_LEVEL variables
// read by earlier deployments are honored below the PM_ ones.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Gabriell-Belmont/sam--product-management/internal/ai"
	"github.com/Gabriell-Belmont/sam--product-management/internal/blobstore"
	"github.com/Gabriell-Belmont/sam--product-management/internal/secrets"
	"github.com/Gabriell-Belmont/sam--product-management/internal/tracker"
)

// Config holds the complete configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Tracker       TrackerConfig       `koanf:"tracker"`
	AI            AIConfig            `koanf:"ai"`
	Store         StoreConfig         `koanf:"store"`
	NATS          NATSConfig          `koanf:"nats"`
	Secrets       SecretsConfig       `koanf:"secrets"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
	Pipeline      PipelineConfig      `koanf:"pipeline"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TrackerConfig holds the Jira connection.
type TrackerConfig struct {
	BaseURL       string   `koanf:"base_url"`
	Email         string   `koanf:"email"`
	APIToken      Secret   `koanf:"api_token"`
	ProjectKey    string   `koanf:"project_key"`
	EpicNameField string   `koanf:"epic_name_field"`
	EpicLinkField string   `koanf:"epic_link_field"`
	Timeout       Duration `koanf:"timeout"`
}

// ClientConfig converts to the tracker client configuration.
func (t TrackerConfig) ClientConfig() tracker.Config {
	return tracker.Config{
		BaseURL:       strings.TrimRight(t.BaseURL, "/"),
		Email:         t.Email,
		APIToken:      t.APIToken.Value(),
		ProjectKey:    t.ProjectKey,
		EpicNameField: t.EpicNameField,
		EpicLinkField: t.EpicLinkField,
		Timeout:       t.Timeout.Duration(),
	}
}

// AIConfig holds the language model client settings.
type AIConfig struct {
	// Enabled false forces the rule-based path whatever the provider.
	Enabled       bool     `koanf:"enabled"`
	Provider      string   `koanf:"provider"`
	Model         string   `koanf:"model"`
	APIKey        Secret   `koanf:"api_key"`
	BaseURL       string   `koanf:"base_url"`
	MaxTokens     int      `koanf:"max_tokens"`
	Temperature   float64  `koanf:"temperature"`
	RetryAttempts int      `koanf:"retry_attempts"`
	RetryDelay    Duration `koanf:"retry_delay"`
	RetryJitter   float64  `koanf:"retry_jitter"`
	Timeout       Duration `koanf:"timeout"`
	RatePerMinute float64  `koanf:"rate_per_minute"`
	Burst         int      `koanf:"burst"`
	// Enrich asks the model to improve single items before templating.
	Enrich bool `koanf:"enrich"`
}

// ClientConfig converts to the ai client configuration. An unset provider
// resolves to openai when an API key is present.
func (a AIConfig) ClientConfig() ai.Config {
	provider := a.Provider
	switch {
	case !a.Enabled:
		provider = ai.ProviderNone
	case provider == "" && a.APIKey.IsSet():
		provider = ai.ProviderOpenAI
	case provider == "":
		provider = ai.ProviderNone
	}
	return ai.Config{
		Provider:       provider,
		Model:          a.Model,
		APIKey:         a.APIKey.Value(),
		BaseURL:        a.BaseURL,
		MaxTokens:      a.MaxTokens,
		Temperature:    a.Temperature,
		Attempts:       a.RetryAttempts,
		RetryDelay:     a.RetryDelay.Duration(),
		AttemptTimeout: a.Timeout.Duration(),
		Jitter:         a.RetryJitter,
		RatePerMinute:  a.RatePerMinute,
		Burst:          a.Burst,
	}
}

// StoreConfig selects where items and contexts are persisted.
type StoreConfig struct {
	Backend string `koanf:"backend"`
	RootDir string `koanf:"root_dir"`
	Prefix  string `koanf:"prefix"`
	Bucket  string `koanf:"bucket"`
}

// BlobConfig converts to the blobstore configuration.
func (s StoreConfig) BlobConfig() blobstore.Config {
	return blobstore.Config{
		Backend: s.Backend,
		RootDir: expandHome(s.RootDir),
		Bucket:  s.Bucket,
		Prefix:  s.Prefix,
	}
}

// NATSConfig holds the NATS connection used for events and the nats store.
type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
}

// SecretsConfig controls prompt scrubbing.
type SecretsConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Engine         string   `koanf:"engine"`
	AllowlistFiles []string `koanf:"allowlist_files"`
}

// ScrubberConfig converts to the secrets configuration.
func (s SecretsConfig) ScrubberConfig() *secrets.Config {
	cfg := secrets.DefaultConfig()
	cfg.Enabled = s.Enabled
	cfg.Engine = s.Engine
	for _, f := range s.AllowlistFiles {
		cfg.AllowlistFiles = append(cfg.AllowlistFiles, expandHome(f))
	}
	return cfg
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level    string `koanf:"level"`
	Format   string `koanf:"format"`
	Sampling bool   `koanf:"sampling"`
}

// ObservabilityConfig holds metrics and tracing settings. MetricsEnabled
// serves Prometheus metrics; EnableTelemetry exports OTLP traces and metrics.
type ObservabilityConfig struct {
	MetricsEnabled  bool     `koanf:"metrics_enabled"`
	EnableTelemetry bool     `koanf:"enable_telemetry"`
	ServiceName     string   `koanf:"service_name"`
	OTLPEndpoint    string   `koanf:"otlp_endpoint"`
	OTLPProtocol    string   `koanf:"otlp_protocol"`
	OTLPInsecure    bool     `koanf:"otlp_insecure"`
	SampleRate      float64  `koanf:"sample_rate"`
	ExportInterval  Duration `koanf:"export_interval"`
}

// PipelineConfig holds run defaults.
type PipelineConfig struct {
	DefaultUser    string `koanf:"default_user"`
	DefaultProject string `koanf:"default_project"`
}

var (
	validProviders = []string{"", ai.ProviderNone, ai.ProviderOpenAI, ai.ProviderAnthropic, ai.ProviderLangchain}
	validBackends  = []string{blobstore.BackendMemory, blobstore.BackendFS, blobstore.BackendNATS}
	validEngines   = []string{secrets.EngineRegex, secrets.EngineGitleaks}
	validFormats   = []string{"json", "console"}
)

// Validate reports the first invalid setting. Tracker credentials are not
// checked here: commands that never reach the tracker run without them.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if !oneOf(c.AI.Provider, validProviders) {
		return fmt.Errorf("invalid ai provider %q", c.AI.Provider)
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("ai temperature must be between 0 and 2, got %v", c.AI.Temperature)
	}
	if c.AI.RetryJitter < 0 || c.AI.RetryJitter > 1 {
		return fmt.Errorf("ai retry jitter must be between 0 and 1, got %v", c.AI.RetryJitter)
	}
	if !oneOf(c.Store.Backend, validBackends) {
		return fmt.Errorf("invalid store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == blobstore.BackendNATS && !c.NATS.Enabled {
		return errors.New("store backend nats requires nats.enabled")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return errors.New("nats url required when nats is enabled")
	}
	if c.Secrets.Enabled && !oneOf(c.Secrets.Engine, validEngines) {
		return fmt.Errorf("invalid secrets engine %q", c.Secrets.Engine)
	}
	if !oneOf(c.Logging.Format, validFormats) {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}
	if c.Observability.SampleRate < 0 || c.Observability.SampleRate > 1 {
		return fmt.Errorf("sample rate must be between 0 and 1, got %v", c.Observability.SampleRate)
	}
	return nil
}

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
