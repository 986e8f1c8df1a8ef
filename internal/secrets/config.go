package secrets

import (
	"fmt"
	"regexp"
)

// Engine names.
const (
	EngineRegex    = "regex"
	EngineGitleaks = "gitleaks"
)

// DefaultRedaction replaces every detected secret.
const DefaultRedaction = "[REDACTED]"

// Config configures the scrubber.
type Config struct {
	Enabled bool `koanf:"enabled"`

	// Engine is regex or gitleaks. Empty means regex.
	Engine string `koanf:"engine"`

	// Rules are the regex engine's rules. Empty means DefaultRules.
	Rules []Rule `koanf:"rules"`

	RedactionString string `koanf:"redaction_string"`

	// AllowList holds content patterns never redacted, for both engines.
	AllowList []string `koanf:"allow_list"`

	// AllowlistFiles are TOML allowlists merged into AllowList.
	AllowlistFiles []string `koanf:"allowlist_files"`

	compiledRules     []*compiledRule
	compiledAllowList []*regexp.Regexp
}

// Rule defines a secret detection rule.
type Rule struct {
	ID          string `koanf:"id"`
	Description string `koanf:"description"`
	Pattern     string `koanf:"pattern"`
	// Keywords, when set, must appear somewhere in the content for the
	// rule to run.
	Keywords []string `koanf:"keywords"`
	Severity string   `koanf:"severity"`
}

type compiledRule struct {
	Rule
	pattern  *regexp.Regexp
	keywords []*regexp.Regexp
}

// DefaultConfig enables the regex engine with DefaultRules.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		Engine:          EngineRegex,
		RedactionString: DefaultRedaction,
		Rules:           DefaultRules(),
	}
}

// Validate fills defaults, loads allowlist files and compiles patterns.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.RedactionString == "" {
		c.RedactionString = DefaultRedaction
	}
	switch c.Engine {
	case "":
		c.Engine = EngineRegex
	case EngineRegex, EngineGitleaks:
	default:
		return fmt.Errorf("unknown secrets engine: %s", c.Engine)
	}
	if c.Engine == EngineRegex && len(c.Rules) == 0 {
		c.Rules = DefaultRules()
	}

	c.compiledRules = make([]*compiledRule, 0, len(c.Rules))
	for i, rule := range c.Rules {
		if rule.ID == "" {
			return fmt.Errorf("rule %d: ID is required", i)
		}
		if rule.Pattern == "" {
			return fmt.Errorf("rule %s: pattern is required", rule.ID)
		}
		pattern, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return fmt.Errorf("rule %s: invalid pattern: %w", rule.ID, err)
		}
		compiled := &compiledRule{Rule: rule, pattern: pattern}
		for _, kw := range rule.Keywords {
			compiled.keywords = append(compiled.keywords, regexp.MustCompile("(?i)"+regexp.QuoteMeta(kw)))
		}
		c.compiledRules = append(c.compiledRules, compiled)
	}

	allow, err := LoadAllowlists(c.AllowlistFiles...)
	if err != nil {
		return err
	}
	patterns := append(append([]string{}, c.AllowList...), allow.Regexes...)

	c.compiledAllowList = make([]*regexp.Regexp, 0, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("%w: allow_list %d: %v", ErrInvalidRegex, i, err)
		}
		c.compiledAllowList = append(c.compiledAllowList, re)
	}
	return nil
}

func (c *Config) allowed(match string) bool {
	for _, re := range c.compiledAllowList {
		if re.MatchString(match) {
			return true
		}
	}
	return false
}
