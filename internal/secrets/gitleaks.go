package secrets

import (
	"regexp"
	"strings"
	"time"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// gitleaksScrubber runs the gitleaks default rule set.
type gitleaksScrubber struct {
	config *Config
	rules  gitleaksConfig.Config
}

func newGitleaks(cfg *Config) (*gitleaksScrubber, error) {
	base, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, err
	}
	rules := base.Config

	allow, err := LoadAllowlists(cfg.AllowlistFiles...)
	if err != nil {
		return nil, err
	}
	global := &gitleaksConfig.Allowlist{
		Description: "pm allowlist",
		StopWords:   allow.StopWords,
	}
	for _, p := range append(append([]string{}, cfg.AllowList...), allow.Regexes...) {
		// Validate has compiled every pattern already.
		global.Regexes = append(global.Regexes, (*gitleaksRegexp.Regexp)(regexp.MustCompile(p)))
	}
	rules.Allowlists = append(rules.Allowlists, global)

	return &gitleaksScrubber{config: cfg, rules: rules}, nil
}

func (s *gitleaksScrubber) Scrub(content string) *Result {
	start := time.Now()
	result := newResult(content)

	// A detector accumulates findings, so each call gets its own.
	detector := detect.NewDetector(s.rules)
	scrubbed := content
	for _, f := range detector.DetectString(content) {
		if f.Secret == "" || s.config.allowed(f.Secret) {
			continue
		}
		result.add(Finding{
			RuleID:      f.RuleID,
			Description: f.Description,
			Severity:    "high",
			Line:        f.StartLine,
		})
		scrubbed = strings.ReplaceAll(scrubbed, f.Secret, s.config.RedactionString)
	}

	result.Scrubbed = scrubbed
	result.Duration = time.Since(start)
	return result
}

func (s *gitleaksScrubber) Check(content string) *Result {
	result := s.Scrub(content)
	result.Scrubbed = content
	return result
}

func (s *gitleaksScrubber) Engine() string { return EngineGitleaks }

func (s *gitleaksScrubber) IsEnabled() bool { return true }

var _ Scrubber = (*gitleaksScrubber)(nil)
