package secrets

import (
	"sort"
	"strings"
	"time"
)

// Scrubber detects and redacts secrets in text.
type Scrubber interface {
	// Scrub returns content with every secret replaced.
	Scrub(content string) *Result
	// Check detects secrets without redacting.
	Check(content string) *Result
	Engine() string
	IsEnabled() bool
}

// New creates the Scrubber selected by cfg. A nil cfg uses DefaultConfig and
// a disabled cfg yields a NoopScrubber.
func New(cfg *Config) (Scrubber, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if !cfg.Enabled {
		return NoopScrubber{}, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Engine == EngineGitleaks {
		return newGitleaks(cfg)
	}
	return &regexScrubber{config: cfg}, nil
}

// regexScrubber applies the configured rules.
type regexScrubber struct {
	config *Config
}

type span struct {
	start, end int
}

func (s *regexScrubber) Scrub(content string) *Result {
	start := time.Now()
	result := newResult(content)

	var spans []span
	for _, rule := range s.config.compiledRules {
		if !rule.applies(content) {
			continue
		}
		for _, m := range rule.pattern.FindAllStringIndex(content, -1) {
			if s.config.allowed(content[m[0]:m[1]]) {
				continue
			}
			result.add(Finding{
				RuleID:      rule.ID,
				Description: rule.Description,
				Severity:    rule.Severity,
				Line:        strings.Count(content[:m[0]], "\n") + 1,
			})
			spans = append(spans, span{m[0], m[1]})
		}
	}

	result.Scrubbed = redactSpans(content, spans, s.config.RedactionString)
	result.Duration = time.Since(start)
	return result
}

func (s *regexScrubber) Check(content string) *Result {
	result := s.Scrub(content)
	result.Scrubbed = content
	return result
}

func (s *regexScrubber) Engine() string { return EngineRegex }

func (s *regexScrubber) IsEnabled() bool { return true }

func (r *compiledRule) applies(content string) bool {
	if len(r.keywords) == 0 {
		return true
	}
	for _, kw := range r.keywords {
		if kw.MatchString(content) {
			return true
		}
	}
	return false
}

// redactSpans replaces spans, merging any that overlap or touch.
func redactSpans(content string, spans []span, with string) string {
	if len(spans) == 0 {
		return content
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	merged := []span{spans[0]}
	for _, sp := range spans[1:] {
		last := &merged[len(merged)-1]
		if sp.start <= last.end {
			if sp.end > last.end {
				last.end = sp.end
			}
			continue
		}
		merged = append(merged, sp)
	}

	var b strings.Builder
	prev := 0
	for _, sp := range merged {
		b.WriteString(content[prev:sp.start])
		b.WriteString(with)
		prev = sp.end
	}
	b.WriteString(content[prev:])
	return b.String()
}

// NoopScrubber returns content unchanged.
type NoopScrubber struct{}

func (NoopScrubber) Scrub(content string) *Result { return newResult(content) }

func (NoopScrubber) Check(content string) *Result { return newResult(content) }

func (NoopScrubber) Engine() string { return "none" }

func (NoopScrubber) IsEnabled() bool { return false }

var (
	_ Scrubber = (*regexScrubber)(nil)
	_ Scrubber = NoopScrubber{}
)
