package secrets

import (
	"fmt"
	"sort"
	"time"
)

// Result is the outcome of scrubbing one text.
type Result struct {
	Original string `json:"-"`
	Scrubbed string `json:"scrubbed"`
	// Findings never carry the matched value.
	Findings []Finding     `json:"findings,omitempty"`
	Duration time.Duration `json:"duration"`
	ByRule   map[string]int `json:"by_rule,omitempty"`
}

// Finding locates one detected secret.
type Finding struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	Severity    string `json:"severity,omitempty"`
	// Line is 1-indexed.
	Line int `json:"line"`
}

// HasFindings reports whether anything was redacted.
func (r *Result) HasFindings() bool { return len(r.Findings) > 0 }

// RuleIDs returns the matched rule IDs, sorted.
func (r *Result) RuleIDs() []string {
	ids := make([]string, 0, len(r.ByRule))
	for id := range r.ByRule {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Summary describes the result in one line for logs and the CLI.
func (r *Result) Summary() string {
	if !r.HasFindings() {
		return "no secrets detected"
	}
	return fmt.Sprintf("%d secret(s) redacted: %v", len(r.Findings), r.RuleIDs())
}

func newResult(content string) *Result {
	return &Result{Original: content, Scrubbed: content, ByRule: make(map[string]int)}
}

func (r *Result) add(f Finding) {
	r.Findings = append(r.Findings, f)
	r.ByRule[f.RuleID]++
}
