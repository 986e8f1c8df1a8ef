package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Gabriell-Belmont/sam--product-management/internal/blobstore"
	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
	"github.com/Gabriell-Belmont/sam--product-management/internal/patterns"
)

const (
	conflictLimit       = 10
	historyScanLimit    = 50
	minSignificantRunes = 4
	// similarityThreshold is the share of the prompt summary's significant
	// words a stored summary must contain.
	similarityThreshold = 0.6
)

// Conflict is an existing item that may duplicate the prompt.
type Conflict struct {
	Key     string `json:"key"`
	Summary string `json:"summary"`
	Status  string `json:"status,omitempty"`
	Source  string `json:"source"`
}

// ConflictReport lists possible duplicates of a prompt.
type ConflictReport struct {
	Type      item.Type  `json:"item_type"`
	Summary   string     `json:"summary"`
	Conflicts []Conflict `json:"conflicts"`
}

// CheckConflicts looks for open tracker items and stored items whose summary
// resembles the summary extracted from prompt. Tracker errors are returned;
// store errors are logged and the store is skipped.
func (o *Orchestrator) CheckConflicts(ctx context.Context, prompt string, pc ProjectContext) (*ConflictReport, error) {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.CheckConflicts")
	defer span.End()
	start := time.Now()
	defer o.metrics.observe(stepConflicts, start)

	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	pc = o.scope(pc)
	rec, fs := o.Classify(ctx, prompt, pc)
	report := &ConflictReport{
		Type:      rec.Type,
		Summary:   fs.Get(item.FieldSummary),
		Conflicts: []Conflict{},
	}

	issues, err := o.tracker.FindConflicts(ctx, report.Summary, conflictLimit)
	if err != nil {
		return nil, fmt.Errorf("search tracker: %w", err)
	}
	seen := make(map[string]bool)
	for _, is := range issues {
		seen[is.Key] = true
		report.Conflicts = append(report.Conflicts, Conflict{
			Key:     is.Key,
			Summary: is.Summary(),
			Status:  is.Status(),
			Source:  "tracker",
		})
	}

	if o.repo != nil && rec.Type.Valid() {
		recs, err := o.repo.ListItems(ctx, pc.Project, rec.Type, historyScanLimit)
		if err != nil {
			o.logger.Warn("failed to scan stored items for conflicts", zap.Error(err))
		}
		for _, r := range recs {
			key := r.Metadata[blobstore.MetaJiraKey]
			summary, _ := r.Data[item.FieldSummary].(string)
			if seen[key] || !Similar(report.Summary, summary) {
				continue
			}
			seen[key] = true
			report.Conflicts = append(report.Conflicts, Conflict{Key: key, Summary: summary, Source: "history"})
		}
	}
	return report, nil
}

// Similar reports whether candidate contains enough of the significant
// words of summary.
func Similar(summary, candidate string) bool {
	words := significantWords(summary)
	if len(words) == 0 {
		return false
	}
	have := make(map[string]bool)
	for _, w := range significantWords(candidate) {
		have[w] = true
	}
	hits := 0
	for _, w := range words {
		if have[w] {
			hits++
		}
	}
	return float64(hits)/float64(len(words)) >= similarityThreshold
}

func significantWords(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, w := range strings.FieldsFunc(patterns.Normalize(s), func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == ':' || r == ';' || r == '-' || r == '/'
	}) {
		if utf8.RuneCountInString(w) < minSignificantRunes || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}
