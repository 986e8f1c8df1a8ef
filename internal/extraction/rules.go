package extraction

import (
	"strings"

	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
	"github.com/Gabriell-Belmont/sam--product-management/internal/patterns"
)

// Extract applies the rule-based field patterns for t to the raw prompt.
// Absent fields are omitted; summary always falls back to the first line.
func Extract(text string, t item.Type) item.FieldSet {
	fs := item.FieldSet{}
	setFound(fs, text, item.FieldSummary)
	setFound(fs, text, item.FieldDescription)
	if fs.Empty(item.FieldSummary) {
		fs.Set(item.FieldSummary, item.FirstLine(text))
	}

	switch t {
	case item.TypeEpic:
		extractEpic(fs, text)
	case item.TypeStory:
		extractStory(fs, text)
	case item.TypeBug:
		extractBug(fs, text)
	case item.TypeSubtask, item.TypeSubBug:
		setFound(fs, text, item.FieldParentKey)
	}

	if t != item.TypeBug {
		setFound(fs, text, item.FieldAcceptanceCriteria)
	}

	setFound(fs, text, item.FieldEpicLink)
	setFound(fs, text, item.FieldStoryLink)
	setFound(fs, text, item.FieldParentKey)

	fs.SetList(item.FieldLabels, Labels(text))
	return fs
}

// Labels collects the explicit label list and every hashtag, lower-cased,
// deduplicated in first-seen order.
func Labels(text string) []string {
	raw := append(patterns.ExplicitLabels(text), patterns.Hashtags(text)...)
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

func setFound(fs item.FieldSet, text, name string) string {
	v := patterns.Find(text, name)
	if v != "" {
		fs.Set(name, v)
	}
	return v
}

func extractEpic(fs item.FieldSet, text string) {
	setFound(fs, text, item.FieldEpicName)
	setFound(fs, text, item.FieldObjective)
	setFound(fs, text, item.FieldBenefits)
	setFound(fs, text, item.FieldRisks)
}

func extractStory(fs item.FieldSet, text string) {
	asA := setFound(fs, text, item.FieldAsA)
	iWant := setFound(fs, text, item.FieldIWant)
	soThat := setFound(fs, text, item.FieldSoThat)
	if asA != "" && iWant != "" {
		format := UserStory(asA, iWant, soThat)
		fs.Set(item.FieldUserStoryFormat, format)
		fs.SetIfEmpty(item.FieldDescription, format)
	}
	setFound(fs, text, item.FieldPreconditions)
	setFound(fs, text, item.FieldRules)
	setFound(fs, text, item.FieldExceptions)
	setFound(fs, text, item.FieldTestScenarios)
}

func extractBug(fs item.FieldSet, text string) {
	sections := []struct{ field, title string }{
		{item.FieldErrorScenario, "Cenário de Erro"},
		{item.FieldExpectedScenario, "Cenário Esperado"},
		{item.FieldImpact, "Impacto"},
		{item.FieldOrigin, "Origem"},
		{item.FieldSolution, "Solução"},
	}
	var b strings.Builder
	for _, s := range sections {
		v := setFound(fs, text, s.field)
		if v == "" {
			continue
		}
		b.WriteString(s.title + ":\n" + v)
		if s.field != item.FieldSolution {
			b.WriteString("\n\n")
		}
	}
	if b.Len() > 0 {
		fs.Set(item.FieldDescription, b.String())
	}
	setFound(fs, text, item.FieldStepsToReproduce)
	setFound(fs, text, item.FieldSeverity)
}

// UserStory renders the "Como/Gostaria/Para" block. soThat is optional.
func UserStory(asA, iWant, soThat string) string {
	s := "Como: " + asA + "\nGostaria: " + iWant
	if soThat != "" {
		s += "\nPara: " + soThat
	}
	return s
}
