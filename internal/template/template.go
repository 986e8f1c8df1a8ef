// Package template renders the tracker description of a work item from its
// fields, using a fixed section layout per item type.
package template

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
	"github.com/Gabriell-Belmont/sam--product-management/internal/patterns"
)

const (
	notProvided     = "Não fornecido"
	defaultSeverity = "Medium"
	bugLabel        = "bug"
)

// TemplateError reports a type that has no template.
type TemplateError struct {
	Type item.Type
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("unknown template: %s", e.Type)
}

// Render validates fs against the required fields of t and returns a copy
// with the description rendered. epic_name defaults to summary, bug severity
// to Medium, and sub-bugs always carry the "bug" label. fs is not modified.
//
// A missing required field yields *item.ValidationError; an unknown type
// yields *TemplateError.
func Render(t item.Type, fs item.FieldSet) (item.FieldSet, error) {
	if !t.Valid() {
		return nil, &TemplateError{Type: t}
	}
	it, err := item.New(t, fs)
	if err != nil {
		return nil, err
	}

	out := fs.Clone()
	switch v := it.(type) {
	case *item.Epic:
		out.Set(item.FieldDescription, renderEpic(v))
		out.SetIfEmpty(item.FieldEpicName, v.Summary)
	case *item.Story:
		out.Set(item.FieldDescription, renderStory(v, fs))
	case *item.Task:
		out.Set(item.FieldDescription, renderSimple(v.Description, v.AcceptanceCriteria))
	case *item.Subtask:
		out.Set(item.FieldDescription, renderSimple(v.Description, v.AcceptanceCriteria))
	case *item.Bug:
		out.Set(item.FieldDescription, renderBug(v))
		out.SetIfEmpty(item.FieldSeverity, defaultSeverity)
	case *item.SubBug:
		out.Set(item.FieldDescription, renderSubBug(v))
		out.SetList(item.FieldLabels, withLabel(v.Labels, bugLabel))
	}
	return out, nil
}

func renderEpic(e *item.Epic) string {
	var b strings.Builder
	b.WriteString("Descrição\nVisão geral\n")
	b.WriteString(description(e.Description) + "\n\n")
	if e.Objective != "" {
		b.WriteString("Objetivo: \n" + e.Objective + "\n\n")
	}
	section(&b, "Benefícios: ", e.Benefits)
	section(&b, "Critérios de Aceitação:", e.AcceptanceCriteria)
	section(&b, "Riscos:", e.Risks)
	return strings.TrimSpace(b.String())
}

func renderStory(s *item.Story, fs item.FieldSet) string {
	var b strings.Builder
	b.WriteString("Descrição\n")
	if s.AsA != "" && s.IWant != "" {
		b.WriteString("Como: " + s.AsA + "\n")
		b.WriteString("Gostaria: " + s.IWant + "\n")
		if s.SoThat != "" {
			b.WriteString("Para: " + s.SoThat + "\n")
		}
	} else {
		b.WriteString(description(s.Description))
	}
	b.WriteString("\n\n")

	section(&b, "Pré Condições", s.Preconditions)
	section(&b, "Regras", s.Rules)
	section(&b, "Exceção à Regra", s.Exceptions)
	section(&b, "Critérios de Aceite", s.AcceptanceCriteria)

	if list, ok := fs[item.FieldTestScenarios].([]string); ok && len(list) > 0 {
		b.WriteString("Cenários de Teste\n")
		n := 1
		for _, sc := range list {
			if sc = strings.TrimSpace(sc); sc == "" {
				continue
			}
			b.WriteString("Cenário: " + strconv.Itoa(n) + "\n" + sc + "\n\n")
			n++
		}
	} else if s.TestScenarios != "" {
		b.WriteString("Cenários de Teste\n")
		if patterns.HasScenarioMarker(s.TestScenarios) {
			b.WriteString(s.TestScenarios)
		} else {
			b.WriteString(FormatTestScenarios(s.TestScenarios))
		}
	}
	return strings.TrimSpace(b.String())
}

func renderBug(bug *item.Bug) string {
	var b strings.Builder
	b.WriteString("Descrição\n")
	for _, s := range []struct{ title, text string }{
		{"Cenário de Erro", bug.ErrorScenario},
		{"Cenário Esperado", bug.ExpectedScenario},
		{"Impacto", bug.Impact},
		{"Origem", bug.Origin},
	} {
		if s.text != "" {
			b.WriteString(s.title + "\n" + description(s.text) + "\n\n")
		}
	}
	if bug.Solution != "" {
		b.WriteString("Solução\n" + description(bug.Solution))
	} else if len(bug.StepsToReproduce) > 0 {
		b.WriteString("Passos para Reproduzir\n" + List(bug.StepsToReproduce))
	}

	out := b.String()
	if len(strings.Split(out, "\n")) <= 2 {
		out += description(bug.Description)
	}
	return strings.TrimSpace(out)
}

func renderSimple(desc string, criteria []string) string {
	out := description(desc)
	if len(criteria) > 0 {
		out += "\n\nCritérios de Aceite:\n" + List(criteria)
	}
	return strings.TrimSpace(out)
}

func renderSubBug(s *item.SubBug) string {
	out := renderSimple(s.Description, s.AcceptanceCriteria)
	if s.ErrorScenario != "" && !strings.Contains(out, "Cenário de Erro") {
		out += "\n\nCenário de Erro\n" + description(s.ErrorScenario)
	}
	if s.ExpectedScenario != "" && !strings.Contains(out, "Cenário Esperado") {
		out += "\n\nCenário Esperado\n" + description(s.ExpectedScenario)
	}
	return strings.TrimSpace(out)
}

func section(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(title + "\n" + List(items) + "\n")
}

func description(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return notProvided
	}
	return s
}

// List renders items one per line with a "• " bullet. Existing bullet
// markers are stripped first and blank entries dropped.
func List(items []string) string {
	var b strings.Builder
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		b.WriteString("• " + patterns.StripBullet(it) + "\n")
	}
	return b.String()
}

func withLabel(labels []string, label string) []string {
	out := append([]string(nil), labels...)
	for _, l := range out {
		if strings.EqualFold(l, label) {
			return out
		}
	}
	return append(out, label)
}

// FormatUserStory renders the "Como/Gostaria/Para" block, or "" when asA or
// iWant is missing.
func FormatUserStory(asA, iWant, soThat string) string {
	if asA == "" || iWant == "" {
		return ""
	}
	s := "Como: " + asA + "\nGostaria: " + iWant
	if soThat != "" {
		s += "\nPara: " + soThat
	}
	return s
}
