package template

import (
	"strings"

	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
)

// legacySections are the labelled fields Legacy writes after the summary and
// description, in order. List values are bulleted, text is kept as is.
var legacySections = []struct {
	title string
	field string
	list  bool
}{
	{"Objetivo", item.FieldObjective, false},
	{"Benefícios", item.FieldBenefits, true},
	{"Riscos", item.FieldRisks, true},
	{"Pré Condições", item.FieldPreconditions, true},
	{"Regras", item.FieldRules, true},
	{"Exceção à Regra", item.FieldExceptions, true},
	{"Critérios de Aceite", item.FieldAcceptanceCriteria, true},
	{"Cenários de Teste", item.FieldTestScenarios, true},
	{"Cenário de Erro", item.FieldErrorScenario, false},
	{"Cenário Esperado", item.FieldExpectedScenario, false},
	{"Passos para Reproduzir", item.FieldStepsToReproduce, true},
	{"Impacto", item.FieldImpact, false},
	{"Origem", item.FieldOrigin, false},
	{"Solução", item.FieldSolution, false},
}

// Legacy renders every non-empty field as an unstructured block, without
// validation. It is the fallback when Render reports a TemplateError, so it
// must not depend on the type having a layout.
func Legacy(fs item.FieldSet) string {
	var b strings.Builder
	if v := strings.TrimSpace(fs.Get(item.FieldSummary)); v != "" {
		b.WriteString(v + "\n\n")
	}
	if v := strings.TrimSpace(fs.Get(item.FieldDescription)); v != "" {
		b.WriteString(v + "\n\n")
	}

	story := FormatUserStory(fs.Get(item.FieldAsA), fs.Get(item.FieldIWant), fs.Get(item.FieldSoThat))
	if story == "" {
		story = fs.Get(item.FieldUserStoryFormat)
	}
	if story = strings.TrimSpace(story); story != "" {
		b.WriteString(story + "\n\n")
	}

	for _, s := range legacySections {
		if s.list {
			if items := fs.List(s.field); len(items) > 0 {
				b.WriteString(s.title + ":\n" + List(items) + "\n")
			}
			continue
		}
		if v := strings.TrimSpace(fs.Get(s.field)); v != "" {
			b.WriteString(s.title + ":\n" + v + "\n\n")
		}
	}

	if labels := fs.List(item.FieldLabels); len(labels) > 0 {
		b.WriteString("Labels: " + strings.Join(labels, ", "))
	}
	return strings.TrimSpace(b.String())
}
