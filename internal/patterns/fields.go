package patterns

import (
	"regexp"
	"strings"

	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
)

// Multi-line values run until a blank line, a line opening with a capital
// letter, or the end of the text. Only the label is case-insensitive so the
// capital-letter terminator keeps its meaning.
func multiLine(labels ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(labels))
	for i, l := range labels {
		out[i] = regexp.MustCompile(`(?i:` + l + `)[:\s]+([\s\S]+?)(?:\n\n|\n[A-Z]|$)`)
	}
	return out
}

func singleLine(labels ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(labels))
	for i, l := range labels {
		out[i] = regexp.MustCompile(`(?i:` + l + `)[:\s]+(.+?)(?:\n|$)`)
	}
	return out
}

// A label declaration is a whole word followed by a colon, so "#tag" and
// "etiquetagem" never open one.
func labelDeclaration(labels ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(labels))
	for i, l := range labels {
		out[i] = regexp.MustCompile(`(?i)(?:^|[^#` + wordClass + `])(?:` + l + `)\s*:[ \t]*([^\n]+)`)
	}
	return out
}

// Link tokens are tracker keys such as PROJ-123 and stay case-sensitive.
func linkToken(labels ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(labels))
	for i, l := range labels {
		out[i] = regexp.MustCompile(`(?i:` + l + `)[:\s]+([A-Z]+-\d+)`)
	}
	return out
}

var fieldPatterns = map[string][]*regexp.Regexp{
	item.FieldSummary:     singleLine(`título`, `summary`, `nome`),
	item.FieldDescription: multiLine(`descrição`, `description`),

	item.FieldEpicName:  singleLine(`nome do épico`, `epic name`),
	item.FieldObjective: multiLine(`objetivo`, `objective`),
	item.FieldBenefits:  multiLine(`benefícios`, `benefits`),
	item.FieldRisks:     multiLine(`riscos`, `risks`),

	item.FieldAsA:           singleLine(`como`, `as a`),
	item.FieldIWant:         singleLine(`gostaria`, `quero`, `i want`),
	item.FieldSoThat:        singleLine(`para`, `so that`),
	item.FieldPreconditions: multiLine(`pré[- ]condições`, `preconditions`),
	item.FieldRules:         multiLine(`regras`, `rules`),
	item.FieldExceptions:    multiLine(`exceção`, `exceptions`),

	item.FieldErrorScenario:    multiLine(`cenário de erro`, `error scenario`),
	item.FieldExpectedScenario: multiLine(`cenário esperado`, `expected scenario`),
	item.FieldImpact:           multiLine(`impacto`, `impact`),
	item.FieldOrigin:           multiLine(`origem`, `origin`),
	item.FieldSolution:         multiLine(`solução`, `solution`),
	item.FieldStepsToReproduce: multiLine(`passos para reproduzir`, `steps to reproduce`),
	item.FieldSeverity:         singleLine(`severidade`, `severity`),

	item.FieldAcceptanceCriteria: multiLine(`critérios de aceite`, `critérios de aceitação`, `acceptance criteria`),
	item.FieldTestScenarios:      multiLine(`cenários de teste`, `test scenarios`),

	item.FieldEpicLink:  linkToken(`épico`, `epico`, `epic`),
	item.FieldParentKey: linkToken(`pai`, `parent`),
	item.FieldStoryLink: linkToken(`história`, `historia`, `story`),
}

// Field returns the ordered patterns declared for a field, or nil.
func Field(name string) []*regexp.Regexp {
	return append([]*regexp.Regexp(nil), fieldPatterns[name]...)
}

// Find returns the trimmed capture of the first pattern for name that
// matches text, or "" when none does.
func Find(text, name string) string {
	for _, re := range fieldPatterns[name] {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

var (
	labelLists = labelDeclaration(`labels?`, `tags?`, `etiquetas?`)
	hashtag    = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)
)

// ExplicitLabels returns the comma-separated entries of the first label
// declaration in text, trimmed, without a leading '#'.
func ExplicitLabels(text string) []string {
	for _, re := range labelLists {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		var out []string
		for _, l := range strings.Split(m[1], ",") {
			if l = strings.TrimPrefix(strings.TrimSpace(l), "#"); l != "" {
				out = append(out, l)
			}
		}
		return out
	}
	return nil
}

// Hashtags returns every #tag token in text without the '#'.
func Hashtags(text string) []string {
	var out []string
	for _, m := range hashtag.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

var bullet = regexp.MustCompile(`^[•\-\*]\s*`)

// StripBullet removes a leading bullet marker from a trimmed line.
func StripBullet(line string) string {
	return bullet.ReplaceAllString(line, "")
}
