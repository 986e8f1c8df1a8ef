package patterns

import (
	"regexp"
	"strings"
)

// EpicTheme maps prompt keywords to a generated epic summary.
type EpicTheme struct {
	Summary  string
	Keywords []string
}

var epicThemes = []EpicTheme{
	{"Sistema de autenticação e autorização", []string{"login", "autenticar", "senha", "credenciais", "acesso"}},
	{"Gestão de usuários e perfis", []string{"usuário", "perfil", "conta", "cadastro", "registro"}},
	{"Sistema de pagamentos e checkout", []string{"pagamento", "compra", "checkout", "carrinho", "pedido"}},
	{"Relatórios e dashboards", []string{"relatório", "dashboard", "gráfico", "estatística", "análise"}},
}

// EpicThemes returns the epic summary buckets in priority order.
func EpicThemes() []EpicTheme {
	out := make([]EpicTheme, len(epicThemes))
	for i, t := range epicThemes {
		out[i] = EpicTheme{Summary: t.Summary, Keywords: append([]string(nil), t.Keywords...)}
	}
	return out
}

var commonVerbs = map[string]bool{
	"implementar": true,
	"criar":       true,
	"desenvolver": true,
	"adicionar":   true,
	"permitir":    true,
	"fazer":       true,
}

// CommonVerb reports whether word is a generic verb skipped when naming an epic.
func CommonVerb(word string) bool { return commonVerbs[word] }

var (
	backendTerms  = []string{"api", "banco de dados", "dados", "validação", "regra de negócio"}
	frontendTerms = []string{"interface", "tela", "botão", "formulário", "visualizar", "exibir"}
)

// BackendCriterion reports whether a lower-cased criterion concerns backend work.
func BackendCriterion(text string) bool { return ContainsAny(text, backendTerms) }

// FrontendCriterion reports whether a lower-cased criterion concerns UI work.
func FrontendCriterion(text string) bool { return ContainsAny(text, frontendTerms) }

// Story components are read from normalized text, where line breaks are gone,
// so each capture also stops at the next component keyword.
var (
	storyAsA    = regexp.MustCompile(`(?i)como[:\s]+(.+?)(?:\n|$|gostaria|quero|para)`)
	storyIWant  = regexp.MustCompile(`(?i)(?:gostaria|quero)[:\s]+(.+?)(?:\n|$|para)`)
	storySoThat = regexp.MustCompile(`(?i)para[:\s]+(.+?)(?:\n|$)`)

	inlineObjective = regexp.MustCompile(`objetivo[:\s]+(.+?)(?:\n|$)`)
	inlineBenefits  = regexp.MustCompile(`benefícios[:\s]+([\s\S]+?)(?:\n\n|\n[A-Z]|$)`)
)

// StoryComponents returns the "como", "gostaria/quero" and "para" captures
// found in text. Missing components are empty.
func StoryComponents(text string) (asA, iWant, soThat string) {
	return capture(storyAsA, text), capture(storyIWant, text), capture(storySoThat, text)
}

// InlineObjective returns an "objetivo:" value found in text.
func InlineObjective(text string) string { return capture(inlineObjective, text) }

// InlineBenefits returns a "benefícios:" block found in text.
func InlineBenefits(text string) string { return capture(inlineBenefits, text) }

var actionVerbs = func() []*regexp.Regexp {
	verbs := []string{"poder", "conseguir", "realizar", "fazer", "visualizar", "acessar", "gerenciar"}
	out := make([]*regexp.Regexp, len(verbs))
	for i, v := range verbs {
		out[i] = regexp.MustCompile(`(?i)(` + v + `)[:\s]+(.+?)(?:\n|$)`)
	}
	return out
}()

// ActionPhrase returns "<verb> <object>" for the first action verb found in
// text, trying verbs in a fixed order.
func ActionPhrase(text string) string {
	for _, re := range actionVerbs {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.ToLower(m[1]) + " " + strings.TrimSpace(m[2])
		}
	}
	return ""
}

func capture(re *regexp.Regexp, text string) string {
	if m := re.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

var (
	scenarioTitle = regexp.MustCompile(`(?i)^cenário\s*\d*\s*:`)
	scenarioAny   = regexp.MustCompile(`(?i)cenário:`)
	scenarioGiven = regexp.MustCompile(`(?i)^dado que`)
)

// ScenarioTitle reports whether line opens a titled scenario ("Cenário 2:").
func ScenarioTitle(line string) bool { return scenarioTitle.MatchString(line) }

// HasScenarioMarker reports whether text already contains "Cenário:".
func HasScenarioMarker(text string) bool { return scenarioAny.MatchString(text) }

// ScenarioGiven reports whether line opens with "Dado que".
func ScenarioGiven(line string) bool { return scenarioGiven.MatchString(line) }
