// Package patterns holds the process-wide pattern tables used to classify
// prompts and extract item fields.
//
// Every table is compiled once at package initialization and is read-only
// afterwards. Accessors return copies of the slices so callers cannot mutate
// shared state; the *regexp.Regexp values are safe for concurrent use.
package patterns

import (
	"regexp"
	"strings"

	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
)

// wordClass matches a character that may belong to a word. RE2's \b only
// understands ASCII, so boundaries around accented words are spelled out.
const wordClass = `\p{L}\p{N}_`

// Word compiles a case-insensitive pattern matching any of the given
// alternatives as a whole word. Alternatives are raw regex fragments.
func Word(alternatives ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^` + wordClass + `])(?:` +
		strings.Join(alternatives, "|") + `)(?:[^` + wordClass + `]|$)`)
}

// TypeRule associates an item type with the keyword patterns that identify it.
type TypeRule struct {
	Type     item.Type
	Patterns []*regexp.Regexp
}

// typeRules is checked in order and the first type with a match wins.
// Compound forms precede their bases: "sub-task" would otherwise hit the task
// rule, since the hyphen is a word boundary.
var typeRules = []TypeRule{
	{item.TypeEpic, []*regexp.Regexp{Word(`épico`), Word(`epico`)}},
	{item.TypeStory, []*regexp.Regexp{Word(`história`), Word(`historia`), Word(`user story`)}},
	{item.TypeSubtask, []*regexp.Regexp{Word(`sub-?task`), Word(`sub-?tarefa`)}},
	{item.TypeTask, []*regexp.Regexp{Word(`task`), Word(`tarefa`)}},
	{item.TypeSubBug, []*regexp.Regexp{Word(`sub-?bug`)}},
	{item.TypeBug, []*regexp.Regexp{Word(`bug`), Word(`erro`), Word(`defeito`)}},
}

// MatchType returns the first type whose keyword appears in text.
func MatchType(text string) (item.Type, bool) {
	for _, rule := range typeRules {
		for _, re := range rule.Patterns {
			if re.MatchString(text) {
				return rule.Type, true
			}
		}
	}
	return item.TypeUnknown, false
}

// Heuristic is a structural rule applied when no type keyword matched. It
// fires when every All term and, if present, at least one Any term occur.
type Heuristic struct {
	Type item.Type
	All  []string
	Any  []string
}

var heuristics = []Heuristic{
	{Type: item.TypeStory, All: []string{"como", "gostaria", "para"}},
	{Type: item.TypeBug, Any: []string{"cenário de erro", "impacto"}},
	{Type: item.TypeEpic, All: []string{"objetivo", "benefícios"}},
	{Type: item.TypeTask, Any: []string{"criar uma tarefa para", "implementar"}},
}

// Matches reports whether the heuristic applies to lower-cased text.
func (h Heuristic) Matches(text string) bool {
	for _, term := range h.All {
		if !strings.Contains(text, term) {
			return false
		}
	}
	if len(h.Any) == 0 {
		return len(h.All) > 0
	}
	return ContainsAny(text, h.Any)
}

// Heuristics returns the structural rules in the order they are tried.
func Heuristics() []Heuristic {
	return append([]Heuristic(nil), heuristics...)
}

var hierarchyPhrases = []string{
	"hierarquia completa",
	"criar hierarquia",
	"estrutura completa",
	"criar estrutura",
	"auto hierarquia",
	"auto-hierarquia",
}

// HierarchyPhrases returns the phrases that request a full generated hierarchy.
func HierarchyPhrases() []string {
	return append([]string(nil), hierarchyPhrases...)
}

// HierarchyRequested reports whether lower-cased text asks for a hierarchy.
func HierarchyRequested(text string) bool {
	return ContainsAny(text, hierarchyPhrases)
}

// Bucket is a resolver keyword group.
type Bucket struct {
	Type  item.Type
	Terms []string
}

// resolverBuckets are checked in order: strategic terms, then user-facing
// terms, then action verbs.
var resolverBuckets = []Bucket{
	{item.TypeEpic, []string{"iniciativa", "objetivo estratégico", "visão", "tema", "grande funcionalidade"}},
	{item.TypeStory, []string{"como usuário", "funcionalidade", "feature", "como cliente", "gostaria de", "quero poder", "preciso"}},
	{item.TypeTask, []string{"implementar", "desenvolver", "criar", "configurar", "integrar", "refatorar", "otimizar", "ajustar"}},
}

// ResolverBuckets returns the resolver keyword groups in priority order.
func ResolverBuckets() []Bucket {
	out := make([]Bucket, len(resolverBuckets))
	for i, b := range resolverBuckets {
		out[i] = Bucket{Type: b.Type, Terms: append([]string(nil), b.Terms...)}
	}
	return out
}

// ContainsAny reports whether text contains any of terms as a substring.
func ContainsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// Normalize lower-cases text and collapses every whitespace run to a single
// space.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
