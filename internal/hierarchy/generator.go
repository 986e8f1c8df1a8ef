// Package hierarchy derives a full epic, story, task and subtask tree from a
// single prompt and creates it in the tracker parent-first.
package hierarchy

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Gabriell-Belmont/sam--product-management/internal/extraction"
	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
	"github.com/Gabriell-Belmont/sam--product-management/internal/patterns"
)

// Status tracks a node through linking.
type Status string

const (
	StatusPlanned Status = "planned"
	StatusCreated Status = "created"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Node is one item of a generated hierarchy. Generate fills Type and
// Fields; the Linker assigns the rest.
type Node struct {
	Type   item.Type
	Fields item.FieldSet

	Key       string
	URL       string
	ParentKey string
	Status    Status
	// Rendered is the field set sent to the tracker.
	Rendered item.FieldSet
}

// Summary returns the node summary.
func (n *Node) Summary() string { return n.Fields.Get(item.FieldSummary) }

const (
	defaultEpicDescription = "Este épico agrupa funcionalidades relacionadas."
	defaultEpicObjective   = "Melhorar a experiência do usuário e adicionar novas funcionalidades relacionadas."
	defaultEpicBenefits    = "• Melhoria na experiência do usuário\n• Aumento na retenção de usuários\n• Redução de custos operacionais"
	defaultAsA             = "usuário do sistema"
	minEpicNounLen         = 4
)

type plannedTask struct {
	summary, description string
	subtasks             [][2]string
}

var defaultTasks = []plannedTask{
	{
		summary:     "Implementar backend",
		description: "Desenvolver a lógica de negócio e APIs necessárias no backend.",
		subtasks: [][2]string{
			{"Criar modelo de dados", "Definir e implementar o modelo de dados necessário."},
			{"Implementar endpoints da API", "Desenvolver os endpoints da API REST."},
			{"Escrever testes unitários", "Implementar testes unitários para garantir a qualidade do código."},
		},
	},
	{
		summary:     "Implementar frontend",
		description: "Desenvolver a interface de usuário e integração com o backend.",
		subtasks: [][2]string{
			{"Criar componentes de UI", "Desenvolver os componentes visuais da interface."},
			{"Implementar integração com API", "Integrar a interface com os endpoints do backend."},
			{"Realizar testes de usabilidade", "Testar a interface com usuários para garantir boa experiência."},
		},
	},
	{
		summary:     "Realizar testes e QA",
		description: "Executar testes de qualidade e garantir que a funcionalidade atende aos requisitos.",
		subtasks: [][2]string{
			{"Executar testes de integração", "Verificar a integração entre os diferentes componentes."},
			{"Realizar testes de regressão", "Garantir que as mudanças não afetaram funcionalidades existentes."},
			{"Validar critérios de aceitação", "Verificar se todos os critérios de aceitação foram atendidos."},
		},
	},
}

// Generate builds the hierarchy for rec. base holds the fields extracted
// from the prompt; when nil they are extracted with the story rules.
//
// The result is ordered epic, story, then each task followed by its
// subtasks.
func Generate(rec *item.PromptRecord, base item.FieldSet) []*Node {
	if base == nil {
		base = extraction.Extract(rec.Raw, item.TypeStory)
	}
	labels := base.List(item.FieldLabels)

	nodes := []*Node{
		newNode(item.TypeEpic, epicFields(rec, base)),
		newNode(item.TypeStory, storyFields(rec, base)),
	}

	var tasks []plannedTask
	for _, c := range base.List(item.FieldAcceptanceCriteria) {
		if c = patterns.StripBullet(strings.TrimSpace(c)); c != "" {
			tasks = append(tasks, criterionTask(c))
		}
	}
	if len(tasks) == 0 {
		tasks = defaultTasks
	}

	for _, t := range tasks {
		nodes = append(nodes, newNode(item.TypeTask, simpleFields(t.summary, t.description)))
		for _, st := range t.subtasks {
			nodes = append(nodes, newNode(item.TypeSubtask, simpleFields(st[0], st[1])))
		}
	}
	for _, n := range nodes {
		if len(labels) > 0 {
			n.Fields.SetList(item.FieldLabels, append([]string(nil), labels...))
		}
	}
	return nodes
}

func newNode(t item.Type, fs item.FieldSet) *Node {
	return &Node{Type: t, Fields: fs, Status: StatusPlanned}
}

func simpleFields(summary, description string) item.FieldSet {
	return item.FieldSet{
		item.FieldSummary:     summary,
		item.FieldDescription: description,
	}
}

func criterionTask(c string) plannedTask {
	t := plannedTask{
		summary:     "Implementar: " + c,
		description: "Esta task implementa o seguinte critério de aceitação:\n\n" + c,
	}
	lower := strings.ToLower(c)
	if patterns.BackendCriterion(lower) {
		t.subtasks = append(t.subtasks, [2]string{"Backend: " + c, "Implementar a lógica de backend para: " + c})
	}
	if patterns.FrontendCriterion(lower) {
		t.subtasks = append(t.subtasks, [2]string{"Frontend: " + c, "Implementar a interface de usuário para: " + c})
	}
	t.subtasks = append(t.subtasks, [2]string{"Testar: " + c, "Realizar testes para validar: " + c})
	return t
}

func epicFields(rec *item.PromptRecord, base item.FieldSet) item.FieldSet {
	summary := EpicSummary(base.Get(item.FieldSummary))

	objective := base.Get(item.FieldObjective)
	if objective == "" {
		objective = patterns.InlineObjective(rec.Normalized)
	}
	if objective == "" {
		if asA, iWant := base.Get(item.FieldAsA), base.Get(item.FieldIWant); asA != "" && iWant != "" {
			objective = fmt.Sprintf("Permitir que %s possa %s", asA, iWant)
		} else {
			objective = defaultEpicObjective
		}
	}

	benefits := base.Get(item.FieldBenefits)
	if benefits == "" {
		benefits = patterns.InlineBenefits(rec.Normalized)
	}
	if benefits == "" {
		if soThat := base.Get(item.FieldSoThat); soThat != "" {
			benefits = "• " + soThat + "\n• Melhoria na experiência do usuário\n• Aumento na satisfação do cliente"
		} else {
			benefits = defaultEpicBenefits
		}
	}

	description := base.Get(item.FieldDescription)
	if description == "" {
		description = defaultEpicDescription
	}
	return item.FieldSet{
		item.FieldSummary:     summary,
		item.FieldEpicName:    summary,
		item.FieldDescription: description,
		item.FieldObjective:   objective,
		item.FieldBenefits:    benefits,
	}
}

// EpicSummary names the epic grouping a prompt whose summary is summary.
// Known themes win; otherwise the first meaningful word names a system.
func EpicSummary(summary string) string {
	lower := strings.ToLower(summary)
	for _, theme := range patterns.EpicThemes() {
		if patterns.ContainsAny(lower, theme.Keywords) {
			return theme.Summary
		}
	}
	for _, w := range strings.Fields(lower) {
		if utf8.RuneCountInString(w) >= minEpicNounLen && !patterns.CommonVerb(w) {
			return "Sistema de " + w
		}
	}
	return "Funcionalidade: " + summary
}

func storyFields(rec *item.PromptRecord, base item.FieldSet) item.FieldSet {
	asA, iWant, soThat := base.Get(item.FieldAsA), base.Get(item.FieldIWant), base.Get(item.FieldSoThat)
	if asA == "" || iWant == "" {
		a, w, s := patterns.StoryComponents(rec.Normalized)
		if asA == "" {
			asA = a
		}
		if iWant == "" {
			iWant = w
		}
		if soThat == "" {
			soThat = s
		}
		if asA == "" {
			asA = defaultAsA
		}
		if iWant == "" {
			iWant = patterns.ActionPhrase(rec.Normalized)
		}
		if iWant == "" {
			iWant = rec.Normalized
		}
	}

	fs := item.FieldSet{
		item.FieldSummary: base.Get(item.FieldSummary),
		item.FieldAsA:     asA,
		item.FieldIWant:   iWant,
	}
	if fs.Get(item.FieldSummary) == "" {
		fs.Set(item.FieldSummary, rec.FirstLine())
	}
	if soThat != "" {
		fs.Set(item.FieldSoThat, soThat)
	}
	description := base.Get(item.FieldDescription)
	if description == "" {
		description = extraction.UserStory(asA, iWant, soThat)
	}
	fs.Set(item.FieldDescription, description)
	if criteria := base.List(item.FieldAcceptanceCriteria); len(criteria) > 0 {
		fs.SetList(item.FieldAcceptanceCriteria, criteria)
	}
	return fs
}

// CheckOrder reports the first node whose parent type does not occur at an
// earlier index.
func CheckOrder(nodes []*Node) error {
	seen := make(map[item.Type]bool)
	for i, n := range nodes {
		if parent, ok := n.Type.ParentType(); ok && !seen[parent] {
			return &HierarchyError{Node: n, Index: i, Err: fmt.Errorf("no %s precedes it", parent)}
		}
		seen[n.Type] = true
	}
	return nil
}
