package hierarchy

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
	"github.com/Gabriell-Belmont/sam--product-management/internal/patterns"
	"github.com/Gabriell-Belmont/sam--product-management/internal/tracker"
	"github.com/Gabriell-Belmont/sam--product-management/internal/tracker/trackertest"
)

const loginPrompt = "Quero permitir login com Google\n" +
	"Como: cliente\n" +
	"Gostaria: entrar com minha conta Google\n" +
	"Para: não precisar de senha\n" +
	"Critérios de aceitação:\n" +
	"- Botão de login na tela inicial\n" +
	"- Validar token na API\n" +
	"Labels: auth, mobile"

func record(raw string) *item.PromptRecord {
	return &item.PromptRecord{Raw: raw, Normalized: patterns.Normalize(raw), Type: item.TypeAuto}
}

type shape struct {
	Type    item.Type
	Summary string
}

func shapes(nodes []*Node) []shape {
	out := make([]shape, len(nodes))
	for i, n := range nodes {
		out[i] = shape{n.Type, n.Summary()}
	}
	return out
}

func TestGenerate_FromCriteria(t *testing.T) {
	nodes := Generate(record(loginPrompt), nil)

	want := []shape{
		{item.TypeEpic, "Sistema de autenticação e autorização"},
		{item.TypeStory, "Quero permitir login com Google"},
		{item.TypeTask, "Implementar: Botão de login na tela inicial"},
		{item.TypeSubtask, "Frontend: Botão de login na tela inicial"},
		{item.TypeSubtask, "Testar: Botão de login na tela inicial"},
		{item.TypeTask, "Implementar: Validar token na API"},
		{item.TypeSubtask, "Backend: Validar token na API"},
		{item.TypeSubtask, "Testar: Validar token na API"},
	}
	if diff := cmp.Diff(want, shapes(nodes)); diff != "" {
		t.Errorf("hierarchy mismatch (-want +got):\n%s", diff)
	}

	epic := nodes[0].Fields
	assert.Equal(t, "Sistema de autenticação e autorização", epic.Get(item.FieldEpicName))
	assert.Equal(t, "Permitir que cliente possa entrar com minha conta Google", epic.Get(item.FieldObjective))
	assert.True(t, strings.HasPrefix(epic.Get(item.FieldBenefits), "• não precisar de senha\n"))

	story := nodes[1].Fields
	assert.Equal(t, "cliente", story.Get(item.FieldAsA))
	assert.Equal(t, "entrar com minha conta Google", story.Get(item.FieldIWant))
	assert.Equal(t, "não precisar de senha", story.Get(item.FieldSoThat))

	assert.Equal(t, "Esta task implementa o seguinte critério de aceitação:\n\nValidar token na API",
		nodes[5].Fields.Get(item.FieldDescription))

	for _, n := range nodes {
		assert.Equal(t, []string{"auth", "mobile"}, n.Fields.List(item.FieldLabels), n.Summary())
		assert.Equal(t, StatusPlanned, n.Status)
	}
}

func TestGenerate_DefaultTasks(t *testing.T) {
	nodes := Generate(record("Criar hierarquia completa para relatórios"), nil)
	require.Len(t, nodes, 14)

	assert.Equal(t, "Relatórios e dashboards", nodes[0].Summary())
	assert.Equal(t, "usuário do sistema", nodes[1].Fields.Get(item.FieldAsA))

	var tasks []string
	for _, n := range nodes {
		if n.Type == item.TypeTask {
			tasks = append(tasks, n.Summary())
		}
	}
	assert.Equal(t, []string{"Implementar backend", "Implementar frontend", "Realizar testes e QA"}, tasks)
	assert.Equal(t, "Criar modelo de dados", nodes[3].Summary())
	assert.Equal(t, "Validar critérios de aceitação", nodes[13].Summary())
}

func TestGenerate_ParentBeforeChild(t *testing.T) {
	for _, prompt := range []string{loginPrompt, "qualquer coisa", "Critérios de aceite:\n- a\n- b\n- c"} {
		assert.NoError(t, CheckOrder(Generate(record(prompt), nil)), prompt)
	}
}

func TestCheckOrder(t *testing.T) {
	nodes := []*Node{
		{Type: item.TypeStory, Fields: item.FieldSet{item.FieldSummary: "S"}},
		{Type: item.TypeEpic, Fields: item.FieldSet{item.FieldSummary: "E"}},
	}
	err := CheckOrder(nodes)
	var herr *HierarchyError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, 0, herr.Index)
	assert.Contains(t, err.Error(), `[história] "S"`)
}

func TestEpicSummary(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Tela de login", "Sistema de autenticação e autorização"},
		{"Cadastro de clientes", "Gestão de usuários e perfis"},
		{"Carrinho persistente", "Sistema de pagamentos e checkout"},
		{"Dashboard de vendas", "Relatórios e dashboards"},
		{"Implementar exportação csv", "Sistema de exportação"},
		{"Criar app", "Funcionalidade: Criar app"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EpicSummary(tt.in), tt.in)
	}
}

func TestReview(t *testing.T) {
	nodes := Generate(record(loginPrompt), nil)
	out := Review(nodes[:4])

	want := ReviewHeader + "\n\n" +
		"[épico] Sistema de autenticação e autorização\n" +
		"  [história] Quero permitir login com Google\n" +
		"    [task] Implementar: Botão de login na tela inicial\n" +
		"      [subtask] Frontend: Botão de login na tela inicial\n"
	assert.Equal(t, want, out)
}

func newLinker(t *testing.T) (*Linker, *tracker.Client, *trackertest.Server) {
	t.Helper()
	srv := trackertest.NewServer(t)
	client, err := tracker.New(srv.Config(), zap.NewNop())
	require.NoError(t, err)
	l, err := NewLinker(client, zap.NewNop())
	require.NoError(t, err)
	return l, client, srv
}

func TestLink_GeneratedHierarchy(t *testing.T) {
	l, _, srv := newLinker(t)

	out := l.Link(context.Background(), Generate(record(loginPrompt), nil))

	require.True(t, out.Complete(), "%v", out.Errors)
	assert.Equal(t, 8, out.Created)
	assert.Equal(t, []string{"PROJ-1", "PROJ-2", "PROJ-3", "PROJ-4", "PROJ-5", "PROJ-6", "PROJ-7", "PROJ-8"}, out.Keys())

	assert.Equal(t, "PROJ-1", srv.Issue("PROJ-2")[trackertest.EpicField])
	assert.Equal(t, map[string]any{"key": "PROJ-3"}, srv.Issue("PROJ-4")["parent"])
	assert.Equal(t, map[string]any{"key": "PROJ-6"}, srv.Issue("PROJ-8")["parent"])
	assert.Equal(t, []trackertest.Link{
		{Type: "Relates", Inward: "PROJ-2", Outward: "PROJ-3"},
		{Type: "Relates", Inward: "PROJ-2", Outward: "PROJ-6"},
	}, srv.Links())

	story := out.Nodes[1]
	assert.Equal(t, "PROJ-1", story.ParentKey)
	assert.Equal(t, srv.URL+"/browse/PROJ-2", story.URL)
	assert.True(t, strings.HasPrefix(story.Rendered.Get(item.FieldDescription), "Descrição\nComo: cliente\n"))
}

func TestLink_SecondPassLinksLateParent(t *testing.T) {
	l, client, _ := newLinker(t)
	ctx := context.Background()

	nodes := []*Node{
		newNode(item.TypeStory, item.FieldSet{item.FieldSummary: "História", item.FieldDescription: "d"}),
		newNode(item.TypeEpic, item.FieldSet{item.FieldSummary: "Épico", item.FieldDescription: "d"}),
	}
	out := l.Link(ctx, nodes)

	require.True(t, out.Complete(), "%v", out.Errors)
	assert.Equal(t, "PROJ-1", nodes[0].Key)
	assert.Equal(t, "PROJ-2", nodes[0].ParentKey)

	issue, err := client.GetIssue(ctx, "PROJ-1")
	require.NoError(t, err)
	assert.Equal(t, "PROJ-2", issue.Field(trackertest.EpicField))
}

func TestLink_FailureAbortsBranchOnly(t *testing.T) {
	l, _, srv := newLinker(t)
	srv.FailCreate("Implementar: Botão de login na tela inicial", http.StatusBadRequest)

	out := l.Link(context.Background(), Generate(record(loginPrompt), nil))

	assert.Equal(t, 5, out.Created)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, 2, out.Skipped)
	assert.Equal(t, 5, srv.IssueCount())
	require.Len(t, out.Errors, 3)

	var herr *HierarchyError
	require.True(t, errors.As(out.Errors[0], &herr))
	assert.Equal(t, 2, herr.Index)
	var terr *tracker.TrackerError
	require.True(t, errors.As(out.Errors[0], &terr))
	assert.Equal(t, http.StatusBadRequest, terr.StatusCode)

	assert.ErrorIs(t, out.Errors[1], ErrParentUnavailable)
	assert.Equal(t, StatusSkipped, out.Nodes[3].Status)
	assert.Equal(t, StatusCreated, out.Nodes[5].Status)
	assert.Equal(t, map[string]any{"key": out.Nodes[5].Key}, srv.Issue(out.Nodes[6].Key)["parent"])
}

func TestLink_SubtasksOfFailedTaskStayUnlinked(t *testing.T) {
	l, _, srv := newLinker(t)
	srv.FailCreate("Implementar: Validar token na API", http.StatusBadRequest)

	out := l.Link(context.Background(), Generate(record(loginPrompt), nil))

	assert.Equal(t, 5, out.Created)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, 2, out.Skipped)
	assert.Equal(t, StatusFailed, out.Nodes[5].Status)

	// The earlier task has a key, but its siblings' subtasks never move under it.
	for _, i := range []int{6, 7} {
		assert.Equal(t, StatusSkipped, out.Nodes[i].Status)
		assert.Empty(t, out.Nodes[i].Key)
		assert.Empty(t, out.Nodes[i].ParentKey)
	}
	for _, err := range out.Errors[1:] {
		assert.ErrorIs(t, err, ErrParentUnavailable)
	}
	assert.Equal(t, 5, srv.IssueCount())
}

func TestLink_EpicFailureSkipsEverything(t *testing.T) {
	l, _, srv := newLinker(t)
	srv.FailCreate("Sistema de autenticação e autorização", http.StatusInternalServerError)

	out := l.Link(context.Background(), Generate(record(loginPrompt), nil))

	assert.Zero(t, out.Created)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, 7, out.Skipped)
	assert.Zero(t, srv.IssueCount())
	for _, err := range out.Errors[1:] {
		assert.ErrorIs(t, err, ErrParentUnavailable)
	}
}

func TestLink_SubtaskWithoutTask(t *testing.T) {
	l, _, srv := newLinker(t)

	out := l.Link(context.Background(), []*Node{
		newNode(item.TypeSubtask, item.FieldSet{item.FieldSummary: "S", item.FieldDescription: "d"}),
	})

	assert.Equal(t, 1, out.Skipped)
	assert.Zero(t, srv.IssueCount())
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0].Error(), "no task precedes it")
}

func TestNewLinker_Validation(t *testing.T) {
	_, err := NewLinker(nil, zap.NewNop())
	assert.Error(t, err)

	srv := trackertest.NewServer(t)
	client, err := tracker.New(srv.Config(), zap.NewNop())
	require.NoError(t, err)
	_, err = NewLinker(client, nil)
	assert.Error(t, err)
}
