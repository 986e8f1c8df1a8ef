package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Gabriell-Belmont/sam--product-management/internal/ai"
	"github.com/Gabriell-Belmont/sam--product-management/internal/blobstore"
	"github.com/Gabriell-Belmont/sam--product-management/internal/classifier"
	"github.com/Gabriell-Belmont/sam--product-management/internal/events"
	"github.com/Gabriell-Belmont/sam--product-management/internal/extraction"
	"github.com/Gabriell-Belmont/sam--product-management/internal/hierarchy"
	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
	"github.com/Gabriell-Belmont/sam--product-management/internal/logging"
	"github.com/Gabriell-Belmont/sam--product-management/internal/natstest"
	"github.com/Gabriell-Belmont/sam--product-management/internal/secrets"
	"github.com/Gabriell-Belmont/sam--product-management/internal/telemetry"
	"github.com/Gabriell-Belmont/sam--product-management/internal/template"
	"github.com/Gabriell-Belmont/sam--product-management/internal/tracker"
	"github.com/Gabriell-Belmont/sam--product-management/internal/tracker/trackertest"
)

const (
	taskPrompt = "Criar uma tarefa para configurar cache\n" +
		"Título: Configurar cache Redis\n" +
		"Descrição: Adicionar cache nas consultas de produto."

	hierarchyPrompt = "Criar hierarquia completa para login com Google\n" +
		"Como: cliente\n" +
		"Gostaria: entrar com minha conta Google\n" +
		"Para: não precisar de senha\n" +
		"Critérios de aceitação:\n" +
		"- Botão de login na tela inicial\n" +
		"- Validar token na API\n" +
		"Labels: auth"
)

// exhaustedClient fails every call the way a client does after its retries
// ran out.
type exhaustedClient struct {
	calls int
}

func (c *exhaustedClient) Generate(context.Context, ai.Request) (string, error) {
	c.calls++
	return "", &ai.ServiceError{Provider: "fake", Attempts: 3, Err: ai.ErrExhausted}
}

func (c *exhaustedClient) Available() bool  { return true }
func (c *exhaustedClient) Provider() string { return "fake" }

type fixture struct {
	srv     *trackertest.Server
	client  *tracker.Client
	repo    *blobstore.Repository
	metrics *Metrics
	logs    *logging.TestLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logs := logging.NewTestLogger()
	srv := trackertest.NewServer(t)
	client, err := tracker.New(srv.Config(), zap.NewNop())
	require.NoError(t, err)
	repo, err := blobstore.NewRepository(blobstore.NewMemory(), zap.NewNop())
	require.NoError(t, err)
	return &fixture{srv: srv, client: client, repo: repo, metrics: NewMetrics(nil), logs: logs}
}

func (f *fixture) orchestrator(t *testing.T, client ai.Client, opts ...Option) *Orchestrator {
	t.Helper()
	logger := f.logs.Underlying()
	ext, err := extraction.New(client, logger)
	require.NoError(t, err)
	var copts []classifier.Option
	if client != nil {
		copts = append(copts, classifier.WithSuggester(ext))
	}
	cls, err := classifier.New(logger, copts...)
	require.NoError(t, err)

	opts = append([]Option{WithRepository(f.repo), WithMetrics(f.metrics)}, opts...)
	o, err := New(cls, ext, f.client, logger, opts...)
	require.NoError(t, err)
	return o
}

func TestProcess_SingleItem(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t, nil)

	res := o.Process(context.Background(), taskPrompt, ProjectContext{User: "ana"})
	require.NoError(t, res.Error)
	assert.True(t, res.Success)
	assert.Equal(t, item.TypeTask, res.ItemType)
	require.NotNil(t, res.Item)
	assert.Equal(t, "PROJ-1", res.Item.Key)
	assert.Equal(t, f.srv.URL+"/browse/PROJ-1", res.Item.URL)
	assert.Equal(t, "Configurar cache Redis", res.Item.Summary)

	issue := f.srv.Issue("PROJ-1")
	require.NotNil(t, issue)
	assert.Contains(t, issue["description"], "Adicionar cache nas consultas de produto.")

	require.Len(t, res.StorageKeys, 1)
	assert.Regexp(t, `^contexts/PROJ/tasks/`, res.StorageKeys[0])
	assert.Regexp(t, `^contexts/ana/\d{14}\.json$`, res.ContextKey)

	recs, err := o.History(context.Background(), "", item.TypeTask, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "PROJ-1", recs[0].Metadata[blobstore.MetaJiraKey])
	assert.Equal(t, SourcePrompt, recs[0].Metadata[blobstore.MetaSource])

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Runs.WithLabelValues(routeSingle, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ItemsCreated.WithLabelValues(item.TypeTask.String())))
	f.logs.AssertLogged(t, zapcore.InfoLevel, "prompt processed")
}

func TestProcess_Defaults(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t, nil, WithDefaults("OPS", "time-produto"))

	res := o.Process(context.Background(), taskPrompt, ProjectContext{})
	require.NoError(t, res.Error)
	require.Len(t, res.StorageKeys, 1)
	assert.Regexp(t, `^contexts/OPS/tasks/`, res.StorageKeys[0])
	assert.Regexp(t, `^contexts/time-produto/\d{14}\.json$`, res.ContextKey)

	// An explicit scope wins over the defaults.
	res = o.Process(context.Background(), taskPrompt, ProjectContext{Project: "PROJ", User: "ana"})
	require.NoError(t, res.Error)
	assert.Regexp(t, `^contexts/PROJ/tasks/`, res.StorageKeys[0])
	assert.Regexp(t, `^contexts/ana/`, res.ContextKey)
}

func TestProcess_RecordsSpan(t *testing.T) {
	f := newFixture(t)
	tel := telemetry.NewTestTelemetry()
	o := f.orchestrator(t, nil, WithTracer(tel.Tracer("pm/pipeline")))

	res := o.Process(context.Background(), taskPrompt, ProjectContext{User: "ana"})
	require.True(t, res.Success)

	tel.AssertSpanExists(t, "Orchestrator.Process")
	tel.AssertSpanAttribute(t, "Orchestrator.Process", "route", routeSingle)
	tel.AssertSpanAttribute(t, "Orchestrator.Process", "run_id", res.RunID)
	tel.AssertSpanAttribute(t, "Orchestrator.Process", "created", int64(1))
}

func TestProcess_SubtaskWithoutParentFailsBeforeTracker(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t, nil)

	res := o.Process(context.Background(), "Criar subtask para revisar logs\nDescrição: Revisar os logs do serviço.", ProjectContext{})
	assert.False(t, res.Success)
	assert.Equal(t, item.TypeSubtask, res.ItemType)

	var verr *item.ValidationError
	require.ErrorAs(t, res.Error, &verr)
	assert.Equal(t, []string{item.FieldParentKey}, verr.Missing)
	assert.Empty(t, f.srv.Requests())

	// The interaction is persisted even though nothing was created.
	assert.Empty(t, res.StorageKeys)
	assert.NotEmpty(t, res.ContextKey)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Runs.WithLabelValues(routeSingle, "failure")))
}

func TestProcess_AIExhaustedFallsBackToRules(t *testing.T) {
	f := newFixture(t)
	client := &exhaustedClient{}
	o := f.orchestrator(t, client, WithEnrichment(true))

	res := o.Process(context.Background(),
		"Crie um épico para sistema de pagamento\nDescrição: Centralizar os meios de pagamento.", ProjectContext{})
	require.NoError(t, res.Error)
	assert.True(t, res.Success)
	assert.Equal(t, item.TypeEpic, res.Record.Classified)
	assert.Equal(t, item.TypeEpic, res.ItemType)
	assert.Equal(t, "PROJ-1", res.Item.Key)

	// Type suggestion, extraction, context analysis and enrichment each tried once.
	assert.Equal(t, 4, client.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Fallbacks.WithLabelValues("ai_enrich")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Fallbacks.WithLabelValues("ai_context")))
	f.logs.AssertLogged(t, zapcore.WarnLevel, "ai type suggestion failed")
}

func TestProcess_ExplicitTypeKeywordWins(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t, nil)

	rec, fs := o.Classify(context.Background(), "Crie um épico para sistema de pagamento", ProjectContext{})
	assert.Equal(t, item.TypeEpic, rec.Type)
	assert.False(t, rec.HierarchyRequested)
	assert.Equal(t, "Crie um épico para sistema de pagamento", fs.Get(item.FieldSummary))
	assert.Zero(t, f.srv.IssueCount())
}

func TestProcess_Hierarchy(t *testing.T) {
	f := newFixture(t)
	var reviewed []*hierarchy.Node
	o := f.orchestrator(t, nil, WithReviewer(ReviewerFunc(func(_ context.Context, nodes []*hierarchy.Node) (bool, error) {
		reviewed = nodes
		return true, nil
	})))

	res := o.Process(context.Background(), hierarchyPrompt, ProjectContext{User: "ana"})
	require.NoError(t, res.Error)
	assert.True(t, res.Success)
	assert.Equal(t, item.TypeAuto, res.ItemType)
	assert.True(t, res.Record.HierarchyRequested)
	require.Len(t, reviewed, 8)

	require.Len(t, res.Items, 8)
	assert.Equal(t, []string{"PROJ-1", "PROJ-2", "PROJ-3", "PROJ-4", "PROJ-5", "PROJ-6", "PROJ-7", "PROJ-8"}, res.Keys())
	assert.Equal(t, item.TypeEpic, res.Items[0].Type)
	assert.Equal(t, "PROJ-1", res.Items[1].ParentKey)
	assert.Equal(t, "PROJ-3", res.Items[3].ParentKey)

	assert.Len(t, res.StorageKeys, 8)
	recs, err := f.repo.ListItems(context.Background(), "PROJ", item.TypeSubtask, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 4)
	assert.Equal(t, SourceHierarchy, recs[0].Metadata[blobstore.MetaSource])
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Runs.WithLabelValues(routeHierarchy, "success")))

	var body map[string]json.RawMessage
	data, err := json.Marshal(res)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Contains(t, body, "created_items")
	assert.NotContains(t, body, "single_item")
}

func TestResult_SingleItemJSON(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t, nil)

	res := o.Process(context.Background(), taskPrompt, ProjectContext{})
	require.NoError(t, res.Error)

	var body struct {
		Single  *CreatedItem   `json:"single_item"`
		Created []*CreatedItem `json:"created_items"`
	}
	data, err := json.Marshal(res)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &body))
	require.NotNil(t, body.Single)
	assert.Equal(t, res.Item.Key, body.Single.Key)
	assert.Nil(t, body.Created)
}

func TestProcess_HierarchyDeclined(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t, nil, WithReviewer(ReviewerFunc(func(context.Context, []*hierarchy.Node) (bool, error) {
		return false, nil
	})))

	res := o.Process(context.Background(), hierarchyPrompt, ProjectContext{})
	assert.ErrorIs(t, res.Error, ErrDeclined)
	assert.Equal(t, ErrDeclined.Error(), res.ErrorMessage)
	assert.Zero(t, f.srv.IssueCount())
	assert.NotEmpty(t, res.ContextKey)
}

func TestProcess_HierarchyPartial(t *testing.T) {
	f := newFixture(t)
	f.srv.FailCreate("Implementar: Validar token na API", http.StatusInternalServerError)
	o := f.orchestrator(t, nil)

	res := o.Process(context.Background(), hierarchyPrompt, ProjectContext{})
	assert.False(t, res.Success)

	var herr *hierarchy.HierarchyError
	require.ErrorAs(t, res.Error, &herr)
	assert.Equal(t, item.TypeTask, herr.Node.Type)
	var terr *tracker.TrackerError
	require.ErrorAs(t, res.Error, &terr)
	assert.Equal(t, http.StatusInternalServerError, terr.StatusCode)

	// Epic, story, first task and its two subtasks stay created.
	assert.Len(t, res.Keys(), 5)
	assert.Len(t, res.StorageKeys, 5)
	assert.Equal(t, string(hierarchy.StatusSkipped), res.Items[7].Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Runs.WithLabelValues(routeHierarchy, "partial")))
}

func TestProcess_ForcedRouting(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t, nil)

	res := o.Process(context.Background(), taskPrompt, ProjectContext{Type: "bug"})
	require.NoError(t, res.Error)
	assert.Equal(t, item.TypeBug, res.ItemType)
	assert.Equal(t, map[string]any{"name": "Bug"}, f.srv.Issue(res.Item.Key)["issuetype"])

	res = o.Process(context.Background(), hierarchyPrompt, ProjectContext{Type: "feature"})
	var terr *template.TemplateError
	require.ErrorAs(t, res.Error, &terr)
	assert.Contains(t, res.LegacyDescription, "login com Google")
	assert.Contains(t, res.LegacyDescription, "Labels: auth")
	assert.Equal(t, 1, f.srv.IssueCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Fallbacks.WithLabelValues("legacy_template")))
}

func TestProcess_EmptyPrompt(t *testing.T) {
	f := newFixture(t)
	res := f.orchestrator(t, nil).Process(context.Background(), "  \n", ProjectContext{})
	assert.ErrorIs(t, res.Error, ErrEmptyPrompt)
	assert.Empty(t, res.ContextKey)
}

// failingBackend rejects every write.
type failingBackend struct {
	*blobstore.Memory
}

func (failingBackend) Put(context.Context, string, []byte, map[string]string) error {
	return errors.New("disk full")
}

func TestProcess_PersistFailureIsNotReturned(t *testing.T) {
	f := newFixture(t)
	repo, err := blobstore.NewRepository(failingBackend{blobstore.NewMemory()}, zap.NewNop())
	require.NoError(t, err)
	f.repo = repo
	o := f.orchestrator(t, nil)

	res := o.Process(context.Background(), taskPrompt, ProjectContext{})
	require.NoError(t, res.Error)
	assert.True(t, res.Success)
	assert.Empty(t, res.StorageKeys)
	assert.Empty(t, res.ContextKey)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.PersistErrors))
	f.logs.AssertLogged(t, zapcore.ErrorLevel, "failed to persist item")
}

func TestProcess_ScrubsPersistedPrompt(t *testing.T) {
	f := newFixture(t)
	scrubber, err := secrets.New(nil)
	require.NoError(t, err)
	o := f.orchestrator(t, nil, WithScrubber(scrubber))

	res := o.Process(context.Background(), taskPrompt+"\nsenha: Sup3rS3cret!", ProjectContext{User: "ana"})
	require.NoError(t, res.Error)

	recs, err := f.repo.RecentContexts(context.Background(), "ana", 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	data, err := json.Marshal(recs[0].Data)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Sup3rS3cret!")
	assert.Contains(t, string(data), secrets.DefaultRedaction)
}

func TestProcess_PublishesEvents(t *testing.T) {
	f := newFixture(t)
	nc := natstest.Connect(t)
	pub, err := events.NewPublisher(nc)
	require.NoError(t, err)

	ch := make(chan *nats.Msg, 4)
	sub, err := nc.ChanSubscribe("pm.>", ch)
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.NoError(t, nc.Flush())

	o := f.orchestrator(t, nil, WithPublisher(pub))
	res := o.Process(context.Background(), taskPrompt, ProjectContext{})
	require.NoError(t, res.Error)

	var subjects []string
	for len(subjects) < 2 {
		select {
		case msg := <-ch:
			subjects = append(subjects, msg.Subject)
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for events, got %v", subjects)
		}
	}
	assert.Equal(t, []string{"pm.items.PROJ.created", "pm.runs.PROJ.completed"}, subjects)
}

func TestCheckConflicts(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t, nil)
	require.True(t, o.Process(context.Background(), taskPrompt, ProjectContext{}).Success)

	report, err := o.CheckConflicts(context.Background(), taskPrompt, ProjectContext{})
	require.NoError(t, err)
	assert.Equal(t, "Configurar cache Redis", report.Summary)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, Conflict{Key: "PROJ-1", Summary: "Configurar cache Redis", Status: "To Do", Source: "tracker"}, report.Conflicts[0])
	assert.Contains(t, f.srv.LastJQL(), `summary ~ "Configurar cache Redis"`)

	_, err = o.CheckConflicts(context.Background(), "", ProjectContext{})
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestSimilar(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"Configurar cache Redis", "configurar o cache do redis", true},
		{"Configurar cache Redis", "Configurar fila de pagamentos", false},
		{"Login com Google", "Login com Google", true},
		{"a b c", "a b c", false},
	}
	for _, tt := range tests {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, Similar(tt.a, tt.b))
		})
	}
}

func TestHistory_NoStore(t *testing.T) {
	f := newFixture(t)
	logger := zap.NewNop()
	ext, err := extraction.New(nil, logger)
	require.NoError(t, err)
	cls, err := classifier.New(logger)
	require.NoError(t, err)
	o, err := New(cls, ext, f.client, logger)
	require.NoError(t, err)

	_, err = o.History(context.Background(), "PROJ", item.TypeTask, 5)
	assert.ErrorIs(t, err, ErrNoStore)
}

func TestNew_Validation(t *testing.T) {
	logger := zap.NewNop()
	ext, err := extraction.New(nil, logger)
	require.NoError(t, err)
	cls, err := classifier.New(logger)
	require.NoError(t, err)
	f := newFixture(t)

	_, err = New(nil, ext, f.client, logger)
	assert.Error(t, err)
	_, err = New(cls, nil, f.client, logger)
	assert.Error(t, err)
	_, err = New(cls, ext, nil, logger)
	assert.Error(t, err)
	_, err = New(cls, ext, f.client, nil)
	assert.Error(t, err)
}
