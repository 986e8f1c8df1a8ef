package classifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
)

type stubSuggester struct {
	answer string
	err    error
	calls  int
}

func (s *stubSuggester) SuggestType(context.Context, string) (string, error) {
	s.calls++
	return s.answer, s.err
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want item.Type
	}{
		{"epic keyword", "crie um épico para sistema de pagamento", item.TypeEpic},
		{"keyword beats heuristics", "bug: como cliente gostaria de pagar para ganhar tempo", item.TypeBug},
		{"user story heuristic", "como gerente gostaria de relatórios para decidir", item.TypeStory},
		{"bug heuristic", "o impacto é alto no checkout", item.TypeBug},
		{"epic heuristic", "objetivo: crescer benefícios: receita", item.TypeEpic},
		{"task heuristic", "implementar cache no serviço", item.TypeTask},
		{"nothing matches", "melhorar onboarding", item.TypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text))
		})
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		text string
		want item.Type
	}{
		{"nova iniciativa de crescimento", item.TypeEpic},
		{"preciso exportar pdf", item.TypeStory},
		// story terms outrank action verbs
		{"preciso configurar o cluster", item.TypeStory},
		{"configurar o cluster", item.TypeTask},
		{"algo vago", item.TypeStory},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.text))
		})
	}
}

func TestParse(t *testing.T) {
	fixed := time.Date(2026, 3, 4, 12, 0, 0, 0, time.FixedZone("BRT", -3*3600))

	t.Run("explicit epic does not trigger hierarchy", func(t *testing.T) {
		c, err := New(zap.NewNop(), WithClock(func() time.Time { return fixed }))
		require.NoError(t, err)

		rec := c.Parse(context.Background(), "Crie um épico para sistema de pagamento")

		assert.Equal(t, item.TypeEpic, rec.Type)
		assert.Equal(t, item.TypeEpic, rec.Classified)
		assert.False(t, rec.HierarchyRequested)
		assert.Equal(t, "crie um épico para sistema de pagamento", rec.Normalized)
		assert.Equal(t, time.UTC, rec.Timestamp.Location())
		assert.True(t, rec.Timestamp.Equal(fixed))
	})

	t.Run("hierarchy phrase routes to auto", func(t *testing.T) {
		c, err := New(zap.NewNop())
		require.NoError(t, err)

		rec := c.Parse(context.Background(), "Criar hierarquia completa para a história de login")

		assert.Equal(t, item.TypeAuto, rec.Type)
		assert.Equal(t, item.TypeStory, rec.Classified)
		assert.True(t, rec.HierarchyRequested)
	})

	t.Run("unknown is resolved", func(t *testing.T) {
		c, err := New(zap.NewNop())
		require.NoError(t, err)

		rec := c.Parse(context.Background(), "Melhorar a visão do produto")

		assert.Equal(t, item.TypeUnknown, rec.Classified)
		assert.Equal(t, item.TypeEpic, rec.Type)
	})

	t.Run("recognized ai answer wins", func(t *testing.T) {
		s := &stubSuggester{answer: "Sub-Task"}
		c, err := New(zap.NewNop(), WithSuggester(s))
		require.NoError(t, err)

		rec := c.Parse(context.Background(), "um bug qualquer")

		assert.Equal(t, 1, s.calls)
		assert.Equal(t, item.TypeSubtask, rec.Type)
	})

	t.Run("unrecognized ai answer falls back to rules", func(t *testing.T) {
		c, err := New(zap.NewNop(), WithSuggester(&stubSuggester{answer: "initiative"}))
		require.NoError(t, err)

		rec := c.Parse(context.Background(), "um bug qualquer")
		assert.Equal(t, item.TypeBug, rec.Type)
	})

	t.Run("ai failure is logged and swallowed", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		c, err := New(zap.New(core), WithSuggester(&stubSuggester{err: errors.New("retries exhausted")}))
		require.NoError(t, err)

		rec := c.Parse(context.Background(), "Crie um épico para sistema de pagamento")

		assert.Equal(t, item.TypeEpic, rec.Type)
		assert.Equal(t, 1, logs.FilterMessage("ai type suggestion failed, using rules").Len())
	})
}

func TestNew_RequiresLogger(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}
