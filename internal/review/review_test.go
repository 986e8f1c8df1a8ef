package review

import (
	"bytes"
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gabriell-Belmont/sam--product-management/internal/hierarchy"
	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
)

func sampleNodes() []*hierarchy.Node {
	node := func(t item.Type, summary string) *hierarchy.Node {
		return &hierarchy.Node{Type: t, Fields: item.FieldSet{item.FieldSummary: summary}}
	}
	return []*hierarchy.Node{
		node(item.TypeEpic, "Sistema de autenticação e autorização"),
		node(item.TypeStory, "Login com Google"),
		node(item.TypeTask, "Implementar: Validar token na API"),
		node(item.TypeSubtask, "Backend: Validar token na API"),
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_Keys(t *testing.T) {
	tests := []struct {
		name   string
		msg    tea.KeyMsg
		accept bool
	}{
		{"s accepts", runes("s"), true},
		{"y accepts", runes("y"), true},
		{"enter accepts", tea.KeyMsg{Type: tea.KeyEnter}, true},
		{"n declines", runes("n"), false},
		{"q declines", runes("q"), false},
		{"esc declines", tea.KeyMsg{Type: tea.KeyEsc}, false},
		{"ctrl+c declines", tea.KeyMsg{Type: tea.KeyCtrlC}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated, cmd := NewModel(sampleNodes()).Update(tt.msg)
			m := updated.(Model)
			assert.True(t, m.Decided())
			assert.Equal(t, tt.accept, m.Accepted())
			assert.NotNil(t, cmd)
		})
	}
}

func TestModel_OtherKeysWait(t *testing.T) {
	updated, cmd := NewModel(sampleNodes()).Update(runes("x"))
	m := updated.(Model)
	assert.False(t, m.Decided())
	assert.False(t, m.Accepted())
	assert.Nil(t, cmd)
}

func TestModel_View(t *testing.T) {
	m := NewModel(sampleNodes())
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	view := updated.(Model).View()

	assert.Contains(t, view, "Revisão da Hierarquia")
	assert.Contains(t, view, "Sistema de autenticação e autorização")
	assert.Contains(t, view, "Backend: Validar token na API")
	assert.Contains(t, view, hierarchy.ReviewQuestion)

	done, _ := updated.Update(runes("n"))
	assert.Contains(t, done.(Model).View(), "cancelada")
}

func TestPrompt_Confirm(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{"s\n", true},
		{" S \n", true},
		{"s", true},
		{"n\n", false},
		{"sim\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		ok, err := NewPrompt(strings.NewReader(tt.answer), &out).Confirm(context.Background(), sampleNodes())
		require.NoError(t, err, tt.answer)
		assert.Equal(t, tt.want, ok, "answer %q", tt.answer)
		assert.Contains(t, out.String(), "  [história] Login com Google")
	}
}

func TestPrompt_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := NewPrompt(strings.NewReader("s\n"), &bytes.Buffer{}).Confirm(ctx, sampleNodes())
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
}

func TestTUI_Confirm(t *testing.T) {
	var out bytes.Buffer
	ok, err := NewTUI(strings.NewReader("s"), &out).Confirm(context.Background(), sampleNodes())
	require.NoError(t, err)
	assert.True(t, ok)
}
