package review

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Gabriell-Belmont/sam--product-management/internal/hierarchy"
	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	questionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true).
			MarginTop(1)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	acceptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	declineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	// Badge colours per item type.
	typeStyles = map[item.Type]lipgloss.Style{
		item.TypeEpic:    lipgloss.NewStyle().Foreground(lipgloss.Color("177")).Bold(true),
		item.TypeStory:   lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true),
		item.TypeTask:    lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		item.TypeSubtask: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
	}
)

type keyMap struct {
	Accept  key.Binding
	Decline key.Binding
	Up      key.Binding
	Down    key.Binding
}

var keys = keyMap{
	Accept:  key.NewBinding(key.WithKeys("s", "S", "y", "Y", "enter"), key.WithHelp("s", "criar")),
	Decline: key.NewBinding(key.WithKeys("n", "N", "q", "esc", "ctrl+c"), key.WithHelp("n", "cancelar")),
	Up:      key.NewBinding(key.WithKeys("up", "k")),
	Down:    key.NewBinding(key.WithKeys("down", "j")),
}

// Model is the confirmation screen shown before a hierarchy is created.
type Model struct {
	nodes    []*hierarchy.Node
	viewport viewport.Model
	ready    bool

	decided  bool
	accepted bool
}

// NewModel creates the model for nodes.
func NewModel(nodes []*hierarchy.Node) Model {
	return Model{nodes: nodes}
}

// Accepted reports whether the user confirmed. It is false until a decision
// is made.
func (m Model) Accepted() bool { return m.decided && m.accepted }

// Decided reports whether the user answered.
func (m Model) Decided() bool { return m.decided }

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Accept):
			m.decided, m.accepted = true, true
			return m, tea.Quit
		case key.Matches(msg, keys.Decline):
			m.decided, m.accepted = true, false
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			m.viewport.LineUp(1)
		case key.Matches(msg, keys.Down):
			m.viewport.LineDown(1)
		}
	case tea.WindowSizeMsg:
		// Header, question and border take six lines.
		height := msg.Height - 6
		if height < 3 {
			height = 3
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, height)
			m.ready = true
		} else {
			m.viewport.Width, m.viewport.Height = msg.Width-4, height
		}
		m.viewport.SetContent(renderTree(m.nodes))
	}
	return m, nil
}

func (m Model) View() string {
	if m.decided {
		if m.accepted {
			return acceptStyle.Render("✓ Criando itens no Jira...") + "\n"
		}
		return declineStyle.Render("✗ Operação cancelada pelo usuário.") + "\n"
	}

	var b strings.Builder
	header, intro, _ := strings.Cut(hierarchy.ReviewHeader, "\n")
	b.WriteString(headerStyle.Render(strings.Trim(header, "= ")))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(intro))
	b.WriteString("\n")

	body := renderTree(m.nodes)
	if m.ready {
		body = m.viewport.View()
	}
	b.WriteString(containerStyle.Render(body))
	b.WriteString("\n")
	b.WriteString(questionStyle.Render(hierarchy.ReviewQuestion))
	b.WriteString(" ")
	b.WriteString(dimStyle.Render(fmt.Sprintf("[%s] %s  [%s] %s",
		keys.Accept.Help().Key, keys.Accept.Help().Desc,
		keys.Decline.Help().Key, keys.Decline.Help().Desc)))
	b.WriteString("\n")
	return b.String()
}

// renderTree follows hierarchy.Tree, adding a coloured type badge.
func renderTree(nodes []*hierarchy.Node) string {
	lines := make([]string, 0, len(nodes))
	for _, n := range nodes {
		style, ok := typeStyles[n.Type]
		if !ok {
			style = dimStyle
		}
		lines = append(lines, fmt.Sprintf("%s%s %s",
			strings.Repeat("  ", n.Type.Depth()),
			style.Render("["+n.Type.String()+"]"),
			n.Summary()))
	}
	return strings.Join(lines, "\n")
}
