// Package review asks the user to confirm a generated hierarchy before the
// CLI creates it.
package review

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Gabriell-Belmont/sam--product-management/internal/hierarchy"
)

// TUI runs the interactive confirmation screen.
type TUI struct {
	in  io.Reader
	out io.Writer
}

// NewTUI creates a reviewer that reads keys from in and draws on out.
func NewTUI(in io.Reader, out io.Writer) *TUI {
	return &TUI{in: in, out: out}
}

// Confirm shows nodes and waits for an answer. Cancelling ctx declines.
func (r *TUI) Confirm(ctx context.Context, nodes []*hierarchy.Node) (bool, error) {
	p := tea.NewProgram(NewModel(nodes),
		tea.WithContext(ctx),
		tea.WithInput(r.in),
		tea.WithOutput(r.out),
	)
	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) {
			return false, ctx.Err()
		}
		return false, fmt.Errorf("review screen: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return false, fmt.Errorf("review screen: unexpected model %T", final)
	}
	return m.Accepted(), nil
}

// Prompt is the line-based reviewer used when stdin is not a terminal. It
// prints the plain tree and accepts only "s".
type Prompt struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompt creates a line-based reviewer.
func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: bufio.NewReader(in), out: out}
}

func (r *Prompt) Confirm(ctx context.Context, nodes []*hierarchy.Node) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, err := fmt.Fprintf(r.out, "\n%s\n%s: ", hierarchy.Review(nodes), hierarchy.ReviewQuestion); err != nil {
		return false, err
	}
	line, err := r.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read answer: %w", err)
	}
	return strings.ToLower(strings.TrimSpace(line)) == "s", nil
}
