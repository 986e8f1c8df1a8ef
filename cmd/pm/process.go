package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Gabriell-Belmont/sam--product-management/internal/logging"
	"github.com/Gabriell-Belmont/sam--product-management/internal/pipeline"
	"github.com/Gabriell-Belmont/sam--product-management/internal/review"
	"github.com/Gabriell-Belmont/sam--product-management/internal/services"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type processFlags struct {
	itemType  string
	hierarchy bool
	yes       bool
	json      bool
}

func newProcessCmd(c *cli) *cobra.Command {
	var f processFlags
	cmd := &cobra.Command{
		Use:   "process [prompt|-]",
		Short: "Create a Jira item from a prompt",
		Long: `Classify a prompt, extract its fields and create the item in Jira.

Hierarchies are shown for review before anything is created.

Examples:
  # Create a task
  pm process "Criar uma tarefa para configurar cache. Título: Configurar cache Redis"

  # Read the prompt from stdin and force the type
  cat pedido.txt | pm process --type bug -

  # Generate an epic/story/task hierarchy without review
  pm process --hierarchy --yes "Login com Google"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runProcess(cmd, args, f)
		},
	}
	cmd.Flags().StringVarP(&f.itemType, "type", "t", "", "force the item type (épico, história, task, subtask, bug, sub-bug, auto)")
	cmd.Flags().BoolVar(&f.hierarchy, "hierarchy", false, "generate an epic/story/task hierarchy")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "create hierarchies without review")
	cmd.Flags().BoolVar(&f.json, "json", false, "print the result as JSON")
	return cmd
}

func (c *cli) runProcess(cmd *cobra.Command, args []string, f processFlags) error {
	prompt, err := readInput(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	reg, err := services.Build(cmd.Context(), c.cfg, c.logger.Underlying(),
		services.WithVersion(version),
		services.WithReviewer(c.reviewer(cmd, f, len(args) == 0 || args[0] == "-")))
	if err != nil {
		return err
	}
	defer func() { _ = reg.Close(cmd.Context()) }()

	pc := pipeline.ProjectContext{
		Project:   c.project,
		User:      c.user,
		Type:      f.itemType,
		Hierarchy: f.hierarchy,
	}
	ctx := logging.WithUser(logging.WithProject(cmd.Context(), pc.Project), pc.User)
	res := reg.Pipeline().Process(ctx, prompt, pc)

	if f.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printResult(cmd.OutOrStdout(), res)
	}
	if res.Error != nil {
		return fmt.Errorf("run %s failed: %w", res.RunID, res.Error)
	}
	return nil
}

// reviewer picks the TUI on a terminal and line prompts elsewhere. A
// prompt read from stdin leaves nothing to answer with, so --yes is needed.
func (c *cli) reviewer(cmd *cobra.Command, f processFlags, promptFromStdin bool) pipeline.Reviewer {
	switch {
	case f.yes:
		return pipeline.ApproveAll
	case !promptFromStdin && isTerminal(os.Stdin) && isTerminal(os.Stdout):
		return review.NewTUI(os.Stdin, os.Stdout)
	default:
		return review.NewPrompt(cmd.InOrStdin(), cmd.ErrOrStderr())
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func printResult(w io.Writer, res *pipeline.Result) {
	items := res.Items
	if res.Item != nil {
		items = append([]*pipeline.CreatedItem{res.Item}, items...)
	}
	for _, it := range items {
		mark := okStyle.Render("✓")
		if it.Key == "" {
			mark = failStyle.Render("✗")
		}
		line := fmt.Sprintf("%s %-9s %-10s %s", mark, it.Type, it.Key, it.Summary)
		if it.URL != "" {
			line += " " + dimStyle.Render(it.URL)
		}
		fmt.Fprintln(w, line)
	}
	for _, warning := range res.Warnings {
		fmt.Fprintln(w, warnStyle.Render("! "+warning))
	}
	if res.LegacyDescription != "" {
		fmt.Fprintln(w, strings.TrimSpace(res.LegacyDescription))
	}
	if res.Error != nil {
		fmt.Fprintln(w, failStyle.Render("Erro: ")+res.ErrorMessage)
	}
}
