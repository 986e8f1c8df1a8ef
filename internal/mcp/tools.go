package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
	"github.com/Gabriell-Belmont/sam--product-management/internal/logging"
	"github.com/Gabriell-Belmont/sam--product-management/internal/pipeline"
)

const (
	toolProcess   = "process_prompt"
	toolClassify  = "classify_prompt"
	toolConflicts = "check_conflicts"
	toolHistory   = "item_history"

	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

type promptInput struct {
	Prompt    string `json:"prompt" jsonschema:"required,Free-text request in Portuguese or English"`
	Project   string `json:"project,omitempty" jsonschema:"Tracker project key (default: configured project)"`
	User      string `json:"user,omitempty" jsonschema:"User the interaction is stored under"`
	Type      string `json:"type,omitempty" jsonschema:"Force an item type (épico, história, task, subtask, bug, sub-bug)"`
	Hierarchy bool   `json:"hierarchy,omitempty" jsonschema:"Generate an epic/story/task hierarchy"`
}

func (in promptInput) scope() pipeline.ProjectContext {
	return pipeline.ProjectContext{
		Project:   in.Project,
		User:      in.User,
		Type:      in.Type,
		Hierarchy: in.Hierarchy,
	}
}

type itemOutput struct {
	Type      string `json:"item_type" jsonschema:"Item type"`
	Key       string `json:"key,omitempty" jsonschema:"Tracker key"`
	URL       string `json:"url,omitempty" jsonschema:"Browse URL"`
	Summary   string `json:"summary" jsonschema:"Item summary"`
	ParentKey string `json:"parent_key,omitempty" jsonschema:"Parent tracker key"`
	Status    string `json:"status" jsonschema:"created, failed or skipped"`
}

type processOutput struct {
	RunID      string       `json:"run_id" jsonschema:"Pipeline run ID"`
	Success    bool         `json:"success" jsonschema:"True if every item was created"`
	ItemType   string       `json:"item_type" jsonschema:"Resolved item type"`
	Items      []itemOutput `json:"items" jsonschema:"Items in creation order"`
	ContextKey string       `json:"context_key,omitempty" jsonschema:"Storage key of the interaction context"`
	Warnings   []string     `json:"warnings,omitempty" jsonschema:"Non-fatal problems"`
	Error      string       `json:"error,omitempty" jsonschema:"Failure reason"`
}

type classifyOutput struct {
	ItemType           string         `json:"item_type" jsonschema:"Classified item type"`
	Classified         string         `json:"classified" jsonschema:"Classifier answer before routing"`
	HierarchyRequested bool           `json:"hierarchy_requested" jsonschema:"True if the prompt asks for a hierarchy"`
	Fields             map[string]any `json:"fields" jsonschema:"Extracted fields"`
	Missing            []string       `json:"missing,omitempty" jsonschema:"Required fields not found"`
}

type conflictOutput struct {
	Key     string `json:"key" jsonschema:"Tracker or storage key"`
	Summary string `json:"summary" jsonschema:"Existing summary"`
	Status  string `json:"status,omitempty" jsonschema:"Tracker status"`
	Source  string `json:"source" jsonschema:"tracker or store"`
}

type conflictsOutput struct {
	ItemType  string           `json:"item_type" jsonschema:"Classified item type"`
	Summary   string           `json:"summary" jsonschema:"Summary extracted from the prompt"`
	Conflicts []conflictOutput `json:"conflicts" jsonschema:"Possible duplicates"`
}

type historyInput struct {
	Type    string `json:"type" jsonschema:"required,Item type"`
	Project string `json:"project,omitempty" jsonschema:"Tracker project key"`
	Limit   int    `json:"limit,omitempty" jsonschema:"Maximum results (default: 10, max: 100)"`
}

type historyEntry struct {
	Key     string         `json:"key" jsonschema:"Storage key"`
	SavedAt string         `json:"saved_at" jsonschema:"RFC 3339 save time"`
	Data    map[string]any `json:"data" jsonschema:"Stored item"`
}

type historyOutput struct {
	ItemType string         `json:"item_type" jsonschema:"Item type"`
	Items    []historyEntry `json:"items" jsonschema:"Stored items, newest first"`
	Count    int            `json:"count" jsonschema:"Number of items returned"`
}

// instrument starts the metrics of one call. The returned func records
// the outcome.
func (s *Server) instrument(ctx context.Context, tool string) func(error) {
	start := time.Now()
	s.metrics.IncrementActive(ctx, tool)
	return func(err error) {
		s.metrics.DecrementActive(ctx, tool)
		s.metrics.RecordInvocation(ctx, tool, time.Since(start), err)
		if err != nil {
			s.logger.Warn("tool failed", zap.String("tool", tool), zap.Error(err))
		}
	}
}

func (s *Server) text(format string, args ...any) []mcp.Content {
	return []mcp.Content{&mcp.TextContent{Text: s.scrubber.Scrub(fmt.Sprintf(format, args...)).Scrubbed}}
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolProcess,
		Description: "Classify a prompt, extract fields and create the item (or hierarchy) in Jira",
	}, s.processPrompt)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolClassify,
		Description: "Classify a prompt and extract fields without creating anything",
	}, s.classifyPrompt)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolConflicts,
		Description: "Find open Jira items and stored items that resemble a prompt",
	}, s.checkConflicts)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolHistory,
		Description: "List recently stored items of a type",
	}, s.itemHistory)
}

func (s *Server) processPrompt(ctx context.Context, req *mcp.CallToolRequest, args promptInput) (*mcp.CallToolResult, processOutput, error) {
	var toolErr error
	done := s.instrument(ctx, toolProcess)
	defer func() { done(toolErr) }()

	if strings.TrimSpace(args.Prompt) == "" {
		toolErr = pipeline.ErrEmptyPrompt
		return nil, processOutput{}, toolErr
	}
	pc := args.scope()
	ctx = logging.WithUser(logging.WithProject(ctx, pc.Project), pc.User)

	res := s.pipeline.Process(ctx, args.Prompt, pc)
	out := processOutput{
		RunID:      res.RunID,
		Success:    res.Success,
		ItemType:   res.ItemType.String(),
		Items:      []itemOutput{},
		ContextKey: res.ContextKey,
		Warnings:   res.Warnings,
	}
	created := res.Items
	if res.Item != nil {
		created = append([]*pipeline.CreatedItem{res.Item}, created...)
	}
	for _, c := range created {
		out.Items = append(out.Items, itemOutput{
			Type:      c.Type.String(),
			Key:       c.Key,
			URL:       c.URL,
			Summary:   s.scrubber.Scrub(c.Summary).Scrubbed,
			ParentKey: c.ParentKey,
			Status:    c.Status,
		})
	}

	if res.Error != nil {
		toolErr = res.Error
		out.Error = s.scrubber.Scrub(res.ErrorMessage).Scrubbed
		return &mcp.CallToolResult{
			IsError: true,
			Content: s.text("Run %s failed: %s", res.RunID, res.ErrorMessage),
		}, out, nil
	}

	keys := res.Keys()
	return &mcp.CallToolResult{
		Content: s.text("Created %d %s item(s): %s", len(keys), out.ItemType, strings.Join(keys, ", ")),
	}, out, nil
}

func (s *Server) classifyPrompt(ctx context.Context, req *mcp.CallToolRequest, args promptInput) (*mcp.CallToolResult, classifyOutput, error) {
	var toolErr error
	done := s.instrument(ctx, toolClassify)
	defer func() { done(toolErr) }()

	if strings.TrimSpace(args.Prompt) == "" {
		toolErr = pipeline.ErrEmptyPrompt
		return nil, classifyOutput{}, toolErr
	}
	pc := args.scope()
	rec, fields := s.pipeline.Classify(ctx, args.Prompt, pc)

	t := rec.Type
	if t == item.TypeAuto {
		t = item.TypeStory
	}
	out := classifyOutput{
		ItemType:           t.String(),
		Classified:         rec.Classified.String(),
		HierarchyRequested: rec.HierarchyRequested,
		Fields:             map[string]any(fields),
	}
	var verr *item.ValidationError
	if errors.As(item.Validate(t, fields), &verr) {
		out.Missing = verr.Missing
	}
	if out.Fields == nil {
		out.Fields = map[string]any{}
	}

	msg := s.text("Classified as %s: %s", out.ItemType, fields.Get(item.FieldSummary))
	if len(out.Missing) > 0 {
		msg = s.text("Classified as %s; missing %s", out.ItemType, strings.Join(out.Missing, ", "))
	}
	return &mcp.CallToolResult{Content: msg}, out, nil
}

func (s *Server) checkConflicts(ctx context.Context, req *mcp.CallToolRequest, args promptInput) (*mcp.CallToolResult, conflictsOutput, error) {
	var toolErr error
	done := s.instrument(ctx, toolConflicts)
	defer func() { done(toolErr) }()

	report, err := s.pipeline.CheckConflicts(ctx, args.Prompt, args.scope())
	if err != nil {
		toolErr = fmt.Errorf("conflict check failed: %w", err)
		return nil, conflictsOutput{}, toolErr
	}

	out := conflictsOutput{
		ItemType:  report.Type.String(),
		Summary:   report.Summary,
		Conflicts: make([]conflictOutput, 0, len(report.Conflicts)),
	}
	for _, c := range report.Conflicts {
		out.Conflicts = append(out.Conflicts, conflictOutput(c))
	}
	return &mcp.CallToolResult{
		Content: s.text("Found %d possible duplicate(s) of %q", len(out.Conflicts), out.Summary),
	}, out, nil
}

func (s *Server) itemHistory(ctx context.Context, req *mcp.CallToolRequest, args historyInput) (*mcp.CallToolResult, historyOutput, error) {
	var toolErr error
	done := s.instrument(ctx, toolHistory)
	defer func() { done(toolErr) }()

	t, ok := item.Normalize(args.Type)
	if !ok || !t.Valid() {
		toolErr = fmt.Errorf("unknown item type: %q", args.Type)
		return nil, historyOutput{}, toolErr
	}
	limit := args.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	recs, err := s.pipeline.History(ctx, args.Project, t, limit)
	if err != nil {
		toolErr = fmt.Errorf("history failed: %w", err)
		return nil, historyOutput{}, toolErr
	}

	out := historyOutput{ItemType: t.String(), Items: make([]historyEntry, 0, len(recs)), Count: len(recs)}
	for _, r := range recs {
		out.Items = append(out.Items, historyEntry{
			Key:     r.Key,
			SavedAt: r.SavedAt.Format(time.RFC3339),
			Data:    r.Data,
		})
	}
	return &mcp.CallToolResult{
		Content: s.text("%d stored %s item(s)", out.Count, out.ItemType),
	}, out, nil
}
