package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Gabriell-Belmont/sam--product-management/internal/ai"
	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
	"github.com/Gabriell-Belmont/sam--product-management/internal/secrets"
)

// ErrNoType is returned by SuggestType when the model names no type.
var ErrNoType = errors.New("model response has no type")

// Extractor extracts fields from prompts, preferring the AI client when one
// is available and falling back to the rule-based patterns otherwise.
type Extractor struct {
	client   ai.Client
	scrubber secrets.Scrubber
	logger   *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithScrubber redacts secrets from any text before it is sent to the model.
func WithScrubber(s secrets.Scrubber) Option {
	return func(e *Extractor) { e.scrubber = s }
}

// New creates an Extractor. A nil client behaves like ai.NoOp.
func New(client ai.Client, logger *zap.Logger, opts ...Option) (*Extractor, error) {
	if logger == nil {
		return nil, errors.New("logger is required for extractor")
	}
	if client == nil {
		client = ai.NoOp{}
	}
	e := &Extractor{client: client, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// AIAvailable reports whether model calls can be made.
func (e *Extractor) AIAvailable() bool { return e.client.Available() }

// Extract returns the fields for a prompt of type t. When the model returns
// a non-empty object it is used as-is, with summary, labels and (for
// subtasks and sub-bugs) parent_key backfilled from the rules. Any model
// failure is logged and the rule-based result returned instead.
func (e *Extractor) Extract(ctx context.Context, text string, t item.Type) item.FieldSet {
	if !e.client.Available() {
		return Extract(text, t)
	}

	fs, err := e.extractAI(ctx, text, t)
	if err != nil {
		e.logger.Warn("ai extraction failed, using rules",
			zap.String("item_type", t.String()),
			zap.Error(err))
		return Extract(text, t)
	}
	if len(fs) == 0 {
		return Extract(text, t)
	}

	if fs.Empty(item.FieldSummary) {
		summary := Extract(text, t).Get(item.FieldSummary)
		fs.Set(item.FieldSummary, summary)
	}
	if !fs.Has(item.FieldLabels) {
		fs.SetList(item.FieldLabels, Labels(text))
	}
	if (t == item.TypeSubtask || t == item.TypeSubBug) && !fs.Has(item.FieldParentKey) {
		if key := Extract(text, t).Get(item.FieldParentKey); key != "" {
			fs.Set(item.FieldParentKey, key)
		}
	}

	e.logger.Debug("ai extraction succeeded",
		zap.String("item_type", t.String()),
		zap.Strings("fields", fs.Names()))
	return fs
}

func (e *Extractor) extractAI(ctx context.Context, text string, t item.Type) (item.FieldSet, error) {
	resp, err := e.client.Generate(ctx, ai.Request{
		System:      extractSystemPrompt(t),
		Prompt:      "Extraia informações estruturadas do seguinte texto:\n\n" + e.scrub(text),
		Temperature: ai.Temperature(extractTemperature),
	})
	if err != nil {
		return nil, err
	}
	obj, err := ai.DecodeObject(resp)
	if err != nil {
		return nil, err
	}
	return item.FromJSON(obj), nil
}

// SuggestType asks the model to identify the item type of text. The raw
// type name is returned; callers normalize it.
func (e *Extractor) SuggestType(ctx context.Context, text string) (string, error) {
	fs, err := e.extractAI(ctx, text, "")
	if err != nil {
		return "", err
	}
	name := fs.Get("type")
	if name == "" {
		return "", ErrNoType
	}
	return name, nil
}

// Enrich asks the model to improve the content of fs. Only keys already
// present in fs are taken from the response. On failure fs is returned
// unchanged together with the error.
func (e *Extractor) Enrich(ctx context.Context, t item.Type, fs item.FieldSet) (item.FieldSet, error) {
	if !e.client.Available() {
		return fs, ai.ErrDisabled
	}

	payload, err := json.MarshalIndent(fs, "", "  ")
	if err != nil {
		return fs, fmt.Errorf("marshal fields: %w", err)
	}
	resp, err := e.client.Generate(ctx, ai.Request{
		System:      enrichSystemPrompt(t),
		Prompt:      fmt.Sprintf("Enriqueça o conteúdo do seguinte item do Jira do tipo '%s':\n\n%s", t, e.scrub(string(payload))),
		Temperature: ai.Temperature(enrichTemperature),
	})
	if err != nil {
		return fs, err
	}
	obj, err := ai.DecodeObject(resp)
	if err != nil {
		return fs, err
	}

	out := fs.Clone()
	for k, v := range item.FromJSON(obj) {
		if _, ok := fs[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// AnalyzeContext asks the model how prompt relates to recent history. The
// result is advisory.
func (e *Extractor) AnalyzeContext(ctx context.Context, prompt string, h History) (*Analysis, error) {
	if !e.client.Available() {
		return nil, ai.ErrDisabled
	}

	payload, err := json.MarshalIndent(simplify(h), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}
	resp, err := e.client.Generate(ctx, ai.Request{
		System: analyzeSystemPrompt,
		Prompt: "Analise o seguinte prompt:\n\n" + e.scrub(prompt) +
			"\n\nConsiderando o contexto histórico:\n\n" + e.scrub(string(payload)),
		Temperature: ai.Temperature(analyzeTemperature),
	})
	if err != nil {
		return nil, err
	}
	obj, err := ai.DecodeObject(resp)
	if err != nil {
		return nil, err
	}

	a := &Analysis{
		RelatedItems:   obj["related_items"],
		Suggestions:    obj["suggestions"],
		Dependencies:   obj["dependencies"],
		NamingPatterns: obj["naming_patterns"],
	}
	return a, nil
}

func (e *Extractor) scrub(text string) string {
	if e.scrubber == nil {
		return text
	}
	return e.scrubber.Scrub(text).Scrubbed
}
