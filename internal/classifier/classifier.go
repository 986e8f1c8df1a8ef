// Package classifier decides which kind of work item a prompt describes.
//
// Classification is rule-based: whole-word type keywords first, then a fixed
// chain of structural heuristics. When neither applies the answer is
// item.TypeUnknown and the resolver refines it through keyword buckets. An
// optional AI suggester may override the rules, but its failures are logged
// and never returned.
package classifier

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
	"github.com/Gabriell-Belmont/sam--product-management/internal/patterns"
)

var tracer = otel.Tracer("pm/classifier")

// TypeSuggester asks an external model for the item type of a prompt.
type TypeSuggester interface {
	SuggestType(ctx context.Context, prompt string) (string, error)
}

// Classifier turns raw prompts into PromptRecords.
type Classifier struct {
	suggester TypeSuggester
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithSuggester enables AI type suggestions. A nil suggester is ignored.
func WithSuggester(s TypeSuggester) Option {
	return func(c *Classifier) { c.suggester = s }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) { c.now = now }
}

// New creates a Classifier.
func New(logger *zap.Logger, opts ...Option) (*Classifier, error) {
	if logger == nil {
		return nil, errors.New("logger is required for classifier")
	}
	c := &Classifier{
		logger: logger,
		tracer: tracer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Parse normalizes the prompt, classifies it and routes it. The routed type
// is TypeAuto when a hierarchy was requested, the resolver's answer when the
// classifier returned TypeUnknown, and the classifier's answer otherwise.
func (c *Classifier) Parse(ctx context.Context, raw string) *item.PromptRecord {
	ctx, span := c.tracer.Start(ctx, "Classifier.Parse")
	defer span.End()

	normalized := patterns.Normalize(raw)
	rec := &item.PromptRecord{
		Raw:        raw,
		Normalized: normalized,
		Timestamp:  c.now().UTC(),
	}

	classified, fromAI := c.suggest(ctx, raw)
	if !fromAI {
		classified = Classify(normalized)
	}
	rec.Classified = classified
	rec.HierarchyRequested = patterns.HierarchyRequested(normalized)

	switch {
	case rec.HierarchyRequested:
		rec.Type = item.TypeAuto
	case classified == item.TypeUnknown:
		rec.Type = Resolve(normalized)
	default:
		rec.Type = classified
	}

	span.SetAttributes(
		attribute.String("classified", string(rec.Classified)),
		attribute.String("routed", string(rec.Type)),
		attribute.Bool("ai", fromAI),
	)
	c.logger.Info("prompt classified",
		zap.String("classified", string(rec.Classified)),
		zap.String("type", string(rec.Type)),
		zap.Bool("hierarchy_requested", rec.HierarchyRequested),
		zap.Bool("ai", fromAI))
	return rec
}

// suggest returns the AI answer when one is configured, succeeds and names a
// known type.
func (c *Classifier) suggest(ctx context.Context, raw string) (item.Type, bool) {
	if c.suggester == nil {
		return "", false
	}
	answer, err := c.suggester.SuggestType(ctx, raw)
	if err != nil {
		c.logger.Warn("ai type suggestion failed, using rules", zap.Error(err))
		return "", false
	}
	t, ok := item.Normalize(answer)
	if !ok {
		c.logger.Debug("ai type suggestion not recognized", zap.String("answer", answer))
		return "", false
	}
	return t, true
}

// Classify applies keyword rules and then structural heuristics to
// lower-cased, whitespace-collapsed text. It returns TypeUnknown when
// neither applies.
func Classify(normalized string) item.Type {
	if t, ok := patterns.MatchType(normalized); ok {
		return t
	}
	for _, h := range patterns.Heuristics() {
		if h.Matches(normalized) {
			return h.Type
		}
	}
	return item.TypeUnknown
}

// Resolve refines an unknown classification through the resolver keyword
// buckets, defaulting to a story. Hierarchy requests are routed before the
// resolver runs, see Parse.
func Resolve(normalized string) item.Type {
	for _, b := range patterns.ResolverBuckets() {
		if patterns.ContainsAny(normalized, b.Terms) {
			return b.Type
		}
	}
	return item.TypeStory
}
