// Package pipeline turns one prompt into tracker items.
//
// A run classifies the prompt and then follows one of two routes. The single
// item route extracts fields, optionally enriches them, renders the template
// and creates one item. The hierarchy route generates an epic, story, task
// and subtask tree, asks a Reviewer for confirmation and creates the tree
// parent-first. Both routes end by persisting what was created, even after
// a failure.
//
// Process never returns an error. AI failures are downgraded to the
// rule-based path; every other failure is reported in Result.Error.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Gabriell-Belmont/sam--product-management/internal/blobstore"
	"github.com/Gabriell-Belmont/sam--product-management/internal/classifier"
	"github.com/Gabriell-Belmont/sam--product-management/internal/events"
	"github.com/Gabriell-Belmont/sam--product-management/internal/extraction"
	"github.com/Gabriell-Belmont/sam--product-management/internal/hierarchy"
	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
	"github.com/Gabriell-Belmont/sam--product-management/internal/secrets"
	"github.com/Gabriell-Belmont/sam--product-management/internal/template"
	"github.com/Gabriell-Belmont/sam--product-management/internal/tracker"
)

const (
	routeSingle    = "single"
	routeHierarchy = "hierarchy"

	defaultUser = "default_user"
)

// ErrEmptyPrompt is reported for blank prompts.
var ErrEmptyPrompt = errors.New("prompt is empty")

// Tracker is the issue tracker the pipeline creates items in.
type Tracker interface {
	hierarchy.Tracker
	FindConflicts(ctx context.Context, summary string, limit int) ([]tracker.Issue, error)
	ProjectKey() string
}

// Orchestrator runs prompts through the pipeline. It holds no per-run
// state and is safe for concurrent use when its collaborators are.
type Orchestrator struct {
	classifier *classifier.Classifier
	extractor  *extraction.Extractor
	tracker    Tracker
	linker     *hierarchy.Linker

	repo     *blobstore.Repository
	events   *events.Publisher
	scrubber secrets.Scrubber
	reviewer Reviewer
	metrics  *Metrics
	enrich   bool

	defaultProject string
	defaultUser    string

	logger *zap.Logger
	tracer trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRepository persists created items and interaction contexts.
func WithRepository(r *blobstore.Repository) Option {
	return func(o *Orchestrator) { o.repo = r }
}

// WithPublisher publishes run outcomes.
func WithPublisher(p *events.Publisher) Option {
	return func(o *Orchestrator) { o.events = p }
}

// WithScrubber redacts secrets from everything persisted.
func WithScrubber(s secrets.Scrubber) Option {
	return func(o *Orchestrator) { o.scrubber = s }
}

// WithReviewer sets the hierarchy reviewer. The default approves everything.
func WithReviewer(r Reviewer) Option {
	return func(o *Orchestrator) { o.reviewer = r }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithEnrichment asks the AI client to enrich single items before templating.
func WithEnrichment(enabled bool) Option {
	return func(o *Orchestrator) { o.enrich = enabled }
}

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithDefaults scopes runs that name no project or user. An empty project
// keeps the tracker's configured key.
func WithDefaults(project, user string) Option {
	return func(o *Orchestrator) {
		o.defaultProject = project
		if user != "" {
			o.defaultUser = user
		}
	}
}

// New creates an Orchestrator.
func New(c *classifier.Classifier, e *extraction.Extractor, t Tracker, logger *zap.Logger, opts ...Option) (*Orchestrator, error) {
	if c == nil {
		return nil, errors.New("classifier is required for orchestrator")
	}
	if e == nil {
		return nil, errors.New("extractor is required for orchestrator")
	}
	if t == nil {
		return nil, errors.New("tracker is required for orchestrator")
	}
	if logger == nil {
		return nil, errors.New("logger is required for orchestrator")
	}
	linker, err := hierarchy.NewLinker(t, logger)
	if err != nil {
		return nil, err
	}
	o := &Orchestrator{
		classifier:  c,
		extractor:   e,
		tracker:     t,
		linker:      linker,
		reviewer:    ApproveAll,
		defaultUser: defaultUser,
		logger:      logger.Named("pipeline"),
		tracer:      otel.Tracer("pm/pipeline"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = NewMetrics(nil)
	}
	if o.scrubber == nil {
		o.scrubber = secrets.NoopScrubber{}
	}
	return o, nil
}

// Process runs prompt through the pipeline.
func (o *Orchestrator) Process(ctx context.Context, prompt string, pc ProjectContext) *Result {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.Process")
	defer span.End()

	pc = o.scope(pc)
	res := &Result{RunID: uuid.NewString()}
	logger := o.logger.With(
		zap.String("run_id", res.RunID),
		zap.String("project", pc.Project),
		zap.String("user", pc.User))

	if strings.TrimSpace(prompt) == "" {
		res.fail(ErrEmptyPrompt)
		o.metrics.Runs.WithLabelValues(routeSingle, "failure").Inc()
		return res
	}

	start := time.Now()
	rec := o.classifier.Parse(ctx, prompt)
	o.metrics.observe(stepClassify, start)
	route(rec, pc)
	res.Record = rec
	res.ItemType = rec.Type

	runRoute := routeSingle
	if rec.Type == item.TypeAuto {
		runRoute = routeHierarchy
		o.processHierarchy(ctx, rec, res, logger)
	} else {
		o.processSingle(ctx, rec, pc, res, logger)
	}

	o.persist(ctx, rec, pc, runRoute, res, logger)
	o.publish(pc, res, logger)

	outcome := "success"
	switch {
	case res.Success:
	case len(res.Keys()) > 0:
		outcome = "partial"
	default:
		outcome = "failure"
	}
	o.metrics.Runs.WithLabelValues(runRoute, outcome).Inc()

	span.SetAttributes(
		attribute.String("run_id", res.RunID),
		attribute.String("route", runRoute),
		attribute.String("item_type", rec.Type.String()),
		attribute.Int("created", len(res.Keys())),
	)
	if res.Error != nil {
		span.RecordError(res.Error)
		span.SetStatus(codes.Error, res.ErrorMessage)
		logger.Error("prompt failed",
			zap.String("route", runRoute),
			zap.String("outcome", outcome),
			zap.Strings("keys", res.Keys()),
			zap.Error(res.Error))
	} else {
		logger.Info("prompt processed",
			zap.String("route", runRoute),
			zap.String("item_type", rec.Type.String()),
			zap.Strings("keys", res.Keys()))
	}
	return res
}

// Classify parses prompt without creating anything.
func (o *Orchestrator) Classify(ctx context.Context, prompt string, pc ProjectContext) (*item.PromptRecord, item.FieldSet) {
	rec := o.classifier.Parse(ctx, prompt)
	route(rec, pc)
	t := rec.Type
	if t == item.TypeAuto {
		t = item.TypeStory
	}
	return rec, o.extractor.Extract(ctx, rec.Raw, t)
}

func (o *Orchestrator) scope(pc ProjectContext) ProjectContext {
	if pc.Project == "" {
		pc.Project = o.defaultProject
	}
	if pc.Project == "" {
		pc.Project = o.tracker.ProjectKey()
	}
	if pc.User == "" {
		pc.User = o.defaultUser
	}
	return pc
}

// route applies the caller's explicit routing on top of the classifier's.
func route(rec *item.PromptRecord, pc ProjectContext) {
	if pc.Hierarchy || strings.EqualFold(pc.Type, string(item.TypeAuto)) {
		rec.HierarchyRequested = true
		rec.Type = item.TypeAuto
		return
	}
	if pc.Type == "" {
		return
	}
	if t, ok := item.Normalize(pc.Type); ok {
		rec.Type = t
		return
	}
	// Unknown names reach the template, which reports them.
	rec.Type = item.Type(pc.Type)
}

func (o *Orchestrator) processSingle(ctx context.Context, rec *item.PromptRecord, pc ProjectContext, res *Result, logger *zap.Logger) {
	t := rec.Type
	o.analyzeContext(ctx, rec, pc, logger)

	start := time.Now()
	fs := o.extractor.Extract(ctx, rec.Raw, t)
	o.metrics.observe(stepExtract, start)

	if o.enrich && o.extractor.AIAvailable() {
		start = time.Now()
		enriched, err := o.extractor.Enrich(ctx, t, fs)
		o.metrics.observe(stepEnrich, start)
		if err != nil {
			o.metrics.Fallbacks.WithLabelValues("ai_enrich").Inc()
			logger.Warn("ai enrichment failed, keeping extracted fields", zap.Error(err))
		} else {
			fs = enriched
		}
	}

	start = time.Now()
	rendered, err := template.Render(t, fs)
	o.metrics.observe(stepTemplate, start)
	var terr *template.TemplateError
	if errors.As(err, &terr) {
		o.metrics.Fallbacks.WithLabelValues("legacy_template").Inc()
		res.LegacyDescription = template.Legacy(fs)
		logger.Warn("no template for type, rendered legacy description", zap.String("item_type", t.String()))
		res.fail(err)
		return
	}
	if err != nil {
		res.fail(err)
		return
	}

	// Summary and description must survive templating; nothing is sent otherwise.
	var missing []string
	for _, name := range []string{item.FieldSummary, item.FieldDescription} {
		if rendered.Empty(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		res.fail(&item.ValidationError{Type: t, Missing: missing})
		return
	}

	it, err := item.New(t, rendered)
	if err != nil {
		res.fail(err)
		return
	}

	start = time.Now()
	created, err := o.tracker.Create(ctx, it)
	o.metrics.observe(stepCreate, start)
	if created.Key == "" {
		res.fail(fmt.Errorf("create %s: %w", t, err))
		return
	}
	o.metrics.ItemsCreated.WithLabelValues(t.String()).Inc()

	res.Item = &CreatedItem{
		Type:      t,
		Key:       created.Key,
		URL:       created.URL,
		Summary:   it.Common().Summary,
		ParentKey: item.ParentRef(it),
		Status:    string(hierarchy.StatusCreated),
		Fields:    rendered,
	}
	if err != nil {
		// Created but not linked: the item exists, so the run succeeds.
		res.Item.ParentKey = ""
		res.Warnings = append(res.Warnings, err.Error())
		logger.Warn("item created without parent link", zap.String("key", created.Key), zap.Error(err))
	}
	res.Success = true
}

func (o *Orchestrator) processHierarchy(ctx context.Context, rec *item.PromptRecord, res *Result, logger *zap.Logger) {
	start := time.Now()
	base := o.extractor.Extract(ctx, rec.Raw, item.TypeStory)
	nodes := hierarchy.Generate(rec, base)
	o.metrics.observe(stepGenerate, start)
	if err := hierarchy.CheckOrder(nodes); err != nil {
		res.fail(err)
		return
	}
	logger.Info("hierarchy generated", zap.Int("nodes", len(nodes)))

	start = time.Now()
	ok, err := o.reviewer.Confirm(ctx, nodes)
	o.metrics.observe(stepReview, start)
	if err != nil {
		res.fail(fmt.Errorf("review hierarchy: %w", err))
		return
	}
	if !ok {
		logger.Info("hierarchy declined")
		res.fail(ErrDeclined)
		return
	}

	start = time.Now()
	outcome := o.linker.Link(ctx, nodes)
	o.metrics.observe(stepLink, start)

	for _, n := range outcome.Nodes {
		res.Items = append(res.Items, fromNode(n))
		if n.Key != "" {
			o.metrics.ItemsCreated.WithLabelValues(n.Type.String()).Inc()
		}
	}
	if !outcome.Complete() {
		res.fail(fmt.Errorf("hierarchy incomplete: %d created, %d failed, %d skipped: %w",
			outcome.Created, outcome.Failed, outcome.Skipped, errors.Join(outcome.Errors...)))
		return
	}
	res.Success = true
}

// analyzeContext asks the AI client how the prompt relates to recent
// activity. The suggestions are logged only.
func (o *Orchestrator) analyzeContext(ctx context.Context, rec *item.PromptRecord, pc ProjectContext, logger *zap.Logger) {
	if o.repo == nil || !o.extractor.AIAvailable() {
		return
	}
	start := time.Now()
	defer o.metrics.observe(stepContext, start)

	h, err := o.loadHistory(ctx, pc)
	if err != nil {
		logger.Warn("failed to load history", zap.Error(err))
		return
	}
	analysis, err := o.extractor.AnalyzeContext(ctx, rec.Raw, h)
	if err != nil {
		o.metrics.Fallbacks.WithLabelValues("ai_context").Inc()
		logger.Warn("context analysis failed", zap.Error(err))
		return
	}
	suggestions, ok := analysis.Suggestions.([]any)
	if !ok {
		if analysis.Suggestions != nil {
			logger.Info("context suggestion", zap.Any("suggestion", analysis.Suggestions))
		}
		return
	}
	for _, s := range suggestions {
		logger.Info("context suggestion", zap.Any("suggestion", s))
	}
}
