package services

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/Gabriell-Belmont/sam--product-management/internal/ai"
	"github.com/Gabriell-Belmont/sam--product-management/internal/blobstore"
	"github.com/Gabriell-Belmont/sam--product-management/internal/classifier"
	"github.com/Gabriell-Belmont/sam--product-management/internal/config"
	"github.com/Gabriell-Belmont/sam--product-management/internal/events"
	"github.com/Gabriell-Belmont/sam--product-management/internal/extraction"
	"github.com/Gabriell-Belmont/sam--product-management/internal/pipeline"
	"github.com/Gabriell-Belmont/sam--product-management/internal/secrets"
	"github.com/Gabriell-Belmont/sam--product-management/internal/telemetry"
	"github.com/Gabriell-Belmont/sam--product-management/internal/tracker"
)

type buildOptions struct {
	reviewer  pipeline.Reviewer
	version   string
	telemetry []telemetry.Option
}

// BuildOption configures Build.
type BuildOption func(*buildOptions)

// WithReviewer sets who confirms generated hierarchies. The default
// approves them.
func WithReviewer(r pipeline.Reviewer) BuildOption {
	return func(o *buildOptions) { o.reviewer = r }
}

// WithVersion sets the service version reported to telemetry.
func WithVersion(v string) BuildOption {
	return func(o *buildOptions) { o.version = v }
}

// WithTelemetryOptions passes opts to telemetry.New.
func WithTelemetryOptions(opts ...telemetry.Option) BuildOption {
	return func(o *buildOptions) { o.telemetry = append(o.telemetry, opts...) }
}

// Build creates every component from cfg. On error, whatever was already
// started is released.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...BuildOption) (_ Registry, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	o := buildOptions{version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}

	var built Options
	defer func() {
		if err != nil {
			_ = NewRegistry(built).Close(context.Background())
		}
	}()

	built.Telemetry, err = telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, o.version), logger, o.telemetry...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	var metrics *pipeline.Metrics
	if cfg.Observability.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = pipeline.NewMetrics(reg)
		built.Gatherer = reg
	}

	built.Scrubber, err = NewScrubber(cfg)
	if err != nil {
		return nil, err
	}
	cls, ext, err := NewAnalyzers(cfg, logger, built.Scrubber)
	if err != nil {
		return nil, err
	}

	built.Tracker, err = tracker.New(cfg.Tracker.ClientConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracker client: %w", err)
	}

	if cfg.NATS.Enabled {
		built.NATS, err = ConnectNATS(cfg, logger)
		if err != nil {
			return nil, err
		}
	}
	built.Repository, err = OpenStore(ctx, cfg, logger, built.NATS)
	if err != nil {
		return nil, err
	}

	popts := []pipeline.Option{
		pipeline.WithRepository(built.Repository),
		pipeline.WithScrubber(built.Scrubber),
		pipeline.WithEnrichment(cfg.AI.Enrich),
		pipeline.WithTracer(built.Telemetry.Tracer("pm/pipeline")),
		pipeline.WithDefaults(cfg.Pipeline.DefaultProject, cfg.Pipeline.DefaultUser),
	}
	if metrics != nil {
		popts = append(popts, pipeline.WithMetrics(metrics))
	}
	if o.reviewer != nil {
		popts = append(popts, pipeline.WithReviewer(o.reviewer))
	}
	if built.NATS != nil {
		pub, err := events.NewPublisher(built.NATS)
		if err != nil {
			return nil, fmt.Errorf("failed to create event publisher: %w", err)
		}
		popts = append(popts, pipeline.WithPublisher(pub))
	}

	built.Pipeline, err = pipeline.New(cls, ext, built.Tracker, logger, popts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	logger.Info("services initialized",
		zap.String("ai_provider", cfg.AI.ClientConfig().Provider),
		zap.String("store_backend", cfg.Store.Backend),
		zap.Bool("nats_connected", built.NATS != nil),
		zap.Bool("metrics_enabled", built.Gatherer != nil),
		zap.Bool("telemetry_enabled", built.Telemetry.IsEnabled()))
	return NewRegistry(built), nil
}

// NewScrubber creates the prompt scrubber.
func NewScrubber(cfg *config.Config) (secrets.Scrubber, error) {
	s, err := secrets.New(cfg.Secrets.ScrubberConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create scrubber: %w", err)
	}
	return s, nil
}

// NewAnalyzers creates the classifier and the extractor. The model is
// asked for types only when a provider is configured.
func NewAnalyzers(cfg *config.Config, logger *zap.Logger, scrubber secrets.Scrubber) (*classifier.Classifier, *extraction.Extractor, error) {
	client, err := ai.New(cfg.AI.ClientConfig(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create ai client: %w", err)
	}
	ext, err := extraction.New(client, logger, extraction.WithScrubber(scrubber))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create extractor: %w", err)
	}
	var copts []classifier.Option
	if client.Available() {
		copts = append(copts, classifier.WithSuggester(ext))
	}
	cls, err := classifier.New(logger, copts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create classifier: %w", err)
	}
	return cls, ext, nil
}

// ConnectNATS connects to the configured server, retrying in the
// background when it is not up yet.
func ConnectNATS(cfg *config.Config, logger *zap.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name("pm"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	logger.Info("connected to NATS", zap.String("url", cfg.NATS.URL))
	return nc, nil
}

// OpenStore opens the configured backend. nc is required by the nats
// backend only.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger, nc *nats.Conn) (*blobstore.Repository, error) {
	bc := cfg.Store.BlobConfig()
	backend, err := blobstore.Open(ctx, bc, nc)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", bc.Backend, err)
	}
	repo, err := blobstore.NewRepository(backend, logger, blobstore.WithPrefix(bc.Prefix))
	if err != nil {
		return nil, fmt.Errorf("failed to create repository: %w", err)
	}
	return repo, nil
}
