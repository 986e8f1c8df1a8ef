package services

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Gabriell-Belmont/sam--product-management/internal/blobstore"
	"github.com/Gabriell-Belmont/sam--product-management/internal/pipeline"
	"github.com/Gabriell-Belmont/sam--product-management/internal/secrets"
	"github.com/Gabriell-Belmont/sam--product-management/internal/telemetry"
	"github.com/Gabriell-Belmont/sam--product-management/internal/tracker"
)

// Registry provides access to the built components.
type Registry interface {
	Pipeline() *pipeline.Orchestrator
	Tracker() *tracker.Client
	Scrubber() secrets.Scrubber
	Repository() *blobstore.Repository
	Telemetry() *telemetry.Telemetry
	// Gatherer is nil when metrics are disabled.
	Gatherer() prometheus.Gatherer
	// Close releases connections and flushes telemetry.
	Close(ctx context.Context) error
}

// Options configures the registry with component instances.
type Options struct {
	Pipeline   *pipeline.Orchestrator
	Tracker    *tracker.Client
	Scrubber   secrets.Scrubber
	Repository *blobstore.Repository
	Telemetry  *telemetry.Telemetry
	Gatherer   prometheus.Gatherer
	NATS       *nats.Conn
}

type registry struct {
	pipeline   *pipeline.Orchestrator
	tracker    *tracker.Client
	scrubber   secrets.Scrubber
	repository *blobstore.Repository
	telemetry  *telemetry.Telemetry
	gatherer   prometheus.Gatherer
	nc         *nats.Conn
}

// NewRegistry creates a registry over opts.
func NewRegistry(opts Options) Registry {
	return &registry{
		pipeline:   opts.Pipeline,
		tracker:    opts.Tracker,
		scrubber:   opts.Scrubber,
		repository: opts.Repository,
		telemetry:  opts.Telemetry,
		gatherer:   opts.Gatherer,
		nc:         opts.NATS,
	}
}

func (r *registry) Pipeline() *pipeline.Orchestrator  { return r.pipeline }
func (r *registry) Tracker() *tracker.Client          { return r.tracker }
func (r *registry) Scrubber() secrets.Scrubber        { return r.scrubber }
func (r *registry) Repository() *blobstore.Repository { return r.repository }
func (r *registry) Telemetry() *telemetry.Telemetry   { return r.telemetry }
func (r *registry) Gatherer() prometheus.Gatherer     { return r.gatherer }

func (r *registry) Close(ctx context.Context) error {
	var errs []error
	if r.nc != nil {
		if err := r.nc.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, err)
		}
	}
	if r.telemetry != nil {
		if err := r.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
