package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/Gabriell-Belmont/sam--product-management/internal/blobstore"
	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
	"github.com/Gabriell-Belmont/sam--product-management/internal/pipeline"
	"github.com/Gabriell-Belmont/sam--product-management/internal/secrets"
)

// Pipeline is the part of pipeline.Orchestrator the tools call.
type Pipeline interface {
	Process(ctx context.Context, prompt string, pc pipeline.ProjectContext) *pipeline.Result
	Classify(ctx context.Context, prompt string, pc pipeline.ProjectContext) (*item.PromptRecord, item.FieldSet)
	CheckConflicts(ctx context.Context, prompt string, pc pipeline.ProjectContext) (*pipeline.ConflictReport, error)
	History(ctx context.Context, project string, t item.Type, limit int) ([]blobstore.Record, error)
}

// Server serves the pipeline tools.
type Server struct {
	mcp      *mcp.Server
	pipeline Pipeline
	scrubber secrets.Scrubber
	metrics  *Metrics
	logger   *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the implementation name (default: "pm").
	Name string
	// Version is the server version (default: "dev").
	Version string
	Logger  *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{Name: "pm", Version: "dev", Logger: zap.NewNop()}
}

// NewServer creates the server and registers its tools.
func NewServer(cfg *Config, p Pipeline, scrubber secrets.Scrubber) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if p == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if scrubber == nil {
		return nil, fmt.Errorf("scrubber is required")
	}

	s := &Server{
		mcp:      mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil),
		pipeline: p,
		scrubber: scrubber,
		logger:   cfg.Logger.Named("mcp"),
	}
	s.metrics = NewMetrics(s.logger)
	s.registerTools()
	return s, nil
}

// Run serves on the stdio transport until ctx ends or the client leaves.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Connect serves a single session on t. Tests use it with in-memory
// transports.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}
