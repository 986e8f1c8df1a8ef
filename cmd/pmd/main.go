// Pmd serves the prompt pipeline over HTTP and, optionally, MCP stdio.
//
// Configuration is loaded from ~/.config/pm/config.yaml and PM_ environment
// variables. See internal/config for details.
//
// Usage:
//
//	# Start the HTTP API with defaults
//	pmd
//
//	# Serve MCP tools on stdio as well
//	pmd -mcp
//
//	# Configure via environment
//	PM_SERVER_PORT=9090 PM_TRACKER_BASE_URL=https://acme.atlassian.net pmd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Gabriell-Belmont/sam--product-management/internal/config"
	httpapi "github.com/Gabriell-Belmont/sam--product-management/internal/http"
	"github.com/Gabriell-Belmont/sam--product-management/internal/logging"
	"github.com/Gabriell-Belmont/sam--product-management/internal/mcp"
	"github.com/Gabriell-Belmont/sam--product-management/internal/services"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

type options struct {
	configPath string
	mcp        bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "config file (default ~/.config/pm/config.yaml)")
	flag.BoolVar(&opts.mcp, "mcp", false, "serve MCP tools on stdio")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  pmd [-config path] [-mcp]   Start the server\n")
			fmt.Fprintf(os.Stderr, "  pmd version                 Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWithFile(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := run(ctx, cfg, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("pmd\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run builds the services, serves until ctx is cancelled and shuts down
// within the configured timeout.
func run(ctx context.Context, cfg *config.Config, opts options) error {
	logger, err := initLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zl := logger.Underlying()

	zl.Info("starting pmd",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()),
		zap.Bool("mcp", opts.mcp),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()))

	reg, err := services.Build(ctx, cfg, zl, services.WithVersion(version))
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		if err := reg.Close(shutdownCtx); err != nil {
			zl.Warn("failed to close services", zap.Error(err))
		}
	}()

	srv, err := httpapi.NewServer(reg.Pipeline(), reg.Scrubber(), zl,
		&httpapi.Config{Host: cfg.Server.Host, Port: cfg.Server.Port},
		httpOptions(reg)...)
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if opts.mcp {
		mcpServer, err := mcp.NewServer(&mcp.Config{Name: "pm", Version: version, Logger: zl}, reg.Pipeline(), reg.Scrubber())
		if err != nil {
			return fmt.Errorf("failed to create mcp server: %w", err)
		}
		go func() {
			// The client closing stdin ends the process.
			if err := mcpServer.Run(ctx); err != nil {
				errCh <- err
				return
			}
			errCh <- nil
		}()
	}

	select {
	case <-ctx.Done():
		zl.Info("shutdown signal received")
	case err = <-errCh:
		if err != nil {
			zl.Error("server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		zl.Warn("http shutdown failed", zap.Error(serr))
	}
	zl.Info("server shutdown complete")
	return err
}

// initLogger writes to stderr in MCP mode, where stdout carries the
// protocol.
func initLogger(cfg *config.Config, opts options) (*logging.Logger, error) {
	lc, err := logging.NewConfig(cfg.Logging, "pmd")
	if err != nil {
		return nil, err
	}
	if opts.mcp {
		lc.Output.Stream = logging.StreamStderr
	}
	return logging.NewLogger(lc, nil)
}

func httpOptions(reg services.Registry) []httpapi.Option {
	opts := []httpapi.Option{
		httpapi.WithVersion(version),
		httpapi.WithHealthCheck("tracker", func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return reg.Tracker().Ping(ctx)
		}),
	}
	if tel := reg.Telemetry(); tel.IsEnabled() {
		opts = append(opts, httpapi.WithHealthCheck("telemetry", func(context.Context) error {
			if h := tel.Health(); !h.Healthy || h.Degraded {
				return errors.New("telemetry degraded")
			}
			return nil
		}))
	}
	if g := reg.Gatherer(); g != nil {
		opts = append(opts, httpapi.WithGatherer(g))
	}
	return opts
}
