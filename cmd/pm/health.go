package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/Gabriell-Belmont/sam--product-management/internal/ai"
	"github.com/Gabriell-Belmont/sam--product-management/internal/blobstore"
	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
	"github.com/Gabriell-Belmont/sam--product-management/internal/services"
	"github.com/Gabriell-Belmont/sam--product-management/internal/tracker"
)

const healthTimeout = 5 * time.Second

type check struct {
	name string
	run  func(ctx context.Context) (string, error)
}

func newHealthCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check Jira, the store and the AI provider",
		Long: `Check that Jira answers with the configured credentials, that the store is
readable and which AI provider is configured.

Examples:
  pm health`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed []string
			for _, ch := range c.healthChecks() {
				ctx, cancel := context.WithTimeout(cmd.Context(), healthTimeout)
				detail, err := ch.run(ctx)
				cancel()
				if err != nil {
					failed = append(failed, ch.name)
					fmt.Fprintf(cmd.OutOrStdout(), "%s %-8s %v\n", failStyle.Render("✗"), ch.name, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-8s %s\n", okStyle.Render("✓"), ch.name, detail)
			}
			if len(failed) > 0 {
				return fmt.Errorf("unhealthy: %v", failed)
			}
			return nil
		},
	}
}

func (c *cli) healthChecks() []check {
	logger := c.logger.Underlying()
	return []check{
		{name: "jira", run: func(ctx context.Context) (string, error) {
			client, err := tracker.New(c.cfg.Tracker.ClientConfig(), logger)
			if err != nil {
				return "", err
			}
			if err := client.Ping(ctx); err != nil {
				return "", err
			}
			return c.cfg.Tracker.BaseURL, nil
		}},
		{name: "store", run: func(ctx context.Context) (string, error) {
			var nc *nats.Conn
			if c.cfg.Store.Backend == blobstore.BackendNATS {
				var err error
				if nc, err = services.ConnectNATS(c.cfg, logger); err != nil {
					return "", err
				}
				defer nc.Close()
			}
			repo, err := services.OpenStore(ctx, c.cfg, logger, nc)
			if err != nil {
				return "", err
			}
			if _, err := repo.ListItems(ctx, c.historyProject(), item.TypeTask, 1); err != nil {
				return "", err
			}
			return c.cfg.Store.Backend, nil
		}},
		{name: "ai", run: func(context.Context) (string, error) {
			provider := c.cfg.AI.ClientConfig().Provider
			if provider == ai.ProviderNone {
				return "disabled (rule-based extraction)", nil
			}
			if !c.cfg.AI.APIKey.IsSet() && provider != ai.ProviderLangchain {
				return "", errors.New(provider + ": api key not set")
			}
			return provider + " " + c.cfg.AI.Model, nil
		}},
	}
}
