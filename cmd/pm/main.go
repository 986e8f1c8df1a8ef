// Package main implements pm, the command line front end of the prompt
// pipeline.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Gabriell-Belmont/sam--product-management/internal/config"
	"github.com/Gabriell-Belmont/sam--product-management/internal/logging"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli holds the state shared by subcommands.
type cli struct {
	configPath string
	project    string
	user       string
	verbose    bool

	cfg    *config.Config
	logger *logging.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "pm",
		Short: "Turn free-text requests into Jira items",
		Long: `pm classifies a free-text request (Portuguese or English), extracts its fields,
renders them with the item template and creates the item, or a whole
epic/story/task hierarchy, in Jira.

Configuration is read from ~/.config/pm/config.yaml and PM_ environment
variables (PM_TRACKER_BASE_URL, PM_TRACKER_API_TOKEN, PM_AI_API_KEY, ...).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ~/.config/pm/config.yaml)")
	root.PersistentFlags().StringVar(&c.project, "project", "", "Jira project key (default: configured project)")
	root.PersistentFlags().StringVar(&c.user, "user", "", "user the interaction is stored under")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newProcessCmd(c),
		newClassifyCmd(c),
		newHistoryCmd(c),
		newHealthCmd(c),
		newScrubCmd(c),
	)
	return root
}

// init loads the configuration and a logger that writes to stderr, so that
// stdout carries only command output.
func (c *cli) init() error {
	cfg, err := config.LoadWithFile(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.verbose {
		cfg.Logging.Level = "debug"
	}
	lc, err := logging.NewConfig(cfg.Logging, "pm")
	if err != nil {
		return err
	}
	lc.Output.Stream = logging.StreamStderr
	logger, err := logging.NewLogger(lc, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	c.cfg = cfg
	c.logger = logger
	return nil
}

// readInput joins args, or reads in when args are empty or "-".
func readInput(in io.Reader, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read from stdin: %w", err)
	}
	return string(b), nil
}
