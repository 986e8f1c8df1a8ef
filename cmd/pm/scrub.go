package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Gabriell-Belmont/sam--product-management/internal/services"
)

func newScrubCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "scrub [file|-]",
		Short: "Scrub secrets from a file or stdin",
		Long: `Scrub secrets from a file or stdin with the rules applied to prompts.

Examples:
  # Scrub a file
  pm scrub pedido.txt

  # Scrub from stdin
  cat output.log | pm scrub -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var content []byte
			var err error
			if len(args) == 0 || args[0] == "-" {
				content, err = io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read from stdin: %w", err)
				}
			} else {
				content, err = os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("failed to read file %s: %w", args[0], err)
				}
			}
			if len(content) == 0 {
				return fmt.Errorf("no content to scrub")
			}

			scrubber, err := services.NewScrubber(c.cfg)
			if err != nil {
				return err
			}
			result := scrubber.Scrub(string(content))
			fmt.Fprint(cmd.OutOrStdout(), result.Scrubbed)
			if result.HasFindings() {
				fmt.Fprintf(cmd.ErrOrStderr(), "\n[pm] Scrubbed %d secret(s)\n", len(result.Findings))
			}
			return nil
		},
	}
}
