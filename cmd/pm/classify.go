package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
	"github.com/Gabriell-Belmont/sam--product-management/internal/services"
)

type classifyOutput struct {
	Prompt  *item.PromptRecord `json:"prompt"`
	Type    item.Type          `json:"item_type"`
	Fields  item.FieldSet      `json:"fields"`
	Missing []string           `json:"missing,omitempty"`
}

func newClassifyCmd(c *cli) *cobra.Command {
	var itemType string
	cmd := &cobra.Command{
		Use:   "classify [prompt|-]",
		Short: "Classify a prompt and show the extracted fields",
		Long: `Classify a prompt and extract its fields without creating anything.
Jira credentials are not needed.

Examples:
  pm classify "Criar subtask para revisar logs"
  echo "Bug: erro 500 no checkout" | pm classify -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			scrubber, err := services.NewScrubber(c.cfg)
			if err != nil {
				return err
			}
			cls, ext, err := services.NewAnalyzers(c.cfg, c.logger.Underlying(), scrubber)
			if err != nil {
				return err
			}

			rec := cls.Parse(cmd.Context(), prompt)
			t := rec.Type
			if itemType != "" {
				forced, ok := item.Normalize(itemType)
				if !ok || !forced.Valid() {
					return fmt.Errorf("unknown item type: %s", itemType)
				}
				t = forced
			}
			if t == item.TypeAuto {
				t = item.TypeStory
			}

			out := classifyOutput{Prompt: rec, Type: t, Fields: ext.Extract(cmd.Context(), rec.Raw, t)}
			var verr *item.ValidationError
			if errors.As(item.Validate(t, out.Fields), &verr) {
				out.Missing = verr.Missing
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVarP(&itemType, "type", "t", "", "extract fields for this type instead of the classified one")
	return cmd
}
