package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/Gabriell-Belmont/sam--product-management/internal/blobstore"
	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
	"github.com/Gabriell-Belmont/sam--product-management/internal/services"
)

const maxHistoryLimit = 100

func newHistoryCmd(c *cli) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history <type>",
		Short: "List recently stored items of a type",
		Long: `List the items pm created and stored, newest first.

Examples:
  pm history task
  pm history história --limit 5 --project OPS`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := item.Normalize(args[0])
			if !ok || !t.Valid() {
				return fmt.Errorf("unknown item type: %s", args[0])
			}
			if limit < 1 {
				return fmt.Errorf("limit must be a positive integer")
			}
			limit = min(limit, maxHistoryLimit)

			var nc *nats.Conn
			if c.cfg.Store.Backend == blobstore.BackendNATS {
				var err error
				if nc, err = services.ConnectNATS(c.cfg, c.logger.Underlying()); err != nil {
					return err
				}
				defer nc.Close()
			}
			repo, err := services.OpenStore(cmd.Context(), c.cfg, c.logger.Underlying(), nc)
			if err != nil {
				return err
			}

			recs, err := repo.ListItems(cmd.Context(), c.historyProject(), t, limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(recs)
			}
			if len(recs) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No %s items stored.\n", t)
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SAVED\tJIRA\tSUMMARY")
			for _, r := range recs {
				summary, _ := r.Data[item.FieldSummary].(string)
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.SavedAt.Local().Format("2006-01-02 15:04"), r.Metadata[blobstore.MetaJiraKey], summary)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of items")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the stored records as JSON")
	return cmd
}

// historyProject resolves the project the way the pipeline scopes runs.
func (c *cli) historyProject() string {
	switch {
	case c.project != "":
		return c.project
	case c.cfg.Pipeline.DefaultProject != "":
		return c.cfg.Pipeline.DefaultProject
	default:
		return c.cfg.Tracker.ProjectKey
	}
}
