package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/siteselect/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect selection run history",
	Long:  "Commands for listing and viewing past selection runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List selection runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.ListRuns(ctx, store.RunFilter{Limit: limit})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the full result of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		result, err := st.GetResult(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// -- runs sites --

var runsSitesCmd = &cobra.Command{
	Use:   "sites <run-id>",
	Short: "List the sites of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		sites, err := st.ListSites(ctx, args[0], status)
		if err != nil {
			return eris.Wrap(err, "runs sites")
		}

		if len(sites) == 0 {
			fmt.Fprintln(os.Stderr, "No sites found.")
			return nil
		}

		formatSitesList(os.Stdout, sites)
		return nil
	},
}

func init() {
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsSitesCmd.Flags().String("status", "", "filter by site status (selected, suppressed, capped)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsSitesCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []store.RunSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSEED\tTARGET\tSELECTED\tSUPPRESSED\tCAPPED\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t--------\t----------\t------\t-------")

	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			truncateID(r.ID),
			r.Seed,
			r.TargetCount,
			r.SelectedCount,
			r.SuppressedCount,
			r.CappedCount,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatSitesList writes a tabular list of run sites to w.
func formatSitesList(out io.Writer, sites []store.SiteRow) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tNAME\tREGION\tTYPE\tPOP\tSCORE\tCONF\tSTATUS")

	for _, s := range sites {
		name := s.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%.3f\t%.2f\t%s\n",
			s.Rank, name, s.RegionCode, s.SettlementType, s.Population,
			s.Score, s.Confidence, s.Status,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
