package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-scout/internal/dork"
	"github.com/sells-group/lead-scout/internal/model"
)

var dorksCmd = &cobra.Command{
	Use:   "dorks",
	Short: "Inspect and seed the dork table",
}

// -- dorks list --

var dorksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dorks with their pool and feedback statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		dorks, err := st.LoadDorks(ctx)
		if err != nil {
			return eris.Wrap(err, "dorks list")
		}
		if len(dorks) == 0 {
			fmt.Fprintln(os.Stderr, "No dorks stored. Run `lead-scout dorks seed` first.")
			return nil
		}

		pool, _ := cmd.Flags().GetString("pool")
		limit, _ := cmd.Flags().GetInt("limit")
		formatDorksList(os.Stdout, filterDorks(dorks, model.Pool(pool), limit))
		return nil
	},
}

// -- dorks seed --

var dorksSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Add seed dorks that are not yet stored",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			file = cfg.Dork.SeedFile
		}
		seeds, err := dork.LoadSeeds(file)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stored, err := st.LoadDorks(ctx)
		if err != nil {
			return eris.Wrap(err, "dorks seed")
		}
		merged, added := dork.MergeSeeds(stored, seeds)
		if added > 0 {
			if err := st.SaveDorks(ctx, merged[len(merged)-added:]); err != nil {
				return eris.Wrap(err, "dorks seed")
			}
		}
		fmt.Fprintf(os.Stdout, "%d seeds read, %d new dorks stored, %d total\n", len(seeds), added, len(merged))
		return nil
	},
}

func init() {
	dorksListCmd.Flags().String("pool", "", "filter by pool (core, explore)")
	dorksListCmd.Flags().Int("limit", 50, "max number of dorks to display")
	dorksSeedCmd.Flags().String("file", "", "seed YAML file (default from config, else the built-in seeds)")

	dorksCmd.AddCommand(dorksListCmd)
	dorksCmd.AddCommand(dorksSeedCmd)
	rootCmd.AddCommand(dorksCmd)
}

// filterDorks keeps dorks of pool (all when empty), best score first.
func filterDorks(dorks []model.Dork, pool model.Pool, limit int) []model.Dork {
	out := make([]model.Dork, 0, len(dorks))
	for _, d := range dorks {
		if pool == "" || d.Pool == pool {
			out = append(out, d)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Dork) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return b.QueriesTotal - a.QueriesTotal
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// formatDorksList writes a tabular list of dorks to out.
func formatDorksList(out io.Writer, dorks []model.Dork) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "POOL\tSCORE\tQUERIES\tFOUND\tACCEPTED\tSOURCE\tINDUSTRY\tLAST USED\tDORK")
	for _, d := range dorks {
		lastUsed := "-"
		if !d.LastUsedAt.IsZero() {
			lastUsed = d.LastUsedAt.Format("2006-01-02 15:04")
		}
		_, _ = fmt.Fprintf(w, "%s\t%.2f\t%d\t%d\t%d\t%s\t%s\t%s\t%s\n",
			d.Pool, d.Score, d.QueriesTotal, d.LeadsFound, d.AcceptedLeads,
			dash(d.SourceHint), dash(d.Industry), lastUsed, d.Text)
	}
	_ = w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
