package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-scout/internal/model"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect discovery run history",
	Long:  "Commands for listing and summarizing discovery runs and per-host statistics.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent discovery runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.RecentRuns(ctx, limit)
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

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		runs, err := st.RecentRuns(ctx, 10000) // high limit for stats
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		var cutoff time.Time
		if since > 0 {
			cutoff = time.Now().Add(-since)
		}
		formatRunStats(os.Stdout, computeRunStats(runs, cutoff))
		return nil
	},
}

// -- runs hosts --

var runsHostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "Show cumulative per-host fetch statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		hosts, err := st.HostStats(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "runs hosts")
		}
		formatHostStats(os.Stdout, hosts)
		return nil
	},
}

// -- leads --

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Print the most recently found leads as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		leads, err := st.ListLeads(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "leads")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(leads)
	},
}

func init() {
	runsListCmd.Flags().Int("limit", 20, "max number of runs to display")
	runsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h)")
	runsHostsCmd.Flags().Int("limit", 50, "max number of hosts to display")
	leadsCmd.Flags().Int("limit", 100, "max number of leads to print")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsStatsCmd)
	runsCmd.AddCommand(runsHostsCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(leadsCmd)
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total       int
	Success     int
	Partial     int
	Failed      int
	Other       int
	URLsFetched int
	LeadsFound  int
	Accepted    int
	CostUSD     float64
	AvgDurSecs  float64
}

// computeRunStats aggregates runs started at or after cutoff.
func computeRunStats(runs []model.RunMetrics, cutoff time.Time) runStats {
	var s runStats

	var totalDur time.Duration
	var durCount int

	for _, r := range runs {
		if r.StartedAt.Before(cutoff) {
			continue
		}
		s.Total++
		switch r.Status {
		case model.RunStatusSuccess:
			s.Success++
		case model.RunStatusPartial:
			s.Partial++
		case model.RunStatusFailed:
			s.Failed++
		default:
			s.Other++
		}
		s.URLsFetched += r.URLsFetched
		s.LeadsFound += r.LeadsFound
		s.Accepted += r.AcceptedLeads
		s.CostUSD += r.CostUSD
		if !r.FinishedAt.IsZero() {
			totalDur += r.FinishedAt.Sub(r.StartedAt)
			durCount++
		}
	}

	if durCount > 0 {
		s.AvgDurSecs = totalDur.Seconds() / float64(durCount)
	}
	return s
}

// formatRunsList writes a tabular list of runs to out.
func formatRunsList(out io.Writer, runs []model.RunMetrics) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTARTED\tMODE\tSTATUS\tQUERIES\tFETCHED\tFOUND\tACCEPTED\tCOST\tDURATION")
	for _, r := range runs {
		id := r.RunID
		if len(id) > 8 {
			id = id[:8]
		}
		dur := "-"
		if !r.FinishedAt.IsZero() {
			dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%d\t%d\t%d\t$%.3f\t%s\n",
			id,
			r.StartedAt.Format("2006-01-02 15:04"),
			r.Mode,
			r.Status,
			r.QueriesTotal-r.QueriesFailed, r.QueriesTotal,
			r.URLsFetched,
			r.LeadsFound,
			r.AcceptedLeads,
			r.CostUSD,
			dur,
		)
	}
	_ = w.Flush()
}

// formatRunStats writes aggregate run statistics to out.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Success:\t%d\n", s.Success)
	_, _ = fmt.Fprintf(w, "Partial:\t%d\n", s.Partial)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	if s.Other > 0 {
		_, _ = fmt.Fprintf(w, "Other:\t%d\n", s.Other)
	}
	_, _ = fmt.Fprintf(w, "URLs fetched:\t%d\n", s.URLsFetched)
	_, _ = fmt.Fprintf(w, "Leads found:\t%d\n", s.LeadsFound)
	_, _ = fmt.Fprintf(w, "Leads accepted:\t%d\n", s.Accepted)
	_, _ = fmt.Fprintf(w, "Search spend:\t$%.2f\n", s.CostUSD)
	if s.AvgDurSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
	}
	_ = w.Flush()
}

// formatHostStats writes per-host counters to out.
func formatHostStats(out io.Writer, hosts []model.HostStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "HOST\tREQUESTS\tFAILURES\tRATE LIMITED\tLEADS")
	for _, h := range hosts {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", h.Host, h.Requests, h.Failures, h.RateLimited, h.LeadsFound)
	}
	_ = w.Flush()
}
