package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-scout/internal/monitoring"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show trailing-run health and the alerts it would raise",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		lookback, _ := cmd.Flags().GetInt("lookback")
		if lookback <= 0 {
			lookback = cfg.Monitoring.LookbackRuns
		}
		snap, err := monitoring.NewCollector(st).Collect(ctx, lookback)
		if err != nil {
			return err
		}
		alerter := monitoring.NewAlerter(cfg.Monitoring)
		alerts := alerter.Evaluate(snap)

		if notify, _ := cmd.Flags().GetBool("notify"); notify && len(alerts) > 0 {
			sent := alerter.SendAlerts(ctx, alerts)
			zap.L().Info("alerts sent", zap.Int("sent", sent), zap.Int("triggered", len(alerts)))
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(statusReport{Snapshot: snap, Alerts: alerts})
		}
		formatStatus(os.Stdout, snap, alerts)
		return nil
	},
}

func init() {
	statusCmd.Flags().Int("lookback", 0, "number of recent runs to evaluate (default from config)")
	statusCmd.Flags().Bool("notify", false, "send triggered alerts to the configured webhook")
	statusCmd.Flags().Bool("json", false, "print the snapshot and alerts as JSON")
	rootCmd.AddCommand(statusCmd)
}

// formatStatus writes a snapshot and its alerts to out.
func formatStatus(out io.Writer, s *monitoring.MetricsSnapshot, alerts []monitoring.Alert) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "RUNS\t%d (%d success, %d partial, %d failed)\n", s.Runs, s.RunsSuccess, s.RunsPartial, s.RunsFailed)
	_, _ = fmt.Fprintf(w, "URLS FETCHED\t%d\n", s.URLsFetched)
	_, _ = fmt.Fprintf(w, "LEADS\t%d found, %d accepted\n", s.LeadsFound, s.LeadsAccepted)
	_, _ = fmt.Fprintf(w, "PHONE FIND RATE\t%.1f%%\n", s.PhoneFindRate*100)
	_, _ = fmt.Fprintf(w, "ERROR RATE\t%.1f%%\n", s.ErrorRate*100)
	_, _ = fmt.Fprintf(w, "ACCEPTANCE RATE\t%.1f%%\n", s.AcceptanceRate*100)
	_, _ = fmt.Fprintf(w, "SPEND (24H)\t$%.2f\n", s.SpendUSD)
	_, _ = fmt.Fprintf(w, "DROPPED URLS (24H)\t%d\n", s.DroppedURLs)
	_ = w.Flush()

	if len(alerts) == 0 {
		_, _ = fmt.Fprintln(out, "\nNo alerts.")
		return
	}
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "\nALERT\tSEVERITY\tMESSAGE")
	for _, a := range alerts {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", a.Type, a.Severity, a.Message)
	}
	_ = w.Flush()
}
