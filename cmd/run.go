package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-scout/internal/config"
	"github.com/sells-group/lead-scout/internal/model"
	"github.com/sells-group/lead-scout/internal/monitoring"
	"github.com/sells-group/lead-scout/internal/pipeline"
)

var (
	runOnce         bool
	runIndustry     string
	runQueries      int
	runDateRestrict string
	runMode         string
	runDryRun       bool
	runDeadline     time.Duration
	runLoopInterval time.Duration
	runJSON         bool
	runMetricsAddr  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run lead discovery once or in a loop",
	Long: "Runs discovery cycles: selects dorks for the current Wasserfall mode, searches, " +
		"fetches, validates and scores pages and persists accepted leads. Without --once the " +
		"command repeats every --loop-interval until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyRunFlags(cmd, &cfg.Run)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var reg prometheus.Registerer
		if runMetricsAddr != "" {
			reg = prometheus.DefaultRegisterer
		}
		env, err := initEngine(ctx, reg)
		if err != nil {
			return err
		}
		defer env.Close()

		if runMetricsAddr != "" {
			h := newRouter(prometheus.DefaultGatherer, env.Store, cfg.Monitoring, cfg.Wasserfall.Initial)
			go func() {
				if err := serveHTTP(ctx, runMetricsAddr, h); err != nil {
					zap.L().Error("metrics server stopped", zap.Error(err))
				}
			}()
		}

		params := pipeline.ParamsFromConfig(cfg.Run)
		if runDeadline > 0 {
			params.Deadline = runDeadline
		}

		if runOnce {
			summary, err := env.Runner.Run(ctx, params)
			if err != nil {
				return err
			}
			if err := printSummary(os.Stdout, summary, runJSON); err != nil {
				return err
			}
			if summary.Status == model.RunStatusFailed {
				return errRunFailed
			}
			return nil
		}

		interval := runLoopInterval
		if interval <= 0 {
			interval = time.Duration(cfg.Run.LoopIntervalMins) * time.Minute
		}
		go env.Dedup.RunSweeper(ctx, time.Duration(cfg.Dedup.SweepIntervalMins)*time.Minute)
		if cfg.Monitoring.WebhookURL != "" {
			checker := monitoring.NewChecker(monitoring.NewCollector(env.Store), monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			go checker.Run(ctx)
		}
		return runLoop(ctx, env.Runner, params, interval, os.Stdout)
	},
}

func init() {
	f := runCmd.Flags()
	f.BoolVar(&runOnce, "once", false, "run a single cycle and exit")
	f.StringVar(&runIndustry, "industry", "", "restrict dorks and industry scoring to one industry")
	f.IntVar(&runQueries, "queries-per-industry", 0, "cap the number of queries per run (0 = mode default)")
	f.StringVar(&runDateRestrict, "date-restrict", "", "search date restriction, e.g. d7 or m1")
	f.StringVar(&runMode, "mode", "", "operating mode: standard, candidates or talent_hunt")
	f.BoolVar(&runDryRun, "dry-run", false, "run without writing leads, dork stats or mode state")
	f.DurationVar(&runDeadline, "deadline", 0, "stop starting new work after this long (default from config)")
	f.DurationVar(&runLoopInterval, "loop-interval", 0, "pause between cycles in loop mode (default from config)")
	f.BoolVar(&runJSON, "json", false, "print run summaries as JSON")
	f.StringVar(&runMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	rootCmd.AddCommand(runCmd)
}

// applyRunFlags overrides the run section with flags the user set.
func applyRunFlags(cmd *cobra.Command, rc *config.RunConfig) {
	f := cmd.Flags()
	if f.Changed("industry") {
		rc.Industry = runIndustry
	}
	if f.Changed("queries-per-industry") {
		rc.QueriesPerIndustry = runQueries
	}
	if f.Changed("date-restrict") {
		rc.DateRestrict = runDateRestrict
	}
	if f.Changed("mode") {
		rc.Mode = runMode
	}
	if f.Changed("dry-run") {
		rc.DryRun = runDryRun
	}
}

// runner is the part of pipeline.Runner the loop drives.
type runner interface {
	Run(ctx context.Context, p pipeline.Params) (*model.RunSummary, error)
}

// runLoop runs cycles until ctx is cancelled. A failed cycle is logged
// and the loop continues.
func runLoop(ctx context.Context, r runner, params pipeline.Params, interval time.Duration, out io.Writer) error {
	log := zap.L().With(zap.String("component", "loop"))
	log.Info("loop mode started", zap.Duration("interval", interval))
	for cycle := 1; ; cycle++ {
		summary, err := r.Run(ctx, params)
		switch {
		case err != nil:
			log.Error("run failed", zap.Int("cycle", cycle), zap.Error(err))
		default:
			if perr := printSummary(out, summary, runJSON); perr != nil {
				log.Warn("print summary failed", zap.Error(perr))
			}
		}

		if ctx.Err() != nil {
			log.Info("loop mode stopped", zap.Int("cycles", cycle))
			return nil
		}
		if interval <= 0 {
			interval = time.Minute
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("loop mode stopped", zap.Int("cycles", cycle))
			return nil
		case <-timer.C:
		}
	}
}

func printSummary(w io.Writer, s *model.RunSummary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	formatSummary(w, s)
	return nil
}

// formatSummary writes a human-readable run summary to w.
func formatSummary(out io.Writer, s *model.RunSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "RUN\t%s\n", s.RunID)
	_, _ = fmt.Fprintf(w, "STATUS\t%s\n", s.Status)
	mode := s.Mode
	if s.DryRun {
		mode += " (dry run)"
	}
	_, _ = fmt.Fprintf(w, "MODE\t%s\n", mode)
	_, _ = fmt.Fprintf(w, "QUERIES\t%d (%d failed)\n", s.QueriesRun, s.QueriesFailed)
	_, _ = fmt.Fprintf(w, "URLS FETCHED\t%d\n", s.URLsFetched)
	_, _ = fmt.Fprintf(w, "LEADS FOUND\t%d\n", s.LeadsFound)
	_, _ = fmt.Fprintf(w, "LEADS ACCEPTED\t%d\n", s.LeadsAccepted)
	_, _ = fmt.Fprintf(w, "EST. COST\t$%.3f\n", s.EstimatedCostUSD)
	_, _ = fmt.Fprintf(w, "DURATION\t%s\n", s.Duration.Round(time.Second))
	if s.ModeTransition != nil {
		_, _ = fmt.Fprintf(w, "MODE CHANGE\t%s -> %s (%s)\n",
			s.ModeTransition.FromMode, s.ModeTransition.ToMode, s.ModeTransition.Reason)
	}
	_ = w.Flush()

	if len(s.RejectionsByReason) == 0 {
		return
	}
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "\nREJECTION\tCOUNT")
	for _, reason := range slices.Sorted(maps.Keys(s.RejectionsByReason)) {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", reason, s.RejectionsByReason[reason])
	}
	_ = w.Flush()
}
