package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-scout/internal/config"
	"github.com/sells-group/lead-scout/internal/model"
	"github.com/sells-group/lead-scout/internal/monitoring"
	"github.com/sells-group/lead-scout/internal/store"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Serve Prometheus metrics, run status and the Wasserfall state over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		collector := monitoring.NewCollector(st)
		if cfg.Monitoring.WebhookURL != "" {
			checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			go checker.Run(ctx)
		}

		addr := serveAddr
		if addr == "" {
			addr = cfg.Server.MetricsAddr
		}
		return serveHTTP(ctx, addr, newRouter(prometheus.DefaultGatherer, st, cfg.Monitoring, cfg.Wasserfall.Initial))
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config server.metrics_addr)")
	rootCmd.AddCommand(serveCmd)
}

// statusSource is the read side of the store the HTTP handlers need.
type statusSource interface {
	monitoring.RunSource
	LoadModeState(ctx context.Context) (*model.ModeState, error)
}

var _ statusSource = (store.Store)(nil)

// newRouter exposes /metrics, /healthz, /status and /mode.
func newRouter(g prometheus.Gatherer, st statusSource, mon config.MonitoringConfig, initialMode string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	collector := monitoring.NewCollector(st)
	alerter := monitoring.NewAlerter(mon)
	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		snap, err := collector.Collect(req.Context(), mon.LookbackRuns)
		if err != nil {
			zap.L().Error("serve: collect status", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "status unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, statusReport{Snapshot: snap, Alerts: alerter.Evaluate(snap)})
	})

	r.Get("/mode", func(w http.ResponseWriter, req *http.Request) {
		state, err := st.LoadModeState(req.Context())
		if err != nil {
			zap.L().Error("serve: load mode state", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "mode unavailable"})
			return
		}
		if state == nil {
			state = &model.ModeState{Current: initialMode}
		}
		writeJSON(w, http.StatusOK, state)
	})

	return r
}

// statusReport is the body of /status and the output of `status --json`.
type statusReport struct {
	Snapshot *monitoring.MetricsSnapshot `json:"snapshot"`
	Alerts   []monitoring.Alert          `json:"alerts"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// serveHTTP serves h on addr until ctx is cancelled.
func serveHTTP(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down metrics server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting metrics server", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	return nil
}
