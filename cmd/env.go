package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-scout/internal/config"
	"github.com/sells-group/lead-scout/internal/dedup"
	"github.com/sells-group/lead-scout/internal/fetcher"
	"github.com/sells-group/lead-scout/internal/metrics"
	"github.com/sells-group/lead-scout/internal/pipeline"
	"github.com/sells-group/lead-scout/internal/resilience"
	"github.com/sells-group/lead-scout/internal/search"
	"github.com/sells-group/lead-scout/internal/store"
	"github.com/sells-group/lead-scout/internal/wasserfall"
)

// initStore opens the configured backend and applies the schema.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initModes restores the Wasserfall state from st.
func initModes(ctx context.Context, st store.Store) (*wasserfall.Manager, error) {
	modes := wasserfall.NewManager(cfg.Wasserfall, st)
	if err := modes.Load(ctx); err != nil {
		return nil, err
	}
	return modes, nil
}

// httpOptions maps the fetch section onto the HTTP fetcher options.
func httpOptions(c config.FetchConfig) fetcher.HTTPOptions {
	return fetcher.HTTPOptions{
		UserAgent: c.UserAgent,
		Timeout:   c.Timeout(),
		Retry: resilience.RetryConfig{
			MaxAttempts:    c.MaxRetries + 1,
			InitialBackoff: time.Duration(c.InitialBackoffMs) * time.Millisecond,
			MaxBackoff:     time.Duration(c.MaxBackoffMs) * time.Millisecond,
		},
		MaxBodyBytes:        c.MaxBodyBytes,
		AllowedContentTypes: c.AllowedContentTypes,
		AllowInsecureTLS:    c.AllowInsecureTLS,
	}
}

// engineEnv holds everything a discovery run needs. The penalty tracker,
// rate limiter and dedup store live as long as the process so loop mode
// keeps their state between runs.
type engineEnv struct {
	Store      store.Store
	Modes      *wasserfall.Manager
	Dedup      *dedup.Store
	Penalties  *resilience.HostPenaltyTracker
	Collectors *metrics.Collectors
	Runner     *pipeline.Runner
}

// Close releases the store.
func (e *engineEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEngine validates the config and wires store, fetcher, search chain,
// mode manager and runner. Callers should defer env.Close().
func initEngine(ctx context.Context, reg prometheus.Registerer) (*engineEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	modes, err := initModes(ctx, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	penalties := resilience.NewHostPenaltyTracker(cfg.Penalty.Tracker())
	limiter := fetcher.NewRateLimiter(cfg.Concurrency.Global, cfg.Concurrency.PerHost)
	f := fetcher.NewHTTPFetcher(httpOptions(cfg.Fetch), limiter, penalties)

	cache := dedup.New(dedup.FromConfig(cfg.Dedup))
	engines := search.BuildEngines(cfg, f)
	orch := search.NewOrchestrator(engines, penalties, cache, search.OptionsFromConfig(cfg.Search))

	var collectors *metrics.Collectors
	if reg != nil {
		collectors = metrics.NewCollectors(reg)
	}

	runner := pipeline.New(cfg, st, orch, f, modes,
		pipeline.WithDedup(cache),
		pipeline.WithPenalties(penalties),
		pipeline.WithCollectors(collectors),
	)

	zap.L().Info("engine ready",
		zap.Strings("engines", orch.Engines()),
		zap.String("mode", modes.Current().Name),
		zap.String("store", cfg.Store.Driver),
	)

	return &engineEnv{
		Store:      st,
		Modes:      modes,
		Dedup:      cache,
		Penalties:  penalties,
		Collectors: collectors,
		Runner:     runner,
	}, nil
}
