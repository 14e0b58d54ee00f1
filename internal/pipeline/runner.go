// Package pipeline runs one discovery cycle: pick dorks for the current
// Wasserfall mode, search, fetch, extract, validate, score, deduplicate and
// persist leads, then feed the outcome back into the selector and the mode
// manager.
package pipeline

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/lead-scout/internal/config"
	"github.com/sells-group/lead-scout/internal/cost"
	"github.com/sells-group/lead-scout/internal/dedup"
	"github.com/sells-group/lead-scout/internal/dork"
	"github.com/sells-group/lead-scout/internal/extract"
	"github.com/sells-group/lead-scout/internal/fetcher"
	"github.com/sells-group/lead-scout/internal/metrics"
	"github.com/sells-group/lead-scout/internal/model"
	"github.com/sells-group/lead-scout/internal/resilience"
	"github.com/sells-group/lead-scout/internal/scorer"
	"github.com/sells-group/lead-scout/internal/search"
	"github.com/sells-group/lead-scout/internal/store"
	"github.com/sells-group/lead-scout/internal/validate"
	"github.com/sells-group/lead-scout/internal/wasserfall"
)

// Store is the persistence the runner needs.
type Store interface {
	store.LeadRepository
	metrics.Backend
	LoadDorks(ctx context.Context) ([]model.Dork, error)
}

// Searcher executes one query across the engine chain.
type Searcher interface {
	Search(ctx context.Context, q search.Query) (*search.Outcome, error)
}

// Params are the per-run knobs. CLI flags override the config values.
type Params struct {
	Industry           string
	QueriesPerIndustry int
	DateRestrict       string
	Mode               model.OperatingMode
	DryRun             bool
	Deadline           time.Duration
	QuerySleep         time.Duration
	QueryJitter        time.Duration
	RequireCandidate   bool
	SourceAllowList    []string
}

// ParamsFromConfig builds Params from the run config section.
func ParamsFromConfig(c config.RunConfig) Params {
	return Params{
		Industry:           c.Industry,
		QueriesPerIndustry: c.QueriesPerIndustry,
		DateRestrict:       c.DateRestrict,
		Mode:               model.OperatingMode(c.Mode),
		DryRun:             c.DryRun,
		Deadline:           time.Duration(c.DeadlineMins) * time.Minute,
		QuerySleep:         time.Duration(c.QuerySleepMs) * time.Millisecond,
		QueryJitter:        time.Duration(c.QueryJitterMs) * time.Millisecond,
		RequireCandidate:   c.RequireCandidate,
		SourceAllowList:    c.SourceAllowList,
	}
}

// Runner executes discovery runs. A Runner is not safe for concurrent
// Run calls; loop mode calls Run sequentially.
type Runner struct {
	cfg        *config.Config
	store      Store
	searcher   Searcher
	fetcher    fetcher.Fetcher
	extractor  extract.Extractor
	validator  *validate.Validator
	scorer     *scorer.Engine
	selector   *dork.Selector
	modes      *wasserfall.Manager
	dedup      *dedup.Store
	penalties  *resilience.HostPenaltyTracker
	costs      *cost.Calculator
	collectors *metrics.Collectors
	rng        *rand.Rand
	now        func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithExtractor replaces the goquery extractor.
func WithExtractor(e extract.Extractor) Option {
	return func(r *Runner) { r.extractor = e }
}

// WithDedup shares a dedup store, typically the one backing the search
// cache so loop mode keeps its state between runs.
func WithDedup(d *dedup.Store) Option {
	return func(r *Runner) { r.dedup = d }
}

// WithPenalties shares the host penalty tracker for gauge reporting.
func WithPenalties(p *resilience.HostPenaltyTracker) Option {
	return func(r *Runner) { r.penalties = p }
}

// WithCollectors mirrors run metrics into Prometheus collectors.
func WithCollectors(c *metrics.Collectors) Option {
	return func(r *Runner) { r.collectors = c }
}

// WithRand makes dork selection reproducible.
func WithRand(rng *rand.Rand) Option {
	return func(r *Runner) { r.rng = rng }
}

// WithNow overrides the clock.
func WithNow(fn func() time.Time) Option {
	return func(r *Runner) { r.now = fn }
}

// New creates a Runner with all dependencies.
func New(cfg *config.Config, st Store, searcher Searcher, f fetcher.Fetcher, modes *wasserfall.Manager, opts ...Option) *Runner {
	r := &Runner{
		cfg:       cfg,
		store:     st,
		searcher:  searcher,
		fetcher:   f,
		extractor: extract.New(),
		validator: validate.New(cfg.Validation),
		scorer:    scorer.New(cfg.Scoring, cfg.Industries),
		modes:     modes,
		costs:     cost.NewCalculator(cost.RatesFromConfig(cfg.Pricing)),
		now:       time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	if r.dedup == nil {
		r.dedup = dedup.New(dedup.FromConfig(cfg.Dedup), dedup.WithNow(r.now))
	}
	if r.rng == nil && cfg.Dork.Seed != 0 {
		r.rng = rand.New(rand.NewPCG(uint64(cfg.Dork.Seed), 0)) //nolint:gosec
	}
	r.selector = dork.NewSelector(cfg.Dork, r.rng)
	return r
}

// Run executes one discovery run. Setup failures are returned as errors;
// failures of individual queries only affect the run status.
func (r *Runner) Run(ctx context.Context, p Params) (*model.RunSummary, error) {
	start := r.now()
	mode := r.modes.Current()
	r.collectors.SetMode(mode.Name)

	runID := uuid.NewString()
	if !p.DryRun {
		id, err := r.store.StartRun(ctx, mode.Name, start)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: start run")
		}
		runID = id
	}
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("run_id", runID), zap.String("mode", mode.Name))

	dorks, err := r.loadDorks(ctx)
	if err != nil {
		if !p.DryRun {
			r.abortRun(ctx, runID, mode.Name, start, log)
		}
		return nil, err
	}
	r.selector.Repool(dorks)
	selections := r.selector.Select(dorks, dork.SelectParams{
		SlotMin:     mode.DorkSlotMin,
		SlotMax:     mode.DorkSlotMax,
		ExploreRate: mode.ExploreRate,
		Limit:       p.QueriesPerIndustry,
		Industry:    p.Industry,
	})
	log.Info("pipeline: run started",
		zap.Int("queries", len(selections)),
		zap.Int("dorks", len(dorks)),
		zap.Bool("dry_run", p.DryRun),
	)

	runCtx := ctx
	if p.Deadline > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.Deadline)
		defer cancel()
	}

	ms := metrics.NewStore(runID, mode.Name, metrics.WithCollectors(r.collectors), metrics.WithNow(r.now))
	pace := r.pacer(mode, p)
	ran := 0
	for i, sel := range selections {
		if runCtx.Err() != nil {
			log.Warn("pipeline: deadline reached, no new queries", zap.Int("skipped", len(selections)-i))
			break
		}
		if i > 0 {
			if err := r.wait(runCtx, pace, p.QueryJitter); err != nil {
				log.Warn("pipeline: deadline reached while pacing", zap.Int("skipped", len(selections)-i))
				break
			}
		}

		done, err := r.queryDone(runCtx, sel.Dork.Text, p.DryRun)
		if err != nil {
			log.Warn("pipeline: query-done lookup failed", zap.String("query", sel.Dork.Text), zap.Error(err))
		}
		if done {
			log.Debug("pipeline: query already done, skipping", zap.String("query", sel.Dork.Text))
			continue
		}

		qo := r.runQuery(runCtx, runID, sel, p)
		if runCtx.Err() != nil && qo.Dork.Failed {
			// Abandoned by the deadline; not a query failure.
			break
		}
		ms.MergeQuery(qo)
		ran++
		if !qo.Dork.Failed {
			r.selector.Record(&dorks[sel.Index], qo.Dork.LeadsFound, qo.Dork.AcceptedLeads, r.now())
			r.markQueryDone(ctx, sel.Dork.Text, p.DryRun, log)
		}
	}

	ms.SetCost(r.costs.Run(ms.EngineQueries()))
	r.selector.Repool(dorks)

	// Flush completed work even when the caller's context is cancelled.
	flushCtx := context.WithoutCancel(ctx)
	var transition *model.ModeTransition
	var flushErr error
	m := ms.RunMetrics()
	if !p.DryRun {
		transition = r.modes.Evaluate(ms.Sample())
		if err := r.modes.Save(flushCtx, transition); err != nil {
			log.Error("pipeline: save mode state failed", zap.Error(err))
		}
		m, flushErr = ms.Flush(flushCtx, r.store, dorks)
		if flushErr != nil {
			log.Error("pipeline: metrics flush incomplete", zap.Error(flushErr))
		}
	}
	r.collectors.SetMode(r.modes.Current().Name)
	if r.penalties != nil {
		r.collectors.SetPenalizedHosts(len(r.penalties.Penalized()))
	}

	summary := &model.RunSummary{
		RunID:              runID,
		Status:             m.Status,
		Mode:               mode.Name,
		DryRun:             p.DryRun,
		QueriesRun:         m.QueriesTotal,
		QueriesFailed:      m.QueriesFailed,
		URLsFetched:        m.URLsFetched,
		LeadsFound:         m.LeadsFound,
		LeadsAccepted:      m.AcceptedLeads,
		RejectionsByReason: ms.Rejections(),
		ModeTransition:     transition,
		EstimatedCostUSD:   m.CostUSD,
		Duration:           r.now().Sub(start),
	}
	log.Info("pipeline: run complete",
		zap.String("status", string(summary.Status)),
		zap.Int("queries", ran),
		zap.Int("leads_found", summary.LeadsFound),
		zap.Int("leads_accepted", summary.LeadsAccepted),
		zap.Float64("cost_usd", summary.EstimatedCostUSD),
		zap.Int("panics", ms.Panics()),
	)
	return summary, nil
}

// loadDorks returns the stored dorks with any new seeds merged in.
func (r *Runner) loadDorks(ctx context.Context) ([]model.Dork, error) {
	dorks, err := r.store.LoadDorks(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load dorks")
	}
	seeds, err := dork.LoadSeeds(r.cfg.Dork.SeedFile)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load seeds")
	}
	dorks, added := dork.MergeSeeds(dorks, seeds)
	if added > 0 {
		zap.L().Debug("pipeline: merged new seeds", zap.Int("added", added))
	}
	return dorks, nil
}

// abortRun closes a started run as failed so it does not stay running.
func (r *Runner) abortRun(ctx context.Context, runID, mode string, start time.Time, log *zap.Logger) {
	m := model.RunMetrics{
		RunID:      runID,
		Mode:       mode,
		StartedAt:  start,
		FinishedAt: r.now(),
		Status:     model.RunStatusFailed,
	}
	if err := r.store.FinishRun(context.WithoutCancel(ctx), m); err != nil {
		log.Error("pipeline: finish aborted run failed", zap.Error(err))
	}
}

// pacer limits query starts to the mode's rate, or to the configured
// minimum sleep when that is slower. A zero rate disables pacing.
func (r *Runner) pacer(mode model.Mode, p Params) *rate.Limiter {
	var interval time.Duration
	if mode.RatePerMinute > 0 {
		interval = time.Minute / time.Duration(mode.RatePerMinute)
	}
	interval = max(interval, p.QuerySleep)
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

func (r *Runner) wait(ctx context.Context, pace *rate.Limiter, jitter time.Duration) error {
	if err := pace.Wait(ctx); err != nil {
		return err
	}
	if jitter <= 0 {
		return nil
	}
	return resilience.Sleep(ctx, resilience.Jitter(0, jitter))
}

func (r *Runner) queryDone(ctx context.Context, query string, dryRun bool) (bool, error) {
	key := search.NormalizeQuery(query)
	if r.dedup.Seen(dedup.NSQueryDone, key) {
		return true, nil
	}
	if dryRun {
		return false, nil
	}
	return r.store.IsQueryDone(ctx, key)
}

func (r *Runner) markQueryDone(ctx context.Context, query string, dryRun bool, log *zap.Logger) {
	key := search.NormalizeQuery(query)
	r.dedup.Mark(dedup.NSQueryDone, key)
	if dryRun {
		return
	}
	if err := r.store.MarkQueryDone(context.WithoutCancel(ctx), key, r.dedup.QueryDoneTTL()); err != nil {
		log.Warn("pipeline: mark query done failed", zap.String("query", query), zap.Error(err))
	}
}
