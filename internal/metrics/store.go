package metrics

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-scout/internal/model"
	"github.com/sells-group/lead-scout/internal/resilience"
)

// Fetch outcome label for successful fetches. Failures use the
// resilience Kind constants.
const FetchOK = "ok"

// Backend persists the flushed metrics of a run.
type Backend interface {
	SaveDorks(ctx context.Context, dorks []model.Dork) error
	IncrementHostStats(ctx context.Context, stats []model.HostStats) error
	FinishRun(ctx context.Context, m model.RunMetrics) error
	SaveDroppedURLs(ctx context.Context, runID string, dropped []resilience.DroppedURL) error
}

// QueryOutcome is everything one query produced. Workers build it
// privately; the runner merges it after they join.
type QueryOutcome struct {
	Dork        model.DorkOutcome
	Fired       []string
	RateLimited []string
	Cached      bool
	Hosts       map[string]*model.HostStats
	Fetches     map[string]int
	Accepted    int
	Rejections  map[string]int
	Dropped     []resilience.DroppedURL
	Panics      int
}

// NewQueryOutcome returns an empty outcome for query.
func NewQueryOutcome(query, source string) *QueryOutcome {
	return &QueryOutcome{
		Dork:       model.DorkOutcome{Query: query, Source: source},
		Hosts:      make(map[string]*model.HostStats),
		Fetches:    make(map[string]int),
		Rejections: make(map[string]int),
	}
}

// Host returns the stats entry for host, creating it on first use.
func (q *QueryOutcome) Host(host string) *model.HostStats {
	hs, ok := q.Hosts[host]
	if !ok {
		hs = &model.HostStats{Host: host}
		q.Hosts[host] = hs
	}
	return hs
}

// Reject counts a rejection reason.
func (q *QueryOutcome) Reject(reason string) {
	q.Rejections[reason]++
}

// Store accumulates the metrics of one run. It is not safe for concurrent
// use: only the runner merges into it.
type Store struct {
	run        model.RunMetrics
	dorks      []model.DorkOutcome
	hosts      map[string]*model.HostStats
	rejections map[string]int
	engines    map[string]int
	dropped    []resilience.DroppedURL
	panics     int

	collectors *Collectors
	now        func() time.Time
	log        *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithCollectors mirrors merged counters into Prometheus collectors.
func WithCollectors(c *Collectors) Option {
	return func(s *Store) { s.collectors = c }
}

// WithNow overrides the clock.
func WithNow(fn func() time.Time) Option {
	return func(s *Store) { s.now = fn }
}

// NewStore starts accumulating metrics for a run.
func NewStore(runID, mode string, opts ...Option) *Store {
	s := &Store{
		hosts:      make(map[string]*model.HostStats),
		rejections: make(map[string]int),
		engines:    make(map[string]int),
		now:        time.Now,
		log:        zap.L().With(zap.String("component", "metrics"), zap.String("run_id", runID)),
	}
	for _, o := range opts {
		o(s)
	}
	s.run = model.RunMetrics{RunID: runID, Mode: mode, StartedAt: s.now(), Status: model.RunStatusRunning}
	return s
}

// MergeQuery folds one query's outcome into the run.
func (s *Store) MergeQuery(q *QueryOutcome) {
	if q == nil {
		return
	}
	d := q.Dork

	s.run.QueriesTotal++
	if d.Failed {
		s.run.QueriesFailed++
	}
	s.run.SerpHits += d.SerpHits
	s.run.URLsFetched += d.URLsFetched
	s.run.FetchErrors += d.FetchErrors
	s.run.LeadsFound += d.LeadsFound
	s.run.LeadsKept += d.LeadsKept
	s.run.AcceptedLeads += d.AcceptedLeads
	s.dorks = append(s.dorks, d)

	for _, name := range slices.Sorted(maps.Keys(q.Hosts)) {
		in := q.Hosts[name]
		hs, ok := s.hosts[name]
		if !ok {
			hs = &model.HostStats{Host: name}
			s.hosts[name] = hs
		}
		hs.Requests += in.Requests
		hs.Failures += in.Failures
		hs.RateLimited += in.RateLimited
		hs.LeadsFound += in.LeadsFound
	}
	for reason, n := range q.Rejections {
		s.rejections[reason] += n
	}
	if !q.Cached {
		for _, e := range q.Fired {
			s.engines[e]++
		}
	}
	for i := range q.Dropped {
		q.Dropped[i].RunID = s.run.RunID
	}
	s.dropped = append(s.dropped, q.Dropped...)
	s.panics += q.Panics

	s.observe(q)
}

func (s *Store) observe(q *QueryOutcome) {
	c := s.collectors
	if c == nil {
		return
	}
	outcome := "ok"
	switch {
	case q.Dork.Failed:
		outcome = "failed"
	case q.Cached:
		outcome = "cached"
	}
	engines := q.Fired
	if len(engines) == 0 {
		engines = []string{"none"}
	}
	for _, e := range engines {
		o := outcome
		if slices.Contains(q.RateLimited, e) {
			o = "rate_limited"
		}
		c.Queries.WithLabelValues(e, o).Inc()
	}
	c.SerpHits.WithLabelValues(q.Dork.Source).Add(float64(q.Dork.SerpHits))
	for k, n := range q.Fetches {
		c.Fetches.WithLabelValues(k).Add(float64(n))
	}
	if q.Accepted > 0 {
		c.Leads.WithLabelValues("accepted", "").Add(float64(q.Accepted))
	}
	for reason, n := range q.Rejections {
		c.Leads.WithLabelValues("rejected", reason).Add(float64(n))
	}
	if q.Panics > 0 {
		c.Panics.Add(float64(q.Panics))
	}
}

// RunMetrics returns a snapshot of the run counters with the status
// derived from query failures.
func (s *Store) RunMetrics() model.RunMetrics {
	m := s.run
	m.Status = Status(m.QueriesTotal, m.QueriesFailed)
	return m
}

// Status is success when no query failed, partial when some but not all
// failed and failed when none succeeded. A run without queries succeeds.
func Status(total, failed int) model.RunStatus {
	switch {
	case failed == 0:
		return model.RunStatusSuccess
	case failed < total:
		return model.RunStatusPartial
	}
	return model.RunStatusFailed
}

// Sample converts the run into the mode manager's input.
func (s *Store) Sample() model.RunSample {
	m := s.run
	return model.RunSample{
		RunID:         m.RunID,
		PhoneFindRate: m.PhoneFindRate(),
		ErrorRate:     m.ErrorRate(),
		URLsFetched:   m.URLsFetched,
	}
}

// Rejections returns a copy of the rejection counts by reason.
func (s *Store) Rejections() map[string]int {
	return maps.Clone(s.rejections)
}

// DorkOutcomes returns the per-query outcomes in merge order.
func (s *Store) DorkOutcomes() []model.DorkOutcome {
	return slices.Clone(s.dorks)
}

// HostStats returns the per-host counters sorted by host.
func (s *Store) HostStats() []model.HostStats {
	out := make([]model.HostStats, 0, len(s.hosts))
	for _, name := range slices.Sorted(maps.Keys(s.hosts)) {
		out = append(out, *s.hosts[name])
	}
	return out
}

// EngineQueries returns how many uncached queries each engine served.
func (s *Store) EngineQueries() map[string]int {
	return maps.Clone(s.engines)
}

// SetCost records the estimated search spend of the run.
func (s *Store) SetCost(usd float64) {
	s.run.CostUSD = usd
}

// Dropped returns the dropped URLs of the run.
func (s *Store) Dropped() []resilience.DroppedURL {
	return slices.Clone(s.dropped)
}

// Panics returns the number of recovered panics.
func (s *Store) Panics() int {
	return s.panics
}

// Flush finishes the run and writes dorks, host stats, dropped URLs and
// the run row. All writes are attempted; the first error is returned.
func (s *Store) Flush(ctx context.Context, b Backend, dorks []model.Dork) (model.RunMetrics, error) {
	m := s.RunMetrics()
	m.FinishedAt = s.now()
	s.run.FinishedAt = m.FinishedAt
	s.run.Status = m.Status

	if s.collectors != nil {
		s.collectors.RunDuration.Observe(m.FinishedAt.Sub(m.StartedAt).Seconds())
	}

	var first error
	keep := func(err error, msg string) {
		if err == nil {
			return
		}
		s.log.Error("metrics: flush step failed", zap.String("step", msg), zap.Error(err))
		if first == nil {
			first = eris.Wrap(err, "metrics: "+msg)
		}
	}

	if len(dorks) > 0 {
		keep(b.SaveDorks(ctx, dorks), "save dorks")
	}
	if hs := s.HostStats(); len(hs) > 0 {
		keep(b.IncrementHostStats(ctx, hs), "increment host stats")
	}
	if len(s.dropped) > 0 {
		keep(b.SaveDroppedURLs(ctx, m.RunID, s.dropped), "save dropped urls")
	}
	keep(b.FinishRun(ctx, m), "finish run")

	s.log.Info("metrics: run flushed",
		zap.String("status", string(m.Status)),
		zap.Int("queries", m.QueriesTotal),
		zap.Int("urls_fetched", m.URLsFetched),
		zap.Int("leads_found", m.LeadsFound),
		zap.Int("accepted", m.AcceptedLeads),
	)
	return m, first
}
