package search

import (
	"context"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-scout/internal/dedup"
	"github.com/sells-group/lead-scout/internal/model"
	"github.com/sells-group/lead-scout/internal/resilience"
)

// Options configures an Orchestrator.
type Options struct {
	// MinResults below which the next engine fires as well.
	MinResults int
	// MaxResults caps the merged, ranked result list. Zero means no cap.
	MaxResults    int
	PositiveHints []string
	NegativeHints []string
}

// Outcome is the result of one orchestrated query.
type Outcome struct {
	Results []model.SearchResult
	// Fired lists the engines that were called, in order.
	Fired []string
	// RateLimited lists engines that answered with a rate limit.
	RateLimited []string
	// Raw is the number of results before dedup.
	Raw    int
	Cached bool
}

// Orchestrator executes queries across the engine chain.
type Orchestrator struct {
	engines    []Engine
	penalties  *resilience.HostPenaltyTracker
	cache      *dedup.Store
	ranker     *Ranker
	minResults int
	maxResults int
}

// NewOrchestrator creates an Orchestrator. engines are in chain order;
// last-resort engines are moved to the end. cache may be nil.
func NewOrchestrator(engines []Engine, penalties *resilience.HostPenaltyTracker, cache *dedup.Store, opts Options) *Orchestrator {
	if penalties == nil {
		penalties = resilience.NewHostPenaltyTracker(resilience.DefaultPenaltyConfig())
	}
	if opts.MinResults <= 0 {
		opts.MinResults = 5
	}
	ordered := make([]Engine, 0, len(engines))
	var last []Engine
	for _, e := range engines {
		if isLastResort(e) {
			last = append(last, e)
			continue
		}
		ordered = append(ordered, e)
	}
	return &Orchestrator{
		engines:    append(ordered, last...),
		penalties:  penalties,
		cache:      cache,
		ranker:     NewRanker(opts.PositiveHints, opts.NegativeHints),
		minResults: opts.MinResults,
		maxResults: opts.MaxResults,
	}
}

// Engines returns the engine names in chain order.
func (o *Orchestrator) Engines() []string {
	names := make([]string, len(o.engines))
	for i, e := range o.engines {
		names[i] = e.Name()
	}
	return names
}

// chain returns the engines for q with the hinted engine moved to the
// front. Last-resort engines are never promoted.
func (o *Orchestrator) chain(hint string) []Engine {
	if hint == "" {
		return o.engines
	}
	idx := slices.IndexFunc(o.engines, func(e Engine) bool { return e.Name() == hint })
	if idx <= 0 || isLastResort(o.engines[idx]) {
		return o.engines
	}
	out := make([]Engine, 0, len(o.engines))
	out = append(out, o.engines[idx])
	out = append(out, o.engines[:idx]...)
	return append(out, o.engines[idx+1:]...)
}

func cacheKey(q Query) string {
	return NormalizeQuery(q.Text) + "|" + q.DateRestrict
}

// Search runs q through the fallback chain. It returns an error only when
// no engine produced a result set.
func (o *Orchestrator) Search(ctx context.Context, q Query) (*Outcome, error) {
	log := zap.L().With(zap.String("component", "search"), zap.String("query", q.Text))

	if o.cache != nil {
		if cached, ok := o.cache.CachedResults(cacheKey(q)); ok {
			log.Debug("query cache hit", zap.Int("results", len(cached)))
			return &Outcome{Results: cached, Cached: true}, nil
		}
	}

	var (
		out       Outcome
		raw       []model.SearchResult
		succeeded int
		lastErr   error
	)
	for _, e := range o.chain(q.SourceHint) {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "search: cancelled")
		}
		host := resilience.HostKey(e.Host())
		if !o.penalties.IsAllowed(host) {
			log.Debug("engine host penalized, skipping", zap.String("engine", e.Name()), zap.String("host", host))
			continue
		}

		out.Fired = append(out.Fired, e.Name())
		results, err := e.Search(ctx, q)
		if err != nil {
			lastErr = err
			if resilience.IsRateLimit(err) {
				out.RateLimited = append(out.RateLimited, e.Name())
				// The shared fetcher may already have penalized the host.
				if o.penalties.IsAllowed(host) {
					o.penalties.Penalize(host)
				}
				log.Info("engine rate limited, escalating", zap.String("engine", e.Name()))
				continue
			}
			log.Warn("engine failed, escalating", zap.String("engine", e.Name()), zap.Error(err))
			continue
		}

		succeeded++
		for i := range results {
			if results[i].Source == "" {
				results[i].Source = e.Name()
			}
		}
		raw = append(raw, results...)
		if len(results) >= o.minResults {
			break
		}
		log.Debug("engine underperformed, escalating",
			zap.String("engine", e.Name()),
			zap.Int("results", len(results)),
			zap.Int("min_results", o.minResults),
		)
	}

	if succeeded == 0 {
		if lastErr == nil {
			return nil, eris.Errorf("search: no engine available for %q", q.Text)
		}
		return nil, eris.Wrapf(lastErr, "search: all engines failed for %q", q.Text)
	}

	out.Raw = len(raw)
	out.Results = o.merge(raw)
	if o.cache != nil {
		o.cache.CacheResults(cacheKey(q), out.Results)
	}
	return &out, nil
}

// merge drops results whose normalized URL was already seen, ranks the
// remainder and applies MaxResults. URLs are kept as returned so they can
// be fetched unchanged.
func (o *Orchestrator) merge(raw []model.SearchResult) []model.SearchResult {
	seen := make(map[string]struct{}, len(raw))
	merged := make([]model.SearchResult, 0, len(raw))
	for _, r := range raw {
		norm, err := NormalizeURL(r.URL)
		if err != nil {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		merged = append(merged, r)
	}
	o.ranker.Sort(merged)
	if o.maxResults > 0 && len(merged) > o.maxResults {
		merged = merged[:o.maxResults]
	}
	return merged
}
