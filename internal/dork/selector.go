// Package dork selects search queries with an epsilon-greedy split between
// proven ("core") and untried ("explore") dorks, and learns from their
// outcomes.
package dork

import (
	"cmp"
	"maps"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/lead-scout/internal/config"
	"github.com/sells-group/lead-scout/internal/model"
)

// SelectParams are the per-run selection knobs, usually taken from the
// current Wasserfall mode.
type SelectParams struct {
	SlotMin     int
	SlotMax     int
	ExploreRate float64
	// Limit caps the number of selections when > 0.
	Limit    int
	Industry string
}

// Selection is one dork chosen for the run.
type Selection struct {
	// Index is the position of the dork in the slice passed to Select.
	Index  int
	Dork   model.Dork
	Source string
}

type sourceWeight struct {
	name   string
	weight float64
}

// Selector picks dorks. It is not safe for concurrent use; the runner owns
// it between worker phases.
type Selector struct {
	rng            *rand.Rand
	minTrials      int
	corePercentile float64
	split          []sourceWeight
	log            *zap.Logger
}

// NewSelector creates a Selector. rng makes selection reproducible.
func NewSelector(cfg config.DorkConfig, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	minTrials := cfg.MinTrials
	if minTrials <= 0 {
		minTrials = 3
	}
	pct := cfg.CorePercentile
	if pct <= 0 || pct > 1 {
		pct = 0.3
	}

	var split []sourceWeight
	for _, name := range slices.Sorted(maps.Keys(cfg.SourceSplit)) {
		if w := cfg.SourceSplit[name]; w > 0 {
			split = append(split, sourceWeight{name: name, weight: w})
		}
	}

	return &Selector{
		rng:            rng,
		minTrials:      minTrials,
		corePercentile: pct,
		split:          split,
		log:            zap.L().With(zap.String("component", "dork")),
	}
}

// Repool assigns every dork to core or explore in place. Tested dorks
// (at least min_trials queries) whose score ranks in the top
// core_percentile become core; everything else explores.
func (s *Selector) Repool(dorks []model.Dork) {
	var tested []int
	for i := range dorks {
		dorks[i].Score = dorks[i].ComputeScore()
		dorks[i].Pool = model.PoolExplore
		if dorks[i].Tested(s.minTrials) {
			tested = append(tested, i)
		}
	}
	if len(tested) == 0 {
		return
	}
	slices.SortStableFunc(tested, func(a, b int) int {
		return compareDorks(&dorks[a], &dorks[b])
	})
	n := int(math.Ceil(s.corePercentile * float64(len(tested))))
	for _, i := range tested[:min(n, len(tested))] {
		dorks[i].Pool = model.PoolCore
	}
}

// Select draws the run's dorks. The number of slots is uniform in
// [SlotMin, SlotMax]; each slot explores with probability ExploreRate and
// otherwise exploits core. A pool that runs dry spills into the other.
func (s *Selector) Select(dorks []model.Dork, p SelectParams) []Selection {
	industry := strings.ToLower(p.Industry)
	var core, explore []int
	for i := range dorks {
		d := &dorks[i]
		if industry != "" && d.Industry != "" && d.Industry != industry {
			continue
		}
		if d.Pool == model.PoolCore {
			core = append(core, i)
		} else {
			explore = append(explore, i)
		}
	}
	byRank := func(a, b int) int { return compareDorks(&dorks[a], &dorks[b]) }
	slices.SortStableFunc(core, byRank)
	slices.SortStableFunc(explore, byRank)

	lo, hi := max(0, p.SlotMin), max(0, p.SlotMax)
	if hi < lo {
		hi = lo
	}
	n := lo + s.rng.IntN(hi-lo+1)
	if p.Limit > 0 {
		n = min(n, p.Limit)
	}
	n = min(n, len(core)+len(explore))

	out := make([]Selection, 0, n)
	for range n {
		wantExplore := s.rng.Float64() < p.ExploreRate
		var idx int
		switch {
		case wantExplore && len(explore) > 0, len(core) == 0:
			idx, explore = explore[0], explore[1:]
		default:
			idx, core = core[0], core[1:]
		}
		d := dorks[idx]
		out = append(out, Selection{Index: idx, Dork: d, Source: s.source(d)})
	}

	s.log.Debug("dork: selected",
		zap.Int("slots", n),
		zap.Int("core_left", len(core)),
		zap.Int("explore_left", len(explore)),
	)
	return out
}

// source attributes a backend to a selection: the dork's own hint if set,
// else a draw from the configured split.
func (s *Selector) source(d model.Dork) string {
	if d.SourceHint != "" {
		return d.SourceHint
	}
	if len(s.split) == 0 {
		return ""
	}
	var total float64
	for _, w := range s.split {
		total += w.weight
	}
	r := s.rng.Float64() * total
	for _, w := range s.split {
		if r < w.weight {
			return w.name
		}
		r -= w.weight
	}
	return s.split[len(s.split)-1].name
}

// Record applies one executed query's outcome to d and recomputes its
// score.
func (s *Selector) Record(d *model.Dork, leadsFound, accepted int, now time.Time) {
	d.QueriesTotal++
	d.LeadsFound += leadsFound
	d.AcceptedLeads += accepted
	d.LastUsedAt = now
	d.Score = d.ComputeScore()
}

// compareDorks orders by score desc, then least recently used, then text.
func compareDorks(a, b *model.Dork) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := a.LastUsedAt.Compare(b.LastUsedAt); c != 0 {
		return c
	}
	return strings.Compare(a.Text, b.Text)
}
