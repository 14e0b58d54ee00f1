package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-scout/internal/model"
)

const (
	spendWindow   = 24 * time.Hour
	spendRunLimit = 1000
)

// MetricsSnapshot holds a point-in-time view of discovery health.
type MetricsSnapshot struct {
	// Trailing-run metrics.
	Runs           int     `json:"runs"`
	RunsSuccess    int     `json:"runs_success"`
	RunsPartial    int     `json:"runs_partial"`
	RunsFailed     int     `json:"runs_failed"`
	URLsFetched    int     `json:"urls_fetched"`
	LeadsFound     int     `json:"leads_found"`
	LeadsAccepted  int     `json:"leads_accepted"`
	PhoneFindRate  float64 `json:"phone_find_rate"`
	ErrorRate      float64 `json:"error_rate"`
	AcceptanceRate float64 `json:"acceptance_rate"`

	// Last 24 hours.
	SpendUSD    float64 `json:"spend_usd_24h"`
	DroppedURLs int     `json:"dropped_urls_24h"`

	// Metadata.
	LookbackRuns int       `json:"lookback_runs"`
	CollectedAt  time.Time `json:"collected_at"`
}

// RunSource abstracts the store methods needed by the collector.
type RunSource interface {
	RecentRuns(ctx context.Context, limit int) ([]model.RunMetrics, error)
	CountDropped(ctx context.Context, since time.Time) (int, error)
}

// Collector gathers metrics from the store.
type Collector struct {
	store RunSource
	now   func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(st RunSource) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect gathers a snapshot over the last lookbackRuns finished runs.
func (c *Collector) Collect(ctx context.Context, lookbackRuns int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackRuns: lookbackRuns,
		CollectedAt:  now,
	}
	cutoff := now.Add(-spendWindow)

	runs, err := c.store.RecentRuns(ctx, max(lookbackRuns, spendRunLimit))
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: recent runs")
	}

	var fetchErrors int
	for i, r := range runs {
		if !r.StartedAt.Before(cutoff) {
			snap.SpendUSD += r.CostUSD
		}
		if i >= lookbackRuns {
			continue
		}
		snap.Runs++
		switch r.Status {
		case model.RunStatusSuccess:
			snap.RunsSuccess++
		case model.RunStatusPartial:
			snap.RunsPartial++
		case model.RunStatusFailed:
			snap.RunsFailed++
		}
		snap.URLsFetched += r.URLsFetched
		fetchErrors += r.FetchErrors
		snap.LeadsFound += r.LeadsFound
		snap.LeadsAccepted += r.AcceptedLeads
	}

	agg := model.RunMetrics{URLsFetched: snap.URLsFetched, FetchErrors: fetchErrors, LeadsFound: snap.LeadsFound}
	snap.PhoneFindRate = agg.PhoneFindRate()
	snap.ErrorRate = agg.ErrorRate()
	if snap.LeadsFound > 0 {
		snap.AcceptanceRate = float64(snap.LeadsAccepted) / float64(snap.LeadsFound)
	}

	dropped, err := c.store.CountDropped(ctx, cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count dropped urls")
	}
	snap.DroppedURLs = dropped

	return snap, nil
}
