// Package store persists leads, run metrics, dork statistics and the
// Wasserfall state. SQLite is the default backend; Postgres is optional.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-scout/internal/config"
	"github.com/sells-group/lead-scout/internal/model"
	"github.com/sells-group/lead-scout/internal/resilience"
)

// LeadRepository is the lead persistence contract of the runner.
type LeadRepository interface {
	// InsertLeads upserts by email, then by phone, and returns the ids of
	// new or changed rows only.
	InsertLeads(ctx context.Context, leads []model.Lead) ([]string, error)
	LeadExists(ctx context.Context, phone, email string) (bool, error)
	IsURLSeen(ctx context.Context, url string) (bool, error)
	MarkURLSeen(ctx context.Context, url string, ttl time.Duration) error
	IsQueryDone(ctx context.Context, query string) (bool, error)
	MarkQueryDone(ctx context.Context, query string, ttl time.Duration) error
	StartRun(ctx context.Context, mode string, startedAt time.Time) (string, error)
	FinishRun(ctx context.Context, m model.RunMetrics) error
}

// MetricsBackend persists dork and host statistics and finished runs.
type MetricsBackend interface {
	LoadDorks(ctx context.Context) ([]model.Dork, error)
	SaveDorks(ctx context.Context, dorks []model.Dork) error
	IncrementHostStats(ctx context.Context, stats []model.HostStats) error
	FinishRun(ctx context.Context, m model.RunMetrics) error
	SaveDroppedURLs(ctx context.Context, runID string, dropped []resilience.DroppedURL) error
	RecentRuns(ctx context.Context, limit int) ([]model.RunMetrics, error)
	CountDropped(ctx context.Context, since time.Time) (int, error)
}

// ModeBackend persists the Wasserfall state.
type ModeBackend interface {
	LoadModeState(ctx context.Context) (*model.ModeState, error)
	SaveModeState(ctx context.Context, state model.ModeState, transition *model.ModeTransition) error
	ListTransitions(ctx context.Context, limit int) ([]model.ModeTransition, error)
}

// Store is the full persistence surface.
type Store interface {
	LeadRepository
	MetricsBackend
	ModeBackend

	ListLeads(ctx context.Context, limit int) ([]model.Lead, error)
	HostStats(ctx context.Context, limit int) ([]model.HostStats, error)
	// DeleteExpired removes expired url-seen and query-done rows.
	DeleteExpired(ctx context.Context) (int, error)
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// Open creates the configured backend. The schema is not migrated.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		s, err := NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
}

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}
