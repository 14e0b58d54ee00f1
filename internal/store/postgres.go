package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-scout/internal/db"
	"github.com/sells-group/lead-scout/internal/model"
	"github.com/sells-group/lead-scout/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	clock
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig, opts ...Option) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, clock: newClock(opts)}, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool db.Pool, opts ...Option) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close, clock: newClock(opts)}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name         TEXT NOT NULL DEFAULT '',
	company      TEXT NOT NULL DEFAULT '',
	phone        TEXT NOT NULL DEFAULT '',
	phone_type   TEXT NOT NULL DEFAULT 'none',
	email        TEXT NOT NULL DEFAULT '',
	email_tier   TEXT NOT NULL DEFAULT '',
	source_url   TEXT NOT NULL,
	source       TEXT NOT NULL DEFAULT '',
	query        TEXT NOT NULL DEFAULT '',
	title        TEXT NOT NULL DEFAULT '',
	score        INTEGER NOT NULL DEFAULT 0,
	signals      JSONB NOT NULL DEFAULT '[]',
	lead_type    TEXT NOT NULL DEFAULT 'profile',
	company_size TEXT NOT NULL DEFAULT '',
	industry     TEXT NOT NULL DEFAULT '',
	hidden_gem   BOOLEAN NOT NULL DEFAULT false,
	whatsapp     TEXT NOT NULL DEFAULT '',
	telegram     TEXT NOT NULL DEFAULT '',
	run_id       TEXT NOT NULL DEFAULT '',
	found_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_email ON leads(email) WHERE email <> '';
CREATE INDEX IF NOT EXISTS idx_leads_phone ON leads(phone) WHERE phone <> '';
CREATE INDEX IF NOT EXISTS idx_leads_run_id ON leads(run_id);

CREATE TABLE IF NOT EXISTS url_seen (
	url        TEXT PRIMARY KEY,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS query_done (
	query      TEXT PRIMARY KEY,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	mode           TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'running',
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ,
	queries_total  INTEGER NOT NULL DEFAULT 0,
	queries_failed INTEGER NOT NULL DEFAULT 0,
	serp_hits      INTEGER NOT NULL DEFAULT 0,
	urls_fetched   INTEGER NOT NULL DEFAULT 0,
	fetch_errors   INTEGER NOT NULL DEFAULT 0,
	leads_found    INTEGER NOT NULL DEFAULT 0,
	leads_kept     INTEGER NOT NULL DEFAULT 0,
	accepted_leads INTEGER NOT NULL DEFAULT 0,
	cost_usd       DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);

CREATE TABLE IF NOT EXISTS dorks (
	text           TEXT PRIMARY KEY,
	pool           TEXT NOT NULL DEFAULT 'explore',
	source_hint    TEXT NOT NULL DEFAULT '',
	industry       TEXT NOT NULL DEFAULT '',
	queries_total  INTEGER NOT NULL DEFAULT 0,
	leads_found    INTEGER NOT NULL DEFAULT 0,
	accepted_leads INTEGER NOT NULL DEFAULT 0,
	score          DOUBLE PRECISION NOT NULL DEFAULT 0,
	last_used_at   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS host_stats (
	host         TEXT PRIMARY KEY,
	requests     INTEGER NOT NULL DEFAULT 0,
	failures     INTEGER NOT NULL DEFAULT 0,
	rate_limited INTEGER NOT NULL DEFAULT 0,
	leads_found  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS dropped_urls (
	id          BIGSERIAL PRIMARY KEY,
	run_id      TEXT NOT NULL,
	url         TEXT NOT NULL,
	query       TEXT NOT NULL DEFAULT '',
	host        TEXT NOT NULL DEFAULT '',
	kind        TEXT NOT NULL,
	status_code INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	dropped_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dropped_urls_dropped_at ON dropped_urls(dropped_at);

CREATE TABLE IF NOT EXISTS mode_state (
	id                    INTEGER PRIMARY KEY CHECK (id = 1),
	current_mode          TEXT NOT NULL,
	run_counter           INTEGER NOT NULL DEFAULT 0,
	runs_since_transition INTEGER NOT NULL DEFAULT 0,
	last_transition_at    TIMESTAMPTZ,
	samples               JSONB NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS mode_transitions (
	id         BIGSERIAL PRIMARY KEY,
	from_mode  TEXT NOT NULL,
	to_mode    TEXT NOT NULL,
	run_number INTEGER NOT NULL,
	reason     TEXT NOT NULL,
	at         TIMESTAMPTZ NOT NULL
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Leads ---

func (s *PostgresStore) InsertLeads(ctx context.Context, leads []model.Lead) ([]string, error) {
	if len(leads) == 0 {
		return nil, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin insert leads")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := s.now().UTC()
	var ids []string
	for i := range leads {
		l := &leads[i]
		signals, err := json.Marshal(l.Signals)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: marshal signals")
		}

		id, err := pgFindLead(ctx, tx, l.Phone, l.Email)
		if err != nil {
			return nil, err
		}
		if id == "" {
			id = l.ID
			if id == "" {
				id = uuid.New().String()
			}
			_, err = tx.Exec(ctx,
				`INSERT INTO leads (id, name, company, phone, phone_type, email, email_tier, source_url, source, query,
				 title, score, signals, lead_type, company_size, industry, hidden_gem, whatsapp, telegram, run_id,
				 found_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
				id, l.Name, l.Company, l.Phone, string(l.PhoneType), l.Email, string(l.EmailTier), l.SourceURL,
				l.Source, l.Query, l.Title, l.Score, signals, string(l.LeadType), string(l.CompanySize),
				l.Industry, l.HiddenGem, l.WhatsApp, l.Telegram, l.RunID, l.FoundAt.UTC(), now,
			)
			if err != nil {
				return nil, eris.Wrapf(err, "postgres: insert lead %s", l.SourceURL)
			}
			ids = append(ids, id)
			continue
		}

		tag, err := tx.Exec(ctx,
			`UPDATE leads SET
			   name       = CASE WHEN name = '' THEN $2 ELSE name END,
			   company    = CASE WHEN company = '' THEN $3 ELSE company END,
			   phone_type = CASE WHEN phone = '' THEN $4 ELSE phone_type END,
			   phone      = CASE WHEN phone = '' THEN $5 ELSE phone END,
			   email_tier = CASE WHEN email = '' THEN $6 ELSE email_tier END,
			   email      = CASE WHEN email = '' THEN $7 ELSE email END,
			   signals    = CASE WHEN score < $8 THEN $9 ELSE signals END,
			   score      = GREATEST(score, $8),
			   updated_at = $10
			 WHERE id = $1 AND (score < $8 OR (name = '' AND $2 <> '') OR (phone = '' AND $5 <> '') OR (email = '' AND $7 <> ''))`,
			id, l.Name, l.Company, string(l.PhoneType), l.Phone, string(l.EmailTier), l.Email,
			l.Score, signals, now,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: update lead %s", id)
		}
		if tag.RowsAffected() > 0 {
			ids = append(ids, id)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit insert leads")
	}
	return ids, nil
}

type pgRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func pgFindLead(ctx context.Context, q pgRower, phone, email string) (string, error) {
	for _, lookup := range []struct{ col, val string }{{"email", email}, {"phone", phone}} {
		if lookup.val == "" {
			continue
		}
		var id string
		err := q.QueryRow(ctx, `SELECT id FROM leads WHERE `+lookup.col+` = $1 LIMIT 1`, lookup.val).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return "", eris.Wrapf(err, "postgres: find lead by %s", lookup.col)
		}
		return id, nil
	}
	return "", nil
}

func (s *PostgresStore) LeadExists(ctx context.Context, phone, email string) (bool, error) {
	id, err := pgFindLead(ctx, s.pool, phone, email)
	return id != "", err
}

// --- Seen caches ---

func (s *PostgresStore) IsURLSeen(ctx context.Context, url string) (bool, error) {
	return s.live(ctx, `SELECT 1 FROM url_seen WHERE url = $1 AND expires_at > $2`, url)
}

func (s *PostgresStore) MarkURLSeen(ctx context.Context, url string, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO url_seen (url, expires_at) VALUES ($1, $2)
		 ON CONFLICT (url) DO UPDATE SET expires_at = EXCLUDED.expires_at`,
		url, s.now().Add(ttl).UTC(),
	)
	return eris.Wrap(err, "postgres: mark url seen")
}

func (s *PostgresStore) IsQueryDone(ctx context.Context, query string) (bool, error) {
	return s.live(ctx, `SELECT 1 FROM query_done WHERE query = $1 AND expires_at > $2`, query)
}

func (s *PostgresStore) MarkQueryDone(ctx context.Context, query string, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO query_done (query, expires_at) VALUES ($1, $2)
		 ON CONFLICT (query) DO UPDATE SET expires_at = EXCLUDED.expires_at`,
		query, s.now().Add(ttl).UTC(),
	)
	return eris.Wrap(err, "postgres: mark query done")
}

func (s *PostgresStore) live(ctx context.Context, query, key string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx, query, key, s.now().UTC()).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "postgres: seen lookup")
	}
	return true, nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context) (int, error) {
	now := s.now().UTC()
	total := 0
	for _, table := range []string{"url_seen", "query_done"} {
		tag, err := s.pool.Exec(ctx, `DELETE FROM `+table+` WHERE expires_at <= $1`, now)
		if err != nil {
			return total, eris.Wrapf(err, "postgres: delete expired %s", table)
		}
		total += int(tag.RowsAffected())
	}
	return total, nil
}

// --- Runs ---

func (s *PostgresStore) StartRun(ctx context.Context, mode string, startedAt time.Time) (string, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, mode, status, started_at) VALUES ($1, $2, $3, $4)`,
		id, mode, string(model.RunStatusRunning), startedAt.UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert run")
	}
	return id, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, m model.RunMetrics) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, mode, status, started_at, finished_at, queries_total, queries_failed, serp_hits,
		 urls_fetched, fetch_errors, leads_found, leads_kept, accepted_leads, cost_usd)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (id) DO UPDATE SET
		   status = EXCLUDED.status, finished_at = EXCLUDED.finished_at,
		   queries_total = EXCLUDED.queries_total, queries_failed = EXCLUDED.queries_failed,
		   serp_hits = EXCLUDED.serp_hits, urls_fetched = EXCLUDED.urls_fetched,
		   fetch_errors = EXCLUDED.fetch_errors, leads_found = EXCLUDED.leads_found,
		   leads_kept = EXCLUDED.leads_kept, accepted_leads = EXCLUDED.accepted_leads,
		   cost_usd = EXCLUDED.cost_usd`,
		m.RunID, m.Mode, string(m.Status), m.StartedAt.UTC(), nullTime(m.FinishedAt),
		m.QueriesTotal, m.QueriesFailed, m.SerpHits, m.URLsFetched, m.FetchErrors,
		m.LeadsFound, m.LeadsKept, m.AcceptedLeads, m.CostUSD,
	)
	return eris.Wrapf(err, "postgres: finish run %s", m.RunID)
}

func (s *PostgresStore) RecentRuns(ctx context.Context, limit int) ([]model.RunMetrics, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, mode, status, started_at, finished_at, queries_total, queries_failed, serp_hits,
		 urls_fetched, fetch_errors, leads_found, leads_kept, accepted_leads, cost_usd
		 FROM runs WHERE status <> $1 ORDER BY started_at DESC LIMIT $2`,
		string(model.RunStatusRunning), listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recent runs")
	}
	defer rows.Close()

	var runs []model.RunMetrics
	for rows.Next() {
		var m model.RunMetrics
		var status string
		var finished *time.Time
		if err := rows.Scan(&m.RunID, &m.Mode, &status, &m.StartedAt, &finished, &m.QueriesTotal,
			&m.QueriesFailed, &m.SerpHits, &m.URLsFetched, &m.FetchErrors, &m.LeadsFound,
			&m.LeadsKept, &m.AcceptedLeads, &m.CostUSD); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		m.Status = model.RunStatus(status)
		if finished != nil {
			m.FinishedAt = *finished
		}
		runs = append(runs, m)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: recent runs iterate")
}

// --- Dorks and host stats ---

func (s *PostgresStore) LoadDorks(ctx context.Context) ([]model.Dork, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT text, pool, source_hint, industry, queries_total, leads_found, accepted_leads, score, last_used_at
		 FROM dorks ORDER BY text`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load dorks")
	}
	defer rows.Close()

	var dorks []model.Dork
	for rows.Next() {
		var d model.Dork
		var pool string
		var lastUsed *time.Time
		if err := rows.Scan(&d.Text, &pool, &d.SourceHint, &d.Industry, &d.QueriesTotal,
			&d.LeadsFound, &d.AcceptedLeads, &d.Score, &lastUsed); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dork")
		}
		d.Pool = model.Pool(pool)
		if lastUsed != nil {
			d.LastUsedAt = *lastUsed
		}
		dorks = append(dorks, d)
	}
	return dorks, eris.Wrap(rows.Err(), "postgres: load dorks iterate")
}

var dorkColumns = []string{
	"text", "pool", "source_hint", "industry", "queries_total", "leads_found", "accepted_leads", "score", "last_used_at",
}

func (s *PostgresStore) SaveDorks(ctx context.Context, dorks []model.Dork) error {
	rows := make([][]any, len(dorks))
	for i, d := range dorks {
		rows[i] = []any{
			d.Text, string(d.Pool), d.SourceHint, d.Industry, d.QueriesTotal, d.LeadsFound,
			d.AcceptedLeads, d.Score, nullTime(d.LastUsedAt),
		}
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "dorks",
		Columns:      dorkColumns,
		ConflictKeys: []string{"text"},
	}, rows)
	return eris.Wrap(err, "postgres: save dorks")
}

var hostStatColumns = []string{"host", "requests", "failures", "rate_limited", "leads_found"}

func (s *PostgresStore) IncrementHostStats(ctx context.Context, stats []model.HostStats) error {
	rows := make([][]any, len(stats))
	for i, h := range stats {
		rows[i] = []any{h.Host, h.Requests, h.Failures, h.RateLimited, h.LeadsFound}
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:         "host_stats",
		Columns:       hostStatColumns,
		ConflictKeys:  []string{"host"},
		IncrementCols: hostStatColumns[1:],
	}, rows)
	return eris.Wrap(err, "postgres: increment host stats")
}

// --- Dropped URLs ---

var droppedColumns = []string{"run_id", "url", "query", "host", "kind", "status_code", "error", "dropped_at"}

func (s *PostgresStore) SaveDroppedURLs(ctx context.Context, runID string, dropped []resilience.DroppedURL) error {
	rows := make([][]any, len(dropped))
	for i, d := range dropped {
		rows[i] = []any{runID, d.URL, d.Query, d.Host, d.Kind, d.StatusCode, d.Error, d.DroppedAt.UTC()}
	}
	_, err := db.CopyRows(ctx, s.pool, "dropped_urls", droppedColumns, rows, 0)
	return eris.Wrap(err, "postgres: save dropped urls")
}

func (s *PostgresStore) CountDropped(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dropped_urls WHERE dropped_at >= $1`, since.UTC()).Scan(&n)
	return n, eris.Wrap(err, "postgres: count dropped urls")
}

// --- Mode state ---

func (s *PostgresStore) LoadModeState(ctx context.Context) (*model.ModeState, error) {
	var st model.ModeState
	var lastTransition *time.Time
	var samples []byte
	err := s.pool.QueryRow(ctx,
		`SELECT current_mode, run_counter, runs_since_transition, last_transition_at, samples
		 FROM mode_state WHERE id = 1`,
	).Scan(&st.Current, &st.RunCounter, &st.RunsSinceTransition, &lastTransition, &samples)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load mode state")
	}
	if len(samples) > 0 {
		if err := json.Unmarshal(samples, &st.Window); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal mode window")
		}
	}
	if lastTransition != nil {
		st.LastTransitionAt = *lastTransition
	}
	return &st, nil
}

func (s *PostgresStore) SaveModeState(ctx context.Context, st model.ModeState, tr *model.ModeTransition) error {
	samples, err := json.Marshal(st.Window)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal mode window")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save mode state")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO mode_state (id, current_mode, run_counter, runs_since_transition, last_transition_at, samples)
		 VALUES (1, $1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   current_mode = EXCLUDED.current_mode, run_counter = EXCLUDED.run_counter,
		   runs_since_transition = EXCLUDED.runs_since_transition,
		   last_transition_at = EXCLUDED.last_transition_at, samples = EXCLUDED.samples`,
		st.Current, st.RunCounter, st.RunsSinceTransition, nullTime(st.LastTransitionAt), samples,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: upsert mode state")
	}
	if tr != nil {
		_, err = tx.Exec(ctx,
			`INSERT INTO mode_transitions (from_mode, to_mode, run_number, reason, at) VALUES ($1, $2, $3, $4, $5)`,
			tr.FromMode, tr.ToMode, tr.RunNumber, tr.Reason, tr.At.UTC(),
		)
		if err != nil {
			return eris.Wrap(err, "postgres: insert mode transition")
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit mode state")
}

func (s *PostgresStore) ListTransitions(ctx context.Context, limit int) ([]model.ModeTransition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT from_mode, to_mode, run_number, reason, at FROM mode_transitions ORDER BY id DESC LIMIT $1`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list transitions")
	}
	defer rows.Close()

	var out []model.ModeTransition
	for rows.Next() {
		var tr model.ModeTransition
		if err := rows.Scan(&tr.FromMode, &tr.ToMode, &tr.RunNumber, &tr.Reason, &tr.At); err != nil {
			return nil, eris.Wrap(err, "postgres: scan transition")
		}
		out = append(out, tr)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list transitions iterate")
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

// ListLeads returns the most recently found leads.
func (s *PostgresStore) ListLeads(ctx context.Context, limit int) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, company, phone, phone_type, email, email_tier, source_url, source, query, title, score,
		 signals, lead_type, company_size, industry, hidden_gem, whatsapp, telegram, run_id, found_at
		 FROM leads ORDER BY found_at DESC, id LIMIT $1`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var l model.Lead
		var phoneType, emailTier, leadType, size string
		var signals []byte
		if err := rows.Scan(&l.ID, &l.Name, &l.Company, &l.Phone, &phoneType, &l.Email, &emailTier,
			&l.SourceURL, &l.Source, &l.Query, &l.Title, &l.Score, &signals, &leadType, &size,
			&l.Industry, &l.HiddenGem, &l.WhatsApp, &l.Telegram, &l.RunID, &l.FoundAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		if err := json.Unmarshal(signals, &l.Signals); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal signals")
		}
		l.PhoneType = model.PhoneType(phoneType)
		l.EmailTier = model.EmailTier(emailTier)
		l.LeadType = model.LeadType(leadType)
		l.CompanySize = model.CompanySize(size)
		l.Accept = true
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

// HostStats returns the cumulative per-host counters ordered by requests.
func (s *PostgresStore) HostStats(ctx context.Context, limit int) ([]model.HostStats, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT host, requests, failures, rate_limited, leads_found FROM host_stats
		 ORDER BY requests DESC, host LIMIT $1`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: host stats")
	}
	defer rows.Close()

	var out []model.HostStats
	for rows.Next() {
		var h model.HostStats
		if err := rows.Scan(&h.Host, &h.Requests, &h.Failures, &h.RateLimited, &h.LeadsFound); err != nil {
			return nil, eris.Wrap(err, "postgres: scan host stats")
		}
		out = append(out, h)
	}
	return out, eris.Wrap(rows.Err(), "postgres: host stats iterate")
}
