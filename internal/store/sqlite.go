package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lead-scout/internal/model"
	"github.com/sells-group/lead-scout/internal/resilience"
)

// Option configures a store.
type Option func(*clock)

type clock struct {
	now func() time.Time
}

// WithNow overrides the clock used for TTLs and timestamps.
func WithNow(fn func() time.Time) Option {
	return func(c *clock) { c.now = fn }
}

func newClock(opts []Option) clock {
	c := clock{now: time.Now}
	for _, o := range opts {
		o(&c)
	}
	return c
}

// SQLiteStore implements Store using modernc.org/sqlite. Timestamps are
// stored as unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
	clock
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, clock: newClock(opts)}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id           TEXT PRIMARY KEY,
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
	signals      TEXT NOT NULL DEFAULT '[]',
	lead_type    TEXT NOT NULL DEFAULT 'profile',
	company_size TEXT NOT NULL DEFAULT '',
	industry     TEXT NOT NULL DEFAULT '',
	hidden_gem   INTEGER NOT NULL DEFAULT 0,
	whatsapp     TEXT NOT NULL DEFAULT '',
	telegram     TEXT NOT NULL DEFAULT '',
	run_id       TEXT NOT NULL DEFAULT '',
	found_at     INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_email ON leads(email) WHERE email <> '';
CREATE INDEX IF NOT EXISTS idx_leads_phone ON leads(phone) WHERE phone <> '';
CREATE INDEX IF NOT EXISTS idx_leads_run_id ON leads(run_id);

CREATE TABLE IF NOT EXISTS url_seen (
	url        TEXT PRIMARY KEY,
	expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS query_done (
	query      TEXT PRIMARY KEY,
	expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	mode           TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'running',
	started_at     INTEGER NOT NULL,
	finished_at    INTEGER NOT NULL DEFAULT 0,
	queries_total  INTEGER NOT NULL DEFAULT 0,
	queries_failed INTEGER NOT NULL DEFAULT 0,
	serp_hits      INTEGER NOT NULL DEFAULT 0,
	urls_fetched   INTEGER NOT NULL DEFAULT 0,
	fetch_errors   INTEGER NOT NULL DEFAULT 0,
	leads_found    INTEGER NOT NULL DEFAULT 0,
	leads_kept     INTEGER NOT NULL DEFAULT 0,
	accepted_leads INTEGER NOT NULL DEFAULT 0,
	cost_usd       REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

CREATE TABLE IF NOT EXISTS dorks (
	text           TEXT PRIMARY KEY,
	pool           TEXT NOT NULL DEFAULT 'explore',
	source_hint    TEXT NOT NULL DEFAULT '',
	industry       TEXT NOT NULL DEFAULT '',
	queries_total  INTEGER NOT NULL DEFAULT 0,
	leads_found    INTEGER NOT NULL DEFAULT 0,
	accepted_leads INTEGER NOT NULL DEFAULT 0,
	score          REAL NOT NULL DEFAULT 0,
	last_used_at   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS host_stats (
	host         TEXT PRIMARY KEY,
	requests     INTEGER NOT NULL DEFAULT 0,
	failures     INTEGER NOT NULL DEFAULT 0,
	rate_limited INTEGER NOT NULL DEFAULT 0,
	leads_found  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS dropped_urls (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	url         TEXT NOT NULL,
	query       TEXT NOT NULL DEFAULT '',
	host        TEXT NOT NULL DEFAULT '',
	kind        TEXT NOT NULL,
	status_code INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	dropped_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dropped_urls_dropped_at ON dropped_urls(dropped_at);

CREATE TABLE IF NOT EXISTS mode_state (
	id                    INTEGER PRIMARY KEY CHECK (id = 1),
	current_mode          TEXT NOT NULL,
	run_counter           INTEGER NOT NULL DEFAULT 0,
	runs_since_transition INTEGER NOT NULL DEFAULT 0,
	last_transition_at    INTEGER NOT NULL DEFAULT 0,
	samples               TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS mode_transitions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	from_mode  TEXT NOT NULL,
	to_mode    TEXT NOT NULL,
	run_number INTEGER NOT NULL,
	reason     TEXT NOT NULL,
	at         INTEGER NOT NULL
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Leads ---

func (s *SQLiteStore) InsertLeads(ctx context.Context, leads []model.Lead) ([]string, error) {
	if len(leads) == 0 {
		return nil, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin insert leads")
	}
	defer tx.Rollback() //nolint:errcheck

	now := toMillis(s.now())
	var ids []string
	for i := range leads {
		l := &leads[i]
		signals, err := json.Marshal(l.Signals)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: marshal signals")
		}

		id, err := sqliteFindLead(ctx, tx, l.Phone, l.Email)
		if err != nil {
			return nil, err
		}
		if id == "" {
			id = l.ID
			if id == "" {
				id = uuid.New().String()
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO leads (id, name, company, phone, phone_type, email, email_tier, source_url, source, query,
				 title, score, signals, lead_type, company_size, industry, hidden_gem, whatsapp, telegram, run_id,
				 found_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id, l.Name, l.Company, l.Phone, string(l.PhoneType), l.Email, string(l.EmailTier), l.SourceURL,
				l.Source, l.Query, l.Title, l.Score, string(signals), string(l.LeadType), string(l.CompanySize),
				l.Industry, l.HiddenGem, l.WhatsApp, l.Telegram, l.RunID, toMillis(l.FoundAt), now,
			)
			if err != nil {
				return nil, eris.Wrapf(err, "sqlite: insert lead %s", l.SourceURL)
			}
			ids = append(ids, id)
			continue
		}

		// Fill blanks and keep the better score. Only rows that gain
		// something count as updated.
		res, err := tx.ExecContext(ctx,
			`UPDATE leads SET
			   name       = CASE WHEN name = '' THEN ? ELSE name END,
			   company    = CASE WHEN company = '' THEN ? ELSE company END,
			   phone_type = CASE WHEN phone = '' THEN ? ELSE phone_type END,
			   phone      = CASE WHEN phone = '' THEN ? ELSE phone END,
			   email_tier = CASE WHEN email = '' THEN ? ELSE email_tier END,
			   email      = CASE WHEN email = '' THEN ? ELSE email END,
			   signals    = CASE WHEN score < ? THEN ? ELSE signals END,
			   score      = MAX(score, ?),
			   updated_at = ?
			 WHERE id = ? AND (score < ? OR (name = '' AND ? <> '') OR (phone = '' AND ? <> '') OR (email = '' AND ? <> ''))`,
			l.Name, l.Company, string(l.PhoneType), l.Phone, string(l.EmailTier), l.Email,
			l.Score, string(signals), l.Score, now,
			id, l.Score, l.Name, l.Phone, l.Email,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: update lead %s", id)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			ids = append(ids, id)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit insert leads")
	}
	return ids, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteFindLead returns the id of the lead matching email, else phone.
func sqliteFindLead(ctx context.Context, q queryRower, phone, email string) (string, error) {
	for _, lookup := range []struct{ col, val string }{{"email", email}, {"phone", phone}} {
		if lookup.val == "" {
			continue
		}
		var id string
		err := q.QueryRowContext(ctx, `SELECT id FROM leads WHERE `+lookup.col+` = ? LIMIT 1`, lookup.val).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return "", eris.Wrapf(err, "sqlite: find lead by %s", lookup.col)
		}
		return id, nil
	}
	return "", nil
}

func (s *SQLiteStore) LeadExists(ctx context.Context, phone, email string) (bool, error) {
	id, err := sqliteFindLead(ctx, s.db, phone, email)
	return id != "", err
}

// ListLeads returns the most recently found leads.
func (s *SQLiteStore) ListLeads(ctx context.Context, limit int) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, company, phone, phone_type, email, email_tier, source_url, source, query, title, score,
		 signals, lead_type, company_size, industry, hidden_gem, whatsapp, telegram, run_id, found_at
		 FROM leads ORDER BY found_at DESC, id LIMIT ?`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var l model.Lead
		var signals string
		var foundAt int64
		if err := rows.Scan(&l.ID, &l.Name, &l.Company, &l.Phone, &l.PhoneType, &l.Email, &l.EmailTier,
			&l.SourceURL, &l.Source, &l.Query, &l.Title, &l.Score, &signals, &l.LeadType, &l.CompanySize,
			&l.Industry, &l.HiddenGem, &l.WhatsApp, &l.Telegram, &l.RunID, &foundAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		if err := json.Unmarshal([]byte(signals), &l.Signals); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal signals")
		}
		l.FoundAt = fromMillis(foundAt)
		l.Accept = true
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

// --- Seen caches ---

func (s *SQLiteStore) IsURLSeen(ctx context.Context, url string) (bool, error) {
	return s.live(ctx, `SELECT 1 FROM url_seen WHERE url = ? AND expires_at > ?`, url)
}

func (s *SQLiteStore) MarkURLSeen(ctx context.Context, url string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO url_seen (url, expires_at) VALUES (?, ?)
		 ON CONFLICT (url) DO UPDATE SET expires_at = excluded.expires_at`,
		url, toMillis(s.now().Add(ttl)),
	)
	return eris.Wrap(err, "sqlite: mark url seen")
}

func (s *SQLiteStore) IsQueryDone(ctx context.Context, query string) (bool, error) {
	return s.live(ctx, `SELECT 1 FROM query_done WHERE query = ? AND expires_at > ?`, query)
}

func (s *SQLiteStore) MarkQueryDone(ctx context.Context, query string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO query_done (query, expires_at) VALUES (?, ?)
		 ON CONFLICT (query) DO UPDATE SET expires_at = excluded.expires_at`,
		query, toMillis(s.now().Add(ttl)),
	)
	return eris.Wrap(err, "sqlite: mark query done")
}

func (s *SQLiteStore) live(ctx context.Context, query, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, query, key, toMillis(s.now())).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "sqlite: seen lookup")
	}
	return true, nil
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int, error) {
	now := toMillis(s.now())
	total := 0
	for _, table := range []string{"url_seen", "query_done"} {
		res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE expires_at <= ?`, now)
		if err != nil {
			return total, eris.Wrapf(err, "sqlite: delete expired %s", table)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, eris.Wrap(err, "sqlite: rows affected")
		}
		total += int(n)
	}
	return total, nil
}

// --- Runs ---

func (s *SQLiteStore) StartRun(ctx context.Context, mode string, startedAt time.Time) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, mode, status, started_at) VALUES (?, ?, ?, ?)`,
		id, mode, string(model.RunStatusRunning), toMillis(startedAt),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert run")
	}
	return id, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, m model.RunMetrics) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, mode, status, started_at, finished_at, queries_total, queries_failed, serp_hits,
		 urls_fetched, fetch_errors, leads_found, leads_kept, accepted_leads, cost_usd)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   status = excluded.status, finished_at = excluded.finished_at,
		   queries_total = excluded.queries_total, queries_failed = excluded.queries_failed,
		   serp_hits = excluded.serp_hits, urls_fetched = excluded.urls_fetched,
		   fetch_errors = excluded.fetch_errors, leads_found = excluded.leads_found,
		   leads_kept = excluded.leads_kept, accepted_leads = excluded.accepted_leads,
		   cost_usd = excluded.cost_usd`,
		m.RunID, m.Mode, string(m.Status), toMillis(m.StartedAt), toMillis(m.FinishedAt),
		m.QueriesTotal, m.QueriesFailed, m.SerpHits, m.URLsFetched, m.FetchErrors,
		m.LeadsFound, m.LeadsKept, m.AcceptedLeads, m.CostUSD,
	)
	return eris.Wrapf(err, "sqlite: finish run %s", m.RunID)
}

func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]model.RunMetrics, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, status, started_at, finished_at, queries_total, queries_failed, serp_hits,
		 urls_fetched, fetch_errors, leads_found, leads_kept, accepted_leads, cost_usd
		 FROM runs WHERE status <> ? ORDER BY started_at DESC LIMIT ?`,
		string(model.RunStatusRunning), listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: recent runs")
	}
	defer rows.Close()

	var runs []model.RunMetrics
	for rows.Next() {
		var m model.RunMetrics
		var started, finished int64
		if err := rows.Scan(&m.RunID, &m.Mode, &m.Status, &started, &finished, &m.QueriesTotal,
			&m.QueriesFailed, &m.SerpHits, &m.URLsFetched, &m.FetchErrors, &m.LeadsFound,
			&m.LeadsKept, &m.AcceptedLeads, &m.CostUSD); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		m.StartedAt, m.FinishedAt = fromMillis(started), fromMillis(finished)
		runs = append(runs, m)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: recent runs iterate")
}

// --- Dorks and host stats ---

func (s *SQLiteStore) LoadDorks(ctx context.Context) ([]model.Dork, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT text, pool, source_hint, industry, queries_total, leads_found, accepted_leads, score, last_used_at
		 FROM dorks ORDER BY text`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load dorks")
	}
	defer rows.Close()

	var dorks []model.Dork
	for rows.Next() {
		var d model.Dork
		var lastUsed int64
		if err := rows.Scan(&d.Text, &d.Pool, &d.SourceHint, &d.Industry, &d.QueriesTotal,
			&d.LeadsFound, &d.AcceptedLeads, &d.Score, &lastUsed); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dork")
		}
		d.LastUsedAt = fromMillis(lastUsed)
		dorks = append(dorks, d)
	}
	return dorks, eris.Wrap(rows.Err(), "sqlite: load dorks iterate")
}

func (s *SQLiteStore) SaveDorks(ctx context.Context, dorks []model.Dork) error {
	return s.inTx(ctx, "save dorks", func(tx *sql.Tx) error {
		for _, d := range dorks {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO dorks (text, pool, source_hint, industry, queries_total, leads_found, accepted_leads,
				 score, last_used_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				 ON CONFLICT (text) DO UPDATE SET
				   pool = excluded.pool, source_hint = excluded.source_hint, industry = excluded.industry,
				   queries_total = excluded.queries_total, leads_found = excluded.leads_found,
				   accepted_leads = excluded.accepted_leads, score = excluded.score,
				   last_used_at = excluded.last_used_at`,
				d.Text, string(d.Pool), d.SourceHint, d.Industry, d.QueriesTotal, d.LeadsFound,
				d.AcceptedLeads, d.Score, toMillis(d.LastUsedAt),
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: upsert dork %q", d.Text)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) IncrementHostStats(ctx context.Context, stats []model.HostStats) error {
	return s.inTx(ctx, "increment host stats", func(tx *sql.Tx) error {
		for _, h := range stats {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO host_stats (host, requests, failures, rate_limited, leads_found)
				 VALUES (?, ?, ?, ?, ?)
				 ON CONFLICT (host) DO UPDATE SET
				   requests = host_stats.requests + excluded.requests,
				   failures = host_stats.failures + excluded.failures,
				   rate_limited = host_stats.rate_limited + excluded.rate_limited,
				   leads_found = host_stats.leads_found + excluded.leads_found`,
				h.Host, h.Requests, h.Failures, h.RateLimited, h.LeadsFound,
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: increment host %s", h.Host)
			}
		}
		return nil
	})
}

// HostStats returns the cumulative per-host counters ordered by requests.
func (s *SQLiteStore) HostStats(ctx context.Context, limit int) ([]model.HostStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT host, requests, failures, rate_limited, leads_found FROM host_stats
		 ORDER BY requests DESC, host LIMIT ?`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: host stats")
	}
	defer rows.Close()

	var out []model.HostStats
	for rows.Next() {
		var h model.HostStats
		if err := rows.Scan(&h.Host, &h.Requests, &h.Failures, &h.RateLimited, &h.LeadsFound); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan host stats")
		}
		out = append(out, h)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: host stats iterate")
}

// --- Dropped URLs ---

func (s *SQLiteStore) SaveDroppedURLs(ctx context.Context, runID string, dropped []resilience.DroppedURL) error {
	return s.inTx(ctx, "save dropped urls", func(tx *sql.Tx) error {
		for _, d := range dropped {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO dropped_urls (run_id, url, query, host, kind, status_code, error, dropped_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				runID, d.URL, d.Query, d.Host, d.Kind, d.StatusCode, d.Error, toMillis(d.DroppedAt),
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: insert dropped url %s", d.URL)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) CountDropped(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dropped_urls WHERE dropped_at >= ?`, toMillis(since),
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count dropped urls")
}

// --- Mode state ---

func (s *SQLiteStore) LoadModeState(ctx context.Context) (*model.ModeState, error) {
	var st model.ModeState
	var lastTransition int64
	var window string
	err := s.db.QueryRowContext(ctx,
		`SELECT current_mode, run_counter, runs_since_transition, last_transition_at, samples
		 FROM mode_state WHERE id = 1`,
	).Scan(&st.Current, &st.RunCounter, &st.RunsSinceTransition, &lastTransition, &window)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load mode state")
	}
	if err := json.Unmarshal([]byte(window), &st.Window); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal mode window")
	}
	st.LastTransitionAt = fromMillis(lastTransition)
	return &st, nil
}

func (s *SQLiteStore) SaveModeState(ctx context.Context, st model.ModeState, tr *model.ModeTransition) error {
	window, err := json.Marshal(st.Window)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal mode window")
	}
	return s.inTx(ctx, "save mode state", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO mode_state (id, current_mode, run_counter, runs_since_transition, last_transition_at, samples)
			 VALUES (1, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET
			   current_mode = excluded.current_mode, run_counter = excluded.run_counter,
			   runs_since_transition = excluded.runs_since_transition,
			   last_transition_at = excluded.last_transition_at, samples = excluded.samples`,
			st.Current, st.RunCounter, st.RunsSinceTransition, toMillis(st.LastTransitionAt), string(window),
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: upsert mode state")
		}
		if tr == nil {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO mode_transitions (from_mode, to_mode, run_number, reason, at) VALUES (?, ?, ?, ?, ?)`,
			tr.FromMode, tr.ToMode, tr.RunNumber, tr.Reason, toMillis(tr.At),
		)
		return eris.Wrap(err, "sqlite: insert mode transition")
	})
}

func (s *SQLiteStore) ListTransitions(ctx context.Context, limit int) ([]model.ModeTransition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT from_mode, to_mode, run_number, reason, at FROM mode_transitions ORDER BY id DESC LIMIT ?`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list transitions")
	}
	defer rows.Close()

	var out []model.ModeTransition
	for rows.Next() {
		var tr model.ModeTransition
		var at int64
		if err := rows.Scan(&tr.FromMode, &tr.ToMode, &tr.RunNumber, &tr.Reason, &at); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan transition")
		}
		tr.At = fromMillis(at)
		out = append(out, tr)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list transitions iterate")
}

// helpers

func (s *SQLiteStore) inTx(ctx context.Context, what string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(err, "sqlite: begin %s", what)
	}
	defer tx.Rollback() //nolint:errcheck
	if err := fn(tx); err != nil {
		return err
	}
	return eris.Wrapf(tx.Commit(), "sqlite: commit %s", what)
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
