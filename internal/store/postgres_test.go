package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-scout/internal/model"
	"github.com/sells-group/lead-scout/internal/resilience"
)

var pgNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock, clock: newClock([]Option{WithNow(func() time.Time { return pgNow })})}
	return s, mock
}

func anyArgs(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = pgxmock.AnyArg()
	}
	return out
}

func TestPostgresStore_IsURLSeen(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT 1 FROM url_seen WHERE url = \$1 AND expires_at > \$2`).
		WithArgs("https://example.de/a", pgNow).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(`SELECT 1 FROM url_seen`).
		WithArgs("https://example.de/b", pgNow).
		WillReturnError(pgx.ErrNoRows)

	seen, err := s.IsURLSeen(context.Background(), "https://example.de/a")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = s.IsURLSeen(context.Background(), "https://example.de/b")
	require.NoError(t, err)
	assert.False(t, seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkURLSeen(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO url_seen .* ON CONFLICT \(url\)`).
		WithArgs("https://example.de/a", pgNow.Add(7*24*time.Hour)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.MarkURLSeen(context.Background(), "https://example.de/a", 7*24*time.Hour))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertLeads_New(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM leads WHERE email = \$1`).
		WithArgs("anna.schmidt@example.de").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT id FROM leads WHERE phone = \$1`).
		WithArgs("+4915148273916").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO leads`).
		WithArgs(anyArgs(22)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	ids, err := s.InsertLeads(context.Background(), []model.Lead{testLead("+4915148273916", "anna.schmidt@example.de", 55)})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Len(t, ids[0], 36)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertLeads_ExistingUnchanged(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM leads WHERE email = \$1`).
		WithArgs("anna.schmidt@example.de").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("lead-1"))
	mock.ExpectExec(`UPDATE leads SET`).
		WithArgs(anyArgs(10)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectCommit()

	ids, err := s.InsertLeads(context.Background(), []model.Lead{testLead("+4915148273916", "anna.schmidt@example.de", 40)})
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_StartRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs \(id, mode, status, started_at\)`).
		WithArgs(pgxmock.AnyArg(), model.ModeConservative, "running", pgNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := s.StartRun(context.Background(), model.ModeConservative, pgNow)
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_IncrementHostStats(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_host_stats"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_host_stats"}, hostStatColumns).WillReturnResult(1)
	mock.ExpectExec(`ON CONFLICT \("host"\) DO UPDATE SET "requests" = "host_stats"\."requests" \+ EXCLUDED\."requests"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.IncrementHostStats(context.Background(), []model.HostStats{{Host: "example.de", Requests: 2}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveDroppedURLs(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"dropped_urls"}, droppedColumns).WillReturnResult(1)

	err := s.SaveDroppedURLs(context.Background(), "r-1", []resilience.DroppedURL{
		resilience.NewDroppedURL("https://example.de/a", "q", resilience.NewRateLimitError("example.de", 429), pgNow),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadModeState_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT current_mode, run_counter, runs_since_transition, last_transition_at, samples`).
		WillReturnError(pgx.ErrNoRows)

	st, err := s.LoadModeState(context.Background())
	require.NoError(t, err)
	assert.Nil(t, st)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveModeState(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO mode_state`).
		WithArgs(anyArgs(5)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO mode_transitions`).
		WithArgs(model.ModeConservative, model.ModeModerate, 3, "upgrade", pgNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.SaveModeState(context.Background(),
		model.ModeState{Current: model.ModeModerate, RunCounter: 3},
		&model.ModeTransition{FromMode: model.ModeConservative, ToMode: model.ModeModerate, RunNumber: 3, Reason: "upgrade", At: pgNow},
	)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteExpired(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM url_seen WHERE expires_at <= \$1`).WithArgs(pgNow).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`DELETE FROM query_done WHERE expires_at <= \$1`).WithArgs(pgNow).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	n, err := s.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
