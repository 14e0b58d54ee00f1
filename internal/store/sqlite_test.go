package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-scout/internal/model"
	"github.com/sells-group/lead-scout/internal/resilience"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestSQLiteStore(t *testing.T) (*SQLiteStore, *testClock) {
	t.Helper()
	clk := &testClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath, WithNow(clk.Now))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st, clk
}

func testLead(phone, email string, score int) model.Lead {
	return model.Lead{
		Phone:     phone,
		PhoneType: model.PhoneMobile,
		Email:     email,
		EmailTier: model.EmailPersonal,
		SourceURL: "https://example.de/profil",
		Score:     score,
		Signals:   []string{"mobile", "nrw"},
		LeadType:  model.LeadTypeCandidate,
		FoundAt:   time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	}
}

// --- Leads ---

func TestSQLite_InsertLeads_New(t *testing.T) {
	st, _ := newTestSQLiteStore(t)
	ctx := context.Background()

	ids, err := st.InsertLeads(ctx, []model.Lead{
		testLead("+4915148273916", "anna.schmidt@example.de", 55),
		testLead("+4917148273910", "", 45),
	})
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	leads, err := st.ListLeads(ctx, 10)
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, []string{"mobile", "nrw"}, leads[0].Signals)
	assert.True(t, leads[0].Accept)
}

func TestSQLite_InsertLeads_UpsertByEmailThenPhone(t *testing.T) {
	st, _ := newTestSQLiteStore(t)
	ctx := context.Background()

	ids, err := st.InsertLeads(ctx, []model.Lead{testLead("+4915148273916", "anna.schmidt@example.de", 55)})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	first := ids[0]

	// Same email, nothing new: not reported.
	ids, err = st.InsertLeads(ctx, []model.Lead{testLead("+4915148273916", "anna.schmidt@example.de", 50)})
	require.NoError(t, err)
	assert.Empty(t, ids)

	// Same phone, different email, better score: updates the existing row.
	better := testLead("+4915148273916", "a.schmidt@example.org", 70)
	better.Name = "Anna Schmidt"
	ids, err = st.InsertLeads(ctx, []model.Lead{better})
	require.NoError(t, err)
	assert.Equal(t, []string{first}, ids)

	leads, err := st.ListLeads(ctx, 10)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, 70, leads[0].Score)
	assert.Equal(t, "Anna Schmidt", leads[0].Name)
	assert.Equal(t, "anna.schmidt@example.de", leads[0].Email, "existing email is kept")
}

func TestSQLite_LeadExists(t *testing.T) {
	st, _ := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.InsertLeads(ctx, []model.Lead{testLead("+4915148273916", "anna.schmidt@example.de", 55)})
	require.NoError(t, err)

	tests := []struct {
		name         string
		phone, email string
		want         bool
	}{
		{"by phone", "+4915148273916", "", true},
		{"by email", "", "anna.schmidt@example.de", true},
		{"unknown", "+4917148273910", "x@example.de", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.LeadExists(ctx, tt.phone, tt.email)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// --- Seen caches ---

func TestSQLite_URLSeen_TTL(t *testing.T) {
	st, clk := newTestSQLiteStore(t)
	ctx := context.Background()

	seen, err := st.IsURLSeen(ctx, "https://example.de/a")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, st.MarkURLSeen(ctx, "https://example.de/a", 7*24*time.Hour))
	seen, err = st.IsURLSeen(ctx, "https://example.de/a")
	require.NoError(t, err)
	assert.True(t, seen)

	clk.Advance(7*24*time.Hour + time.Second)
	seen, err = st.IsURLSeen(ctx, "https://example.de/a")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestSQLite_QueryDone_DeleteExpired(t *testing.T) {
	st, clk := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.MarkQueryDone(ctx, "handelsvertreter nrw", 24*time.Hour))
	require.NoError(t, st.MarkURLSeen(ctx, "https://example.de/a", 7*24*time.Hour))

	done, err := st.IsQueryDone(ctx, "handelsvertreter nrw")
	require.NoError(t, err)
	assert.True(t, done)

	clk.Advance(25 * time.Hour)
	n, err := st.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	done, err = st.IsQueryDone(ctx, "handelsvertreter nrw")
	require.NoError(t, err)
	assert.False(t, done)
	seen, err := st.IsURLSeen(ctx, "https://example.de/a")
	require.NoError(t, err)
	assert.True(t, seen)
}

// --- Runs ---

func TestSQLite_Runs(t *testing.T) {
	st, clk := newTestSQLiteStore(t)
	ctx := context.Background()

	id, err := st.StartRun(ctx, model.ModeConservative, clk.Now())
	require.NoError(t, err)
	assert.Len(t, id, 36)

	runs, err := st.RecentRuns(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, runs, "running runs are not reported")

	m := model.RunMetrics{
		RunID: id, Mode: model.ModeConservative, StartedAt: clk.Now(), FinishedAt: clk.Now().Add(time.Minute),
		QueriesTotal: 4, QueriesFailed: 1, URLsFetched: 9, LeadsFound: 2, AcceptedLeads: 1,
		Status: model.RunStatusPartial,
	}
	require.NoError(t, st.FinishRun(ctx, m))

	runs, err = st.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, m, runs[0])
}

func TestSQLite_FinishRun_WithoutStart(t *testing.T) {
	st, clk := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.FinishRun(ctx, model.RunMetrics{
		RunID: "r-1", Mode: model.ModeModerate, StartedAt: clk.Now(), Status: model.RunStatusSuccess,
	}))
	runs, err := st.RecentRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].FinishedAt.IsZero())
}

// --- Dorks and host stats ---

func TestSQLite_Dorks_SaveLoad(t *testing.T) {
	st, clk := newTestSQLiteStore(t)
	ctx := context.Background()

	dorks := []model.Dork{
		{Text: "handelsvertreter nrw", Pool: model.PoolExplore},
		{Text: "\"ich suche\" vertrieb", Pool: model.PoolCore, SourceHint: "google", Industry: "energie",
			QueriesTotal: 5, AcceptedLeads: 2, Score: 0.4, LastUsedAt: clk.Now()},
	}
	require.NoError(t, st.SaveDorks(ctx, dorks))

	dorks[0].QueriesTotal = 1
	require.NoError(t, st.SaveDorks(ctx, dorks[:1]))

	got, err := st.LoadDorks(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, dorks[1], got[0])
	assert.Equal(t, 1, got[1].QueriesTotal)
	assert.True(t, got[1].LastUsedAt.IsZero())
}

func TestSQLite_IncrementHostStats(t *testing.T) {
	st, _ := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.IncrementHostStats(ctx, []model.HostStats{
		{Host: "example.de", Requests: 3, Failures: 1, LeadsFound: 1},
		{Host: "kleinanzeigen.de", Requests: 1, RateLimited: 1},
	}))
	require.NoError(t, st.IncrementHostStats(ctx, []model.HostStats{
		{Host: "example.de", Requests: 2, LeadsFound: 1},
	}))

	stats, err := st.HostStats(ctx, 10)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, model.HostStats{Host: "example.de", Requests: 5, Failures: 1, LeadsFound: 2}, stats[0])
	assert.Equal(t, 1, stats[1].RateLimited)
}

// --- Dropped URLs ---

func TestSQLite_DroppedURLs(t *testing.T) {
	st, clk := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.SaveDroppedURLs(ctx, "r-1", []resilience.DroppedURL{
		resilience.NewDroppedURL("https://example.de/a", "q", &resilience.NetworkError{URL: "https://example.de/a", Err: errors.New("reset")}, clk.Now()),
		resilience.NewDroppedURL("https://example.de/b", "q", resilience.NewRateLimitError("example.de", 429), clk.Now().Add(-48*time.Hour)),
	})
	require.NoError(t, err)

	n, err := st.CountDropped(ctx, clk.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// --- Mode state ---

func TestSQLite_ModeState(t *testing.T) {
	st, clk := newTestSQLiteStore(t)
	ctx := context.Background()

	got, err := st.LoadModeState(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	state := model.ModeState{
		Current:             model.ModeModerate,
		RunCounter:          3,
		RunsSinceTransition: 1,
		LastTransitionAt:    clk.Now(),
		Window:              []model.RunSample{{RunID: "r-3", PhoneFindRate: 0.3, ErrorRate: 0.05, URLsFetched: 10}},
	}
	tr := &model.ModeTransition{FromMode: model.ModeConservative, ToMode: model.ModeModerate, RunNumber: 3, Reason: "upgrade", At: clk.Now()}
	require.NoError(t, st.SaveModeState(ctx, state, tr))
	require.NoError(t, st.SaveModeState(ctx, state, nil))

	got, err = st.LoadModeState(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, state, *got)

	second := model.ModeTransition{FromMode: model.ModeModerate, ToMode: model.ModeConservative, RunNumber: 4, Reason: "forced", At: clk.Now()}
	require.NoError(t, st.SaveModeState(ctx, state, &second))

	trs, err := st.ListTransitions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trs, 2)
	assert.Equal(t, second, trs[0])
	assert.Equal(t, *tr, trs[1])
}
