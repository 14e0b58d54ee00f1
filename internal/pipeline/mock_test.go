package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/lead-scout/internal/extract"
	"github.com/sells-group/lead-scout/internal/fetcher"
	"github.com/sells-group/lead-scout/internal/model"
	"github.com/sells-group/lead-scout/internal/resilience"
	"github.com/sells-group/lead-scout/internal/search"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) InsertLeads(ctx context.Context, leads []model.Lead) ([]string, error) {
	args := m.Called(ctx, leads)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockStore) LeadExists(ctx context.Context, phone, email string) (bool, error) {
	args := m.Called(ctx, phone, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) IsURLSeen(ctx context.Context, url string) (bool, error) {
	args := m.Called(ctx, url)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) MarkURLSeen(ctx context.Context, url string, ttl time.Duration) error {
	return m.Called(ctx, url, ttl).Error(0)
}

func (m *mockStore) IsQueryDone(ctx context.Context, query string) (bool, error) {
	args := m.Called(ctx, query)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) MarkQueryDone(ctx context.Context, query string, ttl time.Duration) error {
	return m.Called(ctx, query, ttl).Error(0)
}

func (m *mockStore) StartRun(ctx context.Context, mode string, startedAt time.Time) (string, error) {
	args := m.Called(ctx, mode, startedAt)
	return args.String(0), args.Error(1)
}

func (m *mockStore) FinishRun(ctx context.Context, rm model.RunMetrics) error {
	return m.Called(ctx, rm).Error(0)
}

func (m *mockStore) SaveDorks(ctx context.Context, dorks []model.Dork) error {
	return m.Called(ctx, dorks).Error(0)
}

func (m *mockStore) IncrementHostStats(ctx context.Context, stats []model.HostStats) error {
	return m.Called(ctx, stats).Error(0)
}

func (m *mockStore) SaveDroppedURLs(ctx context.Context, runID string, dropped []resilience.DroppedURL) error {
	return m.Called(ctx, runID, dropped).Error(0)
}

func (m *mockStore) LoadDorks(ctx context.Context) ([]model.Dork, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Dork), args.Error(1)
}

// --- Search Engine Fake ---

type fakeEngine struct {
	name    string
	host    string
	results []model.SearchResult
	err     error

	mu    sync.Mutex
	calls int
}

func (e *fakeEngine) Name() string { return e.name }
func (e *fakeEngine) Host() string { return e.host }

func (e *fakeEngine) Search(_ context.Context, _ search.Query) ([]model.SearchResult, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([]model.SearchResult, len(e.results))
	copy(out, e.results)
	return out, nil
}

func (e *fakeEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// --- Fetcher Fake ---

type fakePage struct {
	body string
	err  error
	hang bool
}

type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]fakePage
	fetched []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: make(map[string]fakePage)}
}

func (f *fakeFetcher) page(url, body string) {
	f.pages[url] = fakePage{body: body}
}

func (f *fakeFetcher) fail(url string, err error) {
	f.pages[url] = fakePage{err: err}
}

// hang makes fetches of url block until their context ends.
func (f *fakeFetcher) hang(url string) {
	f.pages[url] = fakePage{hang: true}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*fetcher.Response, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, url)
	p, ok := f.pages[url]
	f.mu.Unlock()
	if !ok {
		return nil, &resilience.HTTPStatusError{URL: url, StatusCode: 404}
	}
	if p.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if p.err != nil {
		return nil, p.err
	}
	return &fetcher.Response{
		URL:         url,
		FinalURL:    url,
		StatusCode:  200,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(p.body),
	}, nil
}

func (f *fakeFetcher) Count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.fetched {
		if u == url {
			n++
		}
	}
	return n
}

func (f *fakeFetcher) Fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.fetched))
	copy(out, f.fetched)
	return out
}

// --- Extractor that panics on one URL ---

type panicExtractor struct {
	inner   extract.Extractor
	panicOn string
}

func (p *panicExtractor) Extract(resp *fetcher.Response, hit model.SearchResult) (*extract.Candidate, error) {
	if resp.URL == p.panicOn {
		panic("extractor exploded")
	}
	return p.inner.Extract(resp, hit)
}
