package search

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sells-group/lead-scout/internal/fetcher"
	"github.com/sells-group/lead-scout/internal/model"
)

// mockEngine returns canned results or an error.
type mockEngine struct {
	name       string
	host       string
	results    []model.SearchResult
	err        error
	lastResort bool
	calls      atomic.Int32
}

func (m *mockEngine) Name() string { return m.name }
func (m *mockEngine) Host() string { return m.host }

func (m *mockEngine) Search(_ context.Context, _ Query) ([]model.SearchResult, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	out := make([]model.SearchResult, len(m.results))
	copy(out, m.results)
	return out, nil
}

type lastResortEngine struct{ *mockEngine }

func (l lastResortEngine) LastResort() bool { return true }

func urls(host string, n int) []model.SearchResult {
	out := make([]model.SearchResult, n)
	for i := range out {
		out[i] = model.SearchResult{URL: fmt.Sprintf("https://%s/page-%d", host, i)}
	}
	return out
}

// mockFetcher serves bodies by URL.
type mockFetcher struct {
	bodies map[string]string
	err    error
	calls  []string
}

func (m *mockFetcher) Fetch(_ context.Context, rawURL string) (*fetcher.Response, error) {
	m.calls = append(m.calls, rawURL)
	if m.err != nil {
		return nil, m.err
	}
	body, ok := m.bodies[rawURL]
	if !ok {
		return nil, fmt.Errorf("no body for %s", rawURL)
	}
	return &fetcher.Response{URL: rawURL, FinalURL: rawURL, StatusCode: 200, ContentType: "text/html", Body: []byte(body)}, nil
}
