package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-scout/internal/dedup"
	"github.com/sells-group/lead-scout/internal/model"
	"github.com/sells-group/lead-scout/internal/resilience"
)

func newTracker() *resilience.HostPenaltyTracker {
	return resilience.NewHostPenaltyTracker(resilience.DefaultPenaltyConfig())
}

func TestSearch_PrimarySufficient(t *testing.T) {
	primary := &mockEngine{name: "google", host: "www.googleapis.com", results: urls("a.de", 6)}
	secondary := &mockEngine{name: "duckduckgo", host: "html.duckduckgo.com", results: urls("b.de", 6)}

	o := NewOrchestrator([]Engine{primary, secondary}, newTracker(), nil, Options{MinResults: 5})
	out, err := o.Search(context.Background(), Query{Text: "Handelsvertreter NRW"})
	require.NoError(t, err)

	assert.Len(t, out.Results, 6)
	assert.Equal(t, []string{"google"}, out.Fired)
	assert.Equal(t, int32(0), secondary.calls.Load())
	assert.Equal(t, "google", out.Results[0].Source)
}

func TestSearch_EscalatesOnFewResults(t *testing.T) {
	primary := &mockEngine{name: "google", host: "www.googleapis.com", results: urls("a.de", 2)}
	secondary := &mockEngine{name: "duckduckgo", host: "html.duckduckgo.com", results: urls("b.de", 6)}

	o := NewOrchestrator([]Engine{primary, secondary}, newTracker(), nil, Options{MinResults: 5})
	out, err := o.Search(context.Background(), Query{Text: "q"})
	require.NoError(t, err)

	assert.Equal(t, []string{"google", "duckduckgo"}, out.Fired)
	assert.Len(t, out.Results, 8)
}

func TestSearch_EscalatesOnRateLimitAndPenalizes(t *testing.T) {
	tracker := newTracker()
	primary := &mockEngine{name: "google", host: "www.googleapis.com", err: resilience.NewRateLimitError("www.googleapis.com", 429)}
	secondary := &mockEngine{name: "duckduckgo", host: "html.duckduckgo.com", results: urls("b.de", 5)}

	o := NewOrchestrator([]Engine{primary, secondary}, tracker, nil, Options{MinResults: 5})
	out, err := o.Search(context.Background(), Query{Text: "q"})
	require.NoError(t, err)

	assert.Equal(t, []string{"google", "duckduckgo"}, out.Fired)
	assert.Equal(t, []string{"google"}, out.RateLimited)
	assert.False(t, tracker.IsAllowed("www.googleapis.com"))

	// Second query skips the penalized engine entirely.
	out, err = o.Search(context.Background(), Query{Text: "other"})
	require.NoError(t, err)
	assert.Equal(t, []string{"duckduckgo"}, out.Fired)
	assert.Equal(t, int32(1), primary.calls.Load())
}

func TestSearch_SourceHintMovesEngineFirst(t *testing.T) {
	google := &mockEngine{name: "google", host: "g", results: urls("a.de", 5)}
	ddg := &mockEngine{name: "duckduckgo", host: "d", results: urls("b.de", 5)}

	o := NewOrchestrator([]Engine{google, ddg}, newTracker(), nil, Options{MinResults: 5})
	out, err := o.Search(context.Background(), Query{Text: "q", SourceHint: "duckduckgo"})
	require.NoError(t, err)
	assert.Equal(t, []string{"duckduckgo"}, out.Fired)
	assert.Equal(t, int32(0), google.calls.Load())
}

func TestSearch_LastResortOnlyWhenAllUnderperform(t *testing.T) {
	classifieds := lastResortEngine{&mockEngine{name: "classifieds", host: "c", results: urls("c.de", 3)}}
	google := &mockEngine{name: "google", host: "g", results: urls("a.de", 1)}
	ddg := &mockEngine{name: "duckduckgo", host: "d", results: urls("b.de", 5)}

	// Configured first, but always runs last.
	o := NewOrchestrator([]Engine{classifieds, google, ddg}, newTracker(), nil, Options{MinResults: 5})
	assert.Equal(t, []string{"google", "duckduckgo", "classifieds"}, o.Engines())

	out, err := o.Search(context.Background(), Query{Text: "q"})
	require.NoError(t, err)
	assert.Equal(t, []string{"google", "duckduckgo"}, out.Fired)
	assert.Equal(t, int32(0), classifieds.calls.Load())

	// A hint cannot promote the last-resort engine.
	ddg.results = urls("b.de", 0)
	out, err = o.Search(context.Background(), Query{Text: "q2", SourceHint: "classifieds"})
	require.NoError(t, err)
	assert.Equal(t, []string{"google", "duckduckgo", "classifieds"}, out.Fired)
	assert.Len(t, out.Results, 4)
}

func TestSearch_AllEnginesFail(t *testing.T) {
	a := &mockEngine{name: "google", host: "g", err: errors.New("boom")}
	b := &mockEngine{name: "duckduckgo", host: "d", err: resilience.NewRateLimitError("d", 503)}

	o := NewOrchestrator([]Engine{a, b}, newTracker(), nil, Options{})
	_, err := o.Search(context.Background(), Query{Text: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all engines failed")
}

func TestSearch_ZeroResultsIsNotAnError(t *testing.T) {
	a := &mockEngine{name: "google", host: "g"}
	o := NewOrchestrator([]Engine{a}, newTracker(), nil, Options{})
	out, err := o.Search(context.Background(), Query{Text: "q"})
	require.NoError(t, err)
	assert.Empty(t, out.Results)
}

func TestSearch_AllPenalized(t *testing.T) {
	tracker := newTracker()
	tracker.Penalize("g")
	a := &mockEngine{name: "google", host: "g", results: urls("a.de", 5)}

	o := NewOrchestrator([]Engine{a}, tracker, nil, Options{})
	_, err := o.Search(context.Background(), Query{Text: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no engine available")
	assert.Equal(t, int32(0), a.calls.Load())
}

func TestSearch_MergeDedupAndRank(t *testing.T) {
	google := &mockEngine{name: "google", host: "g", results: []model.SearchResult{
		{URL: "https://www.example.de/impressum"},
		{URL: "https://example.de/blog/post-1?utm_source=x"},
		{URL: "https://www.kleinanzeigen.de/s-anzeige/vertrieb/123"},
	}}
	ddg := &mockEngine{name: "duckduckgo", host: "d", results: []model.SearchResult{
		{URL: "https://example.de/blog/post-1/#comments"},
		{URL: "https://handel-mueller.de/kontakt/"},
		{URL: "https://EXAMPLE.de/impressum"},
	}}

	o := NewOrchestrator([]Engine{google, ddg}, newTracker(), nil, Options{
		MinResults:    10,
		PositiveHints: []string{"/s-anzeige/*", "/kontakt*"},
		NegativeHints: []string{"/impressum*"},
	})
	out, err := o.Search(context.Background(), Query{Text: "q"})
	require.NoError(t, err)

	assert.Equal(t, 6, out.Raw)
	var got []string
	for _, r := range out.Results {
		got = append(got, r.URL)
	}
	assert.Equal(t, []string{
		"https://www.kleinanzeigen.de/s-anzeige/vertrieb/123",
		"https://handel-mueller.de/kontakt/",
		"https://example.de/blog/post-1?utm_source=x",
		"https://www.example.de/impressum",
	}, got)
}

func TestSearch_MaxResults(t *testing.T) {
	a := &mockEngine{name: "google", host: "g", results: urls("a.de", 10)}
	o := NewOrchestrator([]Engine{a}, newTracker(), nil, Options{MaxResults: 4})
	out, err := o.Search(context.Background(), Query{Text: "q"})
	require.NoError(t, err)
	assert.Len(t, out.Results, 4)
}

func TestSearch_QueryCache(t *testing.T) {
	clock := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	cache := dedup.New(dedup.DefaultConfig(), dedup.WithNow(func() time.Time { return clock }))
	a := &mockEngine{name: "google", host: "g", results: urls("a.de", 5)}

	o := NewOrchestrator([]Engine{a}, newTracker(), cache, Options{})
	_, err := o.Search(context.Background(), Query{Text: "Vertrieb  NRW", DateRestrict: "d7"})
	require.NoError(t, err)

	out, err := o.Search(context.Background(), Query{Text: "vertrieb nrw", DateRestrict: "d7"})
	require.NoError(t, err)
	assert.True(t, out.Cached)
	assert.Len(t, out.Results, 5)
	assert.Equal(t, int32(1), a.calls.Load())

	// A different date restriction is a different cache entry.
	_, err = o.Search(context.Background(), Query{Text: "vertrieb nrw", DateRestrict: "m1"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), a.calls.Load())
}

func TestSearch_HandelsvertreterScenario(t *testing.T) {
	// Two backends return 12 URLs in total, 3 of which collapse after
	// normalization.
	google := &mockEngine{name: "google", host: "g", results: []model.SearchResult{
		{URL: "https://www.kleinanzeigen.de/s-anzeige/handelsvertreter-sucht/1"},
		{URL: "https://vertrieb-nrw.de/kontakt"},
		{URL: "https://example.de/profil/max"},
		{URL: "https://hv-koeln.de/"},
	}}
	ddg := &mockEngine{name: "duckduckgo", host: "d", results: []model.SearchResult{
		{URL: "https://kleinanzeigen.de/s-anzeige/handelsvertreter-sucht/1#top"},
		{URL: "https://vertrieb-nrw.de/kontakt/?utm_campaign=x"},
		{URL: "https://www.hv-koeln.de"},
		{URL: "https://agentur-a.de/ueber-mich"},
		{URL: "https://agentur-b.de/team"},
		{URL: "https://agentur-c.de/"},
		{URL: "https://agentur-d.de/kontakt"},
		{URL: "https://agentur-e.de/profile/x"},
	}}

	o := NewOrchestrator([]Engine{google, ddg}, newTracker(), nil, Options{MinResults: 5})
	out, err := o.Search(context.Background(), Query{Text: "Handelsvertreter NRW"})
	require.NoError(t, err)

	assert.Equal(t, 12, out.Raw)
	assert.Len(t, out.Results, 9)
}
