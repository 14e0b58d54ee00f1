package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		q := r.URL.Query()
		assert.Equal(t, "test-key", q.Get("key"))
		assert.Equal(t, "cx-1", q.Get("cx"))
		assert.Equal(t, `"Handelsvertreter" NRW`, q.Get("q"))
		assert.Equal(t, "d7", q.Get("dateRestrict"))
		assert.Equal(t, "10", q.Get("num"))
		assert.Equal(t, "lang_de", q.Get("lr"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(SearchResponse{
			Items: []Item{
				{Title: "Suche neue Herausforderung", Link: "https://www.kleinanzeigen.de/s-anzeige/123", Snippet: "Ich suche ab sofort"},
				{Title: "Kontakt", Link: "https://vertrieb-mueller.de/kontakt"},
			},
			SearchInformation: SearchInformation{TotalResults: "2"},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", "cx-1", WithBaseURL(srv.URL))
	resp, err := client.Search(context.Background(), SearchRequest{
		Query:        `"Handelsvertreter" NRW`,
		DateRestrict: "d7",
		Num:          25,
		Language:     "lang_de",
	})

	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "https://www.kleinanzeigen.de/s-anzeige/123", resp.Items[0].Link)
	assert.Equal(t, "Ich suche ab sofort", resp.Items[0].Snippet)
	assert.Equal(t, "2", resp.SearchInformation.TotalResults)
}

func TestSearch_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"searchInformation":{"totalResults":"0"}}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", "cx", WithBaseURL(srv.URL))
	resp, err := client.Search(context.Background(), SearchRequest{Query: "nichts"})

	require.NoError(t, err)
	assert.Empty(t, resp.Items)
}

func TestSearch_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "Quota exceeded"}}`))
	}))
	defer srv.Close()

	client := NewClient("key", "cx", WithBaseURL(srv.URL))
	resp, err := client.Search(context.Background(), SearchRequest{Query: "test"})

	require.Error(t, err)
	assert.Nil(t, resp)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "429")
}

func TestSearch_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("key", "cx", WithBaseURL(srv.URL))
	resp, err := client.Search(ctx, SearchRequest{Query: "test"})

	assert.Error(t, err)
	assert.Nil(t, resp)
}

func TestSearch_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	client := NewClient("key", "cx", WithBaseURL(srv.URL))
	_, err := client.Search(context.Background(), SearchRequest{Query: "test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}
