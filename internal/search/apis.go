package search

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-scout/internal/model"
	"github.com/sells-group/lead-scout/internal/resilience"
	"github.com/sells-group/lead-scout/pkg/google"
	"github.com/sells-group/lead-scout/pkg/jina"
)

// GoogleEngine searches via the Custom Search JSON API.
type GoogleEngine struct {
	client google.Client
	host   string
}

// NewGoogleEngine wraps client. baseURL is used only to derive the host
// for penalties; empty means googleapis.com.
func NewGoogleEngine(client google.Client, baseURL string) *GoogleEngine {
	return &GoogleEngine{client: client, host: hostOf(baseURL, "www.googleapis.com")}
}

// Name implements Engine.
func (g *GoogleEngine) Name() string { return "google" }

// Host implements Engine.
func (g *GoogleEngine) Host() string { return g.host }

// Search implements Engine.
func (g *GoogleEngine) Search(ctx context.Context, q Query) ([]model.SearchResult, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	resp, err := g.client.Search(ctx, google.SearchRequest{
		Query:        q.Text,
		DateRestrict: q.DateRestrict,
		Num:          limit,
		Language:     "lang_de",
	})
	if err != nil {
		var apiErr *google.APIError
		if errors.As(err, &apiErr) && resilience.IsRateLimitStatus(apiErr.StatusCode) {
			return nil, resilience.NewRateLimitError(g.host, apiErr.StatusCode)
		}
		return nil, eris.Wrap(err, "search: google")
	}

	results := make([]model.SearchResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Link == "" {
			continue
		}
		results = append(results, model.SearchResult{
			URL:     item.Link,
			Source:  g.Name(),
			Title:   item.Title,
			Snippet: item.Snippet,
		})
	}
	return results, nil
}

// JinaEngine searches via s.jina.ai.
type JinaEngine struct {
	client jina.Client
	host   string
}

// NewJinaEngine wraps client.
func NewJinaEngine(client jina.Client, baseURL string) *JinaEngine {
	return &JinaEngine{client: client, host: hostOf(baseURL, "s.jina.ai")}
}

// Name implements Engine.
func (j *JinaEngine) Name() string { return "jina" }

// Host implements Engine.
func (j *JinaEngine) Host() string { return j.host }

// Search implements Engine. Jina has no date filter; DateRestrict is
// ignored.
func (j *JinaEngine) Search(ctx context.Context, q Query) ([]model.SearchResult, error) {
	resp, err := j.client.Search(ctx, q.Text, jina.WithCountry("DE"))
	if err != nil {
		var apiErr *jina.APIError
		if errors.As(err, &apiErr) && resilience.IsRateLimitStatus(apiErr.StatusCode) {
			return nil, resilience.NewRateLimitError(j.host, apiErr.StatusCode)
		}
		return nil, eris.Wrap(err, "search: jina")
	}

	results := make([]model.SearchResult, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.URL == "" {
			continue
		}
		snippet := d.Description
		if snippet == "" {
			snippet = truncate(d.Content, 300)
		}
		results = append(results, model.SearchResult{
			URL:     d.URL,
			Source:  j.Name(),
			Title:   d.Title,
			Snippet: snippet,
		})
		if q.Limit > 0 && len(results) >= q.Limit {
			break
		}
	}
	return results, nil
}

func hostOf(rawURL, fallback string) string {
	if rawURL == "" {
		return fallback
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return fallback
	}
	return resilience.HostKey(u.Host)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
