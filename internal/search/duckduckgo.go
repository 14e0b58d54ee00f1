package search

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-scout/internal/model"
	"github.com/sells-group/lead-scout/internal/resilience"
)

// DuckDuckGoEngine scrapes the DuckDuckGo HTML endpoint.
type DuckDuckGoEngine struct {
	baseURL   string
	region    string
	userAgent string
	maxBody   int64
	http      *http.Client
}

// DuckDuckGoOption configures a DuckDuckGoEngine.
type DuckDuckGoOption func(*DuckDuckGoEngine)

// WithDuckDuckGoHTTPClient overrides the http.Client.
func WithDuckDuckGoHTTPClient(hc *http.Client) DuckDuckGoOption {
	return func(d *DuckDuckGoEngine) { d.http = hc }
}

// WithDuckDuckGoUserAgent sets the User-Agent header.
func WithDuckDuckGoUserAgent(ua string) DuckDuckGoOption {
	return func(d *DuckDuckGoEngine) { d.userAgent = ua }
}

// WithDuckDuckGoMaxBodyBytes caps the result page size. Larger pages are
// rejected with resilience.ErrContent.
func WithDuckDuckGoMaxBodyBytes(n int64) DuckDuckGoOption {
	return func(d *DuckDuckGoEngine) {
		if n > 0 {
			d.maxBody = n
		}
	}
}

// NewDuckDuckGoEngine creates the engine. region is the kl parameter,
// e.g. "de-de".
func NewDuckDuckGoEngine(baseURL, region string, opts ...DuckDuckGoOption) *DuckDuckGoEngine {
	if baseURL == "" {
		baseURL = "https://html.duckduckgo.com/html/"
	}
	d := &DuckDuckGoEngine{
		baseURL:   baseURL,
		region:    region,
		userAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
		maxBody:   2 << 20,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Name implements Engine.
func (d *DuckDuckGoEngine) Name() string { return "duckduckgo" }

// Host implements Engine.
func (d *DuckDuckGoEngine) Host() string { return hostOf(d.baseURL, "html.duckduckgo.com") }

// Search implements Engine.
func (d *DuckDuckGoEngine) Search(ctx context.Context, q Query) ([]model.SearchResult, error) {
	params := url.Values{}
	params.Set("q", q.Text)
	if d.region != "" {
		params.Set("kl", d.region)
	}
	if df := ddgDateFilter(q.DateRestrict); df != "" {
		params.Set("df", df)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "search: duckduckgo create request")
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9")

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "search: duckduckgo send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resilience.IsRateLimitStatus(resp.StatusCode) {
		return nil, resilience.NewRateLimitError(d.Host(), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("search: duckduckgo unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBody+1))
	if err != nil {
		return nil, eris.Wrap(err, "search: duckduckgo read body")
	}
	if int64(len(raw)) > d.maxBody {
		return nil, fmt.Errorf("search: duckduckgo %w: body exceeds %d bytes", resilience.ErrContent, d.maxBody)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, eris.Wrap(err, "search: duckduckgo parse html")
	}
	// DuckDuckGo answers bot suspicion with a 200 challenge page.
	if doc.Find("form#challenge-form, .anomaly-modal__title").Length() > 0 {
		return nil, resilience.NewRateLimitError(d.Host(), http.StatusTooManyRequests)
	}

	return parseDDGResults(doc, d.Name(), q.Limit), nil
}

func parseDDGResults(doc *goquery.Document, source string, limit int) []model.SearchResult {
	var results []model.SearchResult
	doc.Find(".result").Each(func(_ int, s *goquery.Selection) {
		if limit > 0 && len(results) >= limit {
			return
		}
		if s.HasClass("result--ad") {
			return
		}
		a := s.Find("a.result__a").First()
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		target := unwrapDDGRedirect(href)
		if target == "" {
			return
		}
		results = append(results, model.SearchResult{
			URL:     target,
			Source:  source,
			Title:   strings.TrimSpace(a.Text()),
			Snippet: strings.TrimSpace(s.Find(".result__snippet").First().Text()),
		})
	})
	return results
}

// unwrapDDGRedirect extracts the target of a "//duckduckgo.com/l/?uddg=..."
// link. Direct links are returned unchanged.
func unwrapDDGRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if strings.HasSuffix(u.Hostname(), "duckduckgo.com") {
		return ""
	}
	return href
}

// ddgDateFilter maps a dateRestrict value onto DuckDuckGo's df parameter.
func ddgDateFilter(dr string) string {
	days := dateRestrictDays(dr)
	switch {
	case days <= 0:
		return ""
	case days <= 1:
		return "d"
	case days <= 7:
		return "w"
	case days <= 31:
		return "m"
	default:
		return "y"
	}
}
