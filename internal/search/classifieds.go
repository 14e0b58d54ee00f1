package search

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-scout/internal/fetcher"
	"github.com/sells-group/lead-scout/internal/model"
)

// ClassifiedsEngine crawls the job-seeker category of a classifieds site
// directly. It is a last-resort engine.
type ClassifiedsEngine struct {
	fetch    fetcher.Fetcher
	baseURL  string
	category string
	maxPages int
}

// NewClassifiedsEngine creates the engine. Pages are fetched through f so
// the shared limiter and penalties apply.
func NewClassifiedsEngine(f fetcher.Fetcher, baseURL, category string, maxPages int) *ClassifiedsEngine {
	if baseURL == "" {
		baseURL = "https://www.kleinanzeigen.de"
	}
	if category == "" {
		category = "s-stellengesuche"
	}
	if maxPages <= 0 {
		maxPages = 1
	}
	return &ClassifiedsEngine{
		fetch:    f,
		baseURL:  strings.TrimRight(baseURL, "/"),
		category: strings.Trim(category, "/"),
		maxPages: maxPages,
	}
}

// Name implements Engine.
func (c *ClassifiedsEngine) Name() string { return "classifieds" }

// Host implements Engine.
func (c *ClassifiedsEngine) Host() string { return hostOf(c.baseURL, "www.kleinanzeigen.de") }

// LastResort implements LastResort.
func (c *ClassifiedsEngine) LastResort() bool { return true }

// listingURL builds e.g. /s-stellengesuche/seite:2/vertrieb-nrw/k0.
func (c *ClassifiedsEngine) listingURL(terms []string, page int) string {
	slug := url.PathEscape(strings.Join(terms, "-"))
	if page <= 1 {
		return fmt.Sprintf("%s/%s/%s/k0", c.baseURL, c.category, slug)
	}
	return fmt.Sprintf("%s/%s/seite:%d/%s/k0", c.baseURL, c.category, page, slug)
}

// Search implements Engine.
func (c *ClassifiedsEngine) Search(ctx context.Context, q Query) ([]model.SearchResult, error) {
	terms := keywords(q.Text)
	if len(terms) == 0 {
		return nil, nil
	}

	var results []model.SearchResult
	for page := 1; page <= c.maxPages; page++ {
		resp, err := c.fetch.Fetch(ctx, c.listingURL(terms, page))
		if err != nil {
			if page > 1 {
				zap.L().Debug("search: classifieds page failed", zap.Int("page", page), zap.Error(err))
				break
			}
			return nil, eris.Wrap(err, "search: classifieds listing")
		}
		pageResults, err := c.parseListing(resp.Body)
		if err != nil {
			return nil, err
		}
		results = append(results, pageResults...)
		if len(pageResults) == 0 || (q.Limit > 0 && len(results) >= q.Limit) {
			break
		}
	}
	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

func (c *ClassifiedsEngine) parseListing(body []byte) ([]model.SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "search: classifieds parse html")
	}

	var results []model.SearchResult
	doc.Find("article.aditem").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("data-href")
		if !ok || href == "" {
			href, _ = s.Find("a.ellipsis, h2 a").First().Attr("href")
		}
		if href == "" {
			return
		}
		if strings.HasPrefix(href, "/") {
			href = c.baseURL + href
		}
		title := strings.TrimSpace(s.Find("h2").First().Text())
		snippet := strings.TrimSpace(s.Find(".aditem-main--middle--description").First().Text())
		results = append(results, model.SearchResult{
			URL:     href,
			Source:  c.Name(),
			Title:   title,
			Snippet: snippet,
		})
	})
	return results, nil
}
