// Package fetcher retrieves candidate pages with per-host concurrency limits,
// penalty checks, protocol fallbacks and content gating.
package fetcher

import (
	"context"
	"time"
)

// Fetcher retrieves a single page.
type Fetcher interface {
	// Fetch performs a GET for url and returns the decoded body. Errors are
	// typed by the resilience package (NetworkError, RateLimitError,
	// HTTPStatusError, PenalizedError) or wrap resilience.ErrContent.
	Fetch(ctx context.Context, url string) (*Response, error)
}

// Response is a fetched and UTF-8 decoded page.
type Response struct {
	URL         string        `json:"url"`
	FinalURL    string        `json:"final_url"`
	StatusCode  int           `json:"status_code"`
	ContentType string        `json:"content_type"`
	Protocol    string        `json:"protocol"`
	Body        []byte        `json:"-"`
	Elapsed     time.Duration `json:"elapsed"`
}

// IsHTML reports whether the response carries an HTML document.
func (r *Response) IsHTML() bool {
	return containsFold(r.ContentType, "html") || r.ContentType == ""
}
