package resilience

import (
	"errors"
	"time"
)

// Error kinds recorded on dropped URLs.
const (
	KindNetwork    = "network"
	KindRateLimit  = "rate_limit"
	KindHTTPStatus = "http_status"
	KindPenalized  = "penalized"
	KindContent    = "content"
	KindInternal   = "internal"
)

// DroppedURL records a URL that could not be processed during a run.
type DroppedURL struct {
	URL        string    `json:"url"`
	Query      string    `json:"query,omitempty"`
	Host       string    `json:"host"`
	RunID      string    `json:"run_id,omitempty"`
	Error      string    `json:"error"`
	Kind       string    `json:"kind"`
	StatusCode int       `json:"status_code,omitempty"`
	DroppedAt  time.Time `json:"dropped_at"`
}

// NewDroppedURL builds a DroppedURL from a fetch or processing error.
func NewDroppedURL(rawURL, query string, err error, at time.Time) DroppedURL {
	d := DroppedURL{
		URL:       rawURL,
		Query:     query,
		Host:      HostKey(rawURL),
		Kind:      ClassifyError(err),
		DroppedAt: at,
	}
	if err != nil {
		d.Error = err.Error()
	}
	var rl *RateLimitError
	var hs *HTTPStatusError
	switch {
	case errors.As(err, &rl):
		d.StatusCode = rl.StatusCode
	case errors.As(err, &hs):
		d.StatusCode = hs.StatusCode
	}
	return d
}

// ClassifyError maps an error onto one of the Kind constants.
func ClassifyError(err error) string {
	var hs *HTTPStatusError
	switch {
	case IsPenalized(err):
		return KindPenalized
	case IsRateLimit(err):
		return KindRateLimit
	case errors.As(err, &hs):
		return KindHTTPStatus
	case IsNetwork(err), IsTransient(err):
		return KindNetwork
	case errors.Is(err, ErrContent):
		return KindContent
	default:
		return KindInternal
	}
}

// ErrContent is wrapped by fetch errors caused by a rejected content type
// or an oversized body.
var ErrContent = errors.New("content rejected")
