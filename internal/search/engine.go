// Package search runs dork queries across a fallback chain of search
// backends and merges, normalizes and ranks the candidate URLs.
package search

import (
	"context"
	"strings"

	"github.com/sells-group/lead-scout/internal/model"
)

// Query is a single search request.
type Query struct {
	Text string
	// SourceHint moves the named engine to the front of the chain.
	SourceHint string
	// DateRestrict limits result age, e.g. "d7", "w2", "m1".
	DateRestrict string
	// Limit caps results per engine. Zero uses the engine default.
	Limit int
}

// Engine is a single search backend.
type Engine interface {
	// Name identifies the engine in config and metrics.
	Name() string
	// Host is the remote host the engine talks to, used for penalties.
	Host() string
	// Search returns candidate URLs. Rate limits are reported as
	// *resilience.RateLimitError.
	Search(ctx context.Context, q Query) ([]model.SearchResult, error)
}

// LastResort is implemented by engines that may only fire after every
// regular engine underperformed.
type LastResort interface {
	LastResort() bool
}

func isLastResort(e Engine) bool {
	lr, ok := e.(LastResort)
	return ok && lr.LastResort()
}

// keywords strips search operators (site:, intitle:, quotes, OR) from a
// dork and returns the plain terms.
func keywords(dork string) []string {
	var out []string
	for _, f := range strings.Fields(dork) {
		if strings.Contains(f, ":") || f == "OR" || f == "AND" || strings.HasPrefix(f, "-") {
			continue
		}
		f = strings.Trim(f, `"'()`)
		if f != "" {
			out = append(out, strings.ToLower(f))
		}
	}
	return out
}

// dateRestrictDays converts a "d7"/"w2"/"m1"/"y1" restriction to days.
func dateRestrictDays(dr string) int {
	if len(dr) < 2 {
		return 0
	}
	n := 0
	for _, r := range dr[1:] {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	switch dr[0] {
	case 'd':
		return n
	case 'w':
		return n * 7
	case 'm':
		return n * 31
	case 'y':
		return n * 365
	}
	return 0
}
