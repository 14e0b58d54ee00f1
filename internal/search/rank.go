package search

import (
	"net/url"
	"path"
	"slices"
	"strings"

	"github.com/sells-group/lead-scout/internal/model"
)

// Ranker orders results by glob-style path hints. Positive hints move a
// URL to the front (earlier hints first), negative hints move it to the
// back (earlier hints last). Ties keep discovery order.
type Ranker struct {
	positive []string
	negative []string
}

// NewRanker creates a Ranker. Patterns are lowercased.
func NewRanker(positive, negative []string) *Ranker {
	lower := func(in []string) []string {
		out := make([]string, len(in))
		for i, p := range in {
			out[i] = strings.ToLower(p)
		}
		return out
	}
	return &Ranker{positive: lower(positive), negative: lower(negative)}
}

// rank returns a sort key: negative for positive hints, 0 for neutral
// URLs and positive for negative hints.
func (r *Ranker) rank(rawURL string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return len(r.negative) + 1
	}
	p := strings.TrimRight(strings.ToLower(u.Path), "/")
	for i, pattern := range r.positive {
		if matchSegmented(pattern, p) {
			return i - len(r.positive)
		}
	}
	for i, pattern := range r.negative {
		if matchSegmented(pattern, p) {
			return len(r.negative) - i
		}
	}
	return 0
}

// Sort stable-sorts results in place.
func (r *Ranker) Sort(results []model.SearchResult) {
	keys := make(map[string]int, len(results))
	for _, res := range results {
		keys[res.URL] = r.rank(res.URL)
	}
	slices.SortStableFunc(results, func(a, b model.SearchResult) int {
		return keys[a.URL] - keys[b.URL]
	})
}

// matchSegmented performs glob matching where a pattern like "/jobs/*"
// matches both "/jobs/123" and "/jobs/a/b/c".
func matchSegmented(pattern, urlPath string) bool {
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/") {
			return true
		}
	}
	return false
}
