package search

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// trackingParams are dropped during normalization. Keys ending in "*" are
// prefixes.
var trackingParams = []string{"utm_*", "gclid", "fbclid", "msclkid", "mc_cid", "mc_eid"}

// NormalizeURL canonicalizes a URL for deduplication: lowercase scheme and
// host, no "www." prefix, no default port, no fragment, no tracking
// parameters, sorted query parameters and no trailing slash.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", eris.Wrapf(err, "search: parse url %q", raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", eris.Errorf("search: unsupported scheme in %q", raw)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", eris.Errorf("search: missing host in %q", raw)
	}
	host = strings.TrimPrefix(host, "www.")
	if port := u.Port(); port != "" && !(u.Scheme == "http" && port == "80") && !(u.Scheme == "https" && port == "443") {
		host += ":" + port
	}
	u.Host = host
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""

	q := u.Query()
	for key := range q {
		if isTrackingParam(key) {
			q.Del(key)
		}
	}
	// Encode sorts by key.
	u.RawQuery = q.Encode()

	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""

	return u.String(), nil
}

func isTrackingParam(key string) bool {
	key = strings.ToLower(key)
	for _, p := range trackingParams {
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			if strings.HasPrefix(key, prefix) {
				return true
			}
		} else if key == p {
			return true
		}
	}
	return false
}

// NormalizeQuery collapses whitespace and lowercases a query for use as a
// cache key.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
