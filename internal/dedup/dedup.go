// Package dedup holds the TTL-bounded in-memory caches that give the run
// at-most-once semantics for URLs, phone numbers, emails and queries.
package dedup

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/lead-scout/internal/config"
	"github.com/sells-group/lead-scout/internal/model"
)

// Namespace separates the key spaces of the store.
type Namespace string

const (
	NSURL       Namespace = "url"
	NSPhone     Namespace = "phone"
	NSEmail     Namespace = "email"
	NSQueryDone Namespace = "query_done"
)

// Key addresses one entry of a namespace.
type Key struct {
	NS    Namespace
	Value string
}

// Config holds the TTLs of the caches.
type Config struct {
	URLTTL        time.Duration // also used for phones and emails
	QueryDoneTTL  time.Duration
	QueryCacheTTL time.Duration
}

// DefaultConfig returns 7d for seen URLs, 24h for completed queries and
// 36h for cached query results.
func DefaultConfig() Config {
	return Config{
		URLTTL:        7 * 24 * time.Hour,
		QueryDoneTTL:  24 * time.Hour,
		QueryCacheTTL: 36 * time.Hour,
	}
}

// FromConfig converts the hour-based TTLs of the dedup config section.
func FromConfig(c config.DedupConfig) Config {
	return Config{
		URLTTL:        time.Duration(c.URLTTLHours) * time.Hour,
		QueryDoneTTL:  time.Duration(c.QueryDoneTTLHours) * time.Hour,
		QueryCacheTTL: time.Duration(c.QueryCacheTTLHours) * time.Hour,
	}
}

// URLTTL returns the TTL of seen URLs, phones and emails.
func (s *Store) URLTTL() time.Duration {
	return s.cfg.URLTTL
}

// QueryDoneTTL returns the TTL of completed queries.
func (s *Store) QueryDoneTTL() time.Duration {
	return s.cfg.QueryDoneTTL
}

type resultEntry struct {
	results   []model.SearchResult
	expiresAt time.Time
}

// Store is safe for concurrent use. Expired entries are evicted lazily on
// lookup and by Sweep.
type Store struct {
	mu      sync.Mutex
	cfg     Config
	sets    map[Namespace]map[string]time.Time
	results map[string]resultEntry
	nowFunc func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithNow overrides the clock.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.nowFunc = now }
}

// New creates an empty Store. Zero TTLs fall back to DefaultConfig.
func New(cfg Config, opts ...Option) *Store {
	def := DefaultConfig()
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = def.URLTTL
	}
	if cfg.QueryDoneTTL <= 0 {
		cfg.QueryDoneTTL = def.QueryDoneTTL
	}
	if cfg.QueryCacheTTL <= 0 {
		cfg.QueryCacheTTL = def.QueryCacheTTL
	}
	s := &Store{
		cfg:     cfg,
		sets:    make(map[Namespace]map[string]time.Time),
		results: make(map[string]resultEntry),
		nowFunc: time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) ttl(ns Namespace) time.Duration {
	if ns == NSQueryDone {
		return s.cfg.QueryDoneTTL
	}
	return s.cfg.URLTTL
}

func normKey(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// live reports whether key is present and unexpired. Caller holds mu.
func (s *Store) live(ns Namespace, key string, now time.Time) bool {
	set := s.sets[ns]
	exp, ok := set[key]
	if !ok {
		return false
	}
	if !now.Before(exp) {
		delete(set, key)
		return false
	}
	return true
}

func (s *Store) mark(ns Namespace, key string, now time.Time) {
	set, ok := s.sets[ns]
	if !ok {
		set = make(map[string]time.Time)
		s.sets[ns] = set
	}
	set[key] = now.Add(s.ttl(ns))
}

// Seen reports whether value is present in ns.
func (s *Store) Seen(ns Namespace, value string) bool {
	key := normKey(value)
	if key == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(ns, key, s.nowFunc())
}

// Mark records value in ns, refreshing its expiry.
func (s *Store) Mark(ns Namespace, value string) {
	key := normKey(value)
	if key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mark(ns, key, s.nowFunc())
}

// CheckAndMark records value in ns and returns true if it was not present.
// The check and the insert happen under one lock.
func (s *Store) CheckAndMark(ns Namespace, value string) bool {
	key := normKey(value)
	if key == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFunc()
	if s.live(ns, key, now) {
		return false
	}
	s.mark(ns, key, now)
	return true
}

// Claim atomically checks every non-empty key and marks all of them only
// if none is present. On conflict it returns false and the first key that
// was already claimed.
func (s *Store) Claim(keys ...Key) (bool, Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFunc()

	for _, k := range keys {
		v := normKey(k.Value)
		if v != "" && s.live(k.NS, v, now) {
			return false, k
		}
	}
	for _, k := range keys {
		if v := normKey(k.Value); v != "" {
			s.mark(k.NS, v, now)
		}
	}
	return true, Key{}
}

// Forget removes keys so they can be claimed again. Empty values are
// ignored.
func (s *Store) Forget(keys ...Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		if v := normKey(k.Value); v != "" {
			delete(s.sets[k.NS], v)
		}
	}
}

// CachedResults returns the cached search results for a normalized query.
func (s *Store) CachedResults(query string) ([]model.SearchResult, bool) {
	key := normKey(query)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.results[key]
	if !ok {
		return nil, false
	}
	if !s.nowFunc().Before(e.expiresAt) {
		delete(s.results, key)
		return nil, false
	}
	return e.results, true
}

// CacheResults stores results for query.
func (s *Store) CacheResults(query string, results []model.SearchResult) {
	key := normKey(query)
	if key == "" {
		return
	}
	cp := make([]model.SearchResult, len(results))
	copy(cp, results)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[key] = resultEntry{results: cp, expiresAt: s.nowFunc().Add(s.cfg.QueryCacheTTL)}
}

// Len returns the number of live entries in ns, including not yet swept
// expired ones.
func (s *Store) Len(ns Namespace) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sets[ns])
}

// Sweep removes every expired entry and returns how many were dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFunc()
	removed := 0
	for _, set := range s.sets {
		for k, exp := range set {
			if !now.Before(exp) {
				delete(set, k)
				removed++
			}
		}
	}
	for k, e := range s.results {
		if !now.Before(e.expiresAt) {
			delete(s.results, k)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	log := zap.L().With(zap.String("component", "dedup"))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.Debug("swept expired entries", zap.Int("removed", n))
			}
		}
	}
}
