// Package resilience provides per-host penalties, retry with backoff and the
// error taxonomy shared by the fetch and search layers.
package resilience

import (
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PenaltyConfig controls HostPenaltyTracker behavior.
type PenaltyConfig struct {
	// Base is the first penalty applied to a general host. Default: 30s.
	Base time.Duration

	// APIBase is the first penalty for hosts matching APISuffixes. Search APIs
	// recover quickly, so they get a shorter base. Default: 5s.
	APIBase time.Duration

	// MaxPenalty caps the computed penalty. Default: 30m.
	MaxPenalty time.Duration

	// MaxFailures caps the consecutive failure counter. Default: 10.
	MaxFailures int

	// APISuffixes are host suffixes treated as narrow API hosts.
	APISuffixes []string
}

// DefaultPenaltyConfig returns sensible defaults.
func DefaultPenaltyConfig() PenaltyConfig {
	return PenaltyConfig{
		Base:        30 * time.Second,
		APIBase:     5 * time.Second,
		MaxPenalty:  30 * time.Minute,
		MaxFailures: 10,
		APISuffixes: []string{"googleapis.com", "s.jina.ai", "html.duckduckgo.com"},
	}
}

// HostState is the penalty state of a single host.
type HostState struct {
	Host                string    `json:"host"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	PenaltyUntil        time.Time `json:"penalty_until"`
}

// HostPenaltyTracker excludes failing hosts from new requests for an
// exponentially growing window. It is safe for concurrent use.
type HostPenaltyTracker struct {
	cfg   PenaltyConfig
	mu    sync.Mutex
	hosts map[string]*HostState

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// PenaltyOption configures a HostPenaltyTracker.
type PenaltyOption func(*HostPenaltyTracker)

// WithNow overrides the tracker clock.
func WithNow(fn func() time.Time) PenaltyOption {
	return func(t *HostPenaltyTracker) {
		t.nowFunc = fn
	}
}

// NewHostPenaltyTracker creates a tracker with the given config.
func NewHostPenaltyTracker(cfg PenaltyConfig, opts ...PenaltyOption) *HostPenaltyTracker {
	def := DefaultPenaltyConfig()
	if cfg.Base <= 0 {
		cfg.Base = def.Base
	}
	if cfg.APIBase <= 0 {
		cfg.APIBase = def.APIBase
	}
	if cfg.MaxPenalty <= 0 {
		cfg.MaxPenalty = def.MaxPenalty
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	t := &HostPenaltyTracker{
		cfg:     cfg,
		hosts:   make(map[string]*HostState),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Penalize records a failure for host and returns the penalty applied.
func (t *HostPenaltyTracker) Penalize(host string) time.Duration {
	host = HostKey(host)

	t.mu.Lock()
	st, ok := t.hosts[host]
	if !ok {
		st = &HostState{Host: host}
		t.hosts[host] = st
	}
	if st.ConsecutiveFailures < t.cfg.MaxFailures {
		st.ConsecutiveFailures++
	}
	penalty := t.penaltyFor(host, st.ConsecutiveFailures)
	st.PenaltyUntil = t.nowFunc().Add(penalty)
	failures := st.ConsecutiveFailures
	t.mu.Unlock()

	zap.L().Warn("host penalized",
		zap.String("host", host),
		zap.Int("failures", failures),
		zap.Duration("penalty", penalty),
	)
	return penalty
}

// IsAllowed reports whether requests to host may proceed.
func (t *HostPenaltyTracker) IsAllowed(host string) bool {
	host = HostKey(host)

	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.hosts[host]
	if !ok {
		return true
	}
	return !t.nowFunc().Before(st.PenaltyUntil)
}

// Succeed resets the failure counter for host. An active penalty is left
// to expire on its own.
func (t *HostPenaltyTracker) Succeed(host string) {
	host = HostKey(host)

	t.mu.Lock()
	defer t.mu.Unlock()

	if st, ok := t.hosts[host]; ok {
		st.ConsecutiveFailures = 0
	}
}

// State returns a copy of the state for host, if any.
func (t *HostPenaltyTracker) State(host string) (HostState, bool) {
	host = HostKey(host)

	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.hosts[host]
	if !ok {
		return HostState{}, false
	}
	return *st, true
}

// Penalized returns the hosts currently under penalty, sorted by host.
func (t *HostPenaltyTracker) Penalized() []HostState {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowFunc()
	var out []HostState
	for _, st := range t.hosts {
		if now.Before(st.PenaltyUntil) {
			out = append(out, *st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Host < out[j].Host })
	return out
}

func (t *HostPenaltyTracker) penaltyFor(host string, failures int) time.Duration {
	base := t.cfg.Base
	if t.isAPIHost(host) {
		base = t.cfg.APIBase
	}
	penalty := base
	for i := 1; i < failures; i++ {
		penalty *= 2
		if penalty >= t.cfg.MaxPenalty {
			return t.cfg.MaxPenalty
		}
	}
	if penalty > t.cfg.MaxPenalty {
		return t.cfg.MaxPenalty
	}
	return penalty
}

func (t *HostPenaltyTracker) isAPIHost(host string) bool {
	for _, suffix := range t.cfg.APISuffixes {
		suffix = strings.ToLower(strings.TrimPrefix(suffix, "."))
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

// HostKey lowercases a host and strips any port. Full URLs are accepted.
func HostKey(hostOrURL string) string {
	s := strings.TrimSpace(strings.ToLower(hostOrURL))
	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil {
			s = u.Host
		}
	}
	if i := strings.LastIndexByte(s, ':'); i > 0 && !strings.Contains(s[i:], "]") {
		s = s[:i]
	}
	return s
}
