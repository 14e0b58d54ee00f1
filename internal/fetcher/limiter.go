package fetcher

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/lead-scout/internal/resilience"
)

// RateLimiter bounds in-flight fetches globally and per host.
type RateLimiter struct {
	global  *semaphore.Weighted
	perHost int64

	mu    sync.Mutex
	hosts map[string]*semaphore.Weighted
}

// NewRateLimiter creates a limiter with the given global and per-host slot counts.
func NewRateLimiter(global, perHost int) *RateLimiter {
	if global <= 0 {
		global = 35
	}
	if perHost <= 0 {
		perHost = 3
	}
	return &RateLimiter{
		global:  semaphore.NewWeighted(int64(global)),
		perHost: int64(perHost),
		hosts:   make(map[string]*semaphore.Weighted),
	}
}

// Acquire blocks until a global and a host slot are free. The returned
// release func frees both and is safe to call more than once.
func (l *RateLimiter) Acquire(ctx context.Context, host string) (func(), error) {
	// Host slot first, so requests queued behind a busy host do not hold
	// global slots other hosts could use.
	hs := l.hostSemaphore(resilience.HostKey(host))
	if err := hs.Acquire(ctx, 1); err != nil {
		return nil, eris.Wrap(err, "fetcher: acquire host slot")
	}
	if err := l.global.Acquire(ctx, 1); err != nil {
		hs.Release(1)
		return nil, eris.Wrap(err, "fetcher: acquire global slot")
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			hs.Release(1)
			l.global.Release(1)
		})
	}, nil
}

func (l *RateLimiter) hostSemaphore(host string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.hosts[host]
	if !ok {
		s = semaphore.NewWeighted(l.perHost)
		l.hosts[host] = s
	}
	return s
}
