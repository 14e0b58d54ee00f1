package monitoring

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/lead-scout/internal/config"
)

const (
	defaultCheckInterval = 5 * time.Minute

	// An alert of a type already delivered is held back until this much
	// time has passed, so a condition that persists across ticks notifies once.
	repeatAfter = time.Hour
)

// Checker evaluates the trailing run window on a ticker and notifies the
// webhook about newly breached thresholds.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
	now       func() time.Time

	mu       sync.Mutex
	lastSent map[AlertType]time.Time
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
		now:       time.Now,
		lastSent:  make(map[AlertType]time.Time),
	}
}

// Run blocks until ctx is cancelled, checking once per interval.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting alert checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_runs", c.cfg.LookbackRuns),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx, log)
		}
	}
}

// Check collects one snapshot and notifies about the alerts that are not
// suppressed. It returns every triggered alert, suppressed or not.
func (c *Checker) Check(ctx context.Context, log *zap.Logger) []Alert {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackRuns)
	if err != nil {
		log.Error("monitoring: failed to collect metrics", zap.Error(err))
		return nil
	}

	alerts := c.alerter.Evaluate(snap)
	c.forgetCleared(alerts)
	if len(alerts) == 0 {
		log.Debug("monitoring: no alerts triggered")
		return nil
	}

	fresh := c.due(alerts)
	sent := c.alerter.SendAlerts(ctx, fresh)
	log.Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_suppressed", len(alerts)-len(fresh)),
		zap.Int("alerts_sent", sent),
	)
	return alerts
}

// due returns the alerts whose type has not been delivered within
// repeatAfter and records them as delivered.
func (c *Checker) due(alerts []Alert) []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var out []Alert
	for _, a := range alerts {
		if last, ok := c.lastSent[a.Type]; ok && now.Sub(last) < repeatAfter {
			continue
		}
		c.lastSent[a.Type] = now
		out = append(out, a)
	}
	return out
}

// forgetCleared drops suppression for types that are no longer triggered,
// so a recurrence after recovery notifies immediately.
func (c *Checker) forgetCleared(alerts []Alert) {
	c.mu.Lock()
	defer c.mu.Unlock()

	active := make(map[AlertType]bool, len(alerts))
	for _, a := range alerts {
		active[a.Type] = true
	}
	for t := range c.lastSent {
		if !active[t] {
			delete(c.lastSent, t)
		}
	}
}
