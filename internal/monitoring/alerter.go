package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-scout/internal/config"
)

// Rate alerts need at least this many runs in the window.
const minRunsForRates = 3

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertLowPhoneFindRate AlertType = "low_phone_find_rate"
	AlertHighErrorRate    AlertType = "high_error_rate"
	AlertFailedRuns       AlertType = "failed_runs"
	AlertSpendOverrun     AlertType = "spend_overrun"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if snap.Runs >= minRunsForRates && snap.URLsFetched > 0 {
		if a.cfg.MinPhoneFindRate > 0 && snap.PhoneFindRate < a.cfg.MinPhoneFindRate {
			alerts = append(alerts, Alert{
				Type:     AlertLowPhoneFindRate,
				Severity: "medium",
				Message: fmt.Sprintf(
					"Phone find rate %.1f%% below threshold %.1f%% over last %d runs",
					snap.PhoneFindRate*100, a.cfg.MinPhoneFindRate*100, snap.Runs,
				),
				Details: map[string]any{
					"phone_find_rate": snap.PhoneFindRate,
					"threshold":       a.cfg.MinPhoneFindRate,
					"urls_fetched":    snap.URLsFetched,
					"leads_found":     snap.LeadsFound,
				},
				Timestamp: now,
			})
		}
		if a.cfg.MaxErrorRate > 0 && snap.ErrorRate > a.cfg.MaxErrorRate {
			alerts = append(alerts, Alert{
				Type:     AlertHighErrorRate,
				Severity: "high",
				Message: fmt.Sprintf(
					"Fetch error rate %.1f%% exceeds threshold %.1f%% over last %d runs",
					snap.ErrorRate*100, a.cfg.MaxErrorRate*100, snap.Runs,
				),
				Details: map[string]any{
					"error_rate":   snap.ErrorRate,
					"threshold":    a.cfg.MaxErrorRate,
					"dropped_urls": snap.DroppedURLs,
				},
				Timestamp: now,
			})
		}
	}

	if a.cfg.MaxFailedRuns > 0 && snap.RunsFailed >= a.cfg.MaxFailedRuns {
		alerts = append(alerts, Alert{
			Type:     AlertFailedRuns,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d of the last %d runs failed",
				snap.RunsFailed, snap.Runs,
			),
			Details: map[string]any{
				"failed":  snap.RunsFailed,
				"partial": snap.RunsPartial,
				"runs":    snap.Runs,
			},
			Timestamp: now,
		})
	}

	if a.cfg.MaxDailySpendUSD > 0 && snap.SpendUSD > a.cfg.MaxDailySpendUSD {
		alerts = append(alerts, Alert{
			Type:     AlertSpendOverrun,
			Severity: "high",
			Message: fmt.Sprintf(
				"Search spend $%.2f exceeds threshold $%.2f in last 24h",
				snap.SpendUSD, a.cfg.MaxDailySpendUSD,
			),
			Details: map[string]any{
				"spend_usd":     snap.SpendUSD,
				"threshold_usd": a.cfg.MaxDailySpendUSD,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
