package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/lead-scout/internal/config"
	"github.com/sells-group/lead-scout/internal/model"
)

func TestChecker_RunStopsOnCancel(t *testing.T) {
	st := &mockStore{}
	collector := NewCollector(st)
	alerter := NewAlerter(config.MonitoringConfig{
		CheckIntervalSecs: 1,
		LookbackRuns:      10,
	})
	checker := NewChecker(collector, alerter, config.MonitoringConfig{
		CheckIntervalSecs: 1,
		LookbackRuns:      10,
	})

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_DefaultInterval(t *testing.T) {
	st := &mockStore{}
	collector := NewCollector(st)
	alerter := NewAlerter(config.MonitoringConfig{})

	// Zero interval should default to 5 minutes.
	checker := NewChecker(collector, alerter, config.MonitoringConfig{
		CheckIntervalSecs: 0,
	})
	assert.NotNil(t, checker)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)
}

func TestChecker_Check_SendsAlerts(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	st := &mockStore{runs: []model.RunMetrics{
		{Status: model.RunStatusFailed, StartedAt: testNow},
		{Status: model.RunStatusFailed, StartedAt: testNow},
		{Status: model.RunStatusFailed, StartedAt: testNow},
	}}
	cfg := config.MonitoringConfig{WebhookURL: ts.URL, LookbackRuns: 10, MaxFailedRuns: 3}
	checker := NewChecker(newTestCollector(st), NewAlerter(cfg), cfg)

	alerts := checker.Check(context.Background(), zap.NewNop())
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertFailedRuns, alerts[0].Type)
	assert.Equal(t, int32(1), received.Load())
}

func TestChecker_Check_SuppressesRepeats(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	failing := []model.RunMetrics{
		{Status: model.RunStatusFailed, StartedAt: testNow},
		{Status: model.RunStatusFailed, StartedAt: testNow},
	}
	st := &mockStore{runs: failing}
	cfg := config.MonitoringConfig{WebhookURL: ts.URL, LookbackRuns: 10, MaxFailedRuns: 2}
	checker := NewChecker(newTestCollector(st), NewAlerter(cfg), cfg)
	now := testNow
	checker.now = func() time.Time { return now }

	// First breach notifies.
	require.Len(t, checker.Check(context.Background(), zap.NewNop()), 1)
	assert.Equal(t, int32(1), received.Load())

	// Same condition ten minutes later is held back but still reported.
	now = now.Add(10 * time.Minute)
	require.Len(t, checker.Check(context.Background(), zap.NewNop()), 1)
	assert.Equal(t, int32(1), received.Load())

	// After the repeat window it notifies again.
	now = now.Add(repeatAfter)
	checker.Check(context.Background(), zap.NewNop())
	assert.Equal(t, int32(2), received.Load())

	// Recovery clears suppression, so the next breach notifies at once.
	st.runs = []model.RunMetrics{{Status: model.RunStatusSuccess, StartedAt: testNow}}
	assert.Empty(t, checker.Check(context.Background(), zap.NewNop()))
	st.runs = failing
	now = now.Add(time.Minute)
	checker.Check(context.Background(), zap.NewNop())
	assert.Equal(t, int32(3), received.Load())
}
