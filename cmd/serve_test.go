package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-scout/internal/config"
	"github.com/sells-group/lead-scout/internal/metrics"
	"github.com/sells-group/lead-scout/internal/model"
)

type fakeStatusSource struct {
	runs    []model.RunMetrics
	runsErr error
	dropped int
	state   *model.ModeState
}

func (f *fakeStatusSource) RecentRuns(_ context.Context, limit int) ([]model.RunMetrics, error) {
	if f.runsErr != nil {
		return nil, f.runsErr
	}
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func (f *fakeStatusSource) CountDropped(_ context.Context, _ time.Time) (int, error) {
	return f.dropped, nil
}

func (f *fakeStatusSource) LoadModeState(_ context.Context) (*model.ModeState, error) {
	return f.state, nil
}

func newTestServer(t *testing.T, src *fakeStatusSource) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	c := metrics.NewCollectors(reg)
	c.SetMode(model.ModeModerate)
	mon := config.MonitoringConfig{LookbackRuns: 10, MinPhoneFindRate: 0.05, MaxFailedRuns: 2}
	srv := httptest.NewServer(newRouter(reg, src, mon, model.ModeConservative))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url) //nolint:noctx
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestRouter_Healthz(t *testing.T) {
	srv := newTestServer(t, &fakeStatusSource{})
	resp, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestRouter_Metrics(t *testing.T) {
	srv := newTestServer(t, &fakeStatusSource{})
	resp, body := get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "leadscout_wasserfall_mode 1")
}

func TestRouter_Status(t *testing.T) {
	now := time.Now().UTC()
	src := &fakeStatusSource{
		runs: []model.RunMetrics{
			{Status: model.RunStatusFailed, StartedAt: now},
			{Status: model.RunStatusFailed, StartedAt: now},
			{Status: model.RunStatusSuccess, StartedAt: now, URLsFetched: 10, LeadsFound: 2, AcceptedLeads: 1},
		},
		dropped: 4,
	}
	srv := newTestServer(t, src)

	resp, body := get(t, srv.URL+"/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got statusReport
	require.NoError(t, json.Unmarshal(body, &got))
	require.NotNil(t, got.Snapshot)
	assert.Equal(t, 3, got.Snapshot.Runs)
	assert.Equal(t, 2, got.Snapshot.RunsFailed)
	assert.Equal(t, 4, got.Snapshot.DroppedURLs)
	require.Len(t, got.Alerts, 1)
	assert.Equal(t, "failed_runs", string(got.Alerts[0].Type))
}

func TestRouter_StatusError(t *testing.T) {
	srv := newTestServer(t, &fakeStatusSource{runsErr: errors.New("db down")})
	resp, _ := get(t, srv.URL+"/status")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestRouter_Mode(t *testing.T) {
	t.Run("stored", func(t *testing.T) {
		srv := newTestServer(t, &fakeStatusSource{state: &model.ModeState{Current: model.ModeAggressive, RunCounter: 12}})
		_, body := get(t, srv.URL+"/mode")
		var got model.ModeState
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, model.ModeAggressive, got.Current)
		assert.Equal(t, 12, got.RunCounter)
	})
	t.Run("initial", func(t *testing.T) {
		srv := newTestServer(t, &fakeStatusSource{})
		_, body := get(t, srv.URL+"/mode")
		var got model.ModeState
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, model.ModeConservative, got.Current)
	})
}
