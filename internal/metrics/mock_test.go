package metrics

import (
	"context"
	"errors"

	"github.com/sells-group/lead-scout/internal/model"
	"github.com/sells-group/lead-scout/internal/resilience"
)

type mockBackend struct {
	dorks    []model.Dork
	hosts    []model.HostStats
	dropped  []resilience.DroppedURL
	finished *model.RunMetrics
	failDork bool
}

func (m *mockBackend) SaveDorks(_ context.Context, dorks []model.Dork) error {
	if m.failDork {
		return errors.New("disk full")
	}
	m.dorks = dorks
	return nil
}

func (m *mockBackend) IncrementHostStats(_ context.Context, stats []model.HostStats) error {
	m.hosts = append(m.hosts, stats...)
	return nil
}

func (m *mockBackend) FinishRun(_ context.Context, rm model.RunMetrics) error {
	m.finished = &rm
	return nil
}

func (m *mockBackend) SaveDroppedURLs(_ context.Context, _ string, dropped []resilience.DroppedURL) error {
	m.dropped = append(m.dropped, dropped...)
	return nil
}
