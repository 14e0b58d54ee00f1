// Package wasserfall implements the three-state throughput controller:
// conservative, moderate and aggressive modes with gated upgrades and
// immediate downgrades.
package wasserfall

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-scout/internal/config"
	"github.com/sells-group/lead-scout/internal/model"
)

const maxWindow = 50

// Backend persists mode state and transitions.
type Backend interface {
	LoadModeState(ctx context.Context) (*model.ModeState, error)
	SaveModeState(ctx context.Context, state model.ModeState, transition *model.ModeTransition) error
}

// Manager owns the process-wide mode state.
type Manager struct {
	mu      sync.Mutex
	cfg     config.WasserfallConfig
	modes   []model.Mode
	state   model.ModeState
	backend Backend
	now     func() time.Time
	log     *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithNow overrides the clock.
func WithNow(fn func() time.Time) Option {
	return func(m *Manager) { m.now = fn }
}

// NewManager creates a Manager starting in the configured initial mode.
// backend may be nil for in-memory operation.
func NewManager(cfg config.WasserfallConfig, backend Backend, opts ...Option) *Manager {
	if cfg.MinRunsBeforeUpgrade <= 0 {
		cfg.MinRunsBeforeUpgrade = 3
	}
	m := &Manager{
		cfg:     cfg,
		modes:   cfg.Modes(),
		backend: backend,
		now:     time.Now,
		log:     zap.L().With(zap.String("component", "wasserfall")),
	}
	for _, o := range opts {
		o(m)
	}
	initial := cfg.Initial
	if m.index(initial) < 0 {
		initial = model.ModeConservative
	}
	m.state = model.ModeState{Current: initial}
	return m
}

// Load restores persisted state. A missing or unknown state keeps the
// initial mode.
func (m *Manager) Load(ctx context.Context) error {
	if m.backend == nil {
		return nil
	}
	st, err := m.backend.LoadModeState(ctx)
	if err != nil {
		return eris.Wrap(err, "wasserfall: load state")
	}
	if st == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index(st.Current) < 0 {
		m.log.Warn("wasserfall: ignoring unknown persisted mode", zap.String("mode", st.Current))
		return nil
	}
	m.state = *st
	return nil
}

// Current returns the parameters of the active mode.
func (m *Manager) Current() model.Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modes[m.index(m.state.Current)]
}

// State returns a copy of the state.
func (m *Manager) State() model.ModeState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.state
	st.Window = slices.Clone(m.state.Window)
	return st
}

// Modes returns the configured modes, slowest first.
func (m *Manager) Modes() []model.Mode {
	return slices.Clone(m.modes)
}

// Evaluate folds one completed run into the state and returns the
// resulting transition, if any. Runs that fetched nothing only advance
// the run counter.
func (m *Manager) Evaluate(s model.RunSample) *model.ModeTransition {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.RunCounter++
	if s.URLsFetched == 0 {
		m.log.Debug("wasserfall: empty run ignored", zap.String("run_id", s.RunID))
		return nil
	}
	m.state.RunsSinceTransition++
	m.state.Window = append(m.state.Window, s)
	if len(m.state.Window) > maxWindow {
		m.state.Window = m.state.Window[len(m.state.Window)-maxWindow:]
	}

	cur := m.index(m.state.Current)

	switch {
	case s.ErrorRate >= m.cfg.ErrorSpikeRate:
		if cur > 0 {
			return m.transition(cur-1, fmt.Sprintf("error rate %.2f >= %.2f", s.ErrorRate, m.cfg.ErrorSpikeRate))
		}
		return nil
	case s.PhoneFindRate < m.cfg.PhoneRateThreshold:
		if cur > 0 {
			return m.transition(cur-1, fmt.Sprintf("phone find rate %.2f < %.2f", s.PhoneFindRate, m.cfg.PhoneRateThreshold))
		}
		return nil
	}

	if cur == len(m.modes)-1 || m.state.RunsSinceTransition < m.cfg.MinRunsBeforeUpgrade {
		return nil
	}
	phone, errs := m.trailing()
	if phone >= m.cfg.PhoneRateThreshold && errs < m.cfg.LowErrorRate {
		return m.transition(cur+1, fmt.Sprintf("trailing phone find rate %.2f over %d runs, error rate %.2f",
			phone, m.state.RunsSinceTransition, errs))
	}
	return nil
}

// Force switches to mode regardless of metrics and persists the change.
func (m *Manager) Force(ctx context.Context, mode string) (*model.ModeTransition, error) {
	m.mu.Lock()
	idx := m.index(mode)
	if idx < 0 {
		m.mu.Unlock()
		return nil, eris.Errorf("wasserfall: unknown mode %q", mode)
	}
	if m.modes[idx].Name == m.state.Current {
		m.mu.Unlock()
		return nil, nil
	}
	tr := m.transition(idx, "forced")
	m.mu.Unlock()

	if err := m.Save(ctx, tr); err != nil {
		return tr, err
	}
	return tr, nil
}

// Save persists the current state together with tr (may be nil).
func (m *Manager) Save(ctx context.Context, tr *model.ModeTransition) error {
	if m.backend == nil {
		return nil
	}
	if err := m.backend.SaveModeState(ctx, m.State(), tr); err != nil {
		return eris.Wrap(err, "wasserfall: save state")
	}
	return nil
}

// transition switches to modes[to]. Callers hold mu.
func (m *Manager) transition(to int, reason string) *model.ModeTransition {
	now := m.now()
	tr := &model.ModeTransition{
		FromMode:  m.state.Current,
		ToMode:    m.modes[to].Name,
		RunNumber: m.state.RunCounter,
		Reason:    reason,
		At:        now,
	}
	m.state.Current = tr.ToMode
	m.state.RunsSinceTransition = 0
	m.state.Window = nil
	m.state.LastTransitionAt = now

	m.log.Info("wasserfall: mode transition",
		zap.String("from", tr.FromMode),
		zap.String("to", tr.ToMode),
		zap.Int("run", tr.RunNumber),
		zap.String("reason", reason),
	)
	return tr
}

// trailing returns the mean phone-find and error rates since the last
// transition. Callers hold mu.
func (m *Manager) trailing() (phone, errs float64) {
	n := min(len(m.state.Window), m.state.RunsSinceTransition)
	if n == 0 {
		return 0, 0
	}
	for _, s := range m.state.Window[len(m.state.Window)-n:] {
		phone += s.PhoneFindRate
		errs += s.ErrorRate
	}
	return phone / float64(n), errs / float64(n)
}

func (m *Manager) index(name string) int {
	return slices.IndexFunc(m.modes, func(md model.Mode) bool { return md.Name == name })
}
