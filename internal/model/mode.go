package model

import "time"

// Wasserfall mode names, ordered from slowest to fastest.
const (
	ModeConservative = "conservative"
	ModeModerate     = "moderate"
	ModeAggressive   = "aggressive"
)

// Mode holds the throughput parameters of one Wasserfall state.
type Mode struct {
	Name          string  `json:"name" yaml:"name" mapstructure:"name"`
	RatePerMinute int     `json:"rate_per_minute" yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
	DorkSlotMin   int     `json:"dork_slot_min" yaml:"dork_slot_min" mapstructure:"dork_slot_min"`
	DorkSlotMax   int     `json:"dork_slot_max" yaml:"dork_slot_max" mapstructure:"dork_slot_max"`
	ExploreRate   float64 `json:"explore_rate" yaml:"explore_rate" mapstructure:"explore_rate"`
}

// RunSample is the slice of RunMetrics the mode manager evaluates.
type RunSample struct {
	RunID         string  `json:"run_id"`
	PhoneFindRate float64 `json:"phone_find_rate"`
	ErrorRate     float64 `json:"error_rate"`
	URLsFetched   int     `json:"urls_fetched"`
}

// ModeState is the persisted, process-wide Wasserfall state.
type ModeState struct {
	Current             string      `json:"current"`
	RunCounter          int         `json:"run_counter"`
	RunsSinceTransition int         `json:"runs_since_transition"`
	LastTransitionAt    time.Time   `json:"last_transition_at,omitzero"`
	Window              []RunSample `json:"window,omitempty"`
}

// ModeTransition records a single mode change.
type ModeTransition struct {
	FromMode  string    `json:"from_mode"`
	ToMode    string    `json:"to_mode"`
	RunNumber int       `json:"run_number"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}
