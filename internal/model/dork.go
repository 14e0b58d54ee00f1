package model

import "time"

// Pool is the selector partition a dork belongs to.
type Pool string

const (
	PoolCore    Pool = "core"
	PoolExplore Pool = "explore"
)

// Dork is a single search query together with its historical outcome.
type Dork struct {
	Text          string    `json:"text" yaml:"text"`
	Pool          Pool      `json:"pool" yaml:"pool"`
	SourceHint    string    `json:"source_hint,omitempty" yaml:"source_hint"`
	Industry      string    `json:"industry,omitempty" yaml:"industry"`
	QueriesTotal  int       `json:"queries_total" yaml:"-"`
	LeadsFound    int       `json:"leads_found" yaml:"-"`
	AcceptedLeads int       `json:"accepted_leads" yaml:"-"`
	Score         float64   `json:"score" yaml:"-"`
	LastUsedAt    time.Time `json:"last_used_at,omitempty" yaml:"-"`
}

// ComputeScore returns accepted leads per executed query.
func (d *Dork) ComputeScore() float64 {
	return float64(d.AcceptedLeads) / float64(max(1, d.QueriesTotal))
}

// Tested reports whether the dork has run at least minTrials times.
func (d *Dork) Tested(minTrials int) bool {
	return d.QueriesTotal >= minTrials
}
