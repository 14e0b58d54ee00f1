package model

import "time"

// RunStatus is the final outcome of a discovery run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusPartial RunStatus = "partial"
	RunStatusFailed  RunStatus = "failed"
)

// RunMetrics aggregates the counters of one run. Stored metrics are
// append/increment-only.
type RunMetrics struct {
	RunID         string    `json:"run_id"`
	Mode          string    `json:"mode"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at,omitzero"`
	QueriesTotal  int       `json:"queries_total"`
	QueriesFailed int       `json:"queries_failed"`
	SerpHits      int       `json:"serp_hits"`
	URLsFetched   int       `json:"urls_fetched"`
	FetchErrors   int       `json:"fetch_errors"`
	LeadsFound    int       `json:"leads_found"`
	LeadsKept     int       `json:"leads_kept"`
	AcceptedLeads int       `json:"accepted_leads"`
	CostUSD       float64   `json:"cost_usd"`
	Status        RunStatus `json:"status"`
}

// PhoneFindRate is the fraction of fetched pages that yielded a valid phone.
func (m RunMetrics) PhoneFindRate() float64 {
	return float64(m.LeadsFound) / float64(max(1, m.URLsFetched))
}

// ErrorRate is the fraction of fetch attempts that failed.
func (m RunMetrics) ErrorRate() float64 {
	return float64(m.FetchErrors) / float64(max(1, m.URLsFetched+m.FetchErrors))
}

// DorkOutcome is the per-query result of a single run.
type DorkOutcome struct {
	Query         string `json:"query"`
	Source        string `json:"source"`
	SerpHits      int    `json:"serp_hits"`
	URLsFetched   int    `json:"urls_fetched"`
	FetchErrors   int    `json:"fetch_errors"`
	LeadsFound    int    `json:"leads_found"`
	LeadsKept     int    `json:"leads_kept"`
	AcceptedLeads int    `json:"accepted_leads"`
	Failed        bool   `json:"failed"`
}

// HostStats are per-host counters of a run.
type HostStats struct {
	Host        string `json:"host"`
	Requests    int    `json:"requests"`
	Failures    int    `json:"failures"`
	RateLimited int    `json:"rate_limited"`
	LeadsFound  int    `json:"leads_found"`
}

// RunSummary is the user-facing result of a run.
type RunSummary struct {
	RunID              string          `json:"run_id"`
	Status             RunStatus       `json:"status"`
	Mode               string          `json:"mode"`
	DryRun             bool            `json:"dry_run"`
	QueriesRun         int             `json:"queries_run"`
	QueriesFailed      int             `json:"queries_failed"`
	URLsFetched        int             `json:"urls_fetched"`
	LeadsFound         int             `json:"leads_found"`
	LeadsAccepted      int             `json:"leads_accepted"`
	RejectionsByReason map[string]int  `json:"rejections_by_reason"`
	ModeTransition     *ModeTransition `json:"mode_transition,omitempty"`
	EstimatedCostUSD   float64         `json:"estimated_cost_usd"`
	Duration           time.Duration   `json:"duration"`
}

// OperatingMode selects the target audience of a run.
type OperatingMode string

const (
	OperatingStandard   OperatingMode = "standard"
	OperatingCandidates OperatingMode = "candidates"
	OperatingTalentHunt OperatingMode = "talent_hunt"
)

// Valid reports whether m is a known operating mode.
func (m OperatingMode) Valid() bool {
	switch m {
	case OperatingStandard, OperatingCandidates, OperatingTalentHunt:
		return true
	}
	return false
}
