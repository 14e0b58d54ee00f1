// Package scorer assigns a points score and coarse classifications to
// validated leads.
package scorer

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-scout/internal/config"
)

// Signal names, also the keys of the scoring.weights table.
const (
	SignalMobile          = "mobile"
	SignalLandline        = "landline"
	SignalWhatsApp        = "whatsapp"
	SignalTelegram        = "telegram"
	SignalNRW             = "nrw"
	SignalAbSofort        = "ab_sofort"
	SignalRecentDate      = "recent_date"
	SignalIndustryFit     = "industry_fit"
	SignalEmailPersonal   = "email_personal"
	SignalEmailTeam       = "email_team"
	SignalEmailGeneric    = "email_generic"
	SignalName            = "name"
	SignalCandidatePhrase = "candidate_phrase"
	SignalExperienceYears = "experience_years"
	SignalNoJobSeeking    = "no_job_seeking"
	SignalJobSeeking      = "job_seeking"
	SignalJobAdMarker     = "job_ad_marker"
	SignalHRPressContact  = "hr_press_contact"
)

// DefaultWeights returns the default points per signal.
func DefaultWeights() map[string]int {
	return map[string]int{
		SignalMobile:          30,
		SignalLandline:        10,
		SignalWhatsApp:        15,
		SignalTelegram:        10,
		SignalNRW:             10,
		SignalAbSofort:        5,
		SignalRecentDate:      10,
		SignalIndustryFit:     5,
		SignalEmailPersonal:   10,
		SignalEmailTeam:       3,
		SignalEmailGeneric:    3,
		SignalName:            5,
		SignalCandidatePhrase: 20,
		SignalExperienceYears: 15,
		SignalNoJobSeeking:    10,
		SignalJobSeeking:      -10,
		SignalJobAdMarker:     -30,
		SignalHRPressContact:  -15,
	}
}

// MergeWeights overlays configured weights on the defaults.
func MergeWeights(overrides map[string]int) map[string]int {
	w := DefaultWeights()
	for k, v := range overrides {
		w[strings.ToLower(k)] = v
	}
	return w
}

// ValidateConfig checks that a ScoringConfig is internally consistent.
func ValidateConfig(c config.ScoringConfig) error {
	var errs []string

	known := DefaultWeights()
	for _, name := range slices.Sorted(maps.Keys(c.Weights)) {
		if _, ok := known[strings.ToLower(name)]; !ok {
			errs = append(errs, fmt.Sprintf("unknown weight %q", name))
		}
	}

	if c.MinScore < 0 || c.MinScore > 100 {
		errs = append(errs, "min_score must be between 0 and 100")
	}
	if c.RecencyDays < 0 {
		errs = append(errs, "recency_days must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
