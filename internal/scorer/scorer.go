package scorer

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/sells-group/lead-scout/internal/config"
	"github.com/sells-group/lead-scout/internal/model"
	"github.com/sells-group/lead-scout/internal/validate"
)

const (
	maxIndustryHits    = 3
	minExperienceYears = 3
	hiddenGemYears     = 10
	smallEmployees     = 50
	mediumEmployees    = 250
)

// Context carries the validated facts a score depends on.
type Context struct {
	Mode        model.OperatingMode
	PhoneType   model.PhoneType
	EmailTier   model.EmailTier
	HasName     bool
	HasWhatsApp bool
	HasTelegram bool
	Now         time.Time
	RecencyDays int
	// IndustryKeywords are the keywords of the run's target industry.
	IndustryKeywords []string
}

// Signal is one scored observation.
type Signal struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// Classification holds coarse tags derived from the same checks.
type Classification struct {
	CompanySize model.CompanySize `json:"company_size,omitempty"`
	Industry    string            `json:"industry,omitempty"`
	HiddenGem   bool              `json:"hidden_gem,omitempty"`
}

// Breakdown is the scoring result.
type Breakdown struct {
	Total          int            `json:"total"`
	Signals        []Signal       `json:"signals"`
	Classification Classification `json:"classification"`
}

// SignalNames returns the names of the scored signals.
func (b Breakdown) SignalNames() []string {
	out := make([]string, len(b.Signals))
	for i, s := range b.Signals {
		out[i] = s.Name
	}
	return out
}

// Engine scores leads with a fixed weights table.
type Engine struct {
	weights     map[string]int
	minScore    int
	recencyDays int
	industries  map[string][]string
}

// New creates an Engine from the scoring config and the configured
// industry keyword sets.
func New(cfg config.ScoringConfig, industries map[string][]string) *Engine {
	return &Engine{
		weights:     MergeWeights(cfg.Weights),
		minScore:    cfg.MinScore,
		recencyDays: cfg.RecencyDays,
		industries:  industries,
	}
}

// MinScore is the acceptance threshold.
func (e *Engine) MinScore() int {
	return e.minScore
}

// Passes reports whether b reaches the acceptance threshold.
func (e *Engine) Passes(b Breakdown) bool {
	return b.Total >= e.minScore
}

// Score computes the breakdown for a page. It has no side effects.
func (e *Engine) Score(text, pageURL string, ctx Context) Breakdown {
	var b Breakdown
	add := func(name string) {
		if pts, ok := e.weights[name]; ok && pts != 0 {
			b.Signals = append(b.Signals, Signal{Name: name, Points: pts})
			b.Total += pts
		}
	}

	lower := strings.ToLower(text)
	withURL := lower + "\n" + strings.ToLower(pageURL)

	switch ctx.PhoneType {
	case model.PhoneMobile:
		add(SignalMobile)
	case model.PhoneLandline:
		add(SignalLandline)
	}
	if ctx.HasWhatsApp || validate.MessengerSignals["whatsapp"].Any(withURL) {
		add(SignalWhatsApp)
	}
	if ctx.HasTelegram || validate.MessengerSignals["telegram"].Any(withURL) {
		add(SignalTelegram)
	}
	if validate.NRWSignals.Any(text) {
		add(SignalNRW)
	}
	if validate.AbSofortSignals.Any(text) {
		add(SignalAbSofort)
	}

	recency := ctx.RecencyDays
	if recency == 0 {
		recency = e.recencyDays
	}
	if !ctx.Now.IsZero() && recency > 0 {
		if d, ok := validate.LatestDate(text, ctx.Now); ok && ctx.Now.Sub(d) <= time.Duration(recency)*24*time.Hour {
			add(SignalRecentDate)
		}
	}

	hits := 0
	for _, kw := range ctx.IndustryKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			hits++
			add(SignalIndustryFit)
			if hits == maxIndustryHits {
				break
			}
		}
	}

	switch ctx.EmailTier {
	case model.EmailPersonal:
		add(SignalEmailPersonal)
	case model.EmailTeam:
		add(SignalEmailTeam)
	case model.EmailGeneric:
		add(SignalEmailGeneric)
	}
	if ctx.HasName {
		add(SignalName)
	}

	seeking := validate.CandidateSignals.Any(text)
	years := validate.ExperienceYears(text)
	if ctx.Mode == model.OperatingTalentHunt {
		if years >= minExperienceYears {
			add(SignalExperienceYears)
		}
		if seeking {
			add(SignalJobSeeking)
		} else {
			add(SignalNoJobSeeking)
		}
	} else {
		if seeking {
			add(SignalCandidatePhrase)
		}
		if validate.HRPressSignals.Any(text) {
			add(SignalHRPressContact)
		}
	}
	if validate.JobOfferSignals.Any(text) {
		add(SignalJobAdMarker)
	}

	// Floored at zero, no upper bound.
	b.Total = max(0, b.Total)
	b.Classification = Classification{
		CompanySize: CompanySize(text),
		Industry:    e.Industry(text),
		HiddenGem:   validate.CareerChangeSignals.Any(text) || (years >= hiddenGemYears && !seeking),
	}
	return b
}

// CompanySize buckets an employer by stated head count, falling back to
// size keywords.
func CompanySize(text string) model.CompanySize {
	n := validate.EmployeeCount(text)
	switch {
	case n >= mediumEmployees:
		return model.SizeLarge
	case n >= smallEmployees:
		return model.SizeMedium
	case n >= 0:
		return model.SizeSmall
	}

	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "konzern", "weltmarktführer", "börsennotiert"):
		return model.SizeLarge
	case containsAny(lower, "mittelstand", "mittelständisch"):
		return model.SizeMedium
	case containsAny(lower, "kleines team", "familienbetrieb", "inhabergeführt", "einzelunternehm"):
		return model.SizeSmall
	}
	return model.SizeUnknown
}

// Industry returns the configured industry with the most keyword hits.
// Ties resolve alphabetically; no hit yields "".
func (e *Engine) Industry(text string) string {
	lower := strings.ToLower(text)
	best, bestHits := "", 0
	for _, name := range slices.Sorted(maps.Keys(e.industries)) {
		hits := 0
		for _, kw := range e.industries[name] {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = name, hits
		}
	}
	return best
}

// ClassifyLeadType decides the lead type from the validation result and
// the page URL.
func ClassifyLeadType(pageURL string, v validate.Result, name string) model.LeadType {
	switch {
	case v.LeadType == model.LeadTypeJobAd:
		return model.LeadTypeJobAd
	case validate.GroupInviteSignals.Any(pageURL) || v.LeadType == model.LeadTypeGroupInvite:
		return model.LeadTypeGroupInvite
	case len(v.CandidateSignals) > 0:
		return model.LeadTypeCandidate
	case validate.ClassifyName(name) == validate.NameCompany || (v.Company != "" && v.Name == ""):
		return model.LeadTypeCompany
	}
	return model.LeadTypeProfile
}

// containsAny checks if s contains any of the given substrings.
func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
