// Package validate decides whether an extracted candidate is a usable
// sales-contact lead. Checks run in a fixed order and stop at the first
// rejection: job-ad detection, domain deny-list, phone, then email and name.
package validate

import (
	"net/url"
	"strings"

	"github.com/sells-group/lead-scout/internal/config"
	"github.com/sells-group/lead-scout/internal/extract"
	"github.com/sells-group/lead-scout/internal/model"
	"github.com/sells-group/lead-scout/internal/resilience"
)

// Rejection reasons of the early stages. Phone reasons are in phone.go.
const (
	ReasonJobAd        = "job_ad"
	ReasonDeniedDomain = "denied_domain"
)

// Result is the validation outcome of one candidate.
type Result struct {
	Accept           bool            `json:"accept"`
	Reason           string          `json:"reason,omitempty"`
	Phone            PhoneResult     `json:"phone"`
	Email            string          `json:"email,omitempty"`
	EmailTier        model.EmailTier `json:"email_tier,omitempty"`
	Name             string          `json:"name,omitempty"`
	NameKind         NameKind        `json:"name_kind,omitempty"`
	Company          string          `json:"company,omitempty"`
	LeadType         model.LeadType  `json:"lead_type"`
	CandidateSignals []string        `json:"candidate_signals,omitempty"`
	JobOfferSignals  []string        `json:"job_offer_signals,omitempty"`
}

// Err returns a *resilience.ValidationError for rejected results.
func (r Result) Err() error {
	if r.Accept {
		return nil
	}
	return &resilience.ValidationError{Reason: r.Reason}
}

// Validator applies the staged checks.
type Validator struct {
	jobOfferOverride int
	denyDomains      []string
	placeholders     []string
}

// New creates a Validator from configuration.
func New(cfg config.ValidateConfig) *Validator {
	override := cfg.JobOfferOverride
	if override < 1 {
		override = 2
	}
	deny := make([]string, 0, len(cfg.DenyDomains))
	for _, d := range cfg.DenyDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			deny = append(deny, strings.TrimPrefix(d, "."))
		}
	}
	return &Validator{
		jobOfferOverride: override,
		denyDomains:      deny,
		placeholders:     cfg.PlaceholderPhones,
	}
}

// Validate runs all stages against c.
func (v *Validator) Validate(c *extract.Candidate) Result {
	text := c.FullText()
	res := Result{
		LeadType:         model.LeadTypeProfile,
		CandidateSignals: CandidateSignals.Matches(text),
		JobOfferSignals:  JobOfferSignals.Matches(text),
	}
	hasCandidate := len(res.CandidateSignals) > 0
	if hasCandidate {
		res.LeadType = model.LeadTypeCandidate
	}

	if v.IsJobAd(res.CandidateSignals, res.JobOfferSignals) {
		res.LeadType = model.LeadTypeJobAd
		res.Reason = ReasonJobAd
		return res
	}

	groupInvite := GroupInviteSignals.Any(c.URL) || GroupInviteSignals.Any(strings.Join(c.WhatsApp, " ")+" "+strings.Join(c.Telegram, " "))
	if groupInvite {
		res.LeadType = model.LeadTypeGroupInvite
	} else if !hasCandidate && v.Denied(c.URL) {
		res.Reason = ReasonDeniedDomain
		return res
	}

	res.Phone = SelectPhone(c.Phones, v.placeholders)
	if !res.Phone.Valid() {
		res.Reason = res.Phone.Reason
		return res
	}

	res.Name, res.Company = SelectName(c.Names)
	switch {
	case res.Name != "":
		res.NameKind = NamePerson
	case res.Company != "":
		res.NameKind = NameCompany
		if !hasCandidate && !groupInvite {
			res.LeadType = model.LeadTypeCompany
		}
	default:
		res.NameKind = NameUnknown
	}

	res.Email, res.EmailTier = SelectEmail(c.Emails, nameTokens(res.Name))
	if res.Email == "" {
		res.EmailTier = ""
	}

	res.Accept = true
	return res
}

// IsJobAd applies the candidate override: with a candidate signal a page is
// only a job ad when it carries at least the configured number of distinct
// job-offer signals; without one, any job-offer signal suffices.
func (v *Validator) IsJobAd(candidate, jobOffer []string) bool {
	if len(candidate) > 0 {
		return len(jobOffer) >= v.jobOfferOverride
	}
	return len(jobOffer) > 0
}

// Denied reports whether the URL's host is on the deny-list, matching the
// domain itself and all its subdomains.
func (v *Validator) Denied(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, d := range v.denyDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
