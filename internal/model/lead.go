package model

import "time"

// PhoneType classifies a validated phone number.
type PhoneType string

const (
	PhoneMobile   PhoneType = "mobile"
	PhoneLandline PhoneType = "landline"
	PhoneNone     PhoneType = "none"
)

// LeadType classifies what kind of contact a page represents.
type LeadType string

const (
	LeadTypeCandidate   LeadType = "candidate"
	LeadTypeCompany     LeadType = "company"
	LeadTypeJobAd       LeadType = "job_ad"
	LeadTypeGroupInvite LeadType = "group_invite"
	LeadTypeProfile     LeadType = "profile"
)

// EmailTier ranks an email address by how personal it is.
type EmailTier string

const (
	EmailReject   EmailTier = "reject"
	EmailWeak     EmailTier = "weak"
	EmailPersonal EmailTier = "personal"
	EmailTeam     EmailTier = "team"
	EmailGeneric  EmailTier = "generic"
)

// CompanySize is a coarse employer size bucket.
type CompanySize string

const (
	SizeUnknown CompanySize = ""
	SizeSmall   CompanySize = "klein"
	SizeMedium  CompanySize = "mittel"
	SizeLarge   CompanySize = "groß"
)

// SearchResult is a single candidate URL returned by a search backend.
type SearchResult struct {
	URL     string `json:"url"`
	Source  string `json:"source"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// Lead is a contact extracted from one fetched page. It is immutable after
// scoring except for the final accept/drop decision.
type Lead struct {
	ID          string      `json:"id,omitempty"`
	Name        string      `json:"name,omitempty"`
	Company     string      `json:"company,omitempty"`
	Phone       string      `json:"phone,omitempty"`
	PhoneType   PhoneType   `json:"phone_type"`
	Email       string      `json:"email,omitempty"`
	EmailTier   EmailTier   `json:"email_tier,omitempty"`
	SourceURL   string      `json:"source_url"`
	Source      string      `json:"source,omitempty"`
	Query       string      `json:"query,omitempty"`
	Title       string      `json:"title,omitempty"`
	Score       int         `json:"score"`
	Signals     []string    `json:"signals,omitempty"`
	LeadType    LeadType    `json:"lead_type"`
	Accept      bool        `json:"accept"`
	DropReason  string      `json:"drop_reason,omitempty"`
	CompanySize CompanySize `json:"company_size,omitempty"`
	Industry    string      `json:"industry,omitempty"`
	HiddenGem   bool        `json:"hidden_gem,omitempty"`
	WhatsApp    string      `json:"whatsapp,omitempty"`
	Telegram    string      `json:"telegram,omitempty"`
	RunID       string      `json:"run_id,omitempty"`
	FoundAt     time.Time   `json:"found_at"`
}

// HasPhone reports whether the lead carries a validated phone number.
func (l *Lead) HasPhone() bool {
	return l.Phone != "" && l.PhoneType != PhoneNone && l.PhoneType != ""
}
