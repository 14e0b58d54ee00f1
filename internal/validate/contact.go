package validate

import (
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/lead-scout/internal/model"
)

// NameKind classifies a contact name candidate.
type NameKind string

const (
	NamePerson  NameKind = "person"
	NameCompany NameKind = "company"
	NameUnknown NameKind = "unknown"
)

var (
	rejectLocals   = []string{"noreply", "no-reply", "donotreply", "do-not-reply", "mailer-daemon", "postmaster", "abuse", "webmaster"}
	rejectDomains  = []string{"example.com", "example.org", "example.net", "beispiel.de", "domain.de", "domain.com", "test.de", "sentry.io", "wixpress.com"}
	rejectSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg"}
	genericLocals  = []string{"info", "kontakt", "contact", "office", "mail", "email", "service", "hallo", "hello", "post", "zentrale", "anfrage", "buero", "büro", "empfang"}
	teamLocals     = []string{"vertrieb", "sales", "team", "jobs", "karriere", "bewerbung", "hr", "personal", "presse", "support", "verkauf", "marketing", "recruiting"}
	personLocalRe  = regexp.MustCompile(`^[a-zäöüß]{2,}[._\-][a-zäöüß]{2,}$`)
	initialLocalRe = regexp.MustCompile(`^[a-z][._\-]?[a-zäöüß]{3,}$`)

	companyRe  = regexp.MustCompile(`(?i)(?:\bgmbh\b|\bmbh\b|\bag\b|\bkg\b|\bug\b|\bgbr\b|\bohg\b|\be\.\s?k\.|\bco\.|\bltd\b|\binc\b|\bgruppe\b|\bholding\b)`)
	nameWordRe = regexp.MustCompile(`^\p{Lu}[\p{L}'\-]+\.?$`)
	stopWords  = []string{"aus", "und", "für", "im", "in", "der", "die", "das", "mit", "bei", "zu", "sucht", "suche", "kontakt", "impressum", "über", "team", "startseite", "home", "profil", "willkommen", "datenschutz", "anzeige", "kleinanzeigen"}
	roleSuffix = []string{"vertreter", "berater", "profi", "manager", "leiter", "agentur", "vertrieb", "service", "kaufmann", "kauffrau", "makler", "gesuch", "angebot"}
)

// ClassifyEmail returns the tier of an email address. nameTokens are the
// lowercased tokens of the contact name, used to spot personal addresses.
func ClassifyEmail(email string, nameTokens []string) model.EmailTier {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return model.EmailReject
	}
	local, domain := email[:at], email[at+1:]

	if slices.Contains(rejectLocals, local) || slices.Contains(rejectDomains, domain) {
		return model.EmailReject
	}
	for _, suf := range rejectSuffixes {
		if strings.HasSuffix(domain, suf) {
			return model.EmailReject
		}
	}

	base, _, _ := strings.Cut(local, "+")
	if base == "" {
		return model.EmailReject
	}
	if slices.Contains(genericLocals, base) {
		return model.EmailGeneric
	}
	if slices.Contains(teamLocals, base) {
		return model.EmailTeam
	}
	for _, tok := range nameTokens {
		if len(tok) >= 3 && strings.Contains(base, tok) {
			return model.EmailPersonal
		}
	}
	if personLocalRe.MatchString(base) || (initialLocalRe.MatchString(base) && strings.ContainsAny(base, "._-")) {
		return model.EmailPersonal
	}
	return model.EmailWeak
}

var tierRank = map[model.EmailTier]int{
	model.EmailPersonal: 4,
	model.EmailTeam:     3,
	model.EmailGeneric:  2,
	model.EmailWeak:     1,
}

// SelectEmail returns the best non-rejected email, or "" and EmailReject.
func SelectEmail(emails []string, nameTokens []string) (string, model.EmailTier) {
	best, bestTier := "", model.EmailReject
	for _, e := range emails {
		tier := ClassifyEmail(e, nameTokens)
		if tierRank[tier] > tierRank[bestTier] {
			best, bestTier = strings.ToLower(strings.TrimSpace(e)), tier
		}
	}
	return best, bestTier
}

// NormalizeName NFC-normalizes, squeezes whitespace and title-cases
// fully upper- or lowercased names.
func NormalizeName(name string) string {
	name = strings.Join(strings.Fields(norm.NFC.String(name)), " ")
	if name == strings.ToLower(name) || name == strings.ToUpper(name) {
		name = cases.Title(language.German).String(name)
	}
	return name
}

// ClassifyName decides whether name looks like a person or a company.
func ClassifyName(name string) NameKind {
	name = NormalizeName(name)
	if name == "" {
		return NameUnknown
	}
	if companyRe.MatchString(name) {
		return NameCompany
	}
	words := strings.Fields(name)
	if len(words) < 2 || len(words) > 4 {
		return NameUnknown
	}
	for _, w := range words {
		lw := strings.ToLower(strings.TrimSuffix(w, "."))
		if !nameWordRe.MatchString(w) || slices.Contains(stopWords, lw) {
			return NameUnknown
		}
		for _, suf := range roleSuffix {
			if strings.HasSuffix(lw, suf) {
				return NameUnknown
			}
		}
	}
	return NamePerson
}

// SelectName returns the first person name, and separately the first
// company name, from the candidates.
func SelectName(candidates []string) (person, company string) {
	for _, c := range candidates {
		switch ClassifyName(c) {
		case NamePerson:
			if person == "" {
				person = NormalizeName(c)
			}
		case NameCompany:
			if company == "" {
				company = NormalizeName(c)
			}
		}
	}
	return person, company
}

func nameTokens(name string) []string {
	var out []string
	for _, f := range strings.Fields(strings.ToLower(name)) {
		f = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss").Replace(f)
		out = append(out, f)
	}
	return out
}
