package validate

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Signal is a named text pattern.
type Signal struct {
	Name string
	re   *regexp.Regexp
}

func signal(name, pattern string) Signal {
	return Signal{Name: name, re: regexp.MustCompile(`(?i)` + pattern)}
}

// Match reports whether the signal occurs in text.
func (s Signal) Match(text string) bool {
	return s.re.MatchString(text)
}

// SignalSet is an ordered category of signals.
type SignalSet []Signal

// Matches returns the distinct names of the signals found in text.
func (set SignalSet) Matches(text string) []string {
	var out []string
	for _, s := range set {
		if s.Match(text) {
			out = append(out, s.Name)
		}
	}
	return out
}

// Any reports whether at least one signal of the set occurs in text.
func (set SignalSet) Any(text string) bool {
	for _, s := range set {
		if s.Match(text) {
			return true
		}
	}
	return false
}

// Signal categories shared by the validator and the scoring engine.
var (
	CandidateSignals = SignalSet{
		signal("ich_suche", `\bich\s+suche\b`),
		signal("suche_stelle", `\bsuche\s+(?:eine\s+)?(?:neue\s+)?(?:stelle|herausforderung|vertretung|position|anstellung|t[äa]tigkeit|aufgabe)`),
		signal("stellengesuch", `\bstellengesuch`),
		signal("auf_der_suche", `\bbin\s+(?:derzeit\s+|aktuell\s+)?auf\s+der\s+suche\b`),
		signal("offen_fuer", `\boffen\s+f[üu]r\s+(?:neue|eine)\b`),
		signal("biete_mich", `\bbiete\s+(?:meine|mich)\b`),
		signal("verfuegbar_ab", `\bverf[üu]gbar\s+ab\b`),
		signal("wechselwillig", `\bwechselwillig`),
	}

	JobOfferSignals = SignalSet{
		signal("wir_suchen", `\bwir\s+suchen\b`),
		signal("wir_bieten", `\bwir\s+bieten\b`),
		signal("ihre_aufgaben", `\bihre\s+aufgaben\b`),
		signal("ihr_profil", `\bihr\s+profil\b`),
		signal("stellenangebot", `\bstellenangebot`),
		signal("jetzt_bewerben", `\bjetzt\s+bewerben\b`),
		signal("bewerbung_an", `\b(?:ihre|senden\s+sie\s+ihre)\s+bewerbung\b`),
		signal("mwd", `\((?:m\s*/\s*w\s*/\s*d|w\s*/\s*m\s*/\s*d|m\s*/\s*w)\)`),
		signal("unbefristet", `\bunbefristete?n?\b`),
	}

	HRPressSignals = SignalSet{
		signal("personalabteilung", `\bpersonalabteilung\b`),
		signal("pressekontakt", `\bpresse(?:kontakt|stelle|sprecher)`),
		signal("bewerbermanagement", `\bbewerbermanagement\b`),
		signal("recruiting", `\brecruiting[\s\-]?team\b`),
		signal("hr_abteilung", `\bhr[\s\-]abteilung\b`),
	}

	NRWSignals = SignalSet{
		signal("nrw", `\bnrw\b|nordrhein[\s\-]westfalen`),
		signal("nrw_city", `\b(?:k[öo]ln|d[üu]sseldorf|dortmund|essen|duisburg|bochum|wuppertal|bielefeld|bonn|m[üu]nster|gelsenkirchen|aachen|m[öo]nchengladbach|krefeld|oberhausen|hagen|hamm|leverkusen|solingen|neuss|paderborn|siegen)\b`),
	}

	AbSofortSignals = SignalSet{
		signal("ab_sofort", `\bab\s+sofort\b|\bsofort\s+verf[üu]gbar\b`),
	}

	CareerChangeSignals = SignalSet{
		signal("quereinstieg", `\bquereinst(?:ieg|eiger)`),
		signal("branchenwechsel", `\b(?:branchen|berufs)wechsel\b|\bneue\s+branche\b`),
	}

	GroupInviteSignals = SignalSet{
		signal("whatsapp_group", `chat\.whatsapp\.com/`),
		signal("telegram_join", `t\.me/(?:joinchat/|\+)`),
		signal("facebook_group", `facebook\.com/groups/`),
	}

	MessengerSignals = map[string]SignalSet{
		"whatsapp": {signal("whatsapp", `wa\.me/|api\.whatsapp\.com/|chat\.whatsapp\.com/|\bwhatsapp\b`)},
		"telegram": {signal("telegram", `\bt\.me/|telegram\.me/|\btelegram\b`)},
	}
)

var (
	experienceRe = regexp.MustCompile(`(?i)\b(\d{1,2})\+?\s*jahre?n?\s+(?:berufs|vertriebs|au[ßs]endienst)?erfahrung|\b(\d{1,2})\+?\s*jahre?n?\s+(?:im\s+)?(?:vertrieb|au[ßs]endienst)\b`)
	employeesRe  = regexp.MustCompile(`(?i)\b(\d{1,3}(?:\.\d{3})*|\d+)\s*(?:mitarbeiter(?:innen|n)?|besch[äa]ftigten?|angestellten?)\b`)
	dateRe       = regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.(\d{4}|\d{2})\b`)
	relDateRe    = regexp.MustCompile(`(?i)\bvor\s+(\d{1,3})\s+(tag|tagen|woche|wochen|stunde|stunden)\b|\b(heute|gestern)\b`)
)

// ExperienceYears returns the largest "N Jahre Erfahrung" count in text.
func ExperienceYears(text string) int {
	best := 0
	for _, m := range experienceRe.FindAllStringSubmatch(text, -1) {
		v := m[1]
		if v == "" {
			v = m[2]
		}
		if n, err := strconv.Atoi(v); err == nil && n > best {
			best = n
		}
	}
	return best
}

// EmployeeCount returns the first "N Mitarbeiter" count in text, or -1.
func EmployeeCount(text string) int {
	m := employeesRe.FindStringSubmatch(text)
	if m == nil {
		return -1
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ".", ""))
	if err != nil {
		return -1
	}
	return n
}

// LatestDate returns the most recent date mentioned in text that is not in
// the future relative to now. Absolute dates use dd.mm.yyyy, relative ones
// "vor N Tagen", "heute" and "gestern".
func LatestDate(text string, now time.Time) (time.Time, bool) {
	var latest time.Time
	found := false
	consider := func(t time.Time) {
		if t.After(now) {
			return
		}
		if !found || t.After(latest) {
			latest, found = t, true
		}
	}

	for _, m := range dateRe.FindAllStringSubmatch(text, -1) {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if len(m[3]) == 2 {
			year += 2000
		}
		if day < 1 || day > 31 || month < 1 || month > 12 {
			continue
		}
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
		if t.Day() != day {
			continue
		}
		consider(t)
	}

	for _, m := range relDateRe.FindAllStringSubmatch(text, -1) {
		switch strings.ToLower(m[3]) {
		case "heute":
			consider(now)
			continue
		case "gestern":
			consider(now.AddDate(0, 0, -1))
			continue
		}
		n, _ := strconv.Atoi(m[1])
		switch unit := strings.ToLower(m[2]); {
		case strings.HasPrefix(unit, "tag"):
			consider(now.AddDate(0, 0, -n))
		case strings.HasPrefix(unit, "woche"):
			consider(now.AddDate(0, 0, -7*n))
		default:
			consider(now.Add(-time.Duration(n) * time.Hour))
		}
	}
	return latest, found
}
