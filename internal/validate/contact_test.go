package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/lead-scout/internal/model"
)

func TestClassifyEmail(t *testing.T) {
	tokens := []string{"thomas", "mueller"}
	tests := []struct {
		email string
		want  model.EmailTier
	}{
		{"thomas.mueller@vertrieb-koeln.de", model.EmailPersonal},
		{"t.mueller@firma.de", model.EmailPersonal},
		{"tmueller@gmx.de", model.EmailPersonal},
		{"info@firma.de", model.EmailGeneric},
		{"Kontakt+web@firma.de", model.EmailGeneric},
		{"vertrieb@firma.de", model.EmailTeam},
		{"hansi1985@gmx.de", model.EmailWeak},
		{"noreply@firma.de", model.EmailReject},
		{"max@example.com", model.EmailReject},
		{"logo@2x.png", model.EmailReject},
		{"kaputt", model.EmailReject},
		{"+tag@firma.de", model.EmailReject},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyEmail(tt.email, tokens), tt.email)
	}
}

func TestSelectEmail(t *testing.T) {
	email, tier := SelectEmail([]string{"noreply@a.de", "info@a.de", "anna.schmidt@a.de", "vertrieb@a.de"}, nil)
	assert.Equal(t, "anna.schmidt@a.de", email)
	assert.Equal(t, model.EmailPersonal, tier)

	email, tier = SelectEmail([]string{"noreply@a.de"}, nil)
	assert.Empty(t, email)
	assert.Equal(t, model.EmailReject, tier)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "Anna Schmidt", NormalizeName("  ANNA   SCHMIDT "))
	assert.Equal(t, "Thomas Müller", NormalizeName("thomas müller"))
	assert.Equal(t, "Thomas Müller", NormalizeName("Thomas Müller"))
	assert.Equal(t, "Jan McLeod", NormalizeName("Jan McLeod"))
}

func TestClassifyName(t *testing.T) {
	tests := []struct {
		name string
		want NameKind
	}{
		{"Thomas Müller", NamePerson},
		{"anna-lena schmidt", NamePerson},
		{"Dr. Hans Meier", NamePerson},
		{"Müller Vertrieb GmbH", NameCompany},
		{"Schmidt & Co. KG", NameCompany},
		{"Vertriebsprofi aus Köln", NameUnknown},
		{"Handelsvertreter Schmidt", NameUnknown},
		{"Kontakt", NameUnknown},
		{"", NameUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyName(tt.name), tt.name)
	}
}

func TestSelectName(t *testing.T) {
	person, company := SelectName([]string{"Startseite", "Meier Versicherungen GmbH", "Petra Meier"})
	assert.Equal(t, "Petra Meier", person)
	assert.Equal(t, "Meier Versicherungen GmbH", company)
}

func TestSignalSets(t *testing.T) {
	assert.Equal(t, []string{"ich_suche", "suche_stelle"}, CandidateSignals.Matches("Ich suche eine neue Stelle im Vertrieb"))
	assert.Equal(t, []string{"wir_suchen", "ihr_profil", "mwd"}, JobOfferSignals.Matches("Wir suchen Vertriebler (m/w/d). Ihr Profil: ..."))
	assert.True(t, NRWSignals.Any("Raum Köln/Bonn"))
	assert.True(t, NRWSignals.Any("Nordrhein-Westfalen"))
	assert.False(t, NRWSignals.Any("Raum München"))
	assert.True(t, AbSofortSignals.Any("Sofort verfügbar"))
	assert.True(t, HRPressSignals.Any("Pressekontakt: Frau Meier"))
	assert.True(t, CareerChangeSignals.Any("Quereinsteiger willkommen"))
	assert.True(t, GroupInviteSignals.Any("https://t.me/+AbCdEf"))
	assert.False(t, GroupInviteSignals.Any("https://t.me/thomas_vertrieb"))
}

func TestExperienceYears(t *testing.T) {
	assert.Equal(t, 15, ExperienceYears("15 Jahre Außendienst, davon 8 Jahre Vertriebserfahrung"))
	assert.Equal(t, 12, ExperienceYears("über 12 Jahren Berufserfahrung"))
	assert.Equal(t, 0, ExperienceYears("viel Erfahrung"))
}

func TestEmployeeCount(t *testing.T) {
	assert.Equal(t, 45, EmployeeCount("Wir sind 45 Mitarbeiter stark"))
	assert.Equal(t, 1200, EmployeeCount("1.200 Beschäftigte weltweit"))
	assert.Equal(t, -1, EmployeeCount("kleines Team"))
}

func TestLatestDate(t *testing.T) {
	now := time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)

	got, ok := LatestDate("Erstellt am 02.05.2026, aktualisiert 14.05.26", now)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC), got)

	got, ok = LatestDate("Eingestellt vor 3 Tagen", now)
	assert.True(t, ok)
	assert.Equal(t, now.AddDate(0, 0, -3), got)

	got, ok = LatestDate("gestern", now)
	assert.True(t, ok)
	assert.Equal(t, now.AddDate(0, 0, -1), got)

	_, ok = LatestDate("Termin am 01.01.2030 und 31.02.2026", now)
	assert.False(t, ok, "future and impossible dates are ignored")

	_, ok = LatestDate("keine Angabe", now)
	assert.False(t, ok)
}
