package validate

import (
	"regexp"
	"slices"
	"strings"

	"github.com/sells-group/lead-scout/internal/model"
)

// Phone rejection reasons.
const (
	ReasonNoPhone     = "no_phone"
	ReasonPhoneLength = "phone_length"
	ReasonPhonePrefix = "phone_prefix"
	ReasonPhoneFake   = "phone_fake"
)

const (
	minPhoneDigits = 10
	maxPhoneDigits = 15
	maxRunLength   = 6
)

var (
	mobilePrefixRe   = regexp.MustCompile(`^01[567]\d`)
	landlinePrefixRe = regexp.MustCompile(`^0[2-9]`)
	trunkZeroRe      = regexp.MustCompile(`\(\s*0\s*\)`)
)

// PhoneResult is the outcome of validating a single phone string.
type PhoneResult struct {
	Raw string `json:"raw"`
	// National is the digit-only form with a leading 0.
	National string `json:"national"`
	// Canonical is "+49" followed by the national digits without the 0.
	Canonical string          `json:"canonical,omitempty"`
	Type      model.PhoneType `json:"type"`
	Reason    string          `json:"reason,omitempty"`
}

// Valid reports whether the phone passed all checks.
func (p PhoneResult) Valid() bool {
	return p.Reason == "" && p.Canonical != ""
}

// NormalizePhone converts a raw German phone string to national digit form:
// "+49", "0049" and a bare "49" country prefix become "0", separators and
// an optional "(0)" trunk marker are removed.
func NormalizePhone(raw string) string {
	s := strings.TrimSpace(raw)
	s = trunkZeroRe.ReplaceAllString(s, "")
	plus := strings.HasPrefix(s, "+")

	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case plus && strings.HasPrefix(digits, "49"):
		return "0" + digits[2:]
	case plus:
		return "+" + digits
	case strings.HasPrefix(digits, "0049"):
		return "0" + digits[4:]
	case strings.HasPrefix(digits, "49") && len(digits) >= 11:
		return "0" + digits[2:]
	}
	return digits
}

// CheckPhone validates one raw phone string. placeholders are national
// forms of known fake numbers.
func CheckPhone(raw string, placeholders []string) PhoneResult {
	national := NormalizePhone(raw)
	res := PhoneResult{Raw: raw, National: national, Type: model.PhoneNone}

	switch {
	case national == "":
		res.Reason = ReasonNoPhone
		return res
	case strings.HasPrefix(national, "+"):
		res.Reason = ReasonPhonePrefix
		return res
	case len(national) < minPhoneDigits || len(national) > maxPhoneDigits:
		res.Reason = ReasonPhoneLength
		return res
	}

	switch {
	case mobilePrefixRe.MatchString(national):
		res.Type = model.PhoneMobile
	case landlinePrefixRe.MatchString(national):
		res.Type = model.PhoneLandline
	default:
		res.Reason = ReasonPhonePrefix
		return res
	}

	if isFakePhone(national, placeholders) {
		res.Type = model.PhoneNone
		res.Reason = ReasonPhoneFake
		return res
	}

	res.Canonical = "+49" + national[1:]
	return res
}

// SelectPhone validates every raw phone and picks the first valid mobile,
// else the first valid landline. If none is valid the first failure is
// returned; with no input the reason is no_phone.
func SelectPhone(raws []string, placeholders []string) PhoneResult {
	if len(raws) == 0 {
		return PhoneResult{Type: model.PhoneNone, Reason: ReasonNoPhone}
	}
	var firstFail, firstLandline *PhoneResult
	for _, raw := range raws {
		res := CheckPhone(raw, placeholders)
		switch {
		case res.Valid() && res.Type == model.PhoneMobile:
			return res
		case res.Valid() && firstLandline == nil:
			firstLandline = &res
		case !res.Valid() && firstFail == nil:
			firstFail = &res
		}
	}
	if firstLandline != nil {
		return *firstLandline
	}
	return *firstFail
}

// isFakePhone flags placeholders, subscriber numbers made of one repeated
// digit and long ascending or descending digit runs.
func isFakePhone(national string, placeholders []string) bool {
	if slices.ContainsFunc(placeholders, func(p string) bool { return NormalizePhone(p) == national }) {
		return true
	}

	subscriber := national[len(national)-7:]
	if strings.Count(subscriber, subscriber[:1]) == len(subscriber) {
		return true
	}

	digits := national[1:]
	up, down := 1, 1
	for i := 1; i < len(digits); i++ {
		d := int(digits[i]) - int(digits[i-1])
		if d == 1 {
			up++
		} else {
			up = 1
		}
		if d == -1 {
			down++
		} else {
			down = 1
		}
		if up >= maxRunLength || down >= maxRunLength {
			return true
		}
	}
	return false
}
