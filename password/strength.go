package password

import "unicode"

// Strength issue codes returned in [StrengthReport.Issues]. They are stable
// strings intended for UI mapping, not display text.
const (
	IssueTooShort    = "too_short"
	IssueNoUppercase = "no_uppercase"
	IssueNoLowercase = "no_lowercase"
	IssueNoDigit     = "no_digit"
	IssueNoSymbol    = "no_symbol"
)

// StrengthReport is the result of [ValidateStrength]. Valid is true when no
// issues were found. Score counts satisfied criteria plus length bonuses and
// is meaningful even for invalid passwords.
type StrengthReport struct {
	Valid  bool
	Score  int
	Issues []string
}

// MinLength is the minimum accepted password length in runes.
const MinLength = 8

// ValidateStrength checks the plaintext against the password policy:
// minimum length and presence of uppercase, lowercase, digit, and symbol
// classes. Longer passwords earn bonus score at 12 and 16 characters.
// It never returns an error; policy failures are itemized in the report.
func ValidateStrength(plaintext string) StrengthReport {
	var report StrengthReport

	runes := []rune(plaintext)
	if len(runes) >= MinLength {
		report.Score++
	} else {
		report.Issues = append(report.Issues, IssueTooShort)
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range runes {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	checks := []struct {
		ok    bool
		issue string
	}{
		{hasUpper, IssueNoUppercase},
		{hasLower, IssueNoLowercase},
		{hasDigit, IssueNoDigit},
		{hasSymbol, IssueNoSymbol},
	}
	for _, c := range checks {
		if c.ok {
			report.Score++
		} else {
			report.Issues = append(report.Issues, c.issue)
		}
	}

	if len(runes) >= 12 {
		report.Score++
	}
	if len(runes) >= 16 {
		report.Score++
	}

	report.Valid = len(report.Issues) == 0
	return report
}
