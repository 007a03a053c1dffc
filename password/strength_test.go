package password

import (
	"testing"
)

func containsIssue(issues []string, want string) bool {
	for _, issue := range issues {
		if issue == want {
			return true
		}
	}
	return false
}

func TestValidateStrengthAccepts(t *testing.T) {
	report := ValidateStrength("Str0ng-Pass")
	if !report.Valid {
		t.Fatalf("expected valid, got issues %v", report.Issues)
	}
	if report.Score != 5 {
		t.Fatalf("expected score 5 for 11-char password, got %d", report.Score)
	}
}

func TestValidateStrengthLengthBonuses(t *testing.T) {
	twelve := ValidateStrength("Str0ng-Pass!")
	if twelve.Score != 6 {
		t.Fatalf("expected score 6 at 12 chars, got %d", twelve.Score)
	}

	sixteen := ValidateStrength("Str0ng-Pass!-More")
	if sixteen.Score != 7 {
		t.Fatalf("expected score 7 at 16+ chars, got %d", sixteen.Score)
	}
}

func TestValidateStrengthItemizesIssues(t *testing.T) {
	cases := []struct {
		plaintext string
		issue     string
	}{
		{"Ab1!xyz", IssueTooShort},
		{"lower-case-1!", IssueNoUppercase},
		{"UPPER-CASE-1!", IssueNoLowercase},
		{"NoDigits-Here!", IssueNoDigit},
		{"NoSymbolsHere1", IssueNoSymbol},
	}

	for _, tc := range cases {
		report := ValidateStrength(tc.plaintext)
		if report.Valid {
			t.Fatalf("%q: expected invalid", tc.plaintext)
		}
		if !containsIssue(report.Issues, tc.issue) {
			t.Fatalf("%q: expected issue %s, got %v", tc.plaintext, tc.issue, report.Issues)
		}
	}
}

func TestValidateStrengthEmptyNeverPanics(t *testing.T) {
	report := ValidateStrength("")
	if report.Valid {
		t.Fatal("expected empty password to be invalid")
	}
	if len(report.Issues) != 5 {
		t.Fatalf("expected all five issues, got %v", report.Issues)
	}
}

func TestGenerateSecret(t *testing.T) {
	secret, err := GenerateSecret(32)
	if err != nil {
		t.Fatalf("GenerateSecret error: %v", err)
	}
	if len(secret) != 64 {
		t.Fatalf("expected 64 hex chars for 32 bytes, got %d", len(secret))
	}

	other, err := GenerateSecret(32)
	if err != nil {
		t.Fatalf("GenerateSecret error: %v", err)
	}
	if secret == other {
		t.Fatal("expected successive secrets to differ")
	}

	if _, err := GenerateSecret(0); err == nil {
		t.Fatal("expected zero-length secret to be rejected")
	}
}
