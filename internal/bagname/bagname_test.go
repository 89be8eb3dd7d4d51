package bagname

import (
	"testing"
	"time"
)

func TestFormatDecomposeRoundTrip(t *testing.T) {
	date := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	name := Format("azu", 1234567, 2, "Smith", "0123456789abcdef0123456789abcdef", date)

	want := "azu_1234567-v02-Smith-0123456789abcdef0123456789abcdef_bag_20250304"
	if name != want {
		t.Fatalf("Format() = %q, want %q", name, want)
	}

	got, err := Decompose(name)
	if err != nil {
		t.Fatalf("Decompose() returned unexpected error: %v", err)
	}
	if got.ArticleID != 1234567 {
		t.Fatalf("ArticleID = %v, want 1234567", got.ArticleID)
	}
	if got.Version != 2 {
		t.Fatalf("Version = %v, want 2", got.Version)
	}
	if got.LastName != "Smith" {
		t.Fatalf("LastName = %q, want Smith", got.LastName)
	}
	if got.Fingerprint != "0123456789abcdef0123456789abcdef" {
		t.Fatalf("Fingerprint = %q, want the 32-hex fingerprint", got.Fingerprint)
	}
	if !got.HasDate || !got.Date.Equal(date) {
		t.Fatalf("Date = %v (hasDate=%v), want %v", got.Date, got.HasDate, date)
	}
}

func TestFormatVersionPaddingForDoubleDigitVersions(t *testing.T) {
	date := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	name := Format("azu", 1, 12, "Doe", "abcdefabcdefabcdefabcdefabcdefab", date)
	if got := name; got != "azu_1-v12-Doe-abcdefabcdefabcdefabcdefabcdefab_bag_20250101" {
		t.Fatalf("Format() = %q", got)
	}
}

func TestSlugifyLastNameStripsNonAlnum(t *testing.T) {
	if got := SlugifyLastName("O'Brien-Smith"); got != "OBrienSmith" {
		t.Fatalf("SlugifyLastName() = %q, want OBrienSmith", got)
	}
}

func TestMatchesArticleVersion(t *testing.T) {
	name := "azu_1234567-v02-Smith-0123456789abcdef0123456789abcdef_bag_20250304"
	if !MatchesArticleVersion(name, 1234567, 2) {
		t.Fatalf("expected match for (1234567, v02)")
	}
	if MatchesArticleVersion(name, 1234567, 3) {
		t.Fatalf("expected no match for (1234567, v03)")
	}
}

func TestExtractFingerprint(t *testing.T) {
	fp, ok := ExtractFingerprint("azu_1234567-v02-Smith-0123456789abcdef0123456789abcdef_bag_20250304.tar")
	if !ok {
		t.Fatalf("expected a fingerprint to be found")
	}
	if fp != "0123456789abcdef0123456789abcdef" {
		t.Fatalf("ExtractFingerprint() = %q", fp)
	}
}

func TestDecomposeRejectsMalformedName(t *testing.T) {
	if _, err := Decompose("not-a-valid-bag-name"); err == nil {
		t.Fatalf("expected an error for a malformed name")
	}
}
