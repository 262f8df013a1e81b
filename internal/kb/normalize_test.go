// File path: internal/kb/normalize_test.go
package kb

import (
	"strings"
	"testing"
)

func TestPassForMetadata(t *testing.T) {
	cases := []struct {
		name     string
		metadata map[string]string
		want     string
	}{
		{"nil metadata", nil, PassStandard},
		{"plain text", map[string]string{"is_pdf": "false"}, PassStandard},
		{"pdf", map[string]string{"is_pdf": "true"}, PassPDFOptimized},
		{"text pdf", map[string]string{"is_text_pdf": "yes"}, PassPDFOptimized},
		{"ocr wins over pdf", map[string]string{"is_pdf": "true", "is_ocr_processed": "1"}, PassOCREnhanced},
	}
	for _, tc := range cases {
		if got := PassForMetadata(tc.metadata); got != tc.want {
			t.Errorf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}

func TestNormalizeStandardCollapsesBlankRuns(t *testing.T) {
	got := Normalize("first\n\n\n\n\nsecond", PassStandard)
	if got != "first\n\nsecond" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeStandardStripsControlCharacters(t *testing.T) {
	got := Normalize("hello\x00world\x07 here", PassStandard)
	if strings.ContainsAny(got, "\x00\x07") {
		t.Fatalf("control characters survived: %q", got)
	}
}

func TestNormalizePDFDropsPageArtifacts(t *testing.T) {
	input := "The agreement begins here.\n12\nPage 3 of 10\nand continues below."
	got := Normalize(input, PassPDFOptimized)
	if strings.Contains(got, "12") || strings.Contains(strings.ToLower(got), "page 3") {
		t.Fatalf("page artifacts survived: %q", got)
	}
	if !strings.Contains(got, "The agreement begins here.") {
		t.Fatalf("body text lost: %q", got)
	}
}

func TestNormalizePDFMergesHyphenBreaks(t *testing.T) {
	got := Normalize("the trans-\nformation was complete", PassPDFOptimized)
	if !strings.Contains(got, "transformation") {
		t.Fatalf("hyphen break not merged: %q", got)
	}
}

func TestNormalizeOCRDropsNoiseLines(t *testing.T) {
	input := "This line is long enough to keep around.\n|:.\nAnother line worth keeping here."
	got := Normalize(input, PassOCREnhanced)
	if strings.Contains(got, "|:.") {
		t.Fatalf("noise line survived: %q", got)
	}
	if !strings.Contains(got, "long enough to keep") {
		t.Fatalf("body text lost: %q", got)
	}
}

func TestNormalizeOCRFixesIsolatedZero(t *testing.T) {
	got := Normalize("the letter 0 stands alone in this sentence", PassOCREnhanced)
	if !strings.Contains(got, " O ") {
		t.Fatalf("isolated zero not corrected: %q", got)
	}
}

func TestNormalizeFallsBackWhenResultEmpty(t *testing.T) {
	// Every line is OCR noise; the original text must survive.
	got := Normalize("ab\ncd", PassOCREnhanced)
	if got == "" {
		t.Fatal("normalization dropped all content without fallback")
	}
}
