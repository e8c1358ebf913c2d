package services

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestCleanExtractedTextCollapsesWhitespace(t *testing.T) {
	in := "First   line\n\n\n   \nSecond    line"
	if got := cleanExtractedText(in); got != "First line\n\nSecond line" {
		t.Fatalf("got %q", got)
	}
}

func TestCleanExtractedTextStripsBoilerplate(t *testing.T) {
	in := "Real sentence one.\nSubscribe to our newsletter\nCopyright 2024 Example Corp\nRead more about this\nReal sentence two."
	got := cleanExtractedText(in)
	for _, noise := range []string{"Subscribe", "Copyright", "Read more"} {
		if strings.Contains(got, noise) {
			t.Errorf("%q not removed from %q", noise, got)
		}
	}
	if !strings.Contains(got, "Real sentence one.") || !strings.Contains(got, "Real sentence two.") {
		t.Fatalf("content lost: %q", got)
	}
}

func TestCleanExtractedTextCutsAtSentenceBoundary(t *testing.T) {
	sentence := strings.Repeat("x", 99) + "."
	in := strings.Repeat(sentence, 120) // 12000 chars
	got := cleanExtractedText(in)
	if n := utf8.RuneCountInString(got); n > maxExtractedChars || n <= sentenceCutoffFrom {
		t.Fatalf("length = %d", n)
	}
	if !strings.HasSuffix(got, ".") {
		t.Fatalf("expected cut at a period, got suffix %q", got[len(got)-5:])
	}
}

func TestCleanExtractedTextHardCutWithoutLateSentenceEnd(t *testing.T) {
	in := "Intro." + strings.Repeat("y", 11000)
	got := cleanExtractedText(in)
	if n := utf8.RuneCountInString(got); n != maxExtractedChars {
		t.Fatalf("length = %d, want %d", n, maxExtractedChars)
	}
}

func TestCountWords(t *testing.T) {
	if n := countWords("  one two\tthree\nfour  "); n != 4 {
		t.Fatalf("countWords = %d", n)
	}
	if n := countWords(""); n != 0 {
		t.Fatalf("countWords(empty) = %d", n)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("héllo", 2); got != "hé" {
		t.Fatalf("got %q", got)
	}
	if got := truncateRunes("abc", 10); got != "abc" {
		t.Fatalf("got %q", got)
	}
}
