package services

import (
	"regexp"
	"strings"
)

var (
	reBlankLines = regexp.MustCompile(`\n\s*\n`)
	reSpaces     = regexp.MustCompile(` +`)

	noisePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Subscribe.*newsletter`),
		regexp.MustCompile(`(?i)Sign up.*free`),
		regexp.MustCompile(`(?i)Click here.*`),
		regexp.MustCompile(`(?i)Read more.*`),
		regexp.MustCompile(`(?i)Share this.*`),
		regexp.MustCompile(`(?i)Follow us.*`),
		regexp.MustCompile(`(?i)Copyright.*`),
		regexp.MustCompile(`(?i)All rights reserved.*`),
		regexp.MustCompile(`(?i)Cookie.*policy`),
		regexp.MustCompile(`(?i)Privacy.*policy`),
	}
)

// cleanExtractedText collapses whitespace, strips boilerplate phrases and
// caps the length, cutting at a sentence end when one is close enough.
func cleanExtractedText(text string) string {
	text = collapseWhitespace(text)
	for _, re := range noisePatterns {
		text = re.ReplaceAllString(text, "")
	}
	return capAtSentence(text)
}

func collapseWhitespace(text string) string {
	text = reBlankLines.ReplaceAllString(text, "\n\n")
	return reSpaces.ReplaceAllString(text, " ")
}

func capAtSentence(text string) string {
	runes := []rune(text)
	if len(runes) > maxExtractedChars {
		runes = runes[:maxExtractedChars]
		for i := len(runes) - 1; i > sentenceCutoffFrom; i-- {
			if runes[i] == '.' {
				runes = runes[:i+1]
				break
			}
		}
		text = string(runes)
	}
	return strings.TrimSpace(text)
}

// truncateRunes cuts s to at most n characters without splitting a rune.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// countWords splits on any whitespace run.
func countWords(s string) int {
	return len(strings.Fields(s))
}
