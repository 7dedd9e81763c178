package extract

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	emailRE      = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	letterRE     = regexp.MustCompile(`\p{L}`)

	// Leading honorifics and trailing credentials stripped during
	// normalization. Matched case-insensitively on word boundaries.
	honorificRE  = regexp.MustCompile(`(?i)^(?:dr|prof|professor|mr|mrs|ms|rev|sir|dame)\.?\s+`)
	credentialRE = regexp.MustCompile(`(?i)[,\s]+(?:ph\.?d\.?|m\.?d\.?|ed\.?d\.?|j\.?d\.?|emeritus|emerita)\.?\s*$`)
)

var caseFolder = cases.Fold()

// titleWords are heading texts that look name-shaped but are page boilerplate.
var titleWords = map[string]bool{
	"contact us":        true,
	"about us":          true,
	"our team":          true,
	"our people":        true,
	"faculty":           true,
	"staff":             true,
	"people":            true,
	"directory":         true,
	"faculty directory": true,
	"staff directory":   true,
	"faculty & staff":   true,
	"faculty and staff": true,
	"emeritus faculty":  true,
	"search results":    true,
	"quick links":       true,
	"related links":     true,
}

// NormalizeName collapses whitespace and strips honorifics and trailing
// credentials. Returns "" when nothing recoverable remains.
func NormalizeName(raw string) string {
	name := whitespaceRE.ReplaceAllString(strings.TrimSpace(raw), " ")
	for {
		stripped := honorificRE.ReplaceAllString(name, "")
		if stripped == name {
			break
		}
		name = stripped
	}
	for {
		stripped := credentialRE.ReplaceAllString(name, "")
		if stripped == name {
			break
		}
		name = stripped
	}
	return strings.TrimSpace(name)
}

// FoldName case-folds a normalized name for use in canonicalization keys.
func FoldName(name string) string {
	return caseFolder.String(name)
}

// LooksLikeName filters heading text down to name-shaped strings: bounded
// length, letter-majority, at least two words, and not known boilerplate.
func LooksLikeName(text string) bool {
	text = strings.TrimSpace(text)
	if len(text) < 4 || len(text) > 80 {
		return false
	}
	if titleWords[strings.ToLower(text)] {
		return false
	}
	words := strings.Fields(text)
	if len(words) < 2 || len(words) > 6 {
		return false
	}
	letters := len(letterRE.FindAllString(text, -1))
	if letters*2 < len(text) {
		return false
	}
	// Reject obvious sentences and navigation labels.
	if strings.ContainsAny(text, "?!:;") {
		return false
	}
	return true
}

// FindEmail returns the first email-shaped token in text, or "".
func FindEmail(text string) string {
	return emailRE.FindString(text)
}
