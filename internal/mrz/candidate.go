package mrz

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// OCR engines read the '<' filler as a guillemet and split long filler runs
	// with spaces.
	confusions = strings.NewReplacer(
		"«", "<",
		"‹", "<",
		" ", "",
	)

	reCandidate = regexp.MustCompile(`^[A-Z0-9<]*$`)
)

// Normalize turns a recognized line into candidate form: OCR confusions
// replaced, spaces removed, upper-cased and trimmed. The result is not
// guaranteed to be a valid candidate; check it with IsCandidate.
func Normalize(text string) string {
	return strings.TrimSpace(strings.ToUpper(confusions.Replace(text)))
}

// IsCandidate reports whether s only uses the MRZ character set.
func IsCandidate(s string) bool {
	return reCandidate.MatchString(s)
}

func textLength(s string) int {
	return utf8.RuneCountInString(s)
}
