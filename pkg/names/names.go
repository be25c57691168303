// Package names holds the canonical guest-name comparison rules shared by
// the matching engine and the storage layer's normalized-name column.
package names

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeGuestName produces the canonical comparison form of a guest name:
// lower-cased, diacritics stripped, punctuation removed, whitespace
// collapsed. "José  García-López" and "jose garcia lopez" normalize equal.
func NormalizeGuestName(name string) string {
	stripped, _, err := transform.String(diacriticStripper, name)
	if err != nil {
		stripped = name
	}

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case r == ' ' || r == '-' || r == '\'' || r == ',' || r == '.':
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// SameGuestName reports whether two names normalize to the same form. Order
// of comma-separated parts is ignored so "García, José" matches "José
// García".
func SameGuestName(a, b string) bool {
	na, nb := NormalizeGuestName(a), NormalizeGuestName(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	return sortedTokens(na) == sortedTokens(nb)
}

func sortedTokens(s string) string {
	tokens := strings.Fields(s)
	// insertion sort; names have a handful of tokens
	for i := 1; i < len(tokens); i++ {
		for j := i; j > 0 && tokens[j] < tokens[j-1]; j-- {
			tokens[j], tokens[j-1] = tokens[j-1], tokens[j]
		}
	}
	return strings.Join(tokens, " ")
}
