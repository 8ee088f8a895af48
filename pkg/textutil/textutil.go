package textutil

import (
	"crypto/md5"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// NormalizeID canonicalizes a student identifier: trimmed, upper-cased,
// with spaces and punctuation stripped so "22 110-123" and "22110123"
// join to the same key.
func NormalizeID(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(raw)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// StripDiacritics removes combining marks, so "Nguyễn" becomes "Nguyen".
// The Vietnamese đ/Đ carry no combining mark and are mapped by hand.
func StripDiacritics(s string) string {
	out, _, err := transform.String(stripper, s)
	if err != nil {
		out = s
	}
	out = strings.ReplaceAll(out, "đ", "d")
	out = strings.ReplaceAll(out, "Đ", "D")
	return out
}

// NormalizeName lower-cases, strips diacritics and collapses runs of
// whitespace, producing the comparison form used for fuzzy name search.
func NormalizeName(raw string) string {
	s := strings.ToLower(StripDiacritics(raw))
	return strings.Join(strings.Fields(s), " ")
}

// HasDigit reports whether the string contains a decimal digit, which
// classifies a query as an identifier lookup rather than a name lookup.
func HasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
