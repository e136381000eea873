package release

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// romanNumeralRegex matches Roman numerals II-IX after a space. Standalone
// "I" and "X" are left alone ("I Robot", "American History X").
var romanNumeralRegex = regexp.MustCompile(`(?i) (ii|iii|iv|v|vi|vii|viii|ix)\b`)

var romanToArabic = map[string]string{
	"ii": "2", "iii": "3", "iv": "4", "v": "5",
	"vi": "6", "vii": "7", "viii": "8", "ix": "9",
}

var leadingArticles = []string{"the ", "a ", "an "}

// punctuation is replaced before the final letter/digit filter.
var punctuation = strings.NewReplacer("&", " and ", "-", " ", "'", "", "’", "", ".", " ", "_", " ")

// NormalizeRomanNumerals converts Roman numerals (II-IX) to Arabic numbers.
func NormalizeRomanNumerals(s string) string {
	return romanNumeralRegex.ReplaceAllStringFunc(s, func(match string) string {
		if arabic, ok := romanToArabic[strings.ToLower(strings.TrimSpace(match))]; ok {
			return " " + arabic
		}
		return match
	})
}

// CleanTitle normalizes a title for comparison: lowercase, no accents, no
// leading articles, punctuation collapsed, Roman numerals as digits.
func CleanTitle(title string) string {
	s := NormalizeRomanNumerals(strings.ToLower(title))
	s = punctuation.Replace(RemoveAccents(s))

	parts := strings.Split(s, ":")
	for i, part := range parts {
		parts[i] = stripLeadingArticle(part)
	}
	s = strings.Join(parts, " ")

	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// RemoveAccents strips combining marks ("Amélie" becomes "Amelie").
func RemoveAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

func stripLeadingArticle(s string) string {
	s = strings.TrimSpace(s)
	for _, art := range leadingArticles {
		if rest, ok := strings.CutPrefix(s, art); ok {
			return rest
		}
	}
	return s
}

// NormalizeSearchQuery prepares a query for indexer APIs. Accents are
// removed, & becomes "and" and whitespace is collapsed.
func NormalizeSearchQuery(query string) string {
	s := strings.ReplaceAll(RemoveAccents(query), "&", "and")
	return strings.Join(strings.Fields(s), " ")
}
