// Package matching provides title normalization and fuzzy title/year
// matching for reconciling requested media against remote release names.
package matching

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	punctuationRegex   = regexp.MustCompile(`[,:;'\-]`)
	separatorRegex     = regexp.MustCompile(`[.\s_]+`)
	resolutionRegex    = regexp.MustCompile(`\b\d{3,4}p\b`)
	yearTokenRegex     = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	parenYearRegex     = regexp.MustCompile(`\s*\((19\d{2}|20\d{2})\)\s*$`)
	nonAlphanumVariant = regexp.MustCompile(`[^a-z0-9 ]`)
)

// wordsToDigits maps number words zero through twenty to digit tokens.
// Release names and localized titles disagree on numeral style
// ("Ocean's Eleven" vs "Oceans 11"), so both directions are compared.
var wordsToDigits = map[string]string{
	"zero": "0", "one": "1", "two": "2", "three": "3", "four": "4",
	"five": "5", "six": "6", "seven": "7", "eight": "8", "nine": "9",
	"ten": "10", "eleven": "11", "twelve": "12", "thirteen": "13",
	"fourteen": "14", "fifteen": "15", "sixteen": "16",
	"seventeen": "17", "eighteen": "18", "nineteen": "19", "twenty": "20",
}

var digitsToWords = func() map[string]string {
	m := make(map[string]string, len(wordsToDigits))
	for word, digit := range wordsToDigits {
		m[digit] = word
	}
	return m
}()

// NormalizedTitle bundles the comparable forms of a title.
type NormalizedTitle struct {
	// Cleaned is the case-folded form with punctuation stripped and
	// separators collapsed to single spaces.
	Cleaned string
	// DigitVariant is Cleaned with number words replaced by digits.
	DigitVariant string
	// WordVariant is Cleaned with digit tokens replaced by number words.
	WordVariant string
}

// Forms returns the distinct comparable forms, Cleaned first.
func (n NormalizedTitle) Forms() []string {
	forms := []string{n.Cleaned}
	if n.DigitVariant != n.Cleaned {
		forms = append(forms, n.DigitVariant)
	}
	if n.WordVariant != n.Cleaned && n.WordVariant != n.DigitVariant {
		forms = append(forms, n.WordVariant)
	}
	return forms
}

// foldTransformer decomposes accented runes and drops the combining
// marks, so "Amélie" compares as "amelie".
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize canonicalizes a raw title into its comparable forms.
// Idempotent: normalizing a Cleaned form yields the same Cleaned form.
func Normalize(title string) NormalizedTitle {
	if folded, _, err := transform.String(foldTransformer, title); err == nil {
		title = folded
	}
	cleaned := strings.ToLower(title)
	cleaned = punctuationRegex.ReplaceAllString(cleaned, "")
	cleaned = separatorRegex.ReplaceAllString(cleaned, " ")
	cleaned = nonAlphanumVariant.ReplaceAllString(cleaned, "")
	cleaned = separatorRegex.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	return NormalizedTitle{
		Cleaned:      cleaned,
		DigitVariant: replaceTokens(cleaned, wordsToDigits),
		WordVariant:  replaceTokens(cleaned, digitsToWords),
	}
}

// StripYearSuffix removes a trailing parenthetical year from a requested
// title ("Dune (2021)" -> "Dune") and returns the year when present.
func StripYearSuffix(title string) (string, int) {
	match := parenYearRegex.FindStringSubmatch(title)
	if match == nil {
		return strings.TrimSpace(title), 0
	}
	stripped := parenYearRegex.ReplaceAllString(title, "")
	return strings.TrimSpace(stripped), atoiYear(match[1])
}

// ExtractYear returns the first 4-digit token in [1900,2099] found in
// text. With ignoreResolutionTags set, resolution tokens such as 2160p
// are removed first so "Dune 2160p" does not yield 2160.
func ExtractYear(text string, ignoreResolutionTags bool) (int, bool) {
	if ignoreResolutionTags {
		text = resolutionRegex.ReplaceAllString(text, " ")
	}
	match := yearTokenRegex.FindString(text)
	if match == "" {
		return 0, false
	}
	return atoiYear(match), true
}

func replaceTokens(s string, table map[string]string) string {
	fields := strings.Fields(s)
	changed := false
	for i, field := range fields {
		if repl, ok := table[field]; ok {
			fields[i] = repl
			changed = true
		}
	}
	if !changed {
		return s
	}
	return strings.Join(fields, " ")
}

func atoiYear(s string) int {
	year := 0
	for _, r := range s {
		year = year*10 + int(r-'0')
	}
	return year
}
