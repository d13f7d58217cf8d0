package openapi

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Words splits an identifier or scope string into lower-case words. Word
// boundaries are non-alphanumeric runes and lower-to-upper case changes:
// "getAssociationMembers" and "get-association_members" both yield
// [get association members]. Acronym runs stay together ("getHTTPStatus"
// yields [get http status]).
func Words(s string) []string {
	var (
		words []string
		cur   []rune
	)
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if unicode.IsUpper(r) && len(cur) > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()

	return words
}

// PascalCase joins the words of s with each word title-cased:
// "customer-accounts" becomes "CustomerAccounts".
func PascalCase(s string) string {
	caser := cases.Title(language.Und)
	var b strings.Builder
	for _, w := range Words(s) {
		b.WriteString(caser.String(w))
	}
	return b.String()
}

// TagName returns the tag for a handler scope.
func TagName(scope string) string {
	return PascalCase(scope)
}

// Singular returns a naive English singular of a lower- or mixed-case
// word: "associations" -> "association", "categories" -> "category",
// "addresses" -> "address". Words that do not look plural are returned
// unchanged.
func Singular(word string) string {
	lower := strings.ToLower(word)
	switch {
	case strings.HasSuffix(lower, "ies") && len(word) > 3:
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(lower, "sses"), strings.HasSuffix(lower, "shes"),
		strings.HasSuffix(lower, "ches"), strings.HasSuffix(lower, "xes"):
		return word[:len(word)-2]
	case strings.HasSuffix(lower, "ss"), strings.HasSuffix(lower, "us"):
		return word
	case strings.HasSuffix(lower, "s") && len(word) > 1:
		return word[:len(word)-1]
	}
	return word
}

// SingularPascal returns the singular PascalCase resource name of a scope:
// "associations" -> "Association", "customer-accounts" -> "CustomerAccount".
func SingularPascal(scope string) string {
	words := Words(scope)
	if len(words) == 0 {
		return ""
	}
	words[len(words)-1] = Singular(words[len(words)-1])
	return PascalCase(strings.Join(words, " "))
}
