package grpm

import (
	"strings"
	"unicode"
)

// Tokens splits free text into normalized marker tokens. Tokens are maximal
// runs of letters, digits, '-' and '_', lowercased, with '-' and '_' trimmed
// from both ends. Duplicates are dropped; order of first appearance is kept.
func Tokens(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !isTokenRune(r)
	})

	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tok := NormalizeMarker(f)
		if tok == "" {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}
	return tokens
}

// NormalizeMarker lowercases a single marker token and trims joiner runes.
func NormalizeMarker(s string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(s)), "-_")
}

// NormalizeItem lowercases a meal item or association and collapses whitespace.
func NormalizeItem(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_'
}

// isSingleToken reports whether s survives tokenization as exactly itself.
func isSingleToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isTokenRune(r) {
			return false
		}
	}
	return true
}
