package config

import (
	"strings"
	"unicode"

	"github.com/gosimple/slug"
)

// MaxTitleRunes limits length of file names derived from titles.
const MaxTitleRunes = 50

// SanitizeFileName turns arbitrary title into something usable as a part of
// file name: characters not allowed on common file systems are removed,
// surrounding spaces trimmed and the result is limited to MaxTitleRunes.
// Empty string is returned when nothing is left so callers can pick their
// own fallback.
func SanitizeFileName(title string) string {
	out := strings.TrimSpace(strings.Map(func(sym rune) rune {
		if sym < ' ' || strings.ContainsRune(`\/*?:"<>|`, sym) {
			return -1
		}
		return sym
	}, title))
	if r := []rune(out); len(r) > MaxTitleRunes {
		out = strings.TrimSpace(string(r[:MaxTitleRunes]))
	}
	return out
}

// Transliterate converts non-ASCII characters to their ASCII equivalents
// while preserving spaces and capitalization of every word.
// For example: "Война и мир" -> "Voina i mir"
func Transliterate(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		words[i] = transliterateWord(word)
	}
	return strings.Join(words, " ")
}

func transliterateWord(word string) string {
	runes := []rune(word)
	if len(runes) == 0 {
		return ""
	}
	firstUpper := unicode.IsUpper(runes[0])
	allUpper := isAllUpper(runes)

	slug.Lowercase = false
	trans := slug.Make(word)
	slug.Lowercase = true

	if trans == "" {
		return word
	}

	out := []rune(trans)
	switch {
	case allUpper:
		for i := range out {
			out[i] = unicode.ToUpper(out[i])
		}
	case firstUpper:
		out[0] = unicode.ToUpper(out[0])
	}
	return string(out)
}

func isAllUpper(runes []rune) bool {
	hasLetter := false
	for _, r := range runes {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}
