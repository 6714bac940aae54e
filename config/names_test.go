package config

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Chapter 1", "Chapter 1"},
		{"forbidden characters", `A/B\C*D?E:F"G<H>I|J`, "ABCDEFGHIJ"},
		{"surrounding spaces", "  Part One  ", "Part One"},
		{"control characters", "Tab\there", "Tabhere"},
		{"only forbidden", `/?*`, ""},
		{"empty", "", ""},
		{"cyrillic kept", "Глава первая", "Глава первая"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFileName(tt.input); got != tt.want {
				t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeFileName_Limit(t *testing.T) {
	long := strings.Repeat("Ж", MaxTitleRunes+20)
	got := SanitizeFileName(long)
	if n := utf8.RuneCountInString(got); n != MaxTitleRunes {
		t.Errorf("rune count = %d, want %d", n, MaxTitleRunes)
	}
	if !utf8.ValidString(got) {
		t.Error("truncation must not split runes")
	}

	// trailing space left by truncation is trimmed
	spaced := strings.Repeat("a", MaxTitleRunes-1) + " tail"
	if got := SanitizeFileName(spaced); got != strings.Repeat("a", MaxTitleRunes-1) {
		t.Errorf("SanitizeFileName() = %q", got)
	}
}

func TestTransliterate(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Война и мир", "Voina i mir"},
		{"ВОЙНА", "VOINA"},
		{"война", "voina"},
		{"Test Book", "Test Book"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Transliterate(tt.input); got != tt.want {
				t.Errorf("Transliterate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
