package main

import (
	"testing"
	"unicode/utf8"
)

func TestFitColumn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"pads short", "ollama", "ollama   "},
		{"exact", "whisper/1", "whisper/1"},
		{"truncates ascii", "openai / gpt-4o-mini", "openai /…"},
		{"truncates on rune boundary", "médecins-7b", "médecins…"},
		{"multibyte kept whole", "モデル名前テスト長い", "モデル名前テスト…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := fitColumn(tt.in, 9)
			if got != tt.want {
				t.Errorf("fitColumn(%q, 9) = %q, want %q", tt.in, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("fitColumn(%q, 9) = %q is not valid UTF-8", tt.in, got)
			}
			if n := utf8.RuneCountInString(got); n != 9 {
				t.Errorf("fitColumn(%q, 9) has %d runes, want 9", tt.in, n)
			}
		})
	}
}
