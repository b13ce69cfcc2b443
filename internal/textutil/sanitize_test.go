package textutil

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestSanitizeFileNameReplacesUnsafeCharacters(t *testing.T) {
	got := SanitizeFileName(` News: "Live" <HD>/Late|Show?* `)
	want := `News_ _Live_ _HD__Late_Show__`
	if got != want {
		t.Fatalf("SanitizeFileName = %q, want %q", got, want)
	}
}

func TestSanitizeFileNameNormalizesToNFC(t *testing.T) {
	decomposed := "Cafe\u0301"
	if got := SanitizeFileName(decomposed); got != "Caf\u00e9" {
		t.Fatalf("expected NFC form, got %q", got)
	}
}

func TestRecordingFileName(t *testing.T) {
	start := time.Date(2024, 3, 9, 20, 5, 0, 0, time.UTC)
	got := RecordingFileName(start, "BBC One", "Doctor Who: The Return")
	want := "2024-03-09T20-05-00_BBC One_Doctor Who_ The Return.ts"
	if got != want {
		t.Fatalf("RecordingFileName = %q, want %q", got, want)
	}
}

func TestRecordingFileNameTruncatesByRunes(t *testing.T) {
	channel := strings.Repeat("é", 40)
	title := strings.Repeat("日", 80)
	got := RecordingFileName(time.Unix(0, 0), channel, title)
	parts := strings.SplitN(strings.TrimSuffix(got, ".ts"), "_", 3)
	if len(parts) != 3 {
		t.Fatalf("unexpected name %q", got)
	}
	if n := utf8.RuneCountInString(parts[1]); n != 30 {
		t.Fatalf("channel has %d runes, want 30", n)
	}
	if n := utf8.RuneCountInString(parts[2]); n != 50 {
		t.Fatalf("title has %d runes, want 50", n)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := TruncateRunes("abc", 5); got != "abc" {
		t.Fatalf("short input changed: %q", got)
	}
	if got := TruncateRunes("abc", 0); got != "" {
		t.Fatalf("zero limit should be empty, got %q", got)
	}
}
