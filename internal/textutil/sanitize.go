package textutil

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	maxChannelRunes = 30
	maxTitleRunes   = 50

	fileTimestampLayout = "2006-01-02T15-04-05"
)

// SanitizeFileName NFC-normalizes name and replaces characters that are
// invalid on common filesystems (<>:"/\|?* and control characters) with an
// underscore.
func SanitizeFileName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	return strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '_'
		}
		if unicode.IsControl(r) {
			return '_'
		}
		return r
	}, name)
}

// TruncateRunes returns at most n runes of s.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// RecordingFileName returns "<start>_<channel>_<title>.ts" with start in UTC
// as YYYY-MM-DDTHH-MM-SS, the channel cut to 30 runes and the title to 50.
func RecordingFileName(start time.Time, channel, title string) string {
	var b strings.Builder
	b.WriteString(start.UTC().Format(fileTimestampLayout))
	b.WriteByte('_')
	b.WriteString(TruncateRunes(SanitizeFileName(channel), maxChannelRunes))
	b.WriteByte('_')
	b.WriteString(TruncateRunes(SanitizeFileName(title), maxTitleRunes))
	b.WriteString(".ts")
	return b.String()
}
