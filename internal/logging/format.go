package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// headerLayout stamps each console line in local wall-clock time.
const headerLayout = "2006-01-02 15:04:05"

func headerTime(ts time.Time) string {
	return ts.Local().Format(headerLayout)
}

// headerValue renders the component and schedule id lifted into the header.
func headerValue(v slog.Value) string {
	return renderValue(v.Resolve())
}

// fieldValue renders an indented field, quoting text that would not read back
// as a single token.
func fieldValue(v slog.Value) string {
	s := renderValue(v.Resolve())
	if needsQuotes(s) {
		return strconv.Quote(s)
	}
	return s
}

func renderValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindTime:
		// Program instants keep their offset so a schedule reads the same on any host.
		if v.Time().IsZero() {
			return "-"
		}
		return v.Time().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindAny:
		switch x := v.Any().(type) {
		case error:
			return x.Error()
		case []string:
			return strings.Join(x, ",")
		case fmt.Stringer:
			return x.String()
		default:
			return fmt.Sprint(x)
		}
	default:
		return v.String()
	}
}

func needsQuotes(s string) bool {
	return s == "" || strings.ContainsFunc(s, func(r rune) bool {
		return r <= ' ' || r == '=' || r == '"'
	})
}
