package utils

import (
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	DateLayout,
	"02/01/2006",
}

// ParseDate accepts time values and ISO datetime or date-only strings.
func ParseDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return *t, true
	case []byte:
		return ParseDate(string(t))
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

// FormatDate renders v as YYYY-MM-DD in the zone it was recorded in, or nil when unparsable.
func FormatDate(v any) *string {
	t, ok := ParseDate(v)
	if !ok {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}

// FormatTimestamp renders v as RFC 3339 in UTC, or nil when unparsable.
func FormatTimestamp(v any) *string {
	t, ok := ParseDate(v)
	if !ok {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
