package services

import (
	"strings"
	"time"

	"github.com/goodsign/monday"
)

const dateLayout = "02 Jan 2006"

var timestampLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
}

// ParseTimestamp parses a publication timestamp as the content API emits it.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate renders raw as "02 Jan 2006" in locale, in UTC. It reports false
// when the timestamp is absent or unparseable so callers can skip the date.
func FormatDate(raw string, locale string) (string, bool) {
	t, ok := ParseTimestamp(raw)
	if !ok {
		return "", false
	}
	return monday.Format(t.UTC(), dateLayout, monday.Locale(locale)), true
}
