package manifest

//
// Recency comparison between competing manifests.
//

import (
	"strings"
	"time"
)

// timeLayouts lists the accepted ISO-8601 layouts. The manifest server
// emits RFC 3339 with either a timezone letter or a numeric offset.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
}

// parseTime parses an ISO-8601 timestamp tolerating both a trailing
// timezone letter and a numeric offset. Returns the zero time when the
// string cannot be parsed.
func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Newer returns the newer of two manifests comparing commit times and
// falling back to publish times when either commit time is absent.
// Ties and unparseable timestamps favor a.
func Newer(a, b *Manifest) *Manifest {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	ta, tb := parseTime(a.CommitTime), parseTime(b.CommitTime)
	if ta.IsZero() || tb.IsZero() {
		ta, tb = parseTime(a.PublishedTime), parseTime(b.PublishedTime)
	}
	if tb.After(ta) {
		return b
	}
	return a
}
