package pages

import (
	"time"

	"github.com/gomorishita/portfolio/internal/cms"
)

const DisplayDateLayout = "Jan 2, 2006"

// accepted input layouts, most specific first
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// FormatDate renders an ISO-8601 timestamp as "Jan 2, 2006" in loc (UTC when nil).
// A timestamp that cannot be parsed is returned unchanged, an empty one stays empty.
func FormatDate(iso string, loc *time.Location) string {
	if iso == "" {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, iso); err == nil {
			return t.In(loc).Format(DisplayDateLayout)
		}
	}

	return iso
}

// DisplayDate is the formatted publishedAt of the post, or its createdAt when never published.
func DisplayDate(post cms.PostSummary, loc *time.Location) string {
	return FormatDate(post.DisplayTimestamp(), loc)
}
