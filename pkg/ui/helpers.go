package ui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// relSteps maps an age to the largest display unit that fits. Ages past
// the last step render in months.
var relSteps = []struct {
	limit time.Duration
	div   time.Duration
	unit  string
}{
	{time.Hour, time.Minute, "m"},
	{24 * time.Hour, time.Hour, "h"},
	{7 * 24 * time.Hour, 24 * time.Hour, "d"},
	{30 * 24 * time.Hour, 7 * 24 * time.Hour, "w"},
}

// FormatTimeRel renders a creation time relative to now: "42m ago",
// "3d ago". The zero time reads "unknown"; future stamps read "now".
func FormatTimeRel(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	age := time.Since(t)
	if age < time.Minute {
		return "now"
	}
	for _, s := range relSteps {
		if age < s.limit {
			return fmt.Sprintf("%d%s ago", int(age/s.div), s.unit)
		}
	}
	return fmt.Sprintf("%dmo ago", int(age/(30*24*time.Hour)))
}

// truncateRunesHelper clips s to maxWidth display cells, appending suffix
// when something was cut. Widths are terminal cells via go-runewidth, so
// CJK and emoji count double.
func truncateRunesHelper(s string, maxWidth int, suffix string) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	keep := maxWidth - runewidth.StringWidth(suffix)
	if keep < 0 {
		return runewidth.Truncate(suffix, maxWidth, "")
	}
	return runewidth.Truncate(s, keep, "") + suffix
}

// truncate is the common case: clip to width with an ellipsis.
func truncate(s string, maxWidth int) string {
	return truncateRunesHelper(s, maxWidth, "…")
}

// padRight pads s with spaces to width runes.
func padRight(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

// formatCount renders a child count pair like "3/12" (folders/items),
// collapsing to a single number when there are no subfolders.
func formatCount(folders, items int) string {
	if folders == 0 {
		return fmt.Sprintf("%d", items)
	}
	return fmt.Sprintf("%d/%d", folders, items)
}
