package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/opsboard/pkg/bucket"
)

// FormatTimeRel returns a relative time string (e.g., "2h ago", "3d ago")
func FormatTimeRel(now, t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dw ago", int(d.Hours()/(24*7)))
	default:
		return fmt.Sprintf("%dmo ago", int(d.Hours()/(24*30)))
	}
}

// FormatDue renders a due date relative to now for a card's meta line.
func FormatDue(now time.Time, due *time.Time) string {
	switch bucket.ClassifyDue(now, due) {
	case bucket.DueNoDate:
		return ""
	case bucket.DueOverdue:
		days := int(math.Round(bucket.StartOfDay(now).Sub(bucket.StartOfDay(due.In(now.Location()))).Hours() / 24))
		if days <= 1 {
			return "overdue 1d"
		}
		return fmt.Sprintf("overdue %dd", days)
	case bucket.DueToday:
		return "due today"
	case bucket.DueTomorrow:
		return "due tomorrow"
	default:
		return "due " + due.In(now.Location()).Format("Jan 2")
	}
}

// truncateRunesHelper truncates a string to max visual width (cells), adding suffix if needed.
func truncateRunesHelper(s string, maxWidth int, suffix string) string {
	if maxWidth <= 0 {
		return ""
	}

	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}

	suffixWidth := runewidth.StringWidth(suffix)
	if suffixWidth > maxWidth {
		return runewidth.Truncate(suffix, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth-suffixWidth, "") + suffix
}

// truncate truncates s to width cells with an ellipsis.
func truncate(s string, width int) string {
	return truncateRunesHelper(s, width, "…")
}

// padRight pads s with spaces to width cells.
func padRight(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}
