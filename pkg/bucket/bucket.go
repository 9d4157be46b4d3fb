// Package bucket classifies dates into named temporal buckets (overdue, today,
// this week, ...) relative to a caller-supplied reference time.
//
// Every function is pure: the reference "now" is always a parameter and all
// calendar arithmetic happens in now's location, so day, week and month
// boundaries are local calendar boundaries rather than rolling windows.
// Weeks start on Sunday.
package bucket

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownBucket is returned when a bucket token cannot be parsed.
var ErrUnknownBucket = errors.New("unknown bucket")

// Due is a due-date bucket.
type Due string

const (
	DueAll       Due = "all"
	DueOverdue   Due = "overdue"
	DueToday     Due = "today"
	DueTomorrow  Due = "tomorrow"
	DueThisWeek  Due = "thisWeek"
	DueNextWeek  Due = "nextWeek"
	DueThisMonth Due = "thisMonth"
	DueNoDate    Due = "noDate"
)

// Created is a creation-date bucket.
type Created string

const (
	CreatedAll       Created = "all"
	CreatedToday     Created = "today"
	CreatedThisWeek  Created = "thisWeek"
	CreatedThisMonth Created = "thisMonth"
)

// AllDue returns the due buckets in the order a filter control cycles them.
func AllDue() []Due {
	return []Due{DueAll, DueOverdue, DueToday, DueTomorrow, DueThisWeek, DueNextWeek, DueThisMonth, DueNoDate}
}

// AllCreated returns the creation buckets in cycle order.
func AllCreated() []Created {
	return []Created{CreatedAll, CreatedToday, CreatedThisWeek, CreatedThisMonth}
}

// Label returns the display text for the bucket.
func (d Due) Label() string {
	switch d {
	case DueOverdue:
		return "Overdue"
	case DueToday:
		return "Due today"
	case DueTomorrow:
		return "Due tomorrow"
	case DueThisWeek:
		return "This week"
	case DueNextWeek:
		return "Next week"
	case DueThisMonth:
		return "This month"
	case DueNoDate:
		return "No due date"
	default:
		return "Any due date"
	}
}

// Label returns the display text for the bucket.
func (c Created) Label() string {
	switch c {
	case CreatedToday:
		return "Created today"
	case CreatedThisWeek:
		return "Created this week"
	case CreatedThisMonth:
		return "Created this month"
	default:
		return "Any creation date"
	}
}

// IsAll reports whether d is the no-op bucket.
func (d Due) IsAll() bool { return d == "" || d == DueAll }

// IsAll reports whether c is the no-op bucket.
func (c Created) IsAll() bool { return c == "" || c == CreatedAll }

// ParseDue parses a due bucket token. Matching ignores case, and the
// separators "-", "_" and " " so "this-week" and "THIS_WEEK" both resolve.
// An empty token yields DueAll.
func ParseDue(s string) (Due, error) {
	key := normalize(s)
	if key == "" {
		return DueAll, nil
	}
	for _, d := range AllDue() {
		if normalize(string(d)) == key {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: due %q", ErrUnknownBucket, s)
}

// ParseCreated parses a creation bucket token with the same rules as ParseDue.
func ParseCreated(s string) (Created, error) {
	key := normalize(s)
	if key == "" {
		return CreatedAll, nil
	}
	for _, c := range AllCreated() {
		if normalize(string(c)) == key {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: created %q", ErrUnknownBucket, s)
}

func normalize(s string) string {
	r := strings.NewReplacer("-", "", "_", "", " ", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(s)))
}

// StartOfDay returns local midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns midnight of the Sunday starting t's week.
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// StartOfMonth returns midnight of the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// within reports whether t lies in [start, end).
func within(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

func local(now time.Time, t time.Time) time.Time {
	return t.In(now.Location())
}

// IsNoDate reports whether the item has no due date.
func IsNoDate(_ time.Time, due *time.Time) bool {
	return due == nil
}

// IsOverdue reports whether due falls before the start of now's day. Anything
// due earlier today is not overdue.
func IsOverdue(now time.Time, due *time.Time) bool {
	if due == nil {
		return false
	}
	return local(now, *due).Before(StartOfDay(now))
}

// IsToday reports whether due falls on now's calendar day.
func IsToday(now time.Time, due *time.Time) bool {
	if due == nil {
		return false
	}
	start := StartOfDay(now)
	return within(local(now, *due), start, start.AddDate(0, 0, 1))
}

// IsTomorrow reports whether due falls on the calendar day after now.
func IsTomorrow(now time.Time, due *time.Time) bool {
	if due == nil {
		return false
	}
	start := StartOfDay(now).AddDate(0, 0, 1)
	return within(local(now, *due), start, start.AddDate(0, 0, 1))
}

// IsThisWeek reports whether due falls in now's Sunday-started week,
// including days of the week that have already passed.
func IsThisWeek(now time.Time, due *time.Time) bool {
	if due == nil {
		return false
	}
	start := StartOfWeek(now)
	return within(local(now, *due), start, start.AddDate(0, 0, 7))
}

// IsNextWeek reports whether due falls in the week after now's week.
func IsNextWeek(now time.Time, due *time.Time) bool {
	if due == nil {
		return false
	}
	start := StartOfWeek(now).AddDate(0, 0, 7)
	return within(local(now, *due), start, start.AddDate(0, 0, 7))
}

// IsThisMonth reports whether due falls in now's calendar month.
func IsThisMonth(now time.Time, due *time.Time) bool {
	if due == nil {
		return false
	}
	start := StartOfMonth(now)
	return within(local(now, *due), start, start.AddDate(0, 1, 0))
}

// MatchDue reports whether due belongs to bucket b. Week and month buckets
// are supersets of today and tomorrow, so membership is tested per bucket
// rather than derived from ClassifyDue. Unknown buckets match nothing.
func MatchDue(b Due, now time.Time, due *time.Time) bool {
	switch b {
	case "", DueAll:
		return true
	case DueOverdue:
		return IsOverdue(now, due)
	case DueToday:
		return IsToday(now, due)
	case DueTomorrow:
		return IsTomorrow(now, due)
	case DueThisWeek:
		return IsThisWeek(now, due)
	case DueNextWeek:
		return IsNextWeek(now, due)
	case DueThisMonth:
		return IsThisMonth(now, due)
	case DueNoDate:
		return IsNoDate(now, due)
	default:
		return false
	}
}

// ClassifyDue returns the most specific bucket for due: the first match of
// noDate, overdue, today, tomorrow, thisWeek, nextWeek, thisMonth. Dates
// outside all of them classify as DueAll.
func ClassifyDue(now time.Time, due *time.Time) Due {
	for _, b := range []Due{DueNoDate, DueOverdue, DueToday, DueTomorrow, DueThisWeek, DueNextWeek, DueThisMonth} {
		if MatchDue(b, now, due) {
			return b
		}
	}
	return DueAll
}

// MatchCreated reports whether created belongs to creation bucket c.
func MatchCreated(c Created, now time.Time, created time.Time) bool {
	switch c {
	case "", CreatedAll:
		return true
	case CreatedToday:
		return IsToday(now, &created)
	case CreatedThisWeek:
		return IsThisWeek(now, &created)
	case CreatedThisMonth:
		return IsThisMonth(now, &created)
	default:
		return false
	}
}
