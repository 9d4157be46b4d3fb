// Package filter narrows an item collection before it reaches the board or a
// list view. One due bucket, one creation bucket, exact-match category,
// sector and owner, and a free-text query are ANDed into a single predicate.
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/vanderheijden86/opsboard/pkg/bucket"
)

// All is the sentinel for an unset equality criterion.
const All = "all"

// Record is the read-only view the filter needs of an item.
type Record interface {
	ItemCategory() string
	ItemSector() string
	ItemOwner() string
	ItemName() string
	ItemDescription() string
	ItemDueDate() *time.Time
	ItemCreatedAt() time.Time
}

// Criteria is the active filter selection. Zero values and the "all" sentinel
// are no-ops.
type Criteria struct {
	Due      bucket.Due     `json:"due,omitempty" yaml:"due,omitempty"`
	Created  bucket.Created `json:"created,omitempty" yaml:"created,omitempty"`
	Category string         `json:"category,omitempty" yaml:"category,omitempty"`
	Sector   string         `json:"sector,omitempty" yaml:"sector,omitempty"`
	Owner    string         `json:"owner,omitempty" yaml:"owner,omitempty"`
	Query    string         `json:"query,omitempty" yaml:"query,omitempty"`
}

func unset(v string) bool {
	return v == "" || v == All
}

// IsZero reports whether no criterion is active.
func (c Criteria) IsZero() bool {
	return c.Due.IsAll() && c.Created.IsAll() &&
		unset(c.Category) && unset(c.Sector) && unset(c.Owner) &&
		strings.TrimSpace(c.Query) == ""
}

// String summarizes the active criteria for a header line.
func (c Criteria) String() string {
	if c.IsZero() {
		return "no filters"
	}
	var parts []string
	if !c.Due.IsAll() {
		parts = append(parts, c.Due.Label())
	}
	if !c.Created.IsAll() {
		parts = append(parts, c.Created.Label())
	}
	if !unset(c.Category) {
		parts = append(parts, "category="+c.Category)
	}
	if !unset(c.Sector) {
		parts = append(parts, "sector="+c.Sector)
	}
	if !unset(c.Owner) {
		parts = append(parts, "owner="+c.Owner)
	}
	if q := strings.TrimSpace(c.Query); q != "" {
		parts = append(parts, fmt.Sprintf("%q", q))
	}
	return strings.Join(parts, " · ")
}

// Matches reports whether item satisfies every active criterion.
func Matches[T Record](item T, c Criteria, now time.Time) bool {
	if !bucket.MatchDue(c.Due, now, item.ItemDueDate()) {
		return false
	}
	if !bucket.MatchCreated(c.Created, now, item.ItemCreatedAt()) {
		return false
	}
	if !unset(c.Category) && item.ItemCategory() != c.Category {
		return false
	}
	if !unset(c.Sector) && item.ItemSector() != c.Sector {
		return false
	}
	if !unset(c.Owner) && item.ItemOwner() != c.Owner {
		return false
	}
	return matchesQuery(item, c.Query)
}

func matchesQuery[T Record](item T, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(item.ItemName()), q) ||
		strings.Contains(strings.ToLower(item.ItemDescription()), q)
}

// Apply returns the items matching c, preserving input order. The input slice
// is not modified.
func Apply[T Record](items []T, c Criteria, now time.Time) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if Matches(item, c, now) {
			out = append(out, item)
		}
	}
	return out
}

// Options collects the distinct non-empty values of a field across items, in
// first-seen order. Views use it to populate category, sector and owner pickers.
func Options[T Record](items []T, field func(T) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, item := range items {
		v := field(item)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
