package datasource

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/opsboard/pkg/model"
)

// SnapshotDiff describes what changed between two loads of the same data.
// The TUI uses it to summarize a live reload.
type SnapshotDiff struct {
	Added         []string           `json:"added,omitempty"`
	Removed       []string           `json:"removed,omitempty"`
	StatusChanges []StatusDifference `json:"status_changes,omitempty"`
	CountBefore   int                `json:"count_before"`
	CountAfter    int                `json:"count_after"`
}

// StatusDifference is a status change for a single record
type StatusDifference struct {
	ID     string       `json:"id"`
	Before model.Status `json:"before"`
	After  model.Status `json:"after"`
}

// DiffSnapshots compares two snapshots by record ID. Output slices are
// sorted by ID.
func DiffSnapshots(before, after []model.Record) SnapshotDiff {
	d := SnapshotDiff{CountBefore: len(before), CountAfter: len(after)}

	old := make(map[string]model.Status, len(before))
	for _, r := range before {
		old[r.ID] = r.Status
	}
	seen := make(map[string]bool, len(after))
	for _, r := range after {
		seen[r.ID] = true
		prev, ok := old[r.ID]
		switch {
		case !ok:
			d.Added = append(d.Added, r.ID)
		case prev != r.Status:
			d.StatusChanges = append(d.StatusChanges, StatusDifference{ID: r.ID, Before: prev, After: r.Status})
		}
	}
	for _, r := range before {
		if !seen[r.ID] {
			d.Removed = append(d.Removed, r.ID)
		}
	}

	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Slice(d.StatusChanges, func(i, j int) bool { return d.StatusChanges[i].ID < d.StatusChanges[j].ID })
	return d
}

// IsEmpty returns true when nothing changed
func (d SnapshotDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.StatusChanges) == 0
}

// Summary returns a one-line description for a status bar.
func (d SnapshotDiff) Summary() string {
	if d.IsEmpty() {
		return fmt.Sprintf("no changes (%d records)", d.CountAfter)
	}
	var parts []string
	if n := len(d.Added); n > 0 {
		parts = append(parts, fmt.Sprintf("%d added", n))
	}
	if n := len(d.Removed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", n))
	}
	if n := len(d.StatusChanges); n > 0 {
		if n == 1 {
			c := d.StatusChanges[0]
			parts = append(parts, fmt.Sprintf("%s: %s → %s", c.ID, c.Before, c.After))
		} else {
			parts = append(parts, fmt.Sprintf("%d moved", n))
		}
	}
	return strings.Join(parts, ", ")
}
