package analysis

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/vanderheijden86/opsboard/pkg/board"
	"github.com/vanderheijden86/opsboard/pkg/bucket"
)

// Dated is a board item with the dates the health summary needs.
type Dated interface {
	board.Item
	ItemDueDate() *time.Time
	ItemCreatedAt() time.Time
}

// ColumnHealth summarizes one board column.
type ColumnHealth struct {
	Status        string             `json:"status"`
	Title         string             `json:"title"`
	Count         int                `json:"count"`
	Buckets       map[bucket.Due]int `json:"buckets"`         // most specific due bucket per item
	Overdue       int                `json:"overdue"`         // items whose due date has passed
	MeanAgeDays   float64            `json:"mean_age_days"`   // since creation
	MedianAgeDays float64            `json:"median_age_days"` // empirical 0.5 quantile
	P90AgeDays    float64            `json:"p90_age_days"`    // empirical 0.9 quantile
	OldestID      string             `json:"oldest_id,omitempty"`
}

// LaneHealth summarizes one category lane across all columns.
type LaneHealth struct {
	Category string `json:"category"`
	Label    string `json:"label"`
	Count    int    `json:"count"`
	Overdue  int    `json:"overdue"`
}

// BoardHealth is the per-column and per-lane overview shown in the TUI
// footer and returned by --robot-board.
type BoardHealth struct {
	GeneratedAt  time.Time      `json:"generated_at"`
	Total        int            `json:"total"`    // visible items
	Hidden       int            `json:"hidden"`   // dropped by the category view
	Unmapped     int            `json:"unmapped"` // status matches no column
	Overdue      int            `json:"overdue"`
	OverdueShare float64        `json:"overdue_share"`
	Columns      []ColumnHealth `json:"columns"`
	Lanes        []LaneHealth   `json:"lanes,omitempty"`
}

// Summarize computes board health at now. Only items the board shows are
// counted per column; hidden and unmapped items are reported as totals.
func Summarize[T Dated](b *board.Board[T], now time.Time) BoardHealth {
	h := BoardHealth{
		GeneratedAt: now,
		Hidden:      len(b.Hidden()),
		Unmapped:    len(b.Unmapped()),
	}

	for _, col := range b.Columns() {
		items := b.Column(col.Status)
		ch := columnHealth(col, items, now)
		h.Columns = append(h.Columns, ch)
		h.Total += ch.Count
		h.Overdue += ch.Overdue
	}
	if h.Total > 0 {
		h.OverdueShare = float64(h.Overdue) / float64(h.Total)
	}

	for _, lane := range b.Lanes() {
		lh := LaneHealth{Category: lane.ID, Label: lane.Label}
		for _, col := range b.Columns() {
			for _, item := range b.Cell(col.Status, lane.ID) {
				lh.Count++
				if bucket.IsOverdue(now, item.ItemDueDate()) {
					lh.Overdue++
				}
			}
		}
		h.Lanes = append(h.Lanes, lh)
	}
	return h
}

func columnHealth[T Dated](col board.Column, items []T, now time.Time) ColumnHealth {
	ch := ColumnHealth{
		Status:  col.Status,
		Title:   col.Title,
		Count:   len(items),
		Buckets: make(map[bucket.Due]int),
	}
	if len(items) == 0 {
		return ch
	}

	ages := make([]float64, 0, len(items))
	var oldest time.Time
	for _, item := range items {
		due := item.ItemDueDate()
		ch.Buckets[bucket.ClassifyDue(now, due)]++
		if bucket.IsOverdue(now, due) {
			ch.Overdue++
		}

		created := item.ItemCreatedAt()
		ages = append(ages, AgeDays(now, created))
		if ch.OldestID == "" || created.Before(oldest) {
			oldest = created
			ch.OldestID = item.ItemID()
		}
	}

	sort.Float64s(ages)
	ch.MeanAgeDays = stat.Mean(ages, nil)
	ch.MedianAgeDays = stat.Quantile(0.5, stat.Empirical, ages, nil)
	ch.P90AgeDays = stat.Quantile(0.9, stat.Empirical, ages, nil)
	return ch
}

// AgeDays returns the fractional days between created and now, never
// negative.
func AgeDays(now, created time.Time) float64 {
	if created.IsZero() || created.After(now) {
		return 0
	}
	return now.Sub(created).Hours() / 24
}
