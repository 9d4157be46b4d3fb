package main

import (
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/opsboard/pkg/analysis"
	"github.com/vanderheijden86/opsboard/pkg/board"
	"github.com/vanderheijden86/opsboard/pkg/filter"
	"github.com/vanderheijden86/opsboard/pkg/metrics"
	"github.com/vanderheijden86/opsboard/pkg/model"
	"github.com/vanderheijden86/opsboard/pkg/workspace"
)

type robotCard struct {
	ID       string       `json:"id"`
	Tenant   string       `json:"tenant,omitempty"`
	Name     string       `json:"name"`
	Status   model.Status `json:"status"`
	Category string       `json:"category,omitempty"`
	Owner    string       `json:"owner,omitempty"`
	DueDate  *time.Time   `json:"due_date,omitempty"`
}

type robotCell struct {
	Target   string      `json:"target"`
	Status   string      `json:"status"`
	Category string      `json:"category,omitempty"`
	Count    int         `json:"count"`
	Items    []robotCard `json:"items"`
}

type robotTenant struct {
	Name    string `json:"name"`
	Path    string `json:"path,omitempty"`
	Records int    `json:"records"`
	Error   string `json:"error,omitempty"`
}

type robotBoardOutput struct {
	GeneratedAt string                `json:"generated_at"`
	Filter      filter.Criteria       `json:"filter"`
	Columns     []board.Column        `json:"columns"`
	Lanes       []board.Category      `json:"lanes,omitempty"`
	Cells       []robotCell           `json:"cells"`
	Unmapped    []robotCard           `json:"unmapped"`
	Hidden      []robotCard           `json:"hidden"`
	Health      analysis.BoardHealth  `json:"health"`
	Tenants     []robotTenant         `json:"tenants"`
	Timings     []metrics.TimingStats `json:"timings,omitempty"`
}

type robotFilterOutput struct {
	GeneratedAt string          `json:"generated_at"`
	Filter      filter.Criteria `json:"filter"`
	Count       int             `json:"count"`
	Records     []model.Record  `json:"records"`
}

func toCards(records []model.Record) []robotCard {
	cards := make([]robotCard, 0, len(records))
	for _, r := range records {
		cards = append(cards, robotCard{
			ID:       r.ID,
			Tenant:   r.Tenant,
			Name:     r.Name,
			Status:   r.Status,
			Category: r.Category,
			Owner:    r.Owner,
			DueDate:  r.DueDate,
		})
	}
	return cards
}

func buildRobotBoard(b *board.Board[model.Record], criteria filter.Criteria, results []workspace.LoadResult, now time.Time) robotBoardOutput {
	out := robotBoardOutput{
		GeneratedAt: now.UTC().Format(time.RFC3339),
		Filter:      criteria,
		Columns:     b.Columns(),
		Lanes:       b.Lanes(),
		Unmapped:    toCards(b.Unmapped()),
		Hidden:      toCards(b.Hidden()),
		Health:      analysis.Summarize(b, now),
		Tenants:     make([]robotTenant, 0, len(results)),
		Timings:     metrics.AllTimingStats(),
	}
	for _, cell := range b.Cells() {
		rc := robotCell{
			Target: cell.Target,
			Status: cell.Column.Status,
			Count:  len(cell.Items),
			Items:  toCards(cell.Items),
		}
		if cell.Category != nil {
			rc.Category = cell.Category.ID
		}
		out.Cells = append(out.Cells, rc)
	}
	for _, r := range results {
		t := robotTenant{Name: r.Tenant, Path: r.Source.Path, Records: len(r.Records)}
		if r.Error != nil {
			t.Error = r.Error.Error()
		}
		out.Tenants = append(out.Tenants, t)
	}
	return out
}

func buildRobotFilter(records []model.Record, criteria filter.Criteria, now time.Time) robotFilterOutput {
	if records == nil {
		records = []model.Record{}
	}
	return robotFilterOutput{
		GeneratedAt: now.UTC().Format(time.RFC3339),
		Filter:      criteria,
		Count:       len(records),
		Records:     records,
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
