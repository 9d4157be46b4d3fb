package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"

	"github.com/vanderheijden86/opsboard/pkg/model"
)

// DetailPanel shows one record as rendered markdown in a scrollable viewport.
type DetailPanel struct {
	viewport viewport.Model
	renderer *glamour.TermRenderer
	wrap     int
	recordID string
}

// NewDetailPanel builds a panel that wraps markdown at wrap columns.
func NewDetailPanel(wrap, width, height int) DetailPanel {
	if wrap <= 0 {
		wrap = 60
	}
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	return DetailPanel{
		viewport: viewport.New(width, height),
		renderer: renderer,
		wrap:     wrap,
	}
}

// RecordID returns the ID of the record on display.
func (d DetailPanel) RecordID() string { return d.recordID }

// SetSize resizes the viewport.
func (d *DetailPanel) SetSize(width, height int) {
	d.viewport.Width = width
	d.viewport.Height = height
}

// Show renders rec into the viewport and scrolls to the top.
func (d *DetailPanel) Show(rec model.Record, now time.Time) {
	d.recordID = rec.ID
	md := RecordMarkdown(rec, now)
	if d.renderer == nil {
		d.viewport.SetContent(md)
	} else if rendered, err := d.renderer.Render(md); err != nil {
		d.viewport.SetContent(fmt.Sprintf("Error rendering markdown: %v", err))
	} else {
		d.viewport.SetContent(rendered)
	}
	d.viewport.GotoTop()
}

// ScrollDown and ScrollUp move the viewport by one line.
func (d *DetailPanel) ScrollDown() { d.viewport.ScrollDown(1) }
func (d *DetailPanel) ScrollUp()   { d.viewport.ScrollUp(1) }

func (d DetailPanel) View() string { return d.viewport.View() }

// RecordMarkdown formats rec for the detail panel.
func RecordMarkdown(rec model.Record, now time.Time) string {
	var sb strings.Builder

	name := rec.Name
	if name == "" {
		name = "(untitled)"
	}
	fmt.Fprintf(&sb, "# %s\n\n", name)

	sb.WriteString("| ID | Kind | Status | Tenant |\n|---|---|---|---|\n")
	tenant := rec.Tenant
	if tenant == "" {
		tenant = "-"
	}
	fmt.Fprintf(&sb, "| **%s** | %s | **%s** | %s |\n\n",
		rec.ID, orDash(string(rec.Kind)), strings.ToUpper(string(rec.Status)), tenant)

	sb.WriteString("| Category | Sector | Owner |\n|---|---|---|\n")
	owner := orDash(rec.Owner)
	if rec.Owner != "" {
		owner = "@" + rec.Owner
	}
	fmt.Fprintf(&sb, "| %s | %s | %s |\n\n", orDash(rec.Category), orDash(rec.Sector), owner)

	if rec.DueDate != nil {
		fmt.Fprintf(&sb, "**Due:** %s (%s)\n\n", rec.DueDate.Format("2006-01-02"), FormatDue(now, rec.DueDate))
	} else {
		sb.WriteString("**Due:** no date\n\n")
	}
	fmt.Fprintf(&sb, "**Created:** %s (%s)\n\n", rec.CreatedAt.Format("2006-01-02"), FormatTimeRel(now, rec.CreatedAt))
	if !rec.UpdatedAt.IsZero() {
		fmt.Fprintf(&sb, "**Updated:** %s\n\n", FormatTimeRel(now, rec.UpdatedAt))
	}

	if rec.Description != "" {
		sb.WriteString("### Description\n")
		sb.WriteString(rec.Description + "\n")
	}
	return sb.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
