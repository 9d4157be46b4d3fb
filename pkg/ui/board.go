package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/opsboard/pkg/board"
	"github.com/vanderheijden86/opsboard/pkg/bucket"
	"github.com/vanderheijden86/opsboard/pkg/metrics"
	"github.com/vanderheijden86/opsboard/pkg/model"
)

// BoardView renders the board engine as a terminal grid. It owns the
// selection cursor and, while a card is picked up, the drop cursor. All
// grouping is delegated to the engine.
type BoardView struct {
	engine *board.Board[model.Record]
	theme  Theme
	now    func() time.Time

	col, lane, row    int
	dropCol, dropLane int
}

const (
	minColWidth = 24
	cardLines   = 4 // 2 content lines + border
)

// NewBoardView wraps engine.
func NewBoardView(engine *board.Board[model.Record], theme Theme, now func() time.Time) BoardView {
	if now == nil {
		now = time.Now
	}
	return BoardView{engine: engine, theme: theme, now: now}
}

// Engine returns the wrapped board.
func (v *BoardView) Engine() *board.Board[model.Record] { return v.engine }

func (v *BoardView) laneCount() int {
	return max(1, len(v.engine.Lanes()))
}

func (v *BoardView) laneID(lane int) string {
	if !v.engine.Categorized() {
		return ""
	}
	return v.engine.Lanes()[lane].ID
}

func (v *BoardView) cellItems(col, lane int) []model.Record {
	cols := v.engine.Columns()
	if col < 0 || col >= len(cols) {
		return nil
	}
	if !v.engine.Categorized() {
		return v.engine.Column(cols[col].Status)
	}
	return v.engine.Cell(cols[col].Status, v.laneID(lane))
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(v, lo), hi)
}

func (v *BoardView) clamp() {
	v.col = clampInt(v.col, 0, len(v.engine.Columns())-1)
	v.lane = clampInt(v.lane, 0, v.laneCount()-1)
	v.row = clampInt(v.row, 0, len(v.cellItems(v.col, v.lane))-1)
	v.dropCol = clampInt(v.dropCol, 0, len(v.engine.Columns())-1)
	v.dropLane = clampInt(v.dropLane, 0, v.laneCount()-1)
}

// SetItems hands a new snapshot to the engine, keeping the selected record
// under the cursor when it is still visible.
func (v *BoardView) SetItems(records []model.Record) {
	selected, hadSelection := v.Selected()
	v.engine.SetItems(records)
	if hadSelection && v.Focus(selected.ID) {
		return
	}
	v.clamp()
}

// Focus moves the cursor to the record with id.
func (v *BoardView) Focus(id string) bool {
	for c := range v.engine.Columns() {
		for l := 0; l < v.laneCount(); l++ {
			for r, item := range v.cellItems(c, l) {
				if item.ID == id {
					v.col, v.lane, v.row = c, l, r
					return true
				}
			}
		}
	}
	return false
}

// Selected returns the record under the cursor.
func (v *BoardView) Selected() (model.Record, bool) {
	items := v.cellItems(v.col, v.lane)
	if v.row < 0 || v.row >= len(items) {
		return model.Record{}, false
	}
	return items[v.row], true
}

// Cursor returns the focused column, lane and row.
func (v *BoardView) Cursor() (col, lane, row int) { return v.col, v.lane, v.row }

func (v *BoardView) MoveLeft() {
	v.col--
	v.clamp()
}

func (v *BoardView) MoveRight() {
	v.col++
	v.clamp()
}

// MoveDown moves within the cell and on into the next lane.
func (v *BoardView) MoveDown() {
	if v.row < len(v.cellItems(v.col, v.lane))-1 {
		v.row++
		return
	}
	for l := v.lane + 1; l < v.laneCount(); l++ {
		if len(v.cellItems(v.col, l)) > 0 {
			v.lane, v.row = l, 0
			return
		}
	}
}

// MoveUp moves within the cell and on into the previous lane.
func (v *BoardView) MoveUp() {
	if v.row > 0 {
		v.row--
		return
	}
	for l := v.lane - 1; l >= 0; l-- {
		if n := len(v.cellItems(v.col, l)); n > 0 {
			v.lane, v.row = l, n-1
			return
		}
	}
}

func (v *BoardView) NextLane() {
	v.lane++
	v.row = 0
	v.clamp()
}

func (v *BoardView) PrevLane() {
	v.lane--
	v.row = 0
	v.clamp()
}

// Dragging reports whether a card is picked up.
func (v *BoardView) Dragging() bool { return v.engine.Dragging() }

// PickUp starts a drag on the selected card. The drop cursor starts on the
// card's own cell.
func (v *BoardView) PickUp() bool {
	rec, ok := v.Selected()
	if !ok || !v.engine.DragStart(rec.ID) {
		return false
	}
	v.dropCol, v.dropLane = v.col, v.lane
	return true
}

// MoveDropTarget shifts the drop cursor by dc columns and dl lanes.
func (v *BoardView) MoveDropTarget(dc, dl int) {
	v.dropCol += dc
	v.dropLane += dl
	v.clamp()
}

// DropTarget returns the token for the cell under the drop cursor.
func (v *BoardView) DropTarget() string {
	cols := v.engine.Columns()
	if len(cols) == 0 {
		return ""
	}
	return board.Target(cols[v.dropCol].Status, v.laneID(v.dropLane))
}

// Drop releases the card on the drop cursor.
func (v *BoardView) Drop() (board.Intent, error) {
	intent, err := v.engine.Drop(v.DropTarget())
	v.clamp()
	return intent, err
}

// Cancel abandons the drag.
func (v *BoardView) Cancel() { v.engine.Cancel() }

// dropLabel names the drop cursor cell for the title bar.
func (v *BoardView) dropLabel() string {
	col := v.engine.Columns()[v.dropCol]
	if !v.engine.Categorized() {
		return col.Title
	}
	return col.Title + " / " + v.engine.Lanes()[v.dropLane].Label
}

// View renders the grid into width × height cells.
func (v BoardView) View(width, height int) string {
	defer metrics.Timer(metrics.BoardRender)()
	t := v.theme
	cols := v.engine.Columns()

	titleBar := v.renderTitleBar(width)
	if len(cols) == 0 {
		return titleBar
	}

	numCols := len(cols)
	colWidth := max(minColWidth, (width-(numCols-1))/numCols)
	bodyHeight := max(cardLines+2, height-3) // title bar, blank line, column header

	lanes := v.laneCount()
	laneHeader := 0
	if v.engine.Categorized() {
		laneHeader = 1
	}
	perLane := max(cardLines, bodyHeight/lanes-laneHeader-1)
	fit := max(1, perLane/cardLines)

	activeID := ""
	if rec, ok := v.engine.Active(); ok {
		activeID = rec.ID
	}

	var rendered []string
	for c, col := range cols {
		color := t.StatusColor(col.Status, c)
		headerText := truncate(fmt.Sprintf("%s (%d)", col.Title, v.engine.Count(col.Status)), colWidth-2)
		headerStyle := t.Renderer.NewStyle().Width(colWidth).Align(lipgloss.Center).Bold(true)
		switch {
		case v.Dragging() && c == v.dropCol && !v.engine.Categorized():
			headerStyle = headerStyle.Inherit(t.DropTarget)
			headerText = "▼ " + headerText
		case c == v.col:
			headerStyle = headerStyle.Background(color).Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#1a1a1a"})
		default:
			headerStyle = headerStyle.Foreground(color)
		}

		parts := []string{headerStyle.Render(headerText)}
		for l := 0; l < lanes; l++ {
			if v.engine.Categorized() {
				parts = append(parts, v.renderLaneHeader(c, l, colWidth))
			}
			parts = append(parts, v.renderCell(c, l, colWidth, fit, activeID)...)
		}

		column := t.Renderer.NewStyle().Width(colWidth).Height(bodyHeight + 1).
			Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
		rendered = append(rendered, column)
	}

	return lipgloss.JoinVertical(lipgloss.Left, titleBar, v.joinColumnsWithSeparators(rendered))
}

func (v BoardView) renderLaneHeader(c, l, width int) string {
	t := v.theme
	lane := v.engine.Lanes()[l]
	label := lane.Label
	if lane.Icon != "" {
		label = lane.Icon + " " + label
	}
	text := truncate(fmt.Sprintf("%s (%d)", label, len(v.cellItems(c, l))), width-2)

	style := t.Renderer.NewStyle().Width(width).Foreground(t.Secondary).Bold(true)
	if v.Dragging() && c == v.dropCol && l == v.dropLane {
		style = style.Inherit(t.DropTarget)
		text = "▶ " + text
	}
	return style.Render(text)
}

func (v BoardView) renderCell(c, l, width, fit int, activeID string) []string {
	t := v.theme
	items := v.cellItems(c, l)
	focused := c == v.col && l == v.lane

	if len(items) == 0 {
		return []string{t.MutedText.Width(width).Align(lipgloss.Center).Italic(true).Render("(empty)")}
	}

	start := 0
	if focused && v.row >= fit {
		start = v.row - fit + 1
	}
	end := min(start+fit, len(items))

	var out []string
	for r := start; r < end; r++ {
		item := items[r]
		style := t.Card
		switch {
		case item.ID == activeID:
			style = t.Dragged
		case focused && r == v.row && !v.Dragging():
			style = t.Selected
		}
		out = append(out, style.Width(width-2).Render(v.cardContent(item, width-4)))
	}
	if hidden := len(items) - (end - start); hidden > 0 {
		out = append(out, t.MutedText.Width(width).Align(lipgloss.Center).Italic(true).
			Render(fmt.Sprintf("↕ %d/%d", min(v.row+1, len(items)), len(items))))
	}
	return out
}

func (v BoardView) cardContent(item model.Record, width int) string {
	t := v.theme
	now := v.now()

	id := item.ID
	if !v.engine.Categorized() && item.Category != "" {
		id += " · " + item.Category
	}
	meta := t.MutedText.Render(truncate(id, width))

	if due := FormatDue(now, item.DueDate); due != "" {
		color := t.Subtext
		switch bucket.ClassifyDue(now, item.DueDate) {
		case bucket.DueOverdue:
			color = t.Overdue
		case bucket.DueToday, bucket.DueTomorrow:
			color = t.DueSoon
		}
		gap := width - lipgloss.Width(meta) - lipgloss.Width(due) - 1
		if gap > 0 {
			meta += strings.Repeat(" ", gap+1) + t.Renderer.NewStyle().Foreground(color).Render(due)
		}
	}

	name := item.Name
	if name == "" {
		name = "(untitled)"
	}
	return meta + "\n" + t.Base.Render(padRight(truncate(name, width), width))
}

func (v BoardView) renderTitleBar(width int) string {
	t := v.theme

	title := "BOARD"
	if v.engine.Categorized() {
		title += " [by category]"
	}
	if n := len(v.engine.Hidden()); n > 0 {
		title += fmt.Sprintf(" [%d hidden]", n)
	}
	if n := len(v.engine.Unmapped()); n > 0 {
		title += fmt.Sprintf(" [%d unmapped]", n)
	}
	style := t.Renderer.NewStyle().Width(width).Align(lipgloss.Center).Foreground(t.Primary).Bold(true)

	if rec, ok := v.engine.Active(); ok && len(v.engine.Columns()) > 0 {
		title = fmt.Sprintf("MOVING %s → %s   enter: drop · esc: cancel", rec.ID, v.dropLabel())
		style = style.Foreground(t.DueSoon)
	}
	return style.Render(truncate(title, width))
}

// joinColumnsWithSeparators joins rendered columns with solid vertical separators.
func (v BoardView) joinColumnsWithSeparators(cols []string) string {
	if len(cols) == 0 {
		return ""
	}
	if len(cols) == 1 {
		return cols[0]
	}

	colLines := make([][]string, len(cols))
	widths := make([]int, len(cols))
	maxLines := 0
	for i, col := range cols {
		colLines[i] = strings.Split(col, "\n")
		widths[i] = lipgloss.Width(col)
		maxLines = max(maxLines, len(colLines[i]))
	}

	sep := v.theme.Renderer.NewStyle().Foreground(v.theme.Secondary).Render("│")

	rows := make([]string, 0, maxLines)
	for row := 0; row < maxLines; row++ {
		parts := make([]string, len(colLines))
		for i := range colLines {
			line := ""
			if row < len(colLines[i]) {
				line = colLines[i][row]
			}
			if pad := widths[i] - lipgloss.Width(line); pad > 0 {
				line += strings.Repeat(" ", pad)
			}
			parts[i] = line
		}
		rows = append(rows, strings.Join(parts, sep))
	}
	return strings.Join(rows, "\n")
}
