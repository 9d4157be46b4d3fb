package export

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/opsboard/pkg/analysis"
	"github.com/vanderheijden86/opsboard/pkg/board"
	"github.com/vanderheijden86/opsboard/pkg/bucket"
	"github.com/vanderheijden86/opsboard/pkg/metrics"
)

// Card is a board item the snapshot can draw.
type Card interface {
	analysis.Dated
	ItemName() string
}

// BoardSnapshotOptions controls board snapshot export.
type BoardSnapshotOptions struct {
	Path     string    // Output path; format inferred from extension when Format empty
	Format   string    // "svg" or "png" (case-insensitive)
	Title    string    // Rendered in the header block
	Subtitle string    // Usually the active filter summary
	Now      time.Time // Reference time for overdue marks; zero means time.Now()
	MaxCards int       // Cards drawn per cell before "+N more"; 0 means 8
}

// SaveBoardSnapshot renders the board as a static SVG or PNG image.
func SaveBoardSnapshot[T Card](b *board.Board[T], opts BoardSnapshotOptions) error {
	if b == nil {
		return fmt.Errorf("no board to export")
	}
	defer metrics.Timer(metrics.SnapshotExport)()
	format, path, err := resolveFormat(opts.Format, opts.Path)
	if err != nil {
		return err
	}
	opts.Path = path
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.MaxCards <= 0 {
		opts.MaxCards = 8
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	layout := buildBoardLayout(b, opts)
	switch format {
	case "svg":
		f, err := os.Create(opts.Path)
		if err != nil {
			return err
		}
		defer f.Close()
		return renderBoardSVG(f, layout)
	default:
		return renderBoardPNG(opts.Path, layout)
	}
}

func resolveFormat(format, path string) (string, string, error) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".svg":
			format = "svg"
		case ".png":
			format = "png"
		default:
			format = "svg"
			if path != "" && filepath.Ext(path) == "" {
				path += ".svg"
			}
		}
	}
	if format != "svg" && format != "png" {
		return "", "", fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	if path == "" {
		return "", "", fmt.Errorf("output path is required")
	}
	return format, path, nil
}

// --- layout ----------------------------------------------------------------

type cardBox struct {
	ID      string
	Name    string
	Overdue bool
	X, Y    float64
}

type cellBox struct {
	X, Y, W, H float64
	Count      int
	Overflow   int
	Cards      []cardBox
}

type headerBox struct {
	Title    string
	Subtitle string
	Stats    string
	Columns  []string // "Title (count)"
	ColumnX  []float64
}

type boardLayout struct {
	Width, Height int
	Header        headerBox
	Lanes         []string
	LaneY         []float64
	Cells         []cellBox
}

const (
	snapPadding   = 24.0
	snapHeaderH   = 96.0
	snapColHeadH  = 28.0
	snapColW      = 230.0
	snapColGap    = 12.0
	snapLaneW     = 130.0
	snapCardH     = 34.0
	snapCardGap   = 6.0
	snapCellPad   = 8.0
	snapMinCellH  = 48.0
	snapNameRunes = 28
)

func buildBoardLayout[T Card](b *board.Board[T], opts BoardSnapshotOptions) boardLayout {
	health := analysis.Summarize(b, opts.Now)

	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = "Board Snapshot"
	}

	left := snapPadding
	if b.Categorized() {
		left += snapLaneW
	}

	l := boardLayout{Header: headerBox{
		Title:    title,
		Subtitle: opts.Subtitle,
		Stats: fmt.Sprintf("items: %d  overdue: %d  hidden: %d  unmapped: %d  at %s",
			health.Total, health.Overdue, health.Hidden, health.Unmapped, opts.Now.Format("2006-01-02 15:04")),
	}}
	for i, col := range b.Columns() {
		l.Header.Columns = append(l.Header.Columns, fmt.Sprintf("%s (%d)", col.Title, b.Count(col.Status)))
		l.Header.ColumnX = append(l.Header.ColumnX, left+float64(i)*(snapColW+snapColGap))
	}

	// one row per lane, or a single unnamed row on a flat board
	lanes := b.Lanes()
	rows := len(lanes)
	if rows == 0 {
		rows = 1
	}
	cells := b.Cells()

	y := snapPadding + snapHeaderH + snapColHeadH
	for row := 0; row < rows; row++ {
		rowCells := make([]board.CellView[T], 0, len(b.Columns()))
		for c := range b.Columns() {
			rowCells = append(rowCells, cells[c*rows+row])
		}

		maxCards := 0
		for _, cell := range rowCells {
			n := min(len(cell.Items), opts.MaxCards)
			if len(cell.Items) > opts.MaxCards {
				n++
			}
			maxCards = max(maxCards, n)
		}
		h := max(snapMinCellH, 2*snapCellPad+float64(maxCards)*(snapCardH+snapCardGap))

		if len(lanes) > 0 {
			label := lanes[row].Label
			if lanes[row].Icon != "" {
				label = lanes[row].Icon + " " + label
			}
			l.Lanes = append(l.Lanes, truncate(label, 16))
			l.LaneY = append(l.LaneY, y)
		}

		for c, cell := range rowCells {
			box := cellBox{X: l.Header.ColumnX[c], Y: y, W: snapColW, H: h, Count: len(cell.Items)}
			for i, item := range cell.Items {
				if i == opts.MaxCards {
					box.Overflow = len(cell.Items) - opts.MaxCards
					break
				}
				box.Cards = append(box.Cards, cardBox{
					ID:      item.ItemID(),
					Name:    truncate(item.ItemName(), snapNameRunes),
					Overdue: bucket.IsOverdue(opts.Now, item.ItemDueDate()),
					X:       box.X + snapCellPad,
					Y:       y + snapCellPad + float64(i)*(snapCardH+snapCardGap),
				})
			}
			l.Cells = append(l.Cells, box)
		}
		y += h + snapColGap
	}

	l.Width = int(left + float64(len(b.Columns()))*(snapColW+snapColGap) + snapPadding)
	l.Height = int(y + snapPadding)
	l.Width = max(l.Width, 640)
	l.Height = max(l.Height, 320)
	return l
}

// --- rendering -------------------------------------------------------------

var (
	colorStroke   = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colorText     = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle   = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorBackdrop = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	colorHeaderBG = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}
	colorCellBG   = color.RGBA{0xee, 0xf0, 0xf3, 0xff}
	colorCard     = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorOverdue  = color.RGBA{0xff, 0xcd, 0xd2, 0xff}
)

func cardColor(c cardBox) color.RGBA {
	if c.Overdue {
		return colorOverdue
	}
	return colorCard
}

func renderBoardSVG(w io.Writer, l boardLayout) error {
	canvas := svg.New(w)
	canvas.Start(l.Width, l.Height)
	canvas.Rect(0, 0, l.Width, l.Height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Roundrect(16, 16, l.Width-32, int(snapHeaderH-16), 10, 10, fmt.Sprintf("fill:%s", css(colorHeaderBG)))

	canvas.Text(32, 44, l.Header.Title, fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(colorText)))
	if l.Header.Subtitle != "" {
		canvas.Text(32, 64, l.Header.Subtitle, fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", css(colorSubtle)))
	}
	canvas.Text(32, 84, l.Header.Stats, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))

	headY := int(snapPadding + snapHeaderH + snapColHeadH/2)
	for i, h := range l.Header.Columns {
		canvas.Text(int(l.Header.ColumnX[i]), headY, h, fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace;font-weight:bold", css(colorText)))
	}
	for i, lane := range l.Lanes {
		canvas.Text(int(snapPadding), int(l.LaneY[i]+20), lane, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace;font-weight:bold", css(colorText)))
	}

	for _, cell := range l.Cells {
		canvas.Roundrect(int(cell.X), int(cell.Y), int(cell.W), int(cell.H), 8, 8, fmt.Sprintf("fill:%s", css(colorCellBG)))
		for _, c := range cell.Cards {
			x, y := int(c.X), int(c.Y)
			canvas.Roundrect(x, y, int(cell.W-2*snapCellPad), int(snapCardH), 6, 6,
				fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(cardColor(c)), css(colorStroke)))
			canvas.Text(x+8, y+14, c.ID, fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace;font-weight:bold", css(colorText)))
			canvas.Text(x+8, y+28, c.Name, fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(colorSubtle)))
		}
		if cell.Overflow > 0 {
			y := cell.Y + snapCellPad + float64(len(cell.Cards))*(snapCardH+snapCardGap) + 16
			canvas.Text(int(cell.X+snapCellPad), int(y), fmt.Sprintf("+%d more", cell.Overflow),
				fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(colorSubtle)))
		}
	}

	canvas.End()
	return nil
}

func renderBoardPNG(path string, l boardLayout) error {
	dc := gg.NewContext(l.Width, l.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(16, 16, float64(l.Width)-32, snapHeaderH-16, 10)
	dc.Fill()
	dc.SetColor(colorText)
	dc.DrawStringAnchored(l.Header.Title, 32, 40, 0, 0.5)
	dc.SetColor(colorSubtle)
	if l.Header.Subtitle != "" {
		dc.DrawStringAnchored(l.Header.Subtitle, 32, 60, 0, 0.5)
	}
	dc.DrawStringAnchored(l.Header.Stats, 32, 80, 0, 0.5)

	headY := snapPadding + snapHeaderH + snapColHeadH/2
	dc.SetColor(colorText)
	for i, h := range l.Header.Columns {
		dc.DrawStringAnchored(h, l.Header.ColumnX[i], headY, 0, 0.5)
	}
	for i, lane := range l.Lanes {
		dc.DrawStringAnchored(lane, snapPadding, l.LaneY[i]+16, 0, 0.5)
	}

	for _, cell := range l.Cells {
		dc.SetColor(colorCellBG)
		dc.DrawRoundedRectangle(cell.X, cell.Y, cell.W, cell.H, 8)
		dc.Fill()
		for _, c := range cell.Cards {
			drawCard(dc, c, cell.W-2*snapCellPad)
		}
		if cell.Overflow > 0 {
			y := cell.Y + snapCellPad + float64(len(cell.Cards))*(snapCardH+snapCardGap) + 10
			dc.SetColor(colorSubtle)
			dc.DrawStringAnchored(fmt.Sprintf("+%d more", cell.Overflow), cell.X+snapCellPad, y, 0, 0.5)
		}
	}

	return dc.SavePNG(path)
}

func drawCard(dc *gg.Context, c cardBox, w float64) {
	dc.SetColor(cardColor(c))
	dc.DrawRoundedRectangle(c.X, c.Y, w, snapCardH, 6)
	dc.Fill()
	dc.SetColor(colorStroke)
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(c.X, c.Y, w, snapCardH, 6)
	dc.Stroke()

	dc.SetColor(colorText)
	dc.DrawStringAnchored(c.ID, c.X+8, c.Y+10, 0, 0.5)
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(c.Name, c.X+8, c.Y+25, 0, 0.5)
}

// --- helpers ---------------------------------------------------------------

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
