package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/opsboard/pkg/model"
)

type Theme struct {
	Renderer *lipgloss.Renderer

	// Colors
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor

	// Status
	Pending    lipgloss.AdaptiveColor
	InProgress lipgloss.AdaptiveColor
	Completed  lipgloss.AdaptiveColor
	Archived   lipgloss.AdaptiveColor

	// Due state
	Overdue lipgloss.AdaptiveColor
	DueSoon lipgloss.AdaptiveColor

	// UI Elements
	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor

	// Styles
	Base       lipgloss.Style
	Header     lipgloss.Style
	Card       lipgloss.Style
	Selected   lipgloss.Style
	Dragged    lipgloss.Style
	DropTarget lipgloss.Style
	MutedText  lipgloss.Style
	ErrorText  lipgloss.Style
}

// extra column colors for tenant-defined statuses, assigned by column index
var extraStatusColors = []lipgloss.AdaptiveColor{
	{Light: "#B06800", Dark: "#FFB86C"},
	{Light: "#6B47D9", Dark: "#BD93F9"},
	{Light: "#008080", Dark: "#00CED1"},
	{Light: "#CC0000", Dark: "#FF5555"},
}

// DefaultTheme returns the Dracula-inspired adaptive theme.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"},
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Subtext:   lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"},

		Pending:    lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"},
		InProgress: lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"},
		Completed:  lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#6699FF"},
		Archived:   lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},

		Overdue: lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"},
		DueSoon: lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"},

		Border:    lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
		Highlight: lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"},
		Muted:     lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
	}

	t.Base = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#F8F8F2"})

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)

	t.Card = r.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(t.Border).
		Padding(0, 1)

	t.Selected = t.Card.
		Border(lipgloss.ThickBorder()).
		BorderForeground(t.Primary).
		Bold(true)

	t.Dragged = t.Card.
		Border(lipgloss.DoubleBorder()).
		BorderForeground(t.DueSoon).
		Faint(true)

	t.DropTarget = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true)

	t.MutedText = r.NewStyle().Foreground(t.Muted)
	t.ErrorText = r.NewStyle().Foreground(t.Overdue).Bold(true)

	return t
}

// StatusColor returns the header color of a column. Statuses outside the
// default set are colored by their column index.
func (t Theme) StatusColor(status string, index int) lipgloss.AdaptiveColor {
	switch model.Status(status) {
	case model.StatusPending:
		return t.Pending
	case model.StatusInProgress:
		return t.InProgress
	case model.StatusCompleted:
		return t.Completed
	case model.StatusArchived:
		return t.Archived
	default:
		return extraStatusColors[index%len(extraStatusColors)]
	}
}

// TestTheme returns a theme suitable for use in tests.
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout))
}
