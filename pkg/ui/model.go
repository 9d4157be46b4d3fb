package ui

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/opsboard/internal/datasource"
	"github.com/vanderheijden86/opsboard/pkg/analysis"
	"github.com/vanderheijden86/opsboard/pkg/board"
	"github.com/vanderheijden86/opsboard/pkg/bucket"
	"github.com/vanderheijden86/opsboard/pkg/config"
	"github.com/vanderheijden86/opsboard/pkg/debug"
	"github.com/vanderheijden86/opsboard/pkg/filter"
	"github.com/vanderheijden86/opsboard/pkg/metrics"
	"github.com/vanderheijden86/opsboard/pkg/model"
	"github.com/vanderheijden86/opsboard/pkg/watcher"
	"github.com/vanderheijden86/opsboard/pkg/workspace"
)

const (
	defaultWidth  = 120
	defaultHeight = 40

	ioTimeout = 30 * time.Second
)

// Source is the workspace the board reads from and writes status changes to.
type Source interface {
	LoadAll(ctx context.Context) ([]model.Record, []workspace.LoadResult, error)
	SetStatus(ctx context.Context, id string, status model.Status) error
}

// RecordsLoadedMsg carries a fresh snapshot from the Source.
type RecordsLoadedMsg struct {
	Records []model.Record
	Results []workspace.LoadResult
	Err     error
	Reload  bool
}

// StatusSavedMsg reports the outcome of persisting a move.
type StatusSavedMsg struct {
	Intent board.Intent
	Err    error
}

// FileChangedMsg is sent when a tenant data file changes on disk
type FileChangedMsg struct{}

// WatchFileCmd returns a command that waits for file changes and sends FileChangedMsg
func WatchFileCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		<-w.Changed()
		return FileChangedMsg{}
	}
}

// AddRequest is an add intent from a cell.
type AddRequest struct {
	Status   string
	Category string
}

// effects collects what the board engine asks the host to do during one
// key press. The engine is synchronous; the model drains it after each call.
type effects struct {
	moves   []board.Intent
	clicked string
	add     *AddRequest
}

func (fx *effects) recordMove(id, status string) error {
	fx.moves = append(fx.moves, board.Intent{ItemID: id, Status: status, Fired: true})
	return nil
}

func (fx *effects) recordClick(item model.Record) { fx.clicked = item.ID }

func (fx *effects) recordAdd(status, category string) {
	fx.add = &AddRequest{Status: status, Category: category}
}

func (fx *effects) takeMoves() []board.Intent {
	moves := fx.moves
	fx.moves = nil
	return moves
}

// Model is the board TUI.
type Model struct {
	cfg     config.Config
	source  Source
	watcher *watcher.Watcher
	theme   Theme
	now     func() time.Time

	fx     *effects
	board  BoardView
	detail DetailPanel

	showDetail bool

	all      []model.Record
	results  []workspace.LoadResult
	loaded   bool
	criteria filter.Criteria

	search      textinput.Model
	searching   bool
	searchPrior string

	lastAdd *AddRequest

	width, height int
	statusMsg     string
	statusIsError bool
}

// NewModel builds the board from cfg. Records arrive through Init.
func NewModel(cfg config.Config, src Source) (Model, error) {
	fx := &effects{}
	engine, err := board.New(board.Config[model.Record]{
		Columns:            cfg.Board.Columns,
		Categories:         cfg.Board.Categories,
		UncategorizedLabel: cfg.UncategorizedLabel(),
		OnStatusChange:     fx.recordMove,
		OnItemClick:        fx.recordClick,
		OnAddClick:         fx.recordAdd,
	})
	if err != nil {
		return Model{}, err
	}

	theme := DefaultTheme(lipgloss.NewRenderer(os.Stdout))

	ti := textinput.New()
	ti.Placeholder = "search name or description"
	ti.Prompt = "/ "
	ti.CharLimit = 120

	due, _ := bucket.ParseDue(cfg.UI.DefaultBucket)
	created, _ := bucket.ParseCreated(cfg.UI.DefaultCreated)

	return Model{
		cfg:      cfg,
		source:   src,
		theme:    theme,
		now:      time.Now,
		fx:       fx,
		board:    NewBoardView(engine, theme, time.Now),
		detail:   NewDetailPanel(cfg.UI.DetailWidth, cfg.UI.DetailWidth, defaultHeight-4),
		criteria: filter.Criteria{Due: due, Created: created},
		search:   ti,
		width:    defaultWidth,
		height:   defaultHeight,
	}, nil
}

// SetWatcher enables live reload from w.
func (m *Model) SetWatcher(w *watcher.Watcher) { m.watcher = w }

// SetFilter replaces the active criteria.
func (m *Model) SetFilter(c filter.Criteria) {
	m.criteria = c
	m.applyFilter()
}

// SetClock overrides the time source used for bucketing and labels.
func (m *Model) SetClock(now func() time.Time) {
	m.now = now
	m.board.now = now
}

// Criteria returns the active filter.
func (m Model) Criteria() filter.Criteria { return m.criteria }

// Board returns the board view.
func (m Model) Board() *BoardView { return &m.board }

// Records returns the last loaded, unfiltered snapshot.
func (m Model) Records() []model.Record { return m.all }

// StatusMessage returns the footer message and whether it is an error.
func (m Model) StatusMessage() (string, bool) { return m.statusMsg, m.statusIsError }

// DetailOpen reports whether the detail panel is visible.
func (m Model) DetailOpen() bool { return m.showDetail }

// LastAdd returns the most recent add intent.
func (m Model) LastAdd() *AddRequest { return m.lastAdd }

func (m Model) Init() tea.Cmd {
	if m.watcher == nil {
		return m.loadCmd(false)
	}
	return tea.Batch(m.loadCmd(false), WatchFileCmd(m.watcher))
}

func (m Model) loadCmd(reload bool) tea.Cmd {
	src := m.source
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
		defer cancel()
		records, results, err := src.LoadAll(ctx)
		return RecordsLoadedMsg{Records: records, Results: results, Err: err, Reload: reload}
	}
}

func (m Model) persistCmd(intent board.Intent) tea.Cmd {
	src := m.source
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
		defer cancel()
		err := src.SetStatus(ctx, intent.ItemID, model.Status(intent.Status))
		return StatusSavedMsg{Intent: intent, Err: err}
	}
}

func (m *Model) setStatus(msg string) {
	m.statusMsg = msg
	m.statusIsError = false
}

func (m *Model) setError(msg string) {
	m.statusMsg = msg
	m.statusIsError = true
}

// applyFilter hands the filtered snapshot to the board.
func (m *Model) applyFilter() {
	defer metrics.Timer(metrics.FilterApply)()
	m.board.SetItems(filter.Apply(m.all, m.criteria, m.now()))
	if m.showDetail {
		m.refreshDetail()
	}
}

func (m *Model) refreshDetail() {
	id := m.detail.RecordID()
	for _, r := range m.all {
		if r.ID == id {
			m.detail.Show(r, m.now())
			return
		}
	}
	m.showDetail = false
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.detail.SetSize(m.detailWidth()-2, max(1, m.height-4))
		return m, nil

	case RecordsLoadedMsg:
		return m.handleLoaded(msg), nil

	case StatusSavedMsg:
		if msg.Err != nil {
			debug.Log("ui: persisting %s → %s failed: %v", msg.Intent.ItemID, msg.Intent.Status, msg.Err)
			m.setError(fmt.Sprintf("❌ Move failed: %v", msg.Err))
			return m, nil
		}
		m.setStatus(fmt.Sprintf("✓ %s → %s", msg.Intent.ItemID, msg.Intent.Status))
		return m, m.loadCmd(true)

	case FileChangedMsg:
		if m.watcher == nil {
			return m, m.loadCmd(true)
		}
		return m, tea.Batch(m.loadCmd(true), WatchFileCmd(m.watcher))

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch {
		case m.searching:
			return m.handleSearchKey(msg)
		case m.board.Dragging():
			return m.handleDragKey(msg)
		default:
			return m.handleKey(msg)
		}
	}
	return m, nil
}

func (m Model) handleLoaded(msg RecordsLoadedMsg) Model {
	if msg.Err != nil {
		m.setError(fmt.Sprintf("❌ Load failed: %v", msg.Err))
		return m
	}

	var notes []string
	if msg.Reload && m.loaded {
		notes = append(notes, "↻ "+datasource.DiffSnapshots(m.all, msg.Records).Summary())
	}
	if sum := workspace.Summarize(msg.Results); sum.FailedTenants > 0 {
		notes = append(notes, fmt.Sprintf("⚠ %d/%d tenants failed: %s",
			sum.FailedTenants, sum.TotalTenants, strings.Join(sum.FailedTenantNames, ", ")))
	}

	m.all = msg.Records
	m.results = msg.Results
	m.loaded = true
	m.applyFilter()

	if len(notes) > 0 {
		msgText := strings.Join(notes, "  ")
		if strings.Contains(msgText, "⚠") {
			m.setError(msgText)
		} else {
			m.setStatus(msgText)
		}
	}
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "h", "left":
		m.board.MoveLeft()
	case "l", "right":
		m.board.MoveRight()
	case "j", "down":
		m.board.MoveDown()
	case "k", "up":
		m.board.MoveUp()
	case "J":
		m.board.NextLane()
	case "K":
		m.board.PrevLane()
	case " ", "space":
		if m.board.PickUp() {
			m.setStatus("")
		}
	case "enter":
		m.openDetail()
	case "tab":
		if m.showDetail {
			m.showDetail = false
		} else {
			m.openDetail()
		}
	case "esc":
		m.showDetail = false
	case "ctrl+d", "pgdown":
		m.detail.ScrollDown()
	case "ctrl+u", "pgup":
		m.detail.ScrollUp()
	case "a":
		m.requestAdd()
	case "y":
		if rec, ok := m.board.Selected(); ok {
			if err := clipboard.WriteAll(rec.ID); err != nil {
				m.setError(fmt.Sprintf("❌ Clipboard error: %v", err))
			} else {
				m.setStatus(fmt.Sprintf("📋 Copied %s to clipboard", rec.ID))
			}
		}
	case "f":
		m.criteria.Due = cycle(bucket.AllDue(), m.criteria.Due, bucket.DueAll)
		m.applyFilter()
	case "F":
		m.criteria.Created = cycle(bucket.AllCreated(), m.criteria.Created, bucket.CreatedAll)
		m.applyFilter()
	case "c":
		m.criteria.Category = cycleOption(m.all, model.Record.ItemCategory, m.criteria.Category)
		m.applyFilter()
	case "s":
		m.criteria.Sector = cycleOption(m.all, model.Record.ItemSector, m.criteria.Sector)
		m.applyFilter()
	case "o":
		m.criteria.Owner = cycleOption(m.all, model.Record.ItemOwner, m.criteria.Owner)
		m.applyFilter()
	case "x":
		m.criteria = filter.Criteria{}
		m.applyFilter()
	case "/":
		m.searching = true
		m.searchPrior = m.criteria.Query
		m.search.SetValue(m.criteria.Query)
		m.search.CursorEnd()
		return m, m.search.Focus()
	case "r":
		m.setStatus("Reloading…")
		return m, m.loadCmd(true)
	}
	return m, nil
}

func (m Model) handleDragKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "h", "left":
		m.board.MoveDropTarget(-1, 0)
	case "l", "right":
		m.board.MoveDropTarget(1, 0)
	case "J", "j", "down":
		m.board.MoveDropTarget(0, 1)
	case "K", "k", "up":
		m.board.MoveDropTarget(0, -1)
	case "esc", "q":
		m.board.Cancel()
		m.setStatus("Move cancelled")
	case "enter", " ", "space":
		return m.drop()
	}
	return m, nil
}

// drop releases the dragged card. The engine records the move through its
// effect; persistence runs as a command and the board only changes after
// the following reload.
func (m Model) drop() (tea.Model, tea.Cmd) {
	intent, err := m.board.Drop()
	if err != nil {
		m.fx.takeMoves()
		m.setError(fmt.Sprintf("❌ Move failed: %v", err))
		return m, nil
	}
	if !intent.Fired {
		m.setStatus(fmt.Sprintf("%s not moved", intent.ItemID))
		return m, nil
	}

	var cmds []tea.Cmd
	for _, move := range m.fx.takeMoves() {
		cmds = append(cmds, m.persistCmd(move))
	}
	m.setStatus(fmt.Sprintf("Moving %s → %s…", intent.ItemID, intent.Status))
	if len(cmds) == 1 {
		return m, cmds[0]
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searching = false
		m.search.Blur()
		m.criteria.Query = strings.TrimSpace(m.search.Value())
		m.applyFilter()
		return m, nil
	case "esc":
		m.searching = false
		m.search.Blur()
		m.criteria.Query = m.searchPrior
		m.applyFilter()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.criteria.Query = m.search.Value()
	m.applyFilter()
	return m, cmd
}

func (m *Model) openDetail() {
	rec, ok := m.board.Selected()
	if !ok || !m.board.Engine().Click(rec.ID) {
		return
	}
	id := m.fx.clicked
	m.fx.clicked = ""
	for _, r := range m.all {
		if r.ID == id {
			m.detail.Show(r, m.now())
			m.showDetail = true
			return
		}
	}
}

func (m *Model) requestAdd() {
	col, lane, _ := m.board.Cursor()
	engine := m.board.Engine()
	cols := engine.Columns()
	if col >= len(cols) {
		return
	}
	category := ""
	if engine.Categorized() {
		category = engine.Lanes()[lane].ID
	}
	if !engine.Add(cols[col].Status, category) || m.fx.add == nil {
		return
	}
	m.lastAdd = m.fx.add
	m.fx.add = nil

	where := cols[col].Title
	if m.lastAdd.Category != "" {
		where += " / " + m.lastAdd.Category
	}
	m.setStatus(fmt.Sprintf("＋ New record requested in %s", where))
}

// cycle returns the value after current in values, wrapping around.
func cycle[V comparable](values []V, current, zero V) V {
	if current == *new(V) {
		current = zero
	}
	i := slices.Index(values, current)
	return values[(i+1)%len(values)]
}

// cycleOption steps an equality criterion through "all" and the values
// present in records.
func cycleOption(records []model.Record, field func(model.Record) string, current string) string {
	values := append([]string{filter.All}, filter.Options(records, field)...)
	return cycle(values, current, filter.All)
}

func (m Model) detailWidth() int {
	return min(m.cfg.UI.DetailWidth+4, m.width/2)
}

func (m Model) View() string {
	t := m.theme

	header := m.renderFilterBar()
	footer := m.renderFooter()

	bodyHeight := max(1, m.height-lipgloss.Height(header)-lipgloss.Height(footer))
	boardWidth := m.width
	if m.showDetail {
		boardWidth = m.width - m.detailWidth()
	}
	body := m.board.View(boardWidth, bodyHeight)
	if m.showDetail {
		panel := t.Renderer.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Primary).
			Width(m.detailWidth() - 2).
			Height(bodyHeight - 2).
			Render(m.detail.View())
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, panel)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) renderFilterBar() string {
	t := m.theme
	if m.searching {
		return m.search.View()
	}
	text := "Filters: " + m.criteria.String()
	if n := len(m.results); n > 1 {
		text += fmt.Sprintf("   Tenants: %d", n)
	}
	return t.Header.Width(m.width).Render(truncate(text, max(1, m.width-2)))
}

func (m Model) renderFooter() string {
	t := m.theme
	h := analysis.Summarize(m.board.Engine(), m.now())

	stats := fmt.Sprintf("%d items · %d overdue (%.0f%%)", h.Total, h.Overdue, h.OverdueShare*100)
	if h.Hidden > 0 {
		stats += fmt.Sprintf(" · %d hidden", h.Hidden)
	}
	if h.Unmapped > 0 {
		stats += fmt.Sprintf(" · %d unmapped", h.Unmapped)
	}
	line := t.MutedText.Render(stats)

	if m.statusMsg != "" {
		style := t.Base
		if m.statusIsError {
			style = t.ErrorText
		}
		line += "   " + style.Render(m.statusMsg)
	}

	keys := "h/l column · j/k card · J/K lane · space move · enter detail · f/F due/created · c/s/o filter · / search · x clear · y copy · r reload · q quit"
	if m.board.Dragging() {
		keys = "h/l column · J/K lane · enter drop · esc cancel"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		line,
		t.MutedText.Render(truncate(keys, m.width)),
	)
}
