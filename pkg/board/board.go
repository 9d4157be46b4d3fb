// Package board lays items out in a status × category grid and turns a
// completed drag gesture into a single "move item to status" intent.
//
// The board never mutates items and keeps no index between renders: every
// query recomputes its subset from the snapshot passed to SetItems, in input
// order. Persisting a move is the caller's job; the board only invokes the
// configured StatusChange effect and forgets about it.
package board

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/opsboard/pkg/debug"
)

// UncategorizedID is the lane ID of the synthetic uncategorized lane.
const UncategorizedID = "_uncategorized"

// TargetSeparator joins status and category in a composite drop target.
const TargetSeparator = "-"

var (
	ErrNoColumns        = errors.New("board: at least one column is required")
	ErrDuplicateStatus  = errors.New("board: duplicate column status")
	ErrNoStatusChange   = errors.New("board: status change effect is required")
	ErrDuplicateLane    = errors.New("board: duplicate category id")
	ErrEmptyColumnState = errors.New("board: column status is empty")
)

// Item is the minimal shape the board reads. Everything else on the caller's
// type is opaque payload.
type Item interface {
	ItemID() string
	ItemStatus() string
	ItemCategory() string
}

// Column binds a lifecycle status to a header.
type Column struct {
	ID     string `json:"id" yaml:"id"`
	Title  string `json:"title" yaml:"title"`
	Status string `json:"status" yaml:"status"`
}

// Category is a lane definition. An explicit Category with an empty ID
// collects items that have no category.
type Category struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
	Icon  string `json:"icon,omitempty" yaml:"icon,omitempty"`
}

// Config describes a board. Columns and OnStatusChange are required.
type Config[T Item] struct {
	Columns    []Column
	Categories []Category

	// UncategorizedLabel, when non-empty in categorized mode, adds a synthetic
	// lane that collects items whose category is empty or not in Categories.
	// When empty those items are left out of the categorized view.
	UncategorizedLabel string

	OnStatusChange func(itemID, status string) error
	OnItemClick    func(item T)
	OnAddClick     func(status, category string)
}

// Intent is the outcome of a drop. Fired is true only when the status change
// effect was invoked.
type Intent struct {
	ItemID string `json:"item_id"`
	Status string `json:"status,omitempty"`
	Fired  bool   `json:"fired"`
}

// CellView is one rendered cell.
type CellView[T Item] struct {
	Column   Column
	Category *Category // nil on a flat board
	Target   string
	Items    []T
}

// Board is a single board instance. It is not safe for concurrent use; it is
// driven from one UI event loop.
type Board[T Item] struct {
	columns   []Column
	statusIdx map[string]int
	lanes     []Category
	laneIdx   map[string]int
	synthetic bool

	onStatusChange func(itemID, status string) error
	onItemClick    func(item T)
	onAddClick     func(status, category string)

	items []T

	// drag state: Idle when dragID is empty
	dragID string
}

// New validates cfg and returns an idle board with no items.
func New[T Item](cfg Config[T]) (*Board[T], error) {
	if len(cfg.Columns) == 0 {
		return nil, ErrNoColumns
	}
	if cfg.OnStatusChange == nil {
		return nil, ErrNoStatusChange
	}

	b := &Board[T]{
		columns:        append([]Column(nil), cfg.Columns...),
		statusIdx:      make(map[string]int, len(cfg.Columns)),
		onStatusChange: cfg.OnStatusChange,
		onItemClick:    cfg.OnItemClick,
		onAddClick:     cfg.OnAddClick,
	}
	for i, col := range b.columns {
		if col.Status == "" {
			return nil, fmt.Errorf("%w (column %q)", ErrEmptyColumnState, col.ID)
		}
		if _, dup := b.statusIdx[col.Status]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateStatus, col.Status)
		}
		b.statusIdx[col.Status] = i
	}

	if len(cfg.Categories) > 0 {
		b.lanes = append([]Category(nil), cfg.Categories...)
		if cfg.UncategorizedLabel != "" {
			b.lanes = append(b.lanes, Category{ID: UncategorizedID, Label: cfg.UncategorizedLabel})
			b.synthetic = true
		}
		b.laneIdx = make(map[string]int, len(b.lanes))
		for i, lane := range b.lanes {
			if _, dup := b.laneIdx[lane.ID]; dup {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateLane, lane.ID)
			}
			b.laneIdx[lane.ID] = i
		}
	}
	return b, nil
}

// SetItems replaces the snapshot. The slice is retained, not copied; callers
// hand over a fresh snapshot per render.
func (b *Board[T]) SetItems(items []T) {
	b.items = items
}

// Items returns the current snapshot.
func (b *Board[T]) Items() []T { return b.items }

// Columns returns the column definitions in display order.
func (b *Board[T]) Columns() []Column { return b.columns }

// Lanes returns the category lanes, including the synthetic lane when
// enabled. It is empty on a flat board.
func (b *Board[T]) Lanes() []Category { return b.lanes }

// Categorized reports whether the board renders status × category cells.
func (b *Board[T]) Categorized() bool { return len(b.lanes) > 0 }

// HasStatus reports whether status maps to a column.
func (b *Board[T]) HasStatus(status string) bool {
	_, ok := b.statusIdx[status]
	return ok
}

// laneOf returns the lane an item renders in on a categorized board.
func (b *Board[T]) laneOf(item T) (string, bool) {
	cat := item.ItemCategory()
	if _, ok := b.laneIdx[cat]; ok {
		return cat, true
	}
	if b.synthetic {
		return UncategorizedID, true
	}
	return "", false
}

// visible reports whether the item renders in any cell.
func (b *Board[T]) visible(item T) bool {
	if !b.HasStatus(item.ItemStatus()) {
		return false
	}
	if !b.Categorized() {
		return true
	}
	_, ok := b.laneOf(item)
	return ok
}

// Column returns the items rendered in the status column, across all lanes.
func (b *Board[T]) Column(status string) []T {
	var out []T
	if !b.HasStatus(status) {
		return out
	}
	for _, item := range b.items {
		if item.ItemStatus() == status && b.visible(item) {
			out = append(out, item)
		}
	}
	return out
}

// Cell returns the items for one (status, category) pair. On a categorized
// board category is a lane ID; on a flat board it is compared against the
// item's category directly.
func (b *Board[T]) Cell(status, category string) []T {
	var out []T
	if !b.HasStatus(status) {
		return out
	}
	for _, item := range b.items {
		if item.ItemStatus() != status {
			continue
		}
		if b.Categorized() {
			lane, ok := b.laneOf(item)
			if !ok || lane != category {
				continue
			}
		} else if item.ItemCategory() != category {
			continue
		}
		out = append(out, item)
	}
	return out
}

// Cells returns every cell in column-major order: for each column, one cell
// per lane (or a single cell on a flat board).
func (b *Board[T]) Cells() []CellView[T] {
	var cells []CellView[T]
	for _, col := range b.columns {
		if !b.Categorized() {
			cells = append(cells, CellView[T]{
				Column: col,
				Target: Target(col.Status, ""),
				Items:  b.Column(col.Status),
			})
			continue
		}
		for i := range b.lanes {
			lane := b.lanes[i]
			cells = append(cells, CellView[T]{
				Column:   col,
				Category: &lane,
				Target:   Target(col.Status, lane.ID),
				Items:    b.Cell(col.Status, lane.ID),
			})
		}
	}
	return cells
}

// Count returns the number of items rendered in the status column.
func (b *Board[T]) Count(status string) int {
	return len(b.Column(status))
}

// Unmapped returns items whose status matches no column.
func (b *Board[T]) Unmapped() []T {
	var out []T
	for _, item := range b.items {
		if !b.HasStatus(item.ItemStatus()) {
			out = append(out, item)
		}
	}
	return out
}

// Hidden returns mapped items left out of a categorized board because their
// category matches no lane. It is always empty on a flat board or when the
// synthetic lane is enabled.
func (b *Board[T]) Hidden() []T {
	var out []T
	if !b.Categorized() {
		return out
	}
	for _, item := range b.items {
		if !b.HasStatus(item.ItemStatus()) {
			continue
		}
		if _, ok := b.laneOf(item); !ok {
			out = append(out, item)
		}
	}
	return out
}

// Target encodes a drop target token for a cell: the bare status, or
// status-category when a category is given.
func Target(status, category string) string {
	if category == "" {
		return status
	}
	return status + TargetSeparator + category
}

// DecodeTarget resolves a drop target token to a column status. A token is
// either an exact status or a status followed by "-" and a category; the
// longest matching status wins so statuses may themselves contain "-".
// On a categorized board the category must name one of its lanes, otherwise
// the token does not decode. A flat board has no lanes to check, so any
// non-empty category is accepted. Only the status is returned either way.
func (b *Board[T]) DecodeTarget(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	if b.HasStatus(token) {
		return token, true
	}
	statuses := make([]string, 0, len(b.columns))
	for _, col := range b.columns {
		statuses = append(statuses, col.Status)
	}
	sort.Slice(statuses, func(i, j int) bool { return len(statuses[i]) > len(statuses[j]) })
	for _, s := range statuses {
		lane, ok := strings.CutPrefix(token, s+TargetSeparator)
		if !ok || lane == "" {
			continue
		}
		if b.Categorized() {
			if _, known := b.laneIdx[lane]; !known {
				continue
			}
		}
		return s, true
	}
	return "", false
}

func (b *Board[T]) find(id string) (T, bool) {
	for _, item := range b.items {
		if item.ItemID() == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// DragStart moves the board from Idle to Dragging. It refuses when a drag is
// already in progress or the item is not on the board.
func (b *Board[T]) DragStart(id string) bool {
	if b.dragID != "" || id == "" {
		return false
	}
	item, ok := b.find(id)
	if !ok || !b.visible(item) {
		return false
	}
	b.dragID = id
	return true
}

// Dragging reports whether a drag is in progress.
func (b *Board[T]) Dragging() bool { return b.dragID != "" }

// Active returns the item being dragged, for overlay rendering. It resolves
// against the current snapshot, so an item removed mid-drag is not returned.
func (b *Board[T]) Active() (T, bool) {
	if b.dragID == "" {
		var zero T
		return zero, false
	}
	return b.find(b.dragID)
}

// Cancel abandons the current drag without any effect.
func (b *Board[T]) Cancel() {
	b.dragID = ""
}

// Drop completes the current drag over target. The board returns to Idle
// before the status change effect runs, and the effect's error is returned
// unchanged. Malformed targets, same-status drops and drops with no drag in
// progress are abandoned drags, not errors.
func (b *Board[T]) Drop(target string) (Intent, error) {
	id := b.dragID
	b.dragID = ""
	if id == "" {
		return Intent{}, nil
	}
	intent := Intent{ItemID: id}

	status, ok := b.DecodeTarget(target)
	if !ok {
		debug.Log("board: drop of %s on %q abandoned: unknown target", id, target)
		return intent, nil
	}
	item, ok := b.find(id)
	if !ok {
		debug.Log("board: drop of %s abandoned: item left the snapshot", id)
		return intent, nil
	}
	if item.ItemStatus() == status {
		return intent, nil
	}

	intent.Status = status
	intent.Fired = true
	return intent, b.onStatusChange(id, status)
}

// Click invokes the item click hook for id, if configured.
func (b *Board[T]) Click(id string) bool {
	if b.onItemClick == nil {
		return false
	}
	item, ok := b.find(id)
	if !ok {
		return false
	}
	b.onItemClick(item)
	return true
}

// Add invokes the add hook for a cell, if configured and the status maps to
// a column. The synthetic lane reports an empty category.
func (b *Board[T]) Add(status, category string) bool {
	if b.onAddClick == nil || !b.HasStatus(status) {
		return false
	}
	if category == UncategorizedID {
		category = ""
	}
	b.onAddClick(status, category)
	return true
}
