package ui_test

import (
	"strings"
	"testing"
	"time"

	"github.com/vanderheijden86/opsboard/pkg/board"
	"github.com/vanderheijden86/opsboard/pkg/config"
	"github.com/vanderheijden86/opsboard/pkg/model"
	"github.com/vanderheijden86/opsboard/pkg/ui"
)

func newBoardView(t *testing.T, categories []board.Category, uncategorized string) ui.BoardView {
	t.Helper()
	engine, err := board.New(board.Config[model.Record]{
		Columns:            config.DefaultColumns(),
		Categories:         categories,
		UncategorizedLabel: uncategorized,
		OnStatusChange:     func(string, string) error { return nil },
	})
	if err != nil {
		t.Fatalf("board.New: %v", err)
	}
	v := ui.NewBoardView(engine, ui.TestTheme(), func() time.Time { return testNow })
	v.SetItems(sampleRecords())
	return v
}

func TestBoardView_Navigation(t *testing.T) {
	v := newBoardView(t, nil, "")

	if rec, ok := v.Selected(); !ok || rec.ID != "acme:1" {
		t.Fatalf("initial selection = %+v", rec)
	}
	v.MoveDown()
	if rec, _ := v.Selected(); rec.ID != "acme:2" {
		t.Errorf("after MoveDown = %s", rec.ID)
	}
	v.MoveDown() // bottom of a flat column
	if rec, _ := v.Selected(); rec.ID != "acme:2" {
		t.Errorf("MoveDown past the end = %s", rec.ID)
	}

	v.MoveRight()
	if rec, _ := v.Selected(); rec.ID != "acme:3" {
		t.Errorf("after MoveRight = %s", rec.ID)
	}
	v.MoveRight()
	v.MoveRight()
	if _, ok := v.Selected(); ok {
		t.Error("archived column is empty, selection should be empty")
	}
	v.MoveRight()
	if col, _, _ := v.Cursor(); col != 3 {
		t.Errorf("cursor should clamp at the last column, got %d", col)
	}
}

func TestBoardView_LaneNavigation(t *testing.T) {
	cats := []board.Category{{ID: "legal", Label: "Legal"}, {ID: "finance", Label: "Finance"}}
	v := newBoardView(t, cats, "")

	if rec, _ := v.Selected(); rec.ID != "acme:1" {
		t.Fatalf("initial selection = %s", rec.ID)
	}
	// Moving down past the legal cell continues into the finance lane.
	v.MoveDown()
	if rec, _ := v.Selected(); rec.ID != "acme:2" {
		t.Errorf("MoveDown into next lane = %s", rec.ID)
	}
	if _, lane, _ := v.Cursor(); lane != 1 {
		t.Errorf("lane = %d, want 1", lane)
	}
	v.MoveUp()
	if rec, _ := v.Selected(); rec.ID != "acme:1" {
		t.Errorf("MoveUp into previous lane = %s", rec.ID)
	}

	v.NextLane()
	v.NextLane()
	if _, lane, _ := v.Cursor(); lane != 1 {
		t.Errorf("NextLane should clamp, lane = %d", lane)
	}
}

func TestBoardView_KeepsSelectionAcrossReload(t *testing.T) {
	v := newBoardView(t, nil, "")
	v.MoveDown() // acme:2

	records := sampleRecords()
	records[1].Status = model.StatusCompleted
	v.SetItems(records)

	if rec, _ := v.Selected(); rec.ID != "acme:2" {
		t.Errorf("selection after reload = %s, want acme:2", rec.ID)
	}
	if col, _, _ := v.Cursor(); col != 2 {
		t.Errorf("cursor column = %d, want 2", col)
	}
}

func TestBoardView_DropTargetClamps(t *testing.T) {
	cats := []board.Category{{ID: "legal", Label: "Legal"}}
	v := newBoardView(t, cats, "Other")

	if !v.PickUp() {
		t.Fatal("PickUp refused")
	}
	if v.PickUp() {
		t.Error("second PickUp should be refused while dragging")
	}
	v.MoveDropTarget(-5, 0)
	if got := v.DropTarget(); got != "pending-legal" {
		t.Errorf("drop target = %q", got)
	}
	v.MoveDropTarget(10, 10)
	if got := v.DropTarget(); got != board.Target("archived", board.UncategorizedID) {
		t.Errorf("drop target = %q", got)
	}

	intent, err := v.Drop()
	if err != nil || !intent.Fired || intent.Status != "archived" {
		t.Errorf("Drop() = %+v, %v", intent, err)
	}
	if v.Dragging() {
		t.Error("view should be idle after drop")
	}
}

func TestBoardView_View(t *testing.T) {
	cats := []board.Category{{ID: "legal", Label: "Legal", Icon: "⚖"}}
	v := newBoardView(t, cats, "")

	out := v.View(120, 30)
	for _, want := range []string{"BOARD [by category]", "[2 hidden]", "⚖ Legal (1)", "Renew lease", "overdue 2d"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}

	v.PickUp()
	v.MoveDropTarget(2, 0)
	out = v.View(120, 30)
	if !strings.Contains(out, "MOVING acme:1 → Completed / Legal") {
		t.Error("title bar should name the drop target while dragging")
	}
	v.Cancel()
}

func TestBoardView_EmptyCell(t *testing.T) {
	v := newBoardView(t, nil, "")
	if out := v.View(120, 30); !strings.Contains(out, "(empty)") {
		t.Error("archived column should render as empty")
	}
}
