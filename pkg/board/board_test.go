package board_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/vanderheijden86/opsboard/pkg/board"
	"github.com/vanderheijden86/opsboard/pkg/model"
	"github.com/vanderheijden86/opsboard/pkg/testutil"

	"pgregory.net/rapid"
)

type move struct{ id, status string }

// recorder collects status change calls.
type recorder struct {
	calls []move
	err   error
}

func (r *recorder) change(id, status string) error {
	r.calls = append(r.calls, move{id, status})
	return r.err
}

func rec(id string, status model.Status, category string) model.Record {
	return model.Record{ID: id, Status: status, Category: category, CreatedAt: time.Unix(0, 0)}
}

func twoColumns() []board.Column {
	return []board.Column{
		{ID: "c1", Title: "Pending", Status: "pending"},
		{ID: "c2", Title: "Completed", Status: "completed"},
	}
}

func newBoard(t *testing.T, cfg board.Config[model.Record]) *board.Board[model.Record] {
	t.Helper()
	b, err := board.New(cfg)
	if err != nil {
		t.Fatalf("board.New: %v", err)
	}
	return b
}

func ids(items []model.Record) []string {
	out := []string{}
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestNewValidatesConfig(t *testing.T) {
	r := &recorder{}
	tests := []struct {
		name string
		cfg  board.Config[model.Record]
		want error
	}{
		{"no columns", board.Config[model.Record]{OnStatusChange: r.change}, board.ErrNoColumns},
		{"no effect", board.Config[model.Record]{Columns: twoColumns()}, board.ErrNoStatusChange},
		{"duplicate status", board.Config[model.Record]{
			Columns:        []board.Column{{Status: "a"}, {Status: "a"}},
			OnStatusChange: r.change,
		}, board.ErrDuplicateStatus},
		{"empty status", board.Config[model.Record]{
			Columns:        []board.Column{{ID: "x"}},
			OnStatusChange: r.change,
		}, board.ErrEmptyColumnState},
		{"duplicate category", board.Config[model.Record]{
			Columns:        twoColumns(),
			Categories:     []board.Category{{ID: "it"}, {ID: "it"}},
			OnStatusChange: r.change,
		}, board.ErrDuplicateLane},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := board.New(tt.cfg); !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}
}

// Items 1..3 with one unmapped status: item 3 is never rendered and dragging
// item 1 onto completed fires exactly one change.
func TestEndToEndPendingToCompleted(t *testing.T) {
	r := &recorder{}
	b := newBoard(t, board.Config[model.Record]{Columns: twoColumns(), OnStatusChange: r.change})
	b.SetItems([]model.Record{
		rec("1", "pending", ""),
		rec("2", "completed", ""),
		rec("3", "archived", ""),
	})

	for _, cell := range b.Cells() {
		for _, it := range cell.Items {
			if it.ID == "3" {
				t.Fatalf("archived item rendered in %s", cell.Target)
			}
		}
	}
	if got := ids(b.Unmapped()); !reflect.DeepEqual(got, []string{"3"}) {
		t.Errorf("Unmapped() = %v", got)
	}
	if b.Count("pending") != 1 || b.Count("completed") != 1 || b.Count("archived") != 0 {
		t.Errorf("unexpected counts: %d %d %d", b.Count("pending"), b.Count("completed"), b.Count("archived"))
	}

	if !b.DragStart("1") {
		t.Fatal("DragStart(1) refused")
	}
	intent, err := b.Drop(board.Target("completed", ""))
	if err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if !intent.Fired || intent.ItemID != "1" || intent.Status != "completed" {
		t.Errorf("unexpected intent %+v", intent)
	}
	if !reflect.DeepEqual(r.calls, []move{{"1", "completed"}}) {
		t.Errorf("calls = %v", r.calls)
	}
	if b.Dragging() {
		t.Error("board should be idle after drop")
	}
	// The board does not patch items locally.
	if b.Count("pending") != 1 {
		t.Error("board mutated its snapshot")
	}
}

func TestSameStatusDropDoesNotFire(t *testing.T) {
	r := &recorder{}
	b := newBoard(t, board.Config[model.Record]{Columns: twoColumns(), OnStatusChange: r.change})
	b.SetItems([]model.Record{rec("1", "pending", "")})

	b.DragStart("1")
	intent, err := b.Drop("pending")
	if err != nil || intent.Fired {
		t.Errorf("same-status drop: intent=%+v err=%v", intent, err)
	}
	if len(r.calls) != 0 {
		t.Errorf("effect fired: %v", r.calls)
	}
}

func TestAbandonedDragsNeverFire(t *testing.T) {
	r := &recorder{}
	b := newBoard(t, board.Config[model.Record]{Columns: twoColumns(), OnStatusChange: r.change})
	b.SetItems([]model.Record{rec("1", "pending", ""), rec("2", "archived", "")})

	for _, target := range []string{"", "archived", "complete", "completedx", "-completed", "completed-"} {
		if !b.DragStart("1") {
			t.Fatalf("DragStart refused before target %q", target)
		}
		if intent, err := b.Drop(target); err != nil || intent.Fired {
			t.Errorf("target %q: intent=%+v err=%v", target, intent, err)
		}
		if b.Dragging() {
			t.Errorf("target %q left board dragging", target)
		}
	}

	b.DragStart("1")
	b.Cancel()
	if b.Dragging() {
		t.Error("Cancel should return to idle")
	}
	if intent, _ := b.Drop("completed"); intent.Fired {
		t.Error("drop after cancel must not fire")
	}

	if b.DragStart("2") {
		t.Error("unmapped item must not be draggable")
	}
	if b.DragStart("missing") {
		t.Error("unknown item must not be draggable")
	}
	if len(r.calls) != 0 {
		t.Errorf("effect fired: %v", r.calls)
	}
}

func TestDragStartWhileDraggingIsRefused(t *testing.T) {
	r := &recorder{}
	b := newBoard(t, board.Config[model.Record]{Columns: twoColumns(), OnStatusChange: r.change})
	b.SetItems([]model.Record{rec("1", "pending", ""), rec("2", "pending", "")})

	b.DragStart("1")
	if b.DragStart("2") {
		t.Fatal("second DragStart should be refused")
	}
	if active, ok := b.Active(); !ok || active.ID != "1" {
		t.Errorf("Active() = %v, %v", active.ID, ok)
	}
	b.Drop("completed")
	if !reflect.DeepEqual(r.calls, []move{{"1", "completed"}}) {
		t.Errorf("calls = %v", r.calls)
	}
}

func TestItemRemovedMidDragIsAbandoned(t *testing.T) {
	r := &recorder{}
	b := newBoard(t, board.Config[model.Record]{Columns: twoColumns(), OnStatusChange: r.change})
	b.SetItems([]model.Record{rec("1", "pending", "")})
	b.DragStart("1")

	b.SetItems([]model.Record{rec("2", "pending", "")})
	if _, ok := b.Active(); ok {
		t.Error("Active() should not resolve a removed item")
	}
	if intent, _ := b.Drop("completed"); intent.Fired {
		t.Error("drop of removed item must not fire")
	}
}

func TestEffectFailureLeavesBoardIdle(t *testing.T) {
	boom := errors.New("store offline")
	r := &recorder{err: boom}
	b := newBoard(t, board.Config[model.Record]{Columns: twoColumns(), OnStatusChange: r.change})
	b.SetItems([]model.Record{rec("1", "pending", "")})

	b.DragStart("1")
	intent, err := b.Drop("completed")
	if !errors.Is(err, boom) {
		t.Errorf("expected effect error, got %v", err)
	}
	if !intent.Fired {
		t.Error("intent should report the effect fired")
	}
	if b.Dragging() {
		t.Error("board stuck dragging after failed effect")
	}
	if len(r.calls) != 1 {
		t.Errorf("effect retried: %v", r.calls)
	}
	if got := ids(b.Column("pending")); !reflect.DeepEqual(got, []string{"1"}) {
		t.Errorf("board rolled item away: %v", got)
	}
}

func TestEffectPanicLeavesBoardIdle(t *testing.T) {
	b := newBoard(t, board.Config[model.Record]{
		Columns:        twoColumns(),
		OnStatusChange: func(string, string) error { panic("boom") },
	})
	b.SetItems([]model.Record{rec("1", "pending", "")})
	b.DragStart("1")

	func() {
		defer func() { _ = recover() }()
		b.Drop("completed")
	}()
	if b.Dragging() {
		t.Error("board stuck dragging after panicking effect")
	}
}

func TestDecodeTarget(t *testing.T) {
	r := &recorder{}
	b := newBoard(t, board.Config[model.Record]{
		Columns: []board.Column{
			{Status: "in"},
			{Status: "in-review"},
			{Status: "done"},
		},
		OnStatusChange: r.change,
	})
	tests := []struct {
		token  string
		want   string
		wantOK bool
	}{
		{"in", "in", true},
		{"in-review", "in-review", true},
		{"in-review-legal", "in-review", true},
		{"in-legal", "in", true},
		{"done-it", "done", true},
		{"done-", "", false},
		{"doing", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := b.DecodeTarget(tt.token)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("DecodeTarget(%q) = %q, %v; want %q, %v", tt.token, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestDecodeTarget_CategorizedChecksLane(t *testing.T) {
	r := &recorder{}
	b := newBoard(t, board.Config[model.Record]{
		Columns: []board.Column{
			{Status: "in"},
			{Status: "in-review"},
			{Status: "done"},
		},
		Categories:         []board.Category{{ID: "legal", Label: "Legal"}, {ID: "review-x", Label: "Odd"}},
		UncategorizedLabel: "Other",
		OnStatusChange:     r.change,
	})
	tests := []struct {
		token  string
		want   string
		wantOK bool
	}{
		{"done-legal", "done", true},
		{"in-review-legal", "in-review", true},
		{"in-review-x", "in", true},
		{board.Target("done", board.UncategorizedID), "done", true},
		{"done", "done", true},
		{"done-nosuchlane", "", false},
		{"in-review-nosuchlane", "", false},
	}
	for _, tt := range tests {
		got, ok := b.DecodeTarget(tt.token)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("DecodeTarget(%q) = %q, %v; want %q, %v", tt.token, got, ok, tt.want, tt.wantOK)
		}
	}

	b.SetItems([]model.Record{rec("a", "in", "legal")})
	b.DragStart("a")
	if intent, _ := b.Drop("done-nosuchlane"); intent.Fired || len(r.calls) != 0 {
		t.Errorf("drop on unknown lane fired: %+v", intent)
	}
	if b.Dragging() {
		t.Error("unknown lane drop should end the drag")
	}
}

func TestCategorizedCells(t *testing.T) {
	r := &recorder{}
	cats := []board.Category{{ID: "legal", Label: "Legal"}, {ID: "it", Label: "IT"}}
	items := []model.Record{
		rec("a", "pending", "legal"),
		rec("b", "pending", "it"),
		rec("c", "pending", ""),
		rec("d", "completed", "hr"),
		rec("e", "completed", "legal"),
		rec("f", "pending", "legal"),
	}

	b := newBoard(t, board.Config[model.Record]{Columns: twoColumns(), Categories: cats, OnStatusChange: r.change})
	b.SetItems(items)

	if got := ids(b.Cell("pending", "legal")); !reflect.DeepEqual(got, []string{"a", "f"}) {
		t.Errorf("pending/legal = %v", got)
	}
	if got := ids(b.Cell("completed", "legal")); !reflect.DeepEqual(got, []string{"e"}) {
		t.Errorf("completed/legal = %v", got)
	}
	if got := ids(b.Hidden()); !reflect.DeepEqual(got, []string{"c", "d"}) {
		t.Errorf("Hidden() = %v", got)
	}
	if b.Count("pending") != 3 {
		t.Errorf("pending count = %d, want 3 visible", b.Count("pending"))
	}
	if n := len(b.Cells()); n != 4 {
		t.Errorf("expected 2x2 cells, got %d", n)
	}
	if b.DragStart("c") {
		t.Error("hidden item must not be draggable")
	}

	// Dropping onto a composite cell target changes status only.
	b.DragStart("a")
	intent, _ := b.Drop(board.Target("completed", "it"))
	if !intent.Fired || intent.Status != "completed" {
		t.Errorf("composite drop intent = %+v", intent)
	}
}

func TestUncategorizedLane(t *testing.T) {
	r := &recorder{}
	b := newBoard(t, board.Config[model.Record]{
		Columns:            twoColumns(),
		Categories:         []board.Category{{ID: "legal", Label: "Legal"}},
		UncategorizedLabel: "No category",
		OnStatusChange:     r.change,
	})
	b.SetItems([]model.Record{
		rec("a", "pending", "legal"),
		rec("b", "pending", ""),
		rec("c", "pending", "unknown"),
	})

	lanes := b.Lanes()
	if len(lanes) != 2 || lanes[1].ID != board.UncategorizedID {
		t.Fatalf("Lanes() = %+v", lanes)
	}
	if got := ids(b.Cell("pending", board.UncategorizedID)); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("uncategorized lane = %v", got)
	}
	if len(b.Hidden()) != 0 {
		t.Errorf("nothing should be hidden with the synthetic lane: %v", ids(b.Hidden()))
	}
}

func TestExplicitEmptyCategory(t *testing.T) {
	r := &recorder{}
	b := newBoard(t, board.Config[model.Record]{
		Columns:        twoColumns(),
		Categories:     []board.Category{{ID: "legal"}, {ID: "", Label: "None"}},
		OnStatusChange: r.change,
	})
	b.SetItems([]model.Record{rec("a", "pending", ""), rec("b", "pending", "it")})
	if got := ids(b.Cell("pending", "")); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("explicit empty category cell = %v", got)
	}
	if got := ids(b.Hidden()); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("Hidden() = %v", got)
	}
}

func TestHooks(t *testing.T) {
	r := &recorder{}
	var clicked string
	var added []string
	b := newBoard(t, board.Config[model.Record]{
		Columns:            twoColumns(),
		Categories:         []board.Category{{ID: "legal"}},
		UncategorizedLabel: "None",
		OnStatusChange:     r.change,
		OnItemClick:        func(it model.Record) { clicked = it.ID },
		OnAddClick:         func(status, category string) { added = append(added, status+"/"+category) },
	})
	b.SetItems([]model.Record{rec("a", "pending", "legal")})

	if !b.Click("a") || clicked != "a" {
		t.Errorf("Click(a) -> %q", clicked)
	}
	if b.Click("nope") {
		t.Error("Click on unknown id should report false")
	}
	b.Add("pending", "legal")
	b.Add("completed", board.UncategorizedID)
	if b.Add("archived", "") {
		t.Error("Add into an unmapped status should be refused")
	}
	if !reflect.DeepEqual(added, []string{"pending/legal", "completed/"}) {
		t.Errorf("added = %v", added)
	}
	if b.Dragging() || len(r.calls) != 0 {
		t.Error("hooks must not touch drag state or fire moves")
	}
}

func TestCellOrderFollowsInput(t *testing.T) {
	r := &recorder{}
	b := newBoard(t, board.Config[model.Record]{Columns: twoColumns(), OnStatusChange: r.change})
	b.SetItems([]model.Record{rec("z", "pending", ""), rec("a", "pending", ""), rec("m", "pending", "")})
	if got := ids(b.Column("pending")); !reflect.DeepEqual(got, []string{"z", "a", "m"}) {
		t.Errorf("Column order = %v", got)
	}
}

// Every mapped item lands in exactly one flat cell; the rest are unmapped.
func TestFlatCellsPartitionItems(t *testing.T) {
	statuses := []model.Status{"pending", "in_progress", "completed", "archived", "blocked"}
	rapid.Check(t, func(t *rapid.T) {
		ncols := rapid.IntRange(1, 4).Draw(t, "ncols")
		var cols []board.Column
		for _, s := range statuses[:ncols] {
			cols = append(cols, board.Column{ID: string(s), Status: string(s)})
		}
		n := rapid.IntRange(0, 40).Draw(t, "n")
		var items []model.Record
		for i := 0; i < n; i++ {
			s := rapid.SampledFrom(statuses).Draw(t, "status")
			items = append(items, rec(string(rune('a'+i%26))+string(rune('0'+i/26)), s, ""))
		}

		b, err := board.New(board.Config[model.Record]{Columns: cols, OnStatusChange: func(string, string) error { return nil }})
		if err != nil {
			t.Fatal(err)
		}
		b.SetItems(items)

		seen := make(map[string]int)
		for _, cell := range b.Cells() {
			for _, it := range cell.Items {
				seen[it.ID]++
			}
		}
		for _, it := range b.Unmapped() {
			seen[it.ID]++
		}
		if len(seen) != len(items) {
			t.Fatalf("saw %d distinct items, want %d", len(seen), len(items))
		}
		for id, c := range seen {
			if c != 1 {
				t.Fatalf("item %s appeared %d times", id, c)
			}
		}
	})
}

// With the synthetic lane, categorized cells partition mapped items as well.
func TestLaneCellsPartitionItems(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(t, "n")
		var items []model.Record
		for i := 0; i < n; i++ {
			items = append(items, rec(
				string(rune('A'+i%26))+string(rune('0'+i/26)),
				rapid.SampledFrom([]model.Status{"pending", "completed", "archived"}).Draw(t, "status"),
				rapid.SampledFrom([]string{"", "legal", "it", "hr"}).Draw(t, "category"),
			))
		}
		b, err := board.New(board.Config[model.Record]{
			Columns:            twoColumns(),
			Categories:         []board.Category{{ID: "legal"}, {ID: "it"}},
			UncategorizedLabel: "Other",
			OnStatusChange:     func(string, string) error { return nil },
		})
		if err != nil {
			t.Fatal(err)
		}
		b.SetItems(items)

		total := 0
		for _, cell := range b.Cells() {
			total += len(cell.Items)
		}
		if want := len(items) - len(b.Unmapped()); total != want {
			t.Fatalf("cells hold %d items, want %d", total, want)
		}
	})
}

func fixtureConfig() board.Config[model.Record] {
	return board.Config[model.Record]{
		Columns: []board.Column{
			{ID: "p", Title: "Pending", Status: "pending"},
			{ID: "w", Title: "In progress", Status: "in_progress"},
			{ID: "c", Title: "Completed", Status: "completed"},
		},
		Categories:         []board.Category{{ID: "legal", Label: "Legal"}, {ID: "finance", Label: "Finance"}},
		UncategorizedLabel: "Other",
		OnStatusChange:     func(string, string) error { return nil },
	}
}

func TestGeneratedFixtureAccounting(t *testing.T) {
	records := testutil.QuickRecords(300)
	b := newBoard(t, fixtureConfig())
	b.SetItems(records)

	// With the synthetic lane nothing is hidden; archived records are unmapped.
	if n := len(b.Hidden()); n != 0 {
		t.Errorf("Hidden() = %d, want 0", n)
	}
	counts := testutil.CountByStatus(records)
	if got, want := len(b.Unmapped()), counts[model.StatusArchived]; got != want {
		t.Errorf("Unmapped() = %d, want %d", got, want)
	}

	placed := 0
	for _, cell := range b.Cells() {
		placed += len(cell.Items)
	}
	if placed+len(b.Unmapped()) != len(records) {
		t.Errorf("placed %d + unmapped %d != %d", placed, len(b.Unmapped()), len(records))
	}
	for _, col := range b.Columns() {
		if got, want := b.Count(col.Status), counts[model.Status(col.Status)]; got != want {
			t.Errorf("Count(%s) = %d, want %d", col.Status, got, want)
		}
	}
}

func BenchmarkCells1000(b *testing.B) {
	records := testutil.QuickRecords(1000)
	brd, err := board.New(fixtureConfig())
	if err != nil {
		b.Fatal(err)
	}
	brd.SetItems(records)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = brd.Cells()
	}
}
