package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/opsboard/internal/datasource"
	"github.com/vanderheijden86/opsboard/pkg/board"
	"github.com/vanderheijden86/opsboard/pkg/bucket"
	"github.com/vanderheijden86/opsboard/pkg/config"
	"github.com/vanderheijden86/opsboard/pkg/metrics"
	"github.com/vanderheijden86/opsboard/pkg/model"
	"github.com/vanderheijden86/opsboard/pkg/testutil"
	"github.com/vanderheijden86/opsboard/pkg/workspace"
)

func fixtureRecords(now time.Time) []model.Record {
	overdue := now.AddDate(0, 0, -3)
	return []model.Record{
		{ID: "1", Name: "Renew lease", Status: model.StatusPending, Category: "legal", DueDate: &overdue, CreatedAt: now.AddDate(0, 0, -20)},
		{ID: "2", Name: "Payroll", Status: model.StatusInProgress, Category: "finance", Owner: "bo", CreatedAt: now},
		{ID: "3", Name: "Old thing", Status: "on_hold", CreatedAt: now.AddDate(0, 0, -90)},
	}
}

// isolate points the XDG dirs at a temp dir so the user's config is never read.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	return dir
}

func writeData(t *testing.T, dir string, records []model.Record) string {
	t.Helper()
	path := filepath.Join(dir, "ops.jsonl")
	testutil.WriteJSONL(t, path, records)
	return path
}

func TestParseCriteria(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.UI.DefaultBucket = "this-week"

	c, err := parseCriteria(options{owner: "bo"}, cfg)
	if err != nil {
		t.Fatalf("parseCriteria: %v", err)
	}
	if c.Due != bucket.DueThisWeek || c.Owner != "bo" {
		t.Errorf("criteria = %+v", c)
	}

	c, err = parseCriteria(options{due: "OVERDUE", created: "today"}, cfg)
	if err != nil {
		t.Fatalf("parseCriteria: %v", err)
	}
	if c.Due != bucket.DueOverdue || c.Created != bucket.CreatedToday {
		t.Errorf("flags should override config, got %+v", c)
	}

	if _, err := parseCriteria(options{due: "someday"}, cfg); !errors.Is(err, bucket.ErrUnknownBucket) {
		t.Errorf("expected ErrUnknownBucket, got %v", err)
	}
}

func TestSelectTenants(t *testing.T) {
	isolate(t)
	disabled := false
	cfg := config.DefaultConfig()
	cfg.Tenants = []config.Tenant{
		{Name: "acme", Path: "acme.db"},
		{Name: "globex", Path: "globex.jsonl", Enabled: &disabled},
	}

	tenants, _, err := selectTenants(cfg, options{})
	if err != nil || len(tenants) != 2 {
		t.Fatalf("selectTenants = %v, %v", tenants, err)
	}

	tenants, _, err = selectTenants(cfg, options{tenant: "GLOBEX"})
	if err != nil {
		t.Fatalf("selectTenants: %v", err)
	}
	if len(tenants) != 1 || tenants[0].Name != "globex" || !tenants[0].IsEnabled() {
		t.Errorf("--tenant should select and enable globex, got %+v", tenants)
	}

	if _, _, err := selectTenants(cfg, options{tenant: "nope"}); err == nil {
		t.Error("expected error for unknown tenant")
	}

	tenants, _, err = selectTenants(cfg, options{dataPath: "/tmp/x.jsonl"})
	if err != nil || len(tenants) != 1 || tenants[0].Name != "" {
		t.Errorf("--data should yield one unnamed tenant, got %+v, %v", tenants, err)
	}

	if _, _, err := selectTenants(config.DefaultConfig(), options{}); err == nil {
		t.Error("expected error when no tenants are configured")
	}
}

func TestSelectTenants_BaseDirFollowsConfigFlag(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Tenants = []config.Tenant{{Name: "acme", Path: "acme.db"}}

	_, baseDir, err := selectTenants(cfg, options{configPath: "/etc/opsboard/config.yaml"})
	if err != nil {
		t.Fatal(err)
	}
	if baseDir != "/etc/opsboard" {
		t.Errorf("baseDir = %q", baseDir)
	}
}

func TestApplyMove(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	path := writeData(t, dir, fixtureRecords(now))

	loader := workspace.NewAggregateLoader([]config.Tenant{{Path: path}}, dir)
	defer loader.Close()
	ctx := context.Background()
	records, _, err := loader.LoadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	// Lanes never hide a scripted move.
	cfg.Board.Categories = []board.Category{{ID: "it", Label: "IT"}}

	intent, err := applyMove(ctx, loader, cfg, records, "1", "completed")
	if err != nil {
		t.Fatalf("applyMove: %v", err)
	}
	if !intent.Fired || intent.Status != "completed" {
		t.Errorf("intent = %+v", intent)
	}

	reloaded, err := datasource.LoadFile(ctx, path, "")
	if err != nil {
		t.Fatal(err)
	}
	if r := testutil.FindRecord(reloaded, "1"); r == nil || r.Status != model.StatusCompleted {
		t.Errorf("record 1 not persisted as completed: %+v", r)
	}

	tests := []struct {
		name, id, status, wantErr string
	}{
		{"same status", "2", "in_progress", "already"},
		{"unknown column", "2", "cancelled", "no column"},
		{"unknown record", "404", "completed", "not on the board"},
		{"unmapped record", "3", "completed", "not on the board"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := applyMove(ctx, loader, cfg, records, tt.id, tt.status)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRun_RobotBoard(t *testing.T) {
	dir := isolate(t)
	path := writeData(t, dir, fixtureRecords(time.Now()))

	var stdout, stderr bytes.Buffer
	if err := run(options{dataPath: path, robotBoard: true}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}

	var out robotBoardOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("robot output is not JSON: %v\n%s", err, stdout.String())
	}
	if len(out.Columns) != 4 || len(out.Cells) != 4 {
		t.Errorf("columns=%d cells=%d, want 4/4", len(out.Columns), len(out.Cells))
	}
	if out.Cells[0].Target != "pending" || out.Cells[0].Count != 1 || out.Cells[0].Items[0].ID != "1" {
		t.Errorf("pending cell = %+v", out.Cells[0])
	}
	if len(out.Unmapped) != 1 || out.Unmapped[0].ID != "3" {
		t.Errorf("unmapped = %+v", out.Unmapped)
	}
	if out.Health.Total != 2 || out.Health.Overdue != 1 {
		t.Errorf("health = %+v", out.Health)
	}
	if len(out.Tenants) != 1 || out.Tenants[0].Records != 3 {
		t.Errorf("tenants = %+v", out.Tenants)
	}
	if metrics.Enabled() {
		found := false
		for _, s := range out.Timings {
			found = found || (s.Name == "tenant_load" && s.Count > 0)
		}
		if !found {
			t.Errorf("timings missing tenant_load: %+v", out.Timings)
		}
	}
	if stderr.Len() != 0 {
		t.Errorf("robot mode wrote to stderr: %s", stderr.String())
	}
}

func TestRun_RobotFilter(t *testing.T) {
	dir := isolate(t)
	path := writeData(t, dir, fixtureRecords(time.Now()))

	var stdout bytes.Buffer
	if err := run(options{dataPath: path, robotFilter: true, due: "overdue"}, &stdout, &bytes.Buffer{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	var out robotFilterOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("robot output is not JSON: %v", err)
	}
	if out.Count != 1 || out.Records[0].ID != "1" || out.Filter.Due != bucket.DueOverdue {
		t.Errorf("filter output = %+v", out)
	}

	stdout.Reset()
	if err := run(options{dataPath: path, robotFilter: true, query: "nothing matches"}, &stdout, &bytes.Buffer{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout.String(), `"records": []`) {
		t.Errorf("empty result should encode as an empty array:\n%s", stdout.String())
	}
}

func TestRun_MultiTenantConfig(t *testing.T) {
	dir := isolate(t)
	now := time.Now()
	testutil.WriteJSONL(t, filepath.Join(dir, "acme.jsonl"), fixtureRecords(now))
	testutil.WriteJSONL(t, filepath.Join(dir, "globex.jsonl"), fixtureRecords(now)[:1])

	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := config.DefaultConfig()
	cfg.Tenants = []config.Tenant{{Name: "acme", Path: "acme.jsonl"}, {Name: "globex", Path: "globex.jsonl"}}
	if err := config.SaveTo(cfg, cfgPath); err != nil {
		t.Fatal(err)
	}

	var stdout bytes.Buffer
	if err := run(options{configPath: cfgPath, robotFilter: true}, &stdout, &bytes.Buffer{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	var out robotFilterOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Count != 4 {
		t.Fatalf("count = %d, want 4", out.Count)
	}
	ids := testutil.GetIDs(out.Records)
	if !strings.Contains(strings.Join(ids, ","), "globex:1") {
		t.Errorf("IDs should be namespaced, got %v", ids)
	}

	// Moves route through the tenant prefix.
	stdout.Reset()
	if err := run(options{configPath: cfgPath, moveID: "globex:1", moveStatus: "completed"}, &stdout, &bytes.Buffer{}); err != nil {
		t.Fatalf("move: %v", err)
	}
	records, err := datasource.LoadFile(context.Background(), filepath.Join(dir, "globex.jsonl"), "")
	if err != nil {
		t.Fatal(err)
	}
	if records[0].Status != model.StatusCompleted {
		t.Errorf("globex record status = %s", records[0].Status)
	}
	acme, _ := datasource.LoadFile(context.Background(), filepath.Join(dir, "acme.jsonl"), "")
	if testutil.FindRecord(acme, "1").Status != model.StatusPending {
		t.Error("acme record with the same local ID should be untouched")
	}
}

func TestRun_ExportSnapshot(t *testing.T) {
	dir := isolate(t)
	path := writeData(t, dir, fixtureRecords(time.Now()))
	out := filepath.Join(dir, "board.svg")

	var stdout bytes.Buffer
	if err := run(options{dataPath: path, exportPath: out}, &stdout, &bytes.Buffer{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
	if !bytes.Contains(data, []byte("<svg")) || !bytes.Contains(data, []byte("Renew lease")) {
		t.Error("snapshot should be an SVG containing the card names")
	}
	if !strings.Contains(stdout.String(), "Wrote") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestRun_BadFlags(t *testing.T) {
	dir := isolate(t)
	path := writeData(t, dir, fixtureRecords(time.Now()))

	if err := run(options{dataPath: path, robotBoard: true, created: "yesterday"}, &bytes.Buffer{}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown creation bucket")
	}
	if err := run(options{dataPath: filepath.Join(dir, "data.csv"), robotBoard: true}, &bytes.Buffer{}, &bytes.Buffer{}); err != nil {
		// An unsupported file fails its tenant, not the run.
		t.Errorf("unexpected error: %v", err)
	}
}
