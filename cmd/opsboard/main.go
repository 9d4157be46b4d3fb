package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/opsboard/pkg/board"
	"github.com/vanderheijden86/opsboard/pkg/bucket"
	"github.com/vanderheijden86/opsboard/pkg/config"
	"github.com/vanderheijden86/opsboard/pkg/debug"
	"github.com/vanderheijden86/opsboard/pkg/export"
	"github.com/vanderheijden86/opsboard/pkg/filter"
	"github.com/vanderheijden86/opsboard/pkg/model"
	"github.com/vanderheijden86/opsboard/pkg/ui"
	"github.com/vanderheijden86/opsboard/pkg/version"
	"github.com/vanderheijden86/opsboard/pkg/watcher"
	"github.com/vanderheijden86/opsboard/pkg/workspace"
)

type options struct {
	configPath string
	dataPath   string
	tenant     string

	due      string
	created  string
	category string
	sector   string
	owner    string
	query    string

	pickFilter  bool
	robotBoard  bool
	robotFilter bool
	moveID      string
	moveStatus  string
	exportPath  string
	noWatch     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/opsboard/config.yaml)")
	flag.StringVar(&opts.dataPath, "data", "", "Single data file (.db, .sqlite or .jsonl); overrides configured tenants")
	flag.StringVar(&opts.tenant, "tenant", "", "Only load the named tenant")
	flag.StringVar(&opts.due, "due", "", "Due bucket: all|overdue|today|tomorrow|thisWeek|nextWeek|thisMonth|noDate")
	flag.StringVar(&opts.created, "created", "", "Creation bucket: all|today|thisWeek|thisMonth")
	flag.StringVar(&opts.category, "category", "", "Only records in this category")
	flag.StringVar(&opts.sector, "sector", "", "Only records in this sector")
	flag.StringVar(&opts.owner, "owner", "", "Only records owned by this person")
	flag.StringVar(&opts.query, "query", "", "Case-insensitive search over name and description")
	flag.BoolVar(&opts.pickFilter, "pick-filter", false, "Choose filters in an interactive form before starting")
	flag.BoolVar(&opts.robotBoard, "robot-board", false, "Print the board (cells, unmapped, health) as JSON")
	flag.BoolVar(&opts.robotFilter, "robot-filter", false, "Print the filtered records as JSON")
	flag.StringVar(&opts.moveID, "move", "", "Move record ID to STATUS (usage: --move ID STATUS)")
	flag.StringVar(&opts.exportPath, "export-snapshot", "", "Write the board as an SVG or PNG image")
	flag.BoolVar(&opts.noWatch, "no-watch", false, "Disable live reload")
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	flag.Parse()

	if *help {
		fmt.Println("Usage: opsboard [options]")
		fmt.Println("\nA multi-tenant operations board for projects, processes, tasks and routines.")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("opsboard %s\n", version.Version)
		os.Exit(0)
	}

	if opts.moveID != "" {
		if flag.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "Error: --move needs a target status (usage: --move ID STATUS)")
			os.Exit(2)
		}
		opts.moveStatus = flag.Arg(0)
	} else if flag.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "Error: unexpected arguments: %s\n", strings.Join(flag.Args(), " "))
		os.Exit(2)
	}

	if err := run(opts, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes one invocation. Robot, move and export modes write to stdout
// and return; otherwise the TUI starts.
func run(opts options, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	criteria, err := parseCriteria(opts, cfg)
	if err != nil {
		return err
	}
	tenants, baseDir, err := selectTenants(cfg, opts)
	if err != nil {
		return err
	}

	loader := workspace.NewAggregateLoader(tenants, baseDir)
	defer loader.Close()
	// Robot output must stay machine-readable; tenant warnings only go to
	// stderr ahead of the TUI.
	headless := opts.robotBoard || opts.robotFilter || opts.moveID != "" || opts.exportPath != ""
	if !headless {
		loader.SetLogger(log.New(stderr, "opsboard: ", 0))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	records, results, err := loader.LoadAll(ctx)
	if err != nil {
		return err
	}
	now := time.Now()

	switch {
	case opts.moveID != "":
		intent, err := applyMove(ctx, loader, cfg, records, opts.moveID, opts.moveStatus)
		if err != nil {
			return err
		}
		return writeJSON(stdout, intent)

	case opts.robotFilter:
		return writeJSON(stdout, buildRobotFilter(filter.Apply(records, criteria, now), criteria, now))

	case opts.robotBoard || opts.exportPath != "":
		b, err := newBoard(cfg, nil)
		if err != nil {
			return err
		}
		b.SetItems(filter.Apply(records, criteria, now))
		if opts.exportPath != "" {
			if err := export.SaveBoardSnapshot(b, export.BoardSnapshotOptions{
				Path:     opts.exportPath,
				Title:    "opsboard",
				Subtitle: criteria.String(),
				Now:      now,
			}); err != nil {
				return err
			}
			if !opts.robotBoard {
				fmt.Fprintf(stdout, "Wrote %s\n", opts.exportPath)
				return nil
			}
		}
		return writeJSON(stdout, buildRobotBoard(b, criteria, results, now))
	}

	if opts.pickFilter {
		criteria, err = ui.RunFilterForm(criteria, records)
		if err != nil {
			return fmt.Errorf("filter form: %w", err)
		}
	}
	return runTUI(cfg, loader, criteria, opts.noWatch, stderr)
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// parseCriteria merges filter flags over the configured defaults.
func parseCriteria(opts options, cfg config.Config) (filter.Criteria, error) {
	dueToken := opts.due
	if dueToken == "" {
		dueToken = cfg.UI.DefaultBucket
	}
	due, err := bucket.ParseDue(dueToken)
	if err != nil {
		return filter.Criteria{}, fmt.Errorf("--due: %w", err)
	}
	createdToken := opts.created
	if createdToken == "" {
		createdToken = cfg.UI.DefaultCreated
	}
	created, err := bucket.ParseCreated(createdToken)
	if err != nil {
		return filter.Criteria{}, fmt.Errorf("--created: %w", err)
	}
	return filter.Criteria{
		Due:      due,
		Created:  created,
		Category: opts.category,
		Sector:   opts.sector,
		Owner:    opts.owner,
		Query:    opts.query,
	}, nil
}

// selectTenants returns the tenants to load and the directory relative
// paths resolve against. --data replaces the configured tenants with one
// unnamed tenant whose IDs stay un-namespaced.
func selectTenants(cfg config.Config, opts options) ([]config.Tenant, string, error) {
	baseDir := config.ConfigDir()
	if opts.configPath != "" {
		baseDir = filepath.Dir(opts.configPath)
	}

	if opts.dataPath != "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, "", err
		}
		return []config.Tenant{{Path: opts.dataPath}}, cwd, nil
	}
	if len(cfg.Tenants) == 0 {
		return nil, "", errors.New("no tenants configured: pass --data or add tenants to the config file")
	}
	if opts.tenant != "" {
		t := cfg.FindTenant(opts.tenant)
		if t == nil {
			return nil, "", fmt.Errorf("unknown tenant %q", opts.tenant)
		}
		one := *t
		one.Enabled = nil
		return []config.Tenant{one}, baseDir, nil
	}
	return cfg.Tenants, baseDir, nil
}

// newBoard builds the engine from the configured columns and lanes.
func newBoard(cfg config.Config, onChange func(id, status string) error) (*board.Board[model.Record], error) {
	if onChange == nil {
		onChange = func(string, string) error { return nil }
	}
	return board.New(board.Config[model.Record]{
		Columns:            cfg.Board.Columns,
		Categories:         cfg.Board.Categories,
		UncategorizedLabel: cfg.UncategorizedLabel(),
		OnStatusChange:     onChange,
	})
}

// applyMove drags id onto status through a flat board so lane visibility
// never blocks a scripted move, then persists via the workspace.
func applyMove(ctx context.Context, src ui.Source, cfg config.Config, records []model.Record, id, status string) (board.Intent, error) {
	flat := cfg
	flat.Board.Categories = nil
	b, err := newBoard(flat, func(itemID, newStatus string) error {
		return src.SetStatus(ctx, itemID, model.Status(newStatus))
	})
	if err != nil {
		return board.Intent{}, err
	}
	b.SetItems(records)

	if !b.DragStart(id) {
		return board.Intent{}, fmt.Errorf("record %s is not on the board", id)
	}
	intent, err := b.Drop(board.Target(status, ""))
	if err != nil {
		return intent, fmt.Errorf("moving %s: %w", id, err)
	}
	if !intent.Fired {
		if !b.HasStatus(status) {
			return intent, fmt.Errorf("no column for status %q", status)
		}
		return intent, fmt.Errorf("record %s is already %s", id, status)
	}
	return intent, nil
}

func runTUI(cfg config.Config, loader *workspace.AggregateLoader, criteria filter.Criteria, noWatch bool, stderr io.Writer) error {
	if debug.Enabled() {
		if dir := config.StateDir(); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err == nil {
				if f, err := os.OpenFile(filepath.Join(dir, "debug.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
					defer f.Close()
					debug.SetOutput(f)
				}
			}
		}
	}
	// Log lines would tear the alternate screen.
	loader.SetLogger(log.New(io.Discard, "", 0))

	m, err := ui.NewModel(cfg, loader)
	if err != nil {
		return err
	}
	m.SetFilter(criteria)

	if !noWatch {
		w, err := startWatcher(cfg, loader)
		if err != nil {
			fmt.Fprintf(stderr, "Warning: live reload disabled: %v\n", err)
		} else {
			defer w.Stop()
			m.SetWatcher(w)
		}
	}

	return runTUIProgram(m)
}

func startWatcher(cfg config.Config, loader *workspace.AggregateLoader) (*watcher.Watcher, error) {
	var paths []string
	for _, src := range loader.Sources() {
		paths = append(paths, src.Path)
	}
	w, err := watcher.NewWatcher(paths,
		watcher.WithDebounceDuration(cfg.DebounceDuration()),
		watcher.WithForcePoll(cfg.Watch.ForcePoll),
		watcher.WithOnChange(func(path string) { debug.Log("watcher: %s changed", path) }),
		watcher.WithOnError(func(err error) { debug.Log("watcher: %v", err) }),
	)
	if err != nil {
		return nil, err
	}
	if err := w.Start(); err != nil {
		return nil, err
	}
	return w, nil
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set OPSBOARD_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("OPSBOARD_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}
				p.Quit()
			}()
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}
