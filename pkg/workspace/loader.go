package workspace

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/opsboard/internal/datasource"
	"github.com/vanderheijden86/opsboard/pkg/config"
	"github.com/vanderheijden86/opsboard/pkg/metrics"
	"github.com/vanderheijden86/opsboard/pkg/model"
)

// LoadResult contains the result of loading a single tenant
type LoadResult struct {
	Tenant string
	Source datasource.DataSource

	// Records carry namespaced IDs
	Records []model.Record

	// Error is set if loading failed
	Error error
}

// AggregateLoader loads records from every enabled tenant and keeps the
// stores open so status changes can be written back.
type AggregateLoader struct {
	tenants []config.Tenant
	baseDir string
	logger  *log.Logger
	open    func(path string) (datasource.Store, error)

	mu     sync.Mutex
	stores map[string]datasource.Store
}

// NewAggregateLoader creates a loader for tenants. Relative tenant paths are
// resolved against baseDir.
func NewAggregateLoader(tenants []config.Tenant, baseDir string) *AggregateLoader {
	return &AggregateLoader{
		tenants: tenants,
		baseDir: baseDir,
		// Silent by default so robot output on stdout/stderr stays clean.
		logger: log.New(io.Discard, "", 0),
		open:   datasource.Open,
		stores: make(map[string]datasource.Store),
	}
}

// SetLogger sets a custom logger for error reporting
func (l *AggregateLoader) SetLogger(logger *log.Logger) {
	l.logger = logger
}

// LoadAll loads all enabled tenants in parallel and returns the merged
// records. A tenant that fails to load is logged and reported in its
// LoadResult; it does not fail the whole load.
func (l *AggregateLoader) LoadAll(ctx context.Context) ([]model.Record, []LoadResult, error) {
	enabled := l.enabledTenants()
	if len(enabled) == 0 {
		return nil, nil, fmt.Errorf("no enabled tenants configured")
	}

	results := make([]LoadResult, len(enabled))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(32)

	for i, tenant := range enabled {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = LoadResult{Tenant: tenant.Name, Error: err}
				return nil
			}
			results[i] = l.loadTenant(gctx, tenant)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, results, fmt.Errorf("fatal error during parallel loading: %w", err)
	}
	l.logger.Printf("finished loading %d tenants", len(enabled))

	var all []model.Record
	for _, r := range results {
		if r.Error != nil {
			l.logger.Printf("WARNING: failed to load tenant %q: %v", r.Tenant, r.Error)
			continue
		}
		all = append(all, r.Records...)
	}
	return all, results, nil
}

func (l *AggregateLoader) enabledTenants() []config.Tenant {
	var enabled []config.Tenant
	for _, t := range l.tenants {
		if t.IsEnabled() {
			enabled = append(enabled, t)
		}
	}
	return enabled
}

func (l *AggregateLoader) loadTenant(ctx context.Context, tenant config.Tenant) LoadResult {
	defer metrics.Timer(metrics.TenantLoad)()
	res := LoadResult{Tenant: tenant.Name}

	store, err := l.store(tenant)
	if err != nil {
		res.Error = err
		return res
	}
	res.Source = store.Source()

	records, err := store.Load(ctx)
	if err != nil {
		res.Error = fmt.Errorf("loading tenant %s: %w", tenant.Name, err)
		return res
	}
	for i := range records {
		records[i].Tenant = tenant.Name
		records[i].ID = QualifyID(records[i].ID, tenant.Name)
	}
	res.Records = records
	return res
}

// store returns the cached store for tenant, opening it on first use.
func (l *AggregateLoader) store(tenant config.Tenant) (datasource.Store, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if s, ok := l.stores[tenant.Name]; ok {
		return s, nil
	}
	path := tenant.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.baseDir, path)
	}
	s, err := l.open(path)
	if err != nil {
		return nil, fmt.Errorf("opening tenant %s: %w", tenant.Name, err)
	}
	l.stores[tenant.Name] = s
	return s, nil
}

// SetStatus routes a status change for a namespaced record ID to the store
// of the tenant that owns it.
func (l *AggregateLoader) SetStatus(ctx context.Context, id string, status model.Status) error {
	defer metrics.Timer(metrics.StatusPersist)()
	ns := ParseNamespacedID(id)
	tenant, ok := l.lookup(ns)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTenant, id)
	}
	store, err := l.store(tenant)
	if err != nil {
		return err
	}
	local := UnqualifyID(id, tenant.Name)
	if err := store.SetStatus(ctx, local, status); err != nil {
		return fmt.Errorf("tenant %s: %w", tenant.Name, err)
	}
	return nil
}

// lookup finds the enabled tenant owning ns. IDs that name no tenant belong
// to the unnamed tenant of single-file mode, if there is one; its local IDs
// may themselves contain the separator.
func (l *AggregateLoader) lookup(ns NamespacedID) (config.Tenant, bool) {
	var unnamed *config.Tenant
	for _, t := range l.enabledTenants() {
		if t.Name == ns.Tenant && t.Name != "" {
			return t, true
		}
		if t.Name == "" {
			unnamed = &t
		}
	}
	if unnamed != nil {
		return *unnamed, true
	}
	return config.Tenant{}, false
}

// Sources returns the data sources opened so far, sorted by path. The
// watcher uses them to decide which files to observe.
func (l *AggregateLoader) Sources() []datasource.DataSource {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []datasource.DataSource
	for _, s := range l.stores {
		out = append(out, s.Source())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Close closes every open store.
func (l *AggregateLoader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for name, s := range l.stores {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(l.stores, name)
	}
	return firstErr
}

// LoadSummary aggregates LoadResults.
type LoadSummary struct {
	TotalTenants      int
	SuccessfulTenants int
	FailedTenants     int
	TotalRecords      int
	FailedTenantNames []string
}

// Summarize returns a summary of the load results
func Summarize(results []LoadResult) LoadSummary {
	summary := LoadSummary{TotalTenants: len(results)}
	for _, r := range results {
		if r.Error != nil {
			summary.FailedTenants++
			summary.FailedTenantNames = append(summary.FailedTenantNames, r.Tenant)
			continue
		}
		summary.SuccessfulTenants++
		summary.TotalRecords += len(r.Records)
	}
	return summary
}
