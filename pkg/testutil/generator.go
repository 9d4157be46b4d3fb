// Package testutil provides deterministic record fixtures and assertions
// shared by package tests.
package testutil

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/opsboard/pkg/model"
)

// GeneratorConfig controls record generation.
type GeneratorConfig struct {
	Seed     int64     // Random seed for determinism (0 = use current time)
	Tenant   string    // Namespace prefix; empty keeps raw IDs
	IDPrefix string    // Prefix for local IDs (default: "R")
	BaseTime time.Time // "now" for due and creation offsets (default: fixed time)

	Statuses   []model.Status // nil = the default lifecycle
	Kinds      []model.Kind   // nil = all task
	Categories []string       // "" entries produce uncategorized records
	Sectors    []string
	Owners     []string

	// Due dates are spread over [-DueSpreadDays, +DueSpreadDays] around
	// BaseTime. NoDueRatio of records get no due date.
	DueSpreadDays int
	NoDueRatio    float64

	// Creation times fall within the last CreatedSpreadDays.
	CreatedSpreadDays int
}

// DefaultBaseTime is a Wednesday noon, so week buckets have days on both sides.
var DefaultBaseTime = time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:              42, // Deterministic
		IDPrefix:          "R",
		BaseTime:          DefaultBaseTime,
		Statuses:          model.DefaultStatuses(),
		Kinds:             []model.Kind{model.KindTask},
		Categories:        []string{"legal", "finance", "it", ""},
		Sectors:           []string{"ops", "hr", "sales"},
		Owners:            []string{"ana", "bo", "chen"},
		DueSpreadDays:     45,
		NoDueRatio:        0.2,
		CreatedSpreadDays: 60,
	}
}

// Generator creates record fixtures.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.BaseTime.IsZero() {
		cfg.BaseTime = DefaultBaseTime
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = "R"
	}
	if len(cfg.Statuses) == 0 {
		cfg.Statuses = model.DefaultStatuses()
	}
	if len(cfg.Kinds) == 0 {
		cfg.Kinds = []model.Kind{model.KindTask}
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// Now returns the generator's reference time.
func (g *Generator) Now() time.Time { return g.cfg.BaseTime }

// Records generates n records with IDs <prefix>1 … <prefix>n.
func (g *Generator) Records(n int) []model.Record {
	records := make([]model.Record, n)
	for i := range records {
		local := fmt.Sprintf("%s%d", g.cfg.IDPrefix, i+1)
		id := local
		if g.cfg.Tenant != "" {
			id = g.cfg.Tenant + ":" + local
		}

		r := model.Record{
			ID:        id,
			Tenant:    g.cfg.Tenant,
			Kind:      g.cfg.Kinds[g.rng.Intn(len(g.cfg.Kinds))],
			Name:      fmt.Sprintf("Record %s", local),
			Status:    g.cfg.Statuses[g.rng.Intn(len(g.cfg.Statuses))],
			Category:  pick(g.rng, g.cfg.Categories),
			Sector:    pick(g.rng, g.cfg.Sectors),
			Owner:     pick(g.rng, g.cfg.Owners),
			CreatedAt: g.cfg.BaseTime.Add(-time.Duration(g.rng.Intn(max(1, g.cfg.CreatedSpreadDays*24))) * time.Hour),
		}
		if g.rng.Float64() >= g.cfg.NoDueRatio {
			offset := g.rng.Intn(2*g.cfg.DueSpreadDays+1) - g.cfg.DueSpreadDays
			due := g.cfg.BaseTime.AddDate(0, 0, offset)
			r.DueDate = &due
		}
		records[i] = r
	}
	return records
}

func pick(rng *rand.Rand, values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[rng.Intn(len(values))]
}

// ToJSONL converts records to JSONL format (one JSON object per line).
func ToJSONL(records []model.Record) string {
	var sb strings.Builder
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			continue
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// QuickRecords generates n records with the default config.
func QuickRecords(n int) []model.Record {
	return NewDefault().Records(n)
}

// TenantRecords generates n namespaced records for tenant.
func TenantRecords(tenant string, n int) []model.Record {
	cfg := DefaultConfig()
	cfg.Tenant = tenant
	return New(cfg).Records(n)
}
