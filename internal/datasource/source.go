// Package datasource is the persistence collaborator for opsboard: it loads
// a tenant's records from a SQLite database or a JSONL file and persists
// status changes back to it.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vanderheijden86/opsboard/pkg/model"
)

// ErrNotFound is returned when a status change targets an unknown record.
var ErrNotFound = errors.New("record not found")

// SourceType identifies the type of data source
type SourceType string

const (
	// SourceTypeSQLite is a SQLite database (*.db, *.sqlite)
	SourceTypeSQLite SourceType = "sqlite"
	// SourceTypeJSONL is a JSON-lines file, one record per line
	SourceTypeJSONL SourceType = "jsonl"
)

// DataSource describes a data file on disk.
type DataSource struct {
	Type    SourceType `json:"type"`
	Path    string     `json:"path"`
	ModTime time.Time  `json:"mod_time"`
	Size    int64      `json:"size"`
	Exists  bool       `json:"exists"`
}

// String returns a human-readable description of the source
func (s DataSource) String() string {
	if !s.Exists {
		return fmt.Sprintf("%s (%s, new)", s.Path, s.Type)
	}
	return fmt.Sprintf("%s (%s, mod=%s, %d bytes)", s.Path, s.Type, s.ModTime.Format(time.RFC3339), s.Size)
}

// Store reads and writes one tenant's records.
type Store interface {
	Load(ctx context.Context) ([]model.Record, error)
	// SetStatus persists the full new status for one record.
	SetStatus(ctx context.Context, id string, status model.Status) error
	Source() DataSource
	Close() error
}

// DetectSource classifies path by extension and stats it. A missing file is
// not an error: both store types create their file on first write.
func DetectSource(path string) (DataSource, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return DataSource{}, fmt.Errorf("resolving %s: %w", path, err)
	}

	var typ SourceType
	switch strings.ToLower(filepath.Ext(abs)) {
	case ".db", ".sqlite", ".sqlite3":
		typ = SourceTypeSQLite
	case ".jsonl", ".ndjson":
		typ = SourceTypeJSONL
	default:
		return DataSource{}, fmt.Errorf("unsupported data file %s (want .db, .sqlite or .jsonl)", path)
	}

	src := DataSource{Type: typ, Path: abs}
	info, err := os.Stat(abs)
	switch {
	case err == nil:
		if info.IsDir() {
			return DataSource{}, fmt.Errorf("%s is a directory", path)
		}
		src.Exists = true
		src.ModTime = info.ModTime()
		src.Size = info.Size()
	case os.IsNotExist(err):
	default:
		return DataSource{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return src, nil
}

// Open detects the source type of path and opens the matching store.
func Open(path string) (Store, error) {
	src, err := DetectSource(path)
	if err != nil {
		return nil, err
	}
	switch src.Type {
	case SourceTypeSQLite:
		return OpenSQLite(src)
	case SourceTypeJSONL:
		return OpenJSONL(src), nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", src.Type)
	}
}
