package datasource

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/opsboard/pkg/debug"
	"github.com/vanderheijden86/opsboard/pkg/model"
)

// maxLineSize bounds a single JSONL record.
const maxLineSize = 4 * 1024 * 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// JSONLStore keeps one tenant's records in a JSON-lines file. Writes rewrite
// the whole file atomically (temp file + rename) so watchers and editors
// never observe a partial file. Lines a write does not target are copied
// through byte for byte, including ones Load skips.
type JSONLStore struct {
	mu     sync.Mutex
	source DataSource
	now    func() time.Time
}

// OpenJSONL returns a store for source. The file is not touched until the
// first Load or write.
func OpenJSONL(source DataSource) *JSONLStore {
	return &JSONLStore{source: source, now: time.Now}
}

// Source returns the underlying data source.
func (s *JSONLStore) Source() DataSource { return s.source }

// Close is a no-op; the file is opened per operation.
func (s *JSONLStore) Close() error { return nil }

// line is one physical line of the file as read. id is empty when the line
// is not a JSON object with a string "id".
type line struct {
	raw []byte
	id  string
}

// Load reads every valid record. Malformed or invalid lines are skipped and
// logged; a missing file yields no records.
func (s *JSONLStore) Load(ctx context.Context) ([]model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.readLines(ctx)
	if err != nil {
		return nil, err
	}
	var records []model.Record
	for i, l := range lines {
		data := payload(l.raw, i == 0)
		if len(data) == 0 {
			continue
		}
		var r model.Record
		if err := json.Unmarshal(data, &r); err != nil {
			debug.Log("jsonl: %s: skipping malformed JSON on line %d: %v", s.source.Path, i+1, err)
			continue
		}
		if err := r.Validate(); err != nil {
			debug.Log("jsonl: %s: skipping invalid record on line %d: %v", s.source.Path, i+1, err)
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

// payload strips surrounding whitespace and, on the first line, a UTF-8 BOM.
func payload(raw []byte, first bool) []byte {
	data := bytes.TrimSpace(raw)
	if first {
		data = bytes.TrimPrefix(data, utf8BOM)
	}
	return data
}

// readLines returns the file's lines verbatim so writes can pass through
// everything they do not touch.
func (s *JSONLStore) readLines(ctx context.Context) ([]line, error) {
	f, err := os.Open(s.source.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening %s: %w", s.source.Path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var lines []line
	for scanner.Scan() {
		if len(lines)%256 == 255 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		raw := append([]byte(nil), scanner.Bytes()...)
		l := line{raw: raw}
		var head struct {
			ID string `json:"id"`
		}
		if data := payload(raw, len(lines) == 0); len(data) > 0 && json.Unmarshal(data, &head) == nil {
			l.id = head.ID
		}
		lines = append(lines, l)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.source.Path, err)
	}
	return lines, nil
}

// SetStatus rewrites the record's line with the new status and update time.
// Every other line, and every field the record type does not know, is kept
// as it was.
func (s *JSONLStore) SetStatus(ctx context.Context, id string, status model.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.readLines(ctx)
	if err != nil {
		return err
	}
	for i := range lines {
		if lines[i].id != id {
			continue
		}
		patched, err := patchStatus(payload(lines[i].raw, i == 0), status, s.now().UTC())
		if err != nil {
			return fmt.Errorf("updating %s: %w", id, err)
		}
		lines[i].raw = patched
		return s.write(lines)
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

func patchStatus(data []byte, status model.Status, at time.Time) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	var err error
	if fields["status"], err = json.Marshal(status); err != nil {
		return nil, err
	}
	if fields["updated_at"], err = json.Marshal(at); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

// Upsert replaces the lines of records with matching IDs and appends the
// rest. Unrelated lines are kept verbatim.
func (s *JSONLStore) Upsert(ctx context.Context, records ...model.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.readLines(ctx)
	if err != nil {
		return err
	}
	index := make(map[string]int, len(lines))
	for i, l := range lines {
		if _, seen := index[l.id]; l.id != "" && !seen {
			index[l.id] = i
		}
	}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to encode record %s: %w", r.ID, err)
		}
		if i, ok := index[r.ID]; ok {
			lines[i].raw = data
			continue
		}
		index[r.ID] = len(lines)
		lines = append(lines, line{raw: data, id: r.ID})
	}
	return s.write(lines)
}

func (s *JSONLStore) write(lines []line) error {
	path := s.source.Path
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	closed := false
	cleanup := func() {
		if !closed {
			_ = tmp.Close()
			closed = true
		}
		_ = os.Remove(tmpName)
	}

	w := bufio.NewWriter(tmp)
	for _, l := range lines {
		w.Write(l.raw)
		if err := w.WriteByte('\n'); err != nil {
			cleanup()
			return fmt.Errorf("failed to write temp file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		cleanup()
		return fmt.Errorf("failed to flush temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	closed = true

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
