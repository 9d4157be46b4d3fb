package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/opsboard/pkg/debug"
	"github.com/vanderheijden86/opsboard/pkg/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id          TEXT PRIMARY KEY,
	tenant      TEXT NOT NULL DEFAULT '',
	kind        TEXT NOT NULL DEFAULT '',
	name        TEXT NOT NULL DEFAULT '',
	description TEXT,
	status      TEXT NOT NULL,
	category    TEXT,
	sector      TEXT,
	owner       TEXT,
	due_date    TEXT,
	created_at  TEXT NOT NULL,
	updated_at  TEXT,
	deleted     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_records_status ON records(status);
`

// timestamps are stored as RFC 3339 text so the file stays readable from
// any SQLite client
const timeLayout = time.RFC3339Nano

// SQLiteStore provides read/write access to a records SQLite database
type SQLiteStore struct {
	db     *sql.DB
	source DataSource
	now    func() time.Time
}

// OpenSQLite opens (creating if needed) the database described by source.
func OpenSQLite(source DataSource) (*SQLiteStore, error) {
	if source.Type != SourceTypeSQLite {
		return nil, fmt.Errorf("source is not SQLite: %s", source.Type)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", source.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	// One writer at a time; the board issues a handful of updates per minute.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, source: source, now: time.Now}
	if err := s.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the records table if it is missing.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Source returns the underlying data source.
func (s *SQLiteStore) Source() DataSource { return s.source }

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Load reads all non-deleted records, oldest first.
func (s *SQLiteStore) Load(ctx context.Context) ([]model.Record, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant, kind, name, description, status, category, sector,
		       owner, due_date, created_at, updated_at
		FROM records
		WHERE deleted = 0
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		var r model.Record
		var kind, status string
		var description, category, sector, owner, dueDate, updatedAt sql.NullString
		var createdAt string

		if err := rows.Scan(
			&r.ID, &r.Tenant, &kind, &r.Name, &description, &status, &category, &sector,
			&owner, &dueDate, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}

		r.Kind = model.Kind(kind)
		r.Status = model.Status(status)
		r.Description = description.String
		r.Category = category.String
		r.Sector = sector.String
		r.Owner = owner.String

		if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			debug.Log("sqlite: record %s has bad created_at %q: %v", r.ID, createdAt, err)
			continue
		}
		if dueDate.Valid && dueDate.String != "" {
			t, err := time.Parse(timeLayout, dueDate.String)
			if err != nil {
				debug.Log("sqlite: record %s has bad due_date %q: %v", r.ID, dueDate.String, err)
			} else {
				r.DueDate = &t
			}
		}
		if updatedAt.Valid && updatedAt.String != "" {
			if t, err := time.Parse(timeLayout, updatedAt.String); err == nil {
				r.UpdatedAt = t
			}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	debug.LogTiming("sqlite load "+s.source.Path, time.Since(start))
	return records, nil
}

// SetStatus writes the full new status of one record.
func (s *SQLiteStore) SetStatus(ctx context.Context, id string, status model.Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET status = ?, updated_at = ? WHERE id = ? AND deleted = 0`,
		string(status), s.now().UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("updating %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Upsert inserts or replaces records in one transaction.
func (s *SQLiteStore) Upsert(ctx context.Context, records ...model.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (id, tenant, kind, name, description, status, category, sector,
		                     owner, due_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tenant = excluded.tenant, kind = excluded.kind, name = excluded.name,
			description = excluded.description, status = excluded.status,
			category = excluded.category, sector = excluded.sector, owner = excluded.owner,
			due_date = excluded.due_date, created_at = excluded.created_at,
			updated_at = excluded.updated_at, deleted = 0
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
		var due, updated sql.NullString
		if r.DueDate != nil {
			due = sql.NullString{String: r.DueDate.Format(timeLayout), Valid: true}
		}
		if !r.UpdatedAt.IsZero() {
			updated = sql.NullString{String: r.UpdatedAt.Format(timeLayout), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.Tenant, string(r.Kind), r.Name, nullString(r.Description), string(r.Status),
			nullString(r.Category), nullString(r.Sector), nullString(r.Owner),
			due, r.CreatedAt.Format(timeLayout), updated,
		); err != nil {
			return fmt.Errorf("upserting %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of non-deleted records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE deleted = 0`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
