package searchindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/viant/sqlite-vec/engine"
	"github.com/viant/sqlite-vec/vector"
)

const catalogDDL = `CREATE TABLE IF NOT EXISTS search_index (
	name       TEXT PRIMARY KEY,
	definition TEXT NOT NULL,
	created_at TEXT NOT NULL
)`

// SQLite keeps every index in a single database file: a catalog row holding
// the schema definition, a record table and an FTS5 table for lexical
// matching. Vector similarity is computed in process.
type SQLite struct {
	db     *sql.DB
	schema Schema
	logger *slog.Logger
	owned  bool
}

// NewSQLite opens (or creates) the database at dsn. Use ":memory:" for a
// throwaway index.
func NewSQLite(ctx context.Context, dsn string, schema Schema, logger *slog.Logger) (*SQLite, error) {
	db, err := engine.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", dsn, err)
	}
	if dsn == ":memory:" {
		// Each connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	s, err := NewSQLiteWithDB(ctx, db, schema, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewSQLiteWithDB uses an already opened database. Close leaves db open.
func NewSQLiteWithDB(ctx context.Context, db *sql.DB, schema Schema, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := db.ExecContext(ctx, catalogDDL); err != nil {
		return nil, fmt.Errorf("failed to create catalog: %w", err)
	}
	return &SQLite{db: db, schema: schema, logger: logger.With("component", "sqlite")}, nil
}

func recordTable(name string) string { return `"idx_` + name + `"` }
func ftsTable(name string) string    { return `"idx_` + name + `_fts"` }

// CreateIndex drops any existing index of the same name and recreates it.
func (s *SQLite) CreateIndex(ctx context.Context, name string) error {
	if err := ValidateIndexName(name); err != nil {
		return err
	}

	definition, err := json.Marshal(s.schema)
	if err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}

	table, fts := recordTable(name), ftsTable(name)
	statements := []string{
		`DROP TABLE IF EXISTS ` + fts,
		`DROP TABLE IF EXISTS ` + table,
		`CREATE TABLE ` + table + ` (
	id               TEXT PRIMARY KEY,
	content          TEXT NOT NULL,
	content_vector   BLOB NOT NULL,
	meta_json_string TEXT NOT NULL DEFAULT '',
	filepath         TEXT NOT NULL DEFAULT '',
	title            TEXT NOT NULL DEFAULT ''
)`,
		`CREATE INDEX "idx_` + name + `_filepath" ON ` + table + ` (filepath)`,
		`CREATE INDEX "idx_` + name + `_meta" ON ` + table + ` (meta_json_string)`,
		`CREATE INDEX "idx_` + name + `_title" ON ` + table + ` (title)`,
		`CREATE VIRTUAL TABLE ` + fts + ` USING fts5(id UNINDEXED, title, content)`,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to provision index %s: %w", name, err)
		}
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO search_index(name, definition, created_at) VALUES(?, ?, ?)
ON CONFLICT(name) DO UPDATE SET definition = excluded.definition, created_at = excluded.created_at`,
		name, string(definition), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to register index %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit index %s: %w", name, err)
	}

	s.logger.Info("created index", "index", name, "dimensions", s.schema.Dimensions())
	return nil
}

func (s *SQLite) exists(ctx context.Context, name string) error {
	if err := ValidateIndexName(name); err != nil {
		return err
	}
	var found string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM search_index WHERE name = ?`, name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("failed to look up index %s: %w", name, err)
	}
	return nil
}

// Ingest writes records in one transaction. Each record is isolated in a
// savepoint so a failing row does not affect the others.
func (s *SQLite) Ingest(ctx context.Context, name string, records []Record) ([]Result, error) {
	if err := s.exists(ctx, name); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	table, fts := recordTable(name), ftsTable(name)
	upsert, err := tx.PrepareContext(ctx, `INSERT INTO `+table+`(id, content, content_vector, meta_json_string, filepath, title)
VALUES(?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	content = excluded.content,
	content_vector = excluded.content_vector,
	meta_json_string = excluded.meta_json_string,
	filepath = excluded.filepath,
	title = excluded.title`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer upsert.Close()

	results := make([]Result, len(records))
	for i, r := range records {
		results[i] = Result{ID: r.ID}
		if err := validateRecord(s.schema, r); err != nil {
			results[i].Reason = err.Error()
			continue
		}
		if err := s.writeRecord(ctx, tx, upsert, fts, r); err != nil {
			results[i].Reason = err.Error()
			s.logger.Debug("record rejected", "id", r.ID, "error", err)
			continue
		}
		results[i].Succeeded = true
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit batch: %w", err)
	}
	return results, nil
}

func (s *SQLite) writeRecord(ctx context.Context, tx *sql.Tx, upsert *sql.Stmt, fts string, r Record) error {
	blob, err := vector.EncodeEmbedding(r.ContentVector)
	if err != nil {
		return fmt.Errorf("failed to encode vector: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `SAVEPOINT record`); err != nil {
		return err
	}

	err = func() error {
		if _, err := upsert.ExecContext(ctx, r.ID, r.Content, blob, r.MetaJSON, r.Filepath, r.Title); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+fts+` WHERE id = ?`, r.ID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO `+fts+`(id, title, content) VALUES(?, ?, ?)`, r.ID, r.Title, r.Content)
		return err
	}()
	if err != nil {
		if _, rbErr := tx.ExecContext(ctx, `ROLLBACK TO record`); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		_, _ = tx.ExecContext(ctx, `RELEASE record`)
		return err
	}

	_, err = tx.ExecContext(ctx, `RELEASE record`)
	return err
}

// Search ranks records by cosine similarity to query.Vector. When query.Text
// is set only records whose content contains every term are considered.
func (s *SQLite) Search(ctx context.Context, name string, query Query) ([]Hit, error) {
	if err := s.exists(ctx, name); err != nil {
		return nil, err
	}
	if want := s.schema.Dimensions(); len(query.Vector) != want {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(query.Vector), want)
	}

	top := query.Top
	if top <= 0 {
		top = DefaultTop
	}

	table, fts := recordTable(name), ftsTable(name)
	stmt := `SELECT id, title, content, filepath, meta_json_string, content_vector FROM ` + table
	var args []any
	if match := ftsQuery(query.Text); match != "" {
		stmt += ` WHERE id IN (SELECT id FROM ` + fts + ` WHERE ` + fts + ` MATCH ?)`
		args = append(args, match)
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search index %s: %w", name, err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var hit Hit
		var blob []byte
		if err := rows.Scan(&hit.ID, &hit.Title, &hit.Content, &hit.Filepath, &hit.MetaJSON, &blob); err != nil {
			return nil, err
		}
		vec, err := vector.DecodeEmbedding(blob)
		if err != nil {
			s.logger.Warn("skipping undecodable vector", "id", hit.ID, "error", err)
			continue
		}
		hit.Score = cosine(query.Vector, vec)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > top {
		hits = hits[:top]
	}
	return hits, nil
}

// ftsQuery turns free text into an FTS5 expression requiring every term in
// the content column.
func ftsQuery(text string) string {
	terms := strings.Fields(text)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, term := range terms {
		quoted[i] = `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
	}
	return `content : (` + strings.Join(quoted, " AND ") + `)`
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Stats returns the number of records in the index.
func (s *SQLite) Stats(ctx context.Context, name string) (*Stats, error) {
	if err := s.exists(ctx, name); err != nil {
		return nil, err
	}
	var count uint64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+recordTable(name)).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	return &Stats{Name: name, RecordCount: count}, nil
}

// Health pings the database.
func (s *SQLite) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return nil
}

// Close closes the database if it was opened by NewSQLite.
func (s *SQLite) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}
