package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/vitalscribe/internal/model"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.vitalscribe/vitalscribe.db"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS field_embeddings (
	field_id    TEXT PRIMARY KEY,
	vector      BLOB NOT NULL,
	dimensions  INTEGER NOT NULL,
	source_text TEXT NOT NULL,
	model       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS field_values (
	assessment_id  TEXT NOT NULL,
	field_id       TEXT NOT NULL,
	section_id     TEXT NOT NULL,
	field_label    TEXT NOT NULL,
	value          TEXT NOT NULL,
	data_source    TEXT NOT NULL,
	ai_source_text TEXT NOT NULL DEFAULT '',
	confidence     REAL NOT NULL DEFAULT 0,
	updated_at     INTEGER NOT NULL,
	PRIMARY KEY (assessment_id, field_id)
);

CREATE TABLE IF NOT EXISTS transcripts (
	id            TEXT PRIMARY KEY,
	assessment_id TEXT NOT NULL,
	text          TEXT NOT NULL,
	source        TEXT NOT NULL DEFAULT '',
	processed     INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL,
	expires_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transcripts_expires ON transcripts(expires_at);
`

// SQLiteStore implements Store on an embedded SQLite database
type SQLiteStore struct {
	db        *sql.DB
	retention time.Duration
}

// NewSQLiteStore opens (creating if needed) a SQLite database.
// Pass ":memory:" for an in-memory database (testing).
func NewSQLiteStore(path string, retention time.Duration) (*SQLiteStore, error) {
	if path == "" {
		path = DefaultDBPath
	}
	path = expandPath(path)
	if retention <= 0 {
		retention = DefaultRetention
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db, retention: retention}, nil
}

// Ping checks the connection
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ReplaceEmbeddings deletes the current index and inserts embeddings in one transaction
func (s *SQLiteStore) ReplaceEmbeddings(ctx context.Context, embeddings []model.FieldEmbedding) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning index swap: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM field_embeddings"); err != nil {
		return fmt.Errorf("clearing embeddings: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO field_embeddings (field_id, vector, dimensions, source_text, model) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing embedding insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range embeddings {
		if _, err := stmt.ExecContext(ctx, string(e.FieldID), float32ToBytes(e.Vector), len(e.Vector), e.SourceText, e.Model); err != nil {
			return fmt.Errorf("storing embedding for %s: %w", e.FieldID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing index swap: %w", err)
	}
	return nil
}

// ListEmbeddings returns the whole index ordered by field id
func (s *SQLiteStore) ListEmbeddings(ctx context.Context) ([]model.FieldEmbedding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT field_id, vector, source_text, model FROM field_embeddings ORDER BY field_id`)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var out []model.FieldEmbedding
	for rows.Next() {
		var (
			id   string
			blob []byte
			e    model.FieldEmbedding
		)
		if err := rows.Scan(&id, &blob, &e.SourceText, &e.Model); err != nil {
			return nil, fmt.Errorf("scanning embedding row: %w", err)
		}
		e.FieldID = model.FieldID(id)
		e.Vector = bytesToFloat32(blob)
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountEmbeddings returns the number of indexed fields
func (s *SQLiteStore) CountEmbeddings(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM field_embeddings").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting embeddings: %w", err)
	}
	return n, nil
}

// IndexModel returns the model and dimensionality of the stored index
func (s *SQLiteStore) IndexModel(ctx context.Context) (string, int, error) {
	var (
		name string
		dims int
	)
	err := s.db.QueryRowContext(ctx, "SELECT model, dimensions FROM field_embeddings LIMIT 1").Scan(&name, &dims)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, fmt.Errorf("reading index model: %w", err)
	}
	return name, dims, nil
}

// SearchEmbeddings performs brute-force cosine similarity search across the index
func (s *SQLiteStore) SearchEmbeddings(ctx context.Context, query []float32, threshold float64, topK int) ([]model.ExtractionCandidate, error) {
	all, err := s.ListEmbeddings(ctx)
	if err != nil {
		return nil, err
	}
	return Rank(query, all, threshold, topK), nil
}

// UpsertFieldValue inserts or replaces the value for (assessment, field)
func (s *SQLiteStore) UpsertFieldValue(ctx context.Context, v FieldValue) error {
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = time.Now()
	}
	if v.DataSource == "" {
		v.DataSource = model.DataSourceAIFilled
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO field_values (assessment_id, field_id, section_id, field_label, value, data_source, ai_source_text, confidence, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(assessment_id, field_id) DO UPDATE SET
			section_id = excluded.section_id,
			field_label = excluded.field_label,
			value = excluded.value,
			data_source = excluded.data_source,
			ai_source_text = excluded.ai_source_text,
			confidence = excluded.confidence,
			updated_at = excluded.updated_at`,
		v.AssessmentID, string(v.FieldID), v.SectionID, v.FieldLabel, v.Value, v.DataSource, v.AISourceText, v.Confidence, v.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("upserting %s for assessment %s: %w", v.FieldID, v.AssessmentID, err)
	}
	return nil
}

// ListFieldValues returns every stored value of an assessment ordered by field id
func (s *SQLiteStore) ListFieldValues(ctx context.Context, assessmentID string) ([]FieldValue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT assessment_id, field_id, section_id, field_label, value, data_source, ai_source_text, confidence, updated_at
		FROM field_values WHERE assessment_id = ? ORDER BY field_id`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("listing field values: %w", err)
	}
	defer rows.Close()

	var out []FieldValue
	for rows.Next() {
		var (
			v       FieldValue
			id      string
			updated int64
		)
		if err := rows.Scan(&v.AssessmentID, &id, &v.SectionID, &v.FieldLabel, &v.Value,
			&v.DataSource, &v.AISourceText, &v.Confidence, &updated); err != nil {
			return nil, fmt.Errorf("scanning field value: %w", err)
		}
		v.FieldID = model.FieldID(id)
		v.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, v)
	}
	return out, rows.Err()
}

// InsertTranscript stores a raw transcript and returns its id
func (s *SQLiteStore) InsertTranscript(ctx context.Context, t Transcript) (uuid.UUID, error) {
	prepareTranscript(&t, s.retention)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transcripts (id, assessment_id, text, source, processed, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.AssessmentID, t.Text, t.Source, t.Processed, t.CreatedAt.UnixNano(), t.ExpiresAt.UnixNano())
	if err != nil {
		return uuid.Nil, fmt.Errorf("inserting transcript: %w", err)
	}
	return t.ID, nil
}

// GetTranscript loads one transcript
func (s *SQLiteStore) GetTranscript(ctx context.Context, id uuid.UUID) (*Transcript, error) {
	var (
		t                Transcript
		rawID            string
		created, expires int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, assessment_id, text, source, processed, created_at, expires_at
		FROM transcripts WHERE id = ?`, id.String()).
		Scan(&rawID, &t.AssessmentID, &t.Text, &t.Source, &t.Processed, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transcript %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting transcript %s: %w", id, err)
	}

	if t.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("parsing transcript id: %w", err)
	}
	t.CreatedAt = time.Unix(0, created).UTC()
	t.ExpiresAt = time.Unix(0, expires).UTC()
	return &t, nil
}

// MarkProcessed flags a transcript as processed
func (s *SQLiteStore) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "UPDATE transcripts SET processed = 1 WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("marking transcript %s processed: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transcript %s: %w", id, ErrNotFound)
	}
	return nil
}

// PurgeExpired deletes transcripts whose retention has elapsed
func (s *SQLiteStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM transcripts WHERE expires_at <= ?", now.UTC().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purging transcripts: %w", err)
	}
	return res.RowsAffected()
}
