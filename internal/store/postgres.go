package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ppiankov/vitalscribe/internal/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS field_embeddings (
	field_id    TEXT PRIMARY KEY,
	vector      DOUBLE PRECISION[] NOT NULL,
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
	confidence     DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (assessment_id, field_id)
);

CREATE TABLE IF NOT EXISTS transcripts (
	id            UUID PRIMARY KEY,
	assessment_id TEXT NOT NULL,
	text          TEXT NOT NULL,
	source        TEXT NOT NULL DEFAULT '',
	processed     BOOLEAN NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL,
	expires_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transcripts_expires ON transcripts(expires_at);
`

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	db        *sql.DB
	retention time.Duration
}

// NewPostgresStore connects with a lib/pq DSN and applies the schema
func NewPostgresStore(dsn string, retention time.Duration) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres store requires a DSN")
	}
	if retention <= 0 {
		retention = DefaultRetention
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &PostgresStore{db: db, retention: retention}, nil
}

// Ping checks the connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// ReplaceEmbeddings deletes the current index and inserts embeddings in one transaction
func (s *PostgresStore) ReplaceEmbeddings(ctx context.Context, embeddings []model.FieldEmbedding) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning index swap: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM field_embeddings"); err != nil {
		return fmt.Errorf("clearing embeddings: %w", err)
	}

	for _, e := range embeddings {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO field_embeddings (field_id, vector, dimensions, source_text, model) VALUES ($1, $2, $3, $4, $5)`,
			string(e.FieldID), pq.Float64Array(float32To64(e.Vector)), len(e.Vector), e.SourceText, e.Model)
		if err != nil {
			return fmt.Errorf("storing embedding for %s: %w", e.FieldID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing index swap: %w", err)
	}
	return nil
}

// ListEmbeddings returns the whole index ordered by field id
func (s *PostgresStore) ListEmbeddings(ctx context.Context) ([]model.FieldEmbedding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT field_id, vector, source_text, model FROM field_embeddings ORDER BY field_id`)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var out []model.FieldEmbedding
	for rows.Next() {
		var (
			id  string
			vec pq.Float64Array
			e   model.FieldEmbedding
		)
		if err := rows.Scan(&id, &vec, &e.SourceText, &e.Model); err != nil {
			return nil, fmt.Errorf("scanning embedding row: %w", err)
		}
		e.FieldID = model.FieldID(id)
		e.Vector = float64To32(vec)
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountEmbeddings returns the number of indexed fields
func (s *PostgresStore) CountEmbeddings(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM field_embeddings").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting embeddings: %w", err)
	}
	return n, nil
}

// IndexModel returns the model and dimensionality of the stored index
func (s *PostgresStore) IndexModel(ctx context.Context) (string, int, error) {
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
func (s *PostgresStore) SearchEmbeddings(ctx context.Context, query []float32, threshold float64, topK int) ([]model.ExtractionCandidate, error) {
	all, err := s.ListEmbeddings(ctx)
	if err != nil {
		return nil, err
	}
	return Rank(query, all, threshold, topK), nil
}

// UpsertFieldValue inserts or replaces the value for (assessment, field)
func (s *PostgresStore) UpsertFieldValue(ctx context.Context, v FieldValue) error {
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = time.Now()
	}
	if v.DataSource == "" {
		v.DataSource = model.DataSourceAIFilled
	}

	query := `
		INSERT INTO field_values (assessment_id, field_id, section_id, field_label, value, data_source, ai_source_text, confidence, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (assessment_id, field_id) DO UPDATE SET
			section_id = $3,
			field_label = $4,
			value = $5,
			data_source = $6,
			ai_source_text = $7,
			confidence = $8,
			updated_at = $9
	`
	_, err := s.db.ExecContext(ctx, query,
		v.AssessmentID, string(v.FieldID), v.SectionID, v.FieldLabel, v.Value, v.DataSource, v.AISourceText, v.Confidence, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting %s for assessment %s: %w", v.FieldID, v.AssessmentID, err)
	}
	return nil
}

// ListFieldValues returns every stored value of an assessment ordered by field id
func (s *PostgresStore) ListFieldValues(ctx context.Context, assessmentID string) ([]FieldValue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT assessment_id, field_id, section_id, field_label, value, data_source, ai_source_text, confidence, updated_at
		FROM field_values WHERE assessment_id = $1 ORDER BY field_id`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("listing field values: %w", err)
	}
	defer rows.Close()

	var out []FieldValue
	for rows.Next() {
		var (
			v  FieldValue
			id string
		)
		if err := rows.Scan(&v.AssessmentID, &id, &v.SectionID, &v.FieldLabel, &v.Value,
			&v.DataSource, &v.AISourceText, &v.Confidence, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning field value: %w", err)
		}
		v.FieldID = model.FieldID(id)
		out = append(out, v)
	}
	return out, rows.Err()
}

// InsertTranscript stores a raw transcript and returns its id
func (s *PostgresStore) InsertTranscript(ctx context.Context, t Transcript) (uuid.UUID, error) {
	prepareTranscript(&t, s.retention)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transcripts (id, assessment_id, text, source, processed, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.AssessmentID, t.Text, t.Source, t.Processed, t.CreatedAt, t.ExpiresAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("inserting transcript: %w", err)
	}
	return t.ID, nil
}

// GetTranscript loads one transcript
func (s *PostgresStore) GetTranscript(ctx context.Context, id uuid.UUID) (*Transcript, error) {
	var t Transcript
	err := s.db.QueryRowContext(ctx, `
		SELECT id, assessment_id, text, source, processed, created_at, expires_at
		FROM transcripts WHERE id = $1`, id).
		Scan(&t.ID, &t.AssessmentID, &t.Text, &t.Source, &t.Processed, &t.CreatedAt, &t.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transcript %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting transcript %s: %w", id, err)
	}
	return &t, nil
}

// MarkProcessed flags a transcript as processed
func (s *PostgresStore) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "UPDATE transcripts SET processed = TRUE WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("marking transcript %s processed: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transcript %s: %w", id, ErrNotFound)
	}
	return nil
}

// PurgeExpired deletes transcripts whose retention has elapsed
func (s *PostgresStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM transcripts WHERE expires_at <= $1", now)
	if err != nil {
		return 0, fmt.Errorf("purging transcripts: %w", err)
	}
	return res.RowsAffected()
}
