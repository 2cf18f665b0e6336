// Package store persists the field embedding index, AI-filled field values and
// raw transcripts.
//
// Two backends implement the same interfaces:
// - SQLiteStore (default; a single file, or ":memory:" for tests)
// - PostgresStore (shared deployments)
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/vitalscribe/internal/model"
)

// DefaultRetention is how long raw transcripts are kept when no retention is configured
const DefaultRetention = 30 * 24 * time.Hour

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// FieldValue is one persisted form value, keyed by (AssessmentID, FieldID)
type FieldValue struct {
	AssessmentID string        `json:"assessmentId"`
	FieldID      model.FieldID `json:"fieldId"`
	SectionID    string        `json:"sectionId"`
	FieldLabel   string        `json:"fieldLabel"`
	Value        string        `json:"value"`
	DataSource   string        `json:"dataSource"`
	AISourceText string        `json:"aiSourceText"`
	Confidence   float64       `json:"confidence"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// Transcript is a raw transcript awaiting or finished extraction
type Transcript struct {
	ID           uuid.UUID `json:"id"`
	AssessmentID string    `json:"assessmentId"`
	Text         string    `json:"text"`
	Source       string    `json:"source"`
	Processed    bool      `json:"processed"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// EmbeddingStore holds the field embedding index
type EmbeddingStore interface {
	// ReplaceEmbeddings swaps the whole index in one transaction
	ReplaceEmbeddings(ctx context.Context, embeddings []model.FieldEmbedding) error
	ListEmbeddings(ctx context.Context) ([]model.FieldEmbedding, error)
	CountEmbeddings(ctx context.Context) (int, error)
	// IndexModel returns the embedding model and dimensionality of the stored index.
	// An empty index returns "", 0, nil.
	IndexModel(ctx context.Context) (string, int, error)
}

// VectorSearcher finds catalog fields similar to a query vector
type VectorSearcher interface {
	SearchEmbeddings(ctx context.Context, query []float32, threshold float64, topK int) ([]model.ExtractionCandidate, error)
}

// FieldValueStore receives AI-filled form values
type FieldValueStore interface {
	UpsertFieldValue(ctx context.Context, v FieldValue) error
	ListFieldValues(ctx context.Context, assessmentID string) ([]FieldValue, error)
}

// TranscriptStore keeps raw transcripts until they expire
type TranscriptStore interface {
	InsertTranscript(ctx context.Context, t Transcript) (uuid.UUID, error)
	GetTranscript(ctx context.Context, id uuid.UUID) (*Transcript, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Store is the full persistence surface
type Store interface {
	EmbeddingStore
	VectorSearcher
	FieldValueStore
	TranscriptStore
	Ping(ctx context.Context) error
	Close() error
}

// Config selects and configures a backend
type Config struct {
	Driver    string // sqlite (default), postgres
	DSN       string
	Retention time.Duration
}

// Open connects to the configured backend and applies migrations
func Open(cfg Config) (Store, error) {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLiteStore(cfg.DSN, cfg.Retention)
	case "postgres", "postgresql":
		return NewPostgresStore(cfg.DSN, cfg.Retention)
	default:
		return nil, fmt.Errorf("unknown store driver: %s (supported: sqlite, postgres)", cfg.Driver)
	}
}

// prepareTranscript fills id and timestamps
func prepareTranscript(t *Transcript, retention time.Duration) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.CreatedAt = t.CreatedAt.UTC()
	if t.ExpiresAt.IsZero() {
		t.ExpiresAt = t.CreatedAt.Add(retention)
	}
	t.ExpiresAt = t.ExpiresAt.UTC()
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
