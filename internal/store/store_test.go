package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/vitalscribe/internal/model"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := Open(Config{Driver: "sqlite", DSN: ":memory:", Retention: time.Hour})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// backends returns the SQLite store plus Postgres when VITALSCRIBE_TEST_POSTGRES_DSN is set
func backends(t *testing.T) map[string]Store {
	t.Helper()
	out := map[string]Store{"sqlite": newTestStore(t)}
	if dsn := os.Getenv("VITALSCRIBE_TEST_POSTGRES_DSN"); dsn != "" {
		pg, err := Open(Config{Driver: "postgres", DSN: dsn, Retention: time.Hour})
		require.NoError(t, err)
		t.Cleanup(func() { pg.Close() })
		out["postgres"] = pg
	}
	return out
}

func embedding(id string, vec ...float32) model.FieldEmbedding {
	return model.FieldEmbedding{FieldID: model.FieldID(id), Vector: vec, SourceText: "doc " + id, Model: "test-model"}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "mysql"})
	assert.Error(t, err)
}

func TestReplaceEmbeddingsSwapsIndex(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.ReplaceEmbeddings(ctx, []model.FieldEmbedding{
				embedding("a", 1, 0), embedding("b", 0, 1), embedding("c", 1, 1),
			}))
			n, err := s.CountEmbeddings(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			require.NoError(t, s.ReplaceEmbeddings(ctx, []model.FieldEmbedding{embedding("z", 0.5, 0.5)}))
			all, err := s.ListEmbeddings(ctx)
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, model.FieldID("z"), all[0].FieldID)
			assert.Equal(t, []float32{0.5, 0.5}, all[0].Vector)
			assert.Equal(t, "doc z", all[0].SourceText)

			modelName, dims, err := s.IndexModel(ctx)
			require.NoError(t, err)
			assert.Equal(t, "test-model", modelName)
			assert.Equal(t, 2, dims)
		})
	}
}

func TestReplaceEmbeddingsRollsBackOnFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceEmbeddings(ctx, []model.FieldEmbedding{embedding("a", 1, 0)}))

	// Duplicate primary key fails the second insert.
	err := s.ReplaceEmbeddings(ctx, []model.FieldEmbedding{embedding("b", 1, 0), embedding("b", 0, 1)})
	require.Error(t, err)

	all, err := s.ListEmbeddings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, model.FieldID("a"), all[0].FieldID)
}

func TestIndexModelEmpty(t *testing.T) {
	s := newTestStore(t)
	name, dims, err := s.IndexModel(context.Background())
	require.NoError(t, err)
	assert.Empty(t, name)
	assert.Zero(t, dims)
}

func TestSearchEmbeddings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceEmbeddings(ctx, []model.FieldEmbedding{
		embedding("x_axis", 1, 0),
		embedding("y_axis", 0, 1),
		embedding("diagonal", 1, 1),
	}))

	got, err := s.SearchEmbeddings(ctx, []float32{1, 0}, 0.5, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.FieldID("x_axis"), got[0].FieldID)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-6)
	assert.Equal(t, model.FieldID("diagonal"), got[1].FieldID)
}

func TestFieldValueUpsert(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			assessment := "assess-" + uuid.NewString()

			v := FieldValue{
				AssessmentID: assessment,
				FieldID:      "pulse",
				SectionID:    "vital_signs",
				FieldLabel:   "Pulse Rate",
				Value:        "76 bpm",
				AISourceText: "pulse 76",
				Confidence:   0.75,
			}
			require.NoError(t, s.UpsertFieldValue(ctx, v))

			v.Value = "80 bpm"
			require.NoError(t, s.UpsertFieldValue(ctx, v))

			values, err := s.ListFieldValues(ctx, assessment)
			require.NoError(t, err)
			require.Len(t, values, 1)
			assert.Equal(t, "80 bpm", values[0].Value)
			assert.Equal(t, model.DataSourceAIFilled, values[0].DataSource)
			assert.False(t, values[0].UpdatedAt.IsZero())
		})
	}
}

func TestTranscriptLifecycle(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now()

			id, err := s.InsertTranscript(ctx, Transcript{AssessmentID: "a1", Text: "pulse 76", CreatedAt: now})
			require.NoError(t, err)
			require.NotEqual(t, uuid.Nil, id)

			got, err := s.GetTranscript(ctx, id)
			require.NoError(t, err)
			assert.False(t, got.Processed)
			assert.WithinDuration(t, now.Add(time.Hour), got.ExpiresAt, time.Second)

			require.NoError(t, s.MarkProcessed(ctx, id))
			got, err = s.GetTranscript(ctx, id)
			require.NoError(t, err)
			assert.True(t, got.Processed)

			n, err := s.PurgeExpired(ctx, now.Add(30*time.Minute))
			require.NoError(t, err)
			assert.Zero(t, n)

			n, err = s.PurgeExpired(ctx, now.Add(2*time.Hour))
			require.NoError(t, err)
			assert.GreaterOrEqual(t, n, int64(1))

			_, err = s.GetTranscript(ctx, id)
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestMarkProcessedMissing(t *testing.T) {
	s := newTestStore(t)
	err := s.MarkProcessed(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
