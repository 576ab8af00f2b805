package vectorstore_test

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testDim = 4

// unitVector returns a unit vector along one axis. Distinct axes are
// orthogonal, so cosine similarity between different documents is 0 and
// self-similarity is 1.
func unitVector(axis int) []float32 {
	v := make([]float32, testDim)
	v[axis] = 1
	return v
}

func newTestChromemStore(t *testing.T) *vectorstore.ChromemStore {
	t.Helper()

	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:     t.TempDir(),
		Compress: false, // faster for tests
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func ensureTestCollection(t *testing.T, store vectorstore.Store, name string) {
	t.Helper()

	err := store.EnsureCollection(context.Background(), vectorstore.CollectionSchema{
		Name:       name,
		VectorSize: testDim,
	})
	require.NoError(t, err)
}

func TestChromemConfig_ApplyDefaults(t *testing.T) {
	config := vectorstore.ChromemConfig{}
	config.ApplyDefaults()

	assert.Equal(t, "~/.config/ragd/vectorstore", config.Path)
}

func TestNewChromemStore(t *testing.T) {
	store := newTestChromemStore(t)
	assert.NoError(t, store.Close())
}

func TestChromemStore_EnsureCollection(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	schema := vectorstore.CollectionSchema{Name: "documents", VectorSize: testDim}
	require.NoError(t, store.EnsureCollection(ctx, schema))

	// Idempotent: a second call must not error or reset anything.
	require.NoError(t, store.EnsureCollection(ctx, schema))

	count, err := store.Count(ctx, "documents")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestChromemStore_EnsureCollection_Validation(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		schema  vectorstore.CollectionSchema
		wantErr error
	}{
		{
			name:    "invalid name",
			schema:  vectorstore.CollectionSchema{Name: "Bad Name!", VectorSize: testDim},
			wantErr: vectorstore.ErrInvalidCollectionName,
		},
		{
			name:    "zero vector size",
			schema:  vectorstore.CollectionSchema{Name: "documents"},
			wantErr: vectorstore.ErrInvalidConfig,
		},
		{
			name: "euclid unsupported",
			schema: vectorstore.CollectionSchema{
				Name:       "documents",
				VectorSize: testDim,
				Distance:   vectorstore.DistanceEuclid,
			},
			wantErr: vectorstore.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.EnsureCollection(ctx, tt.schema)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestChromemStore_InsertAndSearch(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	ensureTestCollection(t, store, "documents")

	err := store.Insert(ctx, "documents", []vectorstore.Record{
		{ID: "doc-1", Content: "Go is a statically typed language", Vector: unitVector(0)},
		{ID: "doc-2", Content: "Python is dynamically typed", Vector: unitVector(1)},
		{ID: "doc-3", Content: "Rust has a borrow checker", Vector: unitVector(2)},
	})
	require.NoError(t, err)

	results, err := store.Search(ctx, "documents", unitVector(0), 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// The matching document must come first with near-perfect similarity.
	assert.Equal(t, "doc-1", results[0].ID)
	assert.Equal(t, "Go is a statically typed language", results[0].Content)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-4)

	// Results are ordered by descending score.
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestChromemStore_Search_EmptyCollection(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	ensureTestCollection(t, store, "documents")

	results, err := store.Search(ctx, "documents", unitVector(0), 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemStore_Search_ClampsTopK(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	ensureTestCollection(t, store, "documents")

	err := store.Insert(ctx, "documents", []vectorstore.Record{
		{ID: "doc-1", Content: "one", Vector: unitVector(0)},
		{ID: "doc-2", Content: "two", Vector: unitVector(1)},
	})
	require.NoError(t, err)

	// Asking for more results than stored documents must not error.
	results, err := store.Search(ctx, "documents", unitVector(0), 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestChromemStore_Search_Validation(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	ensureTestCollection(t, store, "documents")

	_, err := store.Search(ctx, "documents", unitVector(0), 0)
	assert.Error(t, err)

	_, err = store.Search(ctx, "documents", nil, 3)
	assert.Error(t, err)

	_, err = store.Search(ctx, "missing", unitVector(0), 3)
	assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)
}

func TestChromemStore_Insert_Upsert(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	ensureTestCollection(t, store, "documents")

	err := store.Insert(ctx, "documents", []vectorstore.Record{
		{ID: "doc-1", Content: "first version", Vector: unitVector(0)},
	})
	require.NoError(t, err)

	err = store.Insert(ctx, "documents", []vectorstore.Record{
		{ID: "doc-1", Content: "second version", Vector: unitVector(0)},
	})
	require.NoError(t, err)

	// Last write wins: one row, updated content.
	count, err := store.Count(ctx, "documents")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	results, err := store.Search(ctx, "documents", unitVector(0), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "second version", results[0].Content)
}

func TestChromemStore_Insert_Validation(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	ensureTestCollection(t, store, "documents")

	err := store.Insert(ctx, "documents", nil)
	assert.ErrorIs(t, err, vectorstore.ErrEmptyRecords)

	err = store.Insert(ctx, "missing", []vectorstore.Record{
		{ID: "doc-1", Content: "text", Vector: unitVector(0)},
	})
	assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)

	err = store.Insert(ctx, "documents", []vectorstore.Record{
		{ID: "doc-1", Content: "text", Vector: make([]float32, testDim+1)},
	})
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)

	err = store.Insert(ctx, "documents", []vectorstore.Record{
		{Content: "no id", Vector: unitVector(0)},
	})
	assert.Error(t, err)
}

func TestChromemStore_Count(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	ensureTestCollection(t, store, "documents")

	count, err := store.Count(ctx, "documents")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	err = store.Insert(ctx, "documents", []vectorstore.Record{
		{ID: "doc-1", Content: "one", Vector: unitVector(0)},
		{ID: "doc-2", Content: "two", Vector: unitVector(1)},
	})
	require.NoError(t, err)

	count, err = store.Count(ctx, "documents")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, err = store.Count(ctx, "missing")
	assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)
}

func TestChromemStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{Path: dir}, zap.NewNop())
	require.NoError(t, err)
	ensureTestCollection(t, store, "documents")

	err = store.Insert(ctx, "documents", []vectorstore.Record{
		{ID: "doc-1", Content: "survives restarts", Vector: unitVector(0)},
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopen against the same directory: data must still be there.
	reopened, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{Path: dir}, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.Count(ctx, "documents")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	results, err := reopened.Search(ctx, "documents", unitVector(0), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "survives restarts", results[0].Content)
}
