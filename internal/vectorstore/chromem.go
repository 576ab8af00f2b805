// Package vectorstore provides vector storage implementations.
package vectorstore

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("ragd.vectorstore.chromem")

// ChromemConfig holds configuration for the chromem-go embedded database.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	// Default: "~/.config/ragd/vectorstore"
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.config/ragd/vectorstore"
	}
}

// ChromemStore implements the Store interface using chromem-go.
//
// chromem-go is an embeddable vector database with zero third-party
// dependencies: no external service, no CGO. Search is exhaustive (exact),
// so there is no index to build and EnsureCollection only registers the
// collection and its expected dimension.
//
// All vectors are normalized before storage and querying; chromem scores by
// dot product over normalized vectors, which equals cosine similarity.
type ChromemStore struct {
	db     *chromem.DB
	config ChromemConfig
	logger *zap.Logger

	// schemas tracks the expected vector size per ensured collection.
	schemas sync.Map
}

// NewChromemStore creates a new ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()

	expandedPath, err := expandChromemPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}

	if err := os.MkdirAll(expandedPath, 0755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", expandedPath, err)
	}

	db, err := chromem.NewPersistentDB(expandedPath, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("%w: creating chromem DB: %v", ErrConnectionFailed, err)
	}

	store := &ChromemStore{
		db:     db,
		config: config,
		logger: logger,
	}

	logger.Info("chromem store initialized",
		zap.String("path", expandedPath),
		zap.Bool("compress", config.Compress),
	)

	return store, nil
}

// expandChromemPath expands ~ to the home directory.
func expandChromemPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// precomputedOnly is the embedding function handed to chromem. Every code
// path in this store supplies precomputed vectors, so it must never run.
// Passing nil instead would make chromem fall back to its OpenAI embedder.
func precomputedOnly(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("store received text instead of a precomputed vector")
}

// EnsureCollection creates the collection if it does not exist. chromem has
// no ANN index, so the schema's index tuning fields are ignored.
func (s *ChromemStore) EnsureCollection(ctx context.Context, schema CollectionSchema) error {
	_, span := chromemTracer.Start(ctx, "ChromemStore.EnsureCollection")
	defer span.End()
	defer observeOperation("chromem", "ensure_collection", time.Now())

	schema.ApplyDefaults()
	if err := schema.Validate(); err != nil {
		return err
	}
	if schema.Distance == DistanceEuclid {
		return fmt.Errorf("%w: chromem supports cosine and dot distance only", ErrInvalidConfig)
	}

	span.SetAttributes(
		attribute.String("collection", schema.Name),
		attribute.Int64("vector_size", int64(schema.VectorSize)),
	)

	_, err := s.db.GetOrCreateCollection(schema.Name, nil, chromem.EmbeddingFunc(precomputedOnly))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("getting/creating collection %s: %w", schema.Name, err)
	}

	s.schemas.Store(schema.Name, schema.VectorSize)
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Insert writes records with their precomputed vectors. chromem keys rows by
// ID, so re-inserting an ID replaces the stored row.
func (s *ChromemStore) Insert(ctx context.Context, collection string, records []Record) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Insert")
	defer span.End()
	defer observeOperation("chromem", "insert", time.Now())

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("record_count", len(records)),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if len(records) == 0 {
		return ErrEmptyRecords
	}

	col := s.db.GetCollection(collection, chromem.EmbeddingFunc(precomputedOnly))
	if col == nil {
		span.SetStatus(codes.Error, "collection not found")
		return ErrCollectionNotFound
	}

	want, checkDim := s.schemas.Load(collection)
	docs := make([]chromem.Document, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("record at index %d has empty ID", i)
		}
		if checkDim && uint64(len(rec.Vector)) != want.(uint64) {
			return fmt.Errorf("%w: record %q has %d dimensions, collection %s expects %d",
				ErrDimensionMismatch, rec.ID, len(rec.Vector), collection, want.(uint64))
		}
		docs[i] = chromem.Document{
			ID:        rec.ID,
			Content:   rec.Content,
			Embedding: normalizeVector(rec.Vector),
		}
	}

	// Concurrency of 1: vectors are precomputed, nothing to parallelize.
	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding %d records to collection %s: %w", len(docs), collection, err)
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("inserted records into chromem",
		zap.String("collection", collection),
		zap.Int("count", len(records)),
	)
	return nil
}

// Search returns up to topK records by cosine similarity, best first.
func (s *ChromemStore) Search(ctx context.Context, collection string, vector []float32, topK int) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Search")
	defer span.End()
	defer observeOperation("chromem", "search", time.Now())

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("top_k", topK),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty")
	}

	col := s.db.GetCollection(collection, chromem.EmbeddingFunc(precomputedOnly))
	if col == nil {
		span.SetStatus(codes.Error, "collection not found")
		return nil, ErrCollectionNotFound
	}

	// chromem requires nResults <= document count.
	docCount := col.Count()
	if docCount == 0 {
		span.SetStatus(codes.Ok, "empty collection")
		return []SearchResult{}, nil
	}
	if topK > docCount {
		topK = docCount
	}

	rows, err := col.QueryEmbedding(ctx, normalizeVector(vector), topK, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", collection, err)
	}

	results := make([]SearchResult, len(rows))
	for i, r := range rows {
		results[i] = SearchResult{
			ID:      r.ID,
			Content: r.Content,
			Score:   r.Similarity,
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// Count returns the number of records in a collection.
func (s *ChromemStore) Count(ctx context.Context, collection string) (int64, error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.Count")
	defer span.End()
	defer observeOperation("chromem", "count", time.Now())

	span.SetAttributes(attribute.String("collection", collection))

	if err := ValidateCollectionName(collection); err != nil {
		return 0, err
	}

	col := s.db.GetCollection(collection, chromem.EmbeddingFunc(precomputedOnly))
	if col == nil {
		span.SetStatus(codes.Error, "collection not found")
		return 0, ErrCollectionNotFound
	}

	count := int64(col.Count())
	span.SetAttributes(attribute.Int64("count", count))
	span.SetStatus(codes.Ok, "success")
	return count, nil
}

// Close releases the store. chromem persists on every write, so there is
// nothing to flush.
func (s *ChromemStore) Close() error {
	s.logger.Info("chromem store closed")
	return nil
}

// normalizeVector scales a vector to unit length. The zero vector is
// returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Ensure ChromemStore implements Store interface.
var _ Store = (*ChromemStore)(nil)
