// Package repository bridges text documents to vector storage. It owns the
// single store handle and pairs an embedding provider with it so callers
// work in terms of documents, not vectors.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

var repositoryTracer = otel.Tracer("ragd.repository")

// Sentinel errors. Callers branch with errors.Is instead of matching
// message strings.
var (
	// ErrConnection indicates the vector store is unreachable.
	ErrConnection = errors.New("vector store connection failed")

	// ErrSchema indicates collection or schema setup failed.
	ErrSchema = errors.New("collection schema setup failed")

	// ErrEmbedding indicates embedding generation failed.
	ErrEmbedding = errors.New("embedding generation failed")

	// ErrSearch indicates a similarity search failed.
	ErrSearch = errors.New("similarity search failed")

	// ErrInsert indicates a document insert failed.
	ErrInsert = errors.New("document insert failed")
)

// Document is a retrieval result. Identity is the ID alone; Score is a
// per-query property, not a property of the stored document.
type Document struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float32 `json:"score"`
}

// Embedder is the embedding capability the repository needs. Satisfied by
// embeddings.Provider.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Repository orchestrates an Embedder and a vector store behind document
// add/search/count operations. Safe for concurrent use; both store backends
// are concurrency-safe and the repository adds no per-call state.
type Repository struct {
	store      vectorstore.Store
	embedder   Embedder
	collection string
	logger     *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewRepository creates a document repository over the given store and
// embedder. The collection is not created until Initialize.
func NewRepository(store vectorstore.Store, embedder Embedder, collection string, logger *zap.Logger) (*Repository, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if err := vectorstore.ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Repository{
		store:      store,
		embedder:   embedder,
		collection: collection,
		logger:     logger,
	}, nil
}

// Initialize ensures the collection exists with a vector size matching the
// embedder's dimension and is ready for queries. Failures propagate: the
// pipeline cannot run without its storage backend.
func (r *Repository) Initialize(ctx context.Context) error {
	dim := r.embedder.Dimension()
	if dim <= 0 {
		return fmt.Errorf("%w: embedder reports dimension %d", ErrSchema, dim)
	}

	schema := vectorstore.CollectionSchema{
		Name:       r.collection,
		VectorSize: uint64(dim),
	}
	schema.ApplyDefaults()

	if err := r.store.EnsureCollection(ctx, schema); err != nil {
		if vectorstore.IsTransientError(err) {
			return fmt.Errorf("%w: %v", ErrConnection, err)
		}
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}

	r.logger.Info("document collection ready",
		zap.String("collection", r.collection),
		zap.Uint64("vector_size", schema.VectorSize))
	return nil
}

// AddDocument embeds content and inserts it under the given id. Adding an
// id that already exists overwrites the stored document (last write wins).
func (r *Repository) AddDocument(ctx context.Context, id, content string) error {
	ctx, span := repositoryTracer.Start(ctx, "repository.add_document",
		trace.WithAttributes(attribute.String("document.id", id)))
	defer span.End()

	if id == "" {
		return fmt.Errorf("%w: document id cannot be empty", ErrInsert)
	}
	if content == "" {
		return fmt.Errorf("%w: document %q: content cannot be empty", ErrInsert, id)
	}

	vectors, err := r.embedder.EmbedDocuments(ctx, []string{content})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return fmt.Errorf("%w: document %q: %v", ErrEmbedding, id, err)
	}
	if len(vectors) != 1 {
		return fmt.Errorf("%w: document %q: expected 1 vector, got %d", ErrEmbedding, id, len(vectors))
	}

	record := vectorstore.Record{ID: id, Content: content, Vector: vectors[0]}
	if err := r.store.Insert(ctx, r.collection, []vectorstore.Record{record}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return fmt.Errorf("%w: document %q: %v", ErrInsert, id, err)
	}

	r.logger.Debug("document added",
		zap.String("id", id),
		zap.Int("content_length", len(content)))
	return nil
}

// SearchSimilar embeds the query and returns up to topK documents ordered
// by descending similarity score. An empty store yields an empty slice,
// not an error.
func (r *Repository) SearchSimilar(ctx context.Context, query string, topK int) ([]Document, error) {
	ctx, span := repositoryTracer.Start(ctx, "repository.search_similar",
		trace.WithAttributes(attribute.Int("search.top_k", topK)))
	defer span.End()

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	results, err := r.store.Search(ctx, r.collection, vector, topK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, fmt.Errorf("%w: %v", ErrSearch, err)
	}

	docs := make([]Document, len(results))
	for i, res := range results {
		docs[i] = Document{ID: res.ID, Content: res.Content, Score: res.Score}
	}

	// Backend ordering is advisory; sort again so callers can rely on it.
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Score > docs[j].Score })

	span.SetAttributes(attribute.Int("search.results", len(docs)))
	return docs, nil
}

// Count returns the number of stored documents. It never fails: count is
// status information, so any error is logged and reported as zero.
func (r *Repository) Count(ctx context.Context) int64 {
	count, err := r.store.Count(ctx, r.collection)
	if err != nil {
		r.logger.Warn("document count unavailable", zap.Error(err))
		return 0
	}
	return count
}

// Close releases the store connection. Idempotent, and safe to call even
// if Initialize was never called or failed.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.store.Close()
}
