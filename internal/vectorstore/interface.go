// Package vectorstore defines the interface for vector storage operations.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyRecords indicates an insert with no records.
	ErrEmptyRecords = errors.New("empty or nil records")

	// ErrConnectionFailed indicates the backend is unreachable.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrDimensionMismatch indicates a vector whose length does not match
	// the collection's configured size.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name against naming rules.
// Rejects uppercase, special chars, path separators, spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// Store is the interface for vector storage backends.
//
// Stores operate on precomputed vectors only. Text-to-vector conversion is
// the caller's concern (see the repository package), which keeps backends
// interchangeable regardless of which embedding provider is active.
//
// All methods are safe for concurrent use by multiple goroutines. A Store
// holds its connection from construction until Close; Close is idempotent.
//
// Implementations:
//   - ChromemStore: embedded chromem-go (default, zero external services)
//   - QdrantStore: external Qdrant server over gRPC
type Store interface {
	// EnsureCollection creates the collection described by schema if it does
	// not exist, including its ANN index parameters. Calling it for an
	// existing collection is a no-op: it never drops or re-indexes data.
	EnsureCollection(ctx context.Context, schema CollectionSchema) error

	// Insert writes records into a collection. Records carry precomputed
	// vectors; a record whose ID already exists is overwritten (last write
	// wins). Returns ErrEmptyRecords for an empty batch.
	Insert(ctx context.Context, collection string, records []Record) error

	// Search returns up to topK records most similar to the query vector,
	// ordered by descending similarity. An empty collection yields an empty
	// result, not an error.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]SearchResult, error)

	// Count returns the number of records in a collection.
	Count(ctx context.Context, collection string) (int64, error)

	// Close releases the backend connection and flushes pending state.
	Close() error
}
