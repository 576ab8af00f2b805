// Package vectorstore provides vector storage backends behind a common Store
// interface.
//
// The package stores precomputed embedding vectors and serves top-K cosine
// similarity queries over them. Embedding generation lives in the embeddings
// package; stores only ever see vectors, which keeps the two providers
// interchangeable and individually testable.
//
// # Provider Selection
//
// Two backends are supported, selected via config:
//
//	vectorstore:
//	  provider: chromem  # "chromem" (default) or "qdrant"
//
// ChromemStore (default):
//   - Embedded chromem-go storage, pure Go, no external services
//   - Exhaustive (exact) search, ideal for local dev and small corpora
//
// QdrantStore (optional):
//   - External Qdrant server via native gRPC (port 6334)
//   - HNSW index, retry with exponential backoff, circuit breaker
//   - Recommended for production and larger corpora
//
// # Usage
//
//	store, err := vectorstore.NewStore(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	schema := vectorstore.CollectionSchema{Name: "documents", VectorSize: 384}
//	if err := store.EnsureCollection(ctx, schema); err != nil {
//	    return err
//	}
//
//	err = store.Insert(ctx, "documents", []vectorstore.Record{
//	    {ID: "doc-1", Content: "Go is a statically typed language", Vector: vec},
//	})
//	results, err := store.Search(ctx, "documents", queryVec, 3)
//
// # Semantics
//
// Inserting a record whose ID already exists overwrites the stored row; both
// backends implement last-write-wins. Searching an empty collection returns
// an empty slice, never an error. Collection names are validated against
// ^[a-z0-9_]{1,64}$ before reaching the backend.
package vectorstore
