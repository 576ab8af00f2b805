package vectorstore

import "fmt"

// Distance is the similarity metric used when comparing vectors.
type Distance string

const (
	// DistanceCosine scores by cosine similarity (default).
	DistanceCosine Distance = "cosine"
	// DistanceDot scores by dot product. Equivalent to cosine on
	// normalized vectors.
	DistanceDot Distance = "dot"
	// DistanceEuclid scores by inverted euclidean distance.
	DistanceEuclid Distance = "euclid"
)

// Record is a single stored row: an identifier, the original text, and its
// precomputed embedding. Embedding generation happens upstream; stores never
// call an embedder themselves.
type Record struct {
	// ID is the unique identifier. Inserting a record with an existing ID
	// overwrites the previous row (last write wins).
	ID string

	// Content is the original text the vector was computed from.
	Content string

	// Vector is the embedding. Its length must match the collection's
	// configured vector size.
	Vector []float32
}

// SearchResult is one row returned by a similarity search.
type SearchResult struct {
	// ID is the stored record identifier.
	ID string `json:"id"`

	// Content is the stored text.
	Content string `json:"content"`

	// Score is the similarity to the query vector (higher = more similar).
	Score float32 `json:"score"`
}

// CollectionSchema describes a collection to EnsureCollection.
//
// Index tuning fields configure the ANN graph built at collection creation.
// Backends without a tunable index (chromem performs exhaustive search)
// accept and ignore them.
type CollectionSchema struct {
	// Name is the collection name. Must match ^[a-z0-9_]{1,64}$.
	Name string

	// VectorSize is the embedding dimensionality. Must match the embedder.
	VectorSize uint64

	// Distance is the similarity metric. Default: cosine.
	Distance Distance

	// IndexM is the HNSW graph connectivity. Default: 16.
	IndexM uint64

	// IndexEfConstruct is the HNSW build-time beam width. Default: 128.
	IndexEfConstruct uint64
}

// ApplyDefaults sets default values for unset fields.
func (s *CollectionSchema) ApplyDefaults() {
	if s.Distance == "" {
		s.Distance = DistanceCosine
	}
	if s.IndexM == 0 {
		s.IndexM = 16
	}
	if s.IndexEfConstruct == 0 {
		s.IndexEfConstruct = 128
	}
}

// Validate validates the schema.
func (s CollectionSchema) Validate() error {
	if err := ValidateCollectionName(s.Name); err != nil {
		return err
	}
	if s.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	switch s.Distance {
	case DistanceCosine, DistanceDot, DistanceEuclid:
	default:
		return fmt.Errorf("%w: unsupported distance %q", ErrInvalidConfig, s.Distance)
	}
	return nil
}
