package knowledge

import (
	"errors"
	"time"
)

var (
	// ErrStoreUnavailable indicates the vector store cannot be reached at all.
	// This is fatal at startup; callers should not retry per-request.
	ErrStoreUnavailable = errors.New("knowledge store unavailable")

	// ErrStore indicates a single store operation failed. Recoverable; the
	// caller may degrade to an unaugmented answer.
	ErrStore = errors.New("knowledge store operation failed")
)

// VectorDimension is the embedding dimension of the chunks table.
// Must match the vector(768) column in db/migrations.
const VectorDimension int32 = 768

// Chunk types distinguish full documents from their split segments.
const (
	ChunkTypeParent = "parent"
	ChunkTypeChild  = "child"
)

// Source value for chunks written back from live dialogue exchanges.
const SourceSelfLearning = "self_learning"

// Metadata describes the provenance of a chunk.
type Metadata struct {
	Source    string   `json:"source"`
	Category  string   `json:"category,omitempty"`
	ChunkType string   `json:"chunk_type,omitempty"`
	ParentID  string   `json:"parent_id,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	Type      string   `json:"type,omitempty"`
}

// Chunk is one unit of knowledge with its vector embedding.
type Chunk struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  Metadata
	CreatedAt time.Time
}

// Candidate is a chunk returned from a vector query with its L2 distance
// to the query embedding. Smaller distance means closer.
type Candidate struct {
	Chunk    Chunk
	Distance float64
}

// SearchOption configures query behavior using the functional options
// pattern.
type SearchOption func(*searchConfig)

// searchConfig holds internal query configuration.
type searchConfig struct {
	topN   int
	source string
}

// WithTopN sets the maximum number of candidates to return.
// Default is 5 if not specified.
func WithTopN(n int) SearchOption {
	return func(c *searchConfig) {
		c.topN = n
	}
}

// WithSource restricts candidates to chunks from the given metadata source.
func WithSource(source string) SearchOption {
	return func(c *searchConfig) {
		c.source = source
	}
}

// buildSearchConfig applies search options and returns the final configuration.
func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{topN: 5}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
