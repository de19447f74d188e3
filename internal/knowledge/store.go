package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"

	"github.com/maumlab/counsel/internal/log"
)

// Store manages knowledge chunks with vector search over PostgreSQL +
// pgvector. Embeddings are computed by the caller; Store only persists and
// queries them.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	queries Querier
	logger  log.Logger
}

// NewStore creates a Store over the given querier.
//
// Production wiring uses the PG querier:
//
//	store := knowledge.NewStore(knowledge.NewPG(pool), logger)
//
// Tests substitute a mock Querier.
func NewStore(queries Querier, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{queries: queries, logger: logger}
}

// Upsert writes a chunk, replacing any existing chunk with the same id.
// The chunk must carry a precomputed embedding of VectorDimension length.
func (s *Store) Upsert(ctx context.Context, chunk Chunk) error {
	if chunk.ID == "" {
		return fmt.Errorf("%w: chunk id is empty", ErrStore)
	}
	if len(chunk.Embedding) != int(VectorDimension) {
		return fmt.Errorf("%w: chunk %q embedding has %d dimensions, want %d",
			ErrStore, chunk.ID, len(chunk.Embedding), VectorDimension)
	}

	metadataJSON, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return fmt.Errorf("%w: marshaling metadata for %q: %v", ErrStore, chunk.ID, err)
	}

	embedding := pgvector.NewVector(chunk.Embedding)
	createdAt := pgtype.Timestamptz{
		Time:  chunk.CreatedAt,
		Valid: !chunk.CreatedAt.IsZero(),
	}

	if err := s.queries.UpsertChunk(ctx, UpsertChunkParams{
		ID:        chunk.ID,
		Content:   chunk.Text,
		Embedding: &embedding,
		Metadata:  metadataJSON,
		CreatedAt: createdAt,
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	s.logger.Debug("upserted chunk", "id", chunk.ID, "content_length", len(chunk.Text))
	return nil
}

// Query returns the nearest chunks to the given embedding, ordered by L2
// distance ascending.
//
//	candidates, err := store.Query(ctx, vec,
//	    knowledge.WithTopN(3),
//	    knowledge.WithSource("adler_theory"))
func (s *Store) Query(ctx context.Context, embedding []float32, opts ...SearchOption) ([]Candidate, error) {
	cfg := buildSearchConfig(opts)

	queryEmbedding := pgvector.NewVector(embedding)
	rows, err := s.queries.SearchChunks(ctx, SearchChunksParams{
		QueryEmbedding: &queryEmbedding,
		FilterSource:   cfg.source,
		ResultLimit:    cfg.topN,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	return s.rowsToCandidates(rows), nil
}

// Exists reports whether a chunk with the given id is stored.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	exists, err := s.queries.ChunkExists(ctx, id)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return exists, nil
}

// Count returns the total number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	count, err := s.queries.CountChunks(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStore, err)
	}

	// Overflow protection for 32-bit platforms; optimized away on 64-bit.
	if count > math.MaxInt {
		return 0, fmt.Errorf("%w: chunk count %d exceeds platform int capacity", ErrStore, count)
	}

	return int(count), nil
}

// rowsToCandidates converts raw query rows to Candidates.
func (s *Store) rowsToCandidates(rows []SearchChunksRow) []Candidate {
	candidates := make([]Candidate, 0, len(rows))

	for _, row := range rows {
		var metadata Metadata
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			s.logger.Warn("failed to parse chunk metadata", "chunk_id", row.ID, "error", err)
			metadata = Metadata{}
		}

		var createdAt time.Time
		if row.CreatedAt.Valid {
			createdAt = row.CreatedAt.Time
		}

		candidates = append(candidates, Candidate{
			Chunk: Chunk{
				ID:        row.ID,
				Text:      row.Content,
				Metadata:  metadata,
				CreatedAt: createdAt,
			},
			Distance: row.Distance,
		})
	}

	return candidates
}
