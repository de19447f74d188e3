package knowledge

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Querier defines the database operations the Store needs.
// The interface lives on the consumer side (like http.RoundTripper or
// io.Reader) so tests can substitute a hand-written mock for the pgx
// implementation.
type Querier interface {
	// UpsertChunk inserts a chunk or updates it in place when the id exists.
	UpsertChunk(ctx context.Context, arg UpsertChunkParams) error

	// SearchChunks returns the nearest chunks by L2 distance, ascending.
	SearchChunks(ctx context.Context, arg SearchChunksParams) ([]SearchChunksRow, error)

	// ChunkExists reports whether a chunk with the given id exists.
	ChunkExists(ctx context.Context, id string) (bool, error)

	// CountChunks counts all stored chunks.
	CountChunks(ctx context.Context) (int64, error)
}

// UpsertChunkParams carries one chunk row for insertion.
type UpsertChunkParams struct {
	ID        string
	Content   string
	Embedding *pgvector.Vector
	Metadata  []byte
	CreatedAt pgtype.Timestamptz
}

// SearchChunksParams configures a vector query.
type SearchChunksParams struct {
	QueryEmbedding *pgvector.Vector

	// FilterSource restricts results to chunks whose metadata source matches.
	// Empty means no filter.
	FilterSource string

	ResultLimit int
}

// SearchChunksRow is one raw result row of a vector query.
type SearchChunksRow struct {
	ID        string
	Content   string
	Metadata  []byte
	CreatedAt pgtype.Timestamptz
	Distance  float64
}

// PG implements Querier against PostgreSQL + pgvector using hand-written SQL.
// All statements are parameterized; filter values never reach the SQL text.
type PG struct {
	pool *pgxpool.Pool
}

// NewPG creates a PG querier over the given connection pool.
func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool}
}

// Ping verifies database connectivity. Failure wraps ErrStoreUnavailable
// because nothing else can work without the store.
func (q *PG) Ping(ctx context.Context) error {
	if err := q.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (q *PG) UpsertChunk(ctx context.Context, arg UpsertChunkParams) error {
	const query = `
		INSERT INTO chunks (id, content, embedding, metadata, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`

	var createdAt any
	if arg.CreatedAt.Valid {
		createdAt = arg.CreatedAt
	}

	_, err := q.pool.Exec(ctx, query, arg.ID, arg.Content, arg.Embedding, arg.Metadata, createdAt)
	if err != nil {
		return fmt.Errorf("upserting chunk %q: %w", arg.ID, err)
	}
	return nil
}

func (q *PG) SearchChunks(ctx context.Context, arg SearchChunksParams) ([]SearchChunksRow, error) {
	var (
		rows pgx.Rows
		err  error
	)

	if arg.FilterSource != "" {
		const query = `
			SELECT id, content, metadata, created_at, embedding <-> $1 AS distance
			FROM chunks
			WHERE metadata->>'source' = $2
			ORDER BY distance
			LIMIT $3`
		rows, err = q.pool.Query(ctx, query, arg.QueryEmbedding, arg.FilterSource, arg.ResultLimit)
	} else {
		const query = `
			SELECT id, content, metadata, created_at, embedding <-> $1 AS distance
			FROM chunks
			ORDER BY distance
			LIMIT $2`
		rows, err = q.pool.Query(ctx, query, arg.QueryEmbedding, arg.ResultLimit)
	}
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var out []SearchChunksRow
	for rows.Next() {
		var row SearchChunksRow
		if err := rows.Scan(&row.ID, &row.Content, &row.Metadata, &row.CreatedAt, &row.Distance); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunk rows: %w", err)
	}

	return out, nil
}

func (q *PG) ChunkExists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM chunks WHERE id = $1)`

	var exists bool
	if err := q.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking chunk %q: %w", id, err)
	}
	return exists, nil
}

func (q *PG) CountChunks(ctx context.Context) (int64, error) {
	const query = `SELECT count(*) FROM chunks`

	var count int64
	if err := q.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}
