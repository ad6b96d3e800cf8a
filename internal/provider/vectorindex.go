package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/veritas-legal/clausecore/internal/service"
)

// PgVectorIndex implements service.VectorIndex over a pgvector-extended
// Postgres table, scoped per source rather than per tenant.
type PgVectorIndex struct {
	pool *pgxpool.Pool
}

func NewPgVectorIndex(pool *pgxpool.Pool) *PgVectorIndex { return &PgVectorIndex{pool: pool} }

var _ service.VectorIndex = (*PgVectorIndex)(nil)

// QueryVector returns the top-k chunks for source ranked by cosine
// similarity to vector, highest similarity first.
func (r *PgVectorIndex) QueryVector(ctx context.Context, source string, vector []float32, k int) ([]service.VectorHit, error) {
	embedding := pgvector.NewVector(vector)

	rows, err := r.pool.Query(ctx, `
		SELECT chunk_id, 1 - (embedding <=> $1::vector) AS similarity
		FROM document_chunks
		WHERE source = $2
		ORDER BY embedding <=> $1::vector
		LIMIT $3`,
		embedding, source, k,
	)
	if err != nil {
		return nil, fmt.Errorf("provider.QueryVector: %w", err)
	}
	defer rows.Close()

	var hits []service.VectorHit
	for rows.Next() {
		var h service.VectorHit
		if err := rows.Scan(&h.ChunkID, &h.Score); err != nil {
			return nil, fmt.Errorf("provider.QueryVector: scan: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("provider.QueryVector: %w", err)
	}

	slog.Debug("[DEBUG-PROVIDER] vector query complete", "source", source, "hits", len(hits))
	return hits, nil
}
