package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veritas-legal/clausecore/internal/service"
)

// PgLexicalIndex implements service.LexicalIndex using PostgreSQL
// full-text search (ts_vector / ts_rank_cd) over the chunk corpus.
type PgLexicalIndex struct {
	pool *pgxpool.Pool
}

func NewPgLexicalIndex(pool *pgxpool.Pool) *PgLexicalIndex { return &PgLexicalIndex{pool: pool} }

var _ service.LexicalIndex = (*PgLexicalIndex)(nil)

// QueryLexical ranks chunks for source by ts_rank_cd against the
// already-tokenized query, highest rank first.
func (r *PgLexicalIndex) QueryLexical(ctx context.Context, source string, tokens []string, k int) ([]service.LexicalHit, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	query := strings.Join(tokens, " ")

	rows, err := r.pool.Query(ctx, `
		SELECT chunk_id, ts_rank_cd(content_tsv, plainto_tsquery('english', $1)) AS rank
		FROM document_chunks
		WHERE source = $2
		  AND content_tsv @@ plainto_tsquery('english', $1)
		ORDER BY rank DESC
		LIMIT $3`,
		query, source, k,
	)
	if err != nil {
		return nil, fmt.Errorf("provider.QueryLexical: %w", err)
	}
	defer rows.Close()

	var hits []service.LexicalHit
	for rows.Next() {
		var h service.LexicalHit
		if err := rows.Scan(&h.ChunkID, &h.Score); err != nil {
			return nil, fmt.Errorf("provider.QueryLexical: scan: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("provider.QueryLexical: %w", err)
	}

	slog.Debug("[DEBUG-PROVIDER] lexical query complete", "source", source, "hits", len(hits))
	return hits, nil
}
