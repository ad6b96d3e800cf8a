package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veritas-legal/clausecore/internal/model"
	"github.com/veritas-legal/clausecore/internal/service"
)

// PgChunkStore implements service.ChunkStore over the chunk table
// produced by ingestion. Reads only; the query pipeline never mutates
// chunk rows.
type PgChunkStore struct {
	pool *pgxpool.Pool
}

func NewPgChunkStore(pool *pgxpool.Pool) *PgChunkStore { return &PgChunkStore{pool: pool} }

var _ service.ChunkStore = (*PgChunkStore)(nil)

func (r *PgChunkStore) Get(ctx context.Context, chunkID string) (model.Chunk, error) {
	var c model.Chunk
	err := r.pool.QueryRow(ctx, `
		SELECT chunk_id, source, document_path, section, page_start, page_end,
		       content, token_count, is_definitions, relative_path, word_count
		FROM document_chunks
		WHERE chunk_id = $1`,
		chunkID,
	).Scan(
		&c.ChunkID, &c.Source, &c.DocumentPath, &c.Section, &c.PageStart, &c.PageEnd,
		&c.Text, &c.TokenCount, &c.IsDefinitions, &c.RelativePath, &c.WordCount,
	)
	if err == pgx.ErrNoRows {
		return model.Chunk{}, fmt.Errorf("provider.Get: chunk %q not found", chunkID)
	}
	if err != nil {
		return model.Chunk{}, fmt.Errorf("provider.Get: %w", err)
	}
	return c, nil
}

func (r *PgChunkStore) ListDocuments(ctx context.Context, source string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT document_path FROM document_chunks WHERE source = $1 ORDER BY document_path`,
		source,
	)
	if err != nil {
		return nil, fmt.Errorf("provider.ListDocuments: %w", err)
	}
	defer rows.Close()

	var docs []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("provider.ListDocuments: scan: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PgChunkStore) ListSources(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT source FROM document_chunks ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("provider.ListSources: %w", err)
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("provider.ListSources: scan: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// PgDefinitionsStore implements service.DefinitionsStore, loading each
// source's definitions map once and caching it for the process
// lifetime — definitions are immutable once ingested.
type PgDefinitionsStore struct {
	pool *pgxpool.Pool

	mu    sync.RWMutex
	cache map[string]map[string]model.Definition
}

func NewPgDefinitionsStore(pool *pgxpool.Pool) *PgDefinitionsStore {
	return &PgDefinitionsStore{pool: pool, cache: make(map[string]map[string]model.Definition)}
}

var _ service.DefinitionsStore = (*PgDefinitionsStore)(nil)

func (r *PgDefinitionsStore) Definitions(ctx context.Context, source string) (map[string]model.Definition, error) {
	r.mu.RLock()
	cached, ok := r.cache[source]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT term, definition_text, source_chunk_id
		FROM source_definitions
		WHERE source = $1`,
		source,
	)
	if err != nil {
		return nil, fmt.Errorf("provider.Definitions: %w", err)
	}
	defer rows.Close()

	defs := make(map[string]model.Definition)
	for rows.Next() {
		var d model.Definition
		if err := rows.Scan(&d.Term, &d.Text, &d.SourceChunkID); err != nil {
			return nil, fmt.Errorf("provider.Definitions: scan: %w", err)
		}
		defs[strings.ToLower(strings.TrimSpace(d.Term))] = d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("provider.Definitions: %w", err)
	}

	r.mu.Lock()
	r.cache[source] = defs
	r.mu.Unlock()

	return defs, nil
}
