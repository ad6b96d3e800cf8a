package service

import (
	"context"

	"github.com/veritas-legal/clausecore/internal/model"
)

// Embedder maps strings to dense vectors. Deterministic for a fixed model.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorHit is one result from a VectorIndex query.
type VectorHit struct {
	ChunkID string
	Score   float64 // cosine similarity, higher is more similar
}

// VectorIndex returns the top-K chunks by cosine similarity for a source.
type VectorIndex interface {
	QueryVector(ctx context.Context, source string, vector []float32, k int) ([]VectorHit, error)
}

// LexicalHit is one result from a LexicalIndex query.
type LexicalHit struct {
	ChunkID string
	Score   float64 // unbounded positive BM25 score
}

// LexicalIndex runs BM25 over the chunk corpus of a source.
type LexicalIndex interface {
	QueryLexical(ctx context.Context, source string, tokens []string, k int) ([]LexicalHit, error)
}

// ChunkStore resolves chunk identities and lists documents per source.
// Reads are concurrency-safe; the store is treated as read-only.
type ChunkStore interface {
	Get(ctx context.Context, chunkID string) (model.Chunk, error)
	ListDocuments(ctx context.Context, source string) ([]string, error)
	ListSources(ctx context.Context) ([]string, error)
}

// DefinitionsStore loads a source's definitions map once per process.
type DefinitionsStore interface {
	Definitions(ctx context.Context, source string) (map[string]model.Definition, error)
}

// LLMOptions configures a single completion call.
type LLMOptions struct {
	Temperature float64
	MaxTokens   int
}

// LLMResult is the outcome of a completion call.
type LLMResult struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// LLM errors are typed so callers can distinguish recoverable failures.
type LLMErrorKind string

const (
	LLMErrorTimeout   LLMErrorKind = "timeout"
	LLMErrorRateLimit LLMErrorKind = "rate_limit"
	LLMErrorTransport LLMErrorKind = "transport"
)

// LLMError wraps an upstream LLM failure with its kind.
type LLMError struct {
	Kind LLMErrorKind
	Err  error
}

func (e *LLMError) Error() string { return string(e.Kind) + ": " + e.Err.Error() }
func (e *LLMError) Unwrap() error { return e.Err }

// LLM is the narrow completion interface the reranker and answer
// generator both consume. A single vendor implementation satisfies it.
type LLM interface {
	Complete(ctx context.Context, system, user string, opts LLMOptions) (LLMResult, error)
	ModelID() string
}

// Tokenizer counts tokens the same way the ingest pipeline did, so
// budget invariants hold across ingest and query time.
type Tokenizer interface {
	Count(text string) int
}
