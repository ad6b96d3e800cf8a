package service

import (
	"fmt"
	"sort"

	"github.com/veritas-legal/clausecore/internal/model"
)

// BudgetConfig holds the Budgeter's token reservations (§6.3/§4.6).
type BudgetConfig struct {
	MaxContextTokens   int
	SystemPromptTokens int
	QATemplateTokens   int
	AnswerBufferTokens int
}

// BudgetInfo summarizes a packing run for the audit log.
type BudgetInfo struct {
	KeptCount    int
	DroppedCount int
	TotalTokens  int
	UnderBudget  bool
}

// BudgeterService orders surviving chunks and greedily packs them into
// a token budget using an accurate tokenizer.
type BudgeterService struct {
	cfg       BudgetConfig
	tokenizer Tokenizer
}

func NewBudgeterService(cfg BudgetConfig, tokenizer Tokenizer) *BudgeterService {
	return &BudgeterService{cfg: cfg, tokenizer: tokenizer}
}

// EnforceBudget sorts chunks by (score desc, tokenCount asc, chunkID asc)
// and greedily packs them into availableForChunks = MaxContextTokens -
// reserved, skipping (not stopping on) chunks that would overflow so a
// later, smaller chunk can still fit.
func (b *BudgeterService) EnforceBudget(chunks []model.ScoredChunk, questionTokens int) ([]model.ScoredChunk, BudgetInfo, error) {
	reserved := b.cfg.SystemPromptTokens + b.cfg.QATemplateTokens + b.cfg.AnswerBufferTokens + questionTokens
	available := b.cfg.MaxContextTokens - reserved
	if available < 0 {
		return nil, BudgetInfo{}, fmt.Errorf("service.EnforceBudget: reserved tokens %d exceed MAX_CONTEXT_TOKENS %d", reserved, b.cfg.MaxContextTokens)
	}

	ordered := make([]model.ScoredChunk, len(chunks))
	copy(ordered, chunks)
	sort.Slice(ordered, func(i, j int) bool {
		a, c := ordered[i], ordered[j]
		if a.Score != c.Score {
			return a.Score > c.Score
		}
		if a.Chunk.TokenCount != c.Chunk.TokenCount {
			return a.Chunk.TokenCount < c.Chunk.TokenCount
		}
		return a.Chunk.ChunkID < c.Chunk.ChunkID
	})

	var kept []model.ScoredChunk
	runningTotal := 0
	for _, c := range ordered {
		tokens := b.tokenizer.Count(c.Chunk.Text)
		if runningTotal+tokens <= available {
			kept = append(kept, c)
			runningTotal += tokens
		}
	}

	info := BudgetInfo{
		KeptCount:    len(kept),
		DroppedCount: len(ordered) - len(kept),
		TotalTokens:  runningTotal,
		UnderBudget:  runningTotal <= available,
	}

	return kept, info, nil
}
