package service

import (
	"github.com/veritas-legal/clausecore/internal/model"
)

// GateConfig holds the gate's thresholds (§6.3).
type GateConfig struct {
	RelevanceThreshold int
	MinChunksRequired  int
	RetrievalMinScore  float64
	RetrievalMinRatio  float64
}

// GateResult is the ConfidenceGate's decision.
type GateResult struct {
	Refuse    bool
	Reason    model.RefusalReason
	TopScores []float64
}

// ConfidenceGate evaluates a deterministic refusal decision before any
// answer-generation LLM call occurs.
type ConfidenceGate struct {
	cfg GateConfig
}

func NewConfidenceGate(cfg GateConfig) *ConfidenceGate {
	return &ConfidenceGate{cfg: cfg}
}

// ShouldRefuse implements the two-tier rule of §4.4. chunks must already
// be sorted by score descending (the Reranker and fallback path both
// guarantee this).
func (g *ConfidenceGate) ShouldRefuse(chunks []model.ScoredChunk, scoresAreReranked bool) GateResult {
	top := topScores(chunks)

	if scoresAreReranked {
		return g.gateReranked(chunks, top)
	}
	return g.gateRetrieval(chunks, top)
}

func (g *ConfidenceGate) gateReranked(chunks []model.ScoredChunk, top []float64) GateResult {
	if len(chunks) == 0 {
		return GateResult{Refuse: true, Reason: model.RefusalNoChunksRetrieved, TopScores: top}
	}
	if chunks[0].Score < float64(g.cfg.RelevanceThreshold) {
		return GateResult{Refuse: true, Reason: model.RefusalTopBelowThreshold, TopScores: top}
	}
	count := 0
	for _, c := range chunks {
		if c.Score >= float64(g.cfg.RelevanceThreshold) {
			count++
		}
	}
	if count < g.cfg.MinChunksRequired {
		return GateResult{Refuse: true, Reason: model.RefusalInsufficientChunks, TopScores: top}
	}
	return GateResult{TopScores: top}
}

func (g *ConfidenceGate) gateRetrieval(chunks []model.ScoredChunk, top []float64) GateResult {
	if len(chunks) == 0 {
		return GateResult{Refuse: true, Reason: model.RefusalNoChunksRetrieved, TopScores: top}
	}

	top1 := chunks[0].Score
	var top2 float64
	if len(chunks) > 1 {
		top2 = chunks[1].Score
	}

	if top1 <= g.cfg.RetrievalMinScore {
		return GateResult{Refuse: true, Reason: model.RefusalTopScoreTooLow, TopScores: top}
	}

	if len(chunks) == 1 {
		return GateResult{TopScores: top}
	}

	if top2 <= 0 {
		// Ratio considered satisfied iff top1 > RetrievalMinScore, already
		// established above.
		return GateResult{TopScores: top}
	}

	if top1/top2 < g.cfg.RetrievalMinRatio {
		return GateResult{Refuse: true, Reason: model.RefusalNoClearWinner, TopScores: top}
	}

	return GateResult{TopScores: top}
}

func topScores(chunks []model.ScoredChunk) []float64 {
	n := len(chunks)
	if n > 2 {
		n = 2
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = chunks[i].Score
	}
	return out
}
