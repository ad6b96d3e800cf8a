package model

import "time"

// ComplianceRecord is the always-on audit entry written once per request
// regardless of outcome.
type ComplianceRecord struct {
	Timestamp           time.Time  `json:"timestamp"`
	QueryID             string     `json:"queryId"`
	Question            string     `json:"question"`
	NormalizedQuery     string     `json:"normalizedQuery"`
	Sources             []string   `json:"sources"`
	SearchMode          SearchMode `json:"searchMode"`
	EffectiveSearchMode SearchMode `json:"effectiveSearchMode"`
	ChunksRetrieved     int        `json:"chunksRetrieved"`
	ChunksUsed          int        `json:"chunksUsed"`
	DefinitionsLinked   int        `json:"definitionsLinked"`
	TokensInput         int        `json:"tokensInput"`
	TokensOutput        int        `json:"tokensOutput"`
	LatencyMs           int64      `json:"latencyMs"`
	Refused             bool       `json:"refused"`
	RefusalReason       *string    `json:"refusalReason"`
	AnswerWordCount     int        `json:"answerWordCount"`
	CitationCount       int        `json:"citationCount"`
}

// IndexHit is one result from a vector or lexical index lookup.
type IndexHit struct {
	ChunkID string  `json:"chunkId"`
	Rank    int     `json:"rank"`
	Score   float64 `json:"score"`
}

// RerankHit is one per-chunk rerank outcome.
type RerankHit struct {
	ChunkID     string  `json:"chunkId"`
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation,omitempty"`
	Failed      bool    `json:"failed,omitempty"`
}

// GateDecision records why the confidence gate passed or refused.
type GateDecision struct {
	Refused        bool      `json:"refused"`
	Reason         string    `json:"reason,omitempty"`
	ScoresReranked bool      `json:"scoresReranked"`
	Threshold      float64   `json:"threshold"`
	TopScores      []float64 `json:"topScores"`
}

// BudgetMetrics records the Budgeter's packing outcome.
type BudgetMetrics struct {
	TargetTokens int `json:"targetTokens"`
	FinalTokens  int `json:"finalTokens"`
	ChunksBefore int `json:"chunksBefore"`
	ChunksAfter  int `json:"chunksAfter"`
}

// DebugRecord is the opt-in verbose audit entry written per request,
// one level more detailed than ComplianceRecord.
type DebugRecord struct {
	ComplianceRecord
	VectorHits      []IndexHit    `json:"vectorHits"`
	LexicalHits     []IndexHit    `json:"lexicalHits"`
	FusedHits       []IndexHit    `json:"fusedHits"`
	RerankHits      []RerankHit   `json:"rerankHits"`
	RerankFallback  bool          `json:"rerankFallback"`
	Gate            GateDecision  `json:"gate"`
	Budget          BudgetMetrics `json:"budget"`
	AnswerModelID   string        `json:"answerModelId"`
	TotalDurationMs int64         `json:"totalDurationMs"`
}
