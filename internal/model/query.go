package model

// SearchMode selects which indexes the retriever consults.
type SearchMode string

const (
	SearchModeVector  SearchMode = "vector"
	SearchModeLexical SearchMode = "lexical"
	SearchModeHybrid  SearchMode = "hybrid"
)

// RefusalReason enumerates why the pipeline declined to answer.
type RefusalReason string

const (
	RefusalNoChunksRetrieved       RefusalReason = "no_chunks_retrieved"
	RefusalTopBelowThreshold       RefusalReason = "top_below_threshold"
	RefusalInsufficientChunks      RefusalReason = "insufficient_chunks"
	RefusalTopScoreTooLow          RefusalReason = "top_score_too_low"
	RefusalNoClearWinner           RefusalReason = "no_clear_winner"
	RefusalEmptyContextAfterBudget RefusalReason = "empty_context_after_budget"
)

// CitationEntry is a single citation attached to an answer.
type CitationEntry struct {
	Document  string `json:"document"`
	Section   string `json:"section"`
	PageStart int    `json:"pageStart"`
	PageEnd   int    `json:"pageEnd"`
	Source    string `json:"source"`
}

// QueryResult is the fully populated record returned by the
// orchestrator for every request, success or refusal.
type QueryResult struct {
	QueryID             string          `json:"queryId"`
	OriginalQuestion    string          `json:"originalQuestion"`
	NormalizedQuestion  string          `json:"normalizedQuestion"`
	Sources             []string        `json:"sources"`
	Answer              string          `json:"answer"`
	Refused             bool            `json:"refused"`
	RefusalReason       *RefusalReason  `json:"refusalReason,omitempty"`
	Citations           []CitationEntry `json:"citations"`
	DefinitionsLinked   []string        `json:"definitionsLinked"`
	ChunksRetrieved     int             `json:"chunksRetrieved"`
	ChunksUsed          int             `json:"chunksUsed"`
	InputTokens         int             `json:"inputTokens"`
	OutputTokens        int             `json:"outputTokens"`
	LatencyMs           int64           `json:"latencyMs"`
	SearchMode          SearchMode      `json:"searchMode"`
	EffectiveSearchMode SearchMode      `json:"effectiveSearchMode"`
	ScoresAreReranked   bool            `json:"scoresAreReranked"`
	ValidationErrors    []string        `json:"validationErrors,omitempty"`
}
