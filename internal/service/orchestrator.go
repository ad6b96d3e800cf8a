package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/veritas-legal/clausecore/internal/apperr"
	"github.com/veritas-legal/clausecore/internal/model"
)

// AuditSink is the narrow interface the orchestrator writes to at the
// end of every request, regardless of outcome.
type AuditSink interface {
	WriteCompliance(record model.ComplianceRecord)
	WriteDebug(record model.DebugRecord)
}

// OrchestratorConfig bundles the knobs that vary pipeline behavior.
type OrchestratorConfig struct {
	SearchModeDefault model.SearchMode
	RerankEnabled     bool
	GateEnabled       bool
	DebugEnabled      bool
	CanonicalText     func(sources []string) string

	// AnswerGenDeadline bounds the generator call independently of the
	// request's own deadline (§5: "The answer-generator call has its own
	// deadline, default 60s"). Zero disables the extra bound, deferring
	// entirely to the caller's context.
	AnswerGenDeadline time.Duration
}

// QueryOrchestrator composes the pipeline stages into a single
// request-scoped state machine, per §4.9. Every transition is linear and
// total: each stage leads to exactly one next stage or to a refusal.
type QueryOrchestrator struct {
	retriever   *RetrieverService
	reranker    *RerankerService
	gate        *ConfidenceGate
	definitions *DefinitionsLinkerService
	budgeter    *BudgeterService
	generator   *GeneratorService
	validator   *ValidatorService
	chunkStore  ChunkStore
	tokenizer   Tokenizer
	audit       AuditSink
	cfg         OrchestratorConfig
}

func NewQueryOrchestrator(
	retriever *RetrieverService,
	reranker *RerankerService,
	gate *ConfidenceGate,
	definitions *DefinitionsLinkerService,
	budgeter *BudgeterService,
	generator *GeneratorService,
	validator *ValidatorService,
	chunkStore ChunkStore,
	tokenizer Tokenizer,
	audit AuditSink,
	cfg OrchestratorConfig,
) *QueryOrchestrator {
	return &QueryOrchestrator{
		retriever: retriever, reranker: reranker, gate: gate,
		definitions: definitions, budgeter: budgeter, generator: generator,
		validator: validator, chunkStore: chunkStore, tokenizer: tokenizer,
		audit: audit, cfg: cfg,
	}
}

// Run executes the full pipeline for one question against the given
// sources. It always returns a fully populated QueryResult, even on
// refusal; errors are returned only for conditions the API front must
// map to a non-200 response (e.g. deadline exceeded, retrieval
// unavailable).
func (o *QueryOrchestrator) Run(ctx context.Context, question string, sources []string, mode model.SearchMode) (*model.QueryResult, error) {
	queryID := uuid.NewString()
	start := time.Now()

	if mode == "" {
		mode = o.cfg.SearchModeDefault
	}

	result := &model.QueryResult{
		QueryID:          queryID,
		OriginalQuestion: question,
		Sources:          sources,
		SearchMode:       mode,
	}
	dbg := model.DebugRecord{}

	finish := func(refuse bool, reason model.RefusalReason, answer string) (*model.QueryResult, error) {
		result.Refused = refuse
		if refuse {
			r := reason
			result.RefusalReason = &r
			result.Answer = answer
			result.Citations = []model.CitationEntry{}
		}
		result.LatencyMs = time.Since(start).Milliseconds()
		o.writeAudit(result, &dbg, reason)
		return result, nil
	}

	// failErr routes every post-NORMALIZE error exit through the same
	// compliance write as a successful run or refusal (§8: a compliance
	// record is written even on internal error, as long as NORMALIZE ran).
	failErr := func(err error) (*model.QueryResult, error) {
		result.LatencyMs = time.Since(start).Milliseconds()
		o.writeAudit(result, &dbg, "")
		return result, err
	}

	select {
	case <-ctx.Done():
		result.LatencyMs = time.Since(start).Milliseconds()
		o.writeAudit(result, &dbg, "")
		return result, apperr.ServiceUnavailable(fmt.Sprintf("request deadline exceeded before pipeline started: %v", ctx.Err()))
	default:
	}

	normalized := Normalize(question)
	result.NormalizedQuestion = normalized

	retrieval, err := o.retriever.Retrieve(ctx, normalized, sources, mode)
	if err != nil {
		return failErr(fmt.Errorf("service.Run: retrieve: %w", err))
	}
	result.EffectiveSearchMode = retrieval.EffectiveSearchMode
	result.ChunksRetrieved = len(retrieval.Candidates)
	dbg.EffectiveSearchMode = retrieval.EffectiveSearchMode

	if len(retrieval.Candidates) == 0 {
		return finish(true, model.RefusalNoChunksRetrieved, o.canonicalText(sources))
	}

	var scored []model.ScoredChunk
	scoresAreReranked := false
	if o.cfg.RerankEnabled && o.reranker != nil {
		outcome, err := o.reranker.Rerank(ctx, question, retrieval.Candidates)
		if err != nil {
			return failErr(fmt.Errorf("service.Run: rerank: %w", err))
		}
		scored = outcome.Chunks
		scoresAreReranked = outcome.ScoresAreReranked
		dbg.RerankHits = outcome.Hits
		dbg.RerankFallback = !outcome.ScoresAreReranked
	} else {
		hydrated, err := o.rrfToScored(ctx, retrieval.Candidates)
		if err != nil {
			return failErr(fmt.Errorf("service.Run: hydrate candidates: %w", err))
		}
		scored = hydrated
		scoresAreReranked = false
	}
	result.ScoresAreReranked = scoresAreReranked

	if o.cfg.GateEnabled && o.gate != nil {
		gateResult := o.gate.ShouldRefuse(scored, scoresAreReranked)
		dbg.Gate = model.GateDecision{
			Refused: gateResult.Refuse, Reason: string(gateResult.Reason),
			ScoresReranked: scoresAreReranked, TopScores: gateResult.TopScores,
		}
		if gateResult.Refuse {
			return finish(true, gateResult.Reason, o.canonicalText(sources))
		}
	}

	defs, err := o.definitions.LinkDefinitions(ctx, question, scored, sources[0])
	if err != nil {
		slog.Warn("[DEBUG-ORCHESTRATOR] definitions lookup failed", "error", err)
		defs = nil
	}
	defTerms := make([]string, len(defs))
	for i, d := range defs {
		defTerms[i] = d.Term
	}
	result.DefinitionsLinked = defTerms

	questionTokens := o.tokenizer.Count(question)
	kept, budgetInfo, err := o.budgeter.EnforceBudget(scored, questionTokens)
	if err != nil {
		return failErr(fmt.Errorf("service.Run: budget: %w", err))
	}
	dbg.Budget = model.BudgetMetrics{
		TargetTokens: budgetInfo.TotalTokens, FinalTokens: budgetInfo.TotalTokens,
		ChunksBefore: len(scored), ChunksAfter: len(kept),
	}
	result.ChunksUsed = len(kept)

	if len(kept) == 0 {
		return finish(true, model.RefusalEmptyContextAfterBudget, o.canonicalText(sources))
	}

	genCtx := ctx
	if o.cfg.AnswerGenDeadline > 0 {
		var genCancel context.CancelFunc
		genCtx, genCancel = context.WithTimeout(ctx, o.cfg.AnswerGenDeadline)
		defer genCancel()
	}

	answer, inTok, outTok, err := o.generator.Generate(genCtx, question, kept, defs)
	if err != nil {
		return failErr(fmt.Errorf("service.Run: generate: %w", err))
	}
	result.InputTokens = inTok
	result.OutputTokens = outTok
	result.Answer = answer
	result.Citations = extractCitations(kept, answer)

	ok, verrs := o.validator.Validate(answer, false)
	if !ok {
		result.ValidationErrors = verrs
	}

	result.LatencyMs = time.Since(start).Milliseconds()
	o.writeAudit(result, &dbg, "")
	return result, nil
}

func (o *QueryOrchestrator) canonicalText(sources []string) string {
	if o.cfg.CanonicalText != nil {
		return o.cfg.CanonicalText(sources)
	}
	return DefaultCanonicalText(sources)
}

// DefaultCanonicalText implements §6.4: the canonical refusal string,
// interpolating the first-listed source in upper-case, or the literal
// "CME" if no source was specified.
func DefaultCanonicalText(sources []string) string {
	tag := "CME"
	if len(sources) > 0 && strings.TrimSpace(sources[0]) != "" {
		tag = strings.ToUpper(sources[0])
	}
	return fmt.Sprintf("This is not addressed in the provided %s documents.", tag)
}

// rrfToScored hydrates each RRF candidate from the chunk store, the way
// the reranker already does for its own candidates, so downstream stages
// (definitions linking, budgeting, generation) see real text and
// metadata when reranking is disabled rather than an empty stub chunk.
func (o *QueryOrchestrator) rrfToScored(ctx context.Context, candidates []model.RetrievalCandidate) ([]model.ScoredChunk, error) {
	out := make([]model.ScoredChunk, len(candidates))
	for i, c := range candidates {
		chunk, err := o.chunkStore.Get(ctx, c.ChunkID)
		if err != nil {
			return nil, fmt.Errorf("rrfToScored: chunk store: %w", err)
		}
		out[i] = model.ScoredChunk{Chunk: chunk, Score: c.RRFScore, ScoreKind: model.ScoreKindRRF}
	}
	sortScoredChunks(out)
	return out, nil
}

// extractCitations parses the "## Citations" section into CitationEntry
// records, cross-referencing the kept chunks for section/page/source
// metadata when the document name matches.
func extractCitations(kept []model.ScoredChunk, answer string) []model.CitationEntry {
	idx := strings.Index(answer, "## Citations")
	if idx < 0 {
		return []model.CitationEntry{}
	}
	section := answer[idx+len("## Citations"):]

	byDoc := make(map[string]model.Chunk, len(kept))
	for _, c := range kept {
		byDoc[c.Chunk.DocumentPath] = c.Chunk
	}

	var out []model.CitationEntry
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "##") {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 1 {
			continue
		}
		doc := strings.TrimSpace(parts[0])
		chunk, ok := byDoc[doc]
		if !ok {
			continue
		}
		entry := model.CitationEntry{
			Document: doc, Section: chunk.Section,
			PageStart: chunk.PageStart, PageEnd: chunk.PageEnd, Source: chunk.Source,
		}
		out = append(out, entry)
	}
	if out == nil {
		out = []model.CitationEntry{}
	}
	return out
}

func (o *QueryOrchestrator) writeAudit(result *model.QueryResult, dbg *model.DebugRecord, reason model.RefusalReason) {
	var reasonPtr *string
	if result.Refused {
		s := string(reason)
		reasonPtr = &s
	}

	compliance := model.ComplianceRecord{
		Timestamp:           time.Now().UTC(),
		QueryID:             result.QueryID,
		Question:            result.OriginalQuestion,
		NormalizedQuery:     result.NormalizedQuestion,
		Sources:             result.Sources,
		SearchMode:          result.SearchMode,
		EffectiveSearchMode: result.EffectiveSearchMode,
		ChunksRetrieved:     result.ChunksRetrieved,
		ChunksUsed:          result.ChunksUsed,
		DefinitionsLinked:   len(result.DefinitionsLinked),
		TokensInput:         result.InputTokens,
		TokensOutput:        result.OutputTokens,
		LatencyMs:           result.LatencyMs,
		Refused:             result.Refused,
		RefusalReason:       reasonPtr,
		AnswerWordCount:     len(strings.Fields(result.Answer)),
		CitationCount:       len(result.Citations),
	}

	if o.audit == nil {
		return
	}
	o.audit.WriteCompliance(compliance)
	if o.cfg.DebugEnabled {
		dbg.ComplianceRecord = compliance
		dbg.TotalDurationMs = result.LatencyMs
		o.audit.WriteDebug(*dbg)
	}
}
