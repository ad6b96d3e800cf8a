package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/veritas-legal/clausecore/internal/model"
)

const rerankSystemPrompt = `You score how relevant a single passage is to a question.
Respond with exactly one integer from 0 to 3, where 0 means irrelevant
and 3 means directly and fully answers the question. Do not explain your
answer unless explicitly asked to. Never include any text besides the
integer (and, if asked, a one-line explanation after it).`

var firstIntPattern = regexp.MustCompile(`[0-3]`)

// RerankerService scores each retrieval candidate for question
// relevance via an LLM, with bounded worker concurrency and a graceful
// fallback to the original RRF scores when too many calls fail.
type RerankerService struct {
	llm              LLM
	store            ChunkStore
	workers          int
	timeout          time.Duration
	maxChars         int
	minScore         int
	maxKept          int
	includeExplain   bool
}

// NewRerankerService builds a RerankerService.
func NewRerankerService(llm LLM, store ChunkStore, workers int, timeout time.Duration, maxChars, minScore, maxKept int, includeExplanations bool) *RerankerService {
	return &RerankerService{
		llm:            llm,
		store:          store,
		workers:        workers,
		timeout:        timeout,
		maxChars:       maxChars,
		minScore:       minScore,
		maxKept:        maxKept,
		includeExplain: includeExplanations,
	}
}

// RerankOutcome carries the reranked chunks plus whether reranking
// actually took effect (false on request-level fallback).
type RerankOutcome struct {
	Chunks            []model.ScoredChunk
	ScoresAreReranked bool
	Hits              []model.RerankHit
}

// Rerank scores every candidate concurrently (bounded by workers),
// applies the request-level fallback rule, filters, and sorts
// deterministically.
func (s *RerankerService) Rerank(ctx context.Context, question string, candidates []model.RetrievalCandidate) (*RerankOutcome, error) {
	if len(candidates) == 0 {
		return &RerankOutcome{Chunks: []model.ScoredChunk{}, ScoresAreReranked: true}, nil
	}

	chunks := make([]model.Chunk, len(candidates))
	for i, c := range candidates {
		chunk, err := s.store.Get(ctx, c.ChunkID)
		if err != nil {
			return nil, fmt.Errorf("service.Rerank: chunk store: %w", err)
		}
		chunks[i] = chunk
	}

	scores := make([]float64, len(candidates))
	failed := make([]bool, len(candidates))
	explanations := make([]string, len(candidates))

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i := range candidates {
		i := i
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			score, explanation, err := s.scoreOne(ctx, question, chunks[i])
			if err != nil {
				slog.Warn("[DEBUG-RERANK] score failed", "chunk_id", chunks[i].ChunkID, "error", err)
				failed[i] = true
				scores[i] = 0
				return
			}
			scores[i] = float64(score)
			explanations[i] = explanation
		}()
	}
	wg.Wait()

	failedCount := 0
	for _, f := range failed {
		if f {
			failedCount++
		}
	}

	hits := make([]model.RerankHit, len(candidates))
	for i, c := range candidates {
		hits[i] = model.RerankHit{ChunkID: c.ChunkID, Score: scores[i], Explanation: explanations[i], Failed: failed[i]}
	}

	if failedCount*2 > len(candidates) {
		slog.Warn("[DEBUG-RERANK] request-level fallback triggered", "failed", failedCount, "total", len(candidates))
		fallback := make([]model.ScoredChunk, len(candidates))
		for i, c := range candidates {
			fallback[i] = model.ScoredChunk{Chunk: chunks[i], Score: c.RRFScore, ScoreKind: model.ScoreKindRRF}
		}
		sortScoredChunks(fallback)
		return &RerankOutcome{Chunks: fallback, ScoresAreReranked: false, Hits: hits}, nil
	}

	scored := make([]model.ScoredChunk, 0, len(candidates))
	for i, c := range candidates {
		if failed[i] {
			continue
		}
		scored = append(scored, model.ScoredChunk{
			Chunk: chunks[i], Score: scores[i], ScoreKind: model.ScoreKindRerank,
			Explanation: explanations[i],
		})
		_ = c
	}

	sortScoredChunks(scored)

	kept := make([]model.ScoredChunk, 0, len(scored))
	for _, sc := range scored {
		if sc.Score >= float64(s.minScore) {
			kept = append(kept, sc)
		}
	}
	if len(kept) > s.maxKept {
		kept = kept[:s.maxKept]
	}

	return &RerankOutcome{Chunks: kept, ScoresAreReranked: true, Hits: hits}, nil
}

func (s *RerankerService) scoreOne(ctx context.Context, question string, chunk model.Chunk) (int, string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text := chunk.Text
	if len(text) > s.maxChars {
		text = text[:s.maxChars]
	}

	user := fmt.Sprintf("Question: %s\n\nPassage:\n%s", question, text)
	maxTokens := 5
	if s.includeExplain {
		maxTokens = 60
	}

	result, err := s.llm.Complete(callCtx, rerankSystemPrompt, user, LLMOptions{Temperature: 0, MaxTokens: maxTokens})
	if err != nil {
		return 0, "", err
	}

	match := firstIntPattern.FindString(result.Text)
	if match == "" {
		return 0, "", fmt.Errorf("service.Rerank: no integer 0-3 found in response %q", result.Text)
	}
	score := int(match[0] - '0')

	explanation := ""
	if s.includeExplain {
		idx := strings.Index(result.Text, match)
		if idx >= 0 {
			explanation = strings.TrimSpace(result.Text[idx+1:])
		}
	}

	return score, explanation, nil
}

// sortScoredChunks applies the deterministic tie-break of §4.3: score
// desc, tokenCount asc, chunkID asc.
func sortScoredChunks(chunks []model.ScoredChunk) {
	sort.Slice(chunks, func(i, j int) bool {
		a, b := chunks[i], chunks[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Chunk.TokenCount != b.Chunk.TokenCount {
			return a.Chunk.TokenCount < b.Chunk.TokenCount
		}
		return a.Chunk.ChunkID < b.Chunk.ChunkID
	})
}
