package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/veritas-legal/clausecore/internal/apperr"
	"github.com/veritas-legal/clausecore/internal/model"
	"golang.org/x/sync/errgroup"
)

// RetrievalResult is the HybridRetriever's output: fused candidates plus
// the search mode actually executed.
type RetrievalResult struct {
	Candidates          []model.RetrievalCandidate
	SearchMode          model.SearchMode
	EffectiveSearchMode model.SearchMode
}

// RetrieverService runs vector and lexical search concurrently per
// source and fuses the results with Reciprocal Rank Fusion.
type RetrieverService struct {
	embedder Embedder
	vector   VectorIndex
	lexical  LexicalIndex

	topKVector    int
	topKLexical   int
	maxCandidates int
	rrfK          int
}

// NewRetrieverService builds a RetrieverService. vector and lexical may
// each be nil to model an index being unavailable for the whole process;
// per-source unavailability is instead signaled by the index returning
// an error for that source.
func NewRetrieverService(embedder Embedder, vector VectorIndex, lexical LexicalIndex, topKVector, topKLexical, maxCandidates, rrfK int) *RetrieverService {
	return &RetrieverService{
		embedder:      embedder,
		vector:        vector,
		lexical:       lexical,
		topKVector:    topKVector,
		topKLexical:   topKLexical,
		maxCandidates: maxCandidates,
		rrfK:          rrfK,
	}
}

type sourceOutcome struct {
	source        string
	vectorHits    []VectorHit
	lexicalHits   []LexicalHit
	vectorErr     error
	lexicalErr    error
	hasVectorIdx  bool
	hasLexicalIdx bool
}

// Retrieve embeds and tokenizes the normalized query, runs both indexes
// concurrently per source, fuses via RRF, deduplicates by chunkID, and
// caps the pool at maxCandidates.
func (s *RetrieverService) Retrieve(ctx context.Context, normalizedQuery string, sources []string, mode model.SearchMode) (*RetrievalResult, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("service.Retrieve: no sources specified")
	}

	var queryVec []float32
	if mode != model.SearchModeLexical && s.vector != nil {
		vecs, err := s.embedder.Embed(ctx, []string{normalizedQuery})
		if err != nil {
			return nil, apperr.Wrap(apperr.KindRetrievalUnavailable, "SERVICE_UNAVAILABLE", "service.Retrieve: embed query", err)
		}
		queryVec = vecs[0]
	}
	tokens := tokenizeForLexical(normalizedQuery)

	outcomes := make([]sourceOutcome, len(sources))
	g, gCtx := errgroup.WithContext(ctx)

	for i, src := range sources {
		i, src := i, src
		outcomes[i] = sourceOutcome{source: src}
		wantVector := mode != model.SearchModeLexical && s.vector != nil
		wantLexical := mode != model.SearchModeVector && s.lexical != nil
		outcomes[i].hasVectorIdx = wantVector
		outcomes[i].hasLexicalIdx = wantLexical

		if wantVector {
			g.Go(func() error {
				hits, err := s.vector.QueryVector(gCtx, src, queryVec, s.topKVector)
				if err != nil {
					slog.Warn("[DEBUG-RETRIEVER] vector index unavailable", "source", src, "error", err)
					outcomes[i].vectorErr = err
					return nil
				}
				outcomes[i].vectorHits = hits
				return nil
			})
		}
		if wantLexical {
			g.Go(func() error {
				hits, err := s.lexical.QueryLexical(gCtx, src, tokens, s.topKLexical)
				if err != nil {
					slog.Warn("[DEBUG-RETRIEVER] lexical index unavailable", "source", src, "error", err)
					outcomes[i].lexicalErr = err
					return nil
				}
				outcomes[i].lexicalHits = hits
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, apperr.Wrap(apperr.KindRetrievalUnavailable, "SERVICE_UNAVAILABLE", "service.Retrieve: search", err)
	}

	candidates, effective, err := fuseSources(outcomes, mode, s.rrfK)
	if err != nil {
		return nil, err
	}

	capped := capCandidates(candidates, s.maxCandidates)

	slog.Info("[DEBUG-RETRIEVER] retrieval complete",
		"sources", sources, "mode", mode, "effective_mode", effective,
		"fused", len(candidates), "capped", len(capped))

	return &RetrievalResult{
		Candidates:          capped,
		SearchMode:          mode,
		EffectiveSearchMode: effective,
	}, nil
}

// fuseSources applies RRF per source then merges, and determines the
// effective search mode across all sources: a hybrid request becomes
// vector (or lexical) only when every source that contributed candidates
// had the vector (or lexical) index alone; any other mix stays hybrid.
func fuseSources(outcomes []sourceOutcome, requested model.SearchMode, rrfK int) ([]model.RetrievalCandidate, model.SearchMode, error) {
	type fused struct {
		c model.RetrievalCandidate
	}
	byID := make(map[string]*model.RetrievalCandidate)

	anySucceeded := false
	allDegradedToVector := true
	allDegradedToLexical := true

	for _, o := range outcomes {
		vectorAvailable := o.hasVectorIdx && o.vectorErr == nil
		lexicalAvailable := o.hasLexicalIdx && o.lexicalErr == nil

		if !vectorAvailable && !lexicalAvailable && (o.hasVectorIdx || o.hasLexicalIdx) {
			continue // both unavailable for this source; contributes nothing
		}
		anySucceeded = anySucceeded || vectorAvailable || lexicalAvailable

		if !(vectorAvailable && lexicalAvailable) {
			if vectorAvailable {
				allDegradedToLexical = false
			}
			if lexicalAvailable {
				allDegradedToVector = false
			}
			if !vectorAvailable && !lexicalAvailable {
				allDegradedToVector = false
				allDegradedToLexical = false
			}
		} else {
			allDegradedToVector = false
			allDegradedToLexical = false
		}

		if vectorAvailable {
			for rank, hit := range o.vectorHits {
				rc := byID[hit.ChunkID]
				if rc == nil {
					rc = &model.RetrievalCandidate{ChunkID: hit.ChunkID}
					byID[hit.ChunkID] = rc
				}
				rc.HasVector = true
				rc.VectorRank = rank + 1
				rc.RRFScore += 1.0 / float64(rrfK+rank+1)
			}
		}
		if lexicalAvailable {
			for rank, hit := range o.lexicalHits {
				rc := byID[hit.ChunkID]
				if rc == nil {
					rc = &model.RetrievalCandidate{ChunkID: hit.ChunkID}
					byID[hit.ChunkID] = rc
				}
				rc.HasLexical = true
				rc.LexicalRank = rank + 1
				rc.RRFScore += 1.0 / float64(rrfK+rank+1)
			}
		}
	}

	if !anySucceeded {
		return nil, "", apperr.RetrievalUnavailable("both indexes unavailable for all requested sources")
	}

	effective := requested
	if requested == model.SearchModeHybrid {
		switch {
		case allDegradedToVector:
			effective = model.SearchModeVector
		case allDegradedToLexical:
			effective = model.SearchModeLexical
		}
	}

	out := make([]model.RetrievalCandidate, 0, len(byID))
	for _, rc := range byID {
		out = append(out, *rc)
	}
	return out, effective, nil
}

// capCandidates deduplicates (already unique by construction), sorts by
// RRF score descending with the deterministic tie-break of §4.2, and
// caps the pool.
func capCandidates(candidates []model.RetrievalCandidate, max int) []model.RetrievalCandidate {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.RRFScore != b.RRFScore {
			return a.RRFScore > b.RRFScore
		}
		ar, br := rankOrInf(a.VectorRank, a.HasVector), rankOrInf(b.VectorRank, b.HasVector)
		if ar != br {
			return ar < br
		}
		ar, br = rankOrInf(a.LexicalRank, a.HasLexical), rankOrInf(b.LexicalRank, b.HasLexical)
		if ar != br {
			return ar < br
		}
		return a.ChunkID < b.ChunkID
	})
	if len(candidates) > max {
		candidates = candidates[:max]
	}
	return candidates
}

func rankOrInf(rank int, has bool) int {
	if !has {
		return int(^uint(0) >> 1) // math.MaxInt
	}
	return rank
}

func tokenizeForLexical(normalizedQuery string) []string {
	return splitWhitespaceLower(normalizedQuery)
}
