package service

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/veritas-legal/clausecore/internal/model"
)

// quotedTermPattern matches straight and Unicode smart-quote delimited
// phrases, e.g. "Subscriber" or “Effective Date”.
var quotedTermPattern = regexp.MustCompile(`["“]([^"”]{1,80})["”]`)

// capitalizedPhrasePattern matches runs of one or more capitalized
// words, a loose proxy for defined-term usage outside quotes.
var capitalizedPhrasePattern = regexp.MustCompile(`\b([A-Z][a-zA-Z]*(?:\s+[A-Z][a-zA-Z]*){0,3})\b`)

// DefinitionsLinkerService attaches definitions for terms referenced in
// the question or surviving chunks, drawn from a source's pre-built,
// immutable definitions map.
type DefinitionsLinkerService struct {
	store DefinitionsStore
}

func NewDefinitionsLinkerService(store DefinitionsStore) *DefinitionsLinkerService {
	return &DefinitionsLinkerService{store: store}
}

// LinkDefinitions scans the question and each chunk's text for
// candidate terms and returns at most one Definition per unique term,
// in order of first occurrence. Matching is case-insensitive exact on
// the normalized term key.
func (d *DefinitionsLinkerService) LinkDefinitions(ctx context.Context, question string, chunks []model.ScoredChunk, source string) ([]model.Definition, error) {
	defsMap, err := d.store.Definitions(ctx, source)
	if err != nil {
		return nil, err
	}
	if len(defsMap) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	var out []model.Definition

	consider := func(text string) {
		for _, term := range extractCandidateTerms(text) {
			key := strings.ToLower(strings.TrimSpace(term))
			if key == "" || seen[key] {
				continue
			}
			if def, ok := defsMap[key]; ok {
				seen[key] = true
				out = append(out, def)
			}
		}
	}

	consider(question)
	for _, c := range chunks {
		consider(c.Chunk.Text)
	}

	return out, nil
}

func extractCandidateTerms(text string) []string {
	var idx [][]int
	idx = append(idx, quotedTermPattern.FindAllStringSubmatchIndex(text, -1)...)
	idx = append(idx, capitalizedPhrasePattern.FindAllStringSubmatchIndex(text, -1)...)
	sort.SliceStable(idx, func(i, j int) bool { return idx[i][2] < idx[j][2] })
	terms := make([]string, len(idx))
	for i, m := range idx {
		terms[i] = text[m[2]:m[3]]
	}
	return terms
}
