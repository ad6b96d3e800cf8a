package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/veritas-legal/clausecore/internal/apperr"
	"github.com/veritas-legal/clausecore/internal/model"
)

// GeneratorConfig holds the AnswerGenerator's fixed call parameters.
type GeneratorConfig struct {
	Temperature   float64
	MaxTokens     int
	CanonicalText string // the exact canonical refusal string (§6.4)
}

// GeneratorService issues a single LLM call with a strict system prompt
// and returns an answer that conforms to the output contract of §4.7,
// or the canonical refusal string verbatim.
type GeneratorService struct {
	llm LLM
	cfg GeneratorConfig
}

func NewGeneratorService(llm LLM, cfg GeneratorConfig) *GeneratorService {
	return &GeneratorService{llm: llm, cfg: cfg}
}

// Generate produces the final answer text and token counts for a single
// request. chunks must already be budget-packed in their final order.
func (g *GeneratorService) Generate(ctx context.Context, question string, chunks []model.ScoredChunk, definitions []model.Definition) (answerText string, inputTokens, outputTokens int, err error) {
	if question == "" {
		return "", 0, 0, fmt.Errorf("service.Generate: question is empty")
	}

	system := g.buildSystemPrompt()
	user := buildUserPrompt(question, chunks, definitions)

	result, callErr := g.llm.Complete(ctx, system, user, LLMOptions{Temperature: g.cfg.Temperature, MaxTokens: g.cfg.MaxTokens})
	if callErr != nil {
		return "", 0, 0, apperr.UpstreamLLM(callErr)
	}

	return strings.TrimSpace(result.Text), result.InputTokens, result.OutputTokens, nil
}

func (g *GeneratorService) buildSystemPrompt() string {
	return fmt.Sprintf(`You answer questions about a fixed corpus of legal and licensing
documents. You must ground every statement strictly in the passages
supplied below; never use outside knowledge and never infer anything
not textually supported by the supplied passages.

If the supplied passages do not fully answer the question, respond with
exactly this text and nothing else:

%s

Otherwise structure your response with exactly these sections, in this
order:

## Answer
A direct answer to the question, grounded only in the supplied passages.

## Supporting Clauses
One or more verbatim quotes from the supplied passages that support the
answer, each followed by its citation in the form (document | section | page).

## Definitions
Include this section only if definitions were supplied below. List each
defined term and its text.

## Citations
A list of every passage cited, one per line, in the form
"document | section | page".`, g.cfg.CanonicalText)
}

// buildUserPrompt formats each kept chunk with document name, section,
// page range, source, and verbatim text, followed by definitions.
func buildUserPrompt(question string, chunks []model.ScoredChunk, definitions []model.Definition) string {
	var sb strings.Builder

	sb.WriteString("=== QUESTION ===\n")
	sb.WriteString(question)
	sb.WriteString("\n\n=== PASSAGES ===\n")

	for i, c := range chunks {
		pages := fmt.Sprintf("p.%d", c.Chunk.PageStart)
		if c.Chunk.PageEnd > c.Chunk.PageStart {
			pages = fmt.Sprintf("p.%d-%d", c.Chunk.PageStart, c.Chunk.PageEnd)
		}
		sb.WriteString(fmt.Sprintf("[%d] document=%s section=%q pages=%s source=%s\n%s\n\n",
			i+1, c.Chunk.DocumentPath, c.Chunk.Section, pages, c.Chunk.Source, c.Chunk.Text))
	}

	if len(definitions) > 0 {
		sb.WriteString("=== DEFINITIONS ===\n")
		for _, d := range definitions {
			sb.WriteString(fmt.Sprintf("%s: %s\n", d.Term, d.Text))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
