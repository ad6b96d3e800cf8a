package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/veritas-legal/clausecore/internal/model"
)

var errTestRetrieval = errors.New("index unreachable")

type fakeTokenizer struct{}

func (fakeTokenizer) Count(text string) int { return len(text) / 4 }

type recordingAudit struct {
	compliance []model.ComplianceRecord
	debug      []model.DebugRecord
}

func (r *recordingAudit) WriteCompliance(rec model.ComplianceRecord) { r.compliance = append(r.compliance, rec) }
func (r *recordingAudit) WriteDebug(rec model.DebugRecord)           { r.debug = append(r.debug, rec) }

func buildOrchestrator(t *testing.T, llmText string, vector fakeVectorIndex, lexical fakeLexicalIndex, audit AuditSink) *QueryOrchestrator {
	t.Helper()
	retriever := NewRetrieverService(fakeEmbedder{}, vector, lexical, 10, 10, 50, 60)
	gate := NewConfidenceGate(GateConfig{RelevanceThreshold: 2, MinChunksRequired: 1, RetrievalMinScore: 0, RetrievalMinRatio: 1.0})
	defs := NewDefinitionsLinkerService(fakeDefinitionsStore{bySource: map[string]map[string]model.Definition{}})
	budget := NewBudgeterService(BudgetConfig{MaxContextTokens: 100000, SystemPromptTokens: 100, QATemplateTokens: 50, AnswerBufferTokens: 500}, fakeTokenizer{})
	generator := NewGeneratorService(fakeGenLLM{text: llmText}, GeneratorConfig{Temperature: 0, MaxTokens: 1024, CanonicalText: "This is not addressed in the provided CME documents."})
	validator := NewValidatorService()

	store := storeFor("c1", "c2")
	return NewQueryOrchestrator(retriever, nil, gate, defs, budget, generator, validator, store, fakeTokenizer{}, audit,
		OrchestratorConfig{SearchModeDefault: model.SearchModeHybrid, RerankEnabled: false, GateEnabled: true, DebugEnabled: true})
}

func TestOrchestrator_RefusesWhenNoChunksRetrieved(t *testing.T) {
	audit := &recordingAudit{}
	orch := buildOrchestrator(t, "", fakeVectorIndex{}, fakeLexicalIndex{}, audit)

	result, err := orch.Run(context.Background(), "what is the term?", []string{"cme"}, "")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !result.Refused || result.RefusalReason == nil || *result.RefusalReason != model.RefusalNoChunksRetrieved {
		t.Fatalf("result = %+v, want refusal with no_chunks_retrieved", result)
	}
	if len(audit.compliance) != 1 {
		t.Fatalf("compliance records = %d, want 1", len(audit.compliance))
	}
}

func TestOrchestrator_AnswersWhenConfident(t *testing.T) {
	vector := fakeVectorIndex{hits: map[string][]VectorHit{
		"cme": {{ChunkID: "c1", Score: 0.9}, {ChunkID: "c2", Score: 0.8}},
	}}
	lexical := fakeLexicalIndex{hits: map[string][]LexicalHit{
		"cme": {{ChunkID: "c1", Score: 5}, {ChunkID: "c2", Score: 4}},
	}}
	audit := &recordingAudit{}
	answerText := "## Answer\nYes, termination requires 30 days notice.\n\n## Supporting Clauses\n\"30 days\" (doc.pdf | Termination | 4)\n\n## Citations\ndoc.pdf | Termination | 4"
	orch := buildOrchestrator(t, answerText, vector, lexical, audit)

	result, err := orch.Run(context.Background(), "how much notice is required to terminate?", []string{"cme"}, model.SearchModeHybrid)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Refused {
		t.Fatalf("result unexpectedly refused: %+v", result)
	}
	if result.Answer == "" {
		t.Error("expected non-empty answer")
	}
	if result.ChunksRetrieved == 0 {
		t.Error("expected ChunksRetrieved > 0")
	}
	if len(audit.debug) != 1 {
		t.Fatalf("debug records = %d, want 1", len(audit.debug))
	}
}

func TestOrchestrator_DeadlineExceededBeforeStartReturnsError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	audit := &recordingAudit{}
	orch := buildOrchestrator(t, "", fakeVectorIndex{}, fakeLexicalIndex{}, audit)

	_, err := orch.Run(ctx, "q", []string{"cme"}, "")
	if err == nil {
		t.Fatal("expected error for expired deadline")
	}
}

func TestOrchestrator_RerankDisabledHydratesChunksFromStore(t *testing.T) {
	vector := fakeVectorIndex{hits: map[string][]VectorHit{
		"cme": {{ChunkID: "c1", Score: 0.9}, {ChunkID: "c2", Score: 0.8}},
	}}
	lexical := fakeLexicalIndex{hits: map[string][]LexicalHit{
		"cme": {{ChunkID: "c1", Score: 5}, {ChunkID: "c2", Score: 4}},
	}}
	audit := &recordingAudit{}
	answerText := "## Answer\nYes.\n\n## Citations\ndoc.pdf | s | 1"
	orch := buildOrchestrator(t, answerText, vector, lexical, audit)

	result, err := orch.Run(context.Background(), "how much notice is required?", []string{"cme"}, model.SearchModeHybrid)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Refused {
		t.Fatalf("result unexpectedly refused: %+v", result)
	}
	// Every kept chunk must carry the hydrated text from the store
	// (storeFor sets "some clause text about <id>"), not an empty stub;
	// otherwise the budgeter would count zero tokens for every chunk.
	if len(audit.debug) != 1 {
		t.Fatalf("debug records = %d, want 1", len(audit.debug))
	}
	if audit.debug[0].Budget.FinalTokens == 0 {
		t.Error("Budget.FinalTokens = 0, want > 0 (chunks were not hydrated with text)")
	}
}

func TestOrchestrator_RetrieveErrorWritesComplianceRecord(t *testing.T) {
	vector := fakeVectorIndex{err: map[string]error{"cme": errTestRetrieval}}
	lexical := fakeLexicalIndex{err: map[string]error{"cme": errTestRetrieval}}
	audit := &recordingAudit{}
	orch := buildOrchestrator(t, "", vector, lexical, audit)

	_, err := orch.Run(context.Background(), "what is the term?", []string{"cme"}, model.SearchModeHybrid)
	if err == nil {
		t.Fatal("expected retrieval error")
	}
	if len(audit.compliance) != 1 {
		t.Fatalf("compliance records = %d, want 1 even on internal error", len(audit.compliance))
	}
}

func TestDefaultCanonicalText_UsesFirstSourceUppercased(t *testing.T) {
	if got := DefaultCanonicalText([]string{"cme"}); got != "This is not addressed in the provided CME documents." {
		t.Errorf("DefaultCanonicalText() = %q", got)
	}
	if got := DefaultCanonicalText(nil); got != "This is not addressed in the provided CME documents." {
		t.Errorf("DefaultCanonicalText(nil) = %q", got)
	}
}
