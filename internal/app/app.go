// Package app wires the query pipeline's full dependency graph —
// config, Postgres pool, provider adapters, service stages, the
// orchestrator, and the audit sink — so both the HTTP server and the
// CLI build the same graph from one place.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/veritas-legal/clausecore/internal/audit"
	"github.com/veritas-legal/clausecore/internal/config"
	"github.com/veritas-legal/clausecore/internal/handler"
	"github.com/veritas-legal/clausecore/internal/middleware"
	"github.com/veritas-legal/clausecore/internal/model"
	"github.com/veritas-legal/clausecore/internal/provider"
	"github.com/veritas-legal/clausecore/internal/service"
)

// App bundles the fully wired pipeline and its closers.
type App struct {
	Config       *config.Config
	Pool         *pgxpool.Pool
	Orchestrator *service.QueryOrchestrator
	ChunkStore   *provider.PgChunkStore
	AuditSink    *audit.Sink
	MetricsReg   *prometheus.Registry
	Metrics      *middleware.Metrics
	Build        handler.BuildInfo

	llm *provider.VertexLLM
}

// New wires every collaborator and returns a ready-to-use App. Callers
// must call Close when done.
func New(ctx context.Context, version, gitCommit, builtAt string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("app.New: config.Load: %w", err)
	}

	pool, err := provider.NewPool(ctx, os.Getenv("DATABASE_URL"), 10)
	if err != nil {
		return nil, fmt.Errorf("app.New: provider.NewPool: %w", err)
	}

	project := os.Getenv("GOOGLE_CLOUD_PROJECT")
	location := envOr("VERTEX_LOCATION", "us-central1")
	llmModel := envOr("VERTEX_LLM_MODEL", "gemini-2.0-flash-001")
	embedModel := envOr("VERTEX_EMBED_MODEL", "text-embedding-004")

	llm, err := provider.NewVertexLLM(ctx, project, location, llmModel)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("app.New: provider.NewVertexLLM: %w", err)
	}

	embedder, err := provider.NewVertexEmbedder(ctx, project, location, embedModel)
	if err != nil {
		pool.Close()
		llm.Close()
		return nil, fmt.Errorf("app.New: provider.NewVertexEmbedder: %w", err)
	}

	tokenizer, err := provider.NewTiktokenCounter(envOr("TOKENIZER_ENCODING", "cl100k_base"))
	if err != nil {
		pool.Close()
		llm.Close()
		return nil, fmt.Errorf("app.New: provider.NewTiktokenCounter: %w", err)
	}

	vectorIndex := provider.NewPgVectorIndex(pool)
	lexicalIndex := provider.NewPgLexicalIndex(pool)
	chunkStore := provider.NewPgChunkStore(pool)
	definitionsStore := provider.NewPgDefinitionsStore(pool)

	auditSink := audit.New(audit.Config{
		CompliancePath:    cfg.AuditDir + "/compliance.ndjson",
		ComplianceMaxMB:   cfg.AuditMaxBytes / (1024 * 1024),
		ComplianceBackups: cfg.AuditBackups,
		DebugPath:         cfg.AuditDir + "/debug.ndjson",
		DebugMaxMB:        cfg.DebugMaxBytes / (1024 * 1024),
		DebugBackups:      cfg.DebugBackups,
		QueueSize:         256,
	})

	retriever := service.NewRetrieverService(embedder, vectorIndex, lexicalIndex,
		cfg.TopKVector, cfg.TopKLexical, cfg.MaxCandidates, cfg.RRFK)
	reranker := service.NewRerankerService(llm, chunkStore, cfg.RerankWorkers, cfg.RerankTimeout,
		cfg.RerankMaxChars, cfg.RerankMinScore, cfg.RerankMaxKept, cfg.RerankIncludeExplanations)
	gate := service.NewConfidenceGate(service.GateConfig{
		RelevanceThreshold: cfg.RelevanceThreshold,
		MinChunksRequired:  cfg.MinChunksRequired,
		RetrievalMinScore:  cfg.RetrievalMinScore,
		RetrievalMinRatio:  cfg.RetrievalMinRatio,
	})
	definitionsLinker := service.NewDefinitionsLinkerService(definitionsStore)
	budgeter := service.NewBudgeterService(service.BudgetConfig{
		MaxContextTokens:   cfg.MaxContextTokens,
		SystemPromptTokens: cfg.SystemPromptTokens,
		QATemplateTokens:   cfg.QATemplateTokens,
		AnswerBufferTokens: cfg.AnswerBufferTokens,
	}, tokenizer)
	generator := service.NewGeneratorService(llm, service.GeneratorConfig{
		Temperature:   0,
		MaxTokens:     cfg.AnswerBufferTokens,
		CanonicalText: "This is not addressed in the provided documents.",
	})
	validator := service.NewValidatorService()

	orchestrator := service.NewQueryOrchestrator(
		retriever, reranker, gate, definitionsLinker, budgeter, generator, validator,
		chunkStore, tokenizer, auditSink,
		service.OrchestratorConfig{
			SearchModeDefault: model.SearchMode(cfg.SearchModeDefault),
			RerankEnabled:     true,
			GateEnabled:       cfg.GateEnabled,
			DebugEnabled:      cfg.DebugEnabled,
			CanonicalText:     service.DefaultCanonicalText,
			AnswerGenDeadline: cfg.AnswerGenDeadline,
		},
	)

	reg := prometheus.NewRegistry()
	metrics := middleware.NewMetrics(reg)

	return &App{
		Config:       cfg,
		Pool:         pool,
		Orchestrator: orchestrator,
		ChunkStore:   chunkStore,
		AuditSink:    auditSink,
		MetricsReg:   reg,
		Metrics:      metrics,
		Build:        handler.BuildInfo{Version: version, GitCommit: gitCommit, BuiltAt: builtAt},
		llm:          llm,
	}, nil
}

// Close releases every resource New acquired.
func (a *App) Close() {
	a.AuditSink.Close()
	a.llm.Close()
	a.Pool.Close()
}

// Ping satisfies handler.DBPinger over the pooled connection.
func (a *App) Ping(ctx context.Context) error { return a.Pool.Ping(ctx) }

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
