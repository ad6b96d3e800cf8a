// Package config loads the closed set of environment-variable options
// the query pipeline recognizes at startup. Configuration loading itself
// is an external collaborator per scope; this package is the one
// concrete loader the binaries use.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is immutable after Load returns.
type Config struct {
	Port        int
	Environment string

	// Retrieval
	TopKVector        int
	TopKLexical       int
	MaxCandidates     int
	RRFK              int
	SearchModeDefault string

	// Reranker
	RerankWorkers             int
	RerankTimeout             time.Duration
	RerankMaxChars            int
	RerankMinScore            int
	RerankMaxKept             int
	RerankIncludeExplanations bool

	// Gate
	RelevanceThreshold int
	MinChunksRequired  int
	RetrievalMinScore  float64
	RetrievalMinRatio  float64
	GateEnabled        bool

	// Budget
	MaxContextTokens   int
	SystemPromptTokens int
	QATemplateTokens   int
	AnswerBufferTokens int

	// Audit
	AuditDir      string
	AuditMaxBytes int
	AuditBackups  int
	DebugMaxBytes int
	DebugBackups  int
	DebugEnabled  bool

	// API
	APIBearerToken    string
	ChatSigningSecret string
	RateLimitPerMin   int
	TrustProxyHeaders bool
	CORSOrigins       string

	// Request deadlines. Not part of the closed set in §6.3 but
	// required to wire end-to-end timeouts.
	RequestDeadline   time.Duration
	AnswerGenDeadline time.Duration
}

// Load reads configuration from environment variables. API_BEARER_TOKEN
// and CHAT_SIGNING_SECRET are required outside development so the auth
// and signature middleware never run against an empty secret.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        envInt("PORT", 8080),
		Environment: envStr("ENVIRONMENT", "development"),

		TopKVector:        envInt("TOP_K_VECTOR", 10),
		TopKLexical:       envInt("TOP_K_LEXICAL", 10),
		MaxCandidates:     envInt("MAX_CANDIDATES", 12),
		RRFK:              envInt("RRF_K", 60),
		SearchModeDefault: envStr("SEARCH_MODE_DEFAULT", "hybrid"),

		RerankWorkers:             envInt("RERANK_WORKERS", 5),
		RerankTimeout:             time.Duration(envInt("RERANK_TIMEOUT_MS", 30000)) * time.Millisecond,
		RerankMaxChars:            envInt("RERANK_MAX_CHARS", 2000),
		RerankMinScore:            envInt("RERANK_MIN_SCORE", 2),
		RerankMaxKept:             envInt("RERANK_MAX_KEPT", 10),
		RerankIncludeExplanations: envBool("RERANK_INCLUDE_EXPLANATIONS", false),

		RelevanceThreshold: envInt("RELEVANCE_THRESHOLD", 2),
		MinChunksRequired:  envInt("MIN_CHUNKS_REQUIRED", 1),
		RetrievalMinScore:  envFloat("RETRIEVAL_MIN_SCORE", 0.05),
		RetrievalMinRatio:  envFloat("RETRIEVAL_MIN_RATIO", 1.2),
		GateEnabled:        envBool("GATE_ENABLED", true),

		MaxContextTokens:   envInt("MAX_CONTEXT_TOKENS", 60000),
		SystemPromptTokens: envInt("SYSTEM_PROMPT_TOKENS", 500),
		QATemplateTokens:   envInt("QA_TEMPLATE_TOKENS", 200),
		AnswerBufferTokens: envInt("ANSWER_BUFFER_TOKENS", 2048),

		AuditDir:      envStr("AUDIT_DIR", "./audit"),
		AuditMaxBytes: envInt("AUDIT_MAX_BYTES", 50*1024*1024),
		AuditBackups:  envInt("AUDIT_BACKUPS", 10),
		DebugMaxBytes: envInt("DEBUG_MAX_BYTES", 10*1024*1024),
		DebugBackups:  envInt("DEBUG_BACKUPS", 5),
		DebugEnabled:  envBool("AUDIT_DEBUG_ENABLED", false),

		APIBearerToken:    envStr("API_BEARER_TOKEN", ""),
		ChatSigningSecret: envStr("CHAT_SIGNING_SECRET", ""),
		RateLimitPerMin:   envInt("RATE_LIMIT_PER_MIN", 100),
		TrustProxyHeaders: envBool("TRUST_PROXY_HEADERS", false),
		CORSOrigins:       envStr("CORS_ORIGINS", ""),

		RequestDeadline:   time.Duration(envInt("REQUEST_DEADLINE_MS", 45000)) * time.Millisecond,
		AnswerGenDeadline: time.Duration(envInt("ANSWER_GEN_DEADLINE_MS", 60000)) * time.Millisecond,
	}

	if cfg.Environment != "development" {
		if cfg.APIBearerToken == "" {
			return nil, fmt.Errorf("config.Load: API_BEARER_TOKEN is required in %s environment", cfg.Environment)
		}
		if cfg.ChatSigningSecret == "" {
			return nil, fmt.Errorf("config.Load: CHAT_SIGNING_SECRET is required in %s environment", cfg.Environment)
		}
	}

	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
