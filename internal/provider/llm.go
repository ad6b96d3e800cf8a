package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"golang.org/x/oauth2/google"

	"github.com/veritas-legal/clausecore/internal/service"
)

// VertexLLM implements service.LLM against a single Vertex AI Gemini
// model. Both the reranker and the answer generator share one
// instance; neither cares which vendor backs it.
type VertexLLM struct {
	client     *genai.Client
	httpClient *http.Client
	project    string
	location   string
	model      string
	useREST    bool
}

// NewVertexLLM creates a VertexLLM. For location "global" it falls back
// to the REST API, since the SDK does not support the global endpoint.
func NewVertexLLM(ctx context.Context, project, location, model string) (*VertexLLM, error) {
	if location == "global" {
		httpClient, err := google.DefaultClient(ctx, "https://www.googleapis.com/auth/cloud-platform")
		if err != nil {
			return nil, fmt.Errorf("provider.NewVertexLLM: default credentials: %w", err)
		}
		return &VertexLLM{httpClient: httpClient, project: project, location: location, model: model, useREST: true}, nil
	}

	client, err := genai.NewClient(ctx, project, location)
	if err != nil {
		return nil, fmt.Errorf("provider.NewVertexLLM: %w", err)
	}
	return &VertexLLM{client: client, project: project, location: location, model: model}, nil
}

var _ service.LLM = (*VertexLLM)(nil)

func (a *VertexLLM) ModelID() string { return a.model }

// Complete sends one grounded completion request and returns the text
// plus usage metadata. Retries on 429/RESOURCE_EXHAUSTED; all other
// failures are wrapped as a typed service.LLMError.
func (a *VertexLLM) Complete(ctx context.Context, system, user string, opts service.LLMOptions) (service.LLMResult, error) {
	result, err := withRetry(ctx, "Complete", func() (service.LLMResult, error) {
		if a.useREST {
			return a.generateREST(ctx, system, user, opts)
		}
		return a.generate(ctx, system, user, opts)
	})
	if err != nil {
		return service.LLMResult{}, classifyLLMError(ctx, err)
	}
	return result, nil
}

type restGenerateRequest struct {
	Contents          []restContent         `json:"contents"`
	SystemInstruction *restContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *restGenerationConfig `json:"generationConfig,omitempty"`
}

type restContent struct {
	Role  string     `json:"role"`
	Parts []restPart `json:"parts"`
}

type restPart struct {
	Text string `json:"text"`
}

type restGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type restGenerateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// generateREST calls the global-endpoint REST API, used when the SDK
// cannot reach location "global" directly.
func (a *VertexLLM) generateREST(ctx context.Context, system, user string, opts service.LLMOptions) (service.LLMResult, error) {
	url := fmt.Sprintf(
		"https://aiplatform.googleapis.com/v1/projects/%s/locations/global/publishers/google/models/%s:generateContent",
		a.project, a.model,
	)

	temp := opts.Temperature
	reqBody := restGenerateRequest{
		Contents:         []restContent{{Role: "user", Parts: []restPart{{Text: user}}}},
		GenerationConfig: &restGenerationConfig{Temperature: &temp},
	}
	if opts.MaxTokens > 0 {
		reqBody.GenerationConfig.MaxOutputTokens = &opts.MaxTokens
	}
	if system != "" {
		reqBody.SystemInstruction = &restContent{Role: "user", Parts: []restPart{{Text: system}}}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return service.LLMResult{}, fmt.Errorf("provider.Complete: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return service.LLMResult{}, fmt.Errorf("provider.Complete: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return service.LLMResult{}, fmt.Errorf("provider.Complete: call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return service.LLMResult{}, fmt.Errorf("provider.Complete: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return service.LLMResult{}, fmt.Errorf("provider.Complete: status %d: %s", resp.StatusCode, respBody)
	}

	var genResp restGenerateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return service.LLMResult{}, fmt.Errorf("provider.Complete: decode: %w", err)
	}
	if genResp.Error != nil {
		return service.LLMResult{}, fmt.Errorf("provider.Complete: API error %d: %s", genResp.Error.Code, genResp.Error.Message)
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return service.LLMResult{}, fmt.Errorf("provider.Complete: empty response from model")
	}

	var parts []string
	for _, p := range genResp.Candidates[0].Content.Parts {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}

	return service.LLMResult{
		Text:         strings.Join(parts, ""),
		InputTokens:  genResp.UsageMetadata.PromptTokenCount,
		OutputTokens: genResp.UsageMetadata.CandidatesTokenCount,
	}, nil
}

func (a *VertexLLM) generate(ctx context.Context, system, user string, opts service.LLMOptions) (service.LLMResult, error) {
	model := a.client.GenerativeModel(a.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	temp := float32(opts.Temperature)
	model.Temperature = &temp
	if opts.MaxTokens > 0 {
		maxTokens := int32(opts.MaxTokens)
		model.MaxOutputTokens = &maxTokens
	}

	resp, err := model.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return service.LLMResult{}, fmt.Errorf("provider.Complete: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return service.LLMResult{}, fmt.Errorf("provider.Complete: empty response from model")
	}

	var parts []string
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			parts = append(parts, string(t))
		}
	}

	inputTokens, outputTokens := 0, 0
	if resp.UsageMetadata != nil {
		inputTokens = int(resp.UsageMetadata.PromptTokenCount)
		outputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return service.LLMResult{Text: strings.Join(parts, ""), InputTokens: inputTokens, OutputTokens: outputTokens}, nil
}

func classifyLLMError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return &service.LLMError{Kind: service.LLMErrorTimeout, Err: err}
	}
	if isRetryableError(err) {
		return &service.LLMError{Kind: service.LLMErrorRateLimit, Err: err}
	}
	return &service.LLMError{Kind: service.LLMErrorTransport, Err: err}
}

// Close releases the underlying client.
func (a *VertexLLM) Close() {
	if a.client != nil {
		a.client.Close()
	}
}
