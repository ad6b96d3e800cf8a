package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2/google"

	"github.com/veritas-legal/clausecore/internal/service"
)

// VertexEmbedder implements service.Embedder by calling the Vertex AI
// text embedding REST API with the RETRIEVAL_QUERY task type, matching
// the asymmetric embedding space ingestion used for document chunks.
type VertexEmbedder struct {
	project  string
	location string
	model    string
	client   *http.Client
}

func NewVertexEmbedder(ctx context.Context, project, location, model string) (*VertexEmbedder, error) {
	client, err := google.DefaultClient(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return nil, fmt.Errorf("provider.NewVertexEmbedder: %w", err)
	}
	return &VertexEmbedder{project: project, location: location, model: model, client: client}, nil
}

var _ service.Embedder = (*VertexEmbedder)(nil)

type embeddingRequest struct {
	Instances []embeddingInstance `json:"instances"`
}

type embeddingInstance struct {
	Content  string `json:"content"`
	TaskType string `json:"task_type"`
}

type embeddingResponse struct {
	Predictions []struct {
		Embeddings struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	} `json:"predictions"`
}

// Embed generates query-task embeddings for texts, retrying on
// transient rate limiting.
func (a *VertexEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return withRetry(ctx, "Embed", func() ([][]float32, error) {
		return a.doEmbed(ctx, texts)
	})
}

func (a *VertexEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	instances := make([]embeddingInstance, len(texts))
	for i, t := range texts {
		instances[i] = embeddingInstance{Content: t, TaskType: "RETRIEVAL_QUERY"}
	}

	reqBody, err := json.Marshal(embeddingRequest{Instances: instances})
	if err != nil {
		return nil, fmt.Errorf("provider.Embed: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.endpointURL(), bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("provider.Embed: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider.Embed: call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("provider.Embed: status %d: %s", resp.StatusCode, body)
	}

	var embResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, fmt.Errorf("provider.Embed: decode: %w", err)
	}

	results := make([][]float32, len(embResp.Predictions))
	for i, p := range embResp.Predictions {
		results[i] = p.Embeddings.Values
	}
	return results, nil
}

func (a *VertexEmbedder) endpointURL() string {
	if a.location == "global" {
		return fmt.Sprintf(
			"https://aiplatform.googleapis.com/v1/projects/%s/locations/global/publishers/google/models/%s:predict",
			a.project, a.model,
		)
	}
	return fmt.Sprintf(
		"https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
		a.location, a.project, a.location, a.model,
	)
}
