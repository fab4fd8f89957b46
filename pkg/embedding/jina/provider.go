package jina

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai-report-be/pkg/embedding"
	"ai-report-be/pkg/llm"
)

type JinaProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

var _ embedding.EmbeddingProvider = (*JinaProvider)(nil)

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewJinaProvider(apiKey, baseURL string) *JinaProvider {
	if baseURL == "" {
		baseURL = "https://api.jina.ai/v1/embeddings"
	}
	return &JinaProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   "jina-embeddings-v2-base-en", // 768 dimensions, same column as the other providers
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *JinaProvider) Generate(ctx context.Context, text string, taskType string) (*embedding.EmbeddingResponse, error) {
	reqBody := embeddingRequest{
		Model: p.model,
		Input: []string{text},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.apiKey))

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &llm.StatusError{Provider: "jina", StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var jinaResp embeddingResponse
	if err := json.Unmarshal(bodyBytes, &jinaResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if jinaResp.Error != nil {
		return nil, fmt.Errorf("jina api returned error: %s", jinaResp.Error.Message)
	}

	if len(jinaResp.Data) == 0 {
		return nil, fmt.Errorf("empty embeddings from jina api")
	}

	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{
			Values: jinaResp.Data[0].Embedding,
		},
	}, nil
}
