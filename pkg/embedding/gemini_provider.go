package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai-report-be/pkg/llm"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1"

type geminiContentPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiContentPart `json:"parts"`
}

type geminiEmbeddingRequest struct {
	Model    string        `json:"model"`
	Content  geminiContent `json:"content"`
	TaskType string        `json:"task_type,omitempty"`
}

type GeminiProvider struct {
	ApiKey  string
	BaseURL string
	Model   string
	Client  *http.Client
}

func NewGeminiProvider(apiKey string) EmbeddingProvider {
	return &GeminiProvider{
		ApiKey:  apiKey,
		BaseURL: geminiBaseURL,
		Model:   "text-embedding-004",
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *GeminiProvider) Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error) {
	geminiReq := geminiEmbeddingRequest{
		Model: p.Model,
		Content: geminiContent{
			Parts: []geminiContentPart{{Text: text}},
		},
		TaskType: taskType,
	}
	geminiReqJson, err := json.Marshal(geminiReq)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/models/%s:embedContent", p.BaseURL, p.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(geminiReqJson))
	if err != nil {
		return nil, err
	}

	req.Header.Set("x-goog-api-key", p.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request: %w", err)
	}
	defer res.Body.Close()

	resByte, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	if res.StatusCode != http.StatusOK {
		return nil, &llm.StatusError{Provider: "gemini-embedding", StatusCode: res.StatusCode, Body: string(resByte)}
	}

	var resEmbedding EmbeddingResponse
	if err := json.Unmarshal(resByte, &resEmbedding); err != nil {
		return nil, err
	}
	return &resEmbedding, nil
}
