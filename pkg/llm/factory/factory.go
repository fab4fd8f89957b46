package factory

import (
	"fmt"

	"ai-report-be/pkg/llm"
	"ai-report-be/pkg/llm/huggingface"
	"ai-report-be/pkg/llm/ollama"
)

func NewLLMProvider(providerType, modelName, baseURL, apiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "huggingface", "openai":
		if apiKey == "" {
			return nil, fmt.Errorf("%s provider requires an api key", providerType)
		}
		return huggingface.NewHuggingFaceProvider(apiKey, baseURL, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
