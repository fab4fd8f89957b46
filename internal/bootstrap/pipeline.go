package bootstrap

import (
	"fmt"

	"ai-report-be/internal/config"
	"ai-report-be/internal/pkg/logger"
	"ai-report-be/internal/repository/unitofwork"
	"ai-report-be/internal/service"
	"ai-report-be/pkg/embedding"
	"ai-report-be/pkg/embedding/jina"
	"ai-report-be/pkg/llm"
	"ai-report-be/pkg/llm/factory"
	"ai-report-be/pkg/mapreduce"
	"ai-report-be/pkg/retrieval"
)

// Pipeline holds the collaborators shared by every report run.
type Pipeline struct {
	LLM         llm.LLMProvider
	Embedder    embedding.EmbeddingProvider
	Extractor   mapreduce.Extractor
	Synthesizer mapreduce.Synthesizer
	Sources     service.SourceFactory
	Config      mapreduce.Config
}

func NewEmbeddingProvider(cfg *config.Config, log logger.ILogger) embedding.EmbeddingProvider {
	switch cfg.Ai.EmbeddingProvider {
	case "ollama":
		log.Info("BOOTSTRAP", "Using embedding provider", map[string]interface{}{"provider": "ollama", "model": cfg.Ai.OllamaModel})
		return embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)
	case "jina":
		log.Info("BOOTSTRAP", "Using embedding provider", map[string]interface{}{"provider": "jina"})
		return jina.NewJinaProvider(cfg.Keys.Jina, "")
	default:
		log.Info("BOOTSTRAP", "Using embedding provider", map[string]interface{}{"provider": "gemini"})
		return embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
	}
}

func NewLLM(cfg *config.Config, log logger.ILogger) (llm.LLMProvider, error) {
	baseURL := cfg.Ai.LLMBaseURL
	if baseURL == "" && cfg.Ai.LLMProvider == "ollama" {
		baseURL = cfg.Ai.OllamaBaseURL
	}

	provider, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.LLMModel, baseURL, cfg.Keys.HuggingFace)
	if err != nil {
		return nil, err
	}
	log.Info("BOOTSTRAP", "Using LLM provider", map[string]interface{}{
		"provider":            cfg.Ai.LLMProvider,
		"model":               cfg.Ai.LLMModel,
		"requests_per_minute": cfg.Ai.RequestsPerMinute,
	})

	return llm.NewRateLimitedProvider(provider, cfg.Ai.RequestsPerMinute, cfg.Ai.RateBurst), nil
}

// NewPipeline wires providers, prompts and retrieval for report runs.
func NewPipeline(cfg *config.Config, uowFactory unitofwork.RepositoryFactory, log logger.ILogger) (*Pipeline, error) {
	provider, err := NewLLM(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}

	prompts := mapreduce.DefaultPrompts()
	if cfg.Ai.PromptsFile != "" {
		prompts, err = mapreduce.LoadPrompts(cfg.Ai.PromptsFile)
		if err != nil {
			return nil, fmt.Errorf("prompts: %w", err)
		}
		log.Info("BOOTSTRAP", "Loaded prompt templates", map[string]interface{}{"file": cfg.Ai.PromptsFile})
	}

	pipelineCfg := cfg.Pipeline.MapReduce()
	embedder := NewEmbeddingProvider(cfg, log)

	return &Pipeline{
		LLM:         provider,
		Embedder:    embedder,
		Extractor:   mapreduce.NewLLMExtractor(provider, prompts),
		Synthesizer: mapreduce.NewLLMSynthesizer(provider, prompts, pipelineCfg.Separator),
		Sources:     NewSourceFactory(cfg.Retrieval, embedder, uowFactory, log),
		Config:      pipelineCfg,
	}, nil
}

// NewSourceFactory builds the hybrid retrieval source for a collection.
func NewSourceFactory(rc config.RetrievalConfig, embedder embedding.EmbeddingProvider, uowFactory unitofwork.RepositoryFactory, log logger.ILogger) service.SourceFactory {
	return func(collection string) mapreduce.DocumentSource {
		sc := retrieval.Config{
			TopK:       rc.TopK,
			Threshold:  rc.Threshold,
			Collection: collection,
		}

		var sources []retrieval.NamedSource
		if rc.EnableVector {
			sources = append(sources, retrieval.NamedSource{
				Name:   "vector",
				Source: retrieval.NewVectorSource(embedder, uowFactory, sc, log),
			})
		}
		if rc.EnableText {
			sources = append(sources, retrieval.NamedSource{
				Name:   "lexical",
				Source: retrieval.NewLexicalSource(uowFactory, sc, log),
			})
		}

		return retrieval.NewEnsembleSource(log, sources, retrieval.WithMaxResults(rc.MaxDocuments))
	}
}
