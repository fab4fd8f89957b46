package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"ai-report-be/pkg/mapreduce"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Keys      APIKeys
	Ai        AIConfig
	Pipeline  PipelineConfig
	Retrieval RetrievalConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	StatusStore        string        // "memory" or "redis"
	StatusTTL          time.Duration // how long run status stays queryable
	JwtSecret          string        // empty disables auth on the API
}

type DatabaseConfig struct {
	Connection string
}

type APIKeys struct {
	GoogleGemini    string
	HuggingFace     string
	Jina            string
	IndexTopic      string // watermill topic for document indexing
	ReportTopic     string // watermill topic for queued report runs
	ReportRequested string // NATS subject for externally requested runs
}

type AIConfig struct {
	EmbeddingProvider string // "gemini", "ollama" or "jina"
	OllamaBaseURL     string
	OllamaModel       string // embedding model
	LLMProvider       string // "ollama" or "huggingface"
	LLMModel          string // e.g. "llama3", "qwen2.5"
	LLMBaseURL        string
	RequestsPerMinute int // shared client-side rate limit, 0 disables
	RateBurst         int
	PromptsFile       string // optional YAML with extract/synthesize templates
}

type PipelineConfig struct {
	MaxConcurrency        int
	MaxRetries            int
	PerCallTimeout        time.Duration
	RunTimeout            time.Duration
	AllowPartialOnTimeout bool
	ShortCircuitOnEmpty   bool
	BackoffInitial        time.Duration
	BackoffMax            time.Duration
}

type RetrievalConfig struct {
	TopK         int
	Threshold    float64
	EnableVector bool
	EnableText   bool
	MaxDocuments int
	ChunkSize    int
	ChunkOverlap int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			StatusStore:        getEnv("STATUS_STORE", "memory"),
			StatusTTL:          getEnvAsDuration("STATUS_TTL", 24*time.Hour),
			JwtSecret:          getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			GoogleGemini:    getEnv("GOOGLE_GEMINI_API_KEY", ""),
			HuggingFace:     getEnv("HUGGINGFACE_API_KEY", ""),
			Jina:            getEnv("JINA_API_KEY", ""),
			IndexTopic:      getEnv("INDEX_DOCUMENT_TOPIC_NAME", "INDEX_DOCUMENT"),
			ReportTopic:     getEnv("RUN_REPORT_TOPIC_NAME", "RUN_REPORT"),
			ReportRequested: getEnv("REPORT_REQUESTED_SUBJECT", "events.report.requested"),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", ""),
			RequestsPerMinute: getEnvAsInt("LLM_REQUESTS_PER_MINUTE", 0),
			RateBurst:         getEnvAsInt("LLM_RATE_BURST", 5),
			PromptsFile:       getEnv("PROMPTS_FILE", ""),
		},
		Pipeline: PipelineConfig{
			MaxConcurrency:        getEnvAsInt("PIPELINE_MAX_CONCURRENCY", 5),
			MaxRetries:            getEnvAsInt("PIPELINE_MAX_RETRIES", 3),
			PerCallTimeout:        getEnvAsDuration("PIPELINE_PER_CALL_TIMEOUT", 60*time.Second),
			RunTimeout:            getEnvAsDuration("PIPELINE_RUN_TIMEOUT", 10*time.Minute),
			AllowPartialOnTimeout: getEnvAsBool("PIPELINE_ALLOW_PARTIAL_ON_TIMEOUT", false),
			ShortCircuitOnEmpty:   getEnvAsBool("PIPELINE_SHORT_CIRCUIT_ON_EMPTY", false),
			BackoffInitial:        getEnvAsDuration("PIPELINE_BACKOFF_INITIAL", 500*time.Millisecond),
			BackoffMax:            getEnvAsDuration("PIPELINE_BACKOFF_MAX", 10*time.Second),
		},
		Retrieval: RetrievalConfig{
			TopK:         getEnvAsInt("RETRIEVAL_TOP_K", 10),
			Threshold:    getEnvAsFloat("RETRIEVAL_THRESHOLD", 0.35),
			EnableVector: getEnvAsBool("RETRIEVAL_ENABLE_VECTOR", true),
			EnableText:   getEnvAsBool("RETRIEVAL_ENABLE_TEXT", true),
			MaxDocuments: getEnvAsInt("RETRIEVAL_MAX_DOCUMENTS", 20),
			ChunkSize:    getEnvAsInt("CHUNK_SIZE", 1500),
			ChunkOverlap: getEnvAsInt("CHUNK_OVERLAP", 200),
		},
	}
}

// MapReduce converts the pipeline settings into the engine configuration.
func (p PipelineConfig) MapReduce() mapreduce.Config {
	cfg := mapreduce.DefaultConfig()
	cfg.MaxConcurrency = p.MaxConcurrency
	cfg.MaxRetries = p.MaxRetries
	cfg.PerCallTimeout = p.PerCallTimeout
	cfg.RunTimeout = p.RunTimeout
	cfg.AllowPartialOnTimeout = p.AllowPartialOnTimeout
	cfg.ShortCircuitOnEmpty = p.ShortCircuitOnEmpty
	cfg.BackoffInitial = p.BackoffInitial
	cfg.BackoffMax = p.BackoffMax
	return cfg
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
