package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Keys     APIKeys
	Ai       AIConfig
	Rag      RagConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type APIKeys struct {
	GoogleGemini string
	OpenAI       string
}

type AIConfig struct {
	EmbeddingProvider string // "gemini", "ollama" or "openai"
	EmbeddingModel    string
	OllamaBaseURL     string
	LLMProvider       string // "ollama" or "openai"
	LLMModel          string // e.g. "llama3", "gpt-4o-mini"
}

type RagConfig struct {
	TopK                int
	SimilarityThreshold float64
	MaxContextDocs      int
	SessionTTL          time.Duration
	MaxSessionMessages  int
	ChunkSize           int
	ChunkOverlap        int
	EmbedBatchSize      int
	EmbedBatchDelay     time.Duration
	EmbedWorkers        int
	SearchTimeout       time.Duration
	GenerateTimeout     time.Duration
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
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			OpenAI:       getEnv("OPENAI_API_KEY", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "gemini"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", ""),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
		},
		Rag: RagConfig{
			TopK:                getEnvAsInt("RAG_TOP_K", 3),
			SimilarityThreshold: getEnvAsFloat("RAG_SIMILARITY_THRESHOLD", 0.1),
			MaxContextDocs:      getEnvAsInt("RAG_MAX_CONTEXT_DOCS", 3),
			SessionTTL:          getEnvAsDuration("SESSION_TTL", 1*time.Hour),
			MaxSessionMessages:  getEnvAsInt("SESSION_MAX_MESSAGES", 50),
			ChunkSize:           getEnvAsInt("CHUNK_SIZE", 1500),
			ChunkOverlap:        getEnvAsInt("CHUNK_OVERLAP", 200),
			EmbedBatchSize:      getEnvAsInt("EMBED_BATCH_SIZE", 10),
			EmbedBatchDelay:     getEnvAsDuration("EMBED_BATCH_DELAY", 200*time.Millisecond),
			EmbedWorkers:        getEnvAsInt("EMBED_WORKERS", 2),
			SearchTimeout:       getEnvAsDuration("RAG_SEARCH_TIMEOUT", 10*time.Second),
			GenerateTimeout:     getEnvAsDuration("RAG_GENERATE_TIMEOUT", 120*time.Second),
		},
	}
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
