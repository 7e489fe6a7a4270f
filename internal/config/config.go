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
	SMTP     SMTPConfig
	Keys     APIKeys
	Ai       AIConfig
	Rag      RagConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
	// AlertEmail receives ingestion failure alerts. Leave empty to disable.
	AlertEmail string
}

type APIKeys struct {
	GoogleGemini string
	HuggingFace  string
	JinaAi       string
	IngestTopic  string // Paper ingestion job topic
}

type AIConfig struct {
	EmbeddingProvider string // "gemini", "ollama" or "jina"
	OllamaBaseURL     string
	OllamaModel       string // embedding model
	LLMProvider       string // "ollama", "gemini" or "huggingface"
	LLMModel          string // e.g. "llama3", "gemini-1.5-flash"
	LLMBaseURL        string
	GenerateTimeout   time.Duration
	EmbedTimeout      time.Duration
}

type RagConfig struct {
	// DefaultRoute is where bare messages (no @paper/@ai token) go.
	DefaultRoute  string
	TopK          int
	HistoryWindow int
	ChunkSize     int
	ChunkOverlap  int
	// ScoreThreshold floors pgvector semantic search, not the chat index.
	ScoreThreshold    float64
	IngestAutoRetry   bool
	IngestMaxAttempts int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "PaperChat"),
			AlertEmail: getEnv("INGEST_ALERT_EMAIL", ""),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			HuggingFace:  getEnv("HUGGINGFACE_API_KEY", ""),
			JinaAi:       getEnv("JINA_API_KEY", ""),
			IngestTopic:  getEnv("INGEST_PAPER_TOPIC_NAME", "INGEST_PAPER"),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", ""),
			GenerateTimeout:   getEnvAsDuration("LLM_GENERATE_TIMEOUT", 60*time.Second),
			EmbedTimeout:      getEnvAsDuration("EMBED_TIMEOUT", 30*time.Second),
		},
		Rag: RagConfig{
			DefaultRoute:      getEnv("RAG_DEFAULT_ROUTE", "direct"),
			TopK:              getEnvAsInt("RAG_TOP_K", 4),
			HistoryWindow:     getEnvAsInt("RAG_HISTORY_WINDOW", 10),
			ChunkSize:         getEnvAsInt("RAG_CHUNK_SIZE", 1500),
			ChunkOverlap:      getEnvAsInt("RAG_CHUNK_OVERLAP", 200),
			ScoreThreshold:    getEnvAsFloat("RAG_SCORE_THRESHOLD", 0.35),
			IngestAutoRetry:   getEnvAsBool("INGEST_AUTO_RETRY", false),
			IngestMaxAttempts: getEnvAsInt("INGEST_MAX_ATTEMPTS", 3),
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
