package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Qdrant      QdrantConfig
	PrimaryLLM  PrimaryLLMConfig
	Analyzer    AnalyzerConfig
	Transcriber TranscriberConfig
	Media       MediaConfig
	Evaluation  EvaluationConfig
	Worker      WorkerConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
}

// PrimaryLLMConfig selects the tier-1 backend. The gemini backend needs an
// API key, the vertex backend a Google Cloud project.
type PrimaryLLMConfig struct {
	APIKey   string
	Backend  string
	Model    string
	Project  string
	Location string
}

type AnalyzerConfig struct {
	Temperature        float32
	TopP               float32
	TopK               float32
	MaxTokens          int32
	ContextualFallback bool
	SecondaryModel     string
}

type TranscriberConfig struct {
	OpenAIAPIKey string
	BaseURL      string
	ModelSize    string
	LanguageHint string
}

type MediaConfig struct {
	FetchTimeout     time.Duration
	MaxBytes         int64
	ScratchDir       string
	FFmpegPath       string
	ExtractionEnable bool
}

type EvaluationConfig struct {
	ForceOnRequest  bool
	BulkConcurrency int
}

type WorkerConfig struct {
	Concurrency      int
	AutoEvaluateTick time.Duration
	RabbitMQURL      string
	RabbitMQQueue    string
}

const (
	BackendGemini = "gemini"
	BackendVertex = "vertex"
)

var modelSizes = map[string]bool{
	"tiny":   true,
	"base":   true,
	"small":  true,
	"medium": true,
	"large":  true,
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using environment and default values.")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "3000"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "interview_evaluator"),
		},
		Qdrant: QdrantConfig{
			URL:        getEnv("QDRANT_URL", ""),
			APIKey:     getEnv("QDRANT_API_KEY", ""),
			Collection: getEnv("QDRANT_COLLECTION", "interview_rubrics"),
		},
		PrimaryLLM: PrimaryLLMConfig{
			APIKey:   getEnv("PRIMARY_LLM_API_KEY", ""),
			Backend:  strings.ToLower(getEnv("PRIMARY_LLM_BACKEND", BackendGemini)),
			Model:    getEnv("PRIMARY_LLM_MODEL", "gemini-2.5-flash"),
			Project:  getEnv("GOOGLE_CLOUD_PROJECT", ""),
			Location: getEnv("GOOGLE_CLOUD_LOCATION", "us-central1"),
		},
		Analyzer: AnalyzerConfig{
			Temperature:        getEnvAsFloat32("ANALYZER_TEMPERATURE", 0.7),
			TopP:               getEnvAsFloat32("ANALYZER_TOP_P", 0.8),
			TopK:               getEnvAsFloat32("ANALYZER_TOP_K", 40),
			MaxTokens:          int32(getEnvAsInt("ANALYZER_MAX_TOKENS", 2048)),
			ContextualFallback: getEnvAsBool("ANALYZER_CONTEXTUAL_FALLBACK", true),
			SecondaryModel:     getEnv("SECONDARY_CLASSIFIER_MODEL", "text-embedding-3-small"),
		},
		Transcriber: TranscriberConfig{
			OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
			BaseURL:      getEnv("TRANSCRIBER_BASE_URL", ""),
			ModelSize:    normalizeModelSize(getEnv("TRANSCRIBER_MODEL_SIZE", "base")),
			LanguageHint: getEnv("TRANSCRIBER_LANGUAGE_HINT", ""),
		},
		Media: MediaConfig{
			FetchTimeout:     time.Duration(getEnvAsInt("MEDIA_FETCH_TIMEOUT_SECONDS", 60)) * time.Second,
			MaxBytes:         getEnvAsInt64("MEDIA_MAX_BYTES", 524288000),
			ScratchDir:       getEnv("SCRATCH_DIR", filepath.Join(os.TempDir(), "interview-scratch")),
			FFmpegPath:       getEnv("FFMPEG_PATH", "ffmpeg"),
			ExtractionEnable: getEnvAsBool("AUDIO_EXTRACTION_ENABLED", true),
		},
		Evaluation: EvaluationConfig{
			ForceOnRequest:  getEnvAsBool("EVALUATION_FORCE_ON_REQUEST", false),
			BulkConcurrency: getEnvAsInt("BULK_CONCURRENCY", 3),
		},
		Worker: WorkerConfig{
			Concurrency:      getEnvAsInt("WORKER_CONCURRENCY", 3),
			AutoEvaluateTick: getEnvAsDuration("AUTO_EVALUATE_INTERVAL", "0s"),
			RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
			RabbitMQQueue:    getEnv("RABBITMQ_QUEUE", "evaluation_queue"),
		},
	}

	return cfg
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// PrimaryLLMConfigured reports whether tier-1 analysis has what it needs to
// build a client.
func (c *Config) PrimaryLLMConfigured() bool {
	if c.PrimaryLLM.Backend == BackendVertex {
		return c.PrimaryLLM.Project != ""
	}
	return c.PrimaryLLM.APIKey != ""
}

func normalizeModelSize(size string) string {
	size = strings.ToLower(strings.TrimSpace(size))
	if !modelSizes[size] {
		log.Printf("⚠️  Unknown TRANSCRIBER_MODEL_SIZE %q, using base\n", size)
		return "base"
	}
	return size
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 32); err == nil {
		return float32(value)
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
