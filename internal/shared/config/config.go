package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultMaxUploadBytes = 5 << 20

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	Env             string
	LogLevel        string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	MinIOEndpoint   string
	MinIOAccessKey  string
	MinIOSecretKey  string
	MinIOBucket     string
	MinIOUseSSL     bool
	GCSBucket       string
	GCSPrefix       string

	MaxUploadBytes int64

	TesseractBin  string
	TesseractLang string
	TessdataDir   string
	PDFMaxPages   int
	OCRMaxPixels  int64

	LLMProvider    string
	LLMModel       string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	LLMTimeout     time.Duration
	GCPProjectID   string
	VertexAIRegion string
	LLMRetryDelay  time.Duration

	UploadRatePerSecond float64
	UploadRateBurst     int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	provider := normalizeProvider(getEnv("LLM_PROVIDER", "openai"))

	cfg := Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000")),
		Env:             env,
		LogLevel:        getEnv("LOG_LEVEL", "info"),

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", os.TempDir()),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", "staging/"),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		MinIOEndpoint:   getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:  getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:  getEnv("MINIO_SECRET_KEY", ""),
		MinIOBucket:     getEnv("MINIO_BUCKET", ""),
		MinIOUseSSL:     getEnvBool("MINIO_USE_SSL", false),
		GCSBucket:       getEnv("GCS_BUCKET", ""),
		GCSPrefix:       getEnv("GCS_PREFIX", "staging/"),

		MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", defaultMaxUploadBytes),

		TesseractBin:  getEnv("TESSERACT_BIN", "tesseract"),
		TesseractLang: getEnv("TESSERACT_LANG", "eng"),
		TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
		PDFMaxPages:   getEnvInt("PDF_MAX_PAGES", 0),
		OCRMaxPixels:  getEnvInt64("OCR_MAX_PIXELS", 40_000_000),

		LLMProvider:    provider,
		LLMModel:       getEnv("LLM_MODEL", defaultModel(provider)),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", ""),
		LLMTimeout:     time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", getEnvInt("OPENAI_TIMEOUT_SECONDS", 120))) * time.Second,
		GCPProjectID:   getEnv("GCP_PROJECT_ID", ""),
		VertexAIRegion: getEnv("VERTEX_AI_REGION", "us-central1"),
		LLMRetryDelay:  getEnvDuration("LLM_RETRY_DELAY", 300*time.Millisecond),

		UploadRatePerSecond: getEnvFloat("UPLOAD_RATE_PER_SECOND", 0.5),
		UploadRateBurst:     getEnvInt("UPLOAD_RATE_BURST", 5),
	}

	if env == "production" && cfg.LLMProvider == "openai" && cfg.OpenAIAPIKey == "" {
		log.Printf("OPENAI_API_KEY is required in production")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	return cfg
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "minio":
		return "minio"
	case "gcs", "gcp":
		return "gcs"
	default:
		return "local"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "gemini", "vertex", "vertexai":
		return "gemini"
	case "none", "placeholder":
		return "none"
	default:
		return "openai"
	}
}

func defaultModel(provider string) string {
	switch provider {
	case "gemini":
		return "gemini-1.5-pro"
	case "none":
		return ""
	default:
		return "gpt-4o-mini"
	}
}
