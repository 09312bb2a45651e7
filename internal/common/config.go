package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	OCR       OCRConfig
	RateLimit RateLimitConfig
	Auth      AuthConfig
	Inventory InventoryConfig
	Archive   ArchiveConfig
	Log       LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr string
	GRPCAddr string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // "sqlite" | "postgres"
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// OCRConfig holds provider and normalization settings
type OCRConfig struct {
	Provider       string // "gemini" | "vertex" | "tesseract"
	APIKey         string
	Model          string
	VertexProject  string
	VertexRegion   string
	Prompt         string
	Temperature    float32
	Timeout        time.Duration
	MaxUploadBytes int64
	MaxPDFPages    int
	TotalTolerance float64
	TesseractLang  string
	TessdataDir    string
}

// RateLimitConfig holds per-caller and global throttling settings
type RateLimitConfig struct {
	Window time.Duration
	RPS    float64
	Burst  int
}

type AuthConfig struct {
	JWTSecret string
}

type InventoryConfig struct {
	BaseURL string
	Timeout time.Duration
}

type ArchiveConfig struct {
	Bucket string
}

type LogConfig struct {
	Level     string
	Format    string // "text" | "json"
	AddSource bool
}

// LoadConfig loads configuration from a .env file (if present) and environment variables
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			HTTPAddr: getEnv("HTTP_ADDR", ":8000"),
			GRPCAddr: os.Getenv("GRPC_ADDR"),
		},
		Database: DatabaseConfig{
			Driver:           strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			DSN:              getEnv("DB_URL", "file:zatobox-ocr.db"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		OCR: OCRConfig{
			Provider:       strings.ToLower(getEnv("OCR_PROVIDER", "gemini")),
			APIKey:         getEnv("GEMINI_API_KEY", ""),
			Model:          getEnv("GEMINI_MODEL", "gemini-2.0-flash-001"),
			VertexProject:  getEnv("VERTEX_PROJECT", ""),
			VertexRegion:   getEnv("VERTEX_REGION", "us-central1"),
			Prompt:         getEnv("OCR_PROMPT", ""),
			Temperature:    getEnvAsFloat32("OCR_TEMPERATURE", 0),
			Timeout:        getEnvAsDuration("OCR_TIMEOUT", 60*time.Second),
			MaxUploadBytes: int64(getEnvAsInt("OCR_MAX_UPLOAD_BYTES", 10<<20)),
			MaxPDFPages:    getEnvAsInt("OCR_MAX_PDF_PAGES", 10),
			TotalTolerance: getEnvAsFloat64("OCR_TOTAL_TOLERANCE", 0.02),
			TesseractLang:  getEnv("TESSERACT_LANG", "spa"),
			TessdataDir:    getEnv("TESSDATA_PREFIX", ""),
		},
		RateLimit: RateLimitConfig{
			Window: getEnvAsDuration("OCR_RATE_LIMIT_WINDOW", 300*time.Second),
			RPS:    getEnvAsFloat64("RATE_LIMIT_RPS", 10),
			Burst:  getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Inventory: InventoryConfig{
			BaseURL: strings.TrimRight(getEnv("INVENTORY_BASE_URL", ""), "/"),
			Timeout: getEnvAsDuration("INVENTORY_TIMEOUT", 30*time.Second),
		},
		Archive: ArchiveConfig{
			Bucket: getEnv("OCR_ARCHIVE_BUCKET", ""),
		},
		Log: LogConfig{
			Level:     strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format:    strings.ToLower(getEnv("LOG_FORMAT", "text")),
			AddSource: getEnvAsBool("LOG_ADD_SOURCE", false),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("5m") and bare seconds ("300").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// Validate checks structural settings. Missing provider credentials are reported
// per request instead, so the API can still start and answer health checks.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be sqlite or postgres", ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	switch c.OCR.Provider {
	case "gemini", "vertex", "tesseract":
	default:
		return NewAppError("CONFIG_ERROR", "OCR_PROVIDER must be gemini, vertex or tesseract", ErrInvalidInput)
	}
	if c.OCR.TotalTolerance < 0 {
		return NewAppError("CONFIG_ERROR", "OCR_TOTAL_TOLERANCE must not be negative", ErrInvalidInput)
	}
	if c.RateLimit.Window < 0 {
		return NewAppError("CONFIG_ERROR", "OCR_RATE_LIMIT_WINDOW must not be negative", ErrInvalidInput)
	}
	if c.OCR.MaxUploadBytes <= 0 {
		return NewAppError("CONFIG_ERROR", "OCR_MAX_UPLOAD_BYTES must be positive", ErrInvalidInput)
	}
	return nil
}
