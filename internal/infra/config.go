package infra

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends selectable through STORAGE_BACKEND.
const (
	StorageBackendLocal  = "local"
	StorageBackendObject = "object"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	DatabaseURL      string
	DBMaxConns       int
	JWTSecret        string
	InternalAPIToken string

	StorageBackend string
	StoragePath    string
	StorageBaseURL string
	ObjectStore    ObjectStoreConfig

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	EnhanceTimeout  time.Duration
	EnhancePrompt   string
	ValidateTimeout time.Duration
	// AttemptTimeout bounds one whole Enhance attempt. It is derived from
	// HTTPWriteTimeout minus ResponseMargin.
	AttemptTimeout time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int

	RetryMaxAttempts       int
	RetryBaseDelay         time.Duration
	SweepInterval          time.Duration
	StaleProcessingMinutes int
	EnhanceAPIURL          string
}

// ObjectStoreConfig carries the S3-compatible backend settings.
type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	PublicURL string
}

// ResponseMargin is reserved at the end of the write timeout for the terminal
// status write and the response itself.
const ResponseMargin = 10 * time.Second

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	appEnv := getEnv("APP_ENV", "development")
	port := getEnv("PORT", "8080")
	defaultBackend := ""
	if appEnv == "development" {
		defaultBackend = StorageBackendLocal
	}
	cfg := &Config{
		AppEnv:           appEnv,
		Port:             port,
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DBMaxConns:       getEnvInt("DB_MAX_CONNS", 10),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		InternalAPIToken: strings.TrimSpace(os.Getenv("INTERNAL_API_TOKEN")),
		StorageBackend:   strings.ToLower(getEnv("STORAGE_BACKEND", defaultBackend)),
		StoragePath:      getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:   getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"),
		ObjectStore: ObjectStoreConfig{
			Endpoint:  strings.TrimSpace(os.Getenv("OBJECT_STORE_ENDPOINT")),
			AccessKey: os.Getenv("OBJECT_STORE_ACCESS_KEY"),
			SecretKey: os.Getenv("OBJECT_STORE_SECRET_KEY"),
			Bucket:    strings.TrimSpace(os.Getenv("OBJECT_STORE_BUCKET")),
			Region:    strings.TrimSpace(os.Getenv("OBJECT_STORE_REGION")),
			UseSSL:    getEnvBool("OBJECT_STORE_USE_SSL", true),
			PublicURL: strings.TrimRight(os.Getenv("OBJECT_STORE_PUBLIC_URL"), "/"),
		},
		GeminiAPIKey:           strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:            getEnv("GEMINI_MODEL", "gemini-2.5-flash-image-preview"),
		GeminiBaseURL:          os.Getenv("GEMINI_BASE_URL"),
		EnhanceTimeout:         time.Second * time.Duration(getEnvInt("ENHANCE_TIMEOUT_SECONDS", 40)),
		EnhancePrompt:          os.Getenv("ENHANCE_PROMPT"),
		ValidateTimeout:        time.Second * time.Duration(getEnvInt("VALIDATE_TIMEOUT_SECONDS", 8)),
		HTTPReadTimeout:        time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:       time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:        time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:        getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		RetryMaxAttempts:       getEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:         time.Second * time.Duration(getEnvInt("RETRY_BASE_DELAY_SECONDS", 2)),
		SweepInterval:          time.Second * time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 30)),
		StaleProcessingMinutes: getEnvInt("STALE_PROCESSING_MINUTES", 10),
		EnhanceAPIURL:          strings.TrimRight(getEnv("ENHANCE_API_URL", "http://localhost:"+port), "/"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if err := cfg.validateStorage(); err != nil {
		return nil, err
	}

	if err := cfg.validateTimeouts(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateTimeouts makes sure an attempt, including the AI call and the result
// check, finishes before the server gives up on the response.
func (c *Config) validateTimeouts() error {
	if c.EnhanceTimeout <= 0 {
		return fmt.Errorf("ENHANCE_TIMEOUT_SECONDS must be positive")
	}
	if c.ValidateTimeout <= 0 {
		return fmt.Errorf("VALIDATE_TIMEOUT_SECONDS must be positive")
	}
	c.AttemptTimeout = c.HTTPWriteTimeout - ResponseMargin
	if need := c.EnhanceTimeout + c.ValidateTimeout; need >= c.AttemptTimeout {
		return fmt.Errorf("ENHANCE_TIMEOUT_SECONDS + VALIDATE_TIMEOUT_SECONDS (%s) must be shorter than HTTP_WRITE_TIMEOUT_SECONDS (%s) minus %s",
			need, c.HTTPWriteTimeout, ResponseMargin)
	}
	return nil
}

// validateStorage refuses to start without a writable backend instead of
// silently falling back to a different one.
func (c *Config) validateStorage() error {
	switch c.StorageBackend {
	case StorageBackendLocal:
		if strings.TrimSpace(c.StoragePath) == "" {
			return fmt.Errorf("STORAGE_PATH is required for the local storage backend")
		}
		if _, err := url.Parse(c.StorageBaseURL); err != nil {
			return fmt.Errorf("STORAGE_BASE_URL is invalid: %w", err)
		}
	case StorageBackendObject:
		var missing []string
		if c.ObjectStore.Endpoint == "" {
			missing = append(missing, "OBJECT_STORE_ENDPOINT")
		}
		if c.ObjectStore.AccessKey == "" {
			missing = append(missing, "OBJECT_STORE_ACCESS_KEY")
		}
		if c.ObjectStore.SecretKey == "" {
			missing = append(missing, "OBJECT_STORE_SECRET_KEY")
		}
		if c.ObjectStore.Bucket == "" {
			missing = append(missing, "OBJECT_STORE_BUCKET")
		}
		if len(missing) > 0 {
			return fmt.Errorf("storage unavailable: object backend requires %s", strings.Join(missing, ", "))
		}
	case "":
		return fmt.Errorf("storage unavailable: STORAGE_BACKEND is required outside development")
	default:
		return fmt.Errorf("storage unavailable: unsupported STORAGE_BACKEND %q", c.StorageBackend)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
