package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Supabase (order store)
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	OrdersTable        string

	// Completion endpoint (OpenRouter or any OpenAI-compatible API)
	OpenRouterBaseURL     string
	OpenRouterAPIKey      string
	Model                 string
	CompletionMaxTokens   int
	CompletionTemperature float64
	CompletionTimeout     time.Duration
	HistoryWindow         int

	// Identification sent upstream and used in the persona
	AppURL        string
	AppTitle      string
	AssistantName string

	// Intent tables (YAML overlay on the built-in defaults)
	IntentsFile string

	// API access
	APIJWTSecret       string
	CORSAllowedOrigins []string
}

// LoadDotEnv loads a .env file without overriding variables already set.
func LoadDotEnv(paths ...string) error {
	return godotenv.Load(paths...)
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 0),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 8),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		OrdersTable:        getEnv("ORDERS_TABLE", "orders"),

		OpenRouterBaseURL:     getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterAPIKey:      getEnv("OPENROUTER_API_KEY", ""),
		Model:                 getEnv("OPENROUTER_MODEL", "nvidia/nemotron-3-nano-30b-a3b:free"),
		CompletionMaxTokens:   getEnvInt("COMPLETION_MAX_TOKENS", 1000),
		CompletionTemperature: getEnvFloat("COMPLETION_TEMPERATURE", 0.7),
		CompletionTimeout:     getEnvDuration("COMPLETION_TIMEOUT", 30*time.Second),
		HistoryWindow:         getEnvInt("HISTORY_WINDOW", 10),

		AppURL:        getEnv("APP_URL", "http://localhost:8080"),
		AppTitle:      getEnv("APP_TITLE", "ARKIO Order Tracker"),
		AssistantName: getEnv("ASSISTANT_NAME", "ARKIO"),

		IntentsFile: getEnv("INTENTS_FILE", ""),

		APIJWTSecret:       getEnv("API_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}
}

// Validate reports settings the service cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.SupabaseURL == "" {
		errs = append(errs, errors.New("SUPABASE_URL is required"))
	}
	if c.SupabaseServiceKey == "" && c.SupabaseAnonKey == "" {
		errs = append(errs, errors.New("SUPABASE_SERVICE_ROLE_KEY or SUPABASE_ANON_KEY is required"))
	}
	if c.OpenRouterAPIKey == "" {
		errs = append(errs, errors.New("OPENROUTER_API_KEY is required"))
	}
	if c.HistoryWindow < 0 {
		errs = append(errs, errors.New("HISTORY_WINDOW must not be negative"))
	}
	if c.MaxConcurrency < 1 {
		errs = append(errs, errors.New("MAX_CONCURRENCY must be at least 1"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
