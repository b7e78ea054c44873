package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	DatabaseURL      string
	JWTSecret        string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	QuotaStore       string
	DeepSeekAPIKey   string
	DeepSeekModel    string
	DeepSeekBaseURL  string
	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIBaseURL    string
	GeoIPDBPath      string
	DefaultLocale    string
	AllowedOrigins   []string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	StageTimeout     time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:          getEnv("APP_ENV", "development"),
		Port:            getEnv("PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		QuotaStore:      getEnv("QUOTA_STORE", "postgres"),
		DeepSeekAPIKey:  os.Getenv("DEEPSEEK_API_KEY"),
		DeepSeekModel:   getEnv("DEEPSEEK_MODEL", "deepseek-chat"),
		DeepSeekBaseURL: getEnv("DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		GeoIPDBPath:     os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:   getEnv("DEFAULT_LOCALE", "en"),
		AllowedOrigins:  getEnvList("ALLOWED_ORIGINS"),
		HTTPReadTimeout: time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		// generation streams stay open for the full stage duration
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 300)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		StageTimeout:     time.Second * time.Duration(getEnvInt("STAGE_TIMEOUT_SECONDS", 120)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	switch cfg.QuotaStore {
	case "postgres", "redis":
	default:
		return nil, fmt.Errorf("unsupported QUOTA_STORE %q", cfg.QuotaStore)
	}

	if cfg.QuotaStore == "redis" && cfg.RedisAddr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is required when QUOTA_STORE=redis")
	}

	return cfg, nil
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

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
