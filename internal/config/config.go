package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brody/brody-back/internal/ai"
)

// Config centralizes runtime settings for the API and workers.
type Config struct {
	Port string

	LogLevel  string
	LogFormat string

	DatabaseURL string

	OpenRouterAPIKey    string
	OpenRouterBaseURL   string
	OpenRouterReferrer  string
	OpenRouterTitle     string
	OpenRouterTimeoutMS int

	DefaultModel       string
	FallbackModel      string
	EmailModel         string
	TaskModel          string
	MeetingModel       string
	SummaryModel       string
	OnlyFreeModels     bool
	FreeModelAllowlist []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisStream   string
	RedisDLQ      string
	RedisGroup    string
	RedisConsumer string

	SecretKey                string
	AccessTokenExpireMinutes int
	RefreshTokenExpireDays   int

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	WorkerEnabled bool
}

func Load() Config {
	defaultModel := getEnv("DEFAULT_MODEL", ai.DefaultModel)
	fallbackModel := getEnv("FALLBACK_MODEL", ai.FallbackModel)

	return Config{
		Port: getEnv("PORT", "8000"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DatabaseURL: getEnv("DATABASE_URL", "sqlite://./brody.db"),

		OpenRouterAPIKey:    strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")),
		OpenRouterBaseURL:   getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterReferrer:  getEnv("OPENROUTER_REFERRER", "http://localhost:9000"),
		OpenRouterTitle:     getEnv("OPENROUTER_TITLE", "Brody Dev"),
		OpenRouterTimeoutMS: getEnvInt("OPENROUTER_TIMEOUT_MS", 20000),

		DefaultModel:       defaultModel,
		FallbackModel:      fallbackModel,
		EmailModel:         getEnv("EMAIL_MODEL", defaultModel),
		TaskModel:          getEnv("TASK_MODEL", defaultModel),
		MeetingModel:       getEnv("MEETING_MODEL", defaultModel),
		SummaryModel:       getEnv("SUMMARY_MODEL", fallbackModel),
		OnlyFreeModels:     getEnvTruthy("ONLY_FREE_MODELS", true),
		FreeModelAllowlist: getEnvList("FREE_MODEL_ALLOWLIST", ai.DefaultFreeAllowlist),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisStream:   getEnv("REDIS_STREAM", "brody_triage_jobs"),
		RedisDLQ:      getEnv("REDIS_DLQ_STREAM", "brody_triage_jobs_dlq"),
		RedisGroup:    getEnv("REDIS_GROUP", "brody_workers"),
		RedisConsumer: getEnv("REDIS_CONSUMER", "api-1"),

		SecretKey:                getEnv("SECRET_KEY", "your-secret-key-here-change-in-production"),
		AccessTokenExpireMinutes: getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30),
		RefreshTokenExpireDays:   getEnvInt("REFRESH_TOKEN_EXPIRE_DAYS", 30),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "http://localhost:9000/auth/google/callback"),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 40),

		WorkerEnabled: getEnvBool("WORKER_ENABLED", true),
	}
}

func (c Config) ModelConfig() ai.ModelConfig {
	return ai.NewModelConfig(ai.ModelConfigInput{
		DefaultModel:  c.DefaultModel,
		FallbackModel: c.FallbackModel,
		EmailModel:    c.EmailModel,
		TaskModel:     c.TaskModel,
		MeetingModel:  c.MeetingModel,
		SummaryModel:  c.SummaryModel,
	})
}

func (c Config) FreeTierPolicy() ai.FreeTierPolicy {
	return ai.NewFreeTierPolicy(c.OnlyFreeModels, c.FreeModelAllowlist)
}

func (c Config) OpenRouterTimeout() time.Duration {
	return time.Duration(c.OpenRouterTimeoutMS) * time.Millisecond
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

func (c Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenExpireDays) * 24 * time.Hour
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvTruthy accepts 1, true and yes (any case) as true. Any other
// non-empty value is false.
func getEnvTruthy(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

// getEnvList splits a comma-separated variable. Only an unset variable
// takes the fallback; a variable set to "" yields an empty list.
func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return append([]string(nil), fallback...)
	}
	items := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
