package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port            string
	Environment     string
	SupabaseURL     string
	SupabaseDBURL   string
	SupabaseJWKSURL string // Constructed from SupabaseURL + /auth/v1/.well-known/jwks.json
	CORSOrigins     string
	TablePrefix     string
	Storage         string // "postgres" or "memory"
	Migrate         bool
	// LLM Configuration
	AnthropicAPIKey string
	DefaultModel    string
	MaxOutputTokens int
	ModelTimeout    time.Duration
	ToolCallTimeout time.Duration
	// Access
	AdminUserIDs []string
	AdminEmails  []string
	AuthDisabled bool
	DevUserID    string
	// Chat rate limiting (per user)
	ChatRateRPS   float64
	ChatRateBurst int
	// Logging
	LogDir      string
	LogMaxFiles int
	// Debug flags
	Debug bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	tablePrefix := getTablePrefix(env)
	supabaseURL := getEnv("SUPABASE_URL", "")

	// Construct JWKS URL from Supabase URL
	jwksURL := supabaseURL + "/auth/v1/.well-known/jwks.json"

	return &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     env,
		SupabaseURL:     supabaseURL,
		SupabaseDBURL:   getEnv("SUPABASE_DB_URL", ""),
		SupabaseJWKSURL: jwksURL,
		CORSOrigins:     getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix:     tablePrefix,
		Storage:         getEnv("STORAGE", "postgres"),
		Migrate:         getEnv("MIGRATE", "false") == "true",
		// LLM Configuration
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		DefaultModel:    getEnv("DEFAULT_MODEL", "claude-haiku-4-5-20251001"),
		MaxOutputTokens: getEnvInt("MAX_OUTPUT_TOKENS", 4096),
		ModelTimeout:    getEnvDuration("MODEL_TIMEOUT", 2*time.Minute),
		ToolCallTimeout: getEnvDuration("TOOL_CALL_TIMEOUT", 30*time.Second),
		// Access
		AdminUserIDs: getEnvList("ADMIN_USER_IDS"),
		AdminEmails:  getEnvList("ADMIN_EMAILS"),
		// The bypass only ever applies outside prod
		AuthDisabled: env != "prod" && getEnv("AUTH_DISABLED", "false") == "true",
		DevUserID:    getEnv("DEV_USER_ID", "00000000-0000-0000-0000-000000000001"),
		// Rate limiting
		ChatRateRPS:   getEnvFloat("CHAT_RATE_RPS", 1),
		ChatRateBurst: getEnvInt("CHAT_RATE_BURST", 5),
		// Logging
		LogDir:      getEnv("LOG_DIR", ""),
		LogMaxFiles: getEnvInt("LOG_MAX_FILES", 10),
		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
