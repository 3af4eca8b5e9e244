package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/context-rot-monitor/internal/drift"
	"github.com/wolfman30/context-rot-monitor/internal/session"
)

// Supervisor providers.
const (
	ProviderGroq    = "groq"
	ProviderGemini  = "gemini"
	ProviderBedrock = "bedrock"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string
	Version  string

	DriftSimilarityThreshold float64
	DriftCheckInterval       int
	DriftWindowSize          int
	DriftMaxFeatures         int

	SessionIdleTTL       time.Duration
	SessionMax           int
	SessionSweepInterval time.Duration

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	SupervisorEnabled            bool
	SupervisorProvider           string
	SupervisorFallbackProvider   string
	SupervisorModelID            string
	SupervisorTimeout            time.Duration
	SupervisorHeuristicThreshold float64

	GroqAPIKey     string
	GroqBaseURL    string
	GeminiAPIKey   string
	GeminiModelID  string
	BedrockModelID string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	AlertTTL      time.Duration
	AlertMax      int

	// Demo CLI
	APIURL      string
	DemoModelID string
}

// Load reads configuration from the environment.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8000"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Version:  getEnv("VERSION", "1.0.0"),

		DriftSimilarityThreshold: getEnvAsFloat("DRIFT_SIMILARITY_THRESHOLD", 0.7),
		DriftCheckInterval:       getEnvAsInt("DRIFT_CHECK_INTERVAL", drift.DefaultCheckInterval),
		DriftWindowSize:          getEnvAsInt("DRIFT_WINDOW_SIZE", drift.DefaultWindowSize),
		DriftMaxFeatures:         getEnvAsInt("DRIFT_MAX_FEATURES", drift.DefaultMaxFeatures),

		SessionIdleTTL:       getEnvAsDuration("SESSION_IDLE_TTL", 2*time.Hour),
		SessionMax:           getEnvAsInt("SESSION_MAX", 1000),
		SessionSweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 40),

		SupervisorEnabled:            getEnvAsBool("SUPERVISOR_ENABLED", true),
		SupervisorProvider:           strings.ToLower(strings.TrimSpace(getEnv("SUPERVISOR_PROVIDER", ProviderGroq))),
		SupervisorFallbackProvider:   strings.ToLower(strings.TrimSpace(getEnv("SUPERVISOR_FALLBACK_PROVIDER", ""))),
		SupervisorModelID:            getEnv("SUPERVISOR_MODEL_ID", ""),
		SupervisorTimeout:            getEnvAsDuration("SUPERVISOR_TIMEOUT", 10*time.Second),
		SupervisorHeuristicThreshold: getEnvAsFloat("SUPERVISOR_HEURISTIC_THRESHOLD", 0.45),

		GroqAPIKey:     getEnv("GROQ_API_KEY", ""),
		GroqBaseURL:    getEnv("GROQ_BASE_URL", ""),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:  getEnv("GEMINI_MODEL_ID", ""),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		AlertTTL:      getEnvAsDuration("ALERT_TTL", 24*time.Hour),
		AlertMax:      getEnvAsInt("ALERT_MAX", 100),

		APIURL:      strings.TrimRight(getEnv("API_URL", "http://localhost:8000"), "/"),
		DemoModelID: getEnv("DEMO_MODEL_ID", ""),
	}
}

// DriftConfig derives the engine configuration shared by every session.
func (c *Config) DriftConfig() drift.Config {
	cfg := drift.DefaultConfig()
	cfg.SimilarityThreshold = c.DriftSimilarityThreshold
	cfg.CheckInterval = c.DriftCheckInterval
	cfg.WindowSize = c.DriftWindowSize
	cfg.MaxFeatures = c.DriftMaxFeatures
	return cfg
}

// SessionOptions derives the registry options.
func (c *Config) SessionOptions() session.Options {
	return session.Options{
		Drift:         c.DriftConfig(),
		IdleTTL:       c.SessionIdleTTL,
		MaxSessions:   c.SessionMax,
		SweepInterval: c.SessionSweepInterval,
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
