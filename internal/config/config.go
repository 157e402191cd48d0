package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the BotArena backend.
type Config struct {
	Port      int
	Version   string
	DataDir   string
	Gemini    GeminiConfig
	Telemetry TelemetryConfig
}

// GeminiConfig configures the model-invocation collaborator. The API key is
// the single credential this service consumes.
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:    envInt("BOTARENA_PORT", 8080),
		Version: envStr("BOTARENA_VERSION", "0.1.0"),
		DataDir: envStr("BOTARENA_DATA_DIR", ""),
		Gemini: GeminiConfig{
			APIKey:  envStr("GEMINI_API_KEY", ""),
			BaseURL: envStr("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			Timeout: envDur("GEMINI_TIMEOUT", 5*time.Minute),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "botarena-backend"),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
