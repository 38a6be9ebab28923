package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env     string
	Port    string
	OTel    OTelConfig
	Discord DiscordConfig
	OpenAI  OpenAIConfig
	Relay   RelayConfig
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

type DiscordConfig struct {
	Token        string
	Channels     []string // watched channel IDs
	PollInterval time.Duration
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// RelayConfig holds the dispatch-and-context-assembly tunables. The prompt
// strings are configuration, not invariants; defaults match the values the
// bot has always shipped with.
type RelayConfig struct {
	IgnorePrefix     string
	ChunkSize        int
	TypingInterval   time.Duration
	HistoryFactCheck int // messages fetched for channel fact checks
	HistoryThread    int // messages fetched for thread replies
	HistoryUserScan  int // messages scanned for a mentioned user's last message
	FactCheckPrompt  string
	AssistantPrompt  string
}

// Load loads configuration from environment variables. In development it
// loads .env via godotenv first.
func Load() (Config, error) {
	if getEnv("PARLEY_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env:  getEnv("PARLEY_ENV", "development"),
		Port: getEnv("PORT", "8080"),
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "parley"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
		Discord: DiscordConfig{
			Token:        getEnv("DISCORD_TOKEN", ""),
			Channels:     splitList(getEnv("DISCORD_CHANNELS", "")),
			PollInterval: getEnvDuration("POLL_INTERVAL", 2*time.Second),
		},
		OpenAI: OpenAIConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
			Model:   getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		},
		Relay: RelayConfig{
			IgnorePrefix:     getEnv("IGNORE_PREFIX", "!"),
			ChunkSize:        getEnvInt("CHUNK_SIZE", 2000),
			TypingInterval:   getEnvDuration("TYPING_INTERVAL", 5*time.Second),
			HistoryFactCheck: getEnvInt("HISTORY_FACT_CHECK", 10),
			HistoryThread:    getEnvInt("HISTORY_THREAD", 50),
			HistoryUserScan:  getEnvInt("HISTORY_USER_SCAN", 100),
			FactCheckPrompt:  getEnv("FACT_CHECK_PROMPT", "Chat GPT is good"),
			AssistantPrompt:  getEnv("ASSISTANT_PROMPT", "You are a helpful assistant."),
		},
	}

	if cfg.Discord.Token == "" {
		return Config{}, fmt.Errorf("DISCORD_TOKEN is required")
	}

	if len(cfg.Discord.Channels) == 0 {
		return Config{}, fmt.Errorf("DISCORD_CHANNELS is required")
	}

	if cfg.OpenAI.APIKey == "" {
		return Config{}, fmt.Errorf("OPENAI_API_KEY is required")
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
