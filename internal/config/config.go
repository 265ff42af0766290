// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the application.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host          string
	Port          string
	Env           string // "development", "production", "testing"
	PublicBaseURL string // externally visible origin, used in QR codes and share links
	CaptureURL    string // origin the headless browser uses to reach this server

	// PostgreSQL event log, disabled when DBHost is empty
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Valkey; an in-process cache is used when ValkeyHost is empty
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string

	// AI provider settings
	GreetingProviders []string // tried in order, e.g. deepseek,zhipu
	ImageProvider     string   // zhipu, openai or gemini; empty disables generation

	OpenAIKey        string
	OpenAIModel      string
	OpenAIImageModel string
	OpenAIBaseURL    string

	GeminiKey        string
	GeminiModel      string
	GeminiImageModel string
	GeminiBaseURL    string

	ClaudeKey     string
	ClaudeModel   string
	ClaudeBaseURL string

	MistralKey     string
	MistralModel   string
	MistralBaseURL string

	DeepSeekKey     string
	DeepSeekModel   string
	DeepSeekBaseURL string

	ZhipuKey        string
	ZhipuModel      string
	ZhipuImageModel string
	ZhipuBaseURL    string

	// S3-compatible object storage for generated backgrounds (optional)
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3PublicURL string

	// Generated background files on local disk
	ImageDir       string
	ImageRetention int

	// Card rendering and export
	FontPath       string
	ChromeWSURL    string // remote DevTools endpoint; empty launches a local browser
	ExportTimeout  time.Duration
	BackgroundWait time.Duration
}

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. Returns an error if critical values
// are missing in production mode.
func Load() (*Config, error) {
	cfg := &Config{
		Host:          envOrDefault("APP_HOST", "0.0.0.0"),
		Port:          envOrDefault("APP_PORT", "8080"),
		Env:           envOrDefault("APP_ENV", "development"),
		PublicBaseURL: strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),

		DBHost:     os.Getenv("POSTGRES_HOST"),
		DBPort:     envOrDefault("POSTGRES_PORT", "5432"),
		DBUser:     envOrDefault("POSTGRES_USER", "newyearcard"),
		DBPassword: envOrDefault("POSTGRES_PASSWORD", "changeme"),
		DBName:     envOrDefault("POSTGRES_DB", "newyearcard"),

		ValkeyHost:     os.Getenv("VALKEY_HOST"),
		ValkeyPort:     envOrDefault("VALKEY_PORT", "6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),

		GreetingProviders: splitList(envOrDefault("GREETING_PROVIDERS", "deepseek,zhipu")),
		ImageProvider:     os.Getenv("IMAGE_PROVIDER"),

		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIImageModel: envOrDefault("OPENAI_MODEL_IMAGE", "dall-e-3"),
		OpenAIBaseURL:    os.Getenv("OPENAI_BASE_URL"),

		GeminiKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      envOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiImageModel: os.Getenv("GEMINI_MODEL_IMAGE"),
		GeminiBaseURL:    os.Getenv("GEMINI_BASE_URL"),

		ClaudeKey:     os.Getenv("CLAUDE_API_KEY"),
		ClaudeModel:   envOrDefault("CLAUDE_MODEL", "claude-sonnet-4-20250514"),
		ClaudeBaseURL: os.Getenv("CLAUDE_BASE_URL"),

		MistralKey:     os.Getenv("MISTRAL_API_KEY"),
		MistralModel:   envOrDefault("MISTRAL_MODEL", "mistral-small-latest"),
		MistralBaseURL: os.Getenv("MISTRAL_BASE_URL"),

		DeepSeekKey:     os.Getenv("DEEPSEEK_API_KEY"),
		DeepSeekModel:   envOrDefault("DEEPSEEK_MODEL", "deepseek-chat"),
		DeepSeekBaseURL: os.Getenv("DEEPSEEK_BASE_URL"),

		ZhipuKey:        os.Getenv("ZHIPU_API_KEY"),
		ZhipuModel:      envOrDefault("ZHIPU_MODEL", "glm-4"),
		ZhipuImageModel: envOrDefault("ZHIPU_MODEL_IMAGE", "glm-image"),
		ZhipuBaseURL:    os.Getenv("ZHIPU_BASE_URL"),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3Region:    envOrDefault("S3_REGION", "us-east-1"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3Bucket:    envOrDefault("S3_BUCKET", "newyearcard"),
		S3PublicURL: os.Getenv("S3_PUBLIC_URL"),

		ImageDir:       envOrDefault("IMAGE_DIR", "data/generated"),
		ImageRetention: envIntOrDefault("IMAGE_RETENTION", 30),

		FontPath:       os.Getenv("CARD_FONT_PATH"),
		ChromeWSURL:    os.Getenv("CHROME_WS_URL"),
		ExportTimeout:  envDurationOrDefault("EXPORT_TIMEOUT", 60*time.Second),
		BackgroundWait: envDurationOrDefault("BACKGROUND_WAIT", 5*time.Second),
	}

	cfg.CaptureURL = strings.TrimRight(envOrDefault("CAPTURE_BASE_URL", "http://127.0.0.1:"+cfg.Port), "/")

	if cfg.ImageRetention < 1 {
		return nil, fmt.Errorf("IMAGE_RETENTION must be at least 1, got %d", cfg.ImageRetention)
	}

	if cfg.Env == "production" {
		if cfg.PublicBaseURL == "" {
			return nil, fmt.Errorf("PUBLIC_BASE_URL must be set in production")
		}
		if cfg.DBHost != "" && cfg.DBPassword == "changeme" {
			return nil, fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
	}

	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// HasDatabase reports whether the Postgres event log is configured.
func (c *Config) HasDatabase() bool {
	return c.DBHost != ""
}

// HasValkey reports whether a Valkey server is configured.
func (c *Config) HasValkey() bool {
	return c.ValkeyHost != ""
}

// BaseURL returns the public origin, falling back to the local listen
// address in development.
func (c *Config) BaseURL() string {
	if c.PublicBaseURL != "" {
		return c.PublicBaseURL
	}
	return "http://localhost:" + c.Port
}

// WriteTimeout is the HTTP server write timeout. It covers a whole export
// with a margin for delivery, and never drops below 90s so image
// generation fits too.
func (c *Config) WriteTimeout() time.Duration {
	return max(c.ExportTimeout+30*time.Second, 90*time.Second)
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envIntOrDefault reads an integer environment variable. Unparseable values
// fall back to the default.
func envIntOrDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// envDurationOrDefault reads a time.ParseDuration value such as "45s".
func envDurationOrDefault(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// splitList splits a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(strings.ToLower(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
