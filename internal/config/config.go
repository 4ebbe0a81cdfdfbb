package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Database  DatabaseConfig
	Extractor ExtractorConfig
	Liveness  LivenessConfig
	SMTP      SMTPConfig
	Auth      AuthConfig
	Sweep     SweepConfig
	Defaults  DefaultsConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type ExtractorConfig struct {
	URL            string // face embedding service, defaults to http://localhost:8000
	Dim            int    // embedding dimension, defaults to 512 and must match the schema's vector column
	TimeoutSeconds int    // request timeout, defaults to 15
}

type LivenessConfig struct {
	Provider       string // "gemini" (default) or "openai"
	GeminiAPIKey   string
	OpenAIToken    string
	TimeoutSeconds int // oracle timeout, defaults to 10
}

type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	AdminEmail string // recipient of the daily absence alert
}

type AuthConfig struct {
	JWTSecret     string
	TokenMinutes  int    // token lifetime, defaults to 480
	AdminUsername string // seeded on first startup, defaults to "admin"
	AdminPassword string // seeded on first startup
}

type SweepConfig struct {
	DelayMinutes int // minutes after work start + grace before the absence sweep fires (default 60)
}

// DefaultsConfig holds seed values for the scan policy row, loaded from the
// embedded defaults.yaml. They are written once on first startup and mutable
// through the policy API afterwards.
type DefaultsConfig struct {
	Policy PolicyDefaults `yaml:"policy"`
}

type PolicyDefaults struct {
	SimilarityThreshold  float64 `yaml:"similarity_threshold"`
	WorkStartTime        string  `yaml:"work_start_time"`
	GracePeriodMinutes   int     `yaml:"grace_period_minutes"`
	LivenessCheckEnabled bool    `yaml:"liveness_check_enabled"`
	LivenessFailClosed   bool    `yaml:"liveness_fail_closed"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envString reads an environment variable with a fallback default.
func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func Load() *Config {
	var defaults DefaultsConfig
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// Embedded file, so this can only happen if the file itself is broken.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Extractor: ExtractorConfig{
			URL:            envString("EXTRACTOR_URL", "http://localhost:8000"),
			Dim:            envInt("EXTRACTOR_DIM", 512),
			TimeoutSeconds: envInt("EXTRACTOR_TIMEOUT_SECONDS", 15),
		},
		Liveness: LivenessConfig{
			Provider:       envString("LIVENESS_PROVIDER", "gemini"),
			GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
			OpenAIToken:    os.Getenv("OPENAI_TOKEN"),
			TimeoutSeconds: envInt("LIVENESS_TIMEOUT_SECONDS", 10),
		},
		SMTP: SMTPConfig{
			Host:       os.Getenv("SMTP_HOST"),
			Port:       envInt("SMTP_PORT", 587),
			Username:   os.Getenv("SMTP_USER"),
			Password:   os.Getenv("SMTP_PASS"),
			AdminEmail: os.Getenv("SMTP_ADMIN_EMAIL"),
		},
		Auth: AuthConfig{
			JWTSecret:     os.Getenv("JWT_SECRET"),
			TokenMinutes:  envInt("JWT_EXPIRE_MINUTES", 480),
			AdminUsername: envString("ADMIN_USERNAME", "admin"),
			AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		},
		Sweep: SweepConfig{
			DelayMinutes: envInt("ABSENCE_SWEEP_DELAY_MINUTES", 60),
		},
		Defaults: defaults,
	}
}
