package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds the application configuration.
type Config struct {
	NarrativeAPIKey   string
	NarrativeProvider string
	NarrativeBaseURL  string
	NarrativeModel    string
	NarrativeLanguage string
	NarrativeTimeout  time.Duration
	NarrativeRate     float64

	Seed int64

	LogFile  string
	LogLevel zerolog.Level

	ChronicleDir string
}

// NarrativeEnabled reports whether a credential for the generator is present.
// Without one the game runs entirely on fallback content.
func (c *Config) NarrativeEnabled() bool {
	return c.NarrativeAPIKey != ""
}

// LoadConfig loads the configuration from environment variables, reading a
// .env file first when one exists.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the configuration from the process environment only.
func FromEnv() (*Config, error) {
	c := &Config{
		NarrativeAPIKey:   firstEnv("NARRATIVE_API_KEY", "API_KEY", "GEMINI_API_KEY"),
		NarrativeProvider: strings.ToLower(getenv("NARRATIVE_PROVIDER", ProviderOpenAI)),
		NarrativeBaseURL:  getenv("NARRATIVE_BASE_URL", "https://api.packyapi.com/v1"),
		NarrativeModel:    getenv("NARRATIVE_MODEL", "gemini-2.5-flash"),
		NarrativeLanguage: getenv("NARRATIVE_LANGUAGE", "English"),
		LogFile:           getenv("LOG_FILE", "caravan-trail.log"),
		ChronicleDir:      getenv("CHRONICLE_DIR", ".chronicles"),
	}
	if v, ok := os.LookupEnv("CHRONICLE_DIR"); ok && v == "" {
		c.ChronicleDir = ""
	}

	switch c.NarrativeProvider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return nil, fmt.Errorf("NARRATIVE_PROVIDER must be %q or %q, got %q", ProviderOpenAI, ProviderGemini, c.NarrativeProvider)
	}

	timeout, err := time.ParseDuration(getenv("NARRATIVE_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid NARRATIVE_TIMEOUT: %w", err)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("NARRATIVE_TIMEOUT must be positive, got %s", timeout)
	}
	c.NarrativeTimeout = timeout

	rate, err := strconv.ParseFloat(getenv("NARRATIVE_RATE", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid NARRATIVE_RATE: %w", err)
	}
	if rate <= 0 {
		return nil, fmt.Errorf("NARRATIVE_RATE must be positive, got %v", rate)
	}
	c.NarrativeRate = rate

	seed, err := strconv.ParseInt(getenv("GAME_SEED", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid GAME_SEED: %w", err)
	}
	c.Seed = seed

	level, err := zerolog.ParseLevel(strings.ToLower(getenv("LOG_LEVEL", "info")))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	c.LogLevel = level

	return c, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
