package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Storage backend selectors accepted in STORAGE_BACKEND.
const (
	BackendMemory = "memory"
	BackendNeo4j  = "neo4j"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Storage
	StorageBackend string
	Neo4jURI       string
	Neo4jUser      string
	Neo4jPassword  string

	// Relationship detection
	OpenAIAPIKey      string
	OpenAIBaseURL     string // optional, for OpenAI-compatible gateways
	OpenAIModel       string
	DetectorBatchSize int // existing facts per detection request
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("ENV", "development"),
		StorageBackend:    getEnv("STORAGE_BACKEND", BackendMemory),
		Neo4jURI:          getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:         getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:     getEnv("NEO4J_PASSWORD", "password"),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		DetectorBatchSize: getEnvInt("DETECTOR_BATCH_SIZE", 20),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendMemory:
	case BackendNeo4j:
		if c.Neo4jURI == "" {
			return fmt.Errorf("NEO4J_URI is required")
		}
		if c.Neo4jUser == "" {
			return fmt.Errorf("NEO4J_USER is required")
		}
		if c.Neo4jPassword == "" {
			return fmt.Errorf("NEO4J_PASSWORD is required")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND: %s", c.StorageBackend)
	}
	if c.DetectorBatchSize < 1 {
		return fmt.Errorf("DETECTOR_BATCH_SIZE must be positive")
	}
	// OpenAI API key is optional; without it relationship detection is disabled
	return nil
}

// DetectionEnabled returns true if an AI detector should be configured
func (c *Config) DetectionEnabled() bool {
	return c.OpenAIAPIKey != ""
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
