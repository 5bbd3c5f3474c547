package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	MongoDB    MongoDBConfig
	Redis      RedisConfig
	OpenAI     OpenAIConfig
	JWT        JWTConfig
	Metrics    MetricsConfig
	Generation GenerationConfig
	Email      EmailConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// MongoDBConfig holds MongoDB connection details
type MongoDBConfig struct {
	URI        string
	Username   string
	Password   string
	Host       string
	Port       string
	Database   string
	AuthSource string // Database to authenticate against (default: admin)
}

// RedisConfig holds Redis cache connection details
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// JWTConfig holds JWT validation configuration
type JWTConfig struct {
	Secret string
}

// MetricsConfig holds the backing metrics services configuration
type MetricsConfig struct {
	BaseURL      string
	ServiceToken string // used for scheduled digest runs where no user token exists
}

// GenerationConfig tunes the report generation retry loop
type GenerationConfig struct {
	MaxRetries            int // retries after the first attempt
	AttemptTimeoutSeconds int
	CacheTTLSeconds       int
}

// EmailConfig holds SendGrid email configuration
type EmailConfig struct {
	APIKey    string
	FromEmail string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8086"),
			Host: getEnv("HOST", "0.0.0.0"),
		},
		MongoDB: MongoDBConfig{
			URI:        getEnv("MONGODB_URI", ""),
			Username:   getEnv("MONGODB_USERNAME", ""),
			Password:   getEnv("MONGODB_PASSWORD", ""),
			Host:       getEnv("MONGODB_HOST", "localhost"),
			Port:       getEnv("MONGODB_PORT", "27017"),
			Database:   getEnv("MONGODB_DATABASE", "pulse_reports"),
			AuthSource: getEnv("MONGODB_AUTH_SOURCE", "admin"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		OpenAI: OpenAIConfig{
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Temperature: getEnvFloat("OPENAI_TEMPERATURE", 0.3),
			MaxTokens:   getEnvInt("OPENAI_MAX_TOKENS", 0), // 0 means no limit (or use max for model)
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},
		Metrics: MetricsConfig{
			BaseURL:      getEnv("METRICS_BASE_URL", "http://localhost:8080"),
			ServiceToken: getEnv("METRICS_SERVICE_TOKEN", ""),
		},
		Generation: GenerationConfig{
			MaxRetries:            getEnvInt("GENERATION_MAX_RETRIES", 2),
			AttemptTimeoutSeconds: getEnvInt("GENERATION_ATTEMPT_TIMEOUT", 120),
			CacheTTLSeconds:       getEnvInt("REPORT_CACHE_TTL", 60),
		},
		Email: EmailConfig{
			APIKey:    getEnv("SENDGRID_API_KEY", ""),
			FromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		},
	}

	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// ValidateConfig validates that required configuration values are present
func ValidateConfig(config *Config) error {
	if config.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if config.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if config.Generation.MaxRetries < 0 {
		return fmt.Errorf("GENERATION_MAX_RETRIES must not be negative")
	}
	return nil
}

// Helper functions for environment variable access
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
