package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"alfredoptarigan/cv-profiler/internal/apperrors"
)

const (
	ProviderGemini     = "gemini"
	ProviderGeminiREST = "gemini-rest"
	ProviderOpenAI     = "openai"
)

type Config struct {
	Server   ServerConfig
	Log      LogConfig
	AI       AIConfig
	Template TemplateConfig
	Storage  StorageConfig
	Session  SessionConfig
	Database DatabaseConfig
}

type ServerConfig struct {
	Port string `validate:"required"`
	Env  string
}

type LogConfig struct {
	Level  string
	Format string `validate:"oneof=json pretty"`
}

type AIConfig struct {
	Provider         string   `validate:"oneof=gemini gemini-rest openai"`
	GeminiAPIKey     string
	OpenAIAPIKey     string
	Models           []string `validate:"min=1,dive,required"`
	GeminiAPIHost    string   `validate:"required,url"`
	OpenAIBaseURL    string   `validate:"required,url"`
	Temperature      float32  `validate:"gte=0,lte=2"`
	Timeout          time.Duration
	MaxAttempts      int           `validate:"min=1"`
	RateLimitBackoff time.Duration `validate:"gte=0"`
}

type TemplateConfig struct {
	Path        string
	BulletStyle string `validate:"oneof=indent tab"`
	PolicyPath  string
}

type StorageConfig struct {
	MaxFileSize    int64 `validate:"gt=0"`
	ExtractTimeout time.Duration
}

type SessionConfig struct {
	Backend  string `validate:"oneof=memory redis"`
	RedisURL string `validate:"required_if=Backend redis"`
	TTL      time.Duration
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found. Using default values.")
	}

	provider := getEnv("AI_PROVIDER", ProviderGemini)

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "3000"),
			Env:  getEnv("ENV", "development"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "pretty"),
		},
		AI: AIConfig{
			Provider:         provider,
			GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
			OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
			Models:           getEnvAsList("AI_MODELS", DefaultModels(provider)),
			GeminiAPIHost:    getEnv("GEMINI_API_HOST", "https://generativelanguage.googleapis.com"),
			OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Temperature:      getEnvAsFloat32("AI_TEMPERATURE", 0.2),
			Timeout:          getEnvAsDuration("AI_TIMEOUT", "120s"),
			MaxAttempts:      getEnvAsInt("AI_MAX_ATTEMPTS", 3),
			RateLimitBackoff: getEnvAsDuration("AI_RATE_LIMIT_BACKOFF", "10s"),
		},
		Template: TemplateConfig{
			Path:        getEnv("TEMPLATE_PATH", ""),
			BulletStyle: getEnv("BULLET_STYLE", "indent"),
			PolicyPath:  getEnv("POLICY_PATH", ""),
		},
		Storage: StorageConfig{
			MaxFileSize:    getEnvAsInt64("MAX_FILE_SIZE", 10485760),
			ExtractTimeout: getEnvAsDuration("PDF_EXTRACT_TIMEOUT", "30s"),
		},
		Session: SessionConfig{
			Backend:  getEnv("SESSION_BACKEND", "memory"),
			RedisURL: getEnv("REDIS_URL", ""),
			TTL:      getEnvAsDuration("SESSION_TTL", "2h"),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("RUN_LOG_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "cv_profiler"),
		},
	}
}

// DefaultModels is the ordered fallback list used when AI_MODELS is unset.
func DefaultModels(provider string) []string {
	if provider == ProviderOpenAI {
		return []string{"gpt-4o-mini", "gpt-4o"}
	}
	return []string{"gemini-flash-latest", "gemini-2.5-flash", "gemini-2.0-flash"}
}

// Validate checks the structural settings. A missing credential is reported
// separately by Credential so a server can still start and report it per request.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return apperrors.New(apperrors.KindConfiguration, "invalid configuration", err)
	}
	return nil
}

// Credential returns the API key of the configured provider.
func (c *AIConfig) Credential() (string, error) {
	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return "", apperrors.Newf(apperrors.KindConfiguration, "OPENAI_API_KEY is required for provider %q", c.Provider)
		}
		return c.OpenAIAPIKey, nil
	case ProviderGemini, ProviderGeminiREST:
		if c.GeminiAPIKey == "" {
			return "", apperrors.Newf(apperrors.KindConfiguration, "GEMINI_API_KEY is required for provider %q", c.Provider)
		}
		return c.GeminiAPIKey, nil
	default:
		return "", apperrors.Newf(apperrors.KindConfiguration, "unknown AI provider %q", c.Provider)
	}
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 32); err == nil {
		return float32(value)
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
