package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/vladimiradmaev/dosemate/internal/dose"
	apperrors "github.com/vladimiradmaev/dosemate/internal/errors"
	"github.com/vladimiradmaev/dosemate/internal/logger"
)

// Storage backends for history and settings.
const (
	StoragePostgres = "postgres"
	StorageLocal    = "local"
	StorageMemory   = "memory"
)

// Conversation state backends.
const (
	StateMemory = "memory"
	StateRedis  = "redis"
)

type Config struct {
	TelegramToken string
	GeminiAPIKey  string
	Storage       StorageConfig
	DB            DBConfig
	Local         LocalConfig
	State         StateConfig
	Dose          DoseConfig
	Logger        logger.Config
}

type StorageConfig struct {
	Backend string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// DSN returns the postgres connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.DBName)
}

type LocalConfig struct {
	Path       string
	Passphrase string
}

type StateConfig struct {
	Backend   string
	RedisHost string
	RedisPort string
}

type DoseConfig struct {
	// DefaultCarbRatio applies to users who never set their own.
	DefaultCarbRatio float64
	// Location decides the moment of day for every calculation.
	Location *time.Location
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	ratioRaw := getEnvOrDefault("DEFAULT_CARB_RATIO", strconv.FormatFloat(dose.DefaultCarbRatio, 'f', -1, 64))
	ratio, ok := dose.ParseDecimal(ratioRaw)
	if !ok {
		return nil, apperrors.NewConfigError(fmt.Sprintf("DEFAULT_CARB_RATIO is not a number: %q", ratioRaw))
	}

	zone := getEnvOrDefault("TIMEZONE", "Local")
	location, err := time.LoadLocation(zone)
	if err != nil {
		return nil, apperrors.NewConfigError(fmt.Sprintf("unknown TIMEZONE %q", zone))
	}

	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		Storage: StorageConfig{
			Backend: strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", StoragePostgres)),
		},
		DB: DBConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvOrDefault("DB_PORT", "5432"),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrDefault("DB_NAME", "dosemate"),
		},
		Local: LocalConfig{
			Path:       getEnvOrDefault("LOCAL_STORE_PATH", "data/dosemate.db"),
			Passphrase: os.Getenv("LOCAL_STORE_PASSPHRASE"),
		},
		State: StateConfig{
			Backend:   strings.ToLower(getEnvOrDefault("STATE_BACKEND", StateMemory)),
			RedisHost: getEnvOrDefault("REDIS_HOST", "localhost"),
			RedisPort: getEnvOrDefault("REDIS_PORT", "6379"),
		},
		Dose: DoseConfig{
			DefaultCarbRatio: ratio,
			Location:         location,
		},
		Logger: logger.Config{
			Level:      logger.ParseLevel(getEnvOrDefault("LOG_LEVEL", "info")),
			OutputPath: getEnvOrDefault("LOG_OUTPUT", "logs/app.log"),
			Format:     getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return apperrors.NewConfigError("TELEGRAM_BOT_TOKEN is required")
	}

	switch c.Storage.Backend {
	case StoragePostgres:
		if c.DB.Host == "" || c.DB.DBName == "" {
			return apperrors.NewConfigError("DB_HOST and DB_NAME are required for postgres storage")
		}
	case StorageLocal:
		if c.Local.Path == "" {
			return apperrors.NewConfigError("LOCAL_STORE_PATH is required for local storage")
		}
		if len(c.Local.Passphrase) < 8 {
			return apperrors.NewConfigError("LOCAL_STORE_PASSPHRASE must be at least 8 characters")
		}
	case StorageMemory:
	default:
		return apperrors.NewConfigError(fmt.Sprintf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}

	switch c.State.Backend {
	case StateMemory, StateRedis:
	default:
		return apperrors.NewConfigError(fmt.Sprintf("unknown STATE_BACKEND %q", c.State.Backend))
	}

	if c.Dose.DefaultCarbRatio <= 0 {
		return apperrors.NewConfigError("DEFAULT_CARB_RATIO must be positive")
	}
	return nil
}
