// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultJWTSecret = "dev-secret-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Env string `mapstructure:"APP_ENV"`

	// client
	APIBaseURL              string  `mapstructure:"API_BASE_URL"`
	APIToken                string  `mapstructure:"API_TOKEN"`
	UserID                  string  `mapstructure:"USER_ID"`
	ReadTimeoutMS           int     `mapstructure:"READ_TIMEOUT_MS"`
	WriteTimeoutMS          int     `mapstructure:"WRITE_TIMEOUT_MS"`
	UploadTimeoutMS         int     `mapstructure:"UPLOAD_TIMEOUT_MS"`
	FeedFallbackConcurrency int     `mapstructure:"FEED_FALLBACK_CONCURRENCY"`
	FeedFallbackBudgetMS    int     `mapstructure:"FEED_FALLBACK_BUDGET_MS"`
	AchievementStaggerMS    int     `mapstructure:"ACHIEVEMENT_STAGGER_MS"`
	AchievementDismissMS    int     `mapstructure:"ACHIEVEMENT_DISMISS_TIMEOUT_MS"`
	AchievementCatalog      string  `mapstructure:"ACHIEVEMENT_CATALOG"`
	RedisURL                string  `mapstructure:"REDIS_URL"`
	FeatureFlags            string  `mapstructure:"FEATURE_FLAGS"`
	TracingEnabled          bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter         string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint            string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSamplerRatio     float64 `mapstructure:"TRACING_SAMPLER_RATIO"`

	// mock backend
	Port       string `mapstructure:"PORT"`
	JWTSecret  string `mapstructure:"JWT_SECRET"`
	DBDriver   string `mapstructure:"DB_DRIVER"`
	SQLitePath string `mapstructure:"SQLITE_PATH"`
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env != "development" && env != "" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.DBDriver = strings.ToLower(strings.TrimSpace(config.DBDriver))
	config.DBSSLMode = strings.ToLower(strings.TrimSpace(config.DBSSLMode))
	config.APIBaseURL = strings.TrimRight(strings.TrimSpace(config.APIBaseURL), "/")

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("API_BASE_URL", "http://localhost:8375")
	viper.SetDefault("API_TOKEN", "")
	viper.SetDefault("USER_ID", "")
	viper.SetDefault("READ_TIMEOUT_MS", 10000)
	viper.SetDefault("WRITE_TIMEOUT_MS", 10000)
	viper.SetDefault("UPLOAD_TIMEOUT_MS", 15000)
	viper.SetDefault("FEED_FALLBACK_CONCURRENCY", 1)
	viper.SetDefault("FEED_FALLBACK_BUDGET_MS", 0)
	viper.SetDefault("ACHIEVEMENT_STAGGER_MS", 1000)
	viper.SetDefault("ACHIEVEMENT_DISMISS_TIMEOUT_MS", 15000)
	viper.SetDefault("ACHIEVEMENT_CATALOG", "")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("FEATURE_FLAGS", "")
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)

	viper.SetDefault("PORT", "8375")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("DB_DRIVER", "sqlite")
	viper.SetDefault("SQLITE_PATH", "questline-mock.db")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "questline")
	viper.SetDefault("DB_SSLMODE", "disable")
}

// Validate ensures that required configuration values are present and sane.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("API_BASE_URL is required")
	}
	if c.ReadTimeoutMS <= 0 || c.WriteTimeoutMS <= 0 || c.UploadTimeoutMS <= 0 {
		return errors.New("request timeouts must be positive")
	}
	if c.FeedFallbackConcurrency < 1 {
		return errors.New("FEED_FALLBACK_CONCURRENCY must be at least 1")
	}
	if c.FeedFallbackBudgetMS < 0 {
		return errors.New("FEED_FALLBACK_BUDGET_MS must not be negative")
	}
	if c.AchievementStaggerMS < 0 {
		return errors.New("ACHIEVEMENT_STAGGER_MS must not be negative")
	}
	if c.AchievementDismissMS < 0 {
		return errors.New("ACHIEVEMENT_DISMISS_TIMEOUT_MS must not be negative")
	}
	switch c.DBDriver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret || len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be changed and at least 32 characters in production")
		}
		if c.DBDriver == "postgres" && (c.DBSSLMode == "disable" || c.DBSSLMode == "") {
			return errors.New("DB_SSLMODE must not be 'disable' in production")
		}
	} else if c.UserID == "" {
		log.Println("WARNING: USER_ID is empty; requests run as an anonymous viewer.")
	}

	return nil
}

// IsProduction reports whether the app runs with a production profile.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// ReadTimeout is the bound for read requests.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMS) * time.Millisecond
}

// WriteTimeout is the bound for mutation requests.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMS) * time.Millisecond
}

// UploadTimeout is the bound for heavy create requests.
func (c *Config) UploadTimeout() time.Duration {
	return time.Duration(c.UploadTimeoutMS) * time.Millisecond
}

// FeedFallbackBudget bounds the whole per-community fallback. Zero means unbounded.
func (c *Config) FeedFallbackBudget() time.Duration {
	return time.Duration(c.FeedFallbackBudgetMS) * time.Millisecond
}

// AchievementStagger is the delay between achievement notifications.
func (c *Config) AchievementStagger() time.Duration {
	return time.Duration(c.AchievementStaggerMS) * time.Millisecond
}

// AchievementDismissTimeout bounds the wait for a completion to be
// dismissed. Zero waits indefinitely.
func (c *Config) AchievementDismissTimeout() time.Duration {
	return time.Duration(c.AchievementDismissMS) * time.Millisecond
}
