package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                     "development",
		APIBaseURL:              "http://localhost:8375",
		UserID:                  "u1",
		ReadTimeoutMS:           10000,
		WriteTimeoutMS:          10000,
		UploadTimeoutMS:         15000,
		FeedFallbackConcurrency: 1,
		AchievementStaggerMS:    1000,
		AchievementDismissMS:    15000,
		JWTSecret:               defaultJWTSecret,
		DBDriver:                "sqlite",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"defaults are valid", func(_ *Config) {}, false},
		{"missing base url", func(c *Config) { c.APIBaseURL = "" }, true},
		{"zero read timeout", func(c *Config) { c.ReadTimeoutMS = 0 }, true},
		{"negative upload timeout", func(c *Config) { c.UploadTimeoutMS = -1 }, true},
		{"zero fallback concurrency", func(c *Config) { c.FeedFallbackConcurrency = 0 }, true},
		{"negative budget", func(c *Config) { c.FeedFallbackBudgetMS = -5 }, true},
		{"negative stagger", func(c *Config) { c.AchievementStaggerMS = -1 }, true},
		{"negative dismiss timeout", func(c *Config) { c.AchievementDismissMS = -1 }, true},
		{"unbounded dismiss wait", func(c *Config) { c.AchievementDismissMS = 0 }, false},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, true},
		{"anonymous viewer allowed", func(c *Config) { c.UserID = "" }, false},
		{"production with default secret", func(c *Config) { c.Env = "production" }, true},
		{"production with strong secret", func(c *Config) {
			c.Env = "production"
			c.JWTSecret = "secure-secret-at-least-32-chars-long"
		}, false},
		{"production postgres without ssl", func(c *Config) {
			c.Env = "prod"
			c.JWTSecret = "secure-secret-at-least-32-chars-long"
			c.DBDriver = "postgres"
			c.DBSSLMode = "disable"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	t.Parallel()
	c := validConfig()
	c.FeedFallbackBudgetMS = 2500

	assert.Equal(t, 10*time.Second, c.ReadTimeout())
	assert.Equal(t, 10*time.Second, c.WriteTimeout())
	assert.Equal(t, 15*time.Second, c.UploadTimeout())
	assert.Equal(t, 2500*time.Millisecond, c.FeedFallbackBudget())
	assert.Equal(t, time.Second, c.AchievementStagger())
	assert.Equal(t, 15*time.Second, c.AchievementDismissTimeout())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	defer viper.Reset()
	defer os.Unsetenv("APP_ENV")
	defer os.Unsetenv("API_BASE_URL")
	defer os.Unsetenv("DB_DRIVER")
	defer os.Unsetenv("READ_TIMEOUT_MS")

	os.Setenv("APP_ENV", "test")
	os.Setenv("API_BASE_URL", "http://api.example.test/ ")
	os.Setenv("DB_DRIVER", "  SQLite ")
	os.Setenv("READ_TIMEOUT_MS", "5000")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://api.example.test", cfg.APIBaseURL)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 5*time.Second, cfg.ReadTimeout())
	assert.Equal(t, 15*time.Second, cfg.UploadTimeout())
	assert.Equal(t, 1, cfg.FeedFallbackConcurrency)
}
