package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *ProductionConfig {
	return &ProductionConfig{
		Database: DatabaseConfig{Host: "localhost", Port: 5432, Name: "crm", User: "postgres", Password: "secret"},
		Server: ServerConfig{
			Port:           8080,
			ReadTimeout:    time.Second,
			WriteTimeout:   time.Second,
			RequestTimeout: time.Second,
		},
		Security: SecurityConfig{AuthRateLimit: 20, GlobalRateLimit: 2000},
		JWT: JWTConfig{
			SecretKey:       strings.Repeat("k", 32),
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 24 * time.Hour,
			Issuer:          "simple-crm",
			Audience:        "simple-crm-api",
		},
		Email:   EmailConfig{Provider: "mock"},
		Logging: LoggingConfig{Level: "info", Output: "stdout"},
		Metrics: MetricsConfig{Enabled: true, Port: 9090, Path: "/metrics"},
		Cache:   CacheConfig{Enabled: true, Provider: "redis", RedisURL: "redis://localhost:6379"},
		Captcha: CaptchaConfig{Enabled: true, TTL: time.Minute, Padding: 15, ImageSize: 300},
	}
}

func TestValidateProductionConfig(t *testing.T) {
	require.NoError(t, ValidateProductionConfig(validConfig()))

	tests := []struct {
		name   string
		mutate func(*ProductionConfig)
		want   string
	}{
		{"short secret", func(c *ProductionConfig) { c.JWT.SecretKey = "short" }, "JWT_SECRET_KEY"},
		{"rsa without keys", func(c *ProductionConfig) { c.JWT.UseRSAKeys = true }, "JWT_PRIVATE_KEY"},
		{"refresh not longer than access", func(c *ProductionConfig) { c.JWT.RefreshTokenTTL = c.JWT.AccessTokenTTL }, "JWT_REFRESH_TOKEN_TTL"},
		{"smtp without host", func(c *ProductionConfig) { c.Email.Provider = "smtp" }, "EMAIL_HOST"},
		{"unknown email provider", func(c *ProductionConfig) { c.Email.Provider = "pigeon" }, "EMAIL_PROVIDER"},
		{"bad log level", func(c *ProductionConfig) { c.Logging.Level = "trace" }, "LOG_LEVEL"},
		{"file logging without path", func(c *ProductionConfig) { c.Logging.Output = "file" }, "LOG_FILE_PATH"},
		{"metrics port clash", func(c *ProductionConfig) { c.Metrics.Port = 8080 }, "METRICS_PORT must differ"},
		{"messaging without url", func(c *ProductionConfig) {
			c.Messaging.Enabled = true
			c.Messaging.Exchange = "crm.events"
		}, "RABBITMQ_URL"},
		{"captcha padding", func(c *ProductionConfig) { c.Captcha.Padding = 0 }, "CAPTCHA_PADDING"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := ValidateProductionConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateProductionConfigReportsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Password = ""
	cfg.JWT.Issuer = ""
	cfg.Logging.Level = "loud"

	err := ValidateProductionConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PASSWORD")
	assert.Contains(t, err.Error(), "JWT_ISSUER")
	assert.Contains(t, err.Error(), "LOG_LEVEL")
}

func TestLoadEnvFileKeepsExistingVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CRM_TEST_FROM_FILE=file\nCRM_TEST_PRESET=file\n"), 0o600))

	t.Setenv("CRM_TEST_PRESET", "env")
	t.Setenv("CRM_TEST_FROM_FILE", "")
	require.NoError(t, os.Unsetenv("CRM_TEST_FROM_FILE"))

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "file", os.Getenv("CRM_TEST_FROM_FILE"))
	assert.Equal(t, "env", os.Getenv("CRM_TEST_PRESET"))

	require.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("CRM_TEST_INT", "42")
	t.Setenv("CRM_TEST_BAD_INT", "forty-two")
	t.Setenv("CRM_TEST_DURATION", "90s")
	t.Setenv("CRM_TEST_SLICE", " a, b ,,c ")

	assert.Equal(t, 42, getEnvInt("CRM_TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("CRM_TEST_BAD_INT", 1))
	assert.Equal(t, 90*time.Second, getEnvDuration("CRM_TEST_DURATION", time.Second))
	assert.Equal(t, []string{"a", "b", "c"}, getEnvStringSlice("CRM_TEST_SLICE", nil))
	assert.Equal(t, "fallback", getEnvString("CRM_TEST_UNSET", "fallback"))
}
