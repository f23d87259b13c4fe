package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults(t *testing.T) {
	var c AppConfig
	applyDefaults(&c)

	assert.Equal(t, "7860", c.AppPort)
	assert.Equal(t, "https://api.telegram.org", c.TelegramAPIBase)
	assert.Equal(t, 50, c.MaxUploadSizeMB)
	assert.Equal(t, 30, c.UpstreamTimeoutSec)
	assert.Equal(t, 60, c.RateLimitPerMinute)
	assert.Equal(t, []string{"*"}, c.AllowedOrigins)
	assert.Equal(t, "3306", c.DBPort)
	assert.Equal(t, 6379, c.RedisPort)
	assert.Equal(t, "info", c.LogLevel)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	c := AppConfig{AppPort: "9000", MaxUploadSizeMB: 10}
	applyDefaults(&c)

	assert.Equal(t, "9000", c.AppPort)
	assert.Equal(t, 10, c.MaxUploadSizeMB)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "8123")
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("TELEGRAM_CHANNEL_ID", "-100999")
	t.Setenv("MAX_UPLOAD_SIZE_MB", "5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	var c AppConfig
	applyDefaults(&c)
	applyEnvOverrides(&c)

	assert.Equal(t, "8123", c.AppPort)
	assert.Equal(t, "env-token", c.TelegramBotToken)
	assert.Equal(t, "-100999", c.TelegramChannelID)
	assert.Equal(t, 5, c.MaxUploadSizeMB)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowedOrigins)
}

func TestLegacyEnvNames(t *testing.T) {
	t.Setenv("PORT", "7777")
	t.Setenv("MONGO_URL", "user:pass@tcp(db:3306)/cdn")

	var c AppConfig
	applyDefaults(&c)
	applyEnvOverrides(&c)

	assert.Equal(t, "7777", c.AppPort)
	assert.Equal(t, "user:pass@tcp(db:3306)/cdn", c.DatabaseURI)
}

func TestSplitAndTrim(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a , b ,, "))
	assert.Empty(t, splitAndTrim("  ,  "))
}
