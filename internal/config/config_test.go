package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		DBDriver:              DriverMemory,
		SessionSecret:         "0123456789abcdef",
		SessionTTL:            time.Hour,
		LowStockThreshold:     5,
		NotifyConcurrency:     8,
		WebhookMaxInflight:    16,
		AdminLoginMaxAttempts: 3,
	}
}

func TestLoad_Defaults(t *testing.T) {
	// GIVEN: только обязательные переменные
	t.Setenv("SESSION_SECRET", "0123456789abcdef")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("ADMIN_IDS", " U1, ,U2 ")
	t.Setenv("LINE_CHANNEL_SECRET", "cmd-secret")
	t.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "cmd-token")

	// WHEN
	cfg, err := Load()

	// THEN: значения по умолчанию и производные поля
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "Asia/Tokyo", cfg.AppTimezone)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 5, cfg.LowStockThreshold)
	assert.Equal(t, "0 0 1 * *", cfg.ReminderSchedule)
	assert.True(t, cfg.ReminderEnabled)
	assert.False(t, cfg.FeatureDataReset)
	assert.Equal(t, []string{"U1", "U2"}, cfg.AdminIDs)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins())
	assert.Equal(t, "cmd-secret", cfg.RequestChannelSecret())
	assert.Equal(t, "cmd-token", cfg.RequestChannelAccessToken())
	assert.False(t, cfg.TelegramEnabled())
}

func TestLoad_RequiresSessionSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("DB_DRIVER", "memory")

	_, err := Load()
	assert.Error(t, err)
}

func TestRequestChannelOverrides(t *testing.T) {
	cfg := validConfig()
	cfg.LineChannelSecret = "cmd"
	cfg.LineRequestChannelSecret = "req"
	cfg.LineChannelAccessToken = "cmd-token"
	cfg.LineRequestChannelAccessToken = "req-token"

	assert.Equal(t, "req", cfg.RequestChannelSecret())
	assert.Equal(t, "req-token", cfg.RequestChannelAccessToken())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid memory", func(c *Config) {}, false},
		{"postgres without password", func(c *Config) { c.DBDriver = DriverPostgres; c.DBMaxConns = 5 }, true},
		{"postgres ok", func(c *Config) {
			c.DBDriver = DriverPostgres
			c.DBPassword = "pw"
			c.DBMaxConns = 5
			c.DBMinConns = 1
		}, false},
		{"postgres min > max", func(c *Config) {
			c.DBDriver = DriverPostgres
			c.DBPassword = "pw"
			c.DBMaxConns = 1
			c.DBMinConns = 2
		}, true},
		{"unknown driver", func(c *Config) { c.DBDriver = "sqlite" }, true},
		{"short secret", func(c *Config) { c.SessionSecret = "short" }, true},
		{"zero ttl", func(c *Config) { c.SessionTTL = 0 }, true},
		{"negative threshold", func(c *Config) { c.LowStockThreshold = -1 }, true},
		{"zero concurrency", func(c *Config) { c.NotifyConcurrency = 0 }, true},
		{"zero inflight", func(c *Config) { c.WebhookMaxInflight = 0 }, true},
		{"zero attempts", func(c *Config) { c.AdminLoginMaxAttempts = 0 }, true},
		{"telegram token only", func(c *Config) { c.TelegramBotToken = "t" }, true},
		{"telegram both", func(c *Config) { c.TelegramBotToken = "t"; c.TelegramOpsChatID = -100 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{DBHost: "db", DBPort: 5432, DBUser: "u", DBPassword: "p", DBName: "snack", DBSSLMode: "disable"}
	dsn := cfg.DatabaseDSN()
	for _, part := range []string{"db", "5432", "u", "p", "snack", "disable"} {
		assert.Contains(t, dsn, part)
	}
}
