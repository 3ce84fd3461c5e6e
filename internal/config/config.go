// Package config загружает конфигурацию сервиса из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Поддерживаемые хранилища.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- HTTP ---
	HTTPAddr           string `envconfig:"HTTP_ADDR" default:":8080"`
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// --- Database ---
	// memory — только для локального запуска, данные живут до перезапуска.
	DBDriver   string `envconfig:"DB_DRIVER" default:"postgres"`
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"snackbot"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"snackbot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"2"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Asia/Tokyo"`

	// --- LINE: канал команд ---
	LineChannelSecret      string `envconfig:"LINE_CHANNEL_SECRET"`
	LineChannelAccessToken string `envconfig:"LINE_CHANNEL_ACCESS_TOKEN"`

	// --- LINE: канал заявок (если пусто — канал команд) ---
	LineRequestChannelSecret      string `envconfig:"LINE_REQUEST_CHANNEL_SECRET"`
	LineRequestChannelAccessToken string `envconfig:"LINE_REQUEST_CHANNEL_ACCESS_TOKEN"`

	// --- LINE Login ---
	LineLoginChannelID string `envconfig:"LINE_LOGIN_CHANNEL_ID"`
	LineVerifyURL      string `envconfig:"LINE_VERIFY_URL" default:"https://api.line.me/oauth2/v2.1/verify"`

	// --- Sessions ---
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"24h"`

	// --- Admin ---
	AdminIDsRaw           string        `envconfig:"ADMIN_IDS"`
	AdminIDs              []string      `envconfig:"-"` // заполним вручную
	AdminPasswordHash     string        `envconfig:"ADMIN_PASSWORD_HASH"`
	AdminLoginMaxAttempts int           `envconfig:"ADMIN_LOGIN_MAX_ATTEMPTS" default:"3"`
	AdminLoginLockout     time.Duration `envconfig:"ADMIN_LOGIN_LOCKOUT" default:"1h"`

	// --- Ledger / notifications ---
	LowStockThreshold  int `envconfig:"LOW_STOCK_THRESHOLD" default:"5"`
	NotifyConcurrency  int `envconfig:"NOTIFY_CONCURRENCY" default:"8"`
	WebhookMaxInflight int `envconfig:"WEBHOOK_MAX_INFLIGHT" default:"16"`

	// --- Reminder ---
	ReminderEnabled  bool   `envconfig:"REMINDER_ENABLED" default:"true"`
	ReminderSchedule string `envconfig:"REMINDER_SCHEDULE" default:"0 0 1 * *"`

	// --- Telegram (служебный чат, необязательно) ---
	TelegramBotToken  string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramOpsChatID int64  `envconfig:"TELEGRAM_OPS_CHAT_ID"`

	// --- Feature Flags ---
	FeatureDataReset bool `envconfig:"FEATURE_DATA_RESET" default:"false"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// RequestChannelSecret — секрет канала заявок с откатом на канал команд.
func (c *Config) RequestChannelSecret() string {
	if c.LineRequestChannelSecret != "" {
		return c.LineRequestChannelSecret
	}
	return c.LineChannelSecret
}

// RequestChannelAccessToken — токен канала заявок с откатом на канал команд.
func (c *Config) RequestChannelAccessToken() string {
	if c.LineRequestChannelAccessToken != "" {
		return c.LineRequestChannelAccessToken
	}
	return c.LineChannelAccessToken
}

// AllowedOrigins разбирает CORS_ALLOWED_ORIGINS.
func (c *Config) AllowedOrigins() []string {
	return splitCSV(c.CORSAllowedOrigins)
}

// TelegramEnabled — задан ли служебный Telegram-чат.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramOpsChatID != 0
}

// Validate проверяет перекрёстные правила.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres:
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD обязателен для DB_DRIVER=postgres")
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("неизвестный DB_DRIVER %q", c.DBDriver)
	}
	if len(c.SessionSecret) < 16 {
		return fmt.Errorf("SESSION_SECRET должен быть не короче 16 символов")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL должен быть > 0")
	}
	if c.LowStockThreshold < 0 {
		return fmt.Errorf("LOW_STOCK_THRESHOLD должен быть >= 0")
	}
	if c.NotifyConcurrency <= 0 {
		return fmt.Errorf("NOTIFY_CONCURRENCY должен быть > 0")
	}
	if c.WebhookMaxInflight <= 0 {
		return fmt.Errorf("WEBHOOK_MAX_INFLIGHT должен быть > 0")
	}
	if c.AdminLoginMaxAttempts <= 0 {
		return fmt.Errorf("ADMIN_LOGIN_MAX_ATTEMPTS должен быть > 0")
	}
	if (c.TelegramBotToken == "") != (c.TelegramOpsChatID == 0) {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN и TELEGRAM_OPS_CHAT_ID задаются вместе")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	cfg.AdminIDs = splitCSV(cfg.AdminIDsRaw)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func splitCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

