// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт хранилище, клиентов мессенджера, сервисы,
// обработчики и собирает всё в один HTTP-роутер и планировщик.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/snack-bot/internal/api"
	"serotonyl.ru/snack-bot/internal/bot"
	"serotonyl.ru/snack-bot/internal/common"
	"serotonyl.ru/snack-bot/internal/config"
	"serotonyl.ru/snack-bot/internal/db/memory"
	"serotonyl.ru/snack-bot/internal/db/postgres"
	"serotonyl.ru/snack-bot/internal/features/accounts"
	"serotonyl.ru/snack-bot/internal/features/auth"
	"serotonyl.ru/snack-bot/internal/features/catalog"
	"serotonyl.ru/snack-bot/internal/features/ledger"
	"serotonyl.ru/snack-bot/internal/features/reminder"
	"serotonyl.ru/snack-bot/internal/features/requests"
	"serotonyl.ru/snack-bot/internal/jobs"
	"serotonyl.ru/snack-bot/internal/notify"
	"serotonyl.ru/snack-bot/internal/store"
)

// verifyTimeout — таймаут запроса к эндпоинту проверки LINE Login.
const verifyTimeout = 10 * time.Second

// App содержит все компоненты приложения.
type App struct {
	Handler   http.Handler
	Scheduler *jobs.Scheduler // nil, если напоминания выключены
	Store     store.Store
	Ledger    *ledger.Service
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. Хранилище ===
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// === 2. Мессенджеры ===
	commandMessenger, err := bot.NewLineMessenger(cfg.LineChannelAccessToken)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("канал команд: %w", err)
	}
	requestMessenger, err := bot.NewLineMessenger(cfg.RequestChannelAccessToken())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("канал заявок: %w", err)
	}
	if cfg.LineChannelSecret == "" {
		log.Warn("LINE_CHANNEL_SECRET не задан — вебхуки будут отвечать 500")
	}

	// === 3. Сервисы ===
	accountService := accounts.NewService(st)
	catalogService := catalog.NewService(st)
	requestService := requests.NewService(st)

	var mirror notify.Mirror
	if cfg.TelegramEnabled() {
		tg, err := notify.NewTelegramMirror(cfg.TelegramBotToken, cfg.TelegramOpsChatID)
		if err != nil {
			st.Close()
			return nil, err
		}
		mirror = tg
		log.WithField("chat_id", cfg.TelegramOpsChatID).Info("Служебный Telegram-чат подключён")
	}
	notifier := notify.New(commandMessenger, accountService, mirror, cfg.NotifyConcurrency)

	ledgerService := ledger.NewService(st, st, notifier, cfg.LowStockThreshold)
	reminderService := reminder.NewService(accountService, notifier)

	tokens := auth.NewTokens(cfg.SessionSecret, cfg.SessionTTL)
	guard := auth.NewMiddleware(tokens)
	verifier := auth.NewLINEVerifier(cfg.LineVerifyURL, &http.Client{Timeout: verifyTimeout})
	authService := auth.NewService(tokens, verifier, accountService, st, auth.Config{
		LoginChannelID:    cfg.LineLoginChannelID,
		AdminPasswordHash: cfg.AdminPasswordHash,
		MaxAttempts:       cfg.AdminLoginMaxAttempts,
		Lockout:           cfg.AdminLoginLockout,
	})

	// Администраторы из ADMIN_IDS
	if err := accountService.PromoteAdmins(ctx, cfg.AdminIDs); err != nil {
		st.Close()
		return nil, fmt.Errorf("назначение админов: %w", err)
	}

	// === 4. Чат-бот ===
	commandBot := bot.New(commandMessenger, catalogService, ledgerService, accountService)
	intake := bot.NewIntake(requestMessenger, accountService, requestService)

	// === 5. HTTP ===
	router := api.NewRouter(api.Options{
		AllowedOrigins: cfg.AllowedOrigins(),
		CommandWebhook: bot.NewWebhook("commands", cfg.LineChannelSecret, commandBot, cfg.WebhookMaxInflight),
		RequestWebhook: bot.NewWebhook("requests", cfg.RequestChannelSecret(), intake, cfg.WebhookMaxInflight),
		Features: []api.Routes{
			auth.NewHandler(authService),
			accounts.NewHandler(accountService, guard),
			catalog.NewHandler(catalogService, guard, st, cfg.FeatureDataReset),
			ledger.NewHandler(ledgerService, guard),
			requests.NewHandler(requestService, guard),
			reminder.NewHandler(reminderService, guard),
		},
	})

	// === 6. Планировщик задач ===
	var scheduler *jobs.Scheduler
	if cfg.ReminderEnabled {
		scheduler = jobs.NewScheduler(reminderService, cfg.ReminderSchedule, common.LoadLocation(cfg.AppTimezone))
	}

	return &App{
		Handler:   router,
		Scheduler: scheduler,
		Store:     st,
		Ledger:    ledgerService,
	}, nil
}

// openStore открывает хранилище по DB_DRIVER и применяет миграции.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.DBDriver == config.DriverMemory {
		log.Warn("DB_DRIVER=memory — данные не переживут перезапуск")
		return memory.New(), nil
	}

	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	// Запускаем миграции
	if err := postgres.RunMigrations(ctx, pool, postgres.Migrations); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	return postgres.New(pool), nil
}
