// Package api собирает HTTP-роутер: вебхуки LINE и JSON API дашборда.
//
// Порядок middleware: RequestID, RealIP, журнал запросов, восстановление
// после паники, CORS. Маршруты подключают сами feature-пакеты.
package api

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/snack-bot/internal/common"
)

// Пути вебхуков LINE.
const (
	CommandWebhookPath = "/webhook/line"
	RequestWebhookPath = "/webhook/requests"
)

// Routes — feature-обработчик, который сам регистрирует свои маршруты.
type Routes interface {
	RegisterRoutes(r chi.Router)
}

// Options — всё, что нужно роутеру.
type Options struct {
	AllowedOrigins []string
	CommandWebhook http.Handler
	RequestWebhook http.Handler
	Features       []Routes
}

// NewRouter создаёт роутер со всеми маршрутами.
func NewRouter(opts Options) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(recoverer)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		common.RespondError(w, common.NotFound("Not Found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		common.Respond(w, http.StatusMethodNotAllowed, common.ErrorBody{Error: "Method Not Allowed"})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		common.Respond(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Вебхуки сами отвечают 405 на не-POST: LINE ждёт простой текст, а не JSON
	if opts.CommandWebhook != nil {
		r.Handle(CommandWebhookPath, opts.CommandWebhook)
	}
	if opts.RequestWebhook != nil {
		r.Handle(RequestWebhookPath, opts.RequestWebhook)
	}

	for _, f := range opts.Features {
		f.RegisterRoutes(r)
	}
	return r
}

// accessLog пишет одну запись на запрос.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		entry := log.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		})
		if ww.Status() >= http.StatusInternalServerError {
			entry.Warn("HTTP запрос")
			return
		}
		entry.Debug("HTTP запрос")
	})
}

// recoverer превращает панику обработчика в 500 с JSON-телом.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.WithFields(log.Fields{
					"component":  "http",
					"panic":      fmt.Sprintf("%v", rec),
					"stack":      string(debug.Stack()),
					"request_id": middleware.GetReqID(r.Context()),
				}).Error("ПАНИКА в HTTP-обработчике — восстановлено")
				common.RespondError(w, common.Internal(fmt.Errorf("panic: %v", rec)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
