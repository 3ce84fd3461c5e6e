package bot

import (
	"context"
	"errors"
	"net/http"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"serotonyl.ru/snack-bot/internal/bot/filters"
)

// DefaultMaxInflight — сколько событий одного вебхука обрабатывается параллельно.
const DefaultMaxInflight = 16

// EventHandler обрабатывает одно текстовое событие. Ошибки он логирует сам.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev *filters.TextEvent)
}

// Webhook — HTTP-точка входа канала LINE.
// Проверяет подпись, разбирает пакет событий и отвечает 200 после обработки всех событий.
type Webhook struct {
	name        string
	secret      string
	handler     EventHandler
	maxInflight int
}

// NewWebhook создаёт вебхук канала с секретом secret.
func NewWebhook(name, secret string, handler EventHandler, maxInflight int) *Webhook {
	if maxInflight <= 0 {
		maxInflight = DefaultMaxInflight
	}
	return &Webhook{name: name, secret: secret, handler: handler, maxInflight: maxInflight}
}

func (wh *Webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := log.WithField("webhook", wh.name)

	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	if wh.secret == "" {
		logger.Error("Секрет канала не задан")
		http.Error(w, "Channel secret is not configured", http.StatusInternalServerError)
		return
	}

	cb, err := webhook.ParseRequest(wh.secret, r)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			logger.Warn("Подпись вебхука не прошла проверку")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		logger.WithError(err).Warn("Не удалось разобрать вебхук")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	// Пакет обрабатывается целиком до ответа; разрыв соединения обработку не прерывает.
	ctx := context.WithoutCancel(r.Context())
	g := new(errgroup.Group)
	g.SetLimit(wh.maxInflight)
	handled := 0
	for _, event := range cb.Events {
		ev, ok := filters.TextFromUser(event)
		if !ok {
			continue
		}
		handled++
		g.Go(func() error {
			wh.handler.HandleEvent(ctx, ev)
			return nil
		})
	}
	_ = g.Wait()

	logger.WithFields(log.Fields{
		"events":  len(cb.Events),
		"handled": handled,
	}).Debug("Пакет событий обработан")

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
