package bot

import (
	"context"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/snack-bot/internal/bot/filters"
	"serotonyl.ru/snack-bot/internal/bot/middleware"
	"serotonyl.ru/snack-bot/internal/models"
)

// RequestCreator регистрирует заявку из чата.
type RequestCreator interface {
	CreateFromChat(ctx context.Context, accountID, accountName, text, description string) (*models.Request, error)
}

// Intake превращает любое непустое сообщение в заявку на покупку.
// Работает в отдельном канале LINE и команды не разбирает.
type Intake struct {
	messenger Messenger
	accounts  AccountEnsurer
	requests  RequestCreator
}

// NewIntake создаёт приёмщик заявок.
func NewIntake(messenger Messenger, accs AccountEnsurer, requests RequestCreator) *Intake {
	return &Intake{messenger: messenger, accounts: accs, requests: requests}
}

// HandleEvent регистрирует заявку и отвечает подтверждением.
func (in *Intake) HandleEvent(ctx context.Context, ev *filters.TextEvent) {
	defer middleware.RecoverFromPanic("RequestIntake")
	middleware.LogEvent("requests", ev)

	if ev.Text == "" {
		return
	}

	name := models.UnknownDisplayName
	acc, err := in.accounts.EnsureAccount(ctx, ev.UserID, in.messenger)
	if err != nil {
		log.WithError(err).WithField("user_id", ev.UserID).Warn("EnsureAccount failed")
	} else if acc.DisplayName != "" {
		name = acc.DisplayName
	}

	reply := intakeAckText(ev.Text)
	if _, err := in.requests.CreateFromChat(ctx, ev.UserID, name, ev.Text, "LINE Botから送信: "+ev.Text); err != nil {
		log.WithError(err).WithField("user_id", ev.UserID).Error("Не удалось создать заявку")
		reply = msgIntakeError
	}

	if err := in.messenger.Reply(ctx, ev.ReplyToken, reply); err != nil {
		log.WithError(err).WithField("user_id", ev.UserID).Error("Ошибка отправки ответа")
	}
}
