package notify

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// TelegramMirror дублирует админские уведомления в служебный Telegram-чат.
type TelegramMirror struct {
	bot    *telego.Bot
	chatID int64
}

// NewTelegramMirror создаёт бота для служебного чата.
func NewTelegramMirror(token string, chatID int64) (*TelegramMirror, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("создание Telegram-бота: %w", err)
	}
	return &TelegramMirror{bot: bot, chatID: chatID}, nil
}

// Send отправляет текст в служебный чат.
func (m *TelegramMirror) Send(ctx context.Context, text string) error {
	if _, err := m.bot.SendMessage(ctx, tu.Message(tu.ID(m.chatID), text)); err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	return nil
}
