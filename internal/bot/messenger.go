package bot

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"serotonyl.ru/snack-bot/internal/models"
)

// Messenger — исходящие операции мессенджера.
type Messenger interface {
	// Reply отвечает на конкретное входящее сообщение.
	Reply(ctx context.Context, replyToken, text string) error
	// Push отправляет сообщение известному пользователю.
	Push(ctx context.Context, to, text string) error
	// Profile возвращает имя и аватар пользователя.
	Profile(ctx context.Context, userID string) (*models.Profile, error)
}

// lineTimeout — таймаут одного вызова Messaging API.
const lineTimeout = 10 * time.Second

// LineMessenger — Messenger поверх Messaging API LINE.
// Клиент SDK общий для всех горутин, поэтому контекст в него не передаётся:
// отмена проверяется перед вызовом, длительность ограничена таймаутом HTTP-клиента.
type LineMessenger struct {
	api *messaging_api.MessagingApiAPI
}

// NewLineMessenger создаёт клиента с токеном канала.
func NewLineMessenger(channelToken string) (*LineMessenger, error) {
	api, err := messaging_api.NewMessagingApiAPI(channelToken,
		messaging_api.WithHTTPClient(&http.Client{Timeout: lineTimeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("создание клиента LINE: %w", err)
	}
	return &LineMessenger{api: api}, nil
}

func textMessages(text string) []messaging_api.MessageInterface {
	return []messaging_api.MessageInterface{messaging_api.TextMessage{Text: text}}
}

// Reply отвечает по replyToken.
func (m *LineMessenger) Reply(ctx context.Context, replyToken, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := m.api.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   textMessages(text),
	})
	if err != nil {
		return fmt.Errorf("LINE reply: %w", err)
	}
	return nil
}

// Push отправляет сообщение пользователю to.
func (m *LineMessenger) Push(ctx context.Context, to, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := m.api.PushMessage(&messaging_api.PushMessageRequest{
		To:       to,
		Messages: textMessages(text),
	}, "")
	if err != nil {
		return fmt.Errorf("LINE push: %w", err)
	}
	return nil
}

// Profile запрашивает профиль пользователя.
func (m *LineMessenger) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := m.api.GetProfile(userID)
	if err != nil {
		return nil, fmt.Errorf("LINE profile: %w", err)
	}
	return &models.Profile{DisplayName: p.DisplayName, PictureURL: p.PictureUrl}, nil
}
