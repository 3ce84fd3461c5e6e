// Package filters отбирает из вебхука события, которые бот умеет обрабатывать:
// текстовые сообщения с известным отправителем (личный чат, группа или комната).
package filters

import (
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	log "github.com/sirupsen/logrus"
)

// TextEvent — текстовое сообщение пользователя.
type TextEvent struct {
	UserID     string
	ReplyToken string
	Text       string // без пробелов по краям
}

// TextFromUser возвращает событие, если это текстовое сообщение с userId отправителя.
// Остальные события (стикеры, follow, сообщения без userId) пропускаются.
func TextFromUser(event webhook.EventInterface) (*TextEvent, bool) {
	msg, ok := event.(webhook.MessageEvent)
	if !ok {
		log.WithField("component", "EventFilter").Debug("skip: not a message event")
		return nil, false
	}

	text, ok := msg.Message.(webhook.TextMessageContent)
	if !ok {
		log.WithField("component", "EventFilter").Debug("skip: not a text message")
		return nil, false
	}

	userID := senderID(msg.Source)
	if userID == "" {
		log.WithField("component", "EventFilter").Debug("skip: sender unknown")
		return nil, false
	}

	return &TextEvent{
		UserID:     userID,
		ReplyToken: msg.ReplyToken,
		Text:       strings.TrimSpace(text.Text),
	}, true
}

// senderID возвращает id отправителя. В группах и комнатах LINE передаёт
// userId не всегда, такие сообщения пропускаются.
func senderID(src webhook.SourceInterface) string {
	switch s := src.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	}
	return ""
}
