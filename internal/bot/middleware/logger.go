// Package middleware содержит промежуточные обработчики событий мессенджера:
// логирование входящих сообщений и восстановление после паники.
package middleware

import (
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/snack-bot/internal/bot/filters"
)

// maxLoggedRunes — сколько символов текста попадает в лог.
const maxLoggedRunes = 50

// LogEvent логирует входящее текстовое событие.
// Записывает: user_id, канал, текст (первые 50 символов).
func LogEvent(channel string, ev *filters.TextEvent) {
	if ev == nil {
		return
	}

	text := []rune(ev.Text)
	short := string(text)
	if len(text) > maxLoggedRunes {
		short = string(text[:maxLoggedRunes]) + "..."
	}

	log.WithFields(log.Fields{
		"user_id": ev.UserID,
		"channel": channel,
		"text":    short,
	}).Debug("Входящее сообщение")
}
