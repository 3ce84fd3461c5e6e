// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: форматирование сумм, работа с часовым поясом, JSON-ответы.
package common

import (
	"fmt"
	"strconv"
	"time"
)

// FormatYen форматирует сумму в иенах с разделителями тысяч.
// Пример: FormatYen(12345) → "¥12,345"
func FormatYen(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	s := strconv.FormatInt(amount, 10)
	// Вставляем запятые справа налево
	out := make([]byte, 0, len(s)+len(s)/3)
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	return fmt.Sprintf("%s¥%s", sign, out)
}

// LoadLocation загружает часовой пояс по имени.
// Если tzdata недоступна — для Asia/Tokyo используем фиксированный UTC+9.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc
	}
	if name == "Asia/Tokyo" {
		return time.FixedZone("JST", 9*60*60)
	}
	return time.UTC
}

// FormatDateTime форматирует время в формат "2006/01/02 15:04" в указанном поясе.
// Используется для отображения дат в истории.
func FormatDateTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006/01/02 15:04")
}
