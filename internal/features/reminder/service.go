// Package reminder — ежемесячная рассылка напоминаний о долге.
// Только читает аккаунты, журнал и балансы не меняет.
package reminder

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/snack-bot/internal/common"
	"serotonyl.ru/snack-bot/internal/models"
	"serotonyl.ru/snack-bot/internal/notify"
)

// fallbackName — обращение, если у аккаунта нет имени.
const fallbackName = "ユーザー"

// AccountLister отдаёт все аккаунты.
type AccountLister interface {
	List(ctx context.Context) ([]*models.Account, error)
}

// Broadcaster — рассылка (реализует notify.Notifier).
type Broadcaster interface {
	PushAll(ctx context.Context, msgs []notify.Message) notify.Result
	NotifyAdmins(ctx context.Context, text string) (notify.Result, error)
}

// Summary — итог прогона.
type Summary struct {
	Success     int   `json:"success"`
	Failure     int   `json:"failure"`
	TotalAmount int64 `json:"totalAmount"`
}

// Service собирает должников и рассылает напоминания.
type Service struct {
	accounts    AccountLister
	broadcaster Broadcaster
}

// NewService создаёт сервис напоминаний.
func NewService(accounts AccountLister, broadcaster Broadcaster) *Service {
	return &Service{accounts: accounts, broadcaster: broadcaster}
}

// UserText — текст напоминания пользователю.
func UserText(name string, amount int64) string {
	return fmt.Sprintf("📊 月次集計のお知らせ\n\n%sさん\n今月の未払い額は %d円 です。\n\nお支払いをお願いいたします。", name, amount)
}

// SummaryText — итог для администраторов.
func SummaryText(s *Summary) string {
	return fmt.Sprintf("📊 月次リマインダー送信完了\n\n✅ 送信成功: %d件\n❌ 送信失敗: %d件\n💰 未払い総額: %s\n\n詳細は管理画面でご確認ください。",
		s.Success, s.Failure, common.FormatYen(s.TotalAmount))
}

// Run выполняет один прогон: аккаунты с currentBalance > 0 получают по сообщению,
// админы получают итог. Ошибка чтения аккаунтов возвращается вызывающему;
// ошибки отдельных отправок только считаются.
func (s *Service) Run(ctx context.Context) (*Summary, error) {
	list, err := s.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("напоминания: чтение аккаунтов: %w", err)
	}

	summary := &Summary{}
	msgs := make([]notify.Message, 0)
	for _, a := range list {
		if a.CurrentBalance <= 0 {
			continue
		}
		name := a.DisplayName
		if name == "" {
			name = fallbackName
		}
		msgs = append(msgs, notify.Message{To: a.ID, Text: UserText(name, a.CurrentBalance)})
		summary.TotalAmount += a.CurrentBalance
	}

	log.WithFields(log.Fields{
		"accounts": len(list),
		"unpaid":   len(msgs),
	}).Info("Напоминания: должники найдены")

	if len(msgs) == 0 {
		return summary, nil
	}

	res := s.broadcaster.PushAll(ctx, msgs)
	summary.Success = res.Sent
	summary.Failure = res.Failed

	log.WithFields(log.Fields{
		"success": summary.Success,
		"failure": summary.Failure,
		"total":   summary.TotalAmount,
	}).Info("Напоминания разосланы")

	if _, err := s.broadcaster.NotifyAdmins(ctx, SummaryText(summary)); err != nil {
		log.WithError(err).Warn("Не удалось отправить итог напоминаний админам")
	}
	return summary, nil
}
