// Package notify рассылает push-сообщения: админам (малый остаток, итоги
// напоминаний) и пользователям (ежемесячные напоминания о долге).
// Доставка best-effort: ошибки отдельных отправок логируются и считаются,
// но не прерывают рассылку.
package notify

import (
	"context"
	"fmt"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"serotonyl.ru/snack-bot/internal/models"
)

// DefaultConcurrency — сколько отправок выполняется одновременно.
const DefaultConcurrency = 8

// Pusher отправляет сообщение известному пользователю мессенджера.
type Pusher interface {
	Push(ctx context.Context, to, text string) error
}

// AdminDirectory отдаёт список администраторов.
type AdminDirectory interface {
	Admins(ctx context.Context) ([]*models.Account, error)
}

// Mirror дублирует админские уведомления в служебный канал.
type Mirror interface {
	Send(ctx context.Context, text string) error
}

// Message — одно исходящее сообщение.
type Message struct {
	To   string
	Text string
}

// Result — итог рассылки.
type Result struct {
	Sent   int
	Failed int
}

// Notifier выполняет рассылки с ограниченным параллелизмом.
type Notifier struct {
	pusher      Pusher
	admins      AdminDirectory
	mirror      Mirror
	concurrency int
}

// New создаёт рассыльщика. mirror может быть nil.
func New(pusher Pusher, admins AdminDirectory, mirror Mirror, concurrency int) *Notifier {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Notifier{pusher: pusher, admins: admins, mirror: mirror, concurrency: concurrency}
}

// PushAll отправляет все сообщения, не больше concurrency одновременно.
// Порядок отправки не гарантируется.
func (n *Notifier) PushAll(ctx context.Context, msgs []Message) Result {
	var sent, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.concurrency)
	for _, m := range msgs {
		g.Go(func() error {
			if err := n.pusher.Push(gctx, m.To, m.Text); err != nil {
				failed.Add(1)
				log.WithError(err).WithField("to", m.To).Warn("Не удалось отправить сообщение")
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait() // горутины не возвращают ошибок

	return Result{Sent: int(sent.Load()), Failed: int(failed.Load())}
}

// NotifyAdmins отправляет текст всем администраторам и в служебный канал.
// Ошибка возвращается, только если не удалось получить список админов.
func (n *Notifier) NotifyAdmins(ctx context.Context, text string) (Result, error) {
	admins, err := n.admins.Admins(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("список админов: %w", err)
	}

	msgs := make([]Message, 0, len(admins))
	for _, a := range admins {
		msgs = append(msgs, Message{To: a.ID, Text: text})
	}
	res := n.PushAll(ctx, msgs)

	if n.mirror != nil {
		if err := n.mirror.Send(ctx, text); err != nil {
			log.WithError(err).Warn("Не удалось продублировать уведомление в служебный чат")
		}
	}

	log.WithFields(log.Fields{
		"admins": len(admins),
		"sent":   res.Sent,
		"failed": res.Failed,
	}).Debug("Уведомление админам разослано")
	return res, nil
}

// LowStockText — текст предупреждения о малом остатке.
func LowStockText(itemName string, stock int) string {
	return fmt.Sprintf("⚠️ 在庫が少なくなっています!\n\n%s\n残り: %d個", itemName, stock)
}

// LowStock предупреждает админов, что товар заканчивается. Ошибки только логируются.
func (n *Notifier) LowStock(ctx context.Context, itemName string, stock int) {
	if _, err := n.NotifyAdmins(ctx, LowStockText(itemName, stock)); err != nil {
		log.WithError(err).WithField("item", itemName).Error("Не удалось отправить уведомление о малом остатке")
	}
}
