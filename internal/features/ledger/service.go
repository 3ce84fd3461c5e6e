// Package ledger — движок списаний: атомарно уменьшает остаток товара,
// списывает цену с баланса аккаунта и добавляет запись в журнал.
//
// Все проверки (существование, остаток, активность) выполняются внутри
// транзакции хранилища, а не перед ней, чтобы не опираться на устаревшее чтение.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/snack-bot/internal/common"
	"serotonyl.ru/snack-bot/internal/models"
	"serotonyl.ru/snack-bot/internal/store"
)

const (
	// DefaultLowStockThreshold — верхняя граница «мало осталось» (включительно).
	DefaultLowStockThreshold = 5
	// alertTimeout — сколько ждём доставку уведомления о малом остатке.
	alertTimeout = 30 * time.Second
)

// LowStockNotifier рассылает админам предупреждение о заканчивающемся товаре.
type LowStockNotifier interface {
	LowStock(ctx context.Context, itemName string, stock int)
}

// Receipt — результат успешного списания. Все поля прочитаны в одной транзакции.
type Receipt struct {
	EntryID  string `json:"historyId"`
	ItemID   string `json:"itemId"`
	ItemName string `json:"itemName"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
	NewStock int    `json:"newStock"`
}

// Service — движок списаний.
type Service struct {
	tx        store.Transactor
	entries   store.LedgerStore
	notifier  LowStockNotifier
	threshold int
	now       func() time.Time

	alerts sync.WaitGroup // фоновые уведомления о малом остатке
}

// NewService создаёт движок. threshold <= 0 заменяется на DefaultLowStockThreshold.
func NewService(tx store.Transactor, entries store.LedgerStore, notifier LowStockNotifier, threshold int) *Service {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	return &Service{
		tx:        tx,
		entries:   entries,
		notifier:  notifier,
		threshold: threshold,
		now:       time.Now,
	}
}

// Consume списывает одну единицу товара itemID на аккаунт accountID.
//
// Внутри одной транзакции:
//   - товар должен существовать, иметь остаток > 0 и быть активным;
//   - остаток уменьшается ровно на 1;
//   - баланс уменьшается на цену (новый аккаунт создаётся сразу с балансом -цена);
//   - в журнал пишется запись с ценой, прочитанной в этой же транзакции.
func (s *Service) Consume(ctx context.Context, accountID, itemID string) (*Receipt, error) {
	if itemID == "" {
		return nil, ErrItemIDRequired
	}
	if accountID == "" {
		return nil, common.ErrUnauthenticated
	}

	var receipt *Receipt
	err := s.tx.RunInTx(ctx, func(tx store.Tx) error {
		// Транзакция может перезапускаться — результат собираем заново
		receipt = nil
		now := s.now()

		item, err := tx.GetItemForUpdate(ctx, itemID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrItemNotFound
		}
		if err != nil {
			return fmt.Errorf("чтение товара: %w", err)
		}
		if item.Stock <= 0 {
			return ErrOutOfStock
		}
		if !item.IsActive {
			return ErrItemInactive
		}

		newStock := item.Stock - 1
		if err := tx.UpdateItemStock(ctx, item.ID, item.Stock, newStock, now); err != nil {
			return fmt.Errorf("обновление остатка: %w", err)
		}

		if err := debit(ctx, tx, accountID, item.Price, now); err != nil {
			return err
		}

		entry := &models.LedgerEntry{
			ID:               uuid.NewString(),
			AccountID:        accountID,
			ItemID:           item.ID,
			ItemNameSnapshot: item.Name,
			Quantity:         1,
			PriceAtTime:      item.Price,
			Billed:           true,
			Timestamp:        now,
		}
		if err := tx.CreateLedgerEntry(ctx, entry); err != nil {
			return fmt.Errorf("запись в журнал: %w", err)
		}

		receipt = &Receipt{
			EntryID:  entry.ID,
			ItemID:   item.ID,
			ItemName: item.Name,
			Price:    item.Price,
			Quantity: 1,
			NewStock: newStock,
		}
		return nil
	})
	if err != nil {
		return nil, s.mapTxError(err)
	}

	log.WithFields(log.Fields{
		"account_id": accountID,
		"item_id":    receipt.ItemID,
		"price":      receipt.Price,
		"new_stock":  receipt.NewStock,
	}).Info("Списание выполнено")

	s.maybeAlert(ctx, receipt)
	return receipt, nil
}

// debit списывает price с баланса или создаёт аккаунт с балансом -price.
func debit(ctx context.Context, tx store.Tx, accountID string, price int64, now time.Time) error {
	acc, err := tx.GetAccountForUpdate(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		// Первое обращение: аккаунт создаётся сразу с долгом
		err = tx.CreateAccount(ctx, &models.Account{
			ID:             accountID,
			DisplayName:    models.DefaultDisplayName,
			Role:           models.RoleUser,
			CurrentBalance: -price,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			return fmt.Errorf("создание аккаунта: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("чтение аккаунта: %w", err)
	}
	if err := tx.UpdateAccountBalance(ctx, acc.ID, acc.CurrentBalance, acc.CurrentBalance-price, now); err != nil {
		return fmt.Errorf("обновление баланса: %w", err)
	}
	return nil
}

// ConsumeByName списывает quantity единиц первого товара с точным именем name.
// Баланс не меняется: запись журнала помечается как неоплачиваемая.
// Активность товара не проверяется, нужен остаток >= quantity.
func (s *Service) ConsumeByName(ctx context.Context, accountID, name string, quantity int) (*Receipt, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if name == "" {
		return nil, ErrItemNotFound
	}

	var receipt *Receipt
	err := s.tx.RunInTx(ctx, func(tx store.Tx) error {
		receipt = nil
		now := s.now()

		item, err := tx.FindItemByNameForUpdate(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			return ErrItemNotFound
		}
		if err != nil {
			return fmt.Errorf("поиск товара: %w", err)
		}
		if item.Stock < quantity {
			return &StockShortageError{Available: item.Stock}
		}

		newStock := item.Stock - quantity
		if err := tx.UpdateItemStock(ctx, item.ID, item.Stock, newStock, now); err != nil {
			return fmt.Errorf("обновление остатка: %w", err)
		}

		entry := &models.LedgerEntry{
			ID:               uuid.NewString(),
			AccountID:        accountID,
			ItemID:           item.ID,
			ItemNameSnapshot: item.Name,
			Quantity:         quantity,
			PriceAtTime:      item.Price,
			Billed:           false,
			Timestamp:        now,
		}
		if err := tx.CreateLedgerEntry(ctx, entry); err != nil {
			return fmt.Errorf("запись в журнал: %w", err)
		}

		receipt = &Receipt{
			EntryID:  entry.ID,
			ItemID:   item.ID,
			ItemName: item.Name,
			Price:    item.Price,
			Quantity: quantity,
			NewStock: newStock,
		}
		return nil
	})
	if err != nil {
		return nil, s.mapTxError(err)
	}

	log.WithFields(log.Fields{
		"account_id": accountID,
		"item_id":    receipt.ItemID,
		"quantity":   quantity,
		"new_stock":  receipt.NewStock,
	}).Info("Списание по имени выполнено")

	s.maybeAlert(ctx, receipt)
	return receipt, nil
}

// mapTxError приводит ошибку транзакции к таксономии ровно один раз.
func (s *Service) mapTxError(err error) error {
	var shortage *StockShortageError
	if errors.As(err, &shortage) {
		return shortage
	}
	var ce *common.Error
	if errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, store.ErrConflict) {
		return common.Internal(fmt.Errorf("транзакция не прошла после %d попыток: %w", store.MaxTxAttempts, err))
	}
	return common.Internal(err)
}

// maybeAlert запускает уведомление о малом остатке, если 0 < остаток <= порога.
// Уведомление идёт в фоне и не влияет на результат списания.
func (s *Service) maybeAlert(ctx context.Context, r *Receipt) {
	if s.notifier == nil || r.NewStock <= 0 || r.NewStock > s.threshold {
		return
	}
	s.alerts.Add(1)
	go func() {
		defer s.alerts.Done()
		defer func() {
			if rec := recover(); rec != nil {
				log.WithField("panic", rec).Error("Паника при уведомлении о малом остатке")
			}
		}()
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
		defer cancel()
		s.notifier.LowStock(actx, r.ItemName, r.NewStock)
	}()
}

// Wait дожидается фоновых уведомлений. Вызывается при остановке сервиса.
func (s *Service) Wait() {
	s.alerts.Wait()
}

// DefaultHistoryLimit — размер страницы истории по умолчанию.
const DefaultHistoryLimit = 50

// MaxHistoryLimit — максимальный размер страницы истории.
const MaxHistoryLimit = 500

// History возвращает журнал (новые сверху). accountID == "" — по всем аккаунтам.
func (s *Service) History(ctx context.Context, accountID string, limit int) ([]*models.LedgerEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	entries, err := s.entries.ListLedgerEntries(ctx, store.LedgerFilter{AccountID: accountID, Limit: limit})
	if err != nil {
		return nil, common.Internal(fmt.Errorf("чтение журнала: %w", err))
	}
	if entries == nil {
		entries = []*models.LedgerEntry{}
	}
	return entries, nil
}
