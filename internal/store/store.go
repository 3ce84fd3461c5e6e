// Package store описывает контракт хранилища документов.
// Реализации: internal/db/postgres (боевая) и internal/db/memory (dev/тесты).
//
// Все изменения, затрагивающие несколько документов, выполняются через
// Transactor.RunInTx: чтение и запись внутри одной единицы фиксации.
package store

import (
	"context"
	"errors"
	"time"

	"serotonyl.ru/snack-bot/internal/models"
)

var (
	// ErrNotFound — документ не найден.
	ErrNotFound = errors.New("document not found")
	// ErrConflict — конкурентная запись изменила документ между чтением и записью.
	// RunInTx перезапускает транзакцию на этой ошибке.
	ErrConflict = errors.New("concurrent modification")
	// ErrStockLimit — пополнение вывело бы остаток за models.MaxStock.
	ErrStockLimit = errors.New("stock limit exceeded")
)

// MaxTxAttempts — сколько раз RunInTx пробует выполнить транзакцию при конфликтах.
const MaxTxAttempts = 5

// Tx — операции, доступные внутри транзакции.
// Методы *ForUpdate блокируют документ до конца транзакции (там, где бэкенд это умеет).
type Tx interface {
	GetItemForUpdate(ctx context.Context, id string) (*models.Item, error)
	// FindItemByNameForUpdate возвращает первый (по времени создания) товар с точным именем.
	FindItemByNameForUpdate(ctx context.Context, name string) (*models.Item, error)
	// UpdateItemStock записывает next, только если остаток всё ещё равен expected.
	UpdateItemStock(ctx context.Context, id string, expected, next int, at time.Time) error

	GetAccountForUpdate(ctx context.Context, id string) (*models.Account, error)
	// CreateAccount возвращает ErrConflict, если аккаунт уже создан параллельно.
	CreateAccount(ctx context.Context, a *models.Account) error
	// UpdateAccountBalance записывает next, только если баланс всё ещё равен expected.
	UpdateAccountBalance(ctx context.Context, id string, expected, next int64, at time.Time) error

	CreateLedgerEntry(ctx context.Context, e *models.LedgerEntry) error
}

// Transactor выполняет fn атомарно. Ошибка fn откатывает все записи.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// ItemFilter — фильтр списка товаров.
type ItemFilter struct {
	InStockOnly bool // stock > 0, сортировка по остатку (убывание)
	ActiveOnly  bool
}

// ItemPatch — частичное обновление товара. nil — поле не меняется.
type ItemPatch struct {
	Name        *string
	Description *string
	ImageURL    *string
	Price       *int64
	Stock       *int
	IsActive    *bool
}

// ItemStore — CRUD каталога.
type ItemStore interface {
	CreateItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, id string) (*models.Item, error)
	ListItems(ctx context.Context, f ItemFilter) ([]*models.Item, error)
	// UpdateItem применяет к товару только заданные поля патча.
	UpdateItem(ctx context.Context, id string, patch ItemPatch, at time.Time) (*models.Item, error)
	// AddStock атомарно прибавляет delta к остатку и возвращает обновлённый товар.
	// Если сумма превысит models.MaxStock, остаток не меняется и возвращается ErrStockLimit.
	AddStock(ctx context.Context, id string, delta int, at time.Time) (*models.Item, error)
	DeleteItem(ctx context.Context, id string) error
}

// AccountStore — аккаунты вне транзакций журнала.
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]*models.Account, error)
	ListAdmins(ctx context.Context) ([]*models.Account, error)
	// InsertAccount создаёт аккаунт, если его нет. Возвращает false, если он уже был.
	InsertAccount(ctx context.Context, a *models.Account) (bool, error)
	// UpsertProfile обновляет имя и аватар, не трогая баланс и роль.
	// Если аккаунта нет — создаёт его с нулевым балансом и ролью user.
	UpsertProfile(ctx context.Context, id, displayName, pictureURL string, at time.Time) (*models.Account, error)
	SetRole(ctx context.Context, id string, role models.Role, at time.Time) error
	// SettleBalance обнуляет баланс (погашение долга).
	SettleBalance(ctx context.Context, id string, at time.Time) (*models.Account, error)
}

// LedgerFilter — фильтр истории потребления.
type LedgerFilter struct {
	AccountID string
	Limit     int
}

// LedgerStore — чтение журнала. Записи создаются только через Tx.
type LedgerStore interface {
	ListLedgerEntries(ctx context.Context, f LedgerFilter) ([]*models.LedgerEntry, error)
}

// RequestFilter — фильтр заявок.
type RequestFilter struct {
	AccountID string
	Status    models.RequestStatus
}

// RequestStore — заявки.
type RequestStore interface {
	CreateRequest(ctx context.Context, r *models.Request) error
	GetRequest(ctx context.Context, id string) (*models.Request, error)
	ListRequests(ctx context.Context, f RequestFilter) ([]*models.Request, error)
	UpdateRequestStatus(ctx context.Context, id string, status models.RequestStatus, processedBy string, at time.Time) (*models.Request, error)
}

// LoginAttemptStore — журнал попыток входа в админку (защита от перебора).
type LoginAttemptStore interface {
	LogLoginAttempt(ctx context.Context, key string, success bool, at time.Time) error
	CountFailedAttempts(ctx context.Context, key string, since time.Time) (int, error)
}

// Store — полный набор возможностей хранилища.
type Store interface {
	Transactor
	ItemStore
	AccountStore
	LedgerStore
	RequestStore
	LoginAttemptStore
	// Reset удаляет все документы. Только для dev-окружения.
	Reset(ctx context.Context) error
	Close()
}
