// Package catalog — каталог сладостей: CRUD для дашборда, пополнение склада,
// список товаров в наличии для чат-бота, начальные данные и импорт старого формата.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/snack-bot/internal/common"
	"serotonyl.ru/snack-bot/internal/models"
	"serotonyl.ru/snack-bot/internal/store"
)

// Ошибки каталога
var (
	ErrItemNotFound    = common.NotFound("お菓子が見つかりません")
	ErrInvalidAmount   = common.Validation("amount must be a positive integer")
	ErrStockLimit      = common.Validation(fmt.Sprintf("stock must be <= %d", models.MaxStock))
	ErrResetNotAllowed = common.Forbidden("data reset is disabled in this environment")
)

// CreateInput — поля нового товара. IsActive по умолчанию true.
type CreateInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
	Price       int64  `json:"price"`
	Stock       int    `json:"stock"`
	IsActive    *bool  `json:"isActive"`
}

// UpdateInput — частичное обновление: nil поля не меняются.
type UpdateInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	ImageURL    *string `json:"imageUrl"`
	Price       *int64  `json:"price"`
	Stock       *int    `json:"stock"`
	IsActive    *bool   `json:"isActive"`
}

func (in UpdateInput) validate() error {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return common.Validation("name is required")
	}
	if in.Price != nil && *in.Price < 0 {
		return common.Validation("price must be >= 0")
	}
	if in.Stock != nil && *in.Stock < 0 {
		return common.Validation("stock must be >= 0")
	}
	if in.Stock != nil && *in.Stock > models.MaxStock {
		return ErrStockLimit
	}
	return nil
}

// Service управляет каталогом.
type Service struct {
	repo store.ItemStore
	now  func() time.Time
}

// NewService создаёт сервис каталога.
func NewService(repo store.ItemStore) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create добавляет товар.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Item, error) {
	now := s.now()
	item := &models.Item{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		ImageURL:    in.ImageURL,
		Price:       in.Price,
		Stock:       in.Stock,
		IsActive:    in.IsActive == nil || *in.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := item.Validate(); err != nil {
		return nil, common.Validation(err.Error())
	}
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, common.Internal(fmt.Errorf("создание товара: %w", err))
	}
	log.WithFields(log.Fields{
		"item_id": item.ID,
		"name":    item.Name,
	}).Info("Товар добавлен в каталог")
	return item, nil
}

// Get возвращает товар по id.
func (s *Service) Get(ctx context.Context, id string) (*models.Item, error) {
	item, err := s.repo.GetItem(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, common.Internal(fmt.Errorf("чтение товара %s: %w", id, err))
	}
	return item, nil
}

// List возвращает товары по фильтру.
// Без фильтра InStockOnly — новые сверху, с ним — по убыванию остатка.
func (s *Service) List(ctx context.Context, f store.ItemFilter) ([]*models.Item, error) {
	items, err := s.repo.ListItems(ctx, f)
	if err != nil {
		return nil, common.Internal(fmt.Errorf("список товаров: %w", err))
	}
	if items == nil {
		items = []*models.Item{}
	}
	return items, nil
}

// ListInStock — товары с остатком > 0, больше всего первым.
func (s *Service) ListInStock(ctx context.Context) ([]*models.Item, error) {
	return s.List(ctx, store.ItemFilter{InStockOnly: true})
}

// Update меняет только переданные поля.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*models.Item, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.Name != nil {
		trimmed := strings.TrimSpace(*in.Name)
		in.Name = &trimmed
	}
	item, err := s.repo.UpdateItem(ctx, id, store.ItemPatch{
		Name:        in.Name,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		Price:       in.Price,
		Stock:       in.Stock,
		IsActive:    in.IsActive,
	}, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, common.Internal(fmt.Errorf("обновление товара %s: %w", id, err))
	}
	log.WithField("item_id", id).Info("Товар обновлён")
	return item, nil
}

// Restock прибавляет amount к остатку.
func (s *Service) Restock(ctx context.Context, id string, amount int) (*models.Item, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if amount > models.MaxStock {
		return nil, ErrStockLimit
	}
	item, err := s.repo.AddStock(ctx, id, amount, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrItemNotFound
	}
	if errors.Is(err, store.ErrStockLimit) {
		return nil, ErrStockLimit
	}
	if err != nil {
		return nil, common.Internal(fmt.Errorf("пополнение товара %s: %w", id, err))
	}
	log.WithFields(log.Fields{
		"item_id":   id,
		"amount":    amount,
		"new_stock": item.Stock,
	}).Info("Склад пополнен")
	return item, nil
}

// Delete удаляет товар. История потребления не затрагивается.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.repo.DeleteItem(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrItemNotFound
	}
	if err != nil {
		return common.Internal(fmt.Errorf("удаление товара %s: %w", id, err))
	}
	log.WithField("item_id", id).Info("Товар удалён")
	return nil
}
