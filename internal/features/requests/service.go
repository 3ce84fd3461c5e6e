// Package requests — заявки на покупку сладостей, которых нет в каталоге.
// Заявка создаётся из чата или формы дашборда, статус меняет только админ.
package requests

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

// Ошибки заявок
var (
	ErrRequestNotFound = common.NotFound("リクエストが見つかりません")
	ErrNameRequired    = common.Validation("candyName is required")
	ErrInvalidStatus   = common.Validation("status must be one of requested, purchased, rejected")
)

// maxNameLen — ограничение на длину названия в заявке (в рунах).
const maxNameLen = 200

// Service управляет заявками.
type Service struct {
	repo store.RequestStore
	now  func() time.Time
}

// NewService создаёт сервис заявок.
func NewService(repo store.RequestStore) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create регистрирует заявку из формы дашборда со статусом requested.
// Слишком длинное название отклоняется.
func (s *Service) Create(ctx context.Context, accountID, accountName, itemName, description string) (*models.Request, error) {
	itemName = strings.TrimSpace(itemName)
	if itemName == "" {
		return nil, ErrNameRequired
	}
	if len([]rune(itemName)) > maxNameLen {
		return nil, common.Validation(fmt.Sprintf("candyName is too long (max %d)", maxNameLen))
	}
	return s.insert(ctx, accountID, accountName, itemName, description)
}

// CreateFromChat регистрирует заявку из чата. Любое непустое сообщение
// становится заявкой: длинное название обрезается до maxNameLen рун,
// полный текст остаётся в description.
func (s *Service) CreateFromChat(ctx context.Context, accountID, accountName, text, description string) (*models.Request, error) {
	itemName := strings.TrimSpace(text)
	if itemName == "" {
		return nil, ErrNameRequired
	}
	if runes := []rune(itemName); len(runes) > maxNameLen {
		itemName = string(runes[:maxNameLen])
	}
	return s.insert(ctx, accountID, accountName, itemName, description)
}

func (s *Service) insert(ctx context.Context, accountID, accountName, itemName, description string) (*models.Request, error) {
	now := s.now()
	req := &models.Request{
		ID:                uuid.NewString(),
		AccountID:         accountID,
		AccountName:       accountName,
		RequestedItemName: itemName,
		Description:       description,
		Status:            models.RequestRequested,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.CreateRequest(ctx, req); err != nil {
		return nil, common.Internal(fmt.Errorf("создание заявки: %w", err))
	}

	log.WithFields(log.Fields{
		"request_id": req.ID,
		"account_id": accountID,
		"item_name":  itemName,
	}).Info("Заявка зарегистрирована")
	return req, nil
}

// List возвращает заявки (новые сверху). status == "" — все.
func (s *Service) List(ctx context.Context, accountID string, status models.RequestStatus) ([]*models.Request, error) {
	list, err := s.repo.ListRequests(ctx, store.RequestFilter{AccountID: accountID, Status: status})
	if err != nil {
		return nil, common.Internal(fmt.Errorf("список заявок: %w", err))
	}
	if list == nil {
		list = []*models.Request{}
	}
	return list, nil
}

// UpdateStatus переводит заявку в новый статус и запоминает, кто это сделал.
// Повторная установка того же статуса ничего не меняет.
func (s *Service) UpdateStatus(ctx context.Context, id string, status models.RequestStatus, processedBy string) (*models.Request, error) {
	current, err := s.repo.GetRequest(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, common.Internal(fmt.Errorf("чтение заявки %s: %w", id, err))
	}
	if current.Status == status {
		return current, nil
	}

	updated, err := s.repo.UpdateRequestStatus(ctx, id, status, processedBy, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, common.Internal(fmt.Errorf("смена статуса заявки %s: %w", id, err))
	}

	log.WithFields(log.Fields{
		"request_id": id,
		"from":       current.Status,
		"to":         status,
		"by":         processedBy,
	}).Info("Статус заявки изменён")
	return updated, nil
}
