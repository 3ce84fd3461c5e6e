// Package accounts — service.go содержит бизнес-логику аккаунтов:
// ленивое создание при первом сообщении, обновление профиля при входе,
// назначение админов и погашение долга.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/snack-bot/internal/common"
	"serotonyl.ru/snack-bot/internal/models"
	"serotonyl.ru/snack-bot/internal/store"
)

// ErrAccountNotFound — аккаунта с таким id нет.
var ErrAccountNotFound = common.NotFound("アカウントが見つかりません")

// ProfileSource отдаёт профиль пользователя мессенджера.
type ProfileSource interface {
	Profile(ctx context.Context, userID string) (*models.Profile, error)
}

// Service управляет аккаунтами.
type Service struct {
	repo store.AccountStore
	now  func() time.Time
}

// NewService создаёт сервис аккаунтов.
func NewService(repo store.AccountStore) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Get возвращает аккаунт по id.
func (s *Service) Get(ctx context.Context, id string) (*models.Account, error) {
	acc, err := s.repo.GetAccount(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, common.Internal(fmt.Errorf("чтение аккаунта %s: %w", id, err))
	}
	return acc, nil
}

// EnsureAccount гарантирует, что аккаунт есть в базе.
// Если нет — создаёт его с профилем из src. Если профиль получить не удалось,
// аккаунт всё равно создаётся с плейсхолдером, чтобы не блокировать пользователя.
func (s *Service) EnsureAccount(ctx context.Context, id string, src ProfileSource) (*models.Account, error) {
	acc, err := s.repo.GetAccount(ctx, id)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, common.Internal(fmt.Errorf("чтение аккаунта %s: %w", id, err))
	}

	profile := &models.Profile{DisplayName: models.UnknownDisplayName}
	if src != nil {
		p, perr := src.Profile(ctx, id)
		if perr != nil {
			log.WithError(perr).WithField("account_id", id).Warn("Не удалось получить профиль, используем плейсхолдер")
		} else if p != nil {
			profile = p
		}
	}

	now := s.now()
	acc = &models.Account{
		ID:          id,
		DisplayName: profile.DisplayName,
		PictureURL:  profile.PictureURL,
		Role:        models.RoleUser,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := s.repo.InsertAccount(ctx, acc)
	if err != nil {
		return nil, common.Internal(fmt.Errorf("создание аккаунта %s: %w", id, err))
	}
	if !created {
		// Параллельный запрос успел создать аккаунт раньше
		return s.Get(ctx, id)
	}

	log.WithFields(log.Fields{
		"account_id":   id,
		"display_name": acc.DisplayName,
	}).Info("Новый аккаунт зарегистрирован")
	return acc, nil
}

// UpsertProfile обновляет имя и аватар после входа. Баланс и роль не меняются.
func (s *Service) UpsertProfile(ctx context.Context, id, displayName, pictureURL string) (*models.Account, error) {
	if strings.TrimSpace(displayName) == "" {
		displayName = models.DefaultDisplayName
	}
	acc, err := s.repo.UpsertProfile(ctx, id, displayName, pictureURL, s.now())
	if err != nil {
		return nil, common.Internal(fmt.Errorf("обновление профиля %s: %w", id, err))
	}
	return acc, nil
}

// PromoteAdmins выдаёт роль admin указанным аккаунтам.
// Отсутствующие аккаунты создаются с нулевым балансом.
func (s *Service) PromoteAdmins(ctx context.Context, ids []string) error {
	for _, id := range ids {
		now := s.now()
		created, err := s.repo.InsertAccount(ctx, &models.Account{
			ID:          id,
			DisplayName: models.DefaultDisplayName,
			Role:        models.RoleAdmin,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return fmt.Errorf("создание админа %s: %w", id, err)
		}
		if !created {
			if err := s.repo.SetRole(ctx, id, models.RoleAdmin, now); err != nil {
				return fmt.Errorf("назначение админа %s: %w", id, err)
			}
		}
		log.WithField("account_id", id).Info("Аккаунт назначен администратором")
	}
	return nil
}

// List возвращает все аккаунты, самый большой баланс первым.
func (s *Service) List(ctx context.Context) ([]*models.Account, error) {
	list, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return nil, common.Internal(fmt.Errorf("список аккаунтов: %w", err))
	}
	if list == nil {
		list = []*models.Account{}
	}
	return list, nil
}

// Admins возвращает аккаунты с ролью admin.
func (s *Service) Admins(ctx context.Context) ([]*models.Account, error) {
	return s.repo.ListAdmins(ctx)
}

// Settle обнуляет баланс аккаунта (долг оплачен).
func (s *Service) Settle(ctx context.Context, id string) (*models.Account, error) {
	acc, err := s.repo.SettleBalance(ctx, id, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, common.Internal(fmt.Errorf("погашение долга %s: %w", id, err))
	}
	log.WithField("account_id", id).Info("Баланс обнулён")
	return acc, nil
}
