// Package auth — сессии дашборда: обмен ID-токена LINE на токен сессии,
// вход администратора по паролю (Argon2id) и проверка Bearer-токенов.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/snack-bot/internal/common"
	"serotonyl.ru/snack-bot/internal/models"
	"serotonyl.ru/snack-bot/internal/store"
)

// Ошибки входа
var (
	ErrIDTokenRequired     = common.Validation("idToken is required")
	ErrLoginChannelMissing = common.Configuration("LINE login channel is not configured")
	ErrLINERejected        = common.Upstream(http.StatusUnauthorized, "Invalid LINE ID token")
	ErrLINEUnavailable     = common.Upstream(http.StatusBadGateway, "LINE verification failed")

	ErrPasswordRequired   = common.Validation("password is required")
	ErrAdminLoginDisabled = common.Configuration("admin password is not configured")
	ErrWrongPassword      = common.Auth("invalid password")
	ErrTooManyAttempts    = &common.Error{
		Kind:    common.KindAuth,
		Status:  http.StatusTooManyRequests,
		Message: "too many failed attempts, try again later",
	}
)

// AdminAccountID — субъект токена, выданного по паролю администратора.
const AdminAccountID = "admin"

// IdentityVerifier проверяет сторонний токен входа.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken, channelID string) (*LINEIdentity, error)
}

// ProfileStore обновляет профиль аккаунта после входа.
type ProfileStore interface {
	UpsertProfile(ctx context.Context, id, displayName, pictureURL string) (*models.Account, error)
}

// Config — параметры входа.
type Config struct {
	LoginChannelID    string
	AdminPasswordHash string
	MaxAttempts       int
	Lockout           time.Duration
}

// Session — выданный токен сессии.
type Session struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
	User      *models.Account `json:"user,omitempty"`
}

// Service выполняет вход.
type Service struct {
	tokens   *Tokens
	verifier IdentityVerifier
	profiles ProfileStore
	attempts store.LoginAttemptStore
	cfg      Config
	now      func() time.Time
}

// NewService создаёт сервис входа.
func NewService(tokens *Tokens, verifier IdentityVerifier, profiles ProfileStore, attempts store.LoginAttemptStore, cfg Config) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Lockout <= 0 {
		cfg.Lockout = time.Hour
	}
	return &Service{
		tokens:   tokens,
		verifier: verifier,
		profiles: profiles,
		attempts: attempts,
		cfg:      cfg,
		now:      time.Now,
	}
}

// LoginWithLINE проверяет ID-токен LINE, обновляет профиль и выдаёт токен сессии.
func (s *Service) LoginWithLINE(ctx context.Context, idToken string) (*Session, error) {
	if idToken == "" {
		return nil, ErrIDTokenRequired
	}
	if s.cfg.LoginChannelID == "" {
		return nil, ErrLoginChannelMissing
	}

	identity, err := s.verifier.Verify(ctx, idToken, s.cfg.LoginChannelID)
	if err != nil {
		var rejected *RejectedError
		if errors.As(err, &rejected) {
			return nil, ErrLINERejected.Wrap(err)
		}
		return nil, ErrLINEUnavailable.Wrap(err)
	}

	acc, err := s.profiles.UpsertProfile(ctx, identity.Subject, identity.Name, identity.Picture)
	if err != nil {
		return nil, err
	}

	token, exp, err := s.tokens.Issue(&Principal{AccountID: acc.ID, Name: acc.DisplayName, Role: acc.Role})
	if err != nil {
		return nil, common.Internal(err)
	}

	log.WithFields(log.Fields{
		"account_id": acc.ID,
		"role":       acc.Role,
	}).Info("Вход через LINE выполнен")
	return &Session{Token: token, ExpiresAt: exp, User: acc}, nil
}

// AdminLogin проверяет пароль администратора.
// Защита от перебора: MaxAttempts неудачных попыток с одного ключа = блокировка на Lockout.
func (s *Service) AdminLogin(ctx context.Context, clientKey, password string) (*Session, error) {
	if s.cfg.AdminPasswordHash == "" {
		return nil, ErrAdminLoginDisabled
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}

	now := s.now()
	failed, err := s.attempts.CountFailedAttempts(ctx, clientKey, now.Add(-s.cfg.Lockout))
	if err != nil {
		return nil, common.Internal(fmt.Errorf("чтение попыток входа: %w", err))
	}
	if failed >= s.cfg.MaxAttempts {
		log.WithField("client", clientKey).Warn("Вход в админку заблокирован: слишком много попыток")
		return nil, ErrTooManyAttempts
	}

	match := VerifyPassword(password, s.cfg.AdminPasswordHash)
	if err := s.attempts.LogLoginAttempt(ctx, clientKey, match, now); err != nil {
		log.WithError(err).Warn("Не удалось записать попытку входа")
	}
	if !match {
		log.WithField("client", clientKey).Warn("Неверный пароль администратора")
		return nil, ErrWrongPassword
	}

	token, exp, err := s.tokens.Issue(&Principal{AccountID: AdminAccountID, Name: "Administrator", Role: models.RoleAdmin})
	if err != nil {
		return nil, common.Internal(err)
	}
	log.WithField("client", clientKey).Info("Администратор вошёл по паролю")
	return &Session{Token: token, ExpiresAt: exp}, nil
}
