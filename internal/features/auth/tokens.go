package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"

	"serotonyl.ru/snack-bot/internal/common"
	"serotonyl.ru/snack-bot/internal/models"
)

// SessionClaims — полезная нагрузка токена сессии. Subject — id аккаунта.
type SessionClaims struct {
	Role models.Role `json:"role"`
	Name string      `json:"name,omitempty"`
	jwt.StandardClaims
}

// Tokens выпускает и проверяет токены сессий (HS256).
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens создаёт выпускающего токены. ttl <= 0 — 24 часа.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue выпускает токен для субъекта. Возвращает токен и момент истечения.
func (t *Tokens) Issue(p *Principal) (string, time.Time, error) {
	issuedAt := t.now()
	expiresAt := issuedAt.Add(t.ttl)
	claims := &SessionClaims{
		Role: p.Role,
		Name: p.Name,
		StandardClaims: jwt.StandardClaims{
			Subject:   p.AccountID,
			IssuedAt:  issuedAt.Unix(),
			ExpiresAt: expiresAt.Unix(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("подпись токена: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse проверяет подпись и срок действия токена.
// Истёкший токен — ErrTokenExpired, остальное — ErrInvalidToken.
func (t *Tokens) Parse(raw string) (*Principal, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, common.ErrTokenExpired.Wrap(err)
		}
		return nil, common.ErrInvalidToken.Wrap(err)
	}
	if claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}
	role := claims.Role
	if role != models.RoleAdmin {
		role = models.RoleUser
	}
	return &Principal{AccountID: claims.Subject, Name: claims.Name, Role: role}, nil
}

// Verify разбирает заголовок Authorization: Bearer <token>.
// Нет заголовка или не Bearer — ErrUnauthenticated.
func (t *Tokens) Verify(header string) (*Principal, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return nil, common.ErrUnauthenticated
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if raw == "" {
		return nil, common.ErrUnauthenticated
	}
	return t.Parse(raw)
}
