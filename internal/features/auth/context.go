package auth

import (
	"context"

	"serotonyl.ru/snack-bot/internal/models"
)

// Principal — кто выполняет запрос (из проверенного токена сессии).
type Principal struct {
	AccountID string
	Name      string
	Role      models.Role
}

// IsAdmin сообщает, есть ли у субъекта роль admin.
func (p *Principal) IsAdmin() bool { return p.Role == models.RoleAdmin }

type principalKey struct{}

// WithPrincipal кладёт субъект в контекст запроса.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom достаёт субъект из контекста.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
