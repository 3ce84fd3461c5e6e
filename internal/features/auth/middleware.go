package auth

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/snack-bot/internal/common"
)

// ErrAccountRequired — сессия администратора по паролю не привязана к аккаунту.
var ErrAccountRequired = common.Forbidden("Forbidden. A LINE account session is required.")

// Middleware проверяет токен сессии до вызова обработчика.
type Middleware struct {
	tokens *Tokens
}

// NewMiddleware создаёт middleware проверки токенов.
func NewMiddleware(tokens *Tokens) *Middleware {
	return &Middleware{tokens: tokens}
}

// RequireUser пропускает запрос с валидным токеном любого аккаунта.
func (m *Middleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := m.tokens.Verify(r.Header.Get("Authorization"))
		if err != nil {
			log.WithError(err).WithField("path", r.URL.Path).Debug("Запрос отклонён: токен не прошёл проверку")
			common.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireAdmin пропускает только токены с ролью admin.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFrom(r.Context())
		if !p.IsAdmin() {
			log.WithField("account_id", p.AccountID).Warn("Попытка доступа к админ-методу без роли admin")
			common.RespondError(w, common.ErrNotAdmin)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// RequireAccount пропускает только сессии, привязанные к аккаунту LINE.
// Нужен на маршрутах, которые пишут в баланс или заявки субъекта.
func (m *Middleware) RequireAccount(next http.Handler) http.Handler {
	return m.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFrom(r.Context())
		if p.AccountID == AdminAccountID {
			log.WithField("path", r.URL.Path).Warn("Сессия по паролю не может писать от имени аккаунта")
			common.RespondError(w, ErrAccountRequired)
			return
		}
		next.ServeHTTP(w, r)
	}))
}
