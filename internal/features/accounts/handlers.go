// Package accounts — handlers.go публикует аккаунты для дашборда:
// список должников, погашение долга и профиль текущего пользователя.
package accounts

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"serotonyl.ru/snack-bot/internal/common"
	"serotonyl.ru/snack-bot/internal/features/auth"
)

// Handler — HTTP-эндпоинты аккаунтов.
type Handler struct {
	service *Service
	guard   *auth.Middleware
}

// NewHandler создаёт обработчик.
func NewHandler(service *Service, guard *auth.Middleware) *Handler {
	return &Handler{service: service, guard: guard}
}

// RegisterRoutes подключает маршруты.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(h.guard.RequireUser).Get("/me", h.me)
	r.Route("/accounts", func(r chi.Router) {
		r.Use(h.guard.RequireAdmin)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Post("/{id}/settle", h.settle)
	})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	acc, err := h.service.Get(r.Context(), p.AccountID)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.Respond(w, http.StatusOK, acc)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.Respond(w, http.StatusOK, list)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	acc, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.Respond(w, http.StatusOK, acc)
}

func (h *Handler) settle(w http.ResponseWriter, r *http.Request) {
	acc, err := h.service.Settle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.Respond(w, http.StatusOK, acc)
}
