package catalog

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/snack-bot/internal/common"
	"serotonyl.ru/snack-bot/internal/features/auth"
	"serotonyl.ru/snack-bot/internal/store"
)

// Resetter удаляет все данные хранилища.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Handler — HTTP-эндпоинты каталога и обслуживания данных.
type Handler struct {
	service      *Service
	guard        *auth.Middleware
	resetter     Resetter
	resetEnabled bool
}

// NewHandler создаёт обработчик. resetEnabled открывает POST /admin/reset.
func NewHandler(service *Service, guard *auth.Middleware, resetter Resetter, resetEnabled bool) *Handler {
	return &Handler{service: service, guard: guard, resetter: resetter, resetEnabled: resetEnabled}
}

// RegisterRoutes подключает маршруты.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/items", func(r chi.Router) {
		r.With(h.guard.RequireUser).Get("/", h.list)
		r.With(h.guard.RequireUser).Get("/{id}", h.get)

		r.Group(func(r chi.Router) {
			r.Use(h.guard.RequireAdmin)
			r.Post("/", h.create)
			r.Put("/{id}", h.update)
			r.Delete("/{id}", h.delete)
			r.Post("/{id}/restock", h.restock)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAdmin)
		r.Post("/admin/seed", h.seed)
		r.Post("/admin/import/sweets", h.importSweets)
		r.Post("/admin/reset", h.reset)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.service.List(r.Context(), store.ItemFilter{
		InStockOnly: q.Get("inStock") == "true",
		ActiveOnly:  q.Get("active") == "true",
	})
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.Respond(w, http.StatusOK, items)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.Respond(w, http.StatusOK, item)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.RespondError(w, err)
		return
	}
	item, err := h.service.Create(r.Context(), in)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.Respond(w, http.StatusCreated, item)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.RespondError(w, err)
		return
	}
	item, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.Respond(w, http.StatusOK, item)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		common.RespondError(w, err)
		return
	}
	common.Respond(w, http.StatusOK, map[string]interface{}{"success": true})
}

type restockRequest struct {
	Amount int `json:"amount"`
}

func (h *Handler) restock(w http.ResponseWriter, r *http.Request) {
	var req restockRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondError(w, err)
		return
	}
	item, err := h.service.Restock(r.Context(), chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.Respond(w, http.StatusOK, item)
}

func (h *Handler) seed(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Seed(r.Context())
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.Respond(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Initial data setup completed",
		"added":   n,
	})
}

func (h *Handler) importSweets(w http.ResponseWriter, r *http.Request) {
	var sweets []LegacySweet
	if err := common.DecodeJSON(r, &sweets); err != nil {
		common.RespondError(w, err)
		return
	}
	n, err := h.service.ImportLegacy(r.Context(), sweets)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	body := map[string]interface{}{
		"success":  true,
		"message":  "Migration completed",
		"migrated": n,
	}
	if n == 0 {
		body["message"] = "No data to migrate"
	} else {
		body["note"] = "Please update price fields manually for migrated items"
	}
	common.Respond(w, http.StatusOK, body)
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	if !h.resetEnabled || h.resetter == nil {
		common.RespondError(w, ErrResetNotAllowed)
		return
	}
	if err := h.resetter.Reset(r.Context()); err != nil {
		common.RespondError(w, common.Internal(err))
		return
	}
	p, _ := auth.PrincipalFrom(r.Context())
	log.WithField("account_id", p.AccountID).Warn("Все данные удалены")
	common.Respond(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Database reset completed",
	})
}
