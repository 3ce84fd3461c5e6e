package reminder

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"serotonyl.ru/snack-bot/internal/common"
	"serotonyl.ru/snack-bot/internal/features/auth"
)

// Handler — ручной запуск рассылки из дашборда.
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
	r.With(h.guard.RequireAdmin).Post("/admin/reminders/run", h.run)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Run(r.Context())
	if err != nil {
		common.RespondError(w, common.Internal(err))
		return
	}
	common.Respond(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"summary": summary,
	})
}
