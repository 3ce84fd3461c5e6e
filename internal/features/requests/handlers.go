package requests

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"serotonyl.ru/snack-bot/internal/common"
	"serotonyl.ru/snack-bot/internal/features/auth"
	"serotonyl.ru/snack-bot/internal/models"
)

// Handler — HTTP-эндпоинты заявок.
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
	r.With(h.guard.RequireUser).Get("/me/requests", h.mine)
	r.Route("/requests", func(r chi.Router) {
		r.With(h.guard.RequireAccount).Post("/", h.create)
		r.With(h.guard.RequireAdmin).Get("/", h.list)
		r.With(h.guard.RequireAdmin).Put("/{id}/status", h.updateStatus)
	})
}

type createRequest struct {
	CandyName   string `json:"candyName"`
	Description string `json:"description"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	var in createRequest
	if err := common.DecodeJSON(r, &in); err != nil {
		common.RespondError(w, err)
		return
	}
	req, err := h.service.Create(r.Context(), p.AccountID, p.Name, in.CandyName, in.Description)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.Respond(w, http.StatusCreated, req)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var status models.RequestStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := models.ParseRequestStatus(raw)
		if err != nil {
			common.RespondError(w, ErrInvalidStatus)
			return
		}
		status = st
	}
	list, err := h.service.List(r.Context(), "", status)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.Respond(w, http.StatusOK, list)
}

func (h *Handler) mine(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	list, err := h.service.List(r.Context(), p.AccountID, "")
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.Respond(w, http.StatusOK, list)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	var in statusRequest
	if err := common.DecodeJSON(r, &in); err != nil {
		common.RespondError(w, err)
		return
	}
	status, err := models.ParseRequestStatus(in.Status)
	if err != nil {
		common.RespondError(w, ErrInvalidStatus)
		return
	}
	req, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), status, p.AccountID)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.Respond(w, http.StatusOK, req)
}
