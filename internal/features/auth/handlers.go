package auth

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"serotonyl.ru/snack-bot/internal/common"
)

// Handler — HTTP-эндпоинты входа.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик входа.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes подключает маршруты входа (без проверки токена).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/line", h.loginLINE)
	r.Post("/admin/login", h.loginAdmin)
}

type lineLoginRequest struct {
	IDToken string `json:"idToken"`
}

func (h *Handler) loginLINE(w http.ResponseWriter, r *http.Request) {
	var req lineLoginRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondError(w, err)
		return
	}
	session, err := h.service.LoginWithLINE(r.Context(), req.IDToken)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.Respond(w, http.StatusOK, session)
}

type adminLoginRequest struct {
	Password string `json:"password"`
}

func (h *Handler) loginAdmin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondError(w, err)
		return
	}
	session, err := h.service.AdminLogin(r.Context(), clientKey(r), req.Password)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.Respond(w, http.StatusOK, session)
}

// clientKey — ключ для учёта попыток входа (IP клиента).
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
