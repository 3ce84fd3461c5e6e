package ledger

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"serotonyl.ru/snack-bot/internal/common"
	"serotonyl.ru/snack-bot/internal/features/auth"
)

// Handler — HTTP-эндпоинты списаний и истории.
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
	r.With(h.guard.RequireAccount).Post("/consume", h.consume)
	r.With(h.guard.RequireUser).Get("/me/history", h.myHistory)
	r.With(h.guard.RequireAdmin).Get("/history", h.history)
}

type consumeRequest struct {
	ItemID string `json:"itemId"`
	// CandyID — старое имя поля, которое ещё шлёт мини-приложение
	CandyID string `json:"candyId"`
}

type consumeResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    *Receipt `json:"data"`
}

func (h *Handler) consume(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())

	var req consumeRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondError(w, err)
		return
	}
	itemID := req.ItemID
	if itemID == "" {
		itemID = req.CandyID
	}

	receipt, err := h.service.Consume(r.Context(), p.AccountID, itemID)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.Respond(w, http.StatusOK, consumeResponse{
		Success: true,
		Message: fmt.Sprintf("%s を消費しました", receipt.ItemName),
		Data:    receipt,
	})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	entries, err := h.service.History(r.Context(), r.URL.Query().Get("accountId"), limit)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.Respond(w, http.StatusOK, entries)
}

func (h *Handler) myHistory(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	limit, err := parseLimit(r)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	entries, err := h.service.History(r.Context(), p.AccountID, limit)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.Respond(w, http.StatusOK, entries)
}

// parseLimit читает ?limit=N. Пусто — значение по умолчанию.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return DefaultHistoryLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, common.Validation("limit must be a positive integer")
	}
	return n, nil
}
