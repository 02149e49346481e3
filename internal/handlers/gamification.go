package handlers

import (
	"net/http"

	"storefront/internal/logger"
)

// GamificationHandler обрабатывает лидерборд и колесо удачи
type GamificationHandler struct {
	service GamificationService
	log     *logger.Logger
	topSize int
}

// NewGamificationHandler создает обработчик геймификации
func NewGamificationHandler(service GamificationService, log *logger.Logger, topSize int) *GamificationHandler {
	return &GamificationHandler{service: service, log: log, topSize: topSize}
}

// Leaderboard возвращает топ покупателей по очкам: ?limit=
func (h *GamificationHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	n := parseIntWithDefault(r.URL.Query().Get("limit"), h.topSize)
	if n > maxListLimit {
		n = maxListLimit
	}

	entries, err := h.service.Leaderboard(r.Context(), n)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to load leaderboard")
		return
	}

	writeJSONResponse(w, http.StatusOK, entries)
}

// MyRank возвращает позицию текущего покупателя
func (h *GamificationHandler) MyRank(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	claims, ok := customerFromRequest(w, r)
	if !ok {
		return
	}

	entry, err := h.service.MyRank(r.Context(), claims.CustomerID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to load rank")
		return
	}

	writeJSONResponse(w, http.StatusOK, entry)
}

// Spin крутит колесо; повторная попытка до конца кулдауна даёт 409
func (h *GamificationHandler) Spin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	claims, ok := customerFromRequest(w, r)
	if !ok {
		return
	}

	result, err := h.service.Spin(r.Context(), claims.CustomerID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to spin")
		return
	}

	writeJSONResponse(w, http.StatusOK, result)
}
