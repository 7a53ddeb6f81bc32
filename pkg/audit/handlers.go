package audit

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Handlers provides HTTP handlers for audit trail reads.
type Handlers struct {
	logger Logger
}

// NewHandlers creates audit handlers.
func NewHandlers(logger Logger) *Handlers {
	return &Handlers{logger: logger}
}

// RegisterRoutes registers audit routes.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/customers/{id}/audit", h.GetHistory).Methods("GET")
}

// GetHistory returns a customer's audit entries, newest first.
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	customerID := mux.Vars(r)["id"]

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	entries, err := h.logger.History(r.Context(), customerID, limit)
	if err != nil {
		http.Error(w, "failed to read audit history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"customer_id": customerID,
		"entries":     entries,
	})
}
