package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/presence/internal/domain"
	"github.com/MrSnakeDoc/presence/internal/httpserver/deps"
	"github.com/MrSnakeDoc/presence/internal/logger"
	"github.com/MrSnakeDoc/presence/internal/store/history"
)

const (
	defaultHistory = 50
	maxHistory     = 500
)

type entityResponse struct {
	Record  domain.EntityRecord `json:"record"`
	History []history.Entry     `json:"history,omitempty"`
}

// Entity shows one record of the current generation and, when the journal
// is enabled, its latest transitions. ?limit= bounds the history.
func Entity(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")

		id := chi.URLParam(r, "id")
		rec, ok := d.MemoryIndex.GetRecord(id)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "entity not found"})
			return
		}

		resp := entityResponse{Record: rec}
		if d.Journal != nil {
			entries, err := d.Journal.ForEntity(r.Context(), id, historyLimit(r))
			if err != nil {
				d.Logger.Warn("failed to read entity history",
					logger.String("entity", id),
					logger.Error(err))
			}
			resp.History = entries
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func historyLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultHistory
	}
	if n > maxHistory {
		return maxHistory
	}
	return n
}
