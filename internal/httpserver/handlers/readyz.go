package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/presence/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready  bool `json:"ready"`
	Cycles int  `json:"cycles"`
}

// Readyz reports ready once the first cycle has finished, whatever its result.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")

		ready := d.MemoryIndex.Ready()
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		_ = json.NewEncoder(w).Encode(readyzResponse{
			Ready:  ready,
			Cycles: d.MemoryIndex.CycleCount(),
		})
	}
}
