package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/presence/internal/httpserver/deps"
	"github.com/MrSnakeDoc/presence/internal/logger"
)

// Reload asks the scheduler for an immediate cycle. Requests arriving while
// one is already pending are coalesced into it.
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Scheduler.Trigger() {
			d.Logger.Info("manual cycle triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			w.WriteHeader(http.StatusAccepted)
			if _, err := w.Write([]byte("✅ Cycle triggered successfully\n")); err != nil {
				d.Logger.Debug("failed to write response", logger.Error(err))
			}
			return
		}

		d.Logger.Warn("manual cycle already pending",
			logger.String("remote_ip", r.RemoteAddr))
		w.WriteHeader(http.StatusTooManyRequests)
		if _, err := w.Write([]byte("⏳ Cycle already pending, please wait\n")); err != nil {
			d.Logger.Debug("failed to write response", logger.Error(err))
		}
	}
}
