package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/MrSnakeDoc/presence/internal/domain"
	"github.com/MrSnakeDoc/presence/internal/httpserver/deps"
	"github.com/MrSnakeDoc/presence/internal/index"
	"github.com/MrSnakeDoc/presence/internal/logger"
	"github.com/MrSnakeDoc/presence/internal/metrics"
	"github.com/MrSnakeDoc/presence/internal/store/history"
)

const recentTransitions = 20

type componentStatus struct {
	OK         bool   `json:"ok"`
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path,omitempty"`
	ModifiedAt string `json:"modified_at,omitempty"`
	AsOf       string `json:"as_of,omitempty"`
	Error      string `json:"error,omitempty"`
}

type statusResponse struct {
	Mode        string                     `json:"mode"`
	Scheduler   string                     `json:"scheduler"`
	AsOf        string                     `json:"as_of,omitempty"`
	LastUpdate  string                     `json:"last_update"`
	Entities    int                        `json:"entities"`
	Online      int                        `json:"online"`
	OnlineIDs   []string                   `json:"online_ids"`
	LastCycle   *index.Cycle               `json:"last_cycle,omitempty"`
	Services    []domain.ServiceSnapshot   `json:"services"`
	Components  map[string]componentStatus `json:"components"`
	Transitions []history.Entry            `json:"recent_transitions,omitempty"`
}

// Status reports the components, the last cycle and the current generation.
func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		lastUpdate := "never"
		if t := d.MemoryIndex.GetLastReload(); !t.IsZero() {
			lastUpdate = t.Format("2006-01-02 15:04:05")
		}

		components := map[string]componentStatus{
			"snapshot": checkFile(d.SnapshotFile),
			"roster":   checkFile(d.RosterFile),
			"redis":    checkMirror(ctx, d),
			"journal":  checkPing(ctx, d.Journal != nil, func(ctx context.Context) error { return d.Journal.Ping(ctx) }),
		}

		resp := statusResponse{
			Scheduler:  d.Scheduler.State().String(),
			AsOf:       d.MemoryIndex.AsOf(),
			LastUpdate: lastUpdate,
			Entities:   d.MemoryIndex.Count(),
			Online:     d.MemoryIndex.OnlineCount(),
			OnlineIDs:  d.MemoryIndex.OnlineIDs(),
			Services:   d.MemoryIndex.Services(),
			Components: components,
		}
		if c, ok := d.MemoryIndex.LastCycle(); ok {
			resp.LastCycle = &c
		}
		resp.Mode = determineMode(resp.LastCycle, components)

		if d.Journal != nil {
			entries, err := d.Journal.Recent(ctx, recentTransitions)
			if err != nil {
				d.Logger.Debug("failed to read recent transitions", logger.Error(err))
			}
			resp.Transitions = entries
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// determineMode is "critical" when the last cycle could not persist,
// "degraded" when it saw no usable report or an optional component is down.
func determineMode(last *index.Cycle, components map[string]componentStatus) string {
	if last == nil {
		return "starting"
	}
	switch last.Result {
	case metrics.ResultSaveFailed:
		return "critical"
	case metrics.ResultUnavailable, metrics.ResultMalformed:
		return "degraded"
	}
	for _, c := range components {
		if c.Enabled && !c.OK {
			return "degraded"
		}
	}
	return "ok"
}

func checkFile(path string) componentStatus {
	st := componentStatus{Enabled: true, Path: path}
	info, err := os.Stat(path)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.OK = true
	st.ModifiedAt = info.ModTime().Format("2006-01-02 15:04:05")
	return st
}

// checkMirror also reports which generation the mirror holds.
func checkMirror(ctx context.Context, d deps.Deps) componentStatus {
	st := checkPing(ctx, d.Mirror != nil, func(ctx context.Context) error { return d.Mirror.Ping(ctx) })
	if !st.Enabled || !st.OK {
		return st
	}
	asOf, err := d.Mirror.AsOf(ctx)
	if err != nil {
		st.OK = false
		st.Error = err.Error()
		return st
	}
	st.AsOf = asOf
	return st
}

func checkPing(ctx context.Context, enabled bool, ping func(context.Context) error) componentStatus {
	if !enabled {
		return componentStatus{OK: true}
	}
	if err := ping(ctx); err != nil {
		return componentStatus{Enabled: true, Error: err.Error()}
	}
	return componentStatus{OK: true, Enabled: true}
}
