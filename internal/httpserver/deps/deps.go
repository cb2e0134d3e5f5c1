package deps

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MrSnakeDoc/presence/internal/index"
	"github.com/MrSnakeDoc/presence/internal/logger"
	"github.com/MrSnakeDoc/presence/internal/scheduler"
	"github.com/MrSnakeDoc/presence/internal/store/history"
	redisstore "github.com/MrSnakeDoc/presence/internal/store/redis"
)

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time     // for testing, defaults to time.Now
	AllowedCIDRS []string             // IPs allowed to trigger a cycle and read the status
	TrustProxy   bool                 // true if running behind a trusted reverse proxy
	SnapshotFile string               // status report read every cycle
	RosterFile   string               // roster document written every cycle
	MemoryIndex  *index.MemoryIndex   // last generation and last cycle outcome
	Scheduler    *scheduler.Scheduler // cycle driver, target of manual triggers
	Mirror       *redisstore.Store    // nil when the redis mirror is disabled
	Journal      *history.Journal     // nil when the transition journal is disabled
	Gatherer     prometheus.Gatherer  // source of /metrics
}

// Now returns d.TimeNow() or time.Now() when unset.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
