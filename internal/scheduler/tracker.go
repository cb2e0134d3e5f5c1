package scheduler

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/MrSnakeDoc/presence/internal/domain"
	"github.com/MrSnakeDoc/presence/internal/index"
	"github.com/MrSnakeDoc/presence/internal/logger"
	"github.com/MrSnakeDoc/presence/internal/metrics"
	"github.com/MrSnakeDoc/presence/internal/reconcile"
	"github.com/MrSnakeDoc/presence/internal/sources/status"
	filestore "github.com/MrSnakeDoc/presence/internal/store/file"
)

// Mirror receives every persisted generation. Failures are logged only.
type Mirror interface {
	SaveRoster(ctx context.Context, roster *domain.Roster, snap *domain.Snapshot) error
}

// Journal records presence transitions. Failures are logged only.
type Journal interface {
	Record(ctx context.Context, cycleID string, transitions []domain.Transition) error
}

// StampFunc yields the lastSeen/firstSeen value for a cycle.
type StampFunc func(snap *domain.Snapshot) string

// ClockStamp formats the wall clock with layout.
func ClockStamp(layout string, now func() time.Time) StampFunc {
	return func(*domain.Snapshot) string {
		return now().Format(layout)
	}
}

// SnapshotStamp reuses the report's check time.
func SnapshotStamp() StampFunc {
	return func(snap *domain.Snapshot) string {
		return snap.AsOf
	}
}

// Tracker runs one read, parse, reconcile and persist pass per call.
// It is not safe for concurrent use; the Scheduler serialises calls.
type Tracker struct {
	source     *status.Source
	store      *filestore.Store
	reconciler *reconcile.Reconciler
	index      *index.MemoryIndex
	logger     logger.Logger

	mirror  Mirror
	journal Journal
	stamp   StampFunc
	newID   func() string

	lastAsOf string // check time of the last persisted generation
}

// NewTracker creates a tracker stamping records with the local clock.
func NewTracker(
	source *status.Source,
	store *filestore.Store,
	reconciler *reconcile.Reconciler,
	idx *index.MemoryIndex,
	log logger.Logger,
) *Tracker {
	return &Tracker{
		source:     source,
		store:      store,
		reconciler: reconciler,
		index:      idx,
		logger:     log,
		stamp:      ClockStamp("2006-01-02 15:04:05", time.Now),
		newID:      uuid.NewString,
	}
}

// WithMirror sets the optional roster mirror.
func (t *Tracker) WithMirror(m Mirror) *Tracker {
	t.mirror = m
	return t
}

// WithJournal sets the optional transition journal.
func (t *Tracker) WithJournal(j Journal) *Tracker {
	t.journal = j
	return t
}

// WithStamp replaces the timestamp source.
func (t *Tracker) WithStamp(s StampFunc) *Tracker {
	t.stamp = s
	return t
}

// LastAsOf returns the check time of the last persisted generation.
func (t *Tracker) LastAsOf() string { return t.lastAsOf }

// Run executes one cycle and returns its result, one of the metrics.Result*
// values. No outcome is fatal: every failure leaves the roster document as
// it was and the next cycle starts from scratch.
func (t *Tracker) Run(ctx context.Context, trigger string) string {
	started := time.Now()
	id := t.newID()
	log := t.logger.With(logger.String("cycle_id", id))

	result, asOf, err := t.run(ctx, log, id)

	elapsed := time.Since(started)
	metrics.CyclesTotal.WithLabelValues(result).Inc()
	metrics.CycleDuration.Observe(elapsed.Seconds())

	cycle := index.Cycle{
		ID:        id,
		Trigger:   trigger,
		Result:    result,
		AsOf:      asOf,
		StartedAt: started,
		Duration:  elapsed,
	}
	if err != nil {
		cycle.Error = err.Error()
	}
	t.index.RecordCycle(cycle)

	log.Debug("cycle finished",
		logger.String("trigger", trigger),
		logger.String("result", result),
		logger.Duration("elapsed", elapsed))

	return result
}

func (t *Tracker) run(ctx context.Context, log logger.Logger, cycleID string) (string, string, error) {
	snap, err := t.source.Load(ctx)
	if err != nil {
		return t.loadFailed(log, err), "", err
	}

	if snap.AsOf == t.lastAsOf {
		log.Debug("status report unchanged since last cycle, skipping",
			logger.String("as_of", snap.AsOf))
		return metrics.ResultStale, snap.AsOf, nil
	}

	prior := t.store.Load()
	now := t.stamp(snap)
	next := t.reconciler.Reconcile(prior, snap.Presence, now)

	if err := t.store.Save(next); err != nil {
		log.Error("failed to save roster, keeping previous generation",
			logger.String("path", t.store.Path()),
			logger.Error(err))
		return metrics.ResultSaveFailed, snap.AsOf, err
	}
	t.lastAsOf = snap.AsOf

	t.index.UpdateRoster(next, snap)
	t.observe(next, snap)

	log.Info("roster updated",
		logger.String("as_of", snap.AsOf),
		logger.Int("online", next.OnlineCount()),
		logger.Int("entities", next.Len()),
		logger.Int("services", len(snap.Order)))

	t.publish(ctx, log, cycleID, prior, next, snap, now)

	return metrics.ResultUpdated, snap.AsOf, nil
}

func (t *Tracker) loadFailed(log logger.Logger, err error) string {
	var perr *status.ParseError
	switch {
	case errors.As(err, &perr):
		log.Error("malformed status report, roster untouched",
			logger.Int("line_no", perr.LineNo),
			logger.String("line", perr.Line),
			logger.String("reason", perr.Reason))
		return metrics.ResultMalformed
	case errors.Is(err, status.ErrMalformed):
		log.Error("malformed status report, roster untouched", logger.Error(err))
		return metrics.ResultMalformed
	default:
		log.Warn("status report unavailable, roster untouched", logger.Error(err))
		return metrics.ResultUnavailable
	}
}

func (t *Tracker) observe(next *domain.Roster, snap *domain.Snapshot) {
	metrics.OnlineEntities.Set(float64(next.OnlineCount()))
	metrics.RosterEntities.Set(float64(next.Len()))
	metrics.ServiceOnlineCount.Reset()
	for _, svc := range snap.ServiceList() {
		metrics.ServiceOnlineCount.WithLabelValues(svc.Name).Set(float64(svc.CurrentCount))
	}
}

// publish feeds the optional collaborators. The roster document is already
// durable at this point, so their failures do not change the result.
func (t *Tracker) publish(
	ctx context.Context,
	log logger.Logger,
	cycleID string,
	prior, next *domain.Roster,
	snap *domain.Snapshot,
	now string,
) {
	if t.mirror != nil {
		if err := t.mirror.SaveRoster(ctx, next, snap); err != nil {
			metrics.StoreWriteFailures.WithLabelValues("redis").Inc()
			log.Warn("failed to mirror roster to redis", logger.Error(err))
		}
	}

	if t.journal != nil {
		transitions := reconcile.Transitions(prior, next, now)
		if len(transitions) == 0 {
			return
		}
		if err := t.journal.Record(ctx, cycleID, transitions); err != nil {
			metrics.StoreWriteFailures.WithLabelValues("journal").Inc()
			log.Warn("failed to record transitions", logger.Error(err))
			return
		}
		log.Debug("transitions recorded", logger.Int("count", len(transitions)))
	}
}
