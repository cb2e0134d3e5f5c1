package scheduler

import (
	"context"
	"time"

	"go.uber.org/atomic"

	"github.com/MrSnakeDoc/presence/internal/logger"
)

// State of the scheduler.
type State int32

const (
	Idle    State = iota // waiting for the next tick
	Running              // one cycle in flight
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Triggers recorded on each cycle.
const (
	TriggerStart  = "start"
	TriggerTick   = "tick"
	TriggerManual = "manual"
)

// Cycler runs one reconciliation cycle.
type Cycler interface {
	Run(ctx context.Context, trigger string) string
}

// Scheduler drives cycles on wall-clock aligned ticks.
//
// Cycles run in the scheduler goroutine only, so they never overlap. A tick
// missed while a cycle overran fires once, immediately; missed ticks are
// not queued.
type Scheduler struct {
	cycler        Cycler
	logger        logger.Logger
	period        time.Duration
	offset        time.Duration
	now           func() time.Time
	state         *atomic.Int32
	cycles        *atomic.Int64
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewScheduler creates a scheduler. manualTrigger may be nil to disable
// manual cycles; a buffer of one coalesces bursts of triggers.
func NewScheduler(
	cycler Cycler,
	log logger.Logger,
	period, offset time.Duration,
	manualTrigger chan struct{},
) *Scheduler {
	return &Scheduler{
		cycler:        cycler,
		logger:        log,
		period:        period,
		offset:        offset,
		now:           time.Now,
		state:         atomic.NewInt32(int32(Idle)),
		cycles:        atomic.NewInt64(0),
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// State returns whether a cycle is in flight.
func (s *Scheduler) State() State { return State(s.state.Load()) }

// Cycles returns how many cycles ran since start.
func (s *Scheduler) Cycles() int64 { return s.cycles.Load() }

// Trigger asks for a cycle outside the cadence. It reports false when a
// request is already pending.
func (s *Scheduler) Trigger() bool {
	if s.manualTrigger == nil {
		return false
	}
	select {
	case s.manualTrigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// RunOnce runs a single cycle in the calling goroutine.
func (s *Scheduler) RunOnce(ctx context.Context) string {
	return s.cycle(ctx, TriggerStart)
}

// Run runs a first cycle immediately, then one per tick until ctx is done
// or Stop is called.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		logger.Duration("period", s.period),
		logger.Duration("offset", s.offset))

	fired := s.now()
	s.cycle(ctx, TriggerStart)

	for {
		next := NextTick(fired, s.period, s.offset)
		wait := next.Sub(s.now())
		if wait < 0 {
			wait = 0
		}
		s.logger.Debug("next cycle scheduled",
			logger.String("at", next.Format(time.RFC3339)),
			logger.Duration("wait", wait))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			fired = s.now()
			s.cycle(ctx, TriggerTick)
		case <-s.manualTrigger:
			timer.Stop()
			s.logger.Info("manual cycle triggered")
			s.cycle(ctx, TriggerManual)
		case <-s.stopCh:
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return nil
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return nil
		}
	}
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) cycle(ctx context.Context, trigger string) string {
	s.state.Store(int32(Running))
	defer s.state.Store(int32(Idle))

	s.cycles.Inc()
	return s.cycler.Run(ctx, trigger)
}
