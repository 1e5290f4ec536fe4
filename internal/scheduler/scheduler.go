package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ducminhle1904/gpt-futures-bot/internal/trading"
)

// State is the scheduler lifecycle. Transitions only move forward:
// Stopped -> Running -> Draining -> Stopped.
type State string

const (
	StateStopped  State = "stopped"
	StateRunning  State = "running"
	StateDraining State = "draining"
)

// DefaultGrace is how long in-flight analyses may finish after Stop.
const DefaultGrace = 30 * time.Second

var (
	// ErrInFlight means the timeframe's previous run has not finished.
	ErrInFlight = errors.New("analysis already in flight for timeframe")
	// ErrNotRunning means the scheduler is stopped or draining.
	ErrNotRunning = errors.New("scheduler is not running")
)

// Runner executes one analysis pipeline pass for a timeframe.
type Runner func(ctx context.Context, tf trading.Timeframe, trigger trading.TriggerKind) error

// Scheduler fires the per-timeframe pipelines at wall-clock boundaries in
// its timezone, with single-flight per timeframe. After every successful 4h
// pass it enqueues the combined final pass.
type Scheduler struct {
	location   *time.Location
	timeframes []trading.Timeframe
	runner     Runner
	grace      time.Duration
	now        func() time.Time
	warnf      func(format string, args ...interface{})

	mu        sync.Mutex
	state     State
	inflight  map[trading.Timeframe]bool
	lastFired map[trading.Timeframe]time.Time

	// Firing loops and in-flight passes stop on different contexts: Stop
	// cancels the loops immediately but lets passes run until the grace
	// window expires.
	loopCancel context.CancelFunc
	passCtx    context.Context
	passCancel context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a scheduler for the given source timeframes. warnf receives
// dropped-trigger warnings; pass the logger's Printf.
func New(location *time.Location, timeframes []trading.Timeframe, runner Runner, warnf func(string, ...interface{})) *Scheduler {
	if location == nil {
		location = time.UTC
	}
	if warnf == nil {
		warnf = func(string, ...interface{}) {}
	}
	return &Scheduler{
		location:   location,
		timeframes: timeframes,
		runner:     runner,
		grace:      DefaultGrace,
		now:        time.Now,
		warnf:      warnf,
		state:      StateStopped,
		inflight:   make(map[trading.Timeframe]bool),
		lastFired:  make(map[trading.Timeframe]time.Time),
	}
}

// Start launches one firing loop per timeframe.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStopped {
		return fmt.Errorf("cannot start scheduler in state %s", s.state)
	}
	s.state = StateRunning

	loopCtx, loopCancel := context.WithCancel(context.Background())
	passCtx, passCancel := context.WithCancel(context.Background())
	s.loopCancel = loopCancel
	s.passCtx = passCtx
	s.passCancel = passCancel

	for _, tf := range s.timeframes {
		s.wg.Add(1)
		go s.loop(loopCtx, tf)
	}
	return nil
}

// Stop drains the scheduler: no new fires, in-flight passes get the grace
// window, then the scheduler reports stopped regardless.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.state = StateDraining
	loopCancel := s.loopCancel
	passCancel := s.passCancel
	s.mu.Unlock()

	// Loops stop firing at once; in-flight passes keep their own context so
	// they can finish inside the grace window.
	loopCancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.grace):
		s.warnf("scheduler grace window elapsed, aborting analyses still in flight")
	}
	passCancel()

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastFired returns the scheduled instant of the timeframe's last fire.
func (s *Scheduler) LastFired(tf trading.Timeframe) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFired[tf]
}

// Trigger runs the timeframe once on demand, bypassing the wall-clock gate
// but still honoring single-flight. It blocks until the pass finishes.
func (s *Scheduler) Trigger(ctx context.Context, tf trading.Timeframe, trigger trading.TriggerKind) error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return ErrNotRunning
	}
	if s.inflight[tf] {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInFlight, tf)
	}
	s.inflight[tf] = true
	s.mu.Unlock()

	defer s.clearInflight(tf)
	return s.runPass(ctx, tf, trigger)
}

// RunExclusive runs the timeframe once under the single-flight guard,
// without the 4h-to-final chaining Trigger does. The final pass refreshes
// stale sources through here so it can never race a scheduled run of the
// same timeframe.
func (s *Scheduler) RunExclusive(ctx context.Context, tf trading.Timeframe, trigger trading.TriggerKind) error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return ErrNotRunning
	}
	if s.inflight[tf] {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInFlight, tf)
	}
	s.inflight[tf] = true
	s.mu.Unlock()

	defer s.clearInflight(tf)
	return s.runner(ctx, tf, trigger)
}

// loop sleeps until the timeframe's next wall-clock boundary and fires. A
// wake later than one period past the boundary still fires exactly once;
// intermediate missed boundaries are not replayed because the next instant
// is recomputed from the current clock.
func (s *Scheduler) loop(ctx context.Context, tf trading.Timeframe) {
	defer s.wg.Done()
	for {
		next := s.nextFire(tf, s.now())
		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.fire(tf, next)
	}
}

// fire runs one scheduled pass unless the previous one is still in flight,
// in which case the trigger is dropped with a warning.
func (s *Scheduler) fire(tf trading.Timeframe, scheduledAt time.Time) {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	if s.inflight[tf] {
		s.mu.Unlock()
		s.warnf("dropping %s trigger at %s: previous analysis still running", tf, scheduledAt.Format(time.RFC3339))
		return
	}
	s.inflight[tf] = true
	// The scheduled instant is recorded, not the wall-clock receipt, so
	// catch-up fires stay boundary-aligned.
	s.lastFired[tf] = scheduledAt
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.clearInflight(tf)
		if err := s.runPass(s.passCtx, tf, trading.TriggerAuto); err != nil {
			s.warnf("%s analysis failed: %v", tf, err)
		}
	}()
}

// runPass executes the timeframe pipeline; a successful 4h pass chains the
// combined final pass with the same single-flight rules.
func (s *Scheduler) runPass(ctx context.Context, tf trading.Timeframe, trigger trading.TriggerKind) error {
	err := s.runner(ctx, tf, trigger)
	if err != nil || tf != trading.Timeframe4h {
		return err
	}

	s.mu.Lock()
	if s.inflight[trading.TimeframeFinal] {
		s.mu.Unlock()
		s.warnf("dropping final pass: previous one still running")
		return nil
	}
	s.inflight[trading.TimeframeFinal] = true
	s.mu.Unlock()

	defer s.clearInflight(trading.TimeframeFinal)
	if finalErr := s.runner(ctx, trading.TimeframeFinal, trigger); finalErr != nil {
		s.warnf("final analysis failed: %v", finalErr)
	}
	return nil
}

func (s *Scheduler) clearInflight(tf trading.Timeframe) {
	s.mu.Lock()
	s.inflight[tf] = false
	s.mu.Unlock()
}

// nextFire computes the next wall-clock boundary after now for the
// timeframe, in the scheduler's timezone:
//
//	15m  every quarter hour
//	1h   every hour at :00
//	4h   at 01, 05, 09, 13, 17, 21
//	1d   daily at 01:00
func (s *Scheduler) nextFire(tf trading.Timeframe, now time.Time) time.Time {
	local := now.In(s.location)

	switch tf {
	case trading.Timeframe15m:
		base := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(),
			local.Minute()-local.Minute()%15, 0, 0, s.location)
		return base.Add(15 * time.Minute)

	case trading.Timeframe1h:
		base := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, s.location)
		return base.Add(time.Hour)

	case trading.Timeframe4h:
		// Boundaries sit one hour past the UTC-style 4h grid.
		for add := 0; add <= 24; add++ {
			h := local.Hour() + add
			candidate := time.Date(local.Year(), local.Month(), local.Day(), h, 0, 0, 0, s.location)
			if candidate.After(local) && (candidate.Hour()-1+24)%4 == 0 {
				return candidate
			}
		}
		return local.Add(4 * time.Hour) // unreachable

	case trading.Timeframe1d:
		candidate := time.Date(local.Year(), local.Month(), local.Day(), 1, 0, 0, 0, s.location)
		if !candidate.After(local) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		return candidate
	}

	return local.Add(time.Hour)
}
