// Package recalc coalesces layout triggers into single-flight passes run on
// a dedicated worker goroutine.
//
// The owner drives the scheduler from its own loop:
//
//	case trig := <-s.Ready():
//		s.Start(trig)
//	case out := <-s.Results():
//		s.Finish(out)
//
// Prepare and Apply therefore always run on the owner's goroutine, and only
// the Work returned by Prepare runs on the worker.
package recalc

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tagview/tagview/internal/constants"
	"github.com/tagview/tagview/internal/events"
	"github.com/tagview/tagview/internal/logging"
)

// Trigger names the reason for a pass.
type Trigger int

const (
	TriggerData Trigger = iota
	TriggerFilterText
	TriggerResize
	TriggerZoom
	TriggerScroll
	TriggerDragRelease
	TriggerUserClick
	TriggerRetry
	TriggerPageLoaded
)

func (t Trigger) String() string {
	switch t {
	case TriggerData:
		return "data"
	case TriggerFilterText:
		return "filter_text"
	case TriggerResize:
		return "resize"
	case TriggerZoom:
		return "zoom"
	case TriggerScroll:
		return "scroll"
	case TriggerDragRelease:
		return "drag_release"
	case TriggerUserClick:
		return "user_click"
	case TriggerRetry:
		return "retry"
	case TriggerPageLoaded:
		return "page_loaded"
	default:
		return "unknown"
	}
}

// Config holds the scheduler delays.
type Config struct {
	DelayMin    time.Duration // filter text and data changes
	DelayMax    time.Duration // filter text while typing fast
	DelayFast   time.Duration // user click, resize, zoom, drag release, page loaded
	DelayRetry  time.Duration // missing window
	DelayScroll time.Duration
	TypingBurst time.Duration
	Watchdog    time.Duration
}

// DefaultConfig returns the stock delays.
func DefaultConfig() Config {
	return Config{
		DelayMin:    constants.DefaultRecalcDelayMin,
		DelayMax:    constants.DefaultRecalcDelayMax,
		DelayFast:   constants.RecalcDelayFast,
		DelayRetry:  constants.RecalcDelayRetry,
		DelayScroll: constants.RecalcDelayScroll,
		TypingBurst: constants.FilterTypingBurst,
		Watchdog:    constants.DefaultRecalcWatchdog,
	}
}

// Pass identifies one started recalculation.
type Pass struct {
	Generation uint64
	Trigger    Trigger
	Started    time.Time
}

// Work is the off-thread part of a pass.
type Work[T any] func(ctx context.Context) (T, error)

// Outcome is delivered on Results when Work returns.
type Outcome[T any] struct {
	Pass    Pass
	Result  T
	Err     error
	Elapsed time.Duration
}

// PrepareFunc snapshots owner state for a pass. Returning false skips it.
type PrepareFunc[T any] func(pass Pass) (Work[T], bool)

// ApplyFunc installs the result of the latest pass.
type ApplyFunc[T any] func(pass Pass, result T)

type job[T any] struct {
	pass Pass
	work Work[T]
	ctx  context.Context
}

// Scheduler runs at most one pass at a time and applies only the result of
// the most recently started pass.
type Scheduler[T any] struct {
	cfg     Config
	prepare PrepareFunc[T]
	apply   ApplyFunc[T]
	bus     *events.EventBus
	logger  *logging.Logger

	mu             sync.Mutex
	timer          *time.Timer
	timerSeq       uint64
	deadline       time.Time
	armedTrigger   Trigger
	lastFilterEdit time.Time
	inFlight       bool
	current        Pass
	cancelCurrent  context.CancelFunc
	watchdog       *time.Timer
	pending        bool
	pendingTrigger Trigger
	latest         uint64
	closed         bool

	ready   chan Trigger
	jobs    chan job[T]
	results chan Outcome[T]

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

// New creates a scheduler and starts its worker.
func New[T any](cfg Config, prepare PrepareFunc[T], apply ApplyFunc[T], bus *events.EventBus, logger *logging.Logger) *Scheduler[T] {
	def := DefaultConfig()
	if cfg.DelayMin <= 0 {
		cfg.DelayMin = def.DelayMin
	}
	if cfg.DelayMax < cfg.DelayMin {
		cfg.DelayMax = cfg.DelayMin
	}
	if cfg.DelayFast <= 0 {
		cfg.DelayFast = def.DelayFast
	}
	if cfg.DelayRetry <= 0 {
		cfg.DelayRetry = def.DelayRetry
	}
	if cfg.DelayScroll <= 0 {
		cfg.DelayScroll = def.DelayScroll
	}
	if cfg.TypingBurst <= 0 {
		cfg.TypingBurst = def.TypingBurst
	}
	if cfg.Watchdog <= 0 {
		cfg.Watchdog = def.Watchdog
	}

	ctx, stop := context.WithCancel(context.Background())
	s := &Scheduler[T]{
		cfg:     cfg,
		prepare: prepare,
		apply:   apply,
		bus:     bus,
		logger:  logging.OrNop(logger).Component("recalc"),
		ready:   make(chan Trigger, 1),
		jobs:    make(chan job[T], 1),
		results: make(chan Outcome[T], 1),
		ctx:     ctx,
		stop:    stop,
	}
	s.wg.Add(1)
	go s.worker()
	return s
}

// Ready delivers a trigger when a debounce timer fires.
func (s *Scheduler[T]) Ready() <-chan Trigger {
	return s.ready
}

// Results delivers finished work.
func (s *Scheduler[T]) Results() <-chan Outcome[T] {
	return s.results
}

// Latest returns the generation of the most recently started pass.
func (s *Scheduler[T]) Latest() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// InFlight reports whether a pass is running.
func (s *Scheduler[T]) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Pending reports whether a re-fire is queued behind the running pass.
func (s *Scheduler[T]) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Scheduler[T]) delayLocked(kind Trigger, now time.Time) time.Duration {
	switch kind {
	case TriggerFilterText:
		d := s.cfg.DelayMin
		if !s.lastFilterEdit.IsZero() && now.Sub(s.lastFilterEdit) < s.cfg.TypingBurst {
			d = s.cfg.DelayMax
		}
		s.lastFilterEdit = now
		return d
	case TriggerData:
		return s.cfg.DelayMin
	case TriggerScroll:
		return s.cfg.DelayScroll
	case TriggerRetry:
		return s.cfg.DelayRetry
	default:
		return s.cfg.DelayFast
	}
}

// Trigger requests a pass. While a pass runs, triggers collapse into one
// pending re-fire. Otherwise the earliest deadline wins, except filter text,
// which restarts the timer on every edit.
func (s *Scheduler[T]) Trigger(kind Trigger) time.Duration {
	now := time.Now()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0
	}
	delay := s.delayLocked(kind, now)

	if s.inFlight {
		s.pending = true
		s.pendingTrigger = kind
		s.mu.Unlock()
		return 0
	}

	deadline := now.Add(delay)
	if s.timer != nil {
		if kind != TriggerFilterText && !deadline.Before(s.deadline) {
			remaining := s.deadline.Sub(now)
			s.mu.Unlock()
			return remaining
		}
		s.timer.Stop()
	}
	s.armLocked(kind, delay, deadline)
	s.mu.Unlock()

	s.bus.Publish(&events.RecalcEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventRecalcScheduled, Time: now},
		Trigger:   kind.String(),
		Delay:     delay,
	})
	return delay
}

func (s *Scheduler[T]) armLocked(kind Trigger, delay time.Duration, deadline time.Time) {
	s.timerSeq++
	seq := s.timerSeq
	s.deadline = deadline
	s.armedTrigger = kind
	s.timer = time.AfterFunc(delay, func() { s.onTimer(seq) })
}

func (s *Scheduler[T]) onTimer(seq uint64) {
	s.mu.Lock()
	if s.closed || seq != s.timerSeq {
		s.mu.Unlock()
		return
	}
	kind := s.armedTrigger
	s.timer = nil
	s.deadline = time.Time{}
	s.mu.Unlock()
	s.signal(kind)
}

func (s *Scheduler[T]) signal(kind Trigger) {
	select {
	case s.ready <- kind:
	default:
	}
}

// Start begins a pass for trigger. It must be called on the owner's
// goroutine. When a pass is already running the trigger becomes the
// pending re-fire.
func (s *Scheduler[T]) Start(trigger Trigger) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if s.inFlight {
		s.pending = true
		s.pendingTrigger = trigger
		s.mu.Unlock()
		return false
	}
	s.latest++
	pass := Pass{Generation: s.latest, Trigger: trigger, Started: time.Now()}
	s.inFlight = true
	s.current = pass
	s.mu.Unlock()

	work, ok := s.prepare(pass)
	if !ok {
		s.settle(pass.Generation)
		return false
	}

	ctx, cancel := context.WithCancel(s.ctx)
	s.mu.Lock()
	if s.current.Generation != pass.Generation || !s.inFlight {
		s.mu.Unlock()
		cancel()
		return false
	}
	s.cancelCurrent = cancel
	s.watchdog = time.AfterFunc(s.cfg.Watchdog, func() { s.fireWatchdog(pass.Generation) })
	s.mu.Unlock()

	select {
	case s.jobs <- job[T]{pass: pass, work: work, ctx: ctx}:
		s.logger.Debug().Uint64("generation", pass.Generation).Str("trigger", trigger.String()).Msg("pass started")
		return true
	default:
		// The worker is still busy with an abandoned pass.
		s.logger.Warn().Uint64("generation", pass.Generation).Msg("worker busy, deferring pass")
		s.mu.Lock()
		s.stopPassLocked()
		s.mu.Unlock()
		s.Trigger(TriggerRetry)
		return false
	}
}

// settle ends a pass that produced no work and re-fires any pending trigger.
func (s *Scheduler[T]) settle(gen uint64) {
	s.mu.Lock()
	if !s.inFlight || s.current.Generation != gen {
		s.mu.Unlock()
		return
	}
	s.stopPassLocked()
	pending, kind := s.takePendingLocked()
	s.mu.Unlock()
	if pending {
		s.signal(kind)
	}
}

func (s *Scheduler[T]) stopPassLocked() {
	s.inFlight = false
	if s.watchdog != nil {
		s.watchdog.Stop()
		s.watchdog = nil
	}
	if s.cancelCurrent != nil {
		s.cancelCurrent()
		s.cancelCurrent = nil
	}
}

func (s *Scheduler[T]) takePendingLocked() (bool, Trigger) {
	pending, kind := s.pending, s.pendingTrigger
	s.pending = false
	return pending, kind
}

// Finish applies out if it belongs to the latest pass and reports whether
// it did. Results of superseded passes are dropped. It must be called on
// the owner's goroutine.
func (s *Scheduler[T]) Finish(out Outcome[T]) bool {
	s.mu.Lock()
	if !s.inFlight || out.Pass.Generation != s.latest {
		latest := s.latest
		s.mu.Unlock()
		s.logger.Debug().
			Uint64("generation", out.Pass.Generation).
			Uint64("latest", latest).
			Msg("discarding stale layout result")
		s.bus.Publish(&events.RecalcEvent{
			BaseEvent:  events.BaseEvent{EventType: events.EventLayoutDiscarded, Time: time.Now()},
			Generation: out.Pass.Generation,
			Trigger:    out.Pass.Trigger.String(),
			Elapsed:    out.Elapsed,
		})
		return false
	}
	s.stopPassLocked()
	pending, kind := s.takePendingLocked()
	s.mu.Unlock()

	applied := false
	if out.Err != nil {
		if !errors.Is(out.Err, context.Canceled) {
			s.logger.Warn().Err(out.Err).Uint64("generation", out.Pass.Generation).Msg("layout pass failed")
		}
		if !pending {
			pending, kind = true, TriggerRetry
		}
	} else {
		s.apply(out.Pass, out.Result)
		applied = true
	}

	if pending {
		if kind == TriggerRetry {
			s.Trigger(kind)
		} else {
			s.signal(kind)
		}
	}
	return applied
}

// Invalidate abandons the running pass, if any, so its result is dropped
// on arrival. The caller starts or triggers the replacement pass.
func (s *Scheduler[T]) Invalidate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.inFlight {
		return false
	}
	s.latest++
	s.stopPassLocked()
	s.pending = false
	return true
}

func (s *Scheduler[T]) fireWatchdog(gen uint64) {
	s.mu.Lock()
	if s.closed || !s.inFlight || s.current.Generation != gen {
		s.mu.Unlock()
		return
	}
	kind := s.current.Trigger
	s.latest++
	s.stopPassLocked()
	if pending, pk := s.takePendingLocked(); pending {
		kind = pk
	}
	s.mu.Unlock()

	s.logger.Warn().Uint64("generation", gen).Dur("watchdog", s.cfg.Watchdog).Msg("layout pass timed out, abandoning")
	s.bus.Publish(&events.RecalcEvent{
		BaseEvent:  events.BaseEvent{EventType: events.EventWatchdogFired, Time: time.Now()},
		Generation: gen,
		Trigger:    kind.String(),
		Elapsed:    s.cfg.Watchdog,
	})
	s.signal(kind)
}

func (s *Scheduler[T]) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case j := <-s.jobs:
			start := time.Now()
			res, err := j.work(j.ctx)
			out := Outcome[T]{Pass: j.pass, Result: res, Err: err, Elapsed: time.Since(start)}
			select {
			case s.results <- out:
			case <-s.ctx.Done():
				return
			}
		}
	}
}

// Close stops timers and the worker. Pending results are dropped.
func (s *Scheduler[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.stopPassLocked()
	s.mu.Unlock()

	s.stop()
	s.wg.Wait()
}
