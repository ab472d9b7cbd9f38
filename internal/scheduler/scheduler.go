// Package scheduler gates and coalesces shadow computations: it debounces
// viewport and time changes per trigger type, skips requests whose quantized
// fingerprint matches the last completed computation, and guarantees that at
// most one computation is in flight at any moment. A request arriving while
// a computation runs is recorded as the single pending request and replayed
// once, after completion.
package scheduler

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shademap/shademap/pkg/geo"
)

// Trigger classifies what caused a calculation request. Each trigger type
// has its own debounce delay and minimum-change threshold.
type Trigger string

const (
	TriggerMove  Trigger = "move"
	TriggerZoom  Trigger = "zoom"
	TriggerDate  Trigger = "date"
	TriggerForce Trigger = "force"
)

// State describes the scheduler's current activity.
type State string

const (
	StateIdle                 State = "idle"
	StateComputing            State = "computing"
	StateComputingWithPending State = "computingWithPending"
)

// CalcContext is one computation's immutable input. Key is the quantized
// fingerprint used for both change detection and cache addressing.
type CalcContext struct {
	Bounds geo.BoundingBox
	Zoom   float64
	Date   time.Time
	Key    string
}

// NewCalcContext normalizes the inputs (padding a degenerate box) and
// derives the quantized key.
func NewCalcContext(bounds geo.BoundingBox, zoom float64, date time.Time) CalcContext {
	bounds = bounds.PadDegenerate(0.0001)
	return CalcContext{
		Bounds: bounds,
		Zoom:   zoom,
		Date:   date,
		Key:    geo.CalculationKey(bounds, zoom, date),
	}
}

// ComputeFunc performs one shadow computation. Errors are the orchestrator's
// to log; the scheduler only cares that the computation finished.
type ComputeFunc func(ctx context.Context, calc CalcContext) error

// Options tunes gating behavior. Zero values select the defaults.
type Options struct {
	MoveDelay time.Duration // debounce for viewport pans (default 300ms)
	ZoomDelay time.Duration // debounce for zoom changes (default 400ms)
	DateDelay time.Duration // debounce for time scrubbing (default 150ms)

	MinMovement   float64       // min center shift in degrees (default 0.0005, ~55m)
	MinZoomChange float64       // min zoom delta (default 0.25)
	MinDateChange time.Duration // min time delta (default 60s)

	// MaxCalculationInterval forces a computation through regardless of the
	// thresholds once this much time has passed since the last success.
	MaxCalculationInterval time.Duration // default 5m

	// PendingRetryDelay spaces the follow-up computation for a request that
	// arrived mid-flight, avoiding tight recursion. Default 100ms.
	PendingRetryDelay time.Duration
}

func (o *Options) applyDefaults() {
	if o.MoveDelay <= 0 {
		o.MoveDelay = 300 * time.Millisecond
	}
	if o.ZoomDelay <= 0 {
		o.ZoomDelay = 400 * time.Millisecond
	}
	if o.DateDelay <= 0 {
		o.DateDelay = 150 * time.Millisecond
	}
	if o.MinMovement <= 0 {
		o.MinMovement = 0.0005
	}
	if o.MinZoomChange <= 0 {
		o.MinZoomChange = 0.25
	}
	if o.MinDateChange <= 0 {
		o.MinDateChange = time.Minute
	}
	if o.MaxCalculationInterval <= 0 {
		o.MaxCalculationInterval = 5 * time.Minute
	}
	if o.PendingRetryDelay <= 0 {
		o.PendingRetryDelay = 100 * time.Millisecond
	}
}

type lastRun struct {
	ctx CalcContext
	at  time.Time
}

// Scheduler gates compute requests. Construct with New; Destroy cancels all
// pending work. Computations run synchronously on the goroutine that fires
// them (a timer goroutine, or the caller for force requests); only one runs
// at a time.
type Scheduler struct {
	mu          sync.Mutex
	opts        Options
	compute     ComputeFunc
	clock       Clock
	logger      *zap.SugaredLogger
	timers      map[Trigger]Timer
	pendingTmr  Timer
	pending     *CalcContext
	calculating bool
	last        *lastRun
	destroyed   bool
	baseCtx     context.Context
}

// New creates a Scheduler that invokes compute for every admitted request.
// Pass a nil clock to use real time.
func New(ctx context.Context, compute ComputeFunc, opts Options, clock Clock, logger *zap.SugaredLogger) *Scheduler {
	opts.applyDefaults()
	if clock == nil {
		clock = NewRealClock()
	}
	return &Scheduler{
		opts:    opts,
		compute: compute,
		clock:   clock,
		logger:  logger,
		timers:  make(map[Trigger]Timer),
		baseCtx: ctx,
	}
}

// RequestCalculation asks for a computation over (bounds, zoom, date).
// Depending on the trigger and the scheduler's state this computes
// immediately, arms or re-arms a debounce timer, records a pending request,
// or skips entirely.
func (s *Scheduler) RequestCalculation(bounds geo.BoundingBox, zoom float64, date time.Time, trigger Trigger) {
	calc := NewCalcContext(bounds, zoom, date)

	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}

	if s.calculating {
		// Coalesce: at most one pending request, always the newest.
		s.pending = &calc
		s.logger.Debugw("computation in flight, coalescing request", "trigger", trigger, "key", calc.Key)
		s.mu.Unlock()
		return
	}

	if trigger == TriggerForce {
		s.beginLocked(calc) // unlocks
		return
	}

	now := s.clock.Now()
	stale := s.last != nil && now.Sub(s.last.at) > s.opts.MaxCalculationInterval

	if !stale && s.last != nil {
		if calc.Key == s.last.ctx.Key {
			s.logger.Debugw("skipping request, nothing changed", "trigger", trigger, "key", calc.Key)
			s.mu.Unlock()
			return
		}
		if !s.passesThresholdLocked(calc, trigger) {
			s.logger.Debugw("skipping request below change threshold", "trigger", trigger)
			s.mu.Unlock()
			return
		}
	}

	if stale {
		s.logger.Debugw("staleness override, computing immediately", "trigger", trigger)
		s.beginLocked(calc) // unlocks
		return
	}

	// Debounce: re-arming replaces the previous timer for this trigger, so
	// only the last request in a burst fires.
	if t, ok := s.timers[trigger]; ok {
		t.Stop()
	}
	s.timers[trigger] = s.clock.AfterFunc(s.delayFor(trigger), func() {
		s.onTimerFire(trigger, calc)
	})
	s.mu.Unlock()
}

// CancelPending drops all armed debounce timers and any recorded pending
// request without running them. An in-flight computation is unaffected.
func (s *Scheduler) CancelPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelPendingLocked()
}

// Destroy cancels everything and rejects all future requests. An in-flight
// computation runs to completion but its pending follow-up is dropped.
func (s *Scheduler) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
	s.cancelPendingLocked()
}

// Reset clears the last-computation record so the next request is never
// skipped by key equality or change thresholds.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = nil
}

// IsCalculating reports whether a computation is currently in flight.
func (s *Scheduler) IsCalculating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calculating
}

// CurrentState returns idle, computing, or computingWithPending.
func (s *Scheduler) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.calculating && s.pending != nil:
		return StateComputingWithPending
	case s.calculating:
		return StateComputing
	default:
		return StateIdle
	}
}

func (s *Scheduler) cancelPendingLocked() {
	for trigger, t := range s.timers {
		t.Stop()
		delete(s.timers, trigger)
	}
	if s.pendingTmr != nil {
		s.pendingTmr.Stop()
		s.pendingTmr = nil
	}
	s.pending = nil
}

func (s *Scheduler) delayFor(trigger Trigger) time.Duration {
	switch trigger {
	case TriggerZoom:
		return s.opts.ZoomDelay
	case TriggerDate:
		return s.opts.DateDelay
	default:
		return s.opts.MoveDelay
	}
}

// passesThresholdLocked applies the trigger-specific minimum-change test
// against the last successful computation.
func (s *Scheduler) passesThresholdLocked(calc CalcContext, trigger Trigger) bool {
	prev := s.last.ctx
	switch trigger {
	case TriggerMove:
		return calc.Bounds.CenterDistance(prev.Bounds) > s.opts.MinMovement
	case TriggerZoom:
		return math.Abs(calc.Zoom-prev.Zoom) > s.opts.MinZoomChange
	case TriggerDate:
		delta := calc.Date.Sub(prev.Date)
		if delta < 0 {
			delta = -delta
		}
		return delta > s.opts.MinDateChange
	default:
		return true
	}
}

func (s *Scheduler) onTimerFire(trigger Trigger, calc CalcContext) {
	s.mu.Lock()
	delete(s.timers, trigger)
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	if s.calculating {
		s.pending = &calc
		s.mu.Unlock()
		return
	}
	s.beginLocked(calc) // unlocks
}

// beginLocked runs one computation. It must be entered holding s.mu and
// releases it before invoking the callback, so a ComputeFunc may reenter
// RequestCalculation (such requests coalesce into the pending slot).
func (s *Scheduler) beginLocked(calc CalcContext) {
	s.calculating = true
	s.mu.Unlock()

	err := s.compute(s.baseCtx, calc)

	s.mu.Lock()
	s.calculating = false
	if err == nil {
		s.last = &lastRun{ctx: calc, at: s.clock.Now()}
	}

	// Success or failure, a request that arrived mid-flight gets exactly
	// one follow-up computation. A still-armed timer from an earlier
	// completion would replay a stale context, so it is stopped first.
	if s.pending != nil && !s.destroyed {
		next := *s.pending
		s.pending = nil
		if s.pendingTmr != nil {
			s.pendingTmr.Stop()
		}
		s.pendingTmr = s.clock.AfterFunc(s.opts.PendingRetryDelay, func() {
			s.onPendingFire(next)
		})
	}
	s.mu.Unlock()
}

func (s *Scheduler) onPendingFire(calc CalcContext) {
	s.mu.Lock()
	s.pendingTmr = nil
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	if s.calculating {
		s.pending = &calc
		s.mu.Unlock()
		return
	}
	s.beginLocked(calc) // unlocks
}
