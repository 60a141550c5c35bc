package usage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/goodtune/screencheck/internal/metrics"
	"github.com/goodtune/screencheck/internal/storage"
)

var (
	// ErrParse marks a stored value that could not be interpreted.
	ErrParse = errors.New("parse error")
	// ErrStoreUnavailable marks a cycle that ran on cached values because
	// the settings store could not be read.
	ErrStoreUnavailable = errors.New("settings store unavailable")
)

// Accrual describes how one cycle moved the accumulator.
type Accrual struct {
	GapMinutes int64
	Counted    bool
	Reset      bool
}

// Accrue folds the time since the last checkpoint into the accumulator.
// A gap no longer than cycleMinutes counts as usage; a longer gap is treated
// as the machine having been off or asleep and is discarded. The accumulator
// resets to zero once either it or the gap reaches idleResetMinutes. The
// returned checkpoint is always now.
func Accrue(prev SessionState, now time.Time, cycleMinutes, idleResetMinutes int64) (SessionState, Accrual) {
	gap := int64(now.Sub(prev.LastCheckpoint) / time.Minute)
	if gap < 0 {
		// Wall clock moved backwards.
		gap = 0
	}

	next := SessionState{
		AccumulatedMinutes: prev.AccumulatedMinutes,
		LastCheckpoint:     now,
	}
	a := Accrual{GapMinutes: gap}

	if gap <= cycleMinutes {
		next.AccumulatedMinutes += gap
		a.Counted = true
	}

	if next.AccumulatedMinutes >= idleResetMinutes || gap >= idleResetMinutes {
		next.AccumulatedMinutes = 0
		a.Reset = true
	}

	return next, a
}

// CycleResult is the outcome of one monitoring cycle.
type CycleResult struct {
	ID         string
	ObservedAt time.Time
	Settings   Settings
	Previous   SessionState
	State      SessionState
	Accrual

	// StateUnknown is set when the store could not be read and no earlier
	// cycle left a session in memory. Nothing accrues, is decided or is
	// written in such a cycle.
	StateUnknown bool

	Persisted bool
	ShouldAct bool
	ActionErr error
	Notified  bool
}

// Launched reports whether the enforcement command was started.
func (r *CycleResult) Launched() bool {
	return r.ShouldAct && r.ActionErr == nil
}

// Record converts the result into a history entry.
func (r *CycleResult) Record() storage.CycleRecord {
	return storage.CycleRecord{
		ID:                 r.ID,
		ObservedAt:         r.ObservedAt,
		Mode:               string(r.Settings.Mode),
		GapMinutes:         r.GapMinutes,
		GapCounted:         r.Counted,
		AccumulatedMinutes: r.State.AccumulatedMinutes,
		AllowedMinutes:     r.Settings.AllowedMinutes,
		Reset:              r.Reset,
		ShouldAct:          r.ShouldAct,
	}
}

// Options configures an Engine.
type Options struct {
	// Defaults are used for any setting absent from, or unparseable in,
	// the store.
	Defaults Settings
	// CycleTimeout bounds each store call.
	CycleTimeout time.Duration
	// Retention caps the cycle history; zero disables history.
	Retention int
	// Subject prefixes the status notification subject.
	Subject string
	// Hostname appears in the status notification body.
	Hostname string
	// ExitAfterAction terminates the process once the command launches.
	ExitAfterAction bool
	// Exit is called with status 0 when ExitAfterAction applies.
	Exit func(code int)
}

// Engine runs monitoring cycles against a settings store.
type Engine struct {
	store      storage.Store
	clock      Clock
	dispatcher *Dispatcher
	notifier   Notifier
	opts       Options
	logger     zerolog.Logger

	mu           sync.Mutex
	lastSettings Settings
	lastState    *SessionState
}

// NewEngine creates a new usage engine
func NewEngine(store storage.Store, clock Clock, dispatcher *Dispatcher, notifier Notifier, opts Options, logger zerolog.Logger) *Engine {
	if opts.CycleTimeout <= 0 {
		opts.CycleTimeout = 30 * time.Second
	}
	if opts.Subject == "" {
		opts.Subject = "Screen check status"
	}
	if opts.Hostname == "" {
		opts.Hostname, _ = os.Hostname()
	}
	if opts.Exit == nil {
		opts.Exit = os.Exit
	}

	return &Engine{
		store:        store,
		clock:        clock,
		dispatcher:   dispatcher,
		notifier:     notifier,
		opts:         opts,
		logger:       logger.With().Str("component", "usage-engine").Logger(),
		lastSettings: opts.Defaults,
	}
}

// SetDefaults replaces the fallback used for absent or unparseable settings.
// It takes effect from the next cycle.
func (e *Engine) SetDefaults(defaults Settings) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.Defaults = defaults
}

// Cycle runs one monitoring cycle. Cycles are serialized. The result is
// always non-nil; the error reports store failures that the cycle worked
// around.
func (e *Engine) Cycle(ctx context.Context) (*CycleResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	defer func() {
		metrics.CycleDuration.Observe(time.Since(start).Seconds())
	}()
	metrics.CyclesTotal.Inc()

	now := e.clock.Now().Truncate(time.Millisecond)

	settings, prev, readErr := e.load(ctx)
	if readErr != nil && e.lastState == nil {
		// First-run state here would overwrite the stored accumulator.
		e.logger.Warn().Err(readErr).Msg("Session state unknown, skipping cycle")
		return &CycleResult{
			ID:           uuid.NewString(),
			ObservedAt:   now,
			Settings:     settings,
			Previous:     prev,
			State:        prev,
			StateUnknown: true,
		}, readErr
	}
	if readErr != nil {
		e.logger.Warn().Err(readErr).Msg("Using last known settings and session state")
	}

	next, accrual := Accrue(prev, now, settings.CycleMinutes, settings.IdleResetMinutes())
	e.lastState = &next

	res := &CycleResult{
		ID:         uuid.NewString(),
		ObservedAt: now,
		Settings:   settings,
		Previous:   prev,
		State:      next,
		Accrual:    accrual,
	}

	writeErr := e.saveState(ctx, next)
	res.Persisted = writeErr == nil

	res.ShouldAct = settings.Policy().ShouldAct(next, settings.AllowedMinutes, now)
	if res.ShouldAct {
		res.ActionErr = e.dispatcher.Act(ctx, settings.CommandPath)
		metrics.ActionsTotal.WithLabelValues(metrics.Result(res.ActionErr)).Inc()
		if res.ActionErr == nil {
			// The command may rewrite the store; put our state back.
			if err := e.saveState(ctx, next); err != nil {
				writeErr = err
			}
		}
	}

	if settings.NotifyEnabled {
		res.Notified = e.notify(ctx, res)
	}

	e.record(ctx, res)

	metrics.AccumulatedMinutes.Set(float64(next.AccumulatedMinutes))
	metrics.AllowedMinutes.Set(float64(settings.AllowedMinutes))
	if accrual.Reset {
		metrics.ResetsTotal.Inc()
	}

	e.logger.Info().
		Str("cycle_id", res.ID).
		Int64("gap_minutes", accrual.GapMinutes).
		Bool("gap_counted", accrual.Counted).
		Int64("accumulated_minutes", next.AccumulatedMinutes).
		Int64("allowed_minutes", settings.AllowedMinutes).
		Bool("reset", accrual.Reset).
		Bool("should_act", res.ShouldAct).
		Str("mode", string(settings.Mode)).
		Msg("Cycle complete")

	if res.Launched() && e.opts.ExitAfterAction {
		e.logger.Info().Msg("Exiting after launching command")
		e.opts.Exit(0)
	}

	return res, errors.Join(readErr, writeErr)
}

// load reads settings and session state. When the store is unreachable the
// previous cycle's values are returned alongside ErrStoreUnavailable; before
// any cycle has run the returned state is the zero value.
func (e *Engine) load(ctx context.Context) (Settings, SessionState, error) {
	rctx, cancel := context.WithTimeout(ctx, e.opts.CycleTimeout)
	defer cancel()

	values, err := e.store.Settings().All(rctx)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("read").Inc()
		var state SessionState
		if e.lastState != nil {
			state = *e.lastState
		}
		return e.lastSettings, state, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	settings, parseErr := ParseSettings(values, e.opts.Defaults)
	for _, se := range SettingErrors(parseErr) {
		metrics.ParseErrors.WithLabelValues(se.Key).Inc()
		e.logger.Warn().Err(se.Err).Str("key", se.Key).Str("value", se.Value).Msg("Invalid setting, using default")
	}
	e.lastSettings = settings

	state := InitialState()
	if raw, ok := values[KeySession]; ok {
		s, err := DecodeState(raw)
		if err != nil {
			metrics.ParseErrors.WithLabelValues(KeySession).Inc()
			e.logger.Warn().Err(err).Str("value", raw).Msg("Invalid session state, using defaults for bad fields")
		}
		state = s
	}

	return settings, state, nil
}

func (e *Engine) saveState(ctx context.Context, s SessionState) error {
	wctx, cancel := context.WithTimeout(ctx, e.opts.CycleTimeout)
	defer cancel()

	if err := e.store.Settings().Set(wctx, KeySession, EncodeState(s)); err != nil {
		metrics.StoreErrors.WithLabelValues("write").Inc()
		e.logger.Error().Err(err).Msg("Failed to persist session state")
		return fmt.Errorf("persist session state: %w", err)
	}
	return nil
}

func (e *Engine) notify(ctx context.Context, res *CycleResult) bool {
	nctx, cancel := context.WithTimeout(ctx, e.opts.CycleTimeout)
	defer cancel()

	subject, body := StatusMessage(e.opts.Hostname, e.opts.Subject, res)
	err := e.notifier.Notify(nctx, res.Settings.NotifyAddress, subject, body)
	metrics.NotificationsTotal.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		e.logger.Warn().Err(err).Str("recipient", res.Settings.NotifyAddress).Msg("Failed to send status notification")
		return false
	}
	return true
}

func (e *Engine) record(ctx context.Context, res *CycleResult) {
	if e.opts.Retention <= 0 {
		return
	}

	hctx, cancel := context.WithTimeout(ctx, e.opts.CycleTimeout)
	defer cancel()

	if err := e.store.Cycles().Append(hctx, res.Record(), e.opts.Retention); err != nil {
		metrics.StoreErrors.WithLabelValues("history").Inc()
		e.logger.Warn().Err(err).Msg("Failed to record cycle history")
	}
}
