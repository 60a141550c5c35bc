package usage

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/screencheck/internal/storage"
)

// memStore is an in-memory storage.Store with switchable failures.
type memStore struct {
	mu        sync.Mutex
	values    map[string]string
	cycles    []storage.CycleRecord
	failRead  bool
	failWrite bool
}

func newMemStore(values map[string]string) *memStore {
	if values == nil {
		values = map[string]string{}
	}
	return &memStore{values: values}
}

func (m *memStore) Close() error                   { return nil }
func (m *memStore) Settings() storage.SettingsStore { return (*memSettings)(m) }
func (m *memStore) Cycles() storage.CycleStore      { return (*memCycles)(m) }

func (m *memStore) get(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key]
}

func (m *memStore) setFailures(read, write bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRead, m.failWrite = read, write
}

var errStoreDown = errors.New("store down")

type memSettings memStore

func (s *memSettings) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRead {
		return "", errStoreDown
	}
	v, ok := s.values[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (s *memSettings) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite {
		return errStoreDown
	}
	s.values[key] = value
	return nil
}

func (s *memSettings) SetDefaults(_ context.Context, values map[string]string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, v := range values {
		if _, ok := s.values[k]; !ok {
			s.values[k] = v
			n++
		}
	}
	return n, nil
}

func (s *memSettings) All(_ context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRead {
		return nil, errStoreDown
	}
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out, nil
}

type memCycles memStore

func (c *memCycles) Append(_ context.Context, rec storage.CycleRecord, retention int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cycles = append([]storage.CycleRecord{rec}, c.cycles...)
	if retention > 0 && len(c.cycles) > retention {
		c.cycles = c.cycles[:retention]
	}
	return nil
}

func (c *memCycles) Recent(_ context.Context, limit int) ([]storage.CycleRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if limit > len(c.cycles) {
		limit = len(c.cycles)
	}
	return append([]storage.CycleRecord(nil), c.cycles[:limit]...), nil
}

// sinkLog records side effects in the order they happen.
type sinkLog struct {
	mu        sync.Mutex
	events    []string
	lockErr   error
	launchErr error
	notifyErr error
	messages  []string
}

func (l *sinkLog) add(ev string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *sinkLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *sinkLog) LockDisplay(context.Context) error {
	l.add("lock")
	return l.lockErr
}

func (l *sinkLog) RunCommand(_ context.Context, path string) error {
	l.add("run:" + path)
	return l.launchErr
}

func (l *sinkLog) Notify(_ context.Context, recipient, subject, body string) error {
	l.add("notify:" + recipient)
	l.mu.Lock()
	l.messages = append(l.messages, subject+"\n"+body)
	l.mu.Unlock()
	return l.notifyErr
}

type engineFixture struct {
	store  *memStore
	clock  *TestClock
	sinks  *sinkLog
	engine *Engine
	exits  []int
}

func newEngineFixture(t *testing.T, start time.Time, values map[string]string, opts Options) *engineFixture {
	t.Helper()

	f := &engineFixture{
		store: newMemStore(values),
		clock: &TestClock{CurrentTime: start},
		sinks: &sinkLog{},
	}
	if opts.Defaults == (Settings{}) {
		opts.Defaults = testSettings()
	}
	opts.Hostname = "kids-pc"
	opts.Exit = func(code int) { f.exits = append(f.exits, code) }

	logger := zerolog.Nop()
	f.engine = NewEngine(f.store, f.clock, NewDispatcher(f.sinks, f.sinks, logger), f.sinks, opts, logger)
	return f
}

func (f *engineFixture) cycle(t *testing.T) *CycleResult {
	t.Helper()
	res, err := f.engine.Cycle(context.Background())
	if err != nil {
		t.Fatalf("Cycle() error = %v", err)
	}
	return res
}

func TestAccrue(t *testing.T) {
	t0 := time.Date(2024, 1, 15, 12, 0, 0, 0, time.Local)

	tests := []struct {
		name        string
		prev        SessionState
		now         time.Time
		wantAcc     int64
		wantGap     int64
		wantCounted bool
		wantReset   bool
	}{
		{
			name:        "normal gap counted",
			prev:        SessionState{AccumulatedMinutes: 10, LastCheckpoint: t0},
			now:         t0.Add(5 * time.Minute),
			wantAcc:     15,
			wantGap:     5,
			wantCounted: true,
		},
		{
			name:        "partial minutes floor",
			prev:        SessionState{AccumulatedMinutes: 10, LastCheckpoint: t0},
			now:         t0.Add(4*time.Minute + 59*time.Second),
			wantAcc:     14,
			wantGap:     4,
			wantCounted: true,
		},
		{
			name:    "long gap discarded",
			prev:    SessionState{AccumulatedMinutes: 10, LastCheckpoint: t0},
			now:     t0.Add(6 * time.Minute),
			wantAcc: 10,
			wantGap: 6,
		},
		{
			name:      "idle gap resets",
			prev:      SessionState{AccumulatedMinutes: 30, LastCheckpoint: t0},
			now:       t0.Add(500 * time.Minute),
			wantAcc:   0,
			wantGap:   500,
			wantReset: true,
		},
		{
			name:        "accumulator reaching idle threshold resets",
			prev:        SessionState{AccumulatedMinutes: 478, LastCheckpoint: t0},
			now:         t0.Add(2 * time.Minute),
			wantAcc:     0,
			wantGap:     2,
			wantCounted: true,
			wantReset:   true,
		},
		{
			name:        "clock moved backwards",
			prev:        SessionState{AccumulatedMinutes: 10, LastCheckpoint: t0},
			now:         t0.Add(-time.Hour),
			wantAcc:     10,
			wantGap:     0,
			wantCounted: true,
		},
		{
			name:      "first run from epoch",
			prev:      InitialState(),
			now:       t0,
			wantAcc:   0,
			wantGap:   int64(t0.Sub(time.UnixMilli(0)) / time.Minute),
			wantReset: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, a := Accrue(tt.prev, tt.now, 5, 480)
			if next.AccumulatedMinutes != tt.wantAcc {
				t.Errorf("AccumulatedMinutes = %d, want %d", next.AccumulatedMinutes, tt.wantAcc)
			}
			if !next.LastCheckpoint.Equal(tt.now) {
				t.Errorf("LastCheckpoint = %v, want %v", next.LastCheckpoint, tt.now)
			}
			if a.GapMinutes != tt.wantGap {
				t.Errorf("GapMinutes = %d, want %d", a.GapMinutes, tt.wantGap)
			}
			if a.Counted != tt.wantCounted {
				t.Errorf("Counted = %v, want %v", a.Counted, tt.wantCounted)
			}
			if a.Reset != tt.wantReset {
				t.Errorf("Reset = %v, want %v", a.Reset, tt.wantReset)
			}
		})
	}
}

func TestEngine_IntervalFiresOnTwelfthCycle(t *testing.T) {
	t0 := time.Date(2024, 1, 15, 12, 0, 0, 0, time.Local)
	f := newEngineFixture(t, t0, map[string]string{
		KeyAllowedMinutes: "60",
		KeyIdleResetHours: "8",
		KeyCycleMinutes:   "5",
		KeyActionMode:     "interval",
		KeyCommandPath:    "/usr/bin/poweroff",
		KeySession:        EncodeState(SessionState{LastCheckpoint: t0}),
	}, Options{})

	for i := 1; i <= 12; i++ {
		f.clock.Advance(5 * time.Minute)
		res := f.cycle(t)

		if res.State.AccumulatedMinutes != int64(5*i) {
			t.Fatalf("cycle %d: accumulated = %d, want %d", i, res.State.AccumulatedMinutes, 5*i)
		}
		if want := i == 12; res.ShouldAct != want {
			t.Fatalf("cycle %d: ShouldAct = %v, want %v", i, res.ShouldAct, want)
		}
	}

	events := f.sinks.list()
	if len(events) != 2 || events[0] != "lock" || events[1] != "run:/usr/bin/poweroff" {
		t.Errorf("events = %v, want [lock run:/usr/bin/poweroff]", events)
	}

	state, err := DecodeState(f.store.get(KeySession))
	if err != nil {
		t.Fatalf("stored session invalid: %v", err)
	}
	if state.AccumulatedMinutes != 60 {
		t.Errorf("stored accumulated = %d, want 60", state.AccumulatedMinutes)
	}
	if len(f.exits) != 0 {
		t.Errorf("exit called %v without ExitAfterAction", f.exits)
	}
}

func TestEngine_BoundaryBelowAllowance(t *testing.T) {
	t0 := time.Date(2024, 1, 15, 12, 0, 0, 0, time.Local)
	f := newEngineFixture(t, t0, map[string]string{
		KeyAllowedMinutes: "60",
		KeySession:        EncodeState(SessionState{AccumulatedMinutes: 54, LastCheckpoint: t0}),
	}, Options{})

	f.clock.Advance(5 * time.Minute)
	res := f.cycle(t)
	if res.State.AccumulatedMinutes != 59 || res.ShouldAct {
		t.Errorf("at 59/60: accumulated = %d, ShouldAct = %v", res.State.AccumulatedMinutes, res.ShouldAct)
	}

	f.clock.Advance(time.Minute)
	res = f.cycle(t)
	if res.State.AccumulatedMinutes != 60 || !res.ShouldAct {
		t.Errorf("at 60/60: accumulated = %d, ShouldAct = %v", res.State.AccumulatedMinutes, res.ShouldAct)
	}
}

func TestEngine_SuspendResets(t *testing.T) {
	t0 := time.Date(2024, 1, 15, 8, 0, 0, 0, time.Local)
	f := newEngineFixture(t, t0.Add(500*time.Minute), map[string]string{
		KeySession: EncodeState(SessionState{AccumulatedMinutes: 30, LastCheckpoint: t0}),
	}, Options{})

	res := f.cycle(t)
	if !res.Reset || res.Counted {
		t.Errorf("Reset = %v, Counted = %v, want true, false", res.Reset, res.Counted)
	}
	if res.State.AccumulatedMinutes != 0 {
		t.Errorf("accumulated = %d, want 0", res.State.AccumulatedMinutes)
	}
	if res.Previous.AccumulatedMinutes != 30 {
		t.Errorf("previous accumulated = %d, want 30", res.Previous.AccumulatedMinutes)
	}

	// The next cycle starts from the reset value.
	f.clock.Advance(5 * time.Minute)
	res = f.cycle(t)
	if res.Previous.AccumulatedMinutes != 0 {
		t.Errorf("next cycle previous accumulated = %d, want 0", res.Previous.AccumulatedMinutes)
	}
	if res.State.AccumulatedMinutes != 5 {
		t.Errorf("next cycle accumulated = %d, want 5", res.State.AccumulatedMinutes)
	}
	if res.Reset {
		t.Error("next cycle Reset = true, want false")
	}
}

func TestEngine_TimeOfDay(t *testing.T) {
	tests := []struct {
		name    string
		trigger string
		compare string
		hour    int
		minute  int
		want    bool
	}{
		{"18:31 past 18:30", "18:30", "literal", 18, 31, true},
		{"18:00 before 18:30", "18:30", "literal", 18, 0, false},
		{"literal 10:10 vs 09:45", "09:45", "literal", 10, 10, false},
		{"combined 10:10 vs 09:45", "09:45", "combined", 10, 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Date(2024, 1, 15, tt.hour, tt.minute, 0, 0, time.Local)
			f := newEngineFixture(t, now, map[string]string{
				KeyActionMode:  "time",
				KeyActionTime:  tt.trigger,
				KeyTimeCompare: tt.compare,
				KeyCommandPath: "/bin/true",
				KeySession:     EncodeState(SessionState{LastCheckpoint: now.Add(-5 * time.Minute)}),
			}, Options{})

			res := f.cycle(t)
			if res.ShouldAct != tt.want {
				t.Errorf("ShouldAct = %v, want %v", res.ShouldAct, tt.want)
			}
		})
	}
}

func TestEngine_CheckpointAlwaysAdvances(t *testing.T) {
	t0 := time.Date(2024, 1, 15, 12, 0, 0, 0, time.Local)
	f := newEngineFixture(t, t0, map[string]string{
		KeySession: EncodeState(SessionState{AccumulatedMinutes: 5, LastCheckpoint: t0.Add(-time.Hour)}),
	}, Options{})

	for _, step := range []time.Duration{time.Minute, 3 * time.Hour, 90 * time.Second, 9 * time.Hour} {
		f.clock.Advance(step)
		res := f.cycle(t)

		want := f.clock.Now().Truncate(time.Millisecond)
		if !res.State.LastCheckpoint.Equal(want) {
			t.Fatalf("after %v: checkpoint = %v, want %v", step, res.State.LastCheckpoint, want)
		}
		if res.State.AccumulatedMinutes < 0 {
			t.Fatalf("after %v: negative accumulator %d", step, res.State.AccumulatedMinutes)
		}
	}
}

func TestEngine_RestartRoundTrip(t *testing.T) {
	t0 := time.Date(2024, 1, 15, 12, 0, 0, 0, time.Local)
	values := map[string]string{
		KeySession: EncodeState(SessionState{AccumulatedMinutes: 20, LastCheckpoint: t0}),
	}
	f := newEngineFixture(t, t0.Add(5*time.Minute), values, Options{})
	first := f.cycle(t)

	// A fresh engine over the same store picks up where the first left off.
	logger := zerolog.Nop()
	restarted := NewEngine(f.store, f.clock, NewDispatcher(f.sinks, f.sinks, logger), f.sinks, Options{Defaults: testSettings(), Hostname: "kids-pc"}, logger)
	f.clock.Advance(5 * time.Minute)
	second, err := restarted.Cycle(context.Background())
	if err != nil {
		t.Fatalf("Cycle() error = %v", err)
	}

	if second.Previous.AccumulatedMinutes != first.State.AccumulatedMinutes {
		t.Errorf("restarted previous = %d, want %d", second.Previous.AccumulatedMinutes, first.State.AccumulatedMinutes)
	}
	if second.Previous.LastCheckpoint.UnixMilli() != first.State.LastCheckpoint.UnixMilli() {
		t.Errorf("restarted checkpoint = %d, want %d", second.Previous.LastCheckpoint.UnixMilli(), first.State.LastCheckpoint.UnixMilli())
	}
	if second.State.AccumulatedMinutes != 30 {
		t.Errorf("accumulated = %d, want 30", second.State.AccumulatedMinutes)
	}
}

func TestEngine_StoreReadFailureUsesLastKnown(t *testing.T) {
	t0 := time.Date(2024, 1, 15, 12, 0, 0, 0, time.Local)
	f := newEngineFixture(t, t0, map[string]string{
		KeyAllowedMinutes: "90",
		KeySession:        EncodeState(SessionState{AccumulatedMinutes: 10, LastCheckpoint: t0.Add(-5 * time.Minute)}),
	}, Options{})

	first := f.cycle(t)
	if first.State.AccumulatedMinutes != 15 {
		t.Fatalf("accumulated = %d, want 15", first.State.AccumulatedMinutes)
	}

	f.store.setFailures(true, true)
	f.clock.Advance(5 * time.Minute)

	res, err := f.engine.Cycle(context.Background())
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Cycle() error = %v, want ErrStoreUnavailable", err)
	}
	if res == nil {
		t.Fatal("Cycle() returned nil result")
	}
	if res.Persisted {
		t.Error("Persisted = true with failing writes")
	}
	if res.Settings.AllowedMinutes != 90 {
		t.Errorf("AllowedMinutes = %d, want cached 90", res.Settings.AllowedMinutes)
	}
	if res.State.AccumulatedMinutes != 20 {
		t.Errorf("accumulated = %d, want 20 from cached state", res.State.AccumulatedMinutes)
	}

	// Recovery persists the in-memory progress.
	f.store.setFailures(false, false)
	f.clock.Advance(5 * time.Minute)
	res = f.cycle(t)
	if !res.Persisted {
		t.Error("Persisted = false after recovery")
	}
}

func TestEngine_StoreReadFailureOnFirstCycleKeepsStoredState(t *testing.T) {
	t0 := time.Date(2024, 1, 15, 12, 0, 0, 0, time.Local)
	stored := EncodeState(SessionState{AccumulatedMinutes: 50, LastCheckpoint: t0.Add(-5 * time.Minute)})
	f := newEngineFixture(t, t0, map[string]string{
		KeyCommandPath: "/bin/true",
		KeySession:     stored,
	}, Options{Retention: 10})

	f.store.setFailures(true, false)

	res, err := f.engine.Cycle(context.Background())
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Cycle() error = %v, want ErrStoreUnavailable", err)
	}
	if !res.StateUnknown {
		t.Error("StateUnknown = false on a first cycle with no readable state")
	}
	if res.Persisted || res.Reset || res.ShouldAct {
		t.Errorf("Persisted = %v, Reset = %v, ShouldAct = %v, want all false", res.Persisted, res.Reset, res.ShouldAct)
	}
	if got := f.store.get(KeySession); got != stored {
		t.Errorf("stored session = %q, want untouched %q", got, stored)
	}
	if events := f.sinks.list(); len(events) != 0 {
		t.Errorf("side effects = %v, want none", events)
	}

	// Once the store recovers the stored accumulator is still there. The
	// ten minute gap spans the skipped cycle and is not counted.
	f.store.setFailures(false, false)
	f.clock.Advance(5 * time.Minute)
	res = f.cycle(t)
	if res.Previous.AccumulatedMinutes != 50 {
		t.Errorf("previous accumulated = %d, want 50", res.Previous.AccumulatedMinutes)
	}
	if res.State.AccumulatedMinutes != 50 || res.Reset {
		t.Errorf("accumulated = %d, Reset = %v, want 50, false", res.State.AccumulatedMinutes, res.Reset)
	}

	f.clock.Advance(5 * time.Minute)
	res = f.cycle(t)
	if res.State.AccumulatedMinutes != 55 {
		t.Errorf("accumulated = %d, want 55", res.State.AccumulatedMinutes)
	}
}

func TestEngine_InvalidSettingsFallBack(t *testing.T) {
	t0 := time.Date(2024, 1, 15, 12, 0, 0, 0, time.Local)
	f := newEngineFixture(t, t0, map[string]string{
		KeyAllowedMinutes: "sixty",
		KeySession:        "oldTime:abc;lastModified:" + strconv.FormatInt(t0.Add(-5*time.Minute).UnixMilli(), 10),
	}, Options{})

	res := f.cycle(t)
	if res.Settings.AllowedMinutes != testSettings().AllowedMinutes {
		t.Errorf("AllowedMinutes = %d, want default", res.Settings.AllowedMinutes)
	}
	if res.State.AccumulatedMinutes != 5 {
		t.Errorf("accumulated = %d, want 5 from zeroed accumulator", res.State.AccumulatedMinutes)
	}
}

func TestEngine_SetDefaultsAppliesToNextCycle(t *testing.T) {
	t0 := time.Date(2024, 1, 15, 12, 0, 0, 0, time.Local)
	f := newEngineFixture(t, t0, map[string]string{
		KeyAllowedMinutes: "lots",
		KeySession:        EncodeState(SessionState{LastCheckpoint: t0.Add(-5 * time.Minute)}),
	}, Options{})

	res := f.cycle(t)
	if res.Settings.AllowedMinutes != 60 {
		t.Fatalf("AllowedMinutes = %d, want startup default 60", res.Settings.AllowedMinutes)
	}

	reloaded := testSettings()
	reloaded.AllowedMinutes = 30
	f.engine.SetDefaults(reloaded)

	f.clock.Advance(5 * time.Minute)
	res = f.cycle(t)
	if res.Settings.AllowedMinutes != 30 {
		t.Errorf("AllowedMinutes = %d, want reloaded default 30", res.Settings.AllowedMinutes)
	}
}

func TestEngine_NotifiesEveryCycle(t *testing.T) {
	t0 := time.Date(2024, 1, 15, 12, 0, 0, 0, time.Local)
	f := newEngineFixture(t, t0, map[string]string{
		KeySendEmail:     "true",
		KeyNotifyAddress: "parent@example.com",
		KeySession:       EncodeState(SessionState{LastCheckpoint: t0}),
	}, Options{Subject: "Screen check status"})

	for i := 0; i < 3; i++ {
		f.clock.Advance(5 * time.Minute)
		if res := f.cycle(t); !res.Notified {
			t.Fatalf("cycle %d not notified", i)
		}
	}

	if len(f.sinks.messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(f.sinks.messages))
	}
	msg := f.sinks.messages[2]
	for _, want := range []string{
		"Screen check status: 2024-01-15",
		"Status for screen check on: kids-pc",
		"Time spent till now in minutes is: 15, of limit: 60",
		"Reset flag value: false",
		"Shutdown flag value: false",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}

	f.sinks.notifyErr = errors.New("relay down")
	f.clock.Advance(5 * time.Minute)
	if res := f.cycle(t); res.Notified {
		t.Error("Notified = true despite notifier failure")
	}
}

func TestEngine_LaunchFailureAndExit(t *testing.T) {
	t0 := time.Date(2024, 1, 15, 12, 0, 0, 0, time.Local)
	values := map[string]string{
		KeyAllowedMinutes: "1",
		KeyCommandPath:    "/usr/bin/poweroff",
		KeySession:        EncodeState(SessionState{LastCheckpoint: t0}),
	}

	f := newEngineFixture(t, t0.Add(5*time.Minute), values, Options{ExitAfterAction: true})
	f.sinks.lockErr = errors.New("no session")
	f.sinks.launchErr = errors.New("exec format error")

	res := f.cycle(t)
	if !res.ShouldAct || res.Launched() {
		t.Errorf("ShouldAct = %v, Launched = %v", res.ShouldAct, res.Launched())
	}
	if events := f.sinks.list(); len(events) != 2 || events[0] != "lock" {
		t.Errorf("events = %v, want lock then run", events)
	}
	if len(f.exits) != 0 {
		t.Errorf("exit called after failed launch: %v", f.exits)
	}

	f.sinks.launchErr = nil
	f.clock.Advance(5 * time.Minute)
	res = f.cycle(t)
	if !res.Launched() {
		t.Fatal("Launched() = false")
	}
	if len(f.exits) != 1 || f.exits[0] != 0 {
		t.Errorf("exits = %v, want [0]", f.exits)
	}
}

func TestEngine_NoCommandConfigured(t *testing.T) {
	t0 := time.Date(2024, 1, 15, 12, 0, 0, 0, time.Local)
	f := newEngineFixture(t, t0.Add(5*time.Minute), map[string]string{
		KeyAllowedMinutes: "1",
		KeySession:        EncodeState(SessionState{LastCheckpoint: t0}),
	}, Options{})

	res := f.cycle(t)
	if !errors.Is(res.ActionErr, ErrNoCommand) {
		t.Errorf("ActionErr = %v, want ErrNoCommand", res.ActionErr)
	}
	if events := f.sinks.list(); len(events) != 1 || events[0] != "lock" {
		t.Errorf("events = %v, want [lock]", events)
	}
}

func TestEngine_RecordsHistory(t *testing.T) {
	t0 := time.Date(2024, 1, 15, 12, 0, 0, 0, time.Local)
	f := newEngineFixture(t, t0, map[string]string{
		KeySession: EncodeState(SessionState{LastCheckpoint: t0}),
	}, Options{Retention: 2})

	var ids []string
	for i := 0; i < 3; i++ {
		f.clock.Advance(5 * time.Minute)
		ids = append(ids, f.cycle(t).ID)
	}

	recs, err := f.store.Cycles().Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("history = %d records, want 2", len(recs))
	}
	if recs[0].ID != ids[2] || recs[1].ID != ids[1] {
		t.Errorf("history ids = [%s %s], want newest first", recs[0].ID, recs[1].ID)
	}
	if recs[0].AccumulatedMinutes != 15 || recs[0].Mode != "interval" {
		t.Errorf("latest record = %+v", recs[0])
	}

	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if len(seen) != 3 {
		t.Errorf("cycle ids not unique: %v", ids)
	}
}

func TestEstimatedActionTime(t *testing.T) {
	cp := time.Date(2024, 1, 15, 12, 0, 0, 0, time.Local)
	s := testSettings()

	got := EstimatedActionTime(s, SessionState{AccumulatedMinutes: 45, LastCheckpoint: cp})
	if want := cp.Add(15 * time.Minute); !got.Equal(want) {
		t.Errorf("interval estimate = %v, want %v", got, want)
	}

	s.Mode = ModeTimeOfDay
	s.TriggerTime = TimeOfDay{Hour: 21, Minute: 30, HasMinute: true}
	got = EstimatedActionTime(s, SessionState{LastCheckpoint: cp})
	if want := time.Date(2024, 1, 15, 21, 30, 0, 0, time.Local); !got.Equal(want) {
		t.Errorf("time-of-day estimate = %v, want %v", got, want)
	}
}
