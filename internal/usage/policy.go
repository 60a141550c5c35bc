package usage

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TriggerMode selects how the engine decides whether to act.
type TriggerMode string

const (
	// ModeInterval acts once the accumulated minutes reach the allowance.
	ModeInterval TriggerMode = "interval"
	// ModeTimeOfDay acts once the local wall clock passes a configured time.
	ModeTimeOfDay TriggerMode = "time"
)

// ParseTriggerMode validates a stored action_mode value.
func ParseTriggerMode(s string) (TriggerMode, error) {
	switch m := TriggerMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeInterval, ModeTimeOfDay:
		return m, nil
	default:
		return "", fmt.Errorf("%w: trigger mode %q", ErrParse, s)
	}
}

// TimeCompare selects how an "HH:MM" trigger time is compared.
type TimeCompare string

const (
	// CompareLiteral fires when hour >= HH AND minute >= MM. At 10:05 a
	// 09:45 trigger does not fire because 05 < 45.
	CompareLiteral TimeCompare = "literal"
	// CompareCombined compares minutes since midnight.
	CompareCombined TimeCompare = "combined"
)

// ParseTimeCompare validates a stored time_compare value.
func ParseTimeCompare(s string) (TimeCompare, error) {
	switch c := TimeCompare(strings.ToLower(strings.TrimSpace(s))); c {
	case CompareLiteral, CompareCombined:
		return c, nil
	default:
		return "", fmt.Errorf("%w: time compare %q", ErrParse, s)
	}
}

// TimeOfDay is a trigger time in "HH" or "HH:MM" form.
type TimeOfDay struct {
	Hour      int
	Minute    int
	HasMinute bool
}

// ParseTimeOfDay parses "HH" or "HH:MM" in 24-hour local time.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	hourPart, minutePart, hasMinute := strings.Cut(s, ":")

	hour, err := strconv.Atoi(hourPart)
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("%w: trigger time %q", ErrParse, s)
	}
	t := TimeOfDay{Hour: hour}

	if hasMinute {
		minute, err := strconv.Atoi(minutePart)
		if err != nil || minute < 0 || minute > 59 {
			return TimeOfDay{}, fmt.Errorf("%w: trigger time %q", ErrParse, s)
		}
		t.Minute = minute
		t.HasMinute = true
	}
	return t, nil
}

// String renders the time in the form it was parsed from.
func (t TimeOfDay) String() string {
	if t.HasMinute {
		return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
	}
	return fmt.Sprintf("%02d", t.Hour)
}

// TriggerPolicy decides, once per cycle, whether the action fires.
type TriggerPolicy interface {
	Mode() TriggerMode
	ShouldAct(state SessionState, allowedMinutes int64, now time.Time) bool
}

// IntervalPolicy fires when the accumulator reaches the allowance.
type IntervalPolicy struct{}

// Mode implements TriggerPolicy.
func (IntervalPolicy) Mode() TriggerMode { return ModeInterval }

// ShouldAct implements TriggerPolicy.
func (IntervalPolicy) ShouldAct(state SessionState, allowedMinutes int64, _ time.Time) bool {
	return state.AccumulatedMinutes >= allowedMinutes
}

// TimeOfDayPolicy fires when the local clock is at or past At.
type TimeOfDayPolicy struct {
	At      TimeOfDay
	Compare TimeCompare
}

// Mode implements TriggerPolicy.
func (TimeOfDayPolicy) Mode() TriggerMode { return ModeTimeOfDay }

// ShouldAct implements TriggerPolicy. The accumulator is ignored.
func (p TimeOfDayPolicy) ShouldAct(_ SessionState, _ int64, now time.Time) bool {
	hour, minute := now.Hour(), now.Minute()

	if !p.At.HasMinute {
		return hour >= p.At.Hour
	}

	if p.Compare == CompareCombined {
		return hour*60+minute >= p.At.Hour*60+p.At.Minute
	}
	return hour >= p.At.Hour && minute >= p.At.Minute
}

// NewTriggerPolicy builds the policy for a mode. at and compare are only
// consulted for ModeTimeOfDay.
func NewTriggerPolicy(mode TriggerMode, at TimeOfDay, compare TimeCompare) TriggerPolicy {
	if mode == ModeTimeOfDay {
		return TimeOfDayPolicy{At: at, Compare: compare}
	}
	return IntervalPolicy{}
}
