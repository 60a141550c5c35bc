package usage

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/goodtune/screencheck/internal/config"
)

// Keys in the settings store.
const (
	KeyAllowedMinutes = "allowed_min"
	KeyIdleResetHours = "rewrite_hours"
	KeyCycleMinutes   = "timer_min"
	KeyActionMode     = "action_mode"
	KeyActionTime     = "action_time"
	KeyTimeCompare    = "time_compare"
	KeySendEmail      = "send_email"
	KeyNotifyAddress  = "notify_address"
	KeyCommandPath    = "command_path"
	KeySession        = "session"
)

// SettingKeys lists every key the engine reads, session excluded.
var SettingKeys = []string{
	KeyAllowedMinutes,
	KeyIdleResetHours,
	KeyCycleMinutes,
	KeyActionMode,
	KeyActionTime,
	KeyTimeCompare,
	KeySendEmail,
	KeyNotifyAddress,
	KeyCommandPath,
}

// Settings are the values re-read from the store on every cycle.
type Settings struct {
	AllowedMinutes int64
	IdleResetHours int64
	CycleMinutes   int64
	Mode           TriggerMode
	TriggerTime    TimeOfDay
	Compare        TimeCompare
	NotifyEnabled  bool
	NotifyAddress  string
	CommandPath    string
}

// Policy returns the trigger policy these settings select.
func (s Settings) Policy() TriggerPolicy {
	return NewTriggerPolicy(s.Mode, s.TriggerTime, s.Compare)
}

// IdleResetMinutes is the idle threshold in minutes.
func (s Settings) IdleResetMinutes() int64 {
	return s.IdleResetHours * 60
}

// Values renders the settings in their stored string form.
func (s Settings) Values() map[string]string {
	return map[string]string{
		KeyAllowedMinutes: strconv.FormatInt(s.AllowedMinutes, 10),
		KeyIdleResetHours: strconv.FormatInt(s.IdleResetHours, 10),
		KeyCycleMinutes:   strconv.FormatInt(s.CycleMinutes, 10),
		KeyActionMode:     string(s.Mode),
		KeyActionTime:     s.TriggerTime.String(),
		KeyTimeCompare:    string(s.Compare),
		KeySendEmail:      strconv.FormatBool(s.NotifyEnabled),
		KeyNotifyAddress:  s.NotifyAddress,
		KeyCommandPath:    s.CommandPath,
	}
}

// SettingsFromConfig converts the file configuration into seed settings.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	at, err := ParseTimeOfDay(cfg.Usage.TriggerTime)
	if err != nil {
		return Settings{}, fmt.Errorf("usage.trigger_time: %w", err)
	}
	mode, err := ParseTriggerMode(cfg.Usage.TriggerMode)
	if err != nil {
		return Settings{}, fmt.Errorf("usage.trigger_mode: %w", err)
	}
	compare, err := ParseTimeCompare(cfg.Usage.TimeCompare)
	if err != nil {
		return Settings{}, fmt.Errorf("usage.time_compare: %w", err)
	}

	return Settings{
		AllowedMinutes: int64(cfg.Usage.AllowedMinutes),
		IdleResetHours: int64(cfg.Usage.IdleResetHours),
		CycleMinutes:   int64(cfg.Usage.CycleMinutes),
		Mode:           mode,
		TriggerTime:    at,
		Compare:        compare,
		NotifyEnabled:  cfg.Notify.Enabled,
		NotifyAddress:  cfg.Notify.Address,
		CommandPath:    cfg.Action.CommandPath,
	}, nil
}

// SettingError reports a stored value that could not be used.
type SettingError struct {
	Key   string
	Value string
	Err   error
}

func (e *SettingError) Error() string {
	return fmt.Sprintf("setting %s=%q: %v", e.Key, e.Value, e.Err)
}

func (e *SettingError) Unwrap() error {
	return e.Err
}

// SettingErrors flattens the joined error returned by ParseSettings.
func SettingErrors(err error) []*SettingError {
	if err == nil {
		return nil
	}

	var out []*SettingError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, SettingErrors(e)...)
		}
		return out
	}

	var se *SettingError
	if errors.As(err, &se) {
		out = append(out, se)
	}
	return out
}

// ParseSettings overlays stored values onto defaults. Absent keys keep their
// default; a value that fails to parse keeps its default and is reported in
// the returned error, which joins one *SettingError per bad key.
func ParseSettings(values map[string]string, defaults Settings) (Settings, error) {
	s := defaults
	var errs []error

	for _, key := range SettingKeys {
		raw, ok := values[key]
		if !ok {
			continue
		}
		if err := s.apply(key, raw); err != nil {
			errs = append(errs, &SettingError{Key: key, Value: raw, Err: err})
		}
	}

	return s, errors.Join(errs...)
}

// ValidateSetting checks a single key/value pair before it is written.
func ValidateSetting(key, value string) error {
	if key == KeySession {
		if _, err := DecodeState(value); err != nil {
			return &SettingError{Key: key, Value: value, Err: err}
		}
		return nil
	}

	var s Settings
	if err := s.apply(key, value); err != nil {
		return &SettingError{Key: key, Value: value, Err: err}
	}
	return nil
}

// IsKnownKey reports whether key is read by the engine.
func IsKnownKey(key string) bool {
	if key == KeySession {
		return true
	}
	for _, k := range SettingKeys {
		if k == key {
			return true
		}
	}
	return false
}

// UnknownKeys returns the sorted keys in values that the engine never reads.
func UnknownKeys(values map[string]string) []string {
	var unknown []string
	for k := range values {
		if !IsKnownKey(k) {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func (s *Settings) apply(key, raw string) error {
	value := strings.TrimSpace(raw)

	switch key {
	case KeyAllowedMinutes:
		return parsePositive(value, &s.AllowedMinutes)
	case KeyIdleResetHours:
		return parsePositive(value, &s.IdleResetHours)
	case KeyCycleMinutes:
		return parsePositive(value, &s.CycleMinutes)
	case KeyActionMode:
		m, err := ParseTriggerMode(value)
		if err != nil {
			return err
		}
		s.Mode = m
	case KeyActionTime:
		t, err := ParseTimeOfDay(value)
		if err != nil {
			return err
		}
		s.TriggerTime = t
	case KeyTimeCompare:
		c, err := ParseTimeCompare(value)
		if err != nil {
			return err
		}
		s.Compare = c
	case KeySendEmail:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %q is not a boolean", ErrParse, value)
		}
		s.NotifyEnabled = b
	case KeyNotifyAddress:
		s.NotifyAddress = value
	case KeyCommandPath:
		s.CommandPath = value
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

func parsePositive(value string, dst *int64) error {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q is not an integer", ErrParse, value)
	}
	if n <= 0 {
		return fmt.Errorf("%w: %d must be positive", ErrParse, n)
	}
	*dst = n
	return nil
}
