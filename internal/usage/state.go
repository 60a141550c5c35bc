package usage

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	stateAccumulatedField = "oldTime"
	stateCheckpointField  = "lastModified"
	stateFieldSep         = ";"
)

// SessionState is the persisted accumulator. It is the only state that
// survives between cycles and process restarts.
type SessionState struct {
	AccumulatedMinutes int64
	LastCheckpoint     time.Time
}

// InitialState is the first-run state: nothing accumulated, checkpoint at the
// Unix epoch.
func InitialState() SessionState {
	return SessionState{LastCheckpoint: time.UnixMilli(0)}
}

// EncodeState renders the state as "oldTime:<int>;lastModified:<epoch-millis>".
func EncodeState(s SessionState) string {
	return stateAccumulatedField + ":" + strconv.FormatInt(s.AccumulatedMinutes, 10) +
		stateFieldSep + stateCheckpointField + ":" + strconv.FormatInt(s.LastCheckpoint.UnixMilli(), 10)
}

// DecodeState parses the EncodeState form. Each field that fails to parse
// falls back to its InitialState value; the returned error joins one ErrParse
// per bad field, so callers can log and carry on with the partial result.
func DecodeState(raw string) (SessionState, error) {
	state := InitialState()

	fields := make(map[string]string, 2)
	for _, part := range strings.Split(strings.TrimSpace(raw), stateFieldSep) {
		name, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}

	var errs []error

	if v, ok := fields[stateAccumulatedField]; ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Errorf("%w: %s=%q", ErrParse, stateAccumulatedField, v))
		} else {
			state.AccumulatedMinutes = n
		}
	} else {
		errs = append(errs, fmt.Errorf("%w: %s missing", ErrParse, stateAccumulatedField))
	}

	if v, ok := fields[stateCheckpointField]; ok {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s=%q", ErrParse, stateCheckpointField, v))
		} else {
			state.LastCheckpoint = time.UnixMilli(ms)
		}
	} else {
		errs = append(errs, fmt.Errorf("%w: %s missing", ErrParse, stateCheckpointField))
	}

	return state, errors.Join(errs...)
}
