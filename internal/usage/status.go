package usage

import (
	"fmt"
	"strings"
	"time"
)

const statusTimeFormat = "2006-01-02 15:04:05 MST"

// EstimatedActionTime is when the trigger is expected to fire given the
// current state. In interval mode it is the checkpoint plus the remaining
// allowance, which lies in the past once the allowance is used up. In
// time-of-day mode it is the trigger time on the checkpoint's day.
func EstimatedActionTime(s Settings, state SessionState) time.Time {
	cp := state.LastCheckpoint
	if s.Mode == ModeTimeOfDay {
		return time.Date(cp.Year(), cp.Month(), cp.Day(), s.TriggerTime.Hour, s.TriggerTime.Minute, 0, 0, cp.Location())
	}
	remaining := s.AllowedMinutes - state.AccumulatedMinutes
	return cp.Add(time.Duration(remaining) * time.Minute)
}

// StatusMessage renders the per-cycle status notification.
func StatusMessage(hostname, subjectPrefix string, res *CycleResult) (subject, body string) {
	subject = fmt.Sprintf("%s: %s", subjectPrefix, res.ObservedAt.Format("2006-01-02"))

	var b strings.Builder
	b.WriteString("Hi\n\n")
	fmt.Fprintf(&b, "Status for screen check on: %s\n\n", hostname)
	fmt.Fprintf(&b, "Machine time: %s\n", res.ObservedAt.Format(statusTimeFormat))
	fmt.Fprintf(&b, "Estimated shutdown time: %s\n", EstimatedActionTime(res.Settings, res.State).Format(statusTimeFormat))
	fmt.Fprintf(&b, "Time spent till now in minutes is: %d, of limit: %d\n", res.State.AccumulatedMinutes, res.Settings.AllowedMinutes)
	fmt.Fprintf(&b, "Reset flag value: %t\n", res.Reset)
	fmt.Fprintf(&b, "Shutdown flag value: %t\n", res.ShouldAct)
	b.WriteString("\nThanks\nScreenCheck Team\n")

	return subject, b.String()
}
