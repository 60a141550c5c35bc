package storage

import (
	"time"
)

// CycleRecord is one row of cycle history.
type CycleRecord struct {
	ID                 string    `json:"id"`
	ObservedAt         time.Time `json:"observed_at"`
	Mode               string    `json:"mode"`
	GapMinutes         int64     `json:"gap_minutes"`
	GapCounted         bool      `json:"gap_counted"`
	AccumulatedMinutes int64     `json:"accumulated_minutes"`
	AllowedMinutes     int64     `json:"allowed_minutes"`
	Reset              bool      `json:"reset"`
	ShouldAct          bool      `json:"should_act"`
}
