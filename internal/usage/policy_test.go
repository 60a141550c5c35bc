package usage

import (
	"errors"
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, 1, 15, hour, minute, 0, 0, time.Local)
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		input   string
		want    TimeOfDay
		wantErr bool
	}{
		{"18", TimeOfDay{Hour: 18}, false},
		{"09:45", TimeOfDay{Hour: 9, Minute: 45, HasMinute: true}, false},
		{" 7:05 ", TimeOfDay{Hour: 7, Minute: 5, HasMinute: true}, false},
		{"00:00", TimeOfDay{HasMinute: true}, false},
		{"24", TimeOfDay{}, true},
		{"12:60", TimeOfDay{}, true},
		{"ab:cd", TimeOfDay{}, true},
		{"", TimeOfDay{}, true},
		{"-1", TimeOfDay{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrParse) {
					t.Fatalf("ParseTimeOfDay(%q) error = %v, want ErrParse", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimeOfDay(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseTimeOfDay(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTimeOfDay_String(t *testing.T) {
	if got := (TimeOfDay{Hour: 9, Minute: 5, HasMinute: true}).String(); got != "09:05" {
		t.Errorf("String() = %q, want 09:05", got)
	}
	if got := (TimeOfDay{Hour: 18}).String(); got != "18" {
		t.Errorf("String() = %q, want 18", got)
	}
}

func TestIntervalPolicy(t *testing.T) {
	p := IntervalPolicy{}
	tests := []struct {
		accumulated int64
		want        bool
	}{
		{0, false},
		{59, false},
		{60, true},
		{61, true},
	}

	for _, tt := range tests {
		got := p.ShouldAct(SessionState{AccumulatedMinutes: tt.accumulated}, 60, at(12, 0))
		if got != tt.want {
			t.Errorf("ShouldAct(acc=%d, allowed=60) = %v, want %v", tt.accumulated, got, tt.want)
		}
	}
}

func TestTimeOfDayPolicy_HourOnly(t *testing.T) {
	p := TimeOfDayPolicy{At: TimeOfDay{Hour: 18}}

	if !p.ShouldAct(SessionState{}, 0, at(18, 31)) {
		t.Error("18:31 against \"18\" should fire")
	}
	if !p.ShouldAct(SessionState{}, 0, at(18, 0)) {
		t.Error("18:00 against \"18\" should fire")
	}
	if p.ShouldAct(SessionState{}, 0, at(17, 59)) {
		t.Error("17:59 against \"18\" should not fire")
	}
}

func TestTimeOfDayPolicy_IgnoresAccumulator(t *testing.T) {
	p := TimeOfDayPolicy{At: TimeOfDay{Hour: 18}}
	if p.ShouldAct(SessionState{AccumulatedMinutes: 10_000}, 1, at(9, 0)) {
		t.Error("time-of-day policy should not consult the accumulator")
	}
}

func TestTimeOfDayPolicy_Compare(t *testing.T) {
	trigger := TimeOfDay{Hour: 9, Minute: 45, HasMinute: true}

	tests := []struct {
		name    string
		compare TimeCompare
		now     time.Time
		want    bool
	}{
		{"literal 10:05", CompareLiteral, at(10, 5), false},
		{"literal 10:50", CompareLiteral, at(10, 50), true},
		{"literal 09:45", CompareLiteral, at(9, 45), true},
		{"literal 09:30", CompareLiteral, at(9, 30), false},
		{"combined 10:05", CompareCombined, at(10, 5), true},
		{"combined 09:44", CompareCombined, at(9, 44), false},
		{"combined 09:45", CompareCombined, at(9, 45), true},
		{"combined 23:00", CompareCombined, at(23, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := TimeOfDayPolicy{At: trigger, Compare: tt.compare}
			if got := p.ShouldAct(SessionState{}, 0, tt.now); got != tt.want {
				t.Errorf("ShouldAct() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewTriggerPolicy(t *testing.T) {
	if got := NewTriggerPolicy(ModeInterval, TimeOfDay{}, CompareLiteral).Mode(); got != ModeInterval {
		t.Errorf("Mode() = %q, want interval", got)
	}
	p := NewTriggerPolicy(ModeTimeOfDay, TimeOfDay{Hour: 7}, CompareCombined)
	tod, ok := p.(TimeOfDayPolicy)
	if !ok {
		t.Fatalf("NewTriggerPolicy(time) = %T, want TimeOfDayPolicy", p)
	}
	if tod.At.Hour != 7 || tod.Compare != CompareCombined {
		t.Errorf("policy = %+v", tod)
	}
}

func TestParseTriggerMode(t *testing.T) {
	if m, err := ParseTriggerMode("Time"); err != nil || m != ModeTimeOfDay {
		t.Errorf("ParseTriggerMode(Time) = %q, %v", m, err)
	}
	if _, err := ParseTriggerMode("daily"); !errors.Is(err, ErrParse) {
		t.Errorf("ParseTriggerMode(daily) error = %v, want ErrParse", err)
	}
	if _, err := ParseTimeCompare("fuzzy"); !errors.Is(err, ErrParse) {
		t.Errorf("ParseTimeCompare(fuzzy) error = %v, want ErrParse", err)
	}
}
