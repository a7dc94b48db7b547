package schedule

import (
	"slices"
	"testing"
	"time"
)

// monday returns 2026-10-12 (a Monday) at hh:mm:ss in UTC.
func monday(hh, mm, ss int) time.Time {
	return time.Date(2026, time.October, 12, hh, mm, ss, 0, time.UTC)
}

func workdays() Window {
	return Window{
		Days:  []int{1, 2, 3, 4, 5},
		Start: TimeOfDay{Hour: 9},
		End:   TimeOfDay{Hour: 17},
	}
}

func TestISODay(t *testing.T) {
	tests := []struct {
		day  time.Weekday
		want int
	}{
		{time.Monday, 1},
		{time.Wednesday, 3},
		{time.Saturday, 6},
		{time.Sunday, 7},
	}
	for _, tt := range tests {
		if got := ISODay(tt.day); got != tt.want {
			t.Errorf("ISODay(%v) = %d, want %d", tt.day, got, tt.want)
		}
	}
}

func TestParseDays(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{"1,2,3,4,5", []int{1, 2, 3, 4, 5}, false},
		{" 7 , 1 ", []int{1, 7}, false},
		{"3,3,2", []int{2, 3}, false},
		{"", nil, false},
		{"0", nil, true},
		{"8", nil, true},
		{"mon", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDays(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDays(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && !slices.Equal(got, tt.want) {
				t.Errorf("ParseDays(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	got, err := ParseTimeOfDay("09:30")
	if err != nil {
		t.Fatalf("ParseTimeOfDay failed: %v", err)
	}
	if got != (TimeOfDay{Hour: 9, Minute: 30}) {
		t.Errorf("got %+v", got)
	}
	if got.String() != "09:30" {
		t.Errorf("String() = %q", got.String())
	}

	for _, bad := range []string{"9", "25:00", "12:60", "noon"} {
		if _, err := ParseTimeOfDay(bad); err == nil {
			t.Errorf("ParseTimeOfDay(%q) should fail", bad)
		}
	}
}

func TestWindowDeadline(t *testing.T) {
	tests := []struct {
		name   string
		window Window
		now    time.Time
		idle   time.Duration
		want   time.Time
	}{
		{
			name:   "timeout ends exactly at window end",
			window: workdays(),
			now:    monday(9, 0, 0),
			idle:   480 * time.Minute,
			want:   monday(17, 0, 0),
		},
		{
			name:   "window end caps the timeout",
			window: workdays(),
			now:    monday(16, 50, 0),
			idle:   30 * time.Minute,
			want:   monday(17, 0, 0),
		},
		{
			name:   "timeout inside the window",
			window: workdays(),
			now:    monday(10, 0, 0),
			idle:   30 * time.Minute,
			want:   monday(10, 30, 0),
		},
		{
			name:   "day not listed",
			window: Window{Days: []int{2, 3}, Start: TimeOfDay{Hour: 9}, End: TimeOfDay{Hour: 17}},
			now:    monday(10, 0, 0),
			idle:   30 * time.Minute,
			want:   monday(10, 0, 0),
		},
		{
			name:   "sunday is day 7",
			window: Window{Days: []int{7}, Start: TimeOfDay{Hour: 9}, End: TimeOfDay{Hour: 17}},
			now:    time.Date(2026, time.October, 18, 10, 0, 0, 0, time.UTC),
			idle:   time.Hour,
			want:   time.Date(2026, time.October, 18, 11, 0, 0, 0, time.UTC),
		},
		{
			name:   "before window start",
			window: workdays(),
			now:    monday(8, 59, 59),
			idle:   time.Hour,
			want:   monday(8, 59, 59),
		},
		{
			name:   "start boundary is inside",
			window: workdays(),
			now:    monday(9, 0, 0),
			idle:   time.Hour,
			want:   monday(10, 0, 0),
		},
		{
			name:   "end boundary is inside",
			window: workdays(),
			now:    monday(17, 0, 0),
			idle:   time.Hour,
			want:   monday(17, 0, 0),
		},
		{
			name:   "just after window end",
			window: workdays(),
			now:    monday(17, 0, 1),
			idle:   time.Hour,
			want:   monday(17, 0, 1),
		},
		{
			name:   "zero-width window is never active",
			window: Window{Days: []int{1}, Start: TimeOfDay{Hour: 12}, End: TimeOfDay{Hour: 12}},
			now:    monday(12, 0, 0),
			idle:   time.Hour,
			want:   monday(12, 0, 0),
		},
		{
			name:   "inverted window is never active",
			window: Window{Days: []int{1}, Start: TimeOfDay{Hour: 18}, End: TimeOfDay{Hour: 8}},
			now:    monday(20, 0, 0),
			idle:   time.Hour,
			want:   monday(20, 0, 0),
		},
		{
			name:   "zero idle timeout",
			window: workdays(),
			now:    monday(10, 0, 0),
			idle:   0,
			want:   monday(10, 0, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.window.Deadline(tt.now, tt.idle); !got.Equal(tt.want) {
				t.Errorf("Deadline(%v, %v) = %v, want %v", tt.now, tt.idle, got, tt.want)
			}
		})
	}
}

func TestWindowString(t *testing.T) {
	if got := workdays().String(); got != "days 1,2,3,4,5 09:00-17:00" {
		t.Errorf("String() = %q", got)
	}
}
