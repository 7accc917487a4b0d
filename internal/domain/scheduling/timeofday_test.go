package scheduling

import (
	"errors"
	"testing"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"09:00", "09:00"},
		{"9:05", "09:05"},
		{"23:59", "23:59"},
		{"00:00", "00:00"},
		{"09:00 AM", "09:00"},
		{"09:00 am", "09:00"},
		{"12:00 AM", "00:00"},
		{"12:30 AM", "00:30"},
		{"12:00 PM", "12:00"},
		{"01:15 PM", "13:15"},
		{"11:45 PM", "23:45"},
		{"  08:30 AM  ", "08:30"},
	}
	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.in)
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("ParseTimeOfDay(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseTimeOfDay_Invalid(t *testing.T) {
	for _, in := range []string{"", "9", "24:00", "12:60", "13:00 PM", "00:30 AM", "ab:cd", "09:0", "09:00AM", "09:00 XM", "123:00", "09:+5", "+9:00", "-0:30", "-1:00 PM", "1 :00"} {
		if _, err := ParseTimeOfDay(in); !errors.Is(err, ErrInvalidTime) {
			t.Errorf("ParseTimeOfDay(%q) expected ErrInvalidTime, got %v", in, err)
		}
	}
}

func TestNormalizeTime_TwelveAndTwentyFourHourAgree(t *testing.T) {
	a, err := NormalizeTime("09:00 AM")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := NormalizeTime("09:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b || a != "09:00" {
		t.Errorf("expected both to normalize to 09:00, got %q and %q", a, b)
	}

	pm, _ := NormalizeTime("02:30 PM")
	if pm != "14:30" {
		t.Errorf("expected 14:30, got %q", pm)
	}
}
