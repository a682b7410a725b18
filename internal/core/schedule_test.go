package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		name      string
		schedType string
		meta      string
		wantErr   bool
	}{
		{name: "daily needs no meta", schedType: "daily", meta: ""},
		{name: "weekly with weekdays", schedType: "weekly", meta: `{"weekdays":["Monday","friday"]}`},
		{name: "weekly empty weekdays rejected", schedType: "weekly", meta: `{"weekdays":[]}`, wantErr: true},
		{name: "weekly unknown weekday rejected", schedType: "weekly", meta: `{"weekdays":["Funday"]}`, wantErr: true},
		{name: "weekly malformed meta rejected", schedType: "weekly", meta: `{"weekdays":`, wantErr: true},
		{name: "monthly with day", schedType: "monthly", meta: `{"day":15}`},
		{name: "monthly day zero rejected", schedType: "monthly", meta: `{"day":0}`, wantErr: true},
		{name: "monthly day 32 rejected", schedType: "monthly", meta: `{"day":32}`, wantErr: true},
		{name: "one_time with date", schedType: "one_time", meta: `{"date":"2025-03-14"}`},
		{name: "one_time bad date rejected", schedType: "one_time", meta: `{"date":"14/03/2025"}`, wantErr: true},
		{name: "unknown type rejected", schedType: "fortnightly", meta: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseSchedule(tt.schedType, json.RawMessage(tt.meta))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Errorf("error is %T, want *ValidationError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSchedule: %v", err)
			}
			if string(s.Type()) != tt.schedType {
				t.Errorf("Type() = %q, want %q", s.Type(), tt.schedType)
			}
		})
	}
}

func TestDailySchedule_Matches(t *testing.T) {
	s := DailySchedule{}
	if !s.Matches(date(2025, 3, 1)) || !s.Matches(date(2025, 12, 31)) {
		t.Error("daily schedule must match every date")
	}
}

func TestWeeklySchedule_Matches(t *testing.T) {
	s := WeeklySchedule{Weekdays: []string{"MONDAY", "friday"}}

	// 2025-03-03 is a Monday, 2025-03-07 a Friday, 2025-03-05 a Wednesday.
	if !s.Matches(date(2025, 3, 3)) {
		t.Error("should match Monday regardless of case")
	}
	if !s.Matches(date(2025, 3, 7)) {
		t.Error("should match Friday")
	}
	if s.Matches(date(2025, 3, 5)) {
		t.Error("should not match Wednesday")
	}
}

func TestMonthlySchedule_Matches(t *testing.T) {
	s := MonthlySchedule{Day: 31}

	if !s.Matches(date(2025, 1, 31)) {
		t.Error("day 31 should match January 31st")
	}
	// No end-of-month clamping: day=31 never fires in April.
	for d := 1; d <= 30; d++ {
		if s.Matches(date(2025, 4, d)) {
			t.Fatalf("day 31 schedule matched April %d", d)
		}
	}
}

func TestOneTimeSchedule_Matches(t *testing.T) {
	s := OneTimeSchedule{Date: "2025-03-14"}
	if !s.Matches(date(2025, 3, 14)) {
		t.Error("should match its own date")
	}
	if s.Matches(date(2025, 3, 15)) {
		t.Error("should not match any other date")
	}
}

func TestLoadSchedule_FailsClosed(t *testing.T) {
	tests := []struct {
		name      string
		schedType string
		meta      string
		wantOK    bool
	}{
		{name: "valid row", schedType: "weekly", meta: `{"weekdays":["sunday"]}`, wantOK: true},
		{name: "garbage meta", schedType: "weekly", meta: `not json`, wantOK: false},
		{name: "unknown type", schedType: "hourly", meta: ``, wantOK: false},
		{name: "daily without meta", schedType: "daily", meta: ``, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := LoadSchedule(tt.schedType, tt.meta)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && s == nil {
				t.Fatal("ok but schedule is nil")
			}
		})
	}
}
