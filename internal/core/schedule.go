package core

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	ScheduleDaily   ScheduleType = "daily"
	ScheduleWeekly  ScheduleType = "weekly"
	ScheduleMonthly ScheduleType = "monthly"
	ScheduleOneTime ScheduleType = "one_time"
)

type ScheduleType string

// Schedule is the closed set of recurrence rules a template can carry.
// Variants are validated at template creation; see ParseSchedule.
type Schedule interface {
	Type() ScheduleType
	// Matches reports whether an instance is due on the given date.
	Matches(date time.Time) bool
	// Meta returns the JSON metadata persisted next to the type tag,
	// or "" when the variant carries none.
	Meta() string
}

// DailySchedule matches every date.
type DailySchedule struct{}

func (DailySchedule) Type() ScheduleType       { return ScheduleDaily }
func (DailySchedule) Matches(_ time.Time) bool { return true }
func (DailySchedule) Meta() string             { return "" }

// WeeklySchedule matches dates whose weekday name is in Weekdays.
// Comparison is case-insensitive on full English weekday names.
type WeeklySchedule struct {
	Weekdays []string `json:"weekdays"`
}

func (WeeklySchedule) Type() ScheduleType { return ScheduleWeekly }

func (s WeeklySchedule) Matches(date time.Time) bool {
	name := strings.ToLower(date.Weekday().String())
	for _, d := range s.Weekdays {
		if strings.ToLower(d) == name {
			return true
		}
	}
	return false
}

func (s WeeklySchedule) Meta() string { return marshalMeta(s) }

// MonthlySchedule matches when Day equals the date's day of month.
// There is no end-of-month clamping: a day=31 schedule silently never
// matches in shorter months.
type MonthlySchedule struct {
	Day int `json:"day"`
}

func (MonthlySchedule) Type() ScheduleType { return ScheduleMonthly }

func (s MonthlySchedule) Matches(date time.Time) bool {
	return s.Day == date.Day()
}

func (s MonthlySchedule) Meta() string { return marshalMeta(s) }

// OneTimeSchedule matches exactly one ISO date.
type OneTimeSchedule struct {
	Date string `json:"date"`
}

func (OneTimeSchedule) Type() ScheduleType { return ScheduleOneTime }

func (s OneTimeSchedule) Matches(date time.Time) bool {
	return s.Date == date.Format(DateLayout)
}

func (s OneTimeSchedule) Meta() string { return marshalMeta(s) }

func marshalMeta(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

var weekdayNames = map[string]struct{}{
	"monday": {}, "tuesday": {}, "wednesday": {}, "thursday": {},
	"friday": {}, "saturday": {}, "sunday": {},
}

// ParseSchedule validates a schedule type plus raw JSON metadata into one
// of the closed variants. Unknown types and malformed shapes are rejected
// here, at template creation, instead of silently never matching later.
func ParseSchedule(schedType string, meta json.RawMessage) (Schedule, error) {
	switch ScheduleType(schedType) {
	case ScheduleDaily:
		return DailySchedule{}, nil

	case ScheduleWeekly:
		var s WeeklySchedule
		if err := unmarshalMeta(meta, &s); err != nil {
			return nil, err
		}
		if len(s.Weekdays) == 0 {
			return nil, Validationf("weekly schedule requires a weekdays list")
		}
		for _, d := range s.Weekdays {
			if _, ok := weekdayNames[strings.ToLower(d)]; !ok {
				return nil, Validationf("unknown weekday %q", d)
			}
		}
		return s, nil

	case ScheduleMonthly:
		var s MonthlySchedule
		if err := unmarshalMeta(meta, &s); err != nil {
			return nil, err
		}
		if s.Day < 1 || s.Day > 31 {
			return nil, Validationf("monthly schedule day must be 1-31, got %d", s.Day)
		}
		return s, nil

	case ScheduleOneTime:
		var s OneTimeSchedule
		if err := unmarshalMeta(meta, &s); err != nil {
			return nil, err
		}
		if _, err := ParseDate(s.Date); err != nil {
			return nil, err
		}
		return s, nil

	default:
		return nil, Validationf("unknown schedule type %q", schedType)
	}
}

func unmarshalMeta(meta json.RawMessage, dst any) error {
	if len(meta) == 0 {
		return Validationf("schedule metadata is required")
	}
	if err := json.Unmarshal(meta, dst); err != nil {
		return Validationf("malformed schedule metadata: %v", err)
	}
	return nil
}

// LoadSchedule rebuilds a schedule from persisted columns. Unlike
// ParseSchedule it fails closed: malformed rows yield (nil, false) and
// simply never match, they do not abort instance generation.
func LoadSchedule(schedType, meta string) (Schedule, bool) {
	s, err := ParseSchedule(schedType, json.RawMessage(meta))
	if err != nil {
		return nil, false
	}
	return s, true
}
