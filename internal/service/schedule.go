package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/Gopher0727/MovieNight/internal/apperr"
	"github.com/Gopher0727/MovieNight/internal/model"
)

// ClockSkewGrace is how far in the past a new schedule time may lie.
const ClockSkewGrace = 60 * time.Second

// scheduleLayouts are tried in order. Layouts without a zone are read as UTC.
var scheduleLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	model.TimestampLayout,
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"Jan 2, 2006 15:04",
	"Jan 2, 2006 3:04 PM",
	"January 2, 2006 15:04",
	"January 2, 2006 3:04 PM",
	"January 2, 2006",
	"2006/01/02 15:04",
	"2006/01/02",
}

// ParseScheduleTime accepts a combined date-time or a looser date string and
// returns it in UTC.
func ParseScheduleTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range scheduleLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// schedule is a night's time fields after parsing, before validation.
type schedule struct {
	scheduled time.Time
	deadline  *time.Time
	lead      *int

	scheduledChanged bool
	deadlineChanged  bool
}

// validate enforces the ordering rules. Only fields that changed are checked
// against now, so an untouched past night stays editable.
func (sc schedule) validate(now time.Time) error {
	if sc.scheduledChanged && sc.scheduled.Before(now.Add(-ClockSkewGrace)) {
		return apperr.Validation("scheduled date must not be in the past")
	}
	if sc.deadline != nil {
		if !sc.deadline.Before(sc.scheduled) {
			return apperr.Validation("rsvp deadline must be before the scheduled date")
		}
		if sc.deadlineChanged && sc.deadline.Before(now) {
			return apperr.Validation("rsvp deadline must not be in the past")
		}
	}
	if sc.lead != nil {
		if sc.deadline == nil {
			return apperr.Validation("reminder requires an rsvp deadline")
		}
		if *sc.lead < model.MinReminderMinutes || *sc.lead > model.MaxReminderMinutes {
			return apperr.Validation("reminder must be between %d and %d minutes before the deadline",
				model.MinReminderMinutes, model.MaxReminderMinutes)
		}
	}
	return nil
}

func parseField(name, value string) (time.Time, error) {
	t, err := ParseScheduleTime(value)
	if err != nil {
		return time.Time{}, apperr.Validation("%s must be a valid date", name)
	}
	return t, nil
}
