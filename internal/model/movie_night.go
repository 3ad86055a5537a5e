package model

import (
	"fmt"
	"time"
)

type NightStatus string

const (
	NightPlanned   NightStatus = "planned"
	NightCompleted NightStatus = "completed"
	NightCancelled NightStatus = "cancelled"
)

func (s NightStatus) Valid() bool {
	switch s {
	case NightPlanned, NightCompleted, NightCancelled:
		return true
	}
	return false
}

// CanTransition reports whether a night may move from s to next. Only planned
// nights change status, and only to completed or cancelled.
func (s NightStatus) CanTransition(next NightStatus) bool {
	return s == NightPlanned && (next == NightCompleted || next == NightCancelled)
}

const (
	MinReminderMinutes = 15
	MaxReminderMinutes = 10080 // one week
)

// TimestampLayout is the normalized representation of every schedule time.
const TimestampLayout = "2006-01-02 15:04:05"

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

type MovieNight struct {
	ID            string      `gorm:"primaryKey;type:varchar(64)" json:"id"`
	GroupID       string      `gorm:"index;not null;type:varchar(64)" json:"group_id"`
	ScheduledDate time.Time   `gorm:"not null" json:"scheduled_date"`
	ChosenMovieID *int64      `json:"chosen_movie_id"`
	Status        NightStatus `gorm:"type:varchar(16);not null;default:planned" json:"status"`
	CreatedBy     string      `gorm:"not null;type:varchar(64)" json:"created_by"`

	IsLocked              bool       `gorm:"not null;default:false" json:"is_locked"`
	RSVPDeadline          *time.Time `gorm:"column:rsvp_deadline" json:"rsvp_deadline"`
	ReminderMinutesBefore *int       `json:"reminder_minutes_before"`
	ReminderSentAt        *time.Time `json:"reminder_sent_at"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (MovieNight) TableName() string {
	return "movie_nights"
}

// SchedulingColumns are the columns added by the RSVP scheduling migration.
var SchedulingColumns = []string{"is_locked", "rsvp_deadline", "reminder_minutes_before", "reminder_sent_at"}

// ReminderConfigured reports whether both a deadline and a lead time are set.
func (n *MovieNight) ReminderConfigured() bool {
	return n.RSVPDeadline != nil && n.ReminderMinutesBefore != nil
}

// ReminderTriggerAt is the instant at which the RSVP reminder becomes due.
// It fails for stored values that could never have passed validation.
func (n *MovieNight) ReminderTriggerAt() (time.Time, error) {
	if !n.ReminderConfigured() {
		return time.Time{}, fmt.Errorf("reminder not configured")
	}
	if n.RSVPDeadline.IsZero() {
		return time.Time{}, fmt.Errorf("rsvp deadline is unset")
	}
	lead := *n.ReminderMinutesBefore
	if lead < MinReminderMinutes || lead > MaxReminderMinutes {
		return time.Time{}, fmt.Errorf("reminder lead time %d out of range", lead)
	}
	return n.RSVPDeadline.Add(-time.Duration(lead) * time.Minute), nil
}

// NightView is the API shape of a movie night: times normalized to
// TimestampLayout.
type NightView struct {
	ID                    string      `json:"id"`
	GroupID               string      `json:"group_id"`
	ScheduledDate         string      `json:"scheduled_date"`
	ChosenMovieID         *int64      `json:"chosen_movie_id"`
	Status                NightStatus `json:"status"`
	IsLocked              bool        `json:"is_locked"`
	RSVPDeadline          *string     `json:"rsvp_deadline"`
	ReminderMinutesBefore *int        `json:"reminder_minutes_before"`
	ReminderSentAt        *string     `json:"reminder_sent_at"`
	CreatedBy             string      `json:"created_by"`
	CreatedAt             string      `json:"created_at"`
}

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatTimestamp(*t)
	return &s
}

func (n *MovieNight) View() NightView {
	return NightView{
		ID:                    n.ID,
		GroupID:               n.GroupID,
		ScheduledDate:         FormatTimestamp(n.ScheduledDate),
		ChosenMovieID:         n.ChosenMovieID,
		Status:                n.Status,
		IsLocked:              n.IsLocked,
		RSVPDeadline:          formatOptional(n.RSVPDeadline),
		ReminderMinutesBefore: n.ReminderMinutesBefore,
		ReminderSentAt:        formatOptional(n.ReminderSentAt),
		CreatedBy:             n.CreatedBy,
		CreatedAt:             FormatTimestamp(n.CreatedAt),
	}
}

// Availability is a member's RSVP for a night; the latest answer wins.
type Availability struct {
	NightID     string    `gorm:"primaryKey;type:varchar(64)" json:"night_id"`
	UserID      string    `gorm:"primaryKey;type:varchar(64)" json:"user_id"`
	IsAvailable bool      `gorm:"not null" json:"is_available"`
	RespondedAt time.Time `gorm:"not null" json:"responded_at"`
}

func (Availability) TableName() string {
	return "movie_night_availability"
}

// AvailabilitySummary groups a night's RSVPs.
type AvailabilitySummary struct {
	NightID   string          `json:"night_id"`
	Responses []*Availability `json:"responses"`
	Available int             `json:"available"`
	Declined  int             `json:"declined"`
	Pending   []string        `json:"pending_user_ids"`
}
