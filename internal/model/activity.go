package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type ActivityType string

const (
	ActivityGroupCreated     ActivityType = "group_created"
	ActivityMemberAdded      ActivityType = "member_added"
	ActivityMemberRemoved    ActivityType = "member_removed"
	ActivityRoleChanged      ActivityType = "role_changed"
	ActivityNightCreated     ActivityType = "movie_night_created"
	ActivityNightUpdated     ActivityType = "movie_night_updated"
	ActivityNightLocked      ActivityType = "movie_night_locked"
	ActivityNightUnlocked    ActivityType = "movie_night_unlocked"
	ActivityReminderSent     ActivityType = "rsvp_reminder_sent"
	ActivityAvailabilitySet  ActivityType = "availability_updated"
	ActivityWatchlistAdded   ActivityType = "watchlist_added"
	ActivityWatchlistRemoved ActivityType = "watchlist_removed"
	ActivityVoteCast         ActivityType = "vote_cast"
)

var activityTypes = map[ActivityType]struct{}{
	ActivityGroupCreated: {}, ActivityMemberAdded: {}, ActivityMemberRemoved: {}, ActivityRoleChanged: {},
	ActivityNightCreated: {}, ActivityNightUpdated: {}, ActivityNightLocked: {}, ActivityNightUnlocked: {},
	ActivityReminderSent: {}, ActivityAvailabilitySet: {}, ActivityWatchlistAdded: {},
	ActivityWatchlistRemoved: {}, ActivityVoteCast: {},
}

func (t ActivityType) Valid() bool {
	_, ok := activityTypes[t]
	return ok
}

// ActivityEvent is an append-only audit record. Rows are never updated.
type ActivityEvent struct {
	ID           string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	GroupID      string         `gorm:"index:idx_group_activity_group_created,priority:1;not null;type:varchar(64)" json:"group_id"`
	ActorUserID  string         `gorm:"index;type:varchar(64)" json:"actor_user_id"`
	TargetUserID *string        `gorm:"type:varchar(64)" json:"target_user_id"`
	EventType    ActivityType   `gorm:"index;not null;type:varchar(40)" json:"event_type"`
	ReferenceID  *string        `gorm:"type:varchar(64)" json:"reference_id"`
	Metadata     datatypes.JSON `gorm:"column:metadata_json" json:"-"`
	CreatedAt    time.Time      `gorm:"index:idx_group_activity_group_created,priority:2;not null" json:"created_at"`
}

func (ActivityEvent) TableName() string {
	return "group_activity"
}

// ParseActivityMetadata decodes a stored metadata blob. Corrupt or empty
// blobs yield nil rather than an error.
func ParseActivityMetadata(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// ActivityView is the timeline entry returned to clients.
type ActivityView struct {
	ID           string         `json:"id"`
	GroupID      string         `json:"group_id"`
	ActorUserID  string         `json:"actor_user_id"`
	TargetUserID *string        `json:"target_user_id"`
	EventType    ActivityType   `json:"event_type"`
	ReferenceID  *string        `json:"reference_id"`
	Metadata     map[string]any `json:"metadata"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (e *ActivityEvent) View() ActivityView {
	return ActivityView{
		ID:           e.ID,
		GroupID:      e.GroupID,
		ActorUserID:  e.ActorUserID,
		TargetUserID: e.TargetUserID,
		EventType:    e.EventType,
		ReferenceID:  e.ReferenceID,
		Metadata:     ParseActivityMetadata(e.Metadata),
		CreatedAt:    e.CreatedAt,
	}
}

// ActivityFilter narrows a timeline query. Empty fields match everything.
type ActivityFilter struct {
	GroupID   string
	EventType ActivityType
	ActorID   string
	Page      PageRequest
}
