package model

import "time"

type NotificationType string

const (
	NotificationGroupInvite    NotificationType = "group_invite"
	NotificationMovieNight     NotificationType = "movie_night"
	NotificationVoteReminder   NotificationType = "vote_reminder"
	NotificationFriendRequest  NotificationType = "friend_request"
	NotificationFriendAccepted NotificationType = "friend_accepted"
	NotificationWatchlistAdd   NotificationType = "watchlist_add"
)

type Notification struct {
	ID          string           `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID      string           `gorm:"index:idx_notifications_user_read,priority:1;not null;type:varchar(64)" json:"user_id"`
	Type        NotificationType `gorm:"not null;type:varchar(32)" json:"type"`
	Title       string           `gorm:"not null;type:varchar(255)" json:"title"`
	Message     string           `gorm:"not null;type:text" json:"message"`
	ReferenceID *string          `gorm:"type:varchar(64)" json:"reference_id"`
	IsRead      bool             `gorm:"index:idx_notifications_user_read,priority:2;not null;default:false" json:"is_read"`
	CreatedAt   time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
