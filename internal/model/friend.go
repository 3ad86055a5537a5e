package model

import "time"

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestDeclined FriendRequestStatus = "declined"
)

type FriendRequest struct {
	ID          string              `gorm:"primaryKey;type:varchar(64)" json:"id"`
	SenderID    string              `gorm:"index;not null;type:varchar(64)" json:"sender_id"`
	ReceiverID  string              `gorm:"index;not null;type:varchar(64)" json:"receiver_id"`
	Status      FriendRequestStatus `gorm:"type:varchar(16);not null;default:pending" json:"status"`
	CreatedAt   time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	RespondedAt *time.Time          `json:"responded_at"`
}

func (FriendRequest) TableName() string {
	return "friend_requests"
}

// Friendship is stored once per direction.
type Friendship struct {
	UserID    string    `gorm:"primaryKey;type:varchar(64)" json:"user_id"`
	FriendID  string    `gorm:"primaryKey;type:varchar(64)" json:"friend_id"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Friendship) TableName() string {
	return "friendships"
}

// PendingRequestView is an incoming request together with its sender.
type PendingRequestView struct {
	ID        string      `json:"id"`
	Sender    UserProfile `json:"sender"`
	CreatedAt time.Time   `json:"created_at"`
}
