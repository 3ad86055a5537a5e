package model

import (
	"time"

	"gorm.io/gorm"
)

// User is a registered account. Deleted accounts keep their row (DeletedAt)
// so memberships, votes and activity stay referentially intact.
type User struct {
	ID           string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name         string `gorm:"not null;type:varchar(100)" json:"name"`
	Email        string `gorm:"uniqueIndex;not null;type:varchar(255)" json:"email"`
	PasswordHash string `gorm:"column:password_hash;not null;type:varchar(255)" json:"-"`

	EmailNotifications bool `gorm:"not null;default:true" json:"email_notifications"`
	GroupNotifications bool `gorm:"not null;default:true" json:"group_notifications"`
	VoteNotifications  bool `gorm:"not null;default:true" json:"vote_notifications"`

	FailedLoginAttempts int        `gorm:"not null;default:0" json:"-"`
	LockedUntil         *time.Time `json:"-"`

	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// LoginState is the lockout bookkeeping left after a failed login.
type LoginState struct {
	FailedLoginAttempts int
	LockedUntil         *time.Time
}

// LockedAt reports whether the state locks the account at now.
func (s *LoginState) LockedAt(now time.Time) bool {
	return s.LockedUntil != nil && now.Before(*s.LockedUntil)
}

// Preference names one of the per-user notification switches.
type Preference string

const (
	PreferenceEmail Preference = "email_notifications"
	PreferenceGroup Preference = "group_notifications"
	PreferenceVote  Preference = "vote_notifications"
)

// Allows reports whether the user opted in to notifications of kind p.
func (u *User) Allows(p Preference) bool {
	switch p {
	case PreferenceEmail:
		return u.EmailNotifications
	case PreferenceGroup:
		return u.GroupNotifications
	case PreferenceVote:
		return u.VoteNotifications
	default:
		return true
	}
}

// Locked reports whether login is currently blocked.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// NotificationPreferences is a partial update; nil fields are left unchanged.
type NotificationPreferences struct {
	EmailNotifications *bool `json:"email_notifications"`
	GroupNotifications *bool `json:"group_notifications"`
	VoteNotifications  *bool `json:"vote_notifications"`
}

func (p NotificationPreferences) Empty() bool {
	return p.EmailNotifications == nil && p.GroupNotifications == nil && p.VoteNotifications == nil
}

// Apply copies the set fields onto u.
func (p NotificationPreferences) Apply(u *User) {
	if p.EmailNotifications != nil {
		u.EmailNotifications = *p.EmailNotifications
	}
	if p.GroupNotifications != nil {
		u.GroupNotifications = *p.GroupNotifications
	}
	if p.VoteNotifications != nil {
		u.VoteNotifications = *p.VoteNotifications
	}
}

// UserProfile is the public projection of a user.
type UserProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u *User) Profile() UserProfile {
	return UserProfile{ID: u.ID, Name: u.Name, Email: u.Email}
}
