package model

import (
	"time"

	"gorm.io/gorm"
)

type Group struct {
	ID        string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name      string         `gorm:"not null;type:varchar(100)" json:"name"`
	CreatedBy string         `gorm:"index;not null;type:varchar(64)" json:"created_by"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Group) TableName() string {
	return "movie_groups"
}

// GroupMember is one (group, user) membership row. Role is empty when read
// from a schema that has no role column.
type GroupMember struct {
	GroupID  string    `gorm:"primaryKey;type:varchar(64)" json:"group_id"`
	UserID   string    `gorm:"primaryKey;type:varchar(64);index" json:"user_id"`
	Role     Role      `gorm:"type:varchar(16);not null;default:member" json:"role"`
	JoinedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"joined_at"`
}

func (GroupMember) TableName() string {
	return "group_members"
}

// MembershipRecord is a membership row joined with its (active) group, before
// role normalization.
type MembershipRecord struct {
	GroupID        string
	UserID         string
	RawRole        string
	GroupName      string
	CreatedBy      string
	GroupCreatedAt time.Time
	JoinedAt       time.Time
}

// Membership is a resolved membership with its effective role.
type Membership struct {
	GroupID   string    `json:"group_id"`
	UserID    string    `json:"user_id"`
	GroupName string    `json:"group_name"`
	CreatedBy string    `json:"created_by"`
	Role      Role      `json:"role"`
	JoinedAt  time.Time `json:"joined_at"`
}

// Resolve applies role normalization to a raw record.
func (r *MembershipRecord) Resolve() *Membership {
	return &Membership{
		GroupID:   r.GroupID,
		UserID:    r.UserID,
		GroupName: r.GroupName,
		CreatedBy: r.CreatedBy,
		Role:      NormalizeRole(r.RawRole, r.UserID == r.CreatedBy),
		JoinedAt:  r.JoinedAt,
	}
}

func (m *Membership) AtLeast(required Role) bool {
	return HasMinimumRole(m.Role, required)
}

func (m *Membership) IsOwner() bool {
	return m.Role == RoleOwner
}

// MemberRecord is a member listing row before role normalization.
type MemberRecord struct {
	UserID    string
	Name      string
	Email     string
	RawRole   string
	JoinedAt  time.Time
	CreatedBy string
}

type MemberView struct {
	UserID   string    `json:"user_id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

func (r *MemberRecord) View() MemberView {
	return MemberView{
		UserID:   r.UserID,
		Name:     r.Name,
		Email:    r.Email,
		Role:     NormalizeRole(r.RawRole, r.UserID == r.CreatedBy),
		JoinedAt: r.JoinedAt,
	}
}

// View is the group as seen by this member.
func (m *Membership) View(createdAt time.Time) GroupView {
	return GroupView{
		ID:        m.GroupID,
		Name:      m.GroupName,
		CreatedBy: m.CreatedBy,
		CreatedAt: createdAt,
		Role:      m.Role,
	}
}

// GroupView is a group as seen by one of its members.
type GroupView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	Role        Role      `json:"role"`
	MemberCount int       `json:"member_count,omitempty"`
}

// RoleChange describes the outcome of a role update.
type RoleChange struct {
	GroupID              string `json:"group_id"`
	UserID               string `json:"user_id"`
	PreviousRole         Role   `json:"previous_role"`
	Role                 Role   `json:"role"`
	OwnershipTransferred bool   `json:"ownership_transferred"`
	Changed              bool   `json:"changed"`
	// Message explains a no-op.
	Message string `json:"message,omitempty"`
}

const (
	MessageOwnershipHeld = "ownership already held"
	MessageRoleUnchanged = "role unchanged"
)
