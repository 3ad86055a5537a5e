// Package repository defines the persistence contracts used by the service
// layer and their gorm/PostgreSQL implementations.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Gopher0727/MovieNight/internal/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// TxManager runs fn inside a transaction. Repository calls made with the ctx
// handed to fn join that transaction; a nested RunInTx joins the outer one.
// fn's error rolls everything back.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]*model.User, error)
	UpdateLoginState(ctx context.Context, id string, failedAttempts int, lockedUntil *time.Time) error
	// RecordFailedLogin increments the failure counter in a single statement.
	// The failure that reaches maxAttempts resets the counter and sets
	// locked_until to lockUntil.
	RecordFailedLogin(ctx context.Context, id string, maxAttempts int, lockUntil time.Time) (*model.LoginState, error)
	UpdatePreferences(ctx context.Context, id string, prefs model.NotificationPreferences) error
	SoftDelete(ctx context.Context, id string) error
}

type GroupRepository interface {
	Create(ctx context.Context, group *model.Group) error
	FindByID(ctx context.Context, id string) (*model.Group, error)
	// SoftDelete reports false when the group is missing or already deleted.
	SoftDelete(ctx context.Context, id string) (bool, error)
}

// MemberRepository reads and writes memberships of active (not deleted)
// groups; membership lookups also skip deleted accounts. withRole selects the
// role column; passing true against a schema without it fails with an
// undefined_column error.
type MemberRepository interface {
	FindMembership(ctx context.Context, groupID, userID string, withRole bool) (*model.MembershipRecord, error)
	// LockMembership is FindMembership plus a row lock held until the
	// surrounding transaction ends. A failed lookup leaves that transaction
	// usable.
	LockMembership(ctx context.Context, groupID, userID string, withRole bool) (*model.MembershipRecord, error)
	// InsertIgnore reports false when the membership already existed.
	InsertIgnore(ctx context.Context, member *model.GroupMember) (bool, error)
	Delete(ctx context.Context, groupID, userID string) (bool, error)
	UpdateRole(ctx context.Context, groupID, userID string, role model.Role) error
	ListMembers(ctx context.Context, groupID string, withRole bool) ([]*model.MemberRecord, error)
	ListUserGroups(ctx context.Context, userID string, withRole bool) ([]*model.MembershipRecord, error)
	// ListMemberIDs returns the ids of active (not deleted) member accounts.
	ListMemberIDs(ctx context.Context, groupID string) ([]string, error)
}

type MovieNightRepository interface {
	Create(ctx context.Context, night *model.MovieNight) error
	FindByID(ctx context.Context, groupID, nightID string) (*model.MovieNight, error)
	LockByID(ctx context.Context, groupID, nightID string) (*model.MovieNight, error)
	Update(ctx context.Context, night *model.MovieNight) error
	ListByGroup(ctx context.Context, groupID string) ([]*model.MovieNight, error)
	// ListReminderCandidates returns planned nights with a reminder configured
	// and not yet sent, earliest deadline first.
	ListReminderCandidates(ctx context.Context, limit int) ([]*model.MovieNight, error)
	MarkReminderSent(ctx context.Context, nightID string, at time.Time) error
}

type AvailabilityRepository interface {
	Upsert(ctx context.Context, availability *model.Availability) error
	ListByNight(ctx context.Context, nightID string) ([]*model.Availability, error)
	// PendingMemberIDs returns active members with no availability row for the night.
	PendingMemberIDs(ctx context.Context, groupID, nightID string) ([]string, error)
}

type WatchlistRepository interface {
	InsertIgnore(ctx context.Context, entry *model.WatchlistEntry) (bool, error)
	Find(ctx context.Context, groupID string, movieID int64) (*model.WatchlistEntry, error)
	Delete(ctx context.Context, groupID string, movieID int64) (bool, error)
	ListByGroup(ctx context.Context, groupID string) ([]*model.WatchlistEntry, error)
}

type VoteRepository interface {
	Upsert(ctx context.Context, vote *model.Vote) error
	ListByMovie(ctx context.Context, groupID string, movieID int64) ([]*model.Vote, error)
	VoterIDs(ctx context.Context, groupID string, movieID int64) ([]string, error)
}

type ActivityRepository interface {
	// Append must not poison an enclosing transaction when it fails.
	Append(ctx context.Context, event *model.ActivityEvent) error
	List(ctx context.Context, filter model.ActivityFilter) ([]*model.ActivityEvent, int64, error)
}

type NotificationRepository interface {
	// InsertBatch writes all rows with a single multi-row insert.
	InsertBatch(ctx context.Context, items []*model.Notification) (int64, error)
	ListByUser(ctx context.Context, userID string, page model.PageRequest) ([]*model.Notification, int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID, id string) (bool, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	// RecentRecipients returns the subset of userIDs that already received a
	// notification of type typ for referenceID at or after since.
	RecentRecipients(ctx context.Context, userIDs []string, typ model.NotificationType, referenceID string, since time.Time) ([]string, error)
}

type FriendRepository interface {
	CreateRequest(ctx context.Context, request *model.FriendRequest) error
	FindRequest(ctx context.Context, id string) (*model.FriendRequest, error)
	// FindPendingBetween looks in both directions.
	FindPendingBetween(ctx context.Context, a, b string) (*model.FriendRequest, error)
	// TransitionRequest moves a pending request addressed to receiverID to
	// status. It reports false when the request was no longer pending.
	TransitionRequest(ctx context.Context, id, receiverID string, status model.FriendRequestStatus, at time.Time) (bool, error)
	ListPending(ctx context.Context, receiverID string) ([]*model.FriendRequest, error)
	InsertFriendshipIgnore(ctx context.Context, userID, friendID string) (bool, error)
	AreFriends(ctx context.Context, a, b string) (bool, error)
	ListFriends(ctx context.Context, userID string) ([]*model.User, error)
	DeleteFriendship(ctx context.Context, a, b string) (int64, error)
}

// Repositories bundles every repository with the transaction manager and the
// schema capabilities they were built for.
type Repositories struct {
	Tx            TxManager
	Schema        Capabilities
	Users         UserRepository
	Groups        GroupRepository
	Members       MemberRepository
	Nights        MovieNightRepository
	Availability  AvailabilityRepository
	Watchlist     WatchlistRepository
	Votes         VoteRepository
	Activity      ActivityRepository
	Notifications NotificationRepository
	Friends       FriendRepository
}
