package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Gopher0727/MovieNight/internal/apperr"
	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/repository"
	"github.com/Gopher0727/MovieNight/internal/utils"
)

const MaxGroupNameLength = 100

var (
	ErrNotMember       = apperr.Forbidden("not a member of this group")
	ErrAlreadyMember   = apperr.Conflict("user is already a member")
	ErrMemberNotFound  = apperr.NotFound("member not found")
	ErrGroupNotFound   = apperr.NotFound("group not found")
	ErrUserNotFound    = apperr.NotFound("user not found")
	ErrSelfRemoval     = apperr.Forbidden("you cannot remove yourself; leave the group instead")
	ErrOwnerRemoval    = apperr.Forbidden("the owner cannot be removed; transfer ownership first")
	ErrModeratorTarget = apperr.Forbidden("moderators can only remove members")
	ErrOwnerSelfChange = apperr.Forbidden("the owner cannot change their own role; transfer ownership instead")
	ErrOwnerRoleChange = apperr.Forbidden("the owner's role cannot be changed; transfer ownership first")
)

// ErrRequiresRole is the guard failure for an insufficient role.
func ErrRequiresRole(min model.Role) *apperr.Error {
	return apperr.Forbidden("requires %s or higher", min)
}

// requireRole checks an already resolved membership.
func requireRole(m *model.Membership, min model.Role) error {
	if m == nil {
		return ErrNotMember
	}
	if !m.AtLeast(min) {
		return ErrRequiresRole(min)
	}
	return nil
}

// IGroupService manages groups and their memberships. Every method taking a
// *model.Membership expects the caller's membership as resolved by a guard.
type IGroupService interface {
	CreateGroup(ctx context.Context, userID, name string) (*model.GroupView, error)
	ListGroups(ctx context.Context, userID string) ([]model.GroupView, error)
	GetGroup(ctx context.Context, actor *model.Membership) (*model.GroupView, error)
	ListMembers(ctx context.Context, actor *model.Membership) ([]model.MemberView, error)
	AddMember(ctx context.Context, actor *model.Membership, email string) (*model.MemberView, error)
	RemoveMember(ctx context.Context, actor *model.Membership, targetID string) error
	ChangeRole(ctx context.Context, actor *model.Membership, targetID string, role model.Role) (*model.RoleChange, error)
	DeleteGroup(ctx context.Context, actor *model.Membership) error
}

type GroupService struct {
	*Deps
}

func NewGroupService(d *Deps) *GroupService {
	return &GroupService{Deps: d}
}

// CreateGroup inserts the group and the creator's owner membership in one
// transaction.
func (s *GroupService) CreateGroup(ctx context.Context, userID, name string) (*model.GroupView, error) {
	name = strings.TrimSpace(name)
	if !utils.ValidateName(name, MaxGroupNameLength) {
		return nil, apperr.Validation("group name must be 1-%d characters", MaxGroupNameLength)
	}
	if _, err := s.Repos.Users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	now := s.now()
	group := &model.Group{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedBy: userID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.inTx(ctx, func(ctx context.Context) error {
		if err := s.Repos.Groups.Create(ctx, group); err != nil {
			return fmt.Errorf("failed to create group: %w", err)
		}
		owner := &model.GroupMember{GroupID: group.ID, UserID: userID, Role: model.RoleOwner, JoinedAt: now}
		if _, err := s.Repos.Members.InsertIgnore(ctx, owner); err != nil {
			return fmt.Errorf("failed to add owner membership: %w", err)
		}
		s.Activity.Record(ctx, Activity{
			GroupID:  group.ID,
			ActorID:  userID,
			Type:     model.ActivityGroupCreated,
			Metadata: map[string]any{"name": name},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &model.GroupView{
		ID:          group.ID,
		Name:        group.Name,
		CreatedBy:   userID,
		CreatedAt:   group.CreatedAt,
		Role:        model.RoleOwner,
		MemberCount: 1,
	}, nil
}

func (s *GroupService) ListGroups(ctx context.Context, userID string) ([]model.GroupView, error) {
	groups, err := s.Members.ListUserGroups(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}

func (s *GroupService) GetGroup(ctx context.Context, actor *model.Membership) (*model.GroupView, error) {
	if actor == nil {
		return nil, ErrNotMember
	}
	group, err := s.Repos.Groups.FindByID(ctx, actor.GroupID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to find group: %w", err)
	}
	ids, err := s.Repos.Members.ListMemberIDs(ctx, actor.GroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}
	view := actor.View(group.CreatedAt)
	view.MemberCount = len(ids)
	return &view, nil
}

func (s *GroupService) ListMembers(ctx context.Context, actor *model.Membership) ([]model.MemberView, error) {
	if actor == nil {
		return nil, ErrNotMember
	}
	members, err := s.Members.ListMembers(ctx, actor.GroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// AddMember adds the user registered under email as a plain member. Two
// concurrent adds of the same user insert one row; the loser sees
// ErrAlreadyMember.
func (s *GroupService) AddMember(ctx context.Context, actor *model.Membership, email string) (*model.MemberView, error) {
	if err := requireRole(actor, model.RoleModerator); err != nil {
		return nil, err
	}
	email = utils.NormalizeEmail(email)
	if !utils.ValidateEmail(email) {
		return nil, apperr.Validation("a valid email is required")
	}
	user, err := s.Repos.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	now := s.now()
	err = s.inTx(ctx, func(ctx context.Context) error {
		inserted, err := s.Repos.Members.InsertIgnore(ctx, &model.GroupMember{
			GroupID:  actor.GroupID,
			UserID:   user.ID,
			Role:     model.RoleMember,
			JoinedAt: now,
		})
		if err != nil {
			return fmt.Errorf("failed to add member: %w", err)
		}
		if !inserted {
			return ErrAlreadyMember
		}

		s.Activity.Record(ctx, Activity{
			GroupID:      actor.GroupID,
			ActorID:      actor.UserID,
			Type:         model.ActivityMemberAdded,
			TargetUserID: user.ID,
			Metadata:     map[string]any{"role": model.RoleMember},
		})
		s.Notifier.NotifyIfPreferred(ctx, model.PreferenceGroup, NotificationInput{
			UserID:      user.ID,
			Type:        model.NotificationGroupInvite,
			Title:       "Added to a group",
			Message:     fmt.Sprintf("You were added to %q.", actor.GroupName),
			ReferenceID: actor.GroupID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Members.Forget(ctx, actor.GroupID, user.ID)

	return &model.MemberView{
		UserID:   user.ID,
		Name:     user.Name,
		Email:    user.Email,
		Role:     model.RoleMember,
		JoinedAt: now,
	}, nil
}

// RemoveMember deletes targetID's membership. Both memberships are re-read
// under row locks so the role checks and the delete see the same state.
func (s *GroupService) RemoveMember(ctx context.Context, actor *model.Membership, targetID string) error {
	if err := requireRole(actor, model.RoleModerator); err != nil {
		return err
	}
	if targetID == actor.UserID {
		return ErrSelfRemoval
	}

	err := s.inTx(ctx, func(ctx context.Context) error {
		requester, err := s.Members.Lock(ctx, actor.GroupID, actor.UserID)
		if err != nil {
			return fmt.Errorf("failed to lock membership: %w", err)
		}
		if err := requireRole(requester, model.RoleModerator); err != nil {
			return err
		}
		target, err := s.Members.Lock(ctx, actor.GroupID, targetID)
		if err != nil {
			return fmt.Errorf("failed to lock membership: %w", err)
		}
		if target == nil {
			return ErrMemberNotFound
		}
		if target.IsOwner() {
			return ErrOwnerRemoval
		}
		if requester.Role == model.RoleModerator && target.Role != model.RoleMember {
			return ErrModeratorTarget
		}

		deleted, err := s.Repos.Members.Delete(ctx, actor.GroupID, targetID)
		if err != nil {
			return fmt.Errorf("failed to remove member: %w", err)
		}
		if !deleted {
			return ErrMemberNotFound
		}
		s.Activity.Record(ctx, Activity{
			GroupID:      actor.GroupID,
			ActorID:      requester.UserID,
			Type:         model.ActivityMemberRemoved,
			TargetUserID: targetID,
			Metadata: map[string]any{
				"actor_role":  requester.Role,
				"target_role": target.Role,
			},
		})
		return nil
	})
	if err != nil {
		return err
	}
	s.Members.Forget(ctx, actor.GroupID, targetID)
	return nil
}

// ChangeRole sets targetID's role. Promoting to owner transfers ownership:
// the current owner becomes moderator in the same transaction, so a group
// never has zero or two owners.
func (s *GroupService) ChangeRole(ctx context.Context, actor *model.Membership, targetID string, role model.Role) (*model.RoleChange, error) {
	if !s.Members.RoleColumn() {
		return nil, apperr.SchemaUnavailable("role management")
	}
	if actor == nil {
		return nil, ErrNotMember
	}
	if !role.Valid() {
		return nil, apperr.Validation("invalid role %q: must be one of member, moderator, owner", role)
	}
	if !actor.IsOwner() {
		return nil, apperr.Forbidden("requires owner")
	}

	change := &model.RoleChange{GroupID: actor.GroupID, UserID: targetID, Role: role}
	err := s.inTx(ctx, func(ctx context.Context) error {
		requester, err := s.Members.Lock(ctx, actor.GroupID, actor.UserID)
		if err != nil {
			return fmt.Errorf("failed to lock membership: %w", err)
		}
		if requester == nil {
			return ErrNotMember
		}
		if !requester.IsOwner() {
			return apperr.Forbidden("requires owner")
		}
		if targetID == requester.UserID {
			if role != model.RoleOwner {
				return ErrOwnerSelfChange
			}
			change.PreviousRole = model.RoleOwner
			change.Message = model.MessageOwnershipHeld
			return nil
		}

		target, err := s.Members.Lock(ctx, actor.GroupID, targetID)
		if err != nil {
			return fmt.Errorf("failed to lock membership: %w", err)
		}
		if target == nil {
			return ErrMemberNotFound
		}
		change.PreviousRole = target.Role

		if role == model.RoleOwner {
			if target.IsOwner() {
				change.Message = model.MessageOwnershipHeld
				return nil
			}
			if err := s.Repos.Members.UpdateRole(ctx, actor.GroupID, requester.UserID, model.RoleModerator); err != nil {
				return fmt.Errorf("failed to demote owner: %w", err)
			}
			if err := s.Repos.Members.UpdateRole(ctx, actor.GroupID, targetID, model.RoleOwner); err != nil {
				return fmt.Errorf("failed to promote owner: %w", err)
			}
			change.Changed = true
			change.OwnershipTransferred = true
		} else {
			if target.IsOwner() {
				return ErrOwnerRoleChange
			}
			if target.Role == role {
				change.Message = model.MessageRoleUnchanged
				return nil
			}
			if err := s.Repos.Members.UpdateRole(ctx, actor.GroupID, targetID, role); err != nil {
				return fmt.Errorf("failed to update role: %w", err)
			}
			change.Changed = true
		}

		s.Activity.Record(ctx, Activity{
			GroupID:      actor.GroupID,
			ActorID:      requester.UserID,
			Type:         model.ActivityRoleChanged,
			TargetUserID: targetID,
			Metadata: map[string]any{
				"previous_role":         change.PreviousRole,
				"new_role":              role,
				"ownership_transferred": change.OwnershipTransferred,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if change.Changed {
		s.Members.Forget(ctx, actor.GroupID, actor.UserID)
		s.Members.Forget(ctx, actor.GroupID, targetID)
	}
	return change, nil
}

// DeleteGroup soft-deletes the group; its memberships stop resolving.
func (s *GroupService) DeleteGroup(ctx context.Context, actor *model.Membership) error {
	if actor == nil {
		return ErrNotMember
	}
	if !actor.IsOwner() {
		return apperr.Forbidden("requires owner")
	}
	return s.inTx(ctx, func(ctx context.Context) error {
		requester, err := s.Members.Lock(ctx, actor.GroupID, actor.UserID)
		if err != nil {
			return fmt.Errorf("failed to lock membership: %w", err)
		}
		if requester == nil {
			return ErrGroupNotFound
		}
		if !requester.IsOwner() {
			return apperr.Forbidden("requires owner")
		}
		deleted, err := s.Repos.Groups.SoftDelete(ctx, actor.GroupID)
		if err != nil {
			return fmt.Errorf("failed to delete group: %w", err)
		}
		if !deleted {
			return ErrGroupNotFound
		}
		return nil
	})
}
