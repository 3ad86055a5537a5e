package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Gopher0727/MovieNight/internal/apperr"
	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/repository"
)

func TestCreateGroup(t *testing.T) {
	e := newTestEnv(t, repository.FullCapabilities())
	ctx := context.Background()
	owner := e.addUser(t, "Alice")

	g, err := e.svc.Groups.CreateGroup(ctx, owner.ID, "  Friday Crew ")
	require.NoError(t, err)
	assert.Equal(t, "Friday Crew", g.Name)
	assert.Equal(t, model.RoleOwner, g.Role)
	assert.Equal(t, 1, g.MemberCount)

	m := e.membership(t, g.ID, owner.ID)
	assert.Equal(t, model.RoleOwner, m.Role)
	assert.Len(t, e.activity(t, g.ID, model.ActivityGroupCreated), 1)

	t.Run("rejects blank name", func(t *testing.T) {
		_, err := e.svc.Groups.CreateGroup(ctx, owner.ID, "   ")
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := e.svc.Groups.CreateGroup(ctx, "ghost", "Ghosts")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestAddMember(t *testing.T) {
	e := newTestEnv(t, repository.FullCapabilities())
	ctx := context.Background()
	owner, bob, carol := e.addUser(t, "Alice"), e.addUser(t, "Bob"), e.addUser(t, "Carol")
	groupID := e.newGroup(t, owner, bob)

	t.Run("records activity and notifies", func(t *testing.T) {
		events := e.activity(t, groupID, model.ActivityMemberAdded)
		require.Len(t, events, 1)
		require.NotNil(t, events[0].TargetUserID)
		assert.Equal(t, bob.ID, *events[0].TargetUserID)

		inbox := e.notifications(t, bob.ID)
		require.Len(t, inbox, 1)
		assert.Equal(t, model.NotificationGroupInvite, inbox[0].Type)
	})

	t.Run("duplicate add is a conflict", func(t *testing.T) {
		_, err := e.svc.Groups.AddMember(ctx, e.membership(t, groupID, owner.ID), "BOB@example.com")
		assert.ErrorIs(t, err, ErrAlreadyMember)
	})

	t.Run("plain members cannot add", func(t *testing.T) {
		_, err := e.svc.Groups.AddMember(ctx, e.membership(t, groupID, bob.ID), carol.Email)
		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
		assert.EqualError(t, err, "requires moderator or higher")
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := e.svc.Groups.AddMember(ctx, e.membership(t, groupID, owner.ID), "nobody@example.com")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("non member guard", func(t *testing.T) {
		_, err := e.svc.Groups.AddMember(ctx, nil, carol.Email)
		assert.ErrorIs(t, err, ErrNotMember)
	})
}

func TestAddMemberConcurrent(t *testing.T) {
	e := newTestEnv(t, repository.FullCapabilities())
	ctx := context.Background()
	owner, bob := e.addUser(t, "Alice"), e.addUser(t, "Bob")
	groupID := e.newGroup(t, owner)
	actor := e.membership(t, groupID, owner.ID)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for range workers {
		wg.Go(func() {
			_, err := e.svc.Groups.AddMember(ctx, actor, bob.Email)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apperr.KindOf(err) == apperr.KindConflict:
				conflicts++
			}
		})
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, conflicts)
	assert.Len(t, e.activity(t, groupID, model.ActivityMemberAdded), 1)
}

func TestOwnershipTransfer(t *testing.T) {
	e := newTestEnv(t, repository.FullCapabilities())
	ctx := context.Background()
	a, b := e.addUser(t, "Alice"), e.addUser(t, "Bob")
	groupID := e.newGroup(t, a, b)

	change, err := e.svc.Groups.ChangeRole(ctx, e.membership(t, groupID, a.ID), b.ID, model.RoleModerator)
	require.NoError(t, err)
	assert.True(t, change.Changed)
	assert.False(t, change.OwnershipTransferred)
	assert.Equal(t, model.RoleMember, change.PreviousRole)

	change, err = e.svc.Groups.ChangeRole(ctx, e.membership(t, groupID, a.ID), b.ID, model.RoleOwner)
	require.NoError(t, err)
	assert.True(t, change.OwnershipTransferred)

	assert.Equal(t, model.RoleModerator, e.membership(t, groupID, a.ID).Role)
	assert.Equal(t, model.RoleOwner, e.membership(t, groupID, b.ID).Role)

	events := e.activity(t, groupID, model.ActivityRoleChanged)
	require.Len(t, events, 2)
	// newest first
	latest := model.ParseActivityMetadata(events[0].Metadata)
	assert.Equal(t, true, latest["ownership_transferred"])
	assert.Equal(t, "owner", latest["new_role"])
	first := model.ParseActivityMetadata(events[1].Metadata)
	assert.Equal(t, false, first["ownership_transferred"])

	t.Run("former owner lost owner rights", func(t *testing.T) {
		_, err := e.svc.Groups.ChangeRole(ctx, e.membership(t, groupID, a.ID), b.ID, model.RoleMember)
		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	})
}

func TestChangeRoleRules(t *testing.T) {
	e := newTestEnv(t, repository.FullCapabilities())
	ctx := context.Background()
	owner, mod, member := e.addUser(t, "Alice"), e.addUser(t, "Bob"), e.addUser(t, "Carol")
	groupID := e.newGroup(t, owner, mod, member)
	_, err := e.svc.Groups.ChangeRole(ctx, e.membership(t, groupID, owner.ID), mod.ID, model.RoleModerator)
	require.NoError(t, err)

	t.Run("owner demoting self", func(t *testing.T) {
		_, err := e.svc.Groups.ChangeRole(ctx, e.membership(t, groupID, owner.ID), owner.ID, model.RoleMember)
		assert.ErrorIs(t, err, ErrOwnerSelfChange)
	})

	t.Run("owner to owner on self is a no-op", func(t *testing.T) {
		change, err := e.svc.Groups.ChangeRole(ctx, e.membership(t, groupID, owner.ID), owner.ID, model.RoleOwner)
		require.NoError(t, err)
		assert.False(t, change.Changed)
		assert.Equal(t, model.MessageOwnershipHeld, change.Message)
	})

	t.Run("same role is a no-op without activity", func(t *testing.T) {
		before := len(e.activity(t, groupID, model.ActivityRoleChanged))
		change, err := e.svc.Groups.ChangeRole(ctx, e.membership(t, groupID, owner.ID), mod.ID, model.RoleModerator)
		require.NoError(t, err)
		assert.False(t, change.Changed)
		assert.Equal(t, model.MessageRoleUnchanged, change.Message)
		assert.Len(t, e.activity(t, groupID, model.ActivityRoleChanged), before)
	})

	t.Run("moderators cannot change roles", func(t *testing.T) {
		_, err := e.svc.Groups.ChangeRole(ctx, e.membership(t, groupID, mod.ID), member.ID, model.RoleModerator)
		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	})

	t.Run("invalid role", func(t *testing.T) {
		_, err := e.svc.Groups.ChangeRole(ctx, e.membership(t, groupID, owner.ID), member.ID, model.Role("admin"))
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("unknown target", func(t *testing.T) {
		_, err := e.svc.Groups.ChangeRole(ctx, e.membership(t, groupID, owner.ID), "ghost", model.RoleModerator)
		assert.ErrorIs(t, err, ErrMemberNotFound)
	})
}

func TestRemoveMemberRules(t *testing.T) {
	e := newTestEnv(t, repository.FullCapabilities())
	ctx := context.Background()
	owner, mod, mod2, member := e.addUser(t, "Alice"), e.addUser(t, "Bob"), e.addUser(t, "Dan"), e.addUser(t, "Carol")
	groupID := e.newGroup(t, owner, mod, mod2, member)
	for _, u := range []string{mod.ID, mod2.ID} {
		_, err := e.svc.Groups.ChangeRole(ctx, e.membership(t, groupID, owner.ID), u, model.RoleModerator)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		actor  string
		target string
		want   error
	}{
		{"self removal", mod.ID, mod.ID, ErrSelfRemoval},
		{"owner cannot be removed", mod.ID, owner.ID, ErrOwnerRemoval},
		{"moderator cannot remove moderator", mod.ID, mod2.ID, ErrModeratorTarget},
		{"member cannot remove", member.ID, mod.ID, ErrRequiresRole(model.RoleModerator)},
		{"missing target", mod.ID, "ghost", ErrMemberNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.svc.Groups.RemoveMember(ctx, e.membership(t, groupID, tt.actor), tt.target)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("moderator removes member", func(t *testing.T) {
		require.NoError(t, e.svc.Groups.RemoveMember(ctx, e.membership(t, groupID, mod.ID), member.ID))
		m, err := e.deps.Members.Resolve(ctx, groupID, member.ID)
		require.NoError(t, err)
		assert.Nil(t, m)
		assert.Len(t, e.activity(t, groupID, model.ActivityMemberRemoved), 1)
	})

	t.Run("owner removes moderator", func(t *testing.T) {
		require.NoError(t, e.svc.Groups.RemoveMember(ctx, e.membership(t, groupID, owner.ID), mod2.ID))
	})
}

func TestDeleteGroup(t *testing.T) {
	e := newTestEnv(t, repository.FullCapabilities())
	ctx := context.Background()
	owner, bob := e.addUser(t, "Alice"), e.addUser(t, "Bob")
	groupID := e.newGroup(t, owner, bob)

	err := e.svc.Groups.DeleteGroup(ctx, e.membership(t, groupID, bob.ID))
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	require.NoError(t, e.svc.Groups.DeleteGroup(ctx, e.membership(t, groupID, owner.ID)))
	m, err := e.deps.Members.Resolve(ctx, groupID, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, m)

	groups, err := e.svc.Groups.ListGroups(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestDeletedAccountLosesMemberships(t *testing.T) {
	e := newTestEnv(t, repository.FullCapabilities())
	ctx := context.Background()
	alice, bob, carol := e.addUser(t, "Alice"), e.addUser(t, "Bob"), e.addUser(t, "Carol")
	groupID := e.newGroup(t, alice, bob)

	stale := e.membership(t, groupID, alice.ID)
	require.NoError(t, e.svc.Auth.DeleteAccount(ctx, alice.ID))

	m, err := e.deps.Members.Resolve(ctx, groupID, alice.ID)
	require.NoError(t, err)
	assert.Nil(t, m, "a deleted account is no longer a member")

	groups, err := e.svc.Groups.ListGroups(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, groups)

	t.Run("guards reject the resolved membership", func(t *testing.T) {
		_, err := e.svc.Groups.AddMember(ctx, m, carol.Email)
		assert.ErrorIs(t, err, ErrNotMember)
	})

	t.Run("locked re-reads reject a stale membership", func(t *testing.T) {
		err := e.svc.Groups.DeleteGroup(ctx, stale)
		assert.Error(t, err)
		_, err = e.svc.Groups.ChangeRole(ctx, stale, bob.ID, model.RoleOwner)
		assert.ErrorIs(t, err, ErrNotMember)
		err = e.svc.Groups.RemoveMember(ctx, stale, bob.ID)
		assert.Error(t, err)

		still, err := e.deps.Members.Resolve(ctx, groupID, bob.ID)
		require.NoError(t, err)
		require.NotNil(t, still, "the group survives")
		assert.Equal(t, model.RoleMember, still.Role)
	})
}

func TestLegacySchemaRoles(t *testing.T) {
	e := newTestEnv(t, repository.Capabilities{})
	ctx := context.Background()
	owner, bob := e.addUser(t, "Alice"), e.addUser(t, "Bob")
	groupID := e.newGroup(t, owner, bob)

	assert.Equal(t, model.RoleOwner, e.membership(t, groupID, owner.ID).Role)
	assert.Equal(t, model.RoleMember, e.membership(t, groupID, bob.ID).Role)

	members, err := e.svc.Groups.ListMembers(ctx, e.membership(t, groupID, owner.ID))
	require.NoError(t, err)
	require.Len(t, members, 2)
	roles := map[string]model.Role{}
	for _, m := range members {
		roles[m.UserID] = m.Role
	}
	assert.Equal(t, map[string]model.Role{owner.ID: model.RoleOwner, bob.ID: model.RoleMember}, roles)

	_, err = e.svc.Groups.ChangeRole(ctx, e.membership(t, groupID, owner.ID), bob.ID, model.RoleModerator)
	assert.Equal(t, apperr.KindSchemaUnavailable, apperr.KindOf(err))
	assert.ErrorContains(t, err, "requires the latest database migration")

	_, err = e.svc.Activity.Timeline(ctx, model.ActivityFilter{GroupID: groupID, Page: model.NewPageRequest(1, 20)})
	assert.Equal(t, apperr.KindSchemaUnavailable, apperr.KindOf(err))
}

// Any sequence of membership mutations leaves exactly one owner.
func TestGroupKeepsExactlyOneOwner(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		e := newTestEnv(rt, repository.FullCapabilities())
		ctx := context.Background()

		users := make([]*model.User, 5)
		for i := range users {
			users[i] = e.addUser(rt, fmt.Sprintf("user%d", i))
		}
		groupID := e.newGroup(rt, users[0])

		steps := rapid.IntRange(1, 30).Draw(rt, "steps")
		for range steps {
			actor := users[rapid.IntRange(0, len(users)-1).Draw(rt, "actor")]
			target := users[rapid.IntRange(0, len(users)-1).Draw(rt, "target")]
			m, err := e.deps.Members.Resolve(ctx, groupID, actor.ID)
			require.NoError(rt, err)

			switch rapid.IntRange(0, 2).Draw(rt, "op") {
			case 0:
				_, _ = e.svc.Groups.AddMember(ctx, m, target.Email)
			case 1:
				_ = e.svc.Groups.RemoveMember(ctx, m, target.ID)
			case 2:
				role := rapid.SampledFrom(model.Roles).Draw(rt, "role")
				_, _ = e.svc.Groups.ChangeRole(ctx, m, target.ID, role)
			}

			members, err := e.svc.Groups.ListMembers(ctx, e.membership(rt, groupID, ownerOf(rt, e, groupID)))
			require.NoError(rt, err)
			owners := 0
			for _, mv := range members {
				if mv.Role == model.RoleOwner {
					owners++
				}
			}
			if owners != 1 {
				rt.Fatalf("group has %d owners", owners)
			}
		}
	})
}

func ownerOf(t tb, e *testEnv, groupID string) string {
	t.Helper()
	ids, err := e.repos().Members.ListMemberIDs(context.Background(), groupID)
	require.NoError(t, err)
	for _, id := range ids {
		m, err := e.deps.Members.Resolve(context.Background(), groupID, id)
		require.NoError(t, err)
		if m != nil && m.IsOwner() {
			return id
		}
	}
	t.Errorf("group %s has no owner", groupID)
	t.FailNow()
	return ""
}
