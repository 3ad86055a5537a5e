package memory

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/repository"
)

type groupRepo struct{ s *Store }

func (r *groupRepo) Create(ctx context.Context, group *model.Group) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.groups[group.ID]; ok {
			return repository.ErrDuplicate
		}
		st.groups[group.ID] = cp(group)
		return nil
	})
}

func (r *groupRepo) FindByID(ctx context.Context, id string) (*model.Group, error) {
	var out *model.Group
	err := r.s.read(ctx, func(st *state) error {
		g := st.activeGroup(id)
		if g == nil {
			return repository.ErrNotFound
		}
		out = cp(g)
		return nil
	})
	return out, err
}

func (r *groupRepo) SoftDelete(ctx context.Context, id string) (bool, error) {
	deleted := false
	err := r.s.write(ctx, func(st *state) error {
		if g := st.activeGroup(id); g != nil {
			g.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
			deleted = true
		}
		return nil
	})
	return deleted, err
}

type memberRepo struct{ s *Store }

func (r *memberRepo) checkRole(withRole bool) error {
	if withRole && !r.s.caps.MemberRoles {
		return repository.UndefinedColumnError("role")
	}
	return nil
}

func record(st *state, m *model.GroupMember, withRole bool) *model.MembershipRecord {
	g := st.activeGroup(m.GroupID)
	if g == nil || st.activeUser(m.UserID) == nil {
		return nil
	}
	rec := &model.MembershipRecord{
		GroupID:        m.GroupID,
		UserID:         m.UserID,
		GroupName:      g.Name,
		CreatedBy:      g.CreatedBy,
		GroupCreatedAt: g.CreatedAt,
		JoinedAt:       m.JoinedAt,
	}
	if withRole {
		rec.RawRole = string(m.Role)
	}
	return rec
}

func (r *memberRepo) FindMembership(ctx context.Context, groupID, userID string, withRole bool) (*model.MembershipRecord, error) {
	if err := r.checkRole(withRole); err != nil {
		return nil, err
	}
	var out *model.MembershipRecord
	err := r.s.read(ctx, func(st *state) error {
		m, ok := st.members[memberKey{groupID, userID}]
		if !ok {
			return repository.ErrNotFound
		}
		if out = record(st, m, withRole); out == nil {
			return repository.ErrNotFound
		}
		return nil
	})
	return out, err
}

// LockMembership needs no extra locking: transactions are already serialized.
func (r *memberRepo) LockMembership(ctx context.Context, groupID, userID string, withRole bool) (*model.MembershipRecord, error) {
	return r.FindMembership(ctx, groupID, userID, withRole)
}

func (r *memberRepo) InsertIgnore(ctx context.Context, member *model.GroupMember) (bool, error) {
	inserted := false
	err := r.s.write(ctx, func(st *state) error {
		key := memberKey{member.GroupID, member.UserID}
		if _, ok := st.members[key]; ok {
			return nil
		}
		row := cp(member)
		if !r.s.caps.MemberRoles {
			row.Role = ""
		} else if row.Role == "" {
			row.Role = model.RoleMember
		}
		if row.JoinedAt.IsZero() {
			row.JoinedAt = time.Now()
		}
		st.members[key] = row
		inserted = true
		return nil
	})
	return inserted, err
}

func (r *memberRepo) Delete(ctx context.Context, groupID, userID string) (bool, error) {
	deleted := false
	err := r.s.write(ctx, func(st *state) error {
		key := memberKey{groupID, userID}
		if _, ok := st.members[key]; ok {
			delete(st.members, key)
			deleted = true
		}
		return nil
	})
	return deleted, err
}

func (r *memberRepo) UpdateRole(ctx context.Context, groupID, userID string, role model.Role) error {
	if err := r.checkRole(true); err != nil {
		return err
	}
	return r.s.write(ctx, func(st *state) error {
		m, ok := st.members[memberKey{groupID, userID}]
		if !ok {
			return repository.ErrNotFound
		}
		m.Role = role
		return nil
	})
}

func (r *memberRepo) ListMembers(ctx context.Context, groupID string, withRole bool) ([]*model.MemberRecord, error) {
	if err := r.checkRole(withRole); err != nil {
		return nil, err
	}
	var out []*model.MemberRecord
	err := r.s.read(ctx, func(st *state) error {
		g := st.activeGroup(groupID)
		if g == nil {
			return nil
		}
		for _, m := range st.groupMembers(groupID) {
			u := st.activeUser(m.UserID)
			if u == nil {
				continue
			}
			rec := &model.MemberRecord{
				UserID:    u.ID,
				Name:      u.Name,
				Email:     u.Email,
				JoinedAt:  m.JoinedAt,
				CreatedBy: g.CreatedBy,
			}
			if withRole {
				rec.RawRole = string(m.Role)
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

func (r *memberRepo) ListUserGroups(ctx context.Context, userID string, withRole bool) ([]*model.MembershipRecord, error) {
	if err := r.checkRole(withRole); err != nil {
		return nil, err
	}
	var out []*model.MembershipRecord
	err := r.s.read(ctx, func(st *state) error {
		for k, m := range st.members {
			if k.userID != userID {
				continue
			}
			if rec := record(st, m, withRole); rec != nil {
				out = append(out, rec)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].GroupCreatedAt.Equal(out[j].GroupCreatedAt) {
			return out[i].GroupCreatedAt.After(out[j].GroupCreatedAt)
		}
		return out[i].GroupID < out[j].GroupID
	})
	return out, err
}

func (r *memberRepo) ListMemberIDs(ctx context.Context, groupID string) ([]string, error) {
	var ids []string
	err := r.s.read(ctx, func(st *state) error {
		for _, m := range st.groupMembers(groupID) {
			if st.activeUser(m.UserID) != nil {
				ids = append(ids, m.UserID)
			}
		}
		return nil
	})
	return ids, err
}
