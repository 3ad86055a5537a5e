package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gopher0727/MovieNight/internal/model"
)

type GroupRepo struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

func (r *GroupRepo) Create(ctx context.Context, group *model.Group) error {
	return translate(conn(ctx, r.db).Create(group).Error)
}

func (r *GroupRepo) FindByID(ctx context.Context, id string) (*model.Group, error) {
	var group model.Group
	if err := conn(ctx, r.db).Where("id = ?", id).Take(&group).Error; err != nil {
		return nil, translate(err)
	}
	return &group, nil
}

func (r *GroupRepo) SoftDelete(ctx context.Context, id string) (bool, error) {
	res := conn(ctx, r.db).Where("id = ?", id).Delete(&model.Group{})
	return res.RowsAffected == 1, translate(res.Error)
}

type MemberRepo struct {
	db   *gorm.DB
	caps Capabilities
}

func NewMemberRepository(db *gorm.DB, caps Capabilities) *MemberRepo {
	return &MemberRepo{db: db, caps: caps}
}

func membershipColumns(withRole bool) string {
	cols := "gm.group_id, gm.user_id, gm.joined_at, g.name AS group_name, g.created_by, g.created_at AS group_created_at"
	if withRole {
		cols += ", gm.role AS raw_role"
	}
	return cols
}

// membershipQuery only sees memberships of active users in active groups.
func membershipQuery(db *gorm.DB, withRole bool) *gorm.DB {
	return db.
		Table("group_members AS gm").
		Select(membershipColumns(withRole)).
		Joins("JOIN movie_groups g ON g.id = gm.group_id AND g.deleted_at IS NULL").
		Joins("JOIN users u ON u.id = gm.user_id AND u.deleted_at IS NULL")
}

func (r *MemberRepo) FindMembership(ctx context.Context, groupID, userID string, withRole bool) (*model.MembershipRecord, error) {
	var rec model.MembershipRecord
	err := membershipQuery(conn(ctx, r.db), withRole).
		Where("gm.group_id = ? AND gm.user_id = ?", groupID, userID).
		Take(&rec).Error
	if err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

// LockMembership runs inside a savepoint so that a failed projection (a role
// column missing on an old schema) leaves the enclosing transaction usable for
// a retry.
func (r *MemberRepo) LockMembership(ctx context.Context, groupID, userID string, withRole bool) (*model.MembershipRecord, error) {
	var rec model.MembershipRecord
	err := conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		return membershipQuery(tx, withRole).
			Where("gm.group_id = ? AND gm.user_id = ?", groupID, userID).
			Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "gm"}}).
			Take(&rec).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

// InsertIgnore relies on the (group_id, user_id) primary key: a concurrent
// duplicate insert affects zero rows instead of failing.
func (r *MemberRepo) InsertIgnore(ctx context.Context, member *model.GroupMember) (bool, error) {
	q := conn(ctx, r.db)
	if !r.caps.MemberRoles {
		q = q.Omit("role")
	}
	res := q.Clauses(clause.OnConflict{DoNothing: true}).Create(member)
	return res.RowsAffected == 1, translate(res.Error)
}

func (r *MemberRepo) Delete(ctx context.Context, groupID, userID string) (bool, error) {
	res := conn(ctx, r.db).Where("group_id = ? AND user_id = ?", groupID, userID).Delete(&model.GroupMember{})
	return res.RowsAffected == 1, translate(res.Error)
}

func (r *MemberRepo) UpdateRole(ctx context.Context, groupID, userID string, role model.Role) error {
	res := conn(ctx, r.db).Model(&model.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Update("role", role)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MemberRepo) ListMembers(ctx context.Context, groupID string, withRole bool) ([]*model.MemberRecord, error) {
	cols := "gm.user_id, u.name, u.email, gm.joined_at, g.created_by"
	if withRole {
		cols += ", gm.role AS raw_role"
	}
	var rows []*model.MemberRecord
	err := conn(ctx, r.db).
		Table("group_members AS gm").
		Select(cols).
		Joins("JOIN users u ON u.id = gm.user_id AND u.deleted_at IS NULL").
		Joins("JOIN movie_groups g ON g.id = gm.group_id AND g.deleted_at IS NULL").
		Where("gm.group_id = ?", groupID).
		Order("gm.joined_at ASC").
		Scan(&rows).Error
	return rows, translate(err)
}

func (r *MemberRepo) ListUserGroups(ctx context.Context, userID string, withRole bool) ([]*model.MembershipRecord, error) {
	var rows []*model.MembershipRecord
	err := membershipQuery(conn(ctx, r.db), withRole).
		Where("gm.user_id = ?", userID).
		Order("g.created_at DESC").
		Scan(&rows).Error
	return rows, translate(err)
}

func (r *MemberRepo) ListMemberIDs(ctx context.Context, groupID string) ([]string, error) {
	var ids []string
	err := conn(ctx, r.db).
		Table("group_members AS gm").
		Joins("JOIN users u ON u.id = gm.user_id AND u.deleted_at IS NULL").
		Where("gm.group_id = ?", groupID).
		Order("gm.joined_at ASC").
		Pluck("gm.user_id", &ids).Error
	return ids, translate(err)
}
