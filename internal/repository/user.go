package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Gopher0727/MovieNight/internal/model"
)

var preferenceColumns = []string{"email_notifications", "group_notifications", "vote_notifications"}

type UserRepo struct {
	db   *gorm.DB
	caps Capabilities
}

func NewUserRepository(db *gorm.DB, caps Capabilities) *UserRepo {
	return &UserRepo{db: db, caps: caps}
}

func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	q := conn(ctx, r.db)
	if !r.caps.NotificationPrefs {
		q = q.Omit(preferenceColumns...)
	}
	return translate(q.Create(user).Error)
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := conn(ctx, r.db).Where("id = ?", id).Take(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := conn(ctx, r.db).Where("email = ?", email).Take(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepo) FindByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []*model.User
	err := conn(ctx, r.db).Where("id IN ?", ids).Find(&users).Error
	return users, translate(err)
}

func (r *UserRepo) UpdateLoginState(ctx context.Context, id string, failedAttempts int, lockedUntil *time.Time) error {
	res := conn(ctx, r.db).Model(&model.User{}).Where("id = ?", id).Updates(map[string]any{
		"failed_login_attempts": failedAttempts,
		"locked_until":          lockedUntil,
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

const recordFailedLoginSQL = `UPDATE users SET
	failed_login_attempts = CASE WHEN failed_login_attempts + 1 >= ? THEN 0 ELSE failed_login_attempts + 1 END,
	locked_until = CASE WHEN failed_login_attempts + 1 >= ? THEN ? ELSE locked_until END
WHERE id = ? AND deleted_at IS NULL
RETURNING failed_login_attempts, locked_until`

func (r *UserRepo) RecordFailedLogin(ctx context.Context, id string, maxAttempts int, lockUntil time.Time) (*model.LoginState, error) {
	var state model.LoginState
	res := conn(ctx, r.db).Raw(recordFailedLoginSQL, maxAttempts, maxAttempts, lockUntil, id).Scan(&state)
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &state, nil
}

func (r *UserRepo) UpdatePreferences(ctx context.Context, id string, prefs model.NotificationPreferences) error {
	updates := map[string]any{}
	if prefs.EmailNotifications != nil {
		updates["email_notifications"] = *prefs.EmailNotifications
	}
	if prefs.GroupNotifications != nil {
		updates["group_notifications"] = *prefs.GroupNotifications
	}
	if prefs.VoteNotifications != nil {
		updates["vote_notifications"] = *prefs.VoteNotifications
	}
	if len(updates) == 0 {
		return nil
	}
	res := conn(ctx, r.db).Model(&model.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete stamps deleted_at; gorm.DeletedAt hides the row from later queries.
func (r *UserRepo) SoftDelete(ctx context.Context, id string) error {
	res := conn(ctx, r.db).Where("id = ?", id).Delete(&model.User{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
