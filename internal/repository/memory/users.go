package memory

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/repository"
)

type userRepo struct{ s *Store }

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.users[user.ID]; ok {
			return repository.ErrDuplicate
		}
		for _, u := range st.users {
			if u.Email == user.Email {
				return repository.ErrDuplicate
			}
		}
		row := cp(user)
		if !r.s.caps.NotificationPrefs {
			// the columns do not exist; reads see the column defaults
			row.EmailNotifications, row.GroupNotifications, row.VoteNotifications = true, true, true
		}
		st.users[user.ID] = row
		return nil
	})
}

func (r *userRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	var out *model.User
	err := r.s.read(ctx, func(st *state) error {
		u := st.activeUser(id)
		if u == nil {
			return repository.ErrNotFound
		}
		out = cp(u)
		return nil
	})
	return out, err
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var out *model.User
	err := r.s.read(ctx, func(st *state) error {
		for _, u := range st.users {
			if u.Email == email && !u.DeletedAt.Valid {
				out = cp(u)
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *userRepo) FindByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	var out []*model.User
	err := r.s.read(ctx, func(st *state) error {
		for _, id := range ids {
			if u := st.activeUser(id); u != nil {
				out = append(out, cp(u))
			}
		}
		return nil
	})
	return out, err
}

func (r *userRepo) UpdateLoginState(ctx context.Context, id string, failedAttempts int, lockedUntil *time.Time) error {
	return r.s.write(ctx, func(st *state) error {
		u := st.activeUser(id)
		if u == nil {
			return repository.ErrNotFound
		}
		u.FailedLoginAttempts = failedAttempts
		u.LockedUntil = lockedUntil
		return nil
	})
}

func (r *userRepo) RecordFailedLogin(ctx context.Context, id string, maxAttempts int, lockUntil time.Time) (*model.LoginState, error) {
	var out *model.LoginState
	err := r.s.write(ctx, func(st *state) error {
		u := st.activeUser(id)
		if u == nil {
			return repository.ErrNotFound
		}
		u.FailedLoginAttempts++
		if u.FailedLoginAttempts >= maxAttempts {
			until := lockUntil
			u.FailedLoginAttempts, u.LockedUntil = 0, &until
		}
		out = &model.LoginState{FailedLoginAttempts: u.FailedLoginAttempts, LockedUntil: u.LockedUntil}
		return nil
	})
	return out, err
}

func (r *userRepo) UpdatePreferences(ctx context.Context, id string, prefs model.NotificationPreferences) error {
	if prefs.Empty() {
		return nil
	}
	if !r.s.caps.NotificationPrefs {
		return repository.UndefinedColumnError("email_notifications")
	}
	return r.s.write(ctx, func(st *state) error {
		u := st.activeUser(id)
		if u == nil {
			return repository.ErrNotFound
		}
		prefs.Apply(u)
		u.UpdatedAt = time.Now()
		return nil
	})
}

func (r *userRepo) SoftDelete(ctx context.Context, id string) error {
	return r.s.write(ctx, func(st *state) error {
		u := st.activeUser(id)
		if u == nil {
			return repository.ErrNotFound
		}
		u.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
		return nil
	})
}
