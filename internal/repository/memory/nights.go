package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/repository"
)

type nightRepo struct{ s *Store }

// stripScheduling drops the columns an older schema does not have.
func (r *nightRepo) stripScheduling(n *model.MovieNight) {
	if r.s.caps.NightScheduling {
		return
	}
	n.IsLocked = false
	n.RSVPDeadline = nil
	n.ReminderMinutesBefore = nil
	n.ReminderSentAt = nil
}

func (r *nightRepo) Create(ctx context.Context, night *model.MovieNight) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.nights[night.ID]; ok {
			return repository.ErrDuplicate
		}
		row := cp(night)
		r.stripScheduling(row)
		st.nights[night.ID] = row
		return nil
	})
}

func (r *nightRepo) FindByID(ctx context.Context, groupID, nightID string) (*model.MovieNight, error) {
	var out *model.MovieNight
	err := r.s.read(ctx, func(st *state) error {
		n, ok := st.nights[nightID]
		if !ok || n.GroupID != groupID {
			return repository.ErrNotFound
		}
		out = cp(n)
		return nil
	})
	return out, err
}

func (r *nightRepo) LockByID(ctx context.Context, groupID, nightID string) (*model.MovieNight, error) {
	return r.FindByID(ctx, groupID, nightID)
}

func (r *nightRepo) Update(ctx context.Context, night *model.MovieNight) error {
	return r.s.write(ctx, func(st *state) error {
		cur, ok := st.nights[night.ID]
		if !ok || cur.GroupID != night.GroupID {
			return repository.ErrNotFound
		}
		row := cp(night)
		row.CreatedAt, row.CreatedBy = cur.CreatedAt, cur.CreatedBy
		r.stripScheduling(row)
		st.nights[night.ID] = row
		return nil
	})
}

func (r *nightRepo) ListByGroup(ctx context.Context, groupID string) ([]*model.MovieNight, error) {
	var out []*model.MovieNight
	err := r.s.read(ctx, func(st *state) error {
		for _, n := range st.nights {
			if n.GroupID == groupID {
				out = append(out, cp(n))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledDate.Equal(out[j].ScheduledDate) {
			return out[i].ScheduledDate.Before(out[j].ScheduledDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

func (r *nightRepo) ListReminderCandidates(ctx context.Context, limit int) ([]*model.MovieNight, error) {
	if !r.s.caps.NightScheduling {
		return nil, nil
	}
	var out []*model.MovieNight
	err := r.s.read(ctx, func(st *state) error {
		for _, n := range st.nights {
			if n.Status != model.NightPlanned || !n.ReminderConfigured() || n.ReminderSentAt != nil {
				continue
			}
			if st.activeGroup(n.GroupID) == nil {
				continue
			}
			out = append(out, cp(n))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].RSVPDeadline.Before(*out[j].RSVPDeadline)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r *nightRepo) MarkReminderSent(ctx context.Context, nightID string, at time.Time) error {
	if !r.s.caps.NightScheduling {
		return repository.UndefinedColumnError("reminder_sent_at")
	}
	return r.s.write(ctx, func(st *state) error {
		n, ok := st.nights[nightID]
		if !ok {
			return nil
		}
		n.ReminderSentAt = &at
		return nil
	})
}

type availabilityRepo struct{ s *Store }

func (r *availabilityRepo) Upsert(ctx context.Context, availability *model.Availability) error {
	return r.s.write(ctx, func(st *state) error {
		st.availability[availabilityKey{availability.NightID, availability.UserID}] = cp(availability)
		return nil
	})
}

func (r *availabilityRepo) ListByNight(ctx context.Context, nightID string) ([]*model.Availability, error) {
	var out []*model.Availability
	err := r.s.read(ctx, func(st *state) error {
		for k, a := range st.availability {
			if k.nightID == nightID {
				out = append(out, cp(a))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RespondedAt.Equal(out[j].RespondedAt) {
			return out[i].RespondedAt.Before(out[j].RespondedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, err
}

func (r *availabilityRepo) PendingMemberIDs(ctx context.Context, groupID, nightID string) ([]string, error) {
	var ids []string
	err := r.s.read(ctx, func(st *state) error {
		for _, m := range st.groupMembers(groupID) {
			if st.activeUser(m.UserID) == nil {
				continue
			}
			if _, answered := st.availability[availabilityKey{nightID, m.UserID}]; answered {
				continue
			}
			ids = append(ids, m.UserID)
		}
		return nil
	})
	return ids, err
}
