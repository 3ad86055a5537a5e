package memory

import (
	"context"
	"sort"

	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/repository"
)

type activityRepo struct{ s *Store }

func (r *activityRepo) Append(ctx context.Context, event *model.ActivityEvent) error {
	if !r.s.caps.Activity {
		return repository.UndefinedTableError("group_activity")
	}
	return r.s.write(ctx, func(st *state) error {
		st.activity = append(st.activity, cp(event))
		return nil
	})
}

func (r *activityRepo) List(ctx context.Context, filter model.ActivityFilter) ([]*model.ActivityEvent, int64, error) {
	if !r.s.caps.Activity {
		return nil, 0, repository.UndefinedTableError("group_activity")
	}
	var matched []*model.ActivityEvent
	err := r.s.read(ctx, func(st *state) error {
		// newest insert first, then a stable sort keeps it as the tie-breaker
		for i := len(st.activity) - 1; i >= 0; i-- {
			e := st.activity[i]
			if e.GroupID != filter.GroupID {
				continue
			}
			if filter.EventType != "" && e.EventType != filter.EventType {
				continue
			}
			if filter.ActorID != "" && e.ActorUserID != filter.ActorID {
				continue
			}
			matched = append(matched, cp(e))
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, filter.Page), int64(len(matched)), nil
}

func paginate[T any](rows []T, page model.PageRequest) []T {
	start := page.Offset()
	if start >= len(rows) {
		return nil
	}
	end := min(start+page.Limit, len(rows))
	return rows[start:end]
}
