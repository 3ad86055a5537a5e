package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Gopher0727/MovieNight/internal/model"
)

type notificationRepo struct{ s *Store }

func (r *notificationRepo) InsertBatch(ctx context.Context, items []*model.Notification) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	err := r.s.write(ctx, func(st *state) error {
		for _, n := range items {
			st.notifications = append(st.notifications, cp(n))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int64(len(items)), nil
}

func (r *notificationRepo) ListByUser(ctx context.Context, userID string, page model.PageRequest) ([]*model.Notification, int64, error) {
	var matched []*model.Notification
	err := r.s.read(ctx, func(st *state) error {
		for i := len(st.notifications) - 1; i >= 0; i-- {
			if n := st.notifications[i]; n.UserID == userID {
				matched = append(matched, cp(n))
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, page), int64(len(matched)), nil
}

func (r *notificationRepo) CountUnread(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.s.read(ctx, func(st *state) error {
		for _, item := range st.notifications {
			if item.UserID == userID && !item.IsRead {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *notificationRepo) MarkRead(ctx context.Context, userID, id string) (bool, error) {
	found := false
	err := r.s.write(ctx, func(st *state) error {
		for _, item := range st.notifications {
			if item.ID == id && item.UserID == userID {
				item.IsRead = true
				found = true
			}
		}
		return nil
	})
	return found, err
}

func (r *notificationRepo) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.s.write(ctx, func(st *state) error {
		for _, item := range st.notifications {
			if item.UserID == userID && !item.IsRead {
				item.IsRead = true
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *notificationRepo) RecentRecipients(ctx context.Context, userIDs []string, typ model.NotificationType, referenceID string, since time.Time) ([]string, error) {
	wanted := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}
	var out []string
	err := r.s.read(ctx, func(st *state) error {
		seen := make(map[string]bool)
		for _, n := range st.notifications {
			if !wanted[n.UserID] || seen[n.UserID] || n.Type != typ {
				continue
			}
			if n.ReferenceID == nil || *n.ReferenceID != referenceID || n.CreatedAt.Before(since) {
				continue
			}
			seen[n.UserID] = true
			out = append(out, n.UserID)
		}
		return nil
	})
	return out, err
}
