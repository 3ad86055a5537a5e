package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/repository"
)

type friendRepo struct{ s *Store }

func (r *friendRepo) CreateRequest(ctx context.Context, request *model.FriendRequest) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.friendRequests[request.ID]; ok {
			return repository.ErrDuplicate
		}
		st.friendRequests[request.ID] = cp(request)
		return nil
	})
}

func (r *friendRepo) FindRequest(ctx context.Context, id string) (*model.FriendRequest, error) {
	var out *model.FriendRequest
	err := r.s.read(ctx, func(st *state) error {
		req, ok := st.friendRequests[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = cp(req)
		return nil
	})
	return out, err
}

func (r *friendRepo) FindPendingBetween(ctx context.Context, a, b string) (*model.FriendRequest, error) {
	var out *model.FriendRequest
	err := r.s.read(ctx, func(st *state) error {
		for _, req := range st.friendRequests {
			if req.Status != model.FriendRequestPending {
				continue
			}
			if (req.SenderID == a && req.ReceiverID == b) || (req.SenderID == b && req.ReceiverID == a) {
				out = cp(req)
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *friendRepo) TransitionRequest(ctx context.Context, id, receiverID string, status model.FriendRequestStatus, at time.Time) (bool, error) {
	moved := false
	err := r.s.write(ctx, func(st *state) error {
		req, ok := st.friendRequests[id]
		if !ok || req.ReceiverID != receiverID || req.Status != model.FriendRequestPending {
			return nil
		}
		req.Status = status
		req.RespondedAt = &at
		moved = true
		return nil
	})
	return moved, err
}

func (r *friendRepo) ListPending(ctx context.Context, receiverID string) ([]*model.FriendRequest, error) {
	var out []*model.FriendRequest
	err := r.s.read(ctx, func(st *state) error {
		for _, req := range st.friendRequests {
			if req.ReceiverID == receiverID && req.Status == model.FriendRequestPending {
				out = append(out, cp(req))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

func (r *friendRepo) InsertFriendshipIgnore(ctx context.Context, userID, friendID string) (bool, error) {
	inserted := false
	err := r.s.write(ctx, func(st *state) error {
		key := friendshipKey{userID, friendID}
		if _, ok := st.friendships[key]; ok {
			return nil
		}
		st.friendships[key] = &model.Friendship{UserID: userID, FriendID: friendID, CreatedAt: time.Now()}
		inserted = true
		return nil
	})
	return inserted, err
}

func (r *friendRepo) AreFriends(ctx context.Context, a, b string) (bool, error) {
	found := false
	err := r.s.read(ctx, func(st *state) error {
		_, found = st.friendships[friendshipKey{a, b}]
		return nil
	})
	return found, err
}

func (r *friendRepo) ListFriends(ctx context.Context, userID string) ([]*model.User, error) {
	var out []*model.User
	err := r.s.read(ctx, func(st *state) error {
		for k := range st.friendships {
			if k.userID != userID {
				continue
			}
			if u := st.activeUser(k.friendID); u != nil {
				out = append(out, cp(u))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

func (r *friendRepo) DeleteFriendship(ctx context.Context, a, b string) (int64, error) {
	var n int64
	err := r.s.write(ctx, func(st *state) error {
		for _, key := range []friendshipKey{{a, b}, {b, a}} {
			if _, ok := st.friendships[key]; ok {
				delete(st.friendships, key)
				n++
			}
		}
		return nil
	})
	return n, err
}
