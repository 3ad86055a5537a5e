// Package memory is an in-process implementation of the repository
// contracts. It backs the "memory" storage driver and the service tests.
//
// A single mutex serializes every transaction; RunInTx snapshots the state and
// restores it when fn fails or panics. Records are copied on the way in and
// out, so callers never alias stored rows.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/repository"
)

type memberKey struct{ groupID, userID string }

type availabilityKey struct{ nightID, userID string }

type watchlistKey struct {
	groupID string
	movieID int64
}

type voteKey struct {
	userID  string
	groupID string
	movieID int64
}

type friendshipKey struct{ userID, friendID string }

type state struct {
	users          map[string]*model.User
	groups         map[string]*model.Group
	members        map[memberKey]*model.GroupMember
	nights         map[string]*model.MovieNight
	availability   map[availabilityKey]*model.Availability
	watchlist      map[watchlistKey]*model.WatchlistEntry
	votes          map[voteKey]*model.Vote
	activity       []*model.ActivityEvent
	notifications  []*model.Notification
	friendRequests map[string]*model.FriendRequest
	friendships    map[friendshipKey]*model.Friendship
}

func newState() *state {
	return &state{
		users:          make(map[string]*model.User),
		groups:         make(map[string]*model.Group),
		members:        make(map[memberKey]*model.GroupMember),
		nights:         make(map[string]*model.MovieNight),
		availability:   make(map[availabilityKey]*model.Availability),
		watchlist:      make(map[watchlistKey]*model.WatchlistEntry),
		votes:          make(map[voteKey]*model.Vote),
		friendRequests: make(map[string]*model.FriendRequest),
		friendships:    make(map[friendshipKey]*model.Friendship),
	}
}

func cp[T any](v *T) *T {
	c := *v
	return &c
}

func cloneMap[K comparable, V any](m map[K]*V) map[K]*V {
	out := make(map[K]*V, len(m))
	for k, v := range m {
		out[k] = cp(v)
	}
	return out
}

func cloneSlice[V any](s []*V) []*V {
	out := make([]*V, len(s))
	for i, v := range s {
		out[i] = cp(v)
	}
	return out
}

func (st *state) clone() *state {
	return &state{
		users:          cloneMap(st.users),
		groups:         cloneMap(st.groups),
		members:        cloneMap(st.members),
		nights:         cloneMap(st.nights),
		availability:   cloneMap(st.availability),
		watchlist:      cloneMap(st.watchlist),
		votes:          cloneMap(st.votes),
		activity:       cloneSlice(st.activity),
		notifications:  cloneSlice(st.notifications),
		friendRequests: cloneMap(st.friendRequests),
		friendships:    cloneMap(st.friendships),
	}
}

func (st *state) activeUser(id string) *model.User {
	u, ok := st.users[id]
	if !ok || u.DeletedAt.Valid {
		return nil
	}
	return u
}

func (st *state) activeGroup(id string) *model.Group {
	g, ok := st.groups[id]
	if !ok || g.DeletedAt.Valid {
		return nil
	}
	return g
}

// groupMembers returns the rows of one group ordered by join time.
func (st *state) groupMembers(groupID string) []*model.GroupMember {
	var rows []*model.GroupMember
	for k, m := range st.members {
		if k.groupID == groupID {
			rows = append(rows, m)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].JoinedAt.Equal(rows[j].JoinedAt) {
			return rows[i].JoinedAt.Before(rows[j].JoinedAt)
		}
		return rows[i].UserID < rows[j].UserID
	})
	return rows
}

type txKey struct{}

// Store holds every table in memory. Capabilities select which optional
// schema features it pretends to have.
type Store struct {
	mu    sync.Mutex
	st    *state
	caps  repository.Capabilities
	repos *repository.Repositories
}

func New(caps repository.Capabilities) *Store {
	s := &Store{st: newState(), caps: caps}
	s.repos = &repository.Repositories{
		Tx:            s,
		Schema:        caps,
		Users:         &userRepo{s},
		Groups:        &groupRepo{s},
		Members:       &memberRepo{s},
		Nights:        &nightRepo{s},
		Availability:  &availabilityRepo{s},
		Watchlist:     &watchlistRepo{s},
		Votes:         &voteRepo{s},
		Activity:      &activityRepo{s},
		Notifications: &notificationRepo{s},
		Friends:       &friendRepo{s},
	}
	return s
}

// Repositories exposes the store through the repository contracts.
func (s *Store) Repositories() *repository.Repositories {
	return s.repos
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	committed := false
	defer func() {
		if !committed {
			s.st = snapshot
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		return err
	}
	committed = true
	return nil
}

// read runs fn against the state, joining the caller's transaction if any.
func (s *Store) read(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.inTx(ctx) {
		return fn(s.st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// write is read for single-statement mutations: outside a transaction a
// failing fn leaves no partial change behind.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	if s.inTx(ctx) {
		return fn(s.st)
	}
	return s.RunInTx(ctx, func(ctx context.Context) error { return fn(s.st) })
}
