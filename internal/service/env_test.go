package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/repository"
	"github.com/Gopher0727/MovieNight/internal/repository/memory"
	"github.com/Gopher0727/MovieNight/middleware/jwt"
)

// tb is satisfied by *testing.T and *rapid.T.
type tb interface {
	require.TestingT
	Helper()
}

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type testEnv struct {
	store *memory.Store
	deps  *Deps
	clock *fakeClock
	svc   *Services
}

func newTestEnv(t tb, caps repository.Capabilities) *testEnv {
	t.Helper()
	clock := &fakeClock{now: testEpoch}
	store := memory.New(caps)
	d := NewDeps(store.Repositories(), WithClock(clock.Now))
	return &testEnv{
		store: store,
		deps:  d,
		clock: clock,
		svc:   NewServices(d, jwt.NewTokenManager("test-secret", 1, 24)),
	}
}

func (e *testEnv) repos() *repository.Repositories {
	return e.store.Repositories()
}

func (e *testEnv) addUser(t tb, name string) *model.User {
	t.Helper()
	u := &model.User{
		ID:                 uuid.NewString(),
		Name:               name,
		Email:              strings.ToLower(name) + "@example.com",
		PasswordHash:       "unused",
		EmailNotifications: true,
		GroupNotifications: true,
		VoteNotifications:  true,
		CreatedAt:          e.clock.Now(),
	}
	require.NoError(t, e.repos().Users.Create(context.Background(), u))
	return u
}

func (e *testEnv) membership(t tb, groupID, userID string) *model.Membership {
	t.Helper()
	m, err := e.deps.Members.Resolve(context.Background(), groupID, userID)
	require.NoError(t, err)
	require.NotNil(t, m, "user %s is not a member of %s", userID, groupID)
	return m
}

// newGroup creates a group owned by owner and adds the others as members.
func (e *testEnv) newGroup(t tb, owner *model.User, others ...*model.User) string {
	t.Helper()
	ctx := context.Background()
	g, err := e.svc.Groups.CreateGroup(ctx, owner.ID, "Friday Crew")
	require.NoError(t, err)
	actor := e.membership(t, g.ID, owner.ID)
	for _, u := range others {
		_, err := e.svc.Groups.AddMember(ctx, actor, u.Email)
		require.NoError(t, err)
	}
	return g.ID
}

func (e *testEnv) activity(t tb, groupID string, typ model.ActivityType) []*model.ActivityEvent {
	t.Helper()
	events, _, err := e.repos().Activity.List(context.Background(), model.ActivityFilter{
		GroupID:   groupID,
		EventType: typ,
		Page:      model.NewPageRequest(1, 100),
	})
	require.NoError(t, err)
	return events
}

func (e *testEnv) notifications(t tb, userID string) []*model.Notification {
	t.Helper()
	items, _, err := e.repos().Notifications.ListByUser(context.Background(), userID, model.NewPageRequest(1, 100))
	require.NoError(t, err)
	return items
}

func ptr[T any](v T) *T {
	return &v
}
