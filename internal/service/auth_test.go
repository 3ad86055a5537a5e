package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/MovieNight/internal/apperr"
	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/repository"
)

func TestRegisterAndLogin(t *testing.T) {
	e := newTestEnv(t, repository.FullCapabilities())
	ctx := context.Background()

	resp, err := e.svc.Auth.Register(ctx, &RegisterRequest{Name: "Alice", Email: " Alice@Example.com ", Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "alice@example.com", resp.User.Email)

	_, err = e.svc.Auth.Register(ctx, &RegisterRequest{Name: "Alice 2", Email: "alice@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	login, err := e.svc.Auth.Login(ctx, &LoginRequest{Email: "ALICE@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)

	_, err = e.svc.Auth.Login(ctx, &LoginRequest{Email: "nobody@example.com", Password: "whatever1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	e := newTestEnv(t, repository.FullCapabilities())
	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{"blank name", RegisterRequest{Name: " ", Email: "a@example.com", Password: "password1"}},
		{"bad email", RegisterRequest{Name: "A", Email: "not-an-email", Password: "password1"}},
		{"short password", RegisterRequest{Name: "A", Email: "a@example.com", Password: "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Auth.Register(context.Background(), &tt.req)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}

func TestLoginLockout(t *testing.T) {
	e := newTestEnv(t, repository.FullCapabilities())
	ctx := context.Background()
	_, err := e.svc.Auth.Register(ctx, &RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	wrong := &LoginRequest{Email: "alice@example.com", Password: "wrong-password"}
	for i := 1; i < MaxFailedLogins; i++ {
		_, err := e.svc.Auth.Login(ctx, wrong)
		assert.ErrorIs(t, err, ErrInvalidCredentials, "attempt %d", i)
	}
	_, err = e.svc.Auth.Login(ctx, wrong)
	assert.ErrorIs(t, err, ErrAccountLocked)

	// the right password does not help while locked
	right := &LoginRequest{Email: "alice@example.com", Password: "correct-horse"}
	_, err = e.svc.Auth.Login(ctx, right)
	assert.Equal(t, apperr.KindLocked, apperr.KindOf(err))

	e.clock.Set(testEpoch.Add(LockoutDuration + time.Second))
	_, err = e.svc.Auth.Login(ctx, right)
	require.NoError(t, err)

	user, err := e.repos().Users.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Zero(t, user.FailedLoginAttempts)
	assert.Nil(t, user.LockedUntil)
}

func TestConcurrentFailedLoginsStillLock(t *testing.T) {
	e := newTestEnv(t, repository.FullCapabilities())
	ctx := context.Background()
	_, err := e.svc.Auth.Register(ctx, &RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	wrong := &LoginRequest{Email: "alice@example.com", Password: "wrong-password"}
	var (
		wg     sync.WaitGroup
		locked atomic.Int32
	)
	for range MaxFailedLogins {
		wg.Go(func() {
			if _, err := e.svc.Auth.Login(ctx, wrong); errors.Is(err, ErrAccountLocked) {
				locked.Add(1)
			}
		})
	}
	wg.Wait()

	assert.EqualValues(t, 1, locked.Load(), "exactly the last failure locks")
	_, err = e.svc.Auth.Login(ctx, &LoginRequest{Email: "alice@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, ErrAccountLocked)
}

func TestPreferencesAndDeletion(t *testing.T) {
	e := newTestEnv(t, repository.FullCapabilities())
	ctx := context.Background()
	alice := e.addUser(t, "Alice")

	_, err := e.svc.Auth.UpdatePreferences(ctx, alice.ID, model.NotificationPreferences{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	user, err := e.svc.Auth.UpdatePreferences(ctx, alice.ID, model.NotificationPreferences{VoteNotifications: ptr(false)})
	require.NoError(t, err)
	assert.False(t, user.VoteNotifications)
	assert.True(t, user.GroupNotifications)

	require.NoError(t, e.svc.Auth.DeleteAccount(ctx, alice.ID))
	_, err = e.svc.Auth.Profile(ctx, alice.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.ErrorIs(t, e.svc.Auth.DeleteAccount(ctx, alice.ID), ErrUserNotFound)

	t.Run("legacy schema", func(t *testing.T) {
		legacy := newTestEnv(t, repository.Capabilities{MemberRoles: true, Activity: true})
		bob := legacy.addUser(t, "Bob")
		_, err := legacy.svc.Auth.UpdatePreferences(ctx, bob.ID, model.NotificationPreferences{VoteNotifications: ptr(false)})
		assert.ErrorIs(t, err, ErrNeedsPreferences)
	})
}

func TestRefreshToken(t *testing.T) {
	e := newTestEnv(t, repository.FullCapabilities())
	ctx := context.Background()
	resp, err := e.svc.Auth.Register(ctx, &RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	refreshed, err := e.svc.Auth.Refresh(ctx, resp.Token)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.Token)
	assert.Equal(t, resp.User.ID, refreshed.User.ID)

	_, err = e.svc.Auth.Refresh(ctx, "garbage")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	require.NoError(t, e.svc.Auth.DeleteAccount(ctx, resp.User.ID))
	_, err = e.svc.Auth.Refresh(ctx, resp.Token)
	assert.ErrorContains(t, err, "account no longer exists")
}
