package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/repository"
	logger "github.com/Gopher0727/MovieNight/middleware/log"
)

type membershipKey struct{ groupID, userID string }

type membershipCache struct {
	mu      sync.Mutex
	entries map[membershipKey]*model.Membership
}

type membershipCacheKey struct{}

// WithMembershipCache installs a request-scoped cache so the guard chain and
// the handler resolve each (group, user) pair at most once. A cached nil
// records a known non-member.
func WithMembershipCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, membershipCacheKey{}, &membershipCache{
		entries: make(map[membershipKey]*model.Membership),
	})
}

func cacheFrom(ctx context.Context) *membershipCache {
	c, _ := ctx.Value(membershipCacheKey{}).(*membershipCache)
	return c
}

// MembershipResolver answers "is this user a member of this group, and with
// which role". Whether the role column exists is decided by the startup schema
// probe; an unexpected undefined_column error still downgrades the resolver
// to the legacy projection once.
type MembershipResolver struct {
	members  repository.MemberRepository
	withRole atomic.Bool
	logger   *logger.Logger
}

func NewMembershipResolver(members repository.MemberRepository, caps repository.Capabilities, log *logger.Logger) *MembershipResolver {
	if log == nil {
		log = logger.NewNopLogger()
	}
	r := &MembershipResolver{members: members, logger: log.Named("membership")}
	r.withRole.Store(caps.MemberRoles)
	return r
}

// RoleColumn reports whether stored roles are available.
func (r *MembershipResolver) RoleColumn() bool {
	return r.withRole.Load()
}

func withRoleFallback[T any](ctx context.Context, r *MembershipResolver, fn func(withRole bool) (T, error)) (T, error) {
	withRole := r.withRole.Load()
	out, err := fn(withRole)
	if withRole && repository.IsUndefinedColumn(err) {
		if r.withRole.CompareAndSwap(true, false) {
			r.logger.WarnContext(ctx, "role column missing, falling back to creator-based roles", zap.Error(err))
		}
		return fn(false)
	}
	return out, err
}

// Resolve returns the caller's membership, or nil when the user is not a
// member of an active group.
func (r *MembershipResolver) Resolve(ctx context.Context, groupID, userID string) (*model.Membership, error) {
	key := membershipKey{groupID, userID}
	cache := cacheFrom(ctx)
	if cache != nil {
		cache.mu.Lock()
		m, hit := cache.entries[key]
		cache.mu.Unlock()
		if hit {
			return m, nil
		}
	}

	m, err := r.find(ctx, r.members.FindMembership, groupID, userID)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		cache.mu.Lock()
		cache.entries[key] = m
		cache.mu.Unlock()
	}
	return m, nil
}

// Lock re-reads a membership under a row lock. It must run inside a
// transaction and bypasses the request cache.
func (r *MembershipResolver) Lock(ctx context.Context, groupID, userID string) (*model.Membership, error) {
	return r.find(ctx, r.members.LockMembership, groupID, userID)
}

// Forget drops a cached entry after the membership changed.
func (r *MembershipResolver) Forget(ctx context.Context, groupID, userID string) {
	if cache := cacheFrom(ctx); cache != nil {
		cache.mu.Lock()
		delete(cache.entries, membershipKey{groupID, userID})
		cache.mu.Unlock()
	}
}

type membershipLookup func(ctx context.Context, groupID, userID string, withRole bool) (*model.MembershipRecord, error)

func (r *MembershipResolver) find(ctx context.Context, lookup membershipLookup, groupID, userID string) (*model.Membership, error) {
	rec, err := withRoleFallback(ctx, r, func(withRole bool) (*model.MembershipRecord, error) {
		return lookup(ctx, groupID, userID, withRole)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec.Resolve(), nil
}

// ListMembers returns the members of a group with their effective roles.
func (r *MembershipResolver) ListMembers(ctx context.Context, groupID string) ([]model.MemberView, error) {
	rows, err := withRoleFallback(ctx, r, func(withRole bool) ([]*model.MemberRecord, error) {
		return r.members.ListMembers(ctx, groupID, withRole)
	})
	if err != nil {
		return nil, err
	}
	views := make([]model.MemberView, 0, len(rows))
	for _, row := range rows {
		views = append(views, row.View())
	}
	return views, nil
}

// ListUserGroups returns every active group the user belongs to.
func (r *MembershipResolver) ListUserGroups(ctx context.Context, userID string) ([]model.GroupView, error) {
	rows, err := withRoleFallback(ctx, r, func(withRole bool) ([]*model.MembershipRecord, error) {
		return r.members.ListUserGroups(ctx, userID, withRole)
	})
	if err != nil {
		return nil, err
	}
	views := make([]model.GroupView, 0, len(rows))
	for _, row := range rows {
		views = append(views, row.Resolve().View(row.GroupCreatedAt))
	}
	return views, nil
}
