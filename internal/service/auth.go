package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Gopher0727/MovieNight/internal/apperr"
	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/repository"
	"github.com/Gopher0727/MovieNight/internal/utils"
	"github.com/Gopher0727/MovieNight/middleware/jwt"
)

const (
	MaxFailedLogins   = 5
	LockoutDuration   = 15 * time.Minute
	MaxUserNameLength = 100
)

var (
	ErrEmailTaken         = apperr.Conflict("email is already registered")
	ErrInvalidCredentials = apperr.Unauthorized("invalid email or password")
	ErrAccountLocked      = apperr.Locked("account locked after too many failed logins; try again later")
	ErrNeedsPreferences   = apperr.SchemaUnavailable("notification preferences")
)

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is returned by both register and login.
type LoginResponse struct {
	Token string            `json:"token"`
	User  model.UserProfile `json:"user"`
}

type IAuthService interface {
	Register(ctx context.Context, req *RegisterRequest) (*LoginResponse, error)
	Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error)
	Refresh(ctx context.Context, token string) (*LoginResponse, error)
	Profile(ctx context.Context, userID string) (*model.User, error)
	UpdatePreferences(ctx context.Context, userID string, prefs model.NotificationPreferences) (*model.User, error)
	DeleteAccount(ctx context.Context, userID string) error
}

type AuthService struct {
	*Deps
	tokenManager *jwt.TokenManager
}

func NewAuthService(d *Deps, tokenManager *jwt.TokenManager) *AuthService {
	return &AuthService{Deps: d, tokenManager: tokenManager}
}

func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*LoginResponse, error) {
	name := strings.TrimSpace(req.Name)
	email := utils.NormalizeEmail(req.Email)
	if !utils.ValidateName(name, MaxUserNameLength) {
		return nil, apperr.Validation("name must be 1-%d characters", MaxUserNameLength)
	}
	if !utils.ValidateEmail(email) {
		return nil, apperr.Validation("a valid email address is required")
	}
	if !utils.ValidatePassword(req.Password) {
		return nil, apperr.Validation("password must be %d-%d characters", utils.PasswordMinLength, utils.PasswordMaxBytes)
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	now := s.now()
	user := &model.User{
		ID:                 uuid.NewString(),
		Name:               name,
		Email:              email,
		PasswordHash:       hash,
		EmailNotifications: true,
		GroupNotifications: true,
		VoteNotifications:  true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.Repos.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.Logger.InfoContext(ctx, "user registered", zap.String("user_id", user.ID))
	return s.issue(user)
}

func (s *AuthService) issue(user *model.User) (*LoginResponse, error) {
	token, err := s.tokenManager.GenerateToken(user.ID, user.Name, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &LoginResponse{Token: token, User: user.Profile()}, nil
}

// Refresh re-issues a token inside its refresh window, provided the account
// still exists.
func (s *AuthService) Refresh(ctx context.Context, token string) (*LoginResponse, error) {
	fresh, err := s.tokenManager.RefreshToken(token)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthorized, err, "token cannot be refreshed")
	}
	claims, err := s.tokenManager.ParseToken(fresh)
	if err != nil {
		return nil, fmt.Errorf("failed to parse refreshed token: %w", err)
	}
	user, err := s.Repos.Users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Unauthorized("account no longer exists")
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &LoginResponse{Token: fresh, User: user.Profile()}, nil
}

// Login checks credentials. Every failure counts toward the lockout; the
// MaxFailedLogins-th consecutive failure locks the account for
// LockoutDuration.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	user, err := s.Repos.Users.FindByEmail(ctx, utils.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	now := s.now()
	if user.Locked(now) {
		return nil, ErrAccountLocked
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		state, err := s.Repos.Users.RecordFailedLogin(ctx, user.ID, MaxFailedLogins, now.Add(LockoutDuration))
		if err != nil {
			return nil, fmt.Errorf("failed to record login attempt: %w", err)
		}
		if state.LockedAt(now) {
			s.Logger.WarnContext(ctx, "account locked", zap.String("user_id", user.ID))
			return nil, ErrAccountLocked
		}
		return nil, ErrInvalidCredentials
	}

	if user.FailedLoginAttempts > 0 || user.LockedUntil != nil {
		if err := s.Repos.Users.UpdateLoginState(ctx, user.ID, 0, nil); err != nil {
			return nil, fmt.Errorf("failed to reset login state: %w", err)
		}
	}
	return s.issue(user)
}

func (s *AuthService) Profile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.Repos.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

func (s *AuthService) UpdatePreferences(ctx context.Context, userID string, prefs model.NotificationPreferences) (*model.User, error) {
	if !s.Repos.Schema.NotificationPrefs {
		return nil, ErrNeedsPreferences
	}
	if prefs.Empty() {
		return nil, apperr.Validation("at least one preference must be provided")
	}
	if err := s.Repos.Users.UpdatePreferences(ctx, userID, prefs); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrUserNotFound
		case repository.IsUndefinedColumn(err):
			return nil, ErrNeedsPreferences
		}
		return nil, fmt.Errorf("failed to update preferences: %w", err)
	}
	return s.Profile(ctx, userID)
}

func (s *AuthService) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.Repos.Users.SoftDelete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete account: %w", err)
	}
	s.Logger.InfoContext(ctx, "account deleted", zap.String("user_id", userID))
	return nil
}
