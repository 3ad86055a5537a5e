package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Gopher0727/MovieNight/internal/apperr"
	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/repository"
)

var (
	ErrAlreadyListed     = apperr.Conflict("movie already in watchlist")
	ErrWatchlistNotFound = apperr.NotFound("movie not found in watchlist")
)

type AddMovieRequest struct {
	MovieID int64  `json:"movie_id" binding:"required"`
	Title   string `json:"title" binding:"required"`
}

type IWatchlistService interface {
	List(ctx context.Context, actor *model.Membership) ([]*model.WatchlistEntry, error)
	Add(ctx context.Context, actor *model.Membership, req *AddMovieRequest) (*model.WatchlistEntry, error)
	Remove(ctx context.Context, actor *model.Membership, movieID int64) error
}

type WatchlistService struct {
	*Deps
}

func NewWatchlistService(d *Deps) *WatchlistService {
	return &WatchlistService{Deps: d}
}

func (s *WatchlistService) List(ctx context.Context, actor *model.Membership) ([]*model.WatchlistEntry, error) {
	if err := requireRole(actor, model.RoleMember); err != nil {
		return nil, err
	}
	entries, err := s.Repos.Watchlist.ListByGroup(ctx, actor.GroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list watchlist: %w", err)
	}
	if entries == nil {
		entries = []*model.WatchlistEntry{}
	}
	return entries, nil
}

// Add shortlists a movie. Concurrent adds of the same movie insert one row;
// the losers get ErrAlreadyListed.
func (s *WatchlistService) Add(ctx context.Context, actor *model.Membership, req *AddMovieRequest) (*model.WatchlistEntry, error) {
	if err := requireRole(actor, model.RoleMember); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if req.MovieID <= 0 {
		return nil, apperr.Validation("movie_id must be a positive integer")
	}
	if title == "" || len(title) > 255 {
		return nil, apperr.Validation("title must be 1-255 characters")
	}

	entry := &model.WatchlistEntry{
		GroupID: actor.GroupID,
		MovieID: req.MovieID,
		Title:   title,
		AddedBy: actor.UserID,
		AddedAt: s.now(),
	}
	err := s.inTx(ctx, func(ctx context.Context) error {
		inserted, err := s.Repos.Watchlist.InsertIgnore(ctx, entry)
		if err != nil {
			return fmt.Errorf("failed to add movie: %w", err)
		}
		if !inserted {
			return ErrAlreadyListed
		}
		s.Activity.Record(ctx, Activity{
			GroupID:     actor.GroupID,
			ActorID:     actor.UserID,
			Type:        model.ActivityWatchlistAdded,
			ReferenceID: strconv.FormatInt(entry.MovieID, 10),
			Metadata:    map[string]any{"movie_id": entry.MovieID, "title": entry.Title},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Remove is allowed for moderators and for the member who added the movie.
func (s *WatchlistService) Remove(ctx context.Context, actor *model.Membership, movieID int64) error {
	if err := requireRole(actor, model.RoleMember); err != nil {
		return err
	}
	return s.inTx(ctx, func(ctx context.Context) error {
		entry, err := s.Repos.Watchlist.Find(ctx, actor.GroupID, movieID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrWatchlistNotFound
			}
			return fmt.Errorf("failed to find movie: %w", err)
		}
		if entry.AddedBy != actor.UserID && !actor.AtLeast(model.RoleModerator) {
			return apperr.Forbidden("only moderators or the member who added it can remove this movie")
		}
		deleted, err := s.Repos.Watchlist.Delete(ctx, actor.GroupID, movieID)
		if err != nil {
			return fmt.Errorf("failed to remove movie: %w", err)
		}
		if !deleted {
			return ErrWatchlistNotFound
		}
		s.Activity.Record(ctx, Activity{
			GroupID:     actor.GroupID,
			ActorID:     actor.UserID,
			Type:        model.ActivityWatchlistRemoved,
			ReferenceID: strconv.FormatInt(movieID, 10),
			Metadata:    map[string]any{"movie_id": movieID, "title": entry.Title},
		})
		return nil
	})
}
