package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Gopher0727/MovieNight/internal/apperr"
	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/repository"
)

type VoteRequest struct {
	MovieID int64 `json:"movie_id" binding:"required"`
	Value   int   `json:"vote_value" binding:"required"`
}

type IVoteService interface {
	Cast(ctx context.Context, actor *model.Membership, req *VoteRequest) (*model.Vote, error)
	Summary(ctx context.Context, actor *model.Membership, movieID int64) (*model.VoteSummary, error)
}

type VoteService struct {
	*Deps
}

func NewVoteService(d *Deps) *VoteService {
	return &VoteService{Deps: d}
}

// Cast records or overwrites the caller's vote, then nudges members who have
// not voted on the movie yet.
func (s *VoteService) Cast(ctx context.Context, actor *model.Membership, req *VoteRequest) (*model.Vote, error) {
	if err := requireRole(actor, model.RoleMember); err != nil {
		return nil, err
	}
	if req.Value < model.VoteMin || req.Value > model.VoteMax {
		return nil, apperr.Validation("vote_value must be between %d and %d", model.VoteMin, model.VoteMax)
	}

	vote := &model.Vote{
		UserID:  actor.UserID,
		GroupID: actor.GroupID,
		MovieID: req.MovieID,
		Value:   req.Value,
		VotedAt: s.now(),
	}
	err := s.inTx(ctx, func(ctx context.Context) error {
		entry, err := s.Repos.Watchlist.Find(ctx, actor.GroupID, req.MovieID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrWatchlistNotFound
			}
			return fmt.Errorf("failed to find movie: %w", err)
		}
		if err := s.Repos.Votes.Upsert(ctx, vote); err != nil {
			return fmt.Errorf("failed to save vote: %w", err)
		}
		s.Activity.Record(ctx, Activity{
			GroupID:     actor.GroupID,
			ActorID:     actor.UserID,
			Type:        model.ActivityVoteCast,
			ReferenceID: strconv.FormatInt(req.MovieID, 10),
			Metadata:    map[string]any{"movie_id": req.MovieID, "vote_value": req.Value},
		})

		groupID, movieID, title, actorID := actor.GroupID, req.MovieID, entry.Title, actor.UserID
		s.Effects.Defer(ctx, "vote reminders", func(ctx context.Context) error {
			_, err := s.Notifier.SendVoteReminders(ctx, groupID, movieID, title, actorID)
			return err
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vote, nil
}

func (s *VoteService) Summary(ctx context.Context, actor *model.Membership, movieID int64) (*model.VoteSummary, error) {
	if err := requireRole(actor, model.RoleMember); err != nil {
		return nil, err
	}
	votes, err := s.Repos.Votes.ListByMovie(ctx, actor.GroupID, movieID)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	summary := &model.VoteSummary{MovieID: movieID, Votes: votes, Count: len(votes)}
	if summary.Votes == nil {
		summary.Votes = []*model.Vote{}
	}
	total := 0
	for _, v := range votes {
		total += v.Value
	}
	if len(votes) > 0 {
		summary.Average = float64(total) / float64(len(votes))
	}
	return summary, nil
}
