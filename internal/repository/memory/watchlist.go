package memory

import (
	"context"
	"sort"

	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/repository"
)

type watchlistRepo struct{ s *Store }

func (r *watchlistRepo) InsertIgnore(ctx context.Context, entry *model.WatchlistEntry) (bool, error) {
	inserted := false
	err := r.s.write(ctx, func(st *state) error {
		key := watchlistKey{entry.GroupID, entry.MovieID}
		if _, ok := st.watchlist[key]; ok {
			return nil
		}
		st.watchlist[key] = cp(entry)
		inserted = true
		return nil
	})
	return inserted, err
}

func (r *watchlistRepo) Find(ctx context.Context, groupID string, movieID int64) (*model.WatchlistEntry, error) {
	var out *model.WatchlistEntry
	err := r.s.read(ctx, func(st *state) error {
		e, ok := st.watchlist[watchlistKey{groupID, movieID}]
		if !ok {
			return repository.ErrNotFound
		}
		out = cp(e)
		return nil
	})
	return out, err
}

func (r *watchlistRepo) Delete(ctx context.Context, groupID string, movieID int64) (bool, error) {
	deleted := false
	err := r.s.write(ctx, func(st *state) error {
		key := watchlistKey{groupID, movieID}
		if _, ok := st.watchlist[key]; ok {
			delete(st.watchlist, key)
			deleted = true
		}
		return nil
	})
	return deleted, err
}

func (r *watchlistRepo) ListByGroup(ctx context.Context, groupID string) ([]*model.WatchlistEntry, error) {
	var out []*model.WatchlistEntry
	err := r.s.read(ctx, func(st *state) error {
		for k, e := range st.watchlist {
			if k.groupID == groupID {
				out = append(out, cp(e))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.After(out[j].AddedAt)
		}
		return out[i].MovieID < out[j].MovieID
	})
	return out, err
}

type voteRepo struct{ s *Store }

func (r *voteRepo) Upsert(ctx context.Context, vote *model.Vote) error {
	return r.s.write(ctx, func(st *state) error {
		st.votes[voteKey{vote.UserID, vote.GroupID, vote.MovieID}] = cp(vote)
		return nil
	})
}

func (r *voteRepo) ListByMovie(ctx context.Context, groupID string, movieID int64) ([]*model.Vote, error) {
	var out []*model.Vote
	err := r.s.read(ctx, func(st *state) error {
		for k, v := range st.votes {
			if k.groupID == groupID && k.movieID == movieID {
				out = append(out, cp(v))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].VotedAt.Equal(out[j].VotedAt) {
			return out[i].VotedAt.Before(out[j].VotedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, err
}

func (r *voteRepo) VoterIDs(ctx context.Context, groupID string, movieID int64) ([]string, error) {
	votes, err := r.ListByMovie(ctx, groupID, movieID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(votes))
	for _, v := range votes {
		ids = append(ids, v.UserID)
	}
	return ids, nil
}
