package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/MovieNight/internal/service"
)

type WatchlistHandler struct {
	watchlist service.IWatchlistService
	votes     service.IVoteService
}

func NewWatchlistHandler(watchlist service.IWatchlistService, votes service.IVoteService) *WatchlistHandler {
	return &WatchlistHandler{watchlist: watchlist, votes: votes}
}

func (h *WatchlistHandler) List(c *gin.Context) {
	entries, err := h.watchlist.List(c.Request.Context(), CurrentMembership(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, entries)
}

func (h *WatchlistHandler) Add(c *gin.Context) {
	var req service.AddMovieRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	entry, err := h.watchlist.Add(c.Request.Context(), CurrentMembership(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, entry)
}

func (h *WatchlistHandler) Remove(c *gin.Context) {
	movieID, valid := int64Param(c, "movie_id")
	if !valid {
		return
	}
	if err := h.watchlist.Remove(c.Request.Context(), CurrentMembership(c), movieID); err != nil {
		fail(c, err)
		return
	}
	done(c, "movie removed from watchlist")
}

func (h *WatchlistHandler) Vote(c *gin.Context) {
	var req service.VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	vote, err := h.votes.Cast(c.Request.Context(), CurrentMembership(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, vote)
}

func (h *WatchlistHandler) Votes(c *gin.Context) {
	movieID, valid := int64Param(c, "movie_id")
	if !valid {
		return
	}
	summary, err := h.votes.Summary(c.Request.Context(), CurrentMembership(c), movieID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, summary)
}
