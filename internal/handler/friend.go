package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/MovieNight/internal/service"
)

type FriendHandler struct {
	friends service.IFriendService
}

func NewFriendHandler(friends service.IFriendService) *FriendHandler {
	return &FriendHandler{friends: friends}
}

type friendRequest struct {
	Email string `json:"email" binding:"required"`
}

func (h *FriendHandler) List(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}
	friends, err := h.friends.ListFriends(c.Request.Context(), uid)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, friends)
}

func (h *FriendHandler) Pending(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}
	requests, err := h.friends.ListPending(c.Request.Context(), uid)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, requests)
}

func (h *FriendHandler) Send(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}
	var req friendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	request, err := h.friends.SendRequest(c.Request.Context(), uid, req.Email)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, request)
}

func (h *FriendHandler) Accept(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}
	if err := h.friends.Accept(c.Request.Context(), uid, c.Param("request_id")); err != nil {
		fail(c, err)
		return
	}
	done(c, "friend request accepted")
}

func (h *FriendHandler) Decline(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}
	if err := h.friends.Decline(c.Request.Context(), uid, c.Param("request_id")); err != nil {
		fail(c, err)
		return
	}
	done(c, "friend request declined")
}

func (h *FriendHandler) Remove(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}
	if err := h.friends.Remove(c.Request.Context(), uid, c.Param("friend_id")); err != nil {
		fail(c, err)
		return
	}
	done(c, "friend removed")
}
