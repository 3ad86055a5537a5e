package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/service"
)

type AuthHandler struct {
	auth service.IAuthService
}

func NewAuthHandler(auth service.IAuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	resp, err := h.auth.Register(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, resp)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	resp, err := h.auth.Login(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

type refreshRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	resp, err := h.auth.Refresh(c.Request.Context(), req.Token)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

func (h *AuthHandler) Profile(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}
	user, err := h.auth.Profile(c.Request.Context(), uid)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, user.Profile())
}

func (h *AuthHandler) UpdatePreferences(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}
	var prefs model.NotificationPreferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.auth.UpdatePreferences(c.Request.Context(), uid, prefs)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, user.Profile())
}

func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}
	if err := h.auth.DeleteAccount(c.Request.Context(), uid); err != nil {
		fail(c, err)
		return
	}
	done(c, "account deleted")
}
