package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/MovieNight/internal/service"
)

type NotificationHandler struct {
	notifications service.INotificationService
}

func NewNotificationHandler(notifications service.INotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) List(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}
	page, err := h.notifications.List(c.Request.Context(), uid, pageRequest(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}
	n, err := h.notifications.UnreadCount(c.Request.Context(), uid)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"unread": n})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), uid, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	done(c, "notification marked as read")
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}
	n, err := h.notifications.MarkAllRead(c.Request.Context(), uid)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"marked": n})
}
