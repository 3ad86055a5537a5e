package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/service"
)

type GroupHandler struct {
	groups   service.IGroupService
	activity service.IActivityService
}

func NewGroupHandler(groups service.IGroupService, activity service.IActivityService) *GroupHandler {
	return &GroupHandler{groups: groups, activity: activity}
}

type createGroupRequest struct {
	Name string `json:"name" binding:"required"`
}

type addMemberRequest struct {
	Email string `json:"email" binding:"required"`
}

type changeRoleRequest struct {
	Role model.Role `json:"role" binding:"required"`
}

func (h *GroupHandler) Create(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	group, err := h.groups.CreateGroup(c.Request.Context(), uid, req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, group)
}

func (h *GroupHandler) List(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}
	groups, err := h.groups.ListGroups(c.Request.Context(), uid)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, groups)
}

func (h *GroupHandler) Get(c *gin.Context) {
	group, err := h.groups.GetGroup(c.Request.Context(), CurrentMembership(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, group)
}

func (h *GroupHandler) Delete(c *gin.Context) {
	if err := h.groups.DeleteGroup(c.Request.Context(), CurrentMembership(c)); err != nil {
		fail(c, err)
		return
	}
	done(c, "group deleted")
}

func (h *GroupHandler) ListMembers(c *gin.Context) {
	members, err := h.groups.ListMembers(c.Request.Context(), CurrentMembership(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, members)
}

func (h *GroupHandler) AddMember(c *gin.Context) {
	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	member, err := h.groups.AddMember(c.Request.Context(), CurrentMembership(c), req.Email)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, member)
}

func (h *GroupHandler) RemoveMember(c *gin.Context) {
	if err := h.groups.RemoveMember(c.Request.Context(), CurrentMembership(c), c.Param("user_id")); err != nil {
		fail(c, err)
		return
	}
	done(c, "member removed")
}

func (h *GroupHandler) ChangeRole(c *gin.Context) {
	var req changeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	change, err := h.groups.ChangeRole(c.Request.Context(), CurrentMembership(c), c.Param("user_id"), req.Role)
	if err != nil {
		fail(c, err)
		return
	}
	okWithMessage(c, change, change.Message)
}

// Activity serves the paginated timeline, filterable by event_type and
// actor_id.
func (h *GroupHandler) Activity(c *gin.Context) {
	m := CurrentMembership(c)
	page, err := h.activity.Timeline(c.Request.Context(), model.ActivityFilter{
		GroupID:   m.GroupID,
		EventType: model.ActivityType(c.Query("event_type")),
		ActorID:   c.Query("actor_id"),
		Page:      pageRequest(c),
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}
