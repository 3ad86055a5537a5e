package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/service"
)

const contextMembership = "membership"

// Guards resolve the caller's membership for a group route before the
// handler runs.
type Guards struct {
	members *service.MembershipResolver
}

func NewGuards(members *service.MembershipResolver) *Guards {
	return &Guards{members: members}
}

// RequireMembership rejects callers who are not members of the group named
// by the route parameter.
func (g *Guards) RequireMembership(param string) gin.HandlerFunc {
	return g.require(param, "")
}

// RequireRole additionally rejects members ranked below min.
func (g *Guards) RequireRole(min model.Role, param string) gin.HandlerFunc {
	return g.require(param, min)
}

func (g *Guards) require(param string, min model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := userID(c)
		if !ok {
			return
		}
		m, err := g.members.Resolve(c.Request.Context(), c.Param(param), uid)
		if err != nil {
			fail(c, err)
			return
		}
		if m == nil {
			fail(c, service.ErrNotMember)
			return
		}
		if min != "" && !m.AtLeast(min) {
			fail(c, service.ErrRequiresRole(min))
			return
		}
		c.Set(contextMembership, m)
		c.Next()
	}
}

// CurrentMembership returns the membership stored by a guard, or nil.
func CurrentMembership(c *gin.Context) *model.Membership {
	m, _ := c.Get(contextMembership)
	membership, _ := m.(*model.Membership)
	return membership
}
